package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/transcript"
)

// recordingPlayer records the interleaving of Play and Flush calls so
// routing order is observable.
type recordingPlayer struct {
	mu      sync.Mutex
	calls   []string
	playErr error
}

func (p *recordingPlayer) Play(chunk []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "play")
	return p.playErr
}

func (p *recordingPlayer) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "flush")
}

func (p *recordingPlayer) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

// scriptedConn replays a fixed event sequence then blocks until closed.
type scriptedConn struct {
	events chan ServerEvent
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	sent    []audio.EncodedPayload
	sendErr error
}

func newScriptedConn(events ...ServerEvent) *scriptedConn {
	c := &scriptedConn{
		events: make(chan ServerEvent, len(events)),
		closed: make(chan struct{}),
	}
	for _, ev := range events {
		c.events <- ev
	}
	return c
}

func (c *scriptedConn) Send(payload audio.EncodedPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *scriptedConn) Receive() (ServerEvent, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.closed:
		return ServerEvent{}, io.EOF
	}
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptedConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeTransport struct {
	conn    *scriptedConn
	dialErr error

	mu  sync.Mutex
	cfg SessionConfig
}

func (t *fakeTransport) Connect(_ context.Context, cfg SessionConfig) (Conn, error) {
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	return t.conn, nil
}

func waitForState(t *testing.T, c *Controller, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", c.State(), want)
}

func TestConnectTransitionsToOpen(t *testing.T) {
	conn := newScriptedConn()
	tr := &fakeTransport{conn: conn}
	var states []ConnectionState
	var mu sync.Mutex
	c := NewController(tr, &recordingPlayer{}, transcript.NewAssembler(),
		WithStateFunc(func(s ConnectionState) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		}))

	cfg := SessionConfig{Model: "m", SystemInstruction: "persona", Voice: "Kore"}
	if err := c.Connect(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	if c.State() != StateOpen {
		t.Fatalf("state = %s, want open", c.State())
	}
	mu.Lock()
	got := append([]ConnectionState(nil), states...)
	mu.Unlock()
	if len(got) != 2 || got[0] != StateConnecting || got[1] != StateOpen {
		t.Errorf("state sequence = %v, want [connecting open]", got)
	}
	tr.mu.Lock()
	if tr.cfg.SystemInstruction != "persona" {
		t.Errorf("transport received instruction %q", tr.cfg.SystemInstruction)
	}
	tr.mu.Unlock()
}

func TestConnectTransportErrorLeavesIdle(t *testing.T) {
	tr := &fakeTransport{dialErr: errors.New("handshake refused")}
	c := NewController(tr, &recordingPlayer{}, transcript.NewAssembler())

	if err := c.Connect(context.Background(), SessionConfig{}); err == nil {
		t.Fatal("expected connect error")
	}
	if c.State() != StateIdle {
		t.Errorf("state after failed connect = %s, want idle", c.State())
	}
}

func TestSendBeforeOpenIsDropped(t *testing.T) {
	conn := newScriptedConn()
	tr := &fakeTransport{conn: conn}
	c := NewController(tr, &recordingPlayer{}, transcript.NewAssembler())

	// Frames captured before the session opens are dropped, not queued.
	c.Send(audio.EncodedPayload{Data: []byte{1, 2}, MIMEType: audio.InputMIMEType})
	if conn.sentCount() != 0 {
		t.Fatalf("pre-open send reached transport")
	}

	if err := c.Connect(context.Background(), SessionConfig{}); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	c.Send(audio.EncodedPayload{Data: []byte{3, 4}, MIMEType: audio.InputMIMEType})
	if conn.sentCount() != 1 {
		t.Fatalf("open send count = %d, want 1", conn.sentCount())
	}
}

func TestSendErrorClosesSession(t *testing.T) {
	conn := newScriptedConn()
	conn.sendErr = errors.New("broken pipe")
	tr := &fakeTransport{conn: conn}
	c := NewController(tr, &recordingPlayer{}, transcript.NewAssembler())

	if err := c.Connect(context.Background(), SessionConfig{}); err != nil {
		t.Fatal(err)
	}
	c.Send(audio.EncodedPayload{Data: []byte{1}})
	waitForState(t, c, StateClosed)
}

func TestDisconnectIdempotent(t *testing.T) {
	conn := newScriptedConn()
	tr := &fakeTransport{conn: conn}
	c := NewController(tr, &recordingPlayer{}, transcript.NewAssembler())

	if err := c.Connect(context.Background(), SessionConfig{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateIdle {
		t.Errorf("state after disconnect = %s, want idle", c.State())
	}

	// A fresh connect after disconnect is allowed.
	tr.conn = newScriptedConn()
	if err := c.Connect(context.Background(), SessionConfig{}); err != nil {
		t.Fatal(err)
	}
	c.Disconnect()
}

func TestRouteAudioAndTranscription(t *testing.T) {
	player := &recordingPlayer{}
	asm := transcript.NewAssembler()
	c := NewController(&fakeTransport{}, player, asm)

	c.route(ServerEvent{Audio: []byte{0, 1}})
	c.route(ServerEvent{InputTranscription: "xin ", HasInputTranscription: true})
	c.route(ServerEvent{
		InputTranscription:    "chào",
		HasInputTranscription: true,
		TurnComplete:          true,
	})

	history := asm.History()
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Role != transcript.RoleUser || history[0].Text != "xin chào" {
		t.Errorf("item = {%s %q}, want {user %q}", history[0].Role, history[0].Text, "xin chào")
	}
	if got := player.snapshot(); len(got) != 1 || got[0] != "play" {
		t.Errorf("player calls = %v, want [play]", got)
	}
}

func TestRouteInterruptionFlushesBeforeSameMessageAudio(t *testing.T) {
	player := &recordingPlayer{}
	asm := transcript.NewAssembler()
	c := NewController(&fakeTransport{}, player, asm)

	asm.AppendPartial(transcript.RoleModel, "as I was say")
	c.route(ServerEvent{Interrupted: true, Audio: []byte{0, 1, 2, 3}})

	got := player.snapshot()
	if len(got) != 2 || got[0] != "flush" || got[1] != "play" {
		t.Fatalf("player calls = %v, want [flush play]", got)
	}
	if asm.Pending(transcript.RoleModel) != "" {
		t.Error("interruption did not clear pending transcription")
	}
}

func TestRoutePlayErrorDoesNotShortCircuitMessage(t *testing.T) {
	player := &recordingPlayer{playErr: errors.New("bad chunk")}
	asm := transcript.NewAssembler()
	c := NewController(&fakeTransport{}, player, asm)

	c.route(ServerEvent{
		Audio:                  []byte{0, 1},
		OutputTranscription:    "still here",
		HasOutputTranscription: true,
		TurnComplete:           true,
	})

	history := asm.History()
	if len(history) != 1 || history[0].Text != "still here" {
		t.Fatalf("transcription lost after decode failure: history = %v", history)
	}
}

func TestRouteEmptyFragmentStillAppended(t *testing.T) {
	asm := transcript.NewAssembler()
	c := NewController(&fakeTransport{}, &recordingPlayer{}, asm)

	c.route(ServerEvent{InputTranscription: "", HasInputTranscription: true})
	c.route(ServerEvent{InputTranscription: "ok", HasInputTranscription: true, TurnComplete: true})

	history := asm.History()
	if len(history) != 1 || history[0].Text != "ok" {
		t.Fatalf("history = %v", history)
	}
}

func TestReceiveLoopRoutesDeliveredEvents(t *testing.T) {
	conn := newScriptedConn(
		ServerEvent{OutputTranscription: "Hello, ", HasOutputTranscription: true},
		ServerEvent{OutputTranscription: "candidate.", HasOutputTranscription: true, TurnComplete: true},
	)
	tr := &fakeTransport{conn: conn}
	asm := transcript.NewAssembler()
	c := NewController(tr, &recordingPlayer{}, asm)

	if err := c.Connect(context.Background(), SessionConfig{}); err != nil {
		t.Fatal(err)
	}
	defer c.Disconnect()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if asm.Len() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	history := asm.History()
	if len(history) != 1 || history[0].Text != "Hello, candidate." {
		t.Fatalf("history = %v", history)
	}
}
