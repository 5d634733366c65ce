package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/transcript"
)

// Controller is the sole owner of the streaming transport. It connects,
// forwards captured frames, and routes each inbound server message to the
// player and transcriber in a fixed order.
type Controller struct {
	transport   Transport
	player      Player
	transcriber Transcriber
	logger      *slog.Logger
	onState     func(ConnectionState)

	mu       sync.Mutex
	state    ConnectionState
	conn     Conn
	recvDone chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStateFunc registers a callback invoked on every connection-state
// transition. The callback runs outside the controller's lock but on the
// transitioning goroutine; it must not block.
func WithStateFunc(fn func(ConnectionState)) Option {
	return func(c *Controller) { c.onState = fn }
}

// NewController creates a controller over the given transport. player and
// transcriber receive the demultiplexed inbound events.
func NewController(transport Transport, player Player, transcriber Transcriber, opts ...Option) *Controller {
	c := &Controller{
		transport:   transport,
		player:      player,
		transcriber: transcriber,
		logger:      slog.Default(),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the streaming session and starts the receive loop.
// The controller transitions to connecting, then to open once the
// transport acknowledges; a transport error leaves it idle.
func (c *Controller) Connect(ctx context.Context, cfg SessionConfig) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return errors.New("live session already active")
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.emitState(StateConnecting)

	conn, err := c.transport.Connect(ctx, cfg)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		c.emitState(StateIdle)
		return fmt.Errorf("connect live session: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.recvDone = done
	c.state = StateOpen
	c.mu.Unlock()
	c.emitState(StateOpen)

	go c.receiveLoop(conn, done)
	return nil
}

// Send forwards one encoded frame to the open session. Before the session
// is open this is a silent no-op: frames captured during connection
// establishment are dropped, not queued. A send error is surfaced through
// the connection-state signal, not returned.
func (c *Controller) Send(payload audio.EncodedPayload) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		return
	}
	if err := conn.Send(payload); err != nil {
		c.logger.Error("send audio frame", "error", err)
		c.fail(conn)
	}
}

// Disconnect tears down the logical session and reports the connection as
// idle. It is idempotent. Capture and playback teardown are the owning
// component's responsibility, not triggered here.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	done := c.recvDone
	c.conn = nil
	c.recvDone = nil
	changed := c.state != StateIdle
	c.state = StateIdle
	c.mu.Unlock()

	if changed {
		c.emitState(StateIdle)
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Warn("close live session", "error", err)
		}
	}
	if done != nil {
		<-done
	}
	return nil
}

// receiveLoop drains server events in delivery order until the session
// ends. All fields of one message are routed before the next is read.
func (c *Controller) receiveLoop(conn Conn, done chan struct{}) {
	defer close(done)
	for {
		ev, err := conn.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Error("live session receive", "error", err)
			}
			c.fail(conn)
			return
		}
		c.route(ev)
	}
}

// route dispatches one server message. Every field is an independent
// signal checked in a fixed order; an earlier match never short-circuits a
// later one. Interruption is handled before audio so that a chunk sharing
// its message with a barge-in is scheduled onto the freshly reset
// timeline, never the stale one.
func (c *Controller) route(ev ServerEvent) {
	if ev.Interrupted {
		c.player.Flush()
		c.transcriber.ClearPending()
	}
	if len(ev.Audio) > 0 {
		if err := c.player.Play(ev.Audio); err != nil {
			// A bad chunk is skipped; the rest of the message still
			// gets processed.
			c.logger.Warn("play audio chunk", "error", err)
		}
	}
	if ev.HasInputTranscription {
		c.transcriber.AppendPartial(transcript.RoleUser, ev.InputTranscription)
	}
	if ev.HasOutputTranscription {
		c.transcriber.AppendPartial(transcript.RoleModel, ev.OutputTranscription)
	}
	if ev.TurnComplete {
		c.transcriber.CommitTurn()
	}
}

// fail marks the session closed after a transport-level failure, unless an
// explicit Disconnect already replaced it.
func (c *Controller) fail(conn Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.recvDone = nil
	c.state = StateClosed
	c.mu.Unlock()

	c.emitState(StateClosed)
	if err := conn.Close(); err != nil {
		c.logger.Warn("close live session", "error", err)
	}
}

func (c *Controller) emitState(state ConnectionState) {
	if c.onState != nil {
		c.onState(state)
	}
}
