// Package bridge exposes the interview session over a websocket so a
// browser supplies the microphone, speaker, and UI while this process
// owns the AI session. One websocket connection is one interview.
package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/bridge/protocol"
	"github.com/intervox-ai/intervox/pkg/interview"
	"github.com/intervox-ai/intervox/pkg/live"
	"github.com/intervox-ai/intervox/pkg/transcript"
)

const (
	defaultHandshakeTimeout = 5 * time.Second
	defaultMaxMessageBytes  = 1 << 20
)

// Handler serves one interview per websocket connection on GET.
type Handler struct {
	Analyzer  interview.Analyzer
	Transport live.Transport
	LiveModel string
	Voice     string
	Logger    *slog.Logger

	HandshakeTimeout time.Duration
	MaxMessageBytes  int64
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	maxBytes := h.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxMessageBytes
	}
	conn.SetReadLimit(maxBytes)

	handshakeTimeout := h.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	writer := &wsWriter{conn: conn}

	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		writer.writeError("session", "bad_request", "failed to read hello", true)
		return
	}
	if messageType != websocket.TextMessage {
		writer.writeError("session", "bad_request", "first frame must be hello", true)
		return
	}
	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		writer.writeDecodeError(err, true)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		writer.writeError("session", "bad_request", "first frame must be hello", true)
		return
	}

	sessionID := uuid.NewString()
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		AudioIn:         hello.AudioIn,
		AudioOut:        hello.AudioOut,
	}
	if err := writer.write(ack); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	logger = logger.With("session_id", sessionID)
	logger.Info("interview session opened",
		"client", hello.Client.Name,
		"platform", hello.Client.Platform)

	voice := hello.Interview.Voice
	if voice == "" {
		voice = h.Voice
	}

	var pushMu sync.Mutex
	var push func([]float32)

	session := interview.NewSession(interview.Config{
		Analyzer:  h.Analyzer,
		Transport: h.Transport,
		Player:    &wsPlayer{writer: writer},
		OpenSource: func(fn func([]float32)) (io.Closer, error) {
			pushMu.Lock()
			push = fn
			pushMu.Unlock()
			return closerFunc(func() error {
				pushMu.Lock()
				push = nil
				pushMu.Unlock()
				return nil
			}), nil
		},
		LiveModel: h.LiveModel,
		Voice:     voice,
		Logger:    logger,
		OnPhase: func(phase interview.Phase) {
			writer.write(protocol.ServerState{Type: "state", Phase: phase.String()})
		},
		OnState: func(state live.ConnectionState) {
			writer.write(protocol.ServerState{Type: "state", Connection: state.String()})
		},
		OnVolume: func(level float64) {
			writer.write(protocol.ServerVolume{Type: "volume", Level: level})
		},
		OnTranscript: func(items []transcript.Item) {
			entries := make([]protocol.TranscriptEntry, len(items))
			for i, item := range items {
				entries[i] = protocol.TranscriptEntry{Role: string(item.Role), Text: item.Text}
			}
			writer.write(protocol.ServerTurnComplete{Type: "turn_complete", Items: entries})
		},
	})
	defer session.Close()

	data := interview.InterviewData{
		JobDescription: hello.Interview.JobDescription,
		CandidateCV:    hello.Interview.CandidateCV,
		CompanyCulture: hello.Interview.CompanyCulture,
	}
	if err := session.Start(r.Context(), data); err != nil {
		logger.Error("interview start failed", "error", err)
		writer.writeSessionError(err, true)
		return
	}
	analysis := session.Analysis()
	writer.write(protocol.ServerAnalysis{
		Type:               "analysis",
		InterviewFocus:     analysis.InterviewFocus,
		CandidateStrengths: analysis.CandidateStrengths,
		InitialGreeting:    analysis.InitialGreeting,
	})

	h.readLoop(r.Context(), conn, writer, session, &pushMu, &push, logger)
	logger.Info("interview session closed")
}

func (h Handler) readLoop(ctx context.Context, conn *websocket.Conn, writer *wsWriter, session *interview.Session, pushMu *sync.Mutex, push *func([]float32), logger *slog.Logger) {
	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			writer.writeError("message", "bad_request", "binary frames are not supported", false)
			continue
		}
		decoded, err := protocol.DecodeClientMessage(frame)
		if err != nil {
			writer.writeDecodeError(err, false)
			continue
		}

		switch msg := decoded.(type) {
		case protocol.ClientAudioFrame:
			pcm, err := base64.StdEncoding.DecodeString(msg.DataB64)
			if err != nil {
				writer.writeError("message", "bad_request", "audio_frame.data_b64 is not valid base64", false)
				continue
			}
			pushMu.Lock()
			fn := *push
			pushMu.Unlock()
			// Frames arriving outside a live session are dropped.
			if fn != nil {
				fn(audio.FloatsFromPCM16(pcm))
			}
		case protocol.ClientControl:
			h.handleControl(ctx, msg.Op, writer, session, logger)
		case protocol.ClientHello:
			writer.writeError("message", "bad_request", "hello is only valid as the first frame", false)
		}
	}
}

func (h Handler) handleControl(ctx context.Context, op string, writer *wsWriter, session *interview.Session, logger *slog.Logger) {
	switch op {
	case protocol.OpToggleMute:
		muted := session.ToggleMute()
		writer.write(protocol.ServerState{Type: "state", Muted: &muted})
	case protocol.OpEndInterview:
		report, err := session.EndInterview(ctx)
		if err != nil {
			logger.Error("end interview failed", "error", err)
			writer.writeSessionError(err, false)
			return
		}
		writer.write(protocol.ServerReport{
			Type:           "report",
			Score:          report.Score,
			Summary:        report.Summary,
			Strengths:      report.Strengths,
			Weaknesses:     report.Weaknesses,
			Recommendation: string(report.Recommendation),
			Details:        report.Details,
		})
	case protocol.OpRestart:
		session.Restart()
	}
}

// closerFunc adapts a function to io.Closer for the capture source.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// wsPlayer forwards inbound model audio to the browser, which owns the
// actual playback clock. Flush maps to an interrupted event so the
// client discards everything it has buffered.
type wsPlayer struct {
	writer *wsWriter
}

func (p *wsPlayer) Play(chunk []byte) error {
	return p.writer.write(protocol.ServerAudioChunk{
		Type:    "audio_chunk",
		DataB64: base64.StdEncoding.EncodeToString(chunk),
	})
}

func (p *wsPlayer) Flush() {
	p.writer.write(protocol.ServerInterrupted{Type: "interrupted"})
}

// wsWriter serializes concurrent JSON writes to one websocket.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *wsWriter) writeError(scope, code, message string, close bool) {
	w.write(protocol.ServerError{Type: "error", Scope: scope, Code: code, Message: message, Close: close})
}

func (w *wsWriter) writeDecodeError(err error, close bool) {
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		w.writeError("message", decodeErr.Code, decodeErr.Error(), close)
		return
	}
	w.writeError("message", "bad_request", err.Error(), close)
}

// writeSessionError maps the interview error taxonomy onto wire codes.
func (w *wsWriter) writeSessionError(err error, close bool) {
	var ierr *interview.Error
	if !errors.As(err, &ierr) {
		w.writeError("session", "internal", err.Error(), close)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.WriteJSON(protocol.ServerError{
		Type:      "error",
		Scope:     "session",
		Code:      string(ierr.Type),
		Message:   ierr.Message,
		Retryable: ierr.IsRetryable(),
		Close:     close,
	})
}
