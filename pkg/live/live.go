// Package live owns the streaming session to the generative endpoint:
// connection lifecycle, outbound audio forwarding, and demultiplexing
// inbound server events to playback, transcript assembly, and barge-in
// handling. The transport is substitutable so the controller can be
// exercised without a network.
package live

import (
	"context"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/transcript"
)

// ConnectionState tracks the session lifecycle. Only the Controller
// transitions it.
type ConnectionState int32

const (
	// StateIdle means no session exists yet (or it was explicitly
	// disconnected).
	StateIdle ConnectionState = iota
	// StateConnecting means the transport handshake is in flight.
	StateConnecting
	// StateOpen means the session accepts outbound frames and delivers
	// server events.
	StateOpen
	// StateClosed means the transport ended the session.
	StateClosed
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig is the configuration handed to the streaming endpoint on
// connect. Input and output transcription are always enabled and the
// response modality is always audio.
type SessionConfig struct {
	// Model selects the realtime model.
	Model string
	// SystemInstruction is the interviewer persona script.
	SystemInstruction string
	// Voice selects the prebuilt synthesis voice.
	Voice string
}

// ServerEvent is one inbound server message. Its fields are independent
// signals, not alternatives: a single message may carry any combination.
type ServerEvent struct {
	// Audio is a chunk of s16le mono 24 kHz model speech.
	Audio []byte
	// Interrupted signals a barge-in: playback must flush and pending
	// transcription must be discarded.
	Interrupted bool
	// InputTranscription is a partial fragment of the candidate's speech.
	InputTranscription string
	// HasInputTranscription distinguishes an absent fragment from an
	// empty one; empty fragments are still appended.
	HasInputTranscription bool
	// OutputTranscription is a partial fragment of the interviewer's
	// speech.
	OutputTranscription string
	// HasOutputTranscription mirrors HasInputTranscription.
	HasOutputTranscription bool
	// TurnComplete marks a turn boundary.
	TurnComplete bool
}

// Conn is one established streaming session.
type Conn interface {
	// Send forwards a single encoded audio frame. Delivery is
	// fire-and-forget.
	Send(payload audio.EncodedPayload) error
	// Receive blocks for the next server event. It returns io.EOF (or a
	// transport error) once the session ends.
	Receive() (ServerEvent, error)
	// Close tears the session down. Closing twice is harmless.
	Close() error
}

// Transport establishes streaming sessions.
type Transport interface {
	Connect(ctx context.Context, cfg SessionConfig) (Conn, error)
}

// Player consumes inbound model speech. The production implementation
// decodes and schedules against the output clock; the bridge forwards raw
// chunks to the browser.
type Player interface {
	Play(chunk []byte) error
	Flush()
}

// Transcriber consumes transcription fragments and turn boundaries.
// *transcript.Assembler satisfies it.
type Transcriber interface {
	AppendPartial(role transcript.Role, text string)
	CommitTurn() []transcript.Item
	ClearPending()
}
