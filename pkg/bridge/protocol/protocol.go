// Package protocol defines the websocket wire format between a browser
// client and the interview bridge. The first client frame is a hello
// negotiating audio shape and carrying the interview setup; after the
// ack, the client streams base64 PCM frames and control operations, and
// the server streams audio, transcript, state, and report events.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion1 = "1"

	EncodingPCMS16LE = "pcm_s16le"

	InputSampleRateHz  = 16000
	OutputSampleRateHz = 24000
)

// Control operations accepted after the handshake.
const (
	OpToggleMute   = "toggle_mute"
	OpEndInterview = "end_interview"
	OpRestart      = "restart"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// AudioFormat describes negotiated live audio shape.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

type HelloClient struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// HelloInterview is the setup the interview runs against.
type HelloInterview struct {
	JobDescription string `json:"job_description"`
	CandidateCV    string `json:"candidate_cv"`
	CompanyCulture string `json:"company_culture,omitempty"`
	Voice          string `json:"voice,omitempty"`
}

type ClientHello struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Client          HelloClient    `json:"client,omitempty"`
	AudioIn         AudioFormat    `json:"audio_in"`
	AudioOut        AudioFormat    `json:"audio_out"`
	Interview       HelloInterview `json:"interview"`
}

type ClientAudioFrame struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	DataB64 string `json:"data_b64"`
}

type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// DecodeClientMessage parses one inbound text frame into its typed
// message, validating required fields.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "audio_frame":
		var msg ClientAudioFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_frame", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_frame.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		switch op {
		case OpToggleMute, OpEndInterview, OpRestart:
		default:
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ValidateHello checks required hello fields and the fixed audio shape:
// pcm_s16le mono, 16 kHz in and 24 kHz out.
func ValidateHello(msg ClientHello) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if msg.ProtocolVersion != ProtocolVersion1 {
		return unsupported("unsupported protocol_version", "protocol_version")
	}
	if msg.AudioIn.Encoding != EncodingPCMS16LE || msg.AudioIn.SampleRateHz != InputSampleRateHz || msg.AudioIn.Channels != 1 {
		return unsupported("audio_in must be pcm_s16le @16000Hz mono", "audio_in")
	}
	if msg.AudioOut.Encoding != EncodingPCMS16LE || msg.AudioOut.SampleRateHz != OutputSampleRateHz || msg.AudioOut.Channels != 1 {
		return unsupported("audio_out must be pcm_s16le @24000Hz mono", "audio_out")
	}
	if strings.TrimSpace(msg.Interview.JobDescription) == "" {
		return badRequest("hello.interview.job_description is required", "interview.job_description")
	}
	if strings.TrimSpace(msg.Interview.CandidateCV) == "" {
		return badRequest("hello.interview.candidate_cv is required", "interview.candidate_cv")
	}
	return nil
}

type ServerHelloAck struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	AudioIn         AudioFormat `json:"audio_in"`
	AudioOut        AudioFormat `json:"audio_out"`
}

type ServerError struct {
	Type      string `json:"type"`
	Scope     string `json:"scope,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Close     bool   `json:"close,omitempty"`
}

// ServerAnalysis carries the profile analysis once the interviewer
// persona is prepared.
type ServerAnalysis struct {
	Type               string   `json:"type"`
	InterviewFocus     []string `json:"interview_focus"`
	CandidateStrengths []string `json:"candidate_strengths"`
	InitialGreeting    string   `json:"initial_greeting"`
}

type ServerAudioChunk struct {
	Type    string `json:"type"`
	DataB64 string `json:"data_b64"`
}

// ServerInterrupted tells the client to drop its buffered playback.
type ServerInterrupted struct {
	Type string `json:"type"`
}

// TranscriptEntry is one committed transcript item on the wire.
type TranscriptEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ServerTurnComplete carries the items committed at a turn boundary.
type ServerTurnComplete struct {
	Type  string            `json:"type"`
	Items []TranscriptEntry `json:"items"`
}

// ServerState reports lifecycle changes. Zero-valued fields were not
// part of the transition.
type ServerState struct {
	Type       string `json:"type"`
	Phase      string `json:"phase,omitempty"`
	Connection string `json:"connection,omitempty"`
	Muted      *bool  `json:"muted,omitempty"`
}

type ServerVolume struct {
	Type  string  `json:"type"`
	Level float64 `json:"level"`
}

// ServerReport carries the final evaluation.
type ServerReport struct {
	Type           string   `json:"type"`
	Score          int      `json:"score"`
	Summary        string   `json:"summary"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	Recommendation string   `json:"recommendation"`
	Details        string   `json:"details"`
}
