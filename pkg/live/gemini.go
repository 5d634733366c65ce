package live

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/intervox-ai/intervox/pkg/audio"
)

// GeminiTransport dials Gemini Live sessions. The genai client is
// constructed by the caller and shared with the structured-call service;
// the transport never owns process-wide state.
type GeminiTransport struct {
	client *genai.Client
}

// NewGeminiTransport wraps an existing genai client.
func NewGeminiTransport(client *genai.Client) *GeminiTransport {
	return &GeminiTransport{client: client}
}

// Connect opens a realtime session configured for audio responses with
// both input and output transcription enabled.
func (t *GeminiTransport) Connect(ctx context.Context, cfg SessionConfig) (Conn, error) {
	session, err := t.client.Live.Connect(ctx, cfg.Model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini live connect: %w", err)
	}
	return &geminiConn{session: session}, nil
}

type geminiConn struct {
	session *genai.Session
}

// Send forwards one realtime audio frame. Delivery confirmation is not
// awaited.
func (c *geminiConn) Send(payload audio.EncodedPayload) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     payload.Data,
			MIMEType: payload.MIMEType,
		},
	})
}

// Receive maps the next Gemini server message onto a ServerEvent. The
// mapping preserves the message's multi-signal nature: audio, barge-in,
// both transcription directions, and turn boundaries are all extracted
// from the same message when present.
func (c *geminiConn) Receive() (ServerEvent, error) {
	msg, err := c.session.Receive()
	if err != nil {
		return ServerEvent{}, err
	}

	var ev ServerEvent
	sc := msg.ServerContent
	if sc == nil {
		return ev, nil
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				ev.Audio = append(ev.Audio, part.InlineData.Data...)
			}
		}
	}
	ev.Interrupted = sc.Interrupted
	if sc.InputTranscription != nil {
		ev.InputTranscription = sc.InputTranscription.Text
		ev.HasInputTranscription = true
	}
	if sc.OutputTranscription != nil {
		ev.OutputTranscription = sc.OutputTranscription.Text
		ev.HasOutputTranscription = true
	}
	ev.TurnComplete = sc.TurnComplete
	return ev, nil
}

func (c *geminiConn) Close() error {
	return c.session.Close()
}
