package capture

import (
	"errors"
	"math"
	"testing"

	"github.com/intervox-ai/intervox/pkg/audio"
)

func constantFrame(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestPushForwardsCompleteFrames(t *testing.T) {
	var sent []audio.EncodedPayload
	p := NewPipeline(func(payload audio.EncodedPayload) {
		sent = append(sent, payload)
	}, Config{FrameSamples: 4})

	p.Push([]float32{0.1, 0.2})
	if len(sent) != 0 {
		t.Fatalf("partial frame forwarded: %d sends", len(sent))
	}

	p.Push([]float32{0.3, 0.4, 0.5})
	if len(sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(sent))
	}
	if sent[0].MIMEType != audio.InputMIMEType {
		t.Errorf("MIMEType = %q, want %q", sent[0].MIMEType, audio.InputMIMEType)
	}
	if len(sent[0].Data) != 4*2 {
		t.Errorf("frame bytes = %d, want 8", len(sent[0].Data))
	}

	// The leftover sample carries into the next frame.
	p.Push([]float32{0.6, 0.7, 0.8})
	if len(sent) != 2 {
		t.Fatalf("sends after carry-over = %d, want 2", len(sent))
	}
}

func TestMuteGatesForwardingNotMetering(t *testing.T) {
	sends := 0
	volumes := 0
	p := NewPipeline(func(audio.EncodedPayload) { sends++ }, Config{
		FrameSamples: 4,
		OnVolume:     func(float64) { volumes++ },
	})

	p.SetMuted(true)
	for i := 0; i < 3; i++ {
		p.Push(constantFrame(4, 0.5))
	}

	if sends != 0 {
		t.Errorf("sends while muted = %d, want 0", sends)
	}
	if volumes != 3 {
		t.Errorf("volume updates while muted = %d, want 3", volumes)
	}
	if math.Abs(p.Volume()-0.5) > 0.01 {
		t.Errorf("Volume = %.3f, want 0.5", p.Volume())
	}

	p.SetMuted(false)
	p.Push(constantFrame(4, 0.5))
	if sends != 1 {
		t.Errorf("sends after unmute = %d, want 1", sends)
	}
}

func TestSkipMeterWhileMuted(t *testing.T) {
	volumes := 0
	p := NewPipeline(nil, Config{
		FrameSamples:        4,
		SkipMeterWhileMuted: true,
		OnVolume:            func(float64) { volumes++ },
	})

	p.SetMuted(true)
	p.Push(constantFrame(8, 0.5))
	if volumes != 0 {
		t.Errorf("volume updates with metering disabled = %d, want 0", volumes)
	}

	p.SetMuted(false)
	p.Push(constantFrame(4, 0.5))
	if volumes != 1 {
		t.Errorf("volume updates after unmute = %d, want 1", volumes)
	}
}

func TestToggleMute(t *testing.T) {
	p := NewPipeline(nil, Config{FrameSamples: 4})
	if p.Muted() {
		t.Fatal("pipeline starts muted")
	}
	if !p.ToggleMute() {
		t.Error("first toggle should mute")
	}
	if p.ToggleMute() {
		t.Error("second toggle should unmute")
	}
}

func TestVolumeTracksFrameAmplitude(t *testing.T) {
	p := NewPipeline(nil, Config{FrameSamples: 4})

	p.Push(constantFrame(4, 0.25))
	if math.Abs(p.Volume()-0.25) > 0.01 {
		t.Errorf("Volume = %.3f, want 0.25", p.Volume())
	}

	p.Push(constantFrame(4, 0))
	if p.Volume() > 0.01 {
		t.Errorf("Volume after silence = %.3f, want 0", p.Volume())
	}
}

type fakeSource struct {
	closes int
	err    error
}

func (f *fakeSource) Close() error {
	f.closes++
	return f.err
}

func TestCloseReleasesSourceOnce(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(nil, Config{FrameSamples: 4})
	p.Attach(src)

	if err := p.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}
	if src.closes != 1 {
		t.Errorf("source closed %d times, want 1", src.closes)
	}
}

func TestCloseSwallowsDeviceErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("stream already closed")}
	p := NewPipeline(nil, Config{FrameSamples: 4})
	p.Attach(src)

	if err := p.Close(); err != nil {
		t.Fatalf("Close escalated a teardown error: %v", err)
	}
}

func TestPushAfterCloseDropped(t *testing.T) {
	sends := 0
	p := NewPipeline(func(audio.EncodedPayload) { sends++ }, Config{FrameSamples: 4})
	_ = p.Close()
	p.Push(constantFrame(8, 0.5))
	if sends != 0 {
		t.Errorf("sends after close = %d, want 0", sends)
	}
}
