// Package capture owns the microphone input path: framing raw samples
// into fixed-size chunks, metering loudness for the UI, and handing
// encoded frames to the streaming session at a steady cadence.
package capture

import (
	"io"
	"log/slog"
	"sync"

	"github.com/intervox-ai/intervox/pkg/audio"
)

// Sink receives one encoded frame per complete capture buffer.
type Sink func(audio.EncodedPayload)

// Config tunes the pipeline. The zero value gives the standard 4096-sample
// frame with metering that keeps running while muted.
type Config struct {
	// FrameSamples is the capture frame size. Defaults to audio.FrameSamples.
	FrameSamples int

	// MeterWhileMuted keeps the volume signal updating from captured
	// frames even when forwarding is muted, so the UI meter stays live.
	// Set SkipMeterWhileMuted to disable.
	SkipMeterWhileMuted bool

	// OnVolume, if set, is called with the RMS amplitude of every metered
	// frame.
	OnVolume func(float64)

	// Logger receives teardown warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Pipeline frames microphone samples and forwards encoded audio.
//
// Mute is a gate on forwarding only: capture keeps running and, by
// default, metering keeps updating. The device that feeds Push registers
// itself via Attach so that Close tears the whole path down in one
// idempotent call.
type Pipeline struct {
	sink   Sink
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	pending []float32
	muted   bool
	volume  float64
	closed  bool
	source  io.Closer
}

// NewPipeline creates a pipeline that forwards encoded frames to sink.
func NewPipeline(sink Sink, cfg Config) *Pipeline {
	if cfg.FrameSamples <= 0 {
		cfg.FrameSamples = audio.FrameSamples
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		pending: make([]float32, 0, cfg.FrameSamples),
	}
}

// Attach registers the capture device feeding this pipeline so that Close
// releases it. At most one source is held; attaching replaces the previous
// reference without closing it.
func (p *Pipeline) Attach(source io.Closer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = source
}

// Push accepts raw floating-point samples from the capture device. Samples
// accumulate until a complete frame is available; each complete frame is
// metered and, unless muted, encoded and forwarded. Pushes after Close are
// dropped.
func (p *Pipeline) Push(samples []float32) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending = append(p.pending, samples...)

	var frames [][]float32
	for len(p.pending) >= p.cfg.FrameSamples {
		frame := make([]float32, p.cfg.FrameSamples)
		copy(frame, p.pending[:p.cfg.FrameSamples])
		p.pending = p.pending[p.cfg.FrameSamples:]
		frames = append(frames, frame)
	}
	muted := p.muted
	p.mu.Unlock()

	for _, frame := range frames {
		if !muted || !p.cfg.SkipMeterWhileMuted {
			vol := audio.RMS(frame)
			p.mu.Lock()
			p.volume = vol
			p.mu.Unlock()
			if p.cfg.OnVolume != nil {
				p.cfg.OnVolume(vol)
			}
		}
		if muted {
			continue
		}
		if p.sink != nil {
			p.sink(audio.EncodeFrame(frame))
		}
	}
}

// SetMuted gates frame forwarding. Capture and metering continue.
func (p *Pipeline) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

// ToggleMute flips the mute gate and returns the new state.
func (p *Pipeline) ToggleMute() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = !p.muted
	return p.muted
}

// Muted reports whether forwarding is currently gated off.
func (p *Pipeline) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Volume returns the RMS amplitude of the most recent metered frame,
// in [0, ~1].
func (p *Pipeline) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Close stops the pipeline and releases the attached capture device.
// Close is idempotent; device teardown errors (including already-closed
// conditions) are logged as warnings and never escalated.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	source := p.source
	p.source = nil
	p.pending = nil
	p.mu.Unlock()

	if source != nil {
		if err := source.Close(); err != nil {
			p.logger.Warn("capture device close", "error", err)
		}
	}
	return nil
}
