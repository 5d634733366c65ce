package pulsedev

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/playback"
)

// Output is a 24 kHz mono playback stream whose read callback doubles as
// the scheduler's clock: time is the number of samples the stream has
// consumed, so scheduled start times land sample-accurately. Gaps in the
// timeline render as silence and the clock keeps advancing through them.
//
// Output satisfies both playback.Clock and playback.Sink.
type Output struct {
	client *pulse.Client
	stream *pulse.PlaybackStream

	mu       sync.Mutex
	consumed int64
	voices   map[uint64]*voice
	nextID   uint64
	closed   bool
}

// voice is one scheduled segment positioned on the sample timeline.
type voice struct {
	start   int64
	samples []float32
	done    func()
}

// OpenOutput connects to the Pulse server and starts the playback
// stream. The stream runs until Close, rendering silence when no
// segment covers the current position.
func OpenOutput() (*Output, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	out := &Output{client: client, voices: make(map[uint64]*voice)}
	stream, err := client.NewPlayback(
		pulse.Float32Reader(out.read),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(audio.OutputSampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("intervox interviewer"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse playback stream: %w", err)
	}
	out.stream = stream
	stream.Start()
	return out, nil
}

// Now returns the stream position in seconds.
func (o *Output) Now() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return float64(o.consumed) / audio.OutputSampleRate
}

// Play positions seg at startTime on the sample timeline. done fires
// from the stream's read goroutine once the last sample is consumed,
// and never after Stop.
func (o *Output) Play(seg audio.Segment, startTime float64, done func()) (playback.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, fmt.Errorf("playback output is closed")
	}

	start := int64(startTime * audio.OutputSampleRate)
	if start < o.consumed {
		start = o.consumed
	}
	id := o.nextID
	o.nextID++
	o.voices[id] = &voice{start: start, samples: seg.Samples, done: done}
	return &outputHandle{out: o, id: id}, nil
}

// read fills buf from the voices covering the current position, silence
// elsewhere, then advances the clock. Completion callbacks run after
// the lock is released.
func (o *Output) read(buf []float32) (int, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return 0, pulse.EndOfData
	}

	for i := range buf {
		buf[i] = 0
	}
	base := o.consumed
	end := base + int64(len(buf))

	var finished []func()
	for id, v := range o.voices {
		from := v.start
		if from < base {
			from = base
		}
		to := v.start + int64(len(v.samples))
		if to > end {
			to = end
		}
		for pos := from; pos < to; pos++ {
			buf[pos-base] += v.samples[pos-v.start]
		}
		if v.start+int64(len(v.samples)) <= end {
			if v.done != nil {
				finished = append(finished, v.done)
			}
			delete(o.voices, id)
		}
	}
	o.consumed = end
	o.mu.Unlock()

	for _, done := range finished {
		done()
	}
	return len(buf), nil
}

// Close stops the stream and disconnects. Idempotent. Pending voices
// are dropped without firing their completion callbacks.
func (o *Output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.voices = make(map[uint64]*voice)
	o.mu.Unlock()

	o.stream.Stop()
	o.stream.Close()
	o.client.Close()
	return nil
}

type outputHandle struct {
	out *Output
	id  uint64
}

// Stop removes the voice from the timeline. The completion callback
// does not fire.
func (h *outputHandle) Stop() {
	h.out.mu.Lock()
	delete(h.out.voices, h.id)
	h.out.mu.Unlock()
}
