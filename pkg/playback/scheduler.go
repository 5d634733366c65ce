// Package playback schedules decoded model speech for gapless, strictly
// ordered playback against a single output clock, with immediate full-stop
// on barge-in.
package playback

import (
	"log/slog"
	"sync"

	"github.com/intervox-ai/intervox/pkg/audio"
)

// Clock reports the current position of the output timeline in seconds.
// The clock only advances; it never runs backwards.
type Clock interface {
	Now() float64
}

// Handle is one in-flight scheduled playback.
type Handle interface {
	// Stop halts playback immediately. Stopping an already finished
	// playback is a no-op.
	Stop()
}

// Sink turns a scheduled segment into audible output.
//
// done is invoked exactly once when the segment finishes playing
// naturally; it must not be called synchronously from within Play, and it
// must not be called after Stop.
type Sink interface {
	Play(seg audio.Segment, startTime float64, done func()) (Handle, error)
}

// Scheduler owns the queue of decoded segments. Each new segment starts at
// max(nextStart, clock now), so delivery faster than real time plays back
// gapless while late delivery catches up without overlap. Flush stops
// everything and resets the timeline origin.
type Scheduler struct {
	clock  Clock
	sink   Sink
	logger *slog.Logger

	mu        sync.Mutex
	nextStart float64
	active    map[uint64]Handle
	nextID    uint64
}

// NewScheduler creates a scheduler bound to one clock and sink.
func NewScheduler(clock Clock, sink Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:  clock,
		sink:   sink,
		logger: logger,
		active: make(map[uint64]Handle),
	}
}

// Play decodes one inbound audio chunk and schedules it. A malformed or
// empty chunk is skipped without disturbing the timeline, so the caller
// can continue processing the rest of the server message.
func (s *Scheduler) Play(chunk []byte) error {
	seg := audio.DecodeSegment(chunk)
	if len(seg.Samples) == 0 {
		return nil
	}
	return s.Enqueue(seg)
}

// Enqueue schedules one decoded segment for playback.
func (s *Scheduler) Enqueue(seg audio.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.nextStart
	if now := s.clock.Now(); now > start {
		start = now
	}

	id := s.nextID
	s.nextID++

	handle, err := s.sink.Play(seg, start, func() { s.remove(id) })
	if err != nil {
		// The chunk is dropped; nextStart is left untouched so the
		// following segment does not inherit a phantom gap.
		return err
	}

	s.nextStart = start + seg.Duration.Seconds()
	s.active[id] = handle
	return nil
}

// Flush stops every active playback, clears the active set, and resets the
// scheduling origin to zero. The next segment starts at max(0, clock now).
// Flushing an idle scheduler is a no-op.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := len(s.active)
	for id, handle := range s.active {
		handle.Stop()
		delete(s.active, id)
	}
	s.nextStart = 0
	if stopped > 0 {
		s.logger.Debug("playback flushed", "stopped", stopped)
	}
}

// Active reports how many scheduled playbacks have not yet completed.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStart returns the timeline position, in seconds, where the next
// segment would begin if it arrived with the clock unchanged.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// remove drops a completed playback from the active set. Completion is
// just cleanup: it never changes scheduling state, and a callback that
// races a Flush finds its entry already gone.
func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
}
