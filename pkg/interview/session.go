package interview

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/intervox-ai/intervox/pkg/capture"
	"github.com/intervox-ai/intervox/pkg/live"
	"github.com/intervox-ai/intervox/pkg/transcript"
)

// Phase is the coarse lifecycle of one interview.
type Phase int

const (
	// PhaseSetup is the initial state: collecting job description and CV.
	PhaseSetup Phase = iota
	// PhaseAnalyzing runs the profile analysis call.
	PhaseAnalyzing
	// PhaseLive is the streaming interview itself.
	PhaseLive
	// PhaseReporting runs the report generation call.
	PhaseReporting
	// PhaseReport holds the finished evaluation.
	PhaseReport
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseLive:
		return "live"
	case PhaseReporting:
		return "reporting"
	case PhaseReport:
		return "report"
	default:
		return "unknown"
	}
}

// Analyzer is the structured-JSON side of the AI service. *Service
// satisfies it; tests substitute a fake.
type Analyzer interface {
	AnalyzeProfile(ctx context.Context, data InterviewData) (*AnalysisResult, error)
	GenerateReport(ctx context.Context, history []transcript.Item, data InterviewData) (*ReportData, error)
}

// SourceOpener opens the microphone and begins delivering float sample
// buffers to push. The returned closer stops the device. Opening is the
// point where a permission failure surfaces.
type SourceOpener func(push func(samples []float32)) (io.Closer, error)

// Config wires a Session's collaborators. Analyzer, Transport, Player,
// and OpenSource are required; the rest have defaults.
type Config struct {
	Analyzer   Analyzer
	Transport  live.Transport
	Player     live.Player
	OpenSource SourceOpener

	LiveModel string
	Voice     string

	Logger       *slog.Logger
	OnPhase      func(Phase)
	OnVolume     func(float64)
	OnState      func(live.ConnectionState)
	OnTranscript func(committed []transcript.Item)
}

// notifyingTranscriber surfaces committed turns to an observer while
// delegating the assembly itself.
type notifyingTranscriber struct {
	*transcript.Assembler
	onCommit func([]transcript.Item)
}

func (n notifyingTranscriber) CommitTurn() []transcript.Item {
	items := n.Assembler.CommitTurn()
	if len(items) > 0 && n.onCommit != nil {
		n.onCommit(items)
	}
	return items
}

// Session owns one interview end to end. It composes the capture
// pipeline, the playback path, and the session controller, and is the
// single place where their teardowns are stitched together.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	phase      Phase
	data       InterviewData
	analysis   *AnalysisResult
	report     *ReportData
	assembler  *transcript.Assembler
	pipeline   *capture.Pipeline
	controller *live.Controller
}

// NewSession creates an idle session in the setup phase.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{cfg: cfg, logger: logger, phase: PhaseSetup}
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Analysis returns the profile analysis for the current interview, or
// nil before one has run.
func (s *Session) Analysis() *AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

// Report returns the generated evaluation, or nil before one exists.
func (s *Session) Report() *ReportData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Transcript returns the committed history so far.
func (s *Session) Transcript() []transcript.Item {
	s.mu.Lock()
	asm := s.assembler
	s.mu.Unlock()
	if asm == nil {
		return nil
	}
	return asm.History()
}

// Start runs profile analysis and, on success, opens the live session
// and the microphone. On any failure the session returns to setup with
// no resources held.
func (s *Session) Start(ctx context.Context, data InterviewData) error {
	s.mu.Lock()
	if s.phase != PhaseSetup {
		s.mu.Unlock()
		return NewStateError("interview already in progress")
	}
	s.data = data
	s.phase = PhaseAnalyzing
	s.mu.Unlock()
	s.emitPhase(PhaseAnalyzing)

	analysis, err := s.cfg.Analyzer.AnalyzeProfile(ctx, data)
	if err != nil {
		s.logger.Error("profile analysis failed", "error", err)
		s.setPhase(PhaseSetup)
		return err
	}

	assembler := transcript.NewAssembler()
	controller := live.NewController(s.cfg.Transport, s.cfg.Player,
		notifyingTranscriber{Assembler: assembler, onCommit: s.cfg.OnTranscript},
		live.WithLogger(s.logger),
		live.WithStateFunc(s.cfg.OnState))
	pipeline := capture.NewPipeline(controller.Send, capture.Config{
		OnVolume: s.cfg.OnVolume,
		Logger:   s.logger,
	})

	sessionCfg := live.SessionConfig{
		Model:             s.cfg.LiveModel,
		SystemInstruction: liveInstruction(analysis),
		Voice:             s.cfg.Voice,
	}
	if err := controller.Connect(ctx, sessionCfg); err != nil {
		s.logger.Error("live connect failed", "error", err)
		s.setPhase(PhaseSetup)
		return NewTransportError("could not open live session", err)
	}

	source, err := s.cfg.OpenSource(pipeline.Push)
	if err != nil {
		controller.Disconnect()
		s.setPhase(PhaseSetup)
		return NewPermissionError("microphone unavailable", err)
	}
	pipeline.Attach(source)

	s.mu.Lock()
	s.analysis = analysis
	s.assembler = assembler
	s.controller = controller
	s.pipeline = pipeline
	s.phase = PhaseLive
	s.mu.Unlock()
	s.emitPhase(PhaseLive)

	s.logger.Info("interview started",
		"focus_topics", len(analysis.InterviewFocus),
		"voice", s.cfg.Voice)
	return nil
}

// ToggleMute flips the microphone gate and returns the new muted state.
// Metering continues while muted.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	pipeline := s.pipeline
	s.mu.Unlock()
	if pipeline == nil {
		return false
	}
	return pipeline.ToggleMute()
}

// Muted reports the microphone gate state.
func (s *Session) Muted() bool {
	s.mu.Lock()
	pipeline := s.pipeline
	s.mu.Unlock()
	if pipeline == nil {
		return false
	}
	return pipeline.Muted()
}

// Volume returns the most recent input level regardless of mute.
func (s *Session) Volume() float64 {
	s.mu.Lock()
	pipeline := s.pipeline
	s.mu.Unlock()
	if pipeline == nil {
		return 0
	}
	return pipeline.Volume()
}

// EndInterview stops the audio path and generates the evaluation from
// the committed transcript. On an upstream failure the session returns
// to setup with the transcript retained, so the report may be retried
// via a fresh Start or the transcript exported by the caller.
func (s *Session) EndInterview(ctx context.Context) (*ReportData, error) {
	s.mu.Lock()
	if s.phase != PhaseLive {
		s.mu.Unlock()
		return nil, NewStateError("no live interview to end")
	}
	s.stopLiveLocked()
	history := s.assembler.History()
	data := s.data
	s.phase = PhaseReporting
	s.mu.Unlock()
	s.emitPhase(PhaseReporting)

	report, err := s.cfg.Analyzer.GenerateReport(ctx, history, data)
	if err != nil {
		s.logger.Error("report generation failed", "error", err)
		s.setPhase(PhaseSetup)
		return nil, err
	}

	s.mu.Lock()
	s.report = report
	s.phase = PhaseReport
	s.mu.Unlock()
	s.emitPhase(PhaseReport)
	return report, nil
}

// Restart discards all interview state and returns to setup. Safe in
// any phase.
func (s *Session) Restart() {
	s.mu.Lock()
	s.stopLiveLocked()
	s.analysis = nil
	s.report = nil
	s.assembler = nil
	s.data = InterviewData{}
	s.phase = PhaseSetup
	s.mu.Unlock()
	s.emitPhase(PhaseSetup)
}

// Close releases the microphone and the live session. Idempotent; the
// phase is left untouched so a report already on screen stays visible.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLiveLocked()
}

// stopLiveLocked tears down the audio path. The capture pipeline goes
// first so no frames race into a closing session.
func (s *Session) stopLiveLocked() {
	if s.pipeline != nil {
		if err := s.pipeline.Close(); err != nil {
			s.logger.Warn("capture close failed", "error", err)
		}
		s.pipeline = nil
	}
	if s.controller != nil {
		if err := s.controller.Disconnect(); err != nil {
			s.logger.Warn("live disconnect failed", "error", err)
		}
		s.controller = nil
	}
}

// setPhase updates the phase and notifies the observer. The callback
// runs outside the lock so it may call back into the session.
func (s *Session) setPhase(phase Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
	s.emitPhase(phase)
}

func (s *Session) emitPhase(phase Phase) {
	if s.cfg.OnPhase != nil {
		s.cfg.OnPhase(phase)
	}
}

// liveInstruction folds the generated greeting into the persona so the
// interviewer opens the call with it.
func liveInstruction(analysis *AnalysisResult) string {
	instruction := analysis.SystemInstruction
	if analysis.InitialGreeting != "" {
		instruction += "\n\nOpen the interview with this exact greeting: " + analysis.InitialGreeting
	}
	return instruction
}
