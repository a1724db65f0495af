// Package session runs one question document end to end: validation,
// compilation, execution, interaction logging and analytics.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/document"
	"github.com/abhisek/quizflow/internal/executor"
	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/manifest"
	"github.com/abhisek/quizflow/internal/schema"
	"github.com/abhisek/quizflow/internal/telemetry"
)

var (
	// ErrUnknownType means no manifest is registered for the document's type.
	ErrUnknownType = errors.New("unknown question type")

	// ErrClosed is returned by every operation after Close or a fatal fault.
	ErrClosed = errors.New("session closed")
)

// Options configures a session.
type Options struct {
	// Version pins the question type version. Empty uses the document's
	// version field, then the latest registered version.
	Version string

	// Source feeds focus/blur events for the lifetime of the session.
	Source telemetry.FocusSource

	// Expected is used when the document declares no expectedSeconds.
	Expected time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Session owns the executor and interaction log of one learner attempt at
// one question. It is not safe for concurrent use.
type Session struct {
	ID string

	manifest *manifest.Manifest
	doc      *flow.Document
	flow     *flow.CompiledFlow
	exec     *executor.Executor
	log      *telemetry.Logger
	sc       analytics.SessionContext
	expected time.Duration
	issues   []schema.Issue
	logger   *slog.Logger

	// attempts counts incorrect submissions per stage over the whole
	// session, across loops and re-entry.
	attempts map[string]int

	release func()
	record  *analytics.Record
	closed  bool
}

// Start validates and builds raw with the manifest registered for its type,
// logs mount and view, and starts watching focus events.
func Start(ctx context.Context, reg *manifest.Registry, raw []byte, sc analytics.SessionContext, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h, err := document.ReadHeader(raw)
	if err != nil {
		return nil, err
	}
	version := opts.Version
	if version == "" {
		version = h.Version
	}
	m, ok := reg.Get(h.Type, version)
	if !ok {
		if version == "" {
			return nil, fmt.Errorf("%w %q", ErrUnknownType, h.Type)
		}
		return nil, fmt.Errorf("%w %q at version %s", ErrUnknownType, h.Type, version)
	}

	issues, err := m.Schema.Validate(raw)
	if err != nil {
		return nil, err
	}
	f, doc, err := m.Binding.Build(raw)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", h.ID, err)
	}

	if sc.SessionID == "" {
		sc.SessionID = uuid.NewString()
	}
	expected := opts.Expected
	if doc.ExpectedSeconds > 0 {
		expected = time.Duration(doc.ExpectedSeconds * float64(time.Second))
	}

	log := telemetry.NewLogger(opts.Now)
	s := &Session{
		ID:       sc.SessionID,
		manifest: m,
		doc:      doc,
		flow:     f,
		exec:     executor.New(f, log),
		log:      log,
		sc:       sc,
		expected: expected,
		issues:   issues,
		logger:   logger.With("session", sc.SessionID, "question", doc.ID),
		attempts: map[string]int{},
	}

	log.Log(telemetry.EventMount, telemetry.Payload{})
	log.Log(telemetry.EventView, telemetry.Payload{StageID: f.EntryStageID})
	s.release = log.Watch(ctx, opts.Source)

	s.logger.Debug("session started", "type", m.Key(), "entry", f.EntryStageID)
	return s, nil
}

// Manifest returns the question type the session runs under.
func (s *Session) Manifest() *manifest.Manifest { return s.manifest }

// Document returns the typed document.
func (s *Session) Document() *flow.Document { return s.doc }

// Flow returns the compiled flow.
func (s *Session) Flow() *flow.CompiledFlow { return s.flow }

// Issues returns the warnings produced by schema validation.
func (s *Session) Issues() []schema.Issue { return s.issues }

// Stage returns the current stage.
func (s *Session) Stage() *flow.Stage { return s.exec.CurrentStage() }

// State returns the executor position.
func (s *Session) State() executor.State { return s.exec.State() }

// Attempts returns the number of incorrect submissions made on stageID.
func (s *Session) Attempts(stageID string) int { return s.attempts[stageID] }

// Logs returns a copy of the interaction log.
func (s *Session) Logs() []telemetry.Entry { return s.log.All() }

// Done reports whether the flow reached an exit.
func (s *Session) Done() bool { return s.exec.Done() }

// Record returns the analytics record, or nil before completion.
func (s *Session) Record() *analytics.Record { return s.record }

func (s *Session) check() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Select records a provisional choice on the current stage.
func (s *Session) Select(optionID string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.exec.SelectOption(optionID)
}

// Submit commits optionID on the current stage and applies its transition.
//
// An attempts-exceeded edge is only followed once the stage has collected
// the option's MinAttempts incorrect submissions; before that the stage
// loops. The submit_stage event records the compiled edge either way.
func (s *Session) Submit(optionID string) (*Outcome, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	stage := s.exec.CurrentStage()
	next, err := s.exec.SubmitStage(optionID)
	if err != nil {
		return nil, err
	}
	opt, _ := stage.Option(optionID)

	if !opt.Correct {
		s.attempts[stage.ID]++
	}
	if next.Moves() && opt.MinAttempts > 0 && s.attempts[stage.ID] < opt.MinAttempts {
		next = flow.Loop()
	}

	res, err := s.exec.ApplyTransition(next)
	if err != nil {
		var fault *executor.FaultError
		if errors.As(err, &fault) {
			s.logger.Error("runtime fault", "stage", fault.StageID, "action", fault.Action.String(), "err", fault.Err)
			s.Close()
		}
		return nil, err
	}

	out := &Outcome{
		Action:    next,
		StageID:   s.exec.State().CurrentStageID,
		Correct:   opt.Correct,
		Feedback:  opt.Feedback,
		Attempts:  s.attempts[stage.ID],
		Remaining: remaining(opt, s.attempts[stage.ID]),
	}
	if res != nil {
		out.Done = true
		out.Result = res
		out.Record = s.finish(res)
	}
	return out, nil
}

// Respond resolves a raw learner response with the question type's binding,
// then selects and submits the resolved option.
func (s *Session) Respond(response string) (*Outcome, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.exec.Done() {
		return nil, executor.ErrTerminated
	}
	optionID, err := s.manifest.Binding.Resolve(s.exec.CurrentStage(), response)
	if err != nil {
		return nil, err
	}
	if err := s.Select(optionID); err != nil {
		return nil, err
	}
	return s.Submit(optionID)
}

// finish runs analytics exactly once. The learner's result always survives:
// a failing analytics function yields a fallback record.
func (s *Session) finish(res *executor.Result) *analytics.Record {
	s.release()

	q := analytics.Question{
		ID:          s.doc.ID,
		TypeID:      s.manifest.ID,
		TypeVersion: s.manifest.Version,
		AtomID:      s.doc.AtomID,
		Flow:        s.flow,
		Expected:    s.expected,
	}
	rec, err := analytics.Safe(s.manifest.Analytics, q, s.log.All(), s.sc, res.IsCorrect)
	if err != nil {
		s.logger.Warn("analytics failed, using fallback record", "err", err)
	}
	s.record = rec

	s.logger.Debug("session completed", "outcome", res.Outcome, "path", res.Path)
	return rec
}

// Close releases the focus watcher. It is safe to call more than once and
// after completion.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.release()
	if !s.exec.Done() {
		s.logger.Debug("session abandoned", "stage", s.exec.State().CurrentStageID)
	}
}

func remaining(opt *flow.Option, attempts int) int {
	if opt.MinAttempts == 0 || attempts >= opt.MinAttempts {
		return 0
	}
	return opt.MinAttempts - attempts
}
