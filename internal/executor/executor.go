// Package executor interprets one compiled flow for one session.
package executor

import (
	"errors"
	"fmt"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/telemetry"
)

var (
	// ErrTerminated is returned by every operation after the flow exited.
	ErrTerminated = errors.New("flow already terminated")

	// ErrUnknownOption means the caller submitted an option the current
	// stage does not have. The executor state is unchanged.
	ErrUnknownOption = errors.New("unknown option")

	// ErrUnknownStage means a transition named a stage absent from the
	// flow. It can only happen with a flow that did not pass compilation.
	ErrUnknownStage = errors.New("unknown stage")
)

// FaultError reports a fatal runtime fault. After a fault the executor
// rejects every further call with the same error.
type FaultError struct {
	StageID string
	Action  flow.Action
	Err     error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("runtime fault at stage %q applying %s: %v", e.StageID, e.Action, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// State is the executor's position in the flow.
type State struct {
	CurrentStageID string
	History        []string
}

// Result is the terminal outcome of a run.
type Result struct {
	IsCorrect  bool         `json:"isCorrect"`
	Path       []string     `json:"path"`
	FinalStage string       `json:"finalStage"`
	Outcome    flow.Outcome `json:"outcome"`
}

// Executor holds the runtime state of one compiled flow instance. It is
// owned by a single session and is not safe for concurrent use.
type Executor struct {
	flow   *flow.CompiledFlow
	sink   telemetry.Sink
	state  State
	result *Result
	fault  *FaultError
}

// New starts an executor at the flow's entry stage. A nil sink discards events.
func New(f *flow.CompiledFlow, sink telemetry.Sink) *Executor {
	if sink == nil {
		sink = discard{}
	}
	return &Executor{
		flow:  f,
		sink:  sink,
		state: State{CurrentStageID: f.EntryStageID, History: []string{}},
	}
}

// State returns a copy of the current state.
func (x *Executor) State() State {
	return State{
		CurrentStageID: x.state.CurrentStageID,
		History:        append([]string{}, x.state.History...),
	}
}

// CurrentStage returns the stage the learner is on.
func (x *Executor) CurrentStage() *flow.Stage {
	s, _ := x.flow.Stage(x.state.CurrentStageID)
	return s
}

// Done reports whether the flow reached an exit.
func (x *Executor) Done() bool { return x.result != nil }

// Result returns the terminal result, or nil while the flow is running.
func (x *Executor) Result() *Result { return x.result }

func (x *Executor) check() error {
	if x.fault != nil {
		return x.fault
	}
	if x.result != nil {
		return ErrTerminated
	}
	return nil
}

func (x *Executor) option(optionID string) (*flow.Stage, *flow.Option, error) {
	stage := x.CurrentStage()
	if stage == nil {
		return nil, nil, fmt.Errorf("current stage %q: %w", x.state.CurrentStageID, ErrUnknownStage)
	}
	opt, ok := stage.Option(optionID)
	if !ok {
		return stage, nil, fmt.Errorf("option %q on stage %q: %w", optionID, stage.ID, ErrUnknownOption)
	}
	return stage, opt, nil
}

// SelectOption records a provisional choice. Selection has no transition
// effect and can change any number of times before submit.
func (x *Executor) SelectOption(optionID string) error {
	if err := x.check(); err != nil {
		return err
	}
	stage, _, err := x.option(optionID)
	if err != nil {
		return err
	}
	x.sink.Log(telemetry.EventOptionSelect, telemetry.Payload{StageID: stage.ID, OptionID: optionID})
	return nil
}

// SubmitStage commits optionID on the current stage and returns the
// option's resolved transition for the caller to apply.
func (x *Executor) SubmitStage(optionID string) (flow.Action, error) {
	if err := x.check(); err != nil {
		return flow.Action{}, err
	}
	stage, opt, err := x.option(optionID)
	if err != nil {
		return flow.Action{}, err
	}
	next := flow.Loop()
	if opt.Next != nil {
		next = *opt.Next
	}
	correct := opt.Correct
	x.sink.Log(telemetry.EventSubmitStage, telemetry.Payload{
		StageID:  stage.ID,
		OptionID: opt.ID,
		Correct:  &correct,
		Action:   next.String(),
		Intent:   string(stage.Intent),
		Tag:      opt.DiagnosticTag,
	})
	return next, nil
}

// ApplyTransition moves the executor along action. It returns the terminal
// Result for exit actions and nil otherwise.
func (x *Executor) ApplyTransition(action flow.Action) (*Result, error) {
	if err := x.check(); err != nil {
		return nil, err
	}

	switch action.Kind() {
	case flow.KindLoop:
		x.sink.Log(telemetry.EventStageReset, telemetry.Payload{StageID: x.state.CurrentStageID})
		return nil, nil

	case flow.KindGoto, flow.KindBranch:
		target, ok := x.flow.Stage(action.Target())
		if !ok {
			x.fault = &FaultError{StageID: x.state.CurrentStageID, Action: action, Err: ErrUnknownStage}
			return nil, x.fault
		}
		x.state.History = append(x.state.History, x.state.CurrentStageID)
		x.state.CurrentStageID = target.ID
		x.sink.Log(telemetry.EventStageEnter, telemetry.Payload{StageID: target.ID, Intent: string(target.Intent)})
		return nil, nil

	case flow.KindExit:
		path := append(append([]string{}, x.state.History...), x.state.CurrentStageID)
		x.result = &Result{
			IsCorrect:  action.Outcome() == flow.OutcomePass,
			Path:       path,
			FinalStage: x.state.CurrentStageID,
			Outcome:    action.Outcome(),
		}
		x.sink.Log(telemetry.EventComplete, telemetry.Payload{
			StageID: x.state.CurrentStageID,
			Outcome: string(action.Outcome()),
		})
		return x.result, nil

	default:
		x.fault = &FaultError{StageID: x.state.CurrentStageID, Action: action, Err: fmt.Errorf("unresolved action")}
		return nil, x.fault
	}
}

type discard struct{}

func (discard) Log(telemetry.EventType, telemetry.Payload) {}
