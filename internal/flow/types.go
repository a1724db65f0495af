package flow

import "encoding/json"

// Intent classifies what a stage is for. It is advisory: the compiler never
// routes on it, but analytics uses REPAIR to detect recovery.
type Intent string

const (
	IntentInitial  Intent = "INITIAL"
	IntentRepair   Intent = "REPAIR"
	IntentTransfer Intent = "TRANSFER"
)

// InteractionKind is the closed set of ways a learner answers a stage.
type InteractionKind string

const (
	// InteractionSingleChoice means the learner picks one option.
	InteractionSingleChoice InteractionKind = "single_choice"

	// InteractionNumeric means the learner types a number that the question
	// type's binding resolves onto the stage's correct/incorrect options.
	InteractionNumeric InteractionKind = "numeric"
)

// ShowWhen selects the condition under which a dependent stage is shown.
type ShowWhen string

const (
	ShowAlways                     ShowWhen = "always"
	ShowAfterStageCorrect          ShowWhen = "afterStageCorrect"
	ShowAfterStageAttemptsExceeded ShowWhen = "afterStageAttemptsExceeded"
)

// Document is a declarative multi-stage question as authored.
type Document struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Version         string  `json:"version,omitempty"`
	Title           string  `json:"title,omitempty"`
	AtomID          string  `json:"atomId,omitempty"`
	ExpectedSeconds float64 `json:"expectedSeconds,omitempty"`
	Stages          []Stage `json:"stages"`
}

// Stage is one screen of a multi-step question.
type Stage struct {
	ID          string      `json:"stageId"`
	Intent      Intent      `json:"intent,omitempty"`
	Prompt      string      `json:"prompt,omitempty"`
	Instruction string      `json:"instruction,omitempty"`
	Interaction Interaction `json:"interaction"`
	AnswerKey   *AnswerKey  `json:"answerKey,omitempty"`
	Options     []Option    `json:"options,omitempty"`

	// Unlock is consumed by the compiler and is always nil on compiled stages.
	Unlock *UnlockRule `json:"unlock,omitempty"`
}

// Interaction describes how the stage is answered.
type Interaction struct {
	Type   InteractionKind `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// AnswerKey is the stage's reference answer.
type AnswerKey struct {
	OptionID  string   `json:"optionId,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Tolerance float64  `json:"tolerance,omitempty"`
	KeyPoints []string `json:"keyPoints,omitempty"`
}

// Option is one selectable answer of a choice stage.
type Option struct {
	ID            string  `json:"id"`
	Text          string  `json:"text,omitempty"`
	Correct       bool    `json:"correct,omitempty"`
	Feedback      string  `json:"feedback,omitempty"`
	DiagnosticTag string  `json:"diagnosticTag,omitempty"`
	Next          *Action `json:"next,omitempty"`

	// MinAttempts is set by the compiler on attempts-exceeded edges. The
	// caller must have counted at least this many incorrect submissions on
	// the stage before following Next; below the threshold it loops.
	MinAttempts int `json:"minAttempts,omitempty"`
}

// UnlockRule states when a stage becomes visible.
type UnlockRule struct {
	ShowWhen         ShowWhen `json:"showWhen"`
	DependsOnStageID string   `json:"dependsOnStageId,omitempty"`

	// Attempts is the incorrect-submission threshold for
	// afterStageAttemptsExceeded. Zero means 1.
	Attempts int `json:"attempts,omitempty"`
}

// CompiledFlow is an explicit state machine ready for execution.
type CompiledFlow struct {
	ID           string       `json:"id"`
	EntryStageID string       `json:"entryStageId"`
	Stages       []Stage      `json:"stages"`
	Warnings     []Diagnostic `json:"warnings,omitempty"`
}

// Stage returns the stage with the given id.
func (f *CompiledFlow) Stage(id string) (*Stage, bool) {
	for i := range f.Stages {
		if f.Stages[i].ID == id {
			return &f.Stages[i], true
		}
	}
	return nil, false
}

// Option returns the option with the given id.
func (s *Stage) Option(id string) (*Option, bool) {
	for i := range s.Options {
		if s.Options[i].ID == id {
			return &s.Options[i], true
		}
	}
	return nil, false
}

// CorrectOption returns the first option flagged correct.
func (s *Stage) CorrectOption() (*Option, bool) {
	for i := range s.Options {
		if s.Options[i].Correct {
			return &s.Options[i], true
		}
	}
	return nil, false
}

// clone returns a deep copy so compilation never aliases caller memory.
func (s Stage) clone() Stage {
	out := s
	if s.Interaction.Config != nil {
		out.Interaction.Config = append(json.RawMessage(nil), s.Interaction.Config...)
	}
	if s.AnswerKey != nil {
		ak := *s.AnswerKey
		if ak.Value != nil {
			v := *ak.Value
			ak.Value = &v
		}
		ak.KeyPoints = append([]string(nil), ak.KeyPoints...)
		out.AnswerKey = &ak
	}
	if s.Unlock != nil {
		u := *s.Unlock
		out.Unlock = &u
	}
	if s.Options != nil {
		out.Options = make([]Option, len(s.Options))
		for i, o := range s.Options {
			if o.Next != nil {
				n := *o.Next
				o.Next = &n
			}
			out.Options[i] = o
		}
	}
	return out
}
