package flow

import (
	"encoding/json"
	"fmt"
)

// ActionKind discriminates the Action variants.
type ActionKind string

const (
	KindGoto   ActionKind = "goto"
	KindBranch ActionKind = "branch"
	KindLoop   ActionKind = "loop"
	KindExit   ActionKind = "exit"
)

// Outcome is the terminal result carried by an exit action.
type Outcome string

const (
	OutcomePass Outcome = "pass"
	OutcomeFail Outcome = "fail"
)

// Action is the transition taken after an option is submitted.
//
// Fields are unexported so only the constructors below can build one;
// the zero Action means "unresolved" and never survives compilation.
type Action struct {
	kind    ActionKind
	target  string
	outcome Outcome
}

// Goto moves to an explicit named stage.
func Goto(target string) Action { return Action{kind: KindGoto, target: target} }

// Branch behaves like Goto but records authoring intent.
func Branch(target string) Action { return Action{kind: KindBranch, target: target} }

// Loop keeps the learner on the current stage.
func Loop() Action { return Action{kind: KindLoop} }

// Exit terminates the flow with the given outcome.
func Exit(o Outcome) Action { return Action{kind: KindExit, outcome: o} }

// Kind returns the variant tag, or "" for the zero Action.
func (a Action) Kind() ActionKind { return a.kind }

// Target returns the destination stage for goto and branch actions.
func (a Action) Target() string { return a.target }

// Outcome returns the exit outcome for exit actions.
func (a Action) Outcome() Outcome { return a.outcome }

// IsZero reports whether the action is unresolved.
func (a Action) IsZero() bool { return a.kind == "" }

// Moves reports whether the action changes the current stage.
func (a Action) Moves() bool { return a.kind == KindGoto || a.kind == KindBranch }

// IsExit reports whether the action is terminal.
func (a Action) IsExit() bool { return a.kind == KindExit }

func (a Action) String() string {
	switch a.kind {
	case KindGoto, KindBranch:
		return fmt.Sprintf("%s(%s)", a.kind, a.target)
	case KindExit:
		return fmt.Sprintf("exit(%s)", a.outcome)
	case KindLoop:
		return "loop"
	default:
		return "unresolved"
	}
}

type actionJSON struct {
	Kind    ActionKind `json:"kind"`
	Target  string     `json:"target,omitempty"`
	Outcome Outcome    `json:"outcome,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(actionJSON{Kind: a.kind, Target: a.target, Outcome: a.outcome})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Action{}
		return nil
	}
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseAction(raw.Kind, raw.Target, raw.Outcome)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction builds an Action from its wire fields, rejecting combinations
// that no constructor could produce.
func ParseAction(kind ActionKind, target string, outcome Outcome) (Action, error) {
	switch kind {
	case KindGoto, KindBranch:
		if target == "" {
			return Action{}, fmt.Errorf("%s action requires a target", kind)
		}
		if outcome != "" {
			return Action{}, fmt.Errorf("%s action cannot carry an outcome", kind)
		}
		return Action{kind: kind, target: target}, nil
	case KindLoop:
		if target != "" || outcome != "" {
			return Action{}, fmt.Errorf("loop action takes no target or outcome")
		}
		return Loop(), nil
	case KindExit:
		if outcome != OutcomePass && outcome != OutcomeFail {
			return Action{}, fmt.Errorf("exit action requires outcome pass or fail, got %q", outcome)
		}
		if target != "" {
			return Action{}, fmt.Errorf("exit action cannot carry a target")
		}
		return Exit(outcome), nil
	default:
		return Action{}, fmt.Errorf("unknown action kind %q", kind)
	}
}
