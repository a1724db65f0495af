package session

import (
	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/executor"
	"github.com/abhisek/quizflow/internal/flow"
)

// Outcome reports what one submission did.
type Outcome struct {
	// Action is the transition that was applied, after the attempts gate.
	Action flow.Action `json:"action"`

	// StageID is the stage the learner is on after the transition.
	StageID string `json:"stageId"`

	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback,omitempty"`

	// Attempts is the incorrect-submission count of the submitted stage.
	Attempts int `json:"attempts"`

	// Remaining is how many more incorrect submissions the submitted stage
	// needs before its attempts-exceeded edge opens. Zero when no gate applies.
	Remaining int `json:"remaining,omitempty"`

	Done   bool              `json:"done"`
	Result *executor.Result  `json:"result,omitempty"`
	Record *analytics.Record `json:"record,omitempty"`
}
