// Package analytics derives the standardized metrics record of a completed
// question session from its raw interaction log.
package analytics

import (
	"time"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/telemetry"
)

// RecordVersion is the version of the Record field set.
const RecordVersion = 1

// SpeedRating buckets time spent against the expected duration.
type SpeedRating string

const (
	SpeedRushed SpeedRating = "RUSHED"
	SpeedFast   SpeedRating = "FAST"
	SpeedSteady SpeedRating = "STEADY"
	SpeedSlow   SpeedRating = "SLOW"
)

// CognitiveLoad is a coarse estimate of effort.
type CognitiveLoad string

const (
	LoadLow    CognitiveLoad = "LOW"
	LoadMedium CognitiveLoad = "MEDIUM"
	LoadHigh   CognitiveLoad = "HIGH"
)

// DataQuality flags records that should not feed dashboards.
type DataQuality string

const (
	QualityValid   DataQuality = "VALID"
	QualityAnomaly DataQuality = "ANOMALY"
)

// Question is the static data analytics needs about the question.
type Question struct {
	ID          string
	TypeID      string
	TypeVersion string
	AtomID      string
	Flow        *flow.CompiledFlow

	// Expected is the author's expected duration. Zero uses Config.DefaultExpected.
	Expected time.Duration
}

// SessionContext is opaque to the compiler and runtime.
type SessionContext struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`

	// AtomHistory maps atom ids to the learner's prior mastery estimate (0.0–1.0).
	AtomHistory map[string]float64 `json:"atomHistory,omitempty"`
}

// Record is the flat analytics record produced once per completed session.
type Record struct {
	RecordVersion int `json:"recordVersion"`

	QuestionID  string `json:"questionId"`
	TypeID      string `json:"typeId"`
	TypeVersion string `json:"typeVersion"`
	UserID      string `json:"userId"`
	SessionID   string `json:"sessionId"`
	AtomID      string `json:"atomId,omitempty"`

	IsCorrect   bool     `json:"isCorrect"`
	IsRecovered bool     `json:"isRecovered"`
	Path        []string `json:"path,omitempty"`
	FinalStage  string   `json:"finalStage,omitempty"`

	TimeSpentMs int64       `json:"timeSpentMs"`
	ExpectedMs  int64       `json:"expectedMs"`
	SpeedRating SpeedRating `json:"speedRating,omitempty"`

	AnswerChanges     int    `json:"answerChanges"`
	Attempts          int    `json:"attempts"`
	RemediationVisits int    `json:"remediationVisits"`
	DiagnosticTag     string `json:"diagnosticTag,omitempty"`

	DistractionScore int           `json:"distractionScore"`
	CognitiveLoad    CognitiveLoad `json:"cognitiveLoad,omitempty"`

	MasteryBefore float64 `json:"masteryBefore"`
	MasteryAfter  float64 `json:"masteryAfter"`

	DataQuality DataQuality `json:"dataQuality,omitempty"`

	// Fallback is true when synthesis failed and only identifiers and
	// correctness are populated.
	Fallback bool `json:"fallback,omitempty"`
}

// Func computes a Record. Implementations must be pure.
type Func func(q Question, logs []telemetry.Entry, sc SessionContext) (*Record, error)
