package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/telemetry"
)

var (
	// ErrNoStart means the log has no mount or view event.
	ErrNoStart = errors.New("log has no mount or view event")

	// ErrNoTerminal means the log has no complete event.
	ErrNoTerminal = errors.New("log has no terminal event")
)

// Synthesize computes a Record with DefaultConfig.
func Synthesize(q Question, logs []telemetry.Entry, sc SessionContext) (*Record, error) {
	return NewSynthesizer(DefaultConfig())(q, logs, sc)
}

// NewSynthesizer returns the shared Func used by the built-in question types.
func NewSynthesizer(cfg Config) Func {
	return func(q Question, logs []telemetry.Entry, sc SessionContext) (*Record, error) {
		return synthesize(cfg, q, logs, sc)
	}
}

func synthesize(cfg Config, q Question, logs []telemetry.Entry, sc SessionContext) (*Record, error) {
	start, ok := firstStart(logs)
	if !ok {
		return nil, ErrNoStart
	}
	terminal, ok := lastOf(logs, telemetry.EventComplete)
	if !ok {
		return nil, ErrNoTerminal
	}

	rec := &Record{
		RecordVersion: RecordVersion,
		QuestionID:    q.ID,
		TypeID:        q.TypeID,
		TypeVersion:   q.TypeVersion,
		UserID:        sc.UserID,
		SessionID:     sc.SessionID,
		AtomID:        q.AtomID,
		IsCorrect:     terminal.Payload.Outcome == string(flow.OutcomePass),
		FinalStage:    terminal.Payload.StageID,
	}

	if q.Flow != nil {
		rec.Path = append(rec.Path, q.Flow.EntryStageID)
	}
	selected := map[string]string{}
	blurs := 0
	for _, e := range logs {
		switch e.Type {
		case telemetry.EventStageEnter:
			rec.Path = append(rec.Path, e.Payload.StageID)
			if e.Payload.Intent == string(flow.IntentRepair) {
				rec.RemediationVisits++
			}
		case telemetry.EventOptionSelect:
			prev, seen := selected[e.Payload.StageID]
			if seen && prev != e.Payload.OptionID {
				rec.AnswerChanges++
			}
			selected[e.Payload.StageID] = e.Payload.OptionID
		case telemetry.EventSubmitStage:
			rec.Attempts++
			delete(selected, e.Payload.StageID)
			if e.Payload.Correct != nil && !*e.Payload.Correct && e.Payload.Tag != "" {
				rec.DiagnosticTag = e.Payload.Tag
			}
		case telemetry.EventBlur:
			blurs++
		}
	}

	spent := terminal.Timestamp.Sub(start)
	if spent < 0 {
		spent = 0
	}
	expected := q.Expected
	if expected <= 0 {
		expected = cfg.DefaultExpected
	}
	if expected <= 0 {
		return nil, fmt.Errorf("question %q: expected duration must be positive", q.ID)
	}

	rec.TimeSpentMs = spent.Milliseconds()
	rec.ExpectedMs = expected.Milliseconds()
	rec.SpeedRating = RateSpeed(spent, expected)
	rec.DistractionScore = min(cfg.MaxDistraction, cfg.BlurPenalty*blurs)
	rec.CognitiveLoad = estimateLoad(cfg, rec, spent, expected)
	rec.IsRecovered = rec.RemediationVisits > 0 && rec.IsCorrect

	rec.DataQuality = QualityValid
	if spent < cfg.AnomalyThreshold {
		rec.DataQuality = QualityAnomaly
	}

	rec.MasteryBefore = priorMastery(cfg, q.AtomID, sc)
	rec.MasteryAfter = UpdateMastery(rec.MasteryBefore, rec.IsCorrect, rec.RemediationVisits, cfg.MasteryRate)

	return rec, nil
}

// RateSpeed buckets spent against expected.
func RateSpeed(spent, expected time.Duration) SpeedRating {
	ratio := float64(spent) / float64(expected)
	switch {
	case ratio < 0.3:
		return SpeedRushed
	case ratio < 0.7:
		return SpeedFast
	case ratio <= 1.3:
		return SpeedSteady
	default:
		return SpeedSlow
	}
}

func estimateLoad(cfg Config, rec *Record, spent, expected time.Duration) CognitiveLoad {
	score := rec.AnswerChanges + 2*rec.RemediationVisits
	if float64(spent) > cfg.OvertimeFactor*float64(expected) {
		score += 2
	}
	switch {
	case score < 2:
		return LoadLow
	case score < 4:
		return LoadMedium
	default:
		return LoadHigh
	}
}

func firstStart(logs []telemetry.Entry) (time.Time, bool) {
	for _, e := range logs {
		if e.Type == telemetry.EventMount || e.Type == telemetry.EventView {
			return e.Timestamp, true
		}
	}
	return time.Time{}, false
}

func lastOf(logs []telemetry.Entry, t telemetry.EventType) (telemetry.Entry, bool) {
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].Type == t {
			return logs[i], true
		}
	}
	return telemetry.Entry{}, false
}
