package analytics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 0.001

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func at(ms int, typ telemetry.EventType, p telemetry.Payload) telemetry.Entry {
	return telemetry.Entry{Type: typ, Payload: p, Timestamp: t0.Add(time.Duration(ms) * time.Millisecond)}
}

func boolp(b bool) *bool { return &b }

func testQuestion() Question {
	return Question{
		ID:          "q1",
		TypeID:      "staged",
		TypeVersion: "v2.0.0",
		AtomID:      "atom-fractions",
		Flow:        &flow.CompiledFlow{ID: "q1", EntryStageID: "ST1"},
		Expected:    10 * time.Second,
	}
}

// recoveredRun is a session that fails ST1, visits REPAIR, then passes.
func recoveredRun() []telemetry.Entry {
	return []telemetry.Entry{
		at(0, telemetry.EventMount, telemetry.Payload{}),
		at(10, telemetry.EventView, telemetry.Payload{StageID: "ST1"}),
		at(1000, telemetry.EventOptionSelect, telemetry.Payload{StageID: "ST1", OptionID: "B"}),
		at(1500, telemetry.EventOptionSelect, telemetry.Payload{StageID: "ST1", OptionID: "A"}),
		at(1600, telemetry.EventBlur, telemetry.Payload{}),
		at(1700, telemetry.EventFocus, telemetry.Payload{}),
		at(2000, telemetry.EventSubmitStage, telemetry.Payload{StageID: "ST1", OptionID: "A", Correct: boolp(false), Tag: "misc-whole-number-bias"}),
		at(2001, telemetry.EventStageEnter, telemetry.Payload{StageID: "REPAIR", Intent: "REPAIR"}),
		at(5000, telemetry.EventOptionSelect, telemetry.Payload{StageID: "REPAIR", OptionID: "R1"}),
		at(6000, telemetry.EventSubmitStage, telemetry.Payload{StageID: "REPAIR", OptionID: "R1", Correct: boolp(true)}),
		at(6000, telemetry.EventComplete, telemetry.Payload{StageID: "REPAIR", Outcome: "pass"}),
	}
}

func TestSynthesize_RecoveredRun(t *testing.T) {
	sc := SessionContext{UserID: "u1", SessionID: "s1", AtomHistory: map[string]float64{"atom-fractions": 0.4}}
	rec, err := Synthesize(testQuestion(), recoveredRun(), sc)
	require.NoError(t, err)

	assert.Equal(t, RecordVersion, rec.RecordVersion)
	assert.Equal(t, "u1", rec.UserID)
	assert.True(t, rec.IsCorrect)
	assert.True(t, rec.IsRecovered)
	assert.Equal(t, []string{"ST1", "REPAIR"}, rec.Path)
	assert.Equal(t, "REPAIR", rec.FinalStage)
	assert.Equal(t, int64(6000), rec.TimeSpentMs)
	assert.Equal(t, SpeedFast, rec.SpeedRating)
	assert.Equal(t, 1, rec.AnswerChanges)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, 1, rec.RemediationVisits)
	assert.Equal(t, "misc-whole-number-bias", rec.DiagnosticTag)
	assert.Equal(t, 20, rec.DistractionScore)
	// 1 change + 2*1 remediation = 3
	assert.Equal(t, LoadMedium, rec.CognitiveLoad)
	assert.Equal(t, QualityValid, rec.DataQuality)
	assert.InDelta(t, 0.4, rec.MasteryBefore, epsilon)
	// 0.4 + 0.15*(1-0.4) = 0.49
	assert.InDelta(t, 0.49, rec.MasteryAfter, epsilon)
	assert.False(t, rec.Fallback)
}

func TestSynthesize_AnomalyAndRushed(t *testing.T) {
	logs := []telemetry.Entry{
		at(0, telemetry.EventMount, telemetry.Payload{}),
		at(40, telemetry.EventSubmitStage, telemetry.Payload{StageID: "ST1", OptionID: "B", Correct: boolp(true)}),
		at(50, telemetry.EventComplete, telemetry.Payload{StageID: "ST1", Outcome: "pass"}),
	}
	rec, err := Synthesize(testQuestion(), logs, SessionContext{})
	require.NoError(t, err)
	assert.Equal(t, QualityAnomaly, rec.DataQuality)
	assert.Equal(t, SpeedRushed, rec.SpeedRating)
	assert.False(t, rec.IsRecovered)
	assert.Equal(t, LoadLow, rec.CognitiveLoad)
	assert.InDelta(t, 0.65, rec.MasteryAfter, epsilon) // default 0.5 + 0.3*0.5
}

func TestSynthesize_TimeSpentFlooredAtZero(t *testing.T) {
	logs := []telemetry.Entry{
		at(500, telemetry.EventView, telemetry.Payload{}),
		at(100, telemetry.EventComplete, telemetry.Payload{Outcome: "fail"}),
	}
	rec, err := Synthesize(testQuestion(), logs, SessionContext{})
	require.NoError(t, err)
	assert.Zero(t, rec.TimeSpentMs)
	assert.False(t, rec.IsCorrect)
}

func TestSynthesize_DistractionCapped(t *testing.T) {
	logs := []telemetry.Entry{at(0, telemetry.EventMount, telemetry.Payload{})}
	for i := 0; i < 7; i++ {
		logs = append(logs, at(100*i+1, telemetry.EventBlur, telemetry.Payload{}))
	}
	logs = append(logs, at(30000, telemetry.EventComplete, telemetry.Payload{Outcome: "pass"}))

	rec, err := Synthesize(testQuestion(), logs, SessionContext{})
	require.NoError(t, err)
	assert.Equal(t, 100, rec.DistractionScore)
	assert.Equal(t, SpeedSlow, rec.SpeedRating)
	// overtime alone adds 2
	assert.Equal(t, LoadMedium, rec.CognitiveLoad)
}

func TestSynthesize_RequiresStartAndTerminal(t *testing.T) {
	_, err := Synthesize(testQuestion(), []telemetry.Entry{at(0, telemetry.EventComplete, telemetry.Payload{})}, SessionContext{})
	assert.ErrorIs(t, err, ErrNoStart)

	_, err = Synthesize(testQuestion(), []telemetry.Entry{at(0, telemetry.EventMount, telemetry.Payload{})}, SessionContext{})
	assert.ErrorIs(t, err, ErrNoTerminal)
}

func TestRateSpeed_Buckets(t *testing.T) {
	expected := 10 * time.Second
	tests := []struct {
		spent time.Duration
		want  SpeedRating
	}{
		{2 * time.Second, SpeedRushed},
		{3 * time.Second, SpeedFast},
		{7 * time.Second, SpeedSteady},
		{13 * time.Second, SpeedSteady},
		{13*time.Second + time.Millisecond, SpeedSlow},
	}
	for _, tt := range tests {
		if got := RateSpeed(tt.spent, expected); got != tt.want {
			t.Errorf("RateSpeed(%s) = %s, want %s", tt.spent, got, tt.want)
		}
	}
}

func TestUpdateMastery_Clamped(t *testing.T) {
	if got := UpdateMastery(1.0, true, 0, 0.3); math.Abs(got-1.0) > epsilon {
		t.Errorf("UpdateMastery at ceiling = %f, want 1.0", got)
	}
	if got := UpdateMastery(0.5, false, 0, 0.3); math.Abs(got-0.35) > epsilon {
		t.Errorf("UpdateMastery fail = %f, want 0.35", got)
	}
}

func TestSafe_FallbackOnError(t *testing.T) {
	failing := func(Question, []telemetry.Entry, SessionContext) (*Record, error) {
		return nil, errors.New("boom")
	}
	rec, err := Safe(failing, testQuestion(), nil, SessionContext{UserID: "u1"}, true)
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Fallback)
	assert.True(t, rec.IsCorrect)
	assert.Equal(t, "u1", rec.UserID)
	assert.Zero(t, rec.TimeSpentMs)
}

func TestSafe_FallbackOnPanic(t *testing.T) {
	panicking := func(Question, []telemetry.Entry, SessionContext) (*Record, error) {
		panic("index out of range")
	}
	rec, err := Safe(panicking, testQuestion(), nil, SessionContext{}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.True(t, rec.Fallback)
	assert.False(t, rec.IsCorrect)
}

func TestSafe_PassesThroughSuccess(t *testing.T) {
	rec, err := Safe(Synthesize, testQuestion(), recoveredRun(), SessionContext{}, true)
	require.NoError(t, err)
	assert.False(t, rec.Fallback)
	assert.Equal(t, 2, rec.Attempts)
}
