package executor

import (
	"errors"
	"testing"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compiledTwoStage(t *testing.T) *flow.CompiledFlow {
	t.Helper()
	doc := &flow.Document{
		ID: "q1",
		Stages: []flow.Stage{
			{
				ID:          "ST1",
				Interaction: flow.Interaction{Type: flow.InteractionSingleChoice},
				Options: []flow.Option{
					{ID: "A", DiagnosticTag: "misc-1"},
					{ID: "B", Correct: true},
				},
			},
			{
				ID:          "REPAIR",
				Intent:      flow.IntentRepair,
				Interaction: flow.Interaction{Type: flow.InteractionSingleChoice},
				Unlock:      &flow.UnlockRule{ShowWhen: flow.ShowAfterStageAttemptsExceeded, DependsOnStageID: "ST1"},
				Options: []flow.Option{
					{ID: "R1", Correct: true},
					{ID: "R2"},
				},
			},
		},
	}
	f, err := flow.Compile(doc)
	require.NoError(t, err)
	return f
}

func TestExecutor_SubmitCorrectExits(t *testing.T) {
	log := telemetry.NewLogger(nil)
	x := New(compiledTwoStage(t), log)

	action, err := x.SubmitStage("B")
	require.NoError(t, err)
	assert.Equal(t, flow.Exit(flow.OutcomePass), action)

	res, err := x.ApplyTransition(action)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, []string{"ST1"}, res.Path)
	assert.Equal(t, "ST1", res.FinalStage)
	assert.True(t, x.Done())

	_, err = x.SubmitStage("B")
	assert.ErrorIs(t, err, ErrTerminated)
	assert.ErrorIs(t, x.SelectOption("A"), ErrTerminated)
	assert.Equal(t, "ST1", x.State().CurrentStageID)

	entries := log.All()
	assert.Equal(t, telemetry.EventComplete, entries[len(entries)-1].Type)
}

func TestExecutor_GotoPushesHistory(t *testing.T) {
	x := New(compiledTwoStage(t), nil)

	action, err := x.SubmitStage("A")
	require.NoError(t, err)
	assert.Equal(t, flow.Goto("REPAIR"), action)

	res, err := x.ApplyTransition(action)
	require.NoError(t, err)
	assert.Nil(t, res)

	st := x.State()
	assert.Equal(t, "REPAIR", st.CurrentStageID)
	assert.Equal(t, []string{"ST1"}, st.History)

	action, err = x.SubmitStage("R1")
	require.NoError(t, err)
	res, err = x.ApplyTransition(action)
	require.NoError(t, err)
	assert.Equal(t, []string{"ST1", "REPAIR"}, res.Path)
	assert.Equal(t, "REPAIR", res.FinalStage)
}

func TestExecutor_BranchMovesLikeGoto(t *testing.T) {
	branch := flow.Branch("SIDE")
	f, err := flow.Compile(&flow.Document{
		ID: "q2",
		Stages: []flow.Stage{
			{
				ID:          "ST1",
				Interaction: flow.Interaction{Type: flow.InteractionSingleChoice},
				Options:     []flow.Option{{ID: "A", Next: &branch}, {ID: "B", Correct: true}},
			},
			{
				ID:          "SIDE",
				Interaction: flow.Interaction{Type: flow.InteractionSingleChoice},
				Unlock:      &flow.UnlockRule{ShowWhen: flow.ShowAfterStageCorrect, DependsOnStageID: "ST1"},
				Options:     []flow.Option{{ID: "S", Correct: true}},
			},
		},
	})
	require.NoError(t, err)
	log := telemetry.NewLogger(nil)
	x := New(f, log)

	action, err := x.SubmitStage("A")
	require.NoError(t, err)
	assert.Equal(t, flow.Branch("SIDE"), action)

	res, err := x.ApplyTransition(action)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "SIDE", x.State().CurrentStageID)
	assert.Equal(t, []string{"ST1"}, x.State().History)

	res, err = x.ApplyTransition(flow.Branch("GHOST"))
	var fault *FaultError
	require.True(t, errors.As(err, &fault))
	assert.Nil(t, res)
}

func TestExecutor_LoopIsIdempotent(t *testing.T) {
	x := New(compiledTwoStage(t), nil)
	_, err := x.ApplyTransition(flow.Goto("REPAIR"))
	require.NoError(t, err)
	before := x.State()

	for i := 0; i < 3; i++ {
		res, err := x.ApplyTransition(flow.Loop())
		require.NoError(t, err)
		assert.Nil(t, res)
	}
	assert.Equal(t, before, x.State())
}

func TestExecutor_SelectionHasNoTransitionEffect(t *testing.T) {
	log := telemetry.NewLogger(nil)
	x := New(compiledTwoStage(t), log)

	require.NoError(t, x.SelectOption("A"))
	require.NoError(t, x.SelectOption("B"))
	assert.Equal(t, "ST1", x.State().CurrentStageID)
	assert.Empty(t, x.State().History)
	assert.Equal(t, 2, telemetry.Count(log.All(), telemetry.EventOptionSelect))
}

func TestExecutor_UnknownOption(t *testing.T) {
	x := New(compiledTwoStage(t), nil)
	_, err := x.SubmitStage("Z")
	if !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("got %v, want ErrUnknownOption", err)
	}
	// Still usable afterwards.
	_, err = x.SubmitStage("B")
	assert.NoError(t, err)
}

func TestExecutor_UnknownStageIsFatal(t *testing.T) {
	x := New(compiledTwoStage(t), nil)

	_, err := x.ApplyTransition(flow.Goto("GHOST"))
	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.ErrorIs(t, err, ErrUnknownStage)
	assert.Equal(t, "ST1", fault.StageID)

	_, err = x.SubmitStage("B")
	assert.ErrorAs(t, err, &fault, "faulted executor must reject further calls")
}

func TestExecutor_SubmitLogsCorrectnessAndTag(t *testing.T) {
	log := telemetry.NewLogger(nil)
	x := New(compiledTwoStage(t), log)
	_, err := x.SubmitStage("A")
	require.NoError(t, err)

	e := log.All()[0]
	assert.Equal(t, telemetry.EventSubmitStage, e.Type)
	require.NotNil(t, e.Payload.Correct)
	assert.False(t, *e.Payload.Correct)
	assert.Equal(t, "misc-1", e.Payload.Tag)
	assert.Equal(t, "goto(REPAIR)", e.Payload.Action)
}

func TestExecutor_ExitFail(t *testing.T) {
	x := New(compiledTwoStage(t), nil)
	res, err := x.ApplyTransition(flow.Exit(flow.OutcomeFail))
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, flow.OutcomeFail, res.Outcome)
}
