package questiontype

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/manifest"
	"github.com/abhisek/quizflow/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mcqDoc = `{
  "id": "q-frac-1",
  "type": "mcq",
  "atomId": "atom-fractions",
  "prompt": "Which is larger?",
  "options": [
    {"id": "A", "text": "1/3", "diagnosticTag": "whole-number-bias"},
    {"id": "B", "text": "1/2", "correct": true}
  ]
}`

const numericDoc = `{
  "id": "q-num-1",
  "type": "numeric",
  "prompt": "What is 3 divided by 4?",
  "answer": 0.75,
  "tolerance": 0.001,
  "diagnosticTag": "division-inverted"
}`

const stagedV2Doc = `{
  "id": "q-staged-1",
  "type": "staged",
  "version": "2",
  "stages": [
    {
      "stageId": "ST1",
      "intent": "INITIAL",
      "prompt": "1/2 + 1/4 = ?",
      "interaction": {"type": "numeric"},
      "answerKey": {"value": 0.75, "tolerance": 0.01}
    },
    {
      "stageId": "REPAIR",
      "intent": "REPAIR",
      "prompt": "Which is the common denominator?",
      "interaction": {"type": "single_choice"},
      "options": [
        {"id": "R1", "text": "4", "correct": true},
        {"id": "R2", "text": "6", "diagnosticTag": "add-denominators", "next": {"kind": "exit", "outcome": "fail"}}
      ],
      "unlock": {"showWhen": "afterStageAttemptsExceeded", "dependsOnStageId": "ST1", "attempts": 2}
    }
  ]
}`

func newRegistry(t *testing.T) *manifest.Registry {
	t.Helper()
	reg := manifest.NewRegistry(manifest.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, RegisterBuiltins(reg, nil))
	return reg
}

func TestRegisterBuiltins(t *testing.T) {
	reg := newRegistry(t)

	assert.Equal(t, []manifest.TypeInfo{
		{ID: "mcq", Name: "Multiple choice", LatestVersion: "v1.0.0"},
		{ID: "numeric", Name: "Numeric answer", LatestVersion: "v1.0.0"},
		{ID: "staged", Name: "Staged adaptive question", LatestVersion: "v2.0.0"},
	}, reg.ListTypes())

	v1, ok := reg.Get("staged", "1")
	require.True(t, ok)
	assert.Equal(t, "staged@v1.0.0", v1.Schema.Name)

	assert.Error(t, RegisterBuiltins(reg, nil), "second registration is a duplicate")
}

func TestMCQ_ValidateAndBuild(t *testing.T) {
	m := MCQ()
	issues, err := m.Schema.Validate([]byte(mcqDoc))
	require.NoError(t, err)
	assert.False(t, schema.HasCritical(issues))

	f, doc, err := m.Binding.Build([]byte(mcqDoc))
	require.NoError(t, err)
	assert.Equal(t, "atom-fractions", doc.AtomID)
	assert.Equal(t, MainStage, f.EntryStageID)

	stage, ok := f.Stage(MainStage)
	require.True(t, ok)
	assert.Equal(t, "B", stage.AnswerKey.OptionID)
	a, _ := stage.Option("A")
	b, _ := stage.Option("B")
	assert.Equal(t, flow.Exit(flow.OutcomeFail), *a.Next)
	assert.Equal(t, flow.Exit(flow.OutcomePass), *b.Next)
}

func TestMCQ_Advice(t *testing.T) {
	raw := []byte(`{"id":"q","type":"mcq","prompt":"?","options":[{"id":"A"},{"id":"B"}]}`)
	issues, err := MCQ().Schema.Validate(raw)
	require.NoError(t, err)

	codes := map[string]bool{}
	for _, is := range issues {
		assert.Equal(t, schema.SeverityWarning, is.Severity)
		codes[is.Code] = true
	}
	assert.True(t, codes["NO_CORRECT_OPTION"])
	assert.True(t, codes["MISSING_DIAGNOSTIC_TAG"])
}

func TestMCQ_SchemaRejects(t *testing.T) {
	tests := map[string]string{
		"missing options": `{"id":"q","type":"mcq","prompt":"?"}`,
		"one option":      `{"id":"q","type":"mcq","prompt":"?","options":[{"id":"A"}]}`,
		"explicit next":   `{"id":"q","type":"mcq","prompt":"?","options":[{"id":"A","next":{"kind":"loop"}},{"id":"B"}]}`,
		"wrong type":      `{"id":"q","type":"numeric","prompt":"?","options":[{"id":"A"},{"id":"B"}]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := MCQ().Schema.Validate([]byte(raw))
			var ve *schema.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestNumeric_BuildAndResolve(t *testing.T) {
	m := Numeric()
	_, err := m.Schema.Validate([]byte(numericDoc))
	require.NoError(t, err)

	f, _, err := m.Binding.Build([]byte(numericDoc))
	require.NoError(t, err)
	stage, _ := f.Stage(MainStage)

	tests := []struct {
		in   string
		want string
	}{
		{"0.75", flow.OptionCorrect},
		{" 3/4 ", flow.OptionCorrect},
		{"0.7505", flow.OptionCorrect},
		{"4/3", flow.OptionIncorrect},
		{"1", flow.OptionIncorrect},
	}
	for _, tt := range tests {
		got, err := m.Binding.Resolve(stage, tt.in)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	_, err = m.Binding.Resolve(stage, "three quarters")
	assert.ErrorIs(t, err, ErrUnrecognizedResponse)
	_, err = m.Binding.Resolve(stage, "1/0")
	assert.ErrorIs(t, err, ErrUnrecognizedResponse)

	incorrect, _ := stage.Option(flow.OptionIncorrect)
	assert.Equal(t, "division-inverted", incorrect.DiagnosticTag)
}

func TestNumeric_ZeroToleranceWarning(t *testing.T) {
	issues, err := Numeric().Schema.Validate([]byte(`{"id":"q","type":"numeric","prompt":"?","answer":0.5}`))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "ZERO_TOLERANCE", issues[0].Code)
}

func TestStaged_VersionContracts(t *testing.T) {
	_, err := StagedV2().Schema.Validate([]byte(stagedV2Doc))
	require.NoError(t, err)

	_, err = StagedV1().Schema.Validate([]byte(stagedV2Doc))
	var ve *schema.ValidationError
	require.True(t, errors.As(err, &ve), "v1 must reject numeric stages and attempts")
}

func TestStaged_BuildV2(t *testing.T) {
	f, _, err := StagedV2().Binding.Build([]byte(stagedV2Doc))
	require.NoError(t, err)
	assert.Equal(t, "ST1", f.EntryStageID)

	st1, _ := f.Stage("ST1")
	incorrect, ok := st1.Option(flow.OptionIncorrect)
	require.True(t, ok)
	assert.Equal(t, flow.Goto("REPAIR"), *incorrect.Next)
	assert.Equal(t, 2, incorrect.MinAttempts)

	correct, _ := st1.Option(flow.OptionCorrect)
	assert.Equal(t, flow.Exit(flow.OutcomePass), *correct.Next)

	got, err := StagedV2().Binding.Resolve(st1, "3/4")
	require.NoError(t, err)
	assert.Equal(t, flow.OptionCorrect, got)
}

func TestStaged_CompileErrorsSurface(t *testing.T) {
	raw := []byte(`{"id":"q","type":"staged","stages":[
	  {"stageId":"ST1","interaction":{"type":"single_choice"},"options":[{"id":"A","correct":true}]},
	  {"stageId":"ORPHAN","interaction":{"type":"single_choice"},"options":[{"id":"X"}],
	   "unlock":{"showWhen":"afterStageCorrect","dependsOnStageId":"GHOST"}}
	]}`)
	_, err := StagedV1().Schema.Validate(raw)
	require.NoError(t, err)

	f, doc, err := StagedV1().Binding.Build(raw)
	assert.Nil(t, f)
	require.NotNil(t, doc)
	var ce *flow.CompileErrors
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Has(flow.CodeMissingDependency))
}

func TestResolve_Choice(t *testing.T) {
	stage := &flow.Stage{
		ID:          "S",
		Interaction: flow.Interaction{Type: flow.InteractionSingleChoice},
		Options:     []flow.Option{{ID: "A", Text: "four"}, {ID: "B", Text: "five"}},
	}
	for in, want := range map[string]string{"a": "A", "2": "B", "Five": "B", " B ": "B"} {
		got, err := Resolve(stage, in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := Resolve(stage, "3")
	assert.ErrorIs(t, err, ErrUnrecognizedResponse)
	_, err = Resolve(stage, "")
	assert.ErrorIs(t, err, ErrUnrecognizedResponse)
}
