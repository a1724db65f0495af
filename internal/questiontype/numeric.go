package questiontype

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/manifest"
	"github.com/abhisek/quizflow/internal/schema"
)

type numericDocument struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Version         string   `json:"version"`
	Title           string   `json:"title"`
	AtomID          string   `json:"atomId"`
	ExpectedSeconds float64  `json:"expectedSeconds"`
	Prompt          string   `json:"prompt"`
	Answer          *float64 `json:"answer"`
	Tolerance       float64  `json:"tolerance"`
	DiagnosticTag   string   `json:"diagnosticTag"`
}

// Numeric returns the single-stage numeric answer type.
func Numeric() *manifest.Manifest {
	return &manifest.Manifest{
		ID:      "numeric",
		Name:    "Numeric answer",
		Version: "1.0.0",
		Schema: &schema.Contract{
			Name: "numeric@v1.0.0",
			Definition: map[string]any{
				"type": "object",
				"properties": withProperties(headerProperties("numeric"), map[string]any{
					"prompt":        map[string]any{"type": "string", "minLength": 1},
					"answer":        map[string]any{"type": "number"},
					"tolerance":     map[string]any{"type": "number", "minimum": 0},
					"diagnosticTag": map[string]any{"type": "string"},
				}),
				"required":             []any{"id", "type", "prompt", "answer"},
				"additionalProperties": false,
			},
			Advise: adviseNumeric,
		},
		Binding:   numericBinding{},
		Analytics: analytics.Synthesize,
	}
}

func adviseNumeric(raw []byte) []schema.Issue {
	var doc numericDocument
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Answer == nil {
		return nil
	}
	var issues []schema.Issue
	if doc.Tolerance == 0 && *doc.Answer != math.Trunc(*doc.Answer) {
		issues = append(issues, schema.Warn("/tolerance", "ZERO_TOLERANCE",
			"non-integer answer %v has no tolerance; only exact input is accepted", *doc.Answer))
	}
	return issues
}

type numericBinding struct{}

func (numericBinding) Build(raw []byte) (*flow.CompiledFlow, *flow.Document, error) {
	var src numericDocument
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, nil, fmt.Errorf("decode numeric document: %w", err)
	}
	if src.Answer == nil {
		return nil, nil, fmt.Errorf("numeric document %q has no answer", src.ID)
	}

	value := *src.Answer
	stage := flow.Stage{
		ID:          MainStage,
		Intent:      flow.IntentInitial,
		Prompt:      src.Prompt,
		Interaction: flow.Interaction{Type: flow.InteractionNumeric},
		AnswerKey:   &flow.AnswerKey{Value: &value, Tolerance: src.Tolerance},
		Options: exitOptions([]flow.Option{
			{ID: flow.OptionCorrect, Correct: true},
			{ID: flow.OptionIncorrect, DiagnosticTag: src.DiagnosticTag},
		}),
	}

	doc := &flow.Document{
		ID:              src.ID,
		Type:            src.Type,
		Version:         src.Version,
		Title:           src.Title,
		AtomID:          src.AtomID,
		ExpectedSeconds: src.ExpectedSeconds,
		Stages:          []flow.Stage{stage},
	}
	f, err := flow.Compile(doc)
	if err != nil {
		return nil, doc, err
	}
	return f, doc, nil
}

func (numericBinding) Resolve(stage *flow.Stage, response string) (string, error) {
	return Resolve(stage, response)
}
