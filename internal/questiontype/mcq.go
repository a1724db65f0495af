// Package questiontype holds the built-in question types.
package questiontype

import (
	"encoding/json"
	"fmt"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/manifest"
	"github.com/abhisek/quizflow/internal/schema"
)

// MainStage is the stage id of single-stage question types.
const MainStage = "main"

// headerProperties are the schema properties every built-in type shares.
func headerProperties(typeID string) map[string]any {
	return map[string]any{
		"id":              map[string]any{"type": "string", "minLength": 1},
		"type":            map[string]any{"const": typeID},
		"version":         map[string]any{"type": "string"},
		"title":           map[string]any{"type": "string"},
		"atomId":          map[string]any{"type": "string"},
		"expectedSeconds": map[string]any{"type": "number", "exclusiveMinimum": 0},
	}
}

func withProperties(base map[string]any, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

var choiceOptionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":            map[string]any{"type": "string", "minLength": 1},
		"text":          map[string]any{"type": "string"},
		"correct":       map[string]any{"type": "boolean"},
		"feedback":      map[string]any{"type": "string"},
		"diagnosticTag": map[string]any{"type": "string"},
	},
	"required":             []any{"id"},
	"additionalProperties": false,
}

type mcqDocument struct {
	ID              string        `json:"id"`
	Type            string        `json:"type"`
	Version         string        `json:"version"`
	Title           string        `json:"title"`
	AtomID          string        `json:"atomId"`
	ExpectedSeconds float64       `json:"expectedSeconds"`
	Prompt          string        `json:"prompt"`
	Options         []flow.Option `json:"options"`
}

// MCQ returns the single-stage multiple choice type.
func MCQ() *manifest.Manifest {
	return &manifest.Manifest{
		ID:      "mcq",
		Name:    "Multiple choice",
		Version: "1.0.0",
		Schema: &schema.Contract{
			Name: "mcq@v1.0.0",
			Definition: map[string]any{
				"type": "object",
				"properties": withProperties(headerProperties("mcq"), map[string]any{
					"prompt": map[string]any{"type": "string", "minLength": 1},
					"options": map[string]any{
						"type":     "array",
						"minItems": 2,
						"items":    choiceOptionSchema,
					},
				}),
				"required":             []any{"id", "type", "prompt", "options"},
				"additionalProperties": false,
			},
			Advise: adviseMCQ,
		},
		Binding:   mcqBinding{},
		Analytics: analytics.Synthesize,
	}
}

func adviseMCQ(raw []byte) []schema.Issue {
	var doc mcqDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return adviseOptions("/options", doc.Options)
}

// adviseOptions warns about option sets that validate but play badly.
func adviseOptions(path string, options []flow.Option) []schema.Issue {
	var issues []schema.Issue
	correct := 0
	seen := map[string]bool{}
	for i, o := range options {
		if o.Correct {
			correct++
		} else if o.DiagnosticTag == "" {
			issues = append(issues, schema.Warn(fmt.Sprintf("%s/%d", path, i), "MISSING_DIAGNOSTIC_TAG",
				"incorrect option %q has no diagnosticTag", o.ID))
		}
		if seen[o.ID] {
			issues = append(issues, schema.Warn(fmt.Sprintf("%s/%d/id", path, i), "DUPLICATE_OPTION",
				"option id %q is used more than once", o.ID))
		}
		seen[o.ID] = true
	}
	switch {
	case correct == 0:
		issues = append(issues, schema.Warn(path, "NO_CORRECT_OPTION", "no option is marked correct"))
	case correct > 1:
		issues = append(issues, schema.Warn(path, "MULTIPLE_CORRECT_OPTIONS", "%d options are marked correct", correct))
	}
	return issues
}

type mcqBinding struct{}

func (mcqBinding) Build(raw []byte) (*flow.CompiledFlow, *flow.Document, error) {
	var src mcqDocument
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, nil, fmt.Errorf("decode mcq document: %w", err)
	}

	stage := flow.Stage{
		ID:          MainStage,
		Intent:      flow.IntentInitial,
		Prompt:      src.Prompt,
		Interaction: flow.Interaction{Type: flow.InteractionSingleChoice},
		Options:     exitOptions(src.Options),
	}
	if c, ok := stage.CorrectOption(); ok {
		stage.AnswerKey = &flow.AnswerKey{OptionID: c.ID}
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

func (mcqBinding) Resolve(stage *flow.Stage, response string) (string, error) {
	return Resolve(stage, response)
}

// exitOptions wires single-stage options straight to their exits: one
// answer ends the question.
func exitOptions(in []flow.Option) []flow.Option {
	out := make([]flow.Option, len(in))
	for i, o := range in {
		next := flow.Exit(flow.OutcomeFail)
		if o.Correct {
			next = flow.Exit(flow.OutcomePass)
		}
		o.Next = &next
		out[i] = o
	}
	return out
}
