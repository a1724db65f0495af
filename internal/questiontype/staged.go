package questiontype

import (
	"encoding/json"
	"fmt"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/manifest"
	"github.com/abhisek/quizflow/internal/schema"
)

// StagedV1 returns the first multi-stage adaptive type: choice stages only,
// attempts-exceeded edges fire on the first incorrect submission.
func StagedV1() *manifest.Manifest {
	return staged("1.0.0", false)
}

// StagedV2 adds numeric stages and the unlock attempts threshold.
func StagedV2() *manifest.Manifest {
	return staged("2.0.0", true)
}

func staged(version string, v2 bool) *manifest.Manifest {
	return &manifest.Manifest{
		ID:      "staged",
		Name:    "Staged adaptive question",
		Version: version,
		Schema: &schema.Contract{
			Name:       "staged@v" + version,
			Definition: stagedDefinition(v2),
			Advise:     adviseStaged,
		},
		Binding:   stagedBinding{},
		Analytics: analytics.Synthesize,
	}
}

func stagedDefinition(v2 bool) map[string]any {
	interactions := []any{string(flow.InteractionSingleChoice)}
	if v2 {
		interactions = append(interactions, string(flow.InteractionNumeric))
	}

	unlock := map[string]any{
		"showWhen": map[string]any{"enum": []any{
			string(flow.ShowAlways),
			string(flow.ShowAfterStageCorrect),
			string(flow.ShowAfterStageAttemptsExceeded),
		}},
		"dependsOnStageId": map[string]any{"type": "string"},
	}
	if v2 {
		unlock["attempts"] = map[string]any{"type": "integer", "minimum": 1}
	}

	option := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":            map[string]any{"type": "string", "minLength": 1},
			"text":          map[string]any{"type": "string"},
			"correct":       map[string]any{"type": "boolean"},
			"feedback":      map[string]any{"type": "string"},
			"diagnosticTag": map[string]any{"type": "string"},
			"next": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind":    map[string]any{"enum": []any{"goto", "branch", "loop", "exit"}},
					"target":  map[string]any{"type": "string"},
					"outcome": map[string]any{"enum": []any{"pass", "fail"}},
				},
				"required":             []any{"kind"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"id"},
		"additionalProperties": false,
	}

	answerKey := map[string]any{
		"optionId":  map[string]any{"type": "string"},
		"keyPoints": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	}
	if v2 {
		answerKey["value"] = map[string]any{"type": "number"}
		answerKey["tolerance"] = map[string]any{"type": "number", "minimum": 0}
	}

	stage := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stageId":     map[string]any{"type": "string", "minLength": 1},
			"intent":      map[string]any{"enum": []any{"INITIAL", "REPAIR", "TRANSFER"}},
			"prompt":      map[string]any{"type": "string"},
			"instruction": map[string]any{"type": "string"},
			"interaction": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":   map[string]any{"enum": interactions},
					"config": map[string]any{"type": "object"},
				},
				"required":             []any{"type"},
				"additionalProperties": false,
			},
			"answerKey": map[string]any{
				"type":                 "object",
				"properties":           answerKey,
				"additionalProperties": false,
			},
			"options": map[string]any{"type": "array", "items": option},
			"unlock": map[string]any{
				"type":                 "object",
				"properties":           unlock,
				"required":             []any{"showWhen"},
				"additionalProperties": false,
			},
		},
		"required":             []any{"stageId", "interaction"},
		"additionalProperties": false,
	}

	return map[string]any{
		"type": "object",
		"properties": withProperties(headerProperties("staged"), map[string]any{
			"stages": map[string]any{"type": "array", "minItems": 1, "items": stage},
		}),
		"required":             []any{"id", "type", "stages"},
		"additionalProperties": false,
	}
}

func adviseStaged(raw []byte) []schema.Issue {
	var doc flow.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	var issues []schema.Issue
	for i, s := range doc.Stages {
		path := fmt.Sprintf("/stages/%d", i)
		if s.Prompt == "" {
			issues = append(issues, schema.Warn(path, "MISSING_PROMPT", "stage %q has no prompt", s.ID))
		}
		if s.Interaction.Type == flow.InteractionNumeric {
			if s.AnswerKey == nil || s.AnswerKey.Value == nil {
				issues = append(issues, schema.Warn(path+"/answerKey", "MISSING_ANSWER_VALUE",
					"numeric stage %q has no answerKey.value; every response will be rejected", s.ID))
			}
			continue
		}
		issues = append(issues, adviseOptions(path+"/options", s.Options)...)
	}
	return issues
}

type stagedBinding struct{}

func (stagedBinding) Build(raw []byte) (*flow.CompiledFlow, *flow.Document, error) {
	var doc flow.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode staged document: %w", err)
	}
	f, err := flow.Compile(&doc)
	if err != nil {
		return nil, &doc, err
	}
	return f, &doc, nil
}

func (stagedBinding) Resolve(stage *flow.Stage, response string) (string, error) {
	return Resolve(stage, response)
}
