package questiontype

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abhisek/quizflow/internal/flow"
)

// ErrUnrecognizedResponse means the learner's input matches no option.
var ErrUnrecognizedResponse = errors.New("unrecognized response")

// Resolve maps a raw learner response onto one of stage's option ids.
//
// Normalization rules:
//   - Whitespace is trimmed
//   - Choice stages accept the option id (case-insensitive), its 1-based
//     index or its text
//   - Numeric stages accept integers, decimals and fractions ("3/4") and are
//     graded against the answer key within its tolerance
func Resolve(stage *flow.Stage, response string) (string, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", fmt.Errorf("empty response: %w", ErrUnrecognizedResponse)
	}
	switch stage.Interaction.Type {
	case flow.InteractionNumeric:
		return resolveNumeric(stage, response)
	default:
		return resolveChoice(stage, response)
	}
}

func resolveChoice(stage *flow.Stage, response string) (string, error) {
	for _, o := range stage.Options {
		if strings.EqualFold(o.ID, response) {
			return o.ID, nil
		}
	}
	if idx, err := strconv.Atoi(response); err == nil && idx >= 1 && idx <= len(stage.Options) {
		return stage.Options[idx-1].ID, nil
	}
	for _, o := range stage.Options {
		if o.Text != "" && strings.EqualFold(strings.TrimSpace(o.Text), response) {
			return o.ID, nil
		}
	}
	return "", fmt.Errorf("%q on stage %q: %w", response, stage.ID, ErrUnrecognizedResponse)
}

func resolveNumeric(stage *flow.Stage, response string) (string, error) {
	if stage.AnswerKey == nil || stage.AnswerKey.Value == nil {
		return "", fmt.Errorf("numeric stage %q has no answer value", stage.ID)
	}
	got, err := parseNumber(response)
	if err != nil {
		return "", fmt.Errorf("%q on stage %q: %w", response, stage.ID, ErrUnrecognizedResponse)
	}

	correct := math.Abs(got-*stage.AnswerKey.Value) <= stage.AnswerKey.Tolerance
	for _, o := range stage.Options {
		if o.Correct == correct {
			return o.ID, nil
		}
	}
	return "", fmt.Errorf("numeric stage %q has no option for correct=%t", stage.ID, correct)
}

// parseNumber parses "12", "-0.5" or "3/4".
func parseNumber(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numerator: %w", err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid denominator: %w", err)
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator")
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	return f, nil
}
