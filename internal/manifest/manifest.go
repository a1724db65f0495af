// Package manifest is the versioned registry of question types.
package manifest

import (
	"fmt"
	"strings"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/schema"
	"golang.org/x/mod/semver"
)

// Binding adapts a question type's documents to the shared runtime.
type Binding interface {
	// Build turns a schema-valid document into an executable flow and the
	// typed document it was built from. Multi-stage types run the flow
	// compiler; single-stage types build a one-stage flow directly.
	Build(raw []byte) (*flow.CompiledFlow, *flow.Document, error)

	// Resolve maps a raw learner response on stage to one of its option ids.
	Resolve(stage *flow.Stage, response string) (string, error)
}

// Manifest bundles everything needed to run one version of a question type.
type Manifest struct {
	ID        string
	Name      string
	Version   string
	Schema    *schema.Contract
	Binding   Binding
	Analytics analytics.Func
}

// Key returns the registry key "id@version".
func (m *Manifest) Key() string { return m.ID + "@" + m.Version }

// CanonicalVersion normalises "1", "v1" and "1.0" to "v1.0.0".
func CanonicalVersion(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("empty version")
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("invalid version %q", v)
	}
	return semver.Canonical(v), nil
}

func (m *Manifest) validate() error {
	var errs []string
	if m.ID == "" {
		errs = append(errs, "id is required")
	}
	if m.Schema == nil {
		errs = append(errs, "schema is required")
	}
	if m.Binding == nil {
		errs = append(errs, "binding is required")
	}
	if m.Analytics == nil {
		errs = append(errs, "analytics function is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid manifest %q: %s", m.ID, strings.Join(errs, "; "))
	}
	return nil
}
