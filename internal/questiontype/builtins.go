package questiontype

import (
	"fmt"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/manifest"
)

// Builtins returns fresh manifests for every built-in type. A nil synth
// uses analytics.Synthesize.
func Builtins(synth analytics.Func) []*manifest.Manifest {
	out := []*manifest.Manifest{MCQ(), Numeric(), StagedV1(), StagedV2()}
	if synth != nil {
		for _, m := range out {
			m.Analytics = synth
		}
	}
	return out
}

// RegisterBuiltins registers every built-in type with reg.
func RegisterBuiltins(reg *manifest.Registry, synth analytics.Func) error {
	for _, m := range Builtins(synth) {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register built-in %s: %w", m.ID, err)
		}
	}
	return nil
}
