package flow

import (
	"fmt"
	"strings"
)

// Severity grades a diagnostic. Only SeverityCritical blocks compilation.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Diagnostic codes reported by Compile.
const (
	CodeNoEntry           = "NO_ENTRY"
	CodeAmbiguousEntry    = "AMBIGUOUS_ENTRY"
	CodeDuplicateStage    = "DUPLICATE_STAGE"
	CodeEmptyStage        = "EMPTY_STAGE"
	CodeMissingDependency = "MISSING_DEPENDENCY"
	CodeSelfDependency    = "SELF_DEPENDENCY"
	CodeDanglingTarget    = "DANGLING_TARGET"
	CodeUnreachableStage  = "UNREACHABLE_STAGE"
	CodeNoExit            = "NO_EXIT"
)

// Diagnostic is one problem found while compiling a document.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	StageID  string   `json:"stageId,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message)
}

// CompileErrors is returned when a document cannot be compiled. It lists
// every diagnostic from the attempt, warnings included.
type CompileErrors struct {
	DocumentID  string
	Diagnostics []Diagnostic
}

func (e *CompileErrors) Error() string {
	lines := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		lines = append(lines, d.String())
	}
	return fmt.Sprintf("compile %q failed:\n  %s", e.DocumentID, strings.Join(lines, "\n  "))
}

// Critical returns only the blocking diagnostics.
func (e *CompileErrors) Critical() []Diagnostic {
	var out []Diagnostic
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityCritical {
			out = append(out, d)
		}
	}
	return out
}

// Has reports whether a diagnostic with the given code was recorded.
func (e *CompileErrors) Has(code string) bool {
	for _, d := range e.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}
