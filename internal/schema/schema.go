// Package schema holds the structural contracts that question documents
// must satisfy before they reach the compiler or the runtime.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Severity grades an issue. CRITICAL blocks acceptance; WARNING does not.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// CodeMalformedJSON is reported when the document is not JSON at all.
const CodeMalformedJSON = "MALFORMED_JSON"

// Issue is one problem found in a document.
type Issue struct {
	Path     string   `json:"path"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s at %s: %s", i.Severity, i.Code, i.Path, i.Message)
}

// Contract is the structural contract for one question type version.
type Contract struct {
	// Name identifies the contract in the compiled-schema cache, e.g. "mcq@v1.0.0".
	Name string

	// Definition is a JSON Schema document.
	Definition map[string]any

	// Advise runs after the structural checks pass and returns WARNING
	// issues. It may be nil.
	Advise func(raw []byte) []Issue
}

// ValidationError is returned when a document has CRITICAL issues.
type ValidationError struct {
	Contract string
	Issues   []Issue
}

func (e *ValidationError) Error() string {
	var lines []string
	for _, is := range e.Issues {
		if is.Severity == SeverityCritical {
			lines = append(lines, is.String())
		}
	}
	return fmt.Sprintf("document violates %s:\n  %s", e.Contract, strings.Join(lines, "\n  "))
}

// schemaCache caches compiled JSON schemas by contract name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

var printer = message.NewPrinter(language.English)

// Validate checks raw against the contract. It returns every issue found;
// err is a *ValidationError only when at least one issue is CRITICAL.
// Validate has no side effects beyond the compiled-schema cache.
func (c *Contract) Validate(raw []byte) ([]Issue, error) {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		issues := []Issue{{Path: "/", Severity: SeverityCritical, Code: CodeMalformedJSON, Message: err.Error()}}
		return issues, &ValidationError{Contract: c.Name, Issues: issues}
	}

	compiled, err := c.compiled()
	if err != nil {
		return nil, fmt.Errorf("compile contract %q: %w", c.Name, err)
	}

	var issues []Issue
	if err := compiled.Validate(parsed); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, fmt.Errorf("validate against %q: %w", c.Name, err)
		}
		issues = flatten(ve, nil)
		sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
		return issues, &ValidationError{Contract: c.Name, Issues: issues}
	}

	if c.Advise != nil {
		issues = append(issues, c.Advise(raw)...)
	}
	return issues, nil
}

// compiled returns a cached compiled schema or compiles and caches it.
func (c *Contract) compiled() (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(c.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants a parsed JSON value, so round-trip the Go literal.
	defBytes, err := json.Marshal(c.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	defParsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(defBytes))
	if err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	jc := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", c.Name)
	if err := jc.AddResource(url, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	sch, err := jc.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(c.Name, sch)
	return sch, nil
}

// flatten turns the validation error tree into one issue per leaf.
func flatten(ve *jsonschema.ValidationError, out []Issue) []Issue {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			out = flatten(cause, out)
		}
		return out
	}
	return append(out, Issue{
		Path:     "/" + strings.Join(ve.InstanceLocation, "/"),
		Severity: SeverityCritical,
		Code:     codeFor(ve.ErrorKind),
		Message:  ve.ErrorKind.LocalizedString(printer),
	})
}

func codeFor(kind jsonschema.ErrorKind) string {
	kp := kind.KeywordPath()
	if len(kp) == 0 {
		return "SCHEMA"
	}
	return "SCHEMA_" + strings.ToUpper(kp[len(kp)-1])
}

// Warn builds a WARNING issue. Question types use it in Advise.
func Warn(path, code, format string, args ...any) Issue {
	return Issue{Path: path, Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCritical reports whether any issue is CRITICAL.
func HasCritical(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
