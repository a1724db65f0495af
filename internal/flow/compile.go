package flow

import (
	"fmt"
	"sort"
	"strings"
)

// Option ids synthesized for numeric stages that declare no options.
const (
	OptionCorrect   = "correct"
	OptionIncorrect = "incorrect"
)

// CodeInvalidUnlock is reported for unlock rules the compiler cannot interpret.
const CodeInvalidUnlock = "INVALID_UNLOCK"

// compiler holds the working state of a single Compile call.
type compiler struct {
	docID  string
	stages []Stage
	byID   map[string]int
	diags  []Diagnostic

	// flagged holds stages that already have a dependency diagnostic, so
	// they are not reported a second time as unreachable.
	flagged map[string]bool
}

// Compile turns a declarative document into an explicit state machine.
//
// It is a pure function of doc: the input is never mutated and identical
// documents yield identical flows. Every problem is collected before
// returning; on failure the error is a *CompileErrors and no flow is
// returned.
func Compile(doc *Document) (*CompiledFlow, error) {
	if doc == nil {
		return nil, &CompileErrors{Diagnostics: []Diagnostic{{
			Severity: SeverityCritical, Code: CodeNoEntry, Message: "no document to compile",
		}}}
	}

	c := &compiler{
		docID:   doc.ID,
		stages:  make([]Stage, len(doc.Stages)),
		byID:    make(map[string]int, len(doc.Stages)),
		flagged: make(map[string]bool),
	}
	for i, s := range doc.Stages {
		c.stages[i] = s.clone()
	}

	c.indexStages()
	c.synthesizeNumericOptions()
	entry := c.resolveEntry()
	c.synthesizeEdges()
	c.applyDefaults()
	c.checkReachability(entry)

	for i := range c.stages {
		c.stages[i].Unlock = nil
	}

	var warnings []Diagnostic
	for _, d := range c.diags {
		if d.Severity == SeverityCritical {
			return nil, &CompileErrors{DocumentID: doc.ID, Diagnostics: c.diags}
		}
		warnings = append(warnings, d)
	}

	return &CompiledFlow{
		ID:           doc.ID,
		EntryStageID: entry,
		Stages:       c.stages,
		Warnings:     warnings,
	}, nil
}

func (c *compiler) errorf(code, stageID, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		Severity: SeverityCritical,
		Code:     code,
		StageID:  stageID,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *compiler) warnf(code, stageID, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		StageID:  stageID,
		Message:  fmt.Sprintf(format, args...),
	})
}

// indexStages builds the id index. The first occurrence of a duplicated id wins.
func (c *compiler) indexStages() {
	for i, s := range c.stages {
		if _, dup := c.byID[s.ID]; dup {
			c.errorf(CodeDuplicateStage, s.ID, "duplicate stage id %q", s.ID)
			continue
		}
		c.byID[s.ID] = i
	}
}

func (c *compiler) synthesizeNumericOptions() {
	for i := range c.stages {
		s := &c.stages[i]
		if s.Interaction.Type == InteractionNumeric && len(s.Options) == 0 {
			s.Options = []Option{
				{ID: OptionCorrect, Correct: true},
				{ID: OptionIncorrect},
			}
		}
		if len(s.Options) == 0 {
			c.errorf(CodeEmptyStage, s.ID, "stage %q has no options", s.ID)
		}
	}
}

func isEntry(s *Stage) bool {
	return s.Unlock == nil || s.Unlock.ShowWhen == ShowAlways
}

func (c *compiler) resolveEntry() string {
	var entries []string
	for i := range c.stages {
		if isEntry(&c.stages[i]) {
			entries = append(entries, c.stages[i].ID)
		}
	}
	switch len(entries) {
	case 0:
		c.errorf(CodeNoEntry, "", "no entry stage found")
		return ""
	case 1:
		return entries[0]
	default:
		c.errorf(CodeAmbiguousEntry, "", "ambiguous entry: stages %s have no dependency", strings.Join(entries, ", "))
		return ""
	}
}

func (c *compiler) synthesizeEdges() {
	for i := range c.stages {
		t := &c.stages[i]
		if isEntry(t) {
			continue
		}
		rule := t.Unlock
		parentID := rule.DependsOnStageID

		switch {
		case rule.ShowWhen != ShowAfterStageCorrect && rule.ShowWhen != ShowAfterStageAttemptsExceeded:
			c.errorf(CodeInvalidUnlock, t.ID, "stage %q has unknown showWhen %q", t.ID, rule.ShowWhen)
			c.flagged[t.ID] = true
			continue
		case parentID == "":
			c.errorf(CodeInvalidUnlock, t.ID, "stage %q uses %s without dependsOnStageId", t.ID, rule.ShowWhen)
			c.flagged[t.ID] = true
			continue
		case parentID == t.ID:
			c.errorf(CodeSelfDependency, t.ID, "stage %q depends on itself", t.ID)
			c.flagged[t.ID] = true
			continue
		}

		pi, ok := c.byID[parentID]
		if !ok {
			c.errorf(CodeMissingDependency, t.ID, "stage %q depends on missing stage %q", t.ID, parentID)
			c.flagged[t.ID] = true
			continue
		}
		parent := &c.stages[pi]

		for j := range parent.Options {
			o := &parent.Options[j]
			if o.Next != nil {
				continue
			}
			switch {
			case rule.ShowWhen == ShowAfterStageCorrect && o.Correct:
				next := Goto(t.ID)
				o.Next = &next
			case rule.ShowWhen == ShowAfterStageAttemptsExceeded && !o.Correct:
				next := Goto(t.ID)
				o.Next = &next
				o.MinAttempts = max(rule.Attempts, 1)
			}
		}
	}
}

func (c *compiler) applyDefaults() {
	for i := range c.stages {
		for j := range c.stages[i].Options {
			o := &c.stages[i].Options[j]
			if o.Next != nil {
				continue
			}
			next := Loop()
			if o.Correct {
				next = Exit(OutcomePass)
			}
			o.Next = &next
		}
	}
}

// checkReachability walks goto/branch edges from the entry stage. Stages
// never visited are compile errors, as are edges to unknown stages.
func (c *compiler) checkReachability(entry string) {
	for i := range c.stages {
		s := &c.stages[i]
		for _, o := range s.Options {
			if o.Next.Moves() {
				if _, ok := c.byID[o.Next.Target()]; !ok {
					c.errorf(CodeDanglingTarget, s.ID, "option %q of stage %q targets unknown stage %q", o.ID, s.ID, o.Next.Target())
				}
			}
		}
	}

	if entry == "" {
		return
	}

	visited := map[string]bool{entry: true}
	queue := []string{entry}
	exitReachable := false
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		s := &c.stages[c.byID[id]]
		for _, o := range s.Options {
			if o.Next.IsExit() {
				exitReachable = true
			}
			if !o.Next.Moves() {
				continue
			}
			target := o.Next.Target()
			if _, ok := c.byID[target]; !ok || visited[target] {
				continue
			}
			visited[target] = true
			queue = append(queue, target)
		}
	}

	var unreachable []string
	for i := range c.stages {
		id := c.stages[i].ID
		if !visited[id] && !c.flagged[id] {
			unreachable = append(unreachable, id)
		}
	}
	sort.Strings(unreachable)
	for _, id := range unreachable {
		c.errorf(CodeUnreachableStage, id, "stage %q is not reachable from entry stage %q", id, entry)
	}

	if !exitReachable {
		c.warnf(CodeNoExit, entry, "no exit is reachable from entry stage %q", entry)
	}
}
