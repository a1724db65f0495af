package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check documents against their question type contract and compile them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("type-version")
		w := cmd.OutOrStdout()

		var failed int
		for _, path := range args {
			if !validateFile(w, path, version) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d documents invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("type-version", "", "Validate against this question type version instead of the document's")
}

// validateFile prints the result for one document and reports whether it
// passed.
func validateFile(w io.Writer, path, version string) bool {
	doc, err := loadDocument(path, version)
	if err != nil {
		fmt.Fprintf(w, "\033[31m✗\033[0m %v\n", err)
		return false
	}

	issues, err := doc.Manifest.Schema.Validate(doc.Raw)
	var ve *schema.ValidationError
	switch {
	case errors.As(err, &ve):
		fmt.Fprintf(w, "\033[31m✗\033[0m %s (%s)\n", path, doc.Manifest.Key())
		printIssues(w, ve.Issues)
		return false
	case err != nil:
		fmt.Fprintf(w, "\033[31m✗\033[0m %s: %v\n", path, err)
		return false
	}

	_, _, err = doc.Manifest.Binding.Build(doc.Raw)
	var ce *flow.CompileErrors
	if errors.As(err, &ce) {
		fmt.Fprintf(w, "\033[31m✗\033[0m %s (%s)\n", path, doc.Manifest.Key())
		printIssues(w, issues)
		printDiagnostics(w, ce.Diagnostics)
		return false
	}
	if err != nil {
		fmt.Fprintf(w, "\033[31m✗\033[0m %s: %v\n", path, err)
		return false
	}

	fmt.Fprintf(w, "\033[32m✓\033[0m %s (%s)\n", path, doc.Manifest.Key())
	printIssues(w, issues)
	return true
}

func printIssues(w io.Writer, issues []schema.Issue) {
	for _, is := range issues {
		fmt.Fprintf(w, "    %s\n", is)
	}
}

func printDiagnostics(w io.Writer, diags []flow.Diagnostic) {
	for _, d := range diags {
		if d.StageID != "" {
			fmt.Fprintf(w, "    %s (stage %s)\n", d, d.StageID)
			continue
		}
		fmt.Fprintf(w, "    %s\n", d)
	}
}
