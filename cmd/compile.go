package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abhisek/quizflow/internal/flow"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Print the compiled state machine of a document",
	Long: `Compile validates a document and prints its compiled flow as JSON.

When compilation fails every diagnostic is printed, warnings included.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetString("type-version")
		w := cmd.OutOrStdout()

		doc, err := loadDocument(args[0], version)
		if err != nil {
			return err
		}
		if _, err := doc.Manifest.Schema.Validate(doc.Raw); err != nil {
			return err
		}

		f, _, err := doc.Manifest.Binding.Build(doc.Raw)
		var ce *flow.CompileErrors
		if errors.As(err, &ce) {
			printDiagnostics(w, ce.Diagnostics)
			return fmt.Errorf("%d critical diagnostics", len(ce.Critical()))
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	},
}

func init() {
	compileCmd.Flags().String("type-version", "", "Compile with this question type version instead of the document's")
}
