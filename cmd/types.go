package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List registered question types",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		types := registry.ListTypes()

		fmt.Fprintf(w, "%-12s  %-30s  %-10s  %s\n", "ID", "Name", "Latest", "Versions")
		fmt.Fprintln(w, strings.Repeat("─", 72))

		for _, t := range types {
			fmt.Fprintf(w, "%-12s  %-30s  %-10s  %s\n",
				t.ID, t.Name, t.LatestVersion, strings.Join(registry.Versions(t.ID), ", "))
		}

		fmt.Fprintf(w, "\n%d types\n", len(types))
		return nil
	},
}
