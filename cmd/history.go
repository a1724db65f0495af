package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/session"
	"github.com/abhisek/quizflow/internal/store"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored session records",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		user, _ := cmd.Flags().GetString("user")
		question, _ := cmd.Flags().GetString("question")
		typeID, _ := cmd.Flags().GetString("type")
		id, _ := cmd.Flags().GetString("id")
		prune, _ := cmd.Flags().GetInt("prune")
		w := cmd.OutOrStdout()

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		repo := st.RecordRepo()
		ctx := cmd.Context()

		if cmd.Flags().Changed("prune") {
			n, err := repo.Prune(ctx, prune)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Pruned %d records\n", n)
			return nil
		}

		if id != "" {
			rec, err := repo.Get(ctx, id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		recs, err := repo.List(ctx, store.QueryOpts{
			Limit:      limit,
			UserID:     user,
			QuestionID: question,
			TypeID:     typeID,
		})
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(w, "No records.")
			return nil
		}

		fmt.Fprintf(w, "%5s  %-19s  %-20s  %-14s  %-7s  %8s  %s\n",
			"Seq", "When", "Question", "Type", "Result", "Time", "Mastery")
		fmt.Fprintln(w, strings.Repeat("─", 100))

		all := make([]*analytics.Record, 0, len(recs))
		for i := range recs {
			r := &recs[i].Record
			all = append(all, r)

			q := r.QuestionID
			if len(q) > 20 {
				q = q[:17] + "..."
			}
			fmt.Fprintf(w, "%5d  %-19s  %-20s  %-14s  %-7s  %7.1fs  %s\n",
				recs[i].Sequence, recs[i].CreatedAt.Local().Format("2006-01-02 15:04:05"),
				q, r.TypeID+"@"+r.TypeVersion, resultLabel(r),
				float64(r.TimeSpentMs)/1000, masteryLabel(r))
		}

		sum := session.BuildSummary(all)
		fmt.Fprintf(w, "\n%d records, %d correct, %d recovered, accuracy %.0f%%\n",
			sum.TotalQuestions, sum.TotalCorrect, sum.TotalRecovered, sum.Accuracy*100)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of records to show (0 = all)")
	historyCmd.Flags().String("user", "", "Only records for this learner")
	historyCmd.Flags().String("question", "", "Only records for this question id")
	historyCmd.Flags().String("type", "", "Only records for this question type")
	historyCmd.Flags().String("id", "", "Print one record with its interaction log as JSON")
	historyCmd.Flags().Int("prune", 0, "Delete all but the N most recent records")
}

func resultLabel(r *analytics.Record) string {
	switch {
	case r.IsRecovered:
		return "recover"
	case r.IsCorrect:
		return "pass"
	default:
		return "fail"
	}
}

func masteryLabel(r *analytics.Record) string {
	if r.Fallback {
		return "-"
	}
	return fmt.Sprintf("%.2f → %.2f", r.MasteryBefore, r.MasteryAfter)
}
