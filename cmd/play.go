package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/document"
	"github.com/abhisek/quizflow/internal/flow"
	"github.com/abhisek/quizflow/internal/questiontype"
	"github.com/abhisek/quizflow/internal/session"
	"github.com/abhisek/quizflow/internal/store"
	"github.com/abhisek/quizflow/internal/telemetry"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <file>...",
	Short: "Answer questions interactively in the terminal",
	Long: `Play runs each document as a learner session over stdin.

Type an option id, its number or its text to answer a choice stage, or a
number for a numeric stage. ":blur" and ":focus" simulate the learner
leaving and returning to the question, ":quit" abandons the run.

Completed sessions are saved to the database with their interaction log.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		noSave, _ := cmd.Flags().GetBool("no-save")
		version, _ := cmd.Flags().GetString("type-version")
		if user == "" {
			user = cfg.UserID
		}

		p := &player{
			in:      bufio.NewScanner(cmd.InOrStdin()),
			out:     cmd.OutOrStdout(),
			user:    user,
			version: version,
			history: map[string]float64{},
		}

		if !noSave {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			p.repo = st.RecordRepo()

			hist, err := p.repo.AtomHistory(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("load atom history: %w", err)
			}
			p.history = hist
		}

		return p.run(cmd.Context(), args)
	},
}

func init() {
	playCmd.Flags().String("user", "", "Learner id recorded with each session (default from config or $USER)")
	playCmd.Flags().Bool("no-save", false, "Do not write completed sessions to the database")
	playCmd.Flags().String("type-version", "", "Run with this question type version instead of the document's")
}

type player struct {
	in      *bufio.Scanner
	out     io.Writer
	repo    store.RecordRepo
	user    string
	version string
	history map[string]float64

	quit bool
}

var errQuit = errors.New("quit")

func (p *player) run(ctx context.Context, paths []string) error {
	src := telemetry.NewChannelSource()
	var records []*analytics.Record

	for i, path := range paths {
		if p.quit || ctx.Err() != nil {
			break
		}
		fmt.Fprintf(p.out, "── Question %d/%d ──\n", i+1, len(paths))

		rec, err := p.playOne(ctx, src, path)
		switch {
		case errors.Is(err, errQuit):
			p.quit = true
		case err != nil:
			fmt.Fprintf(p.out, "\033[31m✗\033[0m %s: %v\n\n", path, err)
		case rec != nil:
			records = append(records, rec)
			if rec.AtomID != "" && !rec.Fallback {
				p.history[rec.AtomID] = rec.MasteryAfter
			}
		}
	}

	sum := session.BuildSummary(records)
	fmt.Fprintf(p.out, "── Summary: %d/%d correct, %d recovered (%.0f%%) ──\n",
		sum.TotalCorrect, sum.TotalQuestions, sum.TotalRecovered, sum.Accuracy*100)
	return ctx.Err()
}

func (p *player) playOne(ctx context.Context, src *telemetry.ChannelSource, path string) (*analytics.Record, error) {
	raw, err := document.Load(path)
	if err != nil {
		return nil, err
	}
	sc := analytics.SessionContext{UserID: p.user, AtomHistory: p.history}
	s, err := session.Start(ctx, registry, raw, sc, session.Options{
		Version:  p.version,
		Source:   src,
		Expected: cfg.AnalyticsConfig().DefaultExpected,
		Logger:   slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if t := s.Document().Title; t != "" {
		fmt.Fprintln(p.out, t)
	}

	var shown string
	for !s.Done() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if st := s.Stage(); st.ID != shown {
			p.showStage(st)
			shown = st.ID
		}

		line, ok := p.prompt()
		if !ok {
			fmt.Fprintln(p.out, "\n(input closed)")
			return nil, errQuit
		}
		switch line {
		case "":
			continue
		case ":quit":
			return nil, errQuit
		case ":blur":
			src.Blur()
			fmt.Fprintln(p.out, "(away)")
			continue
		case ":focus":
			src.Focus()
			fmt.Fprintln(p.out, "(back)")
			continue
		}

		out, err := s.Respond(line)
		if errors.Is(err, questiontype.ErrUnrecognizedResponse) {
			fmt.Fprintln(p.out, "(answer not recognized, try again)")
			continue
		}
		if err != nil {
			return nil, err
		}
		p.showOutcome(out)
	}

	rec := s.Record()
	if p.repo != nil && rec != nil {
		saved, err := p.repo.Save(ctx, rec, s.Logs())
		if err != nil {
			return rec, fmt.Errorf("save record: %w", err)
		}
		slog.Debug("record saved", "id", saved.ID, "sequence", saved.Sequence)
	}
	fmt.Fprintln(p.out)
	return rec, nil
}

func (p *player) prompt() (string, bool) {
	fmt.Fprint(p.out, "\nYour answer: ")
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

func (p *player) showStage(st *flow.Stage) {
	if st.Intent == flow.IntentRepair {
		fmt.Fprintln(p.out, "\033[33mLet's take a step back.\033[0m")
	}
	if st.Prompt != "" {
		fmt.Fprintln(p.out, st.Prompt)
	}
	if st.Instruction != "" {
		fmt.Fprintln(p.out, st.Instruction)
	}
	if st.Interaction.Type == flow.InteractionSingleChoice {
		for i, o := range st.Options {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, optionLabel(o))
		}
	}
}

func optionLabel(o flow.Option) string {
	if o.Text == "" {
		return o.ID
	}
	return o.Text
}

func (p *player) showOutcome(out *session.Outcome) {
	if out.Correct {
		fmt.Fprintln(p.out, "\033[32m✓ Correct!\033[0m")
	} else {
		fmt.Fprintln(p.out, "\033[31m✗ Not quite.\033[0m")
	}
	if out.Feedback != "" {
		fmt.Fprintln(p.out, out.Feedback)
	}
	if out.Remaining > 0 {
		fmt.Fprintf(p.out, "Try again (%d more before a hint).\n", out.Remaining)
	} else if out.Action.Kind() == flow.KindLoop {
		fmt.Fprintln(p.out, "Try again.")
	}
	if !out.Done {
		return
	}

	fmt.Fprintf(p.out, "Outcome: %s  path: %s\n", out.Result.Outcome, strings.Join(out.Result.Path, " → "))
	if r := out.Record; r != nil {
		if r.Fallback {
			fmt.Fprintln(p.out, "(analytics unavailable for this question)")
			return
		}
		fmt.Fprintf(p.out, "Time: %.1fs (%s)  attempts: %d  mastery: %.2f → %.2f\n",
			float64(r.TimeSpentMs)/1000, r.SpeedRating, r.Attempts, r.MasteryBefore, r.MasteryAfter)
		if r.DiagnosticTag != "" {
			fmt.Fprintf(p.out, "Misconception: %s\n", r.DiagnosticTag)
		}
	}
}
