package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/config"
	"github.com/abhisek/quizflow/internal/manifest"
	"github.com/abhisek/quizflow/internal/questiontype"
	"github.com/abhisek/quizflow/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfg      config.Config
	registry *manifest.Registry
)

var rootCmd = &cobra.Command{
	Use:   "quizflow",
	Short: "Adaptive question flow toolkit",
	Long: `quizflow validates, compiles and plays multi-stage adaptive questions.

Documents are JSON or YAML. Each names a registered question type; run
"quizflow types" to list them.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides QUIZFLOW_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().Bool("dev", false, "Development mode: duplicate type registrations overwrite with a warning")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides QUIZFLOW_LOG_LEVEL)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads configuration, installs the logger and builds the type
// registry shared by every subcommand. The registry stays open in dev mode.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	if dev, _ := cmd.Flags().GetBool("dev"); dev {
		cfg.Dev = true
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	registry = manifest.NewRegistry(manifest.Options{DevMode: cfg.Dev, Logger: logger})
	synth := analytics.NewSynthesizer(cfg.AnalyticsConfig())
	if err := questiontype.RegisterBuiltins(registry, synth); err != nil {
		return fmt.Errorf("register question types: %w", err)
	}
	if !cfg.Dev {
		registry.Freeze()
	}
	return nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the config file or QUIZFLOW_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
