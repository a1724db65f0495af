// Package config loads quizflow settings from an optional YAML file and
// QUIZFLOW_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/quizflow/internal/analytics"
)

// Config holds process-wide settings.
type Config struct {
	// Dev lets duplicate manifest registrations overwrite with a warning.
	Dev bool `yaml:"dev"`

	// DBPath overrides the default XDG database location.
	DBPath string `yaml:"db"`

	// UserID is recorded on every analytics record. Default: $USER.
	UserID string `yaml:"user"`

	// LogLevel is one of debug, info, warn, error. Default: warn.
	LogLevel string `yaml:"log_level"`

	Analytics Thresholds `yaml:"analytics"`
}

// Thresholds overrides analytics thresholds. Zero values keep the
// analytics defaults.
type Thresholds struct {
	DefaultExpected  time.Duration `yaml:"default_expected"`
	AnomalyThreshold time.Duration `yaml:"anomaly_threshold"`
	OvertimeFactor   float64       `yaml:"overtime_factor"`
	BlurPenalty      int           `yaml:"blur_penalty"`
	MasteryRate      float64       `yaml:"mastery_rate"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserID:   os.Getenv("USER"),
		LogLevel: "warn",
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	applyEnv(&cfg)
	return cfg
}

// Load reads a YAML config file, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config YAML: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDefault loads the first config file found in standard locations, or
// the environment alone when there is none. Search order: ./quizflow.yaml,
// $XDG_CONFIG_HOME/quizflow/config.yaml.
func LoadDefault() (Config, error) {
	candidates := []string{"quizflow.yaml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "quizflow", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return ConfigFromEnv(), nil
}

func applyEnv(cfg *Config) {
	if v, ok := envBool("QUIZFLOW_DEV"); ok {
		cfg.Dev = v
	}
	if p := os.Getenv("QUIZFLOW_DB"); p != "" {
		cfg.DBPath = p
	}
	if u := os.Getenv("QUIZFLOW_USER"); u != "" {
		cfg.UserID = u
	}
	if l := os.Getenv("QUIZFLOW_LOG_LEVEL"); l != "" {
		cfg.LogLevel = l
	}
	if s := os.Getenv("QUIZFLOW_EXPECTED_SECONDS"); s != "" {
		if secs, err := strconv.ParseFloat(s, 64); err == nil && secs > 0 {
			cfg.Analytics.DefaultExpected = time.Duration(secs * float64(time.Second))
		} else {
			fmt.Fprintf(os.Stderr, "warning: ignoring QUIZFLOW_EXPECTED_SECONDS=%q\n", s)
		}
	}
}

func envBool(key string) (bool, bool) {
	s := os.Getenv(key)
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring %s=%q\n", key, s)
		return false, false
	}
	return v, true
}

// SlogLevel parses LogLevel. Unknown values fall back to warn.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelWarn
	}
	return lvl
}

// AnalyticsConfig merges the overrides onto analytics.DefaultConfig.
func (c Config) AnalyticsConfig() analytics.Config {
	out := analytics.DefaultConfig()
	a := c.Analytics
	if a.DefaultExpected > 0 {
		out.DefaultExpected = a.DefaultExpected
	}
	if a.AnomalyThreshold > 0 {
		out.AnomalyThreshold = a.AnomalyThreshold
	}
	if a.OvertimeFactor > 0 {
		out.OvertimeFactor = a.OvertimeFactor
	}
	if a.BlurPenalty > 0 {
		out.BlurPenalty = a.BlurPenalty
	}
	if a.MasteryRate > 0 {
		out.MasteryRate = a.MasteryRate
	}
	return out
}
