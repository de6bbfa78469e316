// Package testsupport holds constructors shared by package tests:
// configurations rooted in per-test temp directories and tracking
// stores with registered cleanup.
package testsupport

import (
	"path/filepath"
	"testing"

	"reconform/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Watched = []string{filepath.Join(base, "library")}
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DatabasePath = filepath.Join(base, "tracking.db")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWatched overrides the watched roots on the test config.
func WithWatched(roots ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.Watched = roots
	}
}

// WithMode sets the encoder mode on the test config.
func WithMode(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Encoder.Mode = mode
	}
}
