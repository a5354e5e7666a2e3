package testsupport

import (
	"path/filepath"
	"testing"

	"adclip/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and budgets small enough to keep tests fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Backend.BaseURL = "http://127.0.0.1:0"
	cfg.Backend.APIKey = "test"
	cfg.Backend.PollIntervalSeconds = 1
	cfg.Backend.PollTimeoutSeconds = 2
	cfg.Quality.BaseURL = "http://127.0.0.1:0"
	cfg.Quality.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithModelChain overrides the backend model chain.
func WithModelChain(models ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.ModelChain = models
	}
}

// WithQualityThreshold overrides the acceptance threshold.
func WithQualityThreshold(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Quality.Threshold = threshold
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
