package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adclip/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Pipeline.MaxConcurrent != 3 {
		t.Fatalf("expected default max_concurrent, got %d", cfg.Pipeline.MaxConcurrent)
	}
	if len(cfg.Backend.ModelChain) == 0 {
		t.Fatal("expected default model chain")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + dir + `"

[backend]
model_chain = ["primary", "fallback"]
max_retries_per_model = 1

[quality]
threshold = 85.0

[pipeline]
max_concurrent = 2
max_regeneration_attempts = 4
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if got := cfg.Backend.ModelChain; len(got) != 2 || got[0] != "primary" {
		t.Fatalf("unexpected model chain %v", got)
	}
	if cfg.Quality.Threshold != 85 {
		t.Fatalf("threshold = %v", cfg.Quality.Threshold)
	}
	if cfg.Pipeline.MaxRegenerationAttempts != 4 {
		t.Fatalf("max_regeneration_attempts = %d", cfg.Pipeline.MaxRegenerationAttempts)
	}
	if cfg.Paths.StagingDir != filepath.Join(dir, "staging") {
		t.Fatalf("staging dir not derived from data dir: %s", cfg.Paths.StagingDir)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*config.Config)
		fragment string
	}{
		{"empty chain", func(c *config.Config) { c.Backend.ModelChain = nil }, "model_chain"},
		{"duplicate model", func(c *config.Config) { c.Backend.ModelChain = []string{"a", "a"} }, "more than once"},
		{"threshold too high", func(c *config.Config) { c.Quality.Threshold = 101 }, "threshold"},
		{"threshold negative", func(c *config.Config) { c.Quality.Threshold = -1 }, "threshold"},
		{"zero concurrency", func(c *config.Config) { c.Pipeline.MaxConcurrent = 0 }, "max_concurrent"},
		{"negative attempts", func(c *config.Config) { c.Pipeline.MaxRegenerationAttempts = -1 }, "max_regeneration_attempts"},
		{"poll interval", func(c *config.Config) { c.Backend.PollIntervalSeconds = 0 }, "poll_interval"},
		{"backoff ordering", func(c *config.Config) { c.Backend.RetryMaxBackoffMS = 1 }, "retry_max_backoff"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Fatalf("error %q does not mention %q", err, tc.fragment)
			}
		})
	}
}

func TestEnvAPIKeyFallback(t *testing.T) {
	t.Setenv("ADCLIP_BACKEND_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.APIKey != "env-key" {
		t.Fatalf("expected env fallback, got %q", cfg.Backend.APIKey)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if _, err := config.WriteSample(path); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}
