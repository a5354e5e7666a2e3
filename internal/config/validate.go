package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateBackend() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend.base_url must be set")
	}
	if len(c.Backend.ModelChain) == 0 {
		return errors.New("backend.model_chain must list at least one model")
	}
	seen := make(map[string]struct{}, len(c.Backend.ModelChain))
	for _, model := range c.Backend.ModelChain {
		if _, dup := seen[model]; dup {
			return fmt.Errorf("backend.model_chain lists %q more than once", model)
		}
		seen[model] = struct{}{}
	}
	if c.Backend.PollIntervalSeconds <= 0 {
		return errors.New("backend.poll_interval_seconds must be positive")
	}
	if c.Backend.PollTimeoutSeconds <= 0 {
		return errors.New("backend.poll_timeout_seconds must be positive")
	}
	if c.Backend.PollTimeoutSeconds < c.Backend.PollIntervalSeconds {
		return errors.New("backend.poll_timeout_seconds must be at least poll_interval_seconds")
	}
	if c.Backend.MaxRetriesPerModel < 0 {
		return errors.New("backend.max_retries_per_model must be zero or positive")
	}
	if c.Backend.RetryInitialBackoffMS <= 0 {
		return errors.New("backend.retry_initial_backoff_ms must be positive")
	}
	if c.Backend.RetryMaxBackoffMS < c.Backend.RetryInitialBackoffMS {
		return errors.New("backend.retry_max_backoff_ms must be at least retry_initial_backoff_ms")
	}
	if c.Backend.RequestTimeoutSeconds <= 0 {
		return errors.New("backend.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.Threshold < 0 || c.Quality.Threshold > 100 {
		return errors.New("quality.threshold must be between 0 and 100")
	}
	if c.Quality.TimeoutSeconds <= 0 {
		return errors.New("quality.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxConcurrent < 1 {
		return errors.New("pipeline.max_concurrent must be at least 1")
	}
	if c.Pipeline.MaxRegenerationAttempts < 0 {
		return errors.New("pipeline.max_regeneration_attempts must be zero or positive")
	}
	if c.Pipeline.BatchTimeoutMinutes < 0 {
		return errors.New("pipeline.batch_timeout_minutes must be zero or positive")
	}
	if c.Pipeline.DurationToleranceSeconds < 0 {
		return errors.New("pipeline.duration_tolerance_seconds must be zero or positive")
	}
	if c.Pipeline.ProgressEmitTimeoutMS < 0 {
		return errors.New("pipeline.progress_emit_timeout_ms must be zero or positive")
	}
	return nil
}
