package config

const (
	defaultDataDir                  = "~/.local/share/adclip"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultBackendBaseURL           = "https://api.render.example.com/v1"
	defaultPollIntervalSeconds      = 5
	defaultPollTimeoutSeconds       = 600
	defaultMaxRetriesPerModel       = 3
	defaultRetryInitialBackoffMS    = 1000
	defaultRetryMaxBackoffMS        = 30000
	defaultRequestTimeoutSeconds    = 30
	defaultQualityThreshold         = 70.0
	defaultQualityTimeoutSeconds    = 120
	defaultMaxConcurrent            = 3
	defaultMaxRegenerationAttempts  = 1
	defaultDurationToleranceSeconds = 1.5
	defaultProgressEmitTimeoutMS    = 250
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Backend: Backend{
			BaseURL:               defaultBackendBaseURL,
			ModelChain:            []string{"veo-3", "runway-gen4", "pika-2"},
			PollIntervalSeconds:   defaultPollIntervalSeconds,
			PollTimeoutSeconds:    defaultPollTimeoutSeconds,
			MaxRetriesPerModel:    defaultMaxRetriesPerModel,
			RetryInitialBackoffMS: defaultRetryInitialBackoffMS,
			RetryMaxBackoffMS:     defaultRetryMaxBackoffMS,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
		},
		Quality: Quality{
			Threshold:      defaultQualityThreshold,
			TimeoutSeconds: defaultQualityTimeoutSeconds,
		},
		Pipeline: Pipeline{
			MaxConcurrent:            defaultMaxConcurrent,
			MaxRegenerationAttempts:  defaultMaxRegenerationAttempts,
			DurationToleranceSeconds: defaultDurationToleranceSeconds,
			ProgressEmitTimeoutMS:    defaultProgressEmitTimeoutMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
