package backend

import (
	"context"
	"errors"
	"time"
)

// JobState reports where a submitted generation job stands.
type JobState string

const (
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// SubmitRequest describes one generation call.
type SubmitRequest struct {
	Prompt          string  `json:"prompt"`
	Model           string  `json:"model"`
	Seed            int64   `json:"seed"`
	DurationSeconds float64 `json:"duration_seconds"`
	ReferenceMedia  string  `json:"reference_media,omitempty"`
}

// Handle identifies a submitted remote job.
type Handle struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

// PollResult is one status snapshot for a remote job. CostUSD is the
// backend-reported spend for the attempt, populated on terminal states.
type PollResult struct {
	State       JobState `json:"state"`
	ArtifactURL string   `json:"artifact_url,omitempty"`
	CostUSD     float64  `json:"cost_usd,omitempty"`
	FailureCode string   `json:"failure_code,omitempty"`
	Permanent   bool     `json:"permanent,omitempty"`
}

// Client is the generation service contract consumed by the invoker.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (Handle, error)
	Poll(ctx context.Context, handle Handle) (PollResult, error)
	// Cancel is best-effort; errors are advisory.
	Cancel(ctx context.Context, handle Handle) error
}

// RetryAfterHint extracts a server-provided retry delay from an error, when
// the backend attached one to a rate-limit response.
func RetryAfterHint(err error) (time.Duration, bool) {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter, true
	}
	return 0, false
}
