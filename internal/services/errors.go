package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying against the same model:
	// rate limits, 5xx responses, network hiccups.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures that exhaust a model: prompt rejection,
	// unsupported parameters, repeated validation failures.
	ErrPermanent = errors.New("permanent failure")
	// ErrTimeout marks poll or request deadline expiry. Classified as
	// transient by the invoker but kept distinct for attempt records.
	ErrTimeout = errors.New("timeout")
	// ErrValidation marks a downloaded artifact that failed local checks.
	ErrValidation = errors.New("validation error")
	// ErrQualityModel marks scoring outages. Never propagated past the
	// evaluator; the pipeline substitutes a neutral score instead.
	ErrQualityModel = errors.New("quality model error")
	// ErrConfiguration marks unusable settings detected at runtime.
	ErrConfiguration = errors.New("configuration error")
	// ErrCancelled marks a cooperative stop requested at the batch level.
	ErrCancelled = errors.New("cancellation requested")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error should be retried against the same
// model. Timeouts count as retryable per the pipeline's taxonomy.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// IsPermanent reports whether an error should abandon the current model and
// advance the fallback chain. Artifact validation failures count as permanent
// for the model that produced them.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
