package logging

import (
	"context"
	"log/slog"

	"adclip/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSceneNumber is the standardized structured logging key for scene numbers.
	FieldSceneNumber = "scene_number"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldBatchID is the standardized structured logging key for batch identifiers.
	FieldBatchID = "batch_id"
	// FieldModel is the standardized structured logging key for backend model names.
	FieldModel = "model"
	// FieldAttempt is the standardized structured logging key for attempt counters.
	FieldAttempt = "attempt"
	// FieldEventType tags log records with a machine-filterable event kind.
	FieldEventType = "event_type"
	// FieldCorrelationID is the standardized structured logging key for backend request identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if batch, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, batch))
	}
	if scene, ok := services.SceneNumberFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldSceneNumber, scene))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
