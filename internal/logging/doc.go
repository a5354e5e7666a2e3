// Package logging constructs slog loggers for the clip pipeline.
//
// It supports JSON output for machine consumption and a compact console
// format for interactive runs, exposes Attr helper aliases plus the
// standardized field-name constants used across components, and folds
// context-carried identifiers (batch, scene, stage) into loggers via
// WithContext.
package logging
