// Package services defines shared utilities consumed by the clip pipeline
// components and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp scene numbers, stage names, and batch
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify backend
//     and quality-model failures into the pipeline's retry taxonomy.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error classification, observability, retries) stays uniform across the
// generation loop.
package services
