// Package quality scores finished clips against the acceptance rubric.
//
// The Model interface wraps the external scoring service; Evaluator turns its
// per-dimension output into a clamped QualityScoreSet with the cached overall
// aggregate. Scoring is deliberately unable to fail the pipeline: model
// errors and timeouts degrade to a neutral 50 on every dimension so a scoring
// outage never blocks clip generation.
package quality
