// Package invoker performs one logical "generate artifact" call against the
// rendering backend.
//
// It owns the whole retry surface: models from the configured chain are tried
// in order, each with its own retry budget and exponential backoff, and a
// submitted job is polled until it finishes or the poll deadline forces a
// best-effort remote cancel. Callers receive either a validated local
// artifact or a permanent failure, always accompanied by the full attempt
// history; no retry decisions leak upward.
package invoker
