// Package config loads, normalizes, and validates adclip configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ADCLIP_BACKEND_API_KEY. The Config type centralizes every knob the CLI and
// pipeline need: backend connection and retry budgets, quality thresholds,
// concurrency limits, and data directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
