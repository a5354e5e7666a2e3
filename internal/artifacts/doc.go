// Package artifacts downloads finished clips into the staging directory and
// validates them before the pipeline accepts an attempt.
//
// Validation covers the cheap local checks the invoker needs: the file exists
// with a non-zero size, and its container duration sits within tolerance of
// the requested scene duration. Duration probing goes through ffprobe by
// default; tests inject a stub prober.
package artifacts
