// Package backend talks to the remote clip-generation service.
//
// The Client interface covers the three-call contract the invoker needs:
// submit a generation request, poll the resulting job handle, and best-effort
// cancel. The HTTP implementation classifies responses into the pipeline's
// error taxonomy (rate limits and 5xx as transient, validation rejections as
// permanent) and surfaces Retry-After hints so the invoker's backoff can
// honour them. Retry and fallback policy live in the invoker, not here: every
// method performs exactly one remote call.
package backend
