// Package jobstore persists clip jobs, their backend attempt history, and the
// append-only cost ledger in SQLite.
//
// The database is the durable record a batch leaves behind: every status
// transition is written as it happens, so an operator can inspect a finished
// or interrupted batch later. Writes retry briefly on SQLITE_BUSY because
// per-scene tasks persist concurrently.
package jobstore
