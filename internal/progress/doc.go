// Package progress delivers pipeline lifecycle events via pluggable sinks.
//
// Events cover the major job milestones (started, attempt started/failed,
// quality scored, regenerating, terminal) and carry the scene number, batch
// identifier, and a monotonically increasing sequence number. Delivery is
// fire-and-forget: the Bounded wrapper drops events whose sink blocks past a
// configured budget so a slow consumer can never stall the scheduler.
//
// All pipeline code depends only on the Sink interface; swap in alternative
// transports by implementing it.
package progress
