// Package scheduler fans a batch of scenes out to bounded-parallel clip
// controllers and assembles the ordered batch result.
//
// Scenes run independently: one scene's failure is recorded, never propagated
// to siblings. A panic inside a scene task is caught, recorded as a failed
// job, and the batch continues. Cancellation is cooperative; in-flight tasks
// stop at their next checkpoint and the result still covers every scene.
package scheduler
