// Package regen drives one clip job from pending to a terminal status.
//
// The controller owns its job exclusively: generate, score, then accept,
// regenerate, or give up. Regeneration re-runs the whole model chain with a
// fresh seed derived from (scene number, attempt count), so identical inputs
// reproduce identical behavior. Every status transition is persisted as it
// happens and every completed generation pass books its cost immediately,
// whether or not the artifact survives.
package regen
