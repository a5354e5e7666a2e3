// Command adclip turns a batch of scene descriptions into finished video
// clips: it dispatches generation jobs to the rendering backend, scores the
// results, regenerates low-quality clips within budget, and reports the
// outcome per scene.
package main
