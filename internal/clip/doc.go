// Package clip defines the data model for the clip-generation pipeline.
//
// A ClipJob tracks one scene's journey from prompt to finished artifact:
// lifecycle status, backend attempt history, quality scores, and accumulated
// cost. SceneRequest is the immutable upstream input, QualityScoreSet the
// weighted rubric output, and BatchResult the ordered terminal snapshot of a
// whole batch.
//
// Jobs are exclusively owned and mutated by their regeneration controller;
// once a job reaches a terminal status it is treated as immutable and only
// read for result assembly and persistence.
package clip
