package clip

import (
	"testing"
	"time"
)

func sampleScene() SceneRequest {
	return SceneRequest{SceneNumber: 1, Prompt: "sunrise over the product", DurationSeconds: 6}
}

func TestNewJobDefaults(t *testing.T) {
	job := NewJob("batch-1", sampleScene())
	if job.Status != StatusPending {
		t.Fatalf("new job status = %s", job.Status)
	}
	if job.Params.DurationSeconds != 6 {
		t.Fatalf("params duration = %v", job.Params.DurationSeconds)
	}
	if job.CostUSD != 0 || job.AttemptCount != 0 {
		t.Fatal("new job must start with zero cost and attempts")
	}
}

func TestAddCostIsMonotone(t *testing.T) {
	job := NewJob("batch-1", sampleScene())
	job.AddCost(0.50)
	job.AddCost(-2)
	job.AddCost(0.25)
	if job.CostUSD != 0.75 {
		t.Fatalf("cost = %v, want 0.75", job.CostUSD)
	}
}

func TestRecordAttemptsAccumulatesCost(t *testing.T) {
	job := NewJob("batch-1", sampleScene())
	job.RecordAttempts([]BackendAttempt{
		{Model: "veo-3", Outcome: OutcomeTransient, CostUSD: 0.10},
		{Model: "veo-3", Outcome: OutcomeSucceeded, CostUSD: 0.90},
	})
	if len(job.AttemptHistory) != 2 {
		t.Fatalf("attempt history length = %d", len(job.AttemptHistory))
	}
	if job.CostUSD != 1.0 {
		t.Fatalf("cost = %v, want 1.0", job.CostUSD)
	}
}

func TestSetScoresCachesOverall(t *testing.T) {
	job := NewJob("batch-1", sampleScene())
	job.SetScores(QualityScoreSet{DimOverallAlignment: 80})
	if job.OverallQuality == nil {
		t.Fatal("overall quality not cached")
	}
	if *job.OverallQuality != 80 {
		t.Fatalf("overall = %v, want 80", *job.OverallQuality)
	}
}

func TestTransitionClearsArtifactOutsideArtifactStatuses(t *testing.T) {
	job := NewJob("batch-1", sampleScene())
	job.ArtifactRef = "/tmp/clip.mp4"
	job.ArtifactURL = "https://cdn.example.com/clip.mp4"

	job.Transition(StatusScoring)
	if job.ArtifactRef == "" {
		t.Fatal("scoring must keep the artifact reference")
	}

	job.SetFailed("chain exhausted")
	if job.ArtifactRef != "" || job.ArtifactURL != "" {
		t.Fatal("failed jobs must not carry an artifact reference")
	}
	if job.CompletedAt == nil {
		t.Fatal("terminal transition must stamp completion time")
	}
	if !job.IsTerminal() {
		t.Fatal("failed is terminal")
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	job := NewJob("batch-1", sampleScene())
	job.RecordAttempts([]BackendAttempt{{Model: "veo-3", Outcome: OutcomeSucceeded, CostUSD: 1}})
	job.SetScores(NeutralScores())
	now := time.Now().UTC()
	job.CompletedAt = &now

	snap := job.Snapshot()
	snap.AttemptHistory[0].Model = "changed"
	snap.QualityScores[DimImagingQuality] = 1
	*snap.OverallQuality = 1

	if job.AttemptHistory[0].Model != "veo-3" {
		t.Fatal("snapshot shares attempt history backing array")
	}
	if job.QualityScores[DimImagingQuality] != 50 {
		t.Fatal("snapshot shares score map")
	}
	if *job.OverallQuality == 1 {
		t.Fatal("snapshot shares overall pointer")
	}
}
