package jobstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"adclip/internal/clip"
	"adclip/internal/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleJob(batchID string, scene int) *clip.ClipJob {
	return clip.NewJob(batchID, clip.SceneRequest{
		SceneNumber:     scene,
		Prompt:          "wide shot of a harbor",
		DurationSeconds: 5,
	})
}

func TestSaveAndGetJobRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := sampleJob("batch-1", 1)
	job.Params.Seed = 1001
	job.AttemptCount = 2
	job.ModelUsed = "runway-gen4"
	job.RecordAttempts([]clip.BackendAttempt{
		{
			Model:       "veo-3",
			RequestID:   "req-0",
			StartedAt:   time.Now().UTC().Add(-time.Minute),
			CompletedAt: time.Now().UTC().Add(-50 * time.Second),
			Outcome:     clip.OutcomePermanent,
			ErrorKind:   "permanent",
			ErrorDetail: "content policy",
			CostUSD:     0.05,
		},
		{
			Model:       "runway-gen4",
			RequestID:   "req-1",
			StartedAt:   time.Now().UTC().Add(-40 * time.Second),
			CompletedAt: time.Now().UTC(),
			Outcome:     clip.OutcomeSucceeded,
			CostUSD:     0.30,
		},
	})
	job.SetScores(clip.QualityScoreSet{clip.DimOverallAlignment: 82, clip.DimImagingQuality: 76})
	job.ArtifactRef = "/staging/clip-a.mp4"
	job.ArtifactURL = "https://cdn.example/a.mp4"
	job.Transition(clip.StatusAccepted)

	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	loaded, err := store.GetJob(ctx, "batch-1", 1)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected job, got nil")
	}
	if loaded.Status != clip.StatusAccepted || loaded.ModelUsed != "runway-gen4" {
		t.Fatalf("unexpected job %+v", loaded)
	}
	if loaded.Params.Seed != 1001 {
		t.Fatalf("seed lost: %+v", loaded.Params)
	}
	if loaded.CostUSD != 0.35 {
		t.Fatalf("cost lost: %v", loaded.CostUSD)
	}
	if len(loaded.AttemptHistory) != 2 || loaded.AttemptHistory[0].Outcome != clip.OutcomePermanent {
		t.Fatalf("attempt history lost: %+v", loaded.AttemptHistory)
	}
	if loaded.OverallQuality == nil || loaded.QualityScores[clip.DimOverallAlignment] != 82 {
		t.Fatalf("quality scores lost: %+v", loaded)
	}
	if loaded.CompletedAt == nil {
		t.Fatal("terminal job missing completion time")
	}
}

func TestGetJobReturnsNilWhenAbsent(t *testing.T) {
	store := openTestStore(t)
	job, err := store.GetJob(context.Background(), "missing", 1)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil, got %+v", job)
	}
}

func TestSaveJobUpsertsTransitions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	job := sampleJob("batch-2", 3)
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob pending: %v", err)
	}
	job.Transition(clip.StatusGenerating)
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob generating: %v", err)
	}

	jobs, err := store.ListBatch(ctx, "batch-2")
	if err != nil {
		t.Fatalf("ListBatch: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("upsert produced %d rows", len(jobs))
	}
	if jobs[0].Status != clip.StatusGenerating {
		t.Fatalf("status not updated: %s", jobs[0].Status)
	}
}

func TestListBatchOrdersByScene(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, scene := range []int{3, 1, 2} {
		if err := store.SaveJob(ctx, sampleJob("batch-3", scene)); err != nil {
			t.Fatalf("SaveJob scene %d: %v", scene, err)
		}
	}

	jobs, err := store.ListBatch(ctx, "batch-3")
	if err != nil {
		t.Fatalf("ListBatch: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i, job := range jobs {
		if job.SceneNumber != i+1 {
			t.Fatalf("jobs out of order: %+v", jobs)
		}
	}
}

func TestListBatchesSummarizesStatuses(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	accepted := sampleJob("batch-4", 1)
	accepted.AddCost(0.40)
	accepted.Transition(clip.StatusAccepted)
	failed := sampleJob("batch-4", 2)
	failed.SetFailed("model chain exhausted")
	for _, job := range []*clip.ClipJob{accepted, failed} {
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	summaries, err := store.ListBatches(ctx, 10)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one batch, got %d", len(summaries))
	}
	summary := summaries[0]
	if summary.Jobs != 2 || summary.Accepted != 1 || summary.Failed != 1 || summary.LowQuality != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.TotalCostUSD != 0.40 {
		t.Fatalf("unexpected total cost %v", summary.TotalCostUSD)
	}
}

func TestLedgerAppendAndSum(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	costs := store.CostLedger()

	for i, amount := range []float64{0.25, 0.10} {
		entry := ledger.Entry{
			BatchID:     "batch-5",
			JobID:       "batch-5/1",
			SceneNumber: 1,
			Model:       "veo-3",
			AmountUSD:   amount,
		}
		if err := costs.Append(ctx, entry); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	total, err := store.BatchSpend(ctx, "batch-5")
	if err != nil {
		t.Fatalf("BatchSpend: %v", err)
	}
	if total != 0.35 {
		t.Fatalf("unexpected total %v", total)
	}

	entries, err := store.BatchEntries(ctx, "batch-5")
	if err != nil {
		t.Fatalf("BatchEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].AmountUSD != 0.25 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].RecordedAt.IsZero() {
		t.Fatal("recorded_at not stamped")
	}
}
