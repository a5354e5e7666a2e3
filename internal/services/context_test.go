package services_test

import (
	"context"
	"testing"

	"adclip/internal/services"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	if _, ok := services.SceneNumberFromContext(ctx); ok {
		t.Fatal("expected no scene number on empty context")
	}

	ctx = services.WithSceneNumber(ctx, 4)
	ctx = services.WithStage(ctx, "generating")
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithRequestID(ctx, "req-9")

	if scene, ok := services.SceneNumberFromContext(ctx); !ok || scene != 4 {
		t.Fatalf("scene = %d, ok = %v", scene, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "generating" {
		t.Fatalf("stage = %q, ok = %v", stage, ok)
	}
	if batch, ok := services.BatchIDFromContext(ctx); !ok || batch != "batch-1" {
		t.Fatalf("batch = %q, ok = %v", batch, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-9" {
		t.Fatalf("request id = %q, ok = %v", rid, ok)
	}
}

func TestWithStageIgnoresEmpty(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("empty stage should not be stored")
	}
}
