package progress

import (
	"context"
	"testing"
	"time"

	"adclip/internal/clip"
)

func TestNewEventSequencesIncrease(t *testing.T) {
	first := NewEvent(EventJobStarted, "batch-1", 1)
	second := NewEvent(EventTerminal, "batch-1", 1)
	if second.Sequence <= first.Sequence {
		t.Fatalf("sequence did not increase: %d then %d", first.Sequence, second.Sequence)
	}
}

func TestRecorderCollectsEvents(t *testing.T) {
	recorder := NewRecorder()
	event := NewEvent(EventQualityScored, "batch-1", 2)
	score := 88.5
	event.Score = &score
	if err := recorder.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	events := recorder.Events()
	if len(events) != 1 {
		t.Fatalf("recorded %d events", len(events))
	}
	if events[0].Score == nil || *events[0].Score != 88.5 {
		t.Fatalf("score not preserved: %+v", events[0])
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(ctx context.Context, _ Event) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestBoundedSinkDropsSlowDelivery(t *testing.T) {
	blocking := &blockingSink{release: make(chan struct{})}
	defer close(blocking.release)

	bounded := Bounded(blocking, 10*time.Millisecond, nil)
	start := time.Now()
	if err := bounded.Emit(context.Background(), NewEvent(EventJobStarted, "batch-1", 1)); err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("bounded emit blocked for %v", elapsed)
	}
	if bounded.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", bounded.Dropped())
	}
}

func TestBoundedSinkPassesFastDelivery(t *testing.T) {
	recorder := NewRecorder()
	bounded := Bounded(recorder, 100*time.Millisecond, nil)
	event := NewEvent(EventTerminal, "batch-1", 3)
	event.Status = clip.StatusAccepted
	if err := bounded.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(recorder.Events()) != 1 {
		t.Fatal("fast delivery should reach the inner sink")
	}
	if bounded.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", bounded.Dropped())
	}
}
