package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"adclip/internal/logging"
)

// Sink receives progress events. Implementations must tolerate concurrent
// calls; delivery is best-effort and errors are advisory.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

type noopSink struct{}

func (noopSink) Emit(context.Context, Event) error { return nil }

// Noop returns a sink that discards everything.
func Noop() Sink { return noopSink{} }

type logSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that records events as structured log lines.
func NewLogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &logSink{logger: logging.NewComponentLogger(logger, "progress")}
}

func (s *logSink) Emit(_ context.Context, event Event) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, string(event.Kind)),
		logging.String(logging.FieldBatchID, event.BatchID),
		logging.Int(logging.FieldSceneNumber, event.SceneNumber),
		logging.Int64("sequence", int64(event.Sequence)),
	}
	if event.Model != "" {
		attrs = append(attrs, logging.String(logging.FieldModel, event.Model))
	}
	if event.Attempt > 0 {
		attrs = append(attrs, logging.Int(logging.FieldAttempt, event.Attempt))
	}
	if event.ErrorKind != "" {
		attrs = append(attrs, logging.String("error_kind", event.ErrorKind))
	}
	if event.Score != nil {
		attrs = append(attrs, logging.Float64("score", *event.Score))
	}
	if event.Status != "" {
		attrs = append(attrs, logging.String("status", string(event.Status)))
	}
	s.logger.Info("progress", logging.Args(attrs...)...)
	return nil
}

// Recorder is an in-memory sink for tests and result inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recording sink.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// BoundedSink wraps another sink with a delivery budget. Deliveries that
// block past the budget are abandoned and counted instead of propagating
// backpressure into the pipeline.
type BoundedSink struct {
	inner   Sink
	timeout time.Duration
	logger  *slog.Logger
	dropped atomic.Uint64
}

// Bounded wraps sink with a per-event delivery timeout. A non-positive
// timeout disables the bound.
func Bounded(sink Sink, timeout time.Duration, logger *slog.Logger) *BoundedSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BoundedSink{inner: sink, timeout: timeout, logger: logger}
}

func (b *BoundedSink) Emit(ctx context.Context, event Event) error {
	if b.inner == nil {
		return nil
	}
	if b.timeout <= 0 {
		return b.inner.Emit(ctx, event)
	}

	emitCtx, cancel := context.WithTimeout(ctx, b.timeout)
	done := make(chan error, 1)
	go func() {
		done <- b.inner.Emit(emitCtx, event)
	}()

	select {
	case err := <-done:
		cancel()
		return err
	case <-emitCtx.Done():
		// The delivery goroutine keeps the buffered channel; it is released
		// whenever the slow sink returns.
		go func() {
			<-done
			cancel()
		}()
		b.dropped.Add(1)
		b.logger.Warn("progress event dropped",
			logging.String(logging.FieldEventType, "progress_drop"),
			logging.String("kind", string(event.Kind)),
			logging.Int(logging.FieldSceneNumber, event.SceneNumber),
			logging.Duration("budget", b.timeout),
		)
		return nil
	}
}

// Dropped reports how many events were abandoned.
func (b *BoundedSink) Dropped() uint64 {
	return b.dropped.Load()
}
