package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"adclip/internal/clip"
	"adclip/internal/logging"
	"adclip/internal/progress"
	"adclip/internal/services"
)

// Runner drives one job to a terminal status. Implemented by regen.Controller.
type Runner interface {
	Run(ctx context.Context, job *clip.ClipJob) error
}

// Persister is the fallback persistence hook for jobs that fail outside the
// controller, e.g. on panic.
type Persister interface {
	SaveJob(ctx context.Context, job *clip.ClipJob) error
}

// Options bound batch execution.
type Options struct {
	MaxConcurrent int
	// BatchTimeout is an optional wall-clock ceiling; zero disables it.
	BatchTimeout time.Duration
}

// Scheduler runs batches.
type Scheduler struct {
	runner    Runner
	persister Persister
	sink      progress.Sink
	opts      Options
	logger    *slog.Logger
}

// New constructs a scheduler. Persister and sink may be nil.
func New(runner Runner, persister Persister, sink progress.Sink, opts Options, logger *slog.Logger) *Scheduler {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if sink == nil {
		sink = progress.Noop()
	}
	return &Scheduler{
		runner:    runner,
		persister: persister,
		sink:      sink,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
	}
}

// RunBatch executes every scene and returns the result ordered by scene
// number. The result always covers all scenes, failed ones included; the
// error reports batch-level problems (bad plan, cancellation, deadline), not
// per-scene failures.
func (s *Scheduler) RunBatch(ctx context.Context, batchID string, scenes []clip.SceneRequest) (clip.BatchResult, error) {
	if err := clip.ValidateScenes(scenes); err != nil {
		return clip.BatchResult{}, services.Wrap(services.ErrValidation, "scheduler", "run-batch", "invalid scene plan", err)
	}
	if batchID == "" {
		batchID = uuid.NewString()
	}

	batchCtx := services.WithBatchID(ctx, batchID)
	cancel := context.CancelFunc(func() {})
	if s.opts.BatchTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(batchCtx, s.opts.BatchTimeout)
	}
	defer cancel()

	logger := logging.WithContext(batchCtx, s.logger)
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_started"),
		logging.Int("scenes", len(scenes)),
		logging.Int("max_concurrent", s.opts.MaxConcurrent),
	)

	start := time.Now()
	jobs := make([]*clip.ClipJob, len(scenes))
	for i, scene := range scenes {
		jobs[i] = clip.NewJob(batchID, scene)
	}

	group := new(errgroup.Group)
	group.SetLimit(s.opts.MaxConcurrent)
	for _, job := range jobs {
		group.Go(func() error {
			s.runScene(batchCtx, job)
			return nil
		})
	}
	// Scene tasks never return errors; failures live on the jobs.
	_ = group.Wait()

	snapshots := make([]clip.ClipJob, len(jobs))
	for i, job := range jobs {
		snapshots[i] = job.Snapshot()
	}
	result := clip.NewBatchResult(batchID, snapshots, time.Since(start))

	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.Int("accepted", result.Accepted),
		logging.Int("low_quality", result.LowQuality),
		logging.Int("failed", result.Failed),
		logging.Float64("total_cost_usd", result.TotalCostUSD),
		logging.Duration("wall_time", result.WallTime),
	)

	if err := batchCtx.Err(); err != nil {
		return result, services.Wrap(services.ErrCancelled, "scheduler", "run-batch", "batch interrupted", err)
	}
	return result, nil
}

// runScene isolates one scene task: a panic is recorded as a failed job and
// never reaches siblings.
func (s *Scheduler) runScene(ctx context.Context, job *clip.ClipJob) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scene task panicked",
				logging.Int(logging.FieldSceneNumber, job.SceneNumber),
				logging.Any("panic", r),
			)
			job.SetFailed(fmt.Sprintf("internal error: %v", r))
			if s.persister != nil {
				if err := s.persister.SaveJob(context.WithoutCancel(ctx), job); err != nil {
					s.logger.Warn("persist panicked job failed", logging.Error(err))
				}
			}
			s.emitTerminal(ctx, job)
		}
	}()

	if err := s.runner.Run(ctx, job); err != nil {
		// Cancellation is the only error a controller surfaces; the job is
		// already terminal at this point.
		s.logger.Warn("scene stopped early",
			logging.Int(logging.FieldSceneNumber, job.SceneNumber),
			logging.Error(err),
		)
	}
	if !job.IsTerminal() {
		job.SetFailed("controller exited without terminal status")
		if s.persister != nil {
			if err := s.persister.SaveJob(context.WithoutCancel(ctx), job); err != nil {
				s.logger.Warn("persist job failed", logging.Error(err))
			}
		}
		s.emitTerminal(ctx, job)
	}
}

func (s *Scheduler) emitTerminal(ctx context.Context, job *clip.ClipJob) {
	event := progress.NewEvent(progress.EventTerminal, job.BatchID, job.SceneNumber)
	event.Status = job.Status
	if err := s.sink.Emit(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Debug("progress emit failed", logging.Error(err))
	}
}
