package regen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"adclip/internal/clip"
	"adclip/internal/invoker"
	"adclip/internal/ledger"
	"adclip/internal/logging"
	"adclip/internal/progress"
	"adclip/internal/services"
)

// Invoker runs one generation pass over the model chain.
type Invoker interface {
	Invoke(ctx context.Context, req invoker.Request) (invoker.Result, error)
}

// Evaluator scores a staged artifact. It never fails; scoring outages degrade
// to neutral scores.
type Evaluator interface {
	Evaluate(ctx context.Context, localRef, prompt string) clip.QualityScoreSet
}

// Persister records job state transitions durably.
type Persister interface {
	SaveJob(ctx context.Context, job *clip.ClipJob) error
}

// ArtifactRemover deletes a discarded staged artifact.
type ArtifactRemover interface {
	Remove(localPath string) error
}

// Options configure the accept/regenerate decision.
type Options struct {
	QualityThreshold        float64
	MaxRegenerationAttempts int
	ModelChain              []string
}

// Controller owns the lifecycle of a single clip job. One controller per
// scene; a controller is never shared across goroutines.
type Controller struct {
	invoker   Invoker
	evaluator Evaluator
	persister Persister
	remover   ArtifactRemover
	costs     ledger.Ledger
	sink      progress.Sink
	opts      Options
	logger    *slog.Logger
}

// New constructs a controller. Persister, remover, ledger, and sink may be
// nil; the corresponding side effects are skipped.
func New(inv Invoker, eval Evaluator, persister Persister, remover ArtifactRemover, costs ledger.Ledger, sink progress.Sink, opts Options, logger *slog.Logger) *Controller {
	if sink == nil {
		sink = progress.Noop()
	}
	return &Controller{
		invoker:   inv,
		evaluator: eval,
		persister: persister,
		remover:   remover,
		costs:     costs,
		sink:      sink,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "regen"),
	}
}

// Run drives the job to a terminal status. The job is always terminal on
// return; the error is non-nil only for batch cancellation, which is also
// recorded on the job itself.
func (c *Controller) Run(ctx context.Context, job *clip.ClipJob) error {
	ctx = services.WithSceneNumber(services.WithBatchID(ctx, job.BatchID), job.SceneNumber)
	logger := logging.WithContext(ctx, c.logger)

	c.emit(ctx, progress.NewEvent(progress.EventJobStarted, job.BatchID, job.SceneNumber))

	for {
		// Cancellation checkpoint: top of every generation pass.
		if err := ctx.Err(); err != nil {
			return c.markCancelled(ctx, job, err)
		}

		job.AttemptCount++
		job.Params.Seed = deriveSeed(job.SceneNumber, job.AttemptCount)

		discarded := job.ArtifactRef
		job.Transition(clip.StatusGenerating)
		c.persist(ctx, job)
		c.removeArtifact(logger, discarded)

		started := progress.NewEvent(progress.EventAttemptStarted, job.BatchID, job.SceneNumber)
		started.Attempt = job.AttemptCount
		c.emit(ctx, started)

		result, err := c.invoker.Invoke(ctx, invoker.Request{
			SceneNumber: job.SceneNumber,
			Prompt:      job.Prompt,
			Params:      job.Params,
			ModelChain:  c.opts.ModelChain,
		})
		c.bookAttempts(ctx, job, result.Attempts)

		if err != nil {
			if errors.Is(err, services.ErrCancelled) {
				return c.markCancelled(ctx, job, err)
			}
			logger.Error("generation failed",
				logging.String(logging.FieldEventType, "job_failed"),
				logging.Int(logging.FieldAttempt, job.AttemptCount),
				logging.Error(err),
			)
			failed := progress.NewEvent(progress.EventAttemptFailed, job.BatchID, job.SceneNumber)
			failed.Attempt = job.AttemptCount
			failed.ErrorKind = errorKind(err)
			c.emit(ctx, failed)
			job.SetFailed(err.Error())
			c.persist(ctx, job)
			c.emitTerminal(ctx, job)
			return nil
		}

		job.ModelUsed = result.ModelUsed
		job.ArtifactRef = result.ArtifactRef
		job.ArtifactURL = result.ArtifactURL
		job.Transition(clip.StatusScoring)
		c.persist(ctx, job)

		scores := c.evaluator.Evaluate(ctx, job.ArtifactRef, job.Prompt)
		job.SetScores(scores)
		overall := *job.OverallQuality
		c.persist(ctx, job)

		scored := progress.NewEvent(progress.EventQualityScored, job.BatchID, job.SceneNumber)
		scored.Model = job.ModelUsed
		scored.Attempt = job.AttemptCount
		scored.Score = &overall
		c.emit(ctx, scored)

		if overall >= c.opts.QualityThreshold {
			job.Transition(clip.StatusAccepted)
			c.persist(ctx, job)
			c.emitTerminal(ctx, job)
			return nil
		}

		if job.AttemptCount > c.opts.MaxRegenerationAttempts {
			logger.Info("quality below threshold, attempt budget exhausted",
				logging.String(logging.FieldEventType, "low_quality_accept"),
				logging.Float64("overall", overall),
				logging.Float64("threshold", c.opts.QualityThreshold),
			)
			job.Transition(clip.StatusAcceptedLowQuality)
			c.persist(ctx, job)
			c.emitTerminal(ctx, job)
			return nil
		}

		logger.Info("quality below threshold, regenerating",
			logging.String(logging.FieldEventType, "regenerating"),
			logging.Float64("overall", overall),
			logging.Int(logging.FieldAttempt, job.AttemptCount),
		)
		job.Transition(clip.StatusRegenerating)
		c.persist(ctx, job)
		regenerating := progress.NewEvent(progress.EventRegenerating, job.BatchID, job.SceneNumber)
		regenerating.Attempt = job.AttemptCount
		c.emit(ctx, regenerating)
	}
}

// deriveSeed keeps regeneration deterministic: the same scene and attempt
// always request the same seed.
func deriveSeed(sceneNumber, attemptCount int) int64 {
	return int64(sceneNumber)*1000 + int64(attemptCount)
}

func (c *Controller) markCancelled(ctx context.Context, job *clip.ClipJob, cause error) error {
	discarded := job.ArtifactRef
	job.SetFailed("batch cancelled")
	// The parent context is already cancelled; persistence still has to land.
	c.persist(context.WithoutCancel(ctx), job)
	c.removeArtifact(c.logger, discarded)
	c.emitTerminal(context.WithoutCancel(ctx), job)
	return services.Wrap(services.ErrCancelled, "regen", "run", "batch cancelled", cause)
}

// bookAttempts folds invocation records into the job and appends their spend
// to the ledger immediately, before any accept/regenerate decision.
func (c *Controller) bookAttempts(ctx context.Context, job *clip.ClipJob, attempts []clip.BackendAttempt) {
	job.RecordAttempts(attempts)
	if c.costs == nil {
		return
	}
	for _, attempt := range attempts {
		if attempt.CostUSD <= 0 {
			continue
		}
		entry := ledger.Entry{
			BatchID:     job.BatchID,
			JobID:       fmt.Sprintf("%s/%d", job.BatchID, job.SceneNumber),
			SceneNumber: job.SceneNumber,
			Model:       attempt.Model,
			AmountUSD:   attempt.CostUSD,
		}
		if err := c.costs.Append(context.WithoutCancel(ctx), entry); err != nil {
			c.logger.Warn("ledger append failed", logging.Error(err))
		}
	}
}

func (c *Controller) persist(ctx context.Context, job *clip.ClipJob) {
	if c.persister == nil {
		return
	}
	if err := c.persister.SaveJob(ctx, job); err != nil {
		c.logger.Warn("persist job failed",
			logging.Int(logging.FieldSceneNumber, job.SceneNumber),
			logging.Error(err),
		)
	}
}

func (c *Controller) removeArtifact(logger *slog.Logger, localRef string) {
	if localRef == "" || c.remover == nil {
		return
	}
	if err := c.remover.Remove(localRef); err != nil {
		logger.Debug("failed to remove discarded artifact", logging.Error(err))
	}
}

func (c *Controller) emit(ctx context.Context, event progress.Event) {
	if err := c.sink.Emit(ctx, event); err != nil {
		c.logger.Debug("progress emit failed", logging.Error(err))
	}
}

func (c *Controller) emitTerminal(ctx context.Context, job *clip.ClipJob) {
	event := progress.NewEvent(progress.EventTerminal, job.BatchID, job.SceneNumber)
	event.Status = job.Status
	event.Model = job.ModelUsed
	event.Attempt = job.AttemptCount
	c.emit(ctx, event)
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, services.ErrCancelled):
		return "cancelled"
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	case services.IsPermanent(err):
		return "permanent"
	default:
		return "transient"
	}
}
