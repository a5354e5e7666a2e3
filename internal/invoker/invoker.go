package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adclip/internal/backend"
	"adclip/internal/clip"
	"adclip/internal/logging"
	"adclip/internal/services"
)

// ArtifactStore is the slice of the artifact layer the invoker needs.
type ArtifactStore interface {
	Download(ctx context.Context, url string) (string, error)
	Validate(ctx context.Context, localPath string, expectedDuration float64) error
	Remove(localPath string) error
}

// Options bundle the retry and polling budgets.
type Options struct {
	PollInterval       time.Duration
	PollTimeout        time.Duration
	MaxRetriesPerModel int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
}

// Request describes one generation pass for a scene.
type Request struct {
	SceneNumber int
	Prompt      string
	Params      clip.BackendParams
	ModelChain  []string
}

// Result is a successful generation outcome. Attempts always carries every
// invocation record produced during the pass, success or not.
type Result struct {
	ArtifactRef string
	ArtifactURL string
	ModelUsed   string
	Attempts    []clip.BackendAttempt
}

// Invoker drives the model chain for single generation passes.
type Invoker struct {
	client backend.Client
	store  ArtifactStore
	opts   Options
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// InvokerOption customizes construction.
type InvokerOption func(*Invoker)

// WithSleeper overrides how backoff waits are performed (used in tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) InvokerOption {
	return func(i *Invoker) {
		if sleep != nil {
			i.sleep = sleep
		}
	}
}

// New constructs an invoker.
func New(client backend.Client, store ArtifactStore, opts Options, logger *slog.Logger, invOpts ...InvokerOption) *Invoker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 10 * time.Minute
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	inv := &Invoker{
		client: client,
		store:  store,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "invoker"),
		sleep:  sleepWithContext,
	}
	for _, opt := range invOpts {
		opt(inv)
	}
	return inv
}

// chainProgress is the tagged fallback state: which model we are on and which
// try within that model's budget. Keeping it explicit keeps attempt-history
// bookkeeping auditable.
type chainProgress struct {
	modelIndex int
	try        int // 1-based within the current model
}

func (p chainProgress) exhausted(chain []string) bool {
	return p.modelIndex >= len(chain)
}

// Invoke runs one generation pass: models in chain order, each retried within
// its budget, transient failures backed off exponentially. The returned
// Result carries every attempt record; on chain exhaustion the error wraps
// services.ErrPermanent.
func (i *Invoker) Invoke(ctx context.Context, req Request) (Result, error) {
	result := Result{}
	if len(req.ModelChain) == 0 {
		return result, services.Wrap(services.ErrConfiguration, "invoker", "invoke", "empty model chain", nil)
	}

	logger := logging.WithContext(ctx, i.logger)
	triesPerModel := i.opts.MaxRetriesPerModel + 1
	state := chainProgress{modelIndex: 0, try: 1}
	var lastErr error

	for !state.exhausted(req.ModelChain) {
		// Batch-level cancellation checkpoint: checked before every new
		// backend submission.
		if err := ctx.Err(); err != nil {
			return result, services.Wrap(services.ErrCancelled, "invoker", "invoke", "batch cancelled", err)
		}

		model := req.ModelChain[state.modelIndex]
		attempt, artifact, err := i.tryModelOnce(ctx, logger, req, model)
		result.Attempts = append(result.Attempts, attempt)

		if err == nil {
			result.ArtifactRef = artifact.localRef
			result.ArtifactURL = artifact.url
			result.ModelUsed = model
			return result, nil
		}
		lastErr = err

		if errors.Is(err, services.ErrCancelled) || ctx.Err() != nil {
			return result, services.Wrap(services.ErrCancelled, "invoker", "invoke", "batch cancelled", err)
		}

		if services.IsPermanent(err) {
			logger.Warn("model failed permanently; advancing chain",
				logging.String(logging.FieldEventType, "model_abandoned"),
				logging.String(logging.FieldModel, model),
				logging.Error(err),
			)
			state = chainProgress{modelIndex: state.modelIndex + 1, try: 1}
			continue
		}

		// Transient (including poll timeout): retry the same model while
		// budget remains, otherwise advance.
		if state.try >= triesPerModel {
			logger.Warn("model retry budget exhausted; advancing chain",
				logging.String(logging.FieldEventType, "model_budget_exhausted"),
				logging.String(logging.FieldModel, model),
				logging.Int("tries", state.try),
			)
			state = chainProgress{modelIndex: state.modelIndex + 1, try: 1}
			continue
		}

		delay := i.backoffDelay(req.SceneNumber, state.modelIndex, state.try, err)
		logger.Debug("retrying model after backoff",
			logging.String(logging.FieldModel, model),
			logging.Int(logging.FieldAttempt, state.try),
			logging.Duration("backoff", delay),
		)
		if sleepErr := i.sleep(ctx, delay); sleepErr != nil {
			return result, services.Wrap(services.ErrCancelled, "invoker", "invoke", "cancelled during backoff", sleepErr)
		}
		state.try++
	}

	return result, services.Wrap(
		services.ErrPermanent,
		"invoker",
		"invoke",
		fmt.Sprintf("model chain exhausted after %d attempts", len(result.Attempts)),
		lastErr,
	)
}

type stagedArtifact struct {
	localRef string
	url      string
}

// tryModelOnce performs one submit/poll/download cycle and produces the
// attempt record for it.
func (i *Invoker) tryModelOnce(ctx context.Context, logger *slog.Logger, req Request, model string) (clip.BackendAttempt, stagedArtifact, error) {
	attempt := clip.BackendAttempt{
		Model:     model,
		StartedAt: time.Now().UTC(),
	}
	finish := func(outcome clip.AttemptOutcome, err error) (clip.BackendAttempt, stagedArtifact, error) {
		attempt.CompletedAt = time.Now().UTC()
		attempt.Outcome = outcome
		if err != nil {
			attempt.ErrorKind = errorKind(err)
			attempt.ErrorDetail = err.Error()
		}
		return attempt, stagedArtifact{}, err
	}

	handle, err := i.client.Submit(ctx, backend.SubmitRequest{
		Prompt:          req.Prompt,
		Model:           model,
		Seed:            req.Params.Seed,
		DurationSeconds: req.Params.DurationSeconds,
		ReferenceMedia:  req.Params.ReferenceMedia,
	})
	if err != nil {
		return finish(outcomeFor(err), err)
	}
	attempt.RequestID = handle.ID

	poll, err := i.pollUntilDone(ctx, handle)
	attempt.CostUSD = poll.CostUSD
	if err != nil {
		return finish(outcomeFor(err), err)
	}

	if poll.State == backend.StateFailed {
		marker := services.ErrTransient
		outcome := clip.OutcomeTransient
		if poll.Permanent {
			marker = services.ErrPermanent
			outcome = clip.OutcomePermanent
		}
		failErr := services.Wrap(marker, "invoker", "generate", fmt.Sprintf("backend failure %s", poll.FailureCode), nil)
		return finish(outcome, failErr)
	}

	localRef, err := i.store.Download(ctx, poll.ArtifactURL)
	if err != nil {
		return finish(outcomeFor(err), err)
	}
	if err := i.store.Validate(ctx, localRef, req.Params.DurationSeconds); err != nil {
		if removeErr := i.store.Remove(localRef); removeErr != nil {
			logger.Debug("failed to remove rejected artifact", logging.Error(removeErr))
		}
		return finish(outcomeFor(err), err)
	}

	attempt.CompletedAt = time.Now().UTC()
	attempt.Outcome = clip.OutcomeSucceeded
	return attempt, stagedArtifact{localRef: localRef, url: poll.ArtifactURL}, nil
}

// pollUntilDone waits for a submitted job to finish. On poll-deadline expiry
// it cancels the remote job best-effort and classifies the attempt as a
// timeout (retryable).
func (i *Invoker) pollUntilDone(ctx context.Context, handle backend.Handle) (backend.PollResult, error) {
	deadline := time.NewTimer(i.opts.PollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(i.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The remote job is allowed to finish; we just stop waiting.
			i.cancelRemote(handle)
			return backend.PollResult{}, services.Wrap(services.ErrCancelled, "invoker", "poll", "batch cancelled", ctx.Err())
		case <-deadline.C:
			i.cancelRemote(handle)
			return backend.PollResult{}, services.Wrap(services.ErrTimeout, "invoker", "poll", fmt.Sprintf("no result within %s", i.opts.PollTimeout), nil)
		case <-ticker.C:
			result, err := i.client.Poll(ctx, handle)
			if err != nil {
				if services.IsRetryable(err) {
					// Poll hiccups are absorbed; the deadline bounds them.
					continue
				}
				return backend.PollResult{}, err
			}
			if result.State != backend.StateRunning {
				return result, nil
			}
		}
	}
}

func (i *Invoker) cancelRemote(handle backend.Handle) {
	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := i.client.Cancel(cancelCtx, handle); err != nil {
		i.logger.Debug("best-effort remote cancel failed",
			logging.String(logging.FieldCorrelationID, handle.ID),
			logging.Error(err),
		)
	}
}

func outcomeFor(err error) clip.AttemptOutcome {
	switch {
	case err == nil:
		return clip.OutcomeSucceeded
	case errors.Is(err, services.ErrCancelled):
		return clip.OutcomeCancelled
	case errors.Is(err, services.ErrTimeout):
		return clip.OutcomeTimeout
	case services.IsPermanent(err):
		return clip.OutcomePermanent
	default:
		return clip.OutcomeTransient
	}
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, services.ErrCancelled):
		return "cancelled"
	case errors.Is(err, services.ErrTimeout):
		return "timeout"
	case errors.Is(err, services.ErrValidation):
		return "validation"
	case services.IsPermanent(err):
		return "permanent"
	default:
		return "transient"
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
