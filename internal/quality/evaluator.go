package quality

import (
	"context"
	"log/slog"
	"time"

	"adclip/internal/clip"
	"adclip/internal/logging"
)

// Evaluator produces a QualityScoreSet for a finished artifact.
type Evaluator struct {
	model   Model
	timeout time.Duration
	logger  *slog.Logger
}

// NewEvaluator wires a scoring model with a per-call timeout. A non-positive
// timeout disables the deadline.
func NewEvaluator(model Model, timeout time.Duration, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		model:   model,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "quality"),
	}
}

// Evaluate scores an artifact. It never fails: any model error or timeout
// degrades to the neutral score set so a scoring outage cannot block the
// pipeline. The returned set is clamped and carries all dimensions the model
// reported.
func (e *Evaluator) Evaluate(ctx context.Context, localRef, prompt string) clip.QualityScoreSet {
	if e.model == nil {
		e.logger.Warn("no quality model configured; using neutral scores",
			logging.String(logging.FieldEventType, "quality_neutral_fallback"),
		)
		return clip.NeutralScores()
	}

	scoreCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		scoreCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.model.Score(scoreCtx, localRef, prompt)
	if err != nil {
		logger := logging.WithContext(ctx, e.logger)
		logger.Warn("quality model unavailable; using neutral scores",
			logging.String(logging.FieldEventType, "quality_neutral_fallback"),
			logging.Error(err),
		)
		return clip.NeutralScores()
	}

	scores := make(clip.QualityScoreSet, len(raw))
	for dim, score := range raw {
		scores[dim] = score
	}
	return scores.Clamped()
}
