package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"adclip/internal/artifacts"
	"adclip/internal/backend"
	"adclip/internal/clip"
	"adclip/internal/invoker"
	"adclip/internal/jobstore"
	"adclip/internal/ledger"
	"adclip/internal/logging"
	"adclip/internal/progress"
	"adclip/internal/quality"
	"adclip/internal/regen"
	"adclip/internal/scheduler"
	"adclip/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var batchID string

	cmd := &cobra.Command{
		Use:   "run <plan.json>",
		Short: "Generate clips for every scene in a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			plan, err := clip.LoadPlan(args[0])
			if err != nil {
				return err
			}

			logger, err := logging.NewForDir(cfg.Paths.LogDir, cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			// One batch at a time per data directory.
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "adclip.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return errors.New("another adclip run is already in progress")
			}
			defer func() { _ = lock.Unlock() }()

			store, err := jobstore.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := backend.NewHTTPClient(backend.Config{
				APIKey:         cfg.Backend.APIKey,
				BaseURL:        cfg.Backend.BaseURL,
				TimeoutSeconds: cfg.Backend.RequestTimeoutSeconds,
			})
			artifactStore := artifacts.NewStore(cfg.Paths.StagingDir, cfg.Pipeline.DurationToleranceSeconds)
			inv := invoker.New(client, artifactStore, invoker.Options{
				PollInterval:       time.Duration(cfg.Backend.PollIntervalSeconds) * time.Second,
				PollTimeout:        time.Duration(cfg.Backend.PollTimeoutSeconds) * time.Second,
				MaxRetriesPerModel: cfg.Backend.MaxRetriesPerModel,
				InitialBackoff:     time.Duration(cfg.Backend.RetryInitialBackoffMS) * time.Millisecond,
				MaxBackoff:         time.Duration(cfg.Backend.RetryMaxBackoffMS) * time.Millisecond,
			}, logger)

			var model quality.Model
			if cfg.Quality.BaseURL != "" {
				model = quality.NewHTTPModel(quality.ModelConfig{
					BaseURL:        cfg.Quality.BaseURL,
					APIKey:         cfg.Quality.APIKey,
					TimeoutSeconds: cfg.Quality.TimeoutSeconds,
				})
			}
			evaluator := quality.NewEvaluator(model, time.Duration(cfg.Quality.TimeoutSeconds)*time.Second, logger)

			sink := progress.Bounded(
				progress.NewLogSink(logger),
				time.Duration(cfg.Pipeline.ProgressEmitTimeoutMS)*time.Millisecond,
				logger,
			)
			batchLedger := ledger.NewMemory()
			costs := ledger.Tee{batchLedger, store.CostLedger()}

			controller := regen.New(inv, evaluator, store, artifactStore, costs, sink, regen.Options{
				QualityThreshold:        cfg.Quality.Threshold,
				MaxRegenerationAttempts: cfg.Pipeline.MaxRegenerationAttempts,
				ModelChain:              cfg.Backend.ModelChain,
			}, logger)
			sched := scheduler.New(controller, store, sink, scheduler.Options{
				MaxConcurrent: cfg.Pipeline.MaxConcurrent,
				BatchTimeout:  time.Duration(cfg.Pipeline.BatchTimeoutMinutes) * time.Minute,
			}, logger)

			result, runErr := sched.RunBatch(runCtx, batchID, plan.Scenes)

			out := cmd.OutOrStdout()
			renderBatchResult(out, result)
			if dropped := sink.Dropped(); dropped > 0 {
				fmt.Fprintf(out, "(%d progress events dropped)\n", dropped)
			}

			if runErr != nil {
				if errors.Is(runErr, services.ErrCancelled) {
					return fmt.Errorf("batch %s interrupted; %d of %d clips finished", result.BatchID, result.Accepted+result.LowQuality, len(result.Jobs))
				}
				return runErr
			}
			if result.Failed > 0 {
				return fmt.Errorf("batch %s finished with %d of %d clips failed", result.BatchID, result.Failed, len(result.Jobs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&batchID, "batch-id", "", "Batch identifier (generated when empty)")
	return cmd
}
