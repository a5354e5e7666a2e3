package invoker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"adclip/internal/backend"
	"adclip/internal/clip"
	"adclip/internal/services"
)

// pollStep is one scripted answer to a Poll call.
type pollStep struct {
	result backend.PollResult
	err    error
}

// scriptStep scripts one Submit call and the polls that follow it.
type scriptStep struct {
	submitErr error
	polls     []pollStep
}

type scriptedClient struct {
	mu      sync.Mutex
	steps   []scriptStep
	submits []backend.SubmitRequest
	polls   map[string][]pollStep
	cancels []string
}

func newScriptedClient(steps ...scriptStep) *scriptedClient {
	return &scriptedClient{steps: steps, polls: make(map[string][]pollStep)}
}

func (c *scriptedClient) Submit(_ context.Context, req backend.SubmitRequest) (backend.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := len(c.submits)
	c.submits = append(c.submits, req)
	if index >= len(c.steps) {
		return backend.Handle{}, fmt.Errorf("unexpected submit %d", index)
	}
	step := c.steps[index]
	if step.submitErr != nil {
		return backend.Handle{}, step.submitErr
	}
	handle := backend.Handle{ID: fmt.Sprintf("req-%d", index), Model: req.Model}
	c.polls[handle.ID] = step.polls
	return handle, nil
}

func (c *scriptedClient) Poll(_ context.Context, handle backend.Handle) (backend.PollResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.polls[handle.ID]
	if len(queue) == 0 {
		// Hold the job in running state until the caller gives up.
		return backend.PollResult{State: backend.StateRunning}, nil
	}
	next := queue[0]
	c.polls[handle.ID] = queue[1:]
	return next.result, next.err
}

func (c *scriptedClient) Cancel(_ context.Context, handle backend.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels = append(c.cancels, handle.ID)
	return nil
}

type fakeStore struct {
	mu          sync.Mutex
	validateErr error
	downloads   []string
	removed     []string
}

func (s *fakeStore) Download(_ context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	local := fmt.Sprintf("/staging/clip-%d.mp4", len(s.downloads))
	s.downloads = append(s.downloads, url)
	return local, nil
}

func (s *fakeStore) Validate(_ context.Context, _ string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateErr
}

func (s *fakeStore) Remove(localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, localPath)
	return nil
}

func transientErr(msg string) error {
	return services.Wrap(services.ErrTransient, "backend", "submit", msg, nil)
}

func permanentErr(msg string) error {
	return services.Wrap(services.ErrPermanent, "backend", "submit", msg, nil)
}

func succeedPoll(url string, cost float64) []pollStep {
	return []pollStep{
		{result: backend.PollResult{State: backend.StateRunning}},
		{result: backend.PollResult{State: backend.StateSucceeded, ArtifactURL: url, CostUSD: cost}},
	}
}

func testOptions() Options {
	return Options{
		PollInterval:       time.Millisecond,
		PollTimeout:        time.Second,
		MaxRetriesPerModel: 2,
		InitialBackoff:     time.Second,
		MaxBackoff:         30 * time.Second,
	}
}

func newTestInvoker(client backend.Client, store ArtifactStore, opts Options, delays *[]time.Duration) *Invoker {
	sleeper := func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return ctx.Err()
	}
	return New(client, store, opts, nil, WithSleeper(sleeper))
}

func TestInvokeSucceedsFirstTry(t *testing.T) {
	client := newScriptedClient(scriptStep{polls: succeedPoll("https://cdn.example/a.mp4", 0.42)})
	store := &fakeStore{}
	inv := newTestInvoker(client, store, testOptions(), nil)

	result, err := inv.Invoke(context.Background(), Request{
		SceneNumber: 1,
		Prompt:      "city at dawn",
		Params:      clip.BackendParams{Seed: 1001, DurationSeconds: 5},
		ModelChain:  []string{"veo-3", "runway-gen4"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.ModelUsed != "veo-3" {
		t.Fatalf("expected first model, got %s", result.ModelUsed)
	}
	if result.ArtifactRef == "" || result.ArtifactURL != "https://cdn.example/a.mp4" {
		t.Fatalf("artifact not staged: %+v", result)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].Outcome != clip.OutcomeSucceeded {
		t.Fatalf("unexpected attempts %+v", result.Attempts)
	}
	if result.Attempts[0].CostUSD != 0.42 {
		t.Fatalf("cost not recorded: %+v", result.Attempts[0])
	}
	if len(client.submits) != 1 || client.submits[0].Seed != 1001 {
		t.Fatalf("unexpected submits %+v", client.submits)
	}
}

func TestInvokeRetriesTransientThenSucceeds(t *testing.T) {
	client := newScriptedClient(
		scriptStep{submitErr: transientErr("rate limited")},
		scriptStep{submitErr: transientErr("rate limited")},
		scriptStep{polls: succeedPoll("https://cdn.example/b.mp4", 0.10)},
	)
	store := &fakeStore{}
	var delays []time.Duration
	inv := newTestInvoker(client, store, testOptions(), &delays)

	result, err := inv.Invoke(context.Background(), Request{
		SceneNumber: 2,
		Prompt:      "product spin",
		Params:      clip.BackendParams{DurationSeconds: 4},
		ModelChain:  []string{"veo-3"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(result.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(result.Attempts))
	}
	for _, attempt := range result.Attempts {
		if attempt.Model != "veo-3" {
			t.Fatalf("retries switched model: %+v", result.Attempts)
		}
	}
	if result.Attempts[0].Outcome != clip.OutcomeTransient || result.Attempts[2].Outcome != clip.OutcomeSucceeded {
		t.Fatalf("unexpected outcomes %+v", result.Attempts)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 backoff waits, got %v", delays)
	}
	if delays[0] < 500*time.Millisecond || delays[0] >= time.Second {
		t.Fatalf("first backoff outside [initial/2, initial): %v", delays[0])
	}
	if delays[1] <= delays[0] {
		t.Fatalf("backoff did not grow: %v", delays)
	}
}

func TestInvokeAdvancesChainOnPermanentFailure(t *testing.T) {
	client := newScriptedClient(
		scriptStep{polls: []pollStep{{result: backend.PollResult{
			State:       backend.StateFailed,
			FailureCode: "content_policy",
			Permanent:   true,
			CostUSD:     0.05,
		}}}},
		scriptStep{polls: succeedPoll("https://cdn.example/c.mp4", 0.30)},
	)
	store := &fakeStore{}
	var delays []time.Duration
	inv := newTestInvoker(client, store, testOptions(), &delays)

	result, err := inv.Invoke(context.Background(), Request{
		SceneNumber: 3,
		Prompt:      "logo reveal",
		ModelChain:  []string{"veo-3", "runway-gen4"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.ModelUsed != "runway-gen4" {
		t.Fatalf("expected fallback model, got %s", result.ModelUsed)
	}
	if len(result.Attempts) != 2 || result.Attempts[0].Outcome != clip.OutcomePermanent {
		t.Fatalf("unexpected attempts %+v", result.Attempts)
	}
	// Spend on the abandoned attempt still counts.
	if result.Attempts[0].CostUSD != 0.05 {
		t.Fatalf("discarded attempt lost its cost: %+v", result.Attempts[0])
	}
	if len(delays) != 0 {
		t.Fatalf("permanent failure should not back off: %v", delays)
	}
}

func TestInvokeExhaustsChain(t *testing.T) {
	client := newScriptedClient(
		scriptStep{submitErr: transientErr("overloaded")},
		scriptStep{submitErr: transientErr("overloaded")},
		scriptStep{submitErr: permanentErr("model retired")},
	)
	opts := testOptions()
	opts.MaxRetriesPerModel = 1
	inv := newTestInvoker(client, &fakeStore{}, opts, nil)

	result, err := inv.Invoke(context.Background(), Request{
		SceneNumber: 4,
		Prompt:      "closing shot",
		ModelChain:  []string{"veo-3", "pika-2"},
	})
	if !services.IsPermanent(err) {
		t.Fatalf("expected permanent chain exhaustion, got %v", err)
	}
	if len(result.Attempts) != 3 {
		t.Fatalf("expected full attempt history, got %+v", result.Attempts)
	}
	if result.Attempts[2].Model != "pika-2" || result.Attempts[2].Outcome != clip.OutcomePermanent {
		t.Fatalf("unexpected final attempt %+v", result.Attempts[2])
	}
}

func TestInvokePollTimeoutCancelsRemoteJob(t *testing.T) {
	// No terminal poll result: the job stays running until the deadline.
	client := newScriptedClient(
		scriptStep{},
		scriptStep{polls: succeedPoll("https://cdn.example/d.mp4", 0.20)},
	)
	opts := testOptions()
	opts.PollInterval = time.Millisecond
	opts.PollTimeout = 10 * time.Millisecond
	inv := newTestInvoker(client, &fakeStore{}, opts, nil)

	result, err := inv.Invoke(context.Background(), Request{
		SceneNumber: 5,
		Prompt:      "slow render",
		ModelChain:  []string{"veo-3"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Attempts[0].Outcome != clip.OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %+v", result.Attempts[0])
	}
	client.mu.Lock()
	cancels := append([]string(nil), client.cancels...)
	client.mu.Unlock()
	if len(cancels) != 1 || cancels[0] != "req-0" {
		t.Fatalf("expected remote cancel for req-0, got %v", cancels)
	}
}

func TestInvokeRemovesArtifactFailingValidation(t *testing.T) {
	client := newScriptedClient(
		scriptStep{polls: succeedPoll("https://cdn.example/e.mp4", 0.15)},
		scriptStep{polls: succeedPoll("https://cdn.example/f.mp4", 0.15)},
	)
	store := &fakeStore{validateErr: services.Wrap(services.ErrValidation, "artifacts", "validate", "duration mismatch", nil)}
	inv := newTestInvoker(client, store, testOptions(), nil)

	result, err := inv.Invoke(context.Background(), Request{
		SceneNumber: 6,
		Prompt:      "broken clip",
		ModelChain:  []string{"veo-3"},
	})
	if !services.IsPermanent(err) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].Outcome != clip.OutcomePermanent {
		t.Fatalf("unexpected attempts %+v", result.Attempts)
	}
	if len(store.removed) != 1 {
		t.Fatalf("rejected artifact not removed: %v", store.removed)
	}
}

func TestInvokeStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := newScriptedClient(scriptStep{polls: succeedPoll("https://cdn.example/g.mp4", 0.1)})
	inv := newTestInvoker(client, &fakeStore{}, testOptions(), nil)

	_, err := inv.Invoke(ctx, Request{SceneNumber: 7, Prompt: "p", ModelChain: []string{"veo-3"}})
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(client.submits) != 0 {
		t.Fatalf("cancelled batch still submitted: %v", client.submits)
	}
}

func TestInvokeRejectsEmptyChain(t *testing.T) {
	inv := newTestInvoker(newScriptedClient(), &fakeStore{}, testOptions(), nil)
	_, err := inv.Invoke(context.Background(), Request{SceneNumber: 1, Prompt: "p"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestBackoffDelayIsDeterministic(t *testing.T) {
	inv := newTestInvoker(newScriptedClient(), &fakeStore{}, testOptions(), nil)
	first := inv.backoffDelay(9, 0, 2, transientErr("x"))
	second := inv.backoffDelay(9, 0, 2, transientErr("x"))
	if first != second {
		t.Fatalf("jitter not deterministic: %v vs %v", first, second)
	}
	capped := inv.backoffDelay(9, 0, 50, transientErr("x"))
	if capped >= inv.opts.MaxBackoff {
		t.Fatalf("delay exceeds cap: %v", capped)
	}
}
