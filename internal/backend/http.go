package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"adclip/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings required to talk to the generation
// service.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// HTTPClient implements Client against the generation service's REST API.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPClient constructs a generation service client.
func NewHTTPClient(cfg Config, opts ...Option) *HTTPClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &HTTPClient{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type submitResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type pollResponse struct {
	Status      string  `json:"status"`
	ArtifactURL string  `json:"artifact_url,omitempty"`
	CostUSD     float64 `json:"cost_usd,omitempty"`
	FailureCode string  `json:"failure_code,omitempty"`
	Permanent   bool    `json:"permanent,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Submit enqueues one generation job and returns its remote handle.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (Handle, error) {
	var empty Handle
	if strings.TrimSpace(req.Prompt) == "" {
		return empty, services.Wrap(services.ErrPermanent, "backend", "submit", "prompt required", nil)
	}
	if strings.TrimSpace(req.Model) == "" {
		return empty, services.Wrap(services.ErrPermanent, "backend", "submit", "model required", nil)
	}

	var parsed submitResponse
	if err := c.postJSON(ctx, "/generations", req, &parsed); err != nil {
		return empty, classify("submit", err)
	}
	if parsed.Error != "" {
		return empty, services.Wrap(services.ErrPermanent, "backend", "submit", parsed.Error, nil)
	}
	if strings.TrimSpace(parsed.ID) == "" {
		return empty, services.Wrap(services.ErrTransient, "backend", "submit", "response missing job id", nil)
	}
	return Handle{ID: parsed.ID, Model: req.Model}, nil
}

// Poll fetches one status snapshot for a submitted job.
func (c *HTTPClient) Poll(ctx context.Context, handle Handle) (PollResult, error) {
	var empty PollResult
	if strings.TrimSpace(handle.ID) == "" {
		return empty, services.Wrap(services.ErrPermanent, "backend", "poll", "handle required", nil)
	}

	var parsed pollResponse
	if err := c.getJSON(ctx, "/generations/"+url.PathEscape(handle.ID), &parsed); err != nil {
		return empty, classify("poll", err)
	}
	if parsed.Error != "" {
		return empty, services.Wrap(services.ErrTransient, "backend", "poll", parsed.Error, nil)
	}

	switch strings.ToLower(strings.TrimSpace(parsed.Status)) {
	case "queued", "pending", "running", "processing":
		return PollResult{State: StateRunning}, nil
	case "succeeded", "completed":
		if strings.TrimSpace(parsed.ArtifactURL) == "" {
			return empty, services.Wrap(services.ErrTransient, "backend", "poll", "succeeded without artifact url", nil)
		}
		return PollResult{State: StateSucceeded, ArtifactURL: parsed.ArtifactURL, CostUSD: parsed.CostUSD}, nil
	case "failed", "canceled", "cancelled":
		return PollResult{
			State:       StateFailed,
			CostUSD:     parsed.CostUSD,
			FailureCode: parsed.FailureCode,
			Permanent:   parsed.Permanent || isPermanentFailureCode(parsed.FailureCode),
		}, nil
	default:
		return empty, services.Wrap(services.ErrTransient, "backend", "poll", fmt.Sprintf("unknown status %q", parsed.Status), nil)
	}
}

// Cancel requests remote termination. Failures are wrapped but callers treat
// them as advisory.
func (c *HTTPClient) Cancel(ctx context.Context, handle Handle) error {
	if strings.TrimSpace(handle.ID) == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/generations/"+url.PathEscape(handle.ID)+"/cancel", nil)
	if err != nil {
		return fmt.Errorf("backend cancel: new request: %w", err)
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify("cancel", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classify("cancel", &httpStatusError{StatusCode: resp.StatusCode})
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)
	return c.do(req, out)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("User-Agent", "adclip/0.1")
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("backend request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// classify maps transport and HTTP failures onto the pipeline taxonomy.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, "backend", operation, "", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "backend", operation, "request deadline exceeded", err)
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return services.Wrap(services.ErrTransient, "backend", operation, "rate limited", err)
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "backend", operation, "server error", err)
		case statusErr.StatusCode == http.StatusRequestTimeout:
			return services.Wrap(services.ErrTimeout, "backend", operation, "request timeout", err)
		default:
			return services.Wrap(services.ErrPermanent, "backend", operation, "request rejected", err)
		}
	}

	// URL errors from net/http wrap timeouts behind an interface.
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "backend", operation, "network timeout", err)
	}
	return services.Wrap(services.ErrTransient, "backend", operation, "network error", err)
}

func isPermanentFailureCode(code string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "invalid_prompt", "unsupported_params", "content_policy", "validation_failed":
		return true
	default:
		return false
	}
}

func parseRetryAfter(header string) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(header); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
