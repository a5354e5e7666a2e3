package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"adclip/internal/services"
)

const defaultModelTimeout = 2 * time.Minute

// Model scores a local artifact against a prompt. Implementations may fail;
// the evaluator absorbs those failures.
type Model interface {
	Score(ctx context.Context, localRef, prompt string) (map[string]float64, error)
}

// ModelConfig captures connection settings for the scoring service.
type ModelConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// HTTPModel implements Model against the scoring service's REST API.
type HTTPModel struct {
	cfg        ModelConfig
	httpClient *http.Client
}

// ModelOption customizes the model client.
type ModelOption func(*HTTPModel)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ModelOption {
	return func(m *HTTPModel) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// NewHTTPModel constructs a scoring service client.
func NewHTTPModel(cfg ModelConfig, opts ...ModelOption) *HTTPModel {
	timeout := defaultModelTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	model := &HTTPModel{
		cfg: ModelConfig{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(model)
	}
	return model
}

type scoreRequest struct {
	ArtifactPath string `json:"artifact_path"`
	Prompt       string `json:"prompt"`
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
	Error  string             `json:"error,omitempty"`
}

// Score submits one scoring request.
func (m *HTTPModel) Score(ctx context.Context, localRef, prompt string) (map[string]float64, error) {
	if strings.TrimSpace(localRef) == "" {
		return nil, services.Wrap(services.ErrQualityModel, "quality", "score", "artifact path required", nil)
	}

	encoded, err := json.Marshal(scoreRequest{ArtifactPath: localRef, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("quality score: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/score", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("quality score: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrQualityModel, "quality", "score", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrQualityModel, "quality", "score", "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrQualityModel, "quality", "score", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var parsed scoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, services.Wrap(services.ErrQualityModel, "quality", "score", "decode response", err)
	}
	if parsed.Error != "" {
		return nil, services.Wrap(services.ErrQualityModel, "quality", "score", parsed.Error, nil)
	}
	if len(parsed.Scores) == 0 {
		return nil, services.Wrap(services.ErrQualityModel, "quality", "score", "response missing scores", nil)
	}
	return parsed.Scores, nil
}
