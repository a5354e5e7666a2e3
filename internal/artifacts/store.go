package artifacts

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"adclip/internal/services"
)

const defaultDownloadTimeout = 10 * time.Minute

// Prober reports the duration in seconds of a local media file.
type Prober interface {
	DurationSeconds(ctx context.Context, path string) (float64, error)
}

// Store downloads and validates generation artifacts.
type Store struct {
	stagingDir       string
	httpClient       *http.Client
	prober           Prober
	toleranceSeconds float64
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithHTTPClient overrides the download client.
func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *Store) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithProber overrides the duration prober (used in tests).
func WithProber(prober Prober) StoreOption {
	return func(s *Store) {
		if prober != nil {
			s.prober = prober
		}
	}
}

// NewStore constructs an artifact store rooted at stagingDir.
func NewStore(stagingDir string, toleranceSeconds float64, opts ...StoreOption) *Store {
	store := &Store{
		stagingDir:       stagingDir,
		httpClient:       &http.Client{Timeout: defaultDownloadTimeout},
		prober:           FFProbe{},
		toleranceSeconds: toleranceSeconds,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Download fetches a remote artifact into the staging directory and returns
// the local path.
func (s *Store) Download(ctx context.Context, artifactURL string) (string, error) {
	artifactURL = strings.TrimSpace(artifactURL)
	if artifactURL == "" {
		return "", services.Wrap(services.ErrValidation, "artifacts", "download", "empty url", nil)
	}
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure staging dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return "", fmt.Errorf("artifact request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "artifacts", "download", "fetch failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrTransient
		if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
			marker = services.ErrPermanent
		}
		return "", services.Wrap(marker, "artifacts", "download", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	localPath := filepath.Join(s.stagingDir, "clip-"+uuid.NewString()+extensionFor(artifactURL))
	file, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	written, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(localPath)
		return "", services.Wrap(services.ErrTransient, "artifacts", "download", "copy failed", err)
	}
	if closeErr != nil {
		_ = os.Remove(localPath)
		return "", fmt.Errorf("close staging file: %w", closeErr)
	}
	if written == 0 {
		_ = os.Remove(localPath)
		return "", services.Wrap(services.ErrValidation, "artifacts", "download", "artifact is empty", nil)
	}
	return localPath, nil
}

// Validate checks a downloaded artifact against the requested duration.
// Validation failures classify as permanent for the model that produced the
// artifact.
func (s *Store) Validate(ctx context.Context, localPath string, expectedDuration float64) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "artifacts", "validate", "artifact missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "artifacts", "validate", "artifact is empty", nil)
	}
	if expectedDuration <= 0 || s.prober == nil {
		return nil
	}

	duration, err := s.prober.DurationSeconds(ctx, localPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "artifacts", "validate", "probe failed", err)
	}
	if duration <= 0 {
		return services.Wrap(services.ErrValidation, "artifacts", "validate", "artifact reports zero duration", nil)
	}
	if math.Abs(duration-expectedDuration) > s.toleranceSeconds {
		return services.Wrap(
			services.ErrValidation,
			"artifacts",
			"validate",
			fmt.Sprintf("duration %.2fs outside tolerance of %.2fs (±%.2fs)", duration, expectedDuration, s.toleranceSeconds),
			nil,
		)
	}
	return nil
}

// Remove deletes a staged artifact, ignoring files already gone.
func (s *Store) Remove(localPath string) error {
	if localPath == "" {
		return nil
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}

func extensionFor(artifactURL string) string {
	parsed, err := url.Parse(artifactURL)
	if err != nil {
		return ".mp4"
	}
	if ext := path.Ext(parsed.Path); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".mp4"
}
