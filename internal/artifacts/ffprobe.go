package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFProbe probes container duration via the ffprobe binary.
type FFProbe struct {
	// Binary overrides the executable name; empty means "ffprobe" from PATH.
	Binary string
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// DurationSeconds runs ffprobe against the provided path and returns the
// container duration.
func (p FFProbe) DurationSeconds(ctx context.Context, path string) (float64, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("ffprobe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	return duration, nil
}
