package clip

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// SceneRequest is the immutable per-scene input supplied by the upstream
// planner. Scene numbers are unique, 1-based, and contiguous within a batch.
type SceneRequest struct {
	SceneNumber     int     `json:"scene_number"`
	Prompt          string  `json:"prompt"`
	DurationSeconds float64 `json:"duration_seconds"`
	ReferenceMedia  string  `json:"reference_media,omitempty"`
}

// Plan is the batch hand-off document produced upstream.
type Plan struct {
	Scenes []SceneRequest `json:"scenes"`
}

// ValidateScenes checks the scene numbering and prompt contract.
func ValidateScenes(scenes []SceneRequest) error {
	if len(scenes) == 0 {
		return errors.New("plan contains no scenes")
	}
	sorted := make([]SceneRequest, len(scenes))
	copy(sorted, scenes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SceneNumber < sorted[j].SceneNumber })
	for i, scene := range sorted {
		if scene.SceneNumber != i+1 {
			return fmt.Errorf("scene numbers must be 1-based and contiguous; got %d at position %d", scene.SceneNumber, i+1)
		}
		if strings.TrimSpace(scene.Prompt) == "" {
			return fmt.Errorf("scene %d has an empty prompt", scene.SceneNumber)
		}
		if scene.DurationSeconds <= 0 {
			return fmt.Errorf("scene %d has a non-positive duration", scene.SceneNumber)
		}
	}
	return nil
}

// ParsePlan decodes and validates a plan document.
func ParsePlan(r io.Reader) (*Plan, error) {
	var plan Plan
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := ValidateScenes(plan.Scenes); err != nil {
		return nil, err
	}
	sort.Slice(plan.Scenes, func(i, j int) bool {
		return plan.Scenes[i].SceneNumber < plan.Scenes[j].SceneNumber
	})
	return &plan, nil
}

// LoadPlan reads a plan document from disk.
func LoadPlan(path string) (*Plan, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer file.Close()
	return ParsePlan(file)
}
