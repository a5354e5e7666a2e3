package clip

import (
	"time"
)

// AttemptOutcome classifies one backend invocation.
type AttemptOutcome string

const (
	OutcomeSucceeded AttemptOutcome = "succeeded"
	OutcomeTransient AttemptOutcome = "transient"
	OutcomePermanent AttemptOutcome = "permanent"
	OutcomeTimeout   AttemptOutcome = "timeout"
	OutcomeCancelled AttemptOutcome = "cancelled"
)

// BackendAttempt records one call to the remote generation service. Appended
// to a job's attempt history for audit and fallback decisions.
type BackendAttempt struct {
	Model       string         `json:"model"`
	RequestID   string         `json:"request_id,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Outcome     AttemptOutcome `json:"outcome"`
	ErrorKind   string         `json:"error_kind,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	CostUSD     float64        `json:"cost_usd"`
}

// BackendParams are the tunable knobs sent with a generation request. Seed is
// varied deterministically across regeneration attempts.
type BackendParams struct {
	Seed            int64   `json:"seed"`
	DurationSeconds float64 `json:"duration_seconds"`
	ReferenceMedia  string  `json:"reference_media,omitempty"`
}

// ClipJob is the unit of work producing one scene's video artifact. It is
// exclusively owned and mutated by its regeneration controller.
type ClipJob struct {
	BatchID         string           `json:"batch_id"`
	SceneNumber     int              `json:"scene_number"`
	Prompt          string           `json:"prompt"`
	DurationSeconds float64          `json:"duration_seconds"`
	Params          BackendParams    `json:"params"`
	Status          Status           `json:"status"`
	AttemptCount    int              `json:"attempt_count"`
	ModelUsed       string           `json:"model_used,omitempty"`
	ArtifactRef     string           `json:"artifact_ref,omitempty"`
	ArtifactURL     string           `json:"artifact_url,omitempty"`
	QualityScores   QualityScoreSet  `json:"quality_scores,omitempty"`
	OverallQuality  *float64         `json:"overall_quality,omitempty"`
	CostUSD         float64          `json:"cost_usd"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	AttemptHistory  []BackendAttempt `json:"attempt_history,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// NewJob creates the initial pending job for a scene.
func NewJob(batchID string, scene SceneRequest) *ClipJob {
	now := time.Now().UTC()
	return &ClipJob{
		BatchID:         batchID,
		SceneNumber:     scene.SceneNumber,
		Prompt:          scene.Prompt,
		DurationSeconds: scene.DurationSeconds,
		Params: BackendParams{
			DurationSeconds: scene.DurationSeconds,
			ReferenceMedia:  scene.ReferenceMedia,
		},
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the job reached a terminal status.
func (j *ClipJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// AddCost accumulates reported spend. Cost only ever grows; spend on
// discarded attempts still counts.
func (j *ClipJob) AddCost(amount float64) {
	if amount <= 0 {
		return
	}
	j.CostUSD += amount
}

// RecordAttempts appends invocation records and folds their reported costs
// into the running total.
func (j *ClipJob) RecordAttempts(attempts []BackendAttempt) {
	for _, attempt := range attempts {
		j.AttemptHistory = append(j.AttemptHistory, attempt)
		j.AddCost(attempt.CostUSD)
	}
}

// SetScores stores a fully computed score set and caches the derived overall
// value alongside it.
func (j *ClipJob) SetScores(scores QualityScoreSet) {
	clamped := scores.Clamped()
	overall := clamped.Overall()
	j.QualityScores = clamped
	j.OverallQuality = &overall
}

// Transition moves the job to a new status and stamps timestamps. Terminal
// transitions record the completion time.
func (j *ClipJob) Transition(status Status) {
	now := time.Now().UTC()
	j.Status = status
	j.UpdatedAt = now
	if status.IsTerminal() {
		j.CompletedAt = &now
	}
	if !status.CarriesArtifact() {
		j.ArtifactRef = ""
		j.ArtifactURL = ""
	}
}

// SetFailed marks the job failed with the given message.
func (j *ClipJob) SetFailed(message string) {
	j.ErrorMessage = message
	j.Transition(StatusFailed)
}

// Snapshot returns a deep copy safe to hand across goroutine boundaries.
func (j *ClipJob) Snapshot() ClipJob {
	cp := *j
	if j.QualityScores != nil {
		cp.QualityScores = make(QualityScoreSet, len(j.QualityScores))
		for dim, score := range j.QualityScores {
			cp.QualityScores[dim] = score
		}
	}
	if j.OverallQuality != nil {
		overall := *j.OverallQuality
		cp.OverallQuality = &overall
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		cp.CompletedAt = &completed
	}
	cp.AttemptHistory = append([]BackendAttempt(nil), j.AttemptHistory...)
	return cp
}
