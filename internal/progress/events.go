package progress

import (
	"sync/atomic"
	"time"

	"adclip/internal/clip"
)

// Kind enumerates the lifecycle events a job emits.
type Kind string

const (
	EventJobStarted     Kind = "job_started"
	EventAttemptStarted Kind = "attempt_started"
	EventAttemptFailed  Kind = "attempt_failed"
	EventQualityScored  Kind = "quality_scored"
	EventRegenerating   Kind = "regenerating"
	EventTerminal       Kind = "terminal"
)

// Event is one progress notification. Sequence numbers increase monotonically
// in emission order across the whole process.
type Event struct {
	Sequence    uint64      `json:"sequence"`
	Kind        Kind        `json:"kind"`
	BatchID     string      `json:"batch_id"`
	SceneNumber int         `json:"scene_number"`
	Model       string      `json:"model,omitempty"`
	Attempt     int         `json:"attempt,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	Score       *float64    `json:"score,omitempty"`
	Status      clip.Status `json:"status,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

var sequence atomic.Uint64

// NextSequence hands out the process-wide event sequence number.
func NextSequence() uint64 {
	return sequence.Add(1)
}

// NewEvent stamps a sequence number and timestamp onto the supplied event.
func NewEvent(kind Kind, batchID string, scene int) Event {
	return Event{
		Sequence:    NextSequence(),
		Kind:        kind,
		BatchID:     batchID,
		SceneNumber: scene,
		OccurredAt:  time.Now().UTC(),
	}
}
