package clip

import (
	"sort"
	"time"
)

// BatchResult is the ordered terminal snapshot of a whole batch, assembled
// once every job reaches a terminal status.
type BatchResult struct {
	BatchID      string        `json:"batch_id"`
	Jobs         []ClipJob     `json:"jobs"`
	Accepted     int           `json:"accepted"`
	LowQuality   int           `json:"accepted_with_low_quality"`
	Failed       int           `json:"failed"`
	TotalCostUSD float64       `json:"total_cost_usd"`
	WallTime     time.Duration `json:"wall_time_ns"`
}

// NewBatchResult orders job snapshots by scene number and computes the batch
// aggregates. Completion order of the input slice is irrelevant.
func NewBatchResult(batchID string, jobs []ClipJob, wallTime time.Duration) BatchResult {
	ordered := make([]ClipJob, len(jobs))
	copy(ordered, jobs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SceneNumber < ordered[j].SceneNumber
	})

	result := BatchResult{
		BatchID:  batchID,
		Jobs:     ordered,
		WallTime: wallTime,
	}
	for _, job := range ordered {
		result.TotalCostUSD += job.CostUSD
		switch job.Status {
		case StatusAccepted:
			result.Accepted++
		case StatusAcceptedLowQuality:
			result.LowQuality++
		case StatusFailed:
			result.Failed++
		}
	}
	return result
}

// AllTerminal reports whether every job in the result is terminal.
func (r BatchResult) AllTerminal() bool {
	for _, job := range r.Jobs {
		if !job.IsTerminal() {
			return false
		}
	}
	return true
}
