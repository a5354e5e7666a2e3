package ledger

import (
	"context"
	"sync"
	"time"
)

// Entry is one append-only cost record consumed by external billing.
type Entry struct {
	BatchID     string    `json:"batch_id"`
	JobID       string    `json:"job_id"`
	SceneNumber int       `json:"scene_number"`
	Model       string    `json:"model"`
	AmountUSD   float64   `json:"amount_usd"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Ledger accepts concurrent appends from per-scene tasks.
type Ledger interface {
	Append(ctx context.Context, entry Entry) error
}

// Memory is a locked in-memory ledger. Safe for concurrent append.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	total   float64
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, entry Entry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	m.total += entry.AmountUSD
	return nil
}

// Entries returns a copy of all recorded entries.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// TotalUSD returns the accumulated spend.
func (m *Memory) TotalUSD() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Tee fans each append out to every underlying ledger, stopping at the first
// error.
type Tee []Ledger

func (t Tee) Append(ctx context.Context, entry Entry) error {
	for _, l := range t {
		if l == nil {
			continue
		}
		if err := l.Append(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
