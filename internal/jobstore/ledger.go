package jobstore

import (
	"context"
	"fmt"
	"time"

	"adclip/internal/ledger"
)

// Ledger is the durable cost ledger backed by the job database. It satisfies
// ledger.Ledger so the pipeline can tee spend into SQLite alongside the
// in-memory batch total.
type Ledger struct {
	store *Store
}

// CostLedger returns the store's ledger view.
func (s *Store) CostLedger() *Ledger {
	return &Ledger{store: s}
}

func (l *Ledger) Append(ctx context.Context, entry ledger.Entry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	_, err := l.store.execWithRetry(ensureContext(ctx), `
        INSERT INTO ledger_entries (batch_id, job_id, scene_number, model, amount_usd, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		entry.BatchID,
		entry.JobID,
		entry.SceneNumber,
		entry.Model,
		entry.AmountUSD,
		formatTime(entry.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// BatchEntries returns every ledger entry for a batch in append order.
func (s *Store) BatchEntries(ctx context.Context, batchID string) ([]ledger.Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
        SELECT batch_id, job_id, scene_number, model, amount_usd, recorded_at
        FROM ledger_entries WHERE batch_id = ? ORDER BY id`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			entry    ledger.Entry
			recorded string
		)
		if err := rows.Scan(&entry.BatchID, &entry.JobID, &entry.SceneNumber, &entry.Model, &entry.AmountUSD, &recorded); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entry.RecordedAt = parseTime(recorded)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// BatchSpend sums the recorded spend for a batch.
func (s *Store) BatchSpend(ctx context.Context, batchID string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COALESCE(SUM(amount_usd), 0) FROM ledger_entries WHERE batch_id = ?`,
		batchID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return total, nil
}
