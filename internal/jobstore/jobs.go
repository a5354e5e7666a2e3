package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adclip/internal/clip"
)

const jobColumns = "id, batch_id, scene_number, prompt, duration_seconds, seed, reference_media, status, attempt_count, model_used, artifact_ref, artifact_url, quality_json, overall_quality, cost_usd, error_message, created_at, updated_at, completed_at"

// SaveJob upserts a job and synchronizes its attempt history. Called on every
// status transition so the database always reflects the in-memory state.
func (s *Store) SaveJob(ctx context.Context, job *clip.ClipJob) error {
	if job == nil {
		return errors.New("job is nil")
	}
	ctx = ensureContext(ctx)

	qualityJSON, err := marshalScores(job.QualityScores)
	if err != nil {
		return fmt.Errorf("marshal quality scores: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
            INSERT INTO clip_jobs (
                batch_id, scene_number, prompt, duration_seconds, seed, reference_media,
                status, attempt_count, model_used, artifact_ref, artifact_url,
                quality_json, overall_quality, cost_usd, error_message,
                created_at, updated_at, completed_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (batch_id, scene_number) DO UPDATE SET
                prompt = excluded.prompt,
                duration_seconds = excluded.duration_seconds,
                seed = excluded.seed,
                reference_media = excluded.reference_media,
                status = excluded.status,
                attempt_count = excluded.attempt_count,
                model_used = excluded.model_used,
                artifact_ref = excluded.artifact_ref,
                artifact_url = excluded.artifact_url,
                quality_json = excluded.quality_json,
                overall_quality = excluded.overall_quality,
                cost_usd = excluded.cost_usd,
                error_message = excluded.error_message,
                updated_at = excluded.updated_at,
                completed_at = excluded.completed_at`,
			job.BatchID,
			job.SceneNumber,
			job.Prompt,
			job.DurationSeconds,
			job.Params.Seed,
			nullableString(job.Params.ReferenceMedia),
			string(job.Status),
			job.AttemptCount,
			nullableString(job.ModelUsed),
			nullableString(job.ArtifactRef),
			nullableString(job.ArtifactURL),
			qualityJSON,
			nullableFloat(job.OverallQuality),
			job.CostUSD,
			nullableString(job.ErrorMessage),
			formatTime(job.CreatedAt),
			formatTime(job.UpdatedAt),
			nullableTime(job.CompletedAt),
		); err != nil {
			return fmt.Errorf("upsert job: %w", err)
		}

		var jobID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM clip_jobs WHERE batch_id = ? AND scene_number = ?`,
			job.BatchID, job.SceneNumber,
		).Scan(&jobID); err != nil {
			return fmt.Errorf("resolve job id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM backend_attempts WHERE job_id = ?`, jobID); err != nil {
			return fmt.Errorf("clear attempts: %w", err)
		}
		for seq, attempt := range job.AttemptHistory {
			if _, err := tx.ExecContext(ctx, `
                INSERT INTO backend_attempts (
                    job_id, seq, model, request_id, started_at, completed_at,
                    outcome, error_kind, error_detail, cost_usd
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				jobID,
				seq,
				attempt.Model,
				nullableString(attempt.RequestID),
				formatTime(attempt.StartedAt),
				formatTime(attempt.CompletedAt),
				string(attempt.Outcome),
				nullableString(attempt.ErrorKind),
				nullableString(attempt.ErrorDetail),
				attempt.CostUSD,
			); err != nil {
				return fmt.Errorf("insert attempt: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit job: %w", err)
		}
		return nil
	})
}

// GetJob fetches one job by batch and scene. Returns nil when absent.
func (s *Store) GetJob(ctx context.Context, batchID string, sceneNumber int) (*clip.ClipJob, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM clip_jobs WHERE batch_id = ? AND scene_number = ?`,
		batchID, sceneNumber,
	)
	job, id, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if err := s.loadAttempts(ctx, id, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ListBatch returns every job for a batch in scene order.
func (s *Store) ListBatch(ctx context.Context, batchID string) ([]*clip.ClipJob, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM clip_jobs WHERE batch_id = ? ORDER BY scene_number`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list batch: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*clip.ClipJob
	var ids []int64
	for rows.Next() {
		job, id, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	for i, job := range jobs {
		if err := s.loadAttempts(ctx, ids[i], job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// BatchSummary aggregates one batch for presentation.
type BatchSummary struct {
	BatchID      string
	Jobs         int
	Accepted     int
	LowQuality   int
	Failed       int
	TotalCostUSD float64
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// ListBatches returns recent batches, newest first.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT batch_id,
               COUNT(1),
               SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
               SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
               SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
               SUM(cost_usd),
               MIN(created_at),
               MAX(updated_at)
        FROM clip_jobs
        GROUP BY batch_id
        ORDER BY MIN(created_at) DESC
        LIMIT ?`,
		string(clip.StatusAccepted),
		string(clip.StatusAcceptedLowQuality),
		string(clip.StatusFailed),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []BatchSummary
	for rows.Next() {
		var (
			summary          BatchSummary
			started, updated string
		)
		if err := rows.Scan(
			&summary.BatchID,
			&summary.Jobs,
			&summary.Accepted,
			&summary.LowQuality,
			&summary.Failed,
			&summary.TotalCostUSD,
			&started,
			&updated,
		); err != nil {
			return nil, fmt.Errorf("scan batch summary: %w", err)
		}
		summary.StartedAt = parseTime(started)
		summary.UpdatedAt = parseTime(updated)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch summaries: %w", err)
	}
	return summaries, nil
}

func (s *Store) loadAttempts(ctx context.Context, jobID int64, job *clip.ClipJob) error {
	rows, err := s.db.QueryContext(ctx, `
        SELECT model, request_id, started_at, completed_at, outcome, error_kind, error_detail, cost_usd
        FROM backend_attempts WHERE job_id = ? ORDER BY seq`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("load attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	job.AttemptHistory = nil
	for rows.Next() {
		var (
			attempt              clip.BackendAttempt
			requestID            sql.NullString
			errorKind, errDetail sql.NullString
			started, completed   string
			outcome              string
		)
		if err := rows.Scan(&attempt.Model, &requestID, &started, &completed, &outcome, &errorKind, &errDetail, &attempt.CostUSD); err != nil {
			return fmt.Errorf("scan attempt: %w", err)
		}
		attempt.RequestID = requestID.String
		attempt.StartedAt = parseTime(started)
		attempt.CompletedAt = parseTime(completed)
		attempt.Outcome = clip.AttemptOutcome(outcome)
		attempt.ErrorKind = errorKind.String
		attempt.ErrorDetail = errDetail.String
		job.AttemptHistory = append(job.AttemptHistory, attempt)
	}
	return rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*clip.ClipJob, int64, error) {
	var (
		id               int64
		job              clip.ClipJob
		referenceMedia   sql.NullString
		modelUsed        sql.NullString
		artifactRef      sql.NullString
		artifactURL      sql.NullString
		qualityJSON      sql.NullString
		overallQuality   sql.NullFloat64
		errorMessage     sql.NullString
		status           string
		created, updated string
		completed        sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&job.BatchID,
		&job.SceneNumber,
		&job.Prompt,
		&job.DurationSeconds,
		&job.Params.Seed,
		&referenceMedia,
		&status,
		&job.AttemptCount,
		&modelUsed,
		&artifactRef,
		&artifactURL,
		&qualityJSON,
		&overallQuality,
		&job.CostUSD,
		&errorMessage,
		&created,
		&updated,
		&completed,
	); err != nil {
		return nil, 0, err
	}

	job.Params.DurationSeconds = job.DurationSeconds
	job.Params.ReferenceMedia = referenceMedia.String
	job.Status = clip.Status(status)
	job.ModelUsed = modelUsed.String
	job.ArtifactRef = artifactRef.String
	job.ArtifactURL = artifactURL.String
	job.ErrorMessage = errorMessage.String
	job.CreatedAt = parseTime(created)
	job.UpdatedAt = parseTime(updated)
	if completed.Valid {
		t := parseTime(completed.String)
		job.CompletedAt = &t
	}
	if overallQuality.Valid {
		overall := overallQuality.Float64
		job.OverallQuality = &overall
	}
	if qualityJSON.Valid && qualityJSON.String != "" {
		scores := make(clip.QualityScoreSet)
		if err := json.Unmarshal([]byte(qualityJSON.String), &scores); err != nil {
			return nil, 0, fmt.Errorf("unmarshal quality scores: %w", err)
		}
		job.QualityScores = scores
	}
	return &job, id, nil
}

func marshalScores(scores clip.QualityScoreSet) (any, error) {
	if len(scores) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
