package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/your-org/gaze-engine/internal/catalogmodel"
)

func (s *Store) CreateJob(ctx context.Context, mediaID string, nowMs int64) (*catalogmodel.Job, error) {
	j := &catalogmodel.Job{
		JobID:       uuid.NewString(),
		VideoID:     mediaID,
		Status:      string(catalogmodel.StatusPending),
		CreatedAtMs: nowMs,
		UpdatedAtMs: nowMs,
	}
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO jobs (job_id, video_id, status, created_at_ms, updated_at_ms) VALUES (?, ?, ?, ?, ?)`,
			j.JobID, j.VideoID, j.Status, j.CreatedAtMs, j.UpdatedAtMs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return j, nil
}

func (s *Store) UpdateJobProgress(ctx context.Context, jobID string, status string, stage *string, progress float64, message *string, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, current_stage = ?, progress = ?, message = ?, updated_at_ms = ?
			WHERE job_id = ?`,
			status, nullString(stage), progress, nullString(message), nowMs, jobID)
		return err
	})
}

func (s *Store) FailJob(ctx context.Context, jobID string, errCode, errMsg string, nowMs int64) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET status = 'FAILED', error_code = ?, error_message = ?, updated_at_ms = ?
			WHERE job_id = ?`,
			errCode, errMsg, nowMs, jobID)
		return err
	})
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*catalogmodel.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, video_id, status, current_stage, progress, message, error_code, error_message, created_at_ms, updated_at_ms
		FROM jobs WHERE job_id = ?`, jobID)
	return scanJob(row)
}

// LatestJobForMedia returns the most recently created job for a media
// item — used both to show current progress and, on retry, to decide
// whether a new job row is needed (the prior FAILED row is kept as an
// audit trail rather than overwritten).
func (s *Store) LatestJobForMedia(ctx context.Context, mediaID string) (*catalogmodel.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, video_id, status, current_stage, progress, message, error_code, error_message, created_at_ms, updated_at_ms
		FROM jobs WHERE video_id = ? ORDER BY created_at_ms DESC LIMIT 1`, mediaID)
	return scanJob(row)
}

func (s *Store) ListActiveJobs(ctx context.Context) ([]catalogmodel.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, video_id, status, current_stage, progress, message, error_code, error_message, created_at_ms, updated_at_ms
		FROM jobs WHERE status NOT IN ('DONE', 'FAILED', 'CANCELLED') ORDER BY created_at_ms`)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()

	var out []catalogmodel.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (*catalogmodel.Job, error) {
	var j catalogmodel.Job
	var stage, message, errCode, errMsg sql.NullString
	err := row.Scan(&j.JobID, &j.VideoID, &j.Status, &stage, &j.Progress, &message, &errCode, &errMsg, &j.CreatedAtMs, &j.UpdatedAtMs)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.CurrentStage = fromNullString(stage)
	j.Message = fromNullString(message)
	j.ErrorCode = fromNullString(errCode)
	j.ErrorMessage = fromNullString(errMsg)
	return &j, nil
}
