package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const jobColumns = `id, conversation_id, user_id, status, priority,
	message_count_at_extraction, retry_count, error_message, completion_note,
	next_attempt_at, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (ExtractionJob, error) {
	var j ExtractionJob
	err := row.Scan(&j.ID, &j.ConversationID, &j.UserID, &j.Status, &j.Priority,
		&j.MessageCountAtExtraction, &j.RetryCount, &j.ErrorMessage, &j.CompletionNote,
		&j.NextAttemptAt, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	return j, err
}

func (s *Postgres) EnqueueJob(ctx context.Context, job *ExtractionJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO extraction_jobs
			(id, conversation_id, user_id, status, priority, message_count_at_extraction, next_attempt_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, now())`,
		job.ID, job.ConversationID, job.UserID, job.Priority, job.MessageCountAtExtraction,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateJob
		}
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// ClaimJobs is the atomic pending→processing transition. SKIP LOCKED keeps
// concurrent claimers from handing the same job to two workers.
func (s *Postgres) ClaimJobs(ctx context.Context, limit int, now time.Time) ([]ExtractionJob, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE extraction_jobs SET status = 'processing', started_at = $2
		WHERE id IN (
			SELECT id FROM extraction_jobs
			WHERE status = 'pending' AND next_attempt_at <= $2
			ORDER BY priority, created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		limit, now,
	)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ExtractionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	// RETURNING does not preserve the claim order.
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].Priority != jobs[k].Priority {
			return jobs[i].Priority < jobs[k].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})
	return jobs, nil
}

func (s *Postgres) CompleteJob(ctx context.Context, id uuid.UUID, note string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs
		SET status = 'completed', completion_note = $2, completed_at = now()
		WHERE id = $1`,
		id, note,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (s *Postgres) ScheduleRetry(ctx context.Context, id uuid.UUID, errMsg string, nextAttempt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs
		SET status = 'pending', retry_count = retry_count + 1,
		    error_message = $2, next_attempt_at = $3, started_at = NULL
		WHERE id = $1`,
		id, errMsg, nextAttempt,
	)
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

func (s *Postgres) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs
		SET status = 'failed', error_message = $2, completed_at = now()
		WHERE id = $1`,
		id, errMsg,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (s *Postgres) LastSnapshot(ctx context.Context, conversationID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT message_count_at_extraction FROM extraction_jobs
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		conversationID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("last snapshot: %w", err)
	}
	return count, nil
}

func (s *Postgres) QueueStats(ctx context.Context) (QueueStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, count(*) FROM extraction_jobs GROUP BY status`)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats QueueStats
	for rows.Next() {
		var status JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return QueueStats{}, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case JobPending:
			stats.Pending = n
		case JobProcessing:
			stats.Processing = n
		case JobCompleted:
			stats.Completed = n
		case JobFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

// RetryFailedJobs is the operator bulk reset: every failed job goes back to
// pending with its retry budget restored.
func (s *Postgres) RetryFailedJobs(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs
		SET status = 'pending', retry_count = 0, error_message = '',
		    next_attempt_at = now(), started_at = NULL, completed_at = NULL
		WHERE status = 'failed'`)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Postgres) PurgeCompletedJobs(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM extraction_jobs
		WHERE status = 'completed' AND completed_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("purge completed jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
