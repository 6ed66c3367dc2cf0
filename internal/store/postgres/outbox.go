package postgres

import (
	"context"
	"fmt"
	"time"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
)

func (t *pgTx) EnqueueSync(ctx context.Context, kind core.SyncKind, refID string, now time.Time) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sync_outbox (id, kind, ref_id, status, revision, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'PENDING', 1, $4, $4, $4)
		ON CONFLICT (kind, ref_id) WHERE status IN ('PENDING', 'FAILED')
		DO UPDATE SET revision = sync_outbox.revision + 1, updated_at = EXCLUDED.updated_at
	`, uuid.New(), string(kind), refID, now)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s sync: %w", kind, err)
	}
	return nil
}

// ── core.OutboxStore ──────────────────────────────────────────────────────────

// ClaimSyncTasks leases due rows. SKIP LOCKED keeps a second worker from
// waiting on rows the first one is already pushing.
func (s *Store) ClaimSyncTasks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]core.SyncTask, error) {
	rows, err := s.pool.Query(ctx, `
		WITH due AS (
			SELECT id FROM sync_outbox
			WHERE status IN ('PENDING', 'FAILED')
			  AND next_attempt_at <= $1
			  AND (locked_until IS NULL OR locked_until <= $1)
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE sync_outbox o SET locked_until = $2
		FROM due WHERE o.id = due.id
		RETURNING o.id, o.kind, o.ref_id, o.status, o.attempts, o.revision, o.next_attempt_at,
		          o.locked_until, o.last_error, o.created_at, o.updated_at
	`, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim sync tasks: %w", err)
	}
	defer rows.Close()

	var out []core.SyncTask
	for rows.Next() {
		var (
			task   core.SyncTask
			kind   string
			status string
		)
		if err := rows.Scan(&task.ID, &kind, &task.RefID, &status, &task.Attempts, &task.Revision,
			&task.NextAttemptAt, &task.LockedUntil, &task.LastError, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		task.Kind = core.SyncKind(kind)
		task.Status = core.SyncTaskStatus(status)
		out = append(out, task)
	}
	return out, rows.Err()
}

// MarkSyncDone completes the task only if nothing re-enqueued it during the push.
func (s *Store) MarkSyncDone(ctx context.Context, id uuid.UUID, revision int, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_outbox SET
			status          = CASE WHEN revision = $2 THEN 'DONE' ELSE 'PENDING' END,
			last_error      = CASE WHEN revision = $2 THEN '' ELSE last_error END,
			next_attempt_at = CASE WHEN revision = $2 THEN next_attempt_at ELSE $3 END,
			locked_until    = NULL,
			updated_at      = $3
		WHERE id = $1
	`, id, revision, now)
	if err != nil {
		return fmt.Errorf("failed to complete sync task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "sync task", ID: id.String()}
	}
	return nil
}

func (s *Store) MarkSyncFailed(ctx context.Context, id uuid.UUID, status core.SyncTaskStatus, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_outbox
		SET status = $2, attempts = $3, next_attempt_at = $4, last_error = $5, locked_until = NULL, updated_at = $6
		WHERE id = $1
	`, id, string(status), attempts, nextAttemptAt, lastErr, now)
	if err != nil {
		return fmt.Errorf("failed to record sync failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "sync task", ID: id.String()}
	}
	return nil
}

func (s *Store) SyncStatus(ctx context.Context) (core.SyncStatus, error) {
	var st core.SyncStatus
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE status = 'DEAD'),
			MAX(updated_at) FILTER (WHERE status = 'DONE'),
			COALESCE((SELECT last_error FROM sync_outbox WHERE last_error <> '' ORDER BY updated_at DESC LIMIT 1), '')
		FROM sync_outbox
	`).Scan(&st.Pending, &st.Failed, &st.Dead, &st.LastSync, &st.LastError)
	if err != nil {
		return core.SyncStatus{}, fmt.Errorf("failed to read sync status: %w", err)
	}
	return st, nil
}
