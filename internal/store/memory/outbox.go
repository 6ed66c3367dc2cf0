package memory

import (
	"context"
	"time"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
)

func (t *memTx) EnqueueSync(_ context.Context, kind core.SyncKind, refID string, now time.Time) error {
	for _, id := range t.st.outboxSeq {
		task := t.st.outbox[id]
		if task.Kind != kind || task.RefID != refID {
			continue
		}
		if task.Status == core.SyncPending || task.Status == core.SyncFailed {
			task.Revision++
			task.UpdatedAt = now
			t.st.outbox[id] = task
			return nil
		}
	}
	task := core.SyncTask{
		ID:            uuid.New(),
		Kind:          kind,
		RefID:         refID,
		Status:        core.SyncPending,
		Revision:      1,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	t.st.outbox[task.ID] = task
	t.st.outboxSeq = append(t.st.outboxSeq, task.ID)
	return nil
}

// ── core.OutboxStore ──────────────────────────────────────────────────────────

func (s *Store) ClaimSyncTasks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]core.SyncTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []core.SyncTask
	until := now.Add(lease)
	for _, id := range s.state.outboxSeq {
		if limit > 0 && len(claimed) >= limit {
			break
		}
		task := s.state.outbox[id]
		if task.Status != core.SyncPending && task.Status != core.SyncFailed {
			continue
		}
		if task.NextAttemptAt.After(now) {
			continue
		}
		if task.LockedUntil != nil && task.LockedUntil.After(now) {
			continue
		}
		task.LockedUntil = &until
		s.state.outbox[id] = task
		claimed = append(claimed, task)
	}
	return claimed, nil
}

func (s *Store) MarkSyncDone(_ context.Context, id uuid.UUID, revision int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.state.outbox[id]
	if !ok {
		return &core.NotFoundError{Entity: "sync task", ID: id.String()}
	}
	task.LockedUntil = nil
	task.UpdatedAt = now
	if task.Revision == revision {
		task.Status = core.SyncDone
		task.LastError = ""
		s.state.lastSync = &now
	} else {
		task.Status = core.SyncPending
		task.NextAttemptAt = now
	}
	s.state.outbox[id] = task
	return nil
}

func (s *Store) MarkSyncFailed(_ context.Context, id uuid.UUID, status core.SyncTaskStatus, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.state.outbox[id]
	if !ok {
		return &core.NotFoundError{Entity: "sync task", ID: id.String()}
	}
	task.Status = status
	task.Attempts = attempts
	task.NextAttemptAt = nextAttemptAt
	task.LastError = lastErr
	task.LockedUntil = nil
	task.UpdatedAt = now
	s.state.outbox[id] = task
	return nil
}

func (s *Store) SyncStatus(_ context.Context) (core.SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		st       core.SyncStatus
		lastFail time.Time
	)
	for _, task := range s.state.outbox {
		switch task.Status {
		case core.SyncPending:
			st.Pending++
		case core.SyncFailed:
			st.Failed++
		case core.SyncDead:
			st.Dead++
		}
		if task.LastError != "" && task.UpdatedAt.After(lastFail) {
			lastFail = task.UpdatedAt
			st.LastError = task.LastError
		}
	}
	st.LastSync = s.state.lastSync
	return st, nil
}

// Tasks returns a snapshot of the outbox in enqueue order.
func (s *Store) Tasks() []core.SyncTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SyncTask, 0, len(s.state.outboxSeq))
	for _, id := range s.state.outboxSeq {
		out = append(out, s.state.outbox[id])
	}
	return out
}
