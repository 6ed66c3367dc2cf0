package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"demand-ledger/internal/core"
	"demand-ledger/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WorkerConfig tunes polling and retry.
type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Lease       time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Minute
	}
	return c
}

// Worker drains the outbox into a Gateway.
type Worker struct {
	outbox  core.OutboxStore
	source  Source
	gateway Gateway
	clock   core.Clock
	cfg     WorkerConfig
	log     logrus.FieldLogger
	wake    chan struct{}
}

func NewWorker(outbox core.OutboxStore, source Source, gateway Gateway, clock core.Clock, cfg WorkerConfig, log logrus.FieldLogger) *Worker {
	return &Worker{
		outbox:  outbox,
		source:  source,
		gateway: gateway,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		log:     log.WithField("module", "replication"),
		wake:    make(chan struct{}, 1),
	}
}

// Notify asks the worker to look at the outbox soon. It never blocks.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run processes the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.cfg.Interval.String()).Info("replication worker started")
	for {
		if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
			logging.LogError(w.log, "replication", "Run", "outbox pass failed", nil, err)
		}
		select {
		case <-ctx.Done():
			w.log.Info("replication worker stopped")
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// ProcessOnce claims one round of due tasks and pushes each. It returns how
// many tasks were pushed successfully.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	tasks, err := w.outbox.ClaimSyncTasks(ctx, w.clock.Now(), w.cfg.Lease, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if w.handle(ctx, task) {
			done++
		}
	}
	return done, nil
}

func (w *Worker) handle(ctx context.Context, task core.SyncTask) bool {
	log := w.log.WithFields(logrus.Fields{"task_id": task.ID, "kind": task.Kind, "ref_id": task.RefID})

	err := w.push(ctx, task)
	if err == nil {
		if err := w.outbox.MarkSyncDone(ctx, task.ID, task.Revision, w.clock.Now()); err != nil {
			log.WithError(err).Error("failed to mark sync task done")
			return false
		}
		log.Debug("sync task pushed")
		return true
	}

	failure := &core.SyncFailure{Op: string(task.Kind), Err: err}
	attempts := task.Attempts + 1
	status := core.SyncFailed
	if attempts >= w.cfg.MaxAttempts || errors.Is(err, errPermanent) {
		status = core.SyncDead
	}
	now := w.clock.Now()
	next := now.Add(Backoff(w.cfg.BackoffBase, w.cfg.BackoffMax, attempts))
	if err := w.outbox.MarkSyncFailed(ctx, task.ID, status, attempts, next, failure.Error(), now); err != nil {
		log.WithError(err).Error("failed to record sync failure")
		return false
	}
	entry := log.WithError(failure).WithField("attempts", attempts)
	if status == core.SyncDead {
		entry.Error("sync task abandoned")
	} else {
		entry.WithField("next_attempt_at", next).Warn("sync push failed, will retry")
	}
	return false
}

var errPermanent = errors.New("task cannot succeed")

func (w *Worker) push(ctx context.Context, task core.SyncTask) error {
	switch task.Kind {
	case core.SyncKindBills:
		bills, err := w.source.Bills(ctx)
		if err != nil {
			return err
		}
		return w.gateway.SyncBills(ctx, bills)
	case core.SyncKindClients:
		clients, err := w.source.Clients(ctx)
		if err != nil {
			return err
		}
		return w.gateway.SyncClients(ctx, clients)
	case core.SyncKindBatch:
		id, err := uuid.Parse(task.RefID)
		if err != nil {
			return fmt.Errorf("%w: bad batch id %q", errPermanent, task.RefID)
		}
		snap, err := w.source.Batch(ctx, id)
		if core.IsNotFound(err) {
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		if err != nil {
			return err
		}
		return w.gateway.BackupDemandBatch(ctx, snap)
	case core.SyncKindAllBatches:
		snaps, err := w.source.AllBatches(ctx)
		if err != nil {
			return err
		}
		return w.gateway.BackupAllDemandBatches(ctx, snaps)
	default:
		return fmt.Errorf("%w: unknown kind %q", errPermanent, task.Kind)
	}
}

// Backoff is base·2^(attempt-1), capped at ceiling.
func Backoff(base, ceiling time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return min(d, ceiling)
}
