package replication_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"demand-ledger/internal/core"
	"demand-ledger/internal/replication"
	"demand-ledger/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Today() time.Time { return core.DateOf(c.Now()) }

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	mu      sync.Mutex
	fail    error
	bills   int
	clients int
	batches []replication.BatchSnapshot
	all     int
}

func (g *fakeGateway) SyncBills(_ context.Context, bills []core.Bill) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.bills++
	return nil
}

func (g *fakeGateway) SyncClients(_ context.Context, clients []core.Client) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.clients += len(clients)
	return nil
}

func (g *fakeGateway) BackupDemandBatch(_ context.Context, snap replication.BatchSnapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.batches = append(g.batches, snap)
	return nil
}

func (g *fakeGateway) BackupAllDemandBatches(_ context.Context, snaps []replication.BatchSnapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return g.fail
	}
	g.all += len(snaps)
	return nil
}

func (g *fakeGateway) pushes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bills + g.clients + len(g.batches) + g.all
}

type harness struct {
	ctx     context.Context
	store   *memory.Store
	clock   *stepClock
	gateway *fakeGateway
	worker  *replication.Worker
}

func newHarness(t *testing.T, cfg replication.WorkerConfig) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memory.New()
	clock := &stepClock{t: time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC)}
	gw := &fakeGateway{}
	return &harness{
		ctx:     context.Background(),
		store:   store,
		clock:   clock,
		gateway: gw,
		worker:  replication.NewWorker(store, replication.NewStoreSource(store, clock), gw, clock, cfg, logger),
	}
}

func (h *harness) enqueue(t *testing.T, kind core.SyncKind, ref string) {
	t.Helper()
	require.NoError(t, h.store.InTx(h.ctx, func(tx core.Tx) error {
		return tx.EnqueueSync(h.ctx, kind, ref, h.clock.Now())
	}))
}

func TestWorkerPushesCommittedChanges(t *testing.T) {
	h := newHarness(t, replication.WorkerConfig{})
	logger, _ := test.NewNullLogger()
	catalog := core.NewCatalogService(h.store, h.clock, h.worker)
	ledger := core.NewStockLedger(h.store)
	batches := core.NewBatchManager(h.store, ledger, h.clock, h.worker, logger)

	p, err := catalog.CreateProduct(h.ctx, "Milk 500ml", decimal.NewFromInt(28), decimal.NewFromInt(24))
	require.NoError(t, err)
	c, err := catalog.CreateClient(h.ctx, "Hotel Ganesh", "")
	require.NoError(t, err)
	b, err := batches.GetOrCreateTodayBatch(h.ctx)
	require.NoError(t, err)
	e, err := batches.InsertDemandEntry(h.ctx, b.ID, c.ID, p.ID, decimal.NewFromInt(40))
	require.NoError(t, err)
	require.NoError(t, batches.DeleteDemandEntry(h.ctx, e.ID))

	n, err := h.worker.ProcessOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 1, h.gateway.clients)
	require.Len(t, h.gateway.batches, 1)
	snap := h.gateway.batches[0]
	assert.Equal(t, b.ID, snap.Batch.ID)
	require.Len(t, snap.Entries, 1)
	assert.True(t, snap.Entries[0].IsDeleted)
	assert.Empty(t, snap.Totals)

	for _, task := range h.store.Tasks() {
		assert.Equal(t, core.SyncDone, task.Status)
	}
}

func TestWorkerRetriesWithBackoffThenGivesUp(t *testing.T) {
	h := newHarness(t, replication.WorkerConfig{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffMax:  10 * time.Second,
	})
	h.gateway.fail = errors.New("network unreachable")
	h.enqueue(t, core.SyncKindBills, "")

	n, err := h.worker.ProcessOnce(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	tasks := h.store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, core.SyncFailed, tasks[0].Status)
	assert.Equal(t, 1, tasks[0].Attempts)
	assert.Contains(t, tasks[0].LastError, "network unreachable")

	t.Run("Not retried before the backoff elapses", func(t *testing.T) {
		_, err := h.worker.ProcessOnce(h.ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, h.store.Tasks()[0].Attempts)
	})

	h.clock.Advance(time.Second)
	_, err = h.worker.ProcessOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.store.Tasks()[0].Attempts)

	h.clock.Advance(2 * time.Second)
	_, err = h.worker.ProcessOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, core.SyncDead, h.store.Tasks()[0].Status)

	st, err := h.store.SyncStatus(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Dead)
	assert.Equal(t, "some changes could not be synced; check the sync log", st.Message())
}

func TestWorkerRecoversAfterFailure(t *testing.T) {
	h := newHarness(t, replication.WorkerConfig{BackoffBase: time.Second})
	h.gateway.fail = errors.New("timeout")
	h.enqueue(t, core.SyncKindClients, "")

	_, err := h.worker.ProcessOnce(h.ctx)
	require.NoError(t, err)

	h.gateway.fail = nil
	h.clock.Advance(time.Second)
	n, err := h.worker.ProcessOnce(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, core.SyncDone, h.store.Tasks()[0].Status)
}

func TestWorkerAbandonsUnusableTasks(t *testing.T) {
	h := newHarness(t, replication.WorkerConfig{})
	h.enqueue(t, core.SyncKindBatch, "not-a-uuid")
	h.enqueue(t, core.SyncKindBatch, "0b7c8a3e-62a4-4c40-9d61-3e0e0f0a0a0a")

	_, err := h.worker.ProcessOnce(h.ctx)
	require.NoError(t, err)
	for _, task := range h.store.Tasks() {
		assert.Equal(t, core.SyncDead, task.Status, task.RefID)
		assert.Equal(t, 1, task.Attempts)
	}
	assert.Zero(t, h.gateway.pushes())
}

func TestWorkerRunWakesOnNotify(t *testing.T) {
	h := newHarness(t, replication.WorkerConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(h.ctx)
	done := make(chan struct{})
	go func() {
		h.worker.Run(ctx)
		close(done)
	}()

	h.enqueue(t, core.SyncKindAllBatches, "")
	h.worker.Notify()
	h.worker.Notify()

	assert.Eventually(t, func() bool {
		tasks := h.store.Tasks()
		return len(tasks) == 1 && tasks[0].Status == core.SyncDone
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestBackoff(t *testing.T) {
	base, ceiling := 5*time.Second, time.Minute
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, time.Minute},
		{30, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, replication.Backoff(base, ceiling, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &fakeGateway{}
	bad := &fakeGateway{fail: errors.New("bucket missing")}
	err := replication.Fanout{ok, bad}.SyncBills(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket missing")
	assert.Equal(t, 1, ok.bills)
}
