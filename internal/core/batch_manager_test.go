package core_test

import (
	"testing"
	"time"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateBatchForDateIsIdempotent(t *testing.T) {
	f := setup(t)
	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	first, err := f.batches.GetOrCreateBatchForDate(f.ctx, day)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := f.batches.GetOrCreateBatchForDate(f.ctx, day.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}

	batches, err := f.batches.ListBatches(f.ctx, day, day)
	require.NoError(t, err)
	assert.Len(t, batches, 1)
	assert.False(t, batches[0].Closed)
}

func TestGetOrCreateTodayBatchUsesBusinessDate(t *testing.T) {
	f := setup(t)
	b, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-14", b.DemandDate.Format("2006-01-02"))

	again, err := f.batches.GetOrCreateBatchForDate(f.ctx, core.DateOf(time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)
}

func TestDeletedBatchFreesItsDate(t *testing.T) {
	f := setup(t)
	b, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	require.NoError(t, f.batches.DeleteBatch(f.ctx, b.ID))

	fresh, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, fresh.ID)

	_, err = f.batches.GetBatch(f.ctx, b.ID)
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestCloseBatchDeductsStockOnce(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 10)
	a := f.client(t, "Asha")
	b := f.client(t, "Bala")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)

	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, a.ID, p.ID, qty(4))
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, b.ID, p.ID, qty(4))
	require.NoError(t, err)

	totals, err := f.batches.GetCurrentBatchTotals(f.ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, p.ID, totals[0].ProductID)
	requireQty(t, 8, totals[0].Quantity)

	closed, err := f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{DeductStock: true})
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	assert.True(t, closed.StockDeducted)
	requireQty(t, 2, f.stockOf(t, p.ID))

	t.Run("Second close is rejected", func(t *testing.T) {
		_, err := f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{DeductStock: true})
		var already *core.AlreadyClosedError
		require.ErrorAs(t, err, &already)
		assert.Equal(t, batch.ID, already.BatchID)
		requireQty(t, 2, f.stockOf(t, p.ID))
	})

	t.Run("Entries are frozen", func(t *testing.T) {
		_, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, a.ID, p.ID, qty(1))
		var closedErr *core.BatchClosedError
		assert.ErrorAs(t, err, &closedErr)

		details, err := f.batches.GetBatchClientDetails(f.ctx, batch.ID)
		require.NoError(t, err)
		_, err = f.batches.UpdateDemandEntry(f.ctx, details[0].EntryID, qty(1))
		assert.ErrorAs(t, err, &closedErr)
		err = f.batches.DeleteDemandEntry(f.ctx, details[0].EntryID)
		assert.ErrorAs(t, err, &closedErr)
	})
}

func TestCloseBatchWithoutDeduction(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 1)
	c := f.client(t, "Asha")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(5))
	require.NoError(t, err)

	closed, err := f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{})
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	assert.False(t, closed.StockDeducted)
	requireQty(t, 1, f.stockOf(t, p.ID))
}

func TestCloseBatchIsAllOrNothing(t *testing.T) {
	f := setup(t)
	plenty := f.product(t, "Apples", 100)
	scarce := f.product(t, "Bananas", 3)
	c := f.client(t, "Asha")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, plenty.ID, qty(40))
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, scarce.ID, qty(5))
	require.NoError(t, err)

	_, err = f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{DeductStock: true})
	var short *core.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, scarce.ID, short.ProductID)
	assert.Equal(t, "Bananas", short.ProductName)
	requireQty(t, 3, short.Available)
	requireQty(t, 5, short.Requested)
	assert.Contains(t, err.Error(), "Bananas")

	requireQty(t, 100, f.stockOf(t, plenty.ID))
	requireQty(t, 3, f.stockOf(t, scarce.ID))
	still, err := f.batches.GetBatch(f.ctx, batch.ID)
	require.NoError(t, err)
	assert.False(t, still.Closed)

	require.NotEmpty(t, f.logs.AllEntries())
	assert.Equal(t, "batch close rejected: insufficient stock", f.logs.LastEntry().Message)
}

func TestSoftDeletedEntryLeavesTotalsButStaysAuditable(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 0)
	c := f.client(t, "Asha")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	keep, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(2))
	require.NoError(t, err)
	drop, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(7))
	require.NoError(t, err)

	require.NoError(t, f.batches.DeleteDemandEntry(f.ctx, drop.ID))

	totals, err := f.batches.GetCurrentBatchTotals(f.ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	requireQty(t, 2, totals[0].Quantity)

	live, err := f.batches.ListBatchEntries(f.ctx, batch.ID, false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, keep.ID, live[0].EntryID)

	all, err := f.batches.ListBatchEntries(f.ctx, batch.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, drop.ID, all[1].EntryID)
	assert.True(t, all[1].IsDeleted)
	assert.Equal(t, "Asha", all[1].ClientName)

	t.Run("Deleted entry cannot be edited", func(t *testing.T) {
		_, err := f.batches.UpdateDemandEntry(f.ctx, drop.ID, qty(1))
		assert.True(t, core.IsNotFound(err))
	})
}

func TestTotalsFollowEdits(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Potatoes", 0)
	q := f.product(t, "Onions", 0)
	a := f.client(t, "Asha")
	b := f.client(t, "Bala")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)

	e1, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, a.ID, p.ID, qty(3))
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, b.ID, p.ID, qty(2))
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, b.ID, q.ID, qty(6))
	require.NoError(t, err)
	_, err = f.batches.UpdateDemandEntry(f.ctx, e1.ID, qty(10))
	require.NoError(t, err)

	totals, err := f.batches.GetCurrentBatchTotals(f.ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "Onions", totals[0].ProductName)
	requireQty(t, 6, totals[0].Quantity)
	assert.Equal(t, "Potatoes", totals[1].ProductName)
	requireQty(t, 12, totals[1].Quantity)

	stats, err := f.batches.GetBatchStats(f.ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ProductCount)
	assert.Equal(t, 2, stats.ClientCount)
	assert.Equal(t, 3, stats.EntryCount)
	requireQty(t, 18, stats.TotalQuantity)
}

func TestInsertDemandEntryValidation(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 0)
	c := f.client(t, "Asha")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)

	t.Run("Fail on zero quantity", func(t *testing.T) {
		_, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(0))
		assert.ErrorIs(t, err, core.ErrInvalidQuantity)
	})

	t.Run("Fail on unknown batch", func(t *testing.T) {
		_, err := f.batches.InsertDemandEntry(f.ctx, uuid.New(), c.ID, p.ID, qty(1))
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("Fail on deleted product", func(t *testing.T) {
		gone := f.product(t, "Gone", 0)
		require.NoError(t, f.catalog.DeleteProduct(f.ctx, gone.ID))
		_, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, gone.ID, qty(1))
		var nf *core.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "product", nf.Entity)
	})

	t.Run("No stock check while open", func(t *testing.T) {
		_, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(1000))
		assert.NoError(t, err)
	})
}

func TestReopenRestoresRecordedDeduction(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 10)
	c := f.client(t, "Asha")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(6))
	require.NoError(t, err)
	_, err = f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{DeductStock: true})
	require.NoError(t, err)
	requireQty(t, 4, f.stockOf(t, p.ID))

	// Stock moves on after the close; reopen gives back only what the close took.
	_, err = f.ledger.Adjust(f.ctx, p.ID, qty(-1))
	require.NoError(t, err)

	reopened, err := f.batches.ReopenBatch(f.ctx, batch.ID)
	require.NoError(t, err)
	assert.False(t, reopened.Closed)
	assert.False(t, reopened.StockDeducted)
	requireQty(t, 9, f.stockOf(t, p.ID))

	t.Run("Reopen of an open batch is a no-op", func(t *testing.T) {
		again, err := f.batches.ReopenBatch(f.ctx, batch.ID)
		require.NoError(t, err)
		assert.False(t, again.Closed)
		requireQty(t, 9, f.stockOf(t, p.ID))
	})

	t.Run("Entries are editable again", func(t *testing.T) {
		_, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(1))
		assert.NoError(t, err)
	})
}

func TestEditClosedBatch(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 10)
	c := f.client(t, "Asha")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	entry, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(4))
	require.NoError(t, err)
	_, err = f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{DeductStock: true})
	require.NoError(t, err)
	requireQty(t, 6, f.stockOf(t, p.ID))

	t.Run("Success", func(t *testing.T) {
		edited, err := f.batches.EditClosedBatch(f.ctx, batch.ID, []core.EntryEdit{
			{EntryID: &entry.ID, Quantity: qty(7)},
		}, core.CloseOptions{DeductStock: true})
		require.NoError(t, err)
		assert.True(t, edited.Closed)
		requireQty(t, 3, f.stockOf(t, p.ID))
	})

	t.Run("Fail on insufficient stock rolls back everything", func(t *testing.T) {
		_, err := f.batches.EditClosedBatch(f.ctx, batch.ID, []core.EntryEdit{
			{ClientID: c.ID, ProductID: p.ID, Quantity: qty(50)},
		}, core.CloseOptions{DeductStock: true})
		var short *core.InsufficientStockError
		require.ErrorAs(t, err, &short)

		requireQty(t, 3, f.stockOf(t, p.ID))
		b, err := f.batches.GetBatch(f.ctx, batch.ID)
		require.NoError(t, err)
		assert.True(t, b.Closed)
		assert.True(t, b.StockDeducted)
		entries, err := f.batches.ListBatchEntries(f.ctx, batch.ID, true)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Fail on open batch", func(t *testing.T) {
		open, err := f.batches.GetOrCreateBatchForDate(f.ctx, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		_, err = f.batches.EditClosedBatch(f.ctx, open.ID, nil, core.CloseOptions{})
		assert.Error(t, err)
	})
}

func TestDeleteBatchCascadesToEntries(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 10)
	c := f.client(t, "Asha")
	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	entry, err := f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(4))
	require.NoError(t, err)

	require.NoError(t, f.batches.DeleteBatch(f.ctx, batch.ID))

	var gotEntry *core.DemandEntry
	require.NoError(t, f.store.InTx(f.ctx, func(tx core.Tx) error {
		var err error
		gotEntry, err = tx.GetEntry(f.ctx, entry.ID)
		return err
	}))
	assert.True(t, gotEntry.IsDeleted)

	t.Run("Deducted batch must be reopened first", func(t *testing.T) {
		b, err := f.batches.GetOrCreateTodayBatch(f.ctx)
		require.NoError(t, err)
		_, err = f.batches.InsertDemandEntry(f.ctx, b.ID, c.ID, p.ID, qty(1))
		require.NoError(t, err)
		_, err = f.batches.CloseBatch(f.ctx, b.ID, core.CloseOptions{DeductStock: true})
		require.NoError(t, err)

		var closedErr *core.BatchClosedError
		assert.ErrorAs(t, f.batches.DeleteBatch(f.ctx, b.ID), &closedErr)
	})
}

func TestBatchMutationsQueueSync(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 10)
	c := f.client(t, "Asha")
	before := f.notes.n

	batch, err := f.batches.GetOrCreateTodayBatch(f.ctx)
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, batch.ID, c.ID, p.ID, qty(1))
	require.NoError(t, err)
	_, err = f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{})
	require.NoError(t, err)

	assert.Equal(t, before+3, f.notes.n)

	var batchTasks []core.SyncTask
	for _, task := range f.store.Tasks() {
		if task.Kind == core.SyncKindBatch {
			batchTasks = append(batchTasks, task)
		}
	}
	require.Len(t, batchTasks, 1)
	assert.Equal(t, batch.ID.String(), batchTasks[0].RefID)
	assert.Equal(t, 3, batchTasks[0].Revision)

	t.Run("Rejected close queues nothing", func(t *testing.T) {
		n := f.notes.n
		_, err := f.batches.CloseBatch(f.ctx, batch.ID, core.CloseOptions{})
		require.Error(t, err)
		assert.Equal(t, n, f.notes.n)
	})
}
