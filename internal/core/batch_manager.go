package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BatchManager owns the per-day demand batch lifecycle:
//
//	Open --CloseBatch--> Closed --ReopenBatch--> Open
//
// Entries can only change while a batch is open. Every mutation appends a
// BATCH task to the sync outbox in the same transaction.
type BatchManager interface {
	// GetOrCreateBatchForDate returns the live batch for the calendar date, creating it if needed.
	GetOrCreateBatchForDate(ctx context.Context, date time.Time) (*Batch, error)
	// GetOrCreateTodayBatch is GetOrCreateBatchForDate for the business "today".
	GetOrCreateTodayBatch(ctx context.Context) (*Batch, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error)
	ListBatches(ctx context.Context, from, to time.Time) ([]Batch, error)

	InsertDemandEntry(ctx context.Context, batchID, clientID, productID uuid.UUID, qty decimal.Decimal) (*DemandEntry, error)
	UpdateDemandEntry(ctx context.Context, entryID uuid.UUID, qty decimal.Decimal) (*DemandEntry, error)
	// DeleteDemandEntry tombstones an entry of an open batch.
	DeleteDemandEntry(ctx context.Context, entryID uuid.UUID) error

	// GetCurrentBatchTotals sums live entries per product. Always read fresh.
	GetCurrentBatchTotals(ctx context.Context, batchID uuid.UUID) ([]ProductTotal, error)
	// GetBatchClientDetails lists live entries one per row, without aggregation.
	GetBatchClientDetails(ctx context.Context, batchID uuid.UUID) ([]ClientDemand, error)
	// ListBatchEntries is the audit read; includeDeleted also returns tombstones.
	ListBatchEntries(ctx context.Context, batchID uuid.UUID, includeDeleted bool) ([]ClientDemand, error)
	GetBatchStats(ctx context.Context, batchID uuid.UUID) (*BatchStats, error)

	// CloseBatch finalises the batch. With DeductStock every product total is
	// taken out of stock; one shortfall aborts the close and nothing changes.
	// A product deleted while the batch was reopened answers NotFoundError
	// until its entries are removed or the batch is closed without deduction.
	CloseBatch(ctx context.Context, batchID uuid.UUID, opts CloseOptions) (*Batch, error)
	// ReopenBatch returns a closed batch to open, giving back any stock its close deducted.
	ReopenBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error)
	// EditClosedBatch reopens, applies edits and closes again as one transaction.
	EditClosedBatch(ctx context.Context, batchID uuid.UUID, edits []EntryEdit, opts CloseOptions) (*Batch, error)
	// DeleteBatch tombstones the batch and its entries.
	DeleteBatch(ctx context.Context, batchID uuid.UUID) error
}

type batchManager struct {
	store    Store
	ledger   StockLedger
	clock    Clock
	notifier Notifier
	log      logrus.FieldLogger
}

func NewBatchManager(store Store, ledger StockLedger, clock Clock, notifier Notifier, log logrus.FieldLogger) BatchManager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &batchManager{
		store:    store,
		ledger:   ledger,
		clock:    clock,
		notifier: notifierOrNop(notifier),
		log:      log.WithField("module", "batch_manager"),
	}
}

// write runs fn in a transaction and, once it commits, nudges the sync worker.
func (m *batchManager) write(ctx context.Context, fn func(tx Tx) error) error {
	if err := m.store.InTx(ctx, fn); err != nil {
		return err
	}
	m.notifier.Notify()
	return nil
}

// ── Batch lookup ──────────────────────────────────────────────────────────────

func (m *batchManager) GetOrCreateBatchForDate(ctx context.Context, date time.Time) (*Batch, error) {
	day := DateOf(date)
	var batch *Batch
	err := m.write(ctx, func(tx Tx) error {
		var err error
		batch, err = tx.UpsertBatchForDate(ctx, day, uuid.New(), m.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to get or create batch for %s: %w", day.Format("2006-01-02"), err)
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, batch.ID.String(), m.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (m *batchManager) GetOrCreateTodayBatch(ctx context.Context) (*Batch, error) {
	return m.GetOrCreateBatchForDate(ctx, m.clock.Today())
}

func (m *batchManager) GetBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error) {
	var batch *Batch
	err := m.store.InTx(ctx, func(tx Tx) error {
		var err error
		batch, err = liveBatch(ctx, tx, batchID, false)
		return err
	})
	return batch, err
}

func (m *batchManager) ListBatches(ctx context.Context, from, to time.Time) ([]Batch, error) {
	var batches []Batch
	err := m.store.InTx(ctx, func(tx Tx) error {
		var err error
		batches, err = tx.ListBatches(ctx, DateOf(from), DateOf(to))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

// ── Entries ───────────────────────────────────────────────────────────────────

func (m *batchManager) InsertDemandEntry(ctx context.Context, batchID, clientID, productID uuid.UUID, qty decimal.Decimal) (*DemandEntry, error) {
	var entry *DemandEntry
	err := m.write(ctx, func(tx Tx) error {
		batch, err := openBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		entry, err = m.insertEntryTx(ctx, tx, batch, clientID, productID, qty)
		if err != nil {
			return err
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, batch.ID.String(), m.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (m *batchManager) UpdateDemandEntry(ctx context.Context, entryID uuid.UUID, qty decimal.Decimal) (*DemandEntry, error) {
	var entry *DemandEntry
	err := m.write(ctx, func(tx Tx) error {
		var err error
		entry, err = m.updateEntryTx(ctx, tx, entryID, qty)
		if err != nil {
			return err
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, entry.BatchID.String(), m.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (m *batchManager) DeleteDemandEntry(ctx context.Context, entryID uuid.UUID) error {
	return m.write(ctx, func(tx Tx) error {
		entry, err := m.deleteEntryTx(ctx, tx, entryID)
		if err != nil {
			return err
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, entry.BatchID.String(), m.clock.Now())
	})
}

func (m *batchManager) insertEntryTx(ctx context.Context, tx Tx, batch *Batch, clientID, productID uuid.UUID, qty decimal.Decimal) (*DemandEntry, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	if _, err := liveClient(ctx, tx, clientID); err != nil {
		return nil, err
	}
	if _, err := liveProduct(ctx, tx, productID); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	entry := DemandEntry{
		ID:        uuid.New(),
		BatchID:   batch.ID,
		ClientID:  clientID,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to insert demand entry: %w", err)
	}
	return &entry, nil
}

func (m *batchManager) updateEntryTx(ctx context.Context, tx Tx, entryID uuid.UUID, qty decimal.Decimal) (*DemandEntry, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	entry, err := liveEntry(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err := openBatch(ctx, tx, entry.BatchID); err != nil {
		return nil, err
	}
	entry.Quantity = qty
	entry.UpdatedAt = m.clock.Now()
	if err := tx.UpdateEntry(ctx, *entry); err != nil {
		return nil, fmt.Errorf("failed to update demand entry: %w", err)
	}
	return entry, nil
}

func (m *batchManager) deleteEntryTx(ctx context.Context, tx Tx, entryID uuid.UUID) (*DemandEntry, error) {
	entry, err := liveEntry(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if _, err := openBatch(ctx, tx, entry.BatchID); err != nil {
		return nil, err
	}
	entry.IsDeleted = true
	entry.UpdatedAt = m.clock.Now()
	if err := tx.UpdateEntry(ctx, *entry); err != nil {
		return nil, fmt.Errorf("failed to delete demand entry: %w", err)
	}
	return entry, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (m *batchManager) GetCurrentBatchTotals(ctx context.Context, batchID uuid.UUID) ([]ProductTotal, error) {
	var totals []ProductTotal
	err := m.store.InTx(ctx, func(tx Tx) error {
		if _, err := liveBatch(ctx, tx, batchID, false); err != nil {
			return err
		}
		var err error
		totals, err = batchTotalsTx(ctx, tx, batchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (m *batchManager) GetBatchClientDetails(ctx context.Context, batchID uuid.UUID) ([]ClientDemand, error) {
	return m.ListBatchEntries(ctx, batchID, false)
}

func (m *batchManager) ListBatchEntries(ctx context.Context, batchID uuid.UUID, includeDeleted bool) ([]ClientDemand, error) {
	var details []ClientDemand
	err := m.store.InTx(ctx, func(tx Tx) error {
		if _, err := liveBatch(ctx, tx, batchID, false); err != nil {
			return err
		}
		entries, err := tx.ListEntries(ctx, batchID, includeDeleted)
		if err != nil {
			return fmt.Errorf("failed to list demand entries: %w", err)
		}
		clientNames, productNames, err := nameIndexes(ctx, tx)
		if err != nil {
			return err
		}
		details = Breakdown(entries, clientNames, productNames)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (m *batchManager) GetBatchStats(ctx context.Context, batchID uuid.UUID) (*BatchStats, error) {
	var stats BatchStats
	err := m.store.InTx(ctx, func(tx Tx) error {
		if _, err := liveBatch(ctx, tx, batchID, false); err != nil {
			return err
		}
		entries, err := tx.ListEntries(ctx, batchID, false)
		if err != nil {
			return fmt.Errorf("failed to list demand entries: %w", err)
		}
		stats = ComputeStats(entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

func (m *batchManager) CloseBatch(ctx context.Context, batchID uuid.UUID, opts CloseOptions) (*Batch, error) {
	var batch *Batch
	err := m.write(ctx, func(tx Tx) error {
		var err error
		batch, err = liveBatch(ctx, tx, batchID, true)
		if err != nil {
			return err
		}
		if err := m.closeTx(ctx, tx, batch, opts); err != nil {
			return err
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, batch.ID.String(), m.clock.Now())
	})
	if err != nil {
		m.logCloseFailure(batchID, opts, err)
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"batch_id": batch.ID, "deduct_stock": opts.DeductStock}).Info("batch closed")
	return batch, nil
}

// closeTx expects batch to be locked. A shortfall on any product returns
// before the caller commits, so none of the earlier deductions survive.
func (m *batchManager) closeTx(ctx context.Context, tx Tx, batch *Batch, opts CloseOptions) error {
	if batch.Closed {
		return &AlreadyClosedError{BatchID: batch.ID}
	}
	if opts.DeductStock {
		totals, err := batchTotalsTx(ctx, tx, batch.ID)
		if err != nil {
			return err
		}
		for _, d := range sortedDeltas(totalsQuantities(totals)) {
			if _, err := m.ledger.AdjustTx(ctx, tx, d.ProductID, d.Quantity.Neg()); err != nil {
				return fmt.Errorf("failed to close batch %s: %w", batch.ID, err)
			}
			if err := tx.InsertDeduction(ctx, BatchDeduction{BatchID: batch.ID, ProductID: d.ProductID, Quantity: d.Quantity}); err != nil {
				return fmt.Errorf("failed to record deduction: %w", err)
			}
		}
	}
	now := m.clock.Now()
	batch.Closed = true
	batch.StockDeducted = opts.DeductStock
	batch.ClosedAt = &now
	if err := tx.UpdateBatch(ctx, *batch); err != nil {
		return fmt.Errorf("failed to mark batch closed: %w", err)
	}
	return nil
}

func (m *batchManager) ReopenBatch(ctx context.Context, batchID uuid.UUID) (*Batch, error) {
	var batch *Batch
	err := m.write(ctx, func(tx Tx) error {
		var err error
		batch, err = liveBatch(ctx, tx, batchID, true)
		if err != nil {
			return err
		}
		if !batch.Closed {
			return nil
		}
		if err := m.reopenTx(ctx, tx, batch); err != nil {
			return err
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, batch.ID.String(), m.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// reopenTx gives back exactly what the close deducted, not the current totals.
func (m *batchManager) reopenTx(ctx context.Context, tx Tx, batch *Batch) error {
	if batch.StockDeducted {
		deductions, err := tx.ListDeductions(ctx, batch.ID)
		if err != nil {
			return fmt.Errorf("failed to load deductions: %w", err)
		}
		restock := make(map[uuid.UUID]decimal.Decimal, len(deductions))
		for _, d := range deductions {
			restock[d.ProductID] = restock[d.ProductID].Add(d.Quantity)
		}
		for _, d := range sortedDeltas(restock) {
			if _, err := m.ledger.AdjustTx(ctx, tx, d.ProductID, d.Quantity); err != nil {
				return fmt.Errorf("failed to restock product %s: %w", d.ProductID, err)
			}
		}
		if err := tx.DeleteDeductions(ctx, batch.ID); err != nil {
			return fmt.Errorf("failed to clear deductions: %w", err)
		}
	}
	batch.Closed = false
	batch.StockDeducted = false
	batch.ClosedAt = nil
	if err := tx.UpdateBatch(ctx, *batch); err != nil {
		return fmt.Errorf("failed to reopen batch: %w", err)
	}
	return nil
}

func (m *batchManager) EditClosedBatch(ctx context.Context, batchID uuid.UUID, edits []EntryEdit, opts CloseOptions) (*Batch, error) {
	var batch *Batch
	err := m.write(ctx, func(tx Tx) error {
		var err error
		batch, err = liveBatch(ctx, tx, batchID, true)
		if err != nil {
			return err
		}
		if !batch.Closed {
			return fmt.Errorf("batch %s is open, edit its entries directly", batch.ID)
		}
		if err := m.reopenTx(ctx, tx, batch); err != nil {
			return err
		}
		for i, e := range edits {
			if err := m.applyEditTx(ctx, tx, batch, e); err != nil {
				return fmt.Errorf("edit %d: %w", i, err)
			}
		}
		if err := m.closeTx(ctx, tx, batch, opts); err != nil {
			return err
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, batch.ID.String(), m.clock.Now())
	})
	if err != nil {
		m.logCloseFailure(batchID, opts, err)
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"batch_id": batch.ID, "edits": len(edits)}).Info("closed batch edited")
	return batch, nil
}

func (m *batchManager) applyEditTx(ctx context.Context, tx Tx, batch *Batch, e EntryEdit) error {
	if e.EntryID == nil {
		_, err := m.insertEntryTx(ctx, tx, batch, e.ClientID, e.ProductID, e.Quantity)
		return err
	}
	entry, err := liveEntry(ctx, tx, *e.EntryID)
	if err != nil {
		return err
	}
	if entry.BatchID != batch.ID {
		return notFound("demand entry", *e.EntryID)
	}
	if e.Delete {
		_, err = m.deleteEntryTx(ctx, tx, entry.ID)
		return err
	}
	_, err = m.updateEntryTx(ctx, tx, entry.ID, e.Quantity)
	return err
}

func (m *batchManager) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	return m.write(ctx, func(tx Tx) error {
		batch, err := liveBatch(ctx, tx, batchID, true)
		if err != nil {
			return err
		}
		if batch.StockDeducted {
			return &BatchClosedError{BatchID: batch.ID}
		}
		entries, err := tx.ListEntries(ctx, batch.ID, false)
		if err != nil {
			return fmt.Errorf("failed to list demand entries: %w", err)
		}
		now := m.clock.Now()
		for _, e := range entries {
			e.IsDeleted = true
			e.UpdatedAt = now
			if err := tx.UpdateEntry(ctx, e); err != nil {
				return fmt.Errorf("failed to delete demand entry %s: %w", e.ID, err)
			}
		}
		batch.IsDeleted = true
		if err := tx.UpdateBatch(ctx, *batch); err != nil {
			return fmt.Errorf("failed to delete batch: %w", err)
		}
		return tx.EnqueueSync(ctx, SyncKindBatch, batch.ID.String(), now)
	})
}

func (m *batchManager) logCloseFailure(batchID uuid.UUID, opts CloseOptions, err error) {
	var short *InsufficientStockError
	if errors.As(err, &short) {
		m.log.WithFields(logrus.Fields{
			"batch_id":   batchID,
			"product_id": short.ProductID,
			"available":  short.Available.String(),
			"requested":  short.Requested.String(),
		}).Warn("batch close rejected: insufficient stock")
		return
	}
	var already *AlreadyClosedError
	if errors.As(err, &already) {
		return
	}
	m.log.WithFields(logrus.Fields{"batch_id": batchID, "deduct_stock": opts.DeductStock}).WithError(err).Error("batch close failed")
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func liveBatch(ctx context.Context, tx Tx, id uuid.UUID, lock bool) (*Batch, error) {
	var (
		b   *Batch
		err error
	)
	if lock {
		b, err = tx.LockBatch(ctx, id)
	} else {
		b, err = tx.GetBatch(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if b.IsDeleted {
		return nil, notFound("batch", id)
	}
	return b, nil
}

func openBatch(ctx context.Context, tx Tx, id uuid.UUID) (*Batch, error) {
	b, err := liveBatch(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if b.Closed {
		return nil, &BatchClosedError{BatchID: id}
	}
	return b, nil
}

func liveEntry(ctx context.Context, tx Tx, id uuid.UUID) (*DemandEntry, error) {
	e, err := tx.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.IsDeleted {
		return nil, notFound("demand entry", id)
	}
	return e, nil
}

func batchTotalsTx(ctx context.Context, tx Tx, batchID uuid.UUID) ([]ProductTotal, error) {
	entries, err := tx.ListEntries(ctx, batchID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list demand entries: %w", err)
	}
	products, err := tx.ListProducts(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return SumByProduct(entries, productNameIndex(products)), nil
}

func nameIndexes(ctx context.Context, tx Tx) (clients, products map[uuid.UUID]string, err error) {
	cl, err := tx.ListClients(ctx, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list clients: %w", err)
	}
	pr, err := tx.ListProducts(ctx, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list products: %w", err)
	}
	return clientNameIndex(cl), productNameIndex(pr), nil
}
