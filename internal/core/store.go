package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the local persistence owned by the composition root.
// Every read-modify-write runs inside InTx: fn's writes commit together
// when it returns nil and are discarded when it returns an error.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

// Tx is the repository surface visible inside a transaction.
// Lookups of a missing row return *NotFoundError; soft-deleted rows are
// returned as-is and the caller decides whether that counts as absent.
type Tx interface {
	// Products and clients
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, includeDeleted bool) ([]Product, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	GetClient(ctx context.Context, id uuid.UUID) (*Client, error)
	ListClients(ctx context.Context, includeDeleted bool) ([]Client, error)
	InsertClient(ctx context.Context, c Client) error
	UpdateClient(ctx context.Context, c Client) error

	// Stock. LockStock returns zero when the product has no stock row and
	// holds the row lock until the transaction ends.
	LockStock(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	WriteStock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) error
	ListStock(ctx context.Context) ([]StockLevel, error)

	// Batches. UpsertBatchForDate returns the live batch for date, inserting
	// one with newID when none exists.
	UpsertBatchForDate(ctx context.Context, date time.Time, newID uuid.UUID, now time.Time) (*Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	LockBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	UpdateBatch(ctx context.Context, b Batch) error
	ListBatches(ctx context.Context, from, to time.Time) ([]Batch, error)

	// Demand entries, ordered by creation time.
	InsertEntry(ctx context.Context, e DemandEntry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*DemandEntry, error)
	UpdateEntry(ctx context.Context, e DemandEntry) error
	ListEntries(ctx context.Context, batchID uuid.UUID, includeDeleted bool) ([]DemandEntry, error)

	// Deductions recorded by a stock-deducting close.
	InsertDeduction(ctx context.Context, d BatchDeduction) error
	ListDeductions(ctx context.Context, batchID uuid.UUID) ([]BatchDeduction, error)
	DeleteDeductions(ctx context.Context, batchID uuid.UUID) error

	// Bills, with their items.
	InsertBill(ctx context.Context, b Bill) error
	GetBill(ctx context.Context, id uuid.UUID) (*Bill, error)
	UpdateBill(ctx context.Context, b Bill) error
	ListBills(ctx context.Context, f BillFilter) ([]Bill, error)

	// EnqueueSync appends an outbox task. A pending or failed task for the
	// same (kind, refID) absorbs the new one and gets its revision bumped.
	EnqueueSync(ctx context.Context, kind SyncKind, refID string, now time.Time) error
}

// OutboxStore is the side of the store the replication worker drives.
type OutboxStore interface {
	// ClaimSyncTasks leases up to limit due tasks until now+lease.
	ClaimSyncTasks(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]SyncTask, error)
	// MarkSyncDone completes task id if its revision is unchanged since the claim.
	// A re-enqueued task is released back to pending instead.
	MarkSyncDone(ctx context.Context, id uuid.UUID, revision int, now time.Time) error
	MarkSyncFailed(ctx context.Context, id uuid.UUID, status SyncTaskStatus, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error
	SyncStatus(ctx context.Context) (SyncStatus, error)
}

// Notifier is told after a commit that the outbox has new work.
type Notifier interface {
	Notify()
}

type nopNotifier struct{}

func (nopNotifier) Notify() {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
