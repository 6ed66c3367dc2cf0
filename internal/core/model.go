package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	IsDeleted bool            `json:"is_deleted"`
	CreatedAt time.Time       `json:"created_at"`
}

type Client struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	IsDeleted bool      `json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
}

// StockLevel is the on-hand quantity of one product. Quantity is never negative after a commit.
type StockLevel struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// Batch collects the demand for one business day.
// DemandDate is a calendar date stored as midnight UTC.
type Batch struct {
	ID            uuid.UUID  `json:"id"`
	DemandDate    time.Time  `json:"demand_date"`
	Closed        bool       `json:"closed"`
	StockDeducted bool       `json:"stock_deducted"`
	IsDeleted     bool       `json:"is_deleted"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

type DemandEntry struct {
	ID        uuid.UUID       `json:"id"`
	BatchID   uuid.UUID       `json:"batch_id"`
	ClientID  uuid.UUID       `json:"client_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	IsDeleted bool            `json:"is_deleted"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BatchDeduction records how much of a product a close took out of stock,
// so a reopen can give back exactly that amount.
type BatchDeduction struct {
	BatchID   uuid.UUID       `json:"batch_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ProductTotal is the summed demand for one product within a batch (or a date range).
type ProductTotal struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// ClientDemand is one entry of the per-client breakdown of a batch.
type ClientDemand struct {
	EntryID     uuid.UUID       `json:"entry_id"`
	ClientID    uuid.UUID       `json:"client_id"`
	ClientName  string          `json:"client_name"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	IsDeleted   bool            `json:"is_deleted"`
}

type BatchStats struct {
	ProductCount  int             `json:"product_count"`
	ClientCount   int             `json:"client_count"`
	EntryCount    int             `json:"entry_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// CloseOptions controls what happens to stock when a batch is closed.
type CloseOptions struct {
	DeductStock bool `json:"deduct_stock"`
}

// EntryEdit is one change applied to a closed batch through EditClosedBatch.
// A nil EntryID inserts a new entry; Delete tombstones the referenced entry;
// otherwise the referenced entry's quantity is replaced.
type EntryEdit struct {
	EntryID   *uuid.UUID      `json:"entry_id,omitempty"`
	ClientID  uuid.UUID       `json:"client_id,omitempty"`
	ProductID uuid.UUID       `json:"product_id,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
	Delete    bool            `json:"delete,omitempty"`
}

// ── Billing ───────────────────────────────────────────────────────────────────

type Bill struct {
	ID          uuid.UUID       `json:"id"`
	ClientID    uuid.UUID       `json:"client_id"`
	BillDate    time.Time       `json:"bill_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	IsDeleted   bool            `json:"is_deleted"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []BillItem      `json:"items"`
}

// Balance is the unpaid part of the bill.
func (b Bill) Balance() decimal.Decimal {
	return b.TotalAmount.Sub(b.PaidAmount)
}

type BillItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// BillFilter narrows ListBills. Zero From/To mean unbounded.
type BillFilter struct {
	From           time.Time
	To             time.Time
	ClientID       *uuid.UUID
	IncludeDeleted bool
}

// ── Sync outbox ───────────────────────────────────────────────────────────────

type SyncKind string

const (
	SyncKindBills      SyncKind = "BILLS"
	SyncKindClients    SyncKind = "CLIENTS"
	SyncKindBatch      SyncKind = "BATCH"
	SyncKindAllBatches SyncKind = "ALL_BATCHES"
)

type SyncTaskStatus string

const (
	SyncPending SyncTaskStatus = "PENDING"
	SyncFailed  SyncTaskStatus = "FAILED"
	SyncDone    SyncTaskStatus = "DONE"
	SyncDead    SyncTaskStatus = "DEAD"
)

// SyncTask is a row of the local outbox. Revision is bumped every time the
// same pending (Kind, RefID) is enqueued again, so a push of stale data does
// not mark newer changes as done.
type SyncTask struct {
	ID            uuid.UUID      `json:"id"`
	Kind          SyncKind       `json:"kind"`
	RefID         string         `json:"ref_id,omitempty"`
	Status        SyncTaskStatus `json:"status"`
	Attempts      int            `json:"attempts"`
	Revision      int            `json:"revision"`
	NextAttemptAt time.Time      `json:"next_attempt_at"`
	LockedUntil   *time.Time     `json:"locked_until,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// SyncStatus summarises the outbox for the UI.
type SyncStatus struct {
	Pending   int        `json:"pending"`
	Failed    int        `json:"failed"`
	Dead      int        `json:"dead"`
	LastError string     `json:"last_error,omitempty"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
	// Disabled is set when no worker drains the outbox. Tasks still queue.
	Disabled  bool       `json:"disabled"`
}

// Message is the line shown to the user about replication.
func (s SyncStatus) Message() string {
	switch {
	case s.Disabled:
		return "sync is off; changes are saved on this device only"
	case s.Dead > 0:
		return "some changes could not be synced; check the sync log"
	case s.Pending+s.Failed > 0:
		return "saved locally, will sync later"
	default:
		return "all changes synced"
	}
}

// ── Reporting ─────────────────────────────────────────────────────────────────

type ProductProfit struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	Cost        decimal.Decimal `json:"cost"`
	Profit      decimal.Decimal `json:"profit"`
}

type ClientBalance struct {
	ClientID   uuid.UUID       `json:"client_id"`
	ClientName string          `json:"client_name"`
	Billed     decimal.Decimal `json:"billed"`
	Paid       decimal.Decimal `json:"paid"`
	Balance    decimal.Decimal `json:"balance"`
}

type VelocityClass string

const (
	VelocityFast VelocityClass = "FAST"
	VelocitySlow VelocityClass = "SLOW"
	VelocityDead VelocityClass = "DEAD"
)

// VelocityThresholds classify sold quantity over the window:
// sold >= FastQty is FAST, sold >= SlowQty (and > 0) is SLOW, anything else DEAD.
type VelocityThresholds struct {
	FastQty decimal.Decimal
	SlowQty decimal.Decimal
}

type StockVelocity struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	OnHand      decimal.Decimal `json:"on_hand"`
	SoldQty     decimal.Decimal `json:"sold_qty"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
	Class       VelocityClass   `json:"class"`
	// DaysRemaining is meaningless when Infinite is set (no consumption in the window).
	DaysRemaining decimal.Decimal `json:"days_remaining"`
	Infinite      bool            `json:"infinite"`
}
