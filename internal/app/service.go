package app

import (
	"context"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
//
// IDs and dates arrive as strings exactly as the adapter received them;
// malformed input is reported as ErrInvalidInput.
type ApplicationService interface {
	// ── Catalog ──────────────────────────────────────────────────────────────

	CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResult, error)
	UpdateProductPrices(ctx context.Context, req UpdatePricesRequest) (*ProductResult, error)
	// DeleteProduct soft-deletes; the product disappears from lists and lookups.
	DeleteProduct(ctx context.Context, productID string) error
	ListProducts(ctx context.Context) (*ProductListResult, error)
	CreateClient(ctx context.Context, req CreateClientRequest) (*ClientResult, error)
	DeleteClient(ctx context.Context, clientID string) error
	ListClients(ctx context.Context) (*ClientListResult, error)

	// ── Stock ────────────────────────────────────────────────────────────────

	GetStockLevels(ctx context.Context) (*StockResult, error)
	// AdjustStock applies a signed delta; a result below zero is rejected.
	AdjustStock(ctx context.Context, req StockChangeRequest) (*StockChangeResult, error)
	// SetStock overwrites the on-hand quantity after a physical count.
	SetStock(ctx context.Context, req StockChangeRequest) (*StockChangeResult, error)

	// ── Demand batches ───────────────────────────────────────────────────────

	// GetOrCreateBatch returns the live batch for date (YYYY-MM-DD), creating it
	// if needed. An empty date means the business today.
	GetOrCreateBatch(ctx context.Context, date string) (*BatchResult, error)
	GetBatch(ctx context.Context, batchID string) (*BatchResult, error)
	ListBatches(ctx context.Context, req DateRangeRequest) (*BatchListResult, error)
	AddDemandEntry(ctx context.Context, req AddEntryRequest) (*EntryResult, error)
	UpdateDemandEntry(ctx context.Context, req UpdateEntryRequest) (*EntryResult, error)
	DeleteDemandEntry(ctx context.Context, entryID string) error
	GetBatchTotals(ctx context.Context, batchID string) (*BatchTotalsResult, error)
	GetBatchDetails(ctx context.Context, batchID string, includeDeleted bool) (*BatchDetailsResult, error)
	GetBatchStats(ctx context.Context, batchID string) (*BatchStatsResult, error)
	// CloseBatch finalizes the batch, deducting its totals from stock when asked.
	// Either every product is deducted or nothing is.
	CloseBatch(ctx context.Context, req CloseBatchRequest) (*BatchResult, error)
	// ReopenBatch returns exactly what the close deducted back to stock.
	ReopenBatch(ctx context.Context, batchID string) (*BatchResult, error)
	// EditClosedBatch reopens, applies the edits, and closes again in one step.
	EditClosedBatch(ctx context.Context, req EditBatchRequest) (*BatchResult, error)
	DeleteBatch(ctx context.Context, batchID string) error
	// ExportBatch renders totals and the client breakdown as an XLSX workbook.
	ExportBatch(ctx context.Context, batchID string) (*ExportResult, error)

	// ── Billing ──────────────────────────────────────────────────────────────

	// CheckBillItem answers whether delta more units of a product fit on the
	// bill being edited, given what it already holds.
	CheckBillItem(ctx context.Context, req CheckItemRequest) (*CheckItemResult, error)
	CreateBill(ctx context.Context, req CreateBillRequest) (*BillResult, error)
	GetBill(ctx context.Context, billID string) (*BillResult, error)
	ListBills(ctx context.Context, req ListBillsRequest) (*BillListResult, error)
	DeleteBill(ctx context.Context, billID string) error
	RestoreBill(ctx context.Context, billID string) (*BillResult, error)
	RecordPayment(ctx context.Context, req PaymentRequest) (*BillResult, error)

	// ── Reports ──────────────────────────────────────────────────────────────

	ProductProfit(ctx context.Context, req DateRangeRequest) (*ProfitResult, error)
	PurchaseSummary(ctx context.Context, req DateRangeRequest) (*PurchaseSummaryResult, error)
	ClientBalances(ctx context.Context) (*BalancesResult, error)
	StockVelocity(ctx context.Context, req VelocityRequest) (*VelocityResult, error)

	// ── Sync ─────────────────────────────────────────────────────────────────

	SyncStatus(ctx context.Context) (*SyncStatusResult, error)
	// RequestFullBackup queues a push of every batch, bill and client.
	RequestFullBackup(ctx context.Context) error
}
