package app

import (
	"time"

	"demand-ledger/internal/core"

	"github.com/shopspring/decimal"
)

type ProductResult struct {
	Product *core.Product `json:"product"`
}

type ProductListResult struct {
	Products []core.Product `json:"products"`
}

type ClientResult struct {
	Client *core.Client `json:"client"`
}

type ClientListResult struct {
	Clients []core.Client `json:"clients"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

type StockChangeResult struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type BatchResult struct {
	Batch *core.Batch `json:"batch"`
}

type BatchListResult struct {
	Batches []core.Batch `json:"batches"`
}

type EntryResult struct {
	Entry *core.DemandEntry `json:"entry"`
}

type BatchTotalsResult struct {
	Batch  *core.Batch         `json:"batch"`
	Totals []core.ProductTotal `json:"totals"`
}

type BatchDetailsResult struct {
	Batch   *core.Batch         `json:"batch"`
	Entries []core.ClientDemand `json:"entries"`
}

type BatchStatsResult struct {
	Batch *core.Batch      `json:"batch"`
	Stats *core.BatchStats `json:"stats"`
}

// ExportResult is a rendered workbook ready to be sent as a download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CheckItemResult struct {
	Decision core.AddDecision `json:"decision"`
}

type BillResult struct {
	Bill    *core.Bill      `json:"bill"`
	Balance decimal.Decimal `json:"balance"`
}

type BillListResult struct {
	Bills []core.Bill `json:"bills"`
}

type ProfitResult struct {
	Products []core.ProductProfit `json:"products"`
	Revenue  decimal.Decimal      `json:"revenue"`
	Cost     decimal.Decimal      `json:"cost"`
	Profit   decimal.Decimal      `json:"profit"`
}

type PurchaseSummaryResult struct {
	Totals []core.ProductTotal `json:"totals"`
}

type BalancesResult struct {
	Balances    []core.ClientBalance `json:"balances"`
	Outstanding decimal.Decimal      `json:"outstanding"`
}

type VelocityResult struct {
	AsOf       time.Time            `json:"as_of"`
	WindowDays int                  `json:"window_days"`
	Products   []core.StockVelocity `json:"products"`
}

// SyncStatusResult is what the UI shows about replication.
type SyncStatusResult struct {
	Status  core.SyncStatus `json:"status"`
	Message string          `json:"message"`
}
