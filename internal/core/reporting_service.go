package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportingService computes read-only metrics over reconciled data.
// Soft-deleted bills and batches never contribute, and demand only counts
// once its batch is closed.
type ReportingService interface {
	ProductProfit(ctx context.Context, from, to time.Time) ([]ProductProfit, error)
	// PurchaseSummary totals demand of closed batches dated within [from, to].
	PurchaseSummary(ctx context.Context, from, to time.Time) ([]ProductTotal, error)
	// ClientBalances lists clients that owe money, largest balance first.
	ClientBalances(ctx context.Context) ([]ClientBalance, error)
	// StockVelocity classifies every live product by sales over the windowDays ending at asOf.
	StockVelocity(ctx context.Context, asOf time.Time, windowDays int) ([]StockVelocity, error)
}

type reportingService struct {
	store      Store
	thresholds VelocityThresholds
}

func NewReportingService(store Store, thresholds VelocityThresholds) ReportingService {
	return &reportingService{store: store, thresholds: thresholds}
}

func (s *reportingService) ProductProfit(ctx context.Context, from, to time.Time) ([]ProductProfit, error) {
	var out []ProductProfit
	err := s.store.InTx(ctx, func(tx Tx) error {
		bills, err := tx.ListBills(ctx, BillFilter{From: DateOf(from), To: DateOf(to)})
		if err != nil {
			return fmt.Errorf("failed to list bills: %w", err)
		}
		products, err := tx.ListProducts(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		out = ProfitByProduct(bills, products)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reportingService) PurchaseSummary(ctx context.Context, from, to time.Time) ([]ProductTotal, error) {
	var out []ProductTotal
	err := s.store.InTx(ctx, func(tx Tx) error {
		batches, err := tx.ListBatches(ctx, DateOf(from), DateOf(to))
		if err != nil {
			return fmt.Errorf("failed to list batches: %w", err)
		}
		var lists [][]ProductTotal
		for _, b := range batches {
			if !b.Closed || b.IsDeleted {
				continue
			}
			totals, err := batchTotalsTx(ctx, tx, b.ID)
			if err != nil {
				return err
			}
			lists = append(lists, totals)
		}
		out = MergeTotals(lists...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reportingService) ClientBalances(ctx context.Context) ([]ClientBalance, error) {
	var out []ClientBalance
	err := s.store.InTx(ctx, func(tx Tx) error {
		bills, err := tx.ListBills(ctx, BillFilter{})
		if err != nil {
			return fmt.Errorf("failed to list bills: %w", err)
		}
		clients, err := tx.ListClients(ctx, true)
		if err != nil {
			return fmt.Errorf("failed to list clients: %w", err)
		}
		out = OutstandingBalances(bills, clients)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reportingService) StockVelocity(ctx context.Context, asOf time.Time, windowDays int) ([]StockVelocity, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("velocity window must be at least one day, got %d", windowDays)
	}
	end := DateOf(asOf)
	start := end.AddDate(0, 0, -(windowDays - 1))
	var out []StockVelocity
	err := s.store.InTx(ctx, func(tx Tx) error {
		bills, err := tx.ListBills(ctx, BillFilter{From: start, To: end})
		if err != nil {
			return fmt.Errorf("failed to list bills: %w", err)
		}
		levels, err := tx.ListStock(ctx)
		if err != nil {
			return fmt.Errorf("failed to list stock: %w", err)
		}
		out = ClassifyVelocity(levels, SoldQuantities(bills), windowDays, s.thresholds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ── Pure computations ─────────────────────────────────────────────────────────

// ProfitByProduct uses the price stored on each bill item for revenue and the
// product's current cost price for cost.
func ProfitByProduct(bills []Bill, products []Product) []ProductProfit {
	byID := make(map[uuid.UUID]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	acc := make(map[uuid.UUID]*ProductProfit)
	for _, b := range bills {
		if b.IsDeleted {
			continue
		}
		for _, it := range b.Items {
			pp, ok := acc[it.ProductID]
			if !ok {
				pp = &ProductProfit{ProductID: it.ProductID, ProductName: byID[it.ProductID].Name}
				acc[it.ProductID] = pp
			}
			pp.Quantity = pp.Quantity.Add(it.Quantity)
			pp.Revenue = pp.Revenue.Add(it.Quantity.Mul(it.Price))
			pp.Cost = pp.Cost.Add(it.Quantity.Mul(byID[it.ProductID].CostPrice))
		}
	}
	out := make([]ProductProfit, 0, len(acc))
	for _, pp := range acc {
		pp.Profit = pp.Revenue.Sub(pp.Cost)
		out = append(out, *pp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Profit.Equal(out[j].Profit) {
			return out[i].Profit.GreaterThan(out[j].Profit)
		}
		return out[i].ProductName < out[j].ProductName
	})
	return out
}

// OutstandingBalances keeps only clients whose billed amount exceeds what they paid.
func OutstandingBalances(bills []Bill, clients []Client) []ClientBalance {
	names := clientNameIndex(clients)
	acc := make(map[uuid.UUID]*ClientBalance)
	for _, b := range bills {
		if b.IsDeleted {
			continue
		}
		cb, ok := acc[b.ClientID]
		if !ok {
			cb = &ClientBalance{ClientID: b.ClientID, ClientName: names[b.ClientID]}
			acc[b.ClientID] = cb
		}
		cb.Billed = cb.Billed.Add(b.TotalAmount)
		cb.Paid = cb.Paid.Add(b.PaidAmount)
	}
	out := make([]ClientBalance, 0, len(acc))
	for _, cb := range acc {
		cb.Balance = cb.Billed.Sub(cb.Paid)
		if cb.Balance.IsPositive() {
			out = append(out, *cb)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Balance.Equal(out[j].Balance) {
			return out[i].Balance.GreaterThan(out[j].Balance)
		}
		return out[i].ClientName < out[j].ClientName
	})
	return out
}

// SoldQuantities sums item quantities of live bills per product.
func SoldQuantities(bills []Bill) map[uuid.UUID]decimal.Decimal {
	sold := make(map[uuid.UUID]decimal.Decimal)
	for _, b := range bills {
		if b.IsDeleted {
			continue
		}
		for _, it := range b.Items {
			sold[it.ProductID] = sold[it.ProductID].Add(it.Quantity)
		}
	}
	return sold
}

// ClassifyVelocity rates each stock level and estimates days of cover.
// Zero consumption is flagged Infinite rather than dividing by zero.
func ClassifyVelocity(levels []StockLevel, sold map[uuid.UUID]decimal.Decimal, windowDays int, th VelocityThresholds) []StockVelocity {
	days := decimal.NewFromInt(int64(windowDays))
	out := make([]StockVelocity, 0, len(levels))
	for _, l := range levels {
		qty := sold[l.ProductID]
		v := StockVelocity{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			OnHand:      l.Quantity,
			SoldQty:     qty,
			DailyRate:   qty.Div(days).Round(4),
		}
		switch {
		case qty.IsPositive() && qty.GreaterThanOrEqual(th.FastQty):
			v.Class = VelocityFast
		case qty.IsPositive() && qty.GreaterThanOrEqual(th.SlowQty):
			v.Class = VelocitySlow
		default:
			v.Class = VelocityDead
		}
		if qty.IsPositive() {
			v.DaysRemaining = l.Quantity.Mul(days).Div(qty).Round(1)
		} else {
			v.Infinite = true
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
	return out
}
