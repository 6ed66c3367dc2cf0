package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddDecision is the answer to "may this bill hold delta more units?".
type AddDecision struct {
	Allowed   bool                    `json:"allowed"`
	Available decimal.Decimal         `json:"available"`
	Committed decimal.Decimal         `json:"committed"`
	Reason    string                  `json:"reason,omitempty"`
	Err       *InsufficientStockError `json:"-"`
}

// BillStockGuard keeps a bill being edited from holding more of a product
// than stock has. It reads stock fresh on every call and holds no cache.
type BillStockGuard interface {
	CanAdd(ctx context.Context, productID uuid.UUID, delta decimal.Decimal, currentItems []BillItem) (AddDecision, error)
}

type billStockGuard struct {
	ledger StockLedger
}

func NewBillStockGuard(ledger StockLedger) BillStockGuard {
	return &billStockGuard{ledger: ledger}
}

func (g *billStockGuard) CanAdd(ctx context.Context, productID uuid.UUID, delta decimal.Decimal, currentItems []BillItem) (AddDecision, error) {
	committed := CommittedQuantity(currentItems, productID)
	if !delta.IsPositive() {
		return AddDecision{Allowed: true, Committed: committed}, nil
	}
	level, err := g.ledger.GetStockLevel(ctx, productID)
	if err != nil {
		return AddDecision{}, err
	}
	return decideAdd(level, committed, delta), nil
}

func decideAdd(level StockLevel, committed, delta decimal.Decimal) AddDecision {
	available := level.Quantity
	d := AddDecision{Available: available, Committed: committed}
	wanted := committed.Add(delta)
	if wanted.LessThanOrEqual(available) {
		d.Allowed = true
		return d
	}
	d.Reason = fmt.Sprintf("only %s units available", available.String())
	d.Err = &InsufficientStockError{
		ProductID:   level.ProductID,
		ProductName: level.ProductName,
		Available:   available,
		Requested:   wanted,
	}
	return d
}
