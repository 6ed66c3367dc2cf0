package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLedger owns per-product stock. Adjust is the only primitive that
// changes a quantity, and it refuses any change that would go below zero.
type StockLedger interface {
	// Standalone operations (manage their own transactions).
	GetAvailable(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	// GetStockLevel is GetAvailable with the product name attached.
	GetStockLevel(ctx context.Context, productID uuid.UUID) (StockLevel, error)
	Adjust(ctx context.Context, productID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	// SetStock replaces the on-hand quantity after a physical count.
	SetStock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error)
	ListStock(ctx context.Context) ([]StockLevel, error)

	// TX-scoped operations: work within a caller-provided transaction.
	// Used by BatchManager and BillService so stock moves commit with the
	// batch or bill change that caused them.
	AvailableTx(ctx context.Context, tx Tx, productID uuid.UUID) (decimal.Decimal, error)
	StockLevelTx(ctx context.Context, tx Tx, productID uuid.UUID) (StockLevel, error)
	AdjustTx(ctx context.Context, tx Tx, productID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type stockLedger struct {
	store Store
}

func NewStockLedger(store Store) StockLedger {
	return &stockLedger{store: store}
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (l *stockLedger) GetAvailable(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	level, err := l.GetStockLevel(ctx, productID)
	return level.Quantity, err
}

func (l *stockLedger) GetStockLevel(ctx context.Context, productID uuid.UUID) (StockLevel, error) {
	var level StockLevel
	err := l.store.InTx(ctx, func(tx Tx) error {
		var err error
		level, err = l.StockLevelTx(ctx, tx, productID)
		return err
	})
	return level, err
}

func (l *stockLedger) Adjust(ctx context.Context, productID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := l.store.InTx(ctx, func(tx Tx) error {
		var err error
		qty, err = l.AdjustTx(ctx, tx, productID, delta)
		return err
	})
	return qty, err
}

func (l *stockLedger) SetStock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.IsNegative() {
		return decimal.Zero, fmt.Errorf("stock count cannot be negative, got %s", qty)
	}
	if err := checkQuantityScale(qty); err != nil {
		return decimal.Zero, err
	}
	var result decimal.Decimal
	err := l.store.InTx(ctx, func(tx Tx) error {
		current, err := l.AvailableTx(ctx, tx, productID)
		if err != nil {
			return err
		}
		result, err = l.AdjustTx(ctx, tx, productID, qty.Sub(current))
		return err
	})
	return result, err
}

func (l *stockLedger) ListStock(ctx context.Context) ([]StockLevel, error) {
	var levels []StockLevel
	err := l.store.InTx(ctx, func(tx Tx) error {
		var err error
		levels, err = tx.ListStock(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	return levels, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (l *stockLedger) AvailableTx(ctx context.Context, tx Tx, productID uuid.UUID) (decimal.Decimal, error) {
	level, err := l.StockLevelTx(ctx, tx, productID)
	return level.Quantity, err
}

func (l *stockLedger) StockLevelTx(ctx context.Context, tx Tx, productID uuid.UUID) (StockLevel, error) {
	p, err := liveProduct(ctx, tx, productID)
	if err != nil {
		return StockLevel{}, err
	}
	qty, err := tx.LockStock(ctx, productID)
	if err != nil {
		return StockLevel{}, fmt.Errorf("failed to read stock for product %s: %w", productID, err)
	}
	return StockLevel{ProductID: p.ID, ProductName: p.Name, Quantity: qty}, nil
}

// AdjustTx locks the stock row, checks the result and writes it.
// A rejected adjustment leaves the row untouched. Stock can still be given
// back to a deleted product so bills and closed batches holding it can be undone.
func (l *stockLedger) AdjustTx(ctx context.Context, tx Tx, productID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := checkQuantityScale(delta); err != nil {
		return decimal.Zero, err
	}
	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if p.IsDeleted && !delta.IsPositive() {
		return decimal.Zero, notFound("product", productID)
	}
	current, err := tx.LockStock(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock stock for product %s: %w", productID, err)
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return current, &InsufficientStockError{
			ProductID:   productID,
			ProductName: p.Name,
			Available:   current,
			Requested:   delta.Neg(),
		}
	}
	if delta.IsZero() {
		return current, nil
	}
	if err := tx.WriteStock(ctx, productID, next); err != nil {
		return current, fmt.Errorf("failed to update stock for product %s: %w", productID, err)
	}
	return next, nil
}

func liveProduct(ctx context.Context, tx Tx, id uuid.UUID) (*Product, error) {
	p, err := tx.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, notFound("product", id)
	}
	return p, nil
}

func liveClient(ctx context.Context, tx Tx, id uuid.UUID) (*Client, error) {
	c, err := tx.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted {
		return nil, notFound("client", id)
	}
	return c, nil
}
