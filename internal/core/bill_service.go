package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreateBillInput carries a new bill. Date defaults to the business today.
type CreateBillInput struct {
	ClientID uuid.UUID
	Date     time.Time
	Items    []BillItem
	Paid     decimal.Decimal
}

// BillService is the sales side of the shared stock pool. Saving a bill takes
// every item out of stock in one transaction; deleting it puts them back.
type BillService interface {
	CreateBill(ctx context.Context, in CreateBillInput) (*Bill, error)
	GetBill(ctx context.Context, billID uuid.UUID) (*Bill, error)
	ListBills(ctx context.Context, f BillFilter) ([]Bill, error)
	// DeleteBill tombstones the bill and returns its items to stock. Deleting twice is a no-op.
	DeleteBill(ctx context.Context, billID uuid.UUID) error
	// RestoreBill undoes a delete, taking the items out of stock again.
	RestoreBill(ctx context.Context, billID uuid.UUID) (*Bill, error)
	RecordPayment(ctx context.Context, billID uuid.UUID, amount decimal.Decimal) (*Bill, error)
}

type billService struct {
	store    Store
	ledger   StockLedger
	clock    Clock
	notifier Notifier
	log      logrus.FieldLogger
}

func NewBillService(store Store, ledger StockLedger, clock Clock, notifier Notifier, log logrus.FieldLogger) BillService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &billService{
		store:    store,
		ledger:   ledger,
		clock:    clock,
		notifier: notifierOrNop(notifier),
		log:      log.WithField("module", "bill_service"),
	}
}

func (s *billService) write(ctx context.Context, fn func(tx Tx) error) error {
	if err := s.store.InTx(ctx, fn); err != nil {
		return err
	}
	s.notifier.Notify()
	return nil
}

func (s *billService) CreateBill(ctx context.Context, in CreateBillInput) (*Bill, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("bill must have at least one item")
	}
	if in.Paid.IsNegative() {
		return nil, fmt.Errorf("%w: paid cannot be negative, got %s", ErrInvalidAmount, in.Paid)
	}
	if err := checkMoneyScale(in.Paid); err != nil {
		return nil, err
	}
	for i, it := range in.Items {
		if err := checkQuantity(it.Quantity); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("item %d: %w: price cannot be negative, got %s", i, ErrInvalidAmount, it.Price)
		}
		if err := checkMoneyScale(it.Price); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	total := BillTotal(in.Items)
	date := in.Date
	if date.IsZero() {
		date = s.clock.Today()
	}

	bill := Bill{
		ID:          uuid.New(),
		ClientID:    in.ClientID,
		BillDate:    DateOf(date),
		TotalAmount: total,
		PaidAmount:  in.Paid,
		CreatedAt:   s.clock.Now(),
		Items:       append([]BillItem(nil), in.Items...),
	}
	err := s.write(ctx, func(tx Tx) error {
		if _, err := liveClient(ctx, tx, in.ClientID); err != nil {
			return err
		}
		if err := s.moveStockTx(ctx, tx, bill.Items, true); err != nil {
			return err
		}
		if err := tx.InsertBill(ctx, bill); err != nil {
			return fmt.Errorf("failed to insert bill: %w", err)
		}
		return tx.EnqueueSync(ctx, SyncKindBills, "", s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"bill_id": bill.ID, "items": len(bill.Items), "total": bill.TotalAmount.String()}).Info("bill saved")
	return &bill, nil
}

// moveStockTx deducts (or returns) the bill's quantities, one adjustment per product.
func (s *billService) moveStockTx(ctx context.Context, tx Tx, items []BillItem, deduct bool) error {
	for _, d := range sortedDeltas(itemQuantities(items)) {
		delta := d.Quantity
		if deduct {
			delta = delta.Neg()
		}
		if _, err := s.ledger.AdjustTx(ctx, tx, d.ProductID, delta); err != nil {
			return err
		}
	}
	return nil
}

func (s *billService) GetBill(ctx context.Context, billID uuid.UUID) (*Bill, error) {
	var bill *Bill
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		bill, err = tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if bill.IsDeleted {
			return notFound("bill", billID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *billService) ListBills(ctx context.Context, f BillFilter) ([]Bill, error) {
	var bills []Bill
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		bills, err = tx.ListBills(ctx, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	return bills, nil
}

func (s *billService) DeleteBill(ctx context.Context, billID uuid.UUID) error {
	return s.write(ctx, func(tx Tx) error {
		bill, err := tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if bill.IsDeleted {
			return nil
		}
		if err := s.moveStockTx(ctx, tx, bill.Items, false); err != nil {
			return fmt.Errorf("failed to return stock for bill %s: %w", billID, err)
		}
		bill.IsDeleted = true
		if err := tx.UpdateBill(ctx, *bill); err != nil {
			return fmt.Errorf("failed to delete bill: %w", err)
		}
		return tx.EnqueueSync(ctx, SyncKindBills, "", s.clock.Now())
	})
}

func (s *billService) RestoreBill(ctx context.Context, billID uuid.UUID) (*Bill, error) {
	var bill *Bill
	err := s.write(ctx, func(tx Tx) error {
		var err error
		bill, err = tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if !bill.IsDeleted {
			return nil
		}
		if _, err := liveClient(ctx, tx, bill.ClientID); err != nil {
			return err
		}
		if err := s.moveStockTx(ctx, tx, bill.Items, true); err != nil {
			return err
		}
		bill.IsDeleted = false
		if err := tx.UpdateBill(ctx, *bill); err != nil {
			return fmt.Errorf("failed to restore bill: %w", err)
		}
		return tx.EnqueueSync(ctx, SyncKindBills, "", s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *billService) RecordPayment(ctx context.Context, billID uuid.UUID, amount decimal.Decimal) (*Bill, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment must be positive, got %s", ErrInvalidAmount, amount)
	}
	if err := checkMoneyScale(amount); err != nil {
		return nil, err
	}
	var bill *Bill
	err := s.write(ctx, func(tx Tx) error {
		var err error
		bill, err = tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if bill.IsDeleted {
			return notFound("bill", billID)
		}
		bill.PaidAmount = bill.PaidAmount.Add(amount)
		if err := tx.UpdateBill(ctx, *bill); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		return tx.EnqueueSync(ctx, SyncKindBills, "", s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}
