package core_test

import (
	"testing"
	"time"

	"demand-ledger/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAdd(t *testing.T) {
	f := setup(t)
	q := f.product(t, "Q", 3)
	onBill := []core.BillItem{{ProductID: q.ID, Quantity: qty(2), Price: qty(50)}}

	t.Run("Fail when bill would exceed stock", func(t *testing.T) {
		d, err := f.guard.CanAdd(f.ctx, q.ID, qty(2), onBill)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, "only 3 units available", d.Reason)
		require.NotNil(t, d.Err)
		requireQty(t, 3, d.Err.Available)
		requireQty(t, 4, d.Err.Requested)
		assert.Equal(t, "Q", d.Err.ProductName)
		assert.Equal(t, "insufficient stock for product Q: available 3, required 4, short by 1", d.Err.Error())
	})

	t.Run("Success within stock", func(t *testing.T) {
		d, err := f.guard.CanAdd(f.ctx, q.ID, qty(1), onBill)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		requireQty(t, 2, d.Committed)
	})

	t.Run("Decrements are always allowed", func(t *testing.T) {
		d, err := f.guard.CanAdd(f.ctx, q.ID, qty(-2), onBill)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("Reads stock fresh", func(t *testing.T) {
		_, err := f.ledger.Adjust(f.ctx, q.ID, qty(-3))
		require.NoError(t, err)
		d, err := f.guard.CanAdd(f.ctx, q.ID, qty(1), nil)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, "only 0 units available", d.Reason)
	})
}

func TestCreateBill(t *testing.T) {
	f := setup(t)
	milk := f.product(t, "Milk", 10)
	eggs := f.product(t, "Eggs", 6)
	c := f.client(t, "Asha")

	t.Run("Success", func(t *testing.T) {
		bill, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
			ClientID: c.ID,
			Items: []core.BillItem{
				{ProductID: milk.ID, Quantity: qty(2), Price: qty(30)},
				{ProductID: eggs.ID, Quantity: qty(6), Price: decimal.RequireFromString("7.5")},
				{ProductID: milk.ID, Quantity: qty(1), Price: qty(30)},
			},
			Paid: qty(50),
		})
		require.NoError(t, err)
		assert.Equal(t, "135", bill.TotalAmount.String())
		assert.Equal(t, "85", bill.Balance().String())
		assert.Equal(t, "2026-10-14", bill.BillDate.Format("2006-01-02"))
		requireQty(t, 7, f.stockOf(t, milk.ID))
		requireQty(t, 0, f.stockOf(t, eggs.ID))
	})

	t.Run("Fail on insufficient stock applies nothing", func(t *testing.T) {
		_, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
			ClientID: c.ID,
			Items: []core.BillItem{
				{ProductID: milk.ID, Quantity: qty(1), Price: qty(30)},
				{ProductID: eggs.ID, Quantity: qty(1), Price: qty(8)},
			},
		})
		var short *core.InsufficientStockError
		require.ErrorAs(t, err, &short)
		assert.Equal(t, eggs.ID, short.ProductID)
		requireQty(t, 7, f.stockOf(t, milk.ID))
	})

	t.Run("Fail on empty bill", func(t *testing.T) {
		_, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{ClientID: c.ID})
		assert.Error(t, err)
	})

	t.Run("Fail on zero quantity", func(t *testing.T) {
		_, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
			ClientID: c.ID,
			Items:    []core.BillItem{{ProductID: milk.ID, Quantity: qty(0), Price: qty(1)}},
		})
		assert.ErrorIs(t, err, core.ErrInvalidQuantity)
	})
}

func TestDeleteAndRestoreBill(t *testing.T) {
	f := setup(t)
	milk := f.product(t, "Milk", 5)
	c := f.client(t, "Asha")
	bill, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
		ClientID: c.ID,
		Items:    []core.BillItem{{ProductID: milk.ID, Quantity: qty(4), Price: qty(30)}},
	})
	require.NoError(t, err)
	requireQty(t, 1, f.stockOf(t, milk.ID))

	require.NoError(t, f.bills.DeleteBill(f.ctx, bill.ID))
	requireQty(t, 5, f.stockOf(t, milk.ID))

	t.Run("Delete twice is a no-op", func(t *testing.T) {
		require.NoError(t, f.bills.DeleteBill(f.ctx, bill.ID))
		requireQty(t, 5, f.stockOf(t, milk.ID))
	})

	t.Run("Deleted bill is hidden", func(t *testing.T) {
		_, err := f.bills.GetBill(f.ctx, bill.ID)
		assert.True(t, core.IsNotFound(err))
		live, err := f.bills.ListBills(f.ctx, core.BillFilter{})
		require.NoError(t, err)
		assert.Empty(t, live)
		all, err := f.bills.ListBills(f.ctx, core.BillFilter{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Restore fails when stock was sold meanwhile", func(t *testing.T) {
		_, err := f.ledger.Adjust(f.ctx, milk.ID, qty(-3))
		require.NoError(t, err)
		_, err = f.bills.RestoreBill(f.ctx, bill.ID)
		var short *core.InsufficientStockError
		assert.ErrorAs(t, err, &short)
		requireQty(t, 2, f.stockOf(t, milk.ID))
	})

	t.Run("Restore succeeds with stock", func(t *testing.T) {
		_, err := f.ledger.Adjust(f.ctx, milk.ID, qty(3))
		require.NoError(t, err)
		restored, err := f.bills.RestoreBill(f.ctx, bill.ID)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted)
		requireQty(t, 1, f.stockOf(t, milk.ID))
	})
}

func TestRecordPayment(t *testing.T) {
	f := setup(t)
	milk := f.product(t, "Milk", 5)
	c := f.client(t, "Asha")
	bill, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
		ClientID: c.ID,
		Date:     time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Items:    []core.BillItem{{ProductID: milk.ID, Quantity: qty(2), Price: qty(30)}},
	})
	require.NoError(t, err)

	paid, err := f.bills.RecordPayment(f.ctx, bill.ID, qty(25))
	require.NoError(t, err)
	assert.Equal(t, "35", paid.Balance().String())

	_, err = f.bills.RecordPayment(f.ctx, bill.ID, qty(0))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}
