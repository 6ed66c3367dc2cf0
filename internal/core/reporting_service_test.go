package core_test

import (
	"testing"
	"time"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC) }

func TestProductProfitIgnoresDeletedBills(t *testing.T) {
	f := setup(t)
	milk := f.product(t, "Milk", 100) // price 50, cost 30
	c := f.client(t, "Asha")

	_, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
		ClientID: c.ID, Date: day(3),
		Items: []core.BillItem{{ProductID: milk.ID, Quantity: qty(4), Price: qty(45)}},
	})
	require.NoError(t, err)
	gone, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
		ClientID: c.ID, Date: day(4),
		Items: []core.BillItem{{ProductID: milk.ID, Quantity: qty(10), Price: qty(50)}},
	})
	require.NoError(t, err)
	require.NoError(t, f.bills.DeleteBill(f.ctx, gone.ID))
	_, err = f.bills.CreateBill(f.ctx, core.CreateBillInput{
		ClientID: c.ID, Date: day(20),
		Items: []core.BillItem{{ProductID: milk.ID, Quantity: qty(1), Price: qty(50)}},
	})
	require.NoError(t, err)

	profit, err := f.reports.ProductProfit(f.ctx, day(1), day(10))
	require.NoError(t, err)
	require.Len(t, profit, 1)
	requireQty(t, 4, profit[0].Quantity)
	requireQty(t, 180, profit[0].Revenue)
	requireQty(t, 120, profit[0].Cost)
	requireQty(t, 60, profit[0].Profit)
}

func TestPurchaseSummaryCountsClosedBatchesOnly(t *testing.T) {
	f := setup(t)
	p := f.product(t, "P", 0)
	c := f.client(t, "Asha")

	closed, err := f.batches.GetOrCreateBatchForDate(f.ctx, day(2))
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, closed.ID, c.ID, p.ID, qty(5))
	require.NoError(t, err)
	_, err = f.batches.CloseBatch(f.ctx, closed.ID, core.CloseOptions{})
	require.NoError(t, err)

	open, err := f.batches.GetOrCreateBatchForDate(f.ctx, day(3))
	require.NoError(t, err)
	_, err = f.batches.InsertDemandEntry(f.ctx, open.ID, c.ID, p.ID, qty(9))
	require.NoError(t, err)

	summary, err := f.reports.PurchaseSummary(f.ctx, day(1), day(31))
	require.NoError(t, err)
	require.Len(t, summary, 1)
	requireQty(t, 5, summary[0].Quantity)
}

func TestClientBalancesOnlyPositive(t *testing.T) {
	f := setup(t)
	milk := f.product(t, "Milk", 100)
	owes := f.client(t, "Owes")
	settled := f.client(t, "Settled")
	small := f.client(t, "Small")

	mk := func(c *core.Client, q, paid int64) {
		_, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
			ClientID: c.ID,
			Items:    []core.BillItem{{ProductID: milk.ID, Quantity: qty(q), Price: qty(10)}},
			Paid:     qty(paid),
		})
		require.NoError(t, err)
	}
	mk(owes, 5, 10)
	mk(owes, 2, 0)
	mk(settled, 3, 30)
	mk(small, 1, 5)

	balances, err := f.reports.ClientBalances(f.ctx)
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, owes.ID, balances[0].ClientID)
	requireQty(t, 60, balances[0].Balance)
	assert.Equal(t, small.ID, balances[1].ClientID)
	requireQty(t, 5, balances[1].Balance)
}

func TestStockVelocity(t *testing.T) {
	f := setup(t)
	fast := f.product(t, "Fast", 100)
	slow := f.product(t, "Slow", 100)
	dead := f.product(t, "Dead", 100)
	c := f.client(t, "Asha")
	_, err := f.bills.CreateBill(f.ctx, core.CreateBillInput{
		ClientID: c.ID, Date: day(10),
		Items: []core.BillItem{
			{ProductID: fast.ID, Quantity: qty(20), Price: qty(1)},
			{ProductID: slow.ID, Quantity: qty(2), Price: qty(1)},
		},
	})
	require.NoError(t, err)

	out, err := f.reports.StockVelocity(f.ctx, day(14), 10)
	require.NoError(t, err)
	require.Len(t, out, 3)
	byID := make(map[uuid.UUID]core.StockVelocity)
	for _, v := range out {
		byID[v.ProductID] = v
	}

	assert.Equal(t, core.VelocityFast, byID[fast.ID].Class)
	assert.Equal(t, "2", byID[fast.ID].DailyRate.String())
	assert.Equal(t, "40", byID[fast.ID].DaysRemaining.String())
	assert.Equal(t, core.VelocitySlow, byID[slow.ID].Class)
	assert.Equal(t, "490", byID[slow.ID].DaysRemaining.String())
	assert.Equal(t, core.VelocityDead, byID[dead.ID].Class)
	assert.True(t, byID[dead.ID].Infinite)

	_, err = f.reports.StockVelocity(f.ctx, day(14), 0)
	assert.Error(t, err)
}

func TestClassifyVelocityOutsideWindow(t *testing.T) {
	id := uuid.New()
	levels := []core.StockLevel{{ProductID: id, ProductName: "X", Quantity: qty(7)}}
	out := core.ClassifyVelocity(levels, map[uuid.UUID]decimal.Decimal{}, 7, core.VelocityThresholds{FastQty: qty(5), SlowQty: qty(1)})
	require.Len(t, out, 1)
	assert.Equal(t, core.VelocityDead, out[0].Class)
	assert.True(t, out[0].Infinite)
	assert.True(t, out[0].DailyRate.IsZero())
}
