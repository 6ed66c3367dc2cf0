package core_test

import (
	"context"
	"testing"
	"time"

	"demand-ledger/internal/core"
	"demand-ledger/internal/store/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	clock   *core.BusinessClock
	ledger  core.StockLedger
	batches core.BatchManager
	bills   core.BillService
	guard   core.BillStockGuard
	catalog core.CatalogService
	reports core.ReportingService
	notes   *countingNotifier
	logs    *test.Hook
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() { c.n++ }

func setup(t *testing.T) *fixture {
	t.Helper()
	loc := time.FixedZone("IST", 5*3600+1800)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := memory.New()
	clock := core.NewFixedClock(time.Date(2026, 10, 14, 9, 30, 0, 0, loc), loc)
	notes := &countingNotifier{}
	ledger := core.NewStockLedger(store)
	return &fixture{
		ctx:     context.Background(),
		store:   store,
		clock:   clock,
		ledger:  ledger,
		batches: core.NewBatchManager(store, ledger, clock, notes, logger),
		bills:   core.NewBillService(store, ledger, clock, notes, logger),
		guard:   core.NewBillStockGuard(ledger),
		catalog: core.NewCatalogService(store, clock, notes),
		reports: core.NewReportingService(store, core.VelocityThresholds{
			FastQty: decimal.NewFromInt(10),
			SlowQty: decimal.NewFromInt(1),
		}),
		notes: notes,
		logs:  hook,
	}
}

func (f *fixture) product(t *testing.T, name string, stock int64) *core.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(f.ctx, name, decimal.NewFromInt(50), decimal.NewFromInt(30))
	require.NoError(t, err)
	if stock > 0 {
		_, err = f.ledger.Adjust(f.ctx, p.ID, decimal.NewFromInt(stock))
		require.NoError(t, err)
	}
	return p
}

func (f *fixture) client(t *testing.T, name string) *core.Client {
	t.Helper()
	c, err := f.catalog.CreateClient(f.ctx, name, "")
	require.NoError(t, err)
	return c
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	q, err := f.ledger.GetAvailable(f.ctx, id)
	require.NoError(t, err)
	return q
}

// rawStock reads the stock row directly, including for deleted products.
func (f *fixture) rawStock(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var q decimal.Decimal
	require.NoError(t, f.store.InTx(f.ctx, func(tx core.Tx) error {
		var err error
		q, err = tx.LockStock(f.ctx, id)
		return err
	}))
	return q
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func requireQty(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(qty(want)), "want %d, got %s", want, got)
}
