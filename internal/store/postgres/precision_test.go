package postgres_test

import (
	"testing"

	"demand-ledger/internal/core"
	"demand-ledger/internal/store/memory"
	"demand-ledger/internal/store/postgres"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Both stores must hold exactly what core accepted.
func TestPrecisionMatchesAcrossStores(t *testing.T) {
	stores := map[string]func(t *testing.T) core.Store{
		"memory":   func(t *testing.T) core.Store { return memory.New() },
		"postgres": func(t *testing.T) core.Store { return setupTestDB(t) },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			svc := newServices(t, store)
			ctx := svc.ctx

			p, err := svc.catalog.CreateProduct(ctx, "Loose Tea", dec("1.25"), dec("0.9"))
			require.NoError(t, err)
			_, err = svc.ledger.Adjust(ctx, p.ID, dec("2.125"))
			require.NoError(t, err)
			c, err := svc.catalog.CreateClient(ctx, "Corner Cafe", "")
			require.NoError(t, err)

			bill, err := svc.bills.CreateBill(ctx, core.CreateBillInput{
				ClientID: c.ID,
				Items:    []core.BillItem{{ProductID: p.ID, Quantity: dec("0.5"), Price: dec("1.25")}},
			})
			require.NoError(t, err)
			assert.Equal(t, "0.63", bill.TotalAmount.StringFixed(2))

			got, err := svc.bills.GetBill(ctx, bill.ID)
			require.NoError(t, err)
			assert.True(t, got.TotalAmount.Equal(bill.TotalAmount), "stored %s, returned %s", got.TotalAmount, bill.TotalAmount)
			left, err := svc.ledger.GetAvailable(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, left.Equal(dec("1.625")), "got %s", left)

			t.Run("Fail on quantities finer than the stored scale", func(t *testing.T) {
				batch, err := svc.batches.GetOrCreateTodayBatch(ctx)
				require.NoError(t, err)
				_, err = svc.batches.InsertDemandEntry(ctx, batch.ID, c.ID, p.ID, dec("0.0004"))
				assert.ErrorIs(t, err, core.ErrInvalidQuantity)

				_, err = svc.ledger.Adjust(ctx, p.ID, dec("-0.0001"))
				assert.ErrorIs(t, err, core.ErrInvalidQuantity)
				left, err := svc.ledger.GetAvailable(ctx, p.ID)
				require.NoError(t, err)
				assert.True(t, left.Equal(dec("1.625")), "got %s", left)
			})

			t.Run("Fail on money finer than cents", func(t *testing.T) {
				_, err := svc.catalog.UpdateProductPrices(ctx, p.ID, dec("1.005"), dec("1"))
				assert.ErrorIs(t, err, core.ErrInvalidAmount)
				_, err = svc.bills.RecordPayment(ctx, bill.ID, dec("0.001"))
				assert.ErrorIs(t, err, core.ErrInvalidAmount)
			})

			if pg, ok := store.(*postgres.Store); ok {
				issues, err := pg.CheckIntegrity(ctx)
				require.NoError(t, err)
				assert.Empty(t, issues)
			}
		})
	}
}
