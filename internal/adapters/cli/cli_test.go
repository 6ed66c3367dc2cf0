package cli_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"demand-ledger/internal/adapters/cli"
	"demand-ledger/internal/app"
	"demand-ledger/internal/core"
	"demand-ledger/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPusher struct{ calls int }

func (p *countingPusher) ProcessOnce(context.Context) (int, error) {
	p.calls++
	return 3, nil
}

func newSvc(t *testing.T) app.ApplicationService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memory.New()
	return app.NewAppService(app.Deps{
		Store:              store,
		Outbox:             store,
		Clock:              core.NewFixedClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), time.UTC),
		Thresholds:         core.VelocityThresholds{FastQty: decimal.NewFromInt(10), SlowQty: decimal.NewFromInt(1)},
		VelocityWindowDays: 30,
		Log:                logger,
	})
}

func run(t *testing.T, svc app.ApplicationService, push cli.Pusher, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cli.NewApp(svc, push, &out).RunContext(context.Background(), append([]string{"demand"}, args...))
	return out.String(), err
}

func TestBatchAndStockCommands(t *testing.T) {
	svc := newSvc(t)
	ctx := context.Background()
	p, err := svc.CreateProduct(ctx, app.CreateProductRequest{Name: "Ghee 500ml", Price: decimal.NewFromInt(320), CostPrice: decimal.NewFromInt(280)})
	require.NoError(t, err)
	pid := p.Product.ID.String()

	out, err := run(t, svc, nil, "stock", "set", pid, "6")
	require.NoError(t, err)
	assert.Contains(t, out, "On hand: 6")

	out, err = run(t, svc, nil, "stock", "adjust", pid, "-2")
	require.NoError(t, err)
	assert.Contains(t, out, "On hand: 4")

	out, err = run(t, svc, nil, "batch", "today")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-10-14  (open)")

	out, err = run(t, svc, nil, "batch", "today", "--date", "2026-10-15")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-10-15")

	out, err = run(t, svc, nil, "batch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-10-14")
	assert.Contains(t, out, "2026-10-15")

	out, err = run(t, svc, nil, "stock", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Ghee 500ml")
}

func TestUsageErrors(t *testing.T) {
	svc := newSvc(t)

	_, err := run(t, svc, nil, "batch", "close")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing <batch-id>")

	_, err = run(t, svc, nil, "stock", "adjust", "0b7c8a3e-62a4-4c40-9d61-3e0e0f0a0a0a", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delta must be a number")

	_, err = run(t, svc, nil, "product", "add", "Tea")
	require.Error(t, err, "price flags are required")
}

func TestSyncPush(t *testing.T) {
	svc := newSvc(t)

	out, err := run(t, svc, nil, "sync", "push")
	require.NoError(t, err)
	assert.Contains(t, out, "Full backup queued.")

	p := &countingPusher{}
	out, err = run(t, svc, p, "sync", "push")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
	assert.Contains(t, out, "Pushed 3 changes.")

	out, err = run(t, svc, nil, "sync", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "saved locally, will sync later")
}
