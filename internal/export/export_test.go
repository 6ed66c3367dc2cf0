package export_test

import (
	"bytes"
	"testing"
	"time"

	"demand-ledger/internal/core"
	"demand-ledger/internal/export"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteBatchWorkbook(t *testing.T) {
	batch := core.Batch{ID: uuid.New(), DemandDate: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), Closed: true}
	totals := []core.ProductTotal{
		{ProductID: uuid.New(), ProductName: "Curd 1kg", Quantity: decimal.RequireFromString("12.5")},
		{ProductID: uuid.New(), ProductName: "Paneer", Quantity: decimal.NewFromInt(8)},
	}
	details := []core.ClientDemand{
		{ClientName: "Anand Stores", ProductName: "Paneer", Quantity: decimal.NewFromInt(4)},
		{ClientName: "Bharat Dairy", ProductName: "Paneer", Quantity: decimal.NewFromInt(4)},
		{ClientName: "Bharat Dairy", ProductName: "Curd 1kg", Quantity: decimal.RequireFromString("12.5")},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteBatchWorkbook(&buf, batch, totals, details))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Totals", "Clients"}, f.GetSheetList())

	rows, err := f.GetRows("Totals")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Purchase demand 2026-10-14 (closed)", rows[0][0])
	assert.Equal(t, []string{"Curd 1kg", "12.5"}, rows[2])
	assert.Equal(t, []string{"Paneer", "8"}, rows[3])

	rows, err = f.GetRows("Clients")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Client", "Product", "Quantity"}, rows[1])
	assert.Equal(t, []string{"Bharat Dairy", "Curd 1kg", "12.5"}, rows[4])
}

func TestBatchWorkbookEmptyBatch(t *testing.T) {
	f, err := export.BatchWorkbook(core.Batch{DemandDate: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)}, nil, nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Totals")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Purchase demand 2026-10-15 (open)", rows[0][0])
}
