// Package export renders batch reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"demand-ledger/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	totalsSheet  = "Totals"
	clientsSheet = "Clients"
)

// BatchWorkbook lays out totals and the per-client breakdown exactly as given.
// Rows are written in input order; nothing is re-aggregated here.
func BatchWorkbook(batch core.Batch, totals []core.ProductTotal, details []core.ClientDemand) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", totalsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(clientsSheet); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	status := "open"
	if batch.Closed {
		status = "closed"
	}
	title := fmt.Sprintf("Purchase demand %s (%s)", batch.DemandDate.Format("2006-01-02"), status)

	rows := [][]any{{title}, {"Product", "Quantity"}}
	for _, t := range totals {
		rows = append(rows, []any{t.ProductName, t.Quantity.InexactFloat64()})
	}
	if err := writeRows(f, totalsSheet, rows); err != nil {
		f.Close()
		return nil, err
	}

	rows = [][]any{{title}, {"Client", "Product", "Quantity"}}
	for _, d := range details {
		rows = append(rows, []any{d.ClientName, d.ProductName, d.Quantity.InexactFloat64()})
	}
	if err := writeRows(f, clientsSheet, rows); err != nil {
		f.Close()
		return nil, err
	}

	for _, sheet := range []string{totalsSheet, clientsSheet} {
		if err := f.SetCellStyle(sheet, "A1", "C2", bold); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(sheet, "A", "B", 28); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteBatchWorkbook streams the workbook to w.
func WriteBatchWorkbook(w io.Writer, batch core.Batch, totals []core.ProductTotal, details []core.ClientDemand) error {
	f, err := BatchWorkbook(batch, totals, details)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	defer f.Close()
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
