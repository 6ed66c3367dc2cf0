package postgres

import (
	"context"
	"fmt"
)

// Issue is one failed integrity check with the number of offending rows.
type Issue struct {
	Check string
	Rows  int
}

type integrityCheck struct {
	name  string
	query string
}

var integrityChecks = []integrityCheck{
	{"negative stock", `SELECT COUNT(*) FROM stock WHERE quantity < 0`},
	{"duplicate live batch per date", `
		SELECT COUNT(*) FROM (
			SELECT demand_date FROM demand_batches WHERE is_deleted = false
			GROUP BY demand_date HAVING COUNT(*) > 1
		) d`},
	{"deducted batch without deduction rows", `
		SELECT COUNT(*) FROM demand_batches b
		WHERE b.stock_deducted AND b.is_deleted = false
		  AND EXISTS (SELECT 1 FROM demand_entries e WHERE e.batch_id = b.id AND e.is_deleted = false)
		  AND NOT EXISTS (SELECT 1 FROM batch_deductions d WHERE d.batch_id = b.id)`},
	{"deduction rows on an undeducted batch", `
		SELECT COUNT(DISTINCT d.batch_id) FROM batch_deductions d
		JOIN demand_batches b ON b.id = d.batch_id
		WHERE NOT b.stock_deducted`},
	{"stock deducted on an open batch", `
		SELECT COUNT(*) FROM demand_batches WHERE stock_deducted AND NOT closed`},
	{"non-positive live demand entry", `
		SELECT COUNT(*) FROM demand_entries WHERE is_deleted = false AND quantity <= 0`},
	{"bill total does not match items", `
		SELECT COUNT(*) FROM bills b
		WHERE b.total_amount <> ROUND(COALESCE(
			(SELECT SUM(i.quantity * i.price) FROM bill_items i WHERE i.bill_id = b.id), 0), 2)`},
	{"dead sync task", `SELECT COUNT(*) FROM sync_outbox WHERE status = 'DEAD'`},
}

// CheckIntegrity runs every invariant query and returns the ones that found rows.
func (s *Store) CheckIntegrity(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	for _, c := range integrityChecks {
		var n int
		if err := s.pool.QueryRow(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("integrity check %q failed: %w", c.name, err)
		}
		if n > 0 {
			issues = append(issues, Issue{Check: c.name, Rows: n})
		}
	}
	return issues, nil
}
