package postgres

import (
	"context"
	"fmt"
	"time"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const batchColumns = `id, demand_date, closed, stock_deducted, is_deleted, created_at, closed_at`

func scanBatch(row pgx.Row) (core.Batch, error) {
	var b core.Batch
	err := row.Scan(&b.ID, &b.DemandDate, &b.Closed, &b.StockDeducted, &b.IsDeleted, &b.CreatedAt, &b.ClosedAt)
	b.DemandDate = core.DateOf(b.DemandDate)
	return b, err
}

// UpsertBatchForDate relies on the partial unique index over live dates:
// a concurrent insert for the same day lands on the existing row.
func (t *pgTx) UpsertBatchForDate(ctx context.Context, date time.Time, newID uuid.UUID, now time.Time) (*core.Batch, error) {
	b, err := scanBatch(t.tx.QueryRow(ctx, `
		INSERT INTO demand_batches (id, demand_date, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (demand_date) WHERE is_deleted = false
		DO UPDATE SET updated_at = demand_batches.updated_at
		RETURNING `+batchColumns,
		newID, core.DateOf(date), now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert batch: %w", err)
	}
	return &b, nil
}

func (t *pgTx) GetBatch(ctx context.Context, id uuid.UUID) (*core.Batch, error) {
	b, err := scanBatch(t.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM demand_batches WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "batch", id)
	}
	return &b, nil
}

// LockBatch serialises lifecycle transitions of one batch.
func (t *pgTx) LockBatch(ctx context.Context, id uuid.UUID) (*core.Batch, error) {
	b, err := scanBatch(t.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM demand_batches WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFoundOr(err, "batch", id)
	}
	return &b, nil
}

func (t *pgTx) UpdateBatch(ctx context.Context, b core.Batch) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE demand_batches
		SET closed = $2, stock_deducted = $3, is_deleted = $4, closed_at = $5, updated_at = NOW()
		WHERE id = $1
	`, b.ID, b.Closed, b.StockDeducted, b.IsDeleted, b.ClosedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "batch", ID: b.ID.String()}
	}
	return nil
}

func (t *pgTx) ListBatches(ctx context.Context, from, to time.Time) ([]core.Batch, error) {
	var fromArg, toArg *time.Time
	if !from.IsZero() {
		fromArg = &from
	}
	if !to.IsZero() {
		toArg = &to
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+batchColumns+`
		FROM demand_batches
		WHERE is_deleted = false
		  AND ($1::date IS NULL OR demand_date >= $1)
		  AND ($2::date IS NULL OR demand_date <= $2)
		ORDER BY demand_date
	`, fromArg, toArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var out []core.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ── Entries ───────────────────────────────────────────────────────────────────

const entryColumns = `id, batch_id, client_id, product_id, quantity, is_deleted, created_at, updated_at`

func scanEntry(row pgx.Row) (core.DemandEntry, error) {
	var e core.DemandEntry
	err := row.Scan(&e.ID, &e.BatchID, &e.ClientID, &e.ProductID, &e.Quantity, &e.IsDeleted, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (t *pgTx) InsertEntry(ctx context.Context, e core.DemandEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO demand_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.BatchID, e.ClientID, e.ProductID, e.Quantity, e.IsDeleted, e.CreatedAt, e.UpdatedAt)
	return err
}

func (t *pgTx) GetEntry(ctx context.Context, id uuid.UUID) (*core.DemandEntry, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM demand_entries WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "demand entry", id)
	}
	return &e, nil
}

func (t *pgTx) UpdateEntry(ctx context.Context, e core.DemandEntry) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE demand_entries SET quantity = $2, is_deleted = $3, updated_at = $4 WHERE id = $1
	`, e.ID, e.Quantity, e.IsDeleted, e.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "demand entry", ID: e.ID.String()}
	}
	return nil
}

func (t *pgTx) ListEntries(ctx context.Context, batchID uuid.UUID, includeDeleted bool) ([]core.DemandEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+entryColumns+`
		FROM demand_entries
		WHERE batch_id = $1 AND ($2 OR is_deleted = false)
		ORDER BY created_at, id
	`, batchID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query demand entries: %w", err)
	}
	defer rows.Close()

	var out []core.DemandEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan demand entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ── Deductions ────────────────────────────────────────────────────────────────

func (t *pgTx) InsertDeduction(ctx context.Context, d core.BatchDeduction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO batch_deductions (batch_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_id, product_id) DO UPDATE SET quantity = batch_deductions.quantity + EXCLUDED.quantity
	`, d.BatchID, d.ProductID, d.Quantity)
	return err
}

func (t *pgTx) ListDeductions(ctx context.Context, batchID uuid.UUID) ([]core.BatchDeduction, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT batch_id, product_id, quantity FROM batch_deductions WHERE batch_id = $1 ORDER BY product_id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deductions: %w", err)
	}
	defer rows.Close()

	var out []core.BatchDeduction
	for rows.Next() {
		var d core.BatchDeduction
		if err := rows.Scan(&d.BatchID, &d.ProductID, &d.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan deduction: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *pgTx) DeleteDeductions(ctx context.Context, batchID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM batch_deductions WHERE batch_id = $1`, batchID)
	return err
}
