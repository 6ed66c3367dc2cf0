package postgres

import (
	"context"
	"fmt"
	"strings"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const billColumns = `id, client_id, bill_date, total_amount, paid_amount, is_deleted, created_at`

func scanBill(row pgx.Row) (core.Bill, error) {
	var b core.Bill
	err := row.Scan(&b.ID, &b.ClientID, &b.BillDate, &b.TotalAmount, &b.PaidAmount, &b.IsDeleted, &b.CreatedAt)
	b.BillDate = core.DateOf(b.BillDate)
	return b, err
}

func (t *pgTx) InsertBill(ctx context.Context, b core.Bill) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO bills (`+billColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.ClientID, b.BillDate, b.TotalAmount, b.PaidAmount, b.IsDeleted, b.CreatedAt); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, it := range b.Items {
		batch.Queue(`
			INSERT INTO bill_items (bill_id, line_no, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, b.ID, i+1, it.ProductID, it.Quantity, it.Price)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for i := range b.Items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert bill item %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *pgTx) GetBill(ctx context.Context, id uuid.UUID) (*core.Bill, error) {
	b, err := scanBill(t.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "bill", id)
	}
	bills := []core.Bill{b}
	if err := t.loadItems(ctx, bills); err != nil {
		return nil, err
	}
	return &bills[0], nil
}

// UpdateBill changes header fields only; items are immutable once saved.
func (t *pgTx) UpdateBill(ctx context.Context, b core.Bill) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bills SET paid_amount = $2, is_deleted = $3 WHERE id = $1
	`, b.ID, b.PaidAmount, b.IsDeleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "bill", ID: b.ID.String()}
	}
	return nil
}

func (t *pgTx) ListBills(ctx context.Context, f core.BillFilter) ([]core.Bill, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeDeleted {
		where = append(where, "is_deleted = false")
	}
	if !f.From.IsZero() {
		args = append(args, core.DateOf(f.From))
		where = append(where, fmt.Sprintf("bill_date >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, core.DateOf(f.To))
		where = append(where, fmt.Sprintf("bill_date <= $%d", len(args)))
	}
	if f.ClientID != nil {
		args = append(args, *f.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	query := `SELECT ` + billColumns + ` FROM bills`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY bill_date, created_at, id`

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	var bills []core.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := t.loadItems(ctx, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (t *pgTx) loadItems(ctx context.Context, bills []core.Bill) error {
	if len(bills) == 0 {
		return nil
	}
	ids := make([]string, len(bills))
	index := make(map[uuid.UUID]int, len(bills))
	for i, b := range bills {
		ids[i] = b.ID.String()
		index[b.ID] = i
	}
	rows, err := t.tx.Query(ctx, `
		SELECT bill_id, product_id, quantity, price
		FROM bill_items
		WHERE bill_id = ANY($1::uuid[])
		ORDER BY bill_id, line_no
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query bill items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			billID uuid.UUID
			it     core.BillItem
		)
		if err := rows.Scan(&billID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("failed to scan bill item: %w", err)
		}
		i := index[billID]
		bills[i].Items = append(bills[i].Items, it)
	}
	return rows.Err()
}
