// Package postgres implements core.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	_ core.Store       = (*Store)(nil)
	_ core.OutboxStore = (*Store)(nil)
	_ core.Tx          = (*pgTx)(nil)
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}


func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() { s.pool.Close() }

type pgTx struct {
	tx pgx.Tx
}

func notFoundOr(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &core.NotFoundError{Entity: entity, ID: id.String()}
	}
	return err
}

// ── Products and clients ──────────────────────────────────────────────────────

const productColumns = `id, name, price, cost_price, is_deleted, created_at`

func scanProduct(row pgx.Row) (core.Product, error) {
	var p core.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.CostPrice, &p.IsDeleted, &p.CreatedAt)
	return p, err
}

func (t *pgTx) GetProduct(ctx context.Context, id uuid.UUID) (*core.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "product", id)
	}
	return &p, nil
}

func (t *pgTx) ListProducts(ctx context.Context, includeDeleted bool) ([]core.Product, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE $1 OR is_deleted = false
		ORDER BY name, id
	`, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertProduct(ctx context.Context, p core.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products (id, name, price, cost_price, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.Price, p.CostPrice, p.IsDeleted, p.CreatedAt)
	return err
}

func (t *pgTx) UpdateProduct(ctx context.Context, p core.Product) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET name = $2, price = $3, cost_price = $4, is_deleted = $5
		WHERE id = $1
	`, p.ID, p.Name, p.Price, p.CostPrice, p.IsDeleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "product", ID: p.ID.String()}
	}
	return nil
}

const clientColumns = `id, name, phone, is_deleted, created_at`

func scanClient(row pgx.Row) (core.Client, error) {
	var c core.Client
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.IsDeleted, &c.CreatedAt)
	return c, err
}

func (t *pgTx) GetClient(ctx context.Context, id uuid.UUID) (*core.Client, error) {
	c, err := scanClient(t.tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "client", id)
	}
	return &c, nil
}

func (t *pgTx) ListClients(ctx context.Context, includeDeleted bool) ([]core.Client, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE $1 OR is_deleted = false
		ORDER BY name, id
	`, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var out []core.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertClient(ctx context.Context, c core.Client) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO clients (id, name, phone, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, c.Phone, c.IsDeleted, c.CreatedAt)
	return err
}

func (t *pgTx) UpdateClient(ctx context.Context, c core.Client) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE clients SET name = $2, phone = $3, is_deleted = $4 WHERE id = $1
	`, c.ID, c.Name, c.Phone, c.IsDeleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "client", ID: c.ID.String()}
	}
	return nil
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (t *pgTx) LockStock(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`SELECT quantity FROM stock WHERE product_id = $1 FOR UPDATE`, productID,
	).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return qty, nil
}

func (t *pgTx) WriteStock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock (product_id, quantity, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
	`, productID, qty)
	return err
}

func (t *pgTx) ListStock(ctx context.Context) ([]core.StockLevel, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT p.id, p.name, COALESCE(s.quantity, 0)
		FROM products p
		LEFT JOIN stock s ON s.product_id = p.id
		WHERE p.is_deleted = false
		ORDER BY p.name, p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	var out []core.StockLevel
	for rows.Next() {
		var l core.StockLevel
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
