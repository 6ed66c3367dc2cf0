package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogService manages products and clients. Deletes are tombstones;
// a deleted record answers NotFoundError to every lookup.
type CatalogService interface {
	CreateProduct(ctx context.Context, name string, price, costPrice decimal.Decimal) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateProductPrices(ctx context.Context, id uuid.UUID, price, costPrice decimal.Decimal) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListProducts(ctx context.Context) ([]Product, error)

	CreateClient(ctx context.Context, name, phone string) (*Client, error)
	GetClient(ctx context.Context, id uuid.UUID) (*Client, error)
	DeleteClient(ctx context.Context, id uuid.UUID) error
	ListClients(ctx context.Context) ([]Client, error)
}

type catalogService struct {
	store    Store
	clock    Clock
	notifier Notifier
}

func NewCatalogService(store Store, clock Clock, notifier Notifier) CatalogService {
	return &catalogService{store: store, clock: clock, notifier: notifierOrNop(notifier)}
}

// ── Products ──────────────────────────────────────────────────────────────────

func (s *catalogService) CreateProduct(ctx context.Context, name string, price, costPrice decimal.Decimal) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if err := checkPrices(price, costPrice); err != nil {
		return nil, err
	}
	p := Product{ID: uuid.New(), Name: name, Price: price, CostPrice: costPrice, CreatedAt: s.clock.Now()}
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
		return tx.WriteStock(ctx, p.ID, decimal.Zero)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p *Product
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = liveProduct(ctx, tx, id)
		return err
	})
	return p, err
}

func (s *catalogService) UpdateProductPrices(ctx context.Context, id uuid.UUID, price, costPrice decimal.Decimal) (*Product, error) {
	if err := checkPrices(price, costPrice); err != nil {
		return nil, err
	}
	var p *Product
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		p, err = liveProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		p.Price = price
		p.CostPrice = costPrice
		return tx.UpdateProduct(ctx, *p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct refuses while an open batch has live demand for the product.
// Bills and closed batches may keep referring to it; their stock returns still apply.
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.store.InTx(ctx, func(tx Tx) error {
		p, err := liveProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		batchID, found, err := openDemandFor(ctx, tx, id)
		if err != nil {
			return err
		}
		if found {
			return &ProductInUseError{ProductID: p.ID, ProductName: p.Name, BatchID: batchID}
		}
		p.IsDeleted = true
		return tx.UpdateProduct(ctx, *p)
	})
}

// openDemandFor finds the first open batch with a live entry for productID.
func openDemandFor(ctx context.Context, tx Tx, productID uuid.UUID) (uuid.UUID, bool, error) {
	batches, err := tx.ListBatches(ctx, time.Time{}, time.Time{})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to list batches: %w", err)
	}
	for _, b := range batches {
		if b.Closed {
			continue
		}
		entries, err := tx.ListEntries(ctx, b.ID, false)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("failed to list demand entries: %w", err)
		}
		for _, e := range entries {
			if e.ProductID == productID {
				return b.ID, true, nil
			}
		}
	}
	return uuid.Nil, false, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		products, err = tx.ListProducts(ctx, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ── Clients ───────────────────────────────────────────────────────────────────

func (s *catalogService) CreateClient(ctx context.Context, name, phone string) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("client name is required")
	}
	c := Client{ID: uuid.New(), Name: name, Phone: strings.TrimSpace(phone), CreatedAt: s.clock.Now()}
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertClient(ctx, c); err != nil {
			return fmt.Errorf("failed to insert client: %w", err)
		}
		return tx.EnqueueSync(ctx, SyncKindClients, "", s.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify()
	return &c, nil
}

func (s *catalogService) GetClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	var c *Client
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		c, err = liveClient(ctx, tx, id)
		return err
	})
	return c, err
}

func (s *catalogService) DeleteClient(ctx context.Context, id uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		c, err := liveClient(ctx, tx, id)
		if err != nil {
			return err
		}
		c.IsDeleted = true
		if err := tx.UpdateClient(ctx, *c); err != nil {
			return err
		}
		return tx.EnqueueSync(ctx, SyncKindClients, "", s.clock.Now())
	})
	if err != nil {
		return err
	}
	s.notifier.Notify()
	return nil
}

func (s *catalogService) ListClients(ctx context.Context) ([]Client, error) {
	var clients []Client
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		clients, err = tx.ListClients(ctx, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}
