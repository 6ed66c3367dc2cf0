// Package replication pushes committed local changes to a remote backup.
//
// Core services never talk to the network. They append a task to the outbox
// inside their local transaction; the Worker in this package claims those
// tasks, rebuilds the current snapshot from the store and hands it to a
// Gateway. A failed push is retried with backoff and never touches local data.
package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
)

// Gateway is the remote side of replication. Every call carries the full
// current state of what it names, so retrying a call is always safe.
type Gateway interface {
	SyncBills(ctx context.Context, bills []core.Bill) error
	SyncClients(ctx context.Context, clients []core.Client) error
	BackupDemandBatch(ctx context.Context, snap BatchSnapshot) error
	BackupAllDemandBatches(ctx context.Context, snaps []BatchSnapshot) error
}

// BatchSnapshot is one batch as replicated: header, every entry including
// tombstones, and the live totals at the time of the push.
type BatchSnapshot struct {
	Batch      core.Batch          `json:"batch"`
	Entries    []core.DemandEntry  `json:"entries"`
	Totals     []core.ProductTotal `json:"totals"`
	ExportedAt time.Time           `json:"exported_at"`
}

// Source reads the state a task refers to.
type Source interface {
	Bills(ctx context.Context) ([]core.Bill, error)
	Clients(ctx context.Context) ([]core.Client, error)
	Batch(ctx context.Context, batchID uuid.UUID) (BatchSnapshot, error)
	AllBatches(ctx context.Context) ([]BatchSnapshot, error)
}

type storeSource struct {
	store core.Store
	clock core.Clock
}

// NewStoreSource reads snapshots straight from the local store. Tombstones
// are included so the remote copy learns about deletions.
func NewStoreSource(store core.Store, clock core.Clock) Source {
	return &storeSource{store: store, clock: clock}
}

func (s *storeSource) Bills(ctx context.Context) ([]core.Bill, error) {
	var bills []core.Bill
	err := s.store.InTx(ctx, func(tx core.Tx) error {
		var err error
		bills, err = tx.ListBills(ctx, core.BillFilter{IncludeDeleted: true})
		return err
	})
	return bills, err
}

func (s *storeSource) Clients(ctx context.Context) ([]core.Client, error) {
	var clients []core.Client
	err := s.store.InTx(ctx, func(tx core.Tx) error {
		var err error
		clients, err = tx.ListClients(ctx, true)
		return err
	})
	return clients, err
}

func (s *storeSource) Batch(ctx context.Context, batchID uuid.UUID) (BatchSnapshot, error) {
	var snap BatchSnapshot
	err := s.store.InTx(ctx, func(tx core.Tx) error {
		names, err := productNames(ctx, tx)
		if err != nil {
			return err
		}
		b, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		snap, err = s.snapshotTx(ctx, tx, *b, names)
		return err
	})
	return snap, err
}

func (s *storeSource) AllBatches(ctx context.Context) ([]BatchSnapshot, error) {
	var snaps []BatchSnapshot
	err := s.store.InTx(ctx, func(tx core.Tx) error {
		names, err := productNames(ctx, tx)
		if err != nil {
			return err
		}
		batches, err := tx.ListBatches(ctx, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		for _, b := range batches {
			snap, err := s.snapshotTx(ctx, tx, b, names)
			if err != nil {
				return err
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	return snaps, err
}

func (s *storeSource) snapshotTx(ctx context.Context, tx core.Tx, b core.Batch, names map[uuid.UUID]string) (BatchSnapshot, error) {
	entries, err := tx.ListEntries(ctx, b.ID, true)
	if err != nil {
		return BatchSnapshot{}, fmt.Errorf("failed to list entries of batch %s: %w", b.ID, err)
	}
	return BatchSnapshot{
		Batch:      b,
		Entries:    entries,
		Totals:     core.SumByProduct(entries, names),
		ExportedAt: s.clock.Now(),
	}, nil
}

func productNames(ctx context.Context, tx core.Tx) (map[uuid.UUID]string, error) {
	products, err := tx.ListProducts(ctx, true)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}

// Fanout pushes to every gateway and joins their errors.
type Fanout []Gateway

func (f Fanout) SyncBills(ctx context.Context, bills []core.Bill) error {
	return f.each(func(g Gateway) error { return g.SyncBills(ctx, bills) })
}

func (f Fanout) SyncClients(ctx context.Context, clients []core.Client) error {
	return f.each(func(g Gateway) error { return g.SyncClients(ctx, clients) })
}

func (f Fanout) BackupDemandBatch(ctx context.Context, snap BatchSnapshot) error {
	return f.each(func(g Gateway) error { return g.BackupDemandBatch(ctx, snap) })
}

func (f Fanout) BackupAllDemandBatches(ctx context.Context, snaps []BatchSnapshot) error {
	return f.each(func(g Gateway) error { return g.BackupAllDemandBatches(ctx, snaps) })
}

func (f Fanout) each(fn func(Gateway) error) error {
	var errs []error
	for _, g := range f {
		if err := fn(g); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
