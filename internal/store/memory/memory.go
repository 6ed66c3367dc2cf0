// Package memory is an in-process core.Store used for tests, demos and
// running without a database. A transaction works on a copy of the state
// and swaps it in on commit; one mutex serialises transactions.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"demand-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type state struct {
	products   map[uuid.UUID]core.Product
	clients    map[uuid.UUID]core.Client
	stock      map[uuid.UUID]decimal.Decimal
	batches    map[uuid.UUID]core.Batch
	liveByDate map[time.Time]uuid.UUID
	entries    map[uuid.UUID]core.DemandEntry
	entryOrder []uuid.UUID
	deductions map[uuid.UUID][]core.BatchDeduction
	bills      map[uuid.UUID]core.Bill
	billOrder  []uuid.UUID
	outbox     map[uuid.UUID]core.SyncTask
	outboxSeq  []uuid.UUID
	lastSync   *time.Time
}

func newState() *state {
	return &state{
		products:   make(map[uuid.UUID]core.Product),
		clients:    make(map[uuid.UUID]core.Client),
		stock:      make(map[uuid.UUID]decimal.Decimal),
		batches:    make(map[uuid.UUID]core.Batch),
		liveByDate: make(map[time.Time]uuid.UUID),
		entries:    make(map[uuid.UUID]core.DemandEntry),
		deductions: make(map[uuid.UUID][]core.BatchDeduction),
		bills:      make(map[uuid.UUID]core.Bill),
		outbox:     make(map[uuid.UUID]core.SyncTask),
	}
}

func (s *state) clone() *state {
	c := &state{
		products:   make(map[uuid.UUID]core.Product, len(s.products)),
		clients:    make(map[uuid.UUID]core.Client, len(s.clients)),
		stock:      make(map[uuid.UUID]decimal.Decimal, len(s.stock)),
		batches:    make(map[uuid.UUID]core.Batch, len(s.batches)),
		liveByDate: make(map[time.Time]uuid.UUID, len(s.liveByDate)),
		entries:    make(map[uuid.UUID]core.DemandEntry, len(s.entries)),
		entryOrder: append([]uuid.UUID(nil), s.entryOrder...),
		deductions: make(map[uuid.UUID][]core.BatchDeduction, len(s.deductions)),
		bills:      make(map[uuid.UUID]core.Bill, len(s.bills)),
		billOrder:  append([]uuid.UUID(nil), s.billOrder...),
		outbox:     make(map[uuid.UUID]core.SyncTask, len(s.outbox)),
		outboxSeq:  append([]uuid.UUID(nil), s.outboxSeq...),
		lastSync:   s.lastSync,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.liveByDate {
		c.liveByDate[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.deductions {
		c.deductions[k] = append([]core.BatchDeduction(nil), v...)
	}
	for k, v := range s.bills {
		v.Items = append([]core.BillItem(nil), v.Items...)
		c.bills[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

var (
	_ core.Store       = (*Store)(nil)
	_ core.OutboxStore = (*Store)(nil)
	_ core.Tx          = (*memTx)(nil)
)

// Store implements core.Store and core.OutboxStore.
type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) Close() {}

// ── Tx ────────────────────────────────────────────────────────────────────────

type memTx struct {
	st *state
}

func (t *memTx) GetProduct(_ context.Context, id uuid.UUID) (*core.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "product", ID: id.String()}
	}
	return &p, nil
}

func (t *memTx) ListProducts(_ context.Context, includeDeleted bool) ([]core.Product, error) {
	out := make([]core.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		if p.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) InsertProduct(_ context.Context, p core.Product) error {
	t.st.products[p.ID] = p
	return nil
}

func (t *memTx) UpdateProduct(_ context.Context, p core.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return &core.NotFoundError{Entity: "product", ID: p.ID.String()}
	}
	t.st.products[p.ID] = p
	return nil
}

func (t *memTx) GetClient(_ context.Context, id uuid.UUID) (*core.Client, error) {
	c, ok := t.st.clients[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "client", ID: id.String()}
	}
	return &c, nil
}

func (t *memTx) ListClients(_ context.Context, includeDeleted bool) ([]core.Client, error) {
	out := make([]core.Client, 0, len(t.st.clients))
	for _, c := range t.st.clients {
		if c.IsDeleted && !includeDeleted {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) InsertClient(_ context.Context, c core.Client) error {
	t.st.clients[c.ID] = c
	return nil
}

func (t *memTx) UpdateClient(_ context.Context, c core.Client) error {
	if _, ok := t.st.clients[c.ID]; !ok {
		return &core.NotFoundError{Entity: "client", ID: c.ID.String()}
	}
	t.st.clients[c.ID] = c
	return nil
}

// LockStock needs no row lock: the store mutex is held for the whole transaction.
func (t *memTx) LockStock(_ context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	return t.st.stock[productID], nil
}

func (t *memTx) WriteStock(_ context.Context, productID uuid.UUID, qty decimal.Decimal) error {
	t.st.stock[productID] = qty
	return nil
}

func (t *memTx) ListStock(_ context.Context) ([]core.StockLevel, error) {
	out := make([]core.StockLevel, 0, len(t.st.products))
	for _, p := range t.st.products {
		if p.IsDeleted {
			continue
		}
		out = append(out, core.StockLevel{ProductID: p.ID, ProductName: p.Name, Quantity: t.st.stock[p.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
	return out, nil
}

func (t *memTx) UpsertBatchForDate(_ context.Context, date time.Time, newID uuid.UUID, now time.Time) (*core.Batch, error) {
	day := core.DateOf(date)
	if id, ok := t.st.liveByDate[day]; ok {
		b := t.st.batches[id]
		return &b, nil
	}
	b := core.Batch{ID: newID, DemandDate: day, CreatedAt: now}
	t.st.batches[b.ID] = b
	t.st.liveByDate[day] = b.ID
	return &b, nil
}

func (t *memTx) GetBatch(_ context.Context, id uuid.UUID) (*core.Batch, error) {
	b, ok := t.st.batches[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "batch", ID: id.String()}
	}
	return &b, nil
}

func (t *memTx) LockBatch(ctx context.Context, id uuid.UUID) (*core.Batch, error) {
	return t.GetBatch(ctx, id)
}

func (t *memTx) UpdateBatch(_ context.Context, b core.Batch) error {
	if _, ok := t.st.batches[b.ID]; !ok {
		return &core.NotFoundError{Entity: "batch", ID: b.ID.String()}
	}
	t.st.batches[b.ID] = b
	if b.IsDeleted && t.st.liveByDate[b.DemandDate] == b.ID {
		delete(t.st.liveByDate, b.DemandDate)
	}
	return nil
}

func (t *memTx) ListBatches(_ context.Context, from, to time.Time) ([]core.Batch, error) {
	var out []core.Batch
	for _, b := range t.st.batches {
		if b.IsDeleted || !inRange(b.DemandDate, from, to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DemandDate.Before(out[j].DemandDate) })
	return out, nil
}

func (t *memTx) InsertEntry(_ context.Context, e core.DemandEntry) error {
	t.st.entries[e.ID] = e
	t.st.entryOrder = append(t.st.entryOrder, e.ID)
	return nil
}

func (t *memTx) GetEntry(_ context.Context, id uuid.UUID) (*core.DemandEntry, error) {
	e, ok := t.st.entries[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "demand entry", ID: id.String()}
	}
	return &e, nil
}

func (t *memTx) UpdateEntry(_ context.Context, e core.DemandEntry) error {
	if _, ok := t.st.entries[e.ID]; !ok {
		return &core.NotFoundError{Entity: "demand entry", ID: e.ID.String()}
	}
	t.st.entries[e.ID] = e
	return nil
}

func (t *memTx) ListEntries(_ context.Context, batchID uuid.UUID, includeDeleted bool) ([]core.DemandEntry, error) {
	var out []core.DemandEntry
	for _, id := range t.st.entryOrder {
		e := t.st.entries[id]
		if e.BatchID != batchID || (e.IsDeleted && !includeDeleted) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (t *memTx) InsertDeduction(_ context.Context, d core.BatchDeduction) error {
	t.st.deductions[d.BatchID] = append(t.st.deductions[d.BatchID], d)
	return nil
}

func (t *memTx) ListDeductions(_ context.Context, batchID uuid.UUID) ([]core.BatchDeduction, error) {
	return append([]core.BatchDeduction(nil), t.st.deductions[batchID]...), nil
}

func (t *memTx) DeleteDeductions(_ context.Context, batchID uuid.UUID) error {
	delete(t.st.deductions, batchID)
	return nil
}

func (t *memTx) InsertBill(_ context.Context, b core.Bill) error {
	b.Items = append([]core.BillItem(nil), b.Items...)
	t.st.bills[b.ID] = b
	t.st.billOrder = append(t.st.billOrder, b.ID)
	return nil
}

func (t *memTx) GetBill(_ context.Context, id uuid.UUID) (*core.Bill, error) {
	b, ok := t.st.bills[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "bill", ID: id.String()}
	}
	b.Items = append([]core.BillItem(nil), b.Items...)
	return &b, nil
}

// UpdateBill changes header fields only; items are immutable once saved.
func (t *memTx) UpdateBill(_ context.Context, b core.Bill) error {
	cur, ok := t.st.bills[b.ID]
	if !ok {
		return &core.NotFoundError{Entity: "bill", ID: b.ID.String()}
	}
	cur.PaidAmount = b.PaidAmount
	cur.IsDeleted = b.IsDeleted
	t.st.bills[b.ID] = cur
	return nil
}

func (t *memTx) ListBills(_ context.Context, f core.BillFilter) ([]core.Bill, error) {
	var out []core.Bill
	for _, id := range t.st.billOrder {
		b := t.st.bills[id]
		if b.IsDeleted && !f.IncludeDeleted {
			continue
		}
		if f.ClientID != nil && b.ClientID != *f.ClientID {
			continue
		}
		if !inRange(b.BillDate, f.From, f.To) {
			continue
		}
		b.Items = append([]core.BillItem(nil), b.Items...)
		out = append(out, b)
	}
	return out, nil
}

func inRange(d, from, to time.Time) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}
