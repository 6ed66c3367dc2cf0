package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"demand-ledger/internal/core"
	"demand-ledger/internal/export"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrInvalidInput marks request errors the caller can fix by changing the input.
var ErrInvalidInput = errors.New("invalid input")

// Deps is everything the application layer needs from the composition root.
type Deps struct {
	Store              core.Store
	Outbox             core.OutboxStore
	Clock              core.Clock
	Notifier           core.Notifier
	Thresholds         core.VelocityThresholds
	VelocityWindowDays int
	// SyncDisabled reports sync as off; nothing drains the outbox.
	SyncDisabled       bool
	Log                logrus.FieldLogger
}

type appService struct {
	store      core.Store
	outbox     core.OutboxStore
	clock      core.Clock
	notifier   core.Notifier
	windowDays int
	syncOff    bool

	ledger   core.StockLedger
	catalog  core.CatalogService
	batches  core.BatchManager
	bills    core.BillService
	guard    core.BillStockGuard
	reports  core.ReportingService
	validate *validator.Validate
}

// NewAppService builds the core services over d.Store and returns the facade.
func NewAppService(d Deps) ApplicationService {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.VelocityWindowDays <= 0 {
		d.VelocityWindowDays = 30
	}
	ledger := core.NewStockLedger(d.Store)
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &appService{
		store:      d.Store,
		outbox:     d.Outbox,
		clock:      d.Clock,
		notifier:   d.Notifier,
		windowDays: d.VelocityWindowDays,
		syncOff:    d.SyncDisabled,
		ledger:     ledger,
		catalog:    core.NewCatalogService(d.Store, d.Clock, d.Notifier),
		batches:    core.NewBatchManager(d.Store, ledger, d.Clock, d.Notifier, d.Log),
		bills:      core.NewBillService(d.Store, ledger, d.Clock, d.Notifier, d.Log),
		guard:      core.NewBillStockGuard(ledger),
		reports:    core.NewReportingService(d.Store, d.Thresholds),
		validate:   v,
	}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	p, err := s.catalog.CreateProduct(ctx, strings.TrimSpace(req.Name), req.Price, req.CostPrice)
	if err != nil {
		return nil, err
	}
	return &ProductResult{Product: p}, nil
}

func (s *appService) UpdateProductPrices(ctx context.Context, req UpdatePricesRequest) (*ProductResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	p, err := s.catalog.UpdateProductPrices(ctx, uuid.MustParse(req.ProductID), req.Price, req.CostPrice)
	if err != nil {
		return nil, err
	}
	return &ProductResult{Product: p}, nil
}

func (s *appService) DeleteProduct(ctx context.Context, productID string) error {
	id, err := parseID("product_id", productID)
	if err != nil {
		return err
	}
	return s.catalog.DeleteProduct(ctx, id)
}

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) CreateClient(ctx context.Context, req CreateClientRequest) (*ClientResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	c, err := s.catalog.CreateClient(ctx, strings.TrimSpace(req.Name), strings.TrimSpace(req.Phone))
	if err != nil {
		return nil, err
	}
	return &ClientResult{Client: c}, nil
}

func (s *appService) DeleteClient(ctx context.Context, clientID string) error {
	id, err := parseID("client_id", clientID)
	if err != nil {
		return err
	}
	return s.catalog.DeleteClient(ctx, id)
}

func (s *appService) ListClients(ctx context.Context) (*ClientListResult, error) {
	clients, err := s.catalog.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	return &ClientListResult{Clients: clients}, nil
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	levels, err := s.ledger.ListStock(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req StockChangeRequest) (*StockChangeResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.Quantity.IsZero() {
		return nil, fmt.Errorf("%w: adjustment must be non-zero", ErrInvalidInput)
	}
	qty, err := s.ledger.Adjust(ctx, uuid.MustParse(req.ProductID), req.Quantity)
	if err != nil {
		return nil, err
	}
	return &StockChangeResult{ProductID: req.ProductID, Quantity: qty}, nil
}

func (s *appService) SetStock(ctx context.Context, req StockChangeRequest) (*StockChangeResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	qty, err := s.ledger.SetStock(ctx, uuid.MustParse(req.ProductID), req.Quantity)
	if err != nil {
		return nil, err
	}
	return &StockChangeResult{ProductID: req.ProductID, Quantity: qty}, nil
}

// ── Demand batches ────────────────────────────────────────────────────────────

func (s *appService) GetOrCreateBatch(ctx context.Context, date string) (*BatchResult, error) {
	var (
		b   *core.Batch
		err error
	)
	if date == "" {
		b, err = s.batches.GetOrCreateTodayBatch(ctx)
	} else {
		var d time.Time
		if d, err = parseDate("date", date); err != nil {
			return nil, err
		}
		b, err = s.batches.GetOrCreateBatchForDate(ctx, d)
	}
	if err != nil {
		return nil, err
	}
	return &BatchResult{Batch: b}, nil
}

func (s *appService) GetBatch(ctx context.Context, batchID string) (*BatchResult, error) {
	id, err := parseID("batch_id", batchID)
	if err != nil {
		return nil, err
	}
	b, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BatchResult{Batch: b}, nil
}

func (s *appService) ListBatches(ctx context.Context, req DateRangeRequest) (*BatchListResult, error) {
	from, to, err := s.dateRange(req)
	if err != nil {
		return nil, err
	}
	batches, err := s.batches.ListBatches(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &BatchListResult{Batches: batches}, nil
}

func (s *appService) AddDemandEntry(ctx context.Context, req AddEntryRequest) (*EntryResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	e, err := s.batches.InsertDemandEntry(ctx,
		uuid.MustParse(req.BatchID), uuid.MustParse(req.ClientID), uuid.MustParse(req.ProductID), req.Quantity)
	if err != nil {
		return nil, err
	}
	return &EntryResult{Entry: e}, nil
}

func (s *appService) UpdateDemandEntry(ctx context.Context, req UpdateEntryRequest) (*EntryResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	e, err := s.batches.UpdateDemandEntry(ctx, uuid.MustParse(req.EntryID), req.Quantity)
	if err != nil {
		return nil, err
	}
	return &EntryResult{Entry: e}, nil
}

func (s *appService) DeleteDemandEntry(ctx context.Context, entryID string) error {
	id, err := parseID("entry_id", entryID)
	if err != nil {
		return err
	}
	return s.batches.DeleteDemandEntry(ctx, id)
}

func (s *appService) GetBatchTotals(ctx context.Context, batchID string) (*BatchTotalsResult, error) {
	id, err := parseID("batch_id", batchID)
	if err != nil {
		return nil, err
	}
	b, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	totals, err := s.batches.GetCurrentBatchTotals(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BatchTotalsResult{Batch: b, Totals: totals}, nil
}

func (s *appService) GetBatchDetails(ctx context.Context, batchID string, includeDeleted bool) (*BatchDetailsResult, error) {
	id, err := parseID("batch_id", batchID)
	if err != nil {
		return nil, err
	}
	b, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.batches.ListBatchEntries(ctx, id, includeDeleted)
	if err != nil {
		return nil, err
	}
	return &BatchDetailsResult{Batch: b, Entries: entries}, nil
}

func (s *appService) GetBatchStats(ctx context.Context, batchID string) (*BatchStatsResult, error) {
	id, err := parseID("batch_id", batchID)
	if err != nil {
		return nil, err
	}
	b, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.batches.GetBatchStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BatchStatsResult{Batch: b, Stats: stats}, nil
}

func (s *appService) CloseBatch(ctx context.Context, req CloseBatchRequest) (*BatchResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	b, err := s.batches.CloseBatch(ctx, uuid.MustParse(req.BatchID), core.CloseOptions{DeductStock: req.DeductStock})
	if err != nil {
		return nil, err
	}
	return &BatchResult{Batch: b}, nil
}

func (s *appService) ReopenBatch(ctx context.Context, batchID string) (*BatchResult, error) {
	id, err := parseID("batch_id", batchID)
	if err != nil {
		return nil, err
	}
	b, err := s.batches.ReopenBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BatchResult{Batch: b}, nil
}

func (s *appService) EditClosedBatch(ctx context.Context, req EditBatchRequest) (*BatchResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	edits := make([]core.EntryEdit, len(req.Edits))
	for i, in := range req.Edits {
		var e core.EntryEdit
		switch {
		case in.EntryID != "":
			id := uuid.MustParse(in.EntryID)
			e.EntryID = &id
		case in.Delete:
			return nil, fmt.Errorf("%w: edits[%d]: delete needs entry_id", ErrInvalidInput, i)
		case in.ClientID == "" || in.ProductID == "":
			return nil, fmt.Errorf("%w: edits[%d]: new entry needs client_id and product_id", ErrInvalidInput, i)
		default:
			e.ClientID = uuid.MustParse(in.ClientID)
			e.ProductID = uuid.MustParse(in.ProductID)
		}
		e.Quantity = in.Quantity
		e.Delete = in.Delete
		edits[i] = e
	}
	b, err := s.batches.EditClosedBatch(ctx, uuid.MustParse(req.BatchID), edits, core.CloseOptions{DeductStock: req.DeductStock})
	if err != nil {
		return nil, err
	}
	return &BatchResult{Batch: b}, nil
}

func (s *appService) DeleteBatch(ctx context.Context, batchID string) error {
	id, err := parseID("batch_id", batchID)
	if err != nil {
		return err
	}
	return s.batches.DeleteBatch(ctx, id)
}

func (s *appService) ExportBatch(ctx context.Context, batchID string) (*ExportResult, error) {
	totals, err := s.GetBatchTotals(ctx, batchID)
	if err != nil {
		return nil, err
	}
	details, err := s.batches.GetBatchClientDetails(ctx, totals.Batch.ID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteBatchWorkbook(&buf, *totals.Batch, totals.Totals, details); err != nil {
		return nil, err
	}
	return &ExportResult{
		Filename:    "demand-" + totals.Batch.DemandDate.Format("2006-01-02") + ".xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

// ── Billing ───────────────────────────────────────────────────────────────────

func (s *appService) CheckBillItem(ctx context.Context, req CheckItemRequest) (*CheckItemResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	d, err := s.guard.CanAdd(ctx, uuid.MustParse(req.ProductID), req.Delta, billItems(req.Items))
	if err != nil {
		return nil, err
	}
	return &CheckItemResult{Decision: d}, nil
}

func (s *appService) CreateBill(ctx context.Context, req CreateBillRequest) (*BillResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	var date time.Time
	if req.Date != "" {
		date, _ = core.ParseDate(req.Date)
	}
	b, err := s.bills.CreateBill(ctx, core.CreateBillInput{
		ClientID: uuid.MustParse(req.ClientID),
		Date:     date,
		Items:    billItems(req.Items),
		Paid:     req.Paid,
	})
	if err != nil {
		return nil, err
	}
	return billResult(b), nil
}

func (s *appService) GetBill(ctx context.Context, billID string) (*BillResult, error) {
	id, err := parseID("bill_id", billID)
	if err != nil {
		return nil, err
	}
	b, err := s.bills.GetBill(ctx, id)
	if err != nil {
		return nil, err
	}
	return billResult(b), nil
}

func (s *appService) ListBills(ctx context.Context, req ListBillsRequest) (*BillListResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	from, to, err := s.dateRange(req.DateRangeRequest)
	if err != nil {
		return nil, err
	}
	f := core.BillFilter{From: from, To: to, IncludeDeleted: req.IncludeDeleted}
	if req.ClientID != "" {
		id := uuid.MustParse(req.ClientID)
		f.ClientID = &id
	}
	bills, err := s.bills.ListBills(ctx, f)
	if err != nil {
		return nil, err
	}
	return &BillListResult{Bills: bills}, nil
}

func (s *appService) DeleteBill(ctx context.Context, billID string) error {
	id, err := parseID("bill_id", billID)
	if err != nil {
		return err
	}
	return s.bills.DeleteBill(ctx, id)
}

func (s *appService) RestoreBill(ctx context.Context, billID string) (*BillResult, error) {
	id, err := parseID("bill_id", billID)
	if err != nil {
		return nil, err
	}
	b, err := s.bills.RestoreBill(ctx, id)
	if err != nil {
		return nil, err
	}
	return billResult(b), nil
}

func (s *appService) RecordPayment(ctx context.Context, req PaymentRequest) (*BillResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	b, err := s.bills.RecordPayment(ctx, uuid.MustParse(req.BillID), req.Amount)
	if err != nil {
		return nil, err
	}
	return billResult(b), nil
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *appService) ProductProfit(ctx context.Context, req DateRangeRequest) (*ProfitResult, error) {
	from, to, err := s.dateRange(req)
	if err != nil {
		return nil, err
	}
	rows, err := s.reports.ProductProfit(ctx, from, to)
	if err != nil {
		return nil, err
	}
	res := &ProfitResult{Products: rows}
	for _, r := range rows {
		res.Revenue = res.Revenue.Add(r.Revenue)
		res.Cost = res.Cost.Add(r.Cost)
		res.Profit = res.Profit.Add(r.Profit)
	}
	return res, nil
}

func (s *appService) PurchaseSummary(ctx context.Context, req DateRangeRequest) (*PurchaseSummaryResult, error) {
	from, to, err := s.dateRange(req)
	if err != nil {
		return nil, err
	}
	totals, err := s.reports.PurchaseSummary(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &PurchaseSummaryResult{Totals: totals}, nil
}

func (s *appService) ClientBalances(ctx context.Context) (*BalancesResult, error) {
	balances, err := s.reports.ClientBalances(ctx)
	if err != nil {
		return nil, err
	}
	res := &BalancesResult{Balances: balances, Outstanding: decimal.Zero}
	for _, b := range balances {
		res.Outstanding = res.Outstanding.Add(b.Balance)
	}
	return res, nil
}

func (s *appService) StockVelocity(ctx context.Context, req VelocityRequest) (*VelocityResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	asOf := s.clock.Today()
	if req.AsOf != "" {
		asOf, _ = core.ParseDate(req.AsOf)
	}
	window := req.WindowDays
	if window == 0 {
		window = s.windowDays
	}
	rows, err := s.reports.StockVelocity(ctx, asOf, window)
	if err != nil {
		return nil, err
	}
	return &VelocityResult{AsOf: asOf, WindowDays: window, Products: rows}, nil
}

// ── Sync ──────────────────────────────────────────────────────────────────────

func (s *appService) SyncStatus(ctx context.Context) (*SyncStatusResult, error) {
	var st core.SyncStatus
	if s.outbox != nil {
		var err error
		if st, err = s.outbox.SyncStatus(ctx); err != nil {
			return nil, err
		}
	}
	st.Disabled = s.syncOff
	return &SyncStatusResult{Status: st, Message: st.Message()}, nil
}

func (s *appService) RequestFullBackup(ctx context.Context) error {
	now := s.clock.Now()
	err := s.store.InTx(ctx, func(tx core.Tx) error {
		for _, kind := range []core.SyncKind{core.SyncKindAllBatches, core.SyncKindBills, core.SyncKindClients} {
			if err := tx.EnqueueSync(ctx, kind, "", now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.Notify()
	}
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// check runs struct validation and folds failures into one ErrInvalidInput.
func (s *appService) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a UUID"
	case "datetime":
		return field + " must be a YYYY-MM-DD date"
	case "min", "max":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"min": "at least", "max": "at most"}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func (s *appService) dateRange(req DateRangeRequest) (time.Time, time.Time, error) {
	if err := s.check(req); err != nil {
		return time.Time{}, time.Time{}, err
	}
	var from, to time.Time
	if req.From != "" {
		from, _ = core.ParseDate(req.From)
	}
	if req.To != "" {
		to, _ = core.ParseDate(req.To)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", ErrInvalidInput)
	}
	return from, to, nil
}

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", ErrInvalidInput, field)
	}
	return id, nil
}

func parseDate(field, s string) (time.Time, error) {
	d, err := core.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a YYYY-MM-DD date", ErrInvalidInput, field)
	}
	return d, nil
}

func billItems(in []BillItemInput) []core.BillItem {
	items := make([]core.BillItem, len(in))
	for i, it := range in {
		items[i] = core.BillItem{ProductID: uuid.MustParse(it.ProductID), Quantity: it.Quantity, Price: it.Price}
	}
	return items
}

func billResult(b *core.Bill) *BillResult {
	return &BillResult{Bill: b, Balance: b.Balance()}
}
