package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"demand-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Handler serves the JSON API on top of an ApplicationService.
type Handler struct {
	svc app.ApplicationService
	log logrus.FieldLogger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, log logrus.FieldLogger) http.Handler {
	h := &Handler{svc: svc, log: log.WithField("module", "web")}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)
	r.Get("/api/schema", h.listSchemas)
	r.Get("/api/schema/{name}", h.getSchema)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Catalog ───────────────────────────────────────────────────────────
		r.Get("/api/products", h.listProducts)
		r.Post("/api/products", h.createProduct)
		r.Put("/api/products/{id}/prices", h.updateProductPrices)
		r.Delete("/api/products/{id}", h.deleteProduct)
		r.Get("/api/clients", h.listClients)
		r.Post("/api/clients", h.createClient)
		r.Delete("/api/clients/{id}", h.deleteClient)

		// ── Stock ─────────────────────────────────────────────────────────────
		r.Get("/api/stock", h.listStock)
		r.Post("/api/stock/{productID}/adjust", h.adjustStock)
		r.Put("/api/stock/{productID}", h.setStock)

		// ── Demand batches ────────────────────────────────────────────────────
		r.Get("/api/batches", h.listBatches)
		r.Post("/api/batches", h.getOrCreateBatch)
		r.Get("/api/batches/{id}", h.getBatch)
		r.Delete("/api/batches/{id}", h.deleteBatch)
		r.Post("/api/batches/{id}/entries", h.addEntry)
		r.Get("/api/batches/{id}/totals", h.batchTotals)
		r.Get("/api/batches/{id}/details", h.batchDetails)
		r.Get("/api/batches/{id}/stats", h.batchStats)
		r.Post("/api/batches/{id}/close", h.closeBatch)
		r.Post("/api/batches/{id}/reopen", h.reopenBatch)
		r.Post("/api/batches/{id}/edit", h.editClosedBatch)
		r.Get("/api/batches/{id}/export.xlsx", h.exportBatch)
		r.Patch("/api/entries/{id}", h.updateEntry)
		r.Delete("/api/entries/{id}", h.deleteEntry)

		// ── Billing ───────────────────────────────────────────────────────────
		r.Post("/api/bills/check", h.checkBillItem)
		r.Get("/api/bills", h.listBills)
		r.Post("/api/bills", h.createBill)
		r.Get("/api/bills/{id}", h.getBill)
		r.Delete("/api/bills/{id}", h.deleteBill)
		r.Post("/api/bills/{id}/restore", h.restoreBill)
		r.Post("/api/bills/{id}/payments", h.recordPayment)

		// ── Reports and sync ──────────────────────────────────────────────────
		r.Get("/api/reports/profit", h.profitReport)
		r.Get("/api/reports/purchases", h.purchaseReport)
		r.Get("/api/reports/balances", h.balancesReport)
		r.Get("/api/reports/velocity", h.velocityReport)
		r.Get("/api/sync/status", h.syncStatus)
		r.Post("/api/sync/backup", h.requestBackup)
	})

	return r
}

// health reports liveness and the replication summary line.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		Sync   string `json:"sync,omitempty"`
	}
	resp := response{Status: "ok"}
	if st, err := h.svc.SyncStatus(r.Context()); err == nil {
		resp.Sync = st.Message
	}
	writeJSON(w, resp)
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return false
	}
	writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	return false
}

func dateRange(r *http.Request) app.DateRangeRequest {
	q := r.URL.Query()
	return app.DateRangeRequest{From: q.Get("from"), To: q.Get("to")}
}
