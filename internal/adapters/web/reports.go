package web

import (
	"net/http"
	"strconv"

	"demand-ledger/internal/app"
)

func (h *Handler) profitReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ProductProfit(r.Context(), dateRange(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) purchaseReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.PurchaseSummary(r.Context(), dateRange(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) balancesReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ClientBalances(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// velocityReport handles GET /api/reports/velocity?as_of=&window_days=.
func (h *Handler) velocityReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := app.VelocityRequest{AsOf: q.Get("as_of")}
	if raw := q.Get("window_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "window_days must be a whole number", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.WindowDays = n
	}
	result, err := h.svc.StockVelocity(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Sync ──────────────────────────────────────────────────────────────────────

func (h *Handler) syncStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.SyncStatus(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// requestBackup handles POST /api/sync/backup. The push itself runs in the
// background worker so the response only confirms the request was queued.
func (h *Handler) requestBackup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestFullBackup(r.Context()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
