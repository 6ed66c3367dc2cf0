package web

import (
	"net/http"

	"demand-ledger/internal/app"

	"github.com/go-chi/chi/v5"
)

// checkBillItem handles POST /api/bills/check. A denial is a normal 200
// response with allowed=false and the reason.
func (h *Handler) checkBillItem(w http.ResponseWriter, r *http.Request) {
	var req app.CheckItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CheckBillItem(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// listBills handles GET /api/bills?from=&to=&client_id=&include_deleted=.
func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	includeDeleted, ok := boolQuery(w, r, "include_deleted")
	if !ok {
		return
	}
	req := app.ListBillsRequest{
		DateRangeRequest: dateRange(r),
		ClientID:         r.URL.Query().Get("client_id"),
		IncludeDeleted:   includeDeleted,
	}
	result, err := h.svc.ListBills(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createBill handles POST /api/bills.
func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req app.CreateBillRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateBill(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deleteBill(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBill(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restoreBill(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RestoreBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// recordPayment handles POST /api/bills/{id}/payments with {"amount": "..."}.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req app.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.BillID = chi.URLParam(r, "id")
	result, err := h.svc.RecordPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
