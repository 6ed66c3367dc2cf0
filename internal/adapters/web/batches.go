package web

import (
	"fmt"
	"net/http"
	"strconv"

	"demand-ledger/internal/app"

	"github.com/go-chi/chi/v5"
)

// listBatches handles GET /api/batches?from=&to=.
func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListBatches(r.Context(), dateRange(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// getOrCreateBatch handles POST /api/batches. The body is optional; without
// a date the batch for the business today is returned.
func (h *Handler) getOrCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	result, err := h.svc.GetOrCreateBatch(r.Context(), req.Date)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addEntry handles POST /api/batches/{id}/entries.
func (h *Handler) addEntry(w http.ResponseWriter, r *http.Request) {
	var req app.AddEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.BatchID = chi.URLParam(r, "id")
	result, err := h.svc.AddDemandEntry(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// updateEntry handles PATCH /api/entries/{id}.
func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.EntryID = chi.URLParam(r, "id")
	result, err := h.svc.UpdateDemandEntry(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDemandEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) batchTotals(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetBatchTotals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// batchDetails handles GET /api/batches/{id}/details?include_deleted=true.
func (h *Handler) batchDetails(w http.ResponseWriter, r *http.Request) {
	includeDeleted, ok := boolQuery(w, r, "include_deleted")
	if !ok {
		return
	}
	result, err := h.svc.GetBatchDetails(r.Context(), chi.URLParam(r, "id"), includeDeleted)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) batchStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetBatchStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// closeBatch handles POST /api/batches/{id}/close with {"deduct_stock": bool}.
func (h *Handler) closeBatch(w http.ResponseWriter, r *http.Request) {
	var req app.CloseBatchRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	req.BatchID = chi.URLParam(r, "id")
	result, err := h.svc.CloseBatch(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) reopenBatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReopenBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// editClosedBatch handles POST /api/batches/{id}/edit.
func (h *Handler) editClosedBatch(w http.ResponseWriter, r *http.Request) {
	var req app.EditBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.BatchID = chi.URLParam(r, "id")
	result, err := h.svc.EditClosedBatch(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// exportBatch handles GET /api/batches/{id}/export.xlsx.
func (h *Handler) exportBatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ExportBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	_, _ = w.Write(result.Data)
}

// boolQuery parses an optional boolean query parameter, writing 400 on bad input.
func boolQuery(w http.ResponseWriter, r *http.Request, name string) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, r, fmt.Sprintf("%s must be true or false", name), "BAD_REQUEST", http.StatusBadRequest)
		return false, false
	}
	return v, true
}
