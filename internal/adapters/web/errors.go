package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"demand-ledger/internal/app"
	"demand-ledger/internal/core"
	"demand-ledger/internal/logging"
)

type errorResponse struct {
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id,omitempty"`
	Stock     *stockShortfall `json:"stock,omitempty"`
}

type stockShortfall struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Available   string `json:"available"`
	Requested   string `json:"requested"`
	Shortfall   string `json:"shortfall"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a domain error to its HTTP status and code.
// Anything unrecognised is logged and reported as 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *core.NotFoundError
		batchClosed  *core.BatchClosedError
		already      *core.AlreadyClosedError
		inUse        *core.ProductInUseError
		insufficient *core.InsufficientStockError
		syncFailure  *core.SyncFailure
	)
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidAmount):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.As(err, &notFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &batchClosed):
		writeError(w, r, err.Error(), "BATCH_CLOSED", http.StatusConflict)
	case errors.As(err, &already):
		writeError(w, r, err.Error(), "ALREADY_CLOSED", http.StatusConflict)
	case errors.As(err, &inUse):
		writeError(w, r, err.Error(), "PRODUCT_IN_USE", http.StatusConflict)
	case errors.As(err, &insufficient):
		writeJSONStatus(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     err.Error(),
			Code:      "INSUFFICIENT_STOCK",
			RequestID: requestIDFromContext(r.Context()),
			Stock: &stockShortfall{
				ProductID:   insufficient.ProductID.String(),
				ProductName: insufficient.ProductName,
				Available:   insufficient.Available.String(),
				Requested:   insufficient.Requested.String(),
				Shortfall:   insufficient.Shortfall().String(),
			},
		})
	case errors.As(err, &syncFailure):
		writeError(w, r, err.Error(), "SYNC_FAILED", http.StatusBadGateway)
	default:
		logging.LogError(h.log, "web", "writeServiceError", r.Method+" "+r.URL.Path,
			map[string]string{"request_id": requestIDFromContext(r.Context())}, err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
