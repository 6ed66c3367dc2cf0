package web

import (
	"context"
	"net/http"

	"demand-ledger/internal/app"

	"github.com/go-chi/chi/v5"
)

// ── Products ──────────────────────────────────────────────────────────────────

// listProducts handles GET /api/products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createProduct handles POST /api/products.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req app.CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// updateProductPrices handles PUT /api/products/{id}/prices.
func (h *Handler) updateProductPrices(w http.ResponseWriter, r *http.Request) {
	var req app.UpdatePricesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = chi.URLParam(r, "id")
	result, err := h.svc.UpdateProductPrices(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// deleteProduct handles DELETE /api/products/{id}.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Clients ───────────────────────────────────────────────────────────────────

// listClients handles GET /api/clients.
func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListClients(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// createClient handles POST /api/clients.
func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req app.CreateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateClient(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// deleteClient handles DELETE /api/clients/{id}.
func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

// listStock handles GET /api/stock.
func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// adjustStock handles POST /api/stock/{productID}/adjust with a signed quantity.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	h.changeStock(w, r, h.svc.AdjustStock)
}

// setStock handles PUT /api/stock/{productID}.
func (h *Handler) setStock(w http.ResponseWriter, r *http.Request) {
	h.changeStock(w, r, h.svc.SetStock)
}

func (h *Handler) changeStock(w http.ResponseWriter, r *http.Request,
	apply func(context.Context, app.StockChangeRequest) (*app.StockChangeResult, error)) {
	var req app.StockChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = chi.URLParam(r, "productID")
	result, err := apply(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
