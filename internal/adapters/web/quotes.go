package web

import (
	"net/http"

	"retail-ledger/internal/app"
)

// apiCreateQuote handles POST /api/quotes.
func (h *Handler) apiCreateQuote(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	var req app.CreateQuoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.BranchID = claims.branchOr(req.BranchID)

	q, err := h.svc.CreateQuote(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, q)
}

// apiGetQuote handles GET /api/quotes/{id}.
func (h *Handler) apiGetQuote(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	q, err := h.svc.GetQuote(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, q)
}

// apiReplaceQuoteLines handles PUT /api/quotes/{id}/lines.
// Body: { lines: [{product_id, quantity, unit_price?, discount?}] }
func (h *Handler) apiReplaceQuoteLines(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req app.ReplaceQuoteLinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.QuoteID = id

	q, err := h.svc.ReplaceQuoteLines(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, q)
}

// apiVoidQuote handles POST /api/quotes/{id}/void.
func (h *Handler) apiVoidQuote(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	q, err := h.svc.VoidQuote(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, q)
}
