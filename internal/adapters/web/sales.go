package web

import (
	"net/http"

	"retail-ledger/internal/app"
)

// apiCreateSale handles POST /api/sales.
// Body: { branch_id?, customer_id, document_type?, currency?, discount_percent?, discount_amount?,
// quote_id?, notes?, lines: [{product_id, quantity, unit_price?, discount?}], payments: [{method, amount}] }
func (h *Handler) apiCreateSale(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	var req app.CreateSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.BranchID = claims.branchOr(req.BranchID)

	result, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiListSales handles GET /api/sales?branch_id=&customer_id=&status=&from=&to=&limit=.
func (h *Handler) apiListSales(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	q := &queryParams{r: r}
	period := q.dateRange()
	req := app.ListDocumentsRequest{
		BranchID:       q.intParam("branch_id"),
		CounterpartyID: q.intParam("customer_id"),
		Status:         q.strParam("status"),
		From:           period.From,
		To:             period.To,
		Limit:          q.intParam("limit"),
	}
	if !q.ok(w) {
		return
	}

	result, err := h.svc.ListSales(r.Context(), claims.Actor(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetSale handles GET /api/sales/{id}.
func (h *Handler) apiGetSale(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	sale, err := h.svc.GetSale(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

// apiCancelSale handles POST /api/sales/{id}/cancel.
// Body: { reason? }
func (h *Handler) apiCancelSale(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req app.CancelDocumentRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.DocumentID = id

	result, err := h.svc.CancelSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
