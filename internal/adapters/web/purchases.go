package web

import (
	"net/http"

	"retail-ledger/internal/app"
)

// apiCreatePurchase handles POST /api/purchases.
// Body: { branch_id?, supplier_id, document_type?, supplier_invoice?, currency?, discount_percent?,
// discount_amount?, notes?, lines: [{product_id, quantity, unit_cost, discount?}] }
func (h *Handler) apiCreatePurchase(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	var req app.CreatePurchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.BranchID = claims.branchOr(req.BranchID)

	result, err := h.svc.CreatePurchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiListPurchases handles GET /api/purchases?branch_id=&supplier_id=&status=&from=&to=&limit=.
func (h *Handler) apiListPurchases(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	q := &queryParams{r: r}
	period := q.dateRange()
	req := app.ListDocumentsRequest{
		BranchID:       q.intParam("branch_id"),
		CounterpartyID: q.intParam("supplier_id"),
		Status:         q.strParam("status"),
		From:           period.From,
		To:             period.To,
		Limit:          q.intParam("limit"),
	}
	if !q.ok(w) {
		return
	}

	result, err := h.svc.ListPurchases(r.Context(), claims.Actor(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetPurchase handles GET /api/purchases/{id}.
func (h *Handler) apiGetPurchase(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPurchase(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// apiCancelPurchase handles POST /api/purchases/{id}/cancel.
func (h *Handler) apiCancelPurchase(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.svc.CancelPurchase(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
