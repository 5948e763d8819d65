package web

import (
	"net/http"

	"retail-ledger/internal/app"
)

// apiListStock handles GET /api/stock?branch_id=&product_id=.
// Without branch_id every branch is listed. With product_id a single row is returned.
func (h *Handler) apiListStock(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	q := &queryParams{r: r}
	branchID := q.intParam("branch_id")
	productID := q.intParam("product_id")
	if !q.ok(w) {
		return
	}

	if productID > 0 {
		bs, err := h.svc.GetBranchStock(r.Context(), claims.Actor(), productID, claims.branchOr(branchID))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, bs)
		return
	}

	result, err := h.svc.ListStock(r.Context(), claims.Actor(), branchID, false)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListLowStock handles GET /api/stock/low?branch_id=.
func (h *Handler) apiListLowStock(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	q := &queryParams{r: r}
	branchID := q.intParam("branch_id")
	if !q.ok(w) {
		return
	}

	result, err := h.svc.ListStock(r.Context(), claims.Actor(), branchID, true)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListStockMovements handles GET /api/stock/movements?product_id=&branch_id=&direction=&cause=&from=&to=&limit=.
func (h *Handler) apiListStockMovements(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	q := &queryParams{r: r}
	period := q.dateRange()
	req := app.MovementQuery{
		ProductID: q.intParam("product_id"),
		BranchID:  q.intParam("branch_id"),
		Direction: q.strParam("direction"),
		Cause:     q.strParam("cause"),
		From:      period.From,
		To:        period.To,
		Limit:     q.intParam("limit"),
	}
	if !q.ok(w) {
		return
	}

	result, err := h.svc.ListStockMovements(r.Context(), claims.Actor(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiAdjustStock handles POST /api/stock/adjustments.
// Body: { product_id, branch_id?, quantity (signed), reason }
func (h *Handler) apiAdjustStock(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	var req app.AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.BranchID = claims.branchOr(req.BranchID)

	m, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, m)
}

// apiTransferStock handles POST /api/stock/transfers.
// Body: { product_id, from_branch_id, to_branch_id, quantity, reason? }
func (h *Handler) apiTransferStock(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	var req app.TransferStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID

	t, err := h.svc.TransferStock(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, t)
}
