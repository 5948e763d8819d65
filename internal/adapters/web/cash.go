package web

import (
	"net/http"

	"retail-ledger/internal/app"
)

// apiOpenCashRegister handles POST /api/cash-registers.
// Body: { branch_id?, opening_amount }
func (h *Handler) apiOpenCashRegister(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	var req app.OpenRegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.BranchID = claims.branchOr(req.BranchID)

	reg, err := h.svc.OpenCashRegister(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, reg)
}

// apiCurrentCashRegister handles GET /api/cash-registers/current?branch_id=.
func (h *Handler) apiCurrentCashRegister(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	q := &queryParams{r: r}
	branchID := q.intParam("branch_id")
	if !q.ok(w) {
		return
	}

	reg, err := h.svc.GetCurrentCashRegister(r.Context(), claims.Actor(), claims.branchOr(branchID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, reg)
}

// apiGetCashRegister handles GET /api/cash-registers/{id}.
func (h *Handler) apiGetCashRegister(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	reg, err := h.svc.GetCashRegister(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, reg)
}

// apiListCashMovements handles GET /api/cash-registers/{id}/movements.
func (h *Handler) apiListCashMovements(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.svc.ListCashMovements(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordCashMovement handles POST /api/cash-registers/{id}/movements.
// Body: { direction, category, amount, description? }
func (h *Handler) apiRecordCashMovement(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req app.CashMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.RegisterID = id

	m, err := h.svc.RecordCashMovement(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, m)
}

// apiCloseCashRegister handles POST /api/cash-registers/{id}/close.
// Body: { counted_amount }
func (h *Handler) apiCloseCashRegister(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req app.CloseRegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.RegisterID = id

	reg, err := h.svc.CloseCashRegister(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, reg)
}
