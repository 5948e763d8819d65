package web

import (
	"net/http"

	"retail-ledger/internal/app"
)

// apiGetCustomerAccount handles GET /api/customers/{id}/account.
func (h *Handler) apiGetCustomerAccount(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	acct, err := h.svc.GetCustomerAccount(r.Context(), claims.Actor(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, acct)
}

// apiListCustomerEntries handles GET /api/customers/{id}/entries?from=&to=.
func (h *Handler) apiListCustomerEntries(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q := &queryParams{r: r}
	period := q.dateRange()
	if !q.ok(w) {
		return
	}

	result, err := h.svc.ListCustomerEntries(r.Context(), claims.Actor(), id, period)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiRecordCustomerPayment handles POST /api/customers/{id}/payments.
// Body: { amount, reference?, register_id? }
func (h *Handler) apiRecordCustomerPayment(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req app.CustomerPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.CustomerID = id

	result, err := h.svc.RecordCustomerPayment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiRecordCustomerCharge handles POST /api/customers/{id}/charges.
// Body: { amount, reference }
func (h *Handler) apiRecordCustomerCharge(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req app.CustomerChargeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.CustomerID = id

	entry, err := h.svc.RecordCustomerCharge(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, entry)
}
