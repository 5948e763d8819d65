package web

import (
	"net/http"

	"retail-ledger/internal/app"
	"retail-ledger/internal/core"
)

// apiCheckReconciliation handles GET /api/reconciliation.
// The response status is 200 whether or not discrepancies were found.
func (h *Handler) apiCheckReconciliation(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())

	report, err := h.svc.CheckReconciliation(r.Context(), claims.Actor())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type response struct {
		Consistent bool `json:"consistent"`
		Report     any  `json:"report"`
	}
	writeJSON(w, response{Consistent: report.Consistent(), Report: report})
}

// apiListReconciliationItems handles GET /api/reconciliation/items?status=pending|resolved.
func (h *Handler) apiListReconciliationItems(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	status := r.URL.Query().Get("status")
	if status != "" && status != core.ReconciliationStatusPending && status != core.ReconciliationStatusResolved {
		writeError(w, r, "status must be pending or resolved", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ListReconciliationItems(r.Context(), claims.Actor(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiResolveReconciliationItem handles POST /api/reconciliation/items/{id}/resolve.
// Body: { note? }
func (h *Handler) apiResolveReconciliationItem(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req app.ResolveItemRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	req.TenantID = claims.TenantID
	req.UserID = claims.UserID
	req.ItemID = id

	item, err := h.svc.ResolveReconciliationItem(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, item)
}
