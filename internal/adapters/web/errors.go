package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"retail-ledger/internal/app"
	"retail-ledger/internal/core"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// errorMappings translates domain sentinels into HTTP status and machine codes.
// Order matters only where one error wraps another.
var errorMappings = []struct {
	err    error
	status int
	code   string
}{
	{core.ErrInsufficientStock, http.StatusConflict, "INSUFFICIENT_STOCK"},
	{core.ErrPaymentMismatch, http.StatusUnprocessableEntity, "PAYMENT_MISMATCH"},
	{core.ErrAlreadyVoid, http.StatusConflict, "ALREADY_VOID"},
	{core.ErrAlreadyClosed, http.StatusConflict, "ALREADY_CLOSED"},
	{core.ErrRegisterAlreadyOpen, http.StatusConflict, "REGISTER_ALREADY_OPEN"},
	{core.ErrRegisterClosed, http.StatusConflict, "REGISTER_CLOSED"},
	{core.ErrNoOutstandingBalance, http.StatusUnprocessableEntity, "NO_OUTSTANDING_BALANCE"},
	{core.ErrOverpayment, http.StatusUnprocessableEntity, "OVERPAYMENT"},
	{core.ErrNoBranchAssigned, http.StatusBadRequest, "NO_BRANCH_ASSIGNED"},
	{core.ErrNumberingConflict, http.StatusServiceUnavailable, "NUMBERING_CONFLICT"},
	{core.ErrQuoteNotOpen, http.StatusConflict, "QUOTE_NOT_OPEN"},
	{core.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{core.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
}

// classifyError returns the HTTP status and machine code for err. Unknown
// errors are internal.
func classifyError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// writeServiceError maps an ApplicationService error to a JSON response. Internal
// errors are logged and their text is not exposed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		h.log.WithFields(logrus.Fields{
			"module":     "web",
			"request_id": requestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		}).WithError(err).Error("request failed")
		writeError(w, r, "internal server error", code, status)
		return
	}

	resp := errorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSONStatus(w, status, resp)
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeJSONStatus(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
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
