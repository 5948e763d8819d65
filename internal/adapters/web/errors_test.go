package web

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"retail-ledger/internal/app"
	"retail-ledger/internal/core"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient stock", &core.InsufficientStockError{ProductID: 1, BranchID: 2, Available: decimal.Zero, Requested: decimal.NewFromInt(3)}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"wrapped mismatch", fmt.Errorf("failed to create sale: %w", core.ErrPaymentMismatch), http.StatusUnprocessableEntity, "PAYMENT_MISMATCH"},
		{"already void", core.ErrAlreadyVoid, http.StatusConflict, "ALREADY_VOID"},
		{"register open", core.ErrRegisterAlreadyOpen, http.StatusConflict, "REGISTER_ALREADY_OPEN"},
		{"overpayment", core.ErrOverpayment, http.StatusUnprocessableEntity, "OVERPAYMENT"},
		{"no balance", core.ErrNoOutstandingBalance, http.StatusUnprocessableEntity, "NO_OUTSTANDING_BALANCE"},
		{"no branch", core.ErrNoBranchAssigned, http.StatusBadRequest, "NO_BRANCH_ASSIGNED"},
		{"numbering", core.ErrNumberingConflict, http.StatusServiceUnavailable, "NUMBERING_CONFLICT"},
		{"not found", &core.LedgerError{Err: core.ErrNotFound, Details: "sale 9"}, http.StatusNotFound, "NOT_FOUND"},
		{"request validation", &app.ValidationError{Fields: map[string]string{"customer_id": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", fmt.Errorf("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classifyError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
