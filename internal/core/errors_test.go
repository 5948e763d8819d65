package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerError_UnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("failed to create sale: %w", newLedgerError(ErrPaymentMismatch, "payments sum %s, total %s", "900.00", "1000.00"))
	assert.ErrorIs(t, err, ErrPaymentMismatch)
	assert.Contains(t, err.Error(), "payments sum 900.00")

	var le *LedgerError
	assert.True(t, errors.As(err, &le))
	assert.Equal(t, "payments sum 900.00, total 1000.00", le.Details)
}

func TestInsufficientStockError(t *testing.T) {
	err := &InsufficientStockError{ProductID: 4, ProductCode: "YERBA-1KG", BranchID: 2, Available: dec("1.5"), Requested: dec("3")}
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, "insufficient stock for product YERBA-1KG in branch 2: available 1.5, requested 3", err.Error())

	noCode := &InsufficientStockError{ProductID: 4, BranchID: 2, Available: dec("0"), Requested: dec("1")}
	assert.Contains(t, noCode.Error(), "product id=4")
}

func TestCashRegisterExpected(t *testing.T) {
	r := &CashRegister{OpeningAmount: dec("1000"), TotalIncome: dec("500"), TotalExpense: dec("200")}
	assert.True(t, r.Expected().Equal(dec("1300")))
}
