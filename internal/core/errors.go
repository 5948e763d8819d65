package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Callers match them with errors.Is; the adapters translate them
// into transport status codes.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrPaymentMismatch      = errors.New("payments do not match sale total")
	ErrAlreadyVoid          = errors.New("document is already void")
	ErrAlreadyClosed        = errors.New("cash register is already closed")
	ErrRegisterAlreadyOpen  = errors.New("cash register already open for this user and branch")
	ErrRegisterClosed       = errors.New("cash register is closed")
	ErrNoOutstandingBalance = errors.New("customer has no outstanding balance")
	ErrOverpayment          = errors.New("payment exceeds outstanding balance")
	ErrNoBranchAssigned     = errors.New("no branch assigned")
	ErrNumberingConflict    = errors.New("document numbering conflict")
	ErrQuoteNotOpen         = errors.New("quote is not open")
)

// LedgerError wraps a sentinel error with the detail needed to identify the
// offending line, product, payment or record.
type LedgerError struct {
	Err     error
	Details string
}

func (e *LedgerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Details)
	}
	return e.Err.Error()
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func newLedgerError(err error, format string, args ...any) error {
	return &LedgerError{Err: err, Details: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newLedgerError(ErrValidation, format, args...)
}

func notFound(format string, args ...any) error {
	return newLedgerError(ErrNotFound, format, args...)
}

// InsufficientStockError names the product and branch whose quantity would go negative.
type InsufficientStockError struct {
	ProductID   int
	ProductCode string
	BranchID    int
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	code := e.ProductCode
	if code == "" {
		code = fmt.Sprintf("id=%d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for product %s in branch %d: available %s, requested %s",
		code, e.BranchID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
