package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ARDirectionDebit  = "debito"
	ARDirectionCredit = "credito"
)

const (
	ARCauseSale       = "sale"
	ARCauseSaleCancel = "sale_cancel"
	ARCausePayment    = "payment"
	ARCauseCharge     = "charge"
)

// AREntry is an append-only receivable movement. A debit raises what the
// customer owes; a credit lowers it.
type AREntry struct {
	ID            int             `json:"id"`
	TenantID      int             `json:"tenant_id"`
	CustomerID    int             `json:"customer_id"`
	Direction     string          `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Cause         string          `json:"cause"`
	SaleID        *int            `json:"sale_id,omitempty"`
	Reference     string          `json:"reference"`
	UserID        *int            `json:"user_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CustomerAccount is the receivable position of one customer. AvailableCredit
// and OverLimit are informational; the credit limit is not enforced on debit.
type CustomerAccount struct {
	CustomerID      int             `json:"customer_id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Balance         decimal.Decimal `json:"balance"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	AvailableCredit decimal.Decimal `json:"available_credit"`
	OverLimit       bool            `json:"over_limit"`
}

// AREntryInput carries one receivable movement requested by a caller.
type AREntryInput struct {
	TenantID   int
	CustomerID int
	UserID     int
	Amount     decimal.Decimal
	Cause      string
	SaleID     *int
	Reference  string
}

// PaymentInput records a customer paying down their balance. When RegisterID
// is set the payment is also booked as cash income on that register.
type PaymentInput struct {
	TenantID   int
	CustomerID int
	UserID     int
	Amount     decimal.Decimal
	Reference  string
	RegisterID *int
}

type PaymentResult struct {
	Entry        *AREntry      `json:"entry"`
	CashMovement *CashMovement `json:"cash_movement,omitempty"`
}
