package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant is an isolated customer organization. Every ledger row is scoped to one.
type Tenant struct {
	ID           int    `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
}

// Actor identifies who performs an operation. It is always passed explicitly;
// the core never reads the caller's identity from ambient state.
type Actor struct {
	TenantID int
	UserID   int
}

const (
	DocumentStatusCompleted = "completed"
	DocumentStatusVoid      = "void"
)

// Payment methods accepted on a sale. PaymentMethodMixed tags a sale paid with
// more than one method; it is never valid on an individual payment row.
const (
	PaymentMethodCash     = "efectivo"
	PaymentMethodAccount  = "cuenta_corriente"
	PaymentMethodCard     = "tarjeta"
	PaymentMethodTransfer = "transferencia"
	PaymentMethodMixed    = "mixto"
)

const (
	defaultSaleDocumentType     = "VTA"
	defaultPurchaseDocumentType = "CMP"
)

// IsValidPaymentMethod reports whether m may appear on a SalePayment row.
func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodAccount, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}

// Discount is applied to a document subtotal: either a percentage or a fixed
// amount, never both.
type Discount struct {
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// DateRange bounds list queries. Zero values mean unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Warning describes a side effect that was deliberately skipped and queued for
// manual reconciliation instead of failing the operation.
type Warning struct {
	Code               string `json:"code"`
	Message            string `json:"message"`
	ReconciliationItem int    `json:"reconciliation_item_id,omitempty"`
}
