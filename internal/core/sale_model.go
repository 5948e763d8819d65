package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a customer-facing document. Lines and payments are immutable once
// created; cancellation only moves Status to void.
type Sale struct {
	ID              int             `json:"id"`
	TenantID        int             `json:"tenant_id"`
	BranchID        int             `json:"branch_id"`
	CustomerID      int             `json:"customer_id"`
	UserID          int             `json:"user_id"`
	DocumentNumber  string          `json:"document_number"`
	DocumentType    string          `json:"document_type"`
	Currency        string          `json:"currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
	PaymentMethod   string          `json:"payment_method"`
	Status          string          `json:"status"`
	QuoteID         *int            `json:"quote_id,omitempty"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	VoidedAt        *time.Time      `json:"voided_at,omitempty"`
	VoidedBy        *int            `json:"voided_by,omitempty"`
	VoidReason      *string         `json:"void_reason,omitempty"`
	Lines           []SaleLine      `json:"lines,omitempty"`
	Payments        []SalePayment   `json:"payments,omitempty"`
}

type SaleLine struct {
	ID              int             `json:"id"`
	SaleID          int             `json:"sale_id"`
	LineNumber      int             `json:"line_number"`
	ProductID       int             `json:"product_id"`
	ProductCode     string          `json:"product_code"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Discount        decimal.Decimal `json:"discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	StockMovementID *int            `json:"stock_movement_id,omitempty"`
}

// SalePayment links a payment to the ledger entry it produced: a cash movement
// for efectivo (nil when no register was open), an AR entry for cuenta_corriente.
type SalePayment struct {
	ID             int             `json:"id"`
	SaleID         int             `json:"sale_id"`
	Method         string          `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	CashMovementID *int            `json:"cash_movement_id,omitempty"`
	AREntryID      *int            `json:"ar_entry_id,omitempty"`
}

type CreateSaleInput struct {
	TenantID   int
	UserID     int
	BranchID   int
	CustomerID int
	// DocumentType is the numbering prefix; empty means VTA.
	DocumentType string
	// Currency empty means the tenant's base currency.
	Currency string
	Lines    []LineInput
	Discount Discount
	Payments []SalePaymentInput
	QuoteID  *int
	Notes    string
}

// SaleResult is returned by CreateSale and CancelSale. Warnings lists side
// effects that were skipped and queued for reconciliation.
type SaleResult struct {
	Sale     *Sale     `json:"sale"`
	Warnings []Warning `json:"warnings,omitempty"`
}

type SaleFilter struct {
	BranchID   int
	CustomerID int
	Status     string
	Range      DateRange
	Limit      int
}
