package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	QuoteStatusOpen      = "open"
	QuoteStatusConverted = "converted"
	QuoteStatusVoid      = "void"
)

// Quote is a non-binding priced offer. Only open quotes can be edited, voided or
// converted; converted and void are terminal.
type Quote struct {
	ID          int             `json:"id"`
	TenantID    int             `json:"tenant_id"`
	BranchID    int             `json:"branch_id"`
	CustomerID  int             `json:"customer_id"`
	UserID      *int            `json:"user_id,omitempty"`
	Status      string          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Notes       string          `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
	ConvertedAt *time.Time      `json:"converted_at,omitempty"`
	VoidedAt    *time.Time      `json:"voided_at,omitempty"`
	Lines       []QuoteLine     `json:"lines,omitempty"`
}

type QuoteLine struct {
	ID         int             `json:"id"`
	QuoteID    int             `json:"quote_id"`
	LineNumber int             `json:"line_number"`
	ProductID  int             `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Discount   decimal.Decimal `json:"discount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type CreateQuoteInput struct {
	TenantID   int
	UserID     int
	BranchID   int
	CustomerID int
	Lines      []LineInput
	Notes      string
}
