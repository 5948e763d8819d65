package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is a supplier-facing document. It drives only the stock ledger and
// the product cost price; suppliers are not ledgered.
type Purchase struct {
	ID              int             `json:"id"`
	TenantID        int             `json:"tenant_id"`
	BranchID        int             `json:"branch_id"`
	SupplierID      int             `json:"supplier_id"`
	UserID          int             `json:"user_id"`
	DocumentNumber  string          `json:"document_number"`
	DocumentType    string          `json:"document_type"`
	SupplierInvoice string          `json:"supplier_invoice"`
	Currency        string          `json:"currency"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	Notes           string          `json:"notes"`
	CreatedAt       time.Time       `json:"created_at"`
	VoidedAt        *time.Time      `json:"voided_at,omitempty"`
	VoidedBy        *int            `json:"voided_by,omitempty"`
	VoidReason      *string         `json:"void_reason,omitempty"`
	Lines           []PurchaseLine  `json:"lines,omitempty"`
}

type PurchaseLine struct {
	ID              int             `json:"id"`
	PurchaseID      int             `json:"purchase_id"`
	LineNumber      int             `json:"line_number"`
	ProductID       int             `json:"product_id"`
	ProductCode     string          `json:"product_code"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Discount        decimal.Decimal `json:"discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	StockMovementID *int            `json:"stock_movement_id,omitempty"`
}

type PurchaseLineInput struct {
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Discount  decimal.Decimal `json:"discount"`
}

type CreatePurchaseInput struct {
	TenantID        int
	UserID          int
	BranchID        int
	SupplierID      int
	DocumentType    string
	SupplierInvoice string
	Currency        string
	Lines           []PurchaseLineInput
	Discount        Discount
	Notes           string
}

type PurchaseFilter struct {
	BranchID   int
	SupplierID int
	Status     string
	Range      DateRange
	Limit      int
}
