package app

import (
	"time"

	"github.com/shopspring/decimal"

	"retail-ledger/internal/core"
)

// Identity fields are never decoded from a request body; adapters fill them
// from the authenticated caller.

// LineRequest is a single line within a sale or quote request.
type LineRequest struct {
	ProductID int              `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"` // nil means product list price
	Discount  decimal.Decimal  `json:"discount"`
}

// PaymentRequest is a single payment within a CreateSaleRequest.
type PaymentRequest struct {
	Method string          `json:"method" validate:"required,oneof=efectivo cuenta_corriente tarjeta transferencia"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateSaleRequest is the input for creating a sale.
type CreateSaleRequest struct {
	TenantID        int              `json:"-" validate:"required,gt=0"`
	UserID          int              `json:"-" validate:"required,gt=0"`
	BranchID        int              `json:"branch_id"`
	CustomerID      int              `json:"customer_id" validate:"required,gt=0"`
	DocumentType    string           `json:"document_type" validate:"omitempty,uppercase,min=2,max=6"`
	Currency        string           `json:"currency" validate:"omitempty,len=3"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	QuoteID         *int             `json:"quote_id,omitempty" validate:"omitempty,gt=0"`
	Notes           string           `json:"notes" validate:"max=1000"`
	Lines           []LineRequest    `json:"lines" validate:"required,min=1,dive"`
	Payments        []PaymentRequest `json:"payments" validate:"required,min=1,dive"`
}

// CancelDocumentRequest is the input for cancelling a sale or a purchase.
type CancelDocumentRequest struct {
	TenantID   int    `json:"-" validate:"required,gt=0"`
	UserID     int    `json:"-" validate:"required,gt=0"`
	DocumentID int    `json:"-" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"max=500"`
}

// ListDocumentsRequest filters sale and purchase listings. CounterpartyID is the
// customer for sales and the supplier for purchases.
type ListDocumentsRequest struct {
	BranchID       int
	CounterpartyID int
	Status         string `validate:"omitempty,oneof=completed void"`
	From           time.Time
	To             time.Time
	Limit          int `validate:"gte=0,lte=1000"`
}

// PurchaseLineRequest is a single line within a CreatePurchaseRequest.
type PurchaseLineRequest struct {
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Discount  decimal.Decimal `json:"discount"`
}

// CreatePurchaseRequest is the input for recording a supplier purchase.
type CreatePurchaseRequest struct {
	TenantID        int                   `json:"-" validate:"required,gt=0"`
	UserID          int                   `json:"-" validate:"required,gt=0"`
	BranchID        int                   `json:"branch_id"`
	SupplierID      int                   `json:"supplier_id" validate:"required,gt=0"`
	DocumentType    string                `json:"document_type" validate:"omitempty,uppercase,min=2,max=6"`
	SupplierInvoice string                `json:"supplier_invoice" validate:"max=60"`
	Currency        string                `json:"currency" validate:"omitempty,len=3"`
	DiscountPercent decimal.Decimal       `json:"discount_percent"`
	DiscountAmount  decimal.Decimal       `json:"discount_amount"`
	Notes           string                `json:"notes" validate:"max=1000"`
	Lines           []PurchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CreateQuoteRequest is the input for creating a quote.
type CreateQuoteRequest struct {
	TenantID   int           `json:"-" validate:"required,gt=0"`
	UserID     int           `json:"-" validate:"required,gt=0"`
	BranchID   int           `json:"branch_id"`
	CustomerID int           `json:"customer_id" validate:"required,gt=0"`
	Notes      string        `json:"notes" validate:"max=1000"`
	Lines      []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReplaceQuoteLinesRequest is the input for editing an open quote.
type ReplaceQuoteLinesRequest struct {
	TenantID int           `json:"-" validate:"required,gt=0"`
	UserID   int           `json:"-" validate:"required,gt=0"`
	QuoteID  int           `json:"-" validate:"required,gt=0"`
	Lines    []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// MovementQuery filters stock movement listings.
type MovementQuery struct {
	ProductID int
	BranchID  int
	Direction string `validate:"omitempty,oneof=entrada salida ajuste"`
	Cause     string `validate:"omitempty,oneof=sale sale_cancel purchase purchase_cancel transfer_out transfer_in adjustment"`
	From      time.Time
	To        time.Time
	Limit     int `validate:"gte=0,lte=10000"`
}

// AdjustStockRequest is the input for a manual stock correction.
type AdjustStockRequest struct {
	TenantID  int             `json:"-" validate:"required,gt=0"`
	UserID    int             `json:"-" validate:"required,gt=0"`
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	BranchID  int             `json:"branch_id"`
	Quantity  decimal.Decimal `json:"quantity"` // signed
	Reason    string          `json:"reason" validate:"required,max=500"`
}

// TransferStockRequest is the input for moving stock between branches.
type TransferStockRequest struct {
	TenantID     int             `json:"-" validate:"required,gt=0"`
	UserID       int             `json:"-" validate:"required,gt=0"`
	ProductID    int             `json:"product_id" validate:"required,gt=0"`
	FromBranchID int             `json:"from_branch_id" validate:"required,gt=0"`
	ToBranchID   int             `json:"to_branch_id" validate:"required,gt=0,nefield=FromBranchID"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reason       string          `json:"reason" validate:"max=500"`
}

// OpenRegisterRequest is the input for opening a cash register session.
type OpenRegisterRequest struct {
	TenantID      int             `json:"-" validate:"required,gt=0"`
	UserID        int             `json:"-" validate:"required,gt=0"`
	BranchID      int             `json:"branch_id"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
}

// CashMovementRequest is the input for a manual cash movement.
type CashMovementRequest struct {
	TenantID    int             `json:"-" validate:"required,gt=0"`
	UserID      int             `json:"-" validate:"required,gt=0"`
	RegisterID  int             `json:"-" validate:"required,gt=0"`
	Direction   string          `json:"direction" validate:"required,oneof=ingreso egreso"`
	Category    string          `json:"category" validate:"required,max=40"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=500"`
}

// CloseRegisterRequest is the input for closing a cash register.
type CloseRegisterRequest struct {
	TenantID      int             `json:"-" validate:"required,gt=0"`
	UserID        int             `json:"-" validate:"required,gt=0"`
	RegisterID    int             `json:"-" validate:"required,gt=0"`
	CountedAmount decimal.Decimal `json:"counted_amount"`
}

// CustomerPaymentRequest is the input for a customer paying down their account.
type CustomerPaymentRequest struct {
	TenantID   int             `json:"-" validate:"required,gt=0"`
	UserID     int             `json:"-" validate:"required,gt=0"`
	CustomerID int             `json:"-" validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference" validate:"max=200"`
	RegisterID *int            `json:"register_id,omitempty" validate:"omitempty,gt=0"`
}

// CustomerChargeRequest is the input for a manual account charge.
type CustomerChargeRequest struct {
	TenantID   int             `json:"-" validate:"required,gt=0"`
	UserID     int             `json:"-" validate:"required,gt=0"`
	CustomerID int             `json:"-" validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference" validate:"required,max=200"`
}

// ResolveItemRequest is the input for closing a reconciliation item.
type ResolveItemRequest struct {
	TenantID int    `json:"-" validate:"required,gt=0"`
	UserID   int    `json:"-" validate:"required,gt=0"`
	ItemID   int    `json:"-" validate:"required,gt=0"`
	Note     string `json:"note" validate:"max=1000"`
}

func (r LineRequest) toCore() core.LineInput {
	return core.LineInput{ProductID: r.ProductID, Quantity: r.Quantity, UnitPrice: r.UnitPrice, Discount: r.Discount}
}

func toCoreLines(lines []LineRequest) []core.LineInput {
	out := make([]core.LineInput, len(lines))
	for i, l := range lines {
		out[i] = l.toCore()
	}
	return out
}
