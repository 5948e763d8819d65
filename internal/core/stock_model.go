package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock movement directions.
const (
	StockDirectionIn     = "entrada"
	StockDirectionOut    = "salida"
	StockDirectionAdjust = "ajuste"
)

// Stock movement causes.
const (
	StockCauseSale           = "sale"
	StockCauseSaleCancel     = "sale_cancel"
	StockCausePurchase       = "purchase"
	StockCausePurchaseCancel = "purchase_cancel"
	StockCauseTransferOut    = "transfer_out"
	StockCauseTransferIn     = "transfer_in"
	StockCauseAdjustment     = "adjustment"
)

// BranchStock is the on-hand quantity of one product in one branch.
type BranchStock struct {
	ID              int             `json:"id"`
	TenantID        int             `json:"tenant_id"`
	ProductID       int             `json:"product_id"`
	ProductCode     string          `json:"product_code"`
	ProductName     string          `json:"product_name"`
	BranchID        int             `json:"branch_id"`
	BranchCode      string          `json:"branch_code"`
	Quantity        decimal.Decimal `json:"quantity"`
	OpeningQuantity decimal.Decimal `json:"opening_quantity"`
	MinQuantity     decimal.Decimal `json:"min_quantity"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StockMovement is an append-only record of one change to a BranchStock row.
// Quantity is always positive; QtyAfter - QtyBefore carries the sign.
type StockMovement struct {
	ID         int             `json:"id"`
	TenantID   int             `json:"tenant_id"`
	ProductID  int             `json:"product_id"`
	BranchID   int             `json:"branch_id"`
	Direction  string          `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	QtyBefore  decimal.Decimal `json:"qty_before"`
	QtyAfter   decimal.Decimal `json:"qty_after"`
	Cause      string          `json:"cause"`
	SaleID     *int            `json:"sale_id,omitempty"`
	PurchaseID *int            `json:"purchase_id,omitempty"`
	TransferID *int            `json:"transfer_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	UserID     *int            `json:"user_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// StockEffect describes one debit or credit requested by an orchestrator.
type StockEffect struct {
	ProductID  int
	Quantity   decimal.Decimal
	Cause      string
	SaleID     *int
	PurchaseID *int
	TransferID *int
	Reason     string
	UserID     int
}

// StockTransfer links the transfer_out and transfer_in movements of one transfer.
type StockTransfer struct {
	ID           int             `json:"id"`
	TenantID     int             `json:"tenant_id"`
	ProductID    int             `json:"product_id"`
	FromBranchID int             `json:"from_branch_id"`
	ToBranchID   int             `json:"to_branch_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reason       string          `json:"reason"`
	UserID       int             `json:"user_id"`
	CreatedAt    time.Time       `json:"created_at"`
	OutMovement  *StockMovement  `json:"out_movement"`
	InMovement   *StockMovement  `json:"in_movement"`
}

type AdjustStockInput struct {
	TenantID  int
	UserID    int
	ProductID int
	BranchID  int
	// Quantity is signed: positive adds stock, negative removes it.
	Quantity decimal.Decimal
	Reason   string
}

type TransferStockInput struct {
	TenantID     int
	UserID       int
	ProductID    int
	FromBranchID int
	ToBranchID   int
	Quantity     decimal.Decimal
	Reason       string
}

// MovementFilter narrows ListMovements. Zero values are ignored.
type MovementFilter struct {
	ProductID int
	BranchID  int
	Direction string
	Cause     string
	Range     DateRange
	Limit     int
}
