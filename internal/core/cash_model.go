package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RegisterStatusOpen   = "open"
	RegisterStatusClosed = "closed"
)

const (
	CashDirectionIncome  = "ingreso"
	CashDirectionExpense = "egreso"
)

// Cash movement categories written by the orchestrators. Manual movements may
// use any non-empty category.
const (
	CashCategorySale       = "venta"
	CashCategorySaleCancel = "anulacion_venta"
	CashCategoryARPayment  = "cobro_cuenta_corriente"
)

// CashRegister is one user's cash session at one branch. Closed is terminal.
type CashRegister struct {
	ID             int              `json:"id"`
	TenantID       int              `json:"tenant_id"`
	BranchID       int              `json:"branch_id"`
	UserID         int              `json:"user_id"`
	OpeningAmount  decimal.Decimal  `json:"opening_amount"`
	TotalIncome    decimal.Decimal  `json:"total_income"`
	TotalExpense   decimal.Decimal  `json:"total_expense"`
	Status         string           `json:"status"`
	ClosingAmount  *decimal.Decimal `json:"closing_amount,omitempty"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	Difference     *decimal.Decimal `json:"difference,omitempty"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
}

// Expected is the amount of cash the drawer should hold right now.
func (r *CashRegister) Expected() decimal.Decimal {
	return r.OpeningAmount.Add(r.TotalIncome).Sub(r.TotalExpense)
}

type CashMovement struct {
	ID          int             `json:"id"`
	TenantID    int             `json:"tenant_id"`
	RegisterID  int             `json:"register_id"`
	Direction   string          `json:"direction"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	SaleID      *int            `json:"sale_id,omitempty"`
	Description string          `json:"description"`
	UserID      *int            `json:"user_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CashMovementInput struct {
	TenantID    int
	RegisterID  int
	UserID      int
	Direction   string
	Category    string
	Amount      decimal.Decimal
	SaleID      *int
	Description string
}
