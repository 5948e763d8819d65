package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ReconciliationKindCashSaleUnregistered       = "cash_sale_unregistered"
	ReconciliationKindCashReversalRegisterClosed = "cash_reversal_register_closed"
)

const (
	ReconciliationStatusPending  = "pending"
	ReconciliationStatusResolved = "resolved"
)

// ReconciliationItem records a cash side effect that was skipped on purpose:
// a cash sale with no open register, or a cash reversal against a closed one.
type ReconciliationItem struct {
	ID         int             `json:"id"`
	TenantID   int             `json:"tenant_id"`
	Kind       string          `json:"kind"`
	SaleID     *int            `json:"sale_id,omitempty"`
	BranchID   int             `json:"branch_id"`
	UserID     int             `json:"user_id"`
	RegisterID *int            `json:"register_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Note       string          `json:"note"`
	CreatedAt  time.Time       `json:"created_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy *int            `json:"resolved_by,omitempty"`
}

// Discrepancy is one invariant violation found by a reconciliation check.
type Discrepancy struct {
	Check    string          `json:"check"`
	EntityID int             `json:"entity_id"`
	Detail   string          `json:"detail"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
}

type ReconciliationReport struct {
	TenantID      int           `json:"tenant_id"`
	CheckedAt     time.Time     `json:"checked_at"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	PendingItems  int           `json:"pending_items"`
}

// Consistent is true when no derived total disagrees with its ledger.
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}
