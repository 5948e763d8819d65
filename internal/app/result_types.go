package app

import "retail-ledger/internal/core"

// SaleResult is returned by CreateSale and CancelSale.
type SaleResult struct {
	Sale     *core.Sale     `json:"sale"`
	Warnings []core.Warning `json:"warnings,omitempty"`
}

// SaleListResult is returned by ListSales.
type SaleListResult struct {
	Sales []core.Sale `json:"sales"`
}

// PurchaseResult is returned by purchase lifecycle operations.
type PurchaseResult struct {
	Purchase *core.Purchase `json:"purchase"`
}

// PurchaseListResult is returned by ListPurchases.
type PurchaseListResult struct {
	Purchases []core.Purchase `json:"purchases"`
}

// StockResult is returned by ListStock.
type StockResult struct {
	Levels []core.BranchStock `json:"levels"`
}

// MovementListResult is returned by ListStockMovements.
type MovementListResult struct {
	Movements []core.StockMovement `json:"movements"`
}

// CashMovementListResult is returned by ListCashMovements.
type CashMovementListResult struct {
	Movements []core.CashMovement `json:"movements"`
}

// AREntryListResult is returned by ListCustomerEntries.
type AREntryListResult struct {
	Entries []core.AREntry `json:"entries"`
}

// ReconciliationItemsResult is returned by ListReconciliationItems.
type ReconciliationItemsResult struct {
	Items []core.ReconciliationItem `json:"items"`
}
