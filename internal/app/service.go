package app

import (
	"context"

	"retail-ledger/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no display logic of any kind. Tenant and user always arrive explicitly in the
// request or as a core.Actor; nothing is read from ambient state.
type ApplicationService interface {
	// CreateSale validates the request and runs the sale orchestrator. Skipped cash
	// effects are returned as warnings, not errors.
	CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResult, error)

	// CancelSale voids a completed sale and reverses its stock, cash and receivable effects.
	CancelSale(ctx context.Context, req CancelDocumentRequest) (*SaleResult, error)

	GetSale(ctx context.Context, actor core.Actor, saleID int) (*core.Sale, error)

	ListSales(ctx context.Context, actor core.Actor, req ListDocumentsRequest) (*SaleListResult, error)

	// CreatePurchase credits stock and updates product cost prices.
	CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (*PurchaseResult, error)

	CancelPurchase(ctx context.Context, req CancelDocumentRequest) (*PurchaseResult, error)

	GetPurchase(ctx context.Context, actor core.Actor, purchaseID int) (*core.Purchase, error)

	ListPurchases(ctx context.Context, actor core.Actor, req ListDocumentsRequest) (*PurchaseListResult, error)

	CreateQuote(ctx context.Context, req CreateQuoteRequest) (*core.Quote, error)

	// ReplaceQuoteLines swaps the lines of an open quote.
	ReplaceQuoteLines(ctx context.Context, req ReplaceQuoteLinesRequest) (*core.Quote, error)

	VoidQuote(ctx context.Context, actor core.Actor, quoteID int) (*core.Quote, error)

	GetQuote(ctx context.Context, actor core.Actor, quoteID int) (*core.Quote, error)

	// ListStock returns branch stock; branchID 0 means all branches.
	ListStock(ctx context.Context, actor core.Actor, branchID int, belowMinimum bool) (*StockResult, error)

	GetBranchStock(ctx context.Context, actor core.Actor, productID, branchID int) (*core.BranchStock, error)

	ListStockMovements(ctx context.Context, actor core.Actor, req MovementQuery) (*MovementListResult, error)

	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.StockMovement, error)

	TransferStock(ctx context.Context, req TransferStockRequest) (*core.StockTransfer, error)

	OpenCashRegister(ctx context.Context, req OpenRegisterRequest) (*core.CashRegister, error)

	// GetCurrentCashRegister returns the caller's open register at branchID.
	GetCurrentCashRegister(ctx context.Context, actor core.Actor, branchID int) (*core.CashRegister, error)

	GetCashRegister(ctx context.Context, actor core.Actor, registerID int) (*core.CashRegister, error)

	ListCashMovements(ctx context.Context, actor core.Actor, registerID int) (*CashMovementListResult, error)

	RecordCashMovement(ctx context.Context, req CashMovementRequest) (*core.CashMovement, error)

	CloseCashRegister(ctx context.Context, req CloseRegisterRequest) (*core.CashRegister, error)

	GetCustomerAccount(ctx context.Context, actor core.Actor, customerID int) (*core.CustomerAccount, error)

	ListCustomerEntries(ctx context.Context, actor core.Actor, customerID int, period core.DateRange) (*AREntryListResult, error)

	// RecordCustomerPayment credits a customer's account, optionally booking the cash.
	RecordCustomerPayment(ctx context.Context, req CustomerPaymentRequest) (*core.PaymentResult, error)

	RecordCustomerCharge(ctx context.Context, req CustomerChargeRequest) (*core.AREntry, error)

	// CheckReconciliation compares every derived total with its ledger.
	CheckReconciliation(ctx context.Context, actor core.Actor) (*core.ReconciliationReport, error)

	ListReconciliationItems(ctx context.Context, actor core.Actor, status string) (*ReconciliationItemsResult, error)

	ResolveReconciliationItem(ctx context.Context, req ResolveItemRequest) (*core.ReconciliationItem, error)
}
