package app

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"retail-ledger/internal/core"
)

const tracerName = "retail-ledger/internal/app"

// Services bundles the core services the application layer drives.
type Services struct {
	Documents      core.DocumentService
	Stock          core.StockLedger
	Cash           core.CashRegisterService
	Receivables    core.ReceivablesLedger
	Quotes         core.QuoteService
	Sales          core.SaleService
	Purchases      core.PurchaseService
	Reconciliation core.ReconciliationService
	Users          core.UserService
}

// NewServices wires every core service against one pool. attempts bounds the
// retry of a unit of work after a transient conflict.
func NewServices(pool *pgxpool.Pool, attempts int) *Services {
	docs := core.NewDocumentService()
	stock := core.NewStockLedger(pool, attempts)
	cash := core.NewCashRegisterService(pool, attempts)
	receivables := core.NewReceivablesLedger(pool, cash, attempts)
	quotes := core.NewQuoteService(pool, attempts)
	return &Services{
		Documents:      docs,
		Stock:          stock,
		Cash:           cash,
		Receivables:    receivables,
		Quotes:         quotes,
		Sales:          core.NewSaleService(pool, docs, stock, cash, receivables, quotes, attempts),
		Purchases:      core.NewPurchaseService(pool, docs, stock, attempts),
		Reconciliation: core.NewReconciliationService(pool, attempts),
		Users:          core.NewUserService(pool),
	}
}

type appService struct {
	svc      *Services
	validate *validator.Validate
	tracer   trace.Tracer
	log      logrus.FieldLogger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(svc *Services, log logrus.FieldLogger) ApplicationService {
	return &appService{
		svc:      svc,
		validate: newValidator(),
		tracer:   otel.Tracer(tracerName),
		log:      log,
	}
}

func (s *appService) start(ctx context.Context, op string, tenantID int) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "app."+op, trace.WithAttributes(attribute.Int("tenant.id", tenantID)))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *appService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return processValidationErrors(err)
	}
	return nil
}

func (s *appService) logWarnings(op string, tenantID, documentID int, warnings []core.Warning) {
	for _, w := range warnings {
		s.log.WithFields(logrus.Fields{
			"module":                 "app",
			"funcName":               op,
			"tenant_id":              tenantID,
			"document_id":            documentID,
			"code":                   w.Code,
			"reconciliation_item_id": w.ReconciliationItem,
		}).Warn(w.Message)
	}
}

// ── Sales ─────────────────────────────────────────────────────────────────────

func (s *appService) CreateSale(ctx context.Context, req CreateSaleRequest) (res *SaleResult, err error) {
	ctx, span := s.start(ctx, "CreateSale", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}

	payments := make([]core.SalePaymentInput, len(req.Payments))
	for i, p := range req.Payments {
		payments[i] = core.SalePaymentInput{Method: p.Method, Amount: p.Amount}
	}

	out, err := s.svc.Sales.CreateSale(ctx, core.CreateSaleInput{
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		BranchID:     req.BranchID,
		CustomerID:   req.CustomerID,
		DocumentType: req.DocumentType,
		Currency:     req.Currency,
		Lines:        toCoreLines(req.Lines),
		Discount:     core.Discount{Percent: req.DiscountPercent, Amount: req.DiscountAmount},
		Payments:     payments,
		QuoteID:      req.QuoteID,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("sale.document_number", out.Sale.DocumentNumber))
	s.logWarnings("CreateSale", req.TenantID, out.Sale.ID, out.Warnings)
	return &SaleResult{Sale: out.Sale, Warnings: out.Warnings}, nil
}

func (s *appService) CancelSale(ctx context.Context, req CancelDocumentRequest) (res *SaleResult, err error) {
	ctx, span := s.start(ctx, "CancelSale", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	out, err := s.svc.Sales.CancelSale(ctx, req.TenantID, req.UserID, req.DocumentID, req.Reason)
	if err != nil {
		return nil, err
	}
	s.logWarnings("CancelSale", req.TenantID, out.Sale.ID, out.Warnings)
	return &SaleResult{Sale: out.Sale, Warnings: out.Warnings}, nil
}

func (s *appService) GetSale(ctx context.Context, actor core.Actor, saleID int) (sale *core.Sale, err error) {
	ctx, span := s.start(ctx, "GetSale", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Sales.GetSale(ctx, actor.TenantID, saleID)
}

func (s *appService) ListSales(ctx context.Context, actor core.Actor, req ListDocumentsRequest) (res *SaleListResult, err error) {
	ctx, span := s.start(ctx, "ListSales", actor.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	sales, err := s.svc.Sales.ListSales(ctx, actor.TenantID, core.SaleFilter{
		BranchID:   req.BranchID,
		CustomerID: req.CounterpartyID,
		Status:     req.Status,
		Range:      core.DateRange{From: req.From, To: req.To},
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &SaleListResult{Sales: sales}, nil
}

// ── Purchases ─────────────────────────────────────────────────────────────────

func (s *appService) CreatePurchase(ctx context.Context, req CreatePurchaseRequest) (res *PurchaseResult, err error) {
	ctx, span := s.start(ctx, "CreatePurchase", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}

	lines := make([]core.PurchaseLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.PurchaseLineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost, Discount: l.Discount}
	}
	p, err := s.svc.Purchases.CreatePurchase(ctx, core.CreatePurchaseInput{
		TenantID:        req.TenantID,
		UserID:          req.UserID,
		BranchID:        req.BranchID,
		SupplierID:      req.SupplierID,
		DocumentType:    req.DocumentType,
		SupplierInvoice: req.SupplierInvoice,
		Currency:        req.Currency,
		Lines:           lines,
		Discount:        core.Discount{Percent: req.DiscountPercent, Amount: req.DiscountAmount},
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("purchase.document_number", p.DocumentNumber))
	return &PurchaseResult{Purchase: p}, nil
}

func (s *appService) CancelPurchase(ctx context.Context, req CancelDocumentRequest) (res *PurchaseResult, err error) {
	ctx, span := s.start(ctx, "CancelPurchase", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	p, err := s.svc.Purchases.CancelPurchase(ctx, req.TenantID, req.UserID, req.DocumentID, req.Reason)
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Purchase: p}, nil
}

func (s *appService) GetPurchase(ctx context.Context, actor core.Actor, purchaseID int) (p *core.Purchase, err error) {
	ctx, span := s.start(ctx, "GetPurchase", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Purchases.GetPurchase(ctx, actor.TenantID, purchaseID)
}

func (s *appService) ListPurchases(ctx context.Context, actor core.Actor, req ListDocumentsRequest) (res *PurchaseListResult, err error) {
	ctx, span := s.start(ctx, "ListPurchases", actor.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	purchases, err := s.svc.Purchases.ListPurchases(ctx, actor.TenantID, core.PurchaseFilter{
		BranchID:   req.BranchID,
		SupplierID: req.CounterpartyID,
		Status:     req.Status,
		Range:      core.DateRange{From: req.From, To: req.To},
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseListResult{Purchases: purchases}, nil
}

// ── Quotes ────────────────────────────────────────────────────────────────────

func (s *appService) CreateQuote(ctx context.Context, req CreateQuoteRequest) (q *core.Quote, err error) {
	ctx, span := s.start(ctx, "CreateQuote", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Quotes.CreateQuote(ctx, core.CreateQuoteInput{
		TenantID:   req.TenantID,
		UserID:     req.UserID,
		BranchID:   req.BranchID,
		CustomerID: req.CustomerID,
		Lines:      toCoreLines(req.Lines),
		Notes:      req.Notes,
	})
}

func (s *appService) ReplaceQuoteLines(ctx context.Context, req ReplaceQuoteLinesRequest) (q *core.Quote, err error) {
	ctx, span := s.start(ctx, "ReplaceQuoteLines", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Quotes.ReplaceQuoteLines(ctx, req.TenantID, req.QuoteID, toCoreLines(req.Lines))
}

func (s *appService) VoidQuote(ctx context.Context, actor core.Actor, quoteID int) (q *core.Quote, err error) {
	ctx, span := s.start(ctx, "VoidQuote", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Quotes.VoidQuote(ctx, actor.TenantID, quoteID)
}

func (s *appService) GetQuote(ctx context.Context, actor core.Actor, quoteID int) (q *core.Quote, err error) {
	ctx, span := s.start(ctx, "GetQuote", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Quotes.GetQuote(ctx, actor.TenantID, quoteID)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) ListStock(ctx context.Context, actor core.Actor, branchID int, belowMinimum bool) (res *StockResult, err error) {
	ctx, span := s.start(ctx, "ListStock", actor.TenantID)
	defer func() { finish(span, err) }()

	var levels []core.BranchStock
	if belowMinimum {
		levels, err = s.svc.Stock.ListBelowMinimum(ctx, actor.TenantID, branchID)
	} else {
		levels, err = s.svc.Stock.ListStock(ctx, actor.TenantID, branchID)
	}
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) GetBranchStock(ctx context.Context, actor core.Actor, productID, branchID int) (bs *core.BranchStock, err error) {
	ctx, span := s.start(ctx, "GetBranchStock", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Stock.GetBranchStock(ctx, actor.TenantID, productID, branchID)
}

func (s *appService) ListStockMovements(ctx context.Context, actor core.Actor, req MovementQuery) (res *MovementListResult, err error) {
	ctx, span := s.start(ctx, "ListStockMovements", actor.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	movements, err := s.svc.Stock.ListMovements(ctx, actor.TenantID, core.MovementFilter{
		ProductID: req.ProductID,
		BranchID:  req.BranchID,
		Direction: req.Direction,
		Cause:     req.Cause,
		Range:     core.DateRange{From: req.From, To: req.To},
		Limit:     req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: movements}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (m *core.StockMovement, err error) {
	ctx, span := s.start(ctx, "AdjustStock", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Stock.Adjust(ctx, core.AdjustStockInput{
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		ProductID: req.ProductID,
		BranchID:  req.BranchID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
	})
}

func (s *appService) TransferStock(ctx context.Context, req TransferStockRequest) (t *core.StockTransfer, err error) {
	ctx, span := s.start(ctx, "TransferStock", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Stock.Transfer(ctx, core.TransferStockInput{
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		ProductID:    req.ProductID,
		FromBranchID: req.FromBranchID,
		ToBranchID:   req.ToBranchID,
		Quantity:     req.Quantity,
		Reason:       req.Reason,
	})
}

// ── Cash registers ────────────────────────────────────────────────────────────

func (s *appService) OpenCashRegister(ctx context.Context, req OpenRegisterRequest) (r *core.CashRegister, err error) {
	ctx, span := s.start(ctx, "OpenCashRegister", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	if _, err = s.svc.Users.RequireActive(ctx, req.TenantID, req.UserID); err != nil {
		return nil, err
	}
	return s.svc.Cash.Open(ctx, req.TenantID, req.UserID, req.BranchID, req.OpeningAmount)
}

func (s *appService) GetCurrentCashRegister(ctx context.Context, actor core.Actor, branchID int) (r *core.CashRegister, err error) {
	ctx, span := s.start(ctx, "GetCurrentCashRegister", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Cash.GetOpen(ctx, actor.TenantID, actor.UserID, branchID)
}

func (s *appService) GetCashRegister(ctx context.Context, actor core.Actor, registerID int) (r *core.CashRegister, err error) {
	ctx, span := s.start(ctx, "GetCashRegister", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Cash.Get(ctx, actor.TenantID, registerID)
}

func (s *appService) ListCashMovements(ctx context.Context, actor core.Actor, registerID int) (res *CashMovementListResult, err error) {
	ctx, span := s.start(ctx, "ListCashMovements", actor.TenantID)
	defer func() { finish(span, err) }()

	if _, err = s.svc.Cash.Get(ctx, actor.TenantID, registerID); err != nil {
		return nil, err
	}
	movements, err := s.svc.Cash.ListMovements(ctx, actor.TenantID, registerID)
	if err != nil {
		return nil, err
	}
	return &CashMovementListResult{Movements: movements}, nil
}

func (s *appService) RecordCashMovement(ctx context.Context, req CashMovementRequest) (m *core.CashMovement, err error) {
	ctx, span := s.start(ctx, "RecordCashMovement", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Cash.RecordMovement(ctx, core.CashMovementInput{
		TenantID:    req.TenantID,
		RegisterID:  req.RegisterID,
		UserID:      req.UserID,
		Direction:   req.Direction,
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
	})
}

func (s *appService) CloseCashRegister(ctx context.Context, req CloseRegisterRequest) (r *core.CashRegister, err error) {
	ctx, span := s.start(ctx, "CloseCashRegister", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	r, err = s.svc.Cash.Close(ctx, req.TenantID, req.RegisterID, req.CountedAmount)
	if err != nil {
		return nil, err
	}
	if r.Difference != nil && !r.Difference.IsZero() {
		s.log.WithFields(logrus.Fields{
			"module":      "app",
			"funcName":    "CloseCashRegister",
			"tenant_id":   req.TenantID,
			"register_id": r.ID,
			"difference":  r.Difference.StringFixed(2),
		}).Warn("cash register closed with a difference")
	}
	return r, nil
}

// ── Receivables ───────────────────────────────────────────────────────────────

func (s *appService) GetCustomerAccount(ctx context.Context, actor core.Actor, customerID int) (a *core.CustomerAccount, err error) {
	ctx, span := s.start(ctx, "GetCustomerAccount", actor.TenantID)
	defer func() { finish(span, err) }()
	return s.svc.Receivables.GetAccount(ctx, actor.TenantID, customerID)
}

func (s *appService) ListCustomerEntries(ctx context.Context, actor core.Actor, customerID int, period core.DateRange) (res *AREntryListResult, err error) {
	ctx, span := s.start(ctx, "ListCustomerEntries", actor.TenantID)
	defer func() { finish(span, err) }()

	if _, err = s.svc.Receivables.GetAccount(ctx, actor.TenantID, customerID); err != nil {
		return nil, err
	}
	entries, err := s.svc.Receivables.ListEntries(ctx, actor.TenantID, customerID, period)
	if err != nil {
		return nil, err
	}
	return &AREntryListResult{Entries: entries}, nil
}

func (s *appService) RecordCustomerPayment(ctx context.Context, req CustomerPaymentRequest) (res *core.PaymentResult, err error) {
	ctx, span := s.start(ctx, "RecordCustomerPayment", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Receivables.RecordPayment(ctx, core.PaymentInput{
		TenantID:   req.TenantID,
		CustomerID: req.CustomerID,
		UserID:     req.UserID,
		Amount:     req.Amount,
		Reference:  req.Reference,
		RegisterID: req.RegisterID,
	})
}

func (s *appService) RecordCustomerCharge(ctx context.Context, req CustomerChargeRequest) (e *core.AREntry, err error) {
	ctx, span := s.start(ctx, "RecordCustomerCharge", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Receivables.RecordCharge(ctx, core.AREntryInput{
		TenantID:   req.TenantID,
		CustomerID: req.CustomerID,
		UserID:     req.UserID,
		Amount:     req.Amount,
		Reference:  req.Reference,
	})
}

// ── Reconciliation ────────────────────────────────────────────────────────────

func (s *appService) CheckReconciliation(ctx context.Context, actor core.Actor) (r *core.ReconciliationReport, err error) {
	ctx, span := s.start(ctx, "CheckReconciliation", actor.TenantID)
	defer func() { finish(span, err) }()

	r, err = s.svc.Reconciliation.Check(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	for _, d := range r.Discrepancies {
		s.log.WithFields(logrus.Fields{
			"module":    "app",
			"funcName":  "CheckReconciliation",
			"tenant_id": actor.TenantID,
			"check":     d.Check,
			"entity_id": d.EntityID,
			"stored":    d.Stored.String(),
			"computed":  d.Computed.String(),
		}).Error("ledger discrepancy: " + d.Detail)
	}
	return r, nil
}

func (s *appService) ListReconciliationItems(ctx context.Context, actor core.Actor, status string) (res *ReconciliationItemsResult, err error) {
	ctx, span := s.start(ctx, "ListReconciliationItems", actor.TenantID)
	defer func() { finish(span, err) }()

	items, err := s.svc.Reconciliation.ListItems(ctx, actor.TenantID, status)
	if err != nil {
		return nil, err
	}
	return &ReconciliationItemsResult{Items: items}, nil
}

func (s *appService) ResolveReconciliationItem(ctx context.Context, req ResolveItemRequest) (it *core.ReconciliationItem, err error) {
	ctx, span := s.start(ctx, "ResolveReconciliationItem", req.TenantID)
	defer func() { finish(span, err) }()

	if err = s.check(req); err != nil {
		return nil, err
	}
	return s.svc.Reconciliation.Resolve(ctx, req.TenantID, req.ItemID, req.UserID, req.Note)
}
