package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Warning codes attached to a SaleResult.
const (
	WarningCashNotRegistered   = "CASH_NOT_REGISTERED"
	WarningCashReversalPending = "CASH_REVERSAL_PENDING"
	WarningCashPendingCleared  = "CASH_PENDING_CLEARED"
)

// SaleService creates and cancels sales. Each call is one transaction across the
// sale record, the stock ledger, the cash register ledger and the receivables
// ledger; nothing is visible unless all of it commits.
type SaleService interface {
	CreateSale(ctx context.Context, in CreateSaleInput) (*SaleResult, error)
	// CancelSale reverses every ledger effect of a completed sale and marks it void.
	// A void sale fails with ErrAlreadyVoid.
	CancelSale(ctx context.Context, tenantID, userID, saleID int, reason string) (*SaleResult, error)
	GetSale(ctx context.Context, tenantID, saleID int) (*Sale, error)
	ListSales(ctx context.Context, tenantID int, filter SaleFilter) ([]Sale, error)
}

type saleService struct {
	pool     *pgxpool.Pool
	docs     DocumentService
	stock    StockLedger
	cash     CashRegisterService
	ar       ReceivablesLedger
	quotes   QuoteService
	attempts int
	now      func() time.Time
}

func NewSaleService(pool *pgxpool.Pool, docs DocumentService, stock StockLedger, cash CashRegisterService,
	ar ReceivablesLedger, quotes QuoteService, attempts int) SaleService {
	return &saleService{
		pool:     pool,
		docs:     docs,
		stock:    stock,
		cash:     cash,
		ar:       ar,
		quotes:   quotes,
		attempts: attempts,
		now:      time.Now,
	}
}

const saleColumns = `
	id, tenant_id, branch_id, customer_id, user_id, document_number, document_type, currency,
	exchange_rate, subtotal, discount_percent, discount_amount, total, payment_method, status,
	quote_id, notes, created_at, voided_at, voided_by, void_reason
`

func scanSale(row pgx.Row, s *Sale) error {
	return row.Scan(&s.ID, &s.TenantID, &s.BranchID, &s.CustomerID, &s.UserID, &s.DocumentNumber,
		&s.DocumentType, &s.Currency, &s.ExchangeRate, &s.Subtotal, &s.DiscountPercent, &s.DiscountAmount,
		&s.Total, &s.PaymentMethod, &s.Status, &s.QuoteID, &s.Notes, &s.CreatedAt, &s.VoidedAt,
		&s.VoidedBy, &s.VoidReason)
}

// ── CreateSale ────────────────────────────────────────────────────────────────

func (s *saleService) CreateSale(ctx context.Context, in CreateSaleInput) (*SaleResult, error) {
	if in.BranchID <= 0 {
		return nil, newLedgerError(ErrNoBranchAssigned, "sale requires a branch")
	}
	if in.CustomerID <= 0 {
		return nil, validationError("customer_id is required")
	}
	if len(in.Payments) == 0 {
		return nil, validationError("at least one payment is required")
	}
	productIDs, err := requestedProductIDs(in.Lines)
	if err != nil {
		return nil, err
	}
	docType := in.DocumentType
	if docType == "" {
		docType = defaultSaleDocumentType
	}
	year := s.now().Year()
	if err := validateDocumentKey(docType, year); err != nil {
		return nil, err
	}

	var result *SaleResult
	err = runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		tenant, err := loadTenant(ctx, tx, in.TenantID)
		if err != nil {
			return err
		}
		if err := requireBranch(ctx, tx, in.TenantID, in.BranchID); err != nil {
			return err
		}
		if err := requireCustomer(ctx, tx, in.TenantID, in.CustomerID); err != nil {
			return err
		}

		products, err := loadProducts(ctx, tx, in.TenantID, productIDs)
		if err != nil {
			return err
		}
		priced, err := priceLines(in.Lines, products)
		if err != nil {
			return err
		}
		totals, err := computeTotals(priced, in.Discount)
		if err != nil {
			return err
		}
		paymentTag, err := checkPayments(in.Payments, totals.Total)
		if err != nil {
			return err
		}
		currency, rate, err := resolveExchangeRate(ctx, tx, tenant, in.Currency)
		if err != nil {
			return err
		}

		// Every requested quantity is checked under lock before the first write.
		available, err := s.stock.LockRowsTx(ctx, tx, in.TenantID, in.BranchID, productIDs, false)
		if err != nil {
			return err
		}
		demand := stockDemand(totals.Lines)
		for _, id := range productIDs {
			if available[id].LessThan(demand[id]) {
				return &InsufficientStockError{
					ProductID: id, ProductCode: products[id].Code, BranchID: in.BranchID,
					Available: available[id], Requested: demand[id],
				}
			}
		}

		number, err := s.docs.NextNumberTx(ctx, tx, in.TenantID, docType, year)
		if err != nil {
			return err
		}

		sale := &Sale{}
		err = scanSale(tx.QueryRow(ctx, `
			INSERT INTO sales (tenant_id, branch_id, customer_id, user_id, document_number, document_type,
			                   currency, exchange_rate, subtotal, discount_percent, discount_amount, total,
			                   payment_method, status, quote_id, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'completed', $14, $15)
			RETURNING `+saleColumns,
			in.TenantID, in.BranchID, in.CustomerID, in.UserID, number, docType,
			currency, rate, totals.Subtotal, totals.DiscountPercent, totals.DiscountAmount, totals.Total,
			paymentTag, in.QuoteID, in.Notes,
		), sale)
		if err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}

		if sale.Lines, err = s.debitLines(ctx, tx, sale, totals.Lines, products); err != nil {
			return err
		}

		res := &SaleResult{Sale: sale}
		if err := s.applyPayments(ctx, tx, sale, in.Payments, res); err != nil {
			return err
		}

		if in.QuoteID != nil {
			if _, err := s.quotes.ConvertTx(ctx, tx, in.TenantID, *in.QuoteID, in.CustomerID); err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// debitLines debits stock in ascending product order and persists the lines in
// their original order, each linked to its movement.
func (s *saleService) debitLines(ctx context.Context, tx pgx.Tx, sale *Sale, lines []pricedLine,
	products map[int]*productRef) ([]SaleLine, error) {

	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return lines[order[a]].ProductID < lines[order[b]].ProductID })

	movements := make([]*StockMovement, len(lines))
	for _, i := range order {
		m, err := s.stock.DebitTx(ctx, tx, sale.TenantID, sale.BranchID, StockEffect{
			ProductID: lines[i].ProductID,
			Quantity:  lines[i].Quantity,
			Cause:     StockCauseSale,
			SaleID:    &sale.ID,
			Reason:    sale.DocumentNumber,
			UserID:    sale.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		movements[i] = m
	}

	out := make([]SaleLine, 0, len(lines))
	for i, l := range lines {
		sl := SaleLine{
			SaleID: sale.ID, LineNumber: i + 1, ProductID: l.ProductID, ProductCode: products[l.ProductID].Code,
			Quantity: l.Quantity, UnitPrice: l.UnitPrice, Discount: l.Discount, Subtotal: l.Subtotal,
			StockMovementID: &movements[i].ID,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO sale_lines (sale_id, line_number, product_id, quantity, unit_price, discount, subtotal, stock_movement_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, sale.ID, sl.LineNumber, sl.ProductID, sl.Quantity, sl.UnitPrice, sl.Discount, sl.Subtotal, sl.StockMovementID,
		).Scan(&sl.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert sale line %d: %w", i+1, err)
		}
		out = append(out, sl)
	}
	return out, nil
}

// applyPayments books account payments before cash payments so the customer row
// is always locked ahead of the register row.
func (s *saleService) applyPayments(ctx context.Context, tx pgx.Tx, sale *Sale, payments []SalePaymentInput, res *SaleResult) error {
	order := make([]int, 0, len(payments))
	for i, p := range payments {
		if p.Method == PaymentMethodAccount {
			order = append(order, i)
		}
	}
	for i, p := range payments {
		if p.Method != PaymentMethodAccount {
			order = append(order, i)
		}
	}

	var register *CashRegister
	registerLooked := false
	unregistered := decimal.Zero

	booked := make([]SalePayment, len(payments))
	for _, i := range order {
		p := payments[i]
		sp := SalePayment{SaleID: sale.ID, Method: p.Method, Amount: p.Amount}

		switch p.Method {
		case PaymentMethodAccount:
			entry, err := s.ar.DebitTx(ctx, tx, AREntryInput{
				TenantID:   sale.TenantID,
				CustomerID: sale.CustomerID,
				UserID:     sale.UserID,
				Amount:     sp.Amount,
				Cause:      ARCauseSale,
				SaleID:     &sale.ID,
				Reference:  sale.DocumentNumber,
			})
			if err != nil {
				return fmt.Errorf("payment %d: %w", i+1, err)
			}
			sp.AREntryID = &entry.ID

		case PaymentMethodCash:
			if !registerLooked {
				var err error
				if register, err = s.cash.FindOpenTx(ctx, tx, sale.TenantID, sale.UserID, sale.BranchID); err != nil {
					return err
				}
				registerLooked = true
			}
			if register == nil {
				unregistered = unregistered.Add(sp.Amount)
				break
			}
			m, err := s.cash.RecordMovementTx(ctx, tx, CashMovementInput{
				TenantID:    sale.TenantID,
				RegisterID:  register.ID,
				UserID:      sale.UserID,
				Direction:   CashDirectionIncome,
				Category:    CashCategorySale,
				Amount:      sp.Amount,
				SaleID:      &sale.ID,
				Description: "Sale " + sale.DocumentNumber,
			})
			if err != nil {
				return fmt.Errorf("payment %d: %w", i+1, err)
			}
			sp.CashMovementID = &m.ID
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO sale_payments (sale_id, method, amount, cash_movement_id, ar_entry_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, sp.SaleID, sp.Method, sp.Amount, sp.CashMovementID, sp.AREntryID).Scan(&sp.ID)
		if err != nil {
			return fmt.Errorf("failed to insert sale payment %d: %w", i+1, err)
		}
		booked[i] = sp
	}
	sale.Payments = booked

	if unregistered.IsPositive() {
		item, err := insertReconciliationItemTx(ctx, tx, ReconciliationItem{
			TenantID: sale.TenantID,
			Kind:     ReconciliationKindCashSaleUnregistered,
			SaleID:   &sale.ID,
			BranchID: sale.BranchID,
			UserID:   sale.UserID,
			Amount:   unregistered,
			Note:     fmt.Sprintf("no open cash register for user %d in branch %d", sale.UserID, sale.BranchID),
		})
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("cash payment of %s on %s was not registered: no open cash register",
			unregistered.StringFixed(2), sale.DocumentNumber)
		res.Warnings = append(res.Warnings, Warning{Code: WarningCashNotRegistered, Message: msg, ReconciliationItem: item.ID})
	}
	return nil
}

// ── CancelSale ────────────────────────────────────────────────────────────────

func (s *saleService) CancelSale(ctx context.Context, tenantID, userID, saleID int, reason string) (*SaleResult, error) {
	reason = strings.TrimSpace(reason)

	var result *SaleResult
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		sale, err := loadSale(ctx, tx, tenantID, saleID, true)
		if err != nil {
			return err
		}
		if sale.Status == DocumentStatusVoid {
			return newLedgerError(ErrAlreadyVoid, "sale %s", sale.DocumentNumber)
		}
		res := &SaleResult{}

		lines := append([]SaleLine(nil), sale.Lines...)
		sort.SliceStable(lines, func(a, b int) bool { return lines[a].ProductID < lines[b].ProductID })
		ids := make([]int, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		if _, err := s.stock.LockRowsTx(ctx, tx, tenantID, sale.BranchID, ids, true); err != nil {
			return err
		}
		for _, l := range lines {
			_, err := s.stock.CreditTx(ctx, tx, tenantID, sale.BranchID, StockEffect{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Cause:     StockCauseSaleCancel,
				SaleID:    &sale.ID,
				Reason:    reason,
				UserID:    userID,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", l.LineNumber, err)
			}
		}

		for _, p := range sale.Payments {
			if p.Method != PaymentMethodAccount {
				continue
			}
			_, err := s.ar.ReverseDebitTx(ctx, tx, AREntryInput{
				TenantID:   tenantID,
				CustomerID: sale.CustomerID,
				UserID:     userID,
				Amount:     p.Amount,
				Cause:      ARCauseSaleCancel,
				SaleID:     &sale.ID,
				Reference:  sale.DocumentNumber,
			})
			if err != nil {
				return err
			}
		}

		if err := s.reverseCash(ctx, tx, sale, userID, res); err != nil {
			return err
		}

		err = scanSale(tx.QueryRow(ctx, `
			UPDATE sales
			SET status = 'void', voided_at = NOW(), voided_by = $1, void_reason = $2
			WHERE id = $3
			RETURNING `+saleColumns,
			userID, reason, sale.ID,
		), sale)
		if err != nil {
			return fmt.Errorf("failed to void sale %d: %w", sale.ID, err)
		}
		res.Sale = sale
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reverseCash compensates every registered cash payment on its original register
// while that register is open. Against a closed register the reversal is queued
// instead. Cash that was never registered only clears its pending item.
func (s *saleService) reverseCash(ctx context.Context, tx pgx.Tx, sale *Sale, userID int, res *SaleResult) error {
	unregistered := false
	for _, p := range sale.Payments {
		if p.Method != PaymentMethodCash {
			continue
		}
		if p.CashMovementID == nil {
			unregistered = true
			continue
		}

		var registerID int
		if err := tx.QueryRow(ctx,
			"SELECT register_id FROM cash_movements WHERE id = $1 AND tenant_id = $2",
			*p.CashMovementID, sale.TenantID,
		).Scan(&registerID); err != nil {
			return fmt.Errorf("failed to find register of cash movement %d: %w", *p.CashMovementID, err)
		}
		register, err := s.cash.LockTx(ctx, tx, sale.TenantID, registerID)
		if err != nil {
			return err
		}

		if register.Status == RegisterStatusOpen {
			_, err := s.cash.RecordMovementTx(ctx, tx, CashMovementInput{
				TenantID:    sale.TenantID,
				RegisterID:  registerID,
				UserID:      userID,
				Direction:   CashDirectionExpense,
				Category:    CashCategorySaleCancel,
				Amount:      p.Amount,
				SaleID:      &sale.ID,
				Description: "Cancellation of sale " + sale.DocumentNumber,
			})
			if err != nil {
				return err
			}
			continue
		}

		item, err := insertReconciliationItemTx(ctx, tx, ReconciliationItem{
			TenantID:   sale.TenantID,
			Kind:       ReconciliationKindCashReversalRegisterClosed,
			SaleID:     &sale.ID,
			BranchID:   sale.BranchID,
			UserID:     userID,
			RegisterID: &registerID,
			Amount:     p.Amount,
			Note:       fmt.Sprintf("register %d closed before cancellation of %s", registerID, sale.DocumentNumber),
		})
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("cash refund of %s for %s not booked: register %d is closed",
			p.Amount.StringFixed(2), sale.DocumentNumber, registerID)
		res.Warnings = append(res.Warnings, Warning{Code: WarningCashReversalPending, Message: msg, ReconciliationItem: item.ID})
	}

	if unregistered {
		n, err := resolveSaleItemsTx(ctx, tx, sale.TenantID, sale.ID, userID,
			ReconciliationKindCashSaleUnregistered, "sale cancelled before the cash was registered")
		if err != nil {
			return err
		}
		if n > 0 {
			res.Warnings = append(res.Warnings, Warning{
				Code:    WarningCashPendingCleared,
				Message: fmt.Sprintf("pending cash registration for %s cleared by cancellation", sale.DocumentNumber),
			})
		}
	}
	return nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *saleService) GetSale(ctx context.Context, tenantID, saleID int) (*Sale, error) {
	return loadSale(ctx, s.pool, tenantID, saleID, false)
}

func (s *saleService) ListSales(ctx context.Context, tenantID int, filter SaleFilter) ([]Sale, error) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.BranchID != 0 {
		add("branch_id = $%d", filter.BranchID)
	}
	if filter.CustomerID != 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.Range.From.IsZero() {
		add("created_at >= $%d", filter.Range.From)
	}
	if !filter.Range.To.IsZero() {
		add("created_at < $%d", filter.Range.To)
	}
	query := "SELECT " + saleColumns + " FROM sales WHERE " + strings.Join(conds, " AND ") + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		if err := scanSale(rows, &sale); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}
	return sales, nil
}

// loadSale reads a sale with its lines and payments. With forUpdate the sale row
// is locked, which is the single state check guarding cancellation.
func loadSale(ctx context.Context, q pgxQuerier, tenantID, saleID int, forUpdate bool) (*Sale, error) {
	query := "SELECT " + saleColumns + " FROM sales WHERE id = $1 AND tenant_id = $2"
	if forUpdate {
		query += " FOR UPDATE"
	}
	sale := &Sale{}
	if err := scanSale(q.QueryRow(ctx, query, saleID, tenantID), sale); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("sale %d", saleID)
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT sl.id, sl.sale_id, sl.line_number, sl.product_id, p.code, sl.quantity, sl.unit_price,
		       sl.discount, sl.subtotal, sl.stock_movement_id
		FROM sale_lines sl
		JOIN products p ON p.id = sl.product_id
		WHERE sl.sale_id = $1
		ORDER BY sl.line_number
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale lines: %w", err)
	}
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ID, &l.SaleID, &l.LineNumber, &l.ProductID, &l.ProductCode, &l.Quantity,
			&l.UnitPrice, &l.Discount, &l.Subtotal, &l.StockMovementID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		sale.Lines = append(sale.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sale lines: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT id, sale_id, method, amount, cash_movement_id, ar_entry_id
		FROM sale_payments
		WHERE sale_id = $1
		ORDER BY id
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p SalePayment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.CashMovementID, &p.AREntryID); err != nil {
			return nil, fmt.Errorf("failed to scan sale payment: %w", err)
		}
		sale.Payments = append(sale.Payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sale payments: %w", err)
	}
	return sale, nil
}
