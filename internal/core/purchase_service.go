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
)

// PurchaseService records goods received from suppliers. Creating a purchase
// credits branch stock and overwrites each product's cost price; cancelling it
// debits the stock back.
type PurchaseService interface {
	CreatePurchase(ctx context.Context, in CreatePurchaseInput) (*Purchase, error)
	// CancelPurchase fails with *InsufficientStockError when the received goods
	// have already been sold or moved out of the branch.
	CancelPurchase(ctx context.Context, tenantID, userID, purchaseID int, reason string) (*Purchase, error)
	GetPurchase(ctx context.Context, tenantID, purchaseID int) (*Purchase, error)
	ListPurchases(ctx context.Context, tenantID int, filter PurchaseFilter) ([]Purchase, error)
}

type purchaseService struct {
	pool     *pgxpool.Pool
	docs     DocumentService
	stock    StockLedger
	attempts int
	now      func() time.Time
}

func NewPurchaseService(pool *pgxpool.Pool, docs DocumentService, stock StockLedger, attempts int) PurchaseService {
	return &purchaseService{pool: pool, docs: docs, stock: stock, attempts: attempts, now: time.Now}
}

const purchaseColumns = `
	id, tenant_id, branch_id, supplier_id, user_id, document_number, document_type, supplier_invoice,
	currency, exchange_rate, subtotal, discount_percent, discount_amount, total, status, notes,
	created_at, voided_at, voided_by, void_reason
`

func scanPurchase(row pgx.Row, p *Purchase) error {
	return row.Scan(&p.ID, &p.TenantID, &p.BranchID, &p.SupplierID, &p.UserID, &p.DocumentNumber,
		&p.DocumentType, &p.SupplierInvoice, &p.Currency, &p.ExchangeRate, &p.Subtotal, &p.DiscountPercent,
		&p.DiscountAmount, &p.Total, &p.Status, &p.Notes, &p.CreatedAt, &p.VoidedAt, &p.VoidedBy, &p.VoidReason)
}

func (s *purchaseService) CreatePurchase(ctx context.Context, in CreatePurchaseInput) (*Purchase, error) {
	if in.BranchID <= 0 {
		return nil, newLedgerError(ErrNoBranchAssigned, "purchase requires a branch")
	}
	if in.SupplierID <= 0 {
		return nil, validationError("supplier_id is required")
	}
	if len(in.Lines) == 0 {
		return nil, validationError("at least one line is required")
	}
	docType := in.DocumentType
	if docType == "" {
		docType = defaultPurchaseDocumentType
	}
	year := s.now().Year()
	if err := validateDocumentKey(docType, year); err != nil {
		return nil, err
	}

	lines := make([]pricedLine, len(in.Lines))
	ids := make([]int, len(in.Lines))
	for i, l := range in.Lines {
		lines[i] = pricedLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitCost, Discount: l.Discount}
		ids[i] = l.ProductID
	}
	totals, err := computeTotals(lines, in.Discount)
	if err != nil {
		return nil, err
	}
	productIDs := uniqueSorted(ids)

	var purchase *Purchase
	err = runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		tenant, err := loadTenant(ctx, tx, in.TenantID)
		if err != nil {
			return err
		}
		if err := requireBranch(ctx, tx, in.TenantID, in.BranchID); err != nil {
			return err
		}
		if err := requireSupplier(ctx, tx, in.TenantID, in.SupplierID); err != nil {
			return err
		}
		products, err := loadProducts(ctx, tx, in.TenantID, productIDs)
		if err != nil {
			return err
		}
		currency, rate, err := resolveExchangeRate(ctx, tx, tenant, in.Currency)
		if err != nil {
			return err
		}

		if _, err := s.stock.LockRowsTx(ctx, tx, in.TenantID, in.BranchID, productIDs, true); err != nil {
			return err
		}

		number, err := s.docs.NextNumberTx(ctx, tx, in.TenantID, docType, year)
		if err != nil {
			return err
		}

		p := &Purchase{}
		err = scanPurchase(tx.QueryRow(ctx, `
			INSERT INTO purchases (tenant_id, branch_id, supplier_id, user_id, document_number, document_type,
			                       supplier_invoice, currency, exchange_rate, subtotal, discount_percent,
			                       discount_amount, total, status, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'completed', $14)
			RETURNING `+purchaseColumns,
			in.TenantID, in.BranchID, in.SupplierID, in.UserID, number, docType, in.SupplierInvoice,
			currency, rate, totals.Subtotal, totals.DiscountPercent, totals.DiscountAmount, totals.Total, in.Notes,
		), p)
		if err != nil {
			return fmt.Errorf("failed to insert purchase: %w", err)
		}

		if p.Lines, err = s.creditLines(ctx, tx, p, totals.Lines, products); err != nil {
			return err
		}

		// Document order, so the last line for a product sets its cost.
		for _, l := range totals.Lines {
			if _, err := tx.Exec(ctx,
				"UPDATE products SET cost_price = $1 WHERE id = $2 AND tenant_id = $3",
				l.UnitPrice, l.ProductID, in.TenantID,
			); err != nil {
				return fmt.Errorf("failed to update cost price for product %s: %w", products[l.ProductID].Code, err)
			}
		}
		purchase = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *purchaseService) creditLines(ctx context.Context, tx pgx.Tx, p *Purchase, lines []pricedLine,
	products map[int]*productRef) ([]PurchaseLine, error) {

	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return lines[order[a]].ProductID < lines[order[b]].ProductID })

	movements := make([]*StockMovement, len(lines))
	for _, i := range order {
		m, err := s.stock.CreditTx(ctx, tx, p.TenantID, p.BranchID, StockEffect{
			ProductID:  lines[i].ProductID,
			Quantity:   lines[i].Quantity,
			Cause:      StockCausePurchase,
			PurchaseID: &p.ID,
			Reason:     p.DocumentNumber,
			UserID:     p.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		movements[i] = m
	}

	out := make([]PurchaseLine, 0, len(lines))
	for i, l := range lines {
		pl := PurchaseLine{
			PurchaseID: p.ID, LineNumber: i + 1, ProductID: l.ProductID, ProductCode: products[l.ProductID].Code,
			Quantity: l.Quantity, UnitCost: l.UnitPrice, Discount: l.Discount, Subtotal: l.Subtotal,
			StockMovementID: &movements[i].ID,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO purchase_lines (purchase_id, line_number, product_id, quantity, unit_cost, discount, subtotal, stock_movement_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, p.ID, pl.LineNumber, pl.ProductID, pl.Quantity, pl.UnitCost, pl.Discount, pl.Subtotal, pl.StockMovementID,
		).Scan(&pl.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert purchase line %d: %w", i+1, err)
		}
		out = append(out, pl)
	}
	return out, nil
}

func (s *purchaseService) CancelPurchase(ctx context.Context, tenantID, userID, purchaseID int, reason string) (*Purchase, error) {
	reason = strings.TrimSpace(reason)

	var purchase *Purchase
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		p, err := loadPurchase(ctx, tx, tenantID, purchaseID, true)
		if err != nil {
			return err
		}
		if p.Status == DocumentStatusVoid {
			return newLedgerError(ErrAlreadyVoid, "purchase %s", p.DocumentNumber)
		}

		lines := append([]PurchaseLine(nil), p.Lines...)
		sort.SliceStable(lines, func(a, b int) bool { return lines[a].ProductID < lines[b].ProductID })
		ids := make([]int, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		if _, err := s.stock.LockRowsTx(ctx, tx, tenantID, p.BranchID, ids, false); err != nil {
			return err
		}
		for _, l := range lines {
			_, err := s.stock.DebitTx(ctx, tx, tenantID, p.BranchID, StockEffect{
				ProductID:  l.ProductID,
				Quantity:   l.Quantity,
				Cause:      StockCausePurchaseCancel,
				PurchaseID: &p.ID,
				Reason:     reason,
				UserID:     userID,
			})
			if err != nil {
				return fmt.Errorf("line %d: %w", l.LineNumber, err)
			}
		}

		err = scanPurchase(tx.QueryRow(ctx, `
			UPDATE purchases
			SET status = 'void', voided_at = NOW(), voided_by = $1, void_reason = $2
			WHERE id = $3
			RETURNING `+purchaseColumns,
			userID, reason, p.ID,
		), p)
		if err != nil {
			return fmt.Errorf("failed to void purchase %d: %w", p.ID, err)
		}
		purchase = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *purchaseService) GetPurchase(ctx context.Context, tenantID, purchaseID int) (*Purchase, error) {
	return loadPurchase(ctx, s.pool, tenantID, purchaseID, false)
}

func (s *purchaseService) ListPurchases(ctx context.Context, tenantID int, filter PurchaseFilter) ([]Purchase, error) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.BranchID != 0 {
		add("branch_id = $%d", filter.BranchID)
	}
	if filter.SupplierID != 0 {
		add("supplier_id = $%d", filter.SupplierID)
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
	query := "SELECT " + purchaseColumns + " FROM purchases WHERE " + strings.Join(conds, " AND ") + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := scanPurchase(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}
	return purchases, nil
}

func loadPurchase(ctx context.Context, q pgxQuerier, tenantID, purchaseID int, forUpdate bool) (*Purchase, error) {
	query := "SELECT " + purchaseColumns + " FROM purchases WHERE id = $1 AND tenant_id = $2"
	if forUpdate {
		query += " FOR UPDATE"
	}
	p := &Purchase{}
	if err := scanPurchase(q.QueryRow(ctx, query, purchaseID, tenantID), p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("purchase %d", purchaseID)
		}
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT pl.id, pl.purchase_id, pl.line_number, pl.product_id, pr.code, pl.quantity, pl.unit_cost,
		       pl.discount, pl.subtotal, pl.stock_movement_id
		FROM purchase_lines pl
		JOIN products pr ON pr.id = pl.product_id
		WHERE pl.purchase_id = $1
		ORDER BY pl.line_number
	`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l PurchaseLine
		if err := rows.Scan(&l.ID, &l.PurchaseID, &l.LineNumber, &l.ProductID, &l.ProductCode, &l.Quantity,
			&l.UnitCost, &l.Discount, &l.Subtotal, &l.StockMovementID); err != nil {
			return nil, fmt.Errorf("failed to scan purchase line: %w", err)
		}
		p.Lines = append(p.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase lines: %w", err)
	}
	return p, nil
}
