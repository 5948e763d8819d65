package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockLedger keeps per-branch product quantities and their movement history.
// Every write appends a StockMovement and recomputes products.total_stock in the
// same transaction.
type StockLedger interface {
	// Standalone operations (manage their own transactions).
	GetBranchStock(ctx context.Context, tenantID, productID, branchID int) (*BranchStock, error)
	// ListStock returns stock rows for one branch, or all branches when branchID is 0.
	ListStock(ctx context.Context, tenantID, branchID int) ([]BranchStock, error)
	ListBelowMinimum(ctx context.Context, tenantID, branchID int) ([]BranchStock, error)
	ListMovements(ctx context.Context, tenantID int, filter MovementFilter) ([]StockMovement, error)
	// Adjust applies a signed manual correction. A result below zero is rejected.
	Adjust(ctx context.Context, in AdjustStockInput) (*StockMovement, error)
	// Transfer moves quantity between two branches of the same tenant atomically.
	Transfer(ctx context.Context, in TransferStockInput) (*StockTransfer, error)

	// TX-scoped operations: work within a caller-provided transaction.
	// Used by SaleService and PurchaseService so stock changes commit with the document.

	// LockRowsTx locks the branch_stock rows of productIDs in ascending product id
	// order and returns their quantities. With create set, missing rows are first
	// inserted at zero; otherwise they are simply absent from the result.
	LockRowsTx(ctx context.Context, tx pgx.Tx, tenantID, branchID int, productIDs []int, create bool) (map[int]decimal.Decimal, error)
	// DebitTx removes stock. A missing row or a shortfall fails with *InsufficientStockError.
	DebitTx(ctx context.Context, tx pgx.Tx, tenantID, branchID int, e StockEffect) (*StockMovement, error)
	// CreditTx adds stock, creating the branch row at zero if absent.
	CreditTx(ctx context.Context, tx pgx.Tx, tenantID, branchID int, e StockEffect) (*StockMovement, error)
}

type stockLedger struct {
	pool     *pgxpool.Pool
	attempts int
}

func NewStockLedger(pool *pgxpool.Pool, attempts int) StockLedger {
	return &stockLedger{pool: pool, attempts: attempts}
}

// ── Standalone operations ─────────────────────────────────────────────────────

const branchStockSelect = `
	SELECT bs.id, bs.tenant_id, bs.product_id, p.code, p.name, bs.branch_id, b.code,
	       bs.quantity, bs.opening_quantity, bs.min_quantity, bs.updated_at
	FROM branch_stock bs
	JOIN products p ON p.id = bs.product_id
	JOIN branches b ON b.id = bs.branch_id
`

func scanBranchStock(row pgx.Row, bs *BranchStock) error {
	return row.Scan(&bs.ID, &bs.TenantID, &bs.ProductID, &bs.ProductCode, &bs.ProductName,
		&bs.BranchID, &bs.BranchCode, &bs.Quantity, &bs.OpeningQuantity, &bs.MinQuantity, &bs.UpdatedAt)
}

func (s *stockLedger) GetBranchStock(ctx context.Context, tenantID, productID, branchID int) (*BranchStock, error) {
	bs := &BranchStock{}
	err := scanBranchStock(s.pool.QueryRow(ctx, branchStockSelect+`
		WHERE bs.tenant_id = $1 AND bs.product_id = $2 AND bs.branch_id = $3
	`, tenantID, productID, branchID), bs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("no stock row for product %d in branch %d", productID, branchID)
		}
		return nil, fmt.Errorf("failed to get branch stock: %w", err)
	}
	return bs, nil
}

func (s *stockLedger) ListStock(ctx context.Context, tenantID, branchID int) ([]BranchStock, error) {
	return s.queryStock(ctx, tenantID, branchID, false)
}

func (s *stockLedger) ListBelowMinimum(ctx context.Context, tenantID, branchID int) ([]BranchStock, error) {
	return s.queryStock(ctx, tenantID, branchID, true)
}

func (s *stockLedger) queryStock(ctx context.Context, tenantID, branchID int, belowMinimum bool) ([]BranchStock, error) {
	query := branchStockSelect + ` WHERE bs.tenant_id = $1 AND ($2 = 0 OR bs.branch_id = $2)`
	if belowMinimum {
		query += ` AND bs.min_quantity > 0 AND bs.quantity < bs.min_quantity`
	}
	query += ` ORDER BY p.code, b.code`

	rows, err := s.pool.Query(ctx, query, tenantID, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query branch stock: %w", err)
	}
	defer rows.Close()

	var result []BranchStock
	for rows.Next() {
		var bs BranchStock
		if err := scanBranchStock(rows, &bs); err != nil {
			return nil, fmt.Errorf("failed to scan branch stock: %w", err)
		}
		result = append(result, bs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating branch stock: %w", err)
	}
	return result, nil
}

const stockMovementColumns = `
	id, tenant_id, product_id, branch_id, direction, quantity, qty_before, qty_after,
	cause, sale_id, purchase_id, transfer_id, reason, user_id, created_at
`

func scanStockMovement(row pgx.Row, m *StockMovement) error {
	return row.Scan(&m.ID, &m.TenantID, &m.ProductID, &m.BranchID, &m.Direction, &m.Quantity,
		&m.QtyBefore, &m.QtyAfter, &m.Cause, &m.SaleID, &m.PurchaseID, &m.TransferID,
		&m.Reason, &m.UserID, &m.CreatedAt)
}

func (s *stockLedger) ListMovements(ctx context.Context, tenantID int, filter MovementFilter) ([]StockMovement, error) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProductID != 0 {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.BranchID != 0 {
		add("branch_id = $%d", filter.BranchID)
	}
	if filter.Direction != "" {
		add("direction = $%d", filter.Direction)
	}
	if filter.Cause != "" {
		add("cause = $%d", filter.Cause)
	}
	if !filter.Range.From.IsZero() {
		add("created_at >= $%d", filter.Range.From)
	}
	if !filter.Range.To.IsZero() {
		add("created_at < $%d", filter.Range.To)
	}

	query := "SELECT " + stockMovementColumns + " FROM stock_movements WHERE " +
		strings.Join(conds, " AND ") + " ORDER BY created_at, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := scanStockMovement(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}
	return movements, nil
}

func (s *stockLedger) Adjust(ctx context.Context, in AdjustStockInput) (*StockMovement, error) {
	if in.Quantity.IsZero() {
		return nil, validationError("adjustment quantity must not be zero")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, validationError("adjustment reason is required")
	}

	var movement *StockMovement
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		if err := requireBranch(ctx, tx, in.TenantID, in.BranchID); err != nil {
			return err
		}
		var err error
		movement, err = applyStockDelta(ctx, tx, in.TenantID, in.BranchID, in.Quantity, StockDirectionAdjust, StockEffect{
			ProductID: in.ProductID,
			Quantity:  in.Quantity.Abs(),
			Cause:     StockCauseAdjustment,
			Reason:    in.Reason,
			UserID:    in.UserID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *stockLedger) Transfer(ctx context.Context, in TransferStockInput) (*StockTransfer, error) {
	if in.FromBranchID == in.ToBranchID {
		return nil, validationError("source and destination branch must differ")
	}
	if !in.Quantity.IsPositive() {
		return nil, validationError("transfer quantity must be positive, got %s", in.Quantity)
	}

	var transfer *StockTransfer
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		for _, branchID := range []int{in.FromBranchID, in.ToBranchID} {
			if err := requireBranch(ctx, tx, in.TenantID, branchID); err != nil {
				return err
			}
		}
		if _, err := loadProduct(ctx, tx, in.TenantID, in.ProductID); err != nil {
			return err
		}

		if err := ensureStockRow(ctx, tx, in.TenantID, in.ToBranchID, in.ProductID); err != nil {
			return err
		}
		// Both rows locked in ascending branch id order.
		if _, err := tx.Exec(ctx, `
			SELECT id FROM branch_stock
			WHERE tenant_id = $1 AND product_id = $2 AND branch_id = ANY($3)
			ORDER BY branch_id
			FOR UPDATE
		`, in.TenantID, in.ProductID, []int{in.FromBranchID, in.ToBranchID}); err != nil {
			return fmt.Errorf("failed to lock branch stock for transfer: %w", err)
		}

		t := &StockTransfer{
			TenantID:     in.TenantID,
			ProductID:    in.ProductID,
			FromBranchID: in.FromBranchID,
			ToBranchID:   in.ToBranchID,
			Quantity:     in.Quantity,
			Reason:       in.Reason,
			UserID:       in.UserID,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO stock_transfers (tenant_id, product_id, from_branch_id, to_branch_id, quantity, reason, user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at
		`, in.TenantID, in.ProductID, in.FromBranchID, in.ToBranchID, in.Quantity, in.Reason, in.UserID,
		).Scan(&t.ID, &t.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert stock transfer: %w", err)
		}

		effect := StockEffect{
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			TransferID: &t.ID,
			Reason:     in.Reason,
			UserID:     in.UserID,
		}
		effect.Cause = StockCauseTransferOut
		if t.OutMovement, err = applyStockDelta(ctx, tx, in.TenantID, in.FromBranchID, in.Quantity.Neg(), StockDirectionOut, effect); err != nil {
			return err
		}
		effect.Cause = StockCauseTransferIn
		if t.InMovement, err = applyStockDelta(ctx, tx, in.TenantID, in.ToBranchID, in.Quantity, StockDirectionIn, effect); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *stockLedger) LockRowsTx(ctx context.Context, tx pgx.Tx, tenantID, branchID int, productIDs []int, create bool) (map[int]decimal.Decimal, error) {
	ids := uniqueSorted(productIDs)
	quantities := make(map[int]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return quantities, nil
	}
	if create {
		for _, id := range ids {
			if err := ensureStockRow(ctx, tx, tenantID, branchID, id); err != nil {
				return nil, err
			}
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM branch_stock
		WHERE tenant_id = $1 AND branch_id = $2 AND product_id = ANY($3)
		ORDER BY product_id
		FOR UPDATE
	`, tenantID, branchID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock branch stock rows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var productID int
		var qty decimal.Decimal
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan branch stock row: %w", err)
		}
		quantities[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error locking branch stock rows: %w", err)
	}
	return quantities, nil
}

func (s *stockLedger) DebitTx(ctx context.Context, tx pgx.Tx, tenantID, branchID int, e StockEffect) (*StockMovement, error) {
	if !e.Quantity.IsPositive() {
		return nil, validationError("debit quantity for product %d must be positive, got %s", e.ProductID, e.Quantity)
	}
	return applyStockDelta(ctx, tx, tenantID, branchID, e.Quantity.Neg(), StockDirectionOut, e)
}

func (s *stockLedger) CreditTx(ctx context.Context, tx pgx.Tx, tenantID, branchID int, e StockEffect) (*StockMovement, error) {
	if !e.Quantity.IsPositive() {
		return nil, validationError("credit quantity for product %d must be positive, got %s", e.ProductID, e.Quantity)
	}
	return applyStockDelta(ctx, tx, tenantID, branchID, e.Quantity, StockDirectionIn, e)
}

// applyStockDelta is the single write path for branch_stock. It locks the row,
// rejects a negative result, appends the movement and refreshes the product total.
func applyStockDelta(ctx context.Context, tx pgx.Tx, tenantID, branchID int, delta decimal.Decimal,
	direction string, e StockEffect) (*StockMovement, error) {

	if delta.IsZero() || !fitsScale(delta, QuantityScale) {
		return nil, validationError("stock quantity %s must be non-zero with at most %d decimals", delta.Abs(), QuantityScale)
	}

	product, err := loadProduct(ctx, tx, tenantID, e.ProductID)
	if err != nil {
		return nil, err
	}

	if delta.IsPositive() {
		if err := ensureStockRow(ctx, tx, tenantID, branchID, e.ProductID); err != nil {
			return nil, err
		}
	}

	var stockID int
	var before decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT id, quantity FROM branch_stock
		WHERE tenant_id = $1 AND product_id = $2 AND branch_id = $3
		FOR UPDATE
	`, tenantID, e.ProductID, branchID).Scan(&stockID, &before)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &InsufficientStockError{
			ProductID: e.ProductID, ProductCode: product.Code, BranchID: branchID,
			Available: decimal.Zero, Requested: delta.Abs(),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock branch stock for product %s: %w", product.Code, err)
	}

	after := before.Add(delta)
	if after.IsNegative() {
		return nil, &InsufficientStockError{
			ProductID: e.ProductID, ProductCode: product.Code, BranchID: branchID,
			Available: before, Requested: delta.Abs(),
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE branch_stock SET quantity = $1, updated_at = NOW() WHERE id = $2", after, stockID,
	); err != nil {
		return nil, fmt.Errorf("failed to update branch stock for product %s: %w", product.Code, err)
	}

	var userID *int
	if e.UserID != 0 {
		userID = &e.UserID
	}
	m := &StockMovement{}
	err = scanStockMovement(tx.QueryRow(ctx, `
		INSERT INTO stock_movements (tenant_id, product_id, branch_id, direction, quantity, qty_before, qty_after,
		                             cause, sale_id, purchase_id, transfer_id, reason, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+stockMovementColumns,
		tenantID, e.ProductID, branchID, direction, delta.Abs(), before, after,
		e.Cause, e.SaleID, e.PurchaseID, e.TransferID, e.Reason, userID,
	), m)
	if err != nil {
		return nil, fmt.Errorf("failed to insert stock movement for product %s: %w", product.Code, err)
	}

	if err := refreshTotalStock(ctx, tx, tenantID, e.ProductID); err != nil {
		return nil, err
	}
	return m, nil
}

func ensureStockRow(ctx context.Context, tx pgx.Tx, tenantID, branchID, productID int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO branch_stock (tenant_id, product_id, branch_id, quantity)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (tenant_id, product_id, branch_id) DO NOTHING
	`, tenantID, productID, branchID)
	if err != nil {
		return fmt.Errorf("failed to create branch stock row for product %d: %w", productID, err)
	}
	return nil
}

// refreshTotalStock rewrites the products.total_stock projection from branch_stock.
func refreshTotalStock(ctx context.Context, tx pgx.Tx, tenantID, productID int) error {
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET total_stock = (
			SELECT COALESCE(SUM(quantity), 0) FROM branch_stock
			WHERE tenant_id = $1 AND product_id = $2
		)
		WHERE id = $2 AND tenant_id = $1
	`, tenantID, productID)
	if err != nil {
		return fmt.Errorf("failed to refresh total stock for product %d: %w", productID, err)
	}
	return nil
}

func uniqueSorted(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
