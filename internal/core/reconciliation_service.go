package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reconciliation check names reported in Discrepancy.Check.
const (
	CheckProductTotalStock = "product_total_stock"
	CheckBranchStockLedger = "branch_stock_movements"
	CheckCustomerBalance   = "customer_balance"
	CheckRegisterIncome    = "register_total_income"
	CheckRegisterExpense   = "register_total_expense"
)

// ReconciliationService verifies derived totals against their ledgers and
// manages the queue of skipped cash side effects.
type ReconciliationService interface {
	Check(ctx context.Context, tenantID int) (*ReconciliationReport, error)
	// ListItems returns queue items with the given status, or all when status is empty.
	ListItems(ctx context.Context, tenantID int, status string) ([]ReconciliationItem, error)
	Resolve(ctx context.Context, tenantID, itemID, userID int, note string) (*ReconciliationItem, error)
}

type reconciliationService struct {
	pool     *pgxpool.Pool
	attempts int
}

func NewReconciliationService(pool *pgxpool.Pool, attempts int) ReconciliationService {
	return &reconciliationService{pool: pool, attempts: attempts}
}

const reconciliationItemColumns = `
	id, tenant_id, kind, sale_id, branch_id, user_id, register_id, amount, status, note,
	created_at, resolved_at, resolved_by
`

func scanReconciliationItem(row pgx.Row, it *ReconciliationItem) error {
	return row.Scan(&it.ID, &it.TenantID, &it.Kind, &it.SaleID, &it.BranchID, &it.UserID, &it.RegisterID,
		&it.Amount, &it.Status, &it.Note, &it.CreatedAt, &it.ResolvedAt, &it.ResolvedBy)
}

// ── Invariant checks ──────────────────────────────────────────────────────────

var reconciliationChecks = []struct {
	name  string
	query string
}{
	{CheckProductTotalStock, `
		SELECT p.id, 'product ' || p.code, p.total_stock, COALESCE(SUM(bs.quantity), 0)
		FROM products p
		LEFT JOIN branch_stock bs ON bs.product_id = p.id AND bs.tenant_id = p.tenant_id
		WHERE p.tenant_id = $1
		GROUP BY p.id, p.code, p.total_stock
		HAVING p.total_stock <> COALESCE(SUM(bs.quantity), 0)
		ORDER BY p.id
	`},
	{CheckBranchStockLedger, `
		SELECT bs.id, 'product ' || bs.product_id || ' branch ' || bs.branch_id, bs.quantity,
		       bs.opening_quantity + COALESCE(SUM(m.qty_after - m.qty_before), 0)
		FROM branch_stock bs
		LEFT JOIN stock_movements m
		       ON m.tenant_id = bs.tenant_id AND m.product_id = bs.product_id AND m.branch_id = bs.branch_id
		WHERE bs.tenant_id = $1
		GROUP BY bs.id, bs.product_id, bs.branch_id, bs.quantity, bs.opening_quantity
		HAVING bs.quantity <> bs.opening_quantity + COALESCE(SUM(m.qty_after - m.qty_before), 0)
		ORDER BY bs.id
	`},
	{CheckCustomerBalance, `
		SELECT c.id, 'customer ' || c.code, c.balance,
		       COALESCE(SUM(CASE WHEN e.direction = 'debito' THEN e.amount ELSE -e.amount END), 0)
		FROM customers c
		LEFT JOIN ar_entries e ON e.customer_id = c.id AND e.tenant_id = c.tenant_id
		WHERE c.tenant_id = $1
		GROUP BY c.id, c.code, c.balance
		HAVING c.balance <> COALESCE(SUM(CASE WHEN e.direction = 'debito' THEN e.amount ELSE -e.amount END), 0)
		ORDER BY c.id
	`},
	{CheckRegisterIncome, `
		SELECT r.id, 'register ' || r.id, r.total_income,
		       COALESCE(SUM(m.amount) FILTER (WHERE m.direction = 'ingreso'), 0)
		FROM cash_registers r
		LEFT JOIN cash_movements m ON m.register_id = r.id AND m.tenant_id = r.tenant_id
		WHERE r.tenant_id = $1
		GROUP BY r.id, r.total_income
		HAVING r.total_income <> COALESCE(SUM(m.amount) FILTER (WHERE m.direction = 'ingreso'), 0)
		ORDER BY r.id
	`},
	{CheckRegisterExpense, `
		SELECT r.id, 'register ' || r.id, r.total_expense,
		       COALESCE(SUM(m.amount) FILTER (WHERE m.direction = 'egreso'), 0)
		FROM cash_registers r
		LEFT JOIN cash_movements m ON m.register_id = r.id AND m.tenant_id = r.tenant_id
		WHERE r.tenant_id = $1
		GROUP BY r.id, r.total_expense
		HAVING r.total_expense <> COALESCE(SUM(m.amount) FILTER (WHERE m.direction = 'egreso'), 0)
		ORDER BY r.id
	`},
}

// Check runs every invariant query inside one repeatable-read snapshot so the
// comparisons see a single consistent state.
func (s *reconciliationService) Check(ctx context.Context, tenantID int) (*ReconciliationReport, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin reconciliation snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := loadTenant(ctx, tx, tenantID); err != nil {
		return nil, err
	}

	report := &ReconciliationReport{TenantID: tenantID, CheckedAt: time.Now().UTC(), Discrepancies: []Discrepancy{}}
	for _, c := range reconciliationChecks {
		found, err := runCheck(ctx, tx, c.name, c.query, tenantID)
		if err != nil {
			return nil, err
		}
		report.Discrepancies = append(report.Discrepancies, found...)
	}

	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM reconciliation_items WHERE tenant_id = $1 AND status = 'pending'", tenantID,
	).Scan(&report.PendingItems); err != nil {
		return nil, fmt.Errorf("failed to count pending reconciliation items: %w", err)
	}
	return report, nil
}

func runCheck(ctx context.Context, tx pgx.Tx, name, query string, tenantID int) ([]Discrepancy, error) {
	rows, err := tx.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s check: %w", name, err)
	}
	defer rows.Close()

	var found []Discrepancy
	for rows.Next() {
		d := Discrepancy{Check: name}
		if err := rows.Scan(&d.EntityID, &d.Detail, &d.Stored, &d.Computed); err != nil {
			return nil, fmt.Errorf("failed to scan %s discrepancy: %w", name, err)
		}
		found = append(found, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s check: %w", name, err)
	}
	return found, nil
}

// ── Pending items queue ───────────────────────────────────────────────────────

func (s *reconciliationService) ListItems(ctx context.Context, tenantID int, status string) ([]ReconciliationItem, error) {
	if status != "" && status != ReconciliationStatusPending && status != ReconciliationStatusResolved {
		return nil, validationError("unknown reconciliation status %q", status)
	}
	rows, err := s.pool.Query(ctx, "SELECT "+reconciliationItemColumns+`
		FROM reconciliation_items
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at, id
	`, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation items: %w", err)
	}
	defer rows.Close()

	var items []ReconciliationItem
	for rows.Next() {
		var it ReconciliationItem
		if err := scanReconciliationItem(rows, &it); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reconciliation items: %w", err)
	}
	return items, nil
}

func (s *reconciliationService) Resolve(ctx context.Context, tenantID, itemID, userID int, note string) (*ReconciliationItem, error) {
	var item *ReconciliationItem
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		it := &ReconciliationItem{}
		err := scanReconciliationItem(tx.QueryRow(ctx, "SELECT "+reconciliationItemColumns+`
			FROM reconciliation_items WHERE id = $1 AND tenant_id = $2 FOR UPDATE
		`, itemID, tenantID), it)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("reconciliation item %d", itemID)
			}
			return fmt.Errorf("failed to lock reconciliation item: %w", err)
		}
		if it.Status == ReconciliationStatusResolved {
			return validationError("reconciliation item %d is already resolved", itemID)
		}

		err = scanReconciliationItem(tx.QueryRow(ctx, `
			UPDATE reconciliation_items
			SET status = 'resolved', resolved_at = NOW(), resolved_by = $1,
			    note = CASE WHEN $2 = '' THEN note ELSE $2 END
			WHERE id = $3
			RETURNING `+reconciliationItemColumns,
			userID, note, itemID,
		), it)
		if err != nil {
			return fmt.Errorf("failed to resolve reconciliation item: %w", err)
		}
		item = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ── TX-scoped helpers used by SaleService ────────────────────────────────────

func insertReconciliationItemTx(ctx context.Context, tx pgx.Tx, it ReconciliationItem) (*ReconciliationItem, error) {
	out := &ReconciliationItem{}
	err := scanReconciliationItem(tx.QueryRow(ctx, `
		INSERT INTO reconciliation_items (tenant_id, kind, sale_id, branch_id, user_id, register_id, amount, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+reconciliationItemColumns,
		it.TenantID, it.Kind, it.SaleID, it.BranchID, it.UserID, it.RegisterID, it.Amount, it.Note,
	), out)
	if err != nil {
		return nil, fmt.Errorf("failed to queue reconciliation item: %w", err)
	}
	return out, nil
}

// resolveSaleItemsTx closes pending items of kind for saleID and returns how many
// were resolved.
func resolveSaleItemsTx(ctx context.Context, tx pgx.Tx, tenantID, saleID, userID int, kind, note string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE reconciliation_items
		SET status = 'resolved', resolved_at = NOW(), resolved_by = $1, note = $2
		WHERE tenant_id = $3 AND sale_id = $4 AND kind = $5 AND status = 'pending'
	`, userID, note, tenantID, saleID, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve reconciliation items for sale %d: %w", saleID, err)
	}
	return tag.RowsAffected(), nil
}
