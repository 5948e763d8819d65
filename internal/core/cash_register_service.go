package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CashRegisterService manages cash sessions and their movement log.
// A register's running totals are updated in the same statement batch as the
// movement append, under the register row lock.
type CashRegisterService interface {
	// Open starts a session for (user, branch). At most one may be open at a time.
	Open(ctx context.Context, tenantID, userID, branchID int, openingAmount decimal.Decimal) (*CashRegister, error)
	RecordMovement(ctx context.Context, in CashMovementInput) (*CashMovement, error)
	// Close computes the expected amount and the difference against counted.
	// A closed register cannot be reopened or closed again.
	Close(ctx context.Context, tenantID, registerID int, counted decimal.Decimal) (*CashRegister, error)
	Get(ctx context.Context, tenantID, registerID int) (*CashRegister, error)
	// GetOpen returns the open register of (user, branch) or ErrNotFound.
	GetOpen(ctx context.Context, tenantID, userID, branchID int) (*CashRegister, error)
	ListMovements(ctx context.Context, tenantID, registerID int) ([]CashMovement, error)

	// TX-scoped operations.

	RecordMovementTx(ctx context.Context, tx pgx.Tx, in CashMovementInput) (*CashMovement, error)
	// FindOpenTx locks and returns the open register of (user, branch), or nil when none is open.
	FindOpenTx(ctx context.Context, tx pgx.Tx, tenantID, userID, branchID int) (*CashRegister, error)
	// LockTx locks and returns a register regardless of status.
	LockTx(ctx context.Context, tx pgx.Tx, tenantID, registerID int) (*CashRegister, error)
}

const openRegisterIndex = "cash_registers_one_open_per_user_branch"

type cashRegisterService struct {
	pool     *pgxpool.Pool
	attempts int
}

func NewCashRegisterService(pool *pgxpool.Pool, attempts int) CashRegisterService {
	return &cashRegisterService{pool: pool, attempts: attempts}
}

const cashRegisterColumns = `
	id, tenant_id, branch_id, user_id, opening_amount, total_income, total_expense, status,
	closing_amount, expected_amount, difference, opened_at, closed_at
`

func scanCashRegister(row pgx.Row, r *CashRegister) error {
	return row.Scan(&r.ID, &r.TenantID, &r.BranchID, &r.UserID, &r.OpeningAmount, &r.TotalIncome,
		&r.TotalExpense, &r.Status, &r.ClosingAmount, &r.ExpectedAmount, &r.Difference, &r.OpenedAt, &r.ClosedAt)
}

const cashMovementColumns = `
	id, tenant_id, register_id, direction, category, amount, sale_id, description, user_id, created_at
`

func scanCashMovement(row pgx.Row, m *CashMovement) error {
	return row.Scan(&m.ID, &m.TenantID, &m.RegisterID, &m.Direction, &m.Category, &m.Amount,
		&m.SaleID, &m.Description, &m.UserID, &m.CreatedAt)
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *cashRegisterService) Open(ctx context.Context, tenantID, userID, branchID int, openingAmount decimal.Decimal) (*CashRegister, error) {
	if openingAmount.IsNegative() {
		return nil, validationError("opening amount cannot be negative, got %s", openingAmount)
	}

	var reg *CashRegister
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		if err := requireBranch(ctx, tx, tenantID, branchID); err != nil {
			return err
		}
		existing, err := s.FindOpenTx(ctx, tx, tenantID, userID, branchID)
		if err != nil {
			return err
		}
		if existing != nil {
			return newLedgerError(ErrRegisterAlreadyOpen, "register %d", existing.ID)
		}

		r := &CashRegister{}
		err = scanCashRegister(tx.QueryRow(ctx, `
			INSERT INTO cash_registers (tenant_id, branch_id, user_id, opening_amount, status)
			VALUES ($1, $2, $3, $4, 'open')
			RETURNING `+cashRegisterColumns,
			tenantID, branchID, userID, openingAmount.Round(2),
		), r)
		if err != nil {
			if isUniqueViolation(err, openRegisterIndex) {
				return newLedgerError(ErrRegisterAlreadyOpen, "user %d in branch %d", userID, branchID)
			}
			return fmt.Errorf("failed to open cash register: %w", err)
		}
		reg = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *cashRegisterService) RecordMovement(ctx context.Context, in CashMovementInput) (*CashMovement, error) {
	var m *CashMovement
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		var err error
		m, err = s.RecordMovementTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *cashRegisterService) Close(ctx context.Context, tenantID, registerID int, counted decimal.Decimal) (*CashRegister, error) {
	if counted.IsNegative() {
		return nil, validationError("counted amount cannot be negative, got %s", counted)
	}

	var reg *CashRegister
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		r, err := s.LockTx(ctx, tx, tenantID, registerID)
		if err != nil {
			return err
		}
		if r.Status == RegisterStatusClosed {
			return newLedgerError(ErrAlreadyClosed, "register %d", registerID)
		}

		counted = counted.Round(2)
		expected := r.Expected()
		difference := counted.Sub(expected)

		err = scanCashRegister(tx.QueryRow(ctx, `
			UPDATE cash_registers
			SET status = 'closed', closing_amount = $1, expected_amount = $2, difference = $3, closed_at = NOW()
			WHERE id = $4
			RETURNING `+cashRegisterColumns,
			counted, expected, difference, registerID,
		), r)
		if err != nil {
			return fmt.Errorf("failed to close cash register %d: %w", registerID, err)
		}
		reg = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *cashRegisterService) Get(ctx context.Context, tenantID, registerID int) (*CashRegister, error) {
	r := &CashRegister{}
	err := scanCashRegister(s.pool.QueryRow(ctx,
		"SELECT "+cashRegisterColumns+" FROM cash_registers WHERE id = $1 AND tenant_id = $2",
		registerID, tenantID,
	), r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("cash register %d", registerID)
		}
		return nil, fmt.Errorf("failed to get cash register: %w", err)
	}
	return r, nil
}

func (s *cashRegisterService) GetOpen(ctx context.Context, tenantID, userID, branchID int) (*CashRegister, error) {
	r := &CashRegister{}
	err := scanCashRegister(s.pool.QueryRow(ctx, "SELECT "+cashRegisterColumns+`
		FROM cash_registers
		WHERE tenant_id = $1 AND user_id = $2 AND branch_id = $3 AND status = 'open'
	`, tenantID, userID, branchID), r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("no open cash register for user %d in branch %d", userID, branchID)
		}
		return nil, fmt.Errorf("failed to get open cash register: %w", err)
	}
	return r, nil
}

func (s *cashRegisterService) ListMovements(ctx context.Context, tenantID, registerID int) ([]CashMovement, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+cashMovementColumns+`
		FROM cash_movements
		WHERE tenant_id = $1 AND register_id = $2
		ORDER BY created_at, id
	`, tenantID, registerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash movements: %w", err)
	}
	defer rows.Close()

	var movements []CashMovement
	for rows.Next() {
		var m CashMovement
		if err := scanCashMovement(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan cash movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash movements: %w", err)
	}
	return movements, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *cashRegisterService) RecordMovementTx(ctx context.Context, tx pgx.Tx, in CashMovementInput) (*CashMovement, error) {
	if in.Direction != CashDirectionIncome && in.Direction != CashDirectionExpense {
		return nil, validationError("cash direction must be %s or %s, got %q", CashDirectionIncome, CashDirectionExpense, in.Direction)
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, validationError("cash movement category is required")
	}
	amount := in.Amount
	if !amount.IsPositive() {
		return nil, validationError("cash movement amount must be positive, got %s", in.Amount)
	}
	if !fitsScale(amount, MoneyScale) {
		return nil, validationError("cash movement amount %s has more than %d decimals", amount, MoneyScale)
	}

	r, err := s.LockTx(ctx, tx, in.TenantID, in.RegisterID)
	if err != nil {
		return nil, err
	}
	if r.Status != RegisterStatusOpen {
		return nil, newLedgerError(ErrRegisterClosed, "register %d", in.RegisterID)
	}

	var userID *int
	if in.UserID != 0 {
		userID = &in.UserID
	}
	m := &CashMovement{}
	err = scanCashMovement(tx.QueryRow(ctx, `
		INSERT INTO cash_movements (tenant_id, register_id, direction, category, amount, sale_id, description, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+cashMovementColumns,
		in.TenantID, in.RegisterID, in.Direction, in.Category, amount, in.SaleID, in.Description, userID,
	), m)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cash movement: %w", err)
	}

	update := "UPDATE cash_registers SET total_income = total_income + $1 WHERE id = $2"
	if in.Direction == CashDirectionExpense {
		update = "UPDATE cash_registers SET total_expense = total_expense + $1 WHERE id = $2"
	}
	if _, err := tx.Exec(ctx, update, amount, in.RegisterID); err != nil {
		return nil, fmt.Errorf("failed to update cash register totals: %w", err)
	}
	return m, nil
}

func (s *cashRegisterService) FindOpenTx(ctx context.Context, tx pgx.Tx, tenantID, userID, branchID int) (*CashRegister, error) {
	r := &CashRegister{}
	err := scanCashRegister(tx.QueryRow(ctx, "SELECT "+cashRegisterColumns+`
		FROM cash_registers
		WHERE tenant_id = $1 AND user_id = $2 AND branch_id = $3 AND status = 'open'
		FOR UPDATE
	`, tenantID, userID, branchID), r)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open cash register: %w", err)
	}
	return r, nil
}

func (s *cashRegisterService) LockTx(ctx context.Context, tx pgx.Tx, tenantID, registerID int) (*CashRegister, error) {
	r := &CashRegister{}
	err := scanCashRegister(tx.QueryRow(ctx,
		"SELECT "+cashRegisterColumns+" FROM cash_registers WHERE id = $1 AND tenant_id = $2 FOR UPDATE",
		registerID, tenantID,
	), r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("cash register %d", registerID)
		}
		return nil, fmt.Errorf("failed to lock cash register %d: %w", registerID, err)
	}
	return r, nil
}
