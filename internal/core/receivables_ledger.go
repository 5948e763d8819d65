package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReceivablesLedger keeps customer current-account balances. customers.balance is
// a projection of ar_entries and is only written here, under the customer row lock.
type ReceivablesLedger interface {
	// RecordPayment credits a payment in its own transaction, optionally booking
	// the cash on an open register.
	RecordPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error)
	// RecordCharge debits a manual charge (cause "charge") in its own transaction.
	RecordCharge(ctx context.Context, in AREntryInput) (*AREntry, error)
	GetAccount(ctx context.Context, tenantID, customerID int) (*CustomerAccount, error)
	ListEntries(ctx context.Context, tenantID, customerID int, period DateRange) ([]AREntry, error)

	// TX-scoped operations.

	DebitTx(ctx context.Context, tx pgx.Tx, in AREntryInput) (*AREntry, error)
	// CreditTx applies a payment: it fails with ErrNoOutstandingBalance when nothing
	// is owed and with ErrOverpayment when the amount exceeds the balance.
	CreditTx(ctx context.Context, tx pgx.Tx, in AREntryInput) (*AREntry, error)
	// ReverseDebitTx undoes a sale debit exactly. It is not bound by the payment
	// rules, so the balance may drop below zero (credit in the customer's favour).
	ReverseDebitTx(ctx context.Context, tx pgx.Tx, in AREntryInput) (*AREntry, error)
}

type receivablesLedger struct {
	pool     *pgxpool.Pool
	cash     CashRegisterService
	attempts int
}

func NewReceivablesLedger(pool *pgxpool.Pool, cash CashRegisterService, attempts int) ReceivablesLedger {
	return &receivablesLedger{pool: pool, cash: cash, attempts: attempts}
}

const arEntryColumns = `
	id, tenant_id, customer_id, direction, amount, balance_before, balance_after,
	cause, sale_id, reference, user_id, created_at
`

func scanAREntry(row pgx.Row, e *AREntry) error {
	return row.Scan(&e.ID, &e.TenantID, &e.CustomerID, &e.Direction, &e.Amount, &e.BalanceBefore,
		&e.BalanceAfter, &e.Cause, &e.SaleID, &e.Reference, &e.UserID, &e.CreatedAt)
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (l *receivablesLedger) RecordPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	var result *PaymentResult
	err := runInTx(ctx, l.pool, l.attempts, func(tx pgx.Tx) error {
		entry, err := l.CreditTx(ctx, tx, AREntryInput{
			TenantID:   in.TenantID,
			CustomerID: in.CustomerID,
			UserID:     in.UserID,
			Amount:     in.Amount,
			Cause:      ARCausePayment,
			Reference:  in.Reference,
		})
		if err != nil {
			return err
		}
		res := &PaymentResult{Entry: entry}

		if in.RegisterID != nil {
			res.CashMovement, err = l.cash.RecordMovementTx(ctx, tx, CashMovementInput{
				TenantID:    in.TenantID,
				RegisterID:  *in.RegisterID,
				UserID:      in.UserID,
				Direction:   CashDirectionIncome,
				Category:    CashCategoryARPayment,
				Amount:      entry.Amount,
				Description: fmt.Sprintf("Payment from customer %d %s", in.CustomerID, in.Reference),
			})
			if err != nil {
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

func (l *receivablesLedger) RecordCharge(ctx context.Context, in AREntryInput) (*AREntry, error) {
	in.Cause = ARCauseCharge
	in.SaleID = nil
	var entry *AREntry
	err := runInTx(ctx, l.pool, l.attempts, func(tx pgx.Tx) error {
		var err error
		entry, err = l.DebitTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (l *receivablesLedger) GetAccount(ctx context.Context, tenantID, customerID int) (*CustomerAccount, error) {
	a := &CustomerAccount{}
	err := l.pool.QueryRow(ctx, `
		SELECT id, code, name, balance, credit_limit
		FROM customers
		WHERE id = $1 AND tenant_id = $2
	`, customerID, tenantID).Scan(&a.CustomerID, &a.Code, &a.Name, &a.Balance, &a.CreditLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("customer %d", customerID)
		}
		return nil, fmt.Errorf("failed to get customer account: %w", err)
	}
	a.AvailableCredit = a.CreditLimit.Sub(a.Balance)
	a.OverLimit = a.CreditLimit.IsPositive() && a.Balance.GreaterThan(a.CreditLimit)
	return a, nil
}

func (l *receivablesLedger) ListEntries(ctx context.Context, tenantID, customerID int, period DateRange) ([]AREntry, error) {
	rows, err := l.pool.Query(ctx, "SELECT "+arEntryColumns+`
		FROM ar_entries
		WHERE tenant_id = $1 AND customer_id = $2
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at, id
	`, tenantID, customerID, nullableTime(period.From), nullableTime(period.To))
	if err != nil {
		return nil, fmt.Errorf("failed to query receivable entries: %w", err)
	}
	defer rows.Close()

	var entries []AREntry
	for rows.Next() {
		var e AREntry
		if err := scanAREntry(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan receivable entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receivable entries: %w", err)
	}
	return entries, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (l *receivablesLedger) DebitTx(ctx context.Context, tx pgx.Tx, in AREntryInput) (*AREntry, error) {
	return l.apply(ctx, tx, in, ARDirectionDebit, nil)
}

func (l *receivablesLedger) CreditTx(ctx context.Context, tx pgx.Tx, in AREntryInput) (*AREntry, error) {
	return l.apply(ctx, tx, in, ARDirectionCredit, func(balance, amount decimal.Decimal) error {
		if !balance.IsPositive() {
			return newLedgerError(ErrNoOutstandingBalance, "customer %d balance is %s", in.CustomerID, balance.StringFixed(2))
		}
		if amount.GreaterThan(balance) {
			return newLedgerError(ErrOverpayment, "customer %d owes %s, payment is %s",
				in.CustomerID, balance.StringFixed(2), amount.StringFixed(2))
		}
		return nil
	})
}

func (l *receivablesLedger) ReverseDebitTx(ctx context.Context, tx pgx.Tx, in AREntryInput) (*AREntry, error) {
	if in.Cause == "" {
		in.Cause = ARCauseSaleCancel
	}
	return l.apply(ctx, tx, in, ARDirectionCredit, nil)
}

// apply locks the customer row, checks the optional rule against the current
// balance, appends the entry and writes the new balance.
func (l *receivablesLedger) apply(ctx context.Context, tx pgx.Tx, in AREntryInput, direction string,
	check func(balance, amount decimal.Decimal) error) (*AREntry, error) {

	amount := in.Amount
	if !amount.IsPositive() {
		return nil, validationError("receivable amount must be positive, got %s", in.Amount)
	}
	if !fitsScale(amount, MoneyScale) {
		return nil, validationError("receivable amount %s has more than %d decimals", amount, MoneyScale)
	}

	var before decimal.Decimal
	err := tx.QueryRow(ctx,
		"SELECT balance FROM customers WHERE id = $1 AND tenant_id = $2 FOR UPDATE",
		in.CustomerID, in.TenantID,
	).Scan(&before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("customer %d", in.CustomerID)
		}
		return nil, fmt.Errorf("failed to lock customer %d: %w", in.CustomerID, err)
	}

	if check != nil {
		if err := check(before, amount); err != nil {
			return nil, err
		}
	}

	after := before.Add(amount)
	if direction == ARDirectionCredit {
		after = before.Sub(amount)
	}

	var userID *int
	if in.UserID != 0 {
		userID = &in.UserID
	}
	e := &AREntry{}
	err = scanAREntry(tx.QueryRow(ctx, `
		INSERT INTO ar_entries (tenant_id, customer_id, direction, amount, balance_before, balance_after,
		                        cause, sale_id, reference, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+arEntryColumns,
		in.TenantID, in.CustomerID, direction, amount, before, after, in.Cause, in.SaleID, in.Reference, userID,
	), e)
	if err != nil {
		return nil, fmt.Errorf("failed to insert receivable entry: %w", err)
	}

	if _, err := tx.Exec(ctx, "UPDATE customers SET balance = $1 WHERE id = $2", after, in.CustomerID); err != nil {
		return nil, fmt.Errorf("failed to update customer balance: %w", err)
	}
	return e, nil
}
