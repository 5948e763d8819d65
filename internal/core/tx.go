package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTxAttempts bounds how many times a unit of work is re-run after a
// transient conflict (serialization failure, deadlock, document-number collision).
const DefaultTxAttempts = 5

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Constraints whose violation means two callers raced for the same document number.
var numberingConstraints = map[string]bool{
	"sales_document_number_key":     true,
	"purchases_document_number_key": true,
	"document_sequences_pkey":       true,
}

// runInTx executes fn inside a read-committed transaction and commits it.
// fn must perform all of its reads through tx; it is re-run from scratch when the
// transaction fails with a retryable conflict, up to attempts times.
func runInTx(ctx context.Context, pool *pgxpool.Pool, attempts int, fn func(tx pgx.Tx) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = runOnce(ctx, pool, fn)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || ctx.Err() != nil {
			return lastErr
		}
	}

	if isNumberingConflict(lastErr) {
		return fmt.Errorf("%w: gave up after %d attempts: %v", ErrNumberingConflict, attempts, lastErr)
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", attempts, lastErr)
}

func runOnce(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return numberingConstraints[pgErr.ConstraintName]
	}
	return false
}

func isNumberingConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && numberingConstraints[pgErr.ConstraintName]
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
