package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuoteService manages priced offers that can later be converted into a sale.
type QuoteService interface {
	CreateQuote(ctx context.Context, in CreateQuoteInput) (*Quote, error)
	// ReplaceQuoteLines swaps the full line set of an open quote and recomputes its total.
	ReplaceQuoteLines(ctx context.Context, tenantID, quoteID int, lines []LineInput) (*Quote, error)
	VoidQuote(ctx context.Context, tenantID, quoteID int) (*Quote, error)
	GetQuote(ctx context.Context, tenantID, quoteID int) (*Quote, error)

	// ConvertTx marks an open quote converted within the sale's transaction.
	// Any other status fails with ErrQuoteNotOpen.
	ConvertTx(ctx context.Context, tx pgx.Tx, tenantID, quoteID, customerID int) (*Quote, error)
}

type quoteService struct {
	pool     *pgxpool.Pool
	attempts int
}

func NewQuoteService(pool *pgxpool.Pool, attempts int) QuoteService {
	return &quoteService{pool: pool, attempts: attempts}
}

const quoteColumns = `
	id, tenant_id, branch_id, customer_id, user_id, status, total, notes, created_at, converted_at, voided_at
`

func scanQuote(row pgx.Row, q *Quote) error {
	return row.Scan(&q.ID, &q.TenantID, &q.BranchID, &q.CustomerID, &q.UserID, &q.Status, &q.Total,
		&q.Notes, &q.CreatedAt, &q.ConvertedAt, &q.VoidedAt)
}

func (s *quoteService) CreateQuote(ctx context.Context, in CreateQuoteInput) (*Quote, error) {
	productIDs, err := requestedProductIDs(in.Lines)
	if err != nil {
		return nil, err
	}

	var quote *Quote
	err = runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		if err := requireBranch(ctx, tx, in.TenantID, in.BranchID); err != nil {
			return err
		}
		if err := requireCustomer(ctx, tx, in.TenantID, in.CustomerID); err != nil {
			return err
		}
		totals, err := quoteTotals(ctx, tx, in.TenantID, in.Lines, productIDs)
		if err != nil {
			return err
		}

		var userID *int
		if in.UserID != 0 {
			userID = &in.UserID
		}
		q := &Quote{}
		err = scanQuote(tx.QueryRow(ctx, `
			INSERT INTO quotes (tenant_id, branch_id, customer_id, user_id, status, total, notes)
			VALUES ($1, $2, $3, $4, 'open', $5, $6)
			RETURNING `+quoteColumns,
			in.TenantID, in.BranchID, in.CustomerID, userID, totals.Total, in.Notes,
		), q)
		if err != nil {
			return fmt.Errorf("failed to insert quote: %w", err)
		}
		if q.Lines, err = insertQuoteLines(ctx, tx, q.ID, totals.Lines); err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *quoteService) ReplaceQuoteLines(ctx context.Context, tenantID, quoteID int, lines []LineInput) (*Quote, error) {
	productIDs, err := requestedProductIDs(lines)
	if err != nil {
		return nil, err
	}

	var quote *Quote
	err = runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		q, err := lockQuote(ctx, tx, tenantID, quoteID)
		if err != nil {
			return err
		}
		if q.Status != QuoteStatusOpen {
			return newLedgerError(ErrQuoteNotOpen, "quote %d is %s", quoteID, q.Status)
		}
		totals, err := quoteTotals(ctx, tx, tenantID, lines, productIDs)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "DELETE FROM quote_lines WHERE quote_id = $1", quoteID); err != nil {
			return fmt.Errorf("failed to clear quote lines: %w", err)
		}
		if q.Lines, err = insertQuoteLines(ctx, tx, quoteID, totals.Lines); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "UPDATE quotes SET total = $1 WHERE id = $2", totals.Total, quoteID); err != nil {
			return fmt.Errorf("failed to update quote total: %w", err)
		}
		q.Total = totals.Total
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *quoteService) VoidQuote(ctx context.Context, tenantID, quoteID int) (*Quote, error) {
	var quote *Quote
	err := runInTx(ctx, s.pool, s.attempts, func(tx pgx.Tx) error {
		q, err := lockQuote(ctx, tx, tenantID, quoteID)
		if err != nil {
			return err
		}
		if q.Status != QuoteStatusOpen {
			return newLedgerError(ErrQuoteNotOpen, "quote %d is %s", quoteID, q.Status)
		}
		err = scanQuote(tx.QueryRow(ctx,
			"UPDATE quotes SET status = 'void', voided_at = NOW() WHERE id = $1 RETURNING "+quoteColumns,
			quoteID,
		), q)
		if err != nil {
			return fmt.Errorf("failed to void quote %d: %w", quoteID, err)
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *quoteService) GetQuote(ctx context.Context, tenantID, quoteID int) (*Quote, error) {
	q := &Quote{}
	err := scanQuote(s.pool.QueryRow(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE id = $1 AND tenant_id = $2", quoteID, tenantID,
	), q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("quote %d", quoteID)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, quote_id, line_number, product_id, quantity, unit_price, discount, subtotal
		FROM quote_lines
		WHERE quote_id = $1
		ORDER BY line_number
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quote lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l QuoteLine
		if err := rows.Scan(&l.ID, &l.QuoteID, &l.LineNumber, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Discount, &l.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan quote line: %w", err)
		}
		q.Lines = append(q.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quote lines: %w", err)
	}
	return q, nil
}

func (s *quoteService) ConvertTx(ctx context.Context, tx pgx.Tx, tenantID, quoteID, customerID int) (*Quote, error) {
	q, err := lockQuote(ctx, tx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if q.Status != QuoteStatusOpen {
		return nil, newLedgerError(ErrQuoteNotOpen, "quote %d is %s", quoteID, q.Status)
	}
	if q.CustomerID != customerID {
		return nil, validationError("quote %d belongs to customer %d, not %d", quoteID, q.CustomerID, customerID)
	}
	err = scanQuote(tx.QueryRow(ctx,
		"UPDATE quotes SET status = 'converted', converted_at = NOW() WHERE id = $1 RETURNING "+quoteColumns,
		quoteID,
	), q)
	if err != nil {
		return nil, fmt.Errorf("failed to convert quote %d: %w", quoteID, err)
	}
	return q, nil
}

func lockQuote(ctx context.Context, tx pgx.Tx, tenantID, quoteID int) (*Quote, error) {
	q := &Quote{}
	err := scanQuote(tx.QueryRow(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE id = $1 AND tenant_id = $2 FOR UPDATE", quoteID, tenantID,
	), q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("quote %d", quoteID)
		}
		return nil, fmt.Errorf("failed to lock quote %d: %w", quoteID, err)
	}
	return q, nil
}

func quoteTotals(ctx context.Context, tx pgx.Tx, tenantID int, lines []LineInput, productIDs []int) (*documentTotals, error) {
	products, err := loadProducts(ctx, tx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}
	priced, err := priceLines(lines, products)
	if err != nil {
		return nil, err
	}
	return computeTotals(priced, Discount{})
}

func insertQuoteLines(ctx context.Context, tx pgx.Tx, quoteID int, lines []pricedLine) ([]QuoteLine, error) {
	out := make([]QuoteLine, 0, len(lines))
	for i, l := range lines {
		ql := QuoteLine{
			QuoteID: quoteID, LineNumber: i + 1, ProductID: l.ProductID,
			Quantity: l.Quantity, UnitPrice: l.UnitPrice, Discount: l.Discount, Subtotal: l.Subtotal,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO quote_lines (quote_id, line_number, product_id, quantity, unit_price, discount, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, quoteID, ql.LineNumber, ql.ProductID, ql.Quantity, ql.UnitPrice, ql.Discount, ql.Subtotal).Scan(&ql.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert quote line %d: %w", i+1, err)
		}
		out = append(out, ql)
	}
	return out, nil
}
