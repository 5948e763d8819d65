package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/core"
)

func openQuote(t *testing.T, s *services, lines ...core.LineInput) *core.Quote {
	t.Helper()
	q, err := s.quotes.CreateQuote(context.Background(), core.CreateQuoteInput{
		TenantID: tenantID, UserID: cashierID, BranchID: branchCentro, CustomerID: customerID, Lines: lines,
	})
	require.NoError(t, err)
	return q
}

func TestQuoteService_ConvertToSale(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	q := openQuote(t, s, lineOf(productYerba, "2"), lineOf(productAzucar, "1"))
	assert.Equal(t, core.QuoteStatusOpen, q.Status)
	assert.True(t, q.Total.Equal(d("250")))
	assert.True(t, stockQty(t, s, productYerba, branchCentro).Equal(d("10")), "quotes never touch stock")

	in := saleInput(branchCentro, []core.LineInput{lineOf(productYerba, "2"), lineOf(productAzucar, "1")},
		pay(core.PaymentMethodCard, "250"))
	in.QuoteID = &q.ID
	res, err := s.sales.CreateSale(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, res.Sale.QuoteID)
	assert.Equal(t, q.ID, *res.Sale.QuoteID)

	got, err := s.quotes.GetQuote(ctx, tenantID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, core.QuoteStatusConverted, got.Status)
	assert.NotNil(t, got.ConvertedAt)
	assert.Len(t, got.Lines, 2)

	// A second conversion rolls back the whole sale.
	_, err = s.sales.CreateSale(ctx, in)
	assert.ErrorIs(t, err, core.ErrQuoteNotOpen)
	assert.Equal(t, 1, countRows(t, pool, "SELECT COUNT(*) FROM sales"))
	assert.True(t, stockQty(t, s, productYerba, branchCentro).Equal(d("8")))

	_, err = s.quotes.VoidQuote(ctx, tenantID, q.ID)
	assert.ErrorIs(t, err, core.ErrQuoteNotOpen)
}

func TestQuoteService_CustomerMismatch(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)

	q := openQuote(t, s, lineOf(productYerba, "1"))
	in := saleInput(branchCentro, []core.LineInput{lineOf(productYerba, "1")}, pay(core.PaymentMethodCard, "100"))
	in.CustomerID = otherCustomerID
	in.QuoteID = &q.ID

	_, err := s.sales.CreateSale(context.Background(), in)
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err := s.quotes.GetQuote(context.Background(), tenantID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, core.QuoteStatusOpen, got.Status)
	assert.Equal(t, 0, countRows(t, pool, "SELECT COUNT(*) FROM sales"))
}

func TestQuoteService_EditAndVoid(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	q := openQuote(t, s, lineOf(productYerba, "1"))

	price := d("80")
	edited, err := s.quotes.ReplaceQuoteLines(ctx, tenantID, q.ID, []core.LineInput{
		{ProductID: productYerba, Quantity: d("3"), UnitPrice: &price},
		lineOf(productAzucar, "2"),
	})
	require.NoError(t, err)
	assert.True(t, edited.Total.Equal(d("340")))
	require.Len(t, edited.Lines, 2)

	_, err = s.quotes.ReplaceQuoteLines(ctx, tenantID, q.ID, []core.LineInput{lineOf(productInactive, "1")})
	assert.ErrorIs(t, err, core.ErrValidation)

	voided, err := s.quotes.VoidQuote(ctx, tenantID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, core.QuoteStatusVoid, voided.Status)

	_, err = s.quotes.ReplaceQuoteLines(ctx, tenantID, q.ID, []core.LineInput{lineOf(productYerba, "1")})
	assert.ErrorIs(t, err, core.ErrQuoteNotOpen)

	_, err = s.quotes.GetQuote(ctx, otherTenantID, q.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
