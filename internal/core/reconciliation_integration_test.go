package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/core"
)

func TestReconciliation_ConsistentAfterActivity(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	reg, err := s.cash.Open(ctx, tenantID, cashierID, branchCentro, d("100"))
	require.NoError(t, err)
	sale, err := s.sales.CreateSale(ctx, saleInput(branchCentro,
		[]core.LineInput{lineOf(productYerba, "3")},
		pay(core.PaymentMethodCash, "100"), pay(core.PaymentMethodAccount, "200")))
	require.NoError(t, err)
	_, err = s.ar.RecordPayment(ctx, core.PaymentInput{
		TenantID: tenantID, CustomerID: customerID, UserID: cashierID, Amount: d("50"), RegisterID: &reg.ID,
	})
	require.NoError(t, err)
	_, err = s.stock.Transfer(ctx, core.TransferStockInput{
		TenantID: tenantID, UserID: managerID, ProductID: productYerba,
		FromBranchID: branchCentro, ToBranchID: branchNorte, Quantity: d("2"),
	})
	require.NoError(t, err)
	_, err = s.sales.CancelSale(ctx, tenantID, managerID, sale.Sale.ID, "")
	require.NoError(t, err)

	report, err := s.reconciliation.Check(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%+v", report.Discrepancies)
	assert.Zero(t, report.PendingItems)
}

func TestReconciliation_DetectsTamperedTotals(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, "UPDATE products SET total_stock = 99 WHERE id = $1", productYerba)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "UPDATE customers SET balance = 10 WHERE id = $1", customerID)
	require.NoError(t, err)

	report, err := s.reconciliation.Check(ctx, tenantID)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	require.Len(t, report.Discrepancies, 2)

	byCheck := make(map[string]core.Discrepancy)
	for _, disc := range report.Discrepancies {
		byCheck[disc.Check] = disc
	}
	stock := byCheck[core.CheckProductTotalStock]
	assert.Equal(t, productYerba, stock.EntityID)
	assert.True(t, stock.Stored.Equal(d("99")))
	assert.True(t, stock.Computed.Equal(d("15")))

	balance := byCheck[core.CheckCustomerBalance]
	assert.Equal(t, customerID, balance.EntityID)
	assert.True(t, balance.Computed.IsZero())

	// Other tenants are checked independently.
	other, err := s.reconciliation.Check(ctx, otherTenantID)
	require.NoError(t, err)
	assert.True(t, other.Consistent())

	_, err = s.reconciliation.Check(ctx, 42)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReconciliation_ResolveItem(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	res, err := s.sales.CreateSale(ctx, saleInput(branchCentro,
		[]core.LineInput{lineOf(productYerba, "1")}, pay(core.PaymentMethodCash, "100")))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	itemID := res.Warnings[0].ReconciliationItem

	report, err := s.reconciliation.Check(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.PendingItems)

	item, err := s.reconciliation.Resolve(ctx, tenantID, itemID, managerID, "cash counted into register 7")
	require.NoError(t, err)
	assert.Equal(t, core.ReconciliationStatusResolved, item.Status)
	assert.Equal(t, "cash counted into register 7", item.Note)
	require.NotNil(t, item.ResolvedBy)
	assert.Equal(t, managerID, *item.ResolvedBy)

	_, err = s.reconciliation.Resolve(ctx, tenantID, itemID, managerID, "")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.reconciliation.Resolve(ctx, otherTenantID, itemID, managerID, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	resolved, err := s.reconciliation.ListItems(ctx, tenantID, core.ReconciliationStatusResolved)
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	_, err = s.reconciliation.ListItems(ctx, tenantID, "bogus")
	assert.ErrorIs(t, err, core.ErrValidation)
}
