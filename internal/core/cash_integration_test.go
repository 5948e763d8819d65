package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/core"
)

func TestCashRegister_Lifecycle(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	reg, err := s.cash.Open(ctx, tenantID, cashierID, branchCentro, d("1000"))
	require.NoError(t, err)
	assert.Equal(t, core.RegisterStatusOpen, reg.Status)

	_, err = s.cash.Open(ctx, tenantID, cashierID, branchCentro, d("0"))
	assert.ErrorIs(t, err, core.ErrRegisterAlreadyOpen)

	// Another branch is a separate session.
	norte, err := s.cash.Open(ctx, tenantID, cashierID, branchNorte, d("0"))
	require.NoError(t, err)
	assert.NotEqual(t, reg.ID, norte.ID)

	_, err = s.sales.CreateSale(ctx, saleInput(branchCentro,
		[]core.LineInput{lineOf(productYerba, "5")}, pay(core.PaymentMethodCash, "500")))
	require.NoError(t, err)

	_, err = s.cash.RecordMovement(ctx, core.CashMovementInput{
		TenantID: tenantID, RegisterID: reg.ID, UserID: cashierID,
		Direction: core.CashDirectionExpense, Category: "gastos", Amount: d("120"), Description: "cleaning",
	})
	require.NoError(t, err)

	open, err := s.cash.GetOpen(ctx, tenantID, cashierID, branchCentro)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, open.ID)
	assert.True(t, open.Expected().Equal(d("1380")))

	closed, err := s.cash.Close(ctx, tenantID, reg.ID, d("1380"))
	require.NoError(t, err)
	assert.Equal(t, core.RegisterStatusClosed, closed.Status)
	require.NotNil(t, closed.ExpectedAmount)
	require.NotNil(t, closed.Difference)
	assert.True(t, closed.ExpectedAmount.Equal(d("1380")))
	assert.True(t, closed.Difference.IsZero())

	_, err = s.cash.Close(ctx, tenantID, reg.ID, d("1380"))
	assert.ErrorIs(t, err, core.ErrAlreadyClosed)

	_, err = s.cash.RecordMovement(ctx, core.CashMovementInput{
		TenantID: tenantID, RegisterID: reg.ID, UserID: cashierID,
		Direction: core.CashDirectionIncome, Category: "ajuste", Amount: d("1"),
	})
	assert.ErrorIs(t, err, core.ErrRegisterClosed)

	_, err = s.cash.GetOpen(ctx, tenantID, cashierID, branchCentro)
	assert.ErrorIs(t, err, core.ErrNotFound)

	movements, err := s.cash.ListMovements(ctx, tenantID, reg.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, core.CashCategorySale, movements[0].Category)

	// A new session may open once the previous one is closed.
	_, err = s.cash.Open(ctx, tenantID, cashierID, branchCentro, d("0"))
	require.NoError(t, err)

	requireConsistent(t, s)
}

func TestCashRegister_CloseWithDifference(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	reg, err := s.cash.Open(ctx, tenantID, cashierID, branchCentro, d("200"))
	require.NoError(t, err)

	closed, err := s.cash.Close(ctx, tenantID, reg.ID, d("150.5"))
	require.NoError(t, err)
	assert.True(t, closed.Difference.Equal(d("-49.5")))
}

func TestCashRegister_Validation(t *testing.T) {
	pool := setupTestDB(t)
	s := newServices(pool)
	ctx := context.Background()

	_, err := s.cash.Open(ctx, tenantID, cashierID, branchCentro, d("-1"))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.cash.Open(ctx, tenantID, cashierID, 0, d("0"))
	assert.ErrorIs(t, err, core.ErrNoBranchAssigned)

	_, err = s.cash.Open(ctx, tenantID, cashierID, branchOther, d("0"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	reg, err := s.cash.Open(ctx, tenantID, cashierID, branchCentro, d("0"))
	require.NoError(t, err)

	_, err = s.cash.RecordMovement(ctx, core.CashMovementInput{
		TenantID: tenantID, RegisterID: reg.ID, Direction: "sideways", Category: "x", Amount: d("1"),
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.cash.RecordMovement(ctx, core.CashMovementInput{
		TenantID: tenantID, RegisterID: reg.ID, Direction: core.CashDirectionIncome, Category: "x", Amount: d("0"),
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.cash.Get(ctx, otherTenantID, reg.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
