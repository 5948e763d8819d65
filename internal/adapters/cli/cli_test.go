package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"retail-ledger/internal/app"
	"retail-ledger/internal/core"
)

type stubService struct {
	app.ApplicationService
	report *core.ReconciliationReport
	items  []core.ReconciliationItem
	status string
	levels []core.BranchStock
}

func (s *stubService) CheckReconciliation(_ context.Context, actor core.Actor) (*core.ReconciliationReport, error) {
	s.report.TenantID = actor.TenantID
	return s.report, nil
}

func (s *stubService) ListReconciliationItems(_ context.Context, _ core.Actor, status string) (*app.ReconciliationItemsResult, error) {
	s.status = status
	return &app.ReconciliationItemsResult{Items: s.items}, nil
}

func (s *stubService) ListStock(context.Context, core.Actor, int, bool) (*app.StockResult, error) {
	return &app.StockResult{Levels: s.levels}, nil
}

func TestRun_ReconcileConsistent(t *testing.T) {
	svc := &stubService{report: &core.ReconciliationReport{CheckedAt: time.Now(), PendingItems: 2}}
	var out bytes.Buffer

	err := Run(context.Background(), svc, &out, []string{"reconcile", "3"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "tenant 3")
	assert.Contains(t, out.String(), "Pending reconciliation items: 2")
}

func TestRun_ReconcileInconsistent(t *testing.T) {
	svc := &stubService{report: &core.ReconciliationReport{
		CheckedAt: time.Now(),
		Discrepancies: []core.Discrepancy{{
			Check: "product_total_stock", EntityID: 4,
			Stored: decimal.NewFromInt(10), Computed: decimal.NewFromInt(8),
		}},
	}}
	var out bytes.Buffer

	err := Run(context.Background(), svc, &out, []string{"reconcile", "1"})
	assert.ErrorIs(t, err, ErrInconsistent)
	assert.Contains(t, out.String(), "product_total_stock")
}

func TestRun_PendingDefaultsToPending(t *testing.T) {
	saleID := 9
	svc := &stubService{items: []core.ReconciliationItem{{
		ID: 1, Kind: core.ReconciliationKindCashSaleUnregistered, SaleID: &saleID,
		BranchID: 2, Amount: decimal.NewFromInt(500), Status: core.ReconciliationStatusPending,
	}}}
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), svc, &out, []string{"pending", "1"}))
	assert.Equal(t, core.ReconciliationStatusPending, svc.status)
	assert.Contains(t, out.String(), "500.00")
}

func TestRun_StockFiltersProduct(t *testing.T) {
	svc := &stubService{levels: []core.BranchStock{
		{ProductID: 1, ProductCode: "P-1", BranchCode: "CENTRO", Quantity: decimal.NewFromInt(5)},
		{ProductID: 2, ProductCode: "P-2", BranchCode: "CENTRO", Quantity: decimal.NewFromInt(7)},
	}}
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), svc, &out, []string{"stock", "1", "1"}))
	assert.Contains(t, out.String(), "P-1")
	assert.NotContains(t, out.String(), "P-2")
}

func TestRun_ArgumentErrors(t *testing.T) {
	svc := &stubService{}
	ctx := context.Background()
	var out bytes.Buffer

	assert.Error(t, Run(ctx, svc, &out, nil))
	assert.Error(t, Run(ctx, svc, &out, []string{"nope"}))
	assert.Error(t, Run(ctx, svc, &out, []string{"reconcile"}))
	assert.Error(t, Run(ctx, svc, &out, []string{"reconcile", "abc"}))
	assert.Error(t, Run(ctx, svc, &out, []string{"export-movements", "1", "2"}))
	assert.Error(t, Run(ctx, svc, &out, []string{"export-movements", "1", "2", "out.xlsx", "01/02/2026"}))
}

func TestWriteMovementsXLSX(t *testing.T) {
	saleID := 12
	movements := []core.StockMovement{
		{
			ID: 1, ProductID: 3, BranchID: 2, Direction: core.StockDirectionOut, Cause: core.StockCauseSale,
			Quantity: decimal.NewFromInt(2), QtyBefore: decimal.NewFromInt(10), QtyAfter: decimal.NewFromInt(8),
			SaleID: &saleID, CreatedAt: time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			ID: 2, ProductID: 3, BranchID: 2, Direction: core.StockDirectionAdjust, Cause: core.StockCauseAdjustment,
			Quantity: decimal.NewFromInt(1), QtyBefore: decimal.NewFromInt(8), QtyAfter: decimal.NewFromInt(7),
			Reason: "breakage", CreatedAt: time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeMovementsXLSX(&buf, movements))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(movementsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, movementHeadings, rows[0])
	assert.Equal(t, "2026-05-01 10:30:00", rows[1][1])
	assert.Equal(t, "salida", rows[1][4])
	assert.Equal(t, "sale 12", rows[1][9])
	assert.Equal(t, "breakage", rows[2][10])
}
