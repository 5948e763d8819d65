package core_test

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/core"
	"retail-ledger/internal/db"
)

// Seeded identifiers shared by the integration tests.
const (
	tenantID      = 1
	otherTenantID = 2

	branchCentro = 1
	branchNorte  = 2
	branchOther  = 3 // belongs to otherTenantID

	cashierID = 1
	managerID = 2

	customerID      = 1
	otherCustomerID = 2

	supplierID = 1

	productYerba    = 1 // 10 units in Centro, 5 in Norte, price 100
	productAzucar   = 2 // 3 units in Centro, price 50
	productInactive = 3
)

// setupTestDB applies migrations and reseeds a dedicated test database.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping a live one.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(pool.Close)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	require.NoError(t, db.Migrate(ctx, pool, "../../migrations", quiet))

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE reconciliation_items, sale_payments, ar_entries, cash_movements, cash_registers,
			sale_lines, purchase_lines, stock_movements, sales, purchases, quote_lines, quotes,
			stock_transfers, branch_stock, document_sequences, exchange_rates, products, suppliers,
			customers, users, branches, tenants
		RESTART IDENTITY CASCADE;

		INSERT INTO tenants (code, name, base_currency) VALUES
			('DEMO', 'Demo Retail', 'ARS'),
			('OTHER', 'Other Retail', 'ARS');

		INSERT INTO branches (tenant_id, code, name, is_active) VALUES
			(1, 'CENTRO', 'Casa Central', true),
			(1, 'NORTE', 'Sucursal Norte', true),
			(2, 'CENTRO', 'Other Central', true),
			(1, 'CERRADA', 'Closed Branch', false);

		INSERT INTO users (tenant_id, username, role, is_active) VALUES
			(1, 'cajero', 'cashier', true),
			(1, 'encargado', 'manager', true),
			(1, 'baja', 'cashier', false);

		INSERT INTO customers (tenant_id, code, name, credit_limit) VALUES
			(1, 'C-001', 'Almacen Don Pepe', 100000),
			(1, 'C-002', 'Kiosco Luna', 0),
			(2, 'C-001', 'Other Customer', 0);

		INSERT INTO suppliers (tenant_id, code, name) VALUES
			(1, 'S-001', 'Distribuidora Sur');

		INSERT INTO products (tenant_id, code, name, unit_price, cost_price, total_stock, is_active) VALUES
			(1, 'YERBA-1KG', 'Yerba 1kg', 100, 60, 15, true),
			(1, 'AZUCAR-1KG', 'Azucar 1kg', 50, 30, 3, true),
			(1, 'DISCONT', 'Discontinued', 10, 5, 0, false);

		INSERT INTO branch_stock (tenant_id, product_id, branch_id, quantity, opening_quantity, min_quantity) VALUES
			(1, 1, 1, 10, 10, 2),
			(1, 1, 2, 5, 5, 8),
			(1, 2, 1, 3, 3, 0);

		INSERT INTO exchange_rates (tenant_id, currency, rate, effective_at) VALUES
			(1, 'USD', 900, NOW() - INTERVAL '2 days'),
			(1, 'USD', 1000, NOW() - INTERVAL '1 hour');
	`)
	require.NoError(t, err, "failed to seed test database")
	return pool
}

type services struct {
	docs           core.DocumentService
	stock          core.StockLedger
	cash           core.CashRegisterService
	ar             core.ReceivablesLedger
	quotes         core.QuoteService
	sales          core.SaleService
	purchases      core.PurchaseService
	reconciliation core.ReconciliationService
	users          core.UserService
}

func newServices(pool *pgxpool.Pool) *services {
	docs := core.NewDocumentService()
	stock := core.NewStockLedger(pool, core.DefaultTxAttempts)
	cash := core.NewCashRegisterService(pool, core.DefaultTxAttempts)
	ar := core.NewReceivablesLedger(pool, cash, core.DefaultTxAttempts)
	quotes := core.NewQuoteService(pool, core.DefaultTxAttempts)
	return &services{
		docs:           docs,
		stock:          stock,
		cash:           cash,
		ar:             ar,
		quotes:         quotes,
		sales:          core.NewSaleService(pool, docs, stock, cash, ar, quotes, 10),
		purchases:      core.NewPurchaseService(pool, docs, stock, 10),
		reconciliation: core.NewReconciliationService(pool, core.DefaultTxAttempts),
		users:          core.NewUserService(pool),
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func saleInput(branchID int, lines []core.LineInput, payments ...core.SalePaymentInput) core.CreateSaleInput {
	return core.CreateSaleInput{
		TenantID:   tenantID,
		UserID:     cashierID,
		BranchID:   branchID,
		CustomerID: customerID,
		Lines:      lines,
		Payments:   payments,
	}
}

func lineOf(productID int, qty string) core.LineInput {
	return core.LineInput{ProductID: productID, Quantity: d(qty)}
}

func pay(method, amount string) core.SalePaymentInput {
	return core.SalePaymentInput{Method: method, Amount: d(amount)}
}

func stockQty(t *testing.T, s *services, productID, branchID int) decimal.Decimal {
	t.Helper()
	bs, err := s.stock.GetBranchStock(context.Background(), tenantID, productID, branchID)
	require.NoError(t, err)
	return bs.Quantity
}

func totalStock(t *testing.T, pool *pgxpool.Pool, productID int) decimal.Decimal {
	t.Helper()
	var v decimal.Decimal
	require.NoError(t, pool.QueryRow(context.Background(),
		"SELECT total_stock FROM products WHERE id = $1", productID).Scan(&v))
	return v
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

// requireConsistent asserts every derived total still matches its ledger.
func requireConsistent(t *testing.T, s *services) {
	t.Helper()
	report, err := s.reconciliation.Check(context.Background(), tenantID)
	require.NoError(t, err)
	require.Empty(t, report.Discrepancies, "ledger discrepancies: %+v", report.Discrepancies)
}
