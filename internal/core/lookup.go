package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Master data is maintained outside the ledger. These helpers only read it, and
// every lookup is scoped to the tenant so a foreign id resolves to ErrNotFound.

type productRef struct {
	ID        int
	Code      string
	Name      string
	UnitPrice decimal.Decimal
	IsActive  bool
}

func loadTenant(ctx context.Context, q pgxQuerier, tenantID int) (*Tenant, error) {
	t := &Tenant{}
	err := q.QueryRow(ctx,
		"SELECT id, code, name, base_currency FROM tenants WHERE id = $1", tenantID,
	).Scan(&t.ID, &t.Code, &t.Name, &t.BaseCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("tenant %d", tenantID)
		}
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}
	return t, nil
}

func requireBranch(ctx context.Context, q pgxQuerier, tenantID, branchID int) error {
	if branchID <= 0 {
		return newLedgerError(ErrNoBranchAssigned, "branch_id is required")
	}
	var active bool
	err := q.QueryRow(ctx,
		"SELECT is_active FROM branches WHERE id = $1 AND tenant_id = $2", branchID, tenantID,
	).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("branch %d", branchID)
		}
		return fmt.Errorf("failed to resolve branch: %w", err)
	}
	if !active {
		return validationError("branch %d is inactive", branchID)
	}
	return nil
}

func requireSupplier(ctx context.Context, q pgxQuerier, tenantID, supplierID int) error {
	var id int
	err := q.QueryRow(ctx,
		"SELECT id FROM suppliers WHERE id = $1 AND tenant_id = $2", supplierID, tenantID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("supplier %d", supplierID)
		}
		return fmt.Errorf("failed to resolve supplier: %w", err)
	}
	return nil
}

func requireCustomer(ctx context.Context, q pgxQuerier, tenantID, customerID int) error {
	var id int
	err := q.QueryRow(ctx,
		"SELECT id FROM customers WHERE id = $1 AND tenant_id = $2", customerID, tenantID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("customer %d", customerID)
		}
		return fmt.Errorf("failed to resolve customer: %w", err)
	}
	return nil
}

func loadProduct(ctx context.Context, q pgxQuerier, tenantID, productID int) (*productRef, error) {
	p := &productRef{}
	err := q.QueryRow(ctx, `
		SELECT id, code, name, unit_price, is_active
		FROM products
		WHERE id = $1 AND tenant_id = $2
	`, productID, tenantID).Scan(&p.ID, &p.Code, &p.Name, &p.UnitPrice, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("product %d", productID)
		}
		return nil, fmt.Errorf("failed to resolve product %d: %w", productID, err)
	}
	return p, nil
}

// loadProducts resolves every id in productIDs or fails on the first unknown one.
func loadProducts(ctx context.Context, q pgxQuerier, tenantID int, productIDs []int) (map[int]*productRef, error) {
	rows, err := q.Query(ctx, `
		SELECT id, code, name, unit_price, is_active
		FROM products
		WHERE tenant_id = $1 AND id = ANY($2)
	`, tenantID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make(map[int]*productRef, len(productIDs))
	for rows.Next() {
		p := &productRef{}
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.UnitPrice, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	for _, id := range productIDs {
		if _, ok := products[id]; !ok {
			return nil, notFound("product %d", id)
		}
	}
	return products, nil
}
