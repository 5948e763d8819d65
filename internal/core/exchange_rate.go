package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// resolveExchangeRate returns the currency code to store on a document and the
// rate to snapshot with it. The tenant's base currency always has rate 1; any
// other currency takes the latest rate already in effect.
func resolveExchangeRate(ctx context.Context, q pgxQuerier, tenant *Tenant, currency string) (string, decimal.Decimal, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == tenant.BaseCurrency {
		return tenant.BaseCurrency, decimal.NewFromInt(1), nil
	}
	if len(currency) != 3 {
		return "", decimal.Zero, validationError("currency %q must be a 3-letter code", currency)
	}

	var rate decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT rate FROM exchange_rates
		WHERE tenant_id = $1 AND currency = $2 AND effective_at <= NOW()
		ORDER BY effective_at DESC, id DESC
		LIMIT 1
	`, tenant.ID, currency).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", decimal.Zero, notFound("exchange rate for %s", currency)
		}
		return "", decimal.Zero, fmt.Errorf("failed to resolve exchange rate for %s: %w", currency, err)
	}
	return currency, rate, nil
}
