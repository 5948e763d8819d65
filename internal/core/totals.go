package core

import (
	"github.com/shopspring/decimal"
)

// PaymentTolerance is the largest accepted gap between Σ payments and a sale total.
var PaymentTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// Stored scales: money columns keep 2 decimals, quantity columns 3. Inputs with
// more digits are rejected rather than rounded on insert.
const (
	MoneyScale    int32 = 2
	QuantityScale int32 = 3
)

// fitsScale reports whether d has at most places decimal digits.
func fitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// LineInput is one requested document line. A nil UnitPrice on a sale line means
// the product's list price.
type LineInput struct {
	ProductID int              `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Discount  decimal.Decimal  `json:"discount"`
}

type SalePaymentInput struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type pricedLine struct {
	ProductID int
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Subtotal  decimal.Decimal
}

type documentTotals struct {
	Lines           []pricedLine
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
}

// computeTotals prices every line and applies the document discount:
// subtotal = Σ(qty×price − line discount), total = subtotal − discount.
func computeTotals(lines []pricedLine, discount Discount) (*documentTotals, error) {
	if len(lines) == 0 {
		return nil, validationError("at least one line is required")
	}

	t := &documentTotals{Lines: make([]pricedLine, len(lines))}
	for i, l := range lines {
		n := i + 1
		if l.ProductID <= 0 {
			return nil, validationError("line %d: product_id is required", n)
		}
		if !l.Quantity.IsPositive() {
			return nil, validationError("line %d: quantity must be positive, got %s", n, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return nil, validationError("line %d: unit price cannot be negative, got %s", n, l.UnitPrice)
		}
		if l.Discount.IsNegative() {
			return nil, validationError("line %d: discount cannot be negative, got %s", n, l.Discount)
		}
		if !fitsScale(l.Quantity, QuantityScale) {
			return nil, validationError("line %d: quantity %s has more than %d decimals", n, l.Quantity, QuantityScale)
		}
		if !fitsScale(l.UnitPrice, MoneyScale) {
			return nil, validationError("line %d: unit price %s has more than %d decimals", n, l.UnitPrice, MoneyScale)
		}
		if !fitsScale(l.Discount, MoneyScale) {
			return nil, validationError("line %d: discount %s has more than %d decimals", n, l.Discount, MoneyScale)
		}
		gross := l.Quantity.Mul(l.UnitPrice)
		if l.Discount.GreaterThan(gross) {
			return nil, validationError("line %d: discount %s exceeds line amount %s", n, l.Discount, gross.StringFixed(2))
		}
		l.Subtotal = gross.Sub(l.Discount).Round(2)
		t.Lines[i] = l
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
	}

	switch {
	case discount.Percent.IsPositive() && discount.Amount.IsPositive():
		return nil, validationError("discount must be a percentage or an amount, not both")
	case discount.Percent.IsNegative() || discount.Percent.GreaterThan(hundred):
		return nil, validationError("discount percent must be between 0 and 100, got %s", discount.Percent)
	case discount.Amount.IsNegative():
		return nil, validationError("discount amount cannot be negative, got %s", discount.Amount)
	case !fitsScale(discount.Percent, MoneyScale) || !fitsScale(discount.Amount, MoneyScale):
		return nil, validationError("discount has more than %d decimals", MoneyScale)
	case discount.Percent.IsPositive():
		t.DiscountPercent = discount.Percent
		t.DiscountAmount = t.Subtotal.Mul(discount.Percent).Div(hundred).Round(2)
	default:
		t.DiscountAmount = discount.Amount.Round(2)
	}
	if t.DiscountAmount.GreaterThan(t.Subtotal) {
		return nil, validationError("discount %s exceeds subtotal %s", t.DiscountAmount, t.Subtotal.StringFixed(2))
	}

	t.Total = t.Subtotal.Sub(t.DiscountAmount)
	return t, nil
}

// checkPayments validates the payment list against total and returns the sale's
// payment-method tag.
func checkPayments(payments []SalePaymentInput, total decimal.Decimal) (string, error) {
	if len(payments) == 0 {
		return "", validationError("at least one payment is required")
	}

	sum := decimal.Zero
	methods := make(map[string]bool)
	for i, p := range payments {
		if !IsValidPaymentMethod(p.Method) {
			return "", validationError("payment %d: unknown method %q", i+1, p.Method)
		}
		if !p.Amount.IsPositive() {
			return "", validationError("payment %d: amount must be positive, got %s", i+1, p.Amount)
		}
		if !fitsScale(p.Amount, MoneyScale) {
			return "", validationError("payment %d: amount %s has more than %d decimals", i+1, p.Amount, MoneyScale)
		}
		sum = sum.Add(p.Amount)
		methods[p.Method] = true
	}

	if sum.Sub(total).Abs().GreaterThan(PaymentTolerance) {
		return "", newLedgerError(ErrPaymentMismatch, "payments sum %s, total %s", sum.StringFixed(2), total.StringFixed(2))
	}

	if len(methods) > 1 {
		return PaymentMethodMixed, nil
	}
	return payments[0].Method, nil
}

// stockDemand sums requested quantity per product so repeated lines are checked together.
func stockDemand(lines []pricedLine) map[int]decimal.Decimal {
	demand := make(map[int]decimal.Decimal, len(lines))
	for _, l := range lines {
		demand[l.ProductID] = demand[l.ProductID].Add(l.Quantity)
	}
	return demand
}

func lineProductIDs(lines []pricedLine) []int {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return uniqueSorted(ids)
}

// priceLines resolves list prices for lines without an explicit price. Inactive
// products cannot be sold or quoted.
func priceLines(lines []LineInput, products map[int]*productRef) ([]pricedLine, error) {
	priced := make([]pricedLine, len(lines))
	for i, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, notFound("line %d: product %d", i+1, l.ProductID)
		}
		if !p.IsActive {
			return nil, validationError("line %d: product %s is inactive", i+1, p.Code)
		}
		price := p.UnitPrice
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		}
		priced[i] = pricedLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Discount:  l.Discount,
		}
	}
	return priced, nil
}

// requestedProductIDs validates product ids before any query runs.
func requestedProductIDs(lines []LineInput) ([]int, error) {
	if len(lines) == 0 {
		return nil, validationError("at least one line is required")
	}
	ids := make([]int, 0, len(lines))
	for i, l := range lines {
		if l.ProductID <= 0 {
			return nil, validationError("line %d: product_id is required", i+1)
		}
		ids = append(ids, l.ProductID)
	}
	return uniqueSorted(ids), nil
}
