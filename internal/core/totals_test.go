package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(productID int, qty, price, discount string) pricedLine {
	return pricedLine{ProductID: productID, Quantity: dec(qty), UnitPrice: dec(price), Discount: dec(discount)}
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		lines    []pricedLine
		discount Discount
		subtotal string
		discAmt  string
		total    string
		wantErr  bool
	}{
		{
			name:     "single line no discount",
			lines:    []pricedLine{line(1, "2", "100", "0")},
			subtotal: "200", discAmt: "0", total: "200",
		},
		{
			name:     "line discount",
			lines:    []pricedLine{line(1, "3", "10", "5"), line(2, "1", "50", "0")},
			subtotal: "75", discAmt: "0", total: "75",
		},
		{
			name:     "percent discount rounds to cents",
			lines:    []pricedLine{line(1, "1", "99.99", "0")},
			discount: Discount{Percent: dec("10")},
			subtotal: "99.99", discAmt: "10", total: "89.99",
		},
		{
			name:     "amount discount",
			lines:    []pricedLine{line(1, "1", "100", "0")},
			discount: Discount{Amount: dec("15.50")},
			subtotal: "100", discAmt: "15.5", total: "84.5",
		},
		{
			name:     "fractional quantity",
			lines:    []pricedLine{line(1, "0.333", "10", "0")},
			subtotal: "3.33", discAmt: "0", total: "3.33",
		},
		{name: "no lines", wantErr: true},
		{name: "zero quantity", lines: []pricedLine{line(1, "0", "10", "0")}, wantErr: true},
		{name: "negative price", lines: []pricedLine{line(1, "1", "-1", "0")}, wantErr: true},
		{name: "line discount above amount", lines: []pricedLine{line(1, "1", "10", "11")}, wantErr: true},
		{name: "missing product", lines: []pricedLine{line(0, "1", "10", "0")}, wantErr: true},
		{
			name: "both discounts", lines: []pricedLine{line(1, "1", "10", "0")},
			discount: Discount{Percent: dec("5"), Amount: dec("1")}, wantErr: true,
		},
		{
			name: "percent above 100", lines: []pricedLine{line(1, "1", "10", "0")},
			discount: Discount{Percent: dec("101")}, wantErr: true,
		},
		{
			name: "amount above subtotal", lines: []pricedLine{line(1, "1", "10", "0")},
			discount: Discount{Amount: dec("10.01")}, wantErr: true,
		},
		{name: "quantity below stored scale", lines: []pricedLine{line(1, "0.0004", "10", "0")}, wantErr: true},
		{name: "quantity with four decimals", lines: []pricedLine{line(1, "0.0015", "10", "0")}, wantErr: true},
		{name: "price with sub-cent part", lines: []pricedLine{line(1, "1", "10.005", "0")}, wantErr: true},
		{name: "line discount with sub-cent part", lines: []pricedLine{line(1, "1", "10", "0.001")}, wantErr: true},
		{
			name: "document discount with sub-cent part", lines: []pricedLine{line(1, "1", "10", "0")},
			discount: Discount{Amount: dec("0.005")}, wantErr: true,
		},
		{
			name: "percent with three decimals", lines: []pricedLine{line(1, "1", "10", "0")},
			discount: Discount{Percent: dec("10.125")}, wantErr: true,
		},
		{
			name:     "values at stored scale",
			lines:    []pricedLine{line(1, "1.125", "10.01", "0.01")},
			subtotal: "11.25", discAmt: "0", total: "11.25",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := computeTotals(tt.lines, tt.discount)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation), "want ErrValidation, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Subtotal.Equal(dec(tt.subtotal)), "subtotal: got %s", got.Subtotal)
			assert.True(t, got.DiscountAmount.Equal(dec(tt.discAmt)), "discount: got %s", got.DiscountAmount)
			assert.True(t, got.Total.Equal(dec(tt.total)), "total: got %s", got.Total)
		})
	}
}

func TestComputeTotals_LineSubtotals(t *testing.T) {
	got, err := computeTotals([]pricedLine{line(1, "2", "10", "1"), line(2, "1", "5", "0")}, Discount{})
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.True(t, got.Lines[0].Subtotal.Equal(dec("19")))
	assert.True(t, got.Lines[1].Subtotal.Equal(dec("5")))
}

func TestCheckPayments(t *testing.T) {
	total := dec("1000")
	pay := func(method, amount string) SalePaymentInput {
		return SalePaymentInput{Method: method, Amount: dec(amount)}
	}

	tag, err := checkPayments([]SalePaymentInput{pay(PaymentMethodCash, "1000")}, total)
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCash, tag)

	tag, err = checkPayments([]SalePaymentInput{pay(PaymentMethodCash, "400"), pay(PaymentMethodAccount, "600")}, total)
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodMixed, tag)

	tag, err = checkPayments([]SalePaymentInput{pay(PaymentMethodCard, "500"), pay(PaymentMethodCard, "500")}, total)
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCard, tag, "same method twice is not mixed")

	_, err = checkPayments([]SalePaymentInput{pay(PaymentMethodCash, "999.99")}, total)
	assert.NoError(t, err, "within tolerance")

	_, err = checkPayments([]SalePaymentInput{pay(PaymentMethodCash, "999.98")}, total)
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	_, err = checkPayments([]SalePaymentInput{pay(PaymentMethodCash, "1500")}, total)
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	_, err = checkPayments(nil, total)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = checkPayments([]SalePaymentInput{pay("cheque", "1000")}, total)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = checkPayments([]SalePaymentInput{pay(PaymentMethodCash, "1000"), pay(PaymentMethodCard, "0")}, total)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheckPayments_RejectsSubCentAmounts(t *testing.T) {
	// Ten payments of 0.1049 sum to 1.049, within tolerance of 1.05, but would be
	// stored as 0.10 each.
	payments := make([]SalePaymentInput, 10)
	for i := range payments {
		payments[i] = SalePaymentInput{Method: PaymentMethodCard, Amount: dec("0.1049")}
	}
	_, err := checkPayments(payments, dec("1.05"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = checkPayments([]SalePaymentInput{{Method: PaymentMethodCash, Amount: dec("1.005")}}, dec("1"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = checkPayments([]SalePaymentInput{{Method: PaymentMethodCash, Amount: dec("1.05")}}, dec("1.05"))
	assert.NoError(t, err)
}

func TestFitsScale(t *testing.T) {
	assert.True(t, fitsScale(dec("10"), MoneyScale))
	assert.True(t, fitsScale(dec("10.50"), MoneyScale))
	assert.False(t, fitsScale(dec("10.505"), MoneyScale))
	assert.True(t, fitsScale(dec("0.125"), QuantityScale))
	assert.False(t, fitsScale(dec("0.0004"), QuantityScale))
}

func TestStockDemand_AggregatesRepeatedProducts(t *testing.T) {
	demand := stockDemand([]pricedLine{line(2, "3", "1", "0"), line(1, "1", "1", "0"), line(2, "4", "1", "0")})
	assert.True(t, demand[2].Equal(dec("7")))
	assert.True(t, demand[1].Equal(dec("1")))
}

func TestPriceLines(t *testing.T) {
	override := dec("80")
	products := map[int]*productRef{
		1: {ID: 1, Code: "P-1", UnitPrice: dec("100"), IsActive: true},
		2: {ID: 2, Code: "P-2", UnitPrice: dec("50"), IsActive: false},
	}

	priced, err := priceLines([]LineInput{
		{ProductID: 1, Quantity: dec("1")},
		{ProductID: 1, Quantity: dec("1"), UnitPrice: &override},
	}, products)
	require.NoError(t, err)
	assert.True(t, priced[0].UnitPrice.Equal(dec("100")), "list price by default")
	assert.True(t, priced[1].UnitPrice.Equal(dec("80")))

	_, err = priceLines([]LineInput{{ProductID: 2, Quantity: dec("1")}}, products)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = priceLines([]LineInput{{ProductID: 3, Quantity: dec("1")}}, products)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestedProductIDs(t *testing.T) {
	ids, err := requestedProductIDs([]LineInput{{ProductID: 5}, {ProductID: 2}, {ProductID: 5}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, ids)

	_, err = requestedProductIDs([]LineInput{{ProductID: 0}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = requestedProductIDs(nil)
	assert.ErrorIs(t, err, ErrValidation)
}
