package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pricing-engine/pricing"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// LIST PRICE TESTS
// =============================================================================

func TestListPrice_CeilingTo99(t *testing.T) {
	cases := []struct {
		name   string
		weight string
		rate   string
		want   string
	}{
		{"fractional raw", "10", "2.55", "25.99"},
		{"exact integer raw still rises", "40", "3.00", "120.99"},
		{"raw already at .99 stays", "1", "120.99", "120.99"},
		{"sub-unit raw", "0.5", "1.00", "0.99"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := pricing.ListPrice(d(tc.weight), d(tc.rate))
			assert.True(t, d(tc.want).Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

// =============================================================================
// REVERSE PRICING TESTS
// =============================================================================

func TestReversePriceForMargin_AchievesTarget(t *testing.T) {
	// GIVEN: Fixed costs of 10.00 and a 50% target margin
	// WHEN: Solving for the price under default rates
	// THEN: The price ends in .99 and the achieved margin is at or above
	//       target (the ceiling never reduces the margin)

	model := pricing.DefaultFeeModel()

	price, err := model.ReversePriceForMargin(d("10.00"), d("50"))
	require.NoError(t, err)
	assert.True(t, d("40.99").Equal(price), "got %s", price)

	// Verify the solved price actually delivers the margin.
	revenue := price.Mul(decimal.NewFromInt(1).Sub(model.RatesSum()))
	profit := revenue.Sub(d("10.00"))
	margin := profit.Div(price).Mul(decimal.NewFromInt(100))
	assert.True(t, margin.GreaterThanOrEqual(d("50")),
		"achieved margin %s must not undershoot target", margin)
}

func TestReversePriceForMargin_Unachievable(t *testing.T) {
	// Default percentage rates total 25.5%; an 80% margin leaves a
	// non-positive denominator.
	model := pricing.DefaultFeeModel()

	_, err := model.ReversePriceForMargin(d("10.00"), d("80"))
	assert.ErrorIs(t, err, pricing.ErrMarginUnachievable)

	// Exactly at the boundary (margin + rates = 100%) is also unachievable.
	_, err = model.ReversePriceForMargin(d("10.00"), d("74.5"))
	assert.ErrorIs(t, err, pricing.ErrMarginUnachievable)
}

// =============================================================================
// FEE BREAKDOWN TESTS
// =============================================================================

func TestFeeBreakdown_EachComponentRoundedIndependently(t *testing.T) {
	// 33.33 produces awkward thirds in every component:
	//   transaction 33.33 x 0.065 = 2.16645 -> 2.17
	//   payment     33.33 x 0.04 + 0.20 = 1.5332 -> 1.53
	//   ads         33.33 x 0.15 = 4.9995 -> 5.00
	model := pricing.DefaultFeeModel()

	b := model.FeeBreakdown(d("33.33"))

	assert.True(t, d("2.17").Equal(b.TransactionFee), "transaction: got %s", b.TransactionFee)
	assert.True(t, d("1.53").Equal(b.PaymentFee), "payment: got %s", b.PaymentFee)
	assert.True(t, d("5.00").Equal(b.AdFee), "ads: got %s", b.AdFee)
	assert.True(t, d("8.70").Equal(b.TotalFees), "total is the sum of rounded parts, got %s", b.TotalFees)
}

func TestFeeBreakdown_WorkedExample(t *testing.T) {
	// A 100.00 sale: 6.50 transaction, 4.20 payment (4% + 0.20), 15.00 ads.
	model := pricing.DefaultFeeModel()

	b := model.FeeBreakdown(d("100.00"))

	assert.True(t, d("6.50").Equal(b.TransactionFee))
	assert.True(t, d("4.20").Equal(b.PaymentFee))
	assert.True(t, d("15.00").Equal(b.AdFee))
	assert.True(t, d("25.70").Equal(b.TotalFees))
}

// =============================================================================
// PROFIT AND MARGIN TESTS
// =============================================================================

func TestProfitAndMargin(t *testing.T) {
	p := pricing.ProfitAndMargin(d("100.00"), d("20.00"), d("25.70"), d("4.30"))

	assert.True(t, d("50.00").Equal(p.Profit), "got %s", p.Profit)
	assert.True(t, d("50").Equal(p.MarginPercent), "got %s", p.MarginPercent)
}

func TestProfitAndMargin_NonPositivePrice(t *testing.T) {
	p := pricing.ProfitAndMargin(decimal.Zero, d("5.00"), decimal.Zero, decimal.Zero)

	assert.True(t, d("-5.00").Equal(p.Profit))
	assert.True(t, p.MarginPercent.IsZero(), "margin undefined at zero price reports zero")
}

// =============================================================================
// QUOTE TESTS
// =============================================================================

func TestQuote_FromWeightAndRate(t *testing.T) {
	model := pricing.DefaultFeeModel()

	quote, err := model.Quote(pricing.QuoteInputs{
		Weight:              d("40"),
		SellRatePerUnit:     d("3.00"),
		MaterialCostPerUnit: d("32.00"),
		PostageCost:         d("3.50"),
	})
	require.NoError(t, err)

	assert.True(t, d("120.99").Equal(quote.ListPrice), "got %s", quote.ListPrice)

	// Profit = price - material - fees - postage, against independently
	// rounded fee components.
	expectedProfit := quote.ListPrice.
		Sub(d("32.00")).
		Sub(quote.Fees.TotalFees).
		Sub(d("3.50"))
	assert.True(t, expectedProfit.Equal(quote.Profit))
}

func TestQuote_MarginModifierOverridesRate(t *testing.T) {
	// GIVEN: A margin modifier of 50%
	// WHEN: Quoting an item whose weight x rate would price differently
	// THEN: The price is solved from the margin, not from the rate

	model := pricing.DefaultFeeModel()
	margin := d("50")

	quote, err := model.Quote(pricing.QuoteInputs{
		Weight:                d("40"),
		SellRatePerUnit:       d("3.00"),
		MaterialCostPerUnit:   d("8.00"),
		PostageCost:           d("1.80"),
		MarginModifierPercent: &margin,
	})
	require.NoError(t, err)

	// fixed costs = 8.00 + 0.20 + 1.80 = 10.00; same solution as the
	// reverse-pricing test.
	assert.True(t, d("40.99").Equal(quote.ListPrice), "got %s", quote.ListPrice)
}

func TestQuote_NonPositiveWeightRejected(t *testing.T) {
	model := pricing.DefaultFeeModel()

	_, err := model.Quote(pricing.QuoteInputs{Weight: decimal.Zero, SellRatePerUnit: d("3.00")})
	assert.ErrorIs(t, err, pricing.ErrNonPositiveWeight)
}

// =============================================================================
// FEE MODEL CONFIG TESTS
// =============================================================================

func TestLoadFeeModel_DefaultsForMissingFields(t *testing.T) {
	model, err := pricing.LoadFeeModel([]byte(`{"transaction_percent": 5}`))
	require.NoError(t, err)

	assert.True(t, d("0.05").Equal(model.TransactionRate))
	assert.True(t, d("0.04").Equal(model.PaymentRate), "payment rate keeps default")
	assert.True(t, d("0.20").Equal(model.PaymentFixed))
	assert.True(t, d("0.15").Equal(model.AdRate))
}

func TestLoadFeeModel_InvalidJSON(t *testing.T) {
	_, err := pricing.LoadFeeModel([]byte(`{`))
	assert.Error(t, err)
}
