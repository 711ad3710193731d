/*
Package pricing turns weight, material rate, platform fee rates and a target
profit margin into list prices, fee breakdowns and margin figures.

PURPOSE:
  Purely functional over its inputs - no persisted state, no I/O. The fee
  model (platform percentage rates and fixed charges) is the only
  configuration; everything else is arithmetic.

PRICING RULE:
  List prices always end in .99: floor(raw) + 0.99, applied unconditionally.
  Even a raw value of exactly 120.00 becomes 120.99, and a raw 120.99 stays
  120.99. This matches the shop's observed pricing behavior.

ROUNDING:
  Each fee in a breakdown is rounded to 2 decimal places independently,
  never derived by subtracting from a rounded total. Everything upstream of
  a breakdown carries full decimal precision.
*/
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrMarginUnachievable is returned when the requested margin meets or
	// exceeds what remains after percentage fees, which would yield a
	// non-positive or infinite price.
	ErrMarginUnachievable = errors.New("target margin not achievable with given fee rates")

	// ErrNonPositiveWeight is returned for quote inputs with weight <= 0.
	ErrNonPositiveWeight = errors.New("weight must be positive")
)

var (
	ninetyNine = decimal.RequireFromString("0.99")
	oneHundred = decimal.NewFromInt(100)
)

// ceilTo99 applies the unconditional ceiling-to-.99 rule.
func ceilTo99(price decimal.Decimal) decimal.Decimal {
	return price.Floor().Add(ninetyNine)
}

// =============================================================================
// LIST PRICE
// =============================================================================

// ListPrice derives a list price from item weight and the per-unit sell rate:
// floor(weight x rate) + 0.99.
func ListPrice(weight, sellRatePerUnit decimal.Decimal) decimal.Decimal {
	return ceilTo99(weight.Mul(sellRatePerUnit))
}

// =============================================================================
// FEE MODEL - platform percentage rates and fixed charges
// =============================================================================

// FeeModel holds the platform's fee structure. Rates are fractions (0.065
// means 6.5%), fixed charges are currency amounts.
type FeeModel struct {
	TransactionRate decimal.Decimal
	PaymentRate     decimal.Decimal
	PaymentFixed    decimal.Decimal // fixed per-order payment processing charge
	AdRate          decimal.Decimal
}

// DefaultFeeModel returns the marketplace's published rates: 6.5% transaction,
// 4% + 0.20 payment processing, 15% offsite ads.
func DefaultFeeModel() FeeModel {
	return FeeModel{
		TransactionRate: decimal.RequireFromString("0.065"),
		PaymentRate:     decimal.RequireFromString("0.04"),
		PaymentFixed:    decimal.RequireFromString("0.20"),
		AdRate:          decimal.RequireFromString("0.15"),
	}
}

// RatesSum is the sum of all percentage-based fee rates.
func (m FeeModel) RatesSum() decimal.Decimal {
	return m.TransactionRate.Add(m.PaymentRate).Add(m.AdRate)
}

// =============================================================================
// REVERSE PRICING - margin to price
// =============================================================================

// ReversePriceForMargin solves
//
//	price x (1 - feeRatesSum) - fixedCosts = price x targetMarginPercent/100
//
// for price, then applies the ceiling-to-.99 rule. fixedCosts is material cost
// plus the fixed per-order fee plus postage.
func (m FeeModel) ReversePriceForMargin(fixedCosts, targetMarginPercent decimal.Decimal) (decimal.Decimal, error) {
	denom := decimal.NewFromInt(1).
		Sub(m.RatesSum()).
		Sub(targetMarginPercent.Div(oneHundred))

	if !denom.IsPositive() {
		return decimal.Zero, ErrMarginUnachievable
	}
	return ceilTo99(fixedCosts.Div(denom)), nil
}

// =============================================================================
// FEE BREAKDOWN
// =============================================================================

// Breakdown itemizes platform fees for a price. Each component is rounded to
// 2 decimal places on its own to avoid penny drift.
type Breakdown struct {
	TransactionFee decimal.Decimal
	PaymentFee     decimal.Decimal
	AdFee          decimal.Decimal
	TotalFees      decimal.Decimal
}

// FeeBreakdown computes each platform fee against the price.
func (m FeeModel) FeeBreakdown(price decimal.Decimal) Breakdown {
	b := Breakdown{
		TransactionFee: price.Mul(m.TransactionRate).Round(2),
		PaymentFee:     price.Mul(m.PaymentRate).Add(m.PaymentFixed).Round(2),
		AdFee:          price.Mul(m.AdRate).Round(2),
	}
	b.TotalFees = b.TransactionFee.Add(b.PaymentFee).Add(b.AdFee)
	return b
}

// =============================================================================
// PROFIT AND MARGIN
// =============================================================================

// Profitability is the profit and margin left after costs and fees.
type Profitability struct {
	Profit        decimal.Decimal
	MarginPercent decimal.Decimal
}

// ProfitAndMargin computes profit = price - materialCost - totalFees - postage
// and the margin as a percentage of price (zero for a non-positive price).
func ProfitAndMargin(price, materialCost, totalFees, postage decimal.Decimal) Profitability {
	profit := price.Sub(materialCost).Sub(totalFees).Sub(postage)
	p := Profitability{Profit: profit}
	if price.IsPositive() {
		p.MarginPercent = profit.Div(price).Mul(oneHundred)
	}
	return p
}

// =============================================================================
// QUOTE - composition of the above for a single catalog entry
// =============================================================================

// QuoteInputs are the ephemeral inputs for pricing one item. When
// MarginModifierPercent is set the price is solved for that margin instead of
// being derived from weight x rate.
type QuoteInputs struct {
	Weight                decimal.Decimal
	SellRatePerUnit       decimal.Decimal
	MaterialCostPerUnit   decimal.Decimal
	PostageCost           decimal.Decimal
	MarginModifierPercent *decimal.Decimal
}

// Quote is a full pricing result for one item.
type Quote struct {
	ListPrice     decimal.Decimal
	Fees          Breakdown
	Profit        decimal.Decimal
	MarginPercent decimal.Decimal
}

// Quote prices one item under this fee model.
func (m FeeModel) Quote(in QuoteInputs) (Quote, error) {
	if !in.Weight.IsPositive() {
		return Quote{}, ErrNonPositiveWeight
	}

	var price decimal.Decimal
	if in.MarginModifierPercent != nil {
		fixedCosts := in.MaterialCostPerUnit.Add(m.PaymentFixed).Add(in.PostageCost)
		solved, err := m.ReversePriceForMargin(fixedCosts, *in.MarginModifierPercent)
		if err != nil {
			return Quote{}, err
		}
		price = solved
	} else {
		price = ListPrice(in.Weight, in.SellRatePerUnit)
	}

	fees := m.FeeBreakdown(price)
	profit := ProfitAndMargin(price, in.MaterialCostPerUnit, fees.TotalFees, in.PostageCost)

	return Quote{
		ListPrice:     price,
		Fees:          fees,
		Profit:        profit.Profit,
		MarginPercent: profit.MarginPercent,
	}, nil
}
