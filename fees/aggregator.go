/*
aggregator.go - Category aggregation of fee/credit records

PURPOSE:
  Groups a date range of fee ledger entries into named accounting buckets
  with separate charged and credited sums, netting credits against charges,
  then reallocates mislabeled VAT credits into the VAT bucket.

CREDIT RULE:
  A record counts toward charged UNLESS any of:
  - it is an etsy_misc_credit (unlinked compensation),
  - it is vat_on_fees with a positive amount (the marketplace reports VAT
    refunds this way),
  - IsCredit is set,
  - its description contains "credit" (textual fallback for rows the
    normalizer classified from type alone).

VAT REALLOCATION:
  Descriptions prefixed exactly "VAT:" whose fee type is NOT vat_on_fees are
  VAT credits the primary classification bucketed under the wrong subtype.
  Each such amount is added to the VAT credited bucket and subtracted,
  floored at zero, from the side of the bucket it was originally counted
  under. The pass runs strictly after the primary pass and touches each
  record at most once, so nothing is double-counted and no bucket goes
  negative.
*/
package fees

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// CATEGORY TOTALS
// =============================================================================

// Bucket accumulates charged and credited sums for one category.
// Both sums are always non-negative; Net may be negative (net credit).
type Bucket struct {
	Charged  decimal.Decimal
	Credited decimal.Decimal
}

func (b Bucket) Net() decimal.Decimal {
	return b.Charged.Sub(b.Credited)
}

// CategoryTotals is the per-category breakdown for a date range.
type CategoryTotals struct {
	// Fee subcategories.
	Listing     Bucket
	Transaction Bucket
	Processing  Bucket
	Regulatory  Bucket
	VATOnFees   Bucket

	// Marketing subcategories.
	EtsyAds    Bucket
	OffsiteAds Bucket

	// Delivery.
	Postage Bucket

	// Unlinked compensation credits; always reduce the net fee position.
	MiscCredit decimal.Decimal
}

// feeSubcategories are the buckets that make up the net fee position.
func (t *CategoryTotals) feeSubcategories() []*Bucket {
	return []*Bucket{&t.Listing, &t.Transaction, &t.Processing, &t.Regulatory, &t.VATOnFees}
}

// NetFees is the net fee exposure: the fee subcategory nets, minus the
// misc-credit bucket.
func (t *CategoryTotals) NetFees() decimal.Decimal {
	net := decimal.Zero
	for _, b := range t.feeSubcategories() {
		net = net.Add(b.Net())
	}
	return net.Sub(t.MiscCredit)
}

// NetMarketing is charged minus credited across the marketing buckets.
func (t *CategoryTotals) NetMarketing() decimal.Decimal {
	return t.EtsyAds.Net().Add(t.OffsiteAds.Net())
}

// NetDelivery is charged minus credited for postage labels.
func (t *CategoryTotals) NetDelivery() decimal.Decimal {
	return t.Postage.Net()
}

// bucketFor maps a fee type to its bucket. Types outside the reported
// categories (refunds, disputes, other_fee) return nil and are not
// aggregated here.
func (t *CategoryTotals) bucketFor(feeType engine.FeeType) *Bucket {
	switch feeType {
	case engine.FeeListing:
		return &t.Listing
	case engine.FeeTransaction:
		return &t.Transaction
	case engine.FeeProcessing:
		return &t.Processing
	case engine.FeeRegulatory:
		return &t.Regulatory
	case engine.FeeVATOnFees:
		return &t.VATOnFees
	case engine.FeeEtsyAds:
		return &t.EtsyAds
	case engine.FeeOffsiteAds:
		return &t.OffsiteAds
	case engine.FeePostageLabels:
		return &t.Postage
	default:
		return nil
	}
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregator computes category totals and net revenue over the fee ledger.
type Aggregator struct {
	Fees  *Ledger
	Sales engine.SalesReader
}

func NewAggregator(fees *Ledger, sales engine.SalesReader) *Aggregator {
	return &Aggregator{Fees: fees, Sales: sales}
}

// placement remembers where the primary pass counted a record, so the VAT
// reallocation pass can take it back out of the same side.
type placement struct {
	rec      engine.FeeRecord
	bucket   *Bucket
	credited bool
}

// Categories aggregates the range [from, to] into category totals.
func (a *Aggregator) Categories(ctx context.Context, from, to time.Time) (CategoryTotals, error) {
	recs, err := a.Fees.InRange(ctx, from, to)
	if err != nil {
		return CategoryTotals{}, err
	}

	var totals CategoryTotals
	var placements []placement

	// Primary pass.
	for _, rec := range recs {
		if rec.Type == engine.FeeMiscCredit {
			totals.MiscCredit = totals.MiscCredit.Add(rec.Amount)
			continue
		}
		bucket := totals.bucketFor(rec.Type)
		if bucket == nil {
			continue
		}

		credited := isCredited(rec)
		if credited {
			bucket.Credited = bucket.Credited.Add(rec.Amount)
		} else {
			bucket.Charged = bucket.Charged.Add(rec.Amount)
		}
		placements = append(placements, placement{rec: rec, bucket: bucket, credited: credited})
	}

	// VAT reallocation pass, strictly after the primary pass.
	for _, p := range placements {
		if p.rec.Type == engine.FeeVATOnFees {
			continue
		}
		if !strings.HasPrefix(p.rec.Description, "VAT:") {
			continue
		}

		totals.VATOnFees.Credited = totals.VATOnFees.Credited.Add(p.rec.Amount)
		if p.credited {
			p.bucket.Credited = floorZero(p.bucket.Credited.Sub(p.rec.Amount))
		} else {
			p.bucket.Charged = floorZero(p.bucket.Charged.Sub(p.rec.Amount))
		}
	}

	return totals, nil
}

// isCredited applies the credit rule documented at the top of this file.
func isCredited(rec engine.FeeRecord) bool {
	if rec.Type == engine.FeeMiscCredit {
		return true
	}
	if rec.Type == engine.FeeVATOnFees && rec.Amount.IsPositive() {
		return true
	}
	if rec.IsCredit {
		return true
	}
	return strings.Contains(strings.ToLower(rec.Description), "credit")
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// NET REVENUE
// =============================================================================

// NetRevenue is the sales-side figure that combines with fee exposure:
// gross sales in range, minus customer-paid tax, minus refunds processed in
// range (by the refund record's charged date, not the original sale date),
// plus the tax returned on those same refunds.
func (a *Aggregator) NetRevenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	totals, err := a.Sales.TotalsInRange(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	recs, err := a.Fees.InRange(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	net := totals.Gross.Sub(totals.Tax)
	for _, rec := range recs {
		if rec.Type != engine.FeeRefund {
			continue
		}
		net = net.Sub(rec.Amount)
		if rec.OrderID != "" {
			taxBack, err := a.Sales.TaxRefunded(ctx, rec.OrderID)
			if err != nil {
				return decimal.Zero, err
			}
			net = net.Add(taxBack)
		}
	}
	return net, nil
}
