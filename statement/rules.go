/*
rules.go - Ordered fee classification rule table

PURPOSE:
  Maps a raw (type, title) pair onto a canonical FeeType. Classification is
  an ordered list of (predicate, category) pairs evaluated in sequence, so
  each rule is testable on its own and rule precedence is explicit.

CREDITS:
  A credit is mapped back to the fee type its title references - a credit
  titled "Credit for listing fee" lands on listing_fee with IsCredit kept
  true by the normalizer. Credits that reference nothing recognizable become
  etsy_misc_credit (unlinked compensation).

CHARGES:
  Unrecognized rows of type "fee" fall through to other_fee. Rows that
  cannot be classified at all are skipped by the normalizer.
*/
package statement

import (
	"strings"

	"github.com/warp/pricing-engine/engine"
)

type rule struct {
	matches func(typ, title string) bool
	feeType engine.FeeType
}

func typeIs(want string) func(string, string) bool {
	return func(typ, _ string) bool { return typ == want }
}

func typeAndTitle(wantType, titleSubstr string) func(string, string) bool {
	return func(typ, title string) bool {
		return typ == wantType && strings.Contains(title, titleSubstr)
	}
}

func titleHas(substr string) func(string, string) bool {
	return func(_, title string) bool { return strings.Contains(title, substr) }
}

// chargeRules classify non-credit rows, in precedence order.
var chargeRules = []rule{
	{typeAndTitle("fee", "listing"), engine.FeeListing},
	{typeAndTitle("fee", "transaction"), engine.FeeTransaction},
	{typeAndTitle("fee", "processing"), engine.FeeProcessing},
	{typeAndTitle("fee", "regulatory"), engine.FeeRegulatory},
	{typeAndTitle("fee", "refund"), engine.FeeRefundCharge},
	{typeIs("tax"), engine.FeeVATOnFees},
	{titleHas("vat"), engine.FeeVATOnFees},
	{typeAndTitle("marketing", "etsy ads"), engine.FeeEtsyAds},
	{typeAndTitle("marketing", "offsite ads"), engine.FeeOffsiteAds},
	{typeIs("marketing"), engine.FeeMarketingOther},
	{typeIs("shipping"), engine.FeePostageLabels},
	{titleHas("postage"), engine.FeePostageLabels},
	{titleHas("shipping label"), engine.FeePostageLabels},
	{typeAndTitle("payment", "dispute"), engine.FeePaymentDispute},
	{typeIs("payment"), engine.FeePaymentOther},
}

// creditRules map a credit back to the fee type its title references.
var creditRules = []rule{
	{titleHas("listing"), engine.FeeListing},
	{titleHas("transaction"), engine.FeeTransaction},
	{titleHas("processing"), engine.FeeProcessing},
	{titleHas("regulatory"), engine.FeeRegulatory},
	{titleHas("vat"), engine.FeeVATOnFees},
	{titleHas("etsy ads"), engine.FeeEtsyAds},
	{titleHas("offsite"), engine.FeeOffsiteAds},
	{titleHas("postage"), engine.FeePostageLabels},
	{titleHas("label"), engine.FeePostageLabels},
	{titleHas("dispute"), engine.FeePaymentDispute},
}

// MapFeeType classifies a row. typ and title must already be lowercased.
// The second return is false when the row cannot be classified at all.
func MapFeeType(typ, title string, isCredit bool) (engine.FeeType, bool) {
	if isCredit {
		for _, r := range creditRules {
			if r.matches(typ, title) {
				return r.feeType, true
			}
		}
		// A credit referencing nothing recognizable is unlinked compensation.
		return engine.FeeMiscCredit, true
	}

	for _, r := range chargeRules {
		if r.matches(typ, title) {
			return r.feeType, true
		}
	}
	if typ == "fee" {
		return engine.FeeOther, true
	}
	return "", false
}
