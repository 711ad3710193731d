package statement_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/engine/store"
	"github.com/warp/pricing-engine/statement"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestNormalizer() (*statement.Normalizer, *store.MemoryOrders) {
	orders := store.NewMemoryOrders()
	return statement.NewNormalizer(orders), orders
}

func feeRow(overrides map[string]string) engine.RawRow {
	row := engine.RawRow{
		"Date":         "15 Jan, 2026",
		"Type":         "Fee",
		"Title":        "Transaction fee (6.5% of £100)",
		"Info":         "",
		"Amount":       "-£6.50",
		"Fees & Taxes": "-£6.50",
		"Net":          "-£6.50",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestNormalize_TransactionFeeRow(t *testing.T) {
	// GIVEN: A typical exported transaction fee row
	// WHEN: Normalizing it
	// THEN: It becomes a transaction_fee charge of 6.50 on 2026-01-15,
	//       amount positive with direction on IsCredit

	n, _ := newTestNormalizer()

	rec, skip, err := n.Normalize(context.Background(), feeRow(nil))
	require.NoError(t, err)
	require.Empty(t, skip)
	require.NotNil(t, rec)

	assert.Equal(t, engine.FeeTransaction, rec.Type)
	assert.True(t, dec("6.50").Equal(rec.Amount), "got %s", rec.Amount)
	assert.False(t, rec.IsCredit)
	assert.Equal(t, "Transaction fee (6.5% of £100)", rec.Description)
	assert.Equal(t, time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), rec.ChargedDate)
	assert.NotEmpty(t, rec.Hash)
	assert.Empty(t, rec.OrderID, "no order reference in title or info")
}

func TestNormalize_CreditDirection(t *testing.T) {
	n, _ := newTestNormalizer()

	rec, skip, err := n.Normalize(context.Background(), feeRow(map[string]string{
		"Type":   "Credit",
		"Title":  "Credit for listing fee",
		"Amount": "£0.17",
	}))
	require.NoError(t, err)
	require.Empty(t, skip)
	require.NotNil(t, rec)

	assert.Equal(t, engine.FeeListing, rec.Type, "credit maps back to the referenced type")
	assert.True(t, rec.IsCredit)
	assert.True(t, dec("0.17").Equal(rec.Amount), "amount is positive either way")
}

func TestNormalize_AmountFallsBackToFeesAndTaxes(t *testing.T) {
	n, _ := newTestNormalizer()

	rec, skip, err := n.Normalize(context.Background(), feeRow(map[string]string{
		"Amount":       "--",
		"Fees & Taxes": "-£0.35",
	}))
	require.NoError(t, err)
	require.Empty(t, skip)
	require.NotNil(t, rec)
	assert.True(t, dec("0.35").Equal(rec.Amount), "got %s", rec.Amount)
}

func TestNormalize_OrderAttributionFromInfo(t *testing.T) {
	n, orders := newTestNormalizer()
	orders.Put(store.MemoryOrder{ID: "ord-9", ExternalNumber: "4421"})

	rec, skip, err := n.Normalize(context.Background(), feeRow(map[string]string{
		"Info": "Order #4421",
	}))
	require.NoError(t, err)
	require.Empty(t, skip)
	require.NotNil(t, rec)
	assert.Equal(t, "ord-9", rec.OrderID)
}

// =============================================================================
// SKIP CONDITIONS
// =============================================================================

func TestNormalize_SkipConditions(t *testing.T) {
	n, _ := newTestNormalizer()
	ctx := context.Background()

	cases := []struct {
		name string
		row  engine.RawRow
		want string
	}{
		{"sale row", feeRow(map[string]string{"Type": "Sale"}), statement.SkipInformational},
		{"deposit row", feeRow(map[string]string{"Type": "Deposit"}), statement.SkipInformational},
		{"empty title", feeRow(map[string]string{"Title": ""}), statement.SkipEmptyFields},
		{"empty type", feeRow(map[string]string{"Type": "  "}), statement.SkipEmptyFields},
		{"no amount at all", feeRow(map[string]string{"Amount": "--", "Fees & Taxes": "--"}), statement.SkipNoAmount},
		{"zero amount", feeRow(map[string]string{"Amount": "£0.00"}), statement.SkipZeroAmount},
		{"bad date", feeRow(map[string]string{"Date": "sometime in January"}), statement.SkipBadDate},
		{"unclassifiable", feeRow(map[string]string{"Type": "Mystery", "Title": "Unknown thing"}), statement.SkipUnclassified},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, skip, err := n.Normalize(ctx, tc.row)
			require.NoError(t, err, "skips are counted, never errors")
			assert.Nil(t, rec)
			assert.Equal(t, tc.want, skip)
		})
	}
}

// =============================================================================
// REFUND FLOW
// =============================================================================

func TestNormalize_RefundFlipsOrderAndZerosCost(t *testing.T) {
	// GIVEN: A refund row referencing a known order with a locked-in cost
	// WHEN: Normalizing it
	// THEN: A refund record attributed to the order comes out, the order
	//       is marked refunded and its locked-in cost is zeroed

	n, orders := newTestNormalizer()
	orders.Put(store.MemoryOrder{
		ID:             "ord-1",
		ExternalNumber: "123",
		LockedInCost:   dec("5.40"),
	})

	rec, skip, err := n.Normalize(context.Background(), feeRow(map[string]string{
		"Type":   "Refund",
		"Title":  "Refund for Order #123",
		"Amount": "-£25.00",
	}))
	require.NoError(t, err)
	require.Empty(t, skip)
	require.NotNil(t, rec)

	assert.Equal(t, engine.FeeRefund, rec.Type)
	assert.Equal(t, "ord-1", rec.OrderID)
	assert.True(t, dec("25.00").Equal(rec.Amount))

	after := orders.Get("ord-1")
	require.NotNil(t, after)
	assert.True(t, after.Refunded)
	assert.True(t, after.LockedInCost.IsZero())
}

func TestNormalize_RefundForUnknownOrderSkipped(t *testing.T) {
	n, _ := newTestNormalizer()

	rec, skip, err := n.Normalize(context.Background(), feeRow(map[string]string{
		"Type":   "Refund",
		"Title":  "Refund for Order #999",
		"Amount": "-£25.00",
	}))
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, statement.SkipUnknownOrder, skip)
}

// =============================================================================
// DEDUP HASH
// =============================================================================

func TestHash_InfoDiscriminatesWhenPresent(t *testing.T) {
	date := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	base := statement.Hash(date, "Fee", "Listing fee", "-£0.17", "-£0.17", "")
	withInfoA := statement.Hash(date, "Fee", "Listing fee", "-£0.17", "-£0.17", "Silver ring")
	withInfoB := statement.Hash(date, "Fee", "Listing fee", "-£0.17", "-£0.17", "Gold pendant")

	assert.NotEqual(t, base, withInfoA, "info participates when non-empty")
	assert.NotEqual(t, withInfoA, withInfoB, "distinct info must not collide")

	// Identical shop-level rows with no info are MEANT to collide.
	again := statement.Hash(date, "Fee", "Listing fee", "-£0.17", "-£0.17", "")
	assert.Equal(t, base, again)
}

func TestNormalize_IdenticalRowsShareHash(t *testing.T) {
	n, _ := newTestNormalizer()
	ctx := context.Background()

	rec1, _, err := n.Normalize(ctx, feeRow(nil))
	require.NoError(t, err)
	rec2, _, err := n.Normalize(ctx, feeRow(nil))
	require.NoError(t, err)

	assert.Equal(t, rec1.Hash, rec2.Hash)
}

// =============================================================================
// AMOUNT PARSING
// =============================================================================

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"-£6.50", "-6.50", true},
		{"£1,234.56", "1234.56", true},
		{"$0.20", "0.20", true},
		{"6.50", "6.50", true},
		{"--", "", false},
		{"", "", false},
		{"n/a", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := statement.ParseAmount(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, dec(tc.want).Equal(got), "got %s", got)
			}
		})
	}
}
