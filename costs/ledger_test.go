package costs_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pricing-engine/costs"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T) *costs.Ledger {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return costs.NewLedger(store)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// SINGLE-CURRENT INVARIANT TESTS
// =============================================================================

func TestLedger_SetCost_SupersedesCurrent(t *testing.T) {
	// GIVEN: A subject with a current cost of 0.80
	// WHEN: A new cost of 0.85 is recorded
	// THEN: 0.85 is the only current record; 0.80 stays in history

	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("silver-925")

	_, err := ledger.SetCost(ctx, subject, d("0.80"), "initial", day(2026, time.January, 1))
	require.NoError(t, err)
	_, err = ledger.SetCost(ctx, subject, d("0.85"), "supplier increase", day(2026, time.January, 15))
	require.NoError(t, err)

	current, err := ledger.Current(ctx, subject)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.True(t, d("0.85").Equal(current.CostPerUnit))

	history, err := ledger.History(ctx, subject)
	require.NoError(t, err)
	require.Len(t, history, 2, "superseded record must remain in history")

	currentCount := 0
	for _, rec := range history {
		if rec.IsCurrent {
			currentCount++
		}
	}
	assert.Equal(t, 1, currentCount, "exactly one current record per subject")
}

func TestLedger_SetCost_BackdatedCorrectionBecomesCurrent(t *testing.T) {
	// GIVEN: A cost effective Jan 15 is current
	// WHEN: A correction effective Jan 10 is recorded afterwards
	// THEN: The correction is current - insertion order wins, not date order

	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("gold-18k")

	_, err := ledger.SetCost(ctx, subject, d("45.00"), "", day(2026, time.January, 15))
	require.NoError(t, err)
	_, err = ledger.SetCost(ctx, subject, d("44.20"), "backdated correction", day(2026, time.January, 10))
	require.NoError(t, err)

	current, err := ledger.Current(ctx, subject)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.True(t, d("44.20").Equal(current.CostPerUnit))
	assert.Equal(t, day(2026, time.January, 10), current.EffectiveDate)
}

func TestLedger_Current_UnknownSubject(t *testing.T) {
	ledger := newTestLedger(t)

	rec, err := ledger.Current(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Nil(t, rec, "unknown subject is nil, not an error")
}

// =============================================================================
// AS-OF LOOKUP TESTS
// =============================================================================

func TestLedger_AsOf_Boundaries(t *testing.T) {
	// GIVEN: 0.80 effective Jan 1 and 0.85 effective Jan 15
	// WHEN: Looking up costs around the Jan 15 boundary
	// THEN: Jan 14 resolves to 0.80, Jan 15 (inclusive) to 0.85,
	//       and a date before all history to nil

	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("silver-925")

	_, err := ledger.SetCost(ctx, subject, d("0.80"), "", day(2026, time.January, 1))
	require.NoError(t, err)
	_, err = ledger.SetCost(ctx, subject, d("0.85"), "", day(2026, time.January, 15))
	require.NoError(t, err)

	before, err := ledger.AsOf(ctx, subject, day(2026, time.January, 14))
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.True(t, d("0.80").Equal(before.CostPerUnit))

	onBoundary, err := ledger.AsOf(ctx, subject, day(2026, time.January, 15))
	require.NoError(t, err)
	require.NotNil(t, onBoundary)
	assert.True(t, d("0.85").Equal(onBoundary.CostPerUnit))

	tooEarly, err := ledger.AsOf(ctx, subject, day(2025, time.December, 31))
	require.NoError(t, err)
	assert.Nil(t, tooEarly, "no record on or before the date")
}

func TestLedger_AsOf_FutureDatedCostNotAppliedEarly(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("silver-925")

	_, err := ledger.SetCost(ctx, subject, d("1.10"), "announced increase", day(2026, time.March, 1))
	require.NoError(t, err)

	rec, err := ledger.AsOf(ctx, subject, day(2026, time.February, 1))
	require.NoError(t, err)
	assert.Nil(t, rec, "future-dated record must not apply before its effective date")
}

// =============================================================================
// AVERAGE COST TESTS
// =============================================================================

func TestLedger_AverageCost(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("silver-925")

	_, err := ledger.SetCost(ctx, subject, d("0.80"), "", day(2026, time.January, 1))
	require.NoError(t, err)
	_, err = ledger.SetCost(ctx, subject, d("0.90"), "", day(2026, time.February, 1))
	require.NoError(t, err)
	_, err = ledger.SetCost(ctx, subject, d("1.00"), "", day(2026, time.June, 1))
	require.NoError(t, err)

	// Only the first two fall in Q1.
	avg, err := ledger.AverageCost(ctx, subject, day(2026, time.January, 1), day(2026, time.March, 31))
	require.NoError(t, err)
	assert.True(t, d("0.85").Equal(avg), "expected 0.85, got %s", avg)
}

func TestLedger_AverageCost_EmptyRangeIsZero(t *testing.T) {
	ledger := newTestLedger(t)

	avg, err := ledger.AverageCost(context.Background(), "silver-925",
		day(2026, time.January, 1), day(2026, time.March, 31))
	require.NoError(t, err)
	assert.True(t, avg.IsZero())
}

func TestLedger_AverageCost_InvertedRangeRejected(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.AverageCost(context.Background(), "silver-925",
		day(2026, time.March, 1), day(2026, time.January, 1))
	assert.ErrorIs(t, err, engine.ErrInvalidRange)
}

// =============================================================================
// CHANGE OVER WINDOW TESTS
// =============================================================================

func TestLedger_ChangeOverWindow_Up(t *testing.T) {
	// GIVEN: 0.80 effective 60 days ago, 1.00 effective today
	// WHEN: Comparing over a 30-day window
	// THEN: Trend is up with a 25% change

	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("silver-925")

	now := time.Now()
	_, err := ledger.SetCost(ctx, subject, d("0.80"), "", now.AddDate(0, 0, -60))
	require.NoError(t, err)
	_, err = ledger.SetCost(ctx, subject, d("1.00"), "", now)
	require.NoError(t, err)

	change, err := ledger.ChangeOverWindow(ctx, subject, 30)
	require.NoError(t, err)

	assert.False(t, change.InsufficientHistory)
	assert.Equal(t, costs.TrendUp, change.Trend)
	assert.True(t, d("0.80").Equal(change.OldCost))
	assert.True(t, d("1.00").Equal(change.CurrentCost))
	assert.True(t, d("25").Equal(change.ChangePercent), "expected 25%%, got %s", change.ChangePercent)
}

func TestLedger_ChangeOverWindow_StableOnExactEquality(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("silver-925")

	now := time.Now()
	_, err := ledger.SetCost(ctx, subject, d("0.80"), "", now.AddDate(0, 0, -60))
	require.NoError(t, err)
	_, err = ledger.SetCost(ctx, subject, d("0.80"), "re-quoted at same rate", now)
	require.NoError(t, err)

	change, err := ledger.ChangeOverWindow(ctx, subject, 30)
	require.NoError(t, err)
	assert.Equal(t, costs.TrendStable, change.Trend)
	assert.True(t, change.ChangePercent.IsZero())
}

func TestLedger_ChangeOverWindow_InsufficientHistory(t *testing.T) {
	// GIVEN: A subject whose only record is newer than the window start
	// WHEN: Comparing over a 30-day window
	// THEN: InsufficientHistory is reported instead of an error

	ledger := newTestLedger(t)
	ctx := context.Background()
	subject := engine.SubjectID("silver-925")

	_, err := ledger.SetCost(ctx, subject, d("0.80"), "", time.Now().AddDate(0, 0, -5))
	require.NoError(t, err)

	change, err := ledger.ChangeOverWindow(ctx, subject, 30)
	require.NoError(t, err)
	assert.True(t, change.InsufficientHistory)
	assert.Equal(t, costs.TrendStable, change.Trend)
}
