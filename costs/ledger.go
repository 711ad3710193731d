/*
ledger.go - Append-only per-subject cost history

PURPOSE:
  The cost ledger answers "what did this subject cost as of date D" for any
  material code or SKU. It is the source of truth the pricing pipeline locks
  costs from at sale time.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Cost records are never updated or deleted. A new value
     supersedes the old one; both remain in history.
  2. SINGLE CURRENT: At most one record per subject has IsCurrent = true,
     and it is always the most recently INSERTED record for that subject.
     Insertion order wins, not EffectiveDate order - a backdated correction
     becomes the current record even though its effective date is older.
  3. ATOMIC SUPERSEDE: Demoting the old current record and inserting the
     new one happen in one atomic unit. Two racing SetCost calls for the
     same subject can never both leave a current record behind.

FAILURE SEMANTICS:
  Lookups on unknown subjects return nil, never an error. Negative-cost
  rejection happens at the API boundary before this ledger is reached.

SEE ALSO:
  - resolver.go: Three-tier cost resolution used at sale time
  - store/sqlite/sqlite.go: Persistent implementation of engine.CostStore
*/
package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// COST LEDGER
// =============================================================================

// Ledger wraps a CostStore with the cost-history operations.
type Ledger struct {
	store engine.CostStore
	now   func() time.Time
}

func NewLedger(store engine.CostStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// SetCost records a new cost for a subject, superseding the previous current
// record atomically. An explicit effectiveDate backdates the change; the zero
// time means "effective now".
func (l *Ledger) SetCost(ctx context.Context, subject engine.SubjectID, cost decimal.Decimal, reason string, effectiveDate time.Time) (engine.CostRecord, error) {
	if effectiveDate.IsZero() {
		effectiveDate = l.now()
	}

	rec := engine.CostRecord{
		ID:            uuid.NewString(),
		SubjectID:     subject,
		CostPerUnit:   cost,
		EffectiveDate: engine.Day(effectiveDate),
		IsCurrent:     true,
		Reason:        reason,
		CreatedAt:     l.now().UTC(),
	}

	if err := l.store.SupersedeAndInsert(ctx, rec); err != nil {
		return engine.CostRecord{}, fmt.Errorf("failed to set cost for %s: %w", subject, err)
	}
	return rec, nil
}

// Current returns the subject's current cost record, or nil.
func (l *Ledger) Current(ctx context.Context, subject engine.SubjectID) (*engine.CostRecord, error) {
	return l.store.Current(ctx, subject)
}

// AsOf returns the record with the greatest EffectiveDate on or before date,
// or nil when the subject has no record that early. Callers apply their own
// fallback - see resolver.go.
func (l *Ledger) AsOf(ctx context.Context, subject engine.SubjectID, date time.Time) (*engine.CostRecord, error) {
	return l.store.AsOf(ctx, subject, engine.Day(date))
}

// History returns the subject's full cost history, most recent effective
// date first.
func (l *Ledger) History(ctx context.Context, subject engine.SubjectID) ([]engine.CostRecord, error) {
	return l.store.History(ctx, subject)
}

// AverageCost returns the arithmetic mean of CostPerUnit over records whose
// EffectiveDate falls in [from, to]. Zero if no records fall in range.
func (l *Ledger) AverageCost(ctx context.Context, subject engine.SubjectID, from, to time.Time) (decimal.Decimal, error) {
	if to.Before(from) {
		return decimal.Zero, engine.ErrInvalidRange
	}

	recs, err := l.store.InRange(ctx, subject, engine.Day(from), engine.Day(to))
	if err != nil {
		return decimal.Zero, err
	}
	if len(recs) == 0 {
		return decimal.Zero, nil
	}

	sum := decimal.Zero
	for _, rec := range recs {
		sum = sum.Add(rec.CostPerUnit)
	}
	return sum.Div(decimal.NewFromInt(int64(len(recs)))), nil
}

// =============================================================================
// CHANGE OVER WINDOW
// =============================================================================

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CostChange compares the cost as of N days ago against the current cost.
// InsufficientHistory is set instead of an error when either side is missing.
type CostChange struct {
	OldCost             decimal.Decimal
	CurrentCost         decimal.Decimal
	ChangePercent       decimal.Decimal
	Trend               Trend
	InsufficientHistory bool
}

// ChangeOverWindow compares AsOf(now - days) against Current.
func (l *Ledger) ChangeOverWindow(ctx context.Context, subject engine.SubjectID, days int) (CostChange, error) {
	current, err := l.Current(ctx, subject)
	if err != nil {
		return CostChange{}, err
	}
	old, err := l.AsOf(ctx, subject, l.now().AddDate(0, 0, -days))
	if err != nil {
		return CostChange{}, err
	}

	if current == nil || old == nil {
		return CostChange{InsufficientHistory: true, Trend: TrendStable}, nil
	}

	change := CostChange{
		OldCost:     old.CostPerUnit,
		CurrentCost: current.CostPerUnit,
		Trend:       TrendStable,
	}
	if old.CostPerUnit.IsPositive() {
		change.ChangePercent = current.CostPerUnit.Sub(old.CostPerUnit).
			Div(old.CostPerUnit).
			Mul(decimal.NewFromInt(100))
	}

	switch {
	case current.CostPerUnit.GreaterThan(old.CostPerUnit):
		change.Trend = TrendUp
	case current.CostPerUnit.LessThan(old.CostPerUnit):
		change.Trend = TrendDown
	}
	return change, nil
}
