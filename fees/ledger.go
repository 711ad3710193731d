/*
Package fees stores normalized fee/credit records and aggregates them into
accounting categories.

ledger.go - Idempotent fee ledger

PURPOSE:
  The fee ledger is keyed on the dedup hash computed at normalization time.
  Inserting a record whose hash already exists is a silent no-op, which is
  what makes re-importing a whole statement safe.

INVARIANTS:
  - One record per hash. EVER.
  - Records are never updated. A refund creates a new record; the original
    sale's fees stay in the ledger untouched.
  - Bulk inserts are one atomic unit per batch: a structural failure rolls
    back the whole batch, never leaving a half-imported statement.
*/
package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/engine"
)

// Ledger wraps a FeeStore with the fee-side operations.
type Ledger struct {
	store engine.FeeStore
}

func NewLedger(store engine.FeeStore) *Ledger {
	return &Ledger{store: store}
}

// Insert adds one record, returning how many rows were actually inserted
// (0 when the hash was already present).
func (l *Ledger) Insert(ctx context.Context, rec engine.FeeRecord) (int, error) {
	inserted, err := l.store.Insert(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fee record: %w", err)
	}
	if inserted {
		return 1, nil
	}
	return 0, nil
}

// BulkInsert adds a batch atomically and returns the inserted count.
// Duplicate hashes within or across batches are absorbed, not errors.
func (l *Ledger) BulkInsert(ctx context.Context, recs []engine.FeeRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	inserted, err := l.store.InsertBatch(ctx, recs)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", engine.ErrBatchFailed, err)
	}
	return inserted, nil
}

// InRange returns records charged in [from, to], ordered by charged date.
func (l *Ledger) InRange(ctx context.Context, from, to time.Time) ([]engine.FeeRecord, error) {
	if to.Before(from) {
		return nil, engine.ErrInvalidRange
	}
	return l.store.ListInRange(ctx, from, to)
}

// SumByType sums one fee type and credit direction over a range.
func (l *Ledger) SumByType(ctx context.Context, feeType engine.FeeType, isCredit bool, from, to time.Time) (decimal.Decimal, error) {
	return l.store.SumByType(ctx, feeType, isCredit, from, to)
}

// SumByOrder sums every fee attributed to one order.
func (l *Ledger) SumByOrder(ctx context.Context, orderID string) (decimal.Decimal, error) {
	return l.store.SumByOrder(ctx, orderID)
}

// SumShopLevel sums fees with no order attribution over a range.
func (l *Ledger) SumShopLevel(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return l.store.SumShopLevel(ctx, from, to)
}
