/*
importer.go - Statement import with period locking

PURPOSE:
  Drives a whole-statement import: period-lock guard, per-row normalization,
  one atomic bulk insert, then locking the period against accidental
  re-import.

TWO LAYERS OF IDEMPOTENCE:
  1. Row level: the dedup hash makes individual re-ingested rows no-ops.
  2. Period level: a successfully imported period is locked. This coarser
     guard catches the case where the marketplace changes its export format
     and re-imported rows would hash differently. Unlock explicitly to
     re-import a period on purpose.

ERROR MODEL:
  - Period-lock violation: returned up front, names the holder and time.
  - Row-level failures (collaborator errors during normalization): collected
    as RowError values, never aborting sibling rows.
  - Structural/transactional failure of the bulk insert: the whole batch
    rolls back and the import fails; nothing is locked.
*/
package fees

import (
	"context"
	"time"

	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/statement"
)

// ImportResult reports what happened to each row of a statement batch.
type ImportResult struct {
	Inserted   int
	Duplicates int
	Skipped    int
	SkipCounts map[string]int
	RowErrors  []engine.RowError
}

// Importer wires the normalizer, the fee ledger and the period-lock guard.
type Importer struct {
	Normalizer *statement.Normalizer
	Fees       *Ledger
	Locks      engine.LockStore
	now        func() time.Time
}

func NewImporter(normalizer *statement.Normalizer, fees *Ledger, locks engine.LockStore) *Importer {
	return &Importer{Normalizer: normalizer, Fees: fees, Locks: locks, now: time.Now}
}

// ImportStatement ingests one logical statement batch for source+period.
// Returns *engine.PeriodLockedError when the period was already imported.
func (imp *Importer) ImportStatement(ctx context.Context, source, periodKey, importedBy string, rows []engine.RawRow) (*ImportResult, error) {
	if held, err := imp.Locks.Get(ctx, source, periodKey); err != nil {
		return nil, err
	} else if held != nil {
		return nil, &engine.PeriodLockedError{
			Source:    held.Source,
			PeriodKey: held.PeriodKey,
			LockedBy:  held.LockedBy,
			LockedAt:  held.LockedAt,
		}
	}

	result := &ImportResult{SkipCounts: make(map[string]int)}
	var records []engine.FeeRecord

	for i, row := range rows {
		rec, skip, err := imp.Normalizer.Normalize(ctx, row)
		if err != nil {
			// Soft per-row failure: note it and keep going.
			result.RowErrors = append(result.RowErrors, engine.RowError{
				Line:   i + 1,
				Reason: err.Error(),
			})
			continue
		}
		if rec == nil {
			result.Skipped++
			result.SkipCounts[skip]++
			continue
		}
		records = append(records, *rec)
	}

	inserted, err := imp.Fees.BulkInsert(ctx, records)
	if err != nil {
		return nil, err
	}
	result.Inserted = inserted
	result.Duplicates = len(records) - inserted

	if err := imp.Locks.Acquire(ctx, engine.PeriodLock{
		Source:    source,
		PeriodKey: periodKey,
		LockedBy:  importedBy,
		LockedAt:  imp.now().UTC(),
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// UnlockPeriod deliberately releases a period lock so it can be re-imported.
func (imp *Importer) UnlockPeriod(ctx context.Context, source, periodKey string) error {
	return imp.Locks.Release(ctx, source, periodKey)
}
