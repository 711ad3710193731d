/*
Package engine provides the core types and contracts for the pricing and
fee reconciliation engine.

PURPOSE:
  This package contains the domain types shared by the cost ledger, the
  statement pipeline, and the reporting layer, plus the interfaces that
  connect them to persistence and to the surrounding catalog/order system.

KEY CONCEPTS IN THIS FILE (types.go):
  - SubjectID:   A material code or SKU whose cost is tracked over time
  - CostRecord:  An immutable entry in a subject's cost history
  - FeeType:     Canonical classification of a marketplace fee or credit
  - FeeRecord:   A normalized fee/credit, uniquely keyed by a dedup hash
  - RawRow:      A string-keyed statement row, as imported

DESIGN PRINCIPLES:
  1. Immutability: Cost and fee records are never updated after insertion.
     A cost change supersedes the previous record; a refund creates a new
     fee record rather than editing the original.
  2. Precision: Uses decimal.Decimal for all money values. Floats appear
     only at serialization boundaries.
  3. Sign convention: Fee amounts are always non-negative; direction is
     carried by IsCredit, never by the value's sign.
  4. Idempotence: FeeRecord.Hash fingerprints the source row so that
     re-importing a statement is a no-op.

SEE ALSO:
  - errors.go: Error taxonomy used across the engine
  - costs/:    Cost ledger and resolved-cost policy
  - statement/: Raw row normalization
  - fees/:     Fee ledger, import, category aggregation
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// SubjectID identifies a cost series: either a material code (e.g. "silver-925")
// or a SKU when the series is a per-product override.
type SubjectID string

// =============================================================================
// COST RECORD - One entry in a subject's append-only cost history
// =============================================================================

// CostRecord is a single cost value effective from a given date.
//
// INVARIANT: at most one record per SubjectID has IsCurrent = true, and it is
// always the most recently inserted record for that subject (insertion order,
// not EffectiveDate order).
type CostRecord struct {
	ID            string
	SubjectID     SubjectID
	CostPerUnit   decimal.Decimal
	EffectiveDate time.Time
	IsCurrent     bool
	Reason        string
	CreatedAt     time.Time
}

// =============================================================================
// FEE TYPES - Canonical accounting classifications
// =============================================================================

type FeeType string

const (
	FeeListing        FeeType = "listing_fee"
	FeeTransaction    FeeType = "transaction_fee"
	FeeProcessing     FeeType = "processing_fee"
	FeeRegulatory     FeeType = "regulatory_fee"
	FeeVATOnFees      FeeType = "vat_on_fees"
	FeeEtsyAds        FeeType = "etsy_ads"
	FeeOffsiteAds     FeeType = "offsite_ads"
	FeePostageLabels  FeeType = "postage_labels"
	FeeRefund         FeeType = "refund"
	FeeMiscCredit     FeeType = "etsy_misc_credit"
	FeeOther          FeeType = "other_fee"
	FeePaymentDispute FeeType = "payment_dispute_fee"
	FeeMarketingOther FeeType = "marketing_other"
	FeePaymentOther   FeeType = "payment_other"
	FeeRefundCharge   FeeType = "refund_charge"
)

// =============================================================================
// FEE RECORD - A normalized fee or credit
// =============================================================================

// FeeRecord is one normalized statement row, ready for the fee ledger.
// OrderID is empty for shop-level fees not tied to a transaction.
type FeeRecord struct {
	OrderID     string
	Type        FeeType
	Amount      decimal.Decimal // always >= 0; direction carried by IsCredit
	IsCredit    bool
	Description string
	ChargedDate time.Time
	Hash        string // unique dedup fingerprint of the source row
	CreatedAt   time.Time
}

// =============================================================================
// RAW IMPORT ROW
// =============================================================================

// RawRow is one statement row as imported: a flat mapping of column name to
// string value. Only the import boundary is dynamically typed; everything past
// the normalizer is a strict FeeRecord.
type RawRow map[string]string

// =============================================================================
// COLLABORATOR INTERFACES - the surrounding system, contracts only
// =============================================================================

// CatalogEntry is the slice of a product the engine needs: its weight and the
// material whose cost history prices it.
type CatalogEntry struct {
	Weight     decimal.Decimal
	MaterialID SubjectID
}

// Catalog provides read access to the product catalog keyed by SKU.
type Catalog interface {
	// Lookup returns the entry for a SKU, or nil if the SKU is unknown.
	Lookup(ctx context.Context, sku string) (*CatalogEntry, error)
}

// OrderDirectory provides the order-side operations the statement pipeline
// needs: resolving external order numbers and applying refund side effects.
type OrderDirectory interface {
	// FindByExternalNumber returns the internal order id for a marketplace
	// order number, or "" if no such order exists.
	FindByExternalNumber(ctx context.Context, externalNumber string) (string, error)

	// MarkRefunded flips the order's status to refunded.
	MarkRefunded(ctx context.Context, orderID string) error

	// ZeroLockedCost clears the cost locked in at sale time. Refunded goods
	// do not count as cost-bearing.
	ZeroLockedCost(ctx context.Context, orderID string) error
}

// SalesTotals are gross sale amounts and customer-paid tax over a range.
type SalesTotals struct {
	Gross decimal.Decimal
	Tax   decimal.Decimal
}

// SalesReader provides the sales-side figures needed to net revenue against
// fee exposure.
type SalesReader interface {
	// TotalsInRange sums gross and customer-paid tax for sales in [from, to].
	TotalsInRange(ctx context.Context, from, to time.Time) (SalesTotals, error)

	// TaxRefunded returns the tax returned to the customer when the given
	// order was refunded.
	TaxRefunded(ctx context.Context, orderID string) (decimal.Decimal, error)
}

// =============================================================================
// STORE INTERFACES - persistence contracts (append-only where it matters)
// =============================================================================

// CostStore persists per-subject cost history.
//
// IMPORTANT: cost history is append-only. The only mutation ever performed is
// flipping the superseded record's is_current flag, and that happens inside
// SupersedeAndInsert as one atomic unit.
type CostStore interface {
	// SupersedeAndInsert marks the subject's current record (if any) as no
	// longer current and inserts rec as the new current record, atomically.
	// Concurrent calls for the same subject must be serialized.
	SupersedeAndInsert(ctx context.Context, rec CostRecord) error

	// Current returns the record with IsCurrent = true, or nil if the subject
	// has no history.
	Current(ctx context.Context, subject SubjectID) (*CostRecord, error)

	// AsOf returns the record with the greatest EffectiveDate <= date, or nil.
	AsOf(ctx context.Context, subject SubjectID, date time.Time) (*CostRecord, error)

	// History returns all records for a subject, most recent EffectiveDate first.
	History(ctx context.Context, subject SubjectID) ([]CostRecord, error)

	// InRange returns records with EffectiveDate in [from, to].
	InRange(ctx context.Context, subject SubjectID, from, to time.Time) ([]CostRecord, error)
}

// FeeStore persists normalized fee records, unique on Hash.
type FeeStore interface {
	// Insert adds a record unless its hash already exists.
	// Returns false when the record was already present.
	Insert(ctx context.Context, rec FeeRecord) (bool, error)

	// InsertBatch adds records atomically, ignoring duplicate hashes.
	// Either the whole batch commits or none of it does.
	// Returns the number of records actually inserted.
	InsertBatch(ctx context.Context, recs []FeeRecord) (int, error)

	// ListInRange returns records with ChargedDate in [from, to],
	// ordered by ChargedDate.
	ListInRange(ctx context.Context, from, to time.Time) ([]FeeRecord, error)

	// SumByType sums amounts for one fee type and credit direction in range.
	SumByType(ctx context.Context, feeType FeeType, isCredit bool, from, to time.Time) (decimal.Decimal, error)

	// SumByOrder sums all fee amounts attributed to one order.
	SumByOrder(ctx context.Context, orderID string) (decimal.Decimal, error)

	// SumShopLevel sums fees with no order attribution in range.
	SumShopLevel(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

// PeriodLock marks a statement period as imported.
type PeriodLock struct {
	Source    string // statement source, e.g. "etsy"
	PeriodKey string // e.g. "2026-01"
	LockedBy  string
	LockedAt  time.Time
}

// LockStore guards whole-statement re-imports. This is a coarser safety net
// layered on top of hash-based row dedup.
type LockStore interface {
	// Acquire records the lock. Returns *PeriodLockedError if already held.
	Acquire(ctx context.Context, lock PeriodLock) error

	// Get returns the lock for source+period, or nil if not locked.
	Get(ctx context.Context, source, periodKey string) (*PeriodLock, error)

	// Release removes the lock so a period can be re-imported deliberately.
	Release(ctx context.Context, source, periodKey string) error
}

// =============================================================================
// DATE HELPERS
// =============================================================================

// Day truncates a time to its calendar date in UTC. Cost effective dates and
// fee charged dates are compared at day granularity.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
