/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (engine.CostStore, engine.FeeStore,
  engine.LockStore) plus the catalog/order collaborator interfaces over the
  same embedded database.

KEY TABLES:
  cost_history:  Append-only per-subject cost series
  fee_ledger:    Normalized fee/credit records, unique on hash
  period_locks:  Coarse statement re-import guard
  products:      Catalog slice the resolver needs (weight, material)
  orders:        Order slice the statement pipeline needs

APPEND-ONLY ENFORCEMENT:
  cost_history rows are never deleted and the only UPDATE ever issued
  against them flips is_current during SupersedeAndInsert, inside the same
  database transaction as the insert. A partial unique index guarantees at
  most one current record per subject even if application code misbehaves.

IDEMPOTENCE:
  fee_ledger is keyed on the dedup hash; inserts use INSERT OR IGNORE so a
  re-imported statement row is a no-op, and batch inserts report how many
  rows actually landed.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL
  (Write-Ahead Logging) for better read concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

DECIMALS:
  Money values are stored as decimal strings and summed in Go over the
  scanned values. SQL SUM over them would coerce to float and lose the
  exactness the ledgers depend on.

USAGE:
  store, err := sqlite.New("./data/pricing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  costLedger := costs.NewLedger(store)
  feeLedger := fees.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/types.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/engine"
)

// Store implements the storage and collaborator interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database (testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite is single-writer anyway, and a pooled second
	// connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Cost history: append-only per-subject series
	CREATE TABLE IF NOT EXISTS cost_history (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		cost_per_unit TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		is_current INTEGER NOT NULL DEFAULT 0,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cost_history_subject_date
		ON cost_history(subject_id, effective_date DESC);

	-- CRITICAL: at most one current record per subject
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cost_history_current
		ON cost_history(subject_id) WHERE is_current = 1;

	-- Fee ledger: unique on dedup hash
	CREATE TABLE IF NOT EXISTS fee_ledger (
		hash TEXT PRIMARY KEY,
		order_id TEXT,
		fee_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		is_credit INTEGER NOT NULL,
		description TEXT,
		charged_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fee_ledger_charged_date
		ON fee_ledger(charged_date);
	CREATE INDEX IF NOT EXISTS idx_fee_ledger_type
		ON fee_ledger(fee_type, is_credit, charged_date);
	CREATE INDEX IF NOT EXISTS idx_fee_ledger_order
		ON fee_ledger(order_id) WHERE order_id IS NOT NULL;

	-- Period locks: coarse statement re-import guard
	CREATE TABLE IF NOT EXISTS period_locks (
		source TEXT NOT NULL,
		period_key TEXT NOT NULL,
		locked_by TEXT,
		locked_at TEXT NOT NULL,
		PRIMARY KEY (source, period_key)
	);

	-- Products: the catalog slice the cost resolver needs
	CREATE TABLE IF NOT EXISTS products (
		sku TEXT PRIMARY KEY,
		weight TEXT NOT NULL,
		material_id TEXT NOT NULL
	);

	-- Orders: the order slice the statement pipeline needs
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		external_number TEXT UNIQUE,
		gross_amount TEXT NOT NULL DEFAULT '0',
		tax_amount TEXT NOT NULL DEFAULT '0',
		locked_in_cost TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'completed',
		sold_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_sold_at
		ON orders(sold_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

const dayFormat = "2006-01-02"

// =============================================================================
// COST STORE (engine.CostStore interface)
// =============================================================================

// SupersedeAndInsert demotes the subject's current record and inserts the
// new one as current, inside a single database transaction.
func (s *Store) SupersedeAndInsert(ctx context.Context, rec engine.CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx,
		`UPDATE cost_history SET is_current = 0 WHERE subject_id = ? AND is_current = 1`,
		rec.SubjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to supersede current cost: %w", err)
	}

	_, err = sqlTx.ExecContext(ctx,
		`INSERT INTO cost_history
		 (id, subject_id, cost_per_unit, effective_date, is_current, reason, created_at)
		 VALUES (?, ?, ?, ?, 1, ?, ?)`,
		rec.ID,
		rec.SubjectID,
		rec.CostPerUnit.String(),
		rec.EffectiveDate.Format(dayFormat),
		rec.Reason,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cost record: %w", err)
	}

	return sqlTx.Commit()
}

// Current returns the subject's current record, or nil.
func (s *Store) Current(ctx context.Context, subject engine.SubjectID) (*engine.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOneCost(ctx,
		`SELECT id, subject_id, cost_per_unit, effective_date, is_current, reason, created_at
		 FROM cost_history WHERE subject_id = ? AND is_current = 1`,
		subject,
	)
}

// AsOf returns the record with the greatest effective_date <= date, or nil.
// Ties on effective_date resolve to the most recently inserted record; rowid
// keeps that exact even when two writes share a created_at second.
func (s *Store) AsOf(ctx context.Context, subject engine.SubjectID, date time.Time) (*engine.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOneCost(ctx,
		`SELECT id, subject_id, cost_per_unit, effective_date, is_current, reason, created_at
		 FROM cost_history
		 WHERE subject_id = ? AND effective_date <= ?
		 ORDER BY effective_date DESC, created_at DESC, rowid DESC
		 LIMIT 1`,
		subject, date.Format(dayFormat),
	)
}

// History returns all records for a subject, most recent first.
func (s *Store) History(ctx context.Context, subject engine.SubjectID) ([]engine.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCosts(ctx,
		`SELECT id, subject_id, cost_per_unit, effective_date, is_current, reason, created_at
		 FROM cost_history
		 WHERE subject_id = ?
		 ORDER BY effective_date DESC, created_at DESC, rowid DESC`,
		subject,
	)
}

// InRange returns records with effective_date in [from, to], oldest first.
func (s *Store) InRange(ctx context.Context, subject engine.SubjectID, from, to time.Time) ([]engine.CostRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryCosts(ctx,
		`SELECT id, subject_id, cost_per_unit, effective_date, is_current, reason, created_at
		 FROM cost_history
		 WHERE subject_id = ? AND effective_date >= ? AND effective_date <= ?
		 ORDER BY effective_date ASC, created_at ASC`,
		subject, from.Format(dayFormat), to.Format(dayFormat),
	)
}

func (s *Store) queryOneCost(ctx context.Context, query string, args ...any) (*engine.CostRecord, error) {
	recs, err := s.queryCosts(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (s *Store) queryCosts(ctx context.Context, query string, args ...any) ([]engine.CostRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost history: %w", err)
	}
	defer rows.Close()

	var recs []engine.CostRecord
	for rows.Next() {
		var (
			rec           engine.CostRecord
			cost          string
			effectiveDate string
			isCurrent     int
			reason        sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &cost, &effectiveDate, &isCurrent, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}

		rec.CostPerUnit = mustDecimal(cost)
		rec.EffectiveDate, _ = time.Parse(dayFormat, effectiveDate)
		rec.EffectiveDate = rec.EffectiveDate.UTC()
		rec.IsCurrent = isCurrent == 1
		rec.Reason = reason.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// FEE STORE (engine.FeeStore interface)
// =============================================================================

// Insert adds a record unless its hash already exists. Reports whether a
// row actually landed.
func (s *Store) Insert(ctx context.Context, rec engine.FeeRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := insertFee(ctx, s.db, rec)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertBatch adds records as one atomic unit, absorbing duplicate hashes.
// Returns how many rows were actually inserted.
func (s *Store) InsertBatch(ctx context.Context, recs []engine.FeeRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	inserted := 0
	for _, rec := range recs {
		res, err := insertFee(ctx, sqlTx, rec)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fee batch: %w", err)
	}
	return inserted, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFee(ctx context.Context, db execer, rec engine.FeeRecord) (sql.Result, error) {
	res, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO fee_ledger
		 (hash, order_id, fee_type, amount, is_credit, description, charged_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Hash,
		nullString(rec.OrderID),
		string(rec.Type),
		rec.Amount.String(),
		boolInt(rec.IsCredit),
		rec.Description,
		rec.ChargedDate.Format(dayFormat),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert fee record: %w", err)
	}
	return res, nil
}

// ListInRange returns records charged in [from, to], ordered by charged date.
func (s *Store) ListInRange(ctx context.Context, from, to time.Time) ([]engine.FeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryFees(ctx,
		`SELECT hash, order_id, fee_type, amount, is_credit, description, charged_date, created_at
		 FROM fee_ledger
		 WHERE charged_date >= ? AND charged_date <= ?
		 ORDER BY charged_date ASC, created_at ASC`,
		from.Format(dayFormat), to.Format(dayFormat),
	)
}

// SumByType sums amounts for one fee type and credit direction in range.
func (s *Store) SumByType(ctx context.Context, feeType engine.FeeType, isCredit bool, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumAmounts(ctx,
		`SELECT amount FROM fee_ledger
		 WHERE fee_type = ? AND is_credit = ? AND charged_date >= ? AND charged_date <= ?`,
		string(feeType), boolInt(isCredit), from.Format(dayFormat), to.Format(dayFormat),
	)
}

// SumByOrder sums every fee amount attributed to one order.
func (s *Store) SumByOrder(ctx context.Context, orderID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumAmounts(ctx, `SELECT amount FROM fee_ledger WHERE order_id = ?`, orderID)
}

// SumShopLevel sums fees with no order attribution in range.
func (s *Store) SumShopLevel(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumAmounts(ctx,
		`SELECT amount FROM fee_ledger
		 WHERE order_id IS NULL AND charged_date >= ? AND charged_date <= ?`,
		from.Format(dayFormat), to.Format(dayFormat),
	)
}

func (s *Store) sumAmounts(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query fee amounts: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(mustDecimal(amount))
	}
	return sum, rows.Err()
}

func (s *Store) queryFees(ctx context.Context, query string, args ...any) ([]engine.FeeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee ledger: %w", err)
	}
	defer rows.Close()

	var recs []engine.FeeRecord
	for rows.Next() {
		var (
			rec         engine.FeeRecord
			orderID     sql.NullString
			feeType     string
			amount      string
			isCredit    int
			description sql.NullString
			chargedDate string
			createdAt   string
		)
		if err := rows.Scan(&rec.Hash, &orderID, &feeType, &amount, &isCredit, &description, &chargedDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan fee record: %w", err)
		}

		rec.OrderID = orderID.String
		rec.Type = engine.FeeType(feeType)
		rec.Amount = mustDecimal(amount)
		rec.IsCredit = isCredit == 1
		rec.Description = description.String
		rec.ChargedDate, _ = time.Parse(dayFormat, chargedDate)
		rec.ChargedDate = rec.ChargedDate.UTC()
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// LOCK STORE (engine.LockStore interface)
// =============================================================================

// Acquire records a period lock. When the period is already locked the
// returned error names the existing holder.
func (s *Store) Acquire(ctx context.Context, lock engine.PeriodLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO period_locks (source, period_key, locked_by, locked_at) VALUES (?, ?, ?, ?)`,
		lock.Source, lock.PeriodKey, lock.LockedBy, lock.LockedAt.Format(time.RFC3339),
	)
	if err == nil {
		return nil
	}
	if !isUniqueConstraintError(err) {
		return fmt.Errorf("failed to acquire period lock: %w", err)
	}

	held, lookupErr := s.getLock(ctx, lock.Source, lock.PeriodKey)
	if lookupErr != nil || held == nil {
		return fmt.Errorf("failed to acquire period lock: %w", err)
	}
	return &engine.PeriodLockedError{
		Source:    held.Source,
		PeriodKey: held.PeriodKey,
		LockedBy:  held.LockedBy,
		LockedAt:  held.LockedAt,
	}
}

// Get returns the lock for source+period, or nil.
func (s *Store) Get(ctx context.Context, source, periodKey string) (*engine.PeriodLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLock(ctx, source, periodKey)
}

func (s *Store) getLock(ctx context.Context, source, periodKey string) (*engine.PeriodLock, error) {
	var (
		lock     engine.PeriodLock
		lockedBy sql.NullString
		lockedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT source, period_key, locked_by, locked_at FROM period_locks
		 WHERE source = ? AND period_key = ?`,
		source, periodKey,
	).Scan(&lock.Source, &lock.PeriodKey, &lockedBy, &lockedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lock.LockedBy = lockedBy.String
	lock.LockedAt, _ = time.Parse(time.RFC3339, lockedAt)
	return &lock, nil
}

// Release removes a period lock. Releasing an absent lock is a no-op.
func (s *Store) Release(ctx context.Context, source, periodKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM period_locks WHERE source = ? AND period_key = ?`,
		source, periodKey,
	)
	return err
}

// =============================================================================
// CATALOG (engine.Catalog interface)
// =============================================================================

// Product is a stored catalog entry.
type Product struct {
	SKU        string
	Weight     decimal.Decimal
	MaterialID engine.SubjectID
}

// SaveProduct upserts a catalog entry.
func (s *Store) SaveProduct(ctx context.Context, p Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (sku, weight, material_id) VALUES (?, ?, ?)
		 ON CONFLICT(sku) DO UPDATE SET
			weight = excluded.weight,
			material_id = excluded.material_id`,
		p.SKU, p.Weight.String(), string(p.MaterialID),
	)
	return err
}

// Lookup returns the catalog entry for a SKU, or nil when unknown.
func (s *Store) Lookup(ctx context.Context, sku string) (*engine.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var weight string
	var entry engine.CatalogEntry
	err := s.db.QueryRowContext(ctx,
		`SELECT weight, material_id FROM products WHERE sku = ?`, sku,
	).Scan(&weight, &entry.MaterialID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry.Weight = mustDecimal(weight)
	return &entry, nil
}

// =============================================================================
// ORDERS (engine.OrderDirectory + engine.SalesReader interfaces)
// =============================================================================

// Order is the slice of an order record this engine touches.
type Order struct {
	ID             string
	ExternalNumber string
	Gross          decimal.Decimal
	Tax            decimal.Decimal
	LockedInCost   decimal.Decimal
	Status         string
	SoldAt         time.Time
}

// SaveOrder upserts an order.
func (s *Store) SaveOrder(ctx context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := o.Status
	if status == "" {
		status = "completed"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, external_number, gross_amount, tax_amount, locked_in_cost, status, sold_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			external_number = excluded.external_number,
			gross_amount = excluded.gross_amount,
			tax_amount = excluded.tax_amount,
			locked_in_cost = excluded.locked_in_cost,
			status = excluded.status,
			sold_at = excluded.sold_at`,
		o.ID, nullString(o.ExternalNumber), o.Gross.String(), o.Tax.String(),
		o.LockedInCost.String(), status, o.SoldAt.Format(dayFormat),
	)
	return err
}

// GetOrder retrieves an order by internal id, or nil.
func (s *Store) GetOrder(ctx context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getOrder(ctx, id)
}

func (s *Store) getOrder(ctx context.Context, id string) (*Order, error) {
	var (
		o              Order
		externalNumber sql.NullString
		gross, tax     string
		lockedCost     string
		soldAt         string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, external_number, gross_amount, tax_amount, locked_in_cost, status, sold_at
		 FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &externalNumber, &gross, &tax, &lockedCost, &o.Status, &soldAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	o.ExternalNumber = externalNumber.String
	o.Gross = mustDecimal(gross)
	o.Tax = mustDecimal(tax)
	o.LockedInCost = mustDecimal(lockedCost)
	o.SoldAt, _ = time.Parse(dayFormat, soldAt)
	o.SoldAt = o.SoldAt.UTC()
	return &o, nil
}

// FindByExternalNumber resolves a marketplace order number to the internal
// id, or "" when unknown.
func (s *Store) FindByExternalNumber(ctx context.Context, externalNumber string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE external_number = ?`, externalNumber,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkRefunded flips the order's status to refunded.
func (s *Store) MarkRefunded(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = 'refunded' WHERE id = ?`, orderID,
	)
	return err
}

// ZeroLockedCost clears the material cost locked in at sale time.
func (s *Store) ZeroLockedCost(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET locked_in_cost = '0' WHERE id = ?`, orderID,
	)
	return err
}

// TotalsInRange sums gross and tax for orders sold in [from, to].
func (s *Store) TotalsInRange(ctx context.Context, from, to time.Time) (engine.SalesTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT gross_amount, tax_amount FROM orders WHERE sold_at >= ? AND sold_at <= ?`,
		from.Format(dayFormat), to.Format(dayFormat),
	)
	if err != nil {
		return engine.SalesTotals{}, err
	}
	defer rows.Close()

	totals := engine.SalesTotals{Gross: decimal.Zero, Tax: decimal.Zero}
	for rows.Next() {
		var gross, tax string
		if err := rows.Scan(&gross, &tax); err != nil {
			return engine.SalesTotals{}, err
		}
		totals.Gross = totals.Gross.Add(mustDecimal(gross))
		totals.Tax = totals.Tax.Add(mustDecimal(tax))
	}
	return totals, rows.Err()
}

// TaxRefunded returns the tax returned to the customer for an order.
func (s *Store) TaxRefunded(ctx context.Context, orderID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	if order == nil {
		return decimal.Zero, nil
	}
	return order.Tax, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"cost_history", "fee_ledger", "period_locks", "products", "orders"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mustDecimal parses a value this store wrote itself. A parse failure means
// a corrupted row; Zero keeps the read path total.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
