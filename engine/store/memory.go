// Package store provides in-memory implementations of the engine's
// persistence and collaborator interfaces, for testing and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/engine"
)

// =============================================================================
// MEMORY STORE - CostStore + FeeStore + LockStore in one struct
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	costs map[engine.SubjectID][]engine.CostRecord // insertion order
	fees  map[string]engine.FeeRecord              // keyed by hash
	locks map[string]engine.PeriodLock             // keyed by source|period
}

func NewMemory() *Memory {
	return &Memory{
		costs: make(map[engine.SubjectID][]engine.CostRecord),
		fees:  make(map[string]engine.FeeRecord),
		locks: make(map[string]engine.PeriodLock),
	}
}

// =============================================================================
// COST STORE
// =============================================================================

func (m *Memory) SupersedeAndInsert(_ context.Context, rec engine.CostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.costs[rec.SubjectID]
	for i := range series {
		series[i].IsCurrent = false
	}
	rec.IsCurrent = true
	m.costs[rec.SubjectID] = append(series, rec)
	return nil
}

func (m *Memory) Current(_ context.Context, subject engine.SubjectID) (*engine.CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series := m.costs[subject]
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].IsCurrent {
			rec := series[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// AsOf returns the record with the greatest effective date <= date, or nil.
// Ties on effective date resolve to the most recently inserted record, so a
// correction sharing its predecessor's effective date wins.
func (m *Memory) AsOf(_ context.Context, subject engine.SubjectID, date time.Time) (*engine.CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *engine.CostRecord
	for _, rec := range m.costs[subject] {
		rec := rec
		if rec.EffectiveDate.After(date) {
			continue
		}
		if best == nil || !rec.EffectiveDate.Before(best.EffectiveDate) {
			best = &rec
		}
	}
	return best, nil
}

func (m *Memory) History(_ context.Context, subject engine.SubjectID) ([]engine.CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := append([]engine.CostRecord(nil), m.costs[subject]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveDate.After(out[j].EffectiveDate)
	})
	return out, nil
}

func (m *Memory) InRange(_ context.Context, subject engine.SubjectID, from, to time.Time) ([]engine.CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.CostRecord
	for _, rec := range m.costs[subject] {
		if rec.EffectiveDate.Before(from) || rec.EffectiveDate.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// =============================================================================
// FEE STORE
// =============================================================================

func (m *Memory) Insert(_ context.Context, rec engine.FeeRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rec), nil
}

func (m *Memory) InsertBatch(_ context.Context, recs []engine.FeeRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, rec := range recs {
		if m.insertLocked(rec) {
			inserted++
		}
	}
	return inserted, nil
}

func (m *Memory) insertLocked(rec engine.FeeRecord) bool {
	if _, exists := m.fees[rec.Hash]; exists {
		return false
	}
	m.fees[rec.Hash] = rec
	return true
}

func (m *Memory) ListInRange(_ context.Context, from, to time.Time) ([]engine.FeeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.FeeRecord
	for _, rec := range m.fees {
		if rec.ChargedDate.Before(from) || rec.ChargedDate.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChargedDate.Equal(out[j].ChargedDate) {
			return out[i].Hash < out[j].Hash
		}
		return out[i].ChargedDate.Before(out[j].ChargedDate)
	})
	return out, nil
}

func (m *Memory) SumByType(ctx context.Context, feeType engine.FeeType, isCredit bool, from, to time.Time) (decimal.Decimal, error) {
	recs, err := m.ListInRange(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, rec := range recs {
		if rec.Type == feeType && rec.IsCredit == isCredit {
			sum = sum.Add(rec.Amount)
		}
	}
	return sum, nil
}

func (m *Memory) SumByOrder(_ context.Context, orderID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, rec := range m.fees {
		if rec.OrderID == orderID && orderID != "" {
			sum = sum.Add(rec.Amount)
		}
	}
	return sum, nil
}

func (m *Memory) SumShopLevel(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	recs, err := m.ListInRange(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, rec := range recs {
		if rec.OrderID == "" {
			sum = sum.Add(rec.Amount)
		}
	}
	return sum, nil
}

// =============================================================================
// LOCK STORE
// =============================================================================

func (m *Memory) Acquire(_ context.Context, lock engine.PeriodLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lock.Source + "|" + lock.PeriodKey
	if held, ok := m.locks[key]; ok {
		return &engine.PeriodLockedError{
			Source:    held.Source,
			PeriodKey: held.PeriodKey,
			LockedBy:  held.LockedBy,
			LockedAt:  held.LockedAt,
		}
	}
	m.locks[key] = lock
	return nil
}

func (m *Memory) Get(_ context.Context, source, periodKey string) (*engine.PeriodLock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if held, ok := m.locks[source+"|"+periodKey]; ok {
		return &held, nil
	}
	return nil, nil
}

func (m *Memory) Release(_ context.Context, source, periodKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, source+"|"+periodKey)
	return nil
}

// =============================================================================
// COLLABORATOR DOUBLES - map-backed catalog and order directory
// =============================================================================

// MemoryCatalog is a map-backed product catalog.
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string]engine.CatalogEntry
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[string]engine.CatalogEntry)}
}

func (c *MemoryCatalog) Put(sku string, entry engine.CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sku] = entry
}

func (c *MemoryCatalog) Lookup(_ context.Context, sku string) (*engine.CatalogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.entries[sku]; ok {
		return &entry, nil
	}
	return nil, nil
}

// MemoryOrder is the order-side state the engine touches.
type MemoryOrder struct {
	ID             string
	ExternalNumber string
	Gross          decimal.Decimal
	Tax            decimal.Decimal
	LockedInCost   decimal.Decimal
	Refunded       bool
	SoldAt         time.Time
}

// MemoryOrders is a map-backed order directory and sales reader.
type MemoryOrders struct {
	mu     sync.RWMutex
	orders map[string]*MemoryOrder // keyed by internal id
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[string]*MemoryOrder)}
}

func (o *MemoryOrders) Put(order MemoryOrder) {
	o.mu.Lock()
	defer o.mu.Unlock()
	copied := order
	o.orders[order.ID] = &copied
}

func (o *MemoryOrders) Get(id string) *MemoryOrder {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if ord, ok := o.orders[id]; ok {
		copied := *ord
		return &copied
	}
	return nil
}

func (o *MemoryOrders) FindByExternalNumber(_ context.Context, externalNumber string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ord := range o.orders {
		if ord.ExternalNumber == externalNumber {
			return ord.ID, nil
		}
	}
	return "", nil
}

func (o *MemoryOrders) MarkRefunded(_ context.Context, orderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ord, ok := o.orders[orderID]; ok {
		ord.Refunded = true
	}
	return nil
}

func (o *MemoryOrders) ZeroLockedCost(_ context.Context, orderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ord, ok := o.orders[orderID]; ok {
		ord.LockedInCost = decimal.Zero
	}
	return nil
}

func (o *MemoryOrders) TotalsInRange(_ context.Context, from, to time.Time) (engine.SalesTotals, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	totals := engine.SalesTotals{Gross: decimal.Zero, Tax: decimal.Zero}
	for _, ord := range o.orders {
		if ord.SoldAt.Before(from) || ord.SoldAt.After(to) {
			continue
		}
		totals.Gross = totals.Gross.Add(ord.Gross)
		totals.Tax = totals.Tax.Add(ord.Tax)
	}
	return totals, nil
}

func (o *MemoryOrders) TaxRefunded(_ context.Context, orderID string) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if ord, ok := o.orders[orderID]; ok {
		return ord.Tax, nil
	}
	return decimal.Zero, nil
}
