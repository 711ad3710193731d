/*
resolver.go - Resolved-cost policy for the sale pipeline

PURPOSE:
  Single source of truth for "what did this SKU cost at the moment it sold".
  The resolved value is persisted immutably on the sale record by the caller;
  later cost-history edits must never retroactively change historical sales.

PRECEDENCE (each tier consulted only if the previous yields nothing):
  1. A SKU-scoped override entry effective ON OR BEFORE the sale date.
     Future-dated overrides never apply retroactively.
  2. weight(SKU) x cost of the SKU's material as of the sale date.
     If the material has no history that early, this tier yields nothing.
  3. Zero.

  ResolveAtSale is deterministic and must be called exactly once per sale.
*/
package costs

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/engine"
)

// CostSource says which tier produced a resolved cost.
type CostSource string

const (
	SourceOverride CostSource = "sku_override"
	SourceMaterial CostSource = "material_rate"
	SourceNone     CostSource = "none"
)

// Resolver resolves locked-in costs from the cost ledger and the catalog.
type Resolver struct {
	Costs   *Ledger
	Catalog engine.Catalog
}

func NewResolver(costs *Ledger, catalog engine.Catalog) *Resolver {
	return &Resolver{Costs: costs, Catalog: catalog}
}

// ResolveAtSale returns the cost locked in for a SKU sold on saleDate, along
// with the tier that produced it. A missing SKU or material is not an error;
// the fallback chain ends at zero.
func (r *Resolver) ResolveAtSale(ctx context.Context, sku string, saleDate time.Time) (decimal.Decimal, CostSource, error) {
	// Tier 1: SKU-scoped override ledger entry.
	override, err := r.Costs.AsOf(ctx, engine.SubjectID(sku), saleDate)
	if err != nil {
		return decimal.Zero, SourceNone, fmt.Errorf("failed to resolve override cost for %s: %w", sku, err)
	}
	if override != nil {
		return override.CostPerUnit, SourceOverride, nil
	}

	// Tier 2: weight x material rate as of the sale date.
	entry, err := r.Catalog.Lookup(ctx, sku)
	if err != nil {
		return decimal.Zero, SourceNone, fmt.Errorf("catalog lookup failed for %s: %w", sku, err)
	}
	if entry != nil {
		material, err := r.Costs.AsOf(ctx, entry.MaterialID, saleDate)
		if err != nil {
			return decimal.Zero, SourceNone, fmt.Errorf("failed to resolve material cost for %s: %w", entry.MaterialID, err)
		}
		if material != nil {
			return entry.Weight.Mul(material.CostPerUnit), SourceMaterial, nil
		}
	}

	// Tier 3: nothing known - the cost is zero.
	return decimal.Zero, SourceNone, nil
}
