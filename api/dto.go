/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  decimal values are serialized as fixed 2-decimal strings. Floats never
  cross the wire for money; percentages are strings too for the same reason.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - pricing/feemodel.go: FeeModelJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/costs"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/fees"
	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// COST TYPES
// =============================================================================

// CostRecordDTO represents one cost history entry.
type CostRecordDTO struct {
	ID            string `json:"id"`
	SubjectID     string `json:"subject_id"`
	CostPerUnit   string `json:"cost_per_unit"`
	EffectiveDate string `json:"effective_date"`
	IsCurrent     bool   `json:"is_current"`
	Reason        string `json:"reason,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// SetCostRequest is the request to record a new cost for a subject.
type SetCostRequest struct {
	CostPerUnit   string `json:"cost_per_unit"`
	Reason        string `json:"reason,omitempty"`
	EffectiveDate string `json:"effective_date,omitempty"` // ISO date; empty = today
}

// CostChangeDTO reports cost movement over a lookback window.
type CostChangeDTO struct {
	SubjectID           string `json:"subject_id"`
	WindowDays          int    `json:"window_days"`
	OldCost             string `json:"old_cost,omitempty"`
	CurrentCost         string `json:"current_cost,omitempty"`
	ChangePercent       string `json:"change_percent,omitempty"`
	Trend               string `json:"trend"`
	InsufficientHistory bool   `json:"insufficient_history,omitempty"`
}

// AverageCostDTO is the mean cost over a range.
type AverageCostDTO struct {
	SubjectID string `json:"subject_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Average   string `json:"average"`
}

// ResolvedCostDTO is the cost locked in for a SKU at a sale date.
type ResolvedCostDTO struct {
	SKU      string `json:"sku"`
	SaleDate string `json:"sale_date"`
	Cost     string `json:"cost"`
	Source   string `json:"source"`
}

// =============================================================================
// PRICING TYPES
// =============================================================================

// QuoteRequest is the request to price one item.
type QuoteRequest struct {
	Weight                string  `json:"weight"`
	SellRatePerUnit       string  `json:"sell_rate_per_unit,omitempty"`
	MaterialCostPerUnit   string  `json:"material_cost_per_unit,omitempty"`
	PostageCost           string  `json:"postage_cost,omitempty"`
	MarginModifierPercent *string `json:"margin_modifier_percent,omitempty"`
}

// QuoteDTO is the full pricing result for one item.
type QuoteDTO struct {
	ListPrice     string          `json:"list_price"`
	Fees          FeeBreakdownDTO `json:"fees"`
	Profit        string          `json:"profit"`
	MarginPercent string          `json:"margin_percent"`
}

// FeeBreakdownDTO itemizes platform fees for a price.
type FeeBreakdownDTO struct {
	TransactionFee string `json:"transaction_fee"`
	PaymentFee     string `json:"payment_fee"`
	AdFee          string `json:"ad_fee"`
	TotalFees      string `json:"total_fees"`
}

// ReversePriceRequest asks for the price that achieves a target margin.
type ReversePriceRequest struct {
	FixedCosts          string `json:"fixed_costs"`
	TargetMarginPercent string `json:"target_margin_percent"`
}

// ReversePriceDTO is the solved price.
type ReversePriceDTO struct {
	Price string `json:"price"`
}

// =============================================================================
// STATEMENT IMPORT TYPES
// =============================================================================

// ImportRequest wraps raw statement rows for the JSON import path. CSV
// uploads carry the same fields as query parameters instead.
type ImportRequest struct {
	Source     string          `json:"source"`
	PeriodKey  string          `json:"period_key"`
	ImportedBy string          `json:"imported_by,omitempty"`
	Rows       []engine.RawRow `json:"rows"`
}

// ImportResultDTO reports what happened to each row of a statement batch.
type ImportResultDTO struct {
	Inserted   int            `json:"inserted"`
	Duplicates int            `json:"duplicates"`
	Skipped    int            `json:"skipped"`
	SkipCounts map[string]int `json:"skip_counts,omitempty"`
	RowErrors  []RowErrorDTO  `json:"row_errors,omitempty"`
}

// RowErrorDTO is one soft per-row failure from an import.
type RowErrorDTO struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// UnlockRequest releases a statement period lock.
type UnlockRequest struct {
	Source    string `json:"source"`
	PeriodKey string `json:"period_key"`
}

// FeeRecordDTO represents one normalized fee ledger entry.
type FeeRecordDTO struct {
	Hash        string `json:"hash"`
	OrderID     string `json:"order_id,omitempty"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	IsCredit    bool   `json:"is_credit"`
	Description string `json:"description,omitempty"`
	ChargedDate string `json:"charged_date"`
}

// =============================================================================
// REPORT TYPES
// =============================================================================

// BucketDTO is a charged/credited pair with its net.
type BucketDTO struct {
	Charged  string `json:"charged"`
	Credited string `json:"credited"`
	Net      string `json:"net"`
}

// CategoryTotalsDTO is the per-category fee breakdown for a range.
type CategoryTotalsDTO struct {
	From string `json:"from"`
	To   string `json:"to"`

	Listing     BucketDTO `json:"listing"`
	Transaction BucketDTO `json:"transaction"`
	Processing  BucketDTO `json:"processing"`
	Regulatory  BucketDTO `json:"regulatory"`
	VATOnFees   BucketDTO `json:"vat_on_fees"`
	EtsyAds     BucketDTO `json:"etsy_ads"`
	OffsiteAds  BucketDTO `json:"offsite_ads"`
	Postage     BucketDTO `json:"postage"`

	MiscCredit   string `json:"misc_credit"`
	NetFees      string `json:"net_fees"`
	NetMarketing string `json:"net_marketing"`
	NetDelivery  string `json:"net_delivery"`
}

// NetRevenueDTO is the sales-side figure for a range.
type NetRevenueDTO struct {
	From       string `json:"from"`
	To         string `json:"to"`
	NetRevenue string `json:"net_revenue"`
}

// =============================================================================
// ADMIN TYPES
// =============================================================================

// ProductDTO represents a catalog entry.
type ProductDTO struct {
	SKU        string `json:"sku"`
	Weight     string `json:"weight"`
	MaterialID string `json:"material_id"`
}

// OrderDTO represents the order slice this engine touches.
type OrderDTO struct {
	ID             string `json:"id"`
	ExternalNumber string `json:"external_number,omitempty"`
	Gross          string `json:"gross"`
	Tax            string `json:"tax"`
	LockedInCost   string `json:"locked_in_cost"`
	Status         string `json:"status"`
	SoldAt         string `json:"sold_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FeeModelDTO echoes the loaded fee configuration.
type FeeModelDTO = pricing.FeeModelJSON

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

const dayFormat = "2006-01-02"

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toCostRecordDTO(rec engine.CostRecord) CostRecordDTO {
	return CostRecordDTO{
		ID:            rec.ID,
		SubjectID:     string(rec.SubjectID),
		CostPerUnit:   money(rec.CostPerUnit),
		EffectiveDate: rec.EffectiveDate.Format(dayFormat),
		IsCurrent:     rec.IsCurrent,
		Reason:        rec.Reason,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	}
}

func toCostRecordDTOs(recs []engine.CostRecord) []CostRecordDTO {
	dtos := make([]CostRecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toCostRecordDTO(rec)
	}
	return dtos
}

func toFeeRecordDTO(rec engine.FeeRecord) FeeRecordDTO {
	return FeeRecordDTO{
		Hash:        rec.Hash,
		OrderID:     rec.OrderID,
		Type:        string(rec.Type),
		Amount:      money(rec.Amount),
		IsCredit:    rec.IsCredit,
		Description: rec.Description,
		ChargedDate: rec.ChargedDate.Format(dayFormat),
	}
}

func toFeeRecordDTOs(recs []engine.FeeRecord) []FeeRecordDTO {
	dtos := make([]FeeRecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toFeeRecordDTO(rec)
	}
	return dtos
}

func toBucketDTO(b fees.Bucket) BucketDTO {
	return BucketDTO{
		Charged:  money(b.Charged),
		Credited: money(b.Credited),
		Net:      money(b.Net()),
	}
}

func toCategoryTotalsDTO(t fees.CategoryTotals, from, to time.Time) CategoryTotalsDTO {
	return CategoryTotalsDTO{
		From:         from.Format(dayFormat),
		To:           to.Format(dayFormat),
		Listing:      toBucketDTO(t.Listing),
		Transaction:  toBucketDTO(t.Transaction),
		Processing:   toBucketDTO(t.Processing),
		Regulatory:   toBucketDTO(t.Regulatory),
		VATOnFees:    toBucketDTO(t.VATOnFees),
		EtsyAds:      toBucketDTO(t.EtsyAds),
		OffsiteAds:   toBucketDTO(t.OffsiteAds),
		Postage:      toBucketDTO(t.Postage),
		MiscCredit:   money(t.MiscCredit),
		NetFees:      money(t.NetFees()),
		NetMarketing: money(t.NetMarketing()),
		NetDelivery:  money(t.NetDelivery()),
	}
}

func toImportResultDTO(res *fees.ImportResult) ImportResultDTO {
	dto := ImportResultDTO{
		Inserted:   res.Inserted,
		Duplicates: res.Duplicates,
		Skipped:    res.Skipped,
		SkipCounts: res.SkipCounts,
	}
	for _, re := range res.RowErrors {
		dto.RowErrors = append(dto.RowErrors, RowErrorDTO{Line: re.Line, Reason: re.Reason})
	}
	return dto
}

func toCostChangeDTO(subject engine.SubjectID, days int, change costs.CostChange) CostChangeDTO {
	dto := CostChangeDTO{
		SubjectID:           string(subject),
		WindowDays:          days,
		Trend:               string(change.Trend),
		InsufficientHistory: change.InsufficientHistory,
	}
	if !change.InsufficientHistory {
		dto.OldCost = money(change.OldCost)
		dto.CurrentCost = money(change.CurrentCost)
		dto.ChangePercent = change.ChangePercent.StringFixed(2)
	}
	return dto
}
