/*
handlers.go - HTTP API handlers for the pricing and reconciliation engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Costs:
    POST   /api/costs/{subject}          Record a new cost (supersedes current)
    GET    /api/costs/{subject}          Current cost
    GET    /api/costs/{subject}/history  Full cost history
    GET    /api/costs/{subject}/as-of    Cost as of a date
    GET    /api/costs/{subject}/average  Mean cost over a range
    GET    /api/costs/{subject}/change   Cost movement over a window
    GET    /api/resolve                  Resolved cost for a SKU at sale date

  Pricing:
    POST   /api/pricing/quote            Price one item
    POST   /api/pricing/reverse          Solve price for a target margin
    GET    /api/pricing/fee-model        Current fee configuration

  Statements:
    POST   /api/statements/import        Import raw rows (JSON)
    POST   /api/statements/import/csv    Import a CSV statement body
    POST   /api/statements/unlock        Release a period lock
    GET    /api/fees                     Fee ledger entries in a range

  Reports:
    GET    /api/reports/categories       Category totals for a range
    GET    /api/reports/net-revenue      Net revenue for a range

  Admin:
    PUT    /api/products/{sku}           Upsert a catalog entry
    GET    /api/products/{sku}           Get a catalog entry
    PUT    /api/orders/{id}              Upsert an order
    GET    /api/orders/{id}              Get an order
    POST   /api/reset                    Database reset (dev only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input (negative cost, bad dates)
  - 404: Resource not found
  - 422: Unachievable margin
  - 423: Statement period locked
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/costs"
	"github.com/warp/pricing-engine/engine"
	"github.com/warp/pricing-engine/fees"
	"github.com/warp/pricing-engine/pricing"
	"github.com/warp/pricing-engine/statement"
	"github.com/warp/pricing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Costs      *costs.Ledger
	Resolver   *costs.Resolver
	FeeModel   pricing.FeeModel
	Fees       *fees.Ledger
	Importer   *fees.Importer
	Aggregator *fees.Aggregator
}

// NewHandler wires the full engine over one SQLite store.
func NewHandler(store *sqlite.Store, feeModel pricing.FeeModel) *Handler {
	costLedger := costs.NewLedger(store)
	feeLedger := fees.NewLedger(store)
	normalizer := statement.NewNormalizer(store)

	return &Handler{
		Store:      store,
		Costs:      costLedger,
		Resolver:   costs.NewResolver(costLedger, store),
		FeeModel:   feeModel,
		Fees:       feeLedger,
		Importer:   fees.NewImporter(normalizer, feeLedger, store),
		Aggregator: fees.NewAggregator(feeLedger, store),
	}
}

// =============================================================================
// COST HANDLERS
// =============================================================================

// SetCost records a new cost for a subject.
func (h *Handler) SetCost(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(chi.URLParam(r, "subject"))

	var req SetCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cost, err := decimal.NewFromString(req.CostPerUnit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost_per_unit", err)
		return
	}
	if cost.IsNegative() {
		writeError(w, http.StatusBadRequest, "Cost must not be negative", engine.ErrNegativeCost)
		return
	}

	var effectiveDate time.Time
	if req.EffectiveDate != "" {
		effectiveDate, err = time.Parse(dayFormat, req.EffectiveDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	rec, err := h.Costs.SetCost(r.Context(), subject, cost, req.Reason, effectiveDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set cost", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCostRecordDTO(rec))
}

// GetCurrentCost returns the subject's current cost record.
func (h *Handler) GetCurrentCost(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(chi.URLParam(r, "subject"))

	rec, err := h.Costs.Current(r.Context(), subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get current cost", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "No cost history for subject", nil)
		return
	}

	writeJSON(w, http.StatusOK, toCostRecordDTO(*rec))
}

// GetCostHistory returns the subject's full cost history.
func (h *Handler) GetCostHistory(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(chi.URLParam(r, "subject"))

	recs, err := h.Costs.History(r.Context(), subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get cost history", err)
		return
	}

	writeJSON(w, http.StatusOK, toCostRecordDTOs(recs))
}

// GetCostAsOf returns the subject's cost as of ?date=YYYY-MM-DD.
func (h *Handler) GetCostAsOf(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(chi.URLParam(r, "subject"))

	date, err := time.Parse(dayFormat, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	rec, err := h.Costs.AsOf(r.Context(), subject, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get cost", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "No cost record on or before date", nil)
		return
	}

	writeJSON(w, http.StatusOK, toCostRecordDTO(*rec))
}

// GetAverageCost returns the mean cost over ?from=&to=.
func (h *Handler) GetAverageCost(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(chi.URLParam(r, "subject"))

	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	avg, err := h.Costs.AverageCost(r.Context(), subject, from, to)
	if err != nil {
		if engine.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "Invalid range", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute average cost", err)
		return
	}

	writeJSON(w, http.StatusOK, AverageCostDTO{
		SubjectID: string(subject),
		From:      from.Format(dayFormat),
		To:        to.Format(dayFormat),
		Average:   money(avg),
	})
}

// GetCostChange returns cost movement over ?days=N (default 30).
func (h *Handler) GetCostChange(w http.ResponseWriter, r *http.Request) {
	subject := engine.SubjectID(chi.URLParam(r, "subject"))

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid days parameter", err)
			return
		}
		days = parsed
	}

	change, err := h.Costs.ChangeOverWindow(r.Context(), subject, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute cost change", err)
		return
	}

	writeJSON(w, http.StatusOK, toCostChangeDTO(subject, days, change))
}

// ResolveCost returns the cost locked in for ?sku= at ?sale_date=.
func (h *Handler) ResolveCost(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku")
	if sku == "" {
		writeError(w, http.StatusBadRequest, "Missing sku parameter", nil)
		return
	}

	saleDate, err := time.Parse(dayFormat, r.URL.Query().Get("sale_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_date format (use YYYY-MM-DD)", err)
		return
	}

	cost, source, err := h.Resolver.ResolveAtSale(r.Context(), sku, saleDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve cost", err)
		return
	}

	writeJSON(w, http.StatusOK, ResolvedCostDTO{
		SKU:      sku,
		SaleDate: saleDate.Format(dayFormat),
		Cost:     money(cost),
		Source:   string(source),
	})
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// Quote prices one item under the configured fee model.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := pricing.QuoteInputs{}
	var err error
	if in.Weight, err = parseDecimal(req.Weight, "weight"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if in.SellRatePerUnit, err = parseOptionalDecimal(req.SellRatePerUnit, "sell_rate_per_unit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if in.MaterialCostPerUnit, err = parseOptionalDecimal(req.MaterialCostPerUnit, "material_cost_per_unit"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if in.PostageCost, err = parseOptionalDecimal(req.PostageCost, "postage_cost"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.MarginModifierPercent != nil {
		margin, err := parseDecimal(*req.MarginModifierPercent, "margin_modifier_percent")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		in.MarginModifierPercent = &margin
	}

	quote, err := h.FeeModel.Quote(in)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrNonPositiveWeight):
			writeError(w, http.StatusBadRequest, "Weight must be positive", err)
		case errors.Is(err, pricing.ErrMarginUnachievable):
			writeError(w, http.StatusUnprocessableEntity, "Target margin not achievable", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to compute quote", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, QuoteDTO{
		ListPrice: money(quote.ListPrice),
		Fees: FeeBreakdownDTO{
			TransactionFee: money(quote.Fees.TransactionFee),
			PaymentFee:     money(quote.Fees.PaymentFee),
			AdFee:          money(quote.Fees.AdFee),
			TotalFees:      money(quote.Fees.TotalFees),
		},
		Profit:        money(quote.Profit),
		MarginPercent: quote.MarginPercent.StringFixed(2),
	})
}

// ReversePrice solves for the price that achieves a target margin.
func (h *Handler) ReversePrice(w http.ResponseWriter, r *http.Request) {
	var req ReversePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	fixedCosts, err := parseDecimal(req.FixedCosts, "fixed_costs")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	target, err := parseDecimal(req.TargetMarginPercent, "target_margin_percent")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	price, err := h.FeeModel.ReversePriceForMargin(fixedCosts, target)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Target margin not achievable", err)
		return
	}

	writeJSON(w, http.StatusOK, ReversePriceDTO{Price: money(price)})
}

// GetFeeModel echoes the loaded fee configuration as percentages.
func (h *Handler) GetFeeModel(w http.ResponseWriter, r *http.Request) {
	toPercent := func(rate decimal.Decimal) *float64 {
		f, _ := rate.Mul(decimal.NewFromInt(100)).Float64()
		return &f
	}
	fixed, _ := h.FeeModel.PaymentFixed.Float64()

	writeJSON(w, http.StatusOK, FeeModelDTO{
		TransactionPercent: toPercent(h.FeeModel.TransactionRate),
		PaymentPercent:     toPercent(h.FeeModel.PaymentRate),
		PaymentFixed:       &fixed,
		AdPercent:          toPercent(h.FeeModel.AdRate),
	})
}

// =============================================================================
// STATEMENT HANDLERS
// =============================================================================

// ImportStatement ingests raw statement rows as JSON.
func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Source == "" || req.PeriodKey == "" {
		writeError(w, http.StatusBadRequest, "source and period_key are required", nil)
		return
	}

	h.runImport(w, r, req.Source, req.PeriodKey, req.ImportedBy, req.Rows)
}

// ImportStatementCSV ingests a raw CSV statement body. Source and period come
// from ?source= and ?period= query parameters.
func (h *Handler) ImportStatementCSV(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	periodKey := r.URL.Query().Get("period")
	if source == "" || periodKey == "" {
		writeError(w, http.StatusBadRequest, "source and period query parameters are required", nil)
		return
	}

	rows, err := statement.ReadCSV(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse CSV", err)
		return
	}

	h.runImport(w, r, source, periodKey, r.URL.Query().Get("imported_by"), rows)
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, source, periodKey, importedBy string, rows []engine.RawRow) {
	result, err := h.Importer.ImportStatement(r.Context(), source, periodKey, importedBy, rows)
	if err != nil {
		var locked *engine.PeriodLockedError
		if errors.As(err, &locked) {
			writeJSON(w, http.StatusLocked, ErrorResponse{
				Error: locked.Error(),
				Code:  "period_locked",
				Details: map[string]string{
					"source":     locked.Source,
					"period_key": locked.PeriodKey,
					"locked_by":  locked.LockedBy,
					"locked_at":  locked.LockedAt.Format(time.RFC3339),
				},
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "Import failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toImportResultDTO(result))
}

// UnlockPeriod deliberately releases a statement period lock.
func (h *Handler) UnlockPeriod(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Source == "" || req.PeriodKey == "" {
		writeError(w, http.StatusBadRequest, "source and period_key are required", nil)
		return
	}

	if err := h.Importer.UnlockPeriod(r.Context(), req.Source, req.PeriodKey); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to unlock period", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

// ListFees returns fee ledger entries in ?from=&to=.
func (h *Handler) ListFees(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	recs, err := h.Fees.InRange(r.Context(), from, to)
	if err != nil {
		if engine.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "Invalid range", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to list fees", err)
		return
	}

	writeJSON(w, http.StatusOK, toFeeRecordDTOs(recs))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetCategoryTotals returns the per-category fee breakdown for ?from=&to=.
func (h *Handler) GetCategoryTotals(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	totals, err := h.Aggregator.Categories(r.Context(), from, to)
	if err != nil {
		if engine.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "Invalid range", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to aggregate categories", err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryTotalsDTO(totals, from, to))
}

// GetNetRevenue returns the sales-side net revenue figure for ?from=&to=.
func (h *Handler) GetNetRevenue(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}

	net, err := h.Aggregator.NetRevenue(r.Context(), from, to)
	if err != nil {
		if engine.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "Invalid range", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute net revenue", err)
		return
	}

	writeJSON(w, http.StatusOK, NetRevenueDTO{
		From:       from.Format(dayFormat),
		To:         to.Format(dayFormat),
		NetRevenue: money(net),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// PutProduct upserts a catalog entry.
func (h *Handler) PutProduct(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	var req ProductDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	weight, err := parseDecimal(req.Weight, "weight")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	product := sqlite.Product{
		SKU:        sku,
		Weight:     weight,
		MaterialID: engine.SubjectID(req.MaterialID),
	}
	if err := h.Store.SaveProduct(r.Context(), product); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}

	writeJSON(w, http.StatusOK, ProductDTO{
		SKU:        sku,
		Weight:     weight.String(),
		MaterialID: req.MaterialID,
	})
}

// GetProduct returns a catalog entry.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	entry, err := h.Store.Lookup(r.Context(), sku)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get product", err)
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "Product not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, ProductDTO{
		SKU:        sku,
		Weight:     entry.Weight.String(),
		MaterialID: string(entry.MaterialID),
	})
}

// PutOrder upserts an order.
func (h *Handler) PutOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req OrderDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order := sqlite.Order{ID: id, ExternalNumber: req.ExternalNumber, Status: req.Status}
	var err error
	if order.Gross, err = parseOptionalDecimal(req.Gross, "gross"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if order.Tax, err = parseOptionalDecimal(req.Tax, "tax"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if order.LockedInCost, err = parseOptionalDecimal(req.LockedInCost, "locked_in_cost"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if order.SoldAt, err = time.Parse(dayFormat, req.SoldAt); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sold_at format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Store.SaveOrder(r.Context(), order); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// GetOrder returns one order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	order, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get order", err)
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDTO(*order))
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func toOrderDTO(o sqlite.Order) OrderDTO {
	return OrderDTO{
		ID:             o.ID,
		ExternalNumber: o.ExternalNumber,
		Gross:          money(o.Gross),
		Tax:            money(o.Tax),
		LockedInCost:   money(o.LockedInCost),
		Status:         o.Status,
		SoldAt:         o.SoldAt.Format(dayFormat),
	}
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(dayFormat, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := time.Parse(dayFormat, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %w", err)
	}
	return from, to, nil
}

func parseDecimal(raw, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

// parseOptionalDecimal treats an empty string as zero.
func parseOptionalDecimal(raw, name string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(raw, name)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
