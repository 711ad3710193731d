package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pricing-engine/api"
	"github.com/warp/pricing-engine/pricing"
	"github.com/warp/pricing-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := api.NewHandler(store, pricing.DefaultFeeModel())
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// =============================================================================
// COST ENDPOINTS
// =============================================================================

func TestAPI_SetAndGetCost(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/costs/silver-925", map[string]string{
		"cost_per_unit":  "0.80",
		"reason":         "initial quote",
		"effective_date": "2026-01-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	decodeJSON(t, resp, &created)
	assert.Equal(t, "0.80", created["cost_per_unit"])
	assert.Equal(t, true, created["is_current"])

	resp, err := http.Get(server.URL + "/api/costs/silver-925")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var current map[string]any
	decodeJSON(t, resp, &current)
	assert.Equal(t, "0.80", current["cost_per_unit"])
}

func TestAPI_NegativeCostRejected(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/costs/silver-925", map[string]string{
		"cost_per_unit": "-1.00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CurrentCostNotFound(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/costs/never-seen")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CostAsOf(t *testing.T) {
	server := newTestServer(t)

	postJSON(t, server.URL+"/api/costs/silver-925", map[string]string{
		"cost_per_unit": "0.80", "effective_date": "2026-01-01",
	}).Body.Close()
	postJSON(t, server.URL+"/api/costs/silver-925", map[string]string{
		"cost_per_unit": "0.85", "effective_date": "2026-01-15",
	}).Body.Close()

	resp, err := http.Get(server.URL + "/api/costs/silver-925/as-of?date=2026-01-14")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec map[string]any
	decodeJSON(t, resp, &rec)
	assert.Equal(t, "0.80", rec["cost_per_unit"])
}

// =============================================================================
// PRICING ENDPOINTS
// =============================================================================

func TestAPI_Quote(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/pricing/quote", map[string]string{
		"weight":                 "40",
		"sell_rate_per_unit":     "3.00",
		"material_cost_per_unit": "32.00",
		"postage_cost":           "3.50",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var quote struct {
		ListPrice string `json:"list_price"`
		Fees      struct {
			TotalFees string `json:"total_fees"`
		} `json:"fees"`
	}
	decodeJSON(t, resp, &quote)
	assert.Equal(t, "120.99", quote.ListPrice)
	assert.NotEmpty(t, quote.Fees.TotalFees)
}

func TestAPI_QuoteUnachievableMargin(t *testing.T) {
	server := newTestServer(t)
	margin := "80"

	resp := postJSON(t, server.URL+"/api/pricing/quote", map[string]any{
		"weight":                  "40",
		"margin_modifier_percent": &margin,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAPI_ReversePrice(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/pricing/reverse", map[string]string{
		"fixed_costs":           "10.00",
		"target_margin_percent": "50",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	decodeJSON(t, resp, &out)
	assert.Equal(t, "40.99", out["price"])
}

// =============================================================================
// STATEMENT ENDPOINTS
// =============================================================================

func importBody() map[string]any {
	return map[string]any{
		"source":     "etsy",
		"period_key": "2026-01",
		"rows": []map[string]string{
			{
				"Date": "15 Jan, 2026", "Type": "Fee", "Title": "Listing fee",
				"Info": "", "Amount": "-£0.17", "Fees & Taxes": "-£0.17", "Net": "-£0.17",
			},
			{
				"Date": "16 Jan, 2026", "Type": "Sale", "Title": "Order #123",
				"Info": "", "Amount": "£100.00", "Fees & Taxes": "--", "Net": "£93.50",
			},
		},
	}
}

func TestAPI_ImportThenLocked(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/statements/import", importBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
	}
	decodeJSON(t, resp, &result)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)

	// Same period again: locked.
	resp = postJSON(t, server.URL+"/api/statements/import", importBody())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
}

func TestAPI_UnlockThenReimport(t *testing.T) {
	server := newTestServer(t)

	postJSON(t, server.URL+"/api/statements/import", importBody()).Body.Close()

	resp := postJSON(t, server.URL+"/api/statements/unlock", map[string]string{
		"source": "etsy", "period_key": "2026-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/statements/import", importBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Inserted   int `json:"inserted"`
		Duplicates int `json:"duplicates"`
	}
	decodeJSON(t, resp, &result)
	assert.Equal(t, 0, result.Inserted, "row hashes dedupe on re-import")
	assert.Equal(t, 1, result.Duplicates)
}

func TestAPI_ImportCSV(t *testing.T) {
	server := newTestServer(t)

	csv := "Date,Type,Title,Info,Amount,Fees & Taxes,Net\n" +
		"\"15 Jan, 2026\",Fee,Listing fee,,-£0.17,-£0.17,-£0.17\n"

	resp, err := http.Post(
		server.URL+"/api/statements/import/csv?source=etsy&period=2026-01",
		"text/csv", bytes.NewReader([]byte(csv)),
	)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Inserted int `json:"inserted"`
	}
	decodeJSON(t, resp, &result)
	assert.Equal(t, 1, result.Inserted)
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

func TestAPI_CategoryReport(t *testing.T) {
	server := newTestServer(t)

	postJSON(t, server.URL+"/api/statements/import", importBody()).Body.Close()

	resp, err := http.Get(server.URL + "/api/reports/categories?from=2026-01-01&to=2026-01-31")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report struct {
		Listing struct {
			Charged string `json:"charged"`
		} `json:"listing"`
		NetFees string `json:"net_fees"`
	}
	decodeJSON(t, resp, &report)
	assert.Equal(t, "0.17", report.Listing.Charged)
	assert.Equal(t, "0.17", report.NetFees)
}

func TestAPI_InvalidRangeRejected(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/reports/categories?from=bogus&to=2026-01-31")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

func TestAPI_ProductAndResolve(t *testing.T) {
	server := newTestServer(t)

	// Material rate plus a cataloged product.
	postJSON(t, server.URL+"/api/costs/silver-925", map[string]string{
		"cost_per_unit": "0.80", "effective_date": "2026-01-01",
	}).Body.Close()

	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/products/ring-001",
		bytes.NewReader([]byte(`{"weight":"10","material_id":"silver-925"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/api/resolve?sku=ring-001&sale_date=2026-02-01")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var resolved struct {
		Cost   string `json:"cost"`
		Source string `json:"source"`
	}
	decodeJSON(t, resp, &resolved)
	assert.Equal(t, "8.00", resolved.Cost)
	assert.Equal(t, "material_rate", resolved.Source)
}
