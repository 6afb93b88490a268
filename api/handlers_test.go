/*
handlers_test.go - HTTP tests for the pricing API

Tests run the full chi router over an in-memory SQLite store.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/metrics"
	"github.com/warp/fleet-pricing/store"
	"github.com/warp/fleet-pricing/store/sqlite"
	"github.com/warp/fleet-pricing/strategy"
)

// =============================================================================
// FIXTURES
// =============================================================================

var today = time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	store   *sqlite.Store
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts = append([]Option{WithClock(func() time.Time { return today })}, opts...)
	h := NewHandler(s, opts...)
	return &testServer{t: t, store: s, handler: h, router: NewRouter(h, RouterOptions{})}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (ts *testServer) seedStores() {
	ts.t.Helper()
	ctx := context.Background()
	for _, s := range []store.Store{
		{ID: 1, Name: "Beijing", Coordinate: distance.Coordinate{Latitude: 39.9042, Longitude: 116.4074}},
		{ID: 2, Name: "Shanghai", Coordinate: distance.Coordinate{Latitude: 31.2304, Longitude: 121.4737}},
	} {
		_, err := ts.store.SaveStore(ctx, s)
		require.NoError(ts.t, err)
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

const transferFee = `{
	"name": "One-way transfer", "category": "special", "price": 0, "owner_type": "multi_party",
	"calculation_type": "distance", "distance_unit_price": 2,
	"allocation_rules": [
		{"party_type": "pickup_store", "percentage": 50},
		{"party_type": "return_store", "percentage": 50}
	]
}`

// =============================================================================
// HEALTH & ERRORS
// =============================================================================

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/quotes", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decodeBody[ErrorResponse](t, w).Error)
}

// =============================================================================
// FEE ALLOCATION
// =============================================================================

func TestAllocateFees_DistanceSplit(t *testing.T) {
	// GIVEN: Beijing and Shanghai stores and a stored 2/km transfer fee
	ts := newTestServer(t)
	ts.seedStores()
	w := ts.do(http.MethodPost, "/api/fees", transferFee)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	feeID := decodeBody[struct {
		ID int64 `json:"id"`
	}](t, w).ID

	// WHEN: an order picks up in Beijing and returns in Shanghai
	w = ts.do(http.MethodPost, "/api/fees/allocate", map[string]any{
		"order":   map[string]any{"id": "ord-1", "pickup_store_id": 1, "pickup_store_name": "Beijing", "return_store_id": 2, "return_store_name": "Shanghai"},
		"fee_ids": []int64{feeID},
	})

	// THEN: 1067.31 km at 2/km is split evenly between the stores
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[AllocateResponse](t, w)
	assert.Equal(t, "ord-1", resp.OrderID)
	require.Len(t, resp.Items, 1)
	item := resp.Items[0]
	assert.Equal(t, "distance", string(item.Dispatch))
	assert.Equal(t, 1067.31, item.DistanceKm)
	assertMoney(t, "2134.62", item.TotalAmount)
	require.Len(t, item.Allocations, 2)
	assertMoney(t, "1067.31", item.Allocations[0].Amount)
	assertMoney(t, "1067.31", item.Allocations[1].Amount)
	assert.Equal(t, generic.StoreID(2), item.Allocations[1].PartyID)
	assertMoney(t, "2134.62", resp.TotalAmount)
	assertMoney(t, "2134.62", resp.AllocatedSum)
	assert.Len(t, resp.PartyTotals, 2)
}

func TestAllocateFees_InvalidRulesIs422(t *testing.T) {
	ts := newTestServer(t)
	ts.seedStores()

	w := ts.do(http.MethodPost, "/api/fees/allocate", `{
		"order": {"id": "ord-2", "pickup_store_id": 1, "return_store_id": 2},
		"fees": [{
			"name": "Transfer", "category": "special", "owner_type": "multi_party",
			"calculation_type": "distance", "distance_unit_price": 2,
			"allocation_rules": [
				{"party_type": "pickup_store", "percentage": 60},
				{"party_type": "return_store", "percentage": 30}
			]
		}]
	}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeBody[ErrorResponse](t, w)
	assert.Equal(t, "invalid_allocation_rules", resp.Code)
	assert.NotEmpty(t, resp.Details)
}

func TestAllocateFees_UnknownStoreIs404(t *testing.T) {
	ts := newTestServer(t)
	ts.seedStores()

	w := ts.do(http.MethodPost, "/api/fees/allocate", `{
		"order": {"id": "ord-3", "pickup_store_id": 1, "return_store_id": 99},
		"fees": [`+transferFee+`]
	}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "store_not_found", decodeBody[ErrorResponse](t, w).Code)
}

func TestAllocateFees_UnknownFeeIs404(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/fees/allocate", `{"order": {"id": "o"}, "fee_ids": [42]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "fee_not_found", decodeBody[ErrorResponse](t, w).Code)
}

// =============================================================================
// DISTANCE
// =============================================================================

func TestStoreDistance(t *testing.T) {
	ts := newTestServer(t)
	ts.seedStores()

	w := ts.do(http.MethodPost, "/api/distance/stores", map[string]any{"from_store_id": 1, "to_store_id": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[StoreDistanceDTO](t, w)
	assert.Equal(t, 1067.31, got.Km)
	assert.Equal(t, "1067.31 km", got.HumanReadable)

	w = ts.do(http.MethodPost, "/api/distance/matrix", map[string]any{"store_ids": []int{2, 1}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	matrix := decodeBody[MatrixResponse](t, w)
	require.Len(t, matrix.Distances, 2)
	assert.Equal(t, generic.StoreID(1), matrix.Distances[0].FromStoreID)
	assert.Equal(t, matrix.Distances[0].Km, matrix.Distances[1].Km)
}

// =============================================================================
// CALENDAR & QUOTES
// =============================================================================

func TestQuote_TenDayStay(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/quotes", map[string]any{
		"base_daily_price": 500,
		"start_date":       "2025-03-03",
		"end_date":         "2025-03-12",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	q := decodeBody[QuoteDTO](t, w)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, 10, q.DayCount)
	assertMoney(t, "4500", q.DiscountedSubtotal)
	assertMoney(t, "6250", q.Total)
}

func TestQuote_InvertedRangeIs400(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/quotes", map[string]any{
		"base_daily_price": 500,
		"start_date":       "2025-03-12",
		"end_date":         "2025-03-03",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_period", decodeBody[ErrorResponse](t, w).Code)
}

func TestOversizedRangeIs400(t *testing.T) {
	tests := []struct {
		name string
		path string
		body any
	}{
		{"calendar", "/api/calendar/resolve", DateRangeRequest{StartDate: "0001-01-01", EndDate: "9999-12-31"}},
		{"quote", "/api/quotes", map[string]any{
			"base_daily_price": 500,
			"start_date":       "2025-01-01",
			"end_date":         "2026-01-02",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_period", decodeBody[ErrorResponse](t, w).Code)
		})
	}
}

func TestCalendar_RangeCapFromOptions(t *testing.T) {
	ts := newTestServer(t, WithCalendarOptions(calendar.WithMaxRangeDays(7)))

	w := ts.do(http.MethodPost, "/api/calendar/resolve", DateRangeRequest{StartDate: "2025-03-01", EndDate: "2025-03-07"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decodeBody[CalendarResponse](t, w).Days, 7)

	w = ts.do(http.MethodPost, "/api/calendar/resolve", DateRangeRequest{StartDate: "2025-03-01", EndDate: "2025-03-08"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalendar_AuthoredRulesResolve(t *testing.T) {
	// GIVEN: a holiday and a weekend rule authored through the API
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/rules/holidays", `{
		"name": "National Day", "adjustment_type": "percentage", "adjustment_value": 50,
		"start_date": "2025-10-01", "end_date": "2025-10-07"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(http.MethodPost, "/api/rules/custom", `{
		"name": "Weekend", "priority": 3, "adjustment_type": "percentage", "adjustment_value": 20,
		"rule_type": "periodic", "periodic": {"type": "weekly", "weekdays": [6, 7]}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// WHEN: resolving Sept 26 (Fri) .. Oct 1 (Wed)
	w = ts.do(http.MethodPost, "/api/calendar/resolve", DateRangeRequest{StartDate: "2025-09-26", EndDate: "2025-10-01"})

	// THEN: the weekend days carry the custom rule, Oct 1 the holiday
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[CalendarResponse](t, w)
	require.Len(t, resp.Days, 6)
	assert.Nil(t, resp.Days[0].Final)
	require.NotNil(t, resp.Days[1].Final)
	assert.True(t, resp.Days[1].Final.Value.Equal(decimal.NewFromInt(20)))
	assert.True(t, resp.Days[5].IsHoliday)
	assert.Equal(t, "National Day", resp.Days[5].HolidayName)
	assert.Equal(t, 1, resp.Summary.HolidayDays)
	assert.Equal(t, 2, resp.Summary.CustomRuleDays)
	assert.Equal(t, 3, resp.Summary.NormalDays)

	w = ts.do(http.MethodGet, "/api/rules/custom", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, w), 1)
}

func TestCreateCustomRule_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"priority 10", `{"name": "x", "priority": 10, "adjustment_type": "fixed", "adjustment_value": 1,
			"rule_type": "specific_dates", "specific_dates": ["2025-01-01"]}`},
		{"weekday 8", `{"name": "x", "priority": 1, "adjustment_type": "fixed", "adjustment_value": 1,
			"rule_type": "periodic", "periodic": {"type": "weekly", "weekdays": [8]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			w := ts.do(http.MethodPost, "/api/rules/custom", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_rule", decodeBody[ErrorResponse](t, w).Code)
		})
	}
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

func seedCamry(t *testing.T, ts *testServer) generic.VehicleID {
	t.Helper()
	ctx := context.Background()
	price, km := 300000.0, 60000.0
	bought := generic.MustParseDate("2023-10-01")
	v, err := ts.store.SaveVehicle(ctx, strategy.Vehicle{
		ModelID:           "camry",
		ConditionGrade:    strategy.GradeB,
		PurchasePrice:     &price,
		CurrentMileage:    &km,
		PurchaseDate:      &bought,
		CurrentDailyPrice: 800,
	})
	require.NoError(t, err)
	require.NoError(t, ts.store.SaveMarketSnapshot(ctx, strategy.MarketSnapshot{
		ModelID:          "camry",
		AveragePrice:     750,
		CompetitorPrices: []float64{900, 600, 760, 650, 850, 700, 800, 720},
		PriceRange:       strategy.PriceRange{Min: 600, Max: 900},
	}))
	return v.ID
}

func TestVehicleSuggestions(t *testing.T) {
	ts := newTestServer(t)
	id := seedCamry(t, ts)

	w := ts.do(http.MethodGet, "/api/vehicles/"+id.String()+"/suggestions", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[SuggestionsResponse](t, w)
	require.NotNil(t, resp.Market)
	require.Len(t, resp.Suggestions, 4)
	prices := make([]int, 0, 4)
	for _, s := range resp.Suggestions {
		prices = append(prices, s.SuggestedPrice)
	}
	assert.Equal(t, []int{862, 1082, 760, 897}, prices)
}

func TestVehicleSuggestions_NotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/vehicles/77/suggestions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/vehicles/abc/suggestions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchSuggestions_UnknownVehicleIsItemError(t *testing.T) {
	ts := newTestServer(t)
	id := seedCamry(t, ts)

	w := ts.do(http.MethodPost, "/api/suggestions/batch", BatchRequest{VehicleIDs: []generic.VehicleID{id, 404}})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeBody[strategy.BatchResult](t, w)
	require.Len(t, result.Items, 2)
	require.NotNil(t, result.Items[0].Suggestion)
	assert.Equal(t, 897, result.Items[0].Suggestion.SuggestedPrice)
	assert.NotEmpty(t, result.Items[1].Error)
	assert.Equal(t, 1, result.Summary.VehicleCount)
}

func TestConditionGrades(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPut, "/api/condition-grades/A", map[string]float64{"multiplier": 1.4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/condition-grades", nil)
	grades := decodeBody[[]ConditionGradeDTO](t, w)
	require.Len(t, grades, 4)
	assert.Equal(t, ConditionGradeDTO{Grade: strategy.GradeA, Multiplier: 1.4}, grades[0])

	w = ts.do(http.MethodPut, "/api/condition-grades/A", map[string]float64{"multiplier": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, WithMetrics(metrics.New()))
	ts.seedStores()

	ts.do(http.MethodPost, "/api/distance/stores", map[string]any{"from_store_id": 1, "to_store_id": 2})
	w := ts.do(http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `fleetpricing_distance_cache_total{result="miss"} 1`)
	assert.Contains(t, body, `route="/api/distance/stores"`)
}

func TestMetricsEndpoint_AbsentWithoutRecorder(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
