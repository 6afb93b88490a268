/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:

	Checks each scenario loads through the factories and that the demo
	fleet drives every pricing endpoint end to end.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/factory"
)

func TestLoadScenario_DemoFleet(t *testing.T) {
	// GIVEN: an empty server
	ts := newTestServer(t)

	// WHEN: the demo fleet is loaded
	w := ts.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": ScenarioDemoFleet})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// THEN: stores, rules, fees and vehicles are there
	ctx := context.Background()
	stores, err := ts.store.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 3)

	holidays, err := ts.store.ListHolidayRules(ctx)
	require.NoError(t, err)
	assert.Len(t, holidays, len(demoHolidays))

	customs, err := ts.store.ListCustomRules(ctx)
	require.NoError(t, err)
	assert.Len(t, customs, len(demoCustomRules))

	vehicles, err := ts.store.ListVehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, vehicles, 2)

	w = ts.do(http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, ScenarioDemoFleet, decodeBody[ScenarioDTO](t, w).ID)
}

func TestLoadScenario_DemoFleetAllocatesEveryFee(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.handler.LoadScenarioByID(context.Background(), ScenarioDemoFleet))

	w := ts.do(http.MethodGet, "/api/fees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fees := decodeBody[[]factory.FeeJSON](t, w)
	require.Len(t, fees, len(demoFees))

	ids := make([]int64, 0, len(fees))
	for _, f := range fees {
		ids = append(ids, f.ID)
	}
	w = ts.do(http.MethodPost, "/api/fees/allocate", map[string]any{
		"order":   map[string]any{"id": "demo", "pickup_store_id": 1, "return_store_id": 2},
		"fee_ids": ids,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[AllocateResponse](t, w)

	dispatch := make([]allocation.Dispatch, 0, len(resp.Items))
	for _, item := range resp.Items {
		dispatch = append(dispatch, item.Dispatch)
		sum := decimal.Zero
		for _, a := range item.Allocations {
			sum = sum.Add(a.Amount)
		}
		assert.True(t, item.TotalAmount.Equal(sum), "%s: allocations must sum to the total", item.Name)
	}
	assert.Equal(t, []allocation.Dispatch{
		allocation.DispatchDistance,
		allocation.DispatchPlatform,
		allocation.DispatchSingleStore,
		allocation.DispatchAutoAllocate,
		allocation.DispatchStoreSpecial,
	}, dispatch)
	assert.True(t, resp.TotalAmount.Equal(resp.AllocatedSum))
}

func TestLoadScenario_ResetAndUnknown(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.handler.LoadScenarioByID(context.Background(), ScenarioDemoFleet))

	w := ts.do(http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stores, err := ts.store.ListStores(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stores)

	w = ts.do(http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null", trimNewline(w.Body.String()))

	w = ts.do(http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListScenarios(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]ScenarioDTO](t, w), len(scenarios))
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}
