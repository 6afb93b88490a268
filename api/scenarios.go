/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Populates the repository with realistic data so every endpoint can be
  tried without authoring anything first.

AVAILABLE SCENARIOS:
  demo-fleet:  Three stores, 2025 holidays, weekend and summer rules, a
               one-way transfer fee priced by distance, and two vehicles
               with market data
  empty:       Nothing but the default condition grades

HOW SCENARIOS WORK:
 1. Reset the repository (grades survive)
 2. Save stores, rules and fees through the factories, as the API would
 3. Save vehicles and market snapshots

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "demo-fleet"}

NOTE:
  Scenarios reset the repository. Only use in development/demo environments.
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/factory"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/store"
	"github.com/warp/fleet-pricing/strategy"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	ScenarioDemoFleet = "demo-fleet"
	ScenarioEmpty     = "empty"
)

var scenarios = []ScenarioDTO{
	{
		ID:          ScenarioDemoFleet,
		Name:        "Demo Fleet",
		Description: "Beijing, Shanghai and Hangzhou stores with holidays, weekend pricing, a one-way transfer fee and two vehicles",
	},
	{
		ID:          ScenarioEmpty,
		Name:        "Empty",
		Description: "No stores, rules, fees or vehicles",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the repository and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.distance.Cache().Reset()

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID is used by the API and by the server's demo mode.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	var load func(context.Context, store.Repository) error
	switch id {
	case ScenarioDemoFleet:
		load = loadDemoFleet
	case ScenarioEmpty:
		load = func(context.Context, store.Repository) error { return nil }
	default:
		return errUnknownScenario
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.distance.Cache().Reset()
	if err := load(ctx, h.Store); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	h.logger.Sugar().Infow("scenario loaded", "scenario", id)
	return nil
}

// =============================================================================
// DEMO FLEET
// =============================================================================

var demoStores = []store.Store{
	{ID: 1, Name: "Beijing Capital Airport", City: "Beijing", Coordinate: distance.Coordinate{Latitude: 39.9042, Longitude: 116.4074}},
	{ID: 2, Name: "Shanghai Hongqiao", City: "Shanghai", Coordinate: distance.Coordinate{Latitude: 31.2304, Longitude: 121.4737}},
	{ID: 3, Name: "Hangzhou East Station", City: "Hangzhou", Coordinate: distance.Coordinate{Latitude: 30.2741, Longitude: 120.1551}},
}

var demoHolidays = []string{
	`{"name": "New Year's Day", "adjustment_type": "percentage", "adjustment_value": 30,
	  "start_date": "2025-01-01", "end_date": "2025-01-01"}`,
	`{"name": "Labour Day", "adjustment_type": "percentage", "adjustment_value": 40,
	  "start_date": "2025-05-01", "end_date": "2025-05-05"}`,
	`{"name": "National Day", "adjustment_type": "percentage", "adjustment_value": 50,
	  "start_date": "2025-10-01", "end_date": "2025-10-07"}`,
}

var demoCustomRules = []string{
	`{"name": "Weekend", "priority": 3, "adjustment_type": "percentage", "adjustment_value": 20,
	  "rule_type": "periodic", "periodic": {"type": "weekly", "weekdays": [6, 7]}}`,
	`{"name": "Summer season", "priority": 5, "adjustment_type": "percentage", "adjustment_value": 15,
	  "rule_type": "date_range", "date_range": {"start_date": "2025-07-01", "end_date": "2025-08-31"}}`,
	`{"name": "Month-start promotion", "priority": 2, "adjustment_type": "fixed", "adjustment_value": -50,
	  "rule_type": "periodic", "periodic": {"type": "monthly", "month_days": [1]}}`,
}

var demoFees = []string{
	`{"name": "One-way transfer", "category": "special", "price": 0, "owner_type": "multi_party",
	  "calculation_type": "distance", "distance_unit_price": 2,
	  "allocation_rules": [
	    {"party_type": "pickup_store", "percentage": 50},
	    {"party_type": "return_store", "percentage": 50}
	  ]}`,
	`{"name": "GPS navigation", "category": "equipment", "price": 20, "unit": "order", "owner_type": "platform"}`,
	`{"name": "Child seat", "category": "equipment", "price": 30, "unit": "order", "owner_type": "store",
	  "store_id": 1, "store_name": "Beijing Capital Airport"}`,
	`{"name": "Cleaning", "category": "service", "price": 60, "owner_type": "multi_party", "auto_allocate": true}`,
	`{"name": "Airport pickup", "category": "store_special", "price": 80, "owner_type": "store",
	  "is_store_special": true, "store_id": 1, "store_name": "Beijing Capital Airport"}`,
}

func loadDemoFleet(ctx context.Context, repo store.Repository) error {
	for _, s := range demoStores {
		if _, err := repo.SaveStore(ctx, s); err != nil {
			return err
		}
	}

	rules := factory.NewRuleFactory()
	for _, js := range demoHolidays {
		h, err := rules.ParseHolidayRule(js)
		if err != nil {
			return err
		}
		if _, err := repo.SaveHolidayRule(ctx, h); err != nil {
			return err
		}
	}
	for _, js := range demoCustomRules {
		c, err := rules.ParseCustomRule(js)
		if err != nil {
			return err
		}
		if _, err := repo.SaveCustomRule(ctx, c); err != nil {
			return err
		}
	}

	fees := factory.NewFeeFactory()
	for _, js := range demoFees {
		f, err := fees.ParseFee(js)
		if err != nil {
			return err
		}
		if _, err := repo.SaveFee(ctx, f); err != nil {
			return err
		}
	}

	camryPrice, camryKm := 200000.0, 60000.0
	camryDate := generic.MustParseDate("2023-10-01")
	sylphyKm := 150000.0
	vehicles := []strategy.Vehicle{
		{
			ModelID:           "camry",
			Name:              "Toyota Camry 2.0",
			ConditionGrade:    strategy.GradeB,
			PurchasePrice:     &camryPrice,
			CurrentMileage:    &camryKm,
			PurchaseDate:      &camryDate,
			CurrentDailyPrice: 800,
		},
		{
			ModelID:           "sylphy",
			Name:              "Nissan Sylphy",
			ConditionGrade:    strategy.GradeC,
			CurrentMileage:    &sylphyKm,
			CurrentDailyPrice: 600,
		},
	}
	for _, v := range vehicles {
		if _, err := repo.SaveVehicle(ctx, v); err != nil {
			return err
		}
	}

	markets := []strategy.MarketSnapshot{
		{
			ModelID:          "camry",
			AveragePrice:     750,
			CompetitorPrices: []float64{620, 680, 700, 740, 760, 790, 820, 880},
			PriceRange:       strategy.PriceRange{Min: 620, Max: 880},
		},
		{
			ModelID:          "sylphy",
			AveragePrice:     420,
			CompetitorPrices: []float64{380, 400, 430, 470},
			PriceRange:       strategy.PriceRange{Min: 380, Max: 470},
		},
	}
	for _, m := range markets {
		if err := repo.SaveMarketSnapshot(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
