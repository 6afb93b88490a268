package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/factory"
	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// HOLIDAY RULES
// =============================================================================

func TestParseHolidayRule(t *testing.T) {
	rule, err := factory.NewRuleFactory().ParseHolidayRule(`{
		"id": 1,
		"name": "National Day",
		"adjustment_type": "percentage",
		"adjustment_value": 30,
		"start_date": "2025-10-01",
		"end_date": "2025-10-07"
	}`)
	require.NoError(t, err)

	assert.Equal(t, generic.RuleID(1), rule.ID)
	assert.Equal(t, 2025, rule.Year, "year defaults to the start date's year")
	assert.Equal(t, calendar.StatusActive, rule.Status)
	assert.Equal(t, calendar.AdjustPercentage, rule.Adjustment.Type)
	assert.Equal(t, "30", rule.Adjustment.Value.String())
	assert.True(t, rule.AppliesOn(generic.MustParseDate("2025-10-07")))
}

func TestParseHolidayRule_CrossesNewYear(t *testing.T) {
	rule, err := factory.NewRuleFactory().ParseHolidayRule(`{
		"name": "New Year",
		"adjustment_type": "percentage",
		"adjustment_value": 15,
		"start_date": "2025-12-31",
		"end_date": "2026-01-02",
		"year": 2025
	}`)
	require.NoError(t, err)
	assert.Equal(t, 2025, rule.Year)
}

func TestParseHolidayRule_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing name":    `{"adjustment_type":"fixed","adjustment_value":10,"start_date":"2025-10-01","end_date":"2025-10-02"}`,
		"bad adjustment":  `{"name":"x","adjustment_type":"ratio","adjustment_value":10,"start_date":"2025-10-01","end_date":"2025-10-02"}`,
		"inverted range":  `{"name":"x","adjustment_type":"fixed","adjustment_value":10,"start_date":"2025-10-05","end_date":"2025-10-02"}`,
		"bad date":        `{"name":"x","adjustment_type":"fixed","adjustment_value":10,"start_date":"2025/10/01","end_date":"2025-10-02"}`,
		"bad status":      `{"name":"x","adjustment_type":"fixed","adjustment_value":10,"start_date":"2025-10-01","end_date":"2025-10-02","status":"paused"}`,
		"-100 percent":    `{"name":"x","adjustment_type":"percentage","adjustment_value":-100,"start_date":"2025-10-01","end_date":"2025-10-02"}`,
		"spans two years": `{"name":"x","adjustment_type":"fixed","adjustment_value":10,"start_date":"2024-12-31","end_date":"2026-01-01"}`,
		"end year":        `{"name":"x","adjustment_type":"fixed","adjustment_value":10,"start_date":"2025-12-31","end_date":"2026-01-02","year":2026}`,
		"foreign year":    `{"name":"x","adjustment_type":"fixed","adjustment_value":10,"start_date":"2025-10-01","end_date":"2025-10-02","year":2023}`,
	}
	f := factory.NewRuleFactory()
	for name, js := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseHolidayRule(js)
			assert.ErrorIs(t, err, generic.ErrInvalidRule)
		})
	}
}

// =============================================================================
// CUSTOM RULES
// =============================================================================

func TestParseCustomRule_Kinds(t *testing.T) {
	f := factory.NewRuleFactory()

	t.Run("date range", func(t *testing.T) {
		rule, err := f.ParseCustomRule(`{
			"id": 2, "name": "Spring festival", "priority": 8,
			"adjustment_type": "fixed", "adjustment_value": 120,
			"rule_type": "date_range",
			"date_range": {"start_date": "2025-01-28", "end_date": "2025-02-04"}
		}`)
		require.NoError(t, err)
		assert.Equal(t, calendar.KindDateRange, rule.Kind)
		require.NotNil(t, rule.DateRange)
		assert.Equal(t, 8, rule.DateRange.Len())
	})

	t.Run("weekly with active range", func(t *testing.T) {
		rule, err := f.ParseCustomRule(`{
			"id": 3, "name": "Weekend", "priority": 5,
			"adjustment_type": "percentage", "adjustment_value": 15,
			"rule_type": "periodic",
			"periodic": {"type": "weekly", "weekdays": [6, 7],
			             "start_date": "2025-03-01", "end_date": "2025-05-31"}
		}`)
		require.NoError(t, err)
		require.NotNil(t, rule.Periodic)
		assert.Equal(t, []int{6, 7}, rule.Periodic.Weekdays)
		require.NotNil(t, rule.Periodic.ActiveRange)
		assert.True(t, rule.AppliesOn(generic.MustParseDate("2025-03-01")), "Saturday in range")
		assert.False(t, rule.AppliesOn(generic.MustParseDate("2025-02-01")), "Saturday before range")
	})

	t.Run("monthly", func(t *testing.T) {
		rule, err := f.ParseCustomRule(`{
			"id": 4, "name": "Payday", "priority": 2,
			"adjustment_type": "percentage", "adjustment_value": -5,
			"rule_type": "periodic",
			"periodic": {"type": "monthly", "month_days": [1, 15]}
		}`)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 15}, rule.Periodic.MonthDays)
		assert.Nil(t, rule.Periodic.ActiveRange)
	})

	t.Run("specific dates", func(t *testing.T) {
		rule, err := f.ParseCustomRule(`{
			"id": 5, "name": "Expo", "priority": 9, "status": "inactive",
			"adjustment_type": "fixed", "adjustment_value": 50,
			"rule_type": "specific_dates",
			"specific_dates": ["2025-03-12", "2025-03-13"]
		}`)
		require.NoError(t, err)
		assert.Len(t, rule.SpecificDates, 2)
		assert.Equal(t, calendar.StatusInactive, rule.Status)
	})
}

func TestParseCustomRule_Invalid(t *testing.T) {
	base := `"name":"x","adjustment_type":"fixed","adjustment_value":1,`
	tests := map[string]string{
		"priority 0":       `{` + base + `"priority":0,"rule_type":"specific_dates","specific_dates":["2025-03-12"]}`,
		"priority 10":      `{` + base + `"priority":10,"rule_type":"specific_dates","specific_dates":["2025-03-12"]}`,
		"weekday 0":        `{` + base + `"priority":1,"rule_type":"periodic","periodic":{"type":"weekly","weekdays":[0]}}`,
		"weekday 8":        `{` + base + `"priority":1,"rule_type":"periodic","periodic":{"type":"weekly","weekdays":[8]}}`,
		"month day 32":     `{` + base + `"priority":1,"rule_type":"periodic","periodic":{"type":"monthly","month_days":[32]}}`,
		"no weekdays":      `{` + base + `"priority":1,"rule_type":"periodic","periodic":{"type":"weekly"}}`,
		"unknown periodic": `{` + base + `"priority":1,"rule_type":"periodic","periodic":{"type":"yearly","month_days":[1]}}`,
		"missing payload":  `{` + base + `"priority":1,"rule_type":"date_range"}`,
		"unknown kind":     `{` + base + `"priority":1,"rule_type":"lunar"}`,
		"empty dates":      `{` + base + `"priority":1,"rule_type":"specific_dates","specific_dates":[]}`,
		"bad date":         `{` + base + `"priority":1,"rule_type":"specific_dates","specific_dates":["12/03/2025"]}`,
	}
	f := factory.NewRuleFactory()
	for name, js := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.ParseCustomRule(js)
			assert.ErrorIs(t, err, generic.ErrInvalidRule)

			var ve *factory.ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestParseCustomRule_MalformedJSON(t *testing.T) {
	_, err := factory.NewRuleFactory().ParseCustomRule(`{"name":`)
	require.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrInvalidRule)
}

func TestCustomRule_JSONRoundTripPreservesBehaviour(t *testing.T) {
	f := factory.NewRuleFactory()
	rule, err := f.ParseCustomRule(`{
		"id": 3, "name": "Weekend", "priority": 5,
		"adjustment_type": "percentage", "adjustment_value": 12.5,
		"rule_type": "periodic",
		"periodic": {"type": "weekly", "weekdays": [6, 7],
		             "start_date": "2025-03-01", "end_date": "2025-05-31"}
	}`)
	require.NoError(t, err)

	again, err := f.FromCustomJSON(f.ToCustomJSON(rule))
	require.NoError(t, err)
	assert.Equal(t, rule.Periodic.Weekdays, again.Periodic.Weekdays)
	assert.True(t, rule.Adjustment.Value.Equal(again.Adjustment.Value))
	assert.Equal(t, rule.Periodic.ActiveRange.String(), again.Periodic.ActiveRange.String())
}

// =============================================================================
// FEES
// =============================================================================

func TestParseFee_DistanceFee(t *testing.T) {
	fee, err := factory.NewFeeFactory().ParseFee(`{
		"id": 20,
		"name": "One-way relocation",
		"category": "special",
		"owner_type": "multi_party",
		"calculation_type": "distance",
		"distance_unit_price": 2,
		"allocation_rules": [
			{"party_type": "pickup_store", "percentage": 50},
			{"party_type": "return_store", "percentage": 50}
		]
	}`)
	require.NoError(t, err)

	assert.Equal(t, allocation.CategorySpecial, fee.Category)
	assert.Equal(t, allocation.CalcDistance, fee.CalculationType)
	assert.Equal(t, "2", fee.DistanceUnitPrice.String())
	require.Len(t, fee.AllocationRules, 2)
	assert.Equal(t, allocation.PartyReturnStore, fee.AllocationRules[1].PartyType)
}

func TestParseFee_StoreSpecial(t *testing.T) {
	fee, err := factory.NewFeeFactory().ParseFee(`{
		"id": 10, "name": "Car wash", "category": "store_special",
		"price": 300, "owner_type": "store", "is_store_special": true, "store_id": 7
	}`)
	require.NoError(t, err)
	assert.True(t, fee.IsStoreSpecial)
	assert.Equal(t, generic.StoreID(7), fee.StoreID)
	assert.Equal(t, allocation.CalcFixed, fee.CalculationType)
	assert.Equal(t, allocation.StrategySplitEvenly, fee.AllocationStrategy)
}

func TestParseFee_UnknownCategoryIsOther(t *testing.T) {
	fee, err := factory.NewFeeFactory().ParseFee(`{"id": 1, "category": "parking", "price": 5, "owner_type": "platform"}`)
	require.NoError(t, err)
	assert.Equal(t, allocation.CategoryOther, fee.Category)
}

func TestParseFee_PriceRoundedToCents(t *testing.T) {
	fee, err := factory.NewFeeFactory().ParseFee(`{"id": 1, "category": "service", "price": 19.995, "owner_type": "platform"}`)
	require.NoError(t, err)
	assert.Equal(t, "20", fee.Price.String())
}

func TestParseFee_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr error
	}{
		{"negative price", `{"price": -1, "owner_type": "platform"}`, generic.ErrInvalidRule},
		{"unknown owner", `{"price": 1, "owner_type": "franchise"}`, generic.ErrInvalidRule},
		{"unknown calculation", `{"price": 1, "owner_type": "platform", "calculation_type": "hourly"}`, generic.ErrInvalidRule},
		{"distance without unit price", `{"category": "special", "owner_type": "multi_party", "calculation_type": "distance",
			"allocation_rules": [{"party_type": "platform", "percentage": 100}]}`, generic.ErrInvalidRule},
		{"store special without store", `{"category": "store_special", "price": 1, "owner_type": "store"}`, generic.ErrInvalidRule},
		{"service store without id", `{"price": 1, "owner_type": "multi_party", "auto_allocate": true, "allocation_strategy": "custom",
			"allocation_rules": [{"party_type": "service_store", "percentage": 100}]}`, generic.ErrInvalidRule},
		{"unknown party", `{"price": 1, "owner_type": "multi_party", "auto_allocate": true, "allocation_strategy": "custom",
			"allocation_rules": [{"party_type": "driver", "percentage": 100}]}`, generic.ErrInvalidRule},
		{"rules sum to 99", `{"price": 1, "owner_type": "multi_party", "auto_allocate": true, "allocation_strategy": "custom",
			"allocation_rules": [{"party_type": "pickup_store", "percentage": 49}, {"party_type": "return_store", "percentage": 50}]}`,
			generic.ErrInvalidAllocationRules},
		{"distance rules sum to 101", `{"category": "special", "owner_type": "multi_party", "calculation_type": "distance", "distance_unit_price": 1,
			"allocation_rules": [{"party_type": "pickup_store", "percentage": 51}, {"party_type": "return_store", "percentage": 50}]}`,
			generic.ErrInvalidAllocationRules},
	}
	f := factory.NewFeeFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseFee(tt.json)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFee_JSONRoundTrip(t *testing.T) {
	f := factory.NewFeeFactory()
	fee, err := f.ParseFee(`{
		"id": 40, "name": "Cleaning", "category": "service", "price": 100.01,
		"owner_type": "multi_party", "auto_allocate": true, "allocation_strategy": "custom",
		"allocation_rules": [
			{"party_type": "platform", "percentage": 20},
			{"party_type": "service_store", "party_id": 9, "party_name": "Depot", "percentage": 80}
		]
	}`)
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(fee))
	require.NoError(t, err)
	assert.True(t, fee.Price.Equal(again.Price))
	assert.Equal(t, fee.AllocationStrategy, again.AllocationStrategy)
	require.Len(t, again.AllocationRules, 2)
	assert.Equal(t, generic.StoreID(9), again.AllocationRules[1].PartyID)
}
