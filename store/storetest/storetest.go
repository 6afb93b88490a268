// Package storetest holds the behaviour every store.Repository must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/store"
	"github.com/warp/fleet-pricing/strategy"
)

// Factory returns an empty repository. It is called once per subtest.
type Factory func(t *testing.T) store.Repository

// Run exercises repo-agnostic behaviour against newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("HolidayRules", func(t *testing.T) { testHolidayRules(t, newRepo(t)) })
	t.Run("CustomRules", func(t *testing.T) { testCustomRules(t, newRepo(t)) })
	t.Run("ResolveFromRepository", func(t *testing.T) { testResolve(t, newRepo(t)) })
	t.Run("Stores", func(t *testing.T) { testStores(t, newRepo(t)) })
	t.Run("Fees", func(t *testing.T) { testFees(t, newRepo(t)) })
	t.Run("Vehicles", func(t *testing.T) { testVehicles(t, newRepo(t)) })
	t.Run("MarketSnapshots", func(t *testing.T) { testMarket(t, newRepo(t)) })
	t.Run("ConditionGrades", func(t *testing.T) { testGrades(t, newRepo(t)) })
}

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func percent(v int64) calendar.Adjustment {
	return calendar.Adjustment{Type: calendar.AdjustPercentage, Value: decimal.NewFromInt(v)}
}

// =============================================================================
// CALENDAR RULES
// =============================================================================

func testHolidayRules(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	// GIVEN: an active National Day holiday and an inactive one in another year
	national, err := repo.SaveHolidayRule(ctx, calendar.HolidayRule{
		Name:       "National Day",
		Adjustment: percent(50),
		StartDate:  date("2025-10-01"),
		EndDate:    date("2025-10-07"),
		Year:       2025,
	})
	require.NoError(t, err)
	assert.NotZero(t, national.ID)
	assert.Equal(t, calendar.StatusActive, national.Status, "empty status defaults to active")

	_, err = repo.SaveHolidayRule(ctx, calendar.HolidayRule{
		Name:       "Spring Festival",
		Adjustment: percent(80),
		StartDate:  date("2026-02-16"),
		EndDate:    date("2026-02-22"),
		Year:       2026,
		Status:     calendar.StatusInactive,
	})
	require.NoError(t, err)

	// WHEN: listing active rules per year
	active, err := repo.ListActiveHolidayRules(ctx, 2025)
	require.NoError(t, err)

	// THEN: only the active 2025 holiday comes back, intact
	require.Len(t, active, 1)
	got := active[0]
	assert.Equal(t, national.ID, got.ID)
	assert.Equal(t, "National Day", got.Name)
	assert.Equal(t, calendar.AdjustPercentage, got.Adjustment.Type)
	assert.True(t, got.Adjustment.Value.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.StartDate.Equal(date("2025-10-01")))
	assert.True(t, got.EndDate.Equal(date("2025-10-07")))

	none, err := repo.ListActiveHolidayRules(ctx, 2026)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := repo.ListHolidayRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Updating keeps the id.
	national.Adjustment = percent(60)
	updated, err := repo.SaveHolidayRule(ctx, national)
	require.NoError(t, err)
	assert.Equal(t, national.ID, updated.ID)
	all, err = repo.ListHolidayRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testCustomRules(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	season := calendar.CustomRule{
		Name:       "Summer season",
		Priority:   5,
		Adjustment: percent(20),
		Kind:       calendar.KindDateRange,
		DateRange:  &generic.Period{Start: date("2025-07-01"), End: date("2025-08-31")},
	}
	weekend := calendar.CustomRule{
		Name:       "Weekend",
		Priority:   3,
		Adjustment: calendar.Adjustment{Type: calendar.AdjustFixed, Value: decimal.NewFromInt(30)},
		Kind:       calendar.KindPeriodic,
		Periodic:   &calendar.Periodic{Type: calendar.PeriodicWeekly, Weekdays: []int{6, 7}},
	}
	retired := calendar.CustomRule{
		Name:          "Launch day",
		Priority:      9,
		Adjustment:    percent(-10),
		Status:        calendar.StatusInactive,
		Kind:          calendar.KindSpecificDates,
		SpecificDates: []generic.TimePoint{date("2025-03-08")},
	}

	var saved []calendar.CustomRule
	for _, r := range []calendar.CustomRule{season, weekend, retired} {
		s, err := repo.SaveCustomRule(ctx, r)
		require.NoError(t, err)
		assert.NotZero(t, s.ID)
		saved = append(saved, s)
	}

	all, err := repo.ListCustomRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.ListActiveCustomRules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	byID := map[generic.RuleID]calendar.CustomRule{}
	for _, r := range active {
		byID[r.ID] = r
	}
	gotSeason := byID[saved[0].ID]
	assert.Equal(t, calendar.KindDateRange, gotSeason.Kind)
	require.NotNil(t, gotSeason.DateRange)
	assert.True(t, gotSeason.DateRange.End.Equal(date("2025-08-31")))
	assert.Equal(t, 5, gotSeason.Priority)

	gotWeekend := byID[saved[1].ID]
	require.NotNil(t, gotWeekend.Periodic)
	assert.Equal(t, []int{6, 7}, gotWeekend.Periodic.Weekdays)
	assert.Equal(t, calendar.AdjustFixed, gotWeekend.Adjustment.Type)
	assert.True(t, gotWeekend.Adjustment.Value.Equal(decimal.NewFromInt(30)))
}

func testResolve(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	// GIVEN: a holiday and an overlapping custom season
	_, err := repo.SaveHolidayRule(ctx, calendar.HolidayRule{
		Name:       "National Day",
		Adjustment: percent(50),
		StartDate:  date("2025-10-01"),
		EndDate:    date("2025-10-07"),
		Year:       2025,
	})
	require.NoError(t, err)
	_, err = repo.SaveCustomRule(ctx, calendar.CustomRule{
		Name:       "Autumn",
		Priority:   5,
		Adjustment: percent(10),
		Kind:       calendar.KindDateRange,
		DateRange:  &generic.Period{Start: date("2025-09-01"), End: date("2025-10-31")},
	})
	require.NoError(t, err)

	// WHEN: resolving across the boundary
	days, err := calendar.NewResolver().ResolveFromRepository(ctx, repo, date("2025-09-30"), date("2025-10-01"))
	require.NoError(t, err)

	// THEN: the custom rule controls Sept 30, the holiday controls Oct 1
	require.Len(t, days, 2)
	assert.False(t, days[0].IsHoliday)
	require.NotNil(t, days[0].Final)
	assert.True(t, days[0].Final.Value.Equal(decimal.NewFromInt(10)))

	assert.True(t, days[1].IsHoliday)
	assert.Equal(t, "National Day", days[1].HolidayName)
	assert.Len(t, days[1].AppliedRules, 2)
	require.NotNil(t, days[1].Final)
	assert.True(t, days[1].Final.Value.Equal(decimal.NewFromInt(50)))
}

// =============================================================================
// STORES
// =============================================================================

func testStores(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	bj, err := repo.SaveStore(ctx, store.Store{
		Name:       "Beijing Capital",
		City:       "Beijing",
		Coordinate: distance.Coordinate{Latitude: 39.9042, Longitude: 116.4074},
	})
	require.NoError(t, err)
	sh, err := repo.SaveStore(ctx, store.Store{
		Name:       "Shanghai Hongqiao",
		Coordinate: distance.Coordinate{Latitude: 31.2304, Longitude: 121.4737},
	})
	require.NoError(t, err)
	assert.NotEqual(t, bj.ID, sh.ID)

	c, err := repo.GetStoreCoordinate(ctx, bj.ID)
	require.NoError(t, err)
	assert.Equal(t, 39.9042, c.Latitude)

	_, err = repo.GetStoreCoordinate(ctx, 9999)
	assert.ErrorIs(t, err, generic.ErrStoreNotFound)

	_, err = repo.SaveStore(ctx, store.Store{
		Name:       "Nowhere",
		Coordinate: distance.Coordinate{Latitude: 91, Longitude: 0},
	})
	assert.ErrorIs(t, err, generic.ErrInvalidCoordinate)

	stores, err := repo.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "Beijing", stores[0].City)

	// The registry snapshot feeds distance pricing.
	reg, err := distance.LoadRegistry(ctx, repo, bj.ID, sh.ID, 9999)
	require.NoError(t, err)
	assert.Len(t, reg, 2)
	r, err := distance.NewService(nil).StoreDistance(bj.ID, sh.ID, reg)
	require.NoError(t, err)
	assert.Equal(t, 1067.31, r.Km)
}

// =============================================================================
// FEES
// =============================================================================

func testFees(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	fee, err := repo.SaveFee(ctx, allocation.FeeDefinition{
		Name:              "One-way transfer",
		Category:          allocation.CategorySpecial,
		Price:             decimal.Zero,
		OwnerType:         allocation.OwnerMultiParty,
		CalculationType:   allocation.CalcDistance,
		DistanceUnitPrice: decimal.NewFromInt(2),
		AllocationRules: []allocation.Rule{
			{PartyType: allocation.PartyPickupStore, Percentage: decimal.NewFromInt(50)},
			{PartyType: allocation.PartyReturnStore, Percentage: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, fee.ID)

	got, err := repo.GetFee(ctx, fee.ID)
	require.NoError(t, err)
	assert.Equal(t, "One-way transfer", got.Name)
	assert.Equal(t, allocation.CalcDistance, got.CalculationType)
	assert.True(t, got.DistanceUnitPrice.Equal(decimal.NewFromInt(2)))
	require.Len(t, got.AllocationRules, 2)
	assert.Equal(t, allocation.PartyReturnStore, got.AllocationRules[1].PartyType)
	assert.True(t, got.AllocationRules[1].Percentage.Equal(decimal.NewFromInt(50)))

	_, err = repo.GetFee(ctx, 9999)
	assert.ErrorIs(t, err, generic.ErrFeeNotFound)

	_, err = repo.SaveFee(ctx, allocation.FeeDefinition{
		Name:      "GPS",
		Category:  allocation.CategoryEquipment,
		Price:     decimal.RequireFromString("15.5"),
		Unit:      "day",
		OwnerType: allocation.OwnerPlatform,
	})
	require.NoError(t, err)

	fees, err := repo.ListFees(ctx)
	require.NoError(t, err)
	require.Len(t, fees, 2)
	assert.True(t, fees[1].Price.Equal(decimal.RequireFromString("15.5")))
}

// =============================================================================
// VEHICLES & MARKET DATA
// =============================================================================

func testVehicles(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	price, mileage := 200000.0, 60000.0
	purchased := date("2023-10-01")
	full, err := repo.SaveVehicle(ctx, strategy.Vehicle{
		ModelID:           "camry",
		Name:              "Camry 2.0",
		ConditionGrade:    strategy.GradeB,
		PurchasePrice:     &price,
		CurrentMileage:    &mileage,
		PurchaseDate:      &purchased,
		CurrentDailyPrice: 800,
	})
	require.NoError(t, err)

	sparse, err := repo.SaveVehicle(ctx, strategy.Vehicle{
		ModelID:        "sylphy",
		ConditionGrade: strategy.GradeC,
	})
	require.NoError(t, err)

	got, err := repo.GetVehicle(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.ModelID("camry"), got.ModelID)
	require.NotNil(t, got.PurchasePrice)
	assert.Equal(t, 200000.0, *got.PurchasePrice)
	require.NotNil(t, got.PurchaseDate)
	assert.True(t, got.PurchaseDate.Equal(purchased))
	assert.Equal(t, 800.0, got.CurrentDailyPrice)

	got, err = repo.GetVehicle(ctx, sparse.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PurchasePrice)
	assert.Nil(t, got.CurrentMileage)
	assert.Nil(t, got.PurchaseDate)

	_, err = repo.GetVehicle(ctx, 9999)
	assert.ErrorIs(t, err, generic.ErrVehicleNotFound)

	all, err := repo.ListVehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testMarket(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	_, err := repo.SnapshotFor(ctx, "camry")
	assert.ErrorIs(t, err, generic.ErrMarketDataUnavailable)

	snap := strategy.MarketSnapshot{
		ModelID:          "camry",
		AveragePrice:     750,
		CompetitorPrices: []float64{650, 700, 760, 800, 850},
		PriceRange:       strategy.PriceRange{Min: 650, Max: 850},
	}
	require.NoError(t, repo.SaveMarketSnapshot(ctx, snap))

	// Mutating the caller's slice does not leak into the repository.
	snap.CompetitorPrices[0] = 1
	got, err := repo.SnapshotFor(ctx, "camry")
	require.NoError(t, err)
	assert.Equal(t, 750.0, got.AveragePrice)
	assert.Equal(t, []float64{650, 700, 760, 800, 850}, got.CompetitorPrices)
	assert.Equal(t, strategy.PriceRange{Min: 650, Max: 850}, got.PriceRange)

	snap.AveragePrice = 780
	require.NoError(t, repo.SaveMarketSnapshot(ctx, snap))
	got, err = repo.SnapshotFor(ctx, "camry")
	require.NoError(t, err)
	assert.Equal(t, 780.0, got.AveragePrice)
}

func testGrades(t *testing.T, repo store.Repository) {
	ctx := context.Background()

	grades, err := repo.ConditionGrades(ctx)
	require.NoError(t, err)
	assert.Equal(t, strategy.DefaultGradeTable(), grades)

	require.NoError(t, repo.SaveConditionGrade(ctx, strategy.GradeA, 1.4))

	// The earlier snapshot is unaffected.
	assert.Equal(t, 1.30, grades[strategy.GradeA])

	grades, err = repo.ConditionGrades(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.4, grades[strategy.GradeA])
	assert.Equal(t, 0.75, grades[strategy.GradeD])
}
