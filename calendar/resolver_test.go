package calendar_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) generic.TimePoint {
	return generic.MustParseDate(s)
}

func pct(v int64) calendar.Adjustment {
	return calendar.Adjustment{Type: calendar.AdjustPercentage, Value: decimal.NewFromInt(v)}
}

func period(start, end string) *generic.Period {
	return &generic.Period{Start: date(start), End: date(end)}
}

func nationalDay() calendar.HolidayRule {
	return calendar.HolidayRule{
		ID:         7,
		Name:       "National Day",
		Adjustment: pct(40),
		StartDate:  date("2025-10-01"),
		EndDate:    date("2025-10-07"),
		Year:       2025,
		Status:     calendar.StatusActive,
	}
}

func weekendRule() calendar.CustomRule {
	return calendar.CustomRule{
		ID:         1,
		Name:       "Weekend",
		Priority:   5,
		Adjustment: pct(10),
		Status:     calendar.StatusActive,
		Kind:       calendar.KindPeriodic,
		Periodic: &calendar.Periodic{
			Type:        calendar.PeriodicWeekly,
			Weekdays:    []int{6, 7},
			ActiveRange: period("2025-01-01", "2025-12-31"),
		},
	}
}

func summerRule() calendar.CustomRule {
	return calendar.CustomRule{
		ID:         2,
		Name:       "Summer peak",
		Priority:   7,
		Adjustment: pct(25),
		Status:     calendar.StatusActive,
		Kind:       calendar.KindDateRange,
		DateRange:  period("2025-07-01", "2025-08-31"),
	}
}

func monthStartRule() calendar.CustomRule {
	return calendar.CustomRule{
		ID:         4,
		Name:       "Month start",
		Priority:   3,
		Adjustment: pct(-5),
		Status:     calendar.StatusActive,
		Kind:       calendar.KindPeriodic,
		Periodic: &calendar.Periodic{
			Type:      calendar.PeriodicMonthly,
			MonthDays: []int{1, 2, 3},
		},
	}
}

func resolveOne(t *testing.T, r *calendar.Resolver, day string, holidays []calendar.HolidayRule, customs []calendar.CustomRule) calendar.ResolvedDay {
	t.Helper()
	days, err := r.Resolve(date(day), date(day), holidays, customs)
	require.NoError(t, err)
	require.Len(t, days, 1)
	return days[0]
}

// =============================================================================
// PRIORITY TESTS
// =============================================================================

func TestResolve_HolidayBeatsCustomRule(t *testing.T) {
	// GIVEN: National Day (+40%, priority 10) and a weekend rule (+10%, priority 5)
	// WHEN: resolving Saturday 2025-10-04
	// THEN: both rules are recorded and the holiday controls
	r := calendar.NewResolver()
	day := resolveOne(t, r, "2025-10-04",
		[]calendar.HolidayRule{nationalDay()},
		[]calendar.CustomRule{weekendRule()})

	assert.True(t, day.IsHoliday)
	assert.Equal(t, "National Day", day.HolidayName)
	assert.Equal(t, []generic.RuleID{7, 1}, day.AppliedRuleIDs)
	require.NotNil(t, day.Final)
	assert.Equal(t, calendar.AdjustPercentage, day.Final.Type)
	assert.True(t, decimal.NewFromInt(40).Equal(day.Final.Value))
}

func TestResolve_HigherCustomPriorityWins(t *testing.T) {
	r := calendar.NewResolver()
	day := resolveOne(t, r, "2025-07-05", nil,
		[]calendar.CustomRule{weekendRule(), summerRule()})

	assert.False(t, day.IsHoliday)
	assert.Equal(t, []generic.RuleID{2, 1}, day.AppliedRuleIDs)
	require.NotNil(t, day.Final)
	assert.True(t, decimal.NewFromInt(25).Equal(day.Final.Value))
}

func TestResolve_NoRuleDay(t *testing.T) {
	r := calendar.NewResolver()
	day := resolveOne(t, r, "2025-03-12",
		[]calendar.HolidayRule{nationalDay()},
		[]calendar.CustomRule{weekendRule(), monthStartRule()})

	assert.False(t, day.IsHoliday)
	assert.Empty(t, day.AppliedRuleIDs)
	assert.Nil(t, day.Final)
}

func TestResolve_TieBreakLowestID(t *testing.T) {
	a := summerRule()
	a.ID = 9
	b := summerRule()
	b.ID = 3
	b.Adjustment = pct(15)

	r := calendar.NewResolver()
	day := resolveOne(t, r, "2025-07-10", nil, []calendar.CustomRule{a, b})

	assert.Equal(t, []generic.RuleID{3, 9}, day.AppliedRuleIDs)
	assert.True(t, decimal.NewFromInt(15).Equal(day.Final.Value))
}

func TestResolve_TieBreakPrefersHolidayOnEqualPriority(t *testing.T) {
	custom := summerRule()
	custom.ID = 1
	custom.Priority = calendar.HolidayPriority
	custom.DateRange = period("2025-10-01", "2025-10-31")

	r := calendar.NewResolver()
	day := resolveOne(t, r, "2025-10-02", []calendar.HolidayRule{nationalDay()}, []calendar.CustomRule{custom})

	assert.Equal(t, calendar.SourceHoliday, day.AppliedRules[0].Source)
	assert.True(t, decimal.NewFromInt(40).Equal(day.Final.Value))
}

func TestResolve_TieBreakReject(t *testing.T) {
	a := summerRule()
	b := summerRule()
	b.ID = 3

	r := calendar.NewResolver(calendar.WithTieBreak(calendar.TieBreakReject))
	_, err := r.Resolve(date("2025-07-01"), date("2025-07-02"), nil, []calendar.CustomRule{a, b})

	assert.ErrorIs(t, err, generic.ErrUnresolvedRuleConflict)
	var conflict *calendar.RuleConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "2025-07-01", conflict.Date.String())
	assert.Equal(t, 7, conflict.Priority)
	assert.Len(t, conflict.Rules, 2)
}

func TestResolve_RejectAllowsDistinctPriorities(t *testing.T) {
	r := calendar.NewResolver(calendar.WithTieBreak(calendar.TieBreakReject))
	day := resolveOne(t, r, "2025-07-05", nil, []calendar.CustomRule{weekendRule(), summerRule()})
	assert.True(t, decimal.NewFromInt(25).Equal(day.Final.Value))
}

// =============================================================================
// RULE KIND TESTS
// =============================================================================

func TestResolve_WeeklyRespectsActiveRange(t *testing.T) {
	rule := weekendRule()
	rule.Periodic.ActiveRange = period("2025-01-01", "2025-01-31")

	r := calendar.NewResolver()
	// 2025-02-01 is a Saturday outside the active range.
	day := resolveOne(t, r, "2025-02-01", nil, []calendar.CustomRule{rule})
	assert.Nil(t, day.Final)

	day = resolveOne(t, r, "2025-01-04", nil, []calendar.CustomRule{rule})
	assert.NotNil(t, day.Final)
}

func TestResolve_WeeklyWithoutRangeAlwaysRepeats(t *testing.T) {
	rule := weekendRule()
	rule.Periodic.ActiveRange = nil

	r := calendar.NewResolver()
	day := resolveOne(t, r, "2030-06-02", nil, []calendar.CustomRule{rule})
	assert.NotNil(t, day.Final, "2030-06-02 is a Sunday")
}

func TestResolve_MonthlyDays(t *testing.T) {
	r := calendar.NewResolver()
	days, err := r.Resolve(date("2025-03-01"), date("2025-03-04"), nil, []calendar.CustomRule{monthStartRule()})
	require.NoError(t, err)

	require.Len(t, days, 4)
	for _, d := range days[:3] {
		require.NotNil(t, d.Final, d.Date.String())
		assert.True(t, decimal.NewFromInt(-5).Equal(d.Final.Value))
	}
	assert.Nil(t, days[3].Final)
}

func TestResolve_SpecificDates(t *testing.T) {
	rule := calendar.CustomRule{
		ID:            5,
		Name:          "Festival",
		Priority:      8,
		Adjustment:    calendar.Adjustment{Type: calendar.AdjustFixed, Value: decimal.NewFromInt(200)},
		Kind:          calendar.KindSpecificDates,
		SpecificDates: []generic.TimePoint{date("2025-05-20"), date("2025-05-22"), date("2025-05-20")},
	}

	r := calendar.NewResolver()
	days, err := r.Resolve(date("2025-05-20"), date("2025-05-22"), nil, []calendar.CustomRule{rule})
	require.NoError(t, err)

	assert.Equal(t, calendar.AdjustFixed, days[0].Final.Type)
	assert.Equal(t, []generic.RuleID{5}, days[0].AppliedRuleIDs, "duplicate dates apply once")
	assert.Nil(t, days[1].Final)
	assert.NotNil(t, days[2].Final)
}

func TestResolve_InactiveRulesIgnored(t *testing.T) {
	holiday := nationalDay()
	holiday.Status = calendar.StatusInactive
	custom := weekendRule()
	custom.Status = calendar.StatusInactive

	r := calendar.NewResolver()
	day := resolveOne(t, r, "2025-10-04", []calendar.HolidayRule{holiday}, []calendar.CustomRule{custom})
	assert.False(t, day.IsHoliday)
	assert.Nil(t, day.Final)
}

func TestResolve_RuleWithoutPayloadNeverApplies(t *testing.T) {
	rule := summerRule()
	rule.DateRange = nil

	r := calendar.NewResolver()
	day := resolveOne(t, r, "2025-07-10", nil, []calendar.CustomRule{rule})
	assert.Nil(t, day.Final)
}

// =============================================================================
// RANGE TESTS
// =============================================================================

func TestResolve_InclusiveRange(t *testing.T) {
	r := calendar.NewResolver()
	days, err := r.Resolve(date("2025-12-30"), date("2026-01-02"), nil, nil)
	require.NoError(t, err)

	require.Len(t, days, 4)
	assert.Equal(t, "2025-12-30", days[0].Date.String())
	assert.Equal(t, "2026-01-02", days[3].Date.String())
}

func TestResolve_EndBeforeStart(t *testing.T) {
	r := calendar.NewResolver()
	_, err := r.Resolve(date("2025-02-02"), date("2025-02-01"), nil, nil)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestResolve_RangeCap(t *testing.T) {
	// GIVEN: the default cap of one year and a day
	r := calendar.NewResolver()

	// THEN: a leap year fits, one more day does not
	days, err := r.Resolve(date("2024-01-01"), date("2024-12-31"), nil, nil)
	require.NoError(t, err)
	assert.Len(t, days, 366)

	_, err = r.Resolve(date("2024-01-01"), date("2025-01-01"), nil, nil)
	var tooLong *calendar.PeriodTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 367, tooLong.Days)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestResolve_RangeCapConfigurable(t *testing.T) {
	r := calendar.NewResolver(calendar.WithMaxRangeDays(7))
	_, err := r.Resolve(date("2025-03-01"), date("2025-03-08"), nil, nil)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	r = calendar.NewResolver(calendar.WithMaxRangeDays(0))
	days, err := r.Resolve(date("2024-01-01"), date("2026-12-31"), nil, nil)
	require.NoError(t, err)
	assert.Len(t, days, 366+365+365)
}

func TestSummarize(t *testing.T) {
	r := calendar.NewResolver()
	days, err := r.Resolve(date("2025-10-01"), date("2025-10-12"),
		[]calendar.HolidayRule{nationalDay()},
		[]calendar.CustomRule{weekendRule()})
	require.NoError(t, err)

	// Oct 1-7 holiday, Oct 11-12 weekend, Oct 8-10 plain.
	assert.Equal(t, calendar.Summary{TotalDays: 12, HolidayDays: 7, CustomRuleDays: 2, NormalDays: 3}, calendar.Summarize(days))
}

func TestAdjustment_Apply(t *testing.T) {
	price := decimal.NewFromInt(500)
	assert.True(t, decimal.NewFromInt(550).Equal(pct(10).Apply(price)))
	assert.True(t, decimal.NewFromInt(475).Equal(pct(-5).Apply(price)))

	fixed := calendar.Adjustment{Type: calendar.AdjustFixed, Value: decimal.NewFromInt(100)}
	assert.True(t, decimal.NewFromInt(600).Equal(fixed.Apply(price)))
}

// =============================================================================
// REPOSITORY TESTS
// =============================================================================

type fakeRepo struct {
	holidays map[int][]calendar.HolidayRule
	customs  []calendar.CustomRule
	years    []int
}

func (f *fakeRepo) ListActiveHolidayRules(_ context.Context, year int) ([]calendar.HolidayRule, error) {
	f.years = append(f.years, year)
	return f.holidays[year], nil
}

func (f *fakeRepo) ListActiveCustomRules(_ context.Context) ([]calendar.CustomRule, error) {
	return f.customs, nil
}

func TestResolveFromRepository_SeesCrossYearHoliday(t *testing.T) {
	// GIVEN: a 2025 holiday running Dec 31 - Jan 2
	// WHEN: resolving January 2026
	// THEN: the holiday is found by looking at the previous year too
	newYear := calendar.HolidayRule{
		ID:         1,
		Name:       "New Year",
		Adjustment: pct(15),
		StartDate:  date("2025-12-31"),
		EndDate:    date("2026-01-02"),
		Year:       2025,
		Status:     calendar.StatusActive,
	}
	repo := &fakeRepo{holidays: map[int][]calendar.HolidayRule{2025: {newYear}}}

	r := calendar.NewResolver()
	days, err := r.ResolveFromRepository(context.Background(), repo, date("2026-01-01"), date("2026-01-03"))
	require.NoError(t, err)

	assert.Equal(t, []int{2025, 2026}, repo.years)
	assert.True(t, days[0].IsHoliday)
	assert.True(t, days[1].IsHoliday)
	assert.False(t, days[2].IsHoliday)
}

func TestResolveFromRepository_OversizedRangeSkipsRepository(t *testing.T) {
	repo := &fakeRepo{}
	r := calendar.NewResolver()

	_, err := r.ResolveFromRepository(context.Background(), repo, date("0001-01-01"), date("9999-12-31"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	assert.Empty(t, repo.years, "no holiday query for a rejected range")
}

func TestParseTieBreak(t *testing.T) {
	tb, ok := calendar.ParseTieBreak("")
	assert.True(t, ok)
	assert.Equal(t, calendar.TieBreakLowestID, tb)

	tb, ok = calendar.ParseTieBreak("reject")
	assert.True(t, ok)
	assert.Equal(t, calendar.TieBreakReject, tb)

	_, ok = calendar.ParseTieBreak("random")
	assert.False(t, ok)
}
