package quote_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/quote"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, money(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

// plainDays returns n consecutive days with no rule applied.
func plainDays(start string, n int) []calendar.ResolvedDay {
	day := generic.MustParseDate(start)
	out := make([]calendar.ResolvedDay, n)
	for i := range out {
		out[i] = calendar.ResolvedDay{Date: day.AddDays(i)}
	}
	return out
}

func TestCompose_TenDayStay(t *testing.T) {
	// GIVEN: 500 per day for 10 days, no calendar rules
	// WHEN: the quote is composed with default options
	// THEN: the 0.90 tier brings 5000 down to 4500
	b, err := quote.Compose(money("500"), plainDays("2025-03-03", 10), quote.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 10, b.DayCount)
	assertMoney(t, "5000", b.Subtotal, "subtotal")
	assertMoney(t, "0.90", b.DiscountRate, "rate")
	assertMoney(t, "4500", b.DiscountedSubtotal, "discounted")
	assertMoney(t, "500", b.DiscountAmount, "discount")
	assertMoney(t, "1500", b.Deposit, "deposit")
	assertMoney(t, "250", b.Insurance, "insurance")
	assertMoney(t, "6250", b.Total, "total")
}

func TestCompose_AdjustmentsApplyPerDay(t *testing.T) {
	days := plainDays("2025-10-01", 3)
	days[0].Final = &calendar.Adjustment{Type: calendar.AdjustPercentage, Value: money("20")}
	days[0].IsHoliday, days[0].HolidayName = true, "National Day"
	days[1].Final = &calendar.Adjustment{Type: calendar.AdjustFixed, Value: money("-100")}

	b, err := quote.Compose(money("500"), days, quote.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, b.Days, 3)
	assertMoney(t, "600", b.Days[0].Price, "day 1")
	assertMoney(t, "400", b.Days[1].Price, "day 2")
	assertMoney(t, "500", b.Days[2].Price, "day 3 is not affected by earlier days")
	assert.True(t, b.Days[0].IsHoliday)
	assert.Equal(t, "National Day", b.Days[0].HolidayName)

	assertMoney(t, "1500", b.Subtotal, "subtotal")
	assertMoney(t, "1425", b.DiscountedSubtotal, "discounted")
	assertMoney(t, "75", b.Insurance, "insurance")
	assertMoney(t, "3000", b.Total, "total")
}

func TestCompose_DayPriceFloorsAtZero(t *testing.T) {
	days := plainDays("2025-10-01", 1)
	days[0].Final = &calendar.Adjustment{Type: calendar.AdjustFixed, Value: money("-600")}

	b, err := quote.Compose(money("500"), days, quote.DefaultOptions())
	require.NoError(t, err)

	assertMoney(t, "0", b.Days[0].Price, "day")
	assertMoney(t, "0", b.Subtotal, "subtotal")
	assertMoney(t, "1500", b.Total, "deposit only")
}

func TestCompose_RejectsNegativeBase(t *testing.T) {
	_, err := quote.Compose(money("-1"), plainDays("2025-10-01", 1), quote.DefaultOptions())
	assert.ErrorIs(t, err, generic.ErrInvalidPrice)
}

func TestCompose_CustomOptions(t *testing.T) {
	opts := quote.Options{DepositMultiplier: money("2"), InsuranceRate: money("0.1")}

	b, err := quote.Compose(money("199.99"), plainDays("2025-10-01", 2), opts)
	require.NoError(t, err)

	assertMoney(t, "399.98", b.Subtotal, "subtotal")
	assertMoney(t, "399.98", b.Deposit, "deposit")
	assertMoney(t, "40", b.Insurance, "insurance")
}

func TestDiscountRate(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{0, "1"}, {1, "1"}, {2, "1"},
		{3, "0.95"}, {6, "0.95"},
		{7, "0.90"}, {29, "0.90"},
		{30, "0.80"}, {90, "0.80"},
	}
	for _, tt := range tests {
		assertMoney(t, tt.want, quote.DiscountRate(tt.days), "rate")
	}
}

type fakeRules struct {
	holidays []calendar.HolidayRule
	customs  []calendar.CustomRule
}

func (f fakeRules) ListActiveHolidayRules(_ context.Context, year int) ([]calendar.HolidayRule, error) {
	var out []calendar.HolidayRule
	for _, h := range f.holidays {
		if h.Year == year {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f fakeRules) ListActiveCustomRules(context.Context) ([]calendar.CustomRule, error) {
	return f.customs, nil
}

func TestService_QuoteResolvesCalendar(t *testing.T) {
	rules := fakeRules{holidays: []calendar.HolidayRule{{
		ID:         1,
		Name:       "National Day",
		Adjustment: calendar.Adjustment{Type: calendar.AdjustPercentage, Value: money("50")},
		StartDate:  generic.MustParseDate("2025-10-01"),
		EndDate:    generic.MustParseDate("2025-10-07"),
		Year:       2025,
		Status:     calendar.StatusActive,
	}}}
	svc := quote.NewService(nil, rules, quote.DefaultOptions())

	b, err := svc.Quote(context.Background(), money("200"),
		generic.MustParseDate("2025-09-30"), generic.MustParseDate("2025-10-02"))
	require.NoError(t, err)

	require.Len(t, b.Days, 3)
	assertMoney(t, "200", b.Days[0].Price, "2025-09-30")
	assertMoney(t, "300", b.Days[1].Price, "2025-10-01")
	assertMoney(t, "300", b.Days[2].Price, "2025-10-02")
	assertMoney(t, "760", b.DiscountedSubtotal, "discounted")
	assertMoney(t, "1400", b.Total, "total")
}

func TestService_QuoteRejectsInvertedRange(t *testing.T) {
	svc := quote.NewService(nil, fakeRules{}, quote.DefaultOptions())

	_, err := svc.Quote(context.Background(), money("200"),
		generic.MustParseDate("2025-10-02"), generic.MustParseDate("2025-10-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
