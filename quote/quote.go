/*
Package quote prices a rental stay.

PURPOSE:
  Turns a base daily price and the resolved calendar for the stay into the
  amounts shown to a customer: per-day prices, duration discount, deposit,
  insurance and total.

RULES:
  - Each day's adjustment applies to that day only; nothing compounds.
  - A day never prices below zero.
  - Duration discount: 30+ days 0.80, 7+ days 0.90, 3+ days 0.95.
  - Insurance is charged on the undiscounted subtotal.

SEE ALSO:
  - calendar/resolver.go: Produces the ResolvedDay input
  - config/config.go: pricing.deposit_multiplier, pricing.insurance_rate
*/
package quote

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// OPTIONS
// =============================================================================

type Options struct {
	DepositMultiplier decimal.Decimal
	InsuranceRate     decimal.Decimal
}

func DefaultOptions() Options {
	return Options{
		DepositMultiplier: decimal.NewFromInt(3),
		InsuranceRate:     decimal.RequireFromString("0.05"),
	}
}

type discountTier struct {
	minDays int
	rate    decimal.Decimal
}

var discountTiers = []discountTier{
	{30, decimal.RequireFromString("0.80")},
	{7, decimal.RequireFromString("0.90")},
	{3, decimal.RequireFromString("0.95")},
}

// DiscountRate returns the multiplier for a stay of n days.
func DiscountRate(n int) decimal.Decimal {
	for _, tier := range discountTiers {
		if n >= tier.minDays {
			return tier.rate
		}
	}
	return decimal.NewFromInt(1)
}

// =============================================================================
// BREAKDOWN
// =============================================================================

type DayPrice struct {
	Date        generic.TimePoint    `json:"date"`
	Price       decimal.Decimal      `json:"price"`
	IsHoliday   bool                 `json:"is_holiday"`
	HolidayName string               `json:"holiday_name,omitempty"`
	Adjustment  *calendar.Adjustment `json:"adjustment,omitempty"`
}

type Breakdown struct {
	DailyBasePrice     decimal.Decimal `json:"daily_base_price"`
	Days               []DayPrice      `json:"days"`
	DayCount           int             `json:"day_count"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountRate       decimal.Decimal `json:"discount_rate"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountedSubtotal decimal.Decimal `json:"discounted_subtotal"`
	Deposit            decimal.Decimal `json:"deposit"`
	Insurance          decimal.Decimal `json:"insurance"`
	Total              decimal.Decimal `json:"total"`
}

// Compose prices a stay from its resolved days.
func Compose(base decimal.Decimal, days []calendar.ResolvedDay, opts Options) (Breakdown, error) {
	if base.IsNegative() {
		return Breakdown{}, fmt.Errorf("daily base price %s: %w", base, generic.ErrInvalidPrice)
	}

	b := Breakdown{
		DailyBasePrice: base,
		Days:           make([]DayPrice, 0, len(days)),
		DayCount:       len(days),
		Subtotal:       decimal.Zero,
	}
	for _, d := range days {
		price := base
		if d.Final != nil {
			price = d.Final.Apply(base)
		}
		if price.IsNegative() {
			price = decimal.Zero
		}
		price = generic.RoundMoney(price)

		b.Days = append(b.Days, DayPrice{
			Date:        d.Date,
			Price:       price,
			IsHoliday:   d.IsHoliday,
			HolidayName: d.HolidayName,
			Adjustment:  d.Final,
		})
		b.Subtotal = b.Subtotal.Add(price)
	}

	b.DiscountRate = DiscountRate(b.DayCount)
	b.DiscountedSubtotal = generic.RoundMoney(b.Subtotal.Mul(b.DiscountRate))
	b.DiscountAmount = b.Subtotal.Sub(b.DiscountedSubtotal)
	b.Deposit = generic.RoundMoney(base.Mul(opts.DepositMultiplier))
	b.Insurance = generic.RoundMoney(b.Subtotal.Mul(opts.InsuranceRate))
	b.Total = b.DiscountedSubtotal.Add(b.Deposit).Add(b.Insurance)
	return b, nil
}

// =============================================================================
// SERVICE
// =============================================================================

// Service resolves the calendar from a rule repository and composes the quote.
type Service struct {
	resolver *calendar.Resolver
	rules    calendar.RuleRepository
	opts     Options
}

func NewService(resolver *calendar.Resolver, rules calendar.RuleRepository, opts Options) *Service {
	if resolver == nil {
		resolver = calendar.NewResolver()
	}
	return &Service{resolver: resolver, rules: rules, opts: opts}
}

// Quote prices the stay from start to end inclusive.
func (s *Service) Quote(ctx context.Context, base decimal.Decimal, start, end generic.TimePoint) (Breakdown, error) {
	days, err := s.resolver.ResolveFromRepository(ctx, s.rules, start, end)
	if err != nil {
		return Breakdown{}, err
	}
	return Compose(base, days, s.opts)
}
