/*
Package calendar resolves which price-adjustment rule controls each day.

PURPOSE:
  Staff author two kinds of rules: statutory holidays and custom rules
  (seasons, weekends, month-start promotions, one-off dates). For any date
  range the resolver reports, per day, every rule that applies and the single
  controlling rule chosen by priority.

KEY CONCEPTS IN THIS FILE (rules.go):
  - Adjustment: percentage (price x (1 + v/100)) or fixed (price + v)
  - HolidayRule: a dated holiday, always priority 10
  - CustomRule: a closed union of date_range | periodic | specific_dates,
    priority 1-9

PRIORITY:
  Holidays outrank every custom rule. Among equal priorities the resolver's
  TieBreak decides (see resolver.go).

SEE ALSO:
  - resolver.go: Resolution algorithm
  - repository.go: Loading a rule snapshot from a RuleRepository
  - factory/rules.go: JSON rule definitions and validation
*/
package calendar

import (
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// ADJUSTMENT
// =============================================================================

type AdjustmentType string

const (
	AdjustPercentage AdjustmentType = "percentage"
	AdjustFixed      AdjustmentType = "fixed"
)

func (t AdjustmentType) Valid() bool {
	return t == AdjustPercentage || t == AdjustFixed
}

// Adjustment is applied to a single day's price.
type Adjustment struct {
	Type  AdjustmentType  `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Apply returns price adjusted by a. The result is not rounded.
func (a Adjustment) Apply(price decimal.Decimal) decimal.Decimal {
	switch a.Type {
	case AdjustPercentage:
		return price.Mul(generic.Hundred.Add(a.Value)).Div(generic.Hundred)
	case AdjustFixed:
		return price.Add(a.Value)
	default:
		return price
	}
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// =============================================================================
// HOLIDAY RULES
// =============================================================================

// HolidayPriority outranks every custom rule (custom priorities are 1-9).
const HolidayPriority = 10

type HolidayRule struct {
	ID         generic.RuleID
	Name       string
	Adjustment Adjustment
	StartDate  generic.TimePoint
	EndDate    generic.TimePoint
	Year       int
	Status     Status
}

// AppliesOn reports whether the holiday covers day.
func (h HolidayRule) AppliesOn(day generic.TimePoint) bool {
	if h.Status != StatusActive {
		return false
	}
	return generic.Period{Start: h.StartDate, End: h.EndDate}.Contains(day)
}

// =============================================================================
// CUSTOM RULES
// =============================================================================

type RuleKind string

const (
	KindDateRange     RuleKind = "date_range"
	KindPeriodic      RuleKind = "periodic"
	KindSpecificDates RuleKind = "specific_dates"
)

type PeriodicType string

const (
	PeriodicWeekly  PeriodicType = "weekly"
	PeriodicMonthly PeriodicType = "monthly"
)

// Periodic repeats on ISO weekdays (1=Mon .. 7=Sun) or days of the month.
// ActiveRange, when set, bounds weekly repetition.
type Periodic struct {
	Type        PeriodicType
	Weekdays    []int
	MonthDays   []int
	ActiveRange *generic.Period
}

// CustomRule is a tagged union: Kind selects which of DateRange, Periodic or
// SpecificDates is meaningful. A rule whose payload is missing never applies.
type CustomRule struct {
	ID            generic.RuleID
	Name          string
	Priority      int
	Adjustment    Adjustment
	Status        Status
	Kind          RuleKind
	DateRange     *generic.Period
	Periodic      *Periodic
	SpecificDates []generic.TimePoint
}

// Active treats an empty status as active; only an explicit inactive status
// disables a rule.
func (r CustomRule) Active() bool {
	return r.Status != StatusInactive
}

// AppliesOn reports whether the rule covers day.
func (r CustomRule) AppliesOn(day generic.TimePoint) bool {
	if !r.Active() {
		return false
	}
	switch r.Kind {
	case KindDateRange:
		return r.DateRange != nil && r.DateRange.Contains(day)
	case KindPeriodic:
		if r.Periodic == nil {
			return false
		}
		switch r.Periodic.Type {
		case PeriodicWeekly:
			if r.Periodic.ActiveRange != nil && !r.Periodic.ActiveRange.Contains(day) {
				return false
			}
			return containsInt(r.Periodic.Weekdays, day.ISOWeekday())
		case PeriodicMonthly:
			return containsInt(r.Periodic.MonthDays, day.Day())
		}
		return false
	case KindSpecificDates:
		for _, d := range r.SpecificDates {
			if d.Equal(day) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
