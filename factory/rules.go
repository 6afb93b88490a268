/*
Package factory converts JSON rule and fee definitions to Go values.

PURPOSE:
  Pricing staff author calendar rules and extra fees in the admin console.
  Those definitions arrive as JSON (HTTP bodies, config_json columns) and the
  factory turns them into calendar and allocation types, rejecting anything
  the engines could not price.

JSON SCHEMA (custom rule):
  {
    "id": 3,
    "name": "Weekend surcharge",
    "priority": 5,
    "adjustment_type": "percentage",
    "adjustment_value": 15,
    "status": "active",
    "rule_type": "periodic",
    "periodic": {"type": "weekly", "weekdays": [6, 7],
                 "start_date": "2025-03-01", "end_date": "2025-05-31"}
  }

  rule_type date_range reads "date_range": {"start_date", "end_date"};
  rule_type specific_dates reads "specific_dates": ["2025-03-12", ...].

VALIDATION:
  - priority 1-9 (holidays sit above at 10)
  - weekdays 1-7 (Monday is 1), month days 1-31
  - adjustment_type percentage or fixed
  - dates are YYYY-MM-DD and ranges are not inverted

Failures wrap generic.ErrInvalidRule.

SEE ALSO:
  - calendar/rules.go: Target types
  - fees.go: Extra fee definitions
  - store/sqlite: Persists the JSON produced by ToCustomJSON
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// ERRORS
// =============================================================================

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return generic.ErrInvalidRule
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// HolidayRuleJSON is the JSON representation of a holiday rule.
type HolidayRuleJSON struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	AdjustmentType  string  `json:"adjustment_type"`
	AdjustmentValue float64 `json:"adjustment_value"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Year            int     `json:"year,omitempty"` // Defaults to the start date's year
	Status          string  `json:"status,omitempty"`
}

// CustomRuleJSON is the JSON representation of a custom rule.
type CustomRuleJSON struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Priority        int            `json:"priority"`
	AdjustmentType  string         `json:"adjustment_type"`
	AdjustmentValue float64        `json:"adjustment_value"`
	Status          string         `json:"status,omitempty"`
	RuleType        string         `json:"rule_type"`
	DateRange       *DateRangeJSON `json:"date_range,omitempty"`
	Periodic        *PeriodicJSON  `json:"periodic,omitempty"`
	SpecificDates   []string       `json:"specific_dates,omitempty"`
}

type DateRangeJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// PeriodicJSON configures a repeating rule. StartDate/EndDate bound weekly
// rules only.
type PeriodicJSON struct {
	Type      string `json:"type"` // weekly, monthly
	Weekdays  []int  `json:"weekdays,omitempty"`
	MonthDays []int  `json:"month_days,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to calendar rules.
type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseHolidayRule parses a JSON string into a HolidayRule.
func (f *RuleFactory) ParseHolidayRule(jsonStr string) (calendar.HolidayRule, error) {
	var hj HolidayRuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &hj); err != nil {
		return calendar.HolidayRule{}, fmt.Errorf("failed to parse holiday rule JSON: %w", err)
	}
	return f.FromHolidayJSON(hj)
}

// FromHolidayJSON validates and converts a HolidayRuleJSON.
func (f *RuleFactory) FromHolidayJSON(hj HolidayRuleJSON) (calendar.HolidayRule, error) {
	if hj.Name == "" {
		return calendar.HolidayRule{}, invalid("name", "required")
	}
	adj, err := parseAdjustment(hj.AdjustmentType, hj.AdjustmentValue)
	if err != nil {
		return calendar.HolidayRule{}, err
	}
	period, err := parseRange("start_date", hj.StartDate, hj.EndDate)
	if err != nil {
		return calendar.HolidayRule{}, err
	}
	status, err := parseStatus(hj.Status)
	if err != nil {
		return calendar.HolidayRule{}, err
	}

	// Holidays are listed by year; the resolver looks back one year only.
	if period.End.Year()-period.Start.Year() > 1 {
		return calendar.HolidayRule{}, invalid("end_date", "holiday may cross at most one year boundary")
	}
	year := hj.Year
	if year == 0 {
		year = period.Start.Year()
	}
	if year != period.Start.Year() {
		return calendar.HolidayRule{}, invalid("year", "%d is not the start year of %s", year, period)
	}
	return calendar.HolidayRule{
		ID:         generic.RuleID(hj.ID),
		Name:       hj.Name,
		Adjustment: adj,
		StartDate:  period.Start,
		EndDate:    period.End,
		Year:       year,
		Status:     status,
	}, nil
}

// ParseCustomRule parses a JSON string into a CustomRule.
func (f *RuleFactory) ParseCustomRule(jsonStr string) (calendar.CustomRule, error) {
	var cj CustomRuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return calendar.CustomRule{}, fmt.Errorf("failed to parse custom rule JSON: %w", err)
	}
	return f.FromCustomJSON(cj)
}

// FromCustomJSON validates and converts a CustomRuleJSON.
func (f *RuleFactory) FromCustomJSON(cj CustomRuleJSON) (calendar.CustomRule, error) {
	if cj.Name == "" {
		return calendar.CustomRule{}, invalid("name", "required")
	}
	if cj.Priority < 1 || cj.Priority >= calendar.HolidayPriority {
		return calendar.CustomRule{}, invalid("priority", "must be between 1 and %d, got %d", calendar.HolidayPriority-1, cj.Priority)
	}
	adj, err := parseAdjustment(cj.AdjustmentType, cj.AdjustmentValue)
	if err != nil {
		return calendar.CustomRule{}, err
	}
	status, err := parseStatus(cj.Status)
	if err != nil {
		return calendar.CustomRule{}, err
	}

	rule := calendar.CustomRule{
		ID:         generic.RuleID(cj.ID),
		Name:       cj.Name,
		Priority:   cj.Priority,
		Adjustment: adj,
		Status:     status,
		Kind:       calendar.RuleKind(cj.RuleType),
	}

	switch rule.Kind {
	case calendar.KindDateRange:
		if cj.DateRange == nil {
			return calendar.CustomRule{}, invalid("date_range", "required for rule_type %s", cj.RuleType)
		}
		period, err := parseRange("date_range", cj.DateRange.StartDate, cj.DateRange.EndDate)
		if err != nil {
			return calendar.CustomRule{}, err
		}
		rule.DateRange = &period

	case calendar.KindPeriodic:
		if cj.Periodic == nil {
			return calendar.CustomRule{}, invalid("periodic", "required for rule_type %s", cj.RuleType)
		}
		periodic, err := parsePeriodic(*cj.Periodic)
		if err != nil {
			return calendar.CustomRule{}, err
		}
		rule.Periodic = periodic

	case calendar.KindSpecificDates:
		if len(cj.SpecificDates) == 0 {
			return calendar.CustomRule{}, invalid("specific_dates", "at least one date required")
		}
		for i, s := range cj.SpecificDates {
			d, err := generic.ParseDate(s)
			if err != nil {
				return calendar.CustomRule{}, invalid(fmt.Sprintf("specific_dates[%d]", i), "invalid date %q", s)
			}
			rule.SpecificDates = append(rule.SpecificDates, d)
		}

	default:
		return calendar.CustomRule{}, invalid("rule_type", "unknown rule type %q", cj.RuleType)
	}

	return rule, nil
}

// ToHolidayJSON converts a HolidayRule to HolidayRuleJSON.
func (f *RuleFactory) ToHolidayJSON(h calendar.HolidayRule) HolidayRuleJSON {
	v, _ := h.Adjustment.Value.Float64()
	return HolidayRuleJSON{
		ID:              int64(h.ID),
		Name:            h.Name,
		AdjustmentType:  string(h.Adjustment.Type),
		AdjustmentValue: v,
		StartDate:       h.StartDate.String(),
		EndDate:         h.EndDate.String(),
		Year:            h.Year,
		Status:          string(h.Status),
	}
}

// ToCustomJSON converts a CustomRule to CustomRuleJSON.
func (f *RuleFactory) ToCustomJSON(r calendar.CustomRule) CustomRuleJSON {
	v, _ := r.Adjustment.Value.Float64()
	cj := CustomRuleJSON{
		ID:              int64(r.ID),
		Name:            r.Name,
		Priority:        r.Priority,
		AdjustmentType:  string(r.Adjustment.Type),
		AdjustmentValue: v,
		Status:          string(r.Status),
		RuleType:        string(r.Kind),
	}

	if r.DateRange != nil {
		cj.DateRange = &DateRangeJSON{StartDate: r.DateRange.Start.String(), EndDate: r.DateRange.End.String()}
	}
	if r.Periodic != nil {
		pj := &PeriodicJSON{
			Type:      string(r.Periodic.Type),
			Weekdays:  r.Periodic.Weekdays,
			MonthDays: r.Periodic.MonthDays,
		}
		if r.Periodic.ActiveRange != nil {
			pj.StartDate = r.Periodic.ActiveRange.Start.String()
			pj.EndDate = r.Periodic.ActiveRange.End.String()
		}
		cj.Periodic = pj
	}
	for _, d := range r.SpecificDates {
		cj.SpecificDates = append(cj.SpecificDates, d.String())
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseAdjustment(kind string, value float64) (calendar.Adjustment, error) {
	t := calendar.AdjustmentType(kind)
	if !t.Valid() {
		return calendar.Adjustment{}, invalid("adjustment_type", "must be percentage or fixed, got %q", kind)
	}
	if t == calendar.AdjustPercentage && value <= -100 {
		return calendar.Adjustment{}, invalid("adjustment_value", "percentage must be above -100, got %v", value)
	}
	return calendar.Adjustment{Type: t, Value: decimal.NewFromFloat(value)}, nil
}

func parseStatus(s string) (calendar.Status, error) {
	switch calendar.Status(s) {
	case "", calendar.StatusActive:
		return calendar.StatusActive, nil
	case calendar.StatusInactive:
		return calendar.StatusInactive, nil
	default:
		return "", invalid("status", "must be active or inactive, got %q", s)
	}
}

func parseRange(field, start, end string) (generic.Period, error) {
	s, err := generic.ParseDate(start)
	if err != nil {
		return generic.Period{}, invalid(field, "invalid start date %q", start)
	}
	e, err := generic.ParseDate(end)
	if err != nil {
		return generic.Period{}, invalid(field, "invalid end date %q", end)
	}
	p, err := generic.NewPeriod(s, e)
	if err != nil {
		return generic.Period{}, invalid(field, "end %s is before start %s", end, start)
	}
	return p, nil
}

func parsePeriodic(pj PeriodicJSON) (*calendar.Periodic, error) {
	p := &calendar.Periodic{Type: calendar.PeriodicType(pj.Type)}

	switch p.Type {
	case calendar.PeriodicWeekly:
		if len(pj.Weekdays) == 0 {
			return nil, invalid("periodic.weekdays", "at least one weekday required")
		}
		for _, d := range pj.Weekdays {
			if d < 1 || d > 7 {
				return nil, invalid("periodic.weekdays", "weekday %d out of range 1-7", d)
			}
		}
		p.Weekdays = pj.Weekdays
		if pj.StartDate != "" || pj.EndDate != "" {
			period, err := parseRange("periodic", pj.StartDate, pj.EndDate)
			if err != nil {
				return nil, err
			}
			p.ActiveRange = &period
		}

	case calendar.PeriodicMonthly:
		if len(pj.MonthDays) == 0 {
			return nil, invalid("periodic.month_days", "at least one day required")
		}
		for _, d := range pj.MonthDays {
			if d < 1 || d > 31 {
				return nil, invalid("periodic.month_days", "day %d out of range 1-31", d)
			}
		}
		p.MonthDays = pj.MonthDays

	default:
		return nil, invalid("periodic.type", "must be weekly or monthly, got %q", pj.Type)
	}
	return p, nil
}
