package calendar

import (
	"sort"

	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// RESOLVED DAY
// =============================================================================

type RuleSource string

const (
	SourceHoliday RuleSource = "holiday"
	SourceCustom  RuleSource = "custom"
)

// AppliedRule is one rule that matched a day, kept for audit and display.
type AppliedRule struct {
	ID         generic.RuleID `json:"rule_id"`
	Name       string         `json:"rule_name"`
	Source     RuleSource     `json:"rule_type"`
	Priority   int            `json:"priority"`
	Adjustment Adjustment     `json:"adjustment"`
}

// ResolvedDay is a date annotated with its controlling rule. Final is nil when
// no rule applies, which prices the day unchanged.
type ResolvedDay struct {
	Date           generic.TimePoint
	IsHoliday      bool
	HolidayName    string
	AppliedRuleIDs []generic.RuleID
	AppliedRules   []AppliedRule
	Final          *Adjustment
}

// =============================================================================
// TIE BREAK
// =============================================================================

// TieBreak decides between rules sharing the highest priority on a day.
type TieBreak string

const (
	// TieBreakLowestID prefers holiday rules over custom rules, then the
	// lowest rule id.
	TieBreakLowestID TieBreak = "lowest_id"

	// TieBreakReject fails the resolution with a RuleConflictError.
	TieBreakReject TieBreak = "reject"
)

func ParseTieBreak(s string) (TieBreak, bool) {
	switch TieBreak(s) {
	case TieBreakLowestID, "":
		return TieBreakLowestID, true
	case TieBreakReject:
		return TieBreakReject, true
	}
	return "", false
}

// =============================================================================
// RESOLVER
// =============================================================================

// DefaultMaxRangeDays bounds a single resolution to a year and a day.
const DefaultMaxRangeDays = 366

type Resolver struct {
	tieBreak TieBreak
	maxDays  int
}

type Option func(*Resolver)

func WithTieBreak(tb TieBreak) Option {
	return func(r *Resolver) { r.tieBreak = tb }
}

// WithMaxRangeDays caps the number of days one call may resolve. n <= 0
// removes the cap.
func WithMaxRangeDays(n int) Option {
	return func(r *Resolver) { r.maxDays = n }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{tieBreak: TieBreakLowestID, maxDays: DefaultMaxRangeDays}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns one ResolvedDay per date in [start, end]. The rule slices
// are read as a snapshot and never modified.
func (r *Resolver) Resolve(start, end generic.TimePoint, holidays []HolidayRule, customs []CustomRule) ([]ResolvedDay, error) {
	period, err := r.checkPeriod(start, end)
	if err != nil {
		return nil, err
	}

	idx := newRuleIndex(holidays, customs)
	days := make([]ResolvedDay, 0, period.Len())
	for _, day := range period.Days() {
		resolved, err := r.resolveDay(day, idx)
		if err != nil {
			return nil, err
		}
		days = append(days, resolved)
	}
	return days, nil
}

// checkPeriod validates [start, end] against ordering and the range cap.
func (r *Resolver) checkPeriod(start, end generic.TimePoint) (generic.Period, error) {
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		return generic.Period{}, err
	}
	if r.maxDays > 0 && period.Len() > r.maxDays {
		return generic.Period{}, &PeriodTooLongError{Days: period.Len(), MaxDays: r.maxDays}
	}
	return period, nil
}

func (r *Resolver) resolveDay(day generic.TimePoint, idx *ruleIndex) (ResolvedDay, error) {
	applied := idx.applicable(day)
	sort.SliceStable(applied, func(i, j int) bool { return outranks(applied[i], applied[j]) })

	resolved := ResolvedDay{Date: day}
	if len(applied) == 0 {
		return resolved, nil
	}

	if r.tieBreak == TieBreakReject && len(applied) > 1 && applied[0].Priority == applied[1].Priority {
		tied := []AppliedRule{applied[0]}
		for _, a := range applied[1:] {
			if a.Priority == applied[0].Priority {
				tied = append(tied, a)
			}
		}
		return ResolvedDay{}, &RuleConflictError{Date: day, Priority: applied[0].Priority, Rules: tied}
	}

	resolved.AppliedRules = applied
	resolved.AppliedRuleIDs = make([]generic.RuleID, len(applied))
	for i, a := range applied {
		resolved.AppliedRuleIDs[i] = a.ID
		if a.Source == SourceHoliday && !resolved.IsHoliday {
			resolved.IsHoliday = true
			resolved.HolidayName = a.Name
		}
	}
	final := applied[0].Adjustment
	resolved.Final = &final
	return resolved, nil
}

// outranks orders by priority desc, then holiday before custom, then id asc.
func outranks(a, b AppliedRule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Source != b.Source {
		return a.Source == SourceHoliday
	}
	return a.ID < b.ID
}

// =============================================================================
// RULE INDEX - periodic rules bucketed once per call
// =============================================================================

type ruleIndex struct {
	holidays []HolidayRule
	ranged   []CustomRule
	weekly   [8][]CustomRule
	monthly  [32][]CustomRule
	specific map[string][]CustomRule
}

func newRuleIndex(holidays []HolidayRule, customs []CustomRule) *ruleIndex {
	idx := &ruleIndex{specific: make(map[string][]CustomRule)}
	for _, h := range holidays {
		if h.Status == StatusActive {
			idx.holidays = append(idx.holidays, h)
		}
	}
	for _, c := range customs {
		if !c.Active() {
			continue
		}
		switch c.Kind {
		case KindDateRange:
			if c.DateRange != nil {
				idx.ranged = append(idx.ranged, c)
			}
		case KindPeriodic:
			if c.Periodic == nil {
				continue
			}
			switch c.Periodic.Type {
			case PeriodicWeekly:
				for _, wd := range uniqueInts(c.Periodic.Weekdays) {
					if wd >= 1 && wd <= 7 {
						idx.weekly[wd] = append(idx.weekly[wd], c)
					}
				}
			case PeriodicMonthly:
				for _, md := range uniqueInts(c.Periodic.MonthDays) {
					if md >= 1 && md <= 31 {
						idx.monthly[md] = append(idx.monthly[md], c)
					}
				}
			}
		case KindSpecificDates:
			seen := make(map[string]bool, len(c.SpecificDates))
			for _, d := range c.SpecificDates {
				key := d.String()
				if seen[key] {
					continue
				}
				seen[key] = true
				idx.specific[key] = append(idx.specific[key], c)
			}
		}
	}
	return idx
}

func (idx *ruleIndex) applicable(day generic.TimePoint) []AppliedRule {
	var applied []AppliedRule
	for _, h := range idx.holidays {
		if h.AppliesOn(day) {
			applied = append(applied, AppliedRule{
				ID:         h.ID,
				Name:       h.Name,
				Source:     SourceHoliday,
				Priority:   HolidayPriority,
				Adjustment: h.Adjustment,
			})
		}
	}

	var candidates []CustomRule
	candidates = append(candidates, idx.ranged...)
	candidates = append(candidates, idx.weekly[day.ISOWeekday()]...)
	candidates = append(candidates, idx.monthly[day.Day()]...)
	candidates = append(candidates, idx.specific[day.String()]...)

	for _, c := range candidates {
		if c.AppliesOn(day) {
			applied = append(applied, AppliedRule{
				ID:         c.ID,
				Name:       c.Name,
				Source:     SourceCustom,
				Priority:   c.Priority,
				Adjustment: c.Adjustment,
			})
		}
	}
	return applied
}

func uniqueInts(xs []int) []int {
	seen := make(map[int]bool, len(xs))
	out := make([]int, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary counts days by what controlled them.
type Summary struct {
	TotalDays      int `json:"total_days"`
	HolidayDays    int `json:"holiday_days"`
	CustomRuleDays int `json:"custom_rule_days"`
	NormalDays     int `json:"normal_days"`
}

func Summarize(days []ResolvedDay) Summary {
	s := Summary{TotalDays: len(days)}
	for _, d := range days {
		switch {
		case d.IsHoliday:
			s.HolidayDays++
		case len(d.AppliedRules) > 0:
			s.CustomRuleDays++
		default:
			s.NormalDays++
		}
	}
	return s
}
