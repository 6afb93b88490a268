package calendar

import (
	"fmt"

	"github.com/warp/fleet-pricing/generic"
)

// RuleConflictError reports two or more rules sharing the top priority on a
// day when the resolver rejects ties.
type RuleConflictError struct {
	Date     generic.TimePoint
	Priority int
	Rules    []AppliedRule
}

func (e *RuleConflictError) Error() string {
	ids := make([]string, len(e.Rules))
	for i, r := range e.Rules {
		ids[i] = string(r.Source) + ":" + r.ID.String()
	}
	return fmt.Sprintf("rules %v share priority %d on %s", ids, e.Priority, e.Date)
}

func (e *RuleConflictError) Unwrap() error {
	return generic.ErrUnresolvedRuleConflict
}

// PeriodTooLongError reports a resolution request spanning more days than
// the resolver allows.
type PeriodTooLongError struct {
	Days    int
	MaxDays int
}

func (e *PeriodTooLongError) Error() string {
	return fmt.Sprintf("period of %d days exceeds the limit of %d", e.Days, e.MaxDays)
}

func (e *PeriodTooLongError) Unwrap() error {
	return generic.ErrInvalidPeriod
}
