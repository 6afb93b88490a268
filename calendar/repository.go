package calendar

import (
	"context"
	"fmt"

	"github.com/warp/fleet-pricing/generic"
)

// RuleRepository is the external rule store. Rules are authored there and
// read here as an immutable snapshot per resolution.
type RuleRepository interface {
	ListActiveHolidayRules(ctx context.Context, year int) ([]HolidayRule, error)
	ListActiveCustomRules(ctx context.Context) ([]CustomRule, error)
}

// Snapshot loads every rule that can touch [start, end]. Holidays are listed
// for each year in the range plus the year before, so a holiday that starts
// in late December is still seen from January. A holiday must therefore cross
// at most one year boundary and be filed under its start year;
// factory.RuleFactory rejects anything else.
func Snapshot(ctx context.Context, repo RuleRepository, start, end generic.TimePoint) ([]HolidayRule, []CustomRule, error) {
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[generic.RuleID]bool)
	var holidays []HolidayRule
	years := append([]int{period.Start.Year() - 1}, period.Years()...)
	for _, year := range years {
		rules, err := repo.ListActiveHolidayRules(ctx, year)
		if err != nil {
			return nil, nil, fmt.Errorf("list holiday rules for %d: %w", year, err)
		}
		for _, h := range rules {
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			holidays = append(holidays, h)
		}
	}

	customs, err := repo.ListActiveCustomRules(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list custom rules: %w", err)
	}
	return holidays, customs, nil
}

// ResolveFromRepository takes a rule snapshot and resolves [start, end]. The
// range is checked before the repository is queried.
func (r *Resolver) ResolveFromRepository(ctx context.Context, repo RuleRepository, start, end generic.TimePoint) ([]ResolvedDay, error) {
	if _, err := r.checkPeriod(start, end); err != nil {
		return nil, err
	}
	holidays, customs, err := Snapshot(ctx, repo, start, end)
	if err != nil {
		return nil, err
	}
	return r.Resolve(start, end, holidays, customs)
}
