/*
Package store defines the persistence boundary of the pricing service.

PURPOSE:
  The engines only read immutable snapshots through the narrow collaborator
  interfaces they declare (calendar.RuleRepository, distance.StoreRepository,
  strategy.VehicleRepository, strategy.MarketDataProvider). Repository bundles
  those with the authoring operations the HTTP layer needs.

IMPLEMENTATIONS:
  store/memory: In-memory, for tests and demo mode
  store/sqlite: SQLite, the default server backend

Lookups of unknown ids return the matching generic.Err*NotFound sentinel.
Save operations assign an id when the value's id is zero and return the
stored value.
*/
package store

import (
	"context"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/strategy"
)

// Store is a rental location.
type Store struct {
	ID         generic.StoreID     `json:"id"`
	Name       string              `json:"name"`
	City       string              `json:"city,omitempty"`
	Coordinate distance.Coordinate `json:"coordinate"`
}

type Repository interface {
	calendar.RuleRepository
	distance.StoreRepository
	strategy.VehicleRepository
	strategy.MarketDataProvider

	// Calendar rules
	SaveHolidayRule(ctx context.Context, rule calendar.HolidayRule) (calendar.HolidayRule, error)
	SaveCustomRule(ctx context.Context, rule calendar.CustomRule) (calendar.CustomRule, error)
	ListHolidayRules(ctx context.Context) ([]calendar.HolidayRule, error)
	ListCustomRules(ctx context.Context) ([]calendar.CustomRule, error)

	// Stores
	SaveStore(ctx context.Context, s Store) (Store, error)
	ListStores(ctx context.Context) ([]Store, error)

	// Extra fees
	SaveFee(ctx context.Context, fee allocation.FeeDefinition) (allocation.FeeDefinition, error)
	GetFee(ctx context.Context, id generic.FeeID) (allocation.FeeDefinition, error)
	ListFees(ctx context.Context) ([]allocation.FeeDefinition, error)

	// Vehicles and market data
	SaveVehicle(ctx context.Context, v strategy.Vehicle) (strategy.Vehicle, error)
	ListVehicles(ctx context.Context) ([]strategy.Vehicle, error)
	SaveMarketSnapshot(ctx context.Context, snap strategy.MarketSnapshot) error
	ConditionGrades(ctx context.Context) (strategy.GradeTable, error)
	SaveConditionGrade(ctx context.Context, grade strategy.Grade, multiplier float64) error

	// Reset deletes everything except the condition grades (demo mode).
	Reset(ctx context.Context) error
	Close() error
}
