// Package memory provides an in-memory store.Repository (for tests/demo).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/store"
	"github.com/warp/fleet-pricing/strategy"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	holidays map[generic.RuleID]calendar.HolidayRule
	customs  map[generic.RuleID]calendar.CustomRule
	stores   map[generic.StoreID]store.Store
	fees     map[generic.FeeID]allocation.FeeDefinition
	vehicles map[generic.VehicleID]strategy.Vehicle
	markets  map[generic.ModelID]strategy.MarketSnapshot
	grades   strategy.GradeTable
	nextID   int64
}

var _ store.Repository = (*Memory)(nil)

// New returns an empty store seeded with the default condition grades.
func New() *Memory {
	return &Memory{
		holidays: make(map[generic.RuleID]calendar.HolidayRule),
		customs:  make(map[generic.RuleID]calendar.CustomRule),
		stores:   make(map[generic.StoreID]store.Store),
		fees:     make(map[generic.FeeID]allocation.FeeDefinition),
		vehicles: make(map[generic.VehicleID]strategy.Vehicle),
		markets:  make(map[generic.ModelID]strategy.MarketSnapshot),
		grades:   strategy.DefaultGradeTable(),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = make(map[generic.RuleID]calendar.HolidayRule)
	m.customs = make(map[generic.RuleID]calendar.CustomRule)
	m.stores = make(map[generic.StoreID]store.Store)
	m.fees = make(map[generic.FeeID]allocation.FeeDefinition)
	m.vehicles = make(map[generic.VehicleID]strategy.Vehicle)
	m.markets = make(map[generic.ModelID]strategy.MarketSnapshot)
	return nil
}

// id returns current unless zero, in which case it allocates one above every
// id seen so far.
func (m *Memory) id(current int64) int64 {
	if current != 0 {
		if current > m.nextID {
			m.nextID = current
		}
		return current
	}
	m.nextID++
	return m.nextID
}

// =============================================================================
// CALENDAR RULES
// =============================================================================

func (m *Memory) SaveHolidayRule(_ context.Context, rule calendar.HolidayRule) (calendar.HolidayRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.Status == "" {
		rule.Status = calendar.StatusActive
	}
	rule.ID = generic.RuleID(m.id(int64(rule.ID)))
	m.holidays[rule.ID] = rule
	return rule, nil
}

func (m *Memory) SaveCustomRule(_ context.Context, rule calendar.CustomRule) (calendar.CustomRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.Status == "" {
		rule.Status = calendar.StatusActive
	}
	rule.ID = generic.RuleID(m.id(int64(rule.ID)))
	m.customs[rule.ID] = rule
	return rule, nil
}

func (m *Memory) ListHolidayRules(context.Context) ([]calendar.HolidayRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]calendar.HolidayRule, 0, len(m.holidays))
	for _, h := range m.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListCustomRules(context.Context) ([]calendar.CustomRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]calendar.CustomRule, 0, len(m.customs))
	for _, r := range m.customs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListActiveHolidayRules(ctx context.Context, year int) ([]calendar.HolidayRule, error) {
	all, _ := m.ListHolidayRules(ctx)
	var out []calendar.HolidayRule
	for _, h := range all {
		if h.Year == year && h.Status == calendar.StatusActive {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *Memory) ListActiveCustomRules(ctx context.Context) ([]calendar.CustomRule, error) {
	all, _ := m.ListCustomRules(ctx)
	var out []calendar.CustomRule
	for _, r := range all {
		if r.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// STORES
// =============================================================================

func (m *Memory) SaveStore(_ context.Context, s store.Store) (store.Store, error) {
	if !s.Coordinate.Valid() {
		return store.Store{}, &distance.InvalidCoordinateError{Coordinate: s.Coordinate}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = generic.StoreID(m.id(int64(s.ID)))
	m.stores[s.ID] = s
	return s, nil
}

func (m *Memory) ListStores(context.Context) ([]store.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Store, 0, len(m.stores))
	for _, s := range m.stores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetStoreCoordinate(_ context.Context, id generic.StoreID) (distance.Coordinate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[id]
	if !ok {
		return distance.Coordinate{}, &distance.StoreNotFoundError{StoreID: id}
	}
	return s.Coordinate, nil
}

// =============================================================================
// FEES
// =============================================================================

func (m *Memory) SaveFee(_ context.Context, fee allocation.FeeDefinition) (allocation.FeeDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fee.ID = generic.FeeID(m.id(int64(fee.ID)))
	m.fees[fee.ID] = fee
	return fee, nil
}

func (m *Memory) GetFee(_ context.Context, id generic.FeeID) (allocation.FeeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fee, ok := m.fees[id]
	if !ok {
		return allocation.FeeDefinition{}, generic.ErrFeeNotFound
	}
	return fee, nil
}

func (m *Memory) ListFees(context.Context) ([]allocation.FeeDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]allocation.FeeDefinition, 0, len(m.fees))
	for _, f := range m.fees {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// VEHICLES & MARKET DATA
// =============================================================================

func (m *Memory) SaveVehicle(_ context.Context, v strategy.Vehicle) (strategy.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = generic.VehicleID(m.id(int64(v.ID)))
	m.vehicles[v.ID] = v
	return v, nil
}

func (m *Memory) GetVehicle(_ context.Context, id generic.VehicleID) (strategy.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	if !ok {
		return strategy.Vehicle{}, generic.ErrVehicleNotFound
	}
	return v, nil
}

func (m *Memory) ListVehicles(context.Context) ([]strategy.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]strategy.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveMarketSnapshot(_ context.Context, snap strategy.MarketSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap.CompetitorPrices = append([]float64(nil), snap.CompetitorPrices...)
	m.markets[snap.ModelID] = snap
	return nil
}

func (m *Memory) SnapshotFor(_ context.Context, model generic.ModelID) (strategy.MarketSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.markets[model]
	if !ok {
		return strategy.MarketSnapshot{}, generic.ErrMarketDataUnavailable
	}
	snap.CompetitorPrices = append([]float64(nil), snap.CompetitorPrices...)
	return snap, nil
}

func (m *Memory) ConditionGrades(context.Context) (strategy.GradeTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(strategy.GradeTable, len(m.grades))
	for g, mult := range m.grades {
		out[g] = mult
	}
	return out, nil
}

func (m *Memory) SaveConditionGrade(_ context.Context, grade strategy.Grade, multiplier float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grades[grade] = multiplier
	return nil
}
