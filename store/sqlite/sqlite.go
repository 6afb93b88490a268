/*
Package sqlite provides a SQLite-backed implementation of store.Repository.

PURPOSE:
  Persists the inputs the pricing engines read: calendar rules, stores and
  their coordinates, extra fee definitions, vehicles, market snapshots and
  the condition grade table. Computed results (quotes, allocations,
  suggestions) are never stored here.

KEY TABLES:
  holiday_rules:    Statutory holidays, one row per holiday and year
  custom_rules:     Staff-authored rules; the kind-specific payload lives
                    in config_json (factory.CustomRuleJSON)
  stores:           Rental locations with latitude/longitude
  extra_fees:       Fee definitions as config_json (factory.FeeJSON)
  vehicles:         Pricing facts; optional columns are NULL when unknown
  market_snapshots: Latest snapshot per model, competitor prices as JSON
  condition_grades: Grade multiplier table, seeded with A-D

INDEXES:
  - idx_holiday_rules_year_status: Calendar snapshot per year (hot path)
  - idx_custom_rules_status: Active custom rule listing

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode so
  readers don't block.

USAGE:
  repo, err := sqlite.New("./data/fleet-pricing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer repo.Close()

  days, err := calendar.NewResolver().ResolveFromRepository(ctx, repo, start, end)

SEE ALSO:
  - store/store.go: Repository interface
  - store/memory: In-memory implementation for tests
  - factory: JSON codecs for config_json columns
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/factory"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/store"
	"github.com/warp/fleet-pricing/strategy"
)

// Store implements store.Repository using SQLite.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	rules *factory.RuleFactory
	fees  *factory.FeeFactory
}

var _ store.Repository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, rules: factory.NewRuleFactory(), fees: factory.NewFeeFactory()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection (used by the health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS holiday_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		adjustment_type TEXT NOT NULL,
		adjustment_value TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		year INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holiday_rules_year_status
		ON holiday_rules(year, status);

	CREATE TABLE IF NOT EXISTS custom_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 9),
		rule_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_custom_rules_status
		ON custom_rules(status);

	CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		city TEXT,
		latitude REAL NOT NULL CHECK (latitude BETWEEN -90 AND 90),
		longitude REAL NOT NULL CHECK (longitude BETWEEN -180 AND 180)
	);

	CREATE TABLE IF NOT EXISTS extra_fees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		owner_type TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id TEXT NOT NULL,
		name TEXT,
		condition_grade TEXT NOT NULL,
		purchase_price REAL,
		current_mileage REAL,
		purchase_date TEXT,
		current_daily_price REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_model ON vehicles(model_id);

	CREATE TABLE IF NOT EXISTS market_snapshots (
		model_id TEXT PRIMARY KEY,
		average_price REAL NOT NULL,
		min_price REAL NOT NULL,
		max_price REAL NOT NULL,
		competitor_prices_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS condition_grades (
		grade TEXT PRIMARY KEY,
		multiplier REAL NOT NULL
	);

	INSERT OR IGNORE INTO condition_grades (grade, multiplier) VALUES
		('A', 1.30), ('B', 1.15), ('C', 0.90), ('D', 0.75);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsert inserts args under id, or lets SQLite assign one when id is zero.
func upsert(ctx context.Context, db execer, id int64, insert, update string, args ...any) (int64, error) {
	if id == 0 {
		res, err := db.ExecContext(ctx, insert, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	_, err := db.ExecContext(ctx, update, append([]any{id}, args...)...)
	return id, err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// =============================================================================
// CALENDAR RULES (calendar.RuleRepository)
// =============================================================================

const holidayColumns = "id, name, adjustment_type, adjustment_value, start_date, end_date, year, status"

// SaveHolidayRule inserts or replaces a holiday rule.
func (s *Store) SaveHolidayRule(ctx context.Context, rule calendar.HolidayRule) (calendar.HolidayRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.Status == "" {
		rule.Status = calendar.StatusActive
	}

	ts := now()
	id, err := upsert(ctx, s.db, int64(rule.ID),
		`INSERT INTO holiday_rules (name, adjustment_type, adjustment_value, start_date, end_date, year, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		`INSERT INTO holiday_rules (id, name, adjustment_type, adjustment_value, start_date, end_date, year, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			adjustment_type = excluded.adjustment_type,
			adjustment_value = excluded.adjustment_value,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			year = excluded.year,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		rule.Name,
		string(rule.Adjustment.Type),
		rule.Adjustment.Value.String(),
		rule.StartDate.String(),
		rule.EndDate.String(),
		rule.Year,
		string(rule.Status),
		ts, ts,
	)
	if err != nil {
		return calendar.HolidayRule{}, fmt.Errorf("failed to save holiday rule: %w", err)
	}
	rule.ID = generic.RuleID(id)
	return rule, nil
}

// ListHolidayRules returns every holiday rule (for the admin UI).
func (s *Store) ListHolidayRules(ctx context.Context) ([]calendar.HolidayRule, error) {
	return s.queryHolidays(ctx, "SELECT "+holidayColumns+" FROM holiday_rules ORDER BY id")
}

// ListActiveHolidayRules returns the active holidays of one year.
func (s *Store) ListActiveHolidayRules(ctx context.Context, year int) ([]calendar.HolidayRule, error) {
	return s.queryHolidays(ctx,
		"SELECT "+holidayColumns+" FROM holiday_rules WHERE year = ? AND status = ? ORDER BY id",
		year, string(calendar.StatusActive),
	)
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]calendar.HolidayRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []calendar.HolidayRule
	for rows.Next() {
		var (
			h                      calendar.HolidayRule
			adjType, adjValue      string
			start, end, statusText string
		)
		if err := rows.Scan(&h.ID, &h.Name, &adjType, &adjValue, &start, &end, &h.Year, &statusText); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(adjValue)
		if err != nil {
			return nil, fmt.Errorf("holiday rule %d: adjustment value: %w", h.ID, err)
		}
		h.Adjustment = calendar.Adjustment{Type: calendar.AdjustmentType(adjType), Value: value}
		if h.StartDate, err = generic.ParseDate(start); err != nil {
			return nil, fmt.Errorf("holiday rule %d: %w", h.ID, err)
		}
		if h.EndDate, err = generic.ParseDate(end); err != nil {
			return nil, fmt.Errorf("holiday rule %d: %w", h.ID, err)
		}
		h.Status = calendar.Status(statusText)
		rules = append(rules, h)
	}
	return rules, rows.Err()
}

// SaveCustomRule inserts or replaces a custom rule. Updates bump version.
func (s *Store) SaveCustomRule(ctx context.Context, rule calendar.CustomRule) (calendar.CustomRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(s.rules.ToCustomJSON(rule))
	if err != nil {
		return calendar.CustomRule{}, err
	}
	status := rule.Status
	if status == "" {
		status = calendar.StatusActive
	}

	ts := now()
	id, err := upsert(ctx, s.db, int64(rule.ID),
		`INSERT INTO custom_rules (name, priority, rule_type, status, config_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		`INSERT INTO custom_rules (id, name, priority, rule_type, status, config_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			rule_type = excluded.rule_type,
			status = excluded.status,
			config_json = excluded.config_json,
			version = custom_rules.version + 1,
			updated_at = excluded.updated_at`,
		rule.Name, rule.Priority, string(rule.Kind), string(status), string(config), ts, ts,
	)
	if err != nil {
		return calendar.CustomRule{}, fmt.Errorf("failed to save custom rule: %w", err)
	}
	rule.ID = generic.RuleID(id)
	rule.Status = status
	return rule, nil
}

// ListCustomRules returns every custom rule (for the admin UI).
func (s *Store) ListCustomRules(ctx context.Context) ([]calendar.CustomRule, error) {
	return s.queryCustomRules(ctx, "SELECT id, status, config_json FROM custom_rules ORDER BY id")
}

// ListActiveCustomRules returns the custom rules not marked inactive.
func (s *Store) ListActiveCustomRules(ctx context.Context) ([]calendar.CustomRule, error) {
	return s.queryCustomRules(ctx,
		"SELECT id, status, config_json FROM custom_rules WHERE status != ? ORDER BY id",
		string(calendar.StatusInactive),
	)
}

func (s *Store) queryCustomRules(ctx context.Context, query string, args ...any) ([]calendar.CustomRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []calendar.CustomRule
	for rows.Next() {
		var (
			id             int64
			status, config string
		)
		if err := rows.Scan(&id, &status, &config); err != nil {
			return nil, err
		}
		var cj factory.CustomRuleJSON
		if err := json.Unmarshal([]byte(config), &cj); err != nil {
			return nil, fmt.Errorf("custom rule %d: %w", id, err)
		}
		cj.ID, cj.Status = id, status
		rule, err := s.rules.FromCustomJSON(cj)
		if err != nil {
			return nil, fmt.Errorf("custom rule %d: %w", id, err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// =============================================================================
// STORES (distance.StoreRepository)
// =============================================================================

func (s *Store) SaveStore(ctx context.Context, st store.Store) (store.Store, error) {
	if !st.Coordinate.Valid() {
		return store.Store{}, &distance.InvalidCoordinateError{Coordinate: st.Coordinate}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := upsert(ctx, s.db, int64(st.ID),
		`INSERT INTO stores (name, city, latitude, longitude) VALUES (?, ?, ?, ?)`,
		`INSERT INTO stores (id, name, city, latitude, longitude) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			city = excluded.city,
			latitude = excluded.latitude,
			longitude = excluded.longitude`,
		st.Name, nullString(st.City), st.Coordinate.Latitude, st.Coordinate.Longitude,
	)
	if err != nil {
		return store.Store{}, fmt.Errorf("failed to save store: %w", err)
	}
	st.ID = generic.StoreID(id)
	return st, nil
}

func (s *Store) ListStores(ctx context.Context) ([]store.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, city, latitude, longitude FROM stores ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []store.Store
	for rows.Next() {
		var (
			st   store.Store
			city sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.Name, &city, &st.Coordinate.Latitude, &st.Coordinate.Longitude); err != nil {
			return nil, err
		}
		st.City = city.String
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

// GetStoreCoordinate returns a store's location or a StoreNotFoundError.
func (s *Store) GetStoreCoordinate(ctx context.Context, id generic.StoreID) (distance.Coordinate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c distance.Coordinate
	err := s.db.QueryRowContext(ctx,
		"SELECT latitude, longitude FROM stores WHERE id = ?", int64(id),
	).Scan(&c.Latitude, &c.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return distance.Coordinate{}, &distance.StoreNotFoundError{StoreID: id}
	}
	if err != nil {
		return distance.Coordinate{}, err
	}
	return c, nil
}

// =============================================================================
// EXTRA FEES
// =============================================================================

func (s *Store) SaveFee(ctx context.Context, fee allocation.FeeDefinition) (allocation.FeeDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(s.fees.ToJSON(fee))
	if err != nil {
		return allocation.FeeDefinition{}, err
	}

	ts := now()
	id, err := upsert(ctx, s.db, int64(fee.ID),
		`INSERT INTO extra_fees (name, category, owner_type, config_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		`INSERT INTO extra_fees (id, name, category, owner_type, config_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			owner_type = excluded.owner_type,
			config_json = excluded.config_json,
			version = extra_fees.version + 1,
			updated_at = excluded.updated_at`,
		fee.Name, string(fee.Category), string(fee.OwnerType), string(config), ts, ts,
	)
	if err != nil {
		return allocation.FeeDefinition{}, fmt.Errorf("failed to save fee: %w", err)
	}
	fee.ID = generic.FeeID(id)
	return fee, nil
}

func (s *Store) GetFee(ctx context.Context, id generic.FeeID) (allocation.FeeDefinition, error) {
	fees, err := s.queryFees(ctx, "SELECT id, config_json FROM extra_fees WHERE id = ?", int64(id))
	if err != nil {
		return allocation.FeeDefinition{}, err
	}
	if len(fees) == 0 {
		return allocation.FeeDefinition{}, fmt.Errorf("fee %d: %w", id, generic.ErrFeeNotFound)
	}
	return fees[0], nil
}

func (s *Store) ListFees(ctx context.Context) ([]allocation.FeeDefinition, error) {
	return s.queryFees(ctx, "SELECT id, config_json FROM extra_fees ORDER BY id")
}

func (s *Store) queryFees(ctx context.Context, query string, args ...any) ([]allocation.FeeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fees []allocation.FeeDefinition
	for rows.Next() {
		var (
			id     int64
			config string
		)
		if err := rows.Scan(&id, &config); err != nil {
			return nil, err
		}
		var fj factory.FeeJSON
		if err := json.Unmarshal([]byte(config), &fj); err != nil {
			return nil, fmt.Errorf("fee %d: %w", id, err)
		}
		fj.ID = id
		fee, err := s.fees.FromJSON(fj)
		if err != nil {
			return nil, fmt.Errorf("fee %d: %w", id, err)
		}
		fees = append(fees, fee)
	}
	return fees, rows.Err()
}

// =============================================================================
// VEHICLES (strategy.VehicleRepository)
// =============================================================================

const vehicleColumns = "id, model_id, name, condition_grade, purchase_price, current_mileage, purchase_date, current_daily_price"

func (s *Store) SaveVehicle(ctx context.Context, v strategy.Vehicle) (strategy.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purchaseDate sql.NullString
	if v.PurchaseDate != nil && !v.PurchaseDate.IsZero() {
		purchaseDate = sql.NullString{String: v.PurchaseDate.String(), Valid: true}
	}

	id, err := upsert(ctx, s.db, int64(v.ID),
		`INSERT INTO vehicles (model_id, name, condition_grade, purchase_price, current_mileage, purchase_date, current_daily_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		`INSERT INTO vehicles (id, model_id, name, condition_grade, purchase_price, current_mileage, purchase_date, current_daily_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			model_id = excluded.model_id,
			name = excluded.name,
			condition_grade = excluded.condition_grade,
			purchase_price = excluded.purchase_price,
			current_mileage = excluded.current_mileage,
			purchase_date = excluded.purchase_date,
			current_daily_price = excluded.current_daily_price`,
		string(v.ModelID), nullString(v.Name), string(v.ConditionGrade),
		nullFloat(v.PurchasePrice), nullFloat(v.CurrentMileage), purchaseDate,
		v.CurrentDailyPrice,
	)
	if err != nil {
		return strategy.Vehicle{}, fmt.Errorf("failed to save vehicle: %w", err)
	}
	v.ID = generic.VehicleID(id)
	return v, nil
}

func (s *Store) GetVehicle(ctx context.Context, id generic.VehicleID) (strategy.Vehicle, error) {
	vehicles, err := s.queryVehicles(ctx, "SELECT "+vehicleColumns+" FROM vehicles WHERE id = ?", int64(id))
	if err != nil {
		return strategy.Vehicle{}, err
	}
	if len(vehicles) == 0 {
		return strategy.Vehicle{}, fmt.Errorf("vehicle %d: %w", id, generic.ErrVehicleNotFound)
	}
	return vehicles[0], nil
}

func (s *Store) ListVehicles(ctx context.Context) ([]strategy.Vehicle, error) {
	return s.queryVehicles(ctx, "SELECT "+vehicleColumns+" FROM vehicles ORDER BY id")
}

func (s *Store) queryVehicles(ctx context.Context, query string, args ...any) ([]strategy.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []strategy.Vehicle
	for rows.Next() {
		var (
			v                 strategy.Vehicle
			model, grade      string
			name, date        sql.NullString
			purchase, mileage sql.NullFloat64
		)
		if err := rows.Scan(&v.ID, &model, &name, &grade, &purchase, &mileage, &date, &v.CurrentDailyPrice); err != nil {
			return nil, err
		}
		v.ModelID = generic.ModelID(model)
		v.Name = name.String
		v.ConditionGrade = strategy.Grade(grade)
		if purchase.Valid {
			v.PurchasePrice = &purchase.Float64
		}
		if mileage.Valid {
			v.CurrentMileage = &mileage.Float64
		}
		if date.Valid {
			d, err := generic.ParseDate(date.String)
			if err != nil {
				return nil, fmt.Errorf("vehicle %d: %w", v.ID, err)
			}
			v.PurchaseDate = &d
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// =============================================================================
// MARKET DATA (strategy.MarketDataProvider)
// =============================================================================

func (s *Store) SaveMarketSnapshot(ctx context.Context, snap strategy.MarketSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prices, err := json.Marshal(snap.CompetitorPrices)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO market_snapshots (model_id, average_price, min_price, max_price, competitor_prices_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(model_id) DO UPDATE SET
			average_price = excluded.average_price,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			competitor_prices_json = excluded.competitor_prices_json,
			updated_at = excluded.updated_at`,
		string(snap.ModelID), snap.AveragePrice, snap.PriceRange.Min, snap.PriceRange.Max, string(prices), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save market snapshot: %w", err)
	}
	return nil
}

func (s *Store) SnapshotFor(ctx context.Context, model generic.ModelID) (strategy.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := strategy.MarketSnapshot{ModelID: model}
	var prices string
	err := s.db.QueryRowContext(ctx,
		"SELECT average_price, min_price, max_price, competitor_prices_json FROM market_snapshots WHERE model_id = ?",
		string(model),
	).Scan(&snap.AveragePrice, &snap.PriceRange.Min, &snap.PriceRange.Max, &prices)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.MarketSnapshot{}, fmt.Errorf("model %s: %w", model, generic.ErrMarketDataUnavailable)
	}
	if err != nil {
		return strategy.MarketSnapshot{}, err
	}
	if err := json.Unmarshal([]byte(prices), &snap.CompetitorPrices); err != nil {
		return strategy.MarketSnapshot{}, fmt.Errorf("model %s competitor prices: %w", model, err)
	}
	return snap, nil
}

// ConditionGrades loads the grade table as an immutable snapshot.
func (s *Store) ConditionGrades(ctx context.Context) (strategy.GradeTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT grade, multiplier FROM condition_grades")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(strategy.GradeTable)
	for rows.Next() {
		var (
			grade string
			mult  float64
		)
		if err := rows.Scan(&grade, &mult); err != nil {
			return nil, err
		}
		table[strategy.Grade(grade)] = mult
	}
	return table, rows.Err()
}

func (s *Store) SaveConditionGrade(ctx context.Context, grade strategy.Grade, multiplier float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO condition_grades (grade, multiplier) VALUES (?, ?)
		ON CONFLICT(grade) DO UPDATE SET multiplier = excluded.multiplier`,
		string(grade), multiplier,
	)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data except the condition grades (for demo mode).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{"holiday_rules", "custom_rules", "stores", "extra_fees", "vehicles", "market_snapshots"}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
