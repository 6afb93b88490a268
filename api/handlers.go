/*
handlers.go - HTTP API handlers for the fleet pricing service

PURPOSE:
  Exposes the pricing engines via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engines. Handlers take a fresh
  snapshot from the repository per request; the engines never see the
  store directly.

ENDPOINTS:
  Pricing:
    POST   /api/calendar/resolve          Resolve a date range against the rules
    POST   /api/quotes                    Compose a stay price
    POST   /api/fees/allocate             Allocate an order's fees to parties
    POST   /api/distance/stores           Store-to-store distance
    POST   /api/distance/matrix           Distance matrix for a set of stores
    GET    /api/vehicles/{id}/suggestions Four-strategy price suggestions
    POST   /api/suggestions/batch         Balanced suggestions for many vehicles

  Authoring:
    GET/POST /api/rules/holidays, /api/rules/custom
    GET/POST /api/stores, /api/fees, /api/vehicles
    GET      /api/fees/{id}
    POST     /api/market/snapshots
    GET      /api/condition-grades
    PUT      /api/condition-grades/{grade}

ERROR HANDLING:
  Errors are returned as JSON ErrorResponse with status from statusFor:
  - 400: Malformed input, invalid coordinate, period, rule or price
  - 404: Unknown store, fee, vehicle or market data
  - 422: Allocation rules that don't sum to 100, unresolved rule conflicts
  - 500: Everything else (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/factory"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/metrics"
	"github.com/warp/fleet-pricing/quote"
	"github.com/warp/fleet-pricing/store"
	"github.com/warp/fleet-pricing/strategy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store store.Repository
	Rules *factory.RuleFactory
	Fees  *factory.FeeFactory

	resolver  *calendar.Resolver
	calOpts   []calendar.Option
	distance  *distance.Service
	allocator *allocation.Engine
	quoteOpts quote.Options
	metrics   *metrics.Recorder
	logger    *zap.Logger
	now       strategy.Clock

	mu              sync.RWMutex
	currentScenario string
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithMetrics reports engine and HTTP activity to rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(h *Handler) { h.metrics = rec }
}

// WithDistanceService shares svc (and its cache) with the handler. Without it
// the handler builds one over a process-local cache.
func WithDistanceService(svc *distance.Service) Option {
	return func(h *Handler) { h.distance = svc }
}

func WithQuoteOptions(opts quote.Options) Option {
	return func(h *Handler) { h.quoteOpts = opts }
}

// WithCalendarOptions configures the calendar resolver (tie break, range cap).
func WithCalendarOptions(opts ...calendar.Option) Option {
	return func(h *Handler) { h.calOpts = append(h.calOpts, opts...) }
}


func WithClock(c strategy.Clock) Option {
	return func(h *Handler) { h.now = c }
}

// NewHandler creates a new handler over repo.
func NewHandler(repo store.Repository, opts ...Option) *Handler {
	h := &Handler{
		Store:     repo,
		Rules:     factory.NewRuleFactory(),
		Fees:      factory.NewFeeFactory(),
		quoteOpts: quote.DefaultOptions(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.resolver = calendar.NewResolver(h.calOpts...)

	var allocOpts []allocation.Option
	if h.distance == nil {
		var distOpts []distance.Option
		if h.metrics != nil {
			distOpts = append(distOpts, distance.WithObserver(h.metrics))
		}
		h.distance = distance.NewService(nil, distOpts...)
	}
	if h.metrics != nil {
		allocOpts = append(allocOpts, allocation.WithObserver(h.metrics))
	}
	h.allocator = allocation.NewEngine(h.distance, allocOpts...)
	return h
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// CALENDAR & QUOTES
// =============================================================================

// ResolveCalendar reports the controlling rule for each day of a range.
func (h *Handler) ResolveCalendar(w http.ResponseWriter, r *http.Request) {
	var req DateRangeRequest
	if !decode(w, r, &req) {
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	days, err := h.resolver.ResolveFromRepository(r.Context(), h.Store, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CalendarResponse{
		Days:    toResolvedDayDTOs(days),
		Summary: calendar.Summarize(days),
	})
}

// CreateQuote prices a stay. Quotes are not persisted; the id lets clients
// correlate a quote with the order they later place.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !decode(w, r, &req) {
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	svc := quote.NewService(h.resolver, h.Store, h.quoteOpts)
	b, err := svc.Quote(r.Context(), req.BaseDailyPrice, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteDTO{ID: uuid.NewString(), Breakdown: b})
}

// =============================================================================
// FEE ALLOCATION
// =============================================================================

// AllocateFees allocates stored and inline fees for one order. The whole
// request fails on the first fee that can't be allocated.
func (h *Handler) AllocateFees(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	fees := make([]allocation.FeeDefinition, 0, len(req.FeeIDs)+len(req.Fees))
	for _, id := range req.FeeIDs {
		fee, err := h.Store.GetFee(ctx, id)
		if err != nil {
			h.fail(w, r, fmt.Errorf("fee %d: %w", id, err))
			return
		}
		fees = append(fees, fee)
	}
	for i, fj := range req.Fees {
		fee, err := h.Fees.FromJSON(fj)
		if err != nil {
			h.fail(w, r, fmt.Errorf("fees[%d]: %w", i, err))
			return
		}
		fees = append(fees, fee)
	}

	order := toOrder(req.Order)
	registry, err := distance.LoadRegistry(ctx, h.Store, order.PickupStoreID, order.ReturnStoreID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.allocator.AllocateOrderFees(fees, order, registry)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := AllocateResponse{
		OrderID:      order.ID,
		Items:        make([]LineItemDTO, 0, len(items)),
		TotalAmount:  allocation.TotalAmount(items),
		PartyTotals:  allocation.SumByParty(items),
	}
	allocated := make([]decimal.Decimal, 0, len(items))
	for _, li := range items {
		resp.Items = append(resp.Items, toLineItemDTO(li))
		allocated = append(allocated, li.AllocatedTotal())
	}
	resp.AllocatedSum = generic.SumMoney(allocated...)
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// DISTANCE
// =============================================================================

func (h *Handler) StoreDistance(w http.ResponseWriter, r *http.Request) {
	var req StoreDistanceRequest
	if !decode(w, r, &req) {
		return
	}
	registry, err := distance.LoadRegistry(r.Context(), h.Store, req.FromStoreID, req.ToStoreID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.distance.StoreDistance(req.FromStoreID, req.ToStoreID, registry)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StoreDistanceDTO{FromStoreID: req.FromStoreID, ToStoreID: req.ToStoreID, Result: res})
}

// DistanceMatrix returns every ordered pair of distinct stores, sorted by
// (from, to).
func (h *Handler) DistanceMatrix(w http.ResponseWriter, r *http.Request) {
	var req MatrixRequest
	if !decode(w, r, &req) {
		return
	}
	registry, err := distance.LoadRegistry(r.Context(), h.Store, req.StoreIDs...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	matrix, err := h.distance.Matrix(req.StoreIDs, registry)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := MatrixResponse{Distances: make([]StoreDistanceDTO, 0, len(matrix))}
	for pair, res := range matrix {
		resp.Distances = append(resp.Distances, StoreDistanceDTO{FromStoreID: pair.From, ToStoreID: pair.To, Result: res})
	}
	sort.Slice(resp.Distances, func(i, j int) bool {
		a, b := resp.Distances[i], resp.Distances[j]
		if a.FromStoreID != b.FromStoreID {
			return a.FromStoreID < b.FromStoreID
		}
		return a.ToStoreID < b.ToStoreID
	})
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PRICE SUGGESTIONS
// =============================================================================

// strategyEngine builds an engine over the current grade table.
func (h *Handler) strategyEngine(ctx context.Context) (*strategy.Engine, error) {
	grades, err := h.Store.ConditionGrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("load condition grades: %w", err)
	}
	return strategy.NewEngine(strategy.WithGradeTable(grades), strategy.WithClock(h.now)), nil
}

func (h *Handler) VehicleSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	vehicle, err := h.Store.GetVehicle(ctx, generic.VehicleID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := SuggestionsResponse{Vehicle: vehicle}

	snap, err := h.Store.SnapshotFor(ctx, vehicle.ModelID)
	switch {
	case err == nil:
		resp.Market = &snap
	case errors.Is(err, generic.ErrMarketDataUnavailable):
		snap = strategy.MarketSnapshot{ModelID: vehicle.ModelID}
	default:
		h.fail(w, r, err)
		return
	}

	engine, err := h.strategyEngine(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp.Suggestions = engine.Suggest(vehicle, snap)
	if h.metrics != nil {
		h.metrics.SuggestionsProduced(resp.Suggestions)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) BatchSuggestions(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decode(w, r, &req) {
		return
	}
	engine, err := h.strategyEngine(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := strategy.NewBatch(engine, h.Store, h.Store).SuggestBatch(r.Context(), req.VehicleIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.metrics != nil {
		for _, item := range result.Items {
			if item.Suggestion != nil {
				h.metrics.SuggestionsProduced([]strategy.Suggestion{*item.Suggestion})
			}
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// RULE AUTHORING
// =============================================================================

func (h *Handler) ListHolidayRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListHolidayRules(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]factory.HolidayRuleJSON, 0, len(rules))
	for _, rule := range rules {
		out = append(out, h.Rules.ToHolidayJSON(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateHolidayRule(w http.ResponseWriter, r *http.Request) {
	var req factory.HolidayRuleJSON
	if !decode(w, r, &req) {
		return
	}
	rule, err := h.Rules.FromHolidayJSON(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	saved, err := h.Store.SaveHolidayRule(r.Context(), rule)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Rules.ToHolidayJSON(saved))
}

func (h *Handler) ListCustomRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListCustomRules(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]factory.CustomRuleJSON, 0, len(rules))
	for _, rule := range rules {
		out = append(out, h.Rules.ToCustomJSON(rule))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCustomRule(w http.ResponseWriter, r *http.Request) {
	var req factory.CustomRuleJSON
	if !decode(w, r, &req) {
		return
	}
	rule, err := h.Rules.FromCustomJSON(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	saved, err := h.Store.SaveCustomRule(r.Context(), rule)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Rules.ToCustomJSON(saved))
}

// =============================================================================
// STORES, FEES, VEHICLES, MARKET DATA
// =============================================================================

func (h *Handler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.Store.ListStores(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(stores))
}

func (h *Handler) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req store.Store
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	saved, err := h.Store.SaveStore(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) ListFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.Store.ListFees(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]factory.FeeJSON, 0, len(fees))
	for _, fee := range fees {
		out = append(out, h.Fees.ToJSON(fee))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetFee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	fee, err := h.Store.GetFee(r.Context(), generic.FeeID(id))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Fees.ToJSON(fee))
}

func (h *Handler) CreateFee(w http.ResponseWriter, r *http.Request) {
	var req factory.FeeJSON
	if !decode(w, r, &req) {
		return
	}
	fee, err := h.Fees.FromJSON(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	saved, err := h.Store.SaveFee(r.Context(), fee)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Fees.ToJSON(saved))
}

func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Store.ListVehicles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(vehicles))
}

func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req strategy.Vehicle
	if !decode(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		writeError(w, http.StatusBadRequest, "model_id is required", nil)
		return
	}
	if req.CurrentDailyPrice < 0 {
		h.fail(w, r, fmt.Errorf("current_daily_price: %w", generic.ErrInvalidPrice))
		return
	}
	saved, err := h.Store.SaveVehicle(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) SaveMarketSnapshot(w http.ResponseWriter, r *http.Request) {
	var req strategy.MarketSnapshot
	if !decode(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		writeError(w, http.StatusBadRequest, "model_id is required", nil)
		return
	}
	if err := h.Store.SaveMarketSnapshot(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) ListConditionGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := h.Store.ConditionGrades(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ConditionGradeDTO, 0, len(grades))
	for g, m := range grades {
		out = append(out, ConditionGradeDTO{Grade: g, Multiplier: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grade < out[j].Grade })
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) SaveConditionGrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Multiplier float64 `json:"multiplier"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Multiplier <= 0 {
		writeError(w, http.StatusBadRequest, "multiplier must be positive", nil)
		return
	}
	grade := strategy.Grade(chi.URLParam(r, "grade"))
	if err := h.Store.SaveConditionGrade(r.Context(), grade, req.Multiplier); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConditionGradeDTO{Grade: grade, Multiplier: req.Multiplier})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps err to a status and writes it. Server-side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, status, "Internal error", err)
		return
	}
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Code: errorCode(err), Details: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrInvalidAllocationRules),
		errors.Is(err, generic.ErrUnresolvedRuleConflict):
		return http.StatusUnprocessableEntity
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	codes := []struct {
		target error
		code   string
	}{
		{generic.ErrInvalidAllocationRules, "invalid_allocation_rules"},
		{generic.ErrUnresolvedRuleConflict, "unresolved_rule_conflict"},
		{generic.ErrInvalidCoordinate, "invalid_coordinate"},
		{generic.ErrInvalidPeriod, "invalid_period"},
		{generic.ErrInvalidRule, "invalid_rule"},
		{generic.ErrInvalidPrice, "invalid_price"},
		{generic.ErrStoreNotFound, "store_not_found"},
		{generic.ErrFeeNotFound, "fee_not_found"},
		{generic.ErrVehicleNotFound, "vehicle_not_found"},
		{generic.ErrMarketDataUnavailable, "market_data_unavailable"},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return ""
}

// decode reads a JSON body into dst, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func parseRange(start, end string) (generic.TimePoint, generic.TimePoint, error) {
	s, err := generic.ParseDate(start)
	if err != nil {
		return generic.TimePoint{}, generic.TimePoint{}, fmt.Errorf("start_date %q: %w", start, generic.ErrInvalidPeriod)
	}
	e, err := generic.ParseDate(end)
	if err != nil {
		return generic.TimePoint{}, generic.TimePoint{}, fmt.Errorf("end_date %q: %w", end, generic.ErrInvalidPeriod)
	}
	return s, e, nil
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
