/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:

	Defines the JSON structures for API communication. Engine types without
	JSON tags (calendar.ResolvedDay, allocation.LineItem) get a DTO here so
	the wire contract does not follow internal renames.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:

	Money is serialized by shopspring/decimal as a JSON string ("1067.31") so
	clients never round-trip it through a float.

VALIDATION:

	Validation is done in handlers and factories, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rules.go, factory/fees.go: Rule and fee JSON definitions
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/calendar"
	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/factory"
	"github.com/warp/fleet-pricing/generic"
	"github.com/warp/fleet-pricing/quote"
	"github.com/warp/fleet-pricing/strategy"
)

// =============================================================================
// CALENDAR
// =============================================================================

type DateRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type ResolvedDayDTO struct {
	Date           string                 `json:"date"`
	IsHoliday      bool                   `json:"is_holiday"`
	HolidayName    string                 `json:"holiday_name,omitempty"`
	AppliedRuleIDs []generic.RuleID       `json:"applied_rule_ids"`
	AppliedRules   []calendar.AppliedRule `json:"applied_rules"`
	Final          *calendar.Adjustment   `json:"final_adjustment"`
}

type CalendarResponse struct {
	Days    []ResolvedDayDTO `json:"days"`
	Summary calendar.Summary `json:"summary"`
}

// =============================================================================
// QUOTES
// =============================================================================

type QuoteRequest struct {
	BaseDailyPrice decimal.Decimal `json:"base_daily_price"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
}

type QuoteDTO struct {
	ID string `json:"id"`
	quote.Breakdown
}

// =============================================================================
// FEE ALLOCATION
// =============================================================================

type OrderDTO struct {
	ID              string          `json:"id"`
	PickupStoreID   generic.StoreID `json:"pickup_store_id"`
	PickupStoreName string          `json:"pickup_store_name,omitempty"`
	ReturnStoreID   generic.StoreID `json:"return_store_id"`
	ReturnStoreName string          `json:"return_store_name,omitempty"`
}

// AllocateRequest names stored fees by id, inline fee definitions, or both.
type AllocateRequest struct {
	Order  OrderDTO          `json:"order"`
	FeeIDs []generic.FeeID   `json:"fee_ids,omitempty"`
	Fees   []factory.FeeJSON `json:"fees,omitempty"`
}

type LineItemDTO struct {
	FeeID           generic.FeeID           `json:"fee_id"`
	Name            string                  `json:"name"`
	Category        allocation.Category     `json:"category"`
	OwnerType       allocation.OwnerType    `json:"owner_type"`
	UnitPrice       decimal.Decimal         `json:"unit_price"`
	Quantity        decimal.Decimal         `json:"quantity"`
	Unit            string                  `json:"unit,omitempty"`
	TotalAmount     decimal.Decimal         `json:"total_amount"`
	StoreID         generic.StoreID         `json:"store_id,omitempty"`
	StoreName       string                  `json:"store_name,omitempty"`
	Dispatch        allocation.Dispatch     `json:"dispatch"`
	CalculationType string                  `json:"calculation_type,omitempty"`
	DistanceKm      float64                 `json:"distance_km,omitempty"`
	Allocations     []allocation.Allocation `json:"allocations"`
}

type AllocateResponse struct {
	OrderID      string                  `json:"order_id"`
	Items        []LineItemDTO           `json:"items"`
	TotalAmount  decimal.Decimal         `json:"total_amount"`
	PartyTotals  []allocation.PartyTotal `json:"party_totals"`
	AllocatedSum decimal.Decimal         `json:"allocated_sum"`
}

// =============================================================================
// DISTANCE
// =============================================================================

type StoreDistanceRequest struct {
	FromStoreID generic.StoreID `json:"from_store_id"`
	ToStoreID   generic.StoreID `json:"to_store_id"`
}

type StoreDistanceDTO struct {
	FromStoreID generic.StoreID `json:"from_store_id"`
	ToStoreID   generic.StoreID `json:"to_store_id"`
	distance.Result
}

type MatrixRequest struct {
	StoreIDs []generic.StoreID `json:"store_ids"`
}

type MatrixResponse struct {
	Distances []StoreDistanceDTO `json:"distances"`
}

// =============================================================================
// STORES, VEHICLES, MARKET DATA
// =============================================================================

type ConditionGradeDTO struct {
	Grade      strategy.Grade `json:"grade"`
	Multiplier float64        `json:"multiplier"`
}

type SuggestionsResponse struct {
	Vehicle     strategy.Vehicle         `json:"vehicle"`
	Market      *strategy.MarketSnapshot `json:"market,omitempty"`
	Suggestions []strategy.Suggestion    `json:"suggestions"`
}

type BatchRequest struct {
	VehicleIDs []generic.VehicleID `json:"vehicle_ids"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toResolvedDayDTOs(days []calendar.ResolvedDay) []ResolvedDayDTO {
	out := make([]ResolvedDayDTO, 0, len(days))
	for _, d := range days {
		dto := ResolvedDayDTO{
			Date:           d.Date.String(),
			IsHoliday:      d.IsHoliday,
			HolidayName:    d.HolidayName,
			AppliedRuleIDs: d.AppliedRuleIDs,
			AppliedRules:   d.AppliedRules,
			Final:          d.Final,
		}
		if dto.AppliedRuleIDs == nil {
			dto.AppliedRuleIDs = []generic.RuleID{}
		}
		if dto.AppliedRules == nil {
			dto.AppliedRules = []calendar.AppliedRule{}
		}
		out = append(out, dto)
	}
	return out
}

func toLineItemDTO(li allocation.LineItem) LineItemDTO {
	dto := LineItemDTO{
		FeeID:           li.FeeID,
		Name:            li.Name,
		Category:        li.Category,
		OwnerType:       li.OwnerType,
		UnitPrice:       li.UnitPrice,
		Quantity:        li.Quantity,
		Unit:            li.Unit,
		TotalAmount:     li.TotalAmount,
		StoreID:         li.StoreID,
		StoreName:       li.StoreName,
		Dispatch:        li.Dispatch,
		CalculationType: string(li.CalculationType),
		DistanceKm:      li.DistanceKm,
		Allocations:     li.Allocations,
	}
	if dto.Allocations == nil {
		dto.Allocations = []allocation.Allocation{}
	}
	return dto
}

func toOrder(o OrderDTO) allocation.Order {
	return allocation.Order{
		ID:              o.ID,
		PickupStoreID:   o.PickupStoreID,
		PickupStoreName: o.PickupStoreName,
		ReturnStoreID:   o.ReturnStoreID,
		ReturnStoreName: o.ReturnStoreName,
	}
}
