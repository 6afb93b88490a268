/*
Package strategy recommends daily rental prices for a vehicle.

PURPOSE:
  Fleet staff review suggested prices before changing a vehicle's rate.
  Four strategies look at the same vehicle from different angles; each
  suggestion carries a confidence score, the reasoning behind it and its
  projected impact against the current price.

KEY CONCEPTS IN THIS FILE (types.go):
  - Vehicle: pricing-relevant vehicle facts; optional fields degrade
  - MarketSnapshot: same-model market prices at one point in time
  - Suggestion: one strategy's priced, explained recommendation

STRATEGIES:
  market_based       market average x condition x mileage x age
  revenue_optimized  price that returns the purchase cost plus target ROI
  competitive        competitor quartile chosen by condition grade
  balanced           40/30/30 blend of the three above

SEE ALSO:
  - tables.go: Condition, mileage and age multipliers
  - engine.go: Strategy table and suggestion assembly
  - batch.go: Fleet-wide balanced suggestions
*/
package strategy

import (
	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// INPUTS
// =============================================================================

// Grade is a vehicle's condition classification.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Vehicle holds the facts pricing depends on. Nil optional fields fall back
// to documented defaults instead of failing.
type Vehicle struct {
	ID                generic.VehicleID  `json:"id"`
	ModelID           generic.ModelID    `json:"model_id"`
	Name              string             `json:"name,omitempty"`
	ConditionGrade    Grade              `json:"condition_grade"`
	PurchasePrice     *float64           `json:"purchase_price,omitempty"`
	CurrentMileage    *float64           `json:"current_mileage,omitempty"`
	PurchaseDate      *generic.TimePoint `json:"purchase_date,omitempty"`
	CurrentDailyPrice float64            `json:"current_daily_price"`
}

func (v Vehicle) grade() Grade {
	if v.ConditionGrade == "" {
		return GradeB
	}
	return v.ConditionGrade
}

func (v Vehicle) mileage() float64 {
	if v.CurrentMileage == nil {
		return 0
	}
	return *v.CurrentMileage
}

func (v Vehicle) purchasePrice() float64 {
	if v.PurchasePrice == nil || *v.PurchasePrice <= 0 {
		return DefaultPurchasePrice
	}
	return *v.PurchasePrice
}

// complete reports whether purchase price, purchase date and mileage are
// all known.
func (v Vehicle) complete() bool {
	return v.PurchasePrice != nil && *v.PurchasePrice > 0 &&
		v.PurchaseDate != nil && !v.PurchaseDate.IsZero() &&
		v.CurrentMileage != nil && *v.CurrentMileage > 0
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MarketSnapshot describes same-model prices in the market.
type MarketSnapshot struct {
	ModelID          generic.ModelID `json:"model_id,omitempty"`
	AveragePrice     float64         `json:"average_price"`
	CompetitorPrices []float64       `json:"competitor_prices"`
	PriceRange       PriceRange      `json:"price_range"`
}

// =============================================================================
// OUTPUTS
// =============================================================================

// Kind names a pricing strategy.
type Kind string

const (
	KindMarketBased      Kind = "market_based"
	KindRevenueOptimized Kind = "revenue_optimized"
	KindCompetitive      Kind = "competitive"
	KindBalanced         Kind = "balanced"
)

// Kinds lists strategies in presentation order.
var Kinds = []Kind{KindMarketBased, KindRevenueOptimized, KindCompetitive, KindBalanced}

type Competitiveness string

const (
	CompetitivenessHigh   Competitiveness = "high"
	CompetitivenessMedium Competitiveness = "medium"
	CompetitivenessLow    Competitiveness = "low"
)

type Impact struct {
	RevenueChangePercent float64         `json:"revenue_change_percent"`
	Competitiveness      Competitiveness `json:"competitiveness"`
	MarketPositionLabel  string          `json:"market_position_label"`
}

// Suggestion is one strategy's recommendation.
type Suggestion struct {
	Strategy        Kind     `json:"strategy"`
	SuggestedPrice  int      `json:"suggested_price"`
	Confidence      int      `json:"confidence"`
	Reasoning       []string `json:"reasoning"`
	ProjectedImpact Impact   `json:"projected_impact"`
}
