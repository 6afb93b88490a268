package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/warp/fleet-pricing/generic"
)

// VehicleRepository loads vehicles for batch pricing.
type VehicleRepository interface {
	GetVehicle(ctx context.Context, id generic.VehicleID) (Vehicle, error)
}

// MarketDataProvider supplies a market snapshot for a vehicle model.
type MarketDataProvider interface {
	SnapshotFor(ctx context.Context, model generic.ModelID) (MarketSnapshot, error)
}

// adjustmentThreshold is the absolute price change, in percent, from which
// a vehicle is reported as needing adjustment.
const adjustmentThreshold = 5.0

// BatchItem is the balanced suggestion for one vehicle, or why there is none.
type BatchItem struct {
	VehicleID  generic.VehicleID `json:"vehicle_id"`
	Vehicle    *Vehicle          `json:"vehicle,omitempty"`
	Suggestion *Suggestion       `json:"suggestion,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type BatchSummary struct {
	VehicleCount              int     `json:"vehicle_count"`
	AverageCurrentPrice       int     `json:"average_current_price"`
	AverageSuggestedPrice     int     `json:"average_suggested_price"`
	TotalRevenueImpactPercent float64 `json:"total_revenue_impact_percent"`
	CountNeedingAdjustment    int     `json:"count_needing_adjustment"`
}

type BatchResult struct {
	Items   []BatchItem  `json:"items"`
	Summary BatchSummary `json:"summary"`
}

// Batch runs the balanced strategy over many vehicles.
type Batch struct {
	engine   *Engine
	vehicles VehicleRepository
	markets  MarketDataProvider
}

func NewBatch(engine *Engine, vehicles VehicleRepository, markets MarketDataProvider) *Batch {
	return &Batch{engine: engine, vehicles: vehicles, markets: markets}
}

// SuggestBatch prices each vehicle with the balanced strategy. Unknown
// vehicles are reported per item; a vehicle without market data is priced
// against an empty snapshot. Any other repository failure aborts the batch.
func (b *Batch) SuggestBatch(ctx context.Context, ids []generic.VehicleID) (BatchResult, error) {
	result := BatchResult{Items: make([]BatchItem, 0, len(ids))}
	snapshots := make(map[generic.ModelID]MarketSnapshot)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return BatchResult{}, err
		}

		v, err := b.vehicles.GetVehicle(ctx, id)
		if errors.Is(err, generic.ErrVehicleNotFound) {
			result.Items = append(result.Items, BatchItem{VehicleID: id, Error: err.Error()})
			continue
		}
		if err != nil {
			return BatchResult{}, fmt.Errorf("load vehicle %d: %w", id, err)
		}

		snap, ok := snapshots[v.ModelID]
		if !ok {
			snap, err = b.markets.SnapshotFor(ctx, v.ModelID)
			if errors.Is(err, generic.ErrMarketDataUnavailable) {
				snap, err = MarketSnapshot{ModelID: v.ModelID}, nil
			}
			if err != nil {
				return BatchResult{}, fmt.Errorf("market snapshot for %s: %w", v.ModelID, err)
			}
			snapshots[v.ModelID] = snap
		}

		s, _ := b.engine.SuggestKind(KindBalanced, v, snap)
		result.Items = append(result.Items, BatchItem{VehicleID: id, Vehicle: &v, Suggestion: &s})
	}

	result.Summary = Summarize(result.Items)
	return result, nil
}

// Summarize aggregates the priced items of a batch.
func Summarize(items []BatchItem) BatchSummary {
	var (
		summary          BatchSummary
		current, suggest float64
	)
	for _, item := range items {
		if item.Suggestion == nil || item.Vehicle == nil {
			continue
		}
		summary.VehicleCount++
		current += item.Vehicle.CurrentDailyPrice
		suggest += float64(item.Suggestion.SuggestedPrice)
		if math.Abs(item.Suggestion.ProjectedImpact.RevenueChangePercent) >= adjustmentThreshold {
			summary.CountNeedingAdjustment++
		}
	}
	if summary.VehicleCount == 0 {
		return summary
	}

	n := float64(summary.VehicleCount)
	summary.AverageCurrentPrice = generic.RoundPrice(current / n)
	summary.AverageSuggestedPrice = generic.RoundPrice(suggest / n)
	if current > 0 {
		summary.TotalRevenueImpactPercent = generic.RoundPercent((suggest - current) / current * 100)
	}
	return summary
}
