package strategy

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// ENGINE
// =============================================================================

// Clock returns the current time. Vehicle age is measured against it.
type Clock func() time.Time

// Engine computes suggestions. It holds only read-only collaborators.
type Engine struct {
	grades ConditionGradeTable
	now    Clock
}

type Option func(*Engine)

func WithGradeTable(t ConditionGradeTable) Option {
	return func(e *Engine) {
		if t != nil {
			e.grades = t
		}
	}
}

func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.now = c
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{grades: DefaultGradeTable(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Suggest returns every applicable strategy for the vehicle, in Kinds order.
// market_based is left out when the snapshot has no positive average price.
func (e *Engine) Suggest(v Vehicle, m MarketSnapshot) []Suggestion {
	in := e.prepare(v, m)
	out := make([]Suggestion, 0, len(Kinds))
	for _, kind := range Kinds {
		if s, ok := in.suggest(kind); ok {
			out = append(out, s)
		}
	}
	return out
}

// SuggestKind runs a single strategy.
func (e *Engine) SuggestKind(kind Kind, v Vehicle, m MarketSnapshot) (Suggestion, bool) {
	return e.prepare(v, m).suggest(kind)
}

// =============================================================================
// STRATEGY TABLE
// =============================================================================

// input carries the figures shared by every strategy for one vehicle.
type input struct {
	vehicle     Vehicle
	market      MarketSnapshot
	grade       Grade
	condition   float64
	mileage     float64
	ageMonths   int
	hasAge      bool
	age         float64
	competitors []float64
}

type computeFunc func(in *input) (price int, reasoning []string, ok bool)

var strategies = map[Kind]computeFunc{
	KindMarketBased:      (*input).marketBased,
	KindRevenueOptimized: (*input).revenueOptimized,
	KindCompetitive:      (*input).competitive,
	KindBalanced:         (*input).balanced,
}

func (e *Engine) prepare(v Vehicle, m MarketSnapshot) *input {
	in := &input{
		vehicle: v,
		market:  m,
		grade:   v.grade(),
		mileage: mileageMultiplier(v.mileage()),
		age:     1.0,
	}

	in.condition = 1.0
	if mult, ok := e.grades.MultiplierFor(in.grade); ok {
		in.condition = mult
	}

	if v.PurchaseDate != nil && !v.PurchaseDate.IsZero() {
		elapsed := e.now().Sub(v.PurchaseDate.Time)
		in.ageMonths = int(math.Floor(elapsed.Hours() / 24 / daysPerMonth))
		in.hasAge = true
		in.age = ageMultiplier(in.ageMonths)
	}

	for _, p := range m.CompetitorPrices {
		if p > 0 {
			in.competitors = append(in.competitors, p)
		}
	}
	sort.Float64s(in.competitors)
	return in
}

func (in *input) suggest(kind Kind) (Suggestion, bool) {
	compute, ok := strategies[kind]
	if !ok {
		return Suggestion{}, false
	}
	price, reasoning, ok := compute(in)
	if !ok {
		return Suggestion{}, false
	}
	return Suggestion{
		Strategy:        kind,
		SuggestedPrice:  price,
		Confidence:      in.confidence(kind),
		Reasoning:       reasoning,
		ProjectedImpact: evaluateImpact(in.vehicle.CurrentDailyPrice, price, in.market.AveragePrice),
	}, true
}

// =============================================================================
// STRATEGIES
// =============================================================================

func (in *input) marketBasedPrice() (int, bool) {
	if in.market.AveragePrice <= 0 {
		return 0, false
	}
	return generic.RoundPrice(in.market.AveragePrice * in.condition * in.mileage * in.age), true
}

func (in *input) marketBased() (int, []string, bool) {
	price, ok := in.marketBasedPrice()
	if !ok {
		return 0, nil, false
	}
	reasoning := []string{
		fmt.Sprintf("Market average daily price for this model is %s", num(in.market.AveragePrice)),
		fmt.Sprintf("Condition grade %s applies a %s multiplier", in.grade, num(in.condition)),
	}
	if in.mileage != 1.0 {
		reasoning = append(reasoning, fmt.Sprintf("Mileage of %s km applies a %.2f factor", num(in.vehicle.mileage()), in.mileage))
	}
	if in.age != 1.0 {
		reasoning = append(reasoning, fmt.Sprintf("Vehicle age of %d months applies a %.2f factor", in.ageMonths, in.age))
	}
	reasoning = append(reasoning, fmt.Sprintf("Suggested daily price: %d", price))
	return price, reasoning, true
}

func (in *input) revenueOptimizedPrice() int {
	required := in.vehicle.purchasePrice() * (1 + TargetROI) / investmentYears
	gross := required / (1 - operatingCostRate)
	daily := gross / (daysPerYear * utilizationRate)
	return generic.RoundPrice(daily * in.condition)
}

func (in *input) revenueOptimized() (int, []string, bool) {
	price := in.revenueOptimizedPrice()
	purchase := fmt.Sprintf("Purchase price %s with a %s%% target ROI", num(in.vehicle.purchasePrice()), pct(TargetROI))
	if in.vehicle.PurchasePrice == nil || *in.vehicle.PurchasePrice <= 0 {
		purchase += " (purchase price unknown, default used)"
	}
	return price, []string{
		purchase,
		fmt.Sprintf("Investment period %d years at %s%% utilization", investmentYears, pct(utilizationRate)),
		fmt.Sprintf("Operating costs take %s%% of gross revenue", pct(operatingCostRate)),
		fmt.Sprintf("Condition grade %s applies a %s multiplier", in.grade, num(in.condition)),
		fmt.Sprintf("Optimal daily price: %d", price),
	}, true
}

// quartile indexes floor(n*q) into the ascending competitor prices.
func (in *input) quartile(q float64) float64 {
	return in.competitors[int(math.Floor(float64(len(in.competitors))*q))]
}

func (in *input) competitivePrice() (price int, position string) {
	if len(in.competitors) == 0 {
		return in.revenueOptimizedPrice(), ""
	}
	switch in.grade {
	case GradeA:
		p := in.quartile(0.75)
		return generic.RoundPrice(p), fmt.Sprintf("the upper quartile (p75 = %s)", num(p))
	case GradeB:
		p := in.quartile(0.50)
		return generic.RoundPrice(p), fmt.Sprintf("the median (p50 = %s)", num(p))
	case GradeC:
		p := in.quartile(0.25)
		return generic.RoundPrice(p), fmt.Sprintf("the lower quartile (p25 = %s)", num(p))
	default:
		p := in.quartile(0.25)
		return generic.RoundPrice(p * 0.9), fmt.Sprintf("90%% of the lower quartile (p25 = %s)", num(p))
	}
}

func (in *input) competitive() (int, []string, bool) {
	price, position := in.competitivePrice()
	if position == "" {
		return price, []string{
			"No competitor prices available",
			fmt.Sprintf("Falling back to the revenue-optimized price: %d", price),
		}, true
	}

	reasoning := []string{
		fmt.Sprintf("Analyzed %d competitor prices", len(in.competitors)),
		fmt.Sprintf("Price range: %s-%s", num(in.competitors[0]), num(in.competitors[len(in.competitors)-1])),
	}
	if in.market.AveragePrice > 0 {
		reasoning = append(reasoning, fmt.Sprintf("Market average price: %s", num(in.market.AveragePrice)))
	}
	reasoning = append(reasoning, fmt.Sprintf("Grade %s is positioned at %s: %d", in.grade, position, price))
	return price, reasoning, true
}

func (in *input) balanced() (int, []string, bool) {
	revenue := in.revenueOptimizedPrice()
	competitive, _ := in.competitivePrice()

	market, ok := in.marketBasedPrice()
	if !ok {
		price := generic.RoundPrice(0.5*float64(revenue) + 0.5*float64(competitive))
		return price, []string{
			"No market average available; blending the remaining strategies equally",
			fmt.Sprintf("Revenue-optimized weight 50%%: %d", revenue),
			fmt.Sprintf("Competitive weight 50%%: %d", competitive),
			fmt.Sprintf("Weighted average: %d", price),
		}, true
	}

	price := generic.RoundPrice(0.4*float64(market) + 0.3*float64(revenue) + 0.3*float64(competitive))
	return price, []string{
		"Weighted blend of market, revenue and competitor pricing",
		fmt.Sprintf("Market-based weight 40%%: %d", market),
		fmt.Sprintf("Revenue-optimized weight 30%%: %d", revenue),
		fmt.Sprintf("Competitive weight 30%%: %d", competitive),
		fmt.Sprintf("Weighted average: %d", price),
	}, true
}

// =============================================================================
// CONFIDENCE & IMPACT
// =============================================================================

func (in *input) confidence(kind Kind) int {
	c := baseConfidence
	if len(in.market.CompetitorPrices) >= minCompetitorCount {
		c += confidenceStep
	}
	if in.vehicle.complete() {
		c += confidenceStep
	}
	if kind == KindBalanced {
		c += confidenceStep
	}
	return min(c, maxConfidence)
}

func evaluateImpact(current float64, suggested int, marketAverage float64) Impact {
	impact := Impact{
		Competitiveness:     CompetitivenessMedium,
		MarketPositionLabel: "no market reference",
	}
	if current > 0 {
		impact.RevenueChangePercent = generic.RoundPercent((float64(suggested) - current) / current * 100)
	}
	if marketAverage <= 0 {
		return impact
	}

	ratio := float64(suggested) / marketAverage
	switch {
	case ratio < 0.9:
		impact.Competitiveness = CompetitivenessHigh
	case ratio > 1.1:
		impact.Competitiveness = CompetitivenessLow
	}
	impact.MarketPositionLabel = MarketPositionLabel(ratio)
	return impact
}

// MarketPositionLabel describes a suggested/market-average price ratio.
func MarketPositionLabel(ratio float64) string {
	switch {
	case ratio < 0.85:
		return "well below market average"
	case ratio < 0.95:
		return "slightly below market average"
	case ratio > 1.15:
		return "well above market average"
	case ratio > 1.05:
		return "slightly above market average"
	default:
		return "in line with market average"
	}
}

// pct renders a rate as a whole percentage.
func pct(rate float64) string {
	return strconv.Itoa(generic.RoundPrice(rate * 100))
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
