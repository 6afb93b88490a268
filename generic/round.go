package generic

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING - the only place rounding rules live
// =============================================================================
//
// Currency and distance round to 2 decimals, suggested prices round to whole
// units, percentages shown to users round to 1 decimal. Halves round away
// from zero in every case.

const (
	MoneyPlaces    = 2
	DistancePlaces = 2
	PercentPlaces  = 1
)

// RoundMoney rounds a currency amount to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// RoundFloat rounds x to the given number of decimal places.
func RoundFloat(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// RoundKm rounds a distance in kilometres.
func RoundKm(km float64) float64 {
	return RoundFloat(km, DistancePlaces)
}

// RoundPercent rounds a percentage for display.
func RoundPercent(pct float64) float64 {
	return RoundFloat(pct, PercentPlaces)
}

// RoundPrice rounds an advisory price to a whole unit.
func RoundPrice(x float64) int {
	return int(math.Round(x))
}
