/*
Package generic provides the shared kernel of the fleet pricing engine.

PURPOSE:
  Domain-agnostic building blocks used by every pricing component: typed
  identifiers, money on decimal.Decimal, the calendar day type, and the
  error taxonomy. Nothing in here knows about fees, rules or vehicles.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: StoreID, RuleID, FeeID, VehicleID, ModelID
  - Money: decimal.Decimal amounts, always rounded through round.go

DESIGN PRINCIPLES:
  1. Precision: money is never a float64 once it reaches an allocation or a quote
  2. Type Safety: distinct ID types stop a store id being passed as a fee id
  3. One rounding policy: see round.go

USAGE:
  price := generic.MustParseMoney("300")
  share := generic.RoundMoney(price.Mul(decimal.NewFromInt(50)).Div(generic.Hundred))

SEE ALSO:
  - round.go: Centralized rounding
  - time.go: TimePoint (calendar day)
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type StoreID int64
type RuleID int64
type FeeID int64
type VehicleID int64
type ModelID string

func (id StoreID) String() string   { return strconv.FormatInt(int64(id), 10) }
func (id RuleID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id FeeID) String() string     { return strconv.FormatInt(int64(id), 10) }
func (id VehicleID) String() string { return strconv.FormatInt(int64(id), 10) }

// =============================================================================
// MONEY
// =============================================================================

// Hundred is the percentage denominator.
var Hundred = decimal.NewFromInt(100)

// NewMoney converts a float amount and rounds it to cents.
func NewMoney(value float64) decimal.Decimal {
	return RoundMoney(decimal.NewFromFloat(value))
}

// ParseMoney parses a decimal string such as "2134.86".
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

func MustParseMoney(s string) decimal.Decimal {
	d, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Percent returns pct% of amount, rounded to cents.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(Hundred))
}

// SumMoney adds amounts without intermediate rounding.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
