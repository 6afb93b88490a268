/*
errors.go - Centralized error types for the pricing engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Component packages wrap these with structured errors that carry the
  offending input (see distance.InvalidCoordinateError,
  allocation.InvalidRulesError, calendar.RuleConflictError).

ERROR CATEGORIES:
  1. Input validation - coordinates, allocation rules, periods, rule configs
  2. Lookup failures - stores, vehicles, market data
  3. Arbitration - calendar priority ties under the reject policy

All of these are deterministic: retrying with the same input fails the same
way, so callers reject the originating operation instead of retrying.

USAGE:
  if errors.Is(err, generic.ErrInvalidAllocationRules) {
      // refuse to create the fee
  }

SEE ALSO:
  - distance/errors.go, allocation/errors.go, calendar/errors.go
  - api/handlers.go: maps these to HTTP status codes
*/
package generic

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidCoordinate is returned when a latitude is outside [-90, 90]
	// or a longitude outside [-180, 180].
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrStoreNotFound is returned when a store id has no known coordinate.
	ErrStoreNotFound = errors.New("store not found")

	// ErrInvalidAllocationRules is returned when allocation percentages do not
	// sum to 100 (±0.01) or contain a non-positive entry.
	ErrInvalidAllocationRules = errors.New("invalid allocation rules")

	// ErrUnresolvedRuleConflict is returned when two rules share the highest
	// priority on a day and the resolver is configured to reject ties.
	ErrUnresolvedRuleConflict = errors.New("unresolved rule conflict")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidRule is returned when a rule or fee definition fails validation.
	ErrInvalidRule = errors.New("invalid rule definition")

	// ErrInvalidPrice is returned when a base price is negative.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrVehicleNotFound is returned when a vehicle id is unknown.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrFeeNotFound is returned when a fee id is unknown.
	ErrFeeNotFound = errors.New("fee not found")

	// ErrMarketDataUnavailable is returned when no market snapshot exists for a model.
	ErrMarketDataUnavailable = errors.New("market data unavailable")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCoordinate) ||
		errors.Is(err, ErrInvalidAllocationRules) ||
		errors.Is(err, ErrUnresolvedRuleConflict) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidPrice)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStoreNotFound) ||
		errors.Is(err, ErrVehicleNotFound) ||
		errors.Is(err, ErrFeeNotFound) ||
		errors.Is(err, ErrMarketDataUnavailable)
}
