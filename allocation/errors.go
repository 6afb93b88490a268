package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/generic"
)

// InvalidRulesError explains why a rule set was rejected.
type InvalidRulesError struct {
	FeeID  generic.FeeID
	Total  decimal.Decimal
	Reason string
}

func (e *InvalidRulesError) Error() string {
	return fmt.Sprintf("invalid allocation rules for fee %d: %s (total %s%%)", e.FeeID, e.Reason, e.Total.String())
}

func (e *InvalidRulesError) Unwrap() error {
	return generic.ErrInvalidAllocationRules
}
