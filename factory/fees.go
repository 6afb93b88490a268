package factory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/allocation"
	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// FeeJSON is the JSON representation of an extra fee.
//
//	{
//	  "id": 20,
//	  "name": "One-way relocation",
//	  "category": "special",
//	  "owner_type": "multi_party",
//	  "calculation_type": "distance",
//	  "distance_unit_price": 2,
//	  "allocation_rules": [
//	    {"party_type": "pickup_store", "percentage": 50},
//	    {"party_type": "return_store", "percentage": 50}
//	  ]
//	}
type FeeJSON struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	Price              float64    `json:"price"`
	Unit               string     `json:"unit,omitempty"`
	OwnerType          string     `json:"owner_type"`
	IsStoreSpecial     bool       `json:"is_store_special,omitempty"`
	StoreID            int64      `json:"store_id,omitempty"`
	StoreName          string     `json:"store_name,omitempty"`
	CalculationType    string     `json:"calculation_type,omitempty"`
	DistanceUnitPrice  float64    `json:"distance_unit_price,omitempty"`
	AutoAllocate       bool       `json:"auto_allocate,omitempty"`
	AllocationStrategy string     `json:"allocation_strategy,omitempty"`
	AllocationRules    []RuleJSON `json:"allocation_rules,omitempty"`
}

type RuleJSON struct {
	PartyType  string  `json:"party_type"`
	PartyID    int64   `json:"party_id,omitempty"`
	PartyName  string  `json:"party_name,omitempty"`
	Percentage float64 `json:"percentage"`
}

// =============================================================================
// FEE FACTORY
// =============================================================================

// FeeFactory converts JSON fees to allocation fee definitions.
type FeeFactory struct{}

func NewFeeFactory() *FeeFactory {
	return &FeeFactory{}
}

// ParseFee parses a JSON string into a FeeDefinition.
func (f *FeeFactory) ParseFee(jsonStr string) (allocation.FeeDefinition, error) {
	var fj FeeJSON
	if err := json.Unmarshal([]byte(jsonStr), &fj); err != nil {
		return allocation.FeeDefinition{}, fmt.Errorf("failed to parse fee JSON: %w", err)
	}
	return f.FromJSON(fj)
}

// FromJSON validates and converts a FeeJSON. Allocation rules are checked
// here too when the fee will be split by them, so a fee that could never be
// allocated is refused at authoring time.
func (f *FeeFactory) FromJSON(fj FeeJSON) (allocation.FeeDefinition, error) {
	if fj.Price < 0 {
		return allocation.FeeDefinition{}, invalid("price", "must not be negative, got %v", fj.Price)
	}

	fee := allocation.FeeDefinition{
		ID:                 generic.FeeID(fj.ID),
		Name:               fj.Name,
		Category:           parseCategory(fj.Category),
		Price:              generic.NewMoney(fj.Price),
		Unit:               fj.Unit,
		IsStoreSpecial:     fj.IsStoreSpecial,
		StoreID:            generic.StoreID(fj.StoreID),
		StoreName:          fj.StoreName,
		CalculationType:    allocation.CalcFixed,
		AutoAllocate:       fj.AutoAllocate,
		AllocationStrategy: allocation.StrategySplitEvenly,
	}

	switch allocation.OwnerType(fj.OwnerType) {
	case allocation.OwnerPlatform, allocation.OwnerStore, allocation.OwnerMultiParty:
		fee.OwnerType = allocation.OwnerType(fj.OwnerType)
	default:
		return allocation.FeeDefinition{}, invalid("owner_type", "must be platform, store or multi_party, got %q", fj.OwnerType)
	}

	switch fj.CalculationType {
	case "", string(allocation.CalcFixed):
	case string(allocation.CalcDistance):
		if fj.DistanceUnitPrice <= 0 {
			return allocation.FeeDefinition{}, invalid("distance_unit_price", "must be positive for distance fees")
		}
		fee.CalculationType = allocation.CalcDistance
		fee.DistanceUnitPrice = decimal.NewFromFloat(fj.DistanceUnitPrice)
	default:
		return allocation.FeeDefinition{}, invalid("calculation_type", "must be fixed or distance, got %q", fj.CalculationType)
	}

	if fj.AllocationStrategy == string(allocation.StrategyCustom) {
		fee.AllocationStrategy = allocation.StrategyCustom
	}

	if (fee.IsStoreSpecial || fee.Category == allocation.CategoryStoreSpecial) && fee.StoreID == 0 {
		return allocation.FeeDefinition{}, invalid("store_id", "required for store-special fees")
	}

	for i, rj := range fj.AllocationRules {
		rule, err := parseRule(rj)
		if err != nil {
			return allocation.FeeDefinition{}, fmt.Errorf("allocation_rules[%d]: %w", i, err)
		}
		fee.AllocationRules = append(fee.AllocationRules, rule)
	}

	splitByRules := fee.CalculationType == allocation.CalcDistance ||
		(fee.AutoAllocate && fee.AllocationStrategy == allocation.StrategyCustom)
	if splitByRules {
		if err := allocation.ValidateRules(fee.AllocationRules); err != nil {
			var ire *allocation.InvalidRulesError
			if errors.As(err, &ire) {
				ire.FeeID = fee.ID
			}
			return allocation.FeeDefinition{}, err
		}
	}

	return fee, nil
}

// ToJSON converts a FeeDefinition to FeeJSON.
func (f *FeeFactory) ToJSON(fee allocation.FeeDefinition) FeeJSON {
	price, _ := fee.Price.Float64()
	unitPrice, _ := fee.DistanceUnitPrice.Float64()
	fj := FeeJSON{
		ID:                 int64(fee.ID),
		Name:               fee.Name,
		Category:           string(fee.Category),
		Price:              price,
		Unit:               fee.Unit,
		OwnerType:          string(fee.OwnerType),
		IsStoreSpecial:     fee.IsStoreSpecial,
		StoreID:            int64(fee.StoreID),
		StoreName:          fee.StoreName,
		CalculationType:    string(fee.CalculationType),
		DistanceUnitPrice:  unitPrice,
		AutoAllocate:       fee.AutoAllocate,
		AllocationStrategy: string(fee.AllocationStrategy),
	}
	for _, r := range fee.AllocationRules {
		pct, _ := r.Percentage.Float64()
		fj.AllocationRules = append(fj.AllocationRules, RuleJSON{
			PartyType:  string(r.PartyType),
			PartyID:    int64(r.PartyID),
			PartyName:  r.PartyName,
			Percentage: pct,
		})
	}
	return fj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseCategory(s string) allocation.Category {
	switch c := allocation.Category(s); c {
	case allocation.CategoryInsurance, allocation.CategoryEquipment, allocation.CategoryService,
		allocation.CategoryStoreSpecial, allocation.CategorySpecial:
		return c
	default:
		return allocation.CategoryOther
	}
}

func parseRule(rj RuleJSON) (allocation.Rule, error) {
	pt := allocation.PartyType(rj.PartyType)
	switch pt {
	case allocation.PartyPlatform, allocation.PartyPickupStore, allocation.PartyReturnStore:
	case allocation.PartyServiceStore:
		if rj.PartyID == 0 {
			return allocation.Rule{}, invalid("party_id", "required for service_store")
		}
	default:
		return allocation.Rule{}, invalid("party_type", "unknown party type %q", rj.PartyType)
	}
	return allocation.Rule{
		PartyType:  pt,
		PartyID:    generic.StoreID(rj.PartyID),
		PartyName:  rj.PartyName,
		Percentage: decimal.NewFromFloat(rj.Percentage),
	}, nil
}
