/*
Package allocation splits ancillary fee revenue among the parties that
fulfil an order.

PURPOSE:
  An order collects extra fees (insurance, equipment, one-way relocation,
  store-specific services). Settlement needs, per fee, how much goes to the
  platform, the pickup store, the return store or a service-providing store.

KEY CONCEPTS IN THIS FILE (types.go):
  - FeeDefinition: how a fee is priced and who owns it
  - Rule: one party's percentage of a fee
  - LineItem: the computed fee with its per-party allocations

INVARIANT:
  For every LineItem with allocations, the allocation amounts sum to
  TotalAmount exactly. The last rule absorbs the rounding remainder.

SEE ALSO:
  - engine.go: Dispatch and split arithmetic
  - report.go: Aggregation by party for reconciliation
  - factory/fees.go: JSON fee definitions
*/
package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// FEE DEFINITION
// =============================================================================

type Category string

const (
	CategoryInsurance    Category = "insurance"
	CategoryEquipment    Category = "equipment"
	CategoryService      Category = "service"
	CategoryStoreSpecial Category = "store_special"
	CategorySpecial      Category = "special"
	CategoryOther        Category = "other"
)

type OwnerType string

const (
	OwnerPlatform   OwnerType = "platform"
	OwnerStore      OwnerType = "store"
	OwnerMultiParty OwnerType = "multi_party"
)

type CalculationType string

const (
	CalcFixed    CalculationType = "fixed"
	CalcDistance CalculationType = "distance"
)

type Strategy string

const (
	StrategySplitEvenly Strategy = "split_evenly"
	StrategyCustom      Strategy = "custom"
)

// FeeDefinition is an ancillary fee as configured by staff.
type FeeDefinition struct {
	ID        generic.FeeID
	Name      string
	Category  Category
	Price     decimal.Decimal
	Unit      string
	OwnerType OwnerType

	// Store-owned and store-special fees
	IsStoreSpecial bool
	StoreID        generic.StoreID
	StoreName      string

	// Distance-priced special fees
	CalculationType   CalculationType
	DistanceUnitPrice decimal.Decimal

	// Multi-party fees
	AutoAllocate       bool
	AllocationStrategy Strategy
	AllocationRules    []Rule
}

// =============================================================================
// PARTIES
// =============================================================================

type PartyType string

const (
	PartyPlatform     PartyType = "platform"
	PartyPickupStore  PartyType = "pickup_store"
	PartyReturnStore  PartyType = "return_store"
	PartyServiceStore PartyType = "service_store"
)

// Rule assigns a percentage of a fee to a party. PickupStore and ReturnStore
// rules are placeholders resolved against the order; ServiceStore rules name
// their store in PartyID.
type Rule struct {
	PartyType  PartyType       `json:"party_type"`
	PartyID    generic.StoreID `json:"party_id,omitempty"`
	PartyName  string          `json:"party_name,omitempty"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Allocation is a resolved party's share of a fee.
type Allocation struct {
	PartyType  PartyType       `json:"party_type"`
	PartyID    generic.StoreID `json:"party_id,omitempty"`
	PartyName  string          `json:"party_name,omitempty"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// =============================================================================
// ORDER & LINE ITEM
// =============================================================================

// Order carries the stores that handled a rental.
type Order struct {
	ID              string
	PickupStoreID   generic.StoreID
	PickupStoreName string
	ReturnStoreID   generic.StoreID
	ReturnStoreName string
}

// Dispatch records which allocation path produced a line item.
type Dispatch string

const (
	DispatchStoreSpecial Dispatch = "store_special"
	DispatchDistance     Dispatch = "distance"
	DispatchPlatform     Dispatch = "platform"
	DispatchSingleStore  Dispatch = "single_store"
	DispatchAutoAllocate Dispatch = "auto_allocate"
	DispatchUnallocated  Dispatch = "unallocated"
)

// LineItem is a fee as charged on one order.
type LineItem struct {
	FeeID       generic.FeeID
	Name        string
	Category    Category
	OwnerType   OwnerType
	UnitPrice   decimal.Decimal
	Quantity    decimal.Decimal
	Unit        string
	TotalAmount decimal.Decimal
	StoreID     generic.StoreID
	StoreName   string
	Allocations []Allocation
	Dispatch    Dispatch

	// Set for distance-priced fees
	CalculationType CalculationType
	DistanceKm      float64
}

// AllocatedTotal sums the allocation amounts.
func (li LineItem) AllocatedTotal() decimal.Decimal {
	amounts := make([]decimal.Decimal, len(li.Allocations))
	for i, a := range li.Allocations {
		amounts[i] = a.Amount
	}
	return generic.SumMoney(amounts...)
}
