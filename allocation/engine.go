package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/distance"
	"github.com/warp/fleet-pricing/generic"
)

// =============================================================================
// VALIDATION
// =============================================================================

// percentTolerance absorbs decimal noise in user-entered percentages.
var percentTolerance = decimal.RequireFromString("0.01")

// ValidateRules checks that rules are non-empty, every percentage is
// positive and the total is 100 within 0.01.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return &InvalidRulesError{Total: decimal.Zero, Reason: "no rules"}
	}
	total := decimal.Zero
	for _, r := range rules {
		if !r.Percentage.IsPositive() {
			return &InvalidRulesError{Total: total, Reason: fmt.Sprintf("%s percentage must be positive", r.PartyType)}
		}
		total = total.Add(r.Percentage)
	}
	if total.Sub(generic.Hundred).Abs().GreaterThan(percentTolerance) {
		return &InvalidRulesError{Total: total, Reason: "percentages must sum to 100"}
	}
	return nil
}

// =============================================================================
// ENGINE
// =============================================================================

// Observer is notified of every allocation outcome.
type Observer interface {
	FeeAllocated(dispatch Dispatch)
	AllocationFailed(err error)
}

type noopObserver struct{}

func (noopObserver) FeeAllocated(Dispatch)  {}
func (noopObserver) AllocationFailed(error) {}

// Engine allocates fees. Distance-priced fees consult the distance service.
type Engine struct {
	distance *distance.Service
	observer Observer
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func NewEngine(svc *distance.Service, opts ...Option) *Engine {
	if svc == nil {
		svc = distance.NewService(nil)
	}
	e := &Engine{distance: svc, observer: noopObserver{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Allocate computes one fee's line item for an order.
//
// Dispatch precedence:
//  1. store-special fees go entirely to the fee's store
//  2. distance-priced special fees are priced by pickup/return distance and
//     split by the fee's rules
//  3. platform-owned fees go to the platform
//  4. single-store-owned fees go to the fee's store
//  5. auto-allocated fees go to the single store, or are split between
//     pickup and return
//  6. anything else keeps its base fields with no allocations
func (e *Engine) Allocate(fee FeeDefinition, order Order, registry distance.Registry) (LineItem, error) {
	item, err := e.allocate(fee, order, registry)
	if err != nil {
		e.observer.AllocationFailed(err)
		return LineItem{}, err
	}
	e.observer.FeeAllocated(item.Dispatch)
	return item, nil
}

func (e *Engine) allocate(fee FeeDefinition, order Order, registry distance.Registry) (LineItem, error) {
	item := baseItem(fee)

	switch {
	case fee.IsStoreSpecial || fee.Category == CategoryStoreSpecial:
		item.Dispatch = DispatchStoreSpecial
		item.Allocations = []Allocation{{
			PartyType:  PartyServiceStore,
			PartyID:    fee.StoreID,
			PartyName:  fee.StoreName,
			Percentage: generic.Hundred,
			Amount:     item.TotalAmount,
		}}
		return item, nil

	case fee.Category == CategorySpecial && fee.CalculationType == CalcDistance:
		return e.allocateByDistance(item, fee, order, registry)

	case fee.OwnerType == OwnerPlatform:
		item.Dispatch = DispatchPlatform
		item.Allocations = []Allocation{{
			PartyType:  PartyPlatform,
			Percentage: generic.Hundred,
			Amount:     item.TotalAmount,
		}}
		return item, nil

	case fee.OwnerType == OwnerStore && fee.StoreID != 0:
		item.Dispatch = DispatchSingleStore
		item.Allocations = []Allocation{{
			PartyType:  PartyServiceStore,
			PartyID:    fee.StoreID,
			PartyName:  fee.StoreName,
			Percentage: generic.Hundred,
			Amount:     item.TotalAmount,
		}}
		return item, nil

	case fee.AutoAllocate:
		return allocateAuto(item, fee, order)
	}

	item.Dispatch = DispatchUnallocated
	return item, nil
}

func baseItem(fee FeeDefinition) LineItem {
	return LineItem{
		FeeID:       fee.ID,
		Name:        fee.Name,
		Category:    fee.Category,
		OwnerType:   fee.OwnerType,
		UnitPrice:   fee.Price,
		Quantity:    decimal.NewFromInt(1),
		Unit:        fee.Unit,
		TotalAmount: generic.RoundMoney(fee.Price),
		StoreID:     fee.StoreID,
		StoreName:   fee.StoreName,
	}
}

func (e *Engine) allocateByDistance(item LineItem, fee FeeDefinition, order Order, registry distance.Registry) (LineItem, error) {
	if err := ValidateRules(fee.AllocationRules); err != nil {
		return LineItem{}, withFee(err, fee.ID)
	}
	d, err := e.distance.StoreDistance(order.PickupStoreID, order.ReturnStoreID, registry)
	if err != nil {
		return LineItem{}, fmt.Errorf("fee %d: %w", fee.ID, err)
	}

	km := decimal.NewFromFloat(d.Km)
	item.Dispatch = DispatchDistance
	item.CalculationType = CalcDistance
	item.DistanceKm = d.Km
	item.Quantity = km
	item.UnitPrice = fee.DistanceUnitPrice
	item.Unit = "km"
	item.TotalAmount = generic.RoundMoney(km.Mul(fee.DistanceUnitPrice))
	item.Allocations = split(item.TotalAmount, resolveParties(fee.AllocationRules, order))
	return item, nil
}

func allocateAuto(item LineItem, fee FeeDefinition, order Order) (LineItem, error) {
	item.Dispatch = DispatchAutoAllocate

	if order.PickupStoreID == order.ReturnStoreID {
		item.Allocations = []Allocation{{
			PartyType:  PartyPickupStore,
			PartyID:    order.PickupStoreID,
			PartyName:  order.PickupStoreName,
			Percentage: generic.Hundred,
			Amount:     item.TotalAmount,
		}}
		return item, nil
	}

	rules := evenSplit()
	if fee.AllocationStrategy == StrategyCustom {
		if err := ValidateRules(fee.AllocationRules); err != nil {
			return LineItem{}, withFee(err, fee.ID)
		}
		rules = fee.AllocationRules
	}
	item.Allocations = split(item.TotalAmount, resolveParties(rules, order))
	return item, nil
}

func evenSplit() []Rule {
	half := decimal.NewFromInt(50)
	return []Rule{
		{PartyType: PartyPickupStore, Percentage: half},
		{PartyType: PartyReturnStore, Percentage: half},
	}
}

// resolveParties fills pickup and return placeholders from the order.
func resolveParties(rules []Rule, order Order) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		switch r.PartyType {
		case PartyPickupStore:
			r.PartyID, r.PartyName = order.PickupStoreID, order.PickupStoreName
		case PartyReturnStore:
			r.PartyID, r.PartyName = order.ReturnStoreID, order.ReturnStoreName
		}
		out[i] = r
	}
	return out
}

// split rounds every share but the last to 2 dp; the last takes what is left.
func split(total decimal.Decimal, rules []Rule) []Allocation {
	out := make([]Allocation, len(rules))
	assigned := decimal.Zero
	for i, r := range rules {
		var amount decimal.Decimal
		if i == len(rules)-1 {
			amount = total.Sub(assigned)
		} else {
			amount = generic.Percent(total, r.Percentage)
			assigned = assigned.Add(amount)
		}
		out[i] = Allocation{
			PartyType:  r.PartyType,
			PartyID:    r.PartyID,
			PartyName:  r.PartyName,
			Percentage: r.Percentage,
			Amount:     amount,
		}
	}
	return out
}

func withFee(err error, id generic.FeeID) error {
	if ire, ok := err.(*InvalidRulesError); ok {
		ire.FeeID = id
	}
	return err
}

// =============================================================================
// BATCH
// =============================================================================

// AllocateOrderFees allocates every fee of an order. The first failure
// aborts the batch.
func (e *Engine) AllocateOrderFees(fees []FeeDefinition, order Order, registry distance.Registry) ([]LineItem, error) {
	items := make([]LineItem, 0, len(fees))
	for _, fee := range fees {
		item, err := e.Allocate(fee, order, registry)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
