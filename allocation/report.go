package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/fleet-pricing/generic"
)

// PartyKey identifies a settlement party.
type PartyKey struct {
	PartyType PartyType       `json:"party_type"`
	PartyID   generic.StoreID `json:"party_id,omitempty"`
}

// PartyTotal is the amount a party receives across line items.
type PartyTotal struct {
	PartyKey
	PartyName string          `json:"party_name,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	FeeCount  int             `json:"fee_count"`
}

var partyOrder = map[PartyType]int{
	PartyPlatform:     0,
	PartyPickupStore:  1,
	PartyReturnStore:  2,
	PartyServiceStore: 3,
}

// SumByParty aggregates allocations by (party type, party id), ordered by
// party type and then id.
func SumByParty(items []LineItem) []PartyTotal {
	totals := make(map[PartyKey]*PartyTotal)
	for _, item := range items {
		for _, a := range item.Allocations {
			key := PartyKey{PartyType: a.PartyType, PartyID: a.PartyID}
			pt, ok := totals[key]
			if !ok {
				pt = &PartyTotal{PartyKey: key, PartyName: a.PartyName, Amount: decimal.Zero}
				totals[key] = pt
			}
			pt.Amount = pt.Amount.Add(a.Amount)
			pt.FeeCount++
		}
	}

	out := make([]PartyTotal, 0, len(totals))
	for _, pt := range totals {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := partyOrder[out[i].PartyType], partyOrder[out[j].PartyType]
		if oi != oj {
			return oi < oj
		}
		return out[i].PartyID < out[j].PartyID
	})
	return out
}

// TotalAmount sums the line item totals.
func TotalAmount(items []LineItem) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(items))
	for i, item := range items {
		amounts[i] = item.TotalAmount
	}
	return generic.SumMoney(amounts...)
}
