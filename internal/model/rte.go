package model

import "time"

// RTEItem represents exactly one physical ready-to-eat food unit
// available for claiming outside the normal cook-to-order flow.  A unit
// has at most one claimant at any instant: either an active cart item
// or an order item, never both.  The claim itself lives on the claiming
// row (cart_items.claimed_rte_item_id / order_items.claimed_rte_item_id),
// so an RTEItem row carries no claim state of its own.
//
// Fields:
//
//	ID              – primary key identifier.
//	ItemVariationID – variation this unit was prepared as.
//	CounterID       – counter where the unit physically sits.
//	Quantity        – always 1; every row is a single physical unit.
//	AddedAt         – when the unit entered the ledger.
type RTEItem struct {
	ID              uint64    // rte_items.id
	ItemVariationID uint64    // rte_items.item_variation_id
	CounterID       uint64    // rte_items.counter_id
	Quantity        uint32    // rte_items.quantity (fixed at 1)
	AddedAt         time.Time // rte_items.added_at
}
