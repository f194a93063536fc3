package model

import "time"

// Cart is the per-user staging area for an order.  There is exactly one
// cart per user; it is created lazily on first use and survives order
// placement (only its items are deleted).
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owning user (unique).
//	CreatedAt – when the cart was first created.
type Cart struct {
	ID        uint64    // carts.id
	UserID    uint64    // carts.user_id
	CreatedAt time.Time // carts.created_at
}

// CartItem is a line in a cart referencing one item variation.  When
// ClaimedRTEItemID is set the line holds an exclusive claim on a single
// ready-to-eat unit and its quantity is fixed at 1.  Deleting a
// claiming cart item releases the claim implicitly because the claim is
// the foreign key on this row.
//
// Fields:
//
//	ID              – primary key identifier.
//	CartID          – owning cart.
//	ItemVariationID – variation being purchased.
//	Quantity        – number of units (>= 1; exactly 1 when claiming).
//	ClaimedRTEItemID – claimed ready-to-eat unit (nullable, unique).
type CartItem struct {
	ID               uint64  // cart_items.id
	CartID           uint64  // cart_items.cart_id
	ItemVariationID  uint64  // cart_items.item_variation_id
	Quantity         uint32  // cart_items.quantity
	ClaimedRTEItemID *uint64 // cart_items.claimed_rte_item_id (nullable)
}
