package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor represents a food vendor operating one or more counters in the
// canteen.  Staff accounts reference their vendor through users.vendor_id.
//
// Fields:
//
//	ID        – primary key identifier.
//	Name      – unique display name of the vendor.
//	CreatedAt – timestamp of creation.
type Vendor struct {
	ID        uint64    // vendors.id
	Name      string    // vendors.name
	CreatedAt time.Time // vendors.created_at
}

// Counter is a physical stall belonging to exactly one vendor.  Menu
// items hang off a counter, and ready-to-eat units are attributed to
// the counter they sit at.
//
// Fields:
//
//	ID          – primary key identifier.
//	VendorID    – owning vendor.
//	Name        – display name of the counter.
//	Description – free-form description shown to customers.
//	ImageURL    – optional reference to a counter image.
type Counter struct {
	ID          uint64  // counters.id
	VendorID    uint64  // counters.vendor_id
	Name        string  // counters.name
	Description string  // counters.description
	ImageURL    *string // counters.image_url (nullable)
}

// MenuItem is a dish offered at a counter.  The base price is
// informational; the orderable unit is always a variation.
//
// Fields:
//
//	ID          – primary key identifier.
//	CounterID   – counter offering this item.
//	Name        – dish name.
//	Description – free-form description.
//	Price       – base price of the dish.
type MenuItem struct {
	ID          uint64          // menu_items.id
	CounterID   uint64          // menu_items.counter_id
	Name        string          // menu_items.name
	Description string          // menu_items.description
	Price       decimal.Decimal // menu_items.price
}

// ItemVariation is the priceable, orderable unit of a menu item, e.g.
// a size ("Cup", "Tub") or preparation.  Carts and orders always
// reference a variation, never a menu item directly.
//
// Fields:
//
//	ID         – primary key identifier.
//	MenuItemID – parent menu item.
//	Name       – variation name.
//	Price      – price charged for one unit of this variation.
type ItemVariation struct {
	ID         uint64          // item_variations.id
	MenuItemID uint64          // item_variations.menu_item_id
	Name       string          // item_variations.name
	Price      decimal.Decimal // item_variations.price
}
