package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states.  The happy path is
// linear: Pending -> Preparing -> Ready for Pickup -> Completed.
// Cancelled is reachable from any non-terminal state.  Completed and
// Cancelled are terminal.  The string values are persisted and shown to
// users verbatim, so they must not change.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusPreparing Status = "Preparing"
	StatusReady     Status = "Ready for Pickup"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// ErrInvalidStatus is returned by ParseStatus for values outside the
// enum.  Callers reject such input instead of silently ignoring it.
var ErrInvalidStatus = errors.New("invalid order status")

// ParseStatus converts an incoming string into a Status.  Unrecognized
// values yield ErrInvalidStatus so that handlers can reject them at the
// boundary.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether the order is still in flight, i.e. in the
// set matched by pickup-code lookups and the vendor dashboard.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusPreparing || s == StatusReady
}

// ActiveStatuses lists the in-flight states in lifecycle order.  Used
// when building SQL IN clauses for dashboard and pickup queries.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusPreparing, StatusReady}
}

// CancelledBy records which side cancelled an order.
type CancelledBy string

const (
	CancelledByVendor CancelledBy = "vendor"
	CancelledByUser   CancelledBy = "user"
)

// Order is a placed order.  TotalPrice is computed once at placement
// from the cart's price snapshots and never recomputed.  PickupCode is
// a short human-readable code used by vendors at handoff; ExternalID is
// the durable public identifier embedded in QR codes and URLs.
//
// Fields:
//
//	ID                   – primary key identifier.
//	UserID               – ordering user.
//	TotalPrice           – sum of price_at_order * quantity over items.
//	Status               – lifecycle state, see Status.
//	ExternalID           – unique UUID exposed to clients.
//	PickupCode           – unique 5-digit handoff code.
//	IsReadyToEatPurchase – true when any item claimed a ready-to-eat unit.
//	CancellationReason   – free-form reason, set on cancellation.
//	CancelledBy          – which side cancelled (vendor/user).
//	CreatedAt/UpdatedAt  – row timestamps.
//	PreparingAt/ReadyAt/CompletedAt/CancelledAt – lifecycle stamps.
type Order struct {
	ID                   uint64          // orders.id
	UserID               uint64          // orders.user_id
	TotalPrice           decimal.Decimal // orders.total_price
	Status               Status          // orders.status
	ExternalID           string          // orders.external_id
	PickupCode           string          // orders.pickup_code
	IsReadyToEatPurchase bool            // orders.is_ready_to_eat_purchase
	CancellationReason   *string         // orders.cancellation_reason (nullable)
	CancelledBy          *CancelledBy    // orders.cancelled_by (nullable)
	CreatedAt            time.Time       // orders.created_at
	UpdatedAt            time.Time       // orders.updated_at
	PreparingAt          *time.Time      // orders.preparing_at (nullable)
	ReadyAt              *time.Time      // orders.ready_at (nullable)
	CompletedAt          *time.Time      // orders.completed_at (nullable)
	CancelledAt          *time.Time      // orders.cancelled_at (nullable)
}

// OrderItem is a line of a placed order.  PriceAtOrder snapshots the
// variation price at placement time and is immune to later menu edits.
// ClaimedRTEItemID carries the claim transferred from the originating
// cart item; it is nulled by the database when the claimed unit is
// deleted on completion.
//
// Fields:
//
//	ID               – primary key identifier.
//	OrderID          – owning order.
//	ItemVariationID  – variation ordered.
//	Quantity         – number of units (>= 1; exactly 1 when claiming).
//	PriceAtOrder     – unit price snapshot taken at placement.
//	ClaimedRTEItemID – claimed ready-to-eat unit (nullable, unique).
type OrderItem struct {
	ID               uint64          // order_items.id
	OrderID          uint64          // order_items.order_id
	ItemVariationID  uint64          // order_items.item_variation_id
	Quantity         uint32          // order_items.quantity
	PriceAtOrder     decimal.Decimal // order_items.price_at_order
	ClaimedRTEItemID *uint64         // order_items.claimed_rte_item_id (nullable)
}
