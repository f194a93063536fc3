// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types carried in the Envelope's Type field.
const (
	TypeOrderPlaced    = "order.placed"
	TypeOrderCompleted = "order.completed"
)

// Envelope wraps every message on the order.lifecycle queue so one
// durable queue can carry multiple event kinds.
type Envelope struct {
	Type  string     `json:"type"`
	Order OrderEvent `json:"order"`
}

// OrderEvent is published when an order is placed or completed.  It
// contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.  Prices
// are decimal strings; timestamps are RFC 3339.
type OrderEvent struct {
	OrderID     uint64           `json:"order_id"`
	ExternalID  string           `json:"external_id"`
	UserID      uint64           `json:"user_id"`
	PickupCode  string           `json:"pickup_code,omitempty"`
	TotalPrice  string           `json:"total_price"`
	Items       []OrderEventItem `json:"items"`
	RTEReleased int              `json:"rte_released,omitempty"`
	OccurredAt  string           `json:"occurred_at"`
}

// OrderEventItem summarizes one order line.
type OrderEventItem struct {
	Item      string `json:"item"`
	Variation string `json:"variation"`
	Quantity  uint32 `json:"quantity"`
	Price     string `json:"price"`
}
