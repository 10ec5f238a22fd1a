package event

import (
	"time"

	"tekmax-dispatch/internal/provider"
)

// Type tags a normalized event.
type Type string

// List of normalized event types
const (
	OrderCreated      Type = "order_created"
	OrderCancelled    Type = "order_cancelled"
	DeliveryAccepted  Type = "delivery_accepted"
	DeliveryPickedUp  Type = "delivery_picked_up"
	DeliveryDelivered Type = "delivery_delivered"
	DeliveryFailed    Type = "delivery_failed"
	StatusUnchanged   Type = "status_unchanged"
)

// Event is the provider-agnostic representation of an order or delivery
// status change. It is the only thing the state machine consumes.
type Event struct {
	Type               Type
	Provider           string
	ExternalOrderID    string
	ExternalDeliveryID string
	// Order is the canonical order record; set only for OrderCreated.
	Order      *provider.InboundOrder
	Reason     string
	OccurredAt time.Time
}
