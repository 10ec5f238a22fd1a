package domain

import (
	"time"

	"github.com/google/uuid"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Delivery - struct representing the fulfillment of one confirmed order.
//
// Provider is empty for self-fulfilled deliveries. ExternalID is set once
// the courier provider accepts, which is exactly when the delivery reaches
// dispatched. RiderID is set while a rider carries the delivery.
type Delivery struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	RestaurantID uuid.UUID
	Provider     string
	ExternalID   string
	Status       DeliveryStatus
	RiderID      *uuid.UUID
	Pickup       Coordinates
	Dropoff      Coordinates

	RequestedAt *time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time

	LastPolledAt  *time.Time
	PollFailures  int
	FailureReason string
}
