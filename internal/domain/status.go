package domain

type (
	// OrderStatus represents the status of an order.
	OrderStatus string
	// DeliveryStatus represents the status of a delivery.
	DeliveryStatus string
	// TaskKind represents the kind of a scheduled task.
	TaskKind string
)

// List of possible order statuses
const (
	OrderReceived  OrderStatus = "received"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

// List of possible delivery statuses
const (
	DeliveryCreated           DeliveryStatus = "created"
	DeliveryConfirmed         DeliveryStatus = "confirmed"
	DeliveryAssignmentPending DeliveryStatus = "assignment_pending"
	DeliveryAssigned          DeliveryStatus = "assigned"
	DeliveryDispatched        DeliveryStatus = "dispatched"
	DeliveryPickedUp          DeliveryStatus = "picked_up"
	DeliveryDelivered         DeliveryStatus = "delivered"
	DeliveryCancelled         DeliveryStatus = "cancelled"
	DeliveryFailed            DeliveryStatus = "failed"
)

// List of possible scheduled task kinds
const (
	TaskPollDelivery  TaskKind = "poll_delivery"
	TaskDispatchCall  TaskKind = "dispatch_call"
	TaskStatusRefresh TaskKind = "status_refresh"
)

// statusRank is the total order over progressing delivery statuses.
// Terminal statuses cancelled and failed sit outside the progression and
// are handled by Terminal.
var statusRank = map[DeliveryStatus]int{
	DeliveryCreated:           0,
	DeliveryConfirmed:         1,
	DeliveryAssignmentPending: 2,
	DeliveryAssigned:          3,
	DeliveryDispatched:        4,
	DeliveryPickedUp:          5,
	DeliveryDelivered:         6,
}

// Rank returns the position of the status in the delivery progression and
// whether the status participates in it.
func (s DeliveryStatus) Rank() (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// Terminal reports whether the status admits no further transitions.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryDelivered, DeliveryCancelled, DeliveryFailed:
		return true
	default:
		return false
	}
}

// Valid checks if the DeliveryStatus is valid.
func (s DeliveryStatus) Valid() bool {
	if _, ok := statusRank[s]; ok {
		return true
	}
	return s == DeliveryCancelled || s == DeliveryFailed
}

// Valid checks if the TaskKind is valid.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskPollDelivery, TaskDispatchCall, TaskStatusRefresh:
		return true
	default:
		return false
	}
}

// RiderVisible reports whether a delivery in this status counts against
// the assigned rider's load.
func (s DeliveryStatus) RiderVisible() bool {
	switch s {
	case DeliveryAssigned, DeliveryDispatched, DeliveryPickedUp:
		return true
	default:
		return false
	}
}
