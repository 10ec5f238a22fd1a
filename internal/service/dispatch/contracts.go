package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/service/assign"
)

// settingsStore reads restaurant dispatch configuration.
type settingsStore interface {
	Settings(ctx context.Context, restaurantID uuid.UUID) (*domain.RestaurantSettings, error)
}

// assigner chooses a rider for a delivery.
type assigner interface {
	Assign(d domain.Delivery, riders []domain.Rider, p assign.Policy) (uuid.UUID, error)
}

// StatusChange is the event emitted to the notification dispatcher after
// every committed transition.
type StatusChange struct {
	DeliveryID   uuid.UUID
	OrderID      uuid.UUID
	RestaurantID uuid.UUID
	Status       domain.DeliveryStatus
	Reason       string
	At           time.Time
}

// notifier publishes status changes. Publishing is best effort: a failure
// is logged, never rolled into the transition result.
type notifier interface {
	StatusChanged(ctx context.Context, change StatusChange) error
}
