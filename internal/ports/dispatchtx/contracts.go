package dispatchtx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/domain"
)

// Repository is the transactional surface the dispatch state machine
// mutates delivery state through. Every mutation of a delivery, its order,
// its rider's load and its scheduled tasks happens inside one transaction.
type Repository interface {
	InsertOrder(ctx context.Context, o *domain.Order) (bool, error)
	GetOrderByExternalID(ctx context.Context, providerName, externalID string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error

	InsertDelivery(ctx context.Context, d *domain.Delivery) error
	GetDeliveryForUpdate(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	GetDeliveryByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Delivery, error)
	UpdateDelivery(ctx context.Context, d *domain.Delivery) error

	ListCandidateRidersForUpdate(ctx context.Context, restaurantID uuid.UUID) ([]domain.Rider, error)
	AdjustRiderLoad(ctx context.Context, riderID uuid.UUID, delta int, assignedAt *time.Time) error

	InsertTask(ctx context.Context, t *domain.ScheduledTask) error
	DeleteTasksForDelivery(ctx context.Context, deliveryID uuid.UUID) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
