package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/event"
	"tekmax-dispatch/internal/provider"
)

// taskStore is the durable task queue.
type taskStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTask, error)
	Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, attempts int, lastError string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// deliveryStore reads delivery and order state outside transactions.
type deliveryStore interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListPollable(ctx context.Context, limit int) ([]domain.Delivery, error)
	RecordPollResult(ctx context.Context, id uuid.UUID, polledAt time.Time, failed bool) error
}

// credentialStore resolves provider credentials per restaurant.
type credentialStore interface {
	Credentials(ctx context.Context, restaurantID uuid.UUID) (provider.Credentials, error)
}

// machine is the dispatch state machine surface the scheduler drives.
type machine interface {
	Apply(ctx context.Context, deliveryID uuid.UUID, ev event.Event) error
	Fail(ctx context.Context, deliveryID uuid.UUID, reason string) error
}

// normalizer converts polled provider statuses into events.
type normalizer interface {
	Polled(providerName string, st provider.Status) event.Event
}

// counter matches a prometheus counter.
type counter interface {
	Inc()
}
