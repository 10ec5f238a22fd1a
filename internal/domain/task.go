package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledTask is a durable unit of deferred, retryable provider work
// scoped to one delivery. A delivery holds at most one outstanding task of
// a given kind.
type ScheduledTask struct {
	ID          uuid.UUID
	Kind        TaskKind
	DeliveryID  uuid.UUID
	RunAt       time.Time
	Attempts    int
	MaxAttempts int
	LastError   *string
}
