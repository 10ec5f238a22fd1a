package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rider represents a delivery rider owned by a restaurant.
type Rider struct {
	ID             uuid.UUID
	RestaurantID   uuid.UUID
	Name           string
	Available      bool
	Load           int
	MaxConcurrent  int
	Location       *Coordinates
	LastAssignedAt *time.Time
}

// CanTake reports whether the rider may accept one more delivery.
func (r Rider) CanTake() bool {
	return r.Available && r.Load < r.MaxConcurrent
}
