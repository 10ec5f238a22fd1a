package kafka

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/service/dispatch"
)

// EventDTO is the wire form of a delivery status change.
type EventDTO struct {
	DeliveryID   string    `json:"delivery_id"`
	OrderID      string    `json:"order_id"`
	RestaurantID string    `json:"restaurant_id"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// FromChange converts a status change to its wire form.
func FromChange(c dispatch.StatusChange) EventDTO {
	return EventDTO{
		DeliveryID:   c.DeliveryID.String(),
		OrderID:      c.OrderID.String(),
		RestaurantID: c.RestaurantID.String(),
		Status:       string(c.Status),
		Reason:       c.Reason,
		OccurredAt:   c.At,
	}
}

// ToChange converts a wire event back to a status change.
func ToChange(dto EventDTO) (dispatch.StatusChange, error) {
	deliveryID, err := uuid.Parse(dto.DeliveryID)
	if err != nil {
		return dispatch.StatusChange{}, fmt.Errorf("delivery_id: %w", err)
	}
	orderID, err := uuid.Parse(dto.OrderID)
	if err != nil {
		return dispatch.StatusChange{}, fmt.Errorf("order_id: %w", err)
	}
	restaurantID, err := uuid.Parse(dto.RestaurantID)
	if err != nil {
		return dispatch.StatusChange{}, fmt.Errorf("restaurant_id: %w", err)
	}
	status := domain.DeliveryStatus(dto.Status)
	if !status.Valid() {
		return dispatch.StatusChange{}, fmt.Errorf("unknown status %q", dto.Status)
	}
	return dispatch.StatusChange{
		DeliveryID:   deliveryID,
		OrderID:      orderID,
		RestaurantID: restaurantID,
		Status:       status,
		Reason:       dto.Reason,
		At:           dto.OccurredAt,
	}, nil
}
