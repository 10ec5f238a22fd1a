package handlers

import "time"

type coordinatesDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type deliveryResponse struct {
	ID            string         `json:"id"`
	OrderID       string         `json:"order_id"`
	RestaurantID  string         `json:"restaurant_id"`
	Provider      string         `json:"provider,omitempty"`
	ExternalID    string         `json:"external_id,omitempty"`
	Status        string         `json:"status"`
	RiderID       *string        `json:"rider_id,omitempty"`
	Pickup        coordinatesDTO `json:"pickup"`
	Dropoff       coordinatesDTO `json:"dropoff"`
	RequestedAt   *time.Time     `json:"requested_at,omitempty"`
	AcceptedAt    *time.Time     `json:"accepted_at,omitempty"`
	PickedUpAt    *time.Time     `json:"picked_up_at,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
}

type deliveryStatusResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	PickedUpAt    *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}
