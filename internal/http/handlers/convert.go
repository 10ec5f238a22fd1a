package handlers

import "tekmax-dispatch/internal/domain"

func deliveryToResponse(d *domain.Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:            d.ID.String(),
		OrderID:       d.OrderID.String(),
		RestaurantID:  d.RestaurantID.String(),
		Provider:      d.Provider,
		ExternalID:    d.ExternalID,
		Status:        string(d.Status),
		Pickup:        coordinatesDTO{Lat: d.Pickup.Lat, Lng: d.Pickup.Lng},
		Dropoff:       coordinatesDTO{Lat: d.Dropoff.Lat, Lng: d.Dropoff.Lng},
		RequestedAt:   d.RequestedAt,
		AcceptedAt:    d.AcceptedAt,
		PickedUpAt:    d.PickedUpAt,
		DeliveredAt:   d.DeliveredAt,
		FailureReason: d.FailureReason,
	}
	if d.RiderID != nil {
		s := d.RiderID.String()
		resp.RiderID = &s
	}
	return resp
}
