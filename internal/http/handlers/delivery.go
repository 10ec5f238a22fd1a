package handlers

import (
	"net/http"

	"tekmax-dispatch/internal/logx"
)

// DeliveryHandler serves delivery read endpoints.
type DeliveryHandler struct {
	store  deliveryReader
	logger logx.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(logger logx.Logger, store deliveryReader) *DeliveryHandler {
	return &DeliveryHandler{store: store, logger: logger}
}

// Get handles GET /api/deliveries/{id}.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	d, err := h.store.GetDelivery(r.Context(), id)
	if err != nil {
		h.logger.Error("get delivery", logx.String("req_id", reqID(r.Context())), logx.Err(err))
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if d == nil {
		writeError(h.logger, w, r, http.StatusNotFound, "delivery not found")
		return
	}

	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

// GetStatus handles GET /api/deliveries/{id}/status, the thin tracking view.
func (h *DeliveryHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	d, err := h.store.GetDelivery(r.Context(), id)
	if err != nil {
		h.logger.Error("get delivery status", logx.String("req_id", reqID(r.Context())), logx.Err(err))
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if d == nil {
		writeError(h.logger, w, r, http.StatusNotFound, "delivery not found")
		return
	}

	writeJSON(h.logger, w, r, http.StatusOK, deliveryStatusResponse{
		ID:            d.ID.String(),
		Status:        string(d.Status),
		PickedUpAt:    d.PickedUpAt,
		DeliveredAt:   d.DeliveredAt,
		FailureReason: d.FailureReason,
	})
}
