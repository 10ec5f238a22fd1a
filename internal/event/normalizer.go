package event

import (
	"fmt"
	"strings"
	"time"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/provider"
)

// Normalizer converts raw inbound payloads and polled provider statuses
// into normalized events. It never mutates state; rejected input is
// reported to the caller.
type Normalizer struct {
	sources map[string]provider.OrderSource
	now     func() time.Time
}

// NewNormalizer creates a Normalizer over the given order sources.
func NewNormalizer(sources ...provider.OrderSource) *Normalizer {
	m := make(map[string]provider.OrderSource, len(sources))
	for _, s := range sources {
		m[s.Name()] = s
	}
	return &Normalizer{
		sources: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Inbound normalizes a raw webhook payload. The same payload always
// normalizes to the same event.
func (n *Normalizer) Inbound(providerName string, raw []byte) (Event, error) {
	src, ok := n.sources[providerName]
	if !ok {
		return Event{}, fmt.Errorf("%w: unknown order source %q", apperr.ErrValidation, providerName)
	}

	ord, err := src.DecodeOrder(raw)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	switch ord.Status {
	case "accepted", "confirmed", "created":
		return Event{
			Type:            OrderCreated,
			Provider:        providerName,
			ExternalOrderID: ord.ExternalID,
			Order:           &ord,
			OccurredAt:      ord.CreatedAt,
		}, nil
	case "canceled", "cancelled", "rejected":
		return Event{
			Type:            OrderCancelled,
			Provider:        providerName,
			ExternalOrderID: ord.ExternalID,
			OccurredAt:      ord.CreatedAt,
		}, nil
	default:
		return Event{}, fmt.Errorf("%w: unsupported order status %q", apperr.ErrValidation, ord.Status)
	}
}

// courierStates maps courier provider states onto event types. States the
// platform does not track map to StatusUnchanged so that an unknown
// intermediate state never disturbs the delivery.
var courierStates = map[string]Type{
	"created":            DeliveryAccepted,
	"confirmed":          DeliveryAccepted,
	"enroute_to_pickup":  DeliveryAccepted,
	"arrived_at_pickup":  DeliveryAccepted,
	"picked_up":          DeliveryPickedUp,
	"enroute_to_dropoff": DeliveryPickedUp,
	"arrived_at_dropoff": DeliveryPickedUp,
	"delivered":          DeliveryDelivered,
	"cancelled":          DeliveryFailed,
	"canceled":           DeliveryFailed,
	"returned":           DeliveryFailed,
	"failed":             DeliveryFailed,
}

// Polled normalizes a polled courier status.
func (n *Normalizer) Polled(providerName string, st provider.Status) Event {
	state := strings.ToLower(strings.TrimSpace(st.State))
	typ, ok := courierStates[state]
	if !ok {
		typ = StatusUnchanged
	}

	occurred := st.UpdatedAt
	if occurred.IsZero() {
		occurred = n.now()
	}

	ev := Event{
		Type:               typ,
		Provider:           providerName,
		ExternalDeliveryID: st.ExternalID,
		OccurredAt:         occurred,
	}
	if typ == DeliveryFailed {
		ev.Reason = "courier " + state
	}
	return ev
}
