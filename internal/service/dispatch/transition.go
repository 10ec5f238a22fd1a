package dispatch

import (
	"time"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/event"
)

// eventTarget maps a normalized event type onto the delivery status it
// represents. Event types that carry no delivery status report false.
func eventTarget(t event.Type) (domain.DeliveryStatus, bool) {
	switch t {
	case event.DeliveryAccepted:
		return domain.DeliveryDispatched, true
	case event.DeliveryPickedUp:
		return domain.DeliveryPickedUp, true
	case event.DeliveryDelivered:
		return domain.DeliveryDelivered, true
	case event.DeliveryFailed:
		return domain.DeliveryFailed, true
	default:
		return "", false
	}
}

// advance applies ev to d under the monotonic-progress policy and reports
// whether d changed. External event order is not guaranteed, so progress
// is judged against the status rank, never against an exact prior state:
// an event for a status already reached or passed is a no-op; an event
// that would regress a terminal state is a conflict and leaves d intact.
func advance(d *domain.Delivery, ev event.Event, now time.Time) (bool, error) {
	target, ok := eventTarget(ev.Type)
	if !ok {
		return false, nil
	}
	if d.Status == target {
		return false, nil
	}
	if d.Status.Terminal() {
		return false, apperr.ErrStateConflict
	}

	if target == domain.DeliveryFailed {
		d.Status = domain.DeliveryFailed
		d.FailureReason = ev.Reason
		if d.FailureReason == "" {
			d.FailureReason = "provider failure"
		}
		return true, nil
	}

	cur, _ := d.Status.Rank()
	tr, _ := target.Rank()
	if tr <= cur {
		// late arrival of a milestone the delivery has already passed
		return false, nil
	}

	dispatchedRank, _ := domain.DeliveryDispatched.Rank()
	if cur < dispatchedRank {
		ext := ev.ExternalDeliveryID
		if ext == "" {
			ext = d.ExternalID
		}
		if ext == "" {
			// a delivery cannot be dispatched without a provider handle
			return false, apperr.ErrStateConflict
		}
		d.ExternalID = ext
		if d.RequestedAt == nil {
			d.RequestedAt = &now
		}
		if d.AcceptedAt == nil {
			d.AcceptedAt = &now
		}
	}

	pickedUpRank, _ := domain.DeliveryPickedUp.Rank()
	if tr >= pickedUpRank && d.PickedUpAt == nil {
		d.PickedUpAt = &now
	}
	if target == domain.DeliveryDelivered && d.DeliveredAt == nil {
		d.DeliveredAt = &now
	}

	d.Status = target
	return true, nil
}
