package notify

import (
	"context"

	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/logx"
	"tekmax-dispatch/internal/service/dispatch"
)

// Service turns delivery status changes into customer-facing updates.
// The actual channel (SMS, push, email) sits behind the sender; the
// service decides which statuses are worth announcing and how to word
// them.
type Service struct {
	sender Sender
	logger logx.Logger
}

// Sender delivers one rendered notification.
type Sender interface {
	Send(ctx context.Context, restaurantID, orderID, message string) error
}

// NewService creates a notification service. A nil sender logs the
// notification and drops it, which is the single-tenant default.
func NewService(logger logx.Logger, sender Sender) *Service {
	return &Service{sender: sender, logger: logger}
}

// messages holds the customer wording per announced status. Statuses
// absent here are internal and never announced.
var messages = map[domain.DeliveryStatus]string{
	domain.DeliveryConfirmed:  "Your order is confirmed.",
	domain.DeliveryDispatched: "A courier is on the way to pick up your order.",
	domain.DeliveryPickedUp:   "Your order is on its way.",
	domain.DeliveryDelivered:  "Your order has been delivered. Enjoy!",
	domain.DeliveryCancelled:  "Your order has been cancelled.",
	domain.DeliveryFailed:     "We hit a problem delivering your order. The restaurant will contact you.",
}

// Handle processes one status change from the event stream.
func (s *Service) Handle(ctx context.Context, change dispatch.StatusChange) error {
	msg, ok := messages[change.Status]
	if !ok {
		return nil
	}

	if s.sender == nil {
		s.logger.Info("notification",
			logx.String("order_id", change.OrderID.String()),
			logx.String("status", string(change.Status)),
			logx.String("message", msg),
		)
		return nil
	}

	if err := s.sender.Send(ctx, change.RestaurantID.String(), change.OrderID.String(), msg); err != nil {
		s.logger.Error("notification send failed",
			logx.String("order_id", change.OrderID.String()),
			logx.String("status", string(change.Status)),
			logx.Err(err),
		)
		return err
	}

	s.logger.Info("notification sent",
		logx.String("order_id", change.OrderID.String()),
		logx.String("status", string(change.Status)),
	)
	return nil
}
