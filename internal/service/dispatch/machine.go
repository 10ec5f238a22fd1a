package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/event"
	"tekmax-dispatch/internal/logx"
	"tekmax-dispatch/internal/ports/dispatchtx"
	"tekmax-dispatch/internal/service/assign"
)

// Config tunes the state machine service.
type Config struct {
	OperationTimeout time.Duration
	TaskMaxAttempts  int
	CourierProvider  string
}

// Service is the delivery state machine. It is the only writer of order,
// delivery, rider-load and scheduled-task state; every transition runs in
// one transaction under the delivery's lock.
type Service struct {
	repo     dispatchtx.Runner
	settings settingsStore
	assigner assigner
	notifier notifier
	logger   logx.Logger
	locks    *keyedLock

	operationTimeout time.Duration
	taskMaxAttempts  int
	courierProvider  string
	now              func() time.Time
}

// NewService - creates the dispatch state machine service.
func NewService(repo dispatchtx.Runner, settings settingsStore, asg assigner, n notifier, logger logx.Logger, cfg Config) *Service {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 3 * time.Second
	}
	if cfg.TaskMaxAttempts <= 0 {
		cfg.TaskMaxAttempts = 5
	}
	if cfg.CourierProvider == "" {
		cfg.CourierProvider = "doordash"
	}
	return &Service{
		repo:             repo,
		settings:         settings,
		assigner:         asg,
		notifier:         n,
		logger:           logger,
		locks:            newKeyedLock(),
		operationTimeout: cfg.OperationTimeout,
		taskMaxAttempts:  cfg.TaskMaxAttempts,
		courierProvider:  cfg.CourierProvider,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// HandleInbound applies a normalized inbound order event for a restaurant.
func (s *Service) HandleInbound(ctx context.Context, restaurantID uuid.UUID, ev event.Event) error {
	switch ev.Type {
	case event.OrderCreated:
		return s.createOrder(ctx, restaurantID, ev)
	case event.OrderCancelled:
		return s.cancelOrder(ctx, ev)
	default:
		return fmt.Errorf("%w: unexpected inbound event %q", apperr.ErrValidation, ev.Type)
	}
}

// createOrder creates the order and its delivery on the first valid
// webhook for a (provider, external id) pair. Re-delivery of the same
// payload is a no-op with no duplicate side effects.
func (s *Service) createOrder(ctx context.Context, restaurantID uuid.UUID, ev event.Event) error {
	if ev.Order == nil || ev.ExternalOrderID == "" {
		return fmt.Errorf("%w: order payload missing", apperr.ErrValidation)
	}

	cfg, err := s.settings.Settings(ctx, restaurantID)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	in := ev.Order
	var change *StatusChange

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		now := s.now()

		currency := in.Currency
		if currency == "" {
			currency = cfg.Currency
		}
		createdAt := in.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		ord := &domain.Order{
			ID:           uuid.New(),
			RestaurantID: restaurantID,
			Provider:     ev.Provider,
			ExternalID:   ev.ExternalOrderID,
			Status:       domain.OrderConfirmed,
			Items:        in.Items,
			Total:        in.Total,
			Currency:     currency,
			CreatedAt:    createdAt,
		}
		created, err := tx.InsertOrder(ctx, ord)
		if err != nil {
			return err
		}
		if !created {
			// duplicate webhook
			s.logger.Info("duplicate order webhook ignored",
				logx.String("provider", ev.Provider),
				logx.String("external_order_id", ev.ExternalOrderID),
			)
			return nil
		}

		d := &domain.Delivery{
			ID:           uuid.New(),
			OrderID:      ord.ID,
			RestaurantID: restaurantID,
			Status:       domain.DeliveryConfirmed,
			Pickup:       cfg.Location,
			Dropoff:      in.Dropoff,
		}

		switch {
		case !in.NeedsCourier:
			// pickup orders are self-fulfilled
			d.Status = domain.DeliveryDelivered
			d.DeliveredAt = &now
		default:
			d.Status = domain.DeliveryAssignmentPending
			if cfg.AutoAssignRiders {
				if err := s.tryAssign(ctx, tx, d, cfg, now); err != nil {
					return err
				}
			}
		}

		if err := tx.InsertDelivery(ctx, d); err != nil {
			return err
		}

		change = &StatusChange{
			DeliveryID:   d.ID,
			OrderID:      ord.ID,
			RestaurantID: restaurantID,
			Status:       d.Status,
			At:           now,
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, change)
	return nil
}

// tryAssign runs the assignment engine inside the order-creation
// transaction: the rider's load increment and the transition to assigned
// commit together or not at all.
func (s *Service) tryAssign(ctx context.Context, tx dispatchtx.Repository, d *domain.Delivery, cfg *domain.RestaurantSettings, now time.Time) error {
	riders, err := tx.ListCandidateRidersForUpdate(ctx, d.RestaurantID)
	if err != nil {
		return err
	}

	riderID, err := s.assigner.Assign(*d, riders, assign.Policy{
		MaxRadius: cfg.MaxDeliveryRadius,
		Unit:      cfg.DistanceUnit,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNoCandidate) {
			// caller policy: the delivery waits in assignment_pending
			s.logger.Warn("no rider available",
				logx.String("delivery_id", d.ID.String()),
				logx.Int("candidates", len(riders)),
			)
			return nil
		}
		return err
	}

	if err := tx.AdjustRiderLoad(ctx, riderID, 1, &now); err != nil {
		return err
	}

	d.Status = domain.DeliveryAssigned
	d.RiderID = &riderID
	d.Provider = s.courierProvider

	return tx.InsertTask(ctx, &domain.ScheduledTask{
		ID:          uuid.New(),
		Kind:        domain.TaskDispatchCall,
		DeliveryID:  d.ID,
		RunAt:       now,
		MaxAttempts: s.taskMaxAttempts,
	})
}

// cancelOrder cancels the order and, if its delivery has not finished,
// the delivery with it.
func (s *Service) cancelOrder(ctx context.Context, ev event.Event) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var change *StatusChange

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		ord, err := tx.GetOrderByExternalID(ctx, ev.Provider, ev.ExternalOrderID)
		if err != nil {
			return err
		}
		if ord == nil {
			return fmt.Errorf("order %s/%s: %w", ev.Provider, ev.ExternalOrderID, apperr.ErrNotFound)
		}
		if ord.Status == domain.OrderCancelled {
			return nil
		}
		if err := tx.UpdateOrderStatus(ctx, ord.ID, domain.OrderCancelled); err != nil {
			return err
		}

		d, err := tx.GetDeliveryByOrderID(ctx, ord.ID)
		if err != nil {
			return err
		}
		if d == nil || d.Status.Terminal() {
			return nil
		}

		if d.Status.RiderVisible() && d.RiderID != nil {
			if err := tx.AdjustRiderLoad(ctx, *d.RiderID, -1, nil); err != nil {
				return err
			}
		}
		d.Status = domain.DeliveryCancelled
		d.RiderID = nil
		if err := tx.DeleteTasksForDelivery(ctx, d.ID); err != nil {
			return err
		}
		if err := tx.UpdateDelivery(ctx, d); err != nil {
			return err
		}

		change = &StatusChange{
			DeliveryID:   d.ID,
			OrderID:      ord.ID,
			RestaurantID: d.RestaurantID,
			Status:       d.Status,
			At:           s.now(),
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, change)
	return nil
}

// Apply applies a normalized delivery event under the delivery's lock.
// Events representing already-reached progress are no-ops; regressions of
// a terminal state surface apperr.ErrStateConflict and leave the delivery
// untouched.
func (s *Service) Apply(ctx context.Context, deliveryID uuid.UUID, ev event.Event) error {
	if _, ok := eventTarget(ev.Type); !ok {
		return nil
	}

	s.locks.Lock(deliveryID)
	defer s.locks.Unlock(deliveryID)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var change *StatusChange

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("delivery %s: %w", deliveryID, apperr.ErrNotFound)
		}

		wasVisible := d.Status.RiderVisible()
		changed, err := advance(d, ev, s.now())
		if err != nil {
			return fmt.Errorf("delivery %s: event %s on status %s: %w", d.ID, ev.Type, d.Status, err)
		}
		if !changed {
			return nil
		}

		if wasVisible && !d.Status.RiderVisible() && d.RiderID != nil {
			if err := tx.AdjustRiderLoad(ctx, *d.RiderID, -1, nil); err != nil {
				return err
			}
		}
		if d.Status == domain.DeliveryFailed || d.Status == domain.DeliveryCancelled {
			d.RiderID = nil
		}
		if d.Status.Terminal() {
			if err := tx.DeleteTasksForDelivery(ctx, d.ID); err != nil {
				return err
			}
		}

		if err := tx.UpdateDelivery(ctx, d); err != nil {
			return err
		}

		change = &StatusChange{
			DeliveryID:   d.ID,
			OrderID:      d.OrderID,
			RestaurantID: d.RestaurantID,
			Status:       d.Status,
			Reason:       d.FailureReason,
			At:           s.now(),
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, change)
	return nil
}

// Fail drives a delivery to failed after a terminal provider error or
// exhausted retries.
func (s *Service) Fail(ctx context.Context, deliveryID uuid.UUID, reason string) error {
	return s.Apply(ctx, deliveryID, event.Event{Type: event.DeliveryFailed, Reason: reason})
}

func (s *Service) notify(ctx context.Context, change *StatusChange) {
	if change == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.StatusChanged(ctx, *change); err != nil {
		s.logger.Warn("status change publish failed",
			logx.String("delivery_id", change.DeliveryID.String()),
			logx.String("status", string(change.Status)),
			logx.Err(err),
		)
	}
}
