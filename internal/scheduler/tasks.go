package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/event"
	"tekmax-dispatch/internal/logx"
	"tekmax-dispatch/internal/provider"
)

// TaskRunnerConfig tunes the task runner loop.
type TaskRunnerConfig struct {
	Interval    time.Duration
	Batch       int
	CallTimeout time.Duration
	Backoff     Backoff
}

// TaskRunner drains the durable task queue: courier dispatch calls and
// one-shot status refreshes. Provider calls never run under a delivery
// lock or inside a transaction; their outcome is fed back through the
// state machine.
type TaskRunner struct {
	tasks      taskStore
	deliveries deliveryStore
	creds      credentialStore
	couriers   map[string]provider.CourierSource
	events     normalizer
	dispatch   machine
	logger     logx.Logger
	retries    counter
	failures   counter

	cfg TaskRunnerConfig
	now func() time.Time
}

// NewTaskRunner creates a TaskRunner.
func NewTaskRunner(
	tasks taskStore,
	deliveries deliveryStore,
	creds credentialStore,
	couriers []provider.CourierSource,
	events normalizer,
	dispatch machine,
	logger logx.Logger,
	retries, failures counter,
	cfg TaskRunnerConfig,
) *TaskRunner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	m := make(map[string]provider.CourierSource, len(couriers))
	for _, c := range couriers {
		m[c.Name()] = c
	}
	return &TaskRunner{
		tasks:      tasks,
		deliveries: deliveries,
		creds:      creds,
		couriers:   m,
		events:     events,
		dispatch:   dispatch,
		logger:     logger,
		retries:    retries,
		failures:   failures,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run processes due tasks until the context is cancelled.
func (r *TaskRunner) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce drains one batch of due tasks. Failures of one task never stop
// the batch.
func (r *TaskRunner) RunOnce(ctx context.Context) {
	due, err := r.tasks.Due(ctx, r.now(), r.cfg.Batch)
	if err != nil {
		r.logger.Error("list due tasks", logx.Err(err))
		return
	}

	for _, task := range due {
		if ctx.Err() != nil {
			return
		}
		if err := r.execute(ctx, task); err != nil {
			r.logger.Error("task execution",
				logx.String("task_id", task.ID.String()),
				logx.String("kind", string(task.Kind)),
				logx.Err(err),
			)
		}
	}
}

func (r *TaskRunner) execute(ctx context.Context, task domain.ScheduledTask) error {
	d, err := r.deliveries.GetDelivery(ctx, task.DeliveryID)
	if err != nil {
		return err
	}
	if d == nil || d.Status.Terminal() {
		// the delivery is gone or done; the task has nothing left to do
		return r.tasks.Delete(ctx, task.ID)
	}

	courier, ok := r.couriers[d.Provider]
	if !ok {
		if err := r.tasks.Delete(ctx, task.ID); err != nil {
			return err
		}
		return r.fail(ctx, d, fmt.Sprintf("unknown courier provider %q", d.Provider))
	}

	creds, err := r.creds.Credentials(ctx, d.RestaurantID)
	if err != nil {
		return r.retryOrGiveUp(ctx, task, d, err)
	}

	switch task.Kind {
	case domain.TaskDispatchCall:
		return r.dispatchCall(ctx, task, d, courier, creds)
	case domain.TaskPollDelivery, domain.TaskStatusRefresh:
		return r.statusRefresh(ctx, task, d, courier, creds)
	default:
		r.logger.Warn("unknown task kind dropped",
			logx.String("task_id", task.ID.String()),
			logx.String("kind", string(task.Kind)),
		)
		return r.tasks.Delete(ctx, task.ID)
	}
}

// dispatchCall requests a courier for an assigned delivery and advances
// it to dispatched with the provider's handle.
func (r *TaskRunner) dispatchCall(ctx context.Context, task domain.ScheduledTask, d *domain.Delivery, courier provider.CourierSource, creds provider.Credentials) error {
	ord, err := r.deliveries.GetOrder(ctx, d.OrderID)
	if err != nil {
		return r.retryOrGiveUp(ctx, task, d, err)
	}
	if ord == nil {
		if err := r.tasks.Delete(ctx, task.ID); err != nil {
			return err
		}
		return r.fail(ctx, d, "order record missing")
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	handle, err := courier.RequestDelivery(callCtx, creds, provider.DeliveryRequest{
		DeliveryID: d.ID,
		OrderValue: ord.Total,
		Currency:   ord.Currency,
		Pickup:     d.Pickup,
		Dropoff:    d.Dropoff,
	})
	cancel()
	if err != nil {
		return r.retryOrGiveUp(ctx, task, d, err)
	}

	if err := r.dispatch.Apply(ctx, d.ID, event.Event{
		Type:               event.DeliveryAccepted,
		Provider:           d.Provider,
		ExternalDeliveryID: handle.ExternalID,
		OccurredAt:         r.now(),
	}); err != nil {
		// the courier is already requested; keep the task so the
		// handle is not lost on a transient store failure
		return r.retryOrGiveUp(ctx, task, d, err)
	}
	return r.tasks.Delete(ctx, task.ID)
}

// statusRefresh polls the provider once and applies whatever the status
// normalizes to.
func (r *TaskRunner) statusRefresh(ctx context.Context, task domain.ScheduledTask, d *domain.Delivery, courier provider.CourierSource, creds provider.Credentials) error {
	if d.ExternalID == "" {
		return r.tasks.Delete(ctx, task.ID)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	st, err := courier.PollStatus(callCtx, creds, d.ExternalID)
	cancel()
	if err != nil {
		return r.retryOrGiveUp(ctx, task, d, err)
	}

	ev := r.events.Polled(d.Provider, st)
	if ev.Type != event.StatusUnchanged {
		if err := r.dispatch.Apply(ctx, d.ID, ev); err != nil {
			return r.retryOrGiveUp(ctx, task, d, err)
		}
	}
	return r.tasks.Delete(ctx, task.ID)
}

// retryOrGiveUp reschedules the task with backoff while the error is
// transient and attempts remain. Auth and rejection errors, and exhausted
// retries, end the task and fail the delivery.
func (r *TaskRunner) retryOrGiveUp(ctx context.Context, task domain.ScheduledTask, d *domain.Delivery, cause error) error {
	if errors.Is(cause, apperr.ErrStateConflict) || errors.Is(cause, apperr.ErrNotFound) {
		// the delivery moved on underneath the task
		r.logger.Info("task dropped, delivery state moved on",
			logx.String("task_id", task.ID.String()),
			logx.Err(cause),
		)
		return r.tasks.Delete(ctx, task.ID)
	}

	attempts := task.Attempts + 1
	if provider.IsTransient(cause) && attempts < task.MaxAttempts {
		delay := r.cfg.Backoff.Delay(attempts)
		if r.retries != nil {
			r.retries.Inc()
		}
		r.logger.Warn("task retry scheduled",
			logx.String("task_id", task.ID.String()),
			logx.String("kind", string(task.Kind)),
			logx.Int("attempt", attempts),
			logx.Duration("delay", delay),
			logx.Err(cause),
		)
		return r.tasks.Reschedule(ctx, task.ID, r.now().Add(delay), attempts, cause.Error())
	}

	if err := r.tasks.Delete(ctx, task.ID); err != nil {
		return err
	}

	reason := fmt.Sprintf("%s failed: %v", task.Kind, cause)
	if provider.IsTransient(cause) {
		reason = fmt.Sprintf("%s failed after %d attempts: %v", task.Kind, attempts, cause)
	}
	return r.fail(ctx, d, reason)
}

func (r *TaskRunner) fail(ctx context.Context, d *domain.Delivery, reason string) error {
	if r.failures != nil {
		r.failures.Inc()
	}
	r.logger.Error("delivery failed",
		logx.String("delivery_id", d.ID.String()),
		logx.String("reason", reason),
	)
	return r.dispatch.Fail(ctx, d.ID, reason)
}
