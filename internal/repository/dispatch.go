package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/ports/dispatchtx"
)

// DispatchRepo owns the orders/deliveries/riders/scheduled_tasks records
// the state machine mutates. All mutation runs inside WithTx.
type DispatchRepo struct {
	db *pgxpool.Pool
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DispatchRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			err = tx.Rollback(ctx)
			if err != nil {
				panic(err)
			}
			panic(p)
		}
	}()

	wrapped := &TxRepo{tx: tx}

	if err := fn(wrapped); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetDelivery - returns a delivery by its ID outside any transaction.
func (r *DispatchRepo) GetDelivery(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	return scanDelivery(r.db.QueryRow(ctx, deliverySelect+` WHERE id = $1`, id))
}

// GetOrder - returns an order by its ID outside any transaction.
func (r *DispatchRepo) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `
        SELECT id, restaurant_id, provider, external_id, status, items, total, currency, created_at
        FROM orders
        WHERE id = $1
    `, id)

	var o domain.Order
	var status string
	var items []byte
	if err := row.Scan(&o.ID, &o.RestaurantID, &o.Provider, &o.ExternalID, &status, &items, &o.Total, &o.Currency, &o.CreatedAt); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

// ListPollable returns deliveries in a non-terminal dispatched-or-later
// state with an external delivery id, the ones worth polling.
func (r *DispatchRepo) ListPollable(ctx context.Context, limit int) ([]domain.Delivery, error) {
	rows, err := r.db.Query(ctx, deliverySelect+`
        WHERE status IN ('dispatched', 'picked_up')
          AND external_id <> ''
        ORDER BY last_polled_at NULLS FIRST
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list pollable deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// RecordPollResult stores poll bookkeeping without touching delivery state.
func (r *DispatchRepo) RecordPollResult(ctx context.Context, id uuid.UUID, polledAt time.Time, failed bool) error {
	q := `UPDATE deliveries SET last_polled_at = $2, poll_failures = 0 WHERE id = $1`
	if failed {
		q = `UPDATE deliveries SET last_polled_at = $2, poll_failures = poll_failures + 1 WHERE id = $1`
	}
	if _, err := r.db.Exec(ctx, q, id, polledAt); err != nil {
		return fmt.Errorf("record poll result %s: %w", id, err)
	}
	return nil
}

// TxRepo represents a dispatch transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

var _ dispatchtx.Repository = (*TxRepo)(nil)

// InsertOrder inserts the order if no order with the same (provider,
// external id) exists yet. Returns whether a row was created.
func (r *TxRepo) InsertOrder(ctx context.Context, o *domain.Order) (bool, error) {
	items, err := json.Marshal(itemsToJSON(o.Items))
	if err != nil {
		return false, fmt.Errorf("encode order items: %w", err)
	}

	ct, err := r.tx.Exec(ctx, `
        INSERT INTO orders (id, restaurant_id, provider, external_id, status, items, total, currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (provider, external_id) DO NOTHING
    `, o.ID, o.RestaurantID, o.Provider, o.ExternalID, string(o.Status), items, o.Total, o.Currency, o.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert order %s/%s: %w", o.Provider, o.ExternalID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// GetOrderByExternalID - returns the order identified by (provider, external id).
func (r *TxRepo) GetOrderByExternalID(ctx context.Context, providerName, externalID string) (*domain.Order, error) {
	row := r.tx.QueryRow(ctx, `
        SELECT id, restaurant_id, provider, external_id, status, items, total, currency, created_at
        FROM orders
        WHERE provider = $1 AND external_id = $2
    `, providerName, externalID)

	var o domain.Order
	var status string
	var items []byte
	if err := row.Scan(&o.ID, &o.RestaurantID, &o.Provider, &o.ExternalID, &status, &items, &o.Total, &o.Currency, &o.CreatedAt); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s/%s: %w", providerName, externalID, err)
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

// UpdateOrderStatus - updates the status of an order.
func (r *TxRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	ct, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update order status %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// InsertDelivery - inserts a new delivery.
func (r *TxRepo) InsertDelivery(ctx context.Context, d *domain.Delivery) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO deliveries (
            id, order_id, restaurant_id, provider, external_id, status, rider_id,
            pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
            requested_at, accepted_at, picked_up_at, delivered_at,
            last_polled_at, poll_failures, failure_reason
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
    `, d.ID, d.OrderID, d.RestaurantID, d.Provider, d.ExternalID, string(d.Status), d.RiderID,
		d.Pickup.Lat, d.Pickup.Lng, d.Dropoff.Lat, d.Dropoff.Lng,
		d.RequestedAt, d.AcceptedAt, d.PickedUpAt, d.DeliveredAt,
		d.LastPolledAt, d.PollFailures, d.FailureReason)
	if err != nil {
		return fmt.Errorf("insert delivery %s: %w", d.ID, err)
	}
	return nil
}

// GetDeliveryForUpdate - returns a delivery by ID with a row lock.
func (r *TxRepo) GetDeliveryForUpdate(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	return scanDelivery(r.tx.QueryRow(ctx, deliverySelect+` WHERE id = $1 FOR UPDATE`, id))
}

// GetDeliveryByOrderID - returns the delivery owned by the given order.
func (r *TxRepo) GetDeliveryByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Delivery, error) {
	return scanDelivery(r.tx.QueryRow(ctx, deliverySelect+` WHERE order_id = $1 FOR UPDATE`, orderID))
}

// UpdateDelivery - writes the mutable fields of a delivery.
func (r *TxRepo) UpdateDelivery(ctx context.Context, d *domain.Delivery) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET provider = $2,
            external_id = $3,
            status = $4,
            rider_id = $5,
            requested_at = $6,
            accepted_at = $7,
            picked_up_at = $8,
            delivered_at = $9,
            failure_reason = $10
        WHERE id = $1
    `, d.ID, d.Provider, d.ExternalID, string(d.Status), d.RiderID,
		d.RequestedAt, d.AcceptedAt, d.PickedUpAt, d.DeliveredAt, d.FailureReason)
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", d.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %s: %w", d.ID, apperr.ErrNotFound)
	}
	return nil
}

// ListCandidateRidersForUpdate locks and returns the restaurant's riders
// that are available and under their concurrency cap, least loaded first.
func (r *TxRepo) ListCandidateRidersForUpdate(ctx context.Context, restaurantID uuid.UUID) ([]domain.Rider, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT id, restaurant_id, name, available, load, max_concurrent, lat, lng, last_assigned_at
        FROM riders
        WHERE restaurant_id = $1
          AND available = true
          AND load < max_concurrent
        ORDER BY load ASC, last_assigned_at ASC NULLS FIRST
        FOR UPDATE
    `, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list candidate riders: %w", err)
	}
	defer rows.Close()

	var out []domain.Rider
	for rows.Next() {
		var rd domain.Rider
		var lat, lng *float64
		if err := rows.Scan(&rd.ID, &rd.RestaurantID, &rd.Name, &rd.Available, &rd.Load,
			&rd.MaxConcurrent, &lat, &lng, &rd.LastAssignedAt); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			rd.Location = &domain.Coordinates{Lat: *lat, Lng: *lng}
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

// AdjustRiderLoad - shifts a rider's active delivery count. A positive
// delta also stamps last_assigned_at.
func (r *TxRepo) AdjustRiderLoad(ctx context.Context, riderID uuid.UUID, delta int, assignedAt *time.Time) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE riders
        SET load = GREATEST(load + $2, 0),
            last_assigned_at = COALESCE($3, last_assigned_at)
        WHERE id = $1
    `, riderID, delta, assignedAt)
	if err != nil {
		return fmt.Errorf("adjust rider load %s: %w", riderID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("rider %s: %w", riderID, apperr.ErrNotFound)
	}
	return nil
}

// InsertTask - inserts a scheduled task. A second outstanding task of the
// same kind for one delivery is a caller error.
func (r *TxRepo) InsertTask(ctx context.Context, t *domain.ScheduledTask) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO scheduled_tasks (id, kind, delivery_id, run_at, attempts, max_attempts, last_error)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, t.ID, string(t.Kind), t.DeliveryID, t.RunAt, t.Attempts, t.MaxAttempts, t.LastError)
	if err != nil {
		if IsDuplicate(err) {
			return apperr.ErrDuplicateTask
		}
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTasksForDelivery - clears all scheduled tasks of a delivery.
func (r *TxRepo) DeleteTasksForDelivery(ctx context.Context, deliveryID uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM scheduled_tasks WHERE delivery_id = $1`, deliveryID); err != nil {
		return fmt.Errorf("delete tasks for delivery %s: %w", deliveryID, err)
	}
	return nil
}

const deliverySelect = `
    SELECT id, order_id, restaurant_id, provider, external_id, status, rider_id,
           pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
           requested_at, accepted_at, picked_up_at, delivered_at,
           last_polled_at, poll_failures, failure_reason
    FROM deliveries`

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	var status string
	err := row.Scan(&d.ID, &d.OrderID, &d.RestaurantID, &d.Provider, &d.ExternalID, &status, &d.RiderID,
		&d.Pickup.Lat, &d.Pickup.Lng, &d.Dropoff.Lat, &d.Dropoff.Lng,
		&d.RequestedAt, &d.AcceptedAt, &d.PickedUpAt, &d.DeliveredAt,
		&d.LastPolledAt, &d.PollFailures, &d.FailureReason)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}
	d.Status = domain.DeliveryStatus(status)
	return &d, nil
}

type jsonLineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

func itemsToJSON(items []domain.LineItem) []jsonLineItem {
	out := make([]jsonLineItem, 0, len(items))
	for _, it := range items {
		out = append(out, jsonLineItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price.String()})
	}
	return out
}
