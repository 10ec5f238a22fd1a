//go:build integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/ports/dispatchtx"
	"tekmax-dispatch/internal/repository"
)

type DispatchRepositorySuite struct {
	suite.Suite
	pool *pgxpool.Pool
	repo *repository.DispatchRepo
}

func (s *DispatchRepositorySuite) SetupSuite() {
	s.Require().NotNil(tcPool, "tcPool must be initialized in TestMain")

	s.pool = tcPool
	s.repo = repository.NewDispatchRepo(tcPool)
}

func (s *DispatchRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(),
		`TRUNCATE orders, deliveries, riders, scheduled_tasks CASCADE`)
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) newOrder() *domain.Order {
	return &domain.Order{
		ID:           uuid.New(),
		RestaurantID: uuid.New(),
		Provider:     "gloria_food",
		ExternalID:   uuid.NewString(),
		Status:       domain.OrderConfirmed,
		Items: []domain.LineItem{
			{Name: "Margherita", Quantity: 2, Price: decimal.RequireFromString("11.50")},
		},
		Total:     decimal.RequireFromString("23.00"),
		Currency:  "USD",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *DispatchRepositorySuite) newDelivery(orderID uuid.UUID, status domain.DeliveryStatus) *domain.Delivery {
	return &domain.Delivery{
		ID:           uuid.New(),
		OrderID:      orderID,
		RestaurantID: uuid.New(),
		Status:       status,
		Pickup:       domain.Coordinates{Lat: 40.75, Lng: -73.98},
		Dropoff:      domain.Coordinates{Lat: 40.73, Lng: -73.99},
	}
}

func (s *DispatchRepositorySuite) insertDelivery(d *domain.Delivery) {
	err := s.repo.WithTx(context.Background(), func(tx dispatchtx.Repository) error {
		return tx.InsertDelivery(context.Background(), d)
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) insertOrder(o *domain.Order) {
	err := s.repo.WithTx(context.Background(), func(tx dispatchtx.Repository) error {
		created, err := tx.InsertOrder(context.Background(), o)
		if err == nil {
			s.Require().True(created)
		}
		return err
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) TestInsertOrder_SecondInsertIsNoop() {
	ctx := context.Background()
	o := s.newOrder()
	s.insertOrder(o)

	dup := *o
	dup.ID = uuid.New()
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		created, err := tx.InsertOrder(ctx, &dup)
		s.Require().NoError(err)
		s.False(created, "same provider order must not create a second row")
		return nil
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) TestGetOrderByExternalID() {
	ctx := context.Background()
	o := s.newOrder()
	s.insertOrder(o)

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		got, err := tx.GetOrderByExternalID(ctx, o.Provider, o.ExternalID)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal(o.ID, got.ID)
		s.Equal(o.Status, got.Status)
		s.Require().Len(got.Items, 1)
		s.Equal("Margherita", got.Items[0].Name)
		s.True(got.Items[0].Price.Equal(decimal.RequireFromString("11.50")))
		s.True(got.Total.Equal(o.Total))

		missing, err := tx.GetOrderByExternalID(ctx, o.Provider, "nope")
		s.Require().NoError(err)
		s.Nil(missing)
		return nil
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) TestGetOrder_OutsideTx() {
	ctx := context.Background()
	o := s.newOrder()
	s.insertOrder(o)

	got, err := s.repo.GetOrder(ctx, o.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(o.ExternalID, got.ExternalID)

	missing, err := s.repo.GetOrder(ctx, uuid.New())
	s.Require().NoError(err)
	s.Nil(missing)
}

func (s *DispatchRepositorySuite) TestUpdateOrderStatus_NotFound() {
	ctx := context.Background()

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateOrderStatus(ctx, uuid.New(), domain.OrderCancelled)
	})
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *DispatchRepositorySuite) TestDeliveryRoundTrip() {
	ctx := context.Background()
	o := s.newOrder()
	s.insertOrder(o)

	d := s.newDelivery(o.ID, domain.DeliveryAssigned)
	riderID := uuid.New()
	d.RiderID = &riderID
	s.insertDelivery(d)

	got, err := s.repo.GetDelivery(ctx, d.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(d.OrderID, got.OrderID)
	s.Equal(domain.DeliveryAssigned, got.Status)
	s.Require().NotNil(got.RiderID)
	s.Equal(riderID, *got.RiderID)
	s.InDelta(40.75, got.Pickup.Lat, 1e-9)

	accepted := time.Now().UTC().Truncate(time.Millisecond)
	got.Status = domain.DeliveryDispatched
	got.Provider = "doordash"
	got.ExternalID = "dd-123"
	got.RequestedAt = &accepted
	got.AcceptedAt = &accepted

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateDelivery(ctx, got)
	})
	s.Require().NoError(err)

	again, err := s.repo.GetDelivery(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(domain.DeliveryDispatched, again.Status)
	s.Equal("dd-123", again.ExternalID)
	s.Require().NotNil(again.AcceptedAt)
	s.True(again.AcceptedAt.Equal(accepted))
}

func (s *DispatchRepositorySuite) TestGetDelivery_NotFound() {
	got, err := s.repo.GetDelivery(context.Background(), uuid.New())
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *DispatchRepositorySuite) TestWithTx_RollsBackOnError() {
	ctx := context.Background()
	o := s.newOrder()

	boom := errors.New("boom")
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		created, err := tx.InsertOrder(ctx, o)
		s.Require().NoError(err)
		s.Require().True(created)
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.repo.GetOrder(ctx, o.ID)
	s.Require().NoError(err)
	s.Nil(got, "rolled back order must not be visible")
}

func (s *DispatchRepositorySuite) TestListPollable_OnlyDispatchedWithHandle() {
	ctx := context.Background()

	seed := func(status domain.DeliveryStatus, externalID string) uuid.UUID {
		o := s.newOrder()
		s.insertOrder(o)
		d := s.newDelivery(o.ID, status)
		d.ExternalID = externalID
		if externalID != "" {
			d.Provider = "doordash"
		}
		s.insertDelivery(d)
		return d.ID
	}

	dispatched := seed(domain.DeliveryDispatched, "dd-1")
	pickedUp := seed(domain.DeliveryPickedUp, "dd-2")
	seed(domain.DeliveryDelivered, "dd-3")
	seed(domain.DeliveryAssigned, "")

	got, err := s.repo.ListPollable(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 2)

	ids := []uuid.UUID{got[0].ID, got[1].ID}
	s.Contains(ids, dispatched)
	s.Contains(ids, pickedUp)
}

func (s *DispatchRepositorySuite) TestRecordPollResult() {
	ctx := context.Background()
	o := s.newOrder()
	s.insertOrder(o)
	d := s.newDelivery(o.ID, domain.DeliveryDispatched)
	d.Provider = "doordash"
	d.ExternalID = "dd-9"
	s.insertDelivery(d)

	at := time.Now().UTC().Truncate(time.Millisecond)
	s.Require().NoError(s.repo.RecordPollResult(ctx, d.ID, at, true))
	s.Require().NoError(s.repo.RecordPollResult(ctx, d.ID, at, true))

	got, err := s.repo.GetDelivery(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(2, got.PollFailures)
	s.Require().NotNil(got.LastPolledAt)
	s.True(got.LastPolledAt.Equal(at))

	s.Require().NoError(s.repo.RecordPollResult(ctx, d.ID, at, false))
	got, err = s.repo.GetDelivery(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(0, got.PollFailures, "successful poll resets the failure streak")
}

func (s *DispatchRepositorySuite) seedRider(restaurantID uuid.UUID, name string, load, maxConcurrent int, available bool, lastAssigned *time.Time) uuid.UUID {
	id := uuid.New()
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO riders (id, restaurant_id, name, available, load, max_concurrent, lat, lng, last_assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6, 40.74, -73.98, $7)
	`, id, restaurantID, name, available, load, maxConcurrent, lastAssigned)
	s.Require().NoError(err)
	return id
}

func (s *DispatchRepositorySuite) TestListCandidateRiders_OrderAndFiltering() {
	ctx := context.Background()
	restaurantID := uuid.New()

	earlier := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	busy := s.seedRider(restaurantID, "busy", 1, 3, true, &earlier)
	fresh := s.seedRider(restaurantID, "fresh", 0, 3, true, nil)
	s.seedRider(restaurantID, "full", 3, 3, true, nil)
	s.seedRider(restaurantID, "offline", 0, 3, false, nil)
	s.seedRider(uuid.New(), "elsewhere", 0, 3, true, nil)

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		riders, err := tx.ListCandidateRidersForUpdate(ctx, restaurantID)
		s.Require().NoError(err)
		s.Require().Len(riders, 2)
		s.Equal(fresh, riders[0].ID, "least loaded rider comes first")
		s.Equal(busy, riders[1].ID)
		s.Require().NotNil(riders[0].Location)
		s.InDelta(40.74, riders[0].Location.Lat, 1e-9)
		return nil
	})
	s.Require().NoError(err)
}

func (s *DispatchRepositorySuite) TestAdjustRiderLoad() {
	ctx := context.Background()
	restaurantID := uuid.New()
	riderID := s.seedRider(restaurantID, "solo", 0, 2, true, nil)

	at := time.Now().UTC().Truncate(time.Millisecond)
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.AdjustRiderLoad(ctx, riderID, 1, &at)
	})
	s.Require().NoError(err)

	var load int
	var lastAssigned *time.Time
	row := s.pool.QueryRow(ctx, `SELECT load, last_assigned_at FROM riders WHERE id = $1`, riderID)
	s.Require().NoError(row.Scan(&load, &lastAssigned))
	s.Equal(1, load)
	s.Require().NotNil(lastAssigned)
	s.True(lastAssigned.Equal(at))

	// decrement below zero clamps and keeps the stamp
	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if err := tx.AdjustRiderLoad(ctx, riderID, -1, nil); err != nil {
			return err
		}
		return tx.AdjustRiderLoad(ctx, riderID, -1, nil)
	})
	s.Require().NoError(err)

	row = s.pool.QueryRow(ctx, `SELECT load, last_assigned_at FROM riders WHERE id = $1`, riderID)
	s.Require().NoError(row.Scan(&load, &lastAssigned))
	s.Equal(0, load)
	s.Require().NotNil(lastAssigned)
}

func (s *DispatchRepositorySuite) TestAdjustRiderLoad_NotFound() {
	ctx := context.Background()
	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.AdjustRiderLoad(ctx, uuid.New(), 1, nil)
	})
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *DispatchRepositorySuite) TestInsertTask_DuplicateKindRejected() {
	ctx := context.Background()
	o := s.newOrder()
	s.insertOrder(o)
	d := s.newDelivery(o.ID, domain.DeliveryAssigned)
	s.insertDelivery(d)

	task := func() *domain.ScheduledTask {
		return &domain.ScheduledTask{
			ID:          uuid.New(),
			Kind:        domain.TaskDispatchCall,
			DeliveryID:  d.ID,
			RunAt:       time.Now().UTC(),
			MaxAttempts: 5,
		}
	}

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertTask(ctx, task())
	})
	s.Require().NoError(err)

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertTask(ctx, task())
	})
	s.ErrorIs(err, apperr.ErrDuplicateTask)
}

func (s *DispatchRepositorySuite) TestDeleteTasksForDelivery() {
	ctx := context.Background()
	o := s.newOrder()
	s.insertOrder(o)
	d := s.newDelivery(o.ID, domain.DeliveryAssigned)
	s.insertDelivery(d)

	err := s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if err := tx.InsertTask(ctx, &domain.ScheduledTask{
			ID: uuid.New(), Kind: domain.TaskDispatchCall, DeliveryID: d.ID,
			RunAt: time.Now().UTC(), MaxAttempts: 5,
		}); err != nil {
			return err
		}
		return tx.InsertTask(ctx, &domain.ScheduledTask{
			ID: uuid.New(), Kind: domain.TaskStatusRefresh, DeliveryID: d.ID,
			RunAt: time.Now().UTC(), MaxAttempts: 5,
		})
	})
	s.Require().NoError(err)

	err = s.repo.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.DeleteTasksForDelivery(ctx, d.ID)
	})
	s.Require().NoError(err)

	var n int
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM scheduled_tasks WHERE delivery_id = $1`, d.ID)
	s.Require().NoError(row.Scan(&n))
	s.Zero(n)
}

func (s *DispatchRepositorySuite) TestGetDelivery_ContextCanceled_ReturnsError() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := s.repo.GetDelivery(ctx, uuid.New())
	s.Nil(got)
	s.Error(err)
}

func TestDispatchRepositorySuite(t *testing.T) {
	suite.Run(t, new(DispatchRepositorySuite))
}
