//go:build integration

package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/repository"
)

type SettingsRepositorySuite struct {
	suite.Suite
	pool *pgxpool.Pool
	repo *repository.SettingsRepo
}

func (s *SettingsRepositorySuite) SetupSuite() {
	s.Require().NotNil(tcPool, "tcPool must be initialized in TestMain")

	s.pool = tcPool
	s.repo = repository.NewSettingsRepo(tcPool)
}

func (s *SettingsRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(),
		`TRUNCATE restaurant_settings, webhook_configs CASCADE`)
	s.Require().NoError(err)
}

func (s *SettingsRepositorySuite) seedSettings(restaurantID uuid.UUID) {
	_, err := s.pool.Exec(context.Background(), `
		INSERT INTO restaurant_settings (
			restaurant_id, lat, lng, auto_assign_riders,
			max_delivery_radius, distance_unit, delivery_fee, minimum_order_amount, currency,
			gloria_food_api_key, gloria_food_api_secret,
			doordash_developer_id, doordash_key_id, doordash_signing_secret,
			doordash_merchant_id, doordash_sandbox
		) VALUES ($1, 40.75, -73.98, true, 8.5, 'km', 3.50, 15.00, 'USD',
			'gf-key', 'gf-secret', 'dd-dev', 'dd-kid', 'dd-signing', 'dd-merchant', true)
	`, restaurantID)
	s.Require().NoError(err)
}

func (s *SettingsRepositorySuite) TestSettings() {
	ctx := context.Background()
	restaurantID := uuid.New()
	s.seedSettings(restaurantID)

	got, err := s.repo.Settings(ctx, restaurantID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(restaurantID, got.RestaurantID)
	s.True(got.AutoAssignRiders)
	s.InDelta(8.5, got.MaxDeliveryRadius, 1e-9)
	s.Equal(domain.UnitKilometers, got.DistanceUnit)
	s.True(got.DeliveryFee.Equal(decimal.RequireFromString("3.50")))
	s.True(got.MinimumOrderAmount.Equal(decimal.RequireFromString("15.00")))
	s.Equal("USD", got.Currency)
}

func (s *SettingsRepositorySuite) TestSettings_NotFound() {
	got, err := s.repo.Settings(context.Background(), uuid.New())
	s.Nil(got)
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *SettingsRepositorySuite) TestCredentials() {
	ctx := context.Background()
	restaurantID := uuid.New()
	s.seedSettings(restaurantID)

	got, err := s.repo.Credentials(ctx, restaurantID)
	s.Require().NoError(err)
	s.Equal("gf-key", got.APIKey)
	s.Equal("gf-secret", got.APISecret)
	s.Equal("dd-dev", got.DeveloperID)
	s.Equal("dd-kid", got.KeyID)
	s.Equal("dd-signing", got.SigningSecret)
	s.Equal("dd-merchant", got.MerchantID)
	s.True(got.Sandbox)
}

func (s *SettingsRepositorySuite) TestCredentials_NotFound() {
	_, err := s.repo.Credentials(context.Background(), uuid.New())
	s.ErrorIs(err, apperr.ErrNotFound)
}

func (s *SettingsRepositorySuite) TestResolveWebhook() {
	ctx := context.Background()
	restaurantID := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_configs (api_key, restaurant_id, platform, api_secret, is_active)
		VALUES ('hook-key', $1, 'gloria_food', 'hook-secret', true)
	`, restaurantID)
	s.Require().NoError(err)

	got, err := s.repo.ResolveWebhook(ctx, "hook-key")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(restaurantID, got.RestaurantID)
	s.Equal("gloria_food", got.Platform)
	s.Equal("hook-secret", got.APISecret)
	s.True(got.Active)
}

func (s *SettingsRepositorySuite) TestResolveWebhook_UnknownKey() {
	got, err := s.repo.ResolveWebhook(context.Background(), "no-such-key")
	s.Require().NoError(err)
	s.Nil(got)
}

func TestSettingsRepositorySuite(t *testing.T) {
	suite.Run(t, new(SettingsRepositorySuite))
}
