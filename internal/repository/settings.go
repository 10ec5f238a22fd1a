package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/provider"
)

// SettingsRepo reads per-restaurant dispatch configuration and provider
// credentials. The dispatch core never writes these records.
type SettingsRepo struct {
	db *pgxpool.Pool
}

// NewSettingsRepo creates a new SettingsRepo.
func NewSettingsRepo(db *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Settings - returns the dispatch settings of a restaurant.
func (r *SettingsRepo) Settings(ctx context.Context, restaurantID uuid.UUID) (*domain.RestaurantSettings, error) {
	row := r.db.QueryRow(ctx, `
        SELECT restaurant_id, lat, lng, auto_assign_riders,
               max_delivery_radius, distance_unit, delivery_fee, minimum_order_amount, currency
        FROM restaurant_settings
        WHERE restaurant_id = $1
    `, restaurantID)

	var s domain.RestaurantSettings
	var unit string
	err := row.Scan(&s.RestaurantID, &s.Location.Lat, &s.Location.Lng, &s.AutoAssignRiders,
		&s.MaxDeliveryRadius, &unit, &s.DeliveryFee, &s.MinimumOrderAmount, &s.Currency)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("settings for restaurant %s: %w", restaurantID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get settings %s: %w", restaurantID, err)
	}
	s.DistanceUnit = domain.DistanceUnit(unit)
	return &s, nil
}

// Credentials - returns the provider credentials of a restaurant. Loaded
// once per operation, never cached.
func (r *SettingsRepo) Credentials(ctx context.Context, restaurantID uuid.UUID) (provider.Credentials, error) {
	row := r.db.QueryRow(ctx, `
        SELECT gloria_food_api_key, gloria_food_api_secret,
               doordash_developer_id, doordash_key_id, doordash_signing_secret,
               doordash_merchant_id, doordash_sandbox
        FROM restaurant_settings
        WHERE restaurant_id = $1
    `, restaurantID)

	var c provider.Credentials
	err := row.Scan(&c.APIKey, &c.APISecret, &c.DeveloperID, &c.KeyID, &c.SigningSecret, &c.MerchantID, &c.Sandbox)
	if err != nil {
		if IsNotFound(err) {
			return provider.Credentials{}, fmt.Errorf("credentials for restaurant %s: %w", restaurantID, apperr.ErrNotFound)
		}
		return provider.Credentials{}, fmt.Errorf("get credentials %s: %w", restaurantID, err)
	}
	return c, nil
}

// WebhookConfig identifies the restaurant behind an inbound webhook key.
type WebhookConfig struct {
	RestaurantID uuid.UUID
	Platform     string
	APISecret    string
	Active       bool
}

// ResolveWebhook looks up the webhook configuration for an API key.
func (r *SettingsRepo) ResolveWebhook(ctx context.Context, apiKey string) (*WebhookConfig, error) {
	row := r.db.QueryRow(ctx, `
        SELECT restaurant_id, platform, api_secret, is_active
        FROM webhook_configs
        WHERE api_key = $1
    `, apiKey)

	var w WebhookConfig
	if err := row.Scan(&w.RestaurantID, &w.Platform, &w.APISecret, &w.Active); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve webhook config: %w", err)
	}
	return &w, nil
}
