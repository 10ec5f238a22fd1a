package handlers

import (
	"context"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/domain"
	"tekmax-dispatch/internal/event"
	"tekmax-dispatch/internal/repository"
)

// webhookResolver identifies the restaurant behind an inbound API key.
type webhookResolver interface {
	ResolveWebhook(ctx context.Context, apiKey string) (*repository.WebhookConfig, error)
}

// inboundNormalizer turns raw webhook payloads into events.
type inboundNormalizer interface {
	Inbound(providerName string, raw []byte) (event.Event, error)
}

// dispatcher is the state machine surface the webhook drives.
type dispatcher interface {
	HandleInbound(ctx context.Context, restaurantID uuid.UUID, ev event.Event) error
}

// deliveryReader serves the read endpoints.
type deliveryReader interface {
	GetDelivery(ctx context.Context, id uuid.UUID) (*domain.Delivery, error)
}
