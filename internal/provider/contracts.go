package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tekmax-dispatch/internal/domain"
)

// Credentials holds per-restaurant provider credentials, resolved from the
// restaurant store for every operation. Never cached process-wide.
type Credentials struct {
	// Webhook authentication (inbound order source).
	APIKey    string
	APISecret string

	// Courier dispatch (DoorDash Drive).
	DeveloperID   string
	KeyID         string
	SigningSecret string
	MerchantID    string
	Sandbox       bool
}

// InboundOrder is the canonical record an order source produces from a raw
// webhook payload. Anything the provider sends beyond these fields is
// dropped at this boundary.
type InboundOrder struct {
	ExternalID   string
	Status       string
	NeedsCourier bool
	Items        []domain.LineItem
	Total        decimal.Decimal
	Currency     string
	Dropoff      domain.Coordinates
	CreatedAt    time.Time
}

// DeliveryRequest carries the fields a courier source needs to request a
// courier for a delivery.
type DeliveryRequest struct {
	DeliveryID uuid.UUID
	OrderValue decimal.Decimal
	Currency   string
	Pickup     domain.Coordinates
	Dropoff    domain.Coordinates
}

// Handle identifies an accepted delivery on the provider side.
type Handle struct {
	ExternalID string
	Status     string
}

// Status is a raw polled delivery status.
type Status struct {
	ExternalID string
	State      string
	UpdatedAt  time.Time
}

// OrderSource decodes raw inbound order payloads into canonical records.
type OrderSource interface {
	Name() string
	DecodeOrder(raw []byte) (InboundOrder, error)
}

// CourierSource requests couriers and reports delivery status. All calls
// carry bounded timeouts; implementations are stateless beyond held
// configuration.
type CourierSource interface {
	Name() string
	RequestDelivery(ctx context.Context, creds Credentials, req DeliveryRequest) (Handle, error)
	PollStatus(ctx context.Context, creds Credentials, externalID string) (Status, error)
}
