package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is a single position of an order.
type LineItem struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// Order represents an inbound order from a provider. An order is immutable
// once confirmed; cancellation is the only later mutation.
type Order struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Provider     string
	ExternalID   string
	Status       OrderStatus
	Items        []LineItem
	Total        decimal.Decimal
	Currency     string
	CreatedAt    time.Time
}
