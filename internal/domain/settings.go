package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistanceUnit is the unit used for delivery radius checks.
type DistanceUnit string

// List of supported distance units
const (
	UnitKilometers DistanceUnit = "km"
	UnitMiles      DistanceUnit = "mi"
)

// Valid checks if the DistanceUnit is valid.
func (u DistanceUnit) Valid() bool {
	return u == UnitKilometers || u == UnitMiles
}

// RestaurantSettings holds per-restaurant dispatch configuration read from
// the restaurant store. Loaded once per operation, never cached globally.
type RestaurantSettings struct {
	RestaurantID       uuid.UUID
	Location           Coordinates
	AutoAssignRiders   bool
	MaxDeliveryRadius  float64
	DistanceUnit       DistanceUnit
	DeliveryFee        decimal.Decimal
	MinimumOrderAmount decimal.Decimal
	Currency           string
}
