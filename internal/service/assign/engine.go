package assign

import (
	"math"

	"github.com/google/uuid"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/domain"
)

// Policy holds the assignment constraints from restaurant settings.
type Policy struct {
	MaxRadius float64
	Unit      domain.DistanceUnit
}

// Engine chooses a rider for a delivery. The engine is pure: the caller
// commits the rider's load increment atomically with the state transition.
type Engine struct{}

// NewEngine creates an assignment engine.
func NewEngine() *Engine { return &Engine{} }

// Assign picks a rider for the delivery: available, under the concurrency
// cap, within the policy radius of the pickup point. Among survivors the
// lowest load wins; ties go to the rider idle the longest. Riders without
// a known location are assumed at the pickup point.
func (e *Engine) Assign(d domain.Delivery, riders []domain.Rider, p Policy) (uuid.UUID, error) {
	var best *domain.Rider
	for i := range riders {
		r := riders[i]
		if !r.CanTake() {
			continue
		}
		if r.Location != nil && p.MaxRadius > 0 {
			if Distance(*r.Location, d.Pickup, p.Unit) > p.MaxRadius {
				continue
			}
		}
		if best == nil || better(r, *best) {
			best = &riders[i]
		}
	}
	if best == nil {
		return uuid.Nil, apperr.ErrNoCandidate
	}
	return best.ID, nil
}

// better reports whether a should be chosen over b.
func better(a, b domain.Rider) bool {
	if a.Load != b.Load {
		return a.Load < b.Load
	}
	// longest idle first; never-assigned riders beat everyone
	switch {
	case a.LastAssignedAt == nil:
		return b.LastAssignedAt != nil
	case b.LastAssignedAt == nil:
		return false
	default:
		return a.LastAssignedAt.Before(*b.LastAssignedAt)
	}
}

const (
	earthRadiusKm = 6371.0
	kmPerMile     = 1.609344
)

// Distance returns the great-circle distance between two points in the
// given unit.
func Distance(a, b domain.Coordinates, unit domain.DistanceUnit) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	km := 2 * earthRadiusKm * math.Asin(math.Sqrt(h))

	if unit == domain.UnitMiles {
		return km / kmPerMile
	}
	return km
}
