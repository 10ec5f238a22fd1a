package provider

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tekmax-dispatch/internal/domain"
)

// NameGloriaFood identifies the Gloria Food order source.
const NameGloriaFood = "gloria_food"

// GloriaFood decodes Gloria Food order webhooks. The webhook posts a batch
// envelope; each accepted or cancelled order inside it becomes one
// InboundOrder.
type GloriaFood struct{}

// NewGloriaFood creates a Gloria Food order source.
func NewGloriaFood() *GloriaFood { return &GloriaFood{} }

// Name returns the provider name.
func (g *GloriaFood) Name() string { return NameGloriaFood }

type gloriaItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type gloriaOrder struct {
	ID         json.Number     `json:"id"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"`
	Latitude   float64         `json:"latitude"`
	Longitude  float64         `json:"longitude"`
	FulfillAt  string          `json:"fulfill_at"`
	Items      []gloriaItem    `json:"items"`
}

type gloriaEnvelope struct {
	Count  int           `json:"count"`
	Orders []gloriaOrder `json:"orders"`
}

// DecodeOrder decodes the first order of a Gloria Food webhook envelope
// into the canonical inbound record.
func (g *GloriaFood) DecodeOrder(raw []byte) (InboundOrder, error) {
	var env gloriaEnvelope
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return InboundOrder{}, fmt.Errorf("gloria food: decode payload: %w", err)
	}
	if len(env.Orders) == 0 {
		return InboundOrder{}, fmt.Errorf("gloria food: payload has no orders")
	}

	o := env.Orders[0]
	externalID := strings.TrimSpace(o.ID.String())
	if externalID == "" {
		return InboundOrder{}, fmt.Errorf("gloria food: order id missing")
	}

	items := make([]domain.LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.LineItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}

	createdAt := time.Now().UTC()
	if o.FulfillAt != "" {
		if ts, err := time.Parse(time.RFC3339, o.FulfillAt); err == nil {
			createdAt = ts.UTC()
		}
	}

	return InboundOrder{
		ExternalID:   externalID,
		Status:       strings.ToLower(strings.TrimSpace(o.Status)),
		NeedsCourier: strings.EqualFold(o.Type, "delivery"),
		Items:        items,
		Total:        o.TotalPrice,
		Currency:     strings.ToUpper(strings.TrimSpace(o.Currency)),
		Dropoff:      domain.Coordinates{Lat: o.Latitude, Lng: o.Longitude},
		CreatedAt:    createdAt,
	}, nil
}
