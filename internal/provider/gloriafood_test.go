package provider_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tekmax-dispatch/internal/provider"
)

const gloriaPayload = `{
  "count": 1,
  "orders": [
    {
      "id": 9144572,
      "type": "delivery",
      "status": "accepted",
      "total_price": 42.50,
      "currency": "USD",
      "latitude": 40.7128,
      "longitude": -74.0060,
      "fulfill_at": "2025-06-01T18:30:00Z",
      "items": [
        {"name": "Margherita", "quantity": 2, "price": 15.00},
        {"name": "Tiramisu", "quantity": 1, "price": 12.50}
      ]
    }
  ]
}`

func TestGloriaFood_DecodeOrder(t *testing.T) {
	t.Parallel()

	src := provider.NewGloriaFood()
	ord, err := src.DecodeOrder([]byte(gloriaPayload))
	require.NoError(t, err)

	require.Equal(t, "9144572", ord.ExternalID)
	require.Equal(t, "accepted", ord.Status)
	require.True(t, ord.NeedsCourier)
	require.Equal(t, "USD", ord.Currency)
	require.True(t, ord.Total.Equal(decimal.RequireFromString("42.50")))
	require.Len(t, ord.Items, 2)
	require.Equal(t, "Margherita", ord.Items[0].Name)
	require.Equal(t, 2, ord.Items[0].Quantity)
	require.InDelta(t, 40.7128, ord.Dropoff.Lat, 1e-9)
	require.InDelta(t, -74.0060, ord.Dropoff.Lng, 1e-9)
	require.Equal(t, "2025-06-01T18:30:00Z", ord.CreatedAt.Format("2006-01-02T15:04:05Z"))
}

func TestGloriaFood_DecodeOrder_SamePayloadSameRecord(t *testing.T) {
	t.Parallel()

	src := provider.NewGloriaFood()
	a, err := src.DecodeOrder([]byte(gloriaPayload))
	require.NoError(t, err)
	b, err := src.DecodeOrder([]byte(gloriaPayload))
	require.NoError(t, err)

	require.Equal(t, a.ExternalID, b.ExternalID)
	require.Equal(t, a.Status, b.Status)
	require.True(t, a.Total.Equal(b.Total))
}

func TestGloriaFood_DecodeOrder_Invalid(t *testing.T) {
	t.Parallel()

	src := provider.NewGloriaFood()

	_, err := src.DecodeOrder([]byte(`not json`))
	require.Error(t, err)

	_, err = src.DecodeOrder([]byte(`{"count":0,"orders":[]}`))
	require.Error(t, err)

	_, err = src.DecodeOrder([]byte(`{"count":1,"orders":[{"status":"accepted"}]}`))
	require.Error(t, err)
}
