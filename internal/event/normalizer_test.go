package event_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/event"
	"tekmax-dispatch/internal/provider"
)

type stubSource struct {
	name string
	ord  provider.InboundOrder
	err  error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) DecodeOrder([]byte) (provider.InboundOrder, error) {
	return s.ord, s.err
}

func TestNormalizer_Inbound_OrderCreated(t *testing.T) {
	t.Parallel()

	n := event.NewNormalizer(stubSource{
		name: "gloria_food",
		ord:  provider.InboundOrder{ExternalID: "42", Status: "accepted"},
	})

	ev, err := n.Inbound("gloria_food", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, event.OrderCreated, ev.Type)
	require.Equal(t, "gloria_food", ev.Provider)
	require.Equal(t, "42", ev.ExternalOrderID)
	require.NotNil(t, ev.Order)
}

func TestNormalizer_Inbound_OrderCancelled(t *testing.T) {
	t.Parallel()

	n := event.NewNormalizer(stubSource{
		name: "gloria_food",
		ord:  provider.InboundOrder{ExternalID: "42", Status: "canceled"},
	})

	ev, err := n.Inbound("gloria_food", nil)
	require.NoError(t, err)
	require.Equal(t, event.OrderCancelled, ev.Type)
	require.Nil(t, ev.Order)
}

func TestNormalizer_Inbound_Rejections(t *testing.T) {
	t.Parallel()

	n := event.NewNormalizer(stubSource{
		name: "gloria_food",
		err:  errors.New("garbage"),
	})

	_, err := n.Inbound("gloria_food", nil)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = n.Inbound("unknown_source", nil)
	require.ErrorIs(t, err, apperr.ErrValidation)

	bad := event.NewNormalizer(stubSource{
		name: "gloria_food",
		ord:  provider.InboundOrder{ExternalID: "42", Status: "weird"},
	})
	_, err = bad.Inbound("gloria_food", nil)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNormalizer_Polled_StateMapping(t *testing.T) {
	t.Parallel()

	n := event.NewNormalizer()
	cases := []struct {
		state string
		want  event.Type
	}{
		{"created", event.DeliveryAccepted},
		{"enroute_to_pickup", event.DeliveryAccepted},
		{"PICKED_UP", event.DeliveryPickedUp},
		{"enroute_to_dropoff", event.DeliveryPickedUp},
		{"delivered", event.DeliveryDelivered},
		{"cancelled", event.DeliveryFailed},
		{"returned", event.DeliveryFailed},
		{"some_future_state", event.StatusUnchanged},
	}

	for _, tc := range cases {
		ev := n.Polled("doordash", provider.Status{ExternalID: "ext-1", State: tc.state})
		require.Equal(t, tc.want, ev.Type, "state %q", tc.state)
		require.Equal(t, "ext-1", ev.ExternalDeliveryID)
	}
}

func TestNormalizer_Polled_FailureCarriesReason(t *testing.T) {
	t.Parallel()

	n := event.NewNormalizer()
	ev := n.Polled("doordash", provider.Status{ExternalID: "ext-1", State: "returned", UpdatedAt: time.Now()})
	require.Equal(t, event.DeliveryFailed, ev.Type)
	require.Equal(t, "courier returned", ev.Reason)
}
