package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Hynox-org/aharraa-server/pkg/config"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/payloads"
)

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	require.NoError(t, err)
	return reg
}

func envelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, ok := data.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(data)
		require.NoError(t, err)
	}
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}

func TestResolveOrderCreated(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID, vendorID := uuid.New(), uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: envelope(t, payloads.OrderCreatedEvent{
			OrderID:       orderID,
			UserID:        uuid.New(),
			TotalAmount:   decimal.RequireFromString("1500.00"),
			Currency:      "INR",
			PaymentMethod: enums.PaymentMethodUPI,
			ItemCount:     2,
			VendorIDs:     []uuid.UUID{vendorID},
		}),
	})
	require.NoError(t, err)
	require.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	require.NotEmpty(t, resolved.Envelope.EventID)
	require.False(t, resolved.Envelope.OccurredAt.IsZero())

	payload, ok := resolved.Payload.(*payloads.OrderCreatedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	require.Equal(t, orderID, payload.OrderID)
	require.Equal(t, []uuid.UUID{vendorID}, payload.VendorIDs)
	require.True(t, payload.TotalAmount.Equal(decimal.NewFromInt(1500)))
}

func TestResolveStatusChanges(t *testing.T) {
	reg := newTestEventRegistry(t)
	data := payloads.OrderStatusChangedEvent{
		OrderID: uuid.New(),
		From:    enums.OrderStatusPending,
		To:      enums.OrderStatusConfirmed,
		Source:  "webhook",
	}
	for _, eventType := range []enums.OutboxEventType{
		enums.EventOrderConfirmed,
		enums.EventOrderFailed,
		enums.EventOrderCancelled,
		enums.EventOrderDelivered,
	} {
		resolved, err := reg.Resolve(models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   data.OrderID,
			Payload:       envelope(t, data),
		})
		require.NoError(t, err, eventType)
		require.IsType(t, &payloads.OrderStatusChangedEvent{}, resolved.Payload, eventType)
	}
}

func TestResolveRejectsBadRowsPermanently(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType:     enums.OutboxEventType("order_refunded"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, []byte(`{"reason":"none"}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.OutboxAggregateType("cart"),
			AggregateID:   uuid.New(),
			Payload:       envelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Payload:       envelope(t, []byte(`{}`)),
		},
		"null data": {
			EventType:     enums.EventOrderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       envelope(t, []byte("null")),
		},
		"garbage payload": {
			EventType:     enums.EventOrderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`not json`),
		},
	}
	for name, event := range cases {
		_, err := reg.Resolve(event)
		var nonRetry NonRetryableError
		require.True(t, errors.As(err, &nonRetry), "%s: got %v", name, err)
	}
}

func TestNullDataKeepsEmptyDataSentinel(t *testing.T) {
	_, err := newTestEventRegistry(t).Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope(t, []byte("null")),
	})
	require.ErrorIs(t, err, outbox.ErrEmptyData)
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}
