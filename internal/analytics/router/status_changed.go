package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Hynox-org/aharraa-server/internal/analytics/types"
	"github.com/Hynox-org/aharraa-server/pkg/bigquery"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/payloads"
)

// statusChangedHandler records confirmed, failed, cancelled and delivered
// transitions.
type statusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &statusChangedHandler{writer: writer, logg: logg}
}

func (h *statusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":  envelope.EventType,
		"order_id":    event.OrderID.String(),
		"from_status": event.From,
		"to_status":   event.To,
		"source":      event.Source,
	})

	row, err := buildStatusChangedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order event row", err)
		return err
	}
	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	h.logg.Info(logCtx, "order status row inserted")
	return nil
}

func buildStatusChangedRow(envelope types.Envelope, event *payloads.OrderStatusChangedEvent) (types.OrderEventRow, error) {
	payloadJSON, err := bigquery.JSONValue(envelope.Payload)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	orderID := envelope.AggregateID
	if event.OrderID != uuid.Nil {
		orderID = event.OrderID.String()
	}
	source := event.Source
	if source == "" {
		source = envelope.ActorSource
	}
	occurredAt := envelope.OccurredAt
	if !event.ChangedAt.IsZero() {
		occurredAt = event.ChangedAt.UTC()
	}

	row := types.OrderEventRow{
		EventID:          envelope.EventID,
		EventType:        string(envelope.EventType),
		OccurredAt:       occurredAt,
		OrderID:          orderID,
		UserID:           nullableID(event.UserID),
		FromStatus:       nullable(event.From),
		ToStatus:         nullable(event.To),
		Source:           nullable(source),
		Currency:         nullable(event.Currency),
		PaymentMethod:    nullable(event.PaymentMethod),
		GatewayPaymentID: event.GatewayPaymentID,
		Payload:          payloadJSON,
	}
	if !event.TotalAmount.IsZero() {
		row.TotalAmount = event.TotalAmount.Rat()
	}
	return row, nil
}
