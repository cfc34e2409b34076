package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Hynox-org/aharraa-server/internal/analytics/types"
	"github.com/Hynox-org/aharraa-server/pkg/bigquery"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/payloads"
)

type orderCreatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderCreatedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderCreatedHandler{writer: writer, logg: logg}
}

func (h *orderCreatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_created")
	}

	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID.String(),
		"user_id":    event.UserID.String(),
	})

	row, err := buildOrderCreatedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order event row", err)
		return err
	}

	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	h.logg.Info(logCtx, "order_created row inserted")
	return nil
}

func buildOrderCreatedRow(envelope types.Envelope, event *payloads.OrderCreatedEvent) (types.OrderEventRow, error) {
	payloadJSON, err := bigquery.JSONValue(envelope.Payload)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	orderID := envelope.AggregateID
	if event.OrderID != uuid.Nil {
		orderID = event.OrderID.String()
	}

	vendors := make([]string, 0, len(event.VendorIDs))
	for _, id := range event.VendorIDs {
		vendors = append(vendors, id.String())
	}

	return types.OrderEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    envelope.OccurredAt,
		OrderID:       orderID,
		UserID:        nullableID(event.UserID),
		ToStatus:      nullable(enums.OrderStatusPending),
		Source:        nullable(envelope.ActorSource),
		TotalAmount:   event.TotalAmount.Rat(),
		Currency:      nullable(event.Currency),
		PaymentMethod: nullable(event.PaymentMethod),
		ItemCount:     ptr(int64(event.ItemCount)),
		VendorIDs:     vendors,
		Payload:       payloadJSON,
	}, nil
}
