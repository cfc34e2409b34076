package enums

import "slices"

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType names an order lifecycle event.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order_created"
	EventOrderConfirmed OutboxEventType = "order_confirmed"
	EventOrderFailed    OutboxEventType = "order_failed"
	EventOrderCancelled OutboxEventType = "order_cancelled"
	EventOrderDelivered OutboxEventType = "order_delivered"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderFailed,
	EventOrderCancelled,
	EventOrderDelivered,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, "event type", value)
}

// EventForOrderStatus returns the event emitted when an order enters status.
func EventForOrderStatus(status OrderStatus) (OutboxEventType, bool) {
	switch status {
	case OrderStatusConfirmed:
		return EventOrderConfirmed, true
	case OrderStatusFailed:
		return EventOrderFailed, true
	case OrderStatusCancelled:
		return EventOrderCancelled, true
	case OrderStatusDelivered:
		return EventOrderDelivered, true
	default:
		return "", false
	}
}
