package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/Hynox-org/aharraa-server/internal/analytics/router"
	"github.com/Hynox-org/aharraa-server/internal/analytics/types"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/idempotency"
)

const analyticsConsumerName = "analytics"

// Handler records one decoded order event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type eventGuard interface {
	Process(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (idempotency.Outcome, error)
}

// Service consumes the order event subscription and feeds the analytics
// router. Each event is recorded once per consumer.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	guard        eventGuard
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, guard eventGuard, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case guard == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, guard: guard, logg: logg}, nil
}

// Run receives until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.process(msgCtx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed and
// unsupported events are acked since redelivery cannot fix them.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) bool {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeEnvelope(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping malformed order event")
		return true
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping order event with non-uuid id")
		return true
	}

	outcome, err := s.guard.Process(ctx, analyticsConsumerName, eventID, func(ctx context.Context) error {
		return s.handler.Handle(ctx, *envelope)
	})
	switch {
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Warn(ctx, "event type not recorded by analytics")
		return true
	case err != nil:
		s.logg.Error(ctx, "analytics event failed; requesting redelivery", err)
		return false
	case outcome == idempotency.Duplicate:
		s.logg.Info(ctx, "event already recorded")
		return true
	case outcome == idempotency.InFlight:
		s.logg.Info(ctx, "event claimed by another delivery; requesting redelivery")
		return false
	}
	s.logg.Info(ctx, "analytics event recorded")
	return true
}

// decodeEnvelope combines the stored outbox envelope with the attributes
// set by the outbox publisher.
func decodeEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	stored, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}
	attr := func(name string) string { return strings.TrimSpace(msg.Attributes[name]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			occurredAt = parsed
		}
	}

	envelope := &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}
	if stored.Actor != nil {
		envelope.ActorSource = stored.Actor.Source
	}
	return envelope, nil
}
