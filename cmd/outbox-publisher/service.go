package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/pkg/config"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	fallbackTimeout     = 15 * time.Second
	idleCeiling         = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	Metrics          *metrics.OutboxMetrics
	PublisherFactory publisherFactory
}

// Service drains the outbox table onto Pub/Sub. Each batch runs in one
// transaction: rows are locked, published concurrently, then settled.
type Service struct {
	logg           *logger.Logger
	db             dbClient
	pubsub         pubSubClient
	repo           outboxRepository
	registry       registryResolver
	metrics        *metrics.OutboxMetrics
	publishers     publisherFactory
	batchSize      int
	maxAttempts    int
	poll           time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

// dispatch is one row whose publish has been handed to the client but not
// yet confirmed.
type dispatch struct {
	event  models.OutboxEvent
	topic  string
	fields map[string]any
	result publishResult
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	publishers := params.PublisherFactory
	if publishers == nil {
		publishers = gcpPublishers(params.PubSub)
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:           params.Logger,
		db:             params.DB,
		pubsub:         params.PubSub,
		repo:           params.Repository,
		registry:       params.Registry,
		metrics:        params.Metrics,
		publishers:     publishers,
		batchSize:      positiveOr(cfg.BatchSize, fallbackBatchSize),
		maxAttempts:    positiveOr(cfg.MaxAttempts, fallbackMaxAttempts),
		poll:           positiveOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, fallbackPoll),
		publishTimeout: positiveOr(cfg.PublishTimeout, fallbackTimeout),
		now:            time.Now,
	}, nil
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx ends. A full batch is followed immediately by the next
// one; an empty batch waits one poll interval; failures back off up to
// idleCeiling.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	wait := s.poll
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = min(wait*2, idleCeiling)
		case processed:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}

		if err := sleepCtx(ctx, wait+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

// processBatch reports whether any row was fetched.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := s.now()
	var fetched int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		fetched = len(events)

		publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		pending := make([]dispatch, 0, len(events))
		for _, event := range events {
			d, err := s.send(publishCtx, event)
			if err != nil {
				if err := s.park(ctx, tx, event, d.fields, err); err != nil {
					return err
				}
				continue
			}
			pending = append(pending, d)
		}

		for _, d := range pending {
			if err := s.settle(ctx, tx, d, d.result.Get(publishCtx)); err != nil {
				return err
			}
		}
		return nil
	})
	if fetched > 0 {
		s.metrics.ObserveBatch(fetched, s.now().Sub(started))
	}
	return fetched > 0, err
}

// send resolves the row and hands it to the topic publisher without waiting
// for the server ack. Errors returned here are never retryable.
func (s *Service) send(ctx context.Context, event models.OutboxEvent) (dispatch, error) {
	d := dispatch{event: event, fields: s.eventFields(event, nil)}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return d, err
	}
	d.topic = resolved.Descriptor.Topic
	d.fields = s.eventFields(event, resolved)

	pub := s.publishers(d.topic)
	if pub == nil {
		return d, fmt.Errorf("publisher not configured for topic %s", d.topic)
	}
	d.result = pub.Publish(ctx, &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if d.result == nil {
		return d, fmt.Errorf("publisher returned no result for topic %s", d.topic)
	}
	return d, nil
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d dispatch, publishErr error) error {
	if publishErr == nil {
		if err := s.repo.MarkPublishedTx(tx, d.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, err)
		}
		s.metrics.Settle(string(d.event.EventType), metrics.SettlePublished)
		s.logg.Info(s.logg.WithFields(ctx, d.fields), "outbox event published")
		return nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(publishErr, &nonRetryable) {
		return s.park(ctx, tx, d.event, d.fields, publishErr)
	}
	attempt := d.event.NextAttempt()
	d.fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		return s.park(ctx, tx, d.event, d.fields, fmt.Errorf("max publish attempts reached: %w", publishErr))
	}

	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, d.fields), "error", publishErr.Error()), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, d.event.ID, publishErr); err != nil {
		return fmt.Errorf("mark failure %s: %w", d.event.ID, err)
	}
	s.metrics.Settle(string(d.event.EventType), metrics.SettleRetry)
	return nil
}

// park takes a row out of rotation. It keeps its payload and last error for
// manual replay.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, fields map[string]any, cause error) error {
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Warn(s.logg.WithField(logCtx, "error", cause.Error()), "outbox event parked")
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Settle(string(event.EventType), metrics.SettleParked)
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
