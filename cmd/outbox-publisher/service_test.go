package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Hynox-org/aharraa-server/pkg/config"
	"github.com/Hynox-org/aharraa-server/pkg/db/models"
	"github.com/Hynox-org/aharraa-server/pkg/enums"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/payloads"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/registry"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderEvent(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()}),
			orderEvent(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()}),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("unexpected failed rows: %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("unexpected published rows: %v", repo.published)
	}
}

func TestPublishCarriesEventAttributes(t *testing.T) {
	orderID := uuid.New()
	paymentID := "cf_1"
	event := orderEvent(t, enums.EventOrderConfirmed, payloads.OrderStatusChangedEvent{
		OrderID:          orderID,
		From:             enums.OrderStatusPending,
		To:               enums.OrderStatusConfirmed,
		Source:           enums.SourceWebhook.String(),
		TotalAmount:      decimal.NewFromInt(1000),
		Currency:         "INR",
		GatewayPaymentID: &paymentID,
	})
	event.AggregateID = orderID
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	var topics []string
	service.publishers = func(topic string) publisher {
		topics = append(topics, topic)
		return pub
	}

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(topics) != 1 || topics[0] != "orders-topic" {
		t.Fatalf("unexpected topics %v", topics)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != string(enums.EventOrderConfirmed) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_type"] != string(enums.AggregateOrder) || attrs["aggregate_id"] != orderID.String() {
		t.Fatalf("unexpected aggregate attributes %v", attrs)
	}
	if attrs["event_id"] == "" {
		t.Fatalf("event_id attribute missing")
	}
	if pub.messages[0].OrderingKey != orderID.String() {
		t.Fatalf("ordering key should be the order id, got %q", pub.messages[0].OrderingKey)
	}
	if len(repo.published) != 1 {
		t.Fatalf("expected published row, got %d", len(repo.published))
	}
}

func TestServiceProcessBatchParksNonRetryable(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()})
	event.Payload = json.RawMessage(`{"version":1,"eventId":"x","data":null}`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row parked, got %v", repo.terminal)
	}
	if len(pub.messages) != 0 || len(repo.published) != 0 {
		t.Fatalf("unresolvable row must not publish")
	}
}

func TestServiceProcessBatchParksAfterMaxAttempts(t *testing.T) {
	event := orderEvent(t, enums.EventOrderFailed, payloads.OrderStatusChangedEvent{OrderID: uuid.New()})
	event.AttemptCount = 2
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	service := newTestService(t, repo, pub, &config.OutboxConfig{BatchSize: 1, PollIntervalMS: 100, MaxAttempts: 3})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected row parked after max attempts, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("parked row must not be marked as a retryable failure")
	}
}

func TestPublishDispatchesBeforeAwaitingAcks(t *testing.T) {
	first := orderEvent(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()})
	second := orderEvent(t, enums.EventOrderCreated, payloads.OrderCreatedEvent{OrderID: uuid.New()})
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	var order []string
	pub := &fakePublisher{
		onPublish: func(msg *gcppubsub.Message) { order = append(order, "publish:"+msg.OrderingKey) },
		results: []publishResult{
			fakePublishResult{onGet: func() { order = append(order, "ack") }},
			fakePublishResult{onGet: func() { order = append(order, "ack") }},
		},
	}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, pub, nil)
	service.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	want := []string{"publish:" + first.AggregateID.String(), "publish:" + second.AggregateID.String(), "ack", "ack"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected call order %v", order)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var published float64
	for _, mf := range mfs {
		if mf.GetName() != "aharraa_outbox_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			published += m.GetCounter().GetValue()
		}
	}
	if published != 2 {
		t.Fatalf("expected two settled rows, got %v", published)
	}
}

func TestServiceProcessBatchReportsIdle(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil)
	processed, err := service.processBatch(context.Background())
	if err != nil || processed {
		t.Fatalf("empty outbox should be idle, got processed=%v err=%v", processed, err)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	pubsubCfg := config.PubSubConfig{OrdersTopic: "orders-topic"}
	cfg := &config.Config{
		Outbox: outboxCfg,
		PubSub: pubsubCfg,
	}
	eventRegistry, err := registry.NewEventRegistry(pubsubCfg)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         eventRegistry,
		PublisherFactory: func(_ string) publisher { return pub },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderEvent(tb testing.TB, eventType enums.OutboxEventType, data any) models.OutboxEvent {
	tb.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		tb.Fatalf("marshal data: %v", err)
	}
	id := uuid.New()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Actor:      &outbox.ActorRef{Source: enums.SourceWebhook.String()},
		Data:       raw,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results   []publishResult
	messages  []*gcppubsub.Message
	onPublish func(*gcppubsub.Message)
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if f.onPublish != nil {
		f.onPublish(msg)
	}
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err   error
	onGet func()
}

func (f fakePublishResult) Get(context.Context) error {
	if f.onGet != nil {
		f.onGet()
	}
	return f.err
}
