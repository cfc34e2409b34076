package main

import (
	"context"
	"errors"

	"github.com/Hynox-org/aharraa-server/internal/analytics/router"
	"github.com/Hynox-org/aharraa-server/internal/analytics/worker"
	"github.com/Hynox-org/aharraa-server/internal/analytics/writer"
	"github.com/Hynox-org/aharraa-server/internal/bootstrap"
	"github.com/Hynox-org/aharraa-server/pkg/bigquery"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/idempotency"
)

func main() {
	proc := bootstrap.Start("analytics-worker")
	cfg, logg := proc.Config, proc.Logger

	redisClient := proc.Redis(context.Background())
	pubsubClient := proc.PubSub(context.Background())

	bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	proc.Must("bigquery", err)
	proc.OnClose("bigquery", bqClient.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		proc.Must("analytics subscription", errors.New("subscription not configured"))
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	proc.Must("event deduplication", err)

	sink, err := writer.New(bqClient, writer.Config{
		OrderEventsTable: cfg.BigQuery.OrderEventsTable,
		RetryPolicy:      writer.RetryPolicy{MaxAttempts: cfg.BigQuery.InsertMaxAttempts},
	})
	proc.Must("bigquery writer", err)
	// Registered last so buffered rows flush before the client closes.
	proc.OnClose("order event buffer", func() error { return sink.Flush(context.Background()) })

	handler, err := router.NewRouter(sink, logg, nil)
	proc.Must("analytics router", err)

	service, err := worker.NewService(subscription, handler, guard, logg)
	proc.Must("analytics worker", err)

	ctx, stop := proc.SignalContext(map[string]any{"subscription": cfg.PubSub.AnalyticsSubscription})
	defer stop()
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "analytics worker ready")
	proc.Finish(ctx, service.Run(ctx))
}
