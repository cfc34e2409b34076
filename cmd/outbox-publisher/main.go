package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hynox-org/aharraa-server/internal/bootstrap"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(context.Background())
	pubsubClient := proc.PubSub(context.Background())

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must("event registry", err)

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must("outbox publisher", err)

	ctx, stop := proc.SignalContext(map[string]any{"topic": cfg.PubSub.OrdersTopic})
	defer stop()
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "starting outbox publisher")
	proc.Finish(ctx, service.Run(ctx))
}
