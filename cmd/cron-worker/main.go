package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hynox-org/aharraa-server/internal/bootstrap"
	"github.com/Hynox-org/aharraa-server/internal/cron"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())

	stack, err := bootstrap.NewOrderStack(context.Background(), cfg, logg, dbClient, prometheus.DefaultRegisterer)
	proc.Must("order services", err)
	proc.OnClose("order services", stack.Close)

	lock, err := cron.NewLeaderLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), proc.InstanceID, cfg.Cron.LockTTL)
	proc.Must("cron lock", err)

	sweepJob, err := cron.NewPendingOrderSweepJob(cron.PendingOrderSweepJobParams{
		Logger:         logg,
		Orders:         stack.OrdersRepo,
		Reconciler:     stack.Orders,
		Failer:         stack.Transitions,
		ReconcileGrace: cfg.Cron.ReconcileGrace,
		AbandonAfter:   cfg.Cron.AbandonAfter,
		BatchSize:      cfg.Cron.BatchSize,
	})
	proc.Must("pending order sweep", err)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Outbox.Retention,
	})
	proc.Must("outbox retention job", err)

	registry, err := cron.NewRegistry(
		cron.Schedule{Job: sweepJob},
		cron.Schedule{Job: retentionJob, Every: cfg.Cron.RetentionEvery},
	)
	proc.Must("cron registry", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.LockTTL,
	})
	proc.Must("cron service", err)

	ctx, stop := proc.SignalContext(map[string]any{"interval": cfg.Cron.Interval.String()})
	defer stop()
	proc.ServeMetrics(ctx)

	logg.Info(ctx, "starting cron worker")
	proc.Finish(ctx, service.Run(ctx))
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
