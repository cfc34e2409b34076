package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hynox-org/aharraa-server/api/routes"
	"github.com/Hynox-org/aharraa-server/internal/bootstrap"
	cashfreewebhook "github.com/Hynox-org/aharraa-server/internal/webhooks/cashfree"
	"github.com/Hynox-org/aharraa-server/pkg/env"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc := bootstrap.Start("api")
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(context.Background())
	redisClient := proc.Redis(context.Background())

	stack, err := bootstrap.NewOrderStack(context.Background(), cfg, logg, dbClient, prometheus.DefaultRegisterer)
	proc.Must("order services", err)
	proc.OnClose("order services", stack.Close)

	webhookService, err := cashfreewebhook.NewService(cashfreewebhook.ServiceParams{
		Secret:  cfg.Cashfree.WebhookSecret,
		Handler: stack.Orders,
		Logger:  logg,
	})
	proc.Must("cashfree webhooks", err)

	addr := ":" + env.Port(cfg.App.Port)
	ctx, stop := proc.SignalContext(map[string]any{"addr": addr})
	defer stop()
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			prometheus.DefaultGatherer,
			stack.Carts,
			stack.Checkout,
			stack.Orders,
			webhookService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		proc.Finish(ctx, err)
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		proc.Finish(ctx, server.Shutdown(shutdownCtx))
	}
}
