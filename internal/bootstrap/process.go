package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hynox-org/aharraa-server/pkg/config"
	"github.com/Hynox-org/aharraa-server/pkg/db"
	"github.com/Hynox-org/aharraa-server/pkg/instance"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/migrate"
	"github.com/Hynox-org/aharraa-server/pkg/pubsub"
	"github.com/Hynox-org/aharraa-server/pkg/redis"
)

// Process carries what every binary needs between startup and exit: config,
// a configured logger and the resources to close on the way out.
type Process struct {
	Name       string
	InstanceID string
	Config     *config.Config
	Logger     *logger.Logger

	closers []namedCloser
	exit    func(code int)
}

type namedCloser struct {
	name  string
	close func() error
}

// Start loads .env and config and builds the service logger. It exits the
// process when config is invalid.
func Start(name string) *Process {
	p := &Process{
		Name:       name,
		InstanceID: instance.GetID(),
		Logger:     logger.New(logger.Options{ServiceName: name}),
		exit:       os.Exit,
	}
	if err := godotenv.Load(); err != nil {
		p.Logger.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	p.Must("config", err)
	p.Config = cfg
	p.Logger = logger.New(logger.Options{
		ServiceName: name,
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	return p
}

// Must stops the process when err is set, closing whatever was opened so far.
func (p *Process) Must(resource string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(context.Background(), fmt.Sprintf("failed to start %s", resource), err)
	p.Close()
	p.exit(1)
}

// OnClose registers fn to run, in reverse registration order, from Close.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Database opens the database and applies dev migrations when enabled.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Config.FeatureFlags, p.Logger)
	p.Must("database", err)
	p.OnClose("database", client.Close)
	p.Must("dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Must("pubsub", err)
	p.OnClose("pubsub", client.Close)
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must("redis", err)
	p.OnClose("redis", client.Close)
	return client
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the process
// identity fields plus extra.
func (p *Process) SignalContext(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Name,
		"instance":    p.InstanceID,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields), stop
}

// ServeMetrics exposes the default registry when AHARRAA_METRICS_ADDR is set.
func (p *Process) ServeMetrics(ctx context.Context) {
	metrics.Serve(ctx, p.Config.App.MetricsAddr, prometheus.DefaultGatherer, p.Logger)
}

// Finish logs how a run loop ended and closes resources. Cancellation is a
// clean shutdown; anything else exits non-zero.
func (p *Process) Finish(ctx context.Context, runErr error) {
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		p.Logger.Error(ctx, p.Name+" stopped unexpectedly", runErr)
		p.Close()
		p.exit(1)
		return
	}
	p.Logger.Info(ctx, p.Name+" shutting down gracefully")
	p.Close()
}
