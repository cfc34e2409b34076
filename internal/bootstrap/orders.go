// Package bootstrap wires the order lifecycle shared by the API and the cron
// worker: both can confirm an order, so both need the fulfillment chain.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hynox-org/aharraa-server/internal/cart"
	"github.com/Hynox-org/aharraa-server/internal/catalog"
	"github.com/Hynox-org/aharraa-server/internal/checkout"
	"github.com/Hynox-org/aharraa-server/internal/fulfillment"
	"github.com/Hynox-org/aharraa-server/internal/invoices"
	"github.com/Hynox-org/aharraa-server/internal/notifications"
	"github.com/Hynox-org/aharraa-server/internal/orders"
	"github.com/Hynox-org/aharraa-server/internal/payments"
	"github.com/Hynox-org/aharraa-server/pkg/cashfree"
	"github.com/Hynox-org/aharraa-server/pkg/config"
	"github.com/Hynox-org/aharraa-server/pkg/db"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/mailer"
	"github.com/Hynox-org/aharraa-server/pkg/metrics"
	"github.com/Hynox-org/aharraa-server/pkg/outbox"
	"github.com/Hynox-org/aharraa-server/pkg/storage/gcs"
)

// OrderStack holds the services built around one database client.
type OrderStack struct {
	Catalog     *catalog.Repository
	Carts       cart.Service
	Orders      orders.Service
	OrdersRepo  orders.Repository
	Transitions *orders.Transitioner
	Payments    *payments.Coordinator
	Checkout    checkout.Service
	Metrics     *metrics.OrderMetrics
	Storage     *gcs.Client
}

// NewOrderStack builds the gateway client, invoice storage, mailer and the
// order services on top of them.
func NewOrderStack(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (*OrderStack, error) {
	if cfg == nil || dbClient == nil {
		return nil, fmt.Errorf("config and database client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	orderMetrics := metrics.NewOrderMetrics(reg)

	gateway, err := cashfree.NewClient(cfg.Cashfree)
	if err != nil {
		return nil, fmt.Errorf("cashfree client: %w", err)
	}

	storage, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return nil, fmt.Errorf("invoice storage: %w", err)
	}

	sender, err := mailer.NewSMTPSender(cfg.Mail, logg)
	if err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("mailer: %w", err)
	}

	stack := &OrderStack{Storage: storage, Metrics: orderMetrics}
	if err := stack.wire(cfg, logg, dbClient, gateway, storage, sender); err != nil {
		_ = storage.Close()
		return nil, err
	}
	return stack, nil
}

func (s *OrderStack) wire(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway payments.Gateway, uploader invoices.Uploader, sender mailer.Sender) error {
	conn := dbClient.DB()
	catalogRepo := catalog.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	carts, err := cart.NewService(cart.NewRepository(conn), dbClient, catalogRepo)
	if err != nil {
		return fmt.Errorf("cart service: %w", err)
	}

	transitions, err := orders.NewTransitioner(ordersRepo, dbClient, emitter, s.Metrics, logg)
	if err != nil {
		return fmt.Errorf("order transitions: %w", err)
	}

	coordinator, err := payments.NewCoordinator(payments.Config{
		MaxAmount:       cfg.Payments.MaxAmount,
		FrontendBaseURL: cfg.App.FrontendBaseURL,
		Timeout:         cfg.Cashfree.Timeout,
	}, gateway, transitions, s.Metrics, logg)
	if err != nil {
		return fmt.Errorf("payment coordinator: %w", err)
	}

	generator, err := invoices.NewGenerator(uploader, cfg.GCS.InvoicePrefix, cfg.Mail.Brand, logg)
	if err != nil {
		return fmt.Errorf("invoice generator: %w", err)
	}
	notifier, err := notifications.NewNotifier(sender, cfg.Mail.Brand, logg)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	fulfiller, err := fulfillment.NewFulfiller(fulfillment.Deps{
		Invoices:    generator,
		Store:       ordersRepo,
		Notifier:    notifier,
		Directory:   catalogRepo,
		Carts:       carts,
		Metrics:     s.Metrics,
		Logger:      logg,
		StepTimeout: cfg.Fulfillment.StepTimeout,
	})
	if err != nil {
		return fmt.Errorf("fulfiller: %w", err)
	}

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, transitions, coordinator, fulfiller, logg)
	if err != nil {
		return fmt.Errorf("orders service: %w", err)
	}

	checkoutSvc, err := checkout.NewService(dbClient, ordersRepo, emitter, catalogRepo, coordinator, logg)
	if err != nil {
		return fmt.Errorf("checkout service: %w", err)
	}

	s.Catalog = catalogRepo
	s.Carts = carts
	s.Orders = ordersSvc
	s.OrdersRepo = ordersRepo
	s.Transitions = transitions
	s.Payments = coordinator
	s.Checkout = checkoutSvc
	return nil
}

// Close waits for in-flight fulfillment and then releases the storage client.
func (s *OrderStack) Close() error {
	if s == nil {
		return nil
	}
	if s.Orders != nil {
		s.Orders.Wait()
	}
	if s.Storage == nil {
		return nil
	}
	return s.Storage.Close()
}
