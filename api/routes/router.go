package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hynox-org/aharraa-server/api/controllers"
	cartcontrollers "github.com/Hynox-org/aharraa-server/api/controllers/cart"
	ordercontrollers "github.com/Hynox-org/aharraa-server/api/controllers/orders"
	webhookcontrollers "github.com/Hynox-org/aharraa-server/api/controllers/webhooks"
	"github.com/Hynox-org/aharraa-server/api/middleware"
	"github.com/Hynox-org/aharraa-server/internal/cart"
	checkoutsvc "github.com/Hynox-org/aharraa-server/internal/checkout"
	"github.com/Hynox-org/aharraa-server/internal/orders"
	"github.com/Hynox-org/aharraa-server/pkg/config"
	"github.com/Hynox-org/aharraa-server/pkg/db"
	"github.com/Hynox-org/aharraa-server/pkg/logger"
	"github.com/Hynox-org/aharraa-server/pkg/redis"
)

// RedisStore is the subset of the Redis client the HTTP layer needs.
type RedisStore interface {
	redis.Pinger
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient RedisStore,
	gatherer prometheus.Gatherer,
	cartService cart.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	cashfreeWebhookService webhookcontrollers.CashfreeWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.FrontendBaseURL),
	)

	verifyPolicy := middleware.NewRateLimitPolicy(
		"verify-payment",
		cfg.RateLimit.VerifyWindow,
		cfg.RateLimit.VerifyLimit,
	)
	idempotent := middleware.Idempotency(redisClient, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/cashfree", webhookcontrollers.CashfreeWebhook(cashfreeWebhookService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart/{userId}", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartClear(cartService, logg))
			r.With(idempotent).Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.Put("/items/{itemId}/quantity", cartcontrollers.CartUpdateQuantity(cartService, logg))
			r.Put("/items/{itemId}/person-details", cartcontrollers.CartUpdatePersonDetails(cartService, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(idempotent).Post("/", ordercontrollers.Create(checkoutService, logg))
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.With(idempotent).Put("/{orderId}", ordercontrollers.Update(ordersService, logg))
			r.With(middleware.RateLimit(verifyPolicy, redisClient, logg)).
				Get("/{orderId}/verify-payment", ordercontrollers.VerifyPayment(ordersService, logg))
		})
	})

	return r
}
