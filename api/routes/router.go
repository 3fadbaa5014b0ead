package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/settlement-core/api/controllers"
	cartcontrollers "github.com/angelmondragon/settlement-core/api/controllers/cart"
	escrowcontrollers "github.com/angelmondragon/settlement-core/api/controllers/escrow"
	ordercontrollers "github.com/angelmondragon/settlement-core/api/controllers/orders"
	shippingcontrollers "github.com/angelmondragon/settlement-core/api/controllers/shipping"
	webhookcontrollers "github.com/angelmondragon/settlement-core/api/controllers/webhooks"
	"github.com/angelmondragon/settlement-core/api/middleware"
	"github.com/angelmondragon/settlement-core/internal/cart"
	"github.com/angelmondragon/settlement-core/internal/escrow"
	"github.com/angelmondragon/settlement-core/internal/orders"
	"github.com/angelmondragon/settlement-core/internal/payouts"
	"github.com/angelmondragon/settlement-core/pkg/config"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/redis"
)

// Services are the domain entry points exposed over HTTP.
type Services struct {
	Orders     orders.Service
	Escrow     escrow.Service
	Payouts    payouts.Service
	Cart       cart.Service
	Calculator shippingcontrollers.Calculator
	Quoter     shippingcontrollers.TotalsQuoter
	Webhooks   webhookcontrollers.PaymentEventProcessor
}

// Params wires infrastructure into the router. Redis and Idempotency may be
// nil when no Redis endpoint is configured.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	HTTPMetrics middleware.HTTPObserver
	Gatherer    prometheus.Gatherer
	Services    Services
}

func NewRouter(p Params) http.Handler {
	cfg, logg, svc := p.Config, p.Logger, p.Services

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": p.DB}
	if p.Redis != nil {
		readiness["redis"] = p.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/shipping", func(r chi.Router) {
		r.Post("/calculate", shippingcontrollers.Calculate(svc.Calculator, logg))
		r.Get("/calculate", shippingcontrollers.Quote(svc.Quoter, logg))
	})

	r.Post("/payments/webhook", webhookcontrollers.PaymentWebhook(svc.Webhooks, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleBuyer))
			r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
			r.Put("/", cartcontrollers.CartUpsert(svc.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.UserRoleBuyer)).Post("/", ordercontrollers.Create(svc.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
			r.Patch("/{orderId}", ordercontrollers.UpdateStatus(svc.Orders, logg))
			r.Get("/{orderId}/payouts", ordercontrollers.Payouts(svc.Orders, svc.Payouts, logg))
		})

		r.Route("/payments/escrow", func(r chi.Router) {
			r.Post("/", escrowcontrollers.Apply(svc.Escrow, logg))
			r.Get("/{orderId}", escrowcontrollers.Detail(svc.Escrow, logg))
		})
	})

	return r
}
