// Package app assembles the settlement services from infrastructure clients.
package app

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/api/routes"
	"github.com/angelmondragon/settlement-core/internal/cart"
	"github.com/angelmondragon/settlement-core/internal/catalog"
	"github.com/angelmondragon/settlement-core/internal/escrow"
	"github.com/angelmondragon/settlement-core/internal/ledger"
	"github.com/angelmondragon/settlement-core/internal/orders"
	"github.com/angelmondragon/settlement-core/internal/payouts"
	"github.com/angelmondragon/settlement-core/internal/shipping"
	paymentwebhook "github.com/angelmondragon/settlement-core/internal/webhooks/payments"
	"github.com/angelmondragon/settlement-core/pkg/config"
	"github.com/angelmondragon/settlement-core/pkg/db"
	"github.com/angelmondragon/settlement-core/pkg/idempotency"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/metrics"
	"github.com/angelmondragon/settlement-core/pkg/money"
	"github.com/angelmondragon/settlement-core/pkg/outbox"
	"github.com/angelmondragon/settlement-core/pkg/payments"
	"github.com/angelmondragon/settlement-core/pkg/redis"
)

const webhookDedupTTL = 72 * time.Hour

// Options are the clients the services are built on. Redis is optional.
type Options struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Gateway payments.Gateway
	Parser  payments.EventParser
	Metrics *metrics.SettlementMetrics
}

// Rates converts the configured fee schedule.
func Rates(cfg config.SettlementConfig) money.Rates {
	return money.Rates{
		TaxBPS:               cfg.TaxBPS,
		CommissionBPS:        cfg.CommissionBPS,
		ProcessingBPS:        cfg.ProcessingBPS,
		ProcessingFixedCents: cfg.ProcessingFixedCents,
	}
}

// Build wires every domain service and returns the set the router exposes.
func Build(opts Options) (routes.Services, error) {
	if opts.Config == nil {
		return routes.Services{}, fmt.Errorf("config required")
	}
	if opts.DB == nil {
		return routes.Services{}, fmt.Errorf("database client required")
	}
	if opts.Gateway == nil {
		return routes.Services{}, fmt.Errorf("payment gateway required")
	}
	if opts.Parser == nil {
		return routes.Services{}, fmt.Errorf("payment event parser required")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	cfg := opts.Config
	gormDB := opts.DB.DB()
	rates := Rates(cfg.Settlement)
	currency := cfg.Settlement.Currency

	catalogSvc, err := catalog.NewService(catalog.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}
	cartSvc, err := cart.NewService(cart.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		return routes.Services{}, err
	}
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	payoutSvc, err := payouts.NewService(payouts.NewRepository(gormDB), ledgerSvc, emitter, rates, logg, opts.Metrics)
	if err != nil {
		return routes.Services{}, err
	}

	resolver := shipping.NewDefaultResolver()
	calculator, err := shipping.NewCalculator(resolver, catalogSvc, rates, currency)
	if err != nil {
		return routes.Services{}, err
	}
	var cache redis.CacheStore
	if opts.Redis != nil {
		cache = opts.Redis
	}
	quoter := shipping.NewCachedQuoter(resolver, cache, cfg.Shipping.CacheTTL, logg, opts.Metrics)

	ordersRepo := orders.NewRepository(gormDB)
	ordersSvc, err := orders.NewService(orders.Dependencies{
		Repo:          ordersRepo,
		Tx:            opts.DB,
		Catalog:       catalogSvc,
		Cart:          cartSvc,
		Shipping:      resolver,
		Gateway:       opts.Gateway,
		Outbox:        emitter,
		Settler:       payoutSvc,
		Rates:         rates,
		Currency:      currency,
		PayoutTrigger: cfg.Settlement.PayoutTrigger,
		Logger:        logg,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return routes.Services{}, err
	}

	escrowSvc, err := escrow.NewService(escrow.Dependencies{
		Repo:          escrow.NewRepository(gormDB),
		Orders:        func(tx *gorm.DB) escrow.OrderLoader { return ordersRepo.WithTx(tx) },
		Payments:      ordersSvc,
		Tx:            opts.DB,
		Ledger:        ledgerSvc,
		Outbox:        emitter,
		Settler:       payoutSvc,
		PayoutTrigger: cfg.Settlement.PayoutTrigger,
		Logger:        logg,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return routes.Services{}, err
	}

	webhookParams := paymentwebhook.ServiceParams{
		Parser: opts.Parser,
		Orders: ordersSvc,
		Escrow: escrowSvc,
		Logger: logg,
	}
	if opts.Redis != nil {
		guard, err := idempotency.NewEventGuard(opts.Redis, webhookDedupTTL)
		if err != nil {
			return routes.Services{}, err
		}
		webhookParams.Guard = guard
	}
	webhookSvc, err := paymentwebhook.NewService(webhookParams)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Orders:     ordersSvc,
		Escrow:     escrowSvc,
		Payouts:    payoutSvc,
		Cart:       cartSvc,
		Calculator: calculator,
		Quoter:     quoter,
		Webhooks:   webhookSvc,
	}, nil
}
