package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts money-moving domain outcomes.
type SettlementMetrics struct {
	ordersCreated     *prometheus.CounterVec
	stockConflicts    prometheus.Counter
	escrowTransitions *prometheus.CounterVec
	payoutsCreated    prometheus.Counter
	payoutNetCents    prometheus.Counter
	gatewayFailures   prometheus.Counter
	shippingCache     *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created by payment method.",
		}, []string{"payment_method"}),
		stockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_stock_conflicts_total",
			Help: "Checkouts aborted because inventory ran out mid-transaction.",
		}),
		escrowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Escrow state changes by action and outcome.",
		}, []string{"action", "outcome"}),
		payoutsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seller_payouts_created_total",
			Help: "Seller payout rows inserted.",
		}),
		payoutNetCents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seller_payout_net_cents_total",
			Help: "Sum of net amounts owed to sellers, in minor units.",
		}),
		gatewayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_gateway_failures_total",
			Help: "Payment intent creations that failed or were short-circuited.",
		}),
		shippingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shipping_quote_cache_total",
			Help: "Shipping quote cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.ordersCreated,
		m.stockConflicts,
		m.escrowTransitions,
		m.payoutsCreated,
		m.payoutNetCents,
		m.gatewayFailures,
		m.shippingCache,
	)
	return m
}

func (m *SettlementMetrics) IncOrderCreated(paymentMethod string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

func (m *SettlementMetrics) IncStockConflict() {
	if m == nil || m.stockConflicts == nil {
		return
	}
	m.stockConflicts.Inc()
}

// IncEscrowTransition records an escrow action; outcome is "ok" or the error code.
func (m *SettlementMetrics) IncEscrowTransition(action, outcome string) {
	if m == nil || m.escrowTransitions == nil {
		return
	}
	m.escrowTransitions.WithLabelValues(normalizeLabel(action), normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) AddPayout(netCents int64) {
	if m == nil || m.payoutsCreated == nil {
		return
	}
	m.payoutsCreated.Inc()
	if netCents > 0 {
		m.payoutNetCents.Add(float64(netCents))
	}
}

func (m *SettlementMetrics) IncGatewayFailure() {
	if m == nil || m.gatewayFailures == nil {
		return
	}
	m.gatewayFailures.Inc()
}

// IncShippingCache records a cache lookup; result is hit, miss or error.
func (m *SettlementMetrics) IncShippingCache(result string) {
	if m == nil || m.shippingCache == nil {
		return
	}
	m.shippingCache.WithLabelValues(normalizeLabel(result)).Inc()
}
