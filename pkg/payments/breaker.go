package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/angelmondragon/settlement-core/pkg/logger"
)

// ErrUnavailable is returned while the breaker refuses calls.
var ErrUnavailable = errors.New("payment gateway unavailable")

// FailureRecorder is notified of every failed or short-circuited intent.
type FailureRecorder interface {
	IncGatewayFailure()
}

type BreakerSettings struct {
	Name             string
	Timeout          time.Duration
	FailureThreshold uint32
}

// BreakerGateway guards a Gateway with a circuit breaker.
type BreakerGateway struct {
	next    Gateway
	cb      *gobreaker.CircuitBreaker
	logg    *logger.Logger
	metrics FailureRecorder
}

func NewBreakerGateway(next Gateway, settings BreakerSettings, logg *logger.Logger, metrics FailureRecorder) (*BreakerGateway, error) {
	if next == nil {
		return nil, errors.New("gateway is required")
	}
	if settings.Name == "" {
		settings.Name = "payment-gateway"
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}

	g := &BreakerGateway{next: next, logg: logg, metrics: metrics}
	threshold := settings.FailureThreshold
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if g.logg == nil {
				return
			}
			ctx := g.logg.WithFields(context.Background(), map[string]any{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			g.logg.Warn(ctx, "payment gateway circuit breaker state changed")
		},
	})
	return g, nil
}

func (g *BreakerGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.CreateIntent(ctx, req)
	})
	if err != nil {
		if g.metrics != nil {
			g.metrics.IncGatewayFailure()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit %s is %s", ErrUnavailable, g.cb.Name(), g.cb.State())
		}
		return nil, err
	}
	return result.(*Intent), nil
}

// State reports the breaker state, mostly for health output.
func (g *BreakerGateway) State() string {
	return g.cb.State().String()
}
