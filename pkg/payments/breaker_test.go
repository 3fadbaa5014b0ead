package payments

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-core/pkg/enums"
)

type flakyGateway struct {
	calls atomic.Int32
	err   error
}

func (f *flakyGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

type countingRecorder struct{ n int }

func (c *countingRecorder) IncGatewayFailure() { c.n++ }

func validRequest() IntentRequest {
	return IntentRequest{OrderID: uuid.New(), AmountCents: 1460, Currency: "KES", Method: enums.PaymentMethodCard}
}

func TestBreakerGatewayPassesThrough(t *testing.T) {
	next := &flakyGateway{}
	gw, err := NewBreakerGateway(next, BreakerSettings{}, nil, nil)
	require.NoError(t, err)

	intent, err := gw.CreateIntent(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, "pi_1_secret", intent.ClientSecret)
	require.Equal(t, "closed", gw.State())
}

func TestBreakerGatewayOpensAfterConsecutiveFailures(t *testing.T) {
	next := &flakyGateway{err: errors.New("card network down")}
	rec := &countingRecorder{}
	gw, err := NewBreakerGateway(next, BreakerSettings{FailureThreshold: 2, Timeout: time.Minute}, nil, rec)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := gw.CreateIntent(context.Background(), validRequest())
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err = gw.CreateIntent(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int32(2), next.calls.Load(), "open breaker must not call the gateway")
	require.Equal(t, 3, rec.n)
	require.Equal(t, "open", gw.State())
}

func TestNoopGatewayValidates(t *testing.T) {
	intent, err := NoopGateway{}.CreateIntent(context.Background(), validRequest())
	require.NoError(t, err)
	require.Contains(t, intent.ID, "noop_pi_")

	req := validRequest()
	req.Method = enums.PaymentMethodCOD
	_, err = NoopGateway{}.CreateIntent(context.Background(), req)
	require.Error(t, err)

	req = validRequest()
	req.AmountCents = 0
	_, err = NoopGateway{}.CreateIntent(context.Background(), req)
	require.Error(t, err)
}
