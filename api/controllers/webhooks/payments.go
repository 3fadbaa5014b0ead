package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/settlement-core/api/responses"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
)

const maxWebhookBytes = 1 << 20

// PaymentEventProcessor verifies, dedupes and applies a gateway event.
type PaymentEventProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) error
}

// PaymentWebhook handles gateway payment confirmations and failures.
func PaymentWebhook(svc PaymentEventProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := svc.Process(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
