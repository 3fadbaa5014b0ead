// Package payments defines the payment gateway collaborator used after checkout.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// IntentRequest asks the gateway to prepare collection of an order total.
type IntentRequest struct {
	OrderID     uuid.UUID
	BuyerID     uuid.UUID
	AmountCents int64
	Currency    string
	Method      enums.PaymentMethod
}

func (r IntentRequest) validate() error {
	if r.OrderID == uuid.Nil {
		return errors.New("order id is required")
	}
	if r.AmountCents <= 0 {
		return fmt.Errorf("amount must be positive, got %d", r.AmountCents)
	}
	if len(strings.TrimSpace(r.Currency)) != 3 {
		return fmt.Errorf("invalid currency %q", r.Currency)
	}
	if !r.Method.RequiresGateway() {
		return fmt.Errorf("payment method %q is not collected by a gateway", r.Method)
	}
	return nil
}

// Intent is the gateway's handle for a pending payment.
type Intent struct {
	ID           string
	ClientSecret string
}

// Gateway creates payment intents. Implementations must be safe for concurrent use.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// NoopGateway fabricates deterministic intents for local development.
type NoopGateway struct{}

func (NoopGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	id := "noop_pi_" + strings.ReplaceAll(req.OrderID.String(), "-", "")
	return &Intent{ID: id, ClientSecret: id + "_secret"}, nil
}
