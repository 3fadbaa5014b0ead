package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/settlement-core/pkg/payments"
)

const metadataOrderID = "order_id"

type intentCreator func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)

// IntentGateway creates Stripe payment intents for card and mobile money checkouts.
type IntentGateway struct {
	create intentCreator
}

// NewIntentGateway requires an initialized client so stripe.Key is set.
func NewIntentGateway(client *Client) (*IntentGateway, error) {
	if client == nil {
		return nil, errors.New("stripe client is required")
	}
	return &IntentGateway{create: paymentintent.New}, nil
}

func (g *IntentGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, req.OrderID.String())
	params.AddMetadata("buyer_id", req.BuyerID.String())
	params.AddMetadata("payment_method", req.Method.String())
	params.SetIdempotencyKey("order-intent-" + req.OrderID.String())

	pi, err := g.create(params)
	if err != nil {
		return nil, err
	}
	return &payments.Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}
