package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/settlement-core/pkg/payments"
)

// ErrSignatureMissing is returned when a signing secret is configured but the header is absent.
var ErrSignatureMissing = errors.New("stripe signature missing")

// WebhookParser verifies Stripe-Signature headers and maps payment intent events.
// With an empty secret, payloads are decoded unverified.
type WebhookParser struct {
	secret string
}

func NewWebhookParser(secret string) *WebhookParser {
	return &WebhookParser{secret: secret}
}

func (p *WebhookParser) ParseEvent(ctx context.Context, payload []byte, signature string) (*payments.Event, error) {
	var event stripe.Event
	if p.secret == "" {
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode stripe event: %w", err)
		}
	} else {
		if signature == "" {
			return nil, ErrSignatureMissing
		}
		verified, err := webhook.ConstructEventWithOptions(payload, signature, p.secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("verify stripe signature: %w", err)
		}
		event = verified
	}
	return ToPaymentEvent(event)
}

// ToPaymentEvent reduces a Stripe event to a payments.Event.
func ToPaymentEvent(event stripe.Event) (*payments.Event, error) {
	out := &payments.Event{ID: event.ID, Kind: payments.EventIgnored}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		out.Kind = payments.EventPaymentConfirmed
	case stripe.EventTypePaymentIntentPaymentFailed:
		out.Kind = payments.EventPaymentFailed
	default:
		return out, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, errors.New("stripe event data required")
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	out.Reference = pi.ID
	out.AmountCents = pi.Amount
	if raw, ok := pi.Metadata[metadataOrderID]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			out.OrderID = id
		}
	}
	if pi.LastPaymentError != nil {
		out.FailureReason = pi.LastPaymentError.Msg
	}
	return out, nil
}
