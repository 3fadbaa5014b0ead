package stripe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/settlement-core/pkg/payments"
)

func intentEventPayload(eventType string, orderID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "data": {"object": {
    "id": "pi_123",
    "object": "payment_intent",
    "amount": 1460,
    "currency": "kes",
    "metadata": {"order_id": %q},
    "last_payment_error": {"message": "card declined"}
  }}
}`, eventType, orderID.String()))
}

func TestParseEventUnsigned(t *testing.T) {
	orderID := uuid.New()
	event, err := NewWebhookParser("").ParseEvent(context.Background(), intentEventPayload("payment_intent.succeeded", orderID), "")
	require.NoError(t, err)
	require.Equal(t, payments.EventPaymentConfirmed, event.Kind)
	require.Equal(t, "pi_123", event.Reference)
	require.Equal(t, orderID, event.OrderID)
	require.Equal(t, int64(1460), event.AmountCents)
}

func TestParseEventVerifiesSignature(t *testing.T) {
	orderID := uuid.New()
	payload := intentEventPayload("payment_intent.payment_failed", orderID)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	parser := NewWebhookParser("whsec_test")
	event, err := parser.ParseEvent(context.Background(), payload, signed.Header)
	require.NoError(t, err)
	require.Equal(t, payments.EventPaymentFailed, event.Kind)
	require.Equal(t, "card declined", event.FailureReason)

	_, err = parser.ParseEvent(context.Background(), payload, "")
	require.ErrorIs(t, err, ErrSignatureMissing)

	_, err = parser.ParseEvent(context.Background(), payload, "t=1,v1=deadbeef")
	require.Error(t, err)
}

func TestUnhandledEventsAreIgnored(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	event, err := NewWebhookParser("").ParseEvent(context.Background(), payload, "")
	require.NoError(t, err)
	require.Equal(t, payments.EventIgnored, event.Kind)
}
