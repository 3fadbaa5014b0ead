package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	"github.com/angelmondragon/settlement-core/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTx(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)

	orderID := uuid.New()
	actor := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: actor, Role: string(enums.UserRoleBuyer)},
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, TotalCents: 1460, Currency: "KES"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(enums.AggregateOrder, orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	envelope, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, EnvelopeVersion, envelope.Version)
	require.Equal(t, rows[0].ID, envelope.EventID)
	require.Equal(t, actor, envelope.Actor.UserID)

	var data payloads.OrderCreatedEvent
	require.NoError(t, envelope.DecodeData(&data))
	require.Equal(t, int64(1460), data.TotalCents)
}

func TestEmitRollsBackWithTx(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	orderID := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"k": "v"},
		}); err != nil {
			return err
		}
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	rows, err := repo.ListByAggregate(enums.AggregateOrder, orderID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitRejectsUnknownEventsAndMissingTx(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{}))

	client := dbtest.Open(t)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: "nope", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()})
	})
	require.Error(t, err)

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder})
	})
	require.ErrorContains(t, err, "without aggregate id")

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: enums.EventPayoutCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New()})
	})
	require.ErrorContains(t, err, "belongs to seller_payout")
}

func TestDecodeEnvelopeRejectsUnknownVersions(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"version":2,"data":{}}`))
	require.ErrorContains(t, err, "version 2")

	_, err = DecodeEnvelope([]byte(`not json`))
	require.Error(t, err)

	raw, err := json.Marshal(Envelope{Version: EnvelopeVersion, EventID: uuid.New(), Data: json.RawMessage(`{"orderId":"x"}`)})
	require.NoError(t, err)
	env, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	var data map[string]string
	require.NoError(t, env.DecodeData(&data))
	require.Equal(t, "x", data["orderId"])
}
