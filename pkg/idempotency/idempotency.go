// Package idempotency remembers which gateway events a consumer has already
// applied, so redelivered webhooks become no-ops.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/settlement-core/pkg/redis"
)

// EventGuard claims event ids per consumer with SETNX. A claim lives for the
// configured TTL, which should exceed the gateway's redelivery window.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration) (*EventGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl <= 0:
		return nil, errors.New("idempotency ttl must be positive")
	}
	return &EventGuard{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It reports true when
// an earlier delivery already holds the claim.
func (g *EventGuard) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Delete drops a claim so the next delivery of the event is applied again.
func (g *EventGuard) Delete(ctx context.Context, consumer, eventID string) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *EventGuard) key(consumer, eventID string) (string, error) {
	consumer, eventID = strings.TrimSpace(consumer), strings.TrimSpace(eventID)
	if consumer == "" || eventID == "" {
		return "", errors.New("consumer and event id are required")
	}
	return g.store.IdempotencyKey("event:"+consumer, eventID), nil
}
