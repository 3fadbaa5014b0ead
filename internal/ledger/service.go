// Package ledger appends immutable money events for orders.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// Service defines operations that record ledger events.
type Service interface {
	RecordEvent(ctx context.Context, tx *gorm.DB, input RecordEventInput) (*models.LedgerEvent, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
	// Totals sums the order's events per type, reading through tx when given.
	Totals(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (Totals, error)
}

// Totals is the per-type sum of an order's ledger.
type Totals struct {
	Held     int64
	Released int64
	Disputed int64
	PaidOut  int64
}

// Unreleased is the escrowed amount not yet released to sellers.
func (t Totals) Unreleased() int64 {
	return t.Held - t.Released
}

type service struct {
	repo Repository
}

// RecordEventInput captures the immutable data a ledger event requires.
// SellerID is set for seller-scoped events such as payouts; ActorID is nil
// when the system acted.
type RecordEventInput struct {
	OrderID     uuid.UUID
	BuyerID     uuid.UUID
	SellerID    *uuid.UUID
	ActorID     *uuid.UUID
	Type        enums.LedgerEventType
	AmountCents int64
	Metadata    any
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordEvent(ctx context.Context, tx *gorm.DB, input RecordEventInput) (*models.LedgerEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, fmt.Errorf("buyer id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.Type == enums.LedgerEventTypeVendorPayout && input.SellerID == nil {
		return nil, fmt.Errorf("seller id is required for %s", input.Type)
	}

	var metadata json.RawMessage
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal ledger metadata: %w", err)
		}
		metadata = raw
	}

	event := &models.LedgerEvent{
		OrderID:     input.OrderID,
		BuyerID:     input.BuyerID,
		SellerID:    input.SellerID,
		ActorID:     input.ActorID,
		Type:        input.Type,
		AmountCents: input.AmountCents,
		Metadata:    metadata,
	}
	if err := s.repo.WithTx(tx).Append(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) Totals(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (Totals, error) {
	sums, err := s.repo.WithTx(tx).SumByType(ctx, orderID)
	if err != nil {
		return Totals{}, err
	}
	return Totals{
		Held:     sums[enums.LedgerEventTypeEscrowHeld],
		Released: sums[enums.LedgerEventTypeEscrowReleased],
		Disputed: sums[enums.LedgerEventTypeEscrowDisputed],
		PaidOut:  sums[enums.LedgerEventTypeVendorPayout],
	}, nil
}
