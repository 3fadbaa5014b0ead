// Package payouts splits a settled order into per-seller payouts.
package payouts

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/internal/ledger"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/money"
	"github.com/angelmondragon/settlement-core/pkg/outbox"
	"github.com/angelmondragon/settlement-core/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

// Recorder receives payout metrics.
type Recorder interface {
	AddPayout(netCents int64)
}

// Service settles orders. Settle must run inside the caller's transaction.
type Service interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.Order, actor types.Actor) ([]models.SellerPayout, error)
	ListForActor(ctx context.Context, order *models.Order, actor types.Actor) ([]models.SellerPayout, error)
}

type service struct {
	repo    Repository
	ledger  ledger.Service
	outbox  outbox.Emitter
	rates   money.Rates
	logg    *logger.Logger
	metrics Recorder
}

func NewService(repo Repository, ledgerSvc ledger.Service, emitter outbox.Emitter, rates money.Rates, logg *logger.Logger, metrics Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, ledger: ledgerSvc, outbox: emitter, rates: rates, logg: logg, metrics: metrics}, nil
}

// Split groups order items by seller and computes each seller's share,
// ordered by seller id.
func Split(items []models.OrderItem, rates money.Rates) map[uuid.UUID]money.Split {
	gross := map[uuid.UUID]int64{}
	for _, item := range items {
		gross[item.SellerID] += item.UnitPriceCents * int64(item.Quantity)
	}
	out := make(map[uuid.UUID]money.Split, len(gross))
	for seller, amount := range gross {
		out[seller] = rates.SplitGross(amount)
	}
	return out
}

// Settle inserts one pending payout per seller. Sellers already paid out for
// the order are skipped, so repeated calls are no-ops. Only newly inserted
// rows are returned and only they produce ledger and outbox entries.
func (s *service) Settle(ctx context.Context, tx *gorm.DB, order *models.Order, actor types.Actor) ([]models.SellerPayout, error) {
	if tx == nil {
		return nil, fmt.Errorf("settle requires a transaction")
	}
	if order == nil || len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order items not loaded")
	}

	splits := Split(order.Items, s.rates)
	sellers := make([]uuid.UUID, 0, len(splits))
	for seller := range splits {
		sellers = append(sellers, seller)
	}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i].String() < sellers[j].String() })

	repo := s.repo.WithTx(tx)
	created := make([]models.SellerPayout, 0, len(sellers))
	for _, sellerID := range sellers {
		split := splits[sellerID]
		payout := models.SellerPayout{
			SellerID:                  sellerID,
			OrderID:                   order.ID,
			GrossCents:                split.GrossCents,
			PlatformCommissionCents:   split.CommissionCents,
			PaymentProcessingFeeCents: split.FeeCents,
			NetCents:                  split.NetCents,
			Currency:                  order.Currency,
			Status:                    enums.PayoutStatusPending,
		}
		inserted, err := repo.InsertIfAbsent(ctx, &payout)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert seller payout")
		}
		if !inserted {
			continue
		}

		seller := sellerID
		if _, err := s.ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
			OrderID:     order.ID,
			BuyerID:     order.BuyerID,
			SellerID:    &seller,
			ActorID:     actor.IDPtr(),
			Type:        enums.LedgerEventTypeVendorPayout,
			AmountCents: payout.NetCents,
			Metadata: map[string]int64{
				"gross_cents":      payout.GrossCents,
				"commission_cents": payout.PlatformCommissionCents,
				"fee_cents":        payout.PaymentProcessingFeeCents,
			},
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout ledger event")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutCreated,
			AggregateType: enums.AggregateSellerPayout,
			AggregateID:   payout.ID,
			Actor:         outbox.ActorFrom(actor),
			Data: payloads.PayoutCreatedEvent{
				PayoutID:   payout.ID,
				OrderID:    order.ID,
				SellerID:   sellerID,
				GrossCents: payout.GrossCents,
				NetCents:   payout.NetCents,
				Currency:   payout.Currency,
			},
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout event")
		}
		created = append(created, payout)
	}

	if len(created) > 0 {
		for _, p := range created {
			if s.metrics != nil {
				s.metrics.AddPayout(p.NetCents)
			}
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":      order.ID.String(),
				"payouts_count": len(created),
			})
			s.logg.Info(logCtx, "seller payouts created")
		}
	}
	return created, nil
}

// ListForActor returns payouts visible to the caller: everything for the
// buyer and platform roles, only their own rows for sellers.
func (s *service) ListForActor(ctx context.Context, order *models.Order, actor types.Actor) ([]models.SellerPayout, error) {
	isBuyer := order.BuyerID == actor.UserID
	isSeller := order.HasSeller(actor.UserID)
	if !isBuyer && !isSeller && !actor.IsPrivileged() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
	}

	rows, err := s.repo.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	if isBuyer || actor.IsPrivileged() {
		return rows, nil
	}
	own := rows[:0]
	for _, row := range rows {
		if row.SellerID == actor.UserID {
			own = append(own, row)
		}
	}
	return own, nil
}
