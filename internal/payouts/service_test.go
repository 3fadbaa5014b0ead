package payouts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/internal/ledger"
	"github.com/angelmondragon/settlement-core/pkg/db"
	"github.com/angelmondragon/settlement-core/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/money"
	"github.com/angelmondragon/settlement-core/pkg/outbox"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

var defaultRates = money.Rates{TaxBPS: 1600, CommissionBPS: 500, ProcessingBPS: 290, ProcessingFixedCents: 30}

type netCounter struct{ total int64 }

func (n *netCounter) AddPayout(net int64) { n.total += net }

type fixture struct {
	client  *db.Client
	svc     Service
	ledger  ledger.Service
	outbox  *outbox.Repository
	metrics *netCounter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()))
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(client.DB())
	counter := &netCounter{}
	svc, err := NewService(NewRepository(client.DB()), ledgerSvc, outbox.NewService(outboxRepo, nil), defaultRates, nil, counter)
	require.NoError(t, err)
	return fixture{client: client, svc: svc, ledger: ledgerSvc, outbox: outboxRepo, metrics: counter}
}

func (f fixture) settle(t *testing.T, order *models.Order) []models.SellerPayout {
	t.Helper()
	var created []models.SellerPayout
	err := f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		created, err = f.svc.Settle(context.Background(), tx, order, types.SystemActor)
		return err
	})
	require.NoError(t, err)
	return created
}

func item(seller uuid.UUID, unit int64, qty int) models.OrderItem {
	return models.OrderItem{SellerID: seller, ProductID: uuid.New(), UnitPriceCents: unit, Quantity: qty, LineTotalCents: unit * int64(qty)}
}

func TestSettleSingleSeller(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	order := &models.Order{ID: uuid.New(), BuyerID: uuid.New(), Currency: "KES", Items: []models.OrderItem{item(seller, 500, 2)}}

	created := f.settle(t, order)
	require.Len(t, created, 1)
	p := created[0]
	require.Equal(t, int64(1000), p.GrossCents)
	require.Equal(t, int64(50), p.PlatformCommissionCents)
	require.Equal(t, int64(59), p.PaymentProcessingFeeCents)
	require.Equal(t, int64(891), p.NetCents)
	require.Equal(t, enums.PayoutStatusPending, p.Status)
	require.Equal(t, "KES", p.Currency)
	require.Equal(t, int64(891), f.metrics.total)

	events, err := f.ledger.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.LedgerEventTypeVendorPayout, events[0].Type)
	require.Equal(t, int64(891), events[0].AmountCents)
	require.Equal(t, seller, *events[0].SellerID)
	require.Nil(t, events[0].ActorID)
}

func TestSettleSplitsAcrossSellersAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	sellerA, sellerB := uuid.New(), uuid.New()
	order := &models.Order{
		ID:       uuid.New(),
		BuyerID:  uuid.New(),
		Currency: "KES",
		Items:    []models.OrderItem{item(sellerA, 500, 2), item(sellerB, 3000, 1), item(sellerA, 250, 1)},
	}

	created := f.settle(t, order)
	require.Len(t, created, 2)

	bySeller := map[uuid.UUID]models.SellerPayout{}
	for _, p := range created {
		require.Equal(t, p.GrossCents-p.PlatformCommissionCents-p.PaymentProcessingFeeCents, p.NetCents)
		bySeller[p.SellerID] = p
	}
	// 62.5 rounds half away from zero.
	require.Equal(t, int64(1250), bySeller[sellerA].GrossCents)
	require.Equal(t, int64(63), bySeller[sellerA].PlatformCommissionCents)
	require.Equal(t, int64(66), bySeller[sellerA].PaymentProcessingFeeCents)
	require.Equal(t, int64(1121), bySeller[sellerA].NetCents)
	require.Equal(t, int64(2733), bySeller[sellerB].NetCents)

	again := f.settle(t, order)
	require.Empty(t, again)

	var count int64
	require.NoError(t, f.client.DB().Model(&models.SellerPayout{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.Equal(t, int64(2), count)

	events, err := f.ledger.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)

	var outboxCount int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventPayoutCreated).Count(&outboxCount).Error)
	require.Equal(t, int64(2), outboxCount)
	require.Equal(t, int64(1121+2733), f.metrics.total)
}

func TestSettleRequiresTxAndItems(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Settle(context.Background(), nil, &models.Order{}, types.SystemActor)
	require.Error(t, err)

	err = f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := f.svc.Settle(context.Background(), tx, &models.Order{ID: uuid.New()}, types.SystemActor)
		return err
	})
	require.Error(t, err)
}

func TestListForActorScopesSellers(t *testing.T) {
	f := newFixture(t)
	sellerA, sellerB := uuid.New(), uuid.New()
	order := &models.Order{
		ID:       uuid.New(),
		BuyerID:  uuid.New(),
		Currency: "KES",
		Items:    []models.OrderItem{item(sellerA, 1000, 1), item(sellerB, 2000, 1)},
	}
	f.settle(t, order)
	ctx := context.Background()

	all, err := f.svc.ListForActor(ctx, order, types.Actor{UserID: order.BuyerID, Role: enums.UserRoleBuyer})
	require.NoError(t, err)
	require.Len(t, all, 2)

	own, err := f.svc.ListForActor(ctx, order, types.Actor{UserID: sellerB, Role: enums.UserRoleSeller})
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, sellerB, own[0].SellerID)

	admin, err := f.svc.ListForActor(ctx, order, types.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin})
	require.NoError(t, err)
	require.Len(t, admin, 2)

	_, err = f.svc.ListForActor(ctx, order, types.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)
}

func TestSplitGroupsBySeller(t *testing.T) {
	seller := uuid.New()
	splits := Split([]models.OrderItem{item(seller, 100, 3), item(seller, 50, 2)}, defaultRates)
	require.Len(t, splits, 1)
	require.Equal(t, int64(400), splits[seller].GrossCents)
}
