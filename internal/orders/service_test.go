package orders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/internal/cart"
	"github.com/angelmondragon/settlement-core/internal/catalog"
	"github.com/angelmondragon/settlement-core/internal/ledger"
	"github.com/angelmondragon/settlement-core/internal/payouts"
	"github.com/angelmondragon/settlement-core/internal/shipping"
	"github.com/angelmondragon/settlement-core/pkg/config"
	"github.com/angelmondragon/settlement-core/pkg/db"
	"github.com/angelmondragon/settlement-core/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/money"
	"github.com/angelmondragon/settlement-core/pkg/outbox"
	"github.com/angelmondragon/settlement-core/pkg/payments"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

type stubGateway struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *stubGateway) CreateIntent(ctx context.Context, req payments.IntentRequest) (*payments.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payments.Intent{ID: "pi_" + req.OrderID.String(), ClientSecret: "secret_" + req.OrderID.String()}, nil
}

type harness struct {
	client  *db.Client
	svc     Service
	cart    cart.Service
	gateway *stubGateway
	seller  uuid.UUID
	buyer   uuid.UUID
	product models.Product
}

func flatResolver(t *testing.T) *shipping.Resolver {
	t.Helper()
	r, err := shipping.NewResolver(shipping.Zone{
		ID:               "FLAT",
		CODSupported:     true,
		CODMaxValueCents: 100_000,
		Rates: []shipping.Rate{
			{Provider: "courier", Service: "standard", BaseCents: 300, MinDays: 1, MaxDays: 3, Standard: true, CashOnDelivery: true},
		},
	})
	require.NoError(t, err)
	return r
}

func newHarness(t *testing.T, stock int) *harness {
	t.Helper()
	client := dbtest.Open(t)
	gormDB := client.DB()

	catalogSvc, err := catalog.NewService(catalog.NewRepository(gormDB))
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(gormDB))
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	require.NoError(t, err)
	emitter := outbox.NewService(outbox.NewRepository(gormDB), nil)
	rates := money.Rates{TaxBPS: 1600, CommissionBPS: 500, ProcessingBPS: 290, ProcessingFixedCents: 30}
	payoutSvc, err := payouts.NewService(payouts.NewRepository(gormDB), ledgerSvc, emitter, rates, nil, nil)
	require.NoError(t, err)

	gateway := &stubGateway{}
	svc, err := NewService(Dependencies{
		Repo:          NewRepository(gormDB),
		Tx:            client,
		Catalog:       catalogSvc,
		Cart:          cartSvc,
		Shipping:      flatResolver(t),
		Gateway:       gateway,
		Outbox:        emitter,
		Settler:       payoutSvc,
		Rates:         rates,
		Currency:      "KES",
		PayoutTrigger: config.PayoutTriggerBoth,
	})
	require.NoError(t, err)

	h := &harness{client: client, svc: svc, cart: cartSvc, gateway: gateway, seller: uuid.New(), buyer: uuid.New()}
	h.product = h.addProduct(t, 500, stock)
	return h
}

func (h *harness) addProduct(t *testing.T, price int64, stock int) models.Product {
	t.Helper()
	p := models.Product{SellerID: h.seller, SKU: uuid.NewString(), Name: "Tea leaves", PriceCents: price, WeightGrams: 100, Active: true}
	require.NoError(t, h.client.DB().Create(&p).Error)
	require.NoError(t, h.client.DB().Create(&models.InventoryItem{ProductID: p.ID, AvailableQty: stock}).Error)
	return p
}

func (h *harness) stock(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var inv models.InventoryItem
	require.NoError(t, h.client.DB().First(&inv, "product_id = ?", productID).Error)
	return inv.AvailableQty
}

func address() types.Address {
	return types.Address{Recipient: "Wanjiru", Phone: "+254700000000", Line1: "1 Moi Ave", City: "Nairobi", Country: "KE"}
}

func (h *harness) input(method enums.PaymentMethod, lines ...LineInput) CreateOrderInput {
	return CreateOrderInput{BuyerID: h.buyer, Items: lines, ShippingAddress: address(), PaymentMethod: method}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestCreateComputesTotalsAndReservesStock(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	require.NoError(t, h.cart.SetLine(ctx, h.buyer, cart.Line{ProductID: h.product.ID, Quantity: 1}))

	res, err := h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 2}))
	require.NoError(t, err)

	order := res.Order
	require.Equal(t, int64(1000), order.SubtotalCents)
	require.Equal(t, int64(300), order.ShippingCents)
	require.Equal(t, int64(160), order.TaxCents)
	require.Equal(t, int64(1460), order.TotalCents)
	require.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Equal(t, "courier_standard", order.ShippingOption.OptionID)
	require.Len(t, order.Items, 1)
	require.Equal(t, int64(1000), order.Items[0].LineTotalCents)
	require.Equal(t, h.seller, order.Items[0].SellerID)

	require.Equal(t, "secret_"+order.ID.String(), res.ClientSecret)
	require.Equal(t, 3, h.stock(t, h.product.ID))

	lines, err := h.cart.Lines(ctx, nil, h.buyer)
	require.NoError(t, err)
	require.Empty(t, lines)

	stored, err := h.svc.Get(ctx, order.ID, types.Actor{UserID: h.buyer, Role: enums.UserRoleBuyer})
	require.NoError(t, err)
	require.Equal(t, "pi_"+order.ID.String(), *stored.PaymentReference)
	require.Equal(t, "Nairobi", stored.ShippingAddress.City)

	var events int64
	require.NoError(t, h.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	require.Equal(t, int64(1), events)
}

func TestCreateUsesPersistedCartAndMergesLines(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	require.NoError(t, h.cart.SetLine(ctx, h.buyer, cart.Line{ProductID: h.product.ID, Quantity: 2}))

	res, err := h.svc.Create(ctx, h.input(enums.PaymentMethodMpesa))
	require.NoError(t, err)
	require.Equal(t, 2, res.Order.Items[0].Quantity)

	res, err = h.svc.Create(ctx, h.input(enums.PaymentMethodMpesa,
		LineInput{ProductID: h.product.ID, Quantity: 1},
		LineInput{ProductID: h.product.ID, Quantity: 3},
	))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	require.Equal(t, 4, res.Order.Items[0].Quantity)
	require.Equal(t, 4, h.stock(t, h.product.ID))
}

func TestCreateCashOnDeliveryStartsProcessing(t *testing.T) {
	h := newHarness(t, 5)
	res, err := h.svc.Create(context.Background(), h.input(enums.PaymentMethodCOD, LineInput{ProductID: h.product.ID, Quantity: 1}))
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusProcessing, res.Order.Status)
	require.True(t, res.Order.ShippingOption.CashOnDelivery)
	require.Empty(t, res.ClientSecret)
	require.Zero(t, h.gateway.calls)
}

func TestCreateRejectsCodAboveZoneLimit(t *testing.T) {
	h := newHarness(t, 500)
	_, err := h.svc.Create(context.Background(), h.input(enums.PaymentMethodCOD, LineInput{ProductID: h.product.ID, Quantity: 300}))
	requireCode(t, err, pkgerrors.CodeValidation)
	require.Equal(t, 500, h.stock(t, h.product.ID))
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	inactive := h.addProduct(t, 100, 10)
	require.NoError(t, h.client.DB().Model(&inactive).Update("active", false).Error)

	_, err := h.svc.Create(ctx, h.input(enums.PaymentMethodCard))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 0}))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: uuid.New(), Quantity: 1}))
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: inactive.ID, Quantity: 1}))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 3}))
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(ctx, h.input("bitcoin", LineInput{ProductID: h.product.ID, Quantity: 1}))
	requireCode(t, err, pkgerrors.CodeValidation)

	var count int64
	require.NoError(t, h.client.DB().Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
	require.Equal(t, 2, h.stock(t, h.product.ID))
}

func TestCreateGatewayFailureKeepsPendingOrder(t *testing.T) {
	h := newHarness(t, 5)
	h.gateway.err = errors.New("connection reset")

	_, err := h.svc.Create(context.Background(), h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 1}))
	requireCode(t, err, pkgerrors.CodeExternal)

	var order models.Order
	require.NoError(t, h.client.DB().First(&order, "buyer_id = ?", h.buyer).Error)
	require.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	require.Nil(t, order.PaymentReference)
	require.Equal(t, 4, h.stock(t, h.product.ID))
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	h := newHarness(t, 5)
	var succeeded, rejected atomic.Int32

	var g errgroup.Group
	for i := 0; i < 12; i++ {
		buyer := uuid.New()
		g.Go(func() error {
			input := h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 1})
			input.BuyerID = buyer
			_, err := h.svc.Create(context.Background(), input)
			switch {
			case err == nil:
				succeeded.Add(1)
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict), pkgerrors.IsCode(err, pkgerrors.CodeValidation):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int32(5), succeeded.Load())
	require.Equal(t, int32(7), rejected.Load())
	require.Zero(t, h.stock(t, h.product.ID))

	var items int64
	require.NoError(t, h.client.DB().Model(&models.OrderItem{}).Count(&items).Error)
	require.Equal(t, int64(5), items)
}

func (h *harness) paidOrder(t *testing.T) *models.Order {
	t.Helper()
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 2}))
	require.NoError(t, err)
	require.NoError(t, h.client.WithTx(ctx, func(tx *gorm.DB) error {
		return h.svc.MarkPaid(ctx, tx, res.Order, "pi_confirmed")
	}))
	return res.Order
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	order := h.paidOrder(t)
	seller := types.Actor{UserID: h.seller, Role: enums.UserRoleSeller}

	tracking := " TRK-001 "
	updated, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Actor: seller, Status: "shipped", TrackingNumber: &tracking})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusShipped, updated.Status)
	require.Equal(t, "TRK-001", *updated.TrackingNumber)
	require.NotNil(t, updated.ShippedAt)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Actor: seller, Status: "processing"})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Actor: seller, Status: "cancelled"})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Actor: seller, Status: "lost"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Actor: types.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller}, Status: "delivered"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: uuid.New(), Actor: seller, Status: "delivered"})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeliveredTriggersPayoutOnce(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	order := h.paidOrder(t)
	seller := types.Actor{UserID: h.seller, Role: enums.UserRoleSeller}

	updated, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Actor: seller, Status: "delivered"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)

	var rows []models.SellerPayout
	require.NoError(t, h.client.DB().Where("order_id = ?", order.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, int64(891), rows[0].NetCents)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: order.ID, Actor: seller, Status: "delivered"})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestBuyerCancelRestocksOnlyWhileUnpaid(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	buyer := types.Actor{UserID: h.buyer, Role: enums.UserRoleBuyer}

	res, err := h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 2}))
	require.NoError(t, err)
	require.Equal(t, 3, h.stock(t, h.product.ID))

	cancelled, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: res.Order.ID, Actor: buyer, Status: "CANCELLED"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, 5, h.stock(t, h.product.ID))

	paid := h.paidOrder(t)
	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: paid.ID, Actor: buyer, Status: "cancelled"})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: paid.ID, Actor: buyer, Status: "shipped"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestMarkPaymentFailed(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 1}))
	require.NoError(t, err)

	require.NoError(t, h.svc.MarkPaymentFailed(ctx, res.Order.ID, "pi_x", "card_declined"))
	order, err := h.svc.Get(ctx, res.Order.ID, types.SystemActor)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusFailed, order.PaymentStatus)
	require.Equal(t, enums.OrderStatusPendingPayment, order.Status)

	paid := h.paidOrder(t)
	require.NoError(t, h.svc.MarkPaymentFailed(ctx, paid.ID, "pi_late", "late failure"))
	order, err = h.svc.Get(ctx, paid.ID, types.SystemActor)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	require.Equal(t, enums.OrderStatusPaid, order.Status)

	found, err := h.svc.GetByPaymentReference(ctx, "pi_confirmed")
	require.NoError(t, err)
	require.Equal(t, paid.ID, found.ID)
}

func TestGetRequiresParticipant(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	res, err := h.svc.Create(ctx, h.input(enums.PaymentMethodCard, LineInput{ProductID: h.product.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = h.svc.Get(ctx, res.Order.ID, types.Actor{UserID: h.seller, Role: enums.UserRoleSeller})
	require.NoError(t, err)
	_, err = h.svc.Get(ctx, res.Order.ID, types.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func (h *harness) payoutCount(t *testing.T, orderID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(&models.SellerPayout{}).Where("order_id = ?", orderID).Count(&n).Error)
	return n
}

func (h *harness) holdEscrow(t *testing.T, order *models.Order, status enums.EscrowStatus) {
	t.Helper()
	require.NoError(t, h.client.DB().Create(&models.EscrowPayment{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		Status:      status,
		HeldAt:      time.Now().UTC(),
	}).Error)
}

func TestUnpaidGatewayOrdersCannotAdvance(t *testing.T) {
	cases := []struct {
		method enums.PaymentMethod
		target string
	}{
		{enums.PaymentMethodCard, "paid"},
		{enums.PaymentMethodCard, "delivered"},
		{enums.PaymentMethodMpesa, "processing"},
		{enums.PaymentMethodMpesa, "shipped"},
	}
	for _, tc := range cases {
		t.Run(string(tc.method)+"_"+tc.target, func(t *testing.T) {
			h := newHarness(t, 5)
			ctx := context.Background()
			seller := types.Actor{UserID: h.seller, Role: enums.UserRoleSeller}
			res, err := h.svc.Create(ctx, h.input(tc.method, LineInput{ProductID: h.product.ID, Quantity: 1}))
			require.NoError(t, err)

			_, err = h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: res.Order.ID, Actor: seller, Status: tc.target})
			requireCode(t, err, pkgerrors.CodeConflict)

			order, err := h.svc.Get(ctx, res.Order.ID, types.SystemActor)
			require.NoError(t, err)
			require.Equal(t, enums.OrderStatusPendingPayment, order.Status)
			require.Zero(t, h.payoutCount(t, res.Order.ID))
		})
	}
}

func TestCashOnDeliveryAdvancesWithoutGatewayPayment(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	seller := types.Actor{UserID: h.seller, Role: enums.UserRoleSeller}
	res, err := h.svc.Create(ctx, h.input(enums.PaymentMethodCOD, LineInput{ProductID: h.product.ID, Quantity: 1}))
	require.NoError(t, err)

	updated, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{OrderID: res.Order.ID, Actor: seller, Status: "delivered"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, updated.Status)
}

func TestDeliverySettlementFollowsEscrow(t *testing.T) {
	cases := []struct {
		escrow  enums.EscrowStatus
		payouts int64
	}{
		{enums.EscrowStatusHeld, 1},
		{enums.EscrowStatusReleaseRequested, 1},
		{enums.EscrowStatusDisputed, 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.escrow), func(t *testing.T) {
			h := newHarness(t, 5)
			ctx := context.Background()
			order := h.paidOrder(t)
			h.holdEscrow(t, order, tc.escrow)

			updated, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{
				OrderID: order.ID,
				Actor:   types.Actor{UserID: h.seller, Role: enums.UserRoleSeller},
				Status:  "delivered",
			})
			require.NoError(t, err)
			require.Equal(t, enums.OrderStatusDelivered, updated.Status)
			require.Equal(t, tc.payouts, h.payoutCount(t, order.ID))
		})
	}
}

func TestCancelRejectedOnceFundsAreInEscrow(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()
	order := h.paidOrder(t)
	h.holdEscrow(t, order, enums.EscrowStatusHeld)
	require.Equal(t, 3, h.stock(t, h.product.ID))

	_, err := h.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: order.ID,
		Actor:   types.Actor{UserID: h.seller, Role: enums.UserRoleSeller},
		Status:  "cancelled",
	})
	requireCode(t, err, pkgerrors.CodeConflict)
	require.ErrorContains(t, err, "escrow held")

	current, err := h.svc.Get(ctx, order.ID, types.SystemActor)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPaid, current.Status)
	require.Equal(t, 3, h.stock(t, h.product.ID))
}
