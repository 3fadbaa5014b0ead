// Package orders turns carts into orders and drives their fulfillment lifecycle.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/internal/cart"
	"github.com/angelmondragon/settlement-core/internal/catalog"
	"github.com/angelmondragon/settlement-core/internal/shipping"
	"github.com/angelmondragon/settlement-core/pkg/config"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/money"
	"github.com/angelmondragon/settlement-core/pkg/outbox"
	"github.com/angelmondragon/settlement-core/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-core/pkg/payments"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Quoter prices shipping for a parcel.
type Quoter interface {
	Quote(items []shipping.Item, dest shipping.Destination, cod bool) shipping.Quote
}

// Settler creates seller payouts inside the caller's transaction.
type Settler interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.Order, actor types.Actor) ([]models.SellerPayout, error)
}

// Recorder receives checkout metrics.
type Recorder interface {
	IncOrderCreated(paymentMethod string)
	IncStockConflict()
}

// Service exposes order intake and fulfillment.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.Order, error)
	GetByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	// MarkPaid records a confirmed payment inside the caller's transaction.
	MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order, reference string) error
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, reference, reason string) error
}

// Dependencies groups the collaborators of the order service.
type Dependencies struct {
	Repo          Repository
	Tx            txRunner
	Catalog       catalog.Service
	Cart          cart.Service
	Shipping      Quoter
	Gateway       payments.Gateway
	Outbox        outbox.Emitter
	Settler       Settler
	Rates         money.Rates
	Currency      string
	PayoutTrigger config.PayoutTrigger
	Logger        *logger.Logger
	Metrics       Recorder
}

type service struct {
	Dependencies
}

func NewService(deps Dependencies) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if deps.Shipping == nil {
		return nil, fmt.Errorf("shipping quoter required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if deps.Settler == nil {
		return nil, fmt.Errorf("payout settler required")
	}
	if deps.Currency == "" {
		deps.Currency = "KES"
	}
	if deps.PayoutTrigger == "" {
		deps.PayoutTrigger = config.PayoutTriggerBoth
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &service{Dependencies: deps}, nil
}

// Create validates the cart, prices it and persists the order while
// reserving stock, all in one transaction. Gateway intents are created after
// commit so the transaction never waits on the network.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if strings.TrimSpace(input.ShippingAddress.Country) == "" || strings.TrimSpace(input.ShippingAddress.Line1) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address requires country and line1")
	}
	for _, line := range input.Items {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"productId": line.ProductID.String()})
		}
	}

	ctx = s.Logger.WithUserID(ctx, input.BuyerID.String())
	var order *models.Order
	err := s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		built, err := s.buildOrder(ctx, tx, input)
		if err != nil {
			return err
		}
		if err := s.Repo.WithTx(tx).Create(ctx, built); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
		for _, item := range built.Items {
			if err := s.Catalog.Reserve(ctx, tx, item.ProductID, item.Quantity); err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeConflict) && s.Metrics != nil {
					s.Metrics.IncStockConflict()
				}
				return err
			}
		}
		if err := s.Cart.Clear(ctx, tx, input.BuyerID); err != nil {
			return err
		}
		if err := s.Outbox.Emit(ctx, tx, orderCreatedEvent(built)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}
		order = built
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.Logger.WithOrderID(ctx, order.ID.String())
	if s.Metrics != nil {
		s.Metrics.IncOrderCreated(string(order.PaymentMethod))
	}
	s.Logger.Info(ctx, "order created")

	result := &CreateOrderResult{Order: order}
	if !order.PaymentMethod.RequiresGateway() {
		return result, nil
	}

	intent, err := s.Gateway.CreateIntent(ctx, payments.IntentRequest{
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		Method:      order.PaymentMethod,
	})
	if err != nil {
		s.Logger.Error(ctx, "payment intent creation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "payment provider unavailable").
			WithDetails(map[string]any{"orderId": order.ID.String()})
	}

	reference := intent.ID
	if err := s.Repo.UpdatePayment(ctx, order.ID, map[string]any{"payment_reference": reference}); err != nil {
		// Confirmation events carry the order id, so the reference can be recovered later.
		s.Logger.Error(ctx, "store payment reference failed", err)
	}
	order.PaymentReference = &reference
	result.ClientSecret = intent.ClientSecret
	return result, nil
}

func (s *service) buildOrder(ctx context.Context, tx *gorm.DB, input CreateOrderInput) (*models.Order, error) {
	lines := make([]cart.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, cart.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if len(lines) == 0 {
		stored, err := s.Cart.Lines(ctx, tx, input.BuyerID)
		if err != nil {
			return nil, err
		}
		lines = stored
	}
	lines = cart.Merge(lines)
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		ids = append(ids, line.ProductID)
	}
	products, err := s.Catalog.Snapshots(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	items := make([]models.OrderItem, 0, len(lines))
	parcel := make([]shipping.Item, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": line.ProductID.String()})
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"productId": line.ProductID.String()})
		}
		if line.Quantity > product.AvailableQty {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").
				WithDetails(map[string]any{
					"productId": line.ProductID.String(),
					"requested": line.Quantity,
					"available": product.AvailableQty,
				})
		}
		lineTotal := product.PriceCents * int64(line.Quantity)
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			Name:           product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: lineTotal,
			WeightGrams:    product.WeightGrams,
		})
		parcel = append(parcel, shipping.Item{WeightGrams: product.WeightGrams, PriceCents: product.PriceCents, Quantity: line.Quantity})
	}

	cod := input.PaymentMethod == enums.PaymentMethodCOD
	quote := s.Shipping.Quote(parcel, shipping.Destination{
		Country: input.ShippingAddress.Country,
		City:    input.ShippingAddress.City,
	}, cod)
	if cod && !quote.CODAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash on delivery is not available for this order").
			WithDetails(map[string]any{"zone": quote.Zone.ID})
	}
	option, ok := quote.Recommended()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipping option available for destination").
			WithDetails(map[string]any{"zone": quote.Zone.ID})
	}

	tax := s.Rates.Tax(subtotal)
	status := enums.OrderStatusPendingPayment
	if cod {
		status = enums.OrderStatusProcessing
	}
	return &models.Order{
		ID:              uuid.New(),
		BuyerID:         input.BuyerID,
		Status:          status,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		Currency:        s.Currency,
		SubtotalCents:   subtotal,
		ShippingCents:   option.PriceCents,
		TaxCents:        tax,
		TotalCents:      subtotal + option.PriceCents + tax,
		ShippingAddress: input.ShippingAddress,
		ShippingOption:  quote.Selection(option, cod),
		Items:           items,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.Order, error) {
	order, err := s.load(ctx, s.Repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() && order.BuyerID != actor.UserID && !order.HasSeller(actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
	}
	return order, nil
}

func (s *service) GetByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	order, err := s.Repo.FindByPaymentReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// UpdateStatus moves an order forward (or cancels it). Sellers of the order
// and platform roles may move it; buyers may only cancel unpaid orders.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	target, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status")
	}
	if input.Actor.UserID == uuid.Nil && !input.Actor.IsPrivileged() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.Order
	err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(order, input.Actor, target); err != nil {
			return err
		}
		from := order.Status
		if !from.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot move order from %s to %s", from, target))
		}
		if err := requirePayment(order, target); err != nil {
			return err
		}
		escrow, err := repo.FindEscrow(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow")
		}
		if target == enums.OrderStatusCancelled && escrow != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot cancel order with escrow %s", strings.ToLower(string(escrow.Status))))
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": target}
		switch target {
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
			if input.TrackingNumber != nil && strings.TrimSpace(*input.TrackingNumber) != "" {
				updates["tracking_number"] = strings.TrimSpace(*input.TrackingNumber)
			}
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
		case enums.OrderStatusCancelled:
			updates["cancelled_at"] = now
		}
		ok, err := repo.TransitionStatus(ctx, order.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		if target == enums.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := s.Catalog.Restock(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		eventType := enums.EventOrderStatusChanged
		if target == enums.OrderStatusCancelled {
			eventType = enums.EventOrderCancelled
		}
		reloaded, err := s.load(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		if err := s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFrom(input.Actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				From:           from,
				To:             target,
				TrackingNumber: reloaded.TrackingNumber,
				ChangedAt:      now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}

		if target == enums.OrderStatusDelivered && s.PayoutTrigger.OnDelivery() {
			if escrow != nil && !escrow.Status.CoversPayout() {
				s.Logger.Warn(s.Logger.WithFields(ctx, map[string]any{
					"order_id":      order.ID.String(),
					"escrow_status": string(escrow.Status),
				}), "delivery settlement skipped")
			} else if _, err := s.Settler.Settle(ctx, tx, reloaded, input.Actor); err != nil {
				return err
			}
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.Logger.WithFields(ctx, map[string]any{
		"order_id": updated.ID.String(),
		"status":   string(updated.Status),
	})
	s.Logger.Info(logCtx, "order status updated")
	return updated, nil
}

// requirePayment keeps gateway orders at pending_payment until the gateway
// has confirmed the funds.
func requirePayment(order *models.Order, target enums.OrderStatus) error {
	if !order.PaymentMethod.RequiresGateway() || target == enums.OrderStatusCancelled {
		return nil
	}
	if target.Rank() >= enums.OrderStatusPaid.Rank() && order.PaymentStatus != enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order payment is %s", order.PaymentStatus))
	}
	return nil
}

func authorizeTransition(order *models.Order, actor types.Actor, target enums.OrderStatus) error {
	if actor.IsPrivileged() || order.HasSeller(actor.UserID) {
		return nil
	}
	if order.BuyerID == actor.UserID {
		if target == enums.OrderStatusCancelled && order.Status == enums.OrderStatusPendingPayment {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "buyers may only cancel orders awaiting payment")
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
}

// MarkPaid flips an awaiting order to paid and records the gateway reference.
// Orders already past payment (cash on delivery) keep their status.
func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order, reference string) error {
	if tx == nil {
		return fmt.Errorf("mark paid requires a transaction")
	}
	if order.Status == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeConflict, "order is cancelled")
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"payment_status": enums.PaymentStatusPaid,
		"paid_at":        now,
	}
	if reference != "" {
		updates["payment_reference"] = reference
	}
	from := order.Status
	if from == enums.OrderStatusPendingPayment {
		updates["status"] = enums.OrderStatusPaid
	}

	ok, err := s.Repo.WithTx(tx).TransitionStatus(ctx, order.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
	}

	if status, changed := updates["status"]; changed {
		order.Status = status.(enums.OrderStatus)
		if err := s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFrom(types.SystemActor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				From:      from,
				To:        order.Status,
				ChangedAt: now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status change")
		}
	}
	order.PaymentStatus = enums.PaymentStatusPaid
	order.PaidAt = &now
	if reference != "" {
		order.PaymentReference = &reference
	}
	return nil
}

// MarkPaymentFailed records a gateway failure. The order stays awaiting
// payment so the buyer can retry; confirmed payments are never downgraded.
func (s *service) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, reference, reason string) error {
	return s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != enums.PaymentStatusPending {
			s.Logger.Warn(s.Logger.WithOrderID(ctx, order.ID.String()), "payment failure ignored for settled payment status")
			return nil
		}
		updates := map[string]any{"payment_status": enums.PaymentStatusFailed}
		if reference != "" && order.PaymentReference == nil {
			updates["payment_reference"] = reference
		}
		if err := repo.UpdatePayment(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		return s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.ActorFrom(types.SystemActor),
			Data: payloads.PaymentFailedEvent{
				OrderID:          order.ID,
				PaymentReference: reference,
				Reason:           reason,
			},
		})
	})
}

func orderCreatedEvent(order *models.Order) outbox.DomainEvent {
	seen := map[uuid.UUID]bool{}
	sellers := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if !seen[item.SellerID] {
			seen[item.SellerID] = true
			sellers = append(sellers, item.SellerID)
		}
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.BuyerActor(order.BuyerID),
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			BuyerID:       order.BuyerID,
			SellerIDs:     sellers,
			PaymentMethod: order.PaymentMethod,
			SubtotalCents: order.SubtotalCents,
			ShippingCents: order.ShippingCents,
			TaxCents:      order.TaxCents,
			TotalCents:    order.TotalCents,
			Currency:      order.Currency,
		},
	}
}
