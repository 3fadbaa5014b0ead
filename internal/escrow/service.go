// Package escrow holds buyer funds per order and gates their release.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/internal/ledger"
	"github.com/angelmondragon/settlement-core/pkg/config"
	"github.com/angelmondragon/settlement-core/pkg/db"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/outbox"
	"github.com/angelmondragon/settlement-core/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderLoader reads an order with its items.
type OrderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// OrderPayments marks orders paid inside the escrow transaction.
type OrderPayments interface {
	MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order, reference string) error
}

// Settler creates seller payouts inside the caller's transaction.
type Settler interface {
	Settle(ctx context.Context, tx *gorm.DB, order *models.Order, actor types.Actor) ([]models.SellerPayout, error)
}

// Recorder receives escrow metrics.
type Recorder interface {
	IncEscrowTransition(action, outcome string)
}

type ApplyInput struct {
	OrderID          uuid.UUID
	Actor            types.Actor
	Action           string
	Reason           string
	PaymentReference string
}

type Result struct {
	Message string
	Escrow  *models.EscrowPayment
}

type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*Result, error)
	Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.EscrowPayment, error)
}

type Dependencies struct {
	Repo          Repository
	Orders        func(tx *gorm.DB) OrderLoader
	Payments      OrderPayments
	Tx            txRunner
	Ledger        ledger.Service
	Outbox        outbox.Emitter
	Settler       Settler
	PayoutTrigger config.PayoutTrigger
	Logger        *logger.Logger
	Metrics       Recorder
}

type service struct {
	Dependencies
}

func NewService(deps Dependencies) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("escrow repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("order loader required")
	case deps.Payments == nil:
		return nil, fmt.Errorf("order payments required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Settler == nil:
		return nil, fmt.Errorf("payout settler required")
	}
	if deps.PayoutTrigger == "" {
		deps.PayoutTrigger = config.PayoutTriggerBoth
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &service{Dependencies: deps}, nil
}

// Apply runs one escrow action. Checks run in a fixed order: the caller must
// take part in the order, then be allowed to perform the action, and only
// then is the persisted state consulted.
func (s *service) Apply(ctx context.Context, input ApplyInput) (*Result, error) {
	action, err := enums.ParseEscrowAction(input.Action)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid escrow action")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *Result
	err = s.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if action == enums.EscrowActionHold {
			result, err = s.hold(ctx, tx, order, input)
		} else {
			result, err = s.transition(ctx, tx, order, action, input)
		}
		return err
	})

	outcome := "ok"
	if err != nil {
		outcome = string(pkgerrors.As(err).Code())
	}
	if s.Metrics != nil {
		s.Metrics.IncEscrowTransition(string(action), outcome)
	}
	if err != nil {
		return nil, err
	}

	logCtx := s.Logger.WithFields(ctx, map[string]any{
		"order_id":      input.OrderID.String(),
		"escrow_action": string(action),
		"escrow_status": string(result.Escrow.Status),
	})
	s.Logger.Info(logCtx, "escrow "+result.Message)
	return result, nil
}

func (s *service) loadOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Orders(tx).FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) hold(ctx context.Context, tx *gorm.DB, order *models.Order, input ApplyInput) (*Result, error) {
	if !input.Actor.IsPrivileged() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the platform may hold funds")
	}
	repo := s.Repo.WithTx(tx)
	existing, err := repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "funds already held for order")
	}

	reference := strings.TrimSpace(input.PaymentReference)
	if err := s.Payments.MarkPaid(ctx, tx, order, reference); err != nil {
		return nil, err
	}

	escrow := &models.EscrowPayment{
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		Status:      enums.EscrowStatusHeld,
		HeldAt:      time.Now().UTC(),
	}
	if order.PaymentReference != nil {
		escrow.PaymentReference = order.PaymentReference
	}
	if err := repo.Create(ctx, escrow); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "funds already held for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create escrow")
	}

	if err := s.record(ctx, tx, order, escrow, enums.EscrowActionHold, input); err != nil {
		return nil, err
	}
	return &Result{Message: "funds held", Escrow: escrow}, nil
}

func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.Order, action enums.EscrowAction, input ApplyInput) (*Result, error) {
	rule, ok := transitions[action]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported escrow action")
	}
	p := party{buyer: order.BuyerID == input.Actor.UserID, seller: order.HasSeller(input.Actor.UserID)}
	if input.Actor.UserID == uuid.Nil || (!p.buyer && !p.seller) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
	}
	if !rule.allowed(p) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s is not permitted for this caller", action))
	}

	repo := s.Repo.WithTx(tx)
	escrow, err := repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow")
	}
	if escrow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "no funds held for order")
	}
	if order.Status == enums.OrderStatusCancelled && action != enums.EscrowActionDispute {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot %s escrow of a cancelled order", action))
	}
	if escrow.Status.IsFinal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("escrow already %s", strings.ToLower(string(escrow.Status))))
	}
	if !rule.acceptsFrom(escrow.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot %s escrow in status %s", action, escrow.Status))
	}

	if action == enums.EscrowActionRelease {
		totals, err := s.Ledger.Totals(ctx, tx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger totals")
		}
		if totals.Unreleased() < escrow.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "ledger does not cover release").
				WithDetails(map[string]int64{"unreleasedCents": totals.Unreleased(), "escrowCents": escrow.AmountCents})
		}
	}

	now := time.Now().UTC()
	actorID := input.Actor.UserID
	updates := map[string]any{"status": rule.to, "updated_at": now}
	switch action {
	case enums.EscrowActionRequestRelease:
		updates["release_requested_at"] = now
		updates["release_requested_by"] = actorID
		escrow.ReleaseRequestedAt, escrow.ReleaseRequestedBy = &now, &actorID
	case enums.EscrowActionRelease:
		updates["released_at"] = now
		updates["released_by"] = actorID
		escrow.ReleasedAt, escrow.ReleasedBy = &now, &actorID
	case enums.EscrowActionDispute:
		updates["disputed_at"] = now
		updates["disputed_by"] = actorID
		escrow.DisputedAt, escrow.DisputedBy = &now, &actorID
	}

	applied, err := repo.Transition(ctx, order.ID, escrow.Status, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update escrow")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "escrow changed concurrently")
	}
	escrow.Status = rule.to
	escrow.UpdatedAt = now

	if action == enums.EscrowActionDispute {
		if err := repo.CreateDispute(ctx, &models.PaymentDispute{
			OrderID:     order.ID,
			RaisedBy:    actorID,
			Status:      enums.DisputeStatusOpen,
			Description: strings.TrimSpace(input.Reason),
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}
	}

	if err := s.record(ctx, tx, order, escrow, action, input); err != nil {
		return nil, err
	}

	if action == enums.EscrowActionRelease && s.PayoutTrigger.OnRelease() {
		if _, err := s.Settler.Settle(ctx, tx, order, input.Actor); err != nil {
			return nil, err
		}
	}
	return &Result{Message: rule.message, Escrow: escrow}, nil
}

var ledgerTypes = map[enums.EscrowAction]enums.LedgerEventType{
	enums.EscrowActionHold:    enums.LedgerEventTypeEscrowHeld,
	enums.EscrowActionRelease: enums.LedgerEventTypeEscrowReleased,
	enums.EscrowActionDispute: enums.LedgerEventTypeEscrowDisputed,
}

var outboxTypes = map[enums.EscrowAction]enums.OutboxEventType{
	enums.EscrowActionHold:           enums.EventEscrowHeld,
	enums.EscrowActionRequestRelease: enums.EventEscrowReleaseReq,
	enums.EscrowActionRelease:        enums.EventEscrowReleased,
	enums.EscrowActionDispute:        enums.EventEscrowDisputed,
}

func (s *service) record(ctx context.Context, tx *gorm.DB, order *models.Order, escrow *models.EscrowPayment, action enums.EscrowAction, input ApplyInput) error {
	if eventType, ok := ledgerTypes[action]; ok {
		if _, err := s.Ledger.RecordEvent(ctx, tx, ledger.RecordEventInput{
			OrderID:     order.ID,
			BuyerID:     order.BuyerID,
			ActorID:     input.Actor.IDPtr(),
			Type:        eventType,
			AmountCents: escrow.AmountCents,
			Metadata:    map[string]string{"escrow_id": escrow.ID.String(), "reason": strings.TrimSpace(input.Reason)},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record escrow ledger event")
		}
	}
	if err := s.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     outboxTypes[action],
		AggregateType: enums.AggregateEscrow,
		AggregateID:   escrow.ID,
		Actor:         outbox.ActorFrom(input.Actor),
		Data: payloads.EscrowChangedEvent{
			OrderID:     order.ID,
			EscrowID:    escrow.ID,
			Action:      action,
			Status:      escrow.Status,
			AmountCents: escrow.AmountCents,
			Reason:      strings.TrimSpace(input.Reason),
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit escrow event")
	}
	return nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*models.EscrowPayment, error) {
	order, err := s.loadOrder(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() && order.BuyerID != actor.UserID && !order.HasSeller(actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a participant of this order")
	}
	escrow, err := s.Repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow")
	}
	if escrow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no escrow for order")
	}
	return escrow, nil
}
