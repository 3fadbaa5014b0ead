// Package paymentwebhook applies gateway payment notifications to orders and escrow.
package paymentwebhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/internal/escrow"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/payments"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

const consumerName = "payments-webhook"

type orderPayments interface {
	GetByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, reference, reason string) error
}

type escrowHolder interface {
	Apply(ctx context.Context, input escrow.ApplyInput) (*escrow.Result, error)
}

type eventGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type ServiceParams struct {
	Parser payments.EventParser
	Orders orderPayments
	Escrow escrowHolder
	// Guard is optional; without Redis, duplicate deliveries fall back on
	// the escrow uniqueness check.
	Guard  eventGuard
	Logger *logger.Logger
}

type Service struct {
	parser payments.EventParser
	orders orderPayments
	escrow escrowHolder
	guard  eventGuard
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Parser == nil {
		return nil, fmt.Errorf("event parser required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		parser: params.Parser,
		orders: params.Orders,
		escrow: params.Escrow,
		guard:  params.Guard,
		logg:   logg,
	}, nil
}

// Process authenticates a raw delivery, drops redeliveries and applies it.
func (s *Service) Process(ctx context.Context, payload []byte, signature string) error {
	event, err := s.parser.ParseEvent(ctx, payload, signature)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	ctx = s.logg.WithField(ctx, "payment_event_id", event.ID)

	if s.guard != nil && event.ID != "" {
		processed, err := s.guard.CheckAndMarkProcessed(ctx, consumerName, event.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
		}
		if processed {
			s.logg.Info(ctx, "payment event already processed")
			return nil
		}
	}

	if err := s.HandleEvent(ctx, event); err != nil {
		// Only retryable failures free the event id for the gateway's redelivery.
		if s.guard != nil && event.ID != "" && pkgerrors.IsRetryable(err) {
			if delErr := s.guard.Delete(ctx, consumerName, event.ID); delErr != nil {
				s.logg.Error(ctx, "release idempotency key failed", delErr)
			}
		}
		return err
	}
	return nil
}

// HandleEvent maps a confirmed payment to an escrow HOLD and a failed one to
// an order payment failure.
func (s *Service) HandleEvent(ctx context.Context, event *payments.Event) error {
	if event == nil || event.Kind == payments.EventIgnored {
		return nil
	}

	orderID, err := s.resolveOrder(ctx, event)
	if err != nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	switch event.Kind {
	case payments.EventPaymentConfirmed:
		res, err := s.escrow.Apply(ctx, escrow.ApplyInput{
			OrderID:          orderID,
			Actor:            types.SystemActor,
			Action:           "HOLD",
			PaymentReference: event.Reference,
		})
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.logg.Warn(s.logg.WithField(ctx, "reason", pkgerrors.As(err).Message()), "payment confirmation not applied")
			return nil
		}
		if err != nil {
			return err
		}
		if event.AmountCents > 0 && event.AmountCents != res.Escrow.AmountCents {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"gateway_amount_cents": event.AmountCents,
				"escrow_amount_cents":  res.Escrow.AmountCents,
			}), "payment amount differs from order total")
		}
		return nil
	case payments.EventPaymentFailed:
		return s.orders.MarkPaymentFailed(ctx, orderID, event.Reference, event.FailureReason)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment event %q", event.Kind))
	}
}

func (s *Service) resolveOrder(ctx context.Context, event *payments.Event) (uuid.UUID, error) {
	if event.OrderID != uuid.Nil {
		return event.OrderID, nil
	}
	if event.Reference == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment event has no order reference")
	}
	order, err := s.orders.GetByPaymentReference(ctx, event.Reference)
	if err != nil {
		return uuid.Nil, err
	}
	return order.ID, nil
}
