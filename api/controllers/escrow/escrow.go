package escrow

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/api/middleware"
	"github.com/angelmondragon/settlement-core/api/responses"
	"github.com/angelmondragon/settlement-core/api/validators"
	internalescrow "github.com/angelmondragon/settlement-core/internal/escrow"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
)

type applyRequest struct {
	OrderID          uuid.UUID `json:"orderId" validate:"required"`
	Action           string    `json:"action" validate:"required"`
	Reason           string    `json:"reason" validate:"omitempty,max=1000"`
	PaymentReference string    `json:"paymentReference" validate:"omitempty,max=255"`
}

type escrowDTO struct {
	ID                 uuid.UUID          `json:"id"`
	OrderID            uuid.UUID          `json:"orderId"`
	AmountCents        int64              `json:"amountCents"`
	Currency           string             `json:"currency"`
	Status             enums.EscrowStatus `json:"status"`
	PaymentReference   *string            `json:"paymentReference,omitempty"`
	HeldAt             time.Time          `json:"heldAt"`
	ReleaseRequestedAt *time.Time         `json:"releaseRequestedAt,omitempty"`
	ReleasedAt         *time.Time         `json:"releasedAt,omitempty"`
	DisputedAt         *time.Time         `json:"disputedAt,omitempty"`
}

type applyResponse struct {
	Message string    `json:"message"`
	Escrow  escrowDTO `json:"escrow"`
}

// Apply runs one escrow action for the authenticated caller.
func Apply(svc internalescrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var payload applyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, payload.OrderID.String())
		}
		result, err := svc.Apply(ctx, internalescrow.ApplyInput{
			OrderID:          payload.OrderID,
			Actor:            actor,
			Action:           payload.Action,
			Reason:           validators.SanitizeString(payload.Reason, 1000),
			PaymentReference: validators.SanitizeString(payload.PaymentReference, 255),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, applyResponse{Message: result.Message, Escrow: newEscrowDTO(result.Escrow)})
	}
}

// Detail returns the escrow of an order to a participant.
func Detail(svc internalescrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "escrow service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newEscrowDTO(record))
	}
}

func newEscrowDTO(e *models.EscrowPayment) escrowDTO {
	if e == nil {
		return escrowDTO{}
	}
	return escrowDTO{
		ID:                 e.ID,
		OrderID:            e.OrderID,
		AmountCents:        e.AmountCents,
		Currency:           e.Currency,
		Status:             e.Status,
		PaymentReference:   e.PaymentReference,
		HeldAt:             e.HeldAt,
		ReleaseRequestedAt: e.ReleaseRequestedAt,
		ReleasedAt:         e.ReleasedAt,
		DisputedAt:         e.DisputedAt,
	}
}
