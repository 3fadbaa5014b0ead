package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/api/middleware"
	"github.com/angelmondragon/settlement-core/api/responses"
	"github.com/angelmondragon/settlement-core/api/validators"
	internalorders "github.com/angelmondragon/settlement-core/internal/orders"
	"github.com/angelmondragon/settlement-core/internal/payouts"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/logger"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

type createOrderRequest struct {
	Items           []internalorders.LineInput `json:"items" validate:"omitempty,dive"`
	ShippingAddress types.Address              `json:"shippingAddress" validate:"required"`
	PaymentMethod   string                     `json:"paymentMethod" validate:"required,oneof=card mpesa cod"`
}

type createOrderResponse struct {
	Order        internalorders.OrderDTO `json:"order"`
	ClientSecret string                  `json:"clientSecret,omitempty"`
}

type updateStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	TrackingNumber *string `json:"trackingNumber" validate:"omitempty,max=64"`
}

type payoutDTO struct {
	ID                        uuid.UUID          `json:"id"`
	SellerID                  uuid.UUID          `json:"sellerId"`
	OrderID                   uuid.UUID          `json:"orderId"`
	GrossCents                int64              `json:"grossCents"`
	PlatformCommissionCents   int64              `json:"platformCommissionCents"`
	PaymentProcessingFeeCents int64              `json:"paymentProcessingFeeCents"`
	NetCents                  int64              `json:"netCents"`
	Currency                  string             `json:"currency"`
	Status                    enums.PayoutStatus `json:"status"`
}

// Create turns the caller's requested lines (or stored cart) into an order.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		result, err := svc.Create(r.Context(), internalorders.CreateOrderInput{
			BuyerID:         actor.UserID,
			Items:           payload.Items,
			ShippingAddress: payload.ShippingAddress,
			PaymentMethod:   method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createOrderResponse{
			Order:        internalorders.NewOrderDTO(result.Order),
			ClientSecret: result.ClientSecret,
		})
	}
}

// Detail returns the order with items to a participant.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, _, ok := loadForActor(w, r, svc, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderDTO(order))
	}
}

// Payouts lists the seller payouts of an order visible to the caller.
func Payouts(svc internalorders.Service, payoutSvc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payoutSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}
		order, actor, ok := loadForActor(w, r, svc, logg)
		if !ok {
			return
		}
		rows, err := payoutSvc.ListForActor(r.Context(), order, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]payoutDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, newPayoutDTO(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// UpdateStatus moves an order forward through fulfillment.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.TrackingNumber != nil {
			tracking := validators.SanitizeString(*payload.TrackingNumber, 64)
			payload.TrackingNumber = &tracking
		}

		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID:        orderID,
			Actor:          actor,
			Status:         strings.TrimSpace(payload.Status),
			TrackingNumber: payload.TrackingNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderDTO(order))
	}
}

func loadForActor(w http.ResponseWriter, r *http.Request, svc internalorders.Service, logg *logger.Logger) (*models.Order, types.Actor, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
		return nil, types.Actor{}, false
	}
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return nil, types.Actor{}, false
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, types.Actor{}, false
	}
	order, err := svc.Get(r.Context(), orderID, actor)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, types.Actor{}, false
	}
	return order, actor, true
}

func newPayoutDTO(row models.SellerPayout) payoutDTO {
	return payoutDTO{
		ID:                        row.ID,
		SellerID:                  row.SellerID,
		OrderID:                   row.OrderID,
		GrossCents:                row.GrossCents,
		PlatformCommissionCents:   row.PlatformCommissionCents,
		PaymentProcessingFeeCents: row.PaymentProcessingFeeCents,
		NetCents:                  row.NetCents,
		Currency:                  row.Currency,
		Status:                    row.Status,
	}
}
