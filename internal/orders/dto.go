package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

// LineInput is one requested product line.
type LineInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=1"`
}

// CreateOrderInput drives checkout. Items falls back to the persisted cart when empty.
type CreateOrderInput struct {
	BuyerID         uuid.UUID
	Items           []LineInput
	ShippingAddress types.Address
	PaymentMethod   enums.PaymentMethod
}

// CreateOrderResult carries the order and, for gateway payments, the client secret.
type CreateOrderResult struct {
	Order        *models.Order
	ClientSecret string
}

// UpdateStatusInput is a fulfillment transition request.
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	Actor          types.Actor
	Status         string
	TrackingNumber *string
}

type OrderItemDTO struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"productId"`
	SellerID       uuid.UUID `json:"sellerId"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	LineTotalCents int64     `json:"lineTotalCents"`
}

type OrderDTO struct {
	ID               uuid.UUID                `json:"id"`
	BuyerID          uuid.UUID                `json:"buyerId"`
	Status           enums.OrderStatus        `json:"status"`
	PaymentStatus    enums.PaymentStatus      `json:"paymentStatus"`
	PaymentMethod    enums.PaymentMethod      `json:"paymentMethod"`
	PaymentReference *string                  `json:"paymentReference,omitempty"`
	Currency         string                   `json:"currency"`
	SubtotalCents    int64                    `json:"subtotalCents"`
	ShippingCents    int64                    `json:"shippingCents"`
	TaxCents         int64                    `json:"taxCents"`
	TotalCents       int64                    `json:"totalCents"`
	ShippingAddress  types.Address            `json:"shippingAddress"`
	ShippingOption   *types.ShippingSelection `json:"shippingOption,omitempty"`
	TrackingNumber   *string                  `json:"trackingNumber,omitempty"`
	Items            []OrderItemDTO           `json:"items"`
	PaidAt           *time.Time               `json:"paidAt,omitempty"`
	ShippedAt        *time.Time               `json:"shippedAt,omitempty"`
	DeliveredAt      *time.Time               `json:"deliveredAt,omitempty"`
	CancelledAt      *time.Time               `json:"cancelledAt,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
}

func NewOrderDTO(order *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			SellerID:       item.SellerID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return OrderDTO{
		ID:               order.ID,
		BuyerID:          order.BuyerID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		PaymentReference: order.PaymentReference,
		Currency:         order.Currency,
		SubtotalCents:    order.SubtotalCents,
		ShippingCents:    order.ShippingCents,
		TaxCents:         order.TaxCents,
		TotalCents:       order.TotalCents,
		ShippingAddress:  order.ShippingAddress,
		ShippingOption:   order.ShippingOption,
		TrackingNumber:   order.TrackingNumber,
		Items:            items,
		PaidAt:           order.PaidAt,
		ShippedAt:        order.ShippedAt,
		DeliveredAt:      order.DeliveredAt,
		CancelledAt:      order.CancelledAt,
		CreatedAt:        order.CreatedAt,
	}
}
