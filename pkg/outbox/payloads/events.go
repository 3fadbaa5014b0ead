package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// OrderCreatedEvent signals a new order with its computed totals.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerIDs     []uuid.UUID         `json:"seller_ids"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	SubtotalCents int64               `json:"subtotal_cents"`
	ShippingCents int64               `json:"shipping_cents"`
	TaxCents      int64               `json:"tax_cents"`
	TotalCents    int64               `json:"total_cents"`
	Currency      string              `json:"currency"`
}

// OrderStatusChangedEvent reports a fulfillment transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed charge.
type PaymentFailedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	PaymentReference string    `json:"payment_reference"`
	Reason           string    `json:"reason,omitempty"`
}

// EscrowChangedEvent carries every escrow transition.
type EscrowChangedEvent struct {
	OrderID     uuid.UUID          `json:"order_id"`
	EscrowID    uuid.UUID          `json:"escrow_id"`
	Action      enums.EscrowAction `json:"action"`
	Status      enums.EscrowStatus `json:"status"`
	AmountCents int64              `json:"amount_cents"`
	Reason      string             `json:"reason,omitempty"`
}

// PayoutCreatedEvent is emitted once per newly inserted seller payout.
type PayoutCreatedEvent struct {
	PayoutID   uuid.UUID `json:"payout_id"`
	OrderID    uuid.UUID `json:"order_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	GrossCents int64     `json:"gross_cents"`
	NetCents   int64     `json:"net_cents"`
	Currency   string    `json:"currency"`
}
