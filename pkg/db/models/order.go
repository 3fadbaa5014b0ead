package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/enums"
	"github.com/angelmondragon/settlement-core/pkg/types"
)

// Order is a buyer checkout spanning one or more sellers.
type Order struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status           enums.OrderStatus        `gorm:"column:status;type:text;not null"`
	PaymentStatus    enums.PaymentStatus      `gorm:"column:payment_status;type:text;not null"`
	PaymentMethod    enums.PaymentMethod      `gorm:"column:payment_method;type:text;not null"`
	PaymentReference *string                  `gorm:"column:payment_reference;index"`
	Currency         string                   `gorm:"column:currency;type:text;not null"`
	SubtotalCents    int64                    `gorm:"column:subtotal_cents;not null"`
	ShippingCents    int64                    `gorm:"column:shipping_cents;not null"`
	TaxCents         int64                    `gorm:"column:tax_cents;not null"`
	TotalCents       int64                    `gorm:"column:total_cents;not null"`
	ShippingAddress  types.Address            `gorm:"column:shipping_address;type:jsonb;not null"`
	ShippingOption   *types.ShippingSelection `gorm:"column:shipping_option;type:jsonb"`
	TrackingNumber   *string                  `gorm:"column:tracking_number"`
	PaidAt           *time.Time               `gorm:"column:paid_at"`
	ShippedAt        *time.Time               `gorm:"column:shipped_at"`
	DeliveredAt      *time.Time               `gorm:"column:delivered_at"`
	CancelledAt      *time.Time               `gorm:"column:cancelled_at"`
	Items            []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// HasSeller reports whether any item on the order belongs to sellerID.
func (o *Order) HasSeller(sellerID uuid.UUID) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}
