package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// SellerPayout is the settlement owed to one seller for one order.
type SellerPayout struct {
	ID                        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SellerID                  uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_seller_payouts_seller_order"`
	OrderID                   uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_seller_payouts_seller_order"`
	GrossCents                int64              `gorm:"column:gross_cents;not null"`
	PlatformCommissionCents   int64              `gorm:"column:platform_commission_cents;not null"`
	PaymentProcessingFeeCents int64              `gorm:"column:payment_processing_fee_cents;not null"`
	NetCents                  int64              `gorm:"column:net_cents;not null"`
	Currency                  string             `gorm:"column:currency;type:text;not null"`
	Status                    enums.PayoutStatus `gorm:"column:status;type:text;not null"`
	CreatedAt                 time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (p *SellerPayout) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
