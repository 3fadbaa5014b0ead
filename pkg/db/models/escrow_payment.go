package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// EscrowPayment holds buyer funds for exactly one order.
type EscrowPayment struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_escrow_payments_order"`
	AmountCents        int64              `gorm:"column:amount_cents;not null"`
	Currency           string             `gorm:"column:currency;type:text;not null"`
	Status             enums.EscrowStatus `gorm:"column:status;type:text;not null"`
	PaymentReference   *string            `gorm:"column:payment_reference"`
	HeldAt             time.Time          `gorm:"column:held_at;not null"`
	ReleaseRequestedAt *time.Time         `gorm:"column:release_requested_at"`
	ReleasedAt         *time.Time         `gorm:"column:released_at"`
	DisputedAt         *time.Time         `gorm:"column:disputed_at"`
	ReleaseRequestedBy *uuid.UUID         `gorm:"column:release_requested_by;type:uuid"`
	ReleasedBy         *uuid.UUID         `gorm:"column:released_by;type:uuid"`
	DisputedBy         *uuid.UUID         `gorm:"column:disputed_by;type:uuid"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *EscrowPayment) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
