package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// PaymentDispute records a buyer or seller objection against a held escrow.
type PaymentDispute struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	RaisedBy    uuid.UUID           `gorm:"column:raised_by;type:uuid;not null"`
	Status      enums.DisputeStatus `gorm:"column:status;type:text;not null"`
	Description string              `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (d *PaymentDispute) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
