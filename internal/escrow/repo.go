package escrow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/db/models"
	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// Repository persists escrow rows and disputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowPayment, error)
	Create(ctx context.Context, escrow *models.EscrowPayment) error
	// Transition applies updates only while the escrow is still in from.
	Transition(ctx context.Context, orderID uuid.UUID, from enums.EscrowStatus, updates map[string]any) (bool, error)
	CreateDispute(ctx context.Context, dispute *models.PaymentDispute) error
	ListDisputes(ctx context.Context, orderID uuid.UUID) ([]models.PaymentDispute, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByOrderID returns nil without error when the order has no escrow.
func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowPayment, error) {
	var escrow models.EscrowPayment
	err := r.db.WithContext(ctx).First(&escrow, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (r *repository) Create(ctx context.Context, escrow *models.EscrowPayment) error {
	return r.db.WithContext(ctx).Create(escrow).Error
}

func (r *repository) Transition(ctx context.Context, orderID uuid.UUID, from enums.EscrowStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowPayment{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateDispute(ctx context.Context, dispute *models.PaymentDispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) ListDisputes(ctx context.Context, orderID uuid.UUID) ([]models.PaymentDispute, error) {
	var rows []models.PaymentDispute
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
