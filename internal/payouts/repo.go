package payouts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-core/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// InsertIfAbsent reports false when a payout for (seller, order) already exists.
	InsertIfAbsent(ctx context.Context, payout *models.SellerPayout) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SellerPayout, error)
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

func (r *repository) InsertIfAbsent(ctx context.Context, payout *models.SellerPayout) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "seller_id"}, {Name: "order_id"}},
			DoNothing: true,
		}).
		Create(payout)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SellerPayout, error) {
	var rows []models.SellerPayout
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seller_id ASC").
		Find(&rows).Error
	return rows, err
}
