package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/db/models"
)

// Repository reads product snapshots and mutates stock with conditional writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]ProductSnapshot, error)
	DecrementInventory(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	RestockInventory(ctx context.Context, productID uuid.UUID, qty int) error
}

// ProductSnapshot joins a product with its current sellable stock.
type ProductSnapshot struct {
	models.Product
	AvailableQty int `gorm:"column:available_qty"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]ProductSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []ProductSnapshot
	err := r.db.WithContext(ctx).
		Table("products").
		Select("products.*, COALESCE(inventory_items.available_qty, 0) AS available_qty").
		Joins("LEFT JOIN inventory_items ON inventory_items.product_id = products.id").
		Where("products.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DecrementInventory subtracts qty only when enough stock remains. It reports
// false when the guard rejected the write.
func (r *repository) DecrementInventory(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		SET available_qty = available_qty - ?, updated_at = ?
		WHERE product_id = ? AND available_qty >= ?`,
		qty, time.Now().UTC(), productID, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RestockInventory(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		SET available_qty = available_qty + ?, updated_at = ?
		WHERE product_id = ?`,
		qty, time.Now().UTC(), productID,
	).Error
}
