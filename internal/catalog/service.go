// Package catalog is the read side of products and the write side of stock.
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
)

// Service exposes the catalog operations checkout relies on.
type Service interface {
	Snapshots(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]ProductSnapshot, error)
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// Snapshots loads products keyed by id. Missing ids are simply absent from the map.
func (s *service) Snapshots(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]ProductSnapshot, error) {
	rows, err := s.repo.WithTx(tx).FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	out := make(map[uuid.UUID]ProductSnapshot, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Reserve decrements stock; a lost race surfaces as a conflict.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.WithTx(tx).DecrementInventory(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"productId": productID.String()})
	}
	return nil
}

func (s *service) Restock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := s.repo.WithTx(tx).RestockInventory(ctx, productID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock inventory")
	}
	return nil
}
