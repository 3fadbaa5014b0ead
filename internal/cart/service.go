// Package cart reads and clears the buyer cart consumed by checkout.
package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
)

// Line is a product/quantity pair requested at checkout.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

type Service interface {
	Lines(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) ([]Line, error)
	SetLine(ctx context.Context, buyerID uuid.UUID, line Line) error
	Clear(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Lines(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) ([]Line, error) {
	items, err := s.repo.WithTx(tx).ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines, nil
}

func (s *service) SetLine(ctx context.Context, buyerID uuid.UUID, line Line) error {
	if line.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	item := &models.CartItem{BuyerID: buyerID, ProductID: line.ProductID, Quantity: line.Quantity}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) error {
	if err := s.repo.WithTx(tx).ClearBuyer(ctx, buyerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Merge folds duplicate product lines together, keeping first-seen order.
func Merge(lines []Line) []Line {
	index := make(map[uuid.UUID]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}
