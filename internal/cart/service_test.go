package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-core/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-core/pkg/db/models"
)

func TestSetLineListAndClear(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)

	product := models.Product{SellerID: uuid.New(), SKU: "s", Name: "Sugar", PriceCents: 250, Active: true}
	require.NoError(t, client.DB().Create(&product).Error)

	buyer := uuid.New()
	require.NoError(t, svc.SetLine(ctx, buyer, Line{ProductID: product.ID, Quantity: 1}))
	require.NoError(t, svc.SetLine(ctx, buyer, Line{ProductID: product.ID, Quantity: 4}))

	lines, err := svc.Lines(ctx, nil, buyer)
	require.NoError(t, err)
	require.Equal(t, []Line{{ProductID: product.ID, Quantity: 4}}, lines)

	require.NoError(t, svc.Clear(ctx, nil, buyer))
	lines, err = svc.Lines(ctx, nil, buyer)
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestSetLineRejectsZeroQuantity(t *testing.T) {
	svc, err := NewService(NewRepository(nil))
	require.NoError(t, err)
	require.Error(t, svc.SetLine(context.Background(), uuid.New(), Line{ProductID: uuid.New()}))
}

func TestMerge(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	merged := Merge([]Line{{a, 1}, {b, 2}, {a, 3}})
	require.Equal(t, []Line{{a, 4}, {b, 2}}, merged)
}
