package shipping

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-core/internal/catalog"
	pkgerrors "github.com/angelmondragon/settlement-core/pkg/errors"
	"github.com/angelmondragon/settlement-core/pkg/money"
)

// ProductLookup is the catalog read the calculator needs.
type ProductLookup interface {
	Snapshots(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]catalog.ProductSnapshot, error)
}

type LineInput struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type CalculateInput struct {
	Items       []LineInput `json:"items" validate:"required,min=1,dive"`
	Destination Destination `json:"destination" validate:"required"`
	COD         bool        `json:"cod"`
}

type Totals struct {
	SubtotalCents int64  `json:"subtotalCents"`
	ShippingCents int64  `json:"shippingCents"`
	TaxCents      int64  `json:"taxCents"`
	TotalCents    int64  `json:"totalCents"`
	Currency      string `json:"currency"`
}

type Calculation struct {
	Zone     ZoneSummary `json:"zone"`
	Totals   Totals      `json:"totals"`
	Shipping Quote       `json:"shipping"`
}

// Calculator previews cart totals for a destination without reserving stock.
type Calculator struct {
	resolver *Resolver
	products ProductLookup
	rates    money.Rates
	currency string
}

func NewCalculator(resolver *Resolver, products ProductLookup, rates money.Rates, currency string) (*Calculator, error) {
	if resolver == nil {
		return nil, fmt.Errorf("shipping resolver required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	return &Calculator{resolver: resolver, products: products, rates: rates, currency: currency}, nil
}

func (c *Calculator) Calculate(ctx context.Context, input CalculateInput) (*Calculation, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items required")
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		ids = append(ids, line.ProductID)
	}
	products, err := c.products.Snapshots(ctx, nil, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(input.Items))
	var subtotal int64
	for _, line := range input.Items {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": line.ProductID.String()})
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"productId": line.ProductID.String()})
		}
		subtotal += product.PriceCents * int64(line.Quantity)
		items = append(items, Item{WeightGrams: product.WeightGrams, PriceCents: product.PriceCents, Quantity: line.Quantity})
	}

	quote := c.resolver.Quote(items, input.Destination, input.COD)
	var shippingCents int64
	if opt, ok := quote.Recommended(); ok {
		shippingCents = opt.PriceCents
	}
	tax := c.rates.Tax(subtotal)

	return &Calculation{
		Zone: quote.Zone,
		Totals: Totals{
			SubtotalCents: subtotal,
			ShippingCents: shippingCents,
			TaxCents:      tax,
			TotalCents:    subtotal + shippingCents + tax,
			Currency:      c.currency,
		},
		Shipping: quote,
	}, nil
}
