package types

import "database/sql/driver"

// ShippingSelection freezes the shipping option an order was priced with, so
// later rate table changes do not alter what the buyer agreed to.
type ShippingSelection struct {
	OptionID         string `json:"option_id"`
	Provider         string `json:"provider"`
	Service          string `json:"service"`
	ZoneID           string `json:"zone_id"`
	PriceCents       int64  `json:"price_cents"`
	MinDeliveryDays  int    `json:"min_delivery_days"`
	MaxDeliveryDays  int    `json:"max_delivery_days"`
	FreeShipping     bool   `json:"free_shipping"`
	CashOnDelivery   bool   `json:"cash_on_delivery"`
	TotalWeightGrams int64  `json:"total_weight_grams"`
}

func (s *ShippingSelection) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return jsonValue(s)
}

func (s *ShippingSelection) Scan(value any) error {
	*s = ShippingSelection{}
	_, err := scanJSON(value, s)
	return err
}
