package types

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strings"
)

// Address is the buyer delivery destination stored as JSONB on orders.
type Address struct {
	Recipient  string  `json:"recipient" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,max=32"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=100"`
	Region     string  `json:"region,omitempty" validate:"omitempty,max=100"`
	PostalCode string  `json:"postal_code,omitempty" validate:"omitempty,max=20"`
	Country    string  `json:"country" validate:"required,min=2,max=56"`
}

// Value refuses to persist an address a courier could not deliver to.
func (a Address) Value() (driver.Value, error) {
	var missing []string
	for field, value := range map[string]string{"line1": a.Line1, "city": a.City, "country": a.Country} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("address: missing %s", strings.Join(missing, ", "))
	}
	return jsonValue(a)
}

func (a *Address) Scan(value any) error {
	*a = Address{}
	if _, err := scanJSON(value, a); err != nil {
		return fmt.Errorf("address: %w", err)
	}
	return nil
}
