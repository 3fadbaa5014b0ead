// Package shipping resolves destinations to zones and prices delivery options.
package shipping

import (
	"fmt"
	"strings"
)

// Resolver maps destinations onto a fixed zone table. It is safe for
// concurrent use; the table is never mutated after construction.
type Resolver struct {
	zones     map[string]Zone
	byCity    map[string]string
	byCountry map[string]string
	fallback  string
}

// NewResolver indexes zones. The zone without countries is the fallback;
// exactly one must exist.
func NewResolver(zones ...Zone) (*Resolver, error) {
	r := &Resolver{
		zones:     make(map[string]Zone, len(zones)),
		byCity:    map[string]string{},
		byCountry: map[string]string{},
	}
	for _, zone := range zones {
		if zone.ID == "" {
			return nil, fmt.Errorf("shipping zone id required")
		}
		if _, dup := r.zones[zone.ID]; dup {
			return nil, fmt.Errorf("duplicate shipping zone %s", zone.ID)
		}
		if len(zone.Rates) == 0 {
			return nil, fmt.Errorf("shipping zone %s has no rates", zone.ID)
		}
		r.zones[zone.ID] = zone

		if len(zone.Countries) == 0 {
			if r.fallback != "" {
				return nil, fmt.Errorf("multiple fallback zones: %s and %s", r.fallback, zone.ID)
			}
			r.fallback = zone.ID
			continue
		}
		for _, country := range zone.Countries {
			code := NormalizeCountry(country)
			if len(zone.Cities) == 0 {
				if existing, ok := r.byCountry[code]; ok {
					return nil, fmt.Errorf("country %s claimed by %s and %s", code, existing, zone.ID)
				}
				r.byCountry[code] = zone.ID
				continue
			}
			for _, city := range zone.Cities {
				key := cityKey(code, city)
				if existing, ok := r.byCity[key]; ok {
					return nil, fmt.Errorf("city %s claimed by %s and %s", key, existing, zone.ID)
				}
				r.byCity[key] = zone.ID
			}
		}
	}
	if r.fallback == "" {
		return nil, fmt.Errorf("fallback shipping zone required")
	}
	return r, nil
}

// NewDefaultResolver builds a resolver over DefaultZones.
func NewDefaultResolver() *Resolver {
	r, err := NewResolver(DefaultZones()...)
	if err != nil {
		panic(err)
	}
	return r
}

// ResolveZone returns the zone for a destination. A city match wins over the
// country default; anything unknown lands in the fallback zone.
func (r *Resolver) ResolveZone(country, city string) Zone {
	code := NormalizeCountry(country)
	if id, ok := r.byCity[cityKey(code, city)]; ok {
		return r.zones[id]
	}
	if id, ok := r.byCountry[code]; ok {
		return r.zones[id]
	}
	return r.zones[r.fallback]
}

// NormalizeCountry folds names and ISO-3 codes to ISO-2 upper case.
func NormalizeCountry(country string) string {
	trimmed := strings.ToLower(strings.Join(strings.Fields(country), " "))
	if alias, ok := countryAliases[trimmed]; ok {
		return alias
	}
	return strings.ToUpper(trimmed)
}

// NormalizeCity trims, lower-cases and collapses inner whitespace.
func NormalizeCity(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}

func cityKey(country, city string) string {
	return country + "|" + NormalizeCity(city)
}

// IsCodAvailable reports whether cash on delivery is accepted for the value.
func IsCodAvailable(orderValueCents int64, zone Zone) bool {
	return zone.CODSupported && orderValueCents <= zone.CODMaxValueCents
}

// IsFreeShippingAvailable reports whether standard options ship free.
func IsFreeShippingAvailable(orderValueCents, weightGrams int64, zone Zone) bool {
	if zone.FreeShippingThresholdCents <= 0 {
		return false
	}
	return orderValueCents >= zone.FreeShippingThresholdCents && weightGrams <= zone.MaxFreeWeightGrams
}
