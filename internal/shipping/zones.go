package shipping

// Zone identifiers.
const (
	ZoneNairobiMetro = "NAIROBI_METRO"
	ZoneMajorTowns   = "MAJOR_TOWNS"
	ZoneKenyaOther   = "KENYA_OTHER"
	ZoneEastAfrica   = "EAST_AFRICA"
	ZoneRestOfWorld  = "REST_OF_WORLD"
)

// Rate is one provider/service price table inside a zone.
type Rate struct {
	Provider      string
	Service       string
	BaseCents     int64
	PerKgCents    int64
	IncludedGrams int64
	MinDays       int
	MaxDays       int
	// Standard rates are the ones zeroed out when free shipping applies.
	Standard       bool
	CashOnDelivery bool
}

// Zone groups destinations that share pricing and eligibility rules.
// A zero FreeShippingThresholdCents disables free shipping for the zone.
type Zone struct {
	ID                         string
	DisplayName                string
	Region                     string
	Countries                  []string
	Cities                     []string
	CODSupported               bool
	CODMaxValueCents           int64
	FreeShippingThresholdCents int64
	MaxFreeWeightGrams         int64
	Rates                      []Rate
}

// DefaultZones is the production zone table. Amounts are KES minor units.
func DefaultZones() []Zone {
	return []Zone{
		{
			ID:                         ZoneNairobiMetro,
			DisplayName:                "Nairobi Metro",
			Region:                     "KE-NBO",
			Countries:                  []string{"KE"},
			Cities:                     []string{"nairobi", "westlands", "karen", "kiambu", "thika", "ruiru"},
			CODSupported:               true,
			CODMaxValueCents:           5_000_000,
			FreeShippingThresholdCents: 500_000,
			MaxFreeWeightGrams:         10_000,
			Rates: []Rate{
				{Provider: "g4s", Service: "standard", BaseCents: 25_000, PerKgCents: 5_000, IncludedGrams: 2_000, MinDays: 1, MaxDays: 2, Standard: true, CashOnDelivery: true},
				{Provider: "sendy", Service: "express", BaseCents: 45_000, PerKgCents: 8_000, IncludedGrams: 2_000, MinDays: 0, MaxDays: 1, CashOnDelivery: true},
			},
		},
		{
			ID:                         ZoneMajorTowns,
			DisplayName:                "Major Towns",
			Region:                     "KE-TOWNS",
			Countries:                  []string{"KE"},
			Cities:                     []string{"mombasa", "kisumu", "nakuru", "eldoret"},
			CODSupported:               true,
			CODMaxValueCents:           3_000_000,
			FreeShippingThresholdCents: 1_000_000,
			MaxFreeWeightGrams:         10_000,
			Rates: []Rate{
				{Provider: "g4s", Service: "standard", BaseCents: 40_000, PerKgCents: 7_000, IncludedGrams: 2_000, MinDays: 2, MaxDays: 4, Standard: true, CashOnDelivery: true},
				{Provider: "fargo", Service: "express", BaseCents: 60_000, PerKgCents: 9_000, IncludedGrams: 2_000, MinDays: 1, MaxDays: 2},
			},
		},
		{
			ID:                         ZoneKenyaOther,
			DisplayName:                "Rest of Kenya",
			Region:                     "KE",
			Countries:                  []string{"KE"},
			CODSupported:               true,
			CODMaxValueCents:           1_500_000,
			FreeShippingThresholdCents: 1_500_000,
			MaxFreeWeightGrams:         5_000,
			Rates: []Rate{
				{Provider: "posta", Service: "standard", BaseCents: 50_000, PerKgCents: 10_000, IncludedGrams: 1_000, MinDays: 3, MaxDays: 6, Standard: true},
				{Provider: "g4s", Service: "standard", BaseCents: 65_000, PerKgCents: 10_000, IncludedGrams: 1_000, MinDays: 2, MaxDays: 5, Standard: true, CashOnDelivery: true},
			},
		},
		{
			ID:                         ZoneEastAfrica,
			DisplayName:                "East Africa",
			Region:                     "EAC",
			Countries:                  []string{"UG", "TZ", "RW"},
			FreeShippingThresholdCents: 3_000_000,
			MaxFreeWeightGrams:         5_000,
			Rates: []Rate{
				{Provider: "posta", Service: "standard", BaseCents: 150_000, PerKgCents: 30_000, IncludedGrams: 500, MinDays: 5, MaxDays: 10, Standard: true},
				{Provider: "dhl", Service: "express", BaseCents: 250_000, PerKgCents: 50_000, IncludedGrams: 500, MinDays: 2, MaxDays: 4},
			},
		},
		{
			ID:          ZoneRestOfWorld,
			DisplayName: "Rest of World",
			Region:      "INTL",
			Rates: []Rate{
				{Provider: "posta", Service: "standard", BaseCents: 350_000, PerKgCents: 90_000, IncludedGrams: 500, MinDays: 7, MaxDays: 21, Standard: true},
				{Provider: "dhl", Service: "express", BaseCents: 600_000, PerKgCents: 150_000, IncludedGrams: 500, MinDays: 3, MaxDays: 7},
			},
		},
	}
}

var countryAliases = map[string]string{
	"kenya":                       "KE",
	"uganda":                      "UG",
	"tanzania":                    "TZ",
	"united republic of tanzania": "TZ",
	"rwanda":                      "RW",
	"ken":                         "KE",
	"uga":                         "UG",
	"tza":                         "TZ",
	"rwa":                         "RW",
}
