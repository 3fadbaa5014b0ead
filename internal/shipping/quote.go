package shipping

import (
	"sort"
	"strings"

	"github.com/angelmondragon/settlement-core/pkg/types"
)

// Item is the weight/value input of a quote.
type Item struct {
	WeightGrams int64
	PriceCents  int64
	Quantity    int
}

// Destination is where the parcel goes.
type Destination struct {
	Country string `json:"country" validate:"required"`
	City    string `json:"city"`
}

// ZoneSummary is the public view of a resolved zone.
type ZoneSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Region      string `json:"region"`
}

// Option is one priced provider/service combination.
type Option struct {
	ID              string `json:"id"`
	Provider        string `json:"provider"`
	Service         string `json:"service"`
	PriceCents      int64  `json:"priceCents"`
	MinDeliveryDays int    `json:"minDeliveryDays"`
	MaxDeliveryDays int    `json:"maxDeliveryDays"`
	CODSupported    bool   `json:"codSupported"`
	FreeShipping    bool   `json:"freeShipping"`
}

// Quote is the priced option list for a destination.
type Quote struct {
	Zone                  ZoneSummary `json:"zone"`
	TotalWeightGrams      int64       `json:"totalWeightGrams"`
	OrderValueCents       int64       `json:"orderValueCents"`
	Options               []Option    `json:"options"`
	RecommendedID         string      `json:"recommendedId"`
	CODAvailable          bool        `json:"codAvailable"`
	FreeShippingAvailable bool        `json:"freeShippingAvailable"`
}

// Recommended returns the recommended option, if any.
func (q Quote) Recommended() (Option, bool) {
	if q.RecommendedID == "" {
		return Option{}, false
	}
	for _, opt := range q.Options {
		if opt.ID == q.RecommendedID {
			return opt, true
		}
	}
	return Option{}, false
}

// Selection snapshots an option for persistence on the order.
func (q Quote) Selection(opt Option, cod bool) *types.ShippingSelection {
	return &types.ShippingSelection{
		OptionID:         opt.ID,
		Provider:         opt.Provider,
		Service:          opt.Service,
		ZoneID:           q.Zone.ID,
		PriceCents:       opt.PriceCents,
		MinDeliveryDays:  opt.MinDeliveryDays,
		MaxDeliveryDays:  opt.MaxDeliveryDays,
		FreeShipping:     opt.FreeShipping,
		CashOnDelivery:   cod,
		TotalWeightGrams: q.TotalWeightGrams,
	}
}

// Quote totals the items and prices every rate of the resolved zone.
func (r *Resolver) Quote(items []Item, dest Destination, cod bool) Quote {
	var weight, value int64
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		qty := int64(item.Quantity)
		weight += max(item.WeightGrams, 0) * qty
		value += max(item.PriceCents, 0) * qty
	}
	return r.QuoteForTotals(dest, weight, value, cod)
}

// QuoteForTotals prices a parcel already reduced to weight and value.
func (r *Resolver) QuoteForTotals(dest Destination, weightGrams, valueCents int64, cod bool) Quote {
	zone := r.ResolveZone(dest.Country, dest.City)
	codAvailable := IsCodAvailable(valueCents, zone)
	free := IsFreeShippingAvailable(valueCents, weightGrams, zone)

	options := make([]Option, 0, len(zone.Rates))
	for _, rate := range zone.Rates {
		opt := Option{
			ID:              optionID(rate),
			Provider:        rate.Provider,
			Service:         rate.Service,
			PriceCents:      ratePrice(rate, weightGrams),
			MinDeliveryDays: rate.MinDays,
			MaxDeliveryDays: rate.MaxDays,
			CODSupported:    rate.CashOnDelivery && codAvailable,
		}
		if free && rate.Standard {
			opt.PriceCents = 0
			opt.FreeShipping = true
		}
		options = append(options, opt)
	}
	sort.SliceStable(options, func(i, j int) bool {
		return lessOption(options[i], options[j])
	})

	quote := Quote{
		Zone:                  ZoneSummary{ID: zone.ID, DisplayName: zone.DisplayName, Region: zone.Region},
		TotalWeightGrams:      weightGrams,
		OrderValueCents:       valueCents,
		Options:               options,
		CODAvailable:          codAvailable,
		FreeShippingAvailable: free,
	}
	for _, opt := range options {
		if cod && !opt.CODSupported {
			continue
		}
		quote.RecommendedID = opt.ID
		break
	}
	return quote
}

// lessOption orders by price, then max delivery days, then id.
func lessOption(a, b Option) bool {
	if a.PriceCents != b.PriceCents {
		return a.PriceCents < b.PriceCents
	}
	if a.MaxDeliveryDays != b.MaxDeliveryDays {
		return a.MaxDeliveryDays < b.MaxDeliveryDays
	}
	return a.ID < b.ID
}

func ratePrice(rate Rate, weightGrams int64) int64 {
	extra := weightGrams - rate.IncludedGrams
	if extra <= 0 {
		return rate.BaseCents
	}
	kg := (extra + 999) / 1000
	return rate.BaseCents + rate.PerKgCents*kg
}

func optionID(rate Rate) string {
	return strings.ToLower(rate.Provider + "_" + rate.Service)
}
