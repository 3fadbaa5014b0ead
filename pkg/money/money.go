// Package money applies basis-point rates to integer minor units.
package money

import "github.com/shopspring/decimal"

const bpsDenominator = 10000

// ApplyBPS returns amount × bps / 10000 rounded half away from zero.
func ApplyBPS(amountCents, bps int64) int64 {
	if amountCents == 0 || bps == 0 {
		return 0
	}
	rate := decimal.NewFromInt(bps).Div(decimal.NewFromInt(bpsDenominator))
	return decimal.NewFromInt(amountCents).Mul(rate).Round(0).IntPart()
}

// Rates holds the platform fee schedule in basis points.
type Rates struct {
	TaxBPS               int64
	CommissionBPS        int64
	ProcessingBPS        int64
	ProcessingFixedCents int64
}

// Tax returns the order tax owed on subtotal.
func (r Rates) Tax(subtotalCents int64) int64 {
	return ApplyBPS(subtotalCents, r.TaxBPS)
}

// Split is a seller's share of an order after platform deductions.
type Split struct {
	GrossCents      int64
	CommissionCents int64
	FeeCents        int64
	NetCents        int64
}

// SplitGross computes commission, processing fee and net for one seller's gross.
func (r Rates) SplitGross(grossCents int64) Split {
	commission := ApplyBPS(grossCents, r.CommissionBPS)
	fee := ApplyBPS(grossCents, r.ProcessingBPS) + r.ProcessingFixedCents
	return Split{
		GrossCents:      grossCents,
		CommissionCents: commission,
		FeeCents:        fee,
		NetCents:        grossCents - commission - fee,
	}
}

// Format renders minor units as a decimal string with two places.
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
