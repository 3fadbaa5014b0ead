package enums

import "slices"

// LedgerEventType classifies an immutable money movement on an order.
type LedgerEventType string

const (
	LedgerEventTypeEscrowHeld     LedgerEventType = "escrow_held"
	LedgerEventTypeEscrowReleased LedgerEventType = "escrow_released"
	LedgerEventTypeEscrowDisputed LedgerEventType = "escrow_disputed"
	LedgerEventTypeVendorPayout   LedgerEventType = "vendor_payout"
)

var ledgerEventTypes = []LedgerEventType{
	LedgerEventTypeEscrowHeld,
	LedgerEventTypeEscrowReleased,
	LedgerEventTypeEscrowDisputed,
	LedgerEventTypeVendorPayout,
}

func (t LedgerEventType) IsValid() bool { return slices.Contains(ledgerEventTypes, t) }
