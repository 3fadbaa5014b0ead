package enums

import "slices"

// EscrowStatus is the persisted state of an escrow payment.
type EscrowStatus string

const (
	EscrowStatusHeld             EscrowStatus = "HELD"
	EscrowStatusReleaseRequested EscrowStatus = "RELEASE_REQUESTED"
	EscrowStatusReleased         EscrowStatus = "RELEASED"
	EscrowStatusDisputed         EscrowStatus = "DISPUTED"
)

var escrowStatuses = []EscrowStatus{
	EscrowStatusHeld,
	EscrowStatusReleaseRequested,
	EscrowStatusReleased,
	EscrowStatusDisputed,
}

func (s EscrowStatus) String() string { return string(s) }

func (s EscrowStatus) IsValid() bool { return slices.Contains(escrowStatuses, s) }

// IsFinal reports whether no escrow action can move s any further.
func (s EscrowStatus) IsFinal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusDisputed
}

// CoversPayout reports whether funds in s may still be paid out to sellers.
func (s EscrowStatus) CoversPayout() bool {
	return s == EscrowStatusHeld || s == EscrowStatusReleaseRequested || s == EscrowStatusReleased
}

// EscrowAction is a requested escrow state change.
type EscrowAction string

const (
	EscrowActionHold           EscrowAction = "HOLD"
	EscrowActionRequestRelease EscrowAction = "REQUEST_RELEASE"
	EscrowActionRelease        EscrowAction = "RELEASE"
	EscrowActionDispute        EscrowAction = "DISPUTE"
)

var escrowActions = []EscrowAction{
	EscrowActionHold,
	EscrowActionRequestRelease,
	EscrowActionRelease,
	EscrowActionDispute,
}

func (a EscrowAction) String() string { return string(a) }

func (a EscrowAction) IsValid() bool { return slices.Contains(escrowActions, a) }

// ParseEscrowAction accepts actions case-insensitively.
func ParseEscrowAction(value string) (EscrowAction, error) {
	return parse(value, escrowActions, "escrow action", upperTrim)
}

// DisputeStatus tracks a payment dispute.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)
