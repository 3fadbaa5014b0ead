package escrow

import "github.com/angelmondragon/settlement-core/pkg/enums"

// party is the caller's relation to the order.
type party struct {
	buyer  bool
	seller bool
}

type transition struct {
	from    []enums.EscrowStatus
	to      enums.EscrowStatus
	allowed func(p party) bool
	message string
}

var transitions = map[enums.EscrowAction]transition{
	enums.EscrowActionRequestRelease: {
		from:    []enums.EscrowStatus{enums.EscrowStatusHeld},
		to:      enums.EscrowStatusReleaseRequested,
		allowed: func(p party) bool { return p.seller },
		message: "release requested",
	},
	enums.EscrowActionRelease: {
		from:    []enums.EscrowStatus{enums.EscrowStatusHeld, enums.EscrowStatusReleaseRequested},
		to:      enums.EscrowStatusReleased,
		allowed: func(p party) bool { return p.buyer },
		message: "funds released",
	},
	enums.EscrowActionDispute: {
		from:    []enums.EscrowStatus{enums.EscrowStatusHeld, enums.EscrowStatusReleaseRequested},
		to:      enums.EscrowStatusDisputed,
		allowed: func(p party) bool { return p.buyer || p.seller },
		message: "dispute opened",
	},
}

func (t transition) acceptsFrom(status enums.EscrowStatus) bool {
	for _, candidate := range t.from {
		if candidate == status {
			return true
		}
	}
	return false
}
