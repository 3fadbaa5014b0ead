package enums

import "slices"

// PaymentMethod describes how a buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodMpesa PaymentMethod = "mpesa"
	PaymentMethodCOD   PaymentMethod = "cod"
)

var paymentMethods = []PaymentMethod{PaymentMethodCard, PaymentMethodMpesa, PaymentMethodCOD}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return slices.Contains(paymentMethods, p) }

// RequiresGateway reports whether funds are collected through a payment
// intent before fulfillment. Cash on delivery is collected by the courier.
func (p PaymentMethod) RequiresGateway() bool {
	return p == PaymentMethodCard || p == PaymentMethodMpesa
}

// ParsePaymentMethod ignores case and surrounding space.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse(value, paymentMethods, "payment method", lowerTrim)
}

// PaymentStatus tracks whether buyer funds were collected.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

var paymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return slices.Contains(paymentStatuses, p) }

// PayoutStatus tracks a seller payout row.
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

var payoutStatuses = []PayoutStatus{PayoutStatusPending, PayoutStatusPaid, PayoutStatusFailed}

func (p PayoutStatus) IsValid() bool { return slices.Contains(payoutStatuses, p) }
