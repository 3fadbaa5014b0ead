package enums

import "slices"

// OrderStatus is the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// orderLifecycle is ordered by progression; cancelled sits outside it.
var orderLifecycle = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return slices.Contains(orderLifecycle, s) }

// Rank returns the position of s in the forward lifecycle, or -1 for cancelled and unknown values.
func (s OrderStatus) Rank() int {
	if s == OrderStatusCancelled {
		return -1
	}
	return slices.Index(orderLifecycle, s)
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Forward moves may skip intermediate states; cancellation is only
// possible before the order ships.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || !next.IsValid() || s == next {
		return false
	}
	if next == OrderStatusCancelled {
		return s == OrderStatusPendingPayment || s == OrderStatusPaid || s == OrderStatusProcessing
	}
	return next.Rank() > s.Rank()
}

// ParseOrderStatus ignores case and surrounding space.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(value, orderLifecycle, "order status", lowerTrim)
}
