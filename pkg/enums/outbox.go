package enums

import "slices"

// OutboxAggregateType identifies the entity an outbox event describes. It
// also names the stream the publisher appends to.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateEscrow       OutboxAggregateType = "escrow_payment"
	AggregateSellerPayout OutboxAggregateType = "seller_payout"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateEscrow, AggregateSellerPayout}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

// OutboxEventType names a settlement event written through the outbox.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventPaymentFailed      OutboxEventType = "payment_failed"
	EventEscrowHeld         OutboxEventType = "escrow_held"
	EventEscrowReleaseReq   OutboxEventType = "escrow_release_requested"
	EventEscrowReleased     OutboxEventType = "escrow_released"
	EventEscrowDisputed     OutboxEventType = "escrow_disputed"
	EventPayoutCreated      OutboxEventType = "payout_created"
)

// eventAggregates pins each event type to the aggregate it belongs to.
var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:       AggregateOrder,
	EventOrderStatusChanged: AggregateOrder,
	EventOrderCancelled:     AggregateOrder,
	EventPaymentFailed:      AggregateOrder,
	EventEscrowHeld:         AggregateEscrow,
	EventEscrowReleaseReq:   AggregateEscrow,
	EventEscrowReleased:     AggregateEscrow,
	EventEscrowDisputed:     AggregateEscrow,
	EventPayoutCreated:      AggregateSellerPayout,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e is emitted for.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}
