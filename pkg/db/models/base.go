package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model. Tests and the sqlite dev mode migrate from it.
func All() []any {
	return []any{
		&Product{},
		&InventoryItem{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&EscrowPayment{},
		&PaymentDispute{},
		&SellerPayout{},
		&LedgerEvent{},
		&OutboxEvent{},
	}
}
