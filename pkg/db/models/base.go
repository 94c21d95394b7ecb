package models

import "github.com/google/uuid"

// ensureID assigns a fresh UUID when the caller did not provide one. Models
// call it from BeforeCreate so inserts work on both Postgres and SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model in dependency order. It backs SQLite
// schema creation where the Postgres migrations cannot run.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&Warehouse{},
		&InventoryRecord{},
		&CartMeta{},
		&CartLine{},
		&Coupon{},
		&Order{},
		&OrderLine{},
		&InventoryReservation{},
		&CouponUsage{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
