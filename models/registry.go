package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Product{},
		&InventoryBatch{},
		&BlockedDate{},
		&Order{},
		&OrderItem{},
		&OrderStatusEvent{},
		&Payment{},
		&Return{},
		&ReturnLine{},
	}
}
