package services

import (
	"github.com/hearthbakery/bakery-orders-api/config"
	"gorm.io/gorm"
)

// Services bundles the business services the HTTP layer talks to.
type Services struct {
	Orders    *OrderService
	Payments  *PaymentService
	Inventory *InventoryService
	Returns   *ReturnService
}

var servicesInstance *Services

// NewServices wires every service against db using the ordering rules in cfg.
func NewServices(db *gorm.DB, cfg *config.Config, proofs ProofStorage, notifier Notifier) *Services {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	pickupPolicy := NewCalendarPickupPolicy(db, cfg.PickupMinAdvanceDays, cfg.PickupMaxAdvanceDays)

	return &Services{
		Orders:    NewOrderService(db, pickupPolicy, notifier, cfg.DefaultDepositPercentage),
		Payments:  NewPaymentService(db, proofs, notifier),
		Inventory: NewInventoryService(db),
		Returns:   NewReturnService(db, cfg.ReturnPartialPercentage),
	}
}

// InitServices builds the services and stores them as the global instance
func InitServices(db *gorm.DB, cfg *config.Config, proofs ProofStorage, notifier Notifier) *Services {
	servicesInstance = NewServices(db, cfg, proofs, notifier)
	return servicesInstance
}

// GetServices returns the initialized services
func GetServices() *Services {
	return servicesInstance
}

// SetServices sets the services instance (primarily for testing)
func SetServices(s *Services) {
	servicesInstance = s
}
