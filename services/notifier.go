package services

import (
	"log"

	"github.com/hearthbakery/bakery-orders-api/models"
)

// Notifier delivers customer-facing messages (email, SMS) after a change is committed.
// Implementations may block; callers dispatch them with notifyAsync.
type Notifier interface {
	OrderCreated(order models.Order) error
	OrderStatusChanged(order models.Order, event models.OrderStatusEvent) error
	PaymentVerified(order models.Order, payment models.Payment) error
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct{}

func (LogNotifier) OrderCreated(order models.Order) error {
	log.Printf("notify: order %s created for customer %d", order.OrderNumber, order.CustomerID)
	return nil
}

func (LogNotifier) OrderStatusChanged(order models.Order, event models.OrderStatusEvent) error {
	log.Printf("notify: order %s moved %s -> %s (payment %s -> %s)",
		order.OrderNumber, event.OldStatus, event.NewStatus, event.OldPaymentStatus, event.NewPaymentStatus)
	return nil
}

func (LogNotifier) PaymentVerified(order models.Order, payment models.Payment) error {
	log.Printf("notify: %s payment of %s verified for order %s", payment.Kind, payment.Amount, order.OrderNumber)
	return nil
}

// notifyAsync runs send outside the caller's transaction. Failures are logged and dropped.
func notifyAsync(what string, send func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("WARN: notification %s panicked: %v", what, r)
			}
		}()
		if err := send(); err != nil {
			log.Printf("WARN: notification %s failed: %v", what, err)
		}
	}()
}
