package services

import (
	"errors"
	"sync"

	"github.com/hearthbakery/bakery-orders-api/models"
)

// MockNotifier records notifications for test assertions
type MockNotifier struct {
	mu     sync.Mutex
	events []string
	fail   bool
	sent   chan string
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{sent: make(chan string, 64)}
}

// FailAll makes every notification return an error
func (m *MockNotifier) FailAll() {
	m.mu.Lock()
	m.fail = true
	m.mu.Unlock()
}

func (m *MockNotifier) record(event string) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	fail := m.fail
	m.mu.Unlock()

	select {
	case m.sent <- event:
	default:
	}

	if fail {
		return errors.New("mock notifier failure")
	}
	return nil
}

func (m *MockNotifier) OrderCreated(order models.Order) error {
	return m.record("order_created:" + order.OrderNumber)
}

func (m *MockNotifier) OrderStatusChanged(order models.Order, event models.OrderStatusEvent) error {
	return m.record("status_changed:" + order.OrderNumber + ":" + string(event.NewStatus))
}

func (m *MockNotifier) PaymentVerified(order models.Order, payment models.Payment) error {
	return m.record("payment_verified:" + order.OrderNumber + ":" + string(payment.Kind))
}

// Sent exposes delivered notifications as they arrive
func (m *MockNotifier) Sent() <-chan string {
	return m.sent
}

// Events returns all notifications recorded so far
func (m *MockNotifier) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]string, len(m.events))
	copy(events, m.events)
	return events
}
