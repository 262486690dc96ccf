package models

import "fmt"

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPendingPayment             OrderStatus = "pending_payment"
	OrderStatusPaymentPendingVerification OrderStatus = "payment_pending_verification"
	OrderStatusPaymentVerified            OrderStatus = "payment_verified"
	OrderStatusConfirmed                  OrderStatus = "confirmed"
	OrderStatusInPreparation              OrderStatus = "in_preparation"
	OrderStatusReadyForPickup             OrderStatus = "ready_for_pickup"
	OrderStatusCompleted                  OrderStatus = "completed"
	OrderStatusCancelled                  OrderStatus = "cancelled"
)

// orderStatusRank orders the main lifecycle chain. Cancelled sits outside it.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPendingPayment:             0,
	OrderStatusPaymentPendingVerification: 1,
	OrderStatusPaymentVerified:            2,
	OrderStatusConfirmed:                  3,
	OrderStatusInPreparation:              4,
	OrderStatusReadyForPickup:             5,
	OrderStatusCompleted:                  6,
}

// ParseOrderStatus converts raw input into an OrderStatus, rejecting anything outside the closed set.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return status, nil
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// IsTerminal reports whether no further status change is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Precedes reports whether s comes strictly before other on the lifecycle chain.
func (s OrderStatus) Precedes(other OrderStatus) bool {
	a, okA := orderStatusRank[s]
	b, okB := orderStatusRank[other]
	return okA && okB && a < b
}

// CanTransitionTo reports whether moving from s to next is legal.
// Staying in the same status is always allowed; the payment status may still change.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch {
	case s == next:
		return true
	case s.IsTerminal():
		return false
	case next == OrderStatusCancelled:
		return true
	default:
		return s.Precedes(next)
	}
}

// PaymentStatus is the payment standing of an order.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusDepositPaid PaymentStatus = "deposit_paid"
	PaymentStatusFullyPaid   PaymentStatus = "fully_paid"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusFailed      PaymentStatus = "failed"
)

var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:     {PaymentStatusDepositPaid, PaymentStatusFullyPaid, PaymentStatusFailed},
	PaymentStatusDepositPaid: {PaymentStatusFullyPaid, PaymentStatusRefunded, PaymentStatusFailed},
	PaymentStatusFullyPaid:   {PaymentStatusRefunded, PaymentStatusFailed},
	PaymentStatusFailed:      {PaymentStatusPending, PaymentStatusDepositPaid, PaymentStatusFullyPaid},
	PaymentStatusRefunded:    {},
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown payment status %q", s)
	}
	return status, nil
}

// IsValid reports whether s is a known payment status.
func (s PaymentStatus) IsValid() bool {
	_, ok := paymentStatusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the payment status may move from s to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range paymentStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActorKind attributes a status change to whoever caused it.
type ActorKind string

const (
	ActorKindStaff    ActorKind = "staff"
	ActorKindCustomer ActorKind = "customer"
	ActorKindSystem   ActorKind = "system"
)

// OrderType distinguishes shelf products from made-to-order cakes.
type OrderType string

const (
	OrderTypePreMade OrderType = "pre_made"
	OrderTypeCustom  OrderType = "custom"
)

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(s string) (OrderType, error) {
	switch t := OrderType(s); t {
	case OrderTypePreMade, OrderTypeCustom:
		return t, nil
	default:
		return "", fmt.Errorf("unknown order type %q", s)
	}
}

// PaymentKind says which part of the order total a payment covers.
type PaymentKind string

const (
	PaymentKindDeposit PaymentKind = "deposit"
	PaymentKindBalance PaymentKind = "balance"
	PaymentKindFull    PaymentKind = "full"
)

// ParsePaymentKind converts raw input into a PaymentKind.
func ParsePaymentKind(s string) (PaymentKind, error) {
	switch k := PaymentKind(s); k {
	case PaymentKindDeposit, PaymentKindBalance, PaymentKindFull:
		return k, nil
	default:
		return "", fmt.Errorf("unknown payment kind %q", s)
	}
}

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentMethodOnline       PaymentMethod = "online"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(s); m {
	case PaymentMethodOnline, PaymentMethodBankTransfer, PaymentMethodCash:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// PaymentRecordStatus is the state of a single payment attempt.
type PaymentRecordStatus string

const (
	PaymentRecordPending  PaymentRecordStatus = "pending"
	PaymentRecordSuccess  PaymentRecordStatus = "success"
	PaymentRecordFailed   PaymentRecordStatus = "failed"
	PaymentRecordRefunded PaymentRecordStatus = "refunded"
)

// ReturnTier selects how much of the original price a returned unit is credited at.
type ReturnTier string

const (
	ReturnTierPartial ReturnTier = "partial"
	ReturnTierFull    ReturnTier = "full"
)

// ParseReturnTier converts raw input into a ReturnTier.
func ParseReturnTier(s string) (ReturnTier, error) {
	switch t := ReturnTier(s); t {
	case ReturnTierPartial, ReturnTierFull:
		return t, nil
	default:
		return "", fmt.Errorf("unknown return tier %q", s)
	}
}
