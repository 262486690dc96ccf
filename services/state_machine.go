package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hearthbakery/bakery-orders-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransitionInput requests a status and/or payment-status change.
// Notes and PickupTime are the fields a customer may edit alongside it.
type TransitionInput struct {
	OrderID       uint
	Status        models.OrderStatus
	PaymentStatus *models.PaymentStatus
	Actor         *Actor
	Note          *string
	Notes         *string
	PickupTime    *string
}

// TransitionResult is the order after the write and the audit event, if one was written.
type TransitionResult struct {
	Order models.Order
	Event *models.OrderStatusEvent
}

// TransitionOrder moves an order through its lifecycle. When the status or
// payment status actually changes, one audit event is written in the same
// transaction; a no-op request writes nothing.
func (s *OrderService) TransitionOrder(ctx context.Context, in TransitionInput) (*TransitionResult, error) {
	if err := validateTransitionInput(in); err != nil {
		return nil, err
	}

	var result *TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = applyTransition(tx, in, s.now())
		return err
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	if result.Event != nil {
		order, event := result.Order, *result.Event
		notifyAsync("order_status_changed", func() error { return s.notifier.OrderStatusChanged(order, event) })
	}
	return result, nil
}

func validateTransitionInput(in TransitionInput) error {
	if !in.Status.IsValid() {
		return validationError("unknown order status %q", in.Status)
	}
	if in.PaymentStatus != nil && !in.PaymentStatus.IsValid() {
		return validationError("unknown payment status %q", *in.PaymentStatus)
	}
	if in.PickupTime != nil {
		if err := models.ParsePickupTime(*in.PickupTime); err != nil {
			return validationError("%s", err.Error())
		}
	}
	return nil
}

// applyTransition is the only code path that writes order status columns.
// It must run inside a transaction.
func applyTransition(tx *gorm.DB, in TransitionInput, now time.Time) (*TransitionResult, error) {
	order, err := lockOrder(tx, in.OrderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(in.Status) {
		return nil, validationError("order cannot move from %s to %s", order.Status, in.Status)
	}
	newPaymentStatus := order.PaymentStatus
	if in.PaymentStatus != nil {
		if !order.PaymentStatus.CanTransitionTo(*in.PaymentStatus) {
			return nil, validationError("payment status cannot move from %s to %s", order.PaymentStatus, *in.PaymentStatus)
		}
		newPaymentStatus = *in.PaymentStatus
	}

	updates := map[string]interface{}{}
	statusChanged := order.Status != in.Status
	paymentChanged := order.PaymentStatus != newPaymentStatus
	customerFieldChanged := false

	if statusChanged {
		updates["status"] = in.Status
		switch in.Status {
		case models.OrderStatusCompleted:
			updates["completed_at"] = now
		case models.OrderStatusCancelled:
			updates["cancelled_at"] = now
		}
	}
	if paymentChanged {
		updates["payment_status"] = newPaymentStatus
	}
	if in.Notes != nil && (order.Notes == nil || *order.Notes != *in.Notes) {
		updates["notes"] = *in.Notes
		customerFieldChanged = true
	}
	if in.PickupTime != nil && order.PickupTime != *in.PickupTime {
		updates["pickup_time"] = *in.PickupTime
		customerFieldChanged = true
	}
	if (statusChanged || paymentChanged) && in.Actor.IsStaff() {
		updates["processed_by_id"] = in.Actor.UserID
	}

	if len(updates) == 0 {
		return &TransitionResult{Order: order}, nil
	}

	oldStatus, oldPaymentStatus := order.Status, order.PaymentStatus
	if err := tx.Model(&order).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	if err := tx.First(&order, order.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}

	result := &TransitionResult{Order: order}
	if !statusChanged && !paymentChanged {
		return result, nil
	}

	event := models.OrderStatusEvent{
		OrderID:          order.ID,
		OldStatus:        oldStatus,
		NewStatus:        order.Status,
		OldPaymentStatus: oldPaymentStatus,
		NewPaymentStatus: order.PaymentStatus,
		ActorID:          in.Actor.ID(),
		ActorKind:        attributeActor(in.Actor, customerFieldChanged),
		Note:             in.Note,
		CreatedAt:        now,
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("failed to record status event: %w", err)
	}
	result.Event = &event
	return result, nil
}

// lockOrder loads an order row FOR UPDATE. Payment paths take it before reading
// payment history so concurrent verifications of one order queue behind each other.
func lockOrder(tx *gorm.DB, id uint) (models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return order, notFoundError("order")
		}
		return order, classifyStoreError(err, "order is being modified")
	}
	return order, nil
}

// attributeActor decides who a change is credited to: a staff actor wins,
// then a customer-editable field changed in the same write, then the system.
func attributeActor(actor *Actor, customerFieldChanged bool) models.ActorKind {
	switch {
	case actor.IsStaff():
		return models.ActorKindStaff
	case customerFieldChanged:
		return models.ActorKindCustomer
	default:
		return models.ActorKindSystem
	}
}
