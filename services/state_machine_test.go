package services

import (
	"context"
	"testing"

	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionOrder_NoOpWritesNothing(t *testing.T) {
	db := setupServiceDB(t)
	order := placeOrder(t, db, "100")
	service := newTestOrderService(db, NewMockNotifier())

	result, err := service.TransitionOrder(context.Background(), TransitionInput{
		OrderID: order.ID,
		Status:  models.OrderStatusPendingPayment,
		Actor:   StaffActor(1),
	})
	require.NoError(t, err)
	assert.Nil(t, result.Event)
	assert.Equal(t, int64(0), countRows(t, db, &models.OrderStatusEvent{}))
}

func TestTransitionOrder_Graph(t *testing.T) {
	tests := []struct {
		name    string
		path    []models.OrderStatus
		wantErr bool
	}{
		{name: "forward one step", path: []models.OrderStatus{models.OrderStatusPaymentPendingVerification}},
		{name: "forward skip", path: []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusReadyForPickup}},
		{name: "cancel from anywhere", path: []models.OrderStatus{models.OrderStatusInPreparation, models.OrderStatusCancelled}},
		{name: "no going back", path: []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusPaymentVerified}, wantErr: true},
		{name: "completed is terminal", path: []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled}, wantErr: true},
		{name: "cancelled is terminal", path: []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusConfirmed}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupServiceDB(t)
			order := placeOrder(t, db, "100")
			service := newTestOrderService(db, NewMockNotifier())

			var err error
			for _, status := range tt.path {
				_, err = service.TransitionOrder(context.Background(), TransitionInput{
					OrderID: order.ID,
					Status:  status,
					Actor:   StaffActor(7),
				})
				if err != nil {
					break
				}
			}

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				// only the legal steps before the failure were recorded
				assert.Equal(t, int64(len(tt.path)-1), countRows(t, db, &models.OrderStatusEvent{}))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, int64(len(tt.path)), countRows(t, db, &models.OrderStatusEvent{}))
			}
		})
	}
}

func TestTransitionOrder_SetsTimestamps(t *testing.T) {
	db := setupServiceDB(t)
	service := newTestOrderService(db, NewMockNotifier())

	completed := placeOrder(t, db, "100")
	result, err := service.TransitionOrder(context.Background(), TransitionInput{OrderID: completed.ID, Status: models.OrderStatusCompleted, Actor: StaffActor(3)})
	require.NoError(t, err)
	require.NotNil(t, result.Order.CompletedAt)
	assert.True(t, result.Order.CompletedAt.Equal(fixedNow))
	require.NotNil(t, result.Order.ProcessedByID)
	assert.Equal(t, uint(3), *result.Order.ProcessedByID)
}

func TestTransitionOrder_Attribution(t *testing.T) {
	notes := "please add candles"
	pickup := "16:30"

	tests := []struct {
		name       string
		in         func(orderID uint) TransitionInput
		wantKind   models.ActorKind
		wantActor  bool
		wantEvents int64
	}{
		{
			name: "staff actor",
			in: func(id uint) TransitionInput {
				return TransitionInput{OrderID: id, Status: models.OrderStatusConfirmed, Actor: StaffActor(9)}
			},
			wantKind: models.ActorKindStaff, wantActor: true, wantEvents: 1,
		},
		{
			name: "customer edits notes while cancelling",
			in: func(id uint) TransitionInput {
				return TransitionInput{OrderID: id, Status: models.OrderStatusCancelled, Actor: CustomerActor(2), Notes: &notes}
			},
			wantKind: models.ActorKindCustomer, wantActor: true, wantEvents: 1,
		},
		{
			name: "customer edits pickup time while cancelling",
			in: func(id uint) TransitionInput {
				return TransitionInput{OrderID: id, Status: models.OrderStatusCancelled, Actor: CustomerActor(2), PickupTime: &pickup}
			},
			wantKind: models.ActorKindCustomer, wantActor: true, wantEvents: 1,
		},
		{
			name: "customer cancel without edits",
			in: func(id uint) TransitionInput {
				return TransitionInput{OrderID: id, Status: models.OrderStatusCancelled, Actor: CustomerActor(2)}
			},
			wantKind: models.ActorKindSystem, wantActor: true, wantEvents: 1,
		},
		{
			name: "no actor",
			in: func(id uint) TransitionInput {
				return TransitionInput{OrderID: id, Status: models.OrderStatusPaymentPendingVerification}
			},
			wantKind: models.ActorKindSystem, wantEvents: 1,
		},
		{
			name: "notes only change writes no event",
			in: func(id uint) TransitionInput {
				return TransitionInput{OrderID: id, Status: models.OrderStatusPendingPayment, Actor: CustomerActor(2), Notes: &notes}
			},
			wantEvents: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupServiceDB(t)
			order := placeOrder(t, db, "100")
			service := newTestOrderService(db, NewMockNotifier())

			result, err := service.TransitionOrder(context.Background(), tt.in(order.ID))
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvents, countRows(t, db, &models.OrderStatusEvent{}))
			if tt.wantEvents == 0 {
				assert.Nil(t, result.Event)
				require.NotNil(t, result.Order.Notes)
				assert.Equal(t, notes, *result.Order.Notes)
				return
			}

			require.NotNil(t, result.Event)
			assert.Equal(t, tt.wantKind, result.Event.ActorKind)
			if tt.wantActor {
				assert.NotNil(t, result.Event.ActorID)
			} else {
				assert.Nil(t, result.Event.ActorID)
			}
		})
	}
}

func TestTransitionOrder_PaymentStatusRules(t *testing.T) {
	db := setupServiceDB(t)
	order := placeOrder(t, db, "100")
	service := newTestOrderService(db, NewMockNotifier())

	refunded := models.PaymentStatusRefunded
	_, err := service.TransitionOrder(context.Background(), TransitionInput{OrderID: order.ID, Status: order.Status, PaymentStatus: &refunded})
	assert.ErrorIs(t, err, ErrValidation)

	paid := models.PaymentStatusDepositPaid
	result, err := service.TransitionOrder(context.Background(), TransitionInput{OrderID: order.ID, Status: order.Status, PaymentStatus: &paid})
	require.NoError(t, err)
	require.NotNil(t, result.Event)
	assert.Equal(t, models.OrderStatusPendingPayment, result.Event.NewStatus)
	assert.Equal(t, models.PaymentStatusPending, result.Event.OldPaymentStatus)
	assert.Equal(t, models.PaymentStatusDepositPaid, result.Event.NewPaymentStatus)

	unknown := models.PaymentStatus("overpaid")
	_, err = service.TransitionOrder(context.Background(), TransitionInput{OrderID: order.ID, Status: order.Status, PaymentStatus: &unknown})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransitionOrder_NotFound(t *testing.T) {
	db := setupServiceDB(t)
	_, err := newTestOrderService(db, nil).TransitionOrder(context.Background(), TransitionInput{OrderID: 77, Status: models.OrderStatusConfirmed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusEventsAreAppendOnly(t *testing.T) {
	db := setupServiceDB(t)
	order := placeOrder(t, db, "100")
	result, err := newTestOrderService(db, NewMockNotifier()).TransitionOrder(context.Background(), TransitionInput{
		OrderID: order.ID,
		Status:  models.OrderStatusConfirmed,
		Actor:   StaffActor(1),
	})
	require.NoError(t, err)
	event := result.Event

	assert.ErrorIs(t, db.Model(event).Update("note", "rewritten").Error, models.ErrAppendOnly)
	assert.ErrorIs(t, db.Delete(event).Error, models.ErrAppendOnly)
	assert.Equal(t, int64(1), countRows(t, db, &models.OrderStatusEvent{}))
}
