package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordPaymentInput describes a payment attempt against an order.
type RecordPaymentInput struct {
	OrderID          uint
	Amount           decimal.Decimal
	Kind             models.PaymentKind
	Method           models.PaymentMethod
	GatewayReference *string
	Actor            *Actor // nil when the gateway reports the payment
}

// GatewayOutcome is a payment result pushed by the payment gateway.
type GatewayOutcome struct {
	Reference string
	OrderID   uint
	Amount    decimal.Decimal
	Kind      models.PaymentKind
	Status    models.PaymentRecordStatus // success or failed
	Message   *string
}

// PaymentResult is a payment together with the order it belongs to.
type PaymentResult struct {
	Payment models.Payment
	Order   models.Order
}

// GatewayResult reports what a webhook delivery did.
type GatewayResult struct {
	Payment   models.Payment
	Duplicate bool
}

// PaymentService owns the payment ledger and keeps the order's payment status in step with it.
type PaymentService struct {
	db       *gorm.DB
	proofs   ProofStorage
	notifier Notifier
	now      func() time.Time
}

// NewPaymentService creates a payment service. proofs may be nil when proof upload is disabled.
func NewPaymentService(db *gorm.DB, proofs ProofStorage, notifier Notifier) *PaymentService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &PaymentService{
		db:       db,
		proofs:   proofs,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock overrides the clock (primarily for testing).
func (s *PaymentService) WithClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

// RecordPayment stores a pending payment. An order still waiting for payment
// moves to payment_pending_verification in the same transaction.
func (s *PaymentService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*PaymentResult, error) {
	if err := validateRecordPayment(in); err != nil {
		return nil, err
	}

	var (
		payment models.Payment
		result  *TransitionResult
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, in.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("order")
			}
			return fmt.Errorf("failed to load order: %w", err)
		}
		if order.Status.IsTerminal() {
			return validationError("order %s is %s and cannot take payments", order.OrderNumber, order.Status)
		}

		payment = models.Payment{
			OrderID:          order.ID,
			CustomerID:       order.CustomerID,
			Amount:           in.Amount,
			Kind:             in.Kind,
			Method:           in.Method,
			Status:           models.PaymentRecordPending,
			GatewayReference: in.GatewayReference,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return classifyStoreError(err, "payment reference already recorded")
		}

		status := order.Status
		if status == models.OrderStatusPendingPayment {
			status = models.OrderStatusPaymentPendingVerification
		}
		note := fmt.Sprintf("%s payment of %s recorded", in.Kind, in.Amount.StringFixed(models.MoneyPlaces))
		var err error
		result, err = applyTransition(tx, TransitionInput{
			OrderID: order.ID,
			Status:  status,
			Actor:   in.Actor,
			Note:    &note,
		}, s.now())
		return err
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.notifyTransition(result)
	return &PaymentResult{Payment: payment, Order: result.Order}, nil
}

func validateRecordPayment(in RecordPaymentInput) error {
	if in.OrderID == 0 {
		return validationError("order is required")
	}
	if !in.Amount.IsPositive() {
		return validationError("payment amount must be greater than zero")
	}
	if in.Amount.Exponent() < -models.MoneyPlaces {
		return validationError("payment amount cannot have more than two decimal places")
	}
	if _, err := models.ParsePaymentKind(string(in.Kind)); err != nil {
		return validationError("payment kind must be deposit, balance or full")
	}
	if _, err := models.ParsePaymentMethod(string(in.Method)); err != nil {
		return validationError("payment method must be online, bank_transfer or cash")
	}
	if in.GatewayReference != nil && strings.TrimSpace(*in.GatewayReference) == "" {
		return validationError("gateway reference must not be blank")
	}
	return nil
}

// VerifyPayment confirms a payment. The order's payment status is recomputed
// from every successful payment, so deposit and balance may arrive in any order.
// Verifying an already successful payment changes nothing.
func (s *PaymentService) VerifyPayment(ctx context.Context, paymentID uint, verifier *Actor, notes *string) (*PaymentResult, error) {
	var (
		payment   models.Payment
		result    *TransitionResult
		unchanged bool
	)
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = lockPayment(tx, paymentID)
		if err != nil {
			return err
		}

		order, err := lockOrder(tx, payment.OrderID)
		if err != nil {
			return err
		}

		switch payment.Status {
		case models.PaymentRecordSuccess:
			unchanged = true
			result = &TransitionResult{Order: order}
			return nil
		case models.PaymentRecordRefunded:
			return validationError("a refunded payment cannot be verified")
		}

		updates := map[string]interface{}{
			"status":      models.PaymentRecordSuccess,
			"verified_at": now,
		}
		if verifier != nil {
			updates["verified_by_id"] = verifier.UserID
		}
		if notes != nil {
			updates["verification_notes"] = *notes
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		paymentStatus, err := paymentStatusFromHistory(tx, order.ID)
		if err != nil {
			return err
		}

		target := order.Status
		if target.Precedes(models.OrderStatusPaymentVerified) {
			target = models.OrderStatusPaymentVerified
		}

		note := fmt.Sprintf("%s payment of %s verified", payment.Kind, payment.Amount.StringFixed(models.MoneyPlaces))
		result, err = applyTransition(tx, TransitionInput{
			OrderID:       order.ID,
			Status:        target,
			PaymentStatus: &paymentStatus,
			Actor:         verifier,
			Note:          &note,
		}, now)
		if err != nil {
			return err
		}

		return tx.First(&payment, payment.ID).Error
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	if !unchanged {
		order, verified := result.Order, payment
		notifyAsync("payment_verified", func() error { return s.notifier.PaymentVerified(order, verified) })
		s.notifyTransition(result)
	}
	return &PaymentResult{Payment: payment, Order: result.Order}, nil
}

// FailPayment marks a payment as failed. When no successful payment is left
// the order's payment status becomes failed.
func (s *PaymentService) FailPayment(ctx context.Context, paymentID uint, actor *Actor, notes *string) (*PaymentResult, error) {
	return s.closePayment(ctx, paymentID, actor, notes, models.PaymentRecordFailed)
}

// RefundPayment marks a successful payment as refunded and the order as refunded.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID uint, actor *Actor, notes *string) (*PaymentResult, error) {
	return s.closePayment(ctx, paymentID, actor, notes, models.PaymentRecordRefunded)
}

func (s *PaymentService) closePayment(ctx context.Context, paymentID uint, actor *Actor, notes *string, to models.PaymentRecordStatus) (*PaymentResult, error) {
	var (
		payment models.Payment
		result  *TransitionResult
	)
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = lockPayment(tx, paymentID)
		if err != nil {
			return err
		}

		order, err := lockOrder(tx, payment.OrderID)
		if err != nil {
			return err
		}
		if payment.Status == to {
			result = &TransitionResult{Order: order}
			return nil
		}

		var paymentStatus models.PaymentStatus
		switch to {
		case models.PaymentRecordRefunded:
			if payment.Status != models.PaymentRecordSuccess {
				return validationError("only a successful payment can be refunded")
			}
			paymentStatus = models.PaymentStatusRefunded
		case models.PaymentRecordFailed:
			if payment.Status == models.PaymentRecordRefunded {
				return validationError("a refunded payment cannot be marked as failed")
			}
		}

		updates := map[string]interface{}{"status": to}
		if notes != nil {
			updates["verification_notes"] = *notes
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		if to == models.PaymentRecordFailed {
			paymentStatus, err = paymentStatusFromHistory(tx, order.ID)
			if err != nil {
				return err
			}
			if paymentStatus == models.PaymentStatusPending || !order.PaymentStatus.CanTransitionTo(paymentStatus) {
				paymentStatus = models.PaymentStatusFailed
			}
			if order.PaymentStatus == models.PaymentStatusRefunded {
				paymentStatus = models.PaymentStatusRefunded
			}
		}

		note := fmt.Sprintf("%s payment of %s %s", payment.Kind, payment.Amount.StringFixed(models.MoneyPlaces), to)
		result, err = applyTransition(tx, TransitionInput{
			OrderID:       order.ID,
			Status:        order.Status,
			PaymentStatus: &paymentStatus,
			Actor:         actor,
			Note:          &note,
		}, now)
		if err != nil {
			return err
		}

		return tx.First(&payment, payment.ID).Error
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.notifyTransition(result)
	return &PaymentResult{Payment: payment, Order: result.Order}, nil
}

// HandleGatewayOutcome applies a webhook delivery. Deliveries are matched on the
// gateway reference, so a redelivered outcome is recognised and not applied twice.
func (s *PaymentService) HandleGatewayOutcome(ctx context.Context, out GatewayOutcome) (*GatewayResult, error) {
	reference := strings.TrimSpace(out.Reference)
	if reference == "" {
		return nil, validationError("gateway reference is required")
	}
	if out.Status != models.PaymentRecordSuccess && out.Status != models.PaymentRecordFailed {
		return nil, validationError("gateway status must be success or failed")
	}

	payment, err := s.findByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if payment == nil {
		recorded, err := s.RecordPayment(ctx, RecordPaymentInput{
			OrderID:          out.OrderID,
			Amount:           out.Amount,
			Kind:             out.Kind,
			Method:           models.PaymentMethodOnline,
			GatewayReference: &reference,
		})
		if errors.Is(err, ErrConflict) {
			log.Printf("INFO: gateway reference %s already recorded, treating delivery as processed", reference)
			existing, findErr := s.findByReference(ctx, reference)
			if findErr != nil {
				return nil, findErr
			}
			if existing == nil {
				return nil, err
			}
			return &GatewayResult{Payment: *existing, Duplicate: true}, nil
		}
		if err != nil {
			return nil, err
		}
		payment = &recorded.Payment
	} else if payment.Status == out.Status {
		log.Printf("INFO: gateway reference %s already %s, ignoring redelivery", reference, out.Status)
		return &GatewayResult{Payment: *payment, Duplicate: true}, nil
	}

	var result *PaymentResult
	if out.Status == models.PaymentRecordSuccess {
		result, err = s.VerifyPayment(ctx, payment.ID, nil, out.Message)
	} else {
		result, err = s.FailPayment(ctx, payment.ID, nil, out.Message)
	}
	if err != nil {
		return nil, err
	}
	return &GatewayResult{Payment: result.Payment}, nil
}

func (s *PaymentService) findByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Where("gateway_reference = ?", reference).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}
	return &payment, nil
}

// AttachProof stores a bank-transfer proof for a payment. The upload happens
// before the database write so no transaction waits on storage.
func (s *PaymentService) AttachProof(ctx context.Context, paymentID uint, fileHeader *multipart.FileHeader) (*models.Payment, error) {
	if s.proofs == nil {
		return nil, errors.New("proof storage is not configured")
	}

	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Method != models.PaymentMethodBankTransfer {
		return nil, validationError("proofs can only be attached to bank transfer payments")
	}
	if payment.Status == models.PaymentRecordRefunded {
		return nil, validationError("a refunded payment cannot take a proof")
	}

	key, err := s.proofs.UploadProof(ctx, payment.ID, fileHeader)
	if err != nil {
		return nil, err
	}

	previous := payment.ProofS3Key
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", payment.ID).Update("proof_s3_key", key).Error; err != nil {
		if delErr := s.proofs.DeleteProof(ctx, key); delErr != nil {
			log.Printf("WARN: failed to clean up proof %s: %v", key, delErr)
		}
		return nil, fmt.Errorf("failed to save proof: %w", err)
	}
	if previous != nil && *previous != key {
		if err := s.proofs.DeleteProof(ctx, *previous); err != nil {
			log.Printf("WARN: failed to delete replaced proof %s: %v", *previous, err)
		}
	}

	return s.GetPayment(ctx, payment.ID)
}

// GetPayment loads a payment and resolves its proof URL.
func (s *PaymentService) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("payment")
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	s.populateProofURL(ctx, &payment)
	return &payment, nil
}

// ListPayments returns the payments of an order, oldest first.
func (s *PaymentService) ListPayments(ctx context.Context, orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	for i := range payments {
		s.populateProofURL(ctx, &payments[i])
	}
	return payments, nil
}

func (s *PaymentService) populateProofURL(ctx context.Context, payment *models.Payment) {
	if s.proofs == nil || payment.ProofS3Key == nil || *payment.ProofS3Key == "" {
		return
	}
	url, err := s.proofs.GetProofURL(ctx, *payment.ProofS3Key)
	if err != nil {
		log.Printf("WARN: failed to resolve proof URL for payment %d: %v", payment.ID, err)
		return
	}
	payment.ProofURL = &url
}

func (s *PaymentService) notifyTransition(result *TransitionResult) {
	if result == nil || result.Event == nil {
		return
	}
	order, event := result.Order, *result.Event
	notifyAsync("order_status_changed", func() error { return s.notifier.OrderStatusChanged(order, event) })
}

func lockPayment(tx *gorm.DB, id uint) (models.Payment, error) {
	var payment models.Payment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payment, notFoundError("payment")
		}
		return payment, classifyStoreError(err, "payment is being modified")
	}
	return payment, nil
}

// paymentStatusFromHistory derives an order's payment status from its successful payments.
func paymentStatusFromHistory(tx *gorm.DB, orderID uint) (models.PaymentStatus, error) {
	var kinds []models.PaymentKind
	if err := tx.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentRecordSuccess).
		Pluck("kind", &kinds).Error; err != nil {
		return "", fmt.Errorf("failed to load payment history: %w", err)
	}
	return DerivePaymentStatus(kinds), nil
}

// DerivePaymentStatus maps the kinds of an order's successful payments to its
// payment status: any balance or full payment settles the order, a deposit
// alone leaves it deposit_paid, and no success leaves it pending. The result
// does not depend on the order payments were verified in.
func DerivePaymentStatus(kinds []models.PaymentKind) models.PaymentStatus {
	status := models.PaymentStatusPending
	for _, kind := range kinds {
		switch kind {
		case models.PaymentKindFull, models.PaymentKindBalance:
			return models.PaymentStatusFullyPaid
		case models.PaymentKindDeposit:
			status = models.PaymentStatusDepositPaid
		}
	}
	return status
}
