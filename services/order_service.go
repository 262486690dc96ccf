package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItemInput is a candidate order line.
type OrderItemInput struct {
	ProductID   *uint
	ProductName string
	Weight      *string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateOrderInput carries everything needed to place an order.
type CreateOrderInput struct {
	CustomerID        uint
	Type              models.OrderType
	PickupDate        string
	PickupTime        string
	Items             []OrderItemInput
	DepositPercentage *decimal.Decimal // nil uses the configured default
	Notes             *string
}

// OrderFilter narrows ListOrders.
type OrderFilter struct {
	CustomerID *uint
	Status     *models.OrderStatus
	PickupDate *string
}

// OrderService owns the order aggregate and its state machine.
type OrderService struct {
	db                       *gorm.DB
	pickupPolicy             PickupPolicy
	notifier                 Notifier
	defaultDepositPercentage decimal.Decimal
	now                      func() time.Time
}

// NewOrderService creates an order service.
func NewOrderService(db *gorm.DB, pickupPolicy PickupPolicy, notifier Notifier, defaultDepositPercentage int) *OrderService {
	if pickupPolicy == nil {
		pickupPolicy = AllowAllPickupPolicy{}
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &OrderService{
		db:                       db,
		pickupPolicy:             pickupPolicy,
		notifier:                 notifier,
		defaultDepositPercentage: decimal.NewFromInt(int64(defaultDepositPercentage)),
		now:                      time.Now,
	}
}

// WithClock overrides the clock (primarily for testing).
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// CreateOrder validates the input and persists the order with its items in one
// transaction. Nothing is written if any check fails.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if err := s.validateCreateInput(in); err != nil {
		return nil, err
	}

	items, err := s.buildItems(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	if err := s.pickupPolicy.Validate(ctx, in.PickupDate); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	if !subtotal.IsPositive() {
		return nil, validationError("order subtotal must be greater than zero")
	}

	percentage := s.defaultDepositPercentage
	if in.DepositPercentage != nil {
		percentage = *in.DepositPercentage
	}
	deposit, remaining := models.ComputeDeposit(subtotal, percentage)

	createdAt := s.now()
	dayKey := models.DayKey(createdAt)

	order := models.Order{
		CustomerID:        in.CustomerID,
		Type:              in.Type,
		PickupDate:        in.PickupDate,
		PickupTime:        in.PickupTime,
		Subtotal:          subtotal,
		DepositPercentage: percentage,
		DepositAmount:     deposit,
		RemainingBalance:  remaining,
		TotalAmount:       subtotal,
		Status:            models.OrderStatusPendingPayment,
		PaymentStatus:     models.PaymentStatusPending,
		Notes:             in.Notes,
		Items:             items,
		CreatedAt:         createdAt,
	}
	if err := order.CheckInvariants(); err != nil {
		return nil, validationError("%s", err.Error())
	}

	err = WithDayLock(ctx, s.db, orderSequenceLockKey(dayKey), func(tx *gorm.DB) error {
		var customer models.User
		if err := tx.First(&customer, in.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("customer")
			}
			return fmt.Errorf("failed to load customer: %w", err)
		}

		number, err := NextOrderNumber(tx, dayKey)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := tx.Create(&order).Error; err != nil {
			return classifyStoreError(err, "order number already taken, please retry")
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	created, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	notifyAsync("order_created", func() error { return s.notifier.OrderCreated(*created) })
	return created, nil
}

func (s *OrderService) validateCreateInput(in CreateOrderInput) error {
	if in.CustomerID == 0 {
		return validationError("customer is required")
	}
	if _, err := models.ParseOrderType(string(in.Type)); err != nil {
		return validationError("order type must be pre_made or custom")
	}
	if _, err := models.ParseDate(in.PickupDate); err != nil {
		return validationError("%s", err.Error())
	}
	if err := models.ParsePickupTime(in.PickupTime); err != nil {
		return validationError("%s", err.Error())
	}
	if len(in.Items) == 0 {
		return validationError("an order needs at least one item")
	}
	if in.DepositPercentage != nil {
		p := *in.DepositPercentage
		if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
			return validationError("deposit percentage must be between 0 and 100")
		}
		if !p.Equal(p.Round(2)) {
			return validationError("deposit percentage may have at most two decimal places")
		}
	}
	return nil
}

// buildItems snapshots product details and computes exact line totals.
func (s *OrderService) buildItems(ctx context.Context, inputs []OrderItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.ProductName)
		weight := in.Weight
		price := in.UnitPrice

		if in.ProductID != nil {
			var product models.Product
			if err := s.db.WithContext(ctx).First(&product, *in.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, validationError("item %d: product does not exist", i+1)
				}
				return nil, fmt.Errorf("failed to load product: %w", err)
			}
			if name == "" {
				name = product.Name
			}
			if weight == nil {
				weight = product.Weight
			}
			if price.IsZero() {
				price = product.Price
			}
		}

		if name == "" {
			return nil, validationError("item %d: product name is required", i+1)
		}
		if in.Quantity <= 0 {
			return nil, validationError("item %d: quantity must be greater than zero", i+1)
		}
		if !price.IsPositive() {
			return nil, validationError("item %d: unit price must be greater than zero", i+1)
		}
		if price.Exponent() < -models.MoneyPlaces {
			return nil, validationError("item %d: unit price cannot have more than two decimal places", i+1)
		}

		items = append(items, models.OrderItem{
			ProductID:   in.ProductID,
			ProductName: name,
			Weight:      weight,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			LineTotal:   models.LineTotal(price, in.Quantity),
		})
	}
	return items, nil
}

// GetOrder loads an order with its items, payments and audit trail.
func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("StatusEvents", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("order")
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// ListOrders returns orders newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Preload("Customer").Preload("Items").Order("created_at DESC, id DESC")
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PickupDate != nil {
		query = query.Where("pickup_date = ?", *filter.PickupDate)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListStatusEvents returns the audit trail of an order, oldest first.
func (s *OrderService) ListStatusEvents(ctx context.Context, orderID uint) ([]models.OrderStatusEvent, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if count == 0 {
		return nil, notFoundError("order")
	}

	var events []models.OrderStatusEvent
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list status events: %w", err)
	}
	return events, nil
}
