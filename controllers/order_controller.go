package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/middleware"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"github.com/shopspring/decimal"
)

// OrderItemRequest is one line of a new order
type OrderItemRequest struct {
	ProductID   *uint           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Weight      *string         `json:"weight"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	CustomerID        *uint              `json:"customer_id"` // staff only, for orders taken at the counter
	Type              string             `json:"type" binding:"required"`
	PickupDate        string             `json:"pickup_date" binding:"required"`
	PickupTime        string             `json:"pickup_time" binding:"required"`
	Items             []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	DepositPercentage *decimal.Decimal   `json:"deposit_percentage"`
	Notes             *string            `json:"notes"`
}

// UpdateOrderStatusRequest represents the request body for PATCH /orders/:id/status
type UpdateOrderStatusRequest struct {
	Status        string  `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	Note          *string `json:"note"`
	Notes         *string `json:"notes"`
	PickupTime    *string `json:"pickup_time"`
}

// CreateOrder handles POST /api/v1/orders - places an order
func CreateOrder(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	customerID := user.ID
	if req.CustomerID != nil {
		if !user.IsStaff() {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "Only staff can place orders for another customer")
			return
		}
		customerID = *req.CustomerID
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Weight:      item.Weight,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	order, err := services.GetServices().Orders.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		CustomerID:        customerID,
		Type:              models.OrderType(req.Type),
		PickupDate:        req.PickupDate,
		PickupTime:        req.PickupTime,
		Items:             items,
		DepositPercentage: req.DepositPercentage,
		Notes:             req.Notes,
	})
	if err != nil {
		respondServiceError(c, err, "create order")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders - customers see their own orders, staff see all
func ListOrders(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	filter := services.OrderFilter{}
	if !user.IsStaff() {
		filter.CustomerID = &user.ID
	}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("pickup_date"); raw != "" {
		filter.PickupDate = &raw
	}

	orders, err := services.GetServices().Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err, "list orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
		"count":   len(orders),
	})
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	order, _, ok := loadVisibleOrder(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status.
// Customers may cancel their order or change its notes and pickup time; staff may make any legal move.
func UpdateOrderStatus(c *gin.Context) {
	order, user, ok := loadVisibleOrder(c)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	status := order.Status
	if req.Status != "" {
		parsed, err := models.ParseOrderStatus(req.Status)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		status = parsed
	}

	var paymentStatus *models.PaymentStatus
	if req.PaymentStatus != nil {
		parsed, err := models.ParsePaymentStatus(*req.PaymentStatus)
		if err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		paymentStatus = &parsed
	}

	if !user.IsStaff() {
		if paymentStatus != nil || (status != order.Status && status != models.OrderStatusCancelled) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "Customers can only cancel an order or edit its notes and pickup time")
			return
		}
	}

	result, err := services.GetServices().Orders.TransitionOrder(c.Request.Context(), services.TransitionInput{
		OrderID:       order.ID,
		Status:        status,
		PaymentStatus: paymentStatus,
		Actor:         middleware.ActorFromUser(user),
		Note:          req.Note,
		Notes:         req.Notes,
		PickupTime:    req.PickupTime,
	})
	if err != nil {
		respondServiceError(c, err, "update order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Order,
		"event":   result.Event,
	})
}

// ListOrderEvents handles GET /api/v1/orders/:id/events - the order's audit trail
func ListOrderEvents(c *gin.Context) {
	order, _, ok := loadVisibleOrder(c)
	if !ok {
		return
	}

	events, err := services.GetServices().Orders.ListStatusEvents(c.Request.Context(), order.ID)
	if err != nil {
		respondServiceError(c, err, "list order events")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    events,
	})
}

// loadVisibleOrder loads the :id order if the caller may see it. Customers get
// a 404 for orders that are not theirs.
func loadVisibleOrder(c *gin.Context) (*models.Order, *models.User, bool) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil, nil, false
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, nil, false
	}

	order, err := services.GetServices().Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "load order")
		return nil, nil, false
	}
	if !user.IsStaff() && order.CustomerID != user.ID {
		respondError(c, http.StatusNotFound, services.CodeNotFound, "Resource not found")
		return nil, nil, false
	}
	return order, user, true
}
