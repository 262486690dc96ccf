package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/middleware"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"github.com/shopspring/decimal"
)

// RecordPaymentRequest represents the request body for POST /orders/:id/payments
type RecordPaymentRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	Kind             string          `json:"kind" binding:"required"`
	Method           string          `json:"method" binding:"required"`
	GatewayReference *string         `json:"gateway_reference"`
}

// PaymentNotesRequest is the optional body of verify, fail and refund
type PaymentNotesRequest struct {
	Notes *string `json:"notes"`
}

// RecordPayment handles POST /api/v1/orders/:id/payments
func RecordPayment(c *gin.Context) {
	order, user, ok := loadVisibleOrder(c)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	result, err := services.GetServices().Payments.RecordPayment(c.Request.Context(), services.RecordPaymentInput{
		OrderID:          order.ID,
		Amount:           req.Amount,
		Kind:             models.PaymentKind(req.Kind),
		Method:           models.PaymentMethod(req.Method),
		GatewayReference: req.GatewayReference,
		Actor:            middleware.ActorFromUser(user),
	})
	if err != nil {
		respondServiceError(c, err, "record payment")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    result.Payment,
		"order":   result.Order,
	})
}

// ListOrderPayments handles GET /api/v1/orders/:id/payments
func ListOrderPayments(c *gin.Context) {
	order, _, ok := loadVisibleOrder(c)
	if !ok {
		return
	}

	payments, err := services.GetServices().Payments.ListPayments(c.Request.Context(), order.ID)
	if err != nil {
		respondServiceError(c, err, "list payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payments,
	})
}

// GetPayment handles GET /api/v1/payments/:id
func GetPayment(c *gin.Context) {
	payment, _, ok := loadVisiblePayment(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    payment,
	})
}

// VerifyPayment handles POST /api/v1/payments/:id/verify (staff only)
func VerifyPayment(c *gin.Context) {
	closePayment(c, "verify payment", (*services.PaymentService).VerifyPayment)
}

// FailPayment handles POST /api/v1/payments/:id/fail (staff only)
func FailPayment(c *gin.Context) {
	closePayment(c, "fail payment", (*services.PaymentService).FailPayment)
}

// RefundPayment handles POST /api/v1/payments/:id/refund (staff only)
func RefundPayment(c *gin.Context) {
	closePayment(c, "refund payment", (*services.PaymentService).RefundPayment)
}

type paymentAction func(*services.PaymentService, context.Context, uint, *services.Actor, *string) (*services.PaymentResult, error)

func closePayment(c *gin.Context, action string, apply paymentAction) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return
	}

	var req PaymentNotesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}
	}

	result, err := apply(services.GetServices().Payments, c.Request.Context(), id, middleware.ActorFromUser(user), req.Notes)
	if err != nil {
		respondServiceError(c, err, action)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Payment,
		"order":   result.Order,
	})
}

// UploadPaymentProof handles POST /api/v1/payments/:id/proof - attaches a bank transfer proof image
func UploadPaymentProof(c *gin.Context) {
	payment, _, ok := loadVisiblePayment(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("proof")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "A proof image is required in the 'proof' form field")
		return
	}

	updated, err := services.GetServices().Payments.AttachProof(c.Request.Context(), payment.ID, fileHeader)
	if err != nil {
		respondServiceError(c, err, "upload payment proof")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    updated,
	})
}

// loadVisiblePayment loads the :id payment if the caller may see it
func loadVisiblePayment(c *gin.Context) (*models.Payment, *models.User, bool) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User profile not found. Please create a profile first.")
		return nil, nil, false
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, nil, false
	}

	payment, err := services.GetServices().Payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "load payment")
		return nil, nil, false
	}
	if !user.IsStaff() && payment.CustomerID != user.ID {
		respondError(c, http.StatusNotFound, services.CodeNotFound, "Resource not found")
		return nil, nil, false
	}
	return payment, user, true
}
