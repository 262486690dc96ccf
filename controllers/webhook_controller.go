package controllers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/config"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"github.com/shopspring/decimal"
)

// WebhookSecretHeader carries the shared secret configured with the payment gateway
const WebhookSecretHeader = "X-Webhook-Secret"

// PaymentWebhookRequest is a reconciled payment outcome from the gateway
type PaymentWebhookRequest struct {
	Reference string          `json:"reference" binding:"required"`
	OrderID   uint            `json:"order_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      string          `json:"kind" binding:"required"`
	Status    string          `json:"status" binding:"required,oneof=success failed"`
	Message   *string         `json:"message"`
}

// PaymentWebhook handles POST /api/v1/webhooks/payments.
// Redelivered outcomes are acknowledged with 200 and applied only once.
func PaymentWebhook(c *gin.Context) {
	cfg := config.GetConfig()
	if cfg.PaymentWebhookSecret != "" {
		given := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(cfg.PaymentWebhookSecret)) != 1 {
			respondError(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook secret mismatch")
			return
		}
	}

	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	result, err := services.GetServices().Payments.HandleGatewayOutcome(c.Request.Context(), services.GatewayOutcome{
		Reference: req.Reference,
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Kind:      models.PaymentKind(req.Kind),
		Status:    models.PaymentRecordStatus(req.Status),
		Message:   req.Message,
	})
	if err != nil {
		respondServiceError(c, err, "process payment webhook")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"data":      result.Payment,
		"duplicate": result.Duplicate,
	})
}
