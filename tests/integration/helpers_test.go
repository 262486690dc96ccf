package integration

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/controllers"
	"github.com/hearthbakery/bakery-orders-api/middleware"
	"github.com/hearthbakery/bakery-orders-api/tests/testutil"
)

// Notifications are sent after the response, so tests poll for them
const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

// createRouter registers the API routes behind header-driven mock auth
func createRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	v1.POST("/webhooks/payments", controllers.PaymentWebhook)

	authed := v1.Group("", testutil.HeaderAuthMiddleware())
	authed.GET("/users/me", controllers.GetMyProfile)

	registered := authed.Group("", middleware.RequireUser())
	{
		registered.POST("/orders", controllers.CreateOrder)
		registered.GET("/orders", controllers.ListOrders)
		registered.GET("/orders/:id", controllers.GetOrder)
		registered.PATCH("/orders/:id/status", controllers.UpdateOrderStatus)
		registered.GET("/orders/:id/events", controllers.ListOrderEvents)
		registered.POST("/orders/:id/payments", controllers.RecordPayment)
		registered.GET("/orders/:id/payments", controllers.ListOrderPayments)
		registered.GET("/payments/:id", controllers.GetPayment)
		registered.POST("/payments/:id/proof", controllers.UploadPaymentProof)
		registered.GET("/inventory/products/:id/batches", controllers.ListProductBatches)
	}

	staff := registered.Group("", middleware.RequireStaff())
	{
		staff.POST("/payments/:id/verify", controllers.VerifyPayment)
		staff.POST("/payments/:id/fail", controllers.FailPayment)
		staff.POST("/payments/:id/refund", controllers.RefundPayment)
		staff.POST("/inventory/products", controllers.CreateProduct)
		staff.POST("/inventory/products/:id/restock", controllers.RestockProduct)
		staff.POST("/inventory/products/:id/sales", controllers.RecordSale)
		staff.POST("/returns", controllers.CreateReturn)
		staff.GET("/returns/:id", controllers.GetReturn)
		staff.GET("/uploads/:filename", controllers.GetUploadedProof)
	}

	return router
}
