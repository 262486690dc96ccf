package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/config"
	"github.com/hearthbakery/bakery-orders-api/controllers"
	"github.com/hearthbakery/bakery-orders-api/middleware"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"github.com/hearthbakery/bakery-orders-api/utils"
)

func main() {
	// Basic logging
	log.Println("Starting Hearth Bakery orders API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := config.AutoMigrateAll(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	proofs, err := newProofStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize proof storage: %v", err)
	}
	services.InitServices(db, cfg, proofs, services.LogNotifier{})

	// One-off maintenance commands, e.g. `bakery-orders-api migrate-stock 2026-01-01`
	if len(os.Args) > 1 {
		if err := runCommand(os.Args[1:]); err != nil {
			log.Fatalf("Command %s failed: %v", os.Args[1], err)
		}
		return
	}

	router := setupRouter(cfg, middleware.EnsureValidToken(cfg))

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newProofStorage picks S3 when a bucket is configured and the local upload directory otherwise
func newProofStorage(cfg *config.Config) (services.ProofStorage, error) {
	if cfg.UsesS3() {
		s3Service, err := services.InitS3Service(cfg)
		if err != nil {
			return nil, err
		}
		log.Printf("Payment proofs are stored in S3 bucket %s", cfg.AWSS3Bucket)
		return services.NewS3ProofStorage(s3Service), nil
	}

	utils.UploadDir = cfg.UploadDir
	log.Printf("AWS_S3_BUCKET not set, storing payment proofs in %s", cfg.UploadDir)
	return services.NewLocalProofStorage(cfg.UploadDir), nil
}

func runCommand(args []string) error {
	switch args[0] {
	case "migrate-stock":
		date := models.FormatDate(time.Now())
		if len(args) > 1 {
			date = args[1]
		}
		report, err := services.GetServices().Inventory.MigrateLegacyStock(context.Background(), date)
		if err != nil {
			return err
		}
		log.Printf("Migrated %d products (%d units), skipped %d", report.Migrated, report.Units, report.Skipped)
		return nil
	default:
		return fmt.Errorf("unknown command %q (available: migrate-stock)", args[0])
	}
}

// setupRouter wires every route. auth validates the caller's token on protected routes.
func setupRouter(cfg *config.Config, auth gin.HandlerFunc) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// Payment gateway callbacks authenticate with a shared secret, not a user token
		v1.POST("/webhooks/payments", controllers.PaymentWebhook)
	}

	authed := v1.Group("", auth)
	{
		authed.POST("/users", controllers.CreateUser)
		authed.GET("/users/me", controllers.GetMyProfile)
		authed.PUT("/users/me", controllers.UpdateMyProfile)
	}

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

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Hearth Bakery API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"dialect": db.Dialector.Name(),
		"tables":  tables,
	})
}
