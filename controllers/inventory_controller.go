package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents the request body for creating a product
type CreateProductRequest struct {
	Name          string          `json:"name" binding:"required"`
	Weight        *string         `json:"weight"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	ReturnTier    string          `json:"return_tier" binding:"omitempty,oneof=partial full"`
	LegacyStock   int             `json:"legacy_stock" binding:"gte=0"`
}

// RestockRequest represents the request body for restocking a product
type RestockRequest struct {
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	BatchDate string `json:"batch_date"` // defaults to today
}

// SaleRequest represents the request body for recording a sale
type SaleRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// CreateProduct handles POST /api/v1/inventory/products (staff only)
func CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	product, err := services.GetServices().Inventory.CreateProduct(c.Request.Context(), services.CreateProductInput{
		Name:          req.Name,
		Weight:        req.Weight,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		ReturnTier:    models.ReturnTier(req.ReturnTier),
		LegacyStock:   req.LegacyStock,
	})
	if err != nil {
		respondServiceError(c, err, "create product")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    product,
	})
}

// ListProductBatches handles GET /api/v1/inventory/products/:id/batches
func ListProductBatches(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	inventory := services.GetServices().Inventory
	batches, err := inventory.ListBatches(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "list batches")
		return
	}

	stock := 0
	for _, b := range batches {
		stock += b.Quantity
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    batches,
		"stock":   stock,
	})
}

// RestockProduct handles POST /api/v1/inventory/products/:id/restock (staff only)
func RestockProduct(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	batch, err := services.GetServices().Inventory.RestockBatch(c.Request.Context(), id, req.Quantity, req.BatchDate)
	if err != nil {
		respondServiceError(c, err, "restock product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    batch,
	})
}

// RecordSale handles POST /api/v1/inventory/products/:id/sales (staff only)
func RecordSale(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	inventory := services.GetServices().Inventory
	draws, err := inventory.DeductForSale(c.Request.Context(), id, req.Quantity)
	if err != nil {
		respondServiceError(c, err, "record sale")
		return
	}

	stock, err := inventory.StockLevel(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "record sale")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    draws,
		"stock":   stock,
	})
}
