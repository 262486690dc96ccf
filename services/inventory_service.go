package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateProductInput describes a new product.
type CreateProductInput struct {
	Name          string
	Weight        *string
	Price         decimal.Decimal
	OriginalPrice decimal.Decimal
	ReturnTier    models.ReturnTier
	LegacyStock   int
}

// BatchDraw is the quantity a sale took from one batch.
type BatchDraw struct {
	BatchID   uint   `json:"batch_id"`
	BatchDate string `json:"batch_date"`
	Quantity  int    `json:"quantity"`
}

// MigrationReport summarises a legacy stock migration.
type MigrationReport struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Units    int `json:"units"`
}

// InventoryService tracks product stock as dated batches and consumes them oldest first.
type InventoryService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewInventoryService creates an inventory service.
func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db, now: time.Now}
}

// WithClock overrides the clock (primarily for testing).
func (s *InventoryService) WithClock(now func() time.Time) *InventoryService {
	s.now = now
	return s
}

// CreateProduct adds a product to the catalogue.
func (s *InventoryService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("product name is required")
	}
	if !in.Price.IsPositive() {
		return nil, validationError("price must be greater than zero")
	}
	if in.OriginalPrice.IsNegative() {
		return nil, validationError("original price must not be negative")
	}
	if in.Price.Exponent() < -models.MoneyPlaces || in.OriginalPrice.Exponent() < -models.MoneyPlaces {
		return nil, validationError("prices cannot have more than two decimal places")
	}
	if in.LegacyStock < 0 {
		return nil, validationError("legacy stock must not be negative")
	}
	tier := in.ReturnTier
	if tier == "" {
		tier = models.ReturnTierPartial
	}
	if _, err := models.ParseReturnTier(string(tier)); err != nil {
		return nil, validationError("return tier must be partial or full")
	}

	product := models.Product{
		Name:          name,
		Weight:        in.Weight,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		ReturnTier:    tier,
		LegacyStock:   in.LegacyStock,
	}
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &product, nil
}

// GetProduct loads a product.
func (s *InventoryService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("product")
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &product, nil
}

// RestockBatch adds stock to the product's batch for date, creating the batch
// on the first restock of that day. An empty date means today.
func (s *InventoryService) RestockBatch(ctx context.Context, productID uint, quantity int, date string) (*models.InventoryBatch, error) {
	if quantity <= 0 {
		return nil, validationError("restock quantity must be greater than zero")
	}
	if date == "" {
		date = models.FormatDate(s.now())
	}
	if _, err := models.ParseDate(date); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	now := s.now()
	batch := models.InventoryBatch{
		ProductID: productID,
		BatchDate: date,
		Quantity:  quantity,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "product_id"}, {Name: "batch_date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("inventory_batches.quantity + ?", quantity),
				"updated_at": now,
			}),
		}).Create(&batch).Error
		if err != nil {
			return classifyStoreError(err, "batch is being restocked")
		}
		var stored models.InventoryBatch
		if err := tx.Where("product_id = ? AND batch_date = ?", productID, date).First(&stored).Error; err != nil {
			return fmt.Errorf("failed to reload batch: %w", err)
		}
		batch = stored
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}

	s.setAge(&batch)
	return &batch, nil
}

// DeductForSale removes quantity units of a product, oldest batch first.
// Either the whole quantity is taken or nothing is.
func (s *InventoryService) DeductForSale(ctx context.Context, productID uint, quantity int) ([]BatchDraw, error) {
	if quantity <= 0 {
		return nil, validationError("sale quantity must be greater than zero")
	}

	var draws []BatchDraw
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("product")
			}
			return classifyStoreError(err, "product is being modified")
		}

		var batches []models.InventoryBatch
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND quantity > 0", productID).
			Order("batch_date ASC").
			Find(&batches).Error; err != nil {
			return classifyStoreError(err, "stock is being modified")
		}

		available := 0
		for _, b := range batches {
			available += b.Quantity
		}
		if available < quantity {
			return insufficientStockError("only %d of %s in stock, %d requested", available, product.Name, quantity)
		}

		remaining := quantity
		for _, b := range batches {
			if remaining == 0 {
				break
			}
			take := b.Quantity
			if take > remaining {
				take = remaining
			}
			res := tx.Model(&models.InventoryBatch{}).
				Where("id = ? AND quantity >= ?", b.ID, take).
				Update("quantity", gorm.Expr("quantity - ?", take))
			if res.Error != nil {
				return fmt.Errorf("failed to deduct from batch %d: %w", b.ID, res.Error)
			}
			if res.RowsAffected != 1 {
				return insufficientStockError("batch %s of %s changed while selling", b.BatchDate, product.Name)
			}
			draws = append(draws, BatchDraw{BatchID: b.ID, BatchDate: b.BatchDate, Quantity: take})
			remaining -= take
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}
	return draws, nil
}

// ListBatches returns a product's batches oldest first, with their age today.
func (s *InventoryService) ListBatches(ctx context.Context, productID uint) ([]models.InventoryBatch, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	var batches []models.InventoryBatch
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("batch_date ASC").Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	for i := range batches {
		s.setAge(&batches[i])
	}
	return batches, nil
}

// StockLevel is the total quantity on hand across a product's batches.
func (s *InventoryService) StockLevel(ctx context.Context, productID uint) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.InventoryBatch{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum stock: %w", err)
	}
	return int(total), nil
}

// MigrateLegacyStock moves flat legacy stock counts into day-zero batches dated
// date. Products that already have batches are left alone. Every product it
// looks at is stamped as migrated, so its legacy count is never used again.
// If any migrated product's batches do not add up to its legacy count,
// nothing is kept.
func (s *InventoryService) MigrateLegacyStock(ctx context.Context, date string) (*MigrationReport, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, validationError("%s", err.Error())
	}

	report := &MigrationReport{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []models.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("legacy_stock > 0 AND stock_migrated_at IS NULL").
			Order("id ASC").
			Find(&products).Error; err != nil {
			return fmt.Errorf("failed to load products: %w", err)
		}

		var migrated []models.Product
		seen := make([]uint, 0, len(products))
		for _, product := range products {
			seen = append(seen, product.ID)
			var count int64
			if err := tx.Model(&models.InventoryBatch{}).Where("product_id = ?", product.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to count batches for product %d: %w", product.ID, err)
			}
			if count > 0 {
				report.Skipped++
				continue
			}

			batch := models.InventoryBatch{ProductID: product.ID, BatchDate: date, Quantity: product.LegacyStock}
			if err := tx.Create(&batch).Error; err != nil {
				return fmt.Errorf("failed to create batch for product %d: %w", product.ID, err)
			}
			migrated = append(migrated, product)
			report.Migrated++
			report.Units += product.LegacyStock
		}

		for _, product := range migrated {
			var total int64
			if err := tx.Model(&models.InventoryBatch{}).
				Where("product_id = ?", product.ID).
				Select("COALESCE(SUM(quantity), 0)").
				Scan(&total).Error; err != nil {
				return fmt.Errorf("failed to verify product %d: %w", product.ID, err)
			}
			if int(total) != product.LegacyStock {
				return fmt.Errorf("stock migration mismatch for product %d (%s): legacy %d, batches %d",
					product.ID, product.Name, product.LegacyStock, total)
			}
		}

		if len(seen) == 0 {
			return nil
		}
		if err := tx.Model(&models.Product{}).Where("id IN ?", seen).Update("stock_migrated_at", s.now()).Error; err != nil {
			return fmt.Errorf("failed to mark products as migrated: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Stock migration complete: %d products migrated, %d skipped, %d units", report.Migrated, report.Skipped, report.Units)
	return report, nil
}

func (s *InventoryService) setAge(batch *models.InventoryBatch) {
	age, err := models.DaysBetween(batch.BatchDate, models.FormatDate(s.now()))
	if err != nil {
		return
	}
	batch.AgeDays = age
}
