package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturnSelection picks a batch to pull. Quantity nil takes everything left in
// the batch; Tier nil uses the product's return tier.
type ReturnSelection struct {
	BatchID  uint
	Quantity *int
	Tier     *models.ReturnTier
}

// CreateReturnInput describes stock pulled from the shelf.
type CreateReturnInput struct {
	Selections []ReturnSelection
	Processor  *Actor
	ReturnDate string // YYYY-MM-DD, empty means today
	Notes      *string
}

// ReturnService values and records returned stock.
type ReturnService struct {
	db                *gorm.DB
	partialPercentage decimal.Decimal
	now               func() time.Time
}

// NewReturnService creates a return service crediting partial-tier units at partialPercentage.
func NewReturnService(db *gorm.DB, partialPercentage int) *ReturnService {
	return &ReturnService{
		db:                db,
		partialPercentage: decimal.NewFromInt(int64(partialPercentage)),
		now:               time.Now,
	}
}

// WithClock overrides the clock (primarily for testing).
func (s *ReturnService) WithClock(now func() time.Time) *ReturnService {
	s.now = now
	return s
}

// TierPercentage is the share of the original price credited for a tier.
func (s *ReturnService) TierPercentage(tier models.ReturnTier) decimal.Decimal {
	if tier == models.ReturnTierFull {
		return decimal.NewFromInt(100)
	}
	return s.partialPercentage
}

// CreateReturn pulls the selected units out of their batches and records one
// immutable return with a valued line per batch. Emptied batches of the
// pulled products are reclaimed.
func (s *ReturnService) CreateReturn(ctx context.Context, in CreateReturnInput) (*models.Return, error) {
	returnDate := in.ReturnDate
	if returnDate == "" {
		returnDate = models.FormatDate(s.now())
	}
	if err := validateReturnInput(in, returnDate); err != nil {
		return nil, err
	}

	ret := models.Return{
		Reference:     uuid.NewString(),
		ReturnDate:    returnDate,
		ProcessedByID: in.Processor.ID(),
		TotalValue:    decimal.Zero,
		Notes:         in.Notes,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSelectedProducts(tx, in.Selections); err != nil {
			return err
		}

		lines := make([]models.ReturnLine, len(in.Selections))
		for _, i := range selectionsByBatchID(in.Selections) {
			line, err := s.pullBatch(tx, in.Selections[i], returnDate)
			if err != nil {
				return fmt.Errorf("selection %d: %w", i+1, err)
			}
			lines[i] = *line
		}
		for _, line := range lines {
			ret.Lines = append(ret.Lines, line)
			ret.TotalValue = ret.TotalValue.Add(line.TotalReturnValue)
			ret.TotalQuantity += line.Quantity
		}
		ret.TotalBatches = len(ret.Lines)

		if err := tx.Create(&ret).Error; err != nil {
			return classifyStoreError(err, "return already recorded")
		}
		return nil
	})
	if err != nil {
		return nil, classifyTxError(err)
	}
	return &ret, nil
}

// lockSelectedProducts locks the products behind the selected batches in id
// order. Sales lock the product before its batches, so returns do the same.
func lockSelectedProducts(tx *gorm.DB, selections []ReturnSelection) error {
	batchIDs := make([]uint, 0, len(selections))
	for _, sel := range selections {
		batchIDs = append(batchIDs, sel.BatchID)
	}

	var productIDs []uint
	if err := tx.Model(&models.InventoryBatch{}).Where("id IN ?", batchIDs).Distinct().Pluck("product_id", &productIDs).Error; err != nil {
		return fmt.Errorf("failed to load batch products: %w", err)
	}
	if len(productIDs) == 0 {
		return nil
	}

	var products []models.Product
	if err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", productIDs).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return classifyStoreError(err, "product is being modified")
	}
	return nil
}

// selectionsByBatchID returns selection indexes ordered by batch id, the order batches are locked in.
func selectionsByBatchID(selections []ReturnSelection) []int {
	order := make([]int, len(selections))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return selections[order[a]].BatchID < selections[order[b]].BatchID
	})
	return order
}

func validateReturnInput(in CreateReturnInput, returnDate string) error {
	if len(in.Selections) == 0 {
		return validationError("a return needs at least one batch")
	}
	if _, err := models.ParseDate(returnDate); err != nil {
		return validationError("%s", err.Error())
	}
	seen := make(map[uint]bool, len(in.Selections))
	for i, sel := range in.Selections {
		if sel.BatchID == 0 {
			return validationError("selection %d: batch is required", i+1)
		}
		if seen[sel.BatchID] {
			return validationError("selection %d: batch selected more than once", i+1)
		}
		seen[sel.BatchID] = true
		if sel.Quantity != nil && *sel.Quantity <= 0 {
			return validationError("selection %d: quantity must be greater than zero", i+1)
		}
		if sel.Tier != nil {
			if _, err := models.ParseReturnTier(string(*sel.Tier)); err != nil {
				return validationError("selection %d: return tier must be partial or full", i+1)
			}
		}
	}
	return nil
}

// pullBatch locks one batch, values the pulled units and takes them off the batch.
func (s *ReturnService) pullBatch(tx *gorm.DB, sel ReturnSelection, returnDate string) (*models.ReturnLine, error) {
	var batch models.InventoryBatch
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&batch, sel.BatchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("batch")
		}
		return nil, classifyStoreError(err, "batch is being modified")
	}

	var product models.Product
	if err := tx.Unscoped().First(&product, batch.ProductID).Error; err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	quantity := batch.Quantity
	if sel.Quantity != nil {
		quantity = *sel.Quantity
	}
	if quantity <= 0 {
		return nil, validationError("batch %s of %s is empty", batch.BatchDate, product.Name)
	}
	if quantity > batch.Quantity {
		return nil, validationError("only %d units left in batch %s of %s", batch.Quantity, batch.BatchDate, product.Name)
	}

	age, err := models.DaysBetween(batch.BatchDate, returnDate)
	if err != nil {
		return nil, err
	}
	if age < 0 {
		return nil, validationError("batch %s is dated after the return date", batch.BatchDate)
	}

	tier := product.ReturnTier
	if sel.Tier != nil {
		tier = *sel.Tier
	}
	percentage := s.TierPercentage(tier)
	original := product.CostBasis()
	unit := models.PercentOf(original, percentage)

	if err := tx.Model(&batch).Update("quantity", gorm.Expr("quantity - ?", quantity)).Error; err != nil {
		return nil, fmt.Errorf("failed to update batch: %w", err)
	}
	// Empty batches up to this one are history the return now reclaims.
	if err := tx.Where("product_id = ? AND quantity = 0 AND batch_date <= ?", product.ID, batch.BatchDate).
		Delete(&models.InventoryBatch{}).Error; err != nil {
		return nil, fmt.Errorf("failed to reclaim empty batches: %w", err)
	}

	batchID, productID := batch.ID, product.ID
	return &models.ReturnLine{
		BatchID:          &batchID,
		ProductID:        &productID,
		ProductName:      product.Name,
		BatchDate:        batch.BatchDate,
		Quantity:         quantity,
		AgeDays:          age,
		OriginalPrice:    original,
		SalePrice:        product.Price,
		ReturnTier:       tier,
		ReturnPercentage: percentage,
		UnitReturnValue:  unit,
		TotalReturnValue: models.LineTotal(unit, quantity),
	}, nil
}

// GetReturn loads a return by id with its lines.
func (s *ReturnService) GetReturn(ctx context.Context, id uint) (*models.Return, error) {
	var ret models.Return
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&ret, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("return")
		}
		return nil, fmt.Errorf("failed to load return: %w", err)
	}
	return &ret, nil
}

// GetReturnByReference loads a return by its public reference.
func (s *ReturnService) GetReturnByReference(ctx context.Context, reference string) (*models.Return, error) {
	if _, err := uuid.Parse(reference); err != nil {
		return nil, notFoundError("return")
	}
	var ret models.Return
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("reference = ?", reference).
		First(&ret).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("return")
		}
		return nil, fmt.Errorf("failed to load return: %w", err)
	}
	return &ret, nil
}
