package services

import (
	"context"
	"testing"

	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createProduct(t *testing.T, service *InventoryService, name string, legacyStock int) *models.Product {
	t.Helper()
	product, err := service.CreateProduct(context.Background(), CreateProductInput{
		Name:          name,
		Price:         decimal.RequireFromString("120"),
		OriginalPrice: decimal.RequireFromString("100"),
		LegacyStock:   legacyStock,
	})
	require.NoError(t, err)
	return product
}

func batchQuantities(t *testing.T, db *gorm.DB, productID uint) map[string]int {
	t.Helper()
	var batches []models.InventoryBatch
	require.NoError(t, db.Where("product_id = ?", productID).Find(&batches).Error)
	out := make(map[string]int, len(batches))
	for _, b := range batches {
		out[b.BatchDate] = b.Quantity
	}
	return out
}

func TestCreateProduct_Validation(t *testing.T) {
	db := setupServiceDB(t)
	service := NewInventoryService(db)

	tests := []struct {
		name string
		in   CreateProductInput
	}{
		{name: "blank name", in: CreateProductInput{Name: "  ", Price: decimal.NewFromInt(1)}},
		{name: "zero price", in: CreateProductInput{Name: "Bun"}},
		{name: "negative original price", in: CreateProductInput{Name: "Bun", Price: decimal.NewFromInt(1), OriginalPrice: decimal.NewFromInt(-1)}},
		{name: "sub-cent price", in: CreateProductInput{Name: "Bun", Price: decimal.RequireFromString("1.001")}},
		{name: "unknown tier", in: CreateProductInput{Name: "Bun", Price: decimal.NewFromInt(1), ReturnTier: "half"}},
		{name: "negative legacy stock", in: CreateProductInput{Name: "Bun", Price: decimal.NewFromInt(1), LegacyStock: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateProduct(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, int64(0), countRows(t, db, &models.Product{}))
}

func TestRestockBatch_MergesSameDay(t *testing.T) {
	db := setupServiceDB(t)
	service := NewInventoryService(db).WithClock(fixedClock)
	product := createProduct(t, service, "Baguette", 0)

	first, err := service.RestockBatch(context.Background(), product.ID, 10, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", first.BatchDate)
	assert.Equal(t, 0, first.AgeDays)

	second, err := service.RestockBatch(context.Background(), product.ID, 5, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 15, second.Quantity)

	older, err := service.RestockBatch(context.Background(), product.ID, 4, "2026-03-07")
	require.NoError(t, err)
	assert.Equal(t, 3, older.AgeDays)

	assert.Equal(t, map[string]int{"2026-03-10": 15, "2026-03-07": 4}, batchQuantities(t, db, product.ID))

	stock, err := service.StockLevel(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 19, stock)
}

func TestRestockBatch_Validation(t *testing.T) {
	db := setupServiceDB(t)
	service := NewInventoryService(db).WithClock(fixedClock)
	product := createProduct(t, service, "Baguette", 0)

	_, err := service.RestockBatch(context.Background(), product.ID, 0, "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = service.RestockBatch(context.Background(), product.ID, 3, "10-03-2026")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = service.RestockBatch(context.Background(), 999, 3, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeductForSale_OldestFirst(t *testing.T) {
	db := setupServiceDB(t)
	service := NewInventoryService(db).WithClock(fixedClock)
	product := createProduct(t, service, "Croissant", 0)

	for date, qty := range map[string]int{"2026-03-08": 3, "2026-03-09": 4, "2026-03-10": 5} {
		_, err := service.RestockBatch(context.Background(), product.ID, qty, date)
		require.NoError(t, err)
	}

	draws, err := service.DeductForSale(context.Background(), product.ID, 6)
	require.NoError(t, err)
	require.Len(t, draws, 2)
	assert.Equal(t, BatchDraw{BatchID: draws[0].BatchID, BatchDate: "2026-03-08", Quantity: 3}, draws[0])
	assert.Equal(t, "2026-03-09", draws[1].BatchDate)
	assert.Equal(t, 3, draws[1].Quantity)

	assert.Equal(t, map[string]int{"2026-03-08": 0, "2026-03-09": 1, "2026-03-10": 5}, batchQuantities(t, db, product.ID))

	batches, err := service.ListBatches(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].AgeDays)
}

func TestDeductForSale_InsufficientStockChangesNothing(t *testing.T) {
	db := setupServiceDB(t)
	service := NewInventoryService(db).WithClock(fixedClock)
	product := createProduct(t, service, "Croissant", 0)
	_, err := service.RestockBatch(context.Background(), product.ID, 2, "2026-03-09")
	require.NoError(t, err)
	_, err = service.RestockBatch(context.Background(), product.ID, 2, "2026-03-10")
	require.NoError(t, err)

	_, err = service.DeductForSale(context.Background(), product.ID, 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, map[string]int{"2026-03-09": 2, "2026-03-10": 2}, batchQuantities(t, db, product.ID))

	_, err = service.DeductForSale(context.Background(), product.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = service.DeductForSale(context.Background(), 999, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrateLegacyStock(t *testing.T) {
	db := setupServiceDB(t)
	service := NewInventoryService(db).WithClock(fixedClock)

	legacy := createProduct(t, service, "Sourdough", 12)
	tracked := createProduct(t, service, "Rye", 7)
	empty := createProduct(t, service, "Seasonal", 0)
	_, err := service.RestockBatch(context.Background(), tracked.ID, 3, "2026-03-09")
	require.NoError(t, err)

	report, err := service.MigrateLegacyStock(context.Background(), "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, &MigrationReport{Migrated: 1, Skipped: 1, Units: 12}, report)

	assert.Equal(t, map[string]int{"2026-03-01": 12}, batchQuantities(t, db, legacy.ID))
	assert.Equal(t, map[string]int{"2026-03-09": 3}, batchQuantities(t, db, tracked.ID))
	assert.Empty(t, batchQuantities(t, db, empty.ID))

	var stamped []models.Product
	require.NoError(t, db.Where("stock_migrated_at IS NOT NULL").Order("id ASC").Find(&stamped).Error)
	require.Len(t, stamped, 2)
	assert.Equal(t, legacy.ID, stamped[0].ID)
	assert.Equal(t, tracked.ID, stamped[1].ID)
	assert.Equal(t, 12, stamped[0].LegacyStock)

	// a second run has nothing left to migrate
	report, err = service.MigrateLegacyStock(context.Background(), "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, &MigrationReport{}, report)

	_, err = service.MigrateLegacyStock(context.Background(), "yesterday")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMigrateLegacyStock_RunsOnceEvenAfterStockIsReturned(t *testing.T) {
	db := setupServiceDB(t)
	inventory := NewInventoryService(db).WithClock(fixedClock)
	returns := NewReturnService(db, 20).WithClock(fixedClock)

	product := createProduct(t, inventory, "Baguette", 10)
	report, err := inventory.MigrateLegacyStock(context.Background(), "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 10, report.Units)

	var dayZero models.InventoryBatch
	require.NoError(t, db.Where("product_id = ?", product.ID).First(&dayZero).Error)
	_, err = returns.CreateReturn(context.Background(), CreateReturnInput{
		Selections: []ReturnSelection{{BatchID: dayZero.ID}},
	})
	require.NoError(t, err)
	assert.Empty(t, batchQuantities(t, db, product.ID))

	report, err = inventory.MigrateLegacyStock(context.Background(), "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, &MigrationReport{}, report)

	stock, err := inventory.StockLevel(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}
