package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/hearthbakery/bakery-orders-api/config"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixedNow is the clock used across service tests: 10 March 2026, 09:30 UTC.
var fixedNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase("sqlite:file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, config.AutoMigrateAll(db))

	config.SetConfig(&config.Config{
		GoEnv:                    "test",
		PickupMinAdvanceDays:     2,
		PickupMaxAdvanceDays:     60,
		DefaultDepositPercentage: 50,
		ReturnPartialPercentage:  20,
		OrderLockTimeout:         2 * time.Second,
	})

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createCustomer(t *testing.T, db *gorm.DB, auth0ID string) models.User {
	t.Helper()
	user := models.User{
		Auth0ID: auth0ID,
		Name:    "Customer " + auth0ID,
		Email:   strings.TrimPrefix(auth0ID, "auth0|") + "@example.com",
		Role:    models.RoleCustomer,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func newTestOrderService(db *gorm.DB, notifier Notifier) *OrderService {
	return NewOrderService(db, AllowAllPickupPolicy{}, notifier, 50).WithClock(fixedClock)
}

func orderInput(customerID uint, subtotal string) CreateOrderInput {
	return CreateOrderInput{
		CustomerID: customerID,
		Type:       models.OrderTypeCustom,
		PickupDate: "2026-03-14",
		PickupTime: "10:00",
		Items: []OrderItemInput{
			{ProductName: "Celebration cake", Quantity: 1, UnitPrice: decimal.RequireFromString(subtotal)},
		},
	}
}

func placeOrder(t *testing.T, db *gorm.DB, subtotal string) *models.Order {
	t.Helper()
	customer := createCustomer(t, db, "auth0|"+strings.ToLower(strings.ReplaceAll(t.Name(), "/", "-")))
	order, err := newTestOrderService(db, NewMockNotifier()).CreateOrder(context.Background(), orderInput(customer.ID, subtotal))
	require.NoError(t, err)
	return order
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func newFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("proof", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["proof"][0]
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
