package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hearthbakery/bakery-orders-api/config"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestApp is a migrated in-memory database with the global services wired against it
type TestApp struct {
	DB       *gorm.DB
	Config   *config.Config
	S3       *services.MockS3Service
	Notifier *services.MockNotifier
}

// TestConfig returns the ordering rules used across the HTTP test suites
func TestConfig() *config.Config {
	return &config.Config{
		GoEnv:                    "test",
		Port:                     "8080",
		CORSAllowedOrigins:       []string{"http://localhost:3000"},
		PickupMinAdvanceDays:     2,
		PickupMaxAdvanceDays:     60,
		DefaultDepositPercentage: 50,
		ReturnPartialPercentage:  20,
		OrderLockTimeout:         2 * time.Second,
	}
}

// NewTestApp opens a private shared-cache SQLite database named after the test
// and installs it, the config and the services as the process globals.
// Proofs go to a mock S3 bucket.
func NewTestApp(t *testing.T) *TestApp {
	t.Helper()
	MustSetTestEnvironment(t)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := config.OpenDatabase(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, config.AutoMigrateAll(db))
	return NewTestAppWithDB(t, db)
}

// NewTestAppWithDB wires the services against an already migrated database
func NewTestAppWithDB(t *testing.T, db *gorm.DB) *TestApp {
	t.Helper()

	cfg := TestConfig()
	config.SetDB(db)
	config.SetConfig(cfg)

	app := &TestApp{
		DB:       db,
		Config:   cfg,
		S3:       services.NewMockS3Service(),
		Notifier: services.NewMockNotifier(),
	}
	app.S3.SetAsMockForTesting()
	services.InitServices(db, cfg, services.NewS3ProofStorage(app.S3), app.Notifier)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return app
}

// CreateUser inserts a local profile directly
func (a *TestApp) CreateUser(t *testing.T, auth0ID, role string) models.User {
	t.Helper()
	user := models.User{
		Auth0ID: auth0ID,
		Name:    "User " + auth0ID,
		Email:   strings.NewReplacer("auth0|", "", "|", "_").Replace(auth0ID) + "@example.com",
		Role:    role,
	}
	require.NoError(t, a.DB.Create(&user).Error)
	return user
}

// PickupDate formats a date daysAhead of today
func PickupDate(daysAhead int) string {
	return models.FormatDate(time.Now().AddDate(0, 0, daysAhead))
}

// CakeOrderBody is a valid custom order request for a pickup five days out
func CakeOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"type":        "custom",
		"pickup_date": PickupDate(5),
		"pickup_time": "10:30",
		"items": []map[string]interface{}{
			{"product_name": "Lemon drizzle cake", "weight": "1kg", "quantity": 2, "unit_price": "1250.00"},
			{"product_name": "Candles", "quantity": 1, "unit_price": "100"},
		},
		"notes": "Happy birthday Sam",
	}
}

// DoJSON sends a JSON request as user (empty means anonymous) and decodes the envelope
func DoJSON(handler http.Handler, method, path, user string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader *bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	return serve(handler, req)
}

// DoUpload posts a single multipart file in field as user
func DoUpload(handler http.Handler, path, user, field, filename string, content []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile(field, filename)
	_, _ = part.Write(content)
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	return serve(handler, req)
}

func serve(handler http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

// DecodeBody decodes a recorded JSON envelope, failing the test when it is not one
func DecodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// Data returns the "data" object of a success envelope
func Data(response map[string]interface{}) map[string]interface{} {
	data, _ := response["data"].(map[string]interface{})
	return data
}

// ErrorCode returns error.code of a failure envelope
func ErrorCode(response map[string]interface{}) string {
	errData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errData["code"].(string)
	return code
}

// ID returns the numeric id of a decoded resource
func ID(resource map[string]interface{}) uint {
	id, _ := resource["id"].(float64)
	return uint(id)
}
