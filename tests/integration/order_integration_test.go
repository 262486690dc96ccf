package integration

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// OrderIntegrationTestSuite defines the test suite for order integration tests
type OrderIntegrationTestSuite struct {
	suite.Suite
	app      *testutil.TestApp
	router   *gin.Engine
	customer models.User
	other    models.User
	staff    models.User
}

// SetupSuite runs once before all tests
func (suite *OrderIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

// SetupTest gives every test a fresh database and router
func (suite *OrderIntegrationTestSuite) SetupTest() {
	suite.app = testutil.NewTestApp(suite.T())
	suite.router = createRouter()

	suite.customer = suite.app.CreateUser(suite.T(), "auth0|customer", models.RoleCustomer)
	suite.other = suite.app.CreateUser(suite.T(), "auth0|other", models.RoleCustomer)
	suite.staff = suite.app.CreateUser(suite.T(), "auth0|staff", models.RoleStaff)
}

func (suite *OrderIntegrationTestSuite) do(method, path string, user models.User, body interface{}) (int, map[string]interface{}) {
	w, response := testutil.DoJSON(suite.router, method, path, user.Auth0ID, body)
	return w.Code, response
}

func (suite *OrderIntegrationTestSuite) placeOrder(user models.User) map[string]interface{} {
	code, response := suite.do(http.MethodPost, "/api/v1/orders", user, testutil.CakeOrderBody())
	suite.Require().Equal(http.StatusCreated, code, response)
	return testutil.Data(response)
}

func (suite *OrderIntegrationTestSuite) patchStatus(orderID uint, user models.User, body map[string]interface{}) (int, map[string]interface{}) {
	return suite.do(http.MethodPatch, fmt.Sprintf("/api/v1/orders/%d/status", orderID), user, body)
}

// TestOrderWorkflow_CreateListAndGet tests the basic order workflow
func (suite *OrderIntegrationTestSuite) TestOrderWorkflow_CreateListAndGet() {
	order := suite.placeOrder(suite.customer)
	orderID := testutil.ID(order)

	assert.Regexp(suite.T(), `^ORD-\d{8}-001$`, order["order_number"])
	assert.Equal(suite.T(), "2600", order["subtotal"])
	assert.Equal(suite.T(), "1300", order["deposit_amount"])
	assert.Equal(suite.T(), "1300", order["remaining_balance"])
	assert.Equal(suite.T(), "pending", order["payment_status"])

	code, response := suite.do(http.MethodGet, "/api/v1/orders", suite.customer, nil)
	suite.Require().Equal(http.StatusOK, code)
	assert.Equal(suite.T(), float64(1), response["count"])

	code, response = suite.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", orderID), suite.customer, nil)
	suite.Require().Equal(http.StatusOK, code)
	data := testutil.Data(response)
	assert.Equal(suite.T(), order["order_number"], data["order_number"])
	assert.Len(suite.T(), data["items"], 2)

	suite.Eventually(func() bool {
		for _, event := range suite.app.Notifier.Events() {
			if strings.HasPrefix(event, "order_created:") {
				return true
			}
		}
		return false
	}, testTimeout, testTick)
}

func (suite *OrderIntegrationTestSuite) TestOrderNumbersAreSequentialPerDay() {
	var numbers []string
	for i := 0; i < 3; i++ {
		numbers = append(numbers, suite.placeOrder(suite.customer)["order_number"].(string))
	}

	day := strings.Split(numbers[0], "-")[1]
	for i, number := range numbers {
		assert.Equal(suite.T(), fmt.Sprintf("ORD-%s-%03d", day, i+1), number)
	}
}

func (suite *OrderIntegrationTestSuite) TestConcurrentOrdersGetUniqueNumbers() {
	const n = 8
	numbers := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, response := testutil.DoJSON(suite.router, http.MethodPost, "/api/v1/orders", suite.customer.Auth0ID, testutil.CakeOrderBody())
			if assert.Equal(suite.T(), http.StatusCreated, w.Code) {
				numbers <- testutil.Data(response)["order_number"].(string)
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for number := range numbers {
		assert.False(suite.T(), seen[number], "duplicate order number %s", number)
		seen[number] = true
	}
	assert.Len(suite.T(), seen, n)
}

func (suite *OrderIntegrationTestSuite) TestCustomerSeesOnlyOwnOrders() {
	mine := suite.placeOrder(suite.customer)
	theirs := suite.placeOrder(suite.other)

	code, response := suite.do(http.MethodGet, "/api/v1/orders", suite.customer, nil)
	suite.Require().Equal(http.StatusOK, code)
	orders := response["data"].([]interface{})
	suite.Require().Len(orders, 1)
	assert.Equal(suite.T(), mine["id"], orders[0].(map[string]interface{})["id"])

	code, response = suite.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", testutil.ID(theirs)), suite.customer, nil)
	assert.Equal(suite.T(), http.StatusNotFound, code)
	assert.Equal(suite.T(), "NOT_FOUND", testutil.ErrorCode(response))

	code, _ = suite.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/events", testutil.ID(theirs)), suite.customer, nil)
	assert.Equal(suite.T(), http.StatusNotFound, code)
}

func (suite *OrderIntegrationTestSuite) TestStaffListsAndFiltersAllOrders() {
	first := suite.placeOrder(suite.customer)
	suite.placeOrder(suite.other)

	code, _ := suite.patchStatus(testutil.ID(first), suite.staff, map[string]interface{}{"status": "confirmed"})
	suite.Require().Equal(http.StatusOK, code)

	code, response := suite.do(http.MethodGet, "/api/v1/orders", suite.staff, nil)
	suite.Require().Equal(http.StatusOK, code)
	assert.Equal(suite.T(), float64(2), response["count"])

	code, response = suite.do(http.MethodGet, "/api/v1/orders?status=confirmed", suite.staff, nil)
	suite.Require().Equal(http.StatusOK, code)
	assert.Equal(suite.T(), float64(1), response["count"])

	code, response = suite.do(http.MethodGet, "/api/v1/orders?status=baking", suite.staff, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", testutil.ErrorCode(response))
}

func (suite *OrderIntegrationTestSuite) TestStaffPlacesOrderForCustomer() {
	body := testutil.CakeOrderBody()
	body["customer_id"] = suite.customer.ID

	code, response := suite.do(http.MethodPost, "/api/v1/orders", suite.staff, body)
	suite.Require().Equal(http.StatusCreated, code, response)
	assert.Equal(suite.T(), float64(suite.customer.ID), testutil.Data(response)["customer_id"])

	code, response = suite.do(http.MethodPost, "/api/v1/orders", suite.other, body)
	assert.Equal(suite.T(), http.StatusForbidden, code)
	assert.Equal(suite.T(), "FORBIDDEN", testutil.ErrorCode(response))
}

func (suite *OrderIntegrationTestSuite) TestCreateOrder_RejectsBadPickupDates() {
	suite.Require().NoError(suite.app.DB.Create(&models.BlockedDate{Date: testutil.PickupDate(10), Reason: "Bakery closed for inventory"}).Error)

	tests := []struct {
		name       string
		pickupDate string
		message    string
	}{
		{name: "too soon", pickupDate: testutil.PickupDate(1), message: "at least 2 days"},
		{name: "too far out", pickupDate: testutil.PickupDate(90), message: "more than 60 days"},
		{name: "blocked", pickupDate: testutil.PickupDate(10), message: "Bakery closed for inventory"},
		{name: "malformed", pickupDate: "next friday"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			body := testutil.CakeOrderBody()
			body["pickup_date"] = tt.pickupDate

			code, response := suite.do(http.MethodPost, "/api/v1/orders", suite.customer, body)
			assert.Equal(suite.T(), http.StatusBadRequest, code)
			assert.Equal(suite.T(), "VALIDATION_ERROR", testutil.ErrorCode(response))
			if tt.message != "" {
				errData := response["error"].(map[string]interface{})
				assert.Contains(suite.T(), errData["message"], tt.message)
			}
		})
	}

	var count int64
	suite.app.DB.Model(&models.Order{}).Count(&count)
	assert.Equal(suite.T(), int64(0), count)
}

func (suite *OrderIntegrationTestSuite) TestStatusWorkflow_StaffHappyPath() {
	orderID := testutil.ID(suite.placeOrder(suite.customer))

	for _, status := range []string{"confirmed", "in_preparation", "ready_for_pickup", "completed"} {
		code, response := suite.patchStatus(orderID, suite.staff, map[string]interface{}{"status": status, "note": "moved to " + status})
		suite.Require().Equal(http.StatusOK, code, response)
		event := response["event"].(map[string]interface{})
		assert.Equal(suite.T(), status, event["new_status"])
		assert.Equal(suite.T(), "staff", event["actor_kind"])
	}

	var order models.Order
	suite.Require().NoError(suite.app.DB.First(&order, orderID).Error)
	assert.Equal(suite.T(), models.OrderStatusCompleted, order.Status)
	assert.NotNil(suite.T(), order.CompletedAt)

	code, response := suite.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/events", orderID), suite.customer, nil)
	suite.Require().Equal(http.StatusOK, code)
	assert.Len(suite.T(), response["data"], 4)
}

func (suite *OrderIntegrationTestSuite) TestStatusWorkflow_NoGoingBack() {
	orderID := testutil.ID(suite.placeOrder(suite.customer))

	code, _ := suite.patchStatus(orderID, suite.staff, map[string]interface{}{"status": "in_preparation"})
	suite.Require().Equal(http.StatusOK, code)

	code, response := suite.patchStatus(orderID, suite.staff, map[string]interface{}{"status": "confirmed"})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", testutil.ErrorCode(response))

	code, response = suite.patchStatus(orderID, suite.staff, map[string]interface{}{"status": "delivered"})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", testutil.ErrorCode(response))
}

func (suite *OrderIntegrationTestSuite) TestCustomerCannotAdvanceOrder() {
	orderID := testutil.ID(suite.placeOrder(suite.customer))

	code, response := suite.patchStatus(orderID, suite.customer, map[string]interface{}{"status": "confirmed"})
	assert.Equal(suite.T(), http.StatusForbidden, code)
	assert.Equal(suite.T(), "FORBIDDEN", testutil.ErrorCode(response))

	code, _ = suite.patchStatus(orderID, suite.customer, map[string]interface{}{"payment_status": "fully_paid"})
	assert.Equal(suite.T(), http.StatusForbidden, code)

	var events int64
	suite.app.DB.Model(&models.OrderStatusEvent{}).Count(&events)
	assert.Equal(suite.T(), int64(0), events)
}

func (suite *OrderIntegrationTestSuite) TestCustomerCancelAttribution() {
	suite.Run("plain cancel is a system move", func() {
		orderID := testutil.ID(suite.placeOrder(suite.customer))

		code, response := suite.patchStatus(orderID, suite.customer, map[string]interface{}{"status": "cancelled"})
		suite.Require().Equal(http.StatusOK, code, response)
		event := response["event"].(map[string]interface{})
		assert.Equal(suite.T(), "system", event["actor_kind"])
		assert.Equal(suite.T(), float64(suite.customer.ID), event["actor_id"])
	})

	suite.Run("cancel with a pickup change is the customer's", func() {
		orderID := testutil.ID(suite.placeOrder(suite.customer))

		code, response := suite.patchStatus(orderID, suite.customer, map[string]interface{}{"status": "cancelled", "pickup_time": "15:00"})
		suite.Require().Equal(http.StatusOK, code, response)
		event := response["event"].(map[string]interface{})
		assert.Equal(suite.T(), "customer", event["actor_kind"])
		assert.Equal(suite.T(), "15:00", testutil.Data(response)["pickup_time"])
	})
}

func (suite *OrderIntegrationTestSuite) TestCustomerEditsNotesWithoutEvent() {
	orderID := testutil.ID(suite.placeOrder(suite.customer))

	code, response := suite.patchStatus(orderID, suite.customer, map[string]interface{}{"notes": "Write 'Happy 30th' instead"})
	suite.Require().Equal(http.StatusOK, code, response)
	assert.Nil(suite.T(), response["event"])
	assert.Equal(suite.T(), "Write 'Happy 30th' instead", testutil.Data(response)["notes"])

	var events int64
	suite.app.DB.Model(&models.OrderStatusEvent{}).Where("order_id = ?", orderID).Count(&events)
	assert.Equal(suite.T(), int64(0), events)
}

func (suite *OrderIntegrationTestSuite) TestCancelledOrdersTakeNoPayments() {
	orderID := testutil.ID(suite.placeOrder(suite.customer))
	code, _ := suite.patchStatus(orderID, suite.customer, map[string]interface{}{"status": "cancelled"})
	suite.Require().Equal(http.StatusOK, code)

	code, response := suite.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/payments", orderID), suite.customer,
		map[string]interface{}{"amount": "1300.00", "kind": "deposit", "method": "cash"})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", testutil.ErrorCode(response))
}

func TestOrderIntegrationSuite(t *testing.T) {
	suite.Run(t, new(OrderIntegrationTestSuite))
}
