package controllers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/services"
	"github.com/memorialqr/memorial-qr-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutBody(packageID string, addOnIDs ...string) map[string]interface{} {
	return map[string]interface{}{
		"package_id":   packageID,
		"addon_ids":    addOnIDs,
		"plaque_color": "silver",
		"customer": map[string]interface{}{
			"name":  "Jane Doe",
			"email": "jane@example.com",
		},
		"shipping_address": shippingBody(),
	}
}

func TestGetCatalog(t *testing.T) {
	router, _ := setupRouter(t)

	w := perform(router, testutil.JSONRequest(t, http.MethodGet, "/api/v1/catalog", nil, ""))
	require.Equal(t, http.StatusOK, w.Code)

	data := dataMap(t, testutil.DecodeResponse(t, w))
	packages := data["packages"].([]interface{})
	require.Len(t, packages, 3)
	first := packages[0].(map[string]interface{})
	assert.Equal(t, "basic", first["id"])
	assert.Equal(t, float64(3989), first["price_cents"])
	assert.Len(t, data["addons"], 3)
}

func TestCreateCheckout(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]interface{}
		gatewayErr     error
		expectedStatus int
		expectedError  string
		expectedAmount float64
	}{
		{
			name:           "Package only",
			body:           checkoutBody("basic"),
			expectedStatus: http.StatusOK,
			expectedAmount: 3989,
		},
		{
			name:           "Package with add-ons, unknown add-on skipped",
			body:           checkoutBody("premium", services.AddOnGiftBox, "engraving"),
			expectedStatus: http.StatusOK,
			expectedAmount: 7989 + 999,
		},
		{
			name:           "Unknown package",
			body:           checkoutBody("diamond"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "UNKNOWN_PACKAGE",
		},
		{
			name: "Invalid postal code",
			body: func() map[string]interface{} {
				body := checkoutBody("basic")
				shipping := shippingBody()
				shipping["zip"] = "!"
				body["shipping_address"] = shipping
				return body
			}(),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name: "Missing customer email",
			body: func() map[string]interface{} {
				body := checkoutBody("basic")
				body["customer"] = map[string]interface{}{"name": "Jane Doe"}
				return body
			}(),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Provider failure",
			body:           checkoutBody("basic"),
			gatewayErr:     errors.New("stripe unavailable"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "CHECKOUT_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := setupRouter(t)
			svc.Gateway.CreateErr = tt.gatewayErr

			w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/checkout", tt.body, ""))
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			response := testutil.DecodeResponse(t, w)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, testutil.ErrorCode(response))
				if tt.gatewayErr == nil {
					assert.Empty(t, svc.Gateway.Requests, "invalid carts must not reach the provider")
				}
				return
			}

			data := dataMap(t, response)
			assert.Equal(t, "cs_test_1", data["session_id"])
			assert.Equal(t, "cs_test_1_secret", data["client_secret"])
			assert.Equal(t, tt.expectedAmount, data["amount_cents"])

			// No order exists until the payment webhook arrives
			var count int64
			require.NoError(t, svc.DB.Model(&models.Order{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestSquarePayment(t *testing.T) {
	router, svc := setupRouter(t)

	body := checkoutBody("basic", services.AddOnGiftBox)
	body["source_id"] = "cnon:card-nonce-ok"
	body["memorial_first_name"] = "Mary"
	body["memorial_last_name"] = "Smith"

	w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/checkout/square/payment", body, ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := dataMap(t, testutil.DecodeResponse(t, w))
	assert.Equal(t, models.PaymentStatusCompleted, data["payment_status"])
	assert.Equal(t, models.ProviderSquare, data["payment_provider"])
	assert.Equal(t, float64(3989+999), data["amount_cents"])

	stored, err := svc.Orders.GetOrderByNumber(t.Context(), data["order_number"].(string))
	require.NoError(t, err)
	assert.NotNil(t, stored.MemorialID, "memorial is provisioned when names are given")

	require.Len(t, svc.Square.Payments, 1)
	assert.Equal(t, int64(3989+999), svc.Square.Payments[0].AmountCents)
}

func TestSquarePaymentDeclined(t *testing.T) {
	router, svc := setupRouter(t)
	svc.Square.PaymentErr = &services.SquareError{
		StatusCode: http.StatusPaymentRequired,
		Errors:     []services.SquareAPIError{{Category: "PAYMENT_METHOD_ERROR", Code: "CARD_DECLINED"}},
	}

	body := checkoutBody("basic")
	body["source_id"] = "cnon:card-nonce-declined"

	w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/checkout/square/payment", body, ""))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "PAYMENT_DECLINED", testutil.ErrorCode(testutil.DecodeResponse(t, w)))
}

func TestSquarePaymentRequiresSourceID(t *testing.T) {
	router, svc := setupRouter(t)

	w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/checkout/square/payment", checkoutBody("basic"), ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(testutil.DecodeResponse(t, w)))
	assert.Empty(t, svc.Square.Payments)
}

func TestSquareSubscription(t *testing.T) {
	router, svc := setupRouter(t)

	body := checkoutBody("basic")
	body["source_id"] = "cnon:card-nonce-ok"

	w := perform(router, testutil.JSONRequest(t, http.MethodPost, "/api/v1/checkout/square/subscription", body, ""))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := dataMap(t, testutil.DecodeResponse(t, w))
	assert.Equal(t, models.PaymentStatusPending, data["payment_status"])
	require.NotNil(t, data["subscription_id"])

	order, err := svc.Orders.FindBySubscriptionID(t.Context(), data["subscription_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, data["order_number"], order.OrderNumber)
}
