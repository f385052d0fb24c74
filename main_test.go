package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/config"
	"github.com/memorialqr/memorial-qr-api/services"
	"github.com/memorialqr/memorial-qr-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthCheck is a unit test for the healthCheck handler function
func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	healthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code, "Expected status code 200")

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err, "Response should be valid JSON")

	assert.Equal(t, true, response["success"], "Expected success to be true")
	assert.Equal(t, "Memorial QR API is running", response["message"], "Expected correct message")
}

// TestHealthCheckResponseFormat tests the exact JSON format
func TestHealthCheckResponseFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	healthCheck(c)

	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response, 2, "Response should have exactly 2 fields")
	assert.Contains(t, response, "success")
	assert.Contains(t, response, "message")
}

func TestDatabaseStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)

	router := gin.New()
	router.GET("/database/status", databaseStatus(db))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/database/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Success bool     `json:"success"`
		Tables  []string `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Success)
	assert.Contains(t, response.Tables, "orders")
	assert.Contains(t, response.Tables, "memorials")
	assert.Contains(t, response.Tables, "webhook_events")
}

func TestDatabaseStatusConnectionFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	router := gin.New()
	router.GET("/database/status", databaseStatus(db))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/database/status", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "DATABASE_CONNECTION_ERROR", testutil.ErrorCode(testutil.DecodeResponse(t, w)))
}

func TestBuildDependenciesWithoutSquare(t *testing.T) {
	cfg := &config.Config{
		SiteURL:          testutil.SiteURL,
		Auth0Domain:      "test.auth0.com",
		StripeSuccessURL: testutil.SiteURL + "/checkout/success",
		StripeCancelURL:  testutil.SiteURL + "/checkout",
	}
	deps := buildDependencies(cfg, testutil.NewTestDB(t), services.NewMockBlobStore(), services.NewMockNotifier())

	require.NotNil(t, deps.SquarePay)
	_, err := deps.SquarePay.Pay(t.Context(), services.SquareCheckoutRequest{
		CheckoutRequest: testutil.CheckoutRequest("basic"),
		SourceID:        "cnon:card-nonce-ok",
	})
	assert.True(t, errors.Is(err, services.ErrProviderNotConfigured))
}
