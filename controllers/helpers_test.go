package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/services"
	"github.com/memorialqr/memorial-qr-api/tests/testutil"
	"github.com/stretchr/testify/require"
)

const (
	ownerID   = "auth0|owner"
	visitorID = "auth0|visitor"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupRouter mounts every route over a fresh in-memory service graph
func setupRouter(t *testing.T) (*gin.Engine, *testutil.Services) {
	t.Helper()

	svc := testutil.NewServices(t)
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), &Dependencies{
		Catalog:   svc.Catalog,
		Orders:    svc.Orders,
		Checkout:  svc.Checkout,
		SquarePay: svc.SquarePay,
		Webhooks:  svc.Webhooks,
		Memorials: svc.Memorials,
		Content:   svc.Content,
		Referrals: svc.Referrals,
		Users:     svc.Users,
	}, testutil.HeaderAuth())
	return router, svc
}

func perform(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func shippingBody() map[string]interface{} {
	return map[string]interface{}{
		"line1": "12 Cedar Lane",
		"city":  "Portland",
		"state": "OR",
		"zip":   "97201",
	}
}

func createOwnedMemorial(t *testing.T, svc *testutil.Services, userID string) *models.Memorial {
	t.Helper()

	owner := userID
	memorial, err := svc.Memorials.CreateMemorial(t.Context(), services.CreateMemorialInput{
		FirstName: "Mary",
		LastName:  "Smith",
		OwnerID:   &owner,
	})
	require.NoError(t, err)
	return memorial
}

func dataMap(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()

	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", response)
	return data
}
