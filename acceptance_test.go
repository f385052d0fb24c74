package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/memorialqr/memorial-qr-api/services"
	"github.com/memorialqr/memorial-qr-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServerStartup is an acceptance test that verifies the server can start
func TestServerStartup(t *testing.T) {
	router, _ := setupTestRouter(t)
	assert.NotNil(t, router, "Router should be initialized")
}

// TestAPIHealthEndpointAcceptance is an end-to-end acceptance test over a real listener
func TestAPIHealthEndpointAcceptance(t *testing.T) {
	router, _ := setupTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/health", server.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "Health endpoint should return 200 OK")

	var response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.True(t, response.Success, "Response should indicate success")
	assert.Equal(t, "Memorial QR API is running", response.Message)
}

// TestHealthEndpointPerformance verifies the health endpoint answers quickly
func TestHealthEndpointPerformance(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	start := time.Now()
	router.ServeHTTP(w, req)
	duration := time.Since(start)

	assert.Less(t, duration, 100*time.Millisecond,
		"Health endpoint should respond in less than 100ms")
}

// TestPurchaseToMemorialAcceptance walks a buyer from checkout to a public memorial page
func TestPurchaseToMemorialAcceptance(t *testing.T) {
	router, svc := setupTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	post := func(path string, body []byte, headers map[string]string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, server.URL+path, bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	cart := testutil.CheckoutRequest("basic", services.AddOnGiftBox)
	cart.MemorialFirstName = "Mary"
	cart.MemorialLastName = "Smith"
	cartJSON, err := json.Marshal(cart)
	require.NoError(t, err)

	resp := post("/api/v1/checkout", cartJSON, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var checkout struct {
		Data struct {
			SessionID   string `json:"session_id"`
			AmountCents int64  `json:"amount_cents"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&checkout))
	assert.Equal(t, int64(3989+999), checkout.Data.AmountCents)

	// Stripe echoes the session's metadata back in the completion event
	metadata := svc.Gateway.Requests[0].Metadata
	payload, sig := testutil.SignedStripeEvent(t, "evt_acceptance", services.StripeCheckoutSessionCompleted,
		testutil.CheckoutSessionObject(checkout.Data.SessionID, "pi_acceptance", checkout.Data.AmountCents, metadata))
	resp = post("/api/v1/webhooks/stripe", payload, map[string]string{"Stripe-Signature": sig})
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	order, err := svc.Orders.FindBySessionID(t.Context(), checkout.Data.SessionID)
	require.NoError(t, err)
	require.NotNil(t, order.MemorialID)

	page, err := http.Get(server.URL + "/api/v1/memorials/" + order.MemorialID.String())
	require.NoError(t, err)
	defer page.Body.Close()
	require.Equal(t, http.StatusOK, page.StatusCode)

	var overview struct {
		Data struct {
			Memorial struct {
				FullName  string  `json:"full_name"`
				QRCodeURL *string `json:"qr_code_url"`
			} `json:"memorial"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(page.Body).Decode(&overview))
	assert.Equal(t, "Mary Smith", overview.Data.Memorial.FullName)
	assert.NotNil(t, overview.Data.Memorial.QRCodeURL)
}
