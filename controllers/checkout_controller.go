package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/services"
)

// CheckoutController serves the catalog and both payment providers' checkout flows
type CheckoutController struct {
	catalog  *services.Catalog
	checkout *services.CheckoutInitiator
	square   *services.SquareCheckout
}

// NewCheckoutController creates a checkout controller
func NewCheckoutController(catalog *services.Catalog, checkout *services.CheckoutInitiator, square *services.SquareCheckout) *CheckoutController {
	return &CheckoutController{catalog: catalog, checkout: checkout, square: square}
}

// GetCatalog handles GET /api/v1/catalog
func (cc *CheckoutController) GetCatalog(c *gin.Context) {
	respondData(c, http.StatusOK, gin.H{
		"packages": cc.catalog.Packages(),
		"addons":   cc.catalog.AddOns(),
	})
}

// CreateCheckout handles POST /api/v1/checkout - opens a hosted Stripe checkout session
func (cc *CheckoutController) CreateCheckout(c *gin.Context) {
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := cc.checkout.CreateCheckoutSession(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "CHECKOUT_ERROR", "Failed to create checkout session")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"session_id":    result.SessionID,
		"client_secret": result.ClientSecret,
		"url":           result.URL,
		"amount_cents":  result.AmountCents,
		"line_items":    result.LineItems,
	})
}

// SquarePayment handles POST /api/v1/checkout/square/payment
func (cc *CheckoutController) SquarePayment(c *gin.Context) {
	var req services.SquareCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := cc.square.Pay(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "PAYMENT_ERROR", "Failed to process payment")
		return
	}

	respondData(c, http.StatusCreated, order)
}

// SquareSubscription handles POST /api/v1/checkout/square/subscription
func (cc *CheckoutController) SquareSubscription(c *gin.Context) {
	var req services.SquareCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := cc.square.Subscribe(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "SUBSCRIPTION_ERROR", "Failed to start subscription")
		return
	}

	respondData(c, http.StatusCreated, order)
}
