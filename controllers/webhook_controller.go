package controllers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/services"
)

const maxWebhookBodyBytes = 1 << 16

// WebhookController receives payment provider callbacks. Responses follow the providers'
// retry semantics: 2xx acknowledges, 400 is permanent, 5xx asks for a retry.
type WebhookController struct {
	receiver *services.WebhookReceiver
}

// NewWebhookController creates a webhook controller
func NewWebhookController(receiver *services.WebhookReceiver) *WebhookController {
	return &WebhookController{receiver: receiver}
}

// StripeWebhook handles POST /api/v1/webhooks/stripe
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}

	result, err := wc.receiver.HandleStripe(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	wc.respond(c, result, err)
}

// SquareWebhook handles POST /api/v1/webhooks/square
func (wc *WebhookController) SquareWebhook(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}

	result, err := wc.receiver.HandleSquare(c.Request.Context(), payload, c.GetHeader("X-Square-Hmacsha256-Signature"))
	wc.respond(c, result, err)
}

func (wc *WebhookController) respond(c *gin.Context, result *services.WebhookResult, err error) {
	switch {
	case err == nil:
		body := gin.H{"received": true}
		if result.Duplicate {
			body["duplicate"] = true
		}
		c.JSON(http.StatusOK, body)
	case errors.Is(err, services.ErrInvalidSignature):
		log.Printf("Rejected webhook with invalid signature: %v", err)
		respondError(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature verification failed")
	case errors.Is(err, services.ErrInvalidPayload):
		log.Printf("Rejected malformed webhook: %v", err)
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Webhook payload could not be processed")
	case errors.Is(err, services.ErrSubscriptionOrderPending):
		log.Printf("Deferring webhook until its order exists: %v", err)
		respondError(c, http.StatusInternalServerError, "ORDER_NOT_READY", "Order for this subscription is not recorded yet")
	case errors.Is(err, services.ErrWebhookSecretMissing):
		respondError(c, http.StatusInternalServerError, "WEBHOOK_NOT_CONFIGURED", "Webhook secret is not configured")
	default:
		log.Printf("Webhook processing failed: %v", err)
		respondError(c, http.StatusInternalServerError, "WEBHOOK_ERROR", "Failed to process webhook")
	}
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Failed to read request body")
		return nil, false
	}
	return payload, true
}
