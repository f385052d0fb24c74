package testutil

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/memorialqr/memorial-qr-api/config"
	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/services"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Settings shared by every suite
const (
	StripeWebhookSecret = "whsec_test_secret"
	SquareSignatureKey  = "square_signature_key"
	SquareWebhookURL    = "https://api.memorialqr.test/api/v1/webhooks/square"
	SiteURL             = "https://memorialqr.test"
	AdminEmail          = "admin@memorialqr.test"
)

// NewTestDB opens a migrated in-memory SQLite database
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// every pooled connection to :memory: would be a separate empty database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// Services is every service wired against one database and in-memory doubles for the
// external providers
type Services struct {
	DB       *gorm.DB
	Notifier *services.MockNotifier
	Blobs    *services.MockBlobStore
	QR       *services.MockQRGenerator
	Gateway  *services.MockPaymentGateway
	Square   *services.MockSquareClient
	UserInfo *services.MockUserInfoProvider

	Catalog   *services.Catalog
	Orders    *services.OrderStore
	Memorials *services.MemorialProvisioner
	Content   *services.ContentService
	Checkout  *services.CheckoutInitiator
	Webhooks  *services.WebhookReceiver
	Referrals *services.ReferralService
	SquarePay *services.SquareCheckout
	Users     *services.UserService
}

// NewServices builds the service graph the same way main does
func NewServices(t *testing.T) *Services {
	t.Helper()
	return NewServicesWithDB(NewTestDB(t))
}

// NewServicesWithDB builds the service graph over an existing database
func NewServicesWithDB(db *gorm.DB) *Services {
	s := &Services{
		DB:       db,
		Notifier: services.NewMockNotifier(),
		Blobs:    services.NewMockBlobStore(),
		QR:       &services.MockQRGenerator{},
		Gateway:  services.NewMockPaymentGateway(),
		Square:   &services.MockSquareClient{},
		UserInfo: services.NewMockUserInfoProvider(),
		Catalog:  services.DefaultCatalog(),
	}
	s.Orders = services.NewOrderStore(db, s.Notifier, SiteURL, AdminEmail)
	s.Memorials = services.NewMemorialProvisioner(db, s.Blobs, s.QR, s.Orders, s.Notifier, SiteURL)
	s.Content = services.NewContentService(db, s.Blobs, s.Memorials, s.Catalog)
	s.Checkout = services.NewCheckoutInitiator(s.Catalog, s.Gateway, SiteURL+"/checkout/success", SiteURL+"/checkout/cancel")
	s.Webhooks = services.NewWebhookReceiver(db, s.Orders, s.Memorials, s.Gateway, s.Notifier, s.Catalog, services.WebhookConfig{
		StripeWebhookSecret:       StripeWebhookSecret,
		SquareWebhookSignatureKey: SquareSignatureKey,
		SquareWebhookURL:          SquareWebhookURL,
	})
	s.Referrals = services.NewReferralService(db, s.Notifier)
	s.SquarePay = services.NewSquareCheckout(db, s.Catalog, s.Square, s.Orders, s.Memorials)
	s.Users = services.NewUserService(db, s.UserInfo)
	return s
}

// SignedStripeEvent wraps object in a Stripe event envelope signed with StripeWebhookSecret
func SignedStripeEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2024-06-20",
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": object},
	})
	if err != nil {
		t.Fatalf("Failed to encode stripe event: %v", err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  StripeWebhookSecret,
	})
	return signed.Payload, signed.Header
}

// SignedSquareEvent builds a Square event signed with SquareSignatureKey
func SignedSquareEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"merchant_id": "MERCHANT",
		"event_id":    eventID,
		"type":        eventType,
		"data": map[string]interface{}{
			"type":   "invoice",
			"id":     "obj_" + eventID,
			"object": object,
		},
	})
	if err != nil {
		t.Fatalf("Failed to encode square event: %v", err)
	}
	return payload, SignSquarePayload(SquareSignatureKey, SquareWebhookURL, payload)
}

// SignSquarePayload produces the x-square-hmacsha256-signature header Square sends:
// base64(HMAC-SHA256(key, notificationURL + body))
func SignSquarePayload(key, notificationURL string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// JSONRequest builds a request with a JSON body and, when userID is set, a bearer token
// understood by HeaderAuth
func JSONRequest(t *testing.T, method, path string, body interface{}, userID string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+userID)
	}
	return req
}

// DecodeResponse unmarshals a JSON response body into a map
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Response is not valid JSON: %v (%s)", err, w.Body.String())
	}
	return response
}

// ErrorCode extracts error.code from an error envelope
func ErrorCode(response map[string]interface{}) string {
	errData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errData["code"].(string)
	return code
}

// CheckoutSessionObject is a paid Stripe checkout session carrying metadata
func CheckoutSessionObject(sessionID, paymentIntentID string, amountCents int64, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"payment_status": "paid",
		"payment_intent": paymentIntentID,
		"amount_total":   amountCents,
		"metadata":       metadata,
		"customer_details": map[string]interface{}{
			"email": "jane@example.com",
			"name":  "Jane Doe",
		},
	}
}

// CheckoutRequest is a valid single-package cart
func CheckoutRequest(packageID string, addOnIDs ...string) services.CheckoutRequest {
	return services.CheckoutRequest{
		PackageID:   packageID,
		AddOnIDs:    addOnIDs,
		PlaqueColor: "silver",
		Customer:    services.CustomerInfo{Name: "Jane Doe", Email: "jane@example.com", Phone: "555-0100"},
		Shipping: models.ShippingAddress{
			Line1: "12 Cedar Lane",
			City:  "Portland",
			State: "OR",
			Zip:   "97201",
		},
	}
}

// CheckoutMetadata is the metadata a checkout session for req carries
func CheckoutMetadata(t *testing.T, catalog *services.Catalog, req services.CheckoutRequest) map[string]string {
	t.Helper()

	quote, err := catalog.Quote(req.PackageID, req.AddOnIDs)
	if err != nil {
		t.Fatalf("Failed to quote cart: %v", err)
	}
	return services.CheckoutMetadata(req, quote)
}
