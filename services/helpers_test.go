package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/memorialqr/memorial-qr-api/config"
	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testStripeSecret = "whsec_test_secret"
	testSquareKey    = "square_signature_key"
	testSquareURL    = "https://api.memorialqr.test/api/v1/webhooks/square"
	testSiteURL      = "https://memorialqr.test"
	testAdminEmail   = "admin@memorialqr.test"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
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

// testEnv wires every service against one in-memory database and in-memory doubles
type testEnv struct {
	db        *gorm.DB
	notifier  *MockNotifier
	blobs     *MockBlobStore
	qr        *MockQRGenerator
	gateway   *MockPaymentGateway
	square    *MockSquareClient
	catalog   *Catalog
	orders    *OrderStore
	memorials *MemorialProvisioner
	content   *ContentService
	checkout  *CheckoutInitiator
	webhooks  *WebhookReceiver
	referrals *ReferralService
	squarePay *SquareCheckout
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       setupServiceTestDB(t),
		notifier: NewMockNotifier(),
		blobs:    NewMockBlobStore(),
		qr:       &MockQRGenerator{},
		gateway:  NewMockPaymentGateway(),
		square:   &MockSquareClient{},
		catalog:  DefaultCatalog(),
	}
	env.orders = NewOrderStore(env.db, env.notifier, testSiteURL, testAdminEmail)
	env.memorials = NewMemorialProvisioner(env.db, env.blobs, env.qr, env.orders, env.notifier, testSiteURL)
	env.content = NewContentService(env.db, env.blobs, env.memorials, env.catalog)
	env.checkout = NewCheckoutInitiator(env.catalog, env.gateway, testSiteURL+"/success", testSiteURL+"/cancel")
	env.webhooks = NewWebhookReceiver(env.db, env.orders, env.memorials, env.gateway, env.notifier, env.catalog, WebhookConfig{
		StripeWebhookSecret:       testStripeSecret,
		SquareWebhookSignatureKey: testSquareKey,
		SquareWebhookURL:          testSquareURL,
	})
	env.referrals = NewReferralService(env.db, env.notifier)
	env.squarePay = NewSquareCheckout(env.db, env.catalog, env.square, env.orders, env.memorials)
	return env
}

func testShipping() models.ShippingAddress {
	return models.ShippingAddress{
		Line1: "12 Cedar Lane",
		City:  "Portland",
		State: "OR",
		Zip:   "97201",
	}
}

func testOrderInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerName:    "Jane Doe",
		CustomerEmail:   "jane@example.com",
		ShippingAddress: testShipping(),
		AmountCents:     3989,
		ProductType:     "plaque",
		ProductName:     "Silver Plaque",
		PackageID:       "basic",
	}
}

func testCheckoutRequest() CheckoutRequest {
	return CheckoutRequest{
		PackageID:   "basic",
		PlaqueColor: "silver",
		Customer:    CustomerInfo{Name: "Jane Doe", Email: "jane@example.com", Phone: "555-0100"},
		Shipping:    testShipping(),
	}
}

// fixedClock returns a clock frozen at t
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// signedStripeEvent builds a Stripe event around object and signs it with the test secret
func signedStripeEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) ([]byte, string) {
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
		Secret:  testStripeSecret,
	})
	return signed.Payload, signed.Header
}

// signedSquareEvent builds a Square event and signs it with the test key
func signedSquareEvent(t *testing.T, eventID, eventType string, object map[string]interface{}) ([]byte, string) {
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
	return payload, signSquarePayload(testSquareKey, testSquareURL, payload)
}

// signSquarePayload signs the way Square does: base64(HMAC-SHA256(key, url + body))
func signSquarePayload(key, notificationURL string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func checkoutSessionObject(sessionID, paymentIntentID string, metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":             sessionID,
		"object":         "checkout.session",
		"payment_status": "paid",
		"payment_intent": paymentIntentID,
		"amount_total":   3989,
		"metadata":       metadata,
		"customer_details": map[string]interface{}{
			"email": "jane@example.com",
			"name":  "Jane Doe",
		},
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return count
}
