package services

import (
	"context"
	"fmt"
	"sync"
)

// MockPaymentGateway is an in-memory PaymentGateway for testing
type MockPaymentGateway struct {
	Requests        []CheckoutSessionRequest
	SessionsByPI    map[string]string
	CreateErr       error
	LookupErr       error
	LookupCalls     int
	sessionSequence int
	mu              sync.Mutex
}

// NewMockPaymentGateway creates an empty mock gateway
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{SessionsByPI: make(map[string]string)}
}

// CreateCheckoutSession records the request and returns a fake session
func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	m.sessionSequence++
	id := fmt.Sprintf("cs_test_%d", m.sessionSequence)
	return &CheckoutSession{
		ID:           id,
		ClientSecret: id + "_secret",
		URL:          "https://checkout.stripe.test/pay/" + id,
	}, nil
}

// SessionIDForPaymentIntent returns the session registered for the payment intent
func (m *MockPaymentGateway) SessionIDForPaymentIntent(ctx context.Context, paymentIntentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LookupCalls++
	if m.LookupErr != nil {
		return "", m.LookupErr
	}
	return m.SessionsByPI[paymentIntentID], nil
}
