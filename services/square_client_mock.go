package services

import (
	"context"
	"fmt"
	"sync"
)

// MockSquareClient is an in-memory SquareClient for testing
type MockSquareClient struct {
	PaymentErr      error
	SubscriptionErr error
	Payments        []SquarePaymentRequest
	Customers       []string
	// OnSubscriptionCreated runs after a subscription is created and before it is returned
	OnSubscriptionCreated func(subscriptionID string)
	sequence              int
	mu                    sync.Mutex
}

func (m *MockSquareClient) next(prefix string) string {
	m.sequence++
	return fmt.Sprintf("%s_%d", prefix, m.sequence)
}

// CreatePayment records the charge
func (m *MockSquareClient) CreatePayment(ctx context.Context, req SquarePaymentRequest) (*SquarePayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Payments = append(m.Payments, req)
	if m.PaymentErr != nil {
		return nil, m.PaymentErr
	}
	return &SquarePayment{ID: m.next("sq_payment"), Status: "COMPLETED"}, nil
}

// CreateCustomer records the customer email
func (m *MockSquareClient) CreateCustomer(ctx context.Context, idempotencyKey, name, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Customers = append(m.Customers, email)
	return m.next("sq_customer"), nil
}

// CreateCard returns a fake card id
func (m *MockSquareClient) CreateCard(ctx context.Context, idempotencyKey, customerID, sourceID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.next("sq_card"), nil
}

// CreateSubscription returns a fake active subscription
func (m *MockSquareClient) CreateSubscription(ctx context.Context, idempotencyKey, customerID, cardID string) (*SquareSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubscriptionErr != nil {
		return nil, m.SubscriptionErr
	}
	subscription := &SquareSubscription{ID: m.next("sq_subscription"), Status: "ACTIVE"}
	if m.OnSubscriptionCreated != nil {
		m.OnSubscriptionCreated(subscription.ID)
	}
	return subscription, nil
}
