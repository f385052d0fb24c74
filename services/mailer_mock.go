package services

import (
	"context"
	"sync"
)

// MockNotifier records enqueued emails synchronously for testing
type MockNotifier struct {
	emails []Email
	mu     sync.Mutex
}

// NewMockNotifier creates an empty recorder
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Enqueue records the email
func (m *MockNotifier) Enqueue(email Email) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	return true
}

// Emails returns a copy of every recorded email
func (m *MockNotifier) Emails() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.emails))
	copy(out, m.emails)
	return out
}

// ByTag returns recorded emails produced from the given template
func (m *MockNotifier) ByTag(tag string) []Email {
	var out []Email
	for _, e := range m.Emails() {
		if e.Tag == tag {
			out = append(out, e)
		}
	}
	return out
}

// MockSender is an EmailSender that records deliveries
type MockSender struct {
	Err  error
	sent []Email
	mu   sync.Mutex
}

// Send records the email or returns Err
func (s *MockSender) Send(ctx context.Context, email Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, email)
	return nil
}

// Sent returns a copy of every delivered email
func (s *MockSender) Sent() []Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Email, len(s.sent))
	copy(out, s.sent)
	return out
}
