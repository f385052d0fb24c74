package services

import (
	"context"
	"fmt"
	"sync"
)

// MockUserInfoProvider returns canned profiles keyed by access token
type MockUserInfoProvider struct {
	Users map[string]*Auth0UserInfo
	Err   error
	mu    sync.Mutex
}

// NewMockUserInfoProvider creates an empty provider
func NewMockUserInfoProvider() *MockUserInfoProvider {
	return &MockUserInfoProvider{Users: map[string]*Auth0UserInfo{}}
}

// Add registers the profile returned for accessToken
func (m *MockUserInfoProvider) Add(accessToken string, info *Auth0UserInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[accessToken] = info
}

// GetUserInfo returns the registered profile or an error for unknown tokens
func (m *MockUserInfoProvider) GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	info, ok := m.Users[accessToken]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", ErrUserInfoUnauthorized)
	}
	return info, nil
}
