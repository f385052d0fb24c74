package services

import "sync"

// MockQRGenerator returns a fake PNG or a configured error, for tests
type MockQRGenerator struct {
	Err      error
	contents []string
	mu       sync.Mutex
}

// Generate records the requested content
func (m *MockQRGenerator) Generate(content string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contents = append(m.contents, content)
	if m.Err != nil {
		return nil, m.Err
	}
	return []byte("PNG:" + content), nil
}

// Contents returns every string a QR code was requested for
func (m *MockQRGenerator) Contents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.contents))
	copy(out, m.contents)
	return out
}
