package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const mockBlobBaseURL = "https://test-bucket.s3.us-east-1.amazonaws.com"

// MockBlobStore is an in-memory BlobStore for testing
type MockBlobStore struct {
	files     map[string][]byte // map of key to content
	putCalls  int
	PutErr    error
	DeleteErr error
	// OnPut runs before each object is stored
	OnPut func(key string)
	mu    sync.RWMutex
}

// NewMockBlobStore creates a new mock blob store
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		files: make(map[string][]byte),
	}
}

// Put simulates uploading a public object
func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putCalls++
	if m.OnPut != nil {
		m.OnPut(key)
	}
	if m.PutErr != nil {
		return "", m.PutErr
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[key] = stored

	return fmt.Sprintf("%s/%s", mockBlobBaseURL, key), nil
}

// Delete simulates deleting an object by its public URL
func (m *MockBlobStore) Delete(ctx context.Context, publicURL string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	key, err := KeyFromURL(mockBlobBaseURL, publicURL)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[key]; !ok {
		return errors.New("object not found in mock storage: " + key)
	}
	delete(m.files, key)
	return nil
}

// PutCalls returns how many times Put was invoked, including failed attempts
func (m *MockBlobStore) PutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.putCalls
}

// Files returns a copy of everything stored (for testing assertions)
func (m *MockBlobStore) Files() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		files[k] = v
	}
	return files
}

// FileExists checks if a key exists in mock storage
func (m *MockBlobStore) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[key]
	return exists
}
