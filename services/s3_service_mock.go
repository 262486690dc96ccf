package services

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type mockObject struct {
	content     []byte
	contentType string
	metadata    map[string]string
}

// MockS3Service is an in-memory bucket for tests
type MockS3Service struct {
	mu      sync.RWMutex
	objects map[string]mockObject
}

// NewMockS3Service creates a new mock S3 service
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{objects: make(map[string]mockObject)}
}

// SetAsMockForTesting sets this mock as the global S3 service instance for testing
func (m *MockS3Service) SetAsMockForTesting() {
	SetS3Service(m)
}

func (m *MockS3Service) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, metadata map[string]string) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(content)) != size {
		return fmt.Errorf("content length %d does not match body of %d bytes", size, len(content))
	}

	m.mu.Lock()
	m.objects[key] = mockObject{content: content, contentType: contentType, metadata: metadata}
	m.mu.Unlock()
	return nil
}

func (m *MockS3Service) PresignGet(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("object not found in mock S3: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

func (m *MockS3Service) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// FileExists checks if a file exists in mock storage
func (m *MockS3Service) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.objects[key]
	return exists
}

// FileCount returns the number of stored files
func (m *MockS3Service) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Object returns what was stored under key.
func (m *MockS3Service) Object(key string) (content []byte, contentType string, metadata map[string]string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.content, obj.contentType, obj.metadata, ok
}
