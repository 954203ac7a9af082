package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/spherical/pdf2emails/internal/domain"
)

// MemoryUploader keeps objects in process memory. It serves providers that
// read image bytes directly and tests that must not touch the network.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

// NewMemoryUploader creates an empty in-memory store
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{objects: make(map[string][]byte)}
}

// Upload copies data under bucket/object and returns a mem:// locator
func (m *MemoryUploader) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.TransportError("upload canceled", err)
	}
	if bucket == "" || object == "" {
		return "", domain.TransportError("bucket and object are required", nil)
	}

	loc := memLocator(bucket, object)
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[loc] = buf
	m.uploads++
	m.mu.Unlock()

	return loc, nil
}

// Delete removes an object
func (m *MemoryUploader) Delete(ctx context.Context, bucket, object string) error {
	m.mu.Lock()
	delete(m.objects, memLocator(bucket, object))
	m.mu.Unlock()
	return nil
}

// Get returns the bytes stored at a locator
func (m *MemoryUploader) Get(locator string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[locator]
	return data, ok
}

// Len returns the number of stored objects
func (m *MemoryUploader) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Uploads returns the total number of Upload calls that succeeded
func (m *MemoryUploader) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

func memLocator(bucket, object string) string {
	return fmt.Sprintf("mem://%s/%s", bucket, object)
}
