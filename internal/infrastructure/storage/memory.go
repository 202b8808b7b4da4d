package storage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/kestrelhq/portal/internal/domain"
)

// Object is one stored blob
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStorage keeps artifacts in process memory
type MemoryStorage struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]Object
	now     func() time.Time
	// FailPut makes Put fail for keys it returns true for
	FailPut func(key string) bool
}

var _ domain.ObjectStorage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory bucket
func NewMemoryStorage(bucket string) *MemoryStorage {
	return &MemoryStorage{
		bucket:  bucket,
		objects: make(map[string]Object),
		now:     time.Now,
	}
}

func (m *MemoryStorage) Put(ctx context.Context, key, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailPut != nil && m.FailPut(key) {
		return fmt.Errorf("failed to put object %s: injected failure", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return nil
}

func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", &domain.NotFoundError{What: "object"}
	}
	expires := m.now().Add(ttl).Unix()
	return fmt.Sprintf("https://storage.local/%s/%s?expires=%d", m.bucket, url.PathEscape(key), expires), nil
}

// Get returns the object stored at key
func (m *MemoryStorage) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys lists stored keys in order
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
