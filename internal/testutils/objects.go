package testutils

import (
	"context"
	"sync"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

var _ core.ObjectClient = (*MemoryObjects)(nil)

// MemoryObjects is an in-memory ObjectClient keyed by "bucket/key".
type MemoryObjects struct {
	mu        sync.Mutex
	Objects   map[string][]byte
	UploadErr error
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{Objects: map[string][]byte{}}
}

func (m *MemoryObjects) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.Objects[bucket+"/"+key] = append([]byte(nil), data...)
	return "memory://" + bucket + "/" + key, nil
}

func (m *MemoryObjects) DeleteFile(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, bucket+"/"+key)
	return nil
}

// Len is the number of stored objects.
func (m *MemoryObjects) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
