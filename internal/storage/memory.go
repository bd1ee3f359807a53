package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps objects in process memory. It backs tests and the "memory" backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// FailPut, when set, is returned by PutObject.
	FailPut error
	// FailGet, when set, is returned by GetObject.
	FailGet error
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailPut != nil {
		return s.FailPut
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("put %s: read %d bytes, want %d", key, len(data), size)
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: opts.ContentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetObject(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	if s.FailGet != nil {
		return nil, ObjectInfo{}, s.FailGet
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	info := ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (s *MemoryStore) RemoveObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len reports how many objects are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
