package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/marutilaminates/laminates_backend/utils"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory. Used by tests and STORAGE_PROVIDER=memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]object{}}
}

func (s *MemoryStore) Put(ctx context.Context, data []byte, contentType string, scope string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", utils.StorageFailed("put", scope, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := NewObjectPath(scope, contentType)
	for {
		if _, taken := s.objects[path]; !taken {
			break
		}
		path = NewObjectPath(scope, contentType)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = object{data: buf, contentType: contentType}
	return path, nil
}

func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.StorageFailed("get", path, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[path]
	if !ok {
		return nil, utils.StorageFailed("get", path, ErrNotExist)
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *MemoryStore) PublicURL(path string) string {
	return utils.BuildObjectAccessURL(path)
}

func (s *MemoryStore) Has(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[path]
	return ok
}

func (s *MemoryStore) ContentType(path string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[path].contentType
}

// Paths lists stored paths in sorted order.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
