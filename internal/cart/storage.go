package cart

import (
	"context"
	"sync"

	"tiemao/storefront/internal/domain"
)

// Storage is the single read/write slot holding one serialized cart document
// per key. A missing slot reads as (nil, nil).
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, doc []byte) error
}

// Broadcaster carries the change notification every cart mutation emits, so
// other independently-rendered views (the badge) stay consistent without
// polling. Delivery is best-effort; a cross-tab race can lose an update and
// that is an accepted limitation.
type Broadcaster interface {
	Publish(ctx context.Context, key string, snapshot domain.CartSnapshot) error
}

// MemoryStorage backs dev mode and tests. It implements both the slot and
// the broadcast channel; subscribers receive snapshots on a buffered channel
// and slow subscribers are skipped rather than blocking a mutation.
type MemoryStorage struct {
	mu          sync.RWMutex
	docs        map[string][]byte
	subscribers map[string][]chan domain.CartSnapshot
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		docs:        make(map[string][]byte),
		subscribers: make(map[string][]chan domain.CartSnapshot),
	}
}

func (s *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	dup := make([]byte, len(doc))
	copy(dup, doc)
	return dup, nil
}

func (s *MemoryStorage) Save(_ context.Context, key string, doc []byte) error {
	dup := make([]byte, len(doc))
	copy(dup, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = dup
	return nil
}

func (s *MemoryStorage) Publish(_ context.Context, key string, snapshot domain.CartSnapshot) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subscribers[key] {
		select {
		case ch <- snapshot:
		default:
		}
	}
	return nil
}

// Subscribe registers a badge-style listener for one cart slot.
func (s *MemoryStorage) Subscribe(key string) <-chan domain.CartSnapshot {
	ch := make(chan domain.CartSnapshot, 8)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[key] = append(s.subscribers[key], ch)
	return ch
}
