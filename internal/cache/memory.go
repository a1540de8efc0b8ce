package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/fluentlabs/lernplan/internal/models"
)

// MemoryStore is an in-process artifact store with LRU eviction and lazy
// TTL expiry. Both Get and Put count as use for recency.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front = most recently used
	entries    map[models.Fingerprint]*list.Element

	now func() time.Time
}

type memoryEntry struct {
	fp       models.Fingerprint
	artifact *models.CachedArtifact
}

// NewMemoryStore creates an in-memory store capped at maxEntries.
// A non-positive cap disables eviction.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[models.Fingerprint]*list.Element),
		now:        time.Now,
	}
}

// Get returns the artifact for a fingerprint, or ErrCacheMiss. Expired
// artifacts are removed on access.
func (s *MemoryStore) Get(ctx context.Context, fp models.Fingerprint) (*models.CachedArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[fp]
	if !ok {
		return nil, ErrCacheMiss
	}
	entry := elem.Value.(*memoryEntry)
	if entry.artifact.Expired(s.now()) {
		s.removeLocked(elem)
		return nil, ErrCacheMiss
	}
	s.order.MoveToFront(elem)
	return entry.artifact, nil
}

// Put stores an artifact, evicting the least recently used entry when the
// cap is exceeded.
func (s *MemoryStore) Put(ctx context.Context, artifact *models.CachedArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[artifact.Fingerprint]; ok {
		elem.Value.(*memoryEntry).artifact = artifact
		s.order.MoveToFront(elem)
		return nil
	}

	elem := s.order.PushFront(&memoryEntry{fp: artifact.Fingerprint, artifact: artifact})
	s.entries[artifact.Fingerprint] = elem

	if s.maxEntries > 0 && s.order.Len() > s.maxEntries {
		if oldest := s.order.Back(); oldest != nil {
			s.removeLocked(oldest)
		}
	}
	return nil
}

// Delete removes an artifact if present
func (s *MemoryStore) Delete(ctx context.Context, fp models.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[fp]; ok {
		s.removeLocked(elem)
	}
	return nil
}

// Len reports the number of stored artifacts, including any not yet
// lazily expired.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), nil
}

func (s *MemoryStore) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	s.order.Remove(elem)
	delete(s.entries, entry.fp)
}
