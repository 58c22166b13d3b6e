package azure

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrMediaNotFound is returned by Fetch for unknown references
var ErrMediaNotFound = errors.New("media not found")

type storedMedia struct {
	contentType string
	data        []byte
}

// MemoryMediaStore keeps media in memory. It backs local development when no
// storage account is configured; the oldest entries are evicted past maxItems.
type MemoryMediaStore struct {
	maxItems int
	logger   *zap.Logger

	mu    sync.RWMutex
	items map[string]storedMedia
	order []string
}

// NewMemoryMediaStore creates an in-memory store. maxItems <= 0 means unbounded.
func NewMemoryMediaStore(maxItems int, logger *zap.Logger) *MemoryMediaStore {
	return &MemoryMediaStore{
		maxItems: maxItems,
		logger:   logger,
		items:    make(map[string]storedMedia),
	}
}

// Archive stores a copy of data under folder/name
func (s *MemoryMediaStore) Archive(ctx context.Context, folder, name, contentType string, data []byte) (string, error) {
	ref, err := BlobName(folder, name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[ref]; !exists {
		s.order = append(s.order, ref)
	}
	s.items[ref] = storedMedia{contentType: contentType, data: append([]byte(nil), data...)}

	for s.maxItems > 0 && len(s.order) > s.maxItems {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.items, evicted)
	}

	if s.logger != nil {
		s.logger.Debug("media stored in memory",
			zap.String("ref", ref),
			zap.Int("size_bytes", len(data)),
		)
	}
	return ref, nil
}

// Fetch returns a stored file
func (s *MemoryMediaStore) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[ref]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrMediaNotFound, ref)
	}
	return append([]byte(nil), item.data...), item.contentType, nil
}

// Len returns the number of stored files
func (s *MemoryMediaStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
