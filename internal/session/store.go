package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/booking"
)

// DefaultSnapshotTTL bounds how long a disconnected visitor can resume a dialogue
const DefaultSnapshotTTL = 24 * time.Hour

// SnapshotStore persists booking dialogues by session id
type SnapshotStore interface {
	Save(ctx context.Context, id string, snap booking.Snapshot) error
	Load(ctx context.Context, id string) (booking.Snapshot, bool, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps snapshots in process memory
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates a store whose entries expire after ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Save(_ context.Context, id string, snap booking.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{data: data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (booking.Snapshot, bool, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok && !s.now().Before(entry.expires) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return booking.Snapshot{}, false, nil
	}
	var snap booking.Snapshot
	if err := json.Unmarshal(entry.data, &snap); err != nil {
		return booking.Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}
