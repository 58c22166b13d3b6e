package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/booking"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/security"
)

// DefaultKeyPrefix namespaces snapshot keys
const DefaultKeyPrefix = "patient-portal:booking:"

// RedisStore keeps snapshots in Redis with a TTL. When an encryptor is set,
// values are sealed with the session id as associated data.
type RedisStore struct {
	redis     *redis.Client
	prefix    string
	ttl       time.Duration
	encryptor *security.Encryptor
}

// NewRedisStore creates a store. encryptor may be nil.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, encryptor *security.Encryptor) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl, encryptor: encryptor}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Save(ctx context.Context, id string, snap booking.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}
	if s.encryptor != nil {
		if data, err = s.encryptor.Seal(data, []byte(id)); err != nil {
			return fmt.Errorf("session: seal snapshot: %w", err)
		}
	}

	if err := s.redis.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: set snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (booking.Snapshot, bool, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return booking.Snapshot{}, false, nil
	}
	if err != nil {
		return booking.Snapshot{}, false, fmt.Errorf("session: get snapshot: %w", err)
	}

	if s.encryptor != nil {
		if data, err = s.encryptor.Open(data, []byte(id)); err != nil {
			return booking.Snapshot{}, false, fmt.Errorf("session: open snapshot: %w", err)
		}
	}

	var snap booking.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return booking.Snapshot{}, false, fmt.Errorf("session: unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete snapshot: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
