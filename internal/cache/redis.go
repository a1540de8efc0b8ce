package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fluentlabs/lernplan/internal/models"
)

const redisKeyPrefix = "lernplan:artifact:"

// RedisStore is an artifact store backed by Redis. TTL expiry is delegated
// to Redis itself.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed artifact store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(fp models.Fingerprint) string {
	return redisKeyPrefix + string(fp)
}

// Get returns the artifact for a fingerprint, or ErrCacheMiss
func (s *RedisStore) Get(ctx context.Context, fp models.Fingerprint) (*models.CachedArtifact, error) {
	data, err := s.client.Get(ctx, redisKey(fp)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached artifact: %w", err)
	}

	var artifact models.CachedArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		// A corrupt entry behaves like a miss; drop it so it gets regenerated
		_ = s.client.Del(ctx, redisKey(fp)).Err()
		return nil, ErrCacheMiss
	}
	return &artifact, nil
}

// Put stores an artifact with its TTL as the Redis key expiry
func (s *RedisStore) Put(ctx context.Context, artifact *models.CachedArtifact) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(artifact.Fingerprint), data, artifact.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

// Delete removes an artifact if present
func (s *RedisStore) Delete(ctx context.Context, fp models.Fingerprint) error {
	if err := s.client.Del(ctx, redisKey(fp)).Err(); err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// Purge removes every stored artifact and returns how many were deleted
func (s *RedisStore) Purge(ctx context.Context) (int, error) {
	var purged int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return purged, fmt.Errorf("failed to delete artifact: %w", err)
		}
		purged++
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("failed to scan artifacts: %w", err)
	}
	return purged, nil
}

// Len reports the number of stored artifacts
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan artifacts: %w", err)
	}
	return count, nil
}
