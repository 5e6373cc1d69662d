package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

// SchemaVersion tags every cached payload. Entries written by an older
// build are treated as misses instead of being decoded into the wrong
// shape.
const SchemaVersion = 1

type cacheEnvelope struct {
	SchemaVersion int             `json:"schema_version"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Payload       json.RawMessage `json:"payload"`
}

// CacheRepository stores aggregation payloads in Redis wrapped in a
// versioned envelope. Keys share a configurable prefix so a full purge
// never touches other tenants on the same Redis instance.
type CacheRepository struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, prefix string, logger *zap.Logger) *CacheRepository {
	return &CacheRepository{client: client, prefix: prefix, logger: logger}
}

// CategoryKey returns the cache key for one category aggregation.
func (r *CacheRepository) CategoryKey(categoryID int64) string {
	return fmt.Sprintf("%s:%d", r.prefix, categoryID)
}

// ReportKey returns the cache key for one system-scope advanced report.
func (r *CacheRepository) ReportKey(kindID string) string {
	return fmt.Sprintf("%s:advreport:%s", r.prefix, kindID)
}

// Get retrieves and unmarshals the cached value into the provided
// destination, returning the envelope's generation time. Version
// mismatches are reported as misses.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) (time.Time, error) {
	if r.client == nil {
		return time.Time{}, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, appErrors.ErrCacheMiss
		}
		return time.Time{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var envelope cacheEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return time.Time{}, fmt.Errorf("unmarshal cache envelope for %s: %w", key, err)
	}
	if envelope.SchemaVersion != SchemaVersion {
		if r.logger != nil {
			r.logger.Debug("stale cache schema", zap.String("key", key), zap.Int("version", envelope.SchemaVersion))
		}
		return time.Time{}, appErrors.ErrCacheMiss
	}

	if err := json.Unmarshal(envelope.Payload, dest); err != nil {
		return time.Time{}, fmt.Errorf("unmarshal cache payload for %s: %w", key, err)
	}
	return envelope.GeneratedAt, nil
}

// Set marshals the provided value into a versioned envelope and stores
// it with the given TTL. Zero TTL keeps the entry until the next purge.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	envelope, err := json.Marshal(cacheEnvelope{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("marshal cache envelope for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, envelope, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes one cached entry.
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// PurgeAll removes every entry under the configured prefix.
func (r *CacheRepository) PurgeAll(ctx context.Context) error {
	if r.client == nil {
		return nil
	}

	pattern := r.prefix + ":*"
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
