package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
)

// AggregationCache abstracts persistence for cached aggregation payloads.
type AggregationCache interface {
	CategoryKey(categoryID int64) string
	ReportKey(kindID string) string
	Get(ctx context.Context, key string, dest interface{}) (time.Time, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	PurgeAll(ctx context.Context) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo    AggregationCache
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo AggregationCache, metrics *MetricsService, logger *zap.Logger, enabled bool) *CacheService {
	return &CacheService{repo: repo, metrics: metrics, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// CategoryKey returns the cache key for one category aggregation.
func (s *CacheService) CategoryKey(categoryID int64) string {
	if s == nil || s.repo == nil {
		return ""
	}
	return s.repo.CategoryKey(categoryID)
}

// ReportKey returns the cache key for one system-scope advanced report.
func (s *CacheService) ReportKey(kindID string) string {
	if s == nil || s.repo == nil {
		return ""
	}
	return s.repo.ReportKey(kindID)
}

// Get attempts to retrieve a cached entry. It returns true when the
// cache was hit, along with the entry's generation time.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, time.Time, error) {
	if !s.Enabled() {
		return false, time.Time{}, nil
	}
	start := time.Now()
	generatedAt, err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false, duration)
		}
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, time.Time{}, nil
		}
		if s.logger != nil {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false, time.Time{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(true, duration)
	}
	return true, generatedAt, nil
}

// Set stores the value in cache. Zero TTL keeps the entry until the
// next purge, matching the refresh cycle's overwrite semantics.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	if err != nil && s.logger != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Delete removes one cached entry.
func (s *CacheService) Delete(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		if s.logger != nil {
			s.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
		return err
	}
	return nil
}

// PurgeAll removes every cached entry under the configured prefix.
func (s *CacheService) PurgeAll(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.PurgeAll(ctx); err != nil {
		if s.logger != nil {
			s.logger.Warn("cache purge failed", zap.Error(err))
		}
		return err
	}
	return nil
}
