package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/clearview-lms/clearview-api/internal/models"
	appErrors "github.com/clearview-lms/clearview-api/pkg/errors"
	"github.com/clearview-lms/clearview-api/pkg/jobs"
)

// RefreshService rebuilds the whole aggregation cache: purge first,
// then one aggregation per category plus the system-scope advanced
// reports. Categories are rebuilt concurrently on a worker pool since
// they are independent of each other.
type RefreshService struct {
	aggregator  *AggregationService
	advreports  *AdvancedReportService
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	interval    time.Duration
	concurrency int

	running atomic.Bool
}

// NewRefreshService constructs the refresh service.
func NewRefreshService(aggregator *AggregationService, advreports *AdvancedReportService, cache *CacheService, metrics *MetricsService, logger *zap.Logger, interval time.Duration, concurrency int) *RefreshService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RefreshService{
		aggregator:  aggregator,
		advreports:  advreports,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Running reports whether a refresh cycle is currently executing.
func (s *RefreshService) Running() bool {
	return s.running.Load()
}

// RefreshAll runs one full cache rebuild. At most one cycle runs at a
// time; concurrent triggers are rejected rather than queued.
func (s *RefreshService) RefreshAll(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return appErrors.ErrRefreshInProgress
	}
	defer s.running.Store(false)

	start := time.Now()

	tree, err := s.aggregator.CategoryTree(ctx)
	if err != nil {
		return err
	}

	if err := s.cache.PurgeAll(ctx); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}

	pool := jobs.NewPool("cache-refresh", func(ctx context.Context, job jobs.Job) error {
		category, ok := job.Payload.(models.Category)
		if !ok {
			return fmt.Errorf("unexpected refresh payload %T", job.Payload)
		}
		agg, err := s.aggregator.BuildCategoryAggregation(ctx, category)
		if err != nil {
			return fmt.Errorf("build category %d: %w", category.ID, err)
		}
		if err := s.cache.Set(ctx, s.cache.CategoryKey(category.ID), agg, 0); err != nil {
			return fmt.Errorf("store category %d: %w", category.ID, err)
		}
		return nil
	}, jobs.PoolConfig{
		Workers:    s.concurrency,
		BufferSize: tree.Len() + 1,
		Logger:     s.logger,
	})

	pool.Start(ctx)
	for _, category := range tree.Categories() {
		if err := pool.Submit(jobs.Job{
			ID:      fmt.Sprintf("category-%d", category.ID),
			Type:    "category_aggregation",
			Payload: category,
		}); err != nil {
			pool.Stop()
			return fmt.Errorf("submit category %d: %w", category.ID, err)
		}
	}
	pool.Wait()
	pool.Stop()

	for _, kind := range s.advreports.SystemKinds() {
		data, err := s.advreports.Build(ctx, kind)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("advanced report build failed", zap.String("kind", kind.ID), zap.Error(err))
			}
			continue
		}
		if err := s.cache.Set(ctx, s.cache.ReportKey(kind.ID), data, 0); err != nil && s.logger != nil {
			s.logger.Error("advanced report store failed", zap.String("kind", kind.ID), zap.Error(err))
		}
	}

	took := time.Since(start)
	finished := time.Now().UTC()
	if s.metrics != nil {
		s.metrics.ObserveRefresh(took, finished)
	}
	if s.logger != nil {
		s.logger.Info("cache refresh finished",
			zap.Int("categories", tree.Len()),
			zap.Duration("took", took))
	}
	return nil
}

// Start launches the periodic refresh loop. It returns immediately;
// the loop stops when the context is cancelled.
func (s *RefreshService) Start(ctx context.Context, onStart bool) {
	go func() {
		if onStart {
			if err := s.RefreshAll(ctx); err != nil && s.logger != nil {
				s.logger.Error("initial cache refresh failed", zap.Error(err))
			}
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RefreshAll(ctx); err != nil && s.logger != nil {
					s.logger.Error("scheduled cache refresh failed", zap.Error(err))
				}
			}
		}
	}()
}
