package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// CacheWarmingService keeps the wait-time averages of every department
// cached so check-ins and status polls rarely pay for the aggregate query
type CacheWarmingService struct {
	estimator   *WaitTimeEstimator
	departments *entities.DepartmentSet
	logger      zerolog.Logger
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(estimator *WaitTimeEstimator, departments *entities.DepartmentSet) *CacheWarmingService {
	return &CacheWarmingService{
		estimator:   estimator,
		departments: departments,
		logger:      observability.Component("cache_warming"),
	}
}

// WarmCache computes the averages of every department once
func (s *CacheWarmingService) WarmCache(ctx context.Context) {
	start := time.Now()
	names := s.departments.Names()
	for _, department := range names {
		if ctx.Err() != nil {
			return
		}
		s.estimator.Warm(ctx, department)
	}
	s.logger.Debug().Int("departments", len(names)).Dur("took", time.Since(start)).Msg("Cache warming completed")
}

// StartPeriodicWarming warms immediately and then every interval until ctx
// is done. interval should not exceed the averages' cache TTL.
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	s.WarmCache(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Cache warming stopped")
			return
		case <-ticker.C:
			s.WarmCache(ctx)
		}
	}
}
