package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
)

// DefaultServiceMinutes is the per-patient estimate used without history
const DefaultServiceMinutes = 15

var estimateServiceTypes = []entities.ServiceType{
	"",
	entities.ServiceTypeConsultation,
	entities.ServiceTypeFollowUp,
	entities.ServiceTypeLabTest,
	entities.ServiceTypeProcedure,
}

// PositionEstimate is a waiting ticket's place in line. Position is 0 when
// it could not be computed.
type PositionEstimate struct {
	Position int
	Minutes  int
}

// WaitTimeEstimator produces best-effort wait estimates. It never returns an
// error: failures are logged and the default is used.
type WaitTimeEstimator struct {
	entries        repositories.QueueEntryRepository
	cache          providers.CacheProvider
	clock          clock.Clock
	location       *time.Location
	defaultMinutes int
	cacheTTL       int
	logger         zerolog.Logger
}

// NewWaitTimeEstimator creates an estimator. cache may be nil.
func NewWaitTimeEstimator(
	entries repositories.QueueEntryRepository,
	cache providers.CacheProvider,
	clk clock.Clock,
	location *time.Location,
	defaultMinutes int,
	cacheTTL time.Duration,
) *WaitTimeEstimator {
	if defaultMinutes <= 0 {
		defaultMinutes = DefaultServiceMinutes
	}
	if location == nil {
		location = time.Local
	}
	return &WaitTimeEstimator{
		entries:        entries,
		cache:          cache,
		clock:          clk,
		location:       location,
		defaultMinutes: defaultMinutes,
		cacheTTL:       int(cacheTTL / time.Second),
		logger:         observability.Component("wait_time"),
	}
}

// LoadBased is the check-in estimate: patients waiting or being served times
// the default service time
func (e *WaitTimeEstimator) LoadBased(ctx context.Context, department string) int {
	active, err := e.entries.Count(ctx, repositories.QueueEntryFilter{
		Department: department,
		Statuses:   []entities.QueueStatus{entities.QueueStatusWaiting, entities.QueueStatusInProgress},
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("department", department).Msg("load count failed, using default estimate")
		return e.defaultMinutes
	}
	return active * e.defaultMinutes
}

// HistoricalAverage is the mean actual wait of the department's entries
// completed today, rounded to whole minutes
func (e *WaitTimeEstimator) HistoricalAverage(ctx context.Context, department string) int {
	return e.average(ctx, department, "")
}

// Positional estimates a waiting entry's position and wait within its
// department and service type
func (e *WaitTimeEstimator) Positional(ctx context.Context, entry *entities.QueueEntry) PositionEstimate {
	joined := entry.JoinedAt
	ahead, err := e.entries.Count(ctx, repositories.QueueEntryFilter{
		Department:   entry.Department,
		ServiceType:  entry.ServiceType,
		Statuses:     []entities.QueueStatus{entities.QueueStatusWaiting},
		JoinedBefore: &joined,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("queue_number", entry.QueueNumber).Msg("position count failed, using default estimate")
		return PositionEstimate{Minutes: e.defaultMinutes}
	}
	position := ahead + 1
	return PositionEstimate{
		Position: position,
		Minutes:  position * e.average(ctx, entry.Department, entry.ServiceType),
	}
}

// Invalidate drops the cached averages of a department after a completion
func (e *WaitTimeEstimator) Invalidate(ctx context.Context, department string) {
	if e.cache == nil {
		return
	}
	day := clock.StartOfDay(e.clock.Now(), e.location)
	for _, st := range estimateServiceTypes {
		if err := e.cache.Delete(ctx, e.cacheKey(department, st, day)); err != nil {
			e.logger.Debug().Err(err).Str("department", department).Msg("cache delete failed")
		}
	}
}

// Warm computes and caches every average of department. It is a no-op
// without a cache.
func (e *WaitTimeEstimator) Warm(ctx context.Context, department string) {
	if e.cache == nil || e.cacheTTL <= 0 {
		return
	}
	for _, st := range estimateServiceTypes {
		e.average(ctx, department, st)
	}
}

func (e *WaitTimeEstimator) cacheKey(department string, serviceType entities.ServiceType, day time.Time) string {
	return fmt.Sprintf("wait:avg:%s:%s:%s", day.Format("2006-01-02"), department, serviceType)
}

func (e *WaitTimeEstimator) average(ctx context.Context, department string, serviceType entities.ServiceType) int {
	since := clock.StartOfDay(e.clock.Now(), e.location)
	key := e.cacheKey(department, serviceType, since)

	if e.cache != nil {
		cached, err := e.cache.Get(ctx, key)
		switch {
		case err == nil:
			if minutes, convErr := strconv.Atoi(string(cached)); convErr == nil {
				return minutes
			}
		case !errors.Is(err, providers.ErrCacheMiss):
			e.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
	}

	mean, samples, err := e.entries.AverageActualWait(ctx, repositories.WaitSampleQuery{
		Department:  department,
		ServiceType: serviceType,
		Since:       since,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("department", department).Msg("historical average failed, using default")
		return e.defaultMinutes
	}

	minutes := e.defaultMinutes
	if samples > 0 {
		minutes = int(math.Round(mean))
	}

	if e.cache != nil && e.cacheTTL > 0 {
		if err := e.cache.Set(ctx, key, []byte(strconv.Itoa(minutes)), e.cacheTTL); err != nil {
			e.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return minutes
}
