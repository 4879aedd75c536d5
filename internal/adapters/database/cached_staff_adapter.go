package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// staffByIDTTL bounds how long a role change takes to reach token checks
const staffByIDTTL = 60

// CachedStaffAdapter wraps a StaffRepository with caching. Every
// authenticated request loads its staff record, so the lookups are served
// from the cache.
type CachedStaffAdapter struct {
	adapter repositories.StaffRepository
	cache   providers.CacheProvider
	logger  zerolog.Logger
}

// NewCachedStaffAdapter creates a new cached staff adapter
func NewCachedStaffAdapter(adapter repositories.StaffRepository, cache providers.CacheProvider) repositories.StaffRepository {
	return &CachedStaffAdapter{
		adapter: adapter,
		cache:   cache,
		logger:  observability.Component("staff_cache"),
	}
}

func staffCacheKey(id string) string {
	return fmt.Sprintf("staff:%s", id)
}

// Create writes through and drops the cached record
func (a *CachedStaffAdapter) Create(ctx context.Context, server *entities.Server) error {
	if err := a.adapter.Create(ctx, server); err != nil {
		return err
	}
	if err := a.cache.Delete(ctx, staffCacheKey(server.ID)); err != nil {
		a.logger.Warn().Err(err).Str("staff_id", server.ID).Msg("Failed to invalidate cached staff member")
	}
	return nil
}

// GetByID retrieves a staff member by ID with caching. Misses are not cached.
func (a *CachedStaffAdapter) GetByID(ctx context.Context, id string) (*entities.Server, error) {
	key := staffCacheKey(id)

	if cached, err := a.cache.Get(ctx, key); err == nil {
		var server entities.Server
		if err := json.Unmarshal(cached, &server); err == nil {
			return &server, nil
		}
		a.logger.Warn().Err(err).Str("staff_id", id).Msg("Failed to unmarshal cached staff member")
	}

	server, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(server); err == nil {
		if err := a.cache.Set(ctx, key, data, staffByIDTTL); err != nil {
			a.logger.Warn().Err(err).Str("staff_id", id).Msg("Failed to cache staff member")
		}
	}
	return server, nil
}
