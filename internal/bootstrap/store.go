// Package bootstrap opens the persistence and messaging backends selected
// by configuration. Commands share it so the API server and the seeder see
// the same store.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospitalqueue/internal/adapters/cache"
	"github.com/zatekoja/hospitalqueue/internal/adapters/database"
	"github.com/zatekoja/hospitalqueue/internal/adapters/events"
	"github.com/zatekoja/hospitalqueue/internal/adapters/memory"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/domain/repositories"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/clients/redis"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

// Repositories bundles every repository the services need
type Repositories struct {
	QueueEntries  repositories.QueueEntryRepository
	Patients      repositories.PatientRepository
	Appointments  repositories.AppointmentRepository
	Staff         repositories.StaffRepository
	LabRequests   repositories.LabRequestRepository
	Notifications repositories.NotificationRepository
}

// OpenStore opens the configured store. The returned close function
// releases its connections.
func OpenStore(ctx context.Context, cfg *config.Config) (*Repositories, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return MemoryRepositories(memory.NewStore()), func() {}, nil
	case "postgres":
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
		}
		if err := database.EnsureSchema(ctx, pgClient); err != nil {
			pgClient.Close()
			return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		log.Info().Msg("PostgreSQL schema ready")

		return &Repositories{
			QueueEntries:  database.NewQueueEntryAdapter(pgClient),
			Patients:      database.NewPatientAdapter(pgClient),
			Appointments:  database.NewAppointmentAdapter(pgClient),
			Staff:         database.NewStaffAdapter(pgClient),
			LabRequests:   database.NewLabRequestAdapter(pgClient),
			Notifications: database.NewNotificationAdapter(sqlx.NewDb(pgClient.DB(), "postgres")),
		}, func() { pgClient.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// WithStaffCache serves staff lookups through cache. Token checks load the
// staff record on every authenticated request.
func (r *Repositories) WithStaffCache(c providers.CacheProvider) *Repositories {
	if c != nil {
		r.Staff = database.NewCachedStaffAdapter(r.Staff, c)
	}
	return r
}

// MemoryRepositories exposes an in-memory store as Repositories
func MemoryRepositories(store *memory.Store) *Repositories {
	return &Repositories{
		QueueEntries:  store.QueueEntries(),
		Patients:      store.Patients(),
		Appointments:  store.Appointments(),
		Staff:         store.Staff(),
		LabRequests:   store.LabRequests(),
		Notifications: store.Notifications(),
	}
}

// Messaging is the event bus and cache pair
type Messaging struct {
	EventBus providers.EventBus
	Cache    providers.CacheProvider
	// Shared reports whether the bus reaches other processes
	Shared bool
}

// OpenMessaging connects to Redis when enabled and falls back to in-process
// implementations when it is disabled or unreachable.
func OpenMessaging(cfg *config.Config) (*Messaging, func()) {
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err == nil {
			log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized successfully")
			bus := events.NewRedisEventBus(redisClient)
			return &Messaging{
					EventBus: bus,
					Cache:    cache.NewRedisAdapter(redisClient),
					Shared:   true,
				}, func() {
					_ = bus.Close()
					_ = redisClient.Close()
				}
		}
		log.Warn().Err(err).Msg("Redis unavailable; using in-process event bus and cache")
	}

	bus := events.NewLocalEventBus()
	return &Messaging{
		EventBus: bus,
		Cache:    cache.NewMemoryAdapter(),
	}, func() { _ = bus.Close() }
}
