package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zatekoja/hospitalqueue/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	Environment   string
	Server        ServerConfig
	Store         StoreConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Queue         QueueConfig
	Notifications NotificationConfig
	Auth          AuthConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	SSEPort        int
	AllowedOrigins []string
	// DisplayCacheTTL is how long display board responses are cached, in seconds
	DisplayCacheTTL   int
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	// Driver is "postgres" or "memory"
	Driver string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// QueueConfig holds the ticketing and dispatch settings
type QueueConfig struct {
	Departments           []string
	DefaultDepartment     string
	AverageServiceMinutes int
	MaxNumberAttempts     int
	MaxCheckInAttempts    int
	MaxDispatchAttempts   int
	StatsCacheTTL         time.Duration
	Timezone              string
	EventBufferSize       int
	EventWorkers          int
}

// NotificationConfig holds SMS gateway configuration
type NotificationConfig struct {
	// Provider is "mock" or "http"
	Provider   string
	GatewayURL string
	APIKey     string
	SenderID   string
	Timeout    time.Duration
}

// AuthConfig holds the token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// DefaultDepartments is the fixed department set served by the hospital
var DefaultDepartments = []string{
	"General Medicine",
	"Cardiology",
	"Pediatrics",
	"Laboratory",
	"Radiology",
	"Orthopedics",
	"Dermatology",
	"ENT Clinic",
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present, then credentials are
// overlaid from Vault when VAULT_ENABLED is true.
func Load() (*Config, error) {
	_ = godotenv.Load()

	vaultCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := secrets.Apply(vaultCtx, secrets.ConfigFromEnv()); err != nil {
		return nil, fmt.Errorf("failed to load secrets from vault: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			SSEPort:           getEnvAsInt("SSE_PORT", 8081),
			AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			DisplayCacheTTL:   getEnvAsInt("DISPLAY_CACHE_TTL_SECONDS", 3),
			HeartbeatInterval: time.Duration(getEnvAsInt("SSE_HEARTBEAT_SECONDS", 30)) * time.Second,
			ShutdownTimeout:   time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "hospital_queue"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Queue: QueueConfig{
			Departments:           getEnvAsList("QUEUE_DEPARTMENTS", DefaultDepartments),
			DefaultDepartment:     getEnv("QUEUE_DEFAULT_DEPARTMENT", "General Medicine"),
			AverageServiceMinutes: getEnvAsInt("QUEUE_AVERAGE_SERVICE_MINUTES", 15),
			MaxNumberAttempts:     getEnvAsInt("QUEUE_MAX_NUMBER_ATTEMPTS", 50),
			MaxCheckInAttempts:    getEnvAsInt("QUEUE_MAX_CHECKIN_ATTEMPTS", 5),
			MaxDispatchAttempts:   getEnvAsInt("QUEUE_MAX_DISPATCH_ATTEMPTS", 5),
			StatsCacheTTL:         time.Duration(getEnvAsInt("QUEUE_STATS_CACHE_TTL_SECONDS", 60)) * time.Second,
			Timezone:              getEnv("QUEUE_TIMEZONE", "Local"),
			EventBufferSize:       getEnvAsInt("QUEUE_EVENT_BUFFER_SIZE", 256),
			EventWorkers:          getEnvAsInt("QUEUE_EVENT_WORKERS", 2),
		},
		Notifications: NotificationConfig{
			Provider:   getEnv("SMS_PROVIDER", "mock"),
			GatewayURL: getEnv("SMS_GATEWAY_URL", ""),
			APIKey:     getEnv("SMS_API_KEY", ""),
			SenderID:   getEnv("SMS_SENDER_ID", "HOSPITAL"),
			Timeout:    time.Duration(getEnvAsInt("SMS_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "hospital-queue"),
			TokenTTL:  time.Duration(getEnvAsInt("JWT_TTL_HOURS", 12)) * time.Hour,
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "hospital-queue"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe fallback
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Notifications.Provider {
	case "mock":
	case "http":
		if c.Notifications.GatewayURL == "" {
			return fmt.Errorf("SMS_GATEWAY_URL is required when SMS_PROVIDER=http")
		}
	default:
		return fmt.Errorf("unsupported SMS_PROVIDER %q", c.Notifications.Provider)
	}
	if c.Queue.AverageServiceMinutes <= 0 {
		return fmt.Errorf("QUEUE_AVERAGE_SERVICE_MINUTES must be positive")
	}
	if c.Queue.MaxNumberAttempts <= 0 || c.Queue.MaxCheckInAttempts <= 0 || c.Queue.MaxDispatchAttempts <= 0 {
		return fmt.Errorf("queue attempt limits must be positive")
	}
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET is required outside development")
		}
		c.Auth.JWTSecret = "development-only-secret"
	}
	if _, err := c.Queue.Location(); err != nil {
		return fmt.Errorf("invalid QUEUE_TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves the timezone used for the daily ticket reset
func (q *QueueConfig) Location() (*time.Location, error) {
	if q.Timezone == "" || q.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(q.Timezone)
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
