package config

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "General Medicine", cfg.Queue.DefaultDepartment)
	assert.Equal(t, 15, cfg.Queue.AverageServiceMinutes)
	assert.Equal(t, 60*time.Second, cfg.Queue.StatsCacheTTL)
	assert.Equal(t, DefaultDepartments, cfg.Queue.Departments)
	assert.Equal(t, "mock", cfg.Notifications.Provider)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Server.HeartbeatInterval)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://kiosk.example.org, https://display.example.org")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"https://kiosk.example.org", "https://display.example.org"}, cfg.Server.AllowedOrigins)
}

func TestLoad_SecretFromVault(t *testing.T) {
	vault := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"data":{"JWT_SECRET":"from-vault"}}}`))
	}))
	defer vault.Close()

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("VAULT_ENABLED", "true")
	t.Setenv("VAULT_ADDR", vault.URL)
	t.Setenv("VAULT_TOKEN", "root")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-vault", cfg.Auth.JWTSecret)

	t.Setenv("VAULT_TOKEN", "")
	_, err = Load()
	assert.ErrorContains(t, err, "vault")
}

func TestLoad_QueueOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("QUEUE_DEPARTMENTS", "Cardiology, Laboratory ,,")
	t.Setenv("QUEUE_AVERAGE_SERVICE_MINUTES", "20")
	t.Setenv("QUEUE_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, []string{"Cardiology", "Laboratory"}, cfg.Queue.Departments)
	assert.Equal(t, 20, cfg.Queue.AverageServiceMinutes)

	loc, err := cfg.Queue.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown store", "STORE_DRIVER", "mongo"},
		{"unknown sms provider", "SMS_PROVIDER", "pigeon"},
		{"http sms without url", "SMS_PROVIDER", "http"},
		{"bad timezone", "QUEUE_TIMEZONE", "Mars/Olympus"},
		{"zero average", "QUEUE_AVERAGE_SERVICE_MINUTES", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "q", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=q sslmode=disable", db.DatabaseDSN())
}
