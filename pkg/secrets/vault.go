// Package secrets overlays credentials stored in a Vault KV engine onto the
// process environment before configuration is read.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DefaultKeys are the credentials the queue services read from the environment
var DefaultKeys = []string{"JWT_SECRET", "DB_PASSWORD", "REDIS_PASSWORD", "SMS_API_KEY"}

// VaultConfig locates the secret holding the service credentials
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	// Overwrite replaces variables that are already set
	Overwrite bool
	// Keys limits which fields of the secret are exported; empty exports all
	Keys []string
}

// Result reports what was applied
type Result struct {
	Path    string
	Loaded  []string
	Skipped []string
	Ignored []string
}

// ConfigFromEnv reads the Vault location from VAULT_* variables
func ConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     envOr("VAULT_MOUNT", "secret"),
		Path:      envOr("VAULT_PATH", "hospital-queue"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
		Keys:      DefaultKeys,
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_KV_VERSION")); err == nil {
		cfg.KVVersion = v
	}
	if v, err := strconv.Atoi(os.Getenv("VAULT_TIMEOUT_MS")); err == nil && v > 0 {
		cfg.Timeout = time.Duration(v) * time.Millisecond
	}
	return cfg
}

// Apply fetches the secret and exports its fields as environment variables.
// It is a no-op when Vault is disabled.
func Apply(ctx context.Context, cfg VaultConfig) (*Result, error) {
	if !cfg.Enabled {
		return &Result{}, nil
	}
	if cfg.Addr == "" || cfg.Token == "" {
		return nil, errors.New("vault enabled but VAULT_ADDR or VAULT_TOKEN is empty")
	}

	data, err := fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{Path: cfg.Path}
	for key, value := range data {
		if len(cfg.Keys) > 0 && !lo.Contains(cfg.Keys, key) {
			result.Ignored = append(result.Ignored, key)
			continue
		}
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		if err := os.Setenv(key, stringify(value)); err != nil {
			return result, fmt.Errorf("failed to export %s: %w", key, err)
		}
		result.Loaded = append(result.Loaded, key)
	}
	return result, nil
}

func fetch(ctx context.Context, cfg VaultConfig) (map[string]interface{}, error) {
	url, err := secretURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	resp, err := (&http.Client{Timeout: cfg.Timeout}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vault returned %s for %s", resp.Status, cfg.Path)
	}

	var payload struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid vault response: %w", err)
	}
	if payload.Data == nil {
		return nil, errors.New("vault response has no data")
	}
	if cfg.KVVersion == 1 {
		return payload.Data, nil
	}

	// KV v2 nests the secret under data.data
	inner, ok := payload.Data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("vault response has no versioned data")
	}
	return inner, nil
}

func secretURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.Trim(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
