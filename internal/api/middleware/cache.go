package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// CacheMiddleware serves repeated GETs of public, read-only routes from the
// cache for a few seconds. Waiting-room screens poll the display board, so
// a short TTL collapses their load without making the board noticeably stale.
type CacheMiddleware struct {
	cache    providers.CacheProvider
	prefixes map[string]int
	logger   zerolog.Logger
}

// NewCacheMiddleware caches the display board for ttlSeconds. A zero TTL or
// nil cache disables caching.
func NewCacheMiddleware(cache providers.CacheProvider, ttlSeconds int) *CacheMiddleware {
	prefixes := map[string]int{}
	if ttlSeconds > 0 {
		prefixes["/api/display/"] = ttlSeconds
	}
	return &CacheMiddleware{
		cache:    cache,
		prefixes: prefixes,
		logger:   observability.Component("http_cache"),
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}
		ttl := m.ttlFor(r.URL.Path)
		if ttl == 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := cacheKey(r)
		if cached, err := m.cache.Get(r.Context(), key); err == nil {
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		w.Header().Set("X-Cache", "MISS")
		recorder := &bodyRecorder{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), key, recorder.body.Bytes(), ttl); err != nil {
				m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to cache response")
			}
		}
	})
}

func (m *CacheMiddleware) ttlFor(path string) int {
	for prefix, ttl := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return ttl
		}
	}
	return 0
}

// cacheKey hashes the path and query; departments are case-insensitive so
// the path is lowered first
func cacheKey(r *http.Request) string {
	return hashKey(r.URL.Path, r.URL.RawQuery)
}

func hashKey(path, rawQuery string) string {
	key := strings.ToLower(path)
	if rawQuery != "" {
		key += "?" + rawQuery
	}
	hash := sha256.Sum256([]byte(key))
	return "http:cache:" + hex.EncodeToString(hash[:])
}

// DisplayCacheKeys returns the cache keys holding department's display board
func DisplayCacheKeys(department string) []string {
	return []string{hashKey("/api/display/"+department, "")}
}

// bodyRecorder tees the response body so it can be cached
type bodyRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (r *bodyRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

func (r *bodyRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
