package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ETag answers conditional GETs of the polled public routes (ticket status
// and display board) with 304 when the body has not changed. Streams are
// passed through untouched.
func ETag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !pollable(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		rec := &etagRecorder{ResponseWriter: w, buffer: &bytes.Buffer{}}
		next.ServeHTTP(rec, r)

		if rec.statusCode != 0 && rec.statusCode != http.StatusOK {
			w.WriteHeader(rec.statusCode)
			_, _ = w.Write(rec.buffer.Bytes())
			return
		}

		hash := sha256.Sum256(rec.buffer.Bytes())
		etag := `"` + hex.EncodeToString(hash[:16]) + `"`
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rec.buffer.Bytes())
	})
}

// etagRecorder buffers the response so the ETag can be computed
type etagRecorder struct {
	http.ResponseWriter
	buffer     *bytes.Buffer
	statusCode int
}

func (r *etagRecorder) Write(b []byte) (int, error) {
	return r.buffer.Write(b)
}

func (r *etagRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
}

// NoStore marks queue responses uncacheable by browsers and proxies; ticket
// state changes from one second to the next
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !strings.HasPrefix(r.URL.Path, "/api/stream/") {
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func pollable(path string) bool {
	return strings.HasPrefix(path, "/api/display/") || strings.HasPrefix(path, "/api/queue/status/")
}

// ResponseOptimization combines the cache headers with conditional GETs
func ResponseOptimization(next http.Handler) http.Handler {
	return NoStore(ETag(next))
}
