package routes

import (
	"net/http"
	"time"

	"github.com/zatekoja/hospitalqueue/internal/api/handlers"
	"github.com/zatekoja/hospitalqueue/internal/api/middleware"
	"github.com/zatekoja/hospitalqueue/internal/api/response"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
)

// Handlers groups the route handlers. A nil handler leaves its routes
// unregistered, which lets the stream server mount only the SSE routes.
type Handlers struct {
	Queue   *handlers.QueueHandler
	Lab     *handlers.LabHandler
	Patient *handlers.PatientHandler
	Display *handlers.DisplayHandler
	SSE     *handlers.SSEHandler
}

// Router holds all route handlers
type Router struct {
	mux             *http.ServeMux
	handlers        Handlers
	auth            *middleware.Authenticator
	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	allowedOrigins  []string
	startedAt       time.Time
}

// NewRouter creates a new router
func NewRouter(
	h Handlers,
	auth *middleware.Authenticator,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		handlers:        h,
		auth:            auth,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
		allowedOrigins:  allowedOrigins,
		startedAt:       time.Now(),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.health)

	if h := r.handlers.Patient; h != nil {
		r.mux.HandleFunc("POST /api/patients", h.Register)
		r.mux.HandleFunc("GET /api/patients/card/{cardNumber}", r.auth.RequireServer(h.GetByCard))
	}

	// Queue endpoints. Check-in and status lookups are kiosk/phone facing.
	if h := r.handlers.Queue; h != nil {
		r.mux.HandleFunc("POST /api/queue/check-in", h.CheckIn)
		r.mux.HandleFunc("GET /api/queue/status/{queueNumber}", h.GetStatus)
		r.mux.HandleFunc("GET /api/queue/departments/{department}/active", r.auth.RequireServer(h.ActiveQueue))
		r.mux.HandleFunc("POST /api/queue/entries/{id}/cancel", r.auth.RequireServer(h.Cancel))

		r.mux.HandleFunc("POST /api/servers/me/call-next", r.auth.RequireServer(h.CallNext))
		r.mux.HandleFunc("POST /api/servers/me/complete", r.auth.RequireServer(h.Complete))
	}

	// Lab endpoints
	if h := r.handlers.Lab; h != nil {
		r.mux.HandleFunc("GET /api/lab/pending", r.auth.RequireRole(entities.RoleLabTechnician, h.ListPending))
		r.mux.HandleFunc("POST /api/lab/pending/{id}/approve", r.auth.RequireRole(entities.RoleLabTechnician, h.Approve))
		r.mux.HandleFunc("POST /api/lab/pending/{id}/reject", r.auth.RequireRole(entities.RoleLabTechnician, h.Reject))

		r.mux.HandleFunc("POST /api/lab/requests", r.auth.RequireRole(entities.RoleDoctor, h.CreateRequest))
		r.mux.HandleFunc("GET /api/lab/requests/entry/{entryId}", r.auth.RequireServer(h.ListForEntry))
		r.mux.HandleFunc("POST /api/lab/requests/{id}/start", r.auth.RequireRole(entities.RoleLabTechnician, h.StartRequest))
		r.mux.HandleFunc("POST /api/lab/requests/{id}/complete", r.auth.RequireRole(entities.RoleLabTechnician, h.CompleteRequest))
		r.mux.HandleFunc("POST /api/lab/requests/{id}/reject", r.auth.RequireRole(entities.RoleLabTechnician, h.RejectRequest))
	}

	if h := r.handlers.Display; h != nil {
		r.mux.HandleFunc("GET /api/display/{department}", h.Board)
	}

	// Server-sent event streams
	if h := r.handlers.SSE; h != nil {
		r.mux.HandleFunc("GET /api/stream/departments/{department}", h.StreamDepartment)
		r.mux.HandleFunc("GET /api/stream/patients/{id}", h.StreamPatient)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

func (r *Router) health(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(r.startedAt).Seconds()),
	}
	if r.handlers.SSE != nil {
		body["stream_clients"] = r.handlers.SSE.ClientCount()
	}
	response.JSON(w, http.StatusOK, body)
}
