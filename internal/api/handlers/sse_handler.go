package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zatekoja/hospitalqueue/internal/api/response"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/domain/providers"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams queue events to display screens and patient phones
type SSEHandler struct {
	eventBus    providers.EventBus
	departments *entities.DepartmentSet
	heartbeat   time.Duration
	clients     map[string]int // channel -> connected clients
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus, departments *entities.DepartmentSet) *SSEHandler {
	return &SSEHandler{
		eventBus:    eventBus,
		departments: departments,
		heartbeat:   defaultHeartbeat,
		clients:     make(map[string]int),
		logger:      observability.Component("sse"),
	}
}

// WithHeartbeat overrides the keep-alive interval
func (h *SSEHandler) WithHeartbeat(interval time.Duration) *SSEHandler {
	if interval > 0 {
		h.heartbeat = interval
	}
	return h
}

// StreamDepartment handles GET /api/stream/departments/{department}
func (h *SSEHandler) StreamDepartment(w http.ResponseWriter, r *http.Request) {
	department, ok := h.departments.Resolve(r.PathValue("department"))
	if !ok {
		response.Error(w, r, apperrors.NewValidationError("unknown department").WithDetail("field", "department"))
		return
	}
	h.stream(w, r, providers.GetDepartmentChannel(department), map[string]interface{}{
		"department": department,
	})
}

// StreamPatient handles GET /api/stream/patients/{id}
func (h *SSEHandler) StreamPatient(w http.ResponseWriter, r *http.Request) {
	patientID := strings.TrimSpace(r.PathValue("id"))
	if patientID == "" {
		response.Error(w, r, apperrors.NewValidationError("patient ID is required"))
		return
	}
	h.stream(w, r, providers.GetPatientChannel(patientID), map[string]interface{}{
		"patient_id": patientID,
	})
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, hello map[string]interface{}) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Message(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		h.logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe")
		response.Error(w, r, apperrors.NewInternalError("failed to subscribe to updates", err))
		return
	}

	h.register(channel)
	defer h.unregister(channel)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello["timestamp"] = time.Now()
	h.send(w, "", "connected", hello)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			h.send(w, "", "heartbeat", map[string]interface{}{"timestamp": time.Now()})
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			h.send(w, event.ID, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) register(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
	h.logger.Debug().Str("channel", channel).Int("clients", h.clients[channel]).Msg("client connected")
}

func (h *SSEHandler) unregister(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// send writes one SSE frame
func (h *SSEHandler) send(w http.ResponseWriter, id, eventType string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event")
		return
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
}

// ClientCount returns the number of open streams
func (h *SSEHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
