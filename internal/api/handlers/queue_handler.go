package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/hospitalqueue/internal/api/response"
	"github.com/zatekoja/hospitalqueue/internal/application/services"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
)

// QueueService defines the check-in and entry operations the handler needs
type QueueService interface {
	CheckIn(ctx context.Context, req services.CheckInRequest) (*services.CheckInResult, error)
	GetStatus(ctx context.Context, queueNumber string) (*services.TicketStatus, error)
	ActiveQueue(ctx context.Context, department string) (*services.ActiveQueue, error)
	Cancel(ctx context.Context, entryID, reason string) (*entities.QueueEntry, error)
	Complete(ctx context.Context, server *entities.Server, notes string) (*entities.QueueEntry, error)
}

// DispatchService defines the call-next operation
type DispatchService interface {
	CallNext(ctx context.Context, server *entities.Server, department string) (*services.DispatchResult, error)
}

// QueueHandler handles ticketing and server desk requests
type QueueHandler struct {
	queue    QueueService
	dispatch DispatchService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queue QueueService, dispatch DispatchService) *QueueHandler {
	return &QueueHandler{
		queue:    queue,
		dispatch: dispatch,
	}
}

// CheckIn handles POST /api/queue/check-in
func (h *QueueHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req services.CheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.queue.CheckIn(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, result)
}

// GetStatus handles GET /api/queue/status/{queueNumber}
func (h *QueueHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.queue.GetStatus(r.Context(), r.PathValue("queueNumber"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

// ActiveQueue handles GET /api/queue/departments/{department}/active
func (h *QueueHandler) ActiveQueue(w http.ResponseWriter, r *http.Request) {
	active, err := h.queue.ActiveQueue(r.Context(), r.PathValue("department"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, active)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/queue/entries/{id}/cancel
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	entry, err := h.queue.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entry)
}

type callNextRequest struct {
	Department string `json:"department"`
}

// CallNext handles POST /api/servers/me/call-next. An empty queue is a 200
// with "empty": true.
func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	server, err := currentServer(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req callNextRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if req.Department == "" {
		req.Department = r.URL.Query().Get("department")
	}

	result, err := h.dispatch.CallNext(r.Context(), server, req.Department)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if result.Empty {
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"empty":      true,
			"department": result.Department,
			"message":    "no patients waiting",
		})
		return
	}
	response.JSON(w, http.StatusOK, result)
}

type completeRequest struct {
	Notes string `json:"notes"`
}

// Complete handles POST /api/servers/me/complete
func (h *QueueHandler) Complete(w http.ResponseWriter, r *http.Request) {
	server, err := currentServer(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	entry, err := h.queue.Complete(r.Context(), server, req.Notes)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entry)
}
