package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/hospitalqueue/internal/api/response"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
)

// LabGateService defines the admission decisions for lab-gated entries
type LabGateService interface {
	ListPending(ctx context.Context, tech entities.LabTechnician) ([]*entities.QueueEntry, error)
	Approve(ctx context.Context, tech entities.LabTechnician, entryID string) (*entities.QueueEntry, error)
	Reject(ctx context.Context, tech entities.LabTechnician, entryID, reason string) (*entities.QueueEntry, error)
}

// LabRequestService defines the lab test workflow
type LabRequestService interface {
	Request(ctx context.Context, doctor entities.Doctor, entryID, testName, notes string) (*entities.LabRequest, error)
	Start(ctx context.Context, tech entities.LabTechnician, id string) (*entities.LabRequest, error)
	Complete(ctx context.Context, tech entities.LabTechnician, id, result string) (*entities.LabRequest, error)
	Reject(ctx context.Context, tech entities.LabTechnician, id, reason string) (*entities.LabRequest, error)
	ListForEntry(ctx context.Context, entryID string) ([]*entities.LabRequest, error)
}

// LabHandler handles lab gate and lab request endpoints
type LabHandler struct {
	gate     LabGateService
	requests LabRequestService
}

// NewLabHandler creates a new lab handler
func NewLabHandler(gate LabGateService, requests LabRequestService) *LabHandler {
	return &LabHandler{
		gate:     gate,
		requests: requests,
	}
}

// ListPending handles GET /api/lab/pending
func (h *LabHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	tech, err := currentLabTechnician(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	pending, err := h.gate.ListPending(r.Context(), tech)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, pending)
}

// Approve handles POST /api/lab/pending/{id}/approve
func (h *LabHandler) Approve(w http.ResponseWriter, r *http.Request) {
	tech, err := currentLabTechnician(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	entry, err := h.gate.Approve(r.Context(), tech, r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entry)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /api/lab/pending/{id}/reject
func (h *LabHandler) Reject(w http.ResponseWriter, r *http.Request) {
	tech, err := currentLabTechnician(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req reasonRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	entry, err := h.gate.Reject(r.Context(), tech, r.PathValue("id"), req.Reason)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, entry)
}

type labRequestPayload struct {
	QueueEntryID string `json:"queue_entry_id"`
	TestName     string `json:"test_name"`
	Notes        string `json:"notes"`
}

// CreateRequest handles POST /api/lab/requests
func (h *LabHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	doctor, err := currentDoctor(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var req labRequestPayload
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	created, err := h.requests.Request(r.Context(), doctor, req.QueueEntryID, req.TestName, req.Notes)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

// ListForEntry handles GET /api/lab/requests/entry/{entryId}
func (h *LabHandler) ListForEntry(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.ListForEntry(r.Context(), r.PathValue("entryId"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, requests)
}

// StartRequest handles POST /api/lab/requests/{id}/start
func (h *LabHandler) StartRequest(w http.ResponseWriter, r *http.Request) {
	tech, err := currentLabTechnician(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	req, err := h.requests.Start(r.Context(), tech, r.PathValue("id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, req)
}

type resultRequest struct {
	Result string `json:"result"`
}

// CompleteRequest handles POST /api/lab/requests/{id}/complete
func (h *LabHandler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	tech, err := currentLabTechnician(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body resultRequest
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err)
		return
	}

	req, err := h.requests.Complete(r.Context(), tech, r.PathValue("id"), body.Result)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, req)
}

// RejectRequest handles POST /api/lab/requests/{id}/reject
func (h *LabHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	tech, err := currentLabTechnician(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var body reasonRequest
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, r, err)
		return
	}

	req, err := h.requests.Reject(r.Context(), tech, r.PathValue("id"), body.Reason)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, req)
}
