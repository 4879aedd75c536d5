package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/hospitalqueue/internal/api/handlers"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// MockLabGateService mocks lab admission decisions
type MockLabGateService struct {
	mock.Mock
}

func (m *MockLabGateService) ListPending(ctx context.Context, tech entities.LabTechnician) ([]*entities.QueueEntry, error) {
	args := m.Called(ctx, tech)
	return args.Get(0).([]*entities.QueueEntry), args.Error(1)
}

func (m *MockLabGateService) Approve(ctx context.Context, tech entities.LabTechnician, entryID string) (*entities.QueueEntry, error) {
	args := m.Called(ctx, tech, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.QueueEntry), args.Error(1)
}

func (m *MockLabGateService) Reject(ctx context.Context, tech entities.LabTechnician, entryID, reason string) (*entities.QueueEntry, error) {
	args := m.Called(ctx, tech, entryID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.QueueEntry), args.Error(1)
}

// MockLabRequestService mocks the lab test workflow
type MockLabRequestService struct {
	mock.Mock
}

func (m *MockLabRequestService) Request(ctx context.Context, doctor entities.Doctor, entryID, testName, notes string) (*entities.LabRequest, error) {
	args := m.Called(ctx, doctor, entryID, testName, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LabRequest), args.Error(1)
}

func (m *MockLabRequestService) Start(ctx context.Context, tech entities.LabTechnician, id string) (*entities.LabRequest, error) {
	args := m.Called(ctx, tech, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LabRequest), args.Error(1)
}

func (m *MockLabRequestService) Complete(ctx context.Context, tech entities.LabTechnician, id, result string) (*entities.LabRequest, error) {
	args := m.Called(ctx, tech, id, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LabRequest), args.Error(1)
}

func (m *MockLabRequestService) Reject(ctx context.Context, tech entities.LabTechnician, id, reason string) (*entities.LabRequest, error) {
	args := m.Called(ctx, tech, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LabRequest), args.Error(1)
}

func (m *MockLabRequestService) ListForEntry(ctx context.Context, entryID string) ([]*entities.LabRequest, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.LabRequest), args.Error(1)
}

var labTechnician = &entities.Server{ID: "t-1", Name: "Tech Ade", Role: entities.RoleLabTechnician, Department: "Laboratory"}

func TestLabHandler_Reject(t *testing.T) {
	gate := new(MockLabGateService)
	handler := handlers.NewLabHandler(gate, new(MockLabRequestService))
	gate.On("Reject", mock.Anything, mock.Anything, "e-1", "incomplete paperwork").
		Return(&entities.QueueEntry{ID: "e-1", Status: entities.QueueStatusCancelled}, nil)

	req := asServer(jsonRequest(http.MethodPost, "/api/lab/pending/e-1/reject",
		map[string]string{"reason": "incomplete paperwork"}), labTechnician)
	req.SetPathValue("id", "e-1")
	w := httptest.NewRecorder()
	handler.Reject(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)
	gate.AssertExpectations(t)
}

func TestLabHandler_DoctorCannotDecideAdmission(t *testing.T) {
	gate := new(MockLabGateService)
	handler := handlers.NewLabHandler(gate, new(MockLabRequestService))

	req := asServer(jsonRequest(http.MethodPost, "/api/lab/pending/e-1/approve", nil), cardiologist)
	req.SetPathValue("id", "e-1")
	w := httptest.NewRecorder()
	handler.Approve(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.CodeRoleRequired, decodeError(t, w).Code)
	gate.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything)
}

func TestLabHandler_SecondApproveConflicts(t *testing.T) {
	gate := new(MockLabGateService)
	handler := handlers.NewLabHandler(gate, new(MockLabRequestService))
	gate.On("Approve", mock.Anything, mock.Anything, "e-1").Return(nil,
		apperrors.NewConflictError("entry is not pending lab approval").WithCode(apperrors.CodeInvalidTransition))

	req := asServer(jsonRequest(http.MethodPost, "/api/lab/pending/e-1/approve", nil), labTechnician)
	req.SetPathValue("id", "e-1")
	w := httptest.NewRecorder()
	handler.Approve(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CodeInvalidTransition, decodeError(t, w).Code)
}

func TestLabHandler_CreateRequest(t *testing.T) {
	requests := new(MockLabRequestService)
	handler := handlers.NewLabHandler(new(MockLabGateService), requests)
	requests.On("Request", mock.Anything, mock.Anything, "e-1", "Full blood count", "").
		Return(&entities.LabRequest{ID: "lr-1", Status: entities.LabRequestPending}, nil)

	payload := map[string]string{"queue_entry_id": "e-1", "test_name": "Full blood count"}

	w := httptest.NewRecorder()
	handler.CreateRequest(w, asServer(jsonRequest(http.MethodPost, "/api/lab/requests", payload), cardiologist))
	assert.Equal(t, http.StatusCreated, w.Code)

	// lab technicians order nothing
	w = httptest.NewRecorder()
	handler.CreateRequest(w, asServer(jsonRequest(http.MethodPost, "/api/lab/requests", payload), labTechnician))
	assert.Equal(t, http.StatusForbidden, w.Code)
	requests.AssertNumberOfCalls(t, "Request", 1)
}

func TestLabHandler_CompleteRequest(t *testing.T) {
	requests := new(MockLabRequestService)
	handler := handlers.NewLabHandler(new(MockLabGateService), requests)
	requests.On("Complete", mock.Anything, mock.Anything, "lr-1", "negative").
		Return(&entities.LabRequest{ID: "lr-1", Status: entities.LabRequestComplete, Result: "negative"}, nil)

	req := asServer(jsonRequest(http.MethodPost, "/api/lab/requests/lr-1/complete",
		map[string]string{"result": "negative"}), labTechnician)
	req.SetPathValue("id", "lr-1")
	w := httptest.NewRecorder()
	handler.CompleteRequest(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"negative"`)
}
