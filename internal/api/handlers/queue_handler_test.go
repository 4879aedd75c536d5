package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospitalqueue/internal/api/handlers"
	"github.com/zatekoja/hospitalqueue/internal/api/middleware"
	"github.com/zatekoja/hospitalqueue/internal/application/services"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// MockQueueService mocks the queue operations
type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) CheckIn(ctx context.Context, req services.CheckInRequest) (*services.CheckInResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CheckInResult), args.Error(1)
}

func (m *MockQueueService) GetStatus(ctx context.Context, queueNumber string) (*services.TicketStatus, error) {
	args := m.Called(ctx, queueNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TicketStatus), args.Error(1)
}

func (m *MockQueueService) ActiveQueue(ctx context.Context, department string) (*services.ActiveQueue, error) {
	args := m.Called(ctx, department)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ActiveQueue), args.Error(1)
}

func (m *MockQueueService) Cancel(ctx context.Context, entryID, reason string) (*entities.QueueEntry, error) {
	args := m.Called(ctx, entryID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.QueueEntry), args.Error(1)
}

func (m *MockQueueService) Complete(ctx context.Context, server *entities.Server, notes string) (*entities.QueueEntry, error) {
	args := m.Called(ctx, server, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.QueueEntry), args.Error(1)
}

// MockDispatchService mocks call-next
type MockDispatchService struct {
	mock.Mock
}

func (m *MockDispatchService) CallNext(ctx context.Context, server *entities.Server, department string) (*services.DispatchResult, error) {
	args := m.Called(ctx, server, department)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DispatchResult), args.Error(1)
}

type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func jsonRequest(method, target string, payload interface{}) *http.Request {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asServer(req *http.Request, server *entities.Server) *http.Request {
	return req.WithContext(middleware.WithServer(req.Context(), server))
}

var cardiologist = &entities.Server{ID: "d-1", Name: "Dr Bello", Role: entities.RoleDoctor, Department: "Cardiology"}

func TestQueueHandler_CheckIn(t *testing.T) {
	t.Run("issues a ticket", func(t *testing.T) {
		queue := new(MockQueueService)
		handler := handlers.NewQueueHandler(queue, new(MockDispatchService))

		queue.On("CheckIn", mock.Anything, services.CheckInRequest{CardNumber: "CARD-001", Department: "Cardiology"}).
			Return(&services.CheckInResult{
				QueueNumber:       "CARD-001",
				EstimatedWaitTime: 15,
				Status:            entities.QueueStatusWaiting,
			}, nil)

		w := httptest.NewRecorder()
		handler.CheckIn(w, jsonRequest(http.MethodPost, "/api/queue/check-in",
			map[string]string{"card_number": "CARD-001", "department": "Cardiology"}))

		assert.Equal(t, http.StatusCreated, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "CARD-001", body["queue_number"])
		assert.Equal(t, float64(15), body["estimated_wait_time"])
		assert.Equal(t, "waiting", body["status"])
		queue.AssertExpectations(t)
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation",
			err:        apperrors.NewValidationError("department is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
		},
		{
			name:       "unknown patient",
			err:        apperrors.NewNotFoundError("patient not found").WithCode(apperrors.CodePatientNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   apperrors.CodePatientNotFound,
		},
		{
			name: "duplicate active entry",
			err: apperrors.NewConflictError("patient already queued").
				WithCode(apperrors.CodeDuplicateActiveEntry).
				WithDetail("existing_entry", &entities.QueueEntry{QueueNumber: "CARD-004"}),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeDuplicateActiveEntry,
		},
		{
			name:       "generation failed",
			err:        apperrors.NewGenerationFailedError("no free number", nil),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.CodeGenerationFailed,
		},
		{
			name:       "unexpected error",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := new(MockQueueService)
			handler := handlers.NewQueueHandler(queue, new(MockDispatchService))
			queue.On("CheckIn", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := httptest.NewRecorder()
			handler.CheckIn(w, jsonRequest(http.MethodPost, "/api/queue/check-in",
				map[string]string{"card_number": "CARD-001", "department": "Cardiology"}))

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, body.Error, "connection reset")
		})
	}
}

func TestQueueHandler_CheckInDuplicateCarriesExistingEntry(t *testing.T) {
	queue := new(MockQueueService)
	handler := handlers.NewQueueHandler(queue, new(MockDispatchService))
	queue.On("CheckIn", mock.Anything, mock.Anything).Return(nil,
		apperrors.NewConflictError("patient already queued").
			WithCode(apperrors.CodeDuplicateActiveEntry).
			WithDetail("existing_entry", &entities.QueueEntry{QueueNumber: "CARD-004", Status: entities.QueueStatusWaiting}))

	w := httptest.NewRecorder()
	handler.CheckIn(w, jsonRequest(http.MethodPost, "/api/queue/check-in", map[string]string{"patient_id": "p-1"}))

	body := decodeError(t, w)
	existing, ok := body.Details["existing_entry"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "CARD-004", existing["queue_number"])
}

func TestQueueHandler_CheckInInvalidJSON(t *testing.T) {
	queue := new(MockQueueService)
	handler := handlers.NewQueueHandler(queue, new(MockDispatchService))

	req := httptest.NewRequest(http.MethodPost, "/api/queue/check-in", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	handler.CheckIn(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	queue.AssertNotCalled(t, "CheckIn", mock.Anything, mock.Anything)
}

func TestQueueHandler_GetStatus(t *testing.T) {
	queue := new(MockQueueService)
	handler := handlers.NewQueueHandler(queue, new(MockDispatchService))
	position, wait := 3, 45
	queue.On("GetStatus", mock.Anything, "CARD-002").Return(&services.TicketStatus{
		QueueNumber:       "CARD-002",
		Department:        "Cardiology",
		Status:            entities.QueueStatusWaiting,
		Position:          &position,
		EstimatedWaitTime: &wait,
	}, nil)
	queue.On("GetStatus", mock.Anything, "CARD-999").Return(nil,
		apperrors.NewNotFoundError("ticket not found").WithCode(apperrors.CodeEntryNotFound))

	req := httptest.NewRequest(http.MethodGet, "/api/queue/status/CARD-002", nil)
	req.SetPathValue("queueNumber", "CARD-002")
	w := httptest.NewRecorder()
	handler.GetStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["position"])
	assert.Equal(t, float64(45), body["estimated_wait_time"])

	req = httptest.NewRequest(http.MethodGet, "/api/queue/status/CARD-999", nil)
	req.SetPathValue("queueNumber", "CARD-999")
	w = httptest.NewRecorder()
	handler.GetStatus(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueHandler_CallNext(t *testing.T) {
	t.Run("requires an authenticated server", func(t *testing.T) {
		dispatch := new(MockDispatchService)
		handler := handlers.NewQueueHandler(new(MockQueueService), dispatch)

		w := httptest.NewRecorder()
		handler.CallNext(w, jsonRequest(http.MethodPost, "/api/servers/me/call-next", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		dispatch.AssertNotCalled(t, "CallNext", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty queue is not an error", func(t *testing.T) {
		dispatch := new(MockDispatchService)
		handler := handlers.NewQueueHandler(new(MockQueueService), dispatch)
		dispatch.On("CallNext", mock.Anything, cardiologist, "").
			Return(&services.DispatchResult{Empty: true, Department: "Cardiology"}, nil)

		w := httptest.NewRecorder()
		handler.CallNext(w, asServer(jsonRequest(http.MethodPost, "/api/servers/me/call-next", nil), cardiologist))

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["empty"])
		assert.Equal(t, "no patients waiting", body["message"])
	})

	t.Run("calls the next patient", func(t *testing.T) {
		dispatch := new(MockDispatchService)
		handler := handlers.NewQueueHandler(new(MockQueueService), dispatch)
		dispatch.On("CallNext", mock.Anything, cardiologist, "Pediatrics").Return(&services.DispatchResult{
			Department: "Pediatrics",
			Entry:      &entities.QueueEntry{QueueNumber: "PEDI-003", Status: entities.QueueStatusInProgress},
		}, nil)

		w := httptest.NewRecorder()
		handler.CallNext(w, asServer(jsonRequest(http.MethodPost, "/api/servers/me/call-next",
			map[string]string{"department": "Pediatrics"}), cardiologist))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"queue_number":"PEDI-003"`)
	})

	t.Run("server busy", func(t *testing.T) {
		dispatch := new(MockDispatchService)
		handler := handlers.NewQueueHandler(new(MockQueueService), dispatch)
		dispatch.On("CallNext", mock.Anything, cardiologist, "").Return(nil,
			apperrors.NewConflictError("server already has a patient in progress").WithCode(apperrors.CodeServerBusy))

		w := httptest.NewRecorder()
		handler.CallNext(w, asServer(jsonRequest(http.MethodPost, "/api/servers/me/call-next", nil), cardiologist))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperrors.CodeServerBusy, decodeError(t, w).Code)
	})
}

func TestQueueHandler_Complete(t *testing.T) {
	queue := new(MockQueueService)
	handler := handlers.NewQueueHandler(queue, new(MockDispatchService))
	queue.On("Complete", mock.Anything, cardiologist, "").Return(nil,
		apperrors.NewNotFoundError("no patient in progress").WithCode(apperrors.CodeNoActiveEntry))

	w := httptest.NewRecorder()
	handler.Complete(w, asServer(jsonRequest(http.MethodPost, "/api/servers/me/complete", nil), cardiologist))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeNoActiveEntry, decodeError(t, w).Code)
}

func TestQueueHandler_Cancel(t *testing.T) {
	queue := new(MockQueueService)
	handler := handlers.NewQueueHandler(queue, new(MockDispatchService))
	queue.On("Cancel", mock.Anything, "e-1", "patient left").
		Return(&entities.QueueEntry{ID: "e-1", Status: entities.QueueStatusCancelled}, nil)

	req := asServer(jsonRequest(http.MethodPost, "/api/queue/entries/e-1/cancel",
		map[string]string{"reason": "patient left"}), cardiologist)
	req.SetPathValue("id", "e-1")
	w := httptest.NewRecorder()
	handler.Cancel(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)
	queue.AssertExpectations(t)
}
