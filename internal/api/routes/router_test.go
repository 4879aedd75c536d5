package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/hospitalqueue/internal/adapters/cache"
	"github.com/zatekoja/hospitalqueue/internal/adapters/events"
	"github.com/zatekoja/hospitalqueue/internal/adapters/memory"
	"github.com/zatekoja/hospitalqueue/internal/api/handlers"
	"github.com/zatekoja/hospitalqueue/internal/api/middleware"
	"github.com/zatekoja/hospitalqueue/internal/api/routes"
	"github.com/zatekoja/hospitalqueue/internal/bootstrap"
	"github.com/zatekoja/hospitalqueue/internal/domain/entities"
	"github.com/zatekoja/hospitalqueue/internal/infrastructure/notifications"
	"github.com/zatekoja/hospitalqueue/pkg/clock"
	"github.com/zatekoja/hospitalqueue/pkg/config"
)

type testAPI struct {
	handler http.Handler
	tokens  map[string]string
	sms     *notifications.LogSender
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("QUEUE_DEPARTMENTS", "General Medicine,Cardiology,Laboratory")
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	repos := bootstrap.MemoryRepositories(memory.NewStore())
	bus := events.NewLocalEventBus()
	sms := notifications.NewLogSender()

	svc, err := bootstrap.NewServices(cfg, repos, bus, cache.NewMemoryAdapter(), sms, clock.Real(), nil)
	require.NoError(t, err)
	svc.Events.Start(ctx)
	t.Cleanup(func() {
		svc.Events.Close()
		_ = bus.Close()
	})

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, repos.Staff)
	staff := []*entities.Server{
		{ID: "doctor-card", Name: "Dr Bello", Role: entities.RoleDoctor, Department: "Cardiology"},
		{ID: "labtech-1", Name: "Tech Ade", Role: entities.RoleLabTechnician, Department: "Laboratory"},
	}
	tokens := make(map[string]string)
	for _, s := range staff {
		require.NoError(t, repos.Staff.Create(ctx, s))
		token, err := auth.IssueToken(s, time.Now(), time.Hour)
		require.NoError(t, err)
		tokens[s.ID] = token
	}

	router := routes.NewRouter(
		routes.Handlers{
			Queue:   handlers.NewQueueHandler(svc.Queue, svc.Dispatch),
			Lab:     handlers.NewLabHandler(svc.LabGate, svc.LabRequests),
			Patient: handlers.NewPatientHandler(svc.Patients),
			Display: handlers.NewDisplayHandler(svc.Display),
			SSE:     handlers.NewSSEHandler(bus, svc.Departments),
		},
		auth,
		nil,
		nil,
		[]string{"*"},
	)
	return &testAPI{handler: router.SetupRoutes(), tokens: tokens, sms: sms}
}

func (a *testAPI) do(t *testing.T, method, path, token string, payload interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t)
	w, body := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["stream_clients"])
}

func TestRouter_PatientJourney(t *testing.T) {
	api := newTestAPI(t)
	doctor := api.tokens["doctor-card"]

	w, patient := api.do(t, http.MethodPost, "/api/patients", "", map[string]string{
		"full_name": "Amaka Obi",
		"phone":     "+2348011111111",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	card := patient["card_number"].(string)

	w, ticket := api.do(t, http.MethodPost, "/api/queue/check-in", "", map[string]string{
		"card_number": card,
		"department":  "cardiology",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "CARD-001", ticket["queue_number"])
	assert.Equal(t, "waiting", ticket["status"])

	w, status := api.do(t, http.MethodGet, "/api/queue/status/CARD-001", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), status["position"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	// staff routes reject anonymous callers
	w, _ = api.do(t, http.MethodPost, "/api/servers/me/call-next", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, called := api.do(t, http.MethodPost, "/api/servers/me/call-next", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entry := called["entry"].(map[string]interface{})
	assert.Equal(t, "CARD-001", entry["queue_number"])
	assert.Equal(t, "in_progress", entry["status"])

	w, busy := api.do(t, http.MethodPost, "/api/servers/me/call-next", doctor, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SERVER_BUSY", busy["code"])

	w, done := api.do(t, http.MethodPost, "/api/servers/me/complete", doctor, map[string]string{"notes": "follow up in two weeks"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "complete", done["status"])

	w, empty := api.do(t, http.MethodPost, "/api/servers/me/call-next", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, empty["empty"])

	w, board := api.do(t, http.MethodGet, "/api/display/Cardiology", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), board["waiting_count"])
	assert.NotContains(t, w.Body.String(), "Amaka")

	// the dispatcher texts the patient asynchronously
	assert.Eventually(t, func() bool { return len(api.sms.Sent()) > 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRouter_LabGate(t *testing.T) {
	api := newTestAPI(t)
	doctor := api.tokens["doctor-card"]
	tech := api.tokens["labtech-1"]

	w, patient := api.do(t, http.MethodPost, "/api/patients", "", map[string]string{"full_name": "Bola Ade"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, ticket := api.do(t, http.MethodPost, "/api/queue/check-in", "", map[string]interface{}{
		"patient_id":            patient["id"],
		"department":            "Laboratory",
		"service_type":          "lab_test",
		"requires_lab_approval": true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pending_lab_approval", ticket["status"])
	entryID := ticket["entry"].(map[string]interface{})["id"].(string)

	// doctors cannot decide admission
	w, forbidden := api.do(t, http.MethodPost, "/api/lab/pending/"+entryID+"/approve", doctor, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ROLE_REQUIRED", forbidden["code"])

	w, approved := api.do(t, http.MethodPost, "/api/lab/pending/"+entryID+"/approve", tech, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "waiting", approved["status"])

	w, _ = api.do(t, http.MethodPost, "/api/lab/pending/"+entryID+"/approve", tech, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/queue/check-in", nil)
	req.Header.Set("Origin", "https://kiosk.example.org")
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
