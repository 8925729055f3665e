package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloudshield/internal/mockapi"
	"cloudshield/internal/model"
	"cloudshield/internal/realtime"
	"cloudshield/internal/session"
	"cloudshield/internal/store"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	router *mux.Router
	store  *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := testLogger()
	st := store.New(logger)
	gen := store.NewGenerator(9)
	api := mockapi.NewService(st, gen, mockapi.Config{}, logger)
	sim := realtime.New(st, gen, 10*time.Millisecond, 0.15, logger)
	sess := session.NewManager(api, session.NewMemoryStore(), logger)
	h := NewHandlers(api, sess, sim, logger)

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/auth/login", h.Login).Methods("POST")
	v1.HandleFunc("/auth/register", h.Register).Methods("POST")
	v1.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	v1.HandleFunc("/stats", h.GetStats).Methods("GET")
	v1.HandleFunc("/stats/timeseries", h.GetTimeSeries).Methods("GET")
	v1.HandleFunc("/anomalies", h.GetAnomalies).Methods("GET")
	v1.HandleFunc("/anomalies/{id}", h.GetAnomaly).Methods("GET")
	v1.HandleFunc("/anomalies/{id}/review", h.ReviewAnomaly).Methods("PATCH")
	v1.HandleFunc("/explanations/{anomalyId}", h.GetExplanation).Methods("GET")
	v1.HandleFunc("/logs", h.GetLogs).Methods("GET")
	v1.HandleFunc("/logs/upload", h.UploadLog).Methods("POST")
	v1.HandleFunc("/users", h.GetUsers).Methods("GET")
	v1.HandleFunc("/users", h.AddUser).Methods("POST")
	v1.HandleFunc("/users/{id}/status", h.SetUserStatus).Methods("PATCH")
	v1.HandleFunc("/users/{id}/role", h.SetUserRole).Methods("PATCH")
	v1.HandleFunc("/models", h.GetModels).Methods("GET")
	v1.HandleFunc("/models/{id}/toggle", h.ToggleModel).Methods("POST")
	v1.HandleFunc("/models/{id}/train", h.TrainModel).Methods("POST")
	v1.HandleFunc("/models/{id}/progress", h.TrainingProgress).Methods("GET")
	v1.HandleFunc("/stream/events", h.StreamEvents).Methods("GET")

	return &testEnv{router: r, store: st}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/auth/login",
		map[string]string{"email": "alice@example.com", "password": "secret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var resp mockapi.AuthResponse
	decode(t, rr, &resp)
	if resp.Token == "" || resp.User.Email != "alice@example.com" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLoginEndpointValidation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/auth/login", map[string]string{"email": "alice@example.com"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var apiErr mockapi.Error
	decode(t, rr, &apiErr)
	if apiErr.Code != http.StatusBadRequest || apiErr.Message == "" {
		t.Errorf("error body = %+v", apiErr)
	}
}

func TestLoginEndpointBadBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRegisterAndLogoutEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/auth/register",
		map[string]string{"name": "Bob", "email": "bob@example.com", "password": "pw"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, "POST", "/api/v1/auth/logout", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rr.Code)
	}
}

func TestGetAnomaliesEnvelope(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 12; i++ {
		a := model.AnomalyRecord{ID: "a-" + string(rune('a'+i))}
		env.store.AddAnomaly(a, model.ExplanationRecord{ID: "e", AnomalyID: a.ID})
	}

	rr := env.do(t, "GET", "/api/v1/anomalies?page=2&limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var envelope struct {
		Data  []model.AnomalyRecord `json:"data"`
		Total int                   `json:"total"`
		Page  int                   `json:"page"`
		Limit int                   `json:"limit"`
	}
	decode(t, rr, &envelope)
	if envelope.Total != 12 || envelope.Page != 2 || envelope.Limit != 5 {
		t.Errorf("envelope = %+v", envelope)
	}
	if len(envelope.Data) != 5 {
		t.Errorf("page size = %d", len(envelope.Data))
	}
}

func TestReviewAnomalyEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddAnomaly(model.AnomalyRecord{ID: "a-1"},
		model.ExplanationRecord{ID: "e-1", AnomalyID: "a-1"})

	rr := env.do(t, "PATCH", "/api/v1/anomalies/a-1/review", map[string]bool{"reviewed": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var a model.AnomalyRecord
	decode(t, rr, &a)
	if !a.Reviewed {
		t.Error("reviewed flag not set in response")
	}

	rr = env.do(t, "PATCH", "/api/v1/anomalies/missing/review", map[string]bool{"reviewed": true})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing id status = %d", rr.Code)
	}
	var apiErr mockapi.Error
	decode(t, rr, &apiErr)
	if apiErr.Code != http.StatusNotFound {
		t.Errorf("error body = %+v", apiErr)
	}
}

func TestGetExplanationEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddAnomaly(model.AnomalyRecord{ID: "a-1"},
		model.ExplanationRecord{ID: "e-1", AnomalyID: "a-1", ModelType: model.ModelIsolationForest})

	rr := env.do(t, "GET", "/api/v1/explanations/a-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var e model.ExplanationRecord
	decode(t, rr, &e)
	if e.AnomalyID != "a-1" {
		t.Errorf("explanation = %+v", e)
	}

	if rr := env.do(t, "GET", "/api/v1/explanations/missing", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", rr.Code)
	}
}

func TestUploadLogEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "capture.log")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(bytes.Repeat([]byte("x"), 2048))
	mw.WriteField("encrypted", "true")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/logs/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var entry model.LogRecord
	decode(t, rr, &entry)
	if entry.Size != 2048 || !entry.Encrypted {
		t.Errorf("entry = %+v", entry)
	}
}

func TestUploadLogEndpointMissingFile(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("encrypted", "false")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/logs/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUserEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/v1/users",
		map[string]string{"name": "Dave", "email": "dave@example.com", "role": "moderator"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d body = %s", rr.Code, rr.Body.String())
	}
	var u model.ManagedUser
	decode(t, rr, &u)
	if u.Role != model.RoleModerator {
		t.Errorf("role = %q", u.Role)
	}

	rr = env.do(t, "PATCH", "/api/v1/users/"+u.ID+"/status", map[string]string{"status": "inactive"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status update = %d body = %s", rr.Code, rr.Body.String())
	}
	decode(t, rr, &u)
	if u.Status != model.UserInactive {
		t.Errorf("status = %q", u.Status)
	}

	rr = env.do(t, "GET", "/api/v1/users?q=dave", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var users []model.ManagedUser
	decode(t, rr, &users)
	if len(users) != 1 {
		t.Errorf("filtered users = %d", len(users))
	}
}

func TestModelEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetModels([]model.DetectionModel{
		{ID: "m-1", Name: "Isolation Forest", Status: model.ModelStopped, Accuracy: 90},
	})

	rr := env.do(t, "GET", "/api/v1/models", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}

	rr = env.do(t, "POST", "/api/v1/models/m-1/toggle", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle status = %d body = %s", rr.Code, rr.Body.String())
	}
	var m model.DetectionModel
	decode(t, rr, &m)
	if m.Status != model.ModelRunning {
		t.Errorf("status = %q", m.Status)
	}

	rr = env.do(t, "POST", "/api/v1/models/m-1/train", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("train status = %d body = %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, "GET", "/api/v1/models/m-1/progress", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("progress status = %d", rr.Code)
	}
	var progress struct {
		Progress int  `json:"progress"`
		Training bool `json:"training"`
	}
	decode(t, rr, &progress)
	if !progress.Training {
		t.Error("training = false right after train request")
	}

	if rr := env.do(t, "POST", "/api/v1/models/m-1/toggle", nil); rr.Code != http.StatusConflict {
		t.Fatalf("toggle while training = %d", rr.Code)
	}
}

func TestStreamEventsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var hello map[string]string
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello["type"] != "connected" {
		t.Fatalf("hello = %v", hello)
	}

	var ev realtime.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Log.ID == "" {
		t.Error("streamed event carries no log entry")
	}
}
