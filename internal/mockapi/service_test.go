package mockapi

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"cloudshield/internal/model"
	"cloudshield/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestService builds a service with zero latency and failure injection
// disabled unless cfg overrides it.
func newTestService(cfg Config) (*Service, *store.Store) {
	st := store.New(testLogger())
	gen := store.NewGenerator(7)
	return NewService(st, gen, cfg, testLogger()), st
}

func apiError(t *testing.T, err error, wantCode int) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", wantCode)
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *mockapi.Error, got %T: %v", err, err)
	}
	if apiErr.Code != wantCode {
		t.Fatalf("code = %d (%q), want %d", apiErr.Code, apiErr.Message, wantCode)
	}
	return apiErr
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newTestService(Config{})
	ctx := context.Background()

	if _, err := svc.Login(ctx, "", "secret"); err != nil {
		apiError(t, err, http.StatusBadRequest)
	} else {
		t.Fatal("empty email accepted")
	}
	_, err := svc.Login(ctx, "alice@example.com", "")
	apiError(t, err, http.StatusBadRequest)
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newTestService(Config{TokenSecret: "test-secret"})

	resp, err := svc.Login(context.Background(), "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.User.Email != "alice@example.com" {
		t.Errorf("email = %q", resp.User.Email)
	}
	if resp.User.Name != "alice" {
		t.Errorf("name = %q, want local part of email", resp.User.Name)
	}
	if resp.User.Role != model.RoleAdmin && resp.User.Role != model.RoleUser {
		t.Errorf("role = %q", resp.User.Role)
	}

	token, err := jwt.Parse(resp.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("issued token does not verify: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["email"] != "alice@example.com" {
		t.Errorf("token email claim = %v", claims["email"])
	}
}

func TestLoginAdminRate(t *testing.T) {
	svc, _ := newTestService(Config{AdminRate: 1})

	resp, err := svc.Login(context.Background(), "root@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.User.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin with AdminRate=1", resp.User.Role)
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(Config{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "bob@example.com", "pw")
	apiError(t, err, http.StatusBadRequest)

	resp, err := svc.Register(ctx, "Bob", "bob@example.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.User.Name != "Bob" || resp.User.Email != "bob@example.com" {
		t.Errorf("user = %+v", resp.User)
	}
	if resp.User.Role != model.RoleUser {
		t.Errorf("registered role = %q, want user always", resp.User.Role)
	}
	if resp.Token == "" {
		t.Error("register resolved without a token")
	}
}

func TestLogout(t *testing.T) {
	svc, st := newTestService(Config{})
	st.AddLog(model.LogRecord{ID: "log-1"})

	if err := svc.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, total := st.Logs(1, 10); total != 1 {
		t.Error("logout touched the store")
	}
}

func TestUploadLogEndToEnd(t *testing.T) {
	svc, _ := newTestService(Config{})
	ctx := context.Background()

	entry, err := svc.UploadLog(ctx, Upload{Name: "capture.pcap", Size: 2048}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Size != 2048 || !entry.Encrypted {
		t.Fatalf("entry = %+v, want size 2048 encrypted", entry)
	}

	logs, _, err := svc.Logs(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(logs) == 0 || logs[0].ID != entry.ID {
		t.Errorf("uploaded entry is not first in Logs(1,10)")
	}
}

func TestReviewAnomalyNotFound(t *testing.T) {
	// The miss must always surface 404, even when every call would
	// otherwise fail with an injected error.
	for _, rate := range []float64{0, 1} {
		svc, _ := newTestService(Config{FailureRate: rate})
		_, err := svc.ReviewAnomaly(context.Background(), "nonexistent-id", true)
		apiError(t, err, http.StatusNotFound)
	}
}

func TestReviewAnomaly(t *testing.T) {
	svc, st := newTestService(Config{})
	ctx := context.Background()
	st.AddAnomaly(model.AnomalyRecord{ID: "a-1", Severity: model.SeverityHigh},
		model.ExplanationRecord{ID: "e-1", AnomalyID: "a-1"})

	for i := 0; i < 2; i++ {
		a, err := svc.ReviewAnomaly(ctx, "a-1", true)
		if err != nil {
			t.Fatalf("review %d: %v", i, err)
		}
		if !a.Reviewed {
			t.Fatalf("review %d did not stick", i)
		}
	}
	if _, total := st.Anomalies(1, 10); total != 1 {
		t.Error("review duplicated the record")
	}
}

func TestAnomalyLookups(t *testing.T) {
	svc, st := newTestService(Config{})
	ctx := context.Background()
	st.AddAnomaly(model.AnomalyRecord{ID: "a-1"}, model.ExplanationRecord{ID: "e-1", AnomalyID: "a-1"})

	a, err := svc.AnomalyByID(ctx, "a-1")
	if err != nil || a.ID != "a-1" {
		t.Fatalf("AnomalyByID: %v %+v", err, a)
	}
	_, err = svc.AnomalyByID(ctx, "missing")
	apiError(t, err, http.StatusNotFound)

	e, err := svc.Explanation(ctx, "a-1")
	if err != nil || e.AnomalyID != "a-1" {
		t.Fatalf("Explanation: %v %+v", err, e)
	}
	_, err = svc.Explanation(ctx, "missing")
	apiError(t, err, http.StatusNotFound)
}

func TestTimeSeriesDefaultDays(t *testing.T) {
	svc, st := newTestService(Config{})
	points := make([]model.TimeSeriesPoint, 40)
	st.SetTimeSeries(points)

	got, err := svc.TimeSeries(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 30 {
		t.Errorf("default window = %d, want 30", len(got))
	}
}

func TestFailureInjection(t *testing.T) {
	svc, _ := newTestService(Config{FailureRate: 1})
	ctx := context.Background()

	_, err := svc.Stats(ctx)
	apiError(t, err, http.StatusInternalServerError)

	// The login transient maps to 401 rather than the generic 500.
	_, err = svc.Login(ctx, "alice@example.com", "secret")
	apiError(t, err, http.StatusUnauthorized)

	// Validation still runs first.
	_, err = svc.Login(ctx, "", "secret")
	apiError(t, err, http.StatusBadRequest)
}

func TestContextCancellation(t *testing.T) {
	svc, _ := newTestService(Config{
		LatencyMin: 200 * time.Millisecond,
		LatencyMax: 400 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Stats(ctx)
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestUserManagement(t *testing.T) {
	svc, _ := newTestService(Config{})
	ctx := context.Background()

	_, err := svc.AddUser(ctx, "", "dave@example.com", model.RoleUser)
	apiError(t, err, http.StatusBadRequest)

	u, err := svc.AddUser(ctx, "Dave", "dave@example.com", "")
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if u.Role != model.RoleUser || u.Status != model.UserActive {
		t.Errorf("defaults not applied: %+v", u)
	}

	u, err = svc.SetUserStatus(ctx, u.ID, model.UserInactive)
	if err != nil || u.Status != model.UserInactive {
		t.Fatalf("SetUserStatus: %v %+v", err, u)
	}
	_, err = svc.SetUserStatus(ctx, u.ID, "frozen")
	apiError(t, err, http.StatusBadRequest)
	_, err = svc.SetUserRole(ctx, "missing", model.RoleAdmin)
	apiError(t, err, http.StatusNotFound)

	users, err := svc.Users(ctx, "dave")
	if err != nil || len(users) != 1 {
		t.Fatalf("Users: %v %d", err, len(users))
	}
}

func TestToggleModel(t *testing.T) {
	svc, st := newTestService(Config{})
	ctx := context.Background()
	st.SetModels([]model.DetectionModel{{ID: "m-1", Status: model.ModelStopped, Accuracy: 90}})

	m, err := svc.ToggleModel(ctx, "m-1")
	if err != nil || m.Status != model.ModelRunning {
		t.Fatalf("toggle to running: %v %+v", err, m)
	}
	m, err = svc.ToggleModel(ctx, "m-1")
	if err != nil || m.Status != model.ModelStopped {
		t.Fatalf("toggle to stopped: %v %+v", err, m)
	}
	_, err = svc.ToggleModel(ctx, "missing")
	apiError(t, err, http.StatusNotFound)
}

func TestTrainModel(t *testing.T) {
	svc, st := newTestService(Config{TrainStep: time.Millisecond})
	ctx := context.Background()
	st.SetModels([]model.DetectionModel{{ID: "m-1", Status: model.ModelStopped, Accuracy: 90}})

	if err := svc.TrainModel(ctx, "m-1"); err != nil {
		t.Fatalf("TrainModel: %v", err)
	}
	if m, _ := st.ModelByID("m-1"); m.Status != model.ModelTraining {
		t.Fatalf("status = %v immediately after start", m.Status)
	}

	deadline := time.After(2 * time.Second)
	for {
		progress, training, err := svc.TrainingProgress(ctx, "m-1")
		if err != nil {
			t.Fatalf("TrainingProgress: %v", err)
		}
		if !training {
			if progress != 100 {
				t.Fatalf("completed progress = %d, want 100", progress)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("training never completed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	m, _ := st.ModelByID("m-1")
	if m.Status != model.ModelRunning {
		t.Errorf("status = %v after training, want running", m.Status)
	}
	if m.Accuracy != 92.5 {
		t.Errorf("accuracy = %v, want 92.5", m.Accuracy)
	}
	if m.LastTrained.IsZero() {
		t.Error("lastTrained not stamped")
	}

	_, _, err := svc.TrainingProgress(ctx, "missing")
	apiError(t, err, http.StatusNotFound)
}
