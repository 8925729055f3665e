package mockapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloudshield/internal/metrics"
	"cloudshield/internal/model"
	"cloudshield/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config tunes the simulated backend behaviour.
type Config struct {
	LatencyMin  time.Duration // lower bound of artificial round-trip delay
	LatencyMax  time.Duration // upper bound (exclusive)
	FailureRate float64       // probability in [0,1] of an injected transient failure
	AdminRate   float64       // probability a login is granted the admin role
	TokenSecret string        // HMAC secret for issued session tokens
	TokenTTL    time.Duration
	TrainStep   time.Duration // wall time per 10% of simulated training progress
}

// AuthResponse is what login and register resolve with.
type AuthResponse struct {
	Token string            `json:"token"`
	User  model.SessionUser `json:"user"`
}

// Upload describes an uploaded file. Only the byte size is ever inspected;
// contents are never read or transmitted.
type Upload struct {
	Name string
	Size int64
}

// Service stands in for a remote security backend. Every operation waits a
// uniform-random artificial latency, validates its input, then rolls an
// independent injected-failure chance before touching the store. Failed
// calls never partially mutate state.
type Service struct {
	store  *store.Store
	gen    *store.Generator
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time

	trainMu  sync.Mutex
	training map[string]int
}

func NewService(st *store.Store, gen *store.Generator, cfg Config, logger *logrus.Logger) *Service {
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = "cloudshield-dev-secret"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.TrainStep <= 0 {
		cfg.TrainStep = 800 * time.Millisecond
	}
	return &Service{
		store:    st,
		gen:      gen,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		training: make(map[string]int),
	}
}

// Authentication

func (s *Service) Login(ctx context.Context, email, password string) (resp *AuthResponse, err error) {
	const op = "login"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return nil, err
	}

	if email == "" || password == "" {
		return nil, NewError(http.StatusBadRequest, "Email and password are required")
	}
	if s.injectFailure(op) {
		return nil, NewError(http.StatusUnauthorized, "Authentication failed. Please check your credentials.")
	}

	role := model.RoleUser
	if s.gen.Chance(s.cfg.AdminRate) {
		role = model.RoleAdmin
	}
	user := model.SessionUser{
		ID:    uuid.NewString(),
		Name:  localPart(email),
		Email: email,
		Role:  role,
	}
	token, signErr := s.signToken(user)
	if signErr != nil {
		err = NewError(http.StatusInternalServerError, "Failed to issue session token")
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Register(ctx context.Context, name, email, password string) (resp *AuthResponse, err error) {
	const op = "register"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return nil, err
	}

	if name == "" || email == "" || password == "" {
		return nil, NewError(http.StatusBadRequest, "All fields are required")
	}
	if s.injectFailure(op) {
		return nil, NewError(http.StatusInternalServerError, "Registration failed. Please try again later.")
	}

	user := model.SessionUser{
		ID:    uuid.NewString(),
		Name:  name,
		Email: email,
		Role:  model.RoleUser,
	}
	token, signErr := s.signToken(user)
	if signErr != nil {
		err = NewError(http.StatusInternalServerError, "Failed to issue session token")
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// Logout only simulates the round trip; it has no store side effect and
// never fails beyond cancellation.
func (s *Service) Logout(ctx context.Context) (err error) {
	const op = "logout"
	latency, err := s.delay(ctx)
	metrics.ObserveRequest(op, latency, err)
	return err
}

// Dashboard

func (s *Service) Stats(ctx context.Context) (summary model.StatsSummary, err error) {
	const op = "stats"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.StatsSummary{}, err
	}
	if s.injectFailure(op) {
		return model.StatsSummary{}, NewError(http.StatusInternalServerError, "Failed to fetch statistics")
	}
	return s.store.Stats(), nil
}

func (s *Service) TimeSeries(ctx context.Context, days int) (points []model.TimeSeriesPoint, err error) {
	const op = "timeseries"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}
	if s.injectFailure(op) {
		return nil, NewError(http.StatusInternalServerError, "Failed to fetch time series data")
	}
	return s.store.TimeSeries(days), nil
}

// Anomalies

func (s *Service) Anomalies(ctx context.Context, page, limit int) (items []model.AnomalyRecord, total int, err error) {
	const op = "anomalies"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if s.injectFailure(op) {
		return nil, 0, NewError(http.StatusInternalServerError, "Failed to fetch anomalies")
	}
	items, total = s.store.Anomalies(page, limit)
	return items, total, nil
}

func (s *Service) AnomalyByID(ctx context.Context, id string) (a model.AnomalyRecord, err error) {
	const op = "anomaly_by_id"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.AnomalyRecord{}, err
	}
	a, ok := s.store.AnomalyByID(id)
	if !ok {
		return model.AnomalyRecord{}, NewError(http.StatusNotFound, "Anomaly not found")
	}
	if s.injectFailure(op) {
		return model.AnomalyRecord{}, NewError(http.StatusInternalServerError, "Failed to fetch anomaly details")
	}
	return a, nil
}

// ReviewAnomaly flips the reviewed flag, the sole anomaly mutation. The
// existence check runs before the failure roll so a missing id always
// surfaces 404.
func (s *Service) ReviewAnomaly(ctx context.Context, id string, reviewed bool) (a model.AnomalyRecord, err error) {
	const op = "review_anomaly"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.AnomalyRecord{}, err
	}
	if _, ok := s.store.AnomalyByID(id); !ok {
		return model.AnomalyRecord{}, NewError(http.StatusNotFound, "Anomaly not found")
	}
	if s.injectFailure(op) {
		return model.AnomalyRecord{}, NewError(http.StatusInternalServerError, "Failed to update anomaly review status")
	}
	a, ok := s.store.ReviewAnomaly(id, reviewed)
	if !ok {
		return model.AnomalyRecord{}, NewError(http.StatusNotFound, "Anomaly not found")
	}
	return a, nil
}

func (s *Service) Explanation(ctx context.Context, anomalyID string) (e model.ExplanationRecord, err error) {
	const op = "explanation"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.ExplanationRecord{}, err
	}
	e, ok := s.store.ExplanationForAnomaly(anomalyID)
	if !ok {
		return model.ExplanationRecord{}, NewError(http.StatusNotFound, "Explanation not found")
	}
	if s.injectFailure(op) {
		return model.ExplanationRecord{}, NewError(http.StatusInternalServerError, "Failed to fetch explanation")
	}
	return e, nil
}

// Logs

func (s *Service) Logs(ctx context.Context, page, limit int) (items []model.LogRecord, total int, err error) {
	const op = "logs"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if s.injectFailure(op) {
		return nil, 0, NewError(http.StatusInternalServerError, "Failed to fetch logs")
	}
	items, total = s.store.Logs(page, limit)
	return items, total, nil
}

// UploadLog records an uploaded file as a fresh log entry at the head of the
// collection. The entry's size is the upload's byte size; IPs and protocol
// are synthesized.
func (s *Service) UploadLog(ctx context.Context, upload Upload, encrypted bool) (l model.LogRecord, err error) {
	const op = "upload_log"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.LogRecord{}, err
	}
	if upload.Size < 0 {
		return model.LogRecord{}, NewError(http.StatusBadRequest, "Invalid file size")
	}
	if s.injectFailure(op) {
		return model.LogRecord{}, NewError(http.StatusInternalServerError, "Failed to upload log")
	}
	l = s.gen.UploadLog(upload.Size, encrypted, s.now())
	s.store.AddLog(l)
	return l, nil
}

// User management

func (s *Service) Users(ctx context.Context, query string) (users []model.ManagedUser, err error) {
	const op = "users"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return nil, err
	}
	if s.injectFailure(op) {
		return nil, NewError(http.StatusInternalServerError, "Failed to fetch users")
	}
	return s.store.Users(query), nil
}

func (s *Service) AddUser(ctx context.Context, name, email string, role model.Role) (u model.ManagedUser, err error) {
	const op = "add_user"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.ManagedUser{}, err
	}
	if name == "" || email == "" {
		return model.ManagedUser{}, NewError(http.StatusBadRequest, "Name and email are required")
	}
	if !role.Valid() {
		role = model.RoleUser
	}
	if s.injectFailure(op) {
		return model.ManagedUser{}, NewError(http.StatusInternalServerError, "Failed to add user")
	}
	u = model.ManagedUser{
		ID:     uuid.NewString(),
		Name:   name,
		Email:  email,
		Role:   role,
		Status: model.UserActive,
	}
	s.store.AddUser(u)
	return u, nil
}

func (s *Service) SetUserStatus(ctx context.Context, id string, status model.UserStatus) (u model.ManagedUser, err error) {
	const op = "set_user_status"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.ManagedUser{}, err
	}
	if !status.Valid() {
		return model.ManagedUser{}, NewError(http.StatusBadRequest, "Invalid user status")
	}
	if s.injectFailure(op) {
		return model.ManagedUser{}, NewError(http.StatusInternalServerError, "Failed to update user")
	}
	u, ok := s.store.SetUserStatus(id, status)
	if !ok {
		return model.ManagedUser{}, NewError(http.StatusNotFound, "User not found")
	}
	return u, nil
}

func (s *Service) SetUserRole(ctx context.Context, id string, role model.Role) (u model.ManagedUser, err error) {
	const op = "set_user_role"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.ManagedUser{}, err
	}
	if !role.Valid() {
		return model.ManagedUser{}, NewError(http.StatusBadRequest, "Invalid user role")
	}
	if s.injectFailure(op) {
		return model.ManagedUser{}, NewError(http.StatusInternalServerError, "Failed to update user")
	}
	u, ok := s.store.SetUserRole(id, role)
	if !ok {
		return model.ManagedUser{}, NewError(http.StatusNotFound, "User not found")
	}
	return u, nil
}

// Model management

func (s *Service) Models(ctx context.Context) (models []model.DetectionModel, err error) {
	const op = "models"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return nil, err
	}
	if s.injectFailure(op) {
		return nil, NewError(http.StatusInternalServerError, "Failed to fetch models")
	}
	return s.store.Models(), nil
}

// ToggleModel switches a model between running and stopped.
func (s *Service) ToggleModel(ctx context.Context, id string) (m model.DetectionModel, err error) {
	const op = "toggle_model"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return model.DetectionModel{}, err
	}
	m, ok := s.store.ModelByID(id)
	if !ok {
		return model.DetectionModel{}, NewError(http.StatusNotFound, "Model not found")
	}
	if m.Status == model.ModelTraining {
		return model.DetectionModel{}, NewError(http.StatusConflict, "Model is currently training")
	}
	if s.injectFailure(op) {
		return model.DetectionModel{}, NewError(http.StatusInternalServerError, "Failed to update model")
	}
	next := model.ModelRunning
	if m.Status == model.ModelRunning {
		next = model.ModelStopped
	}
	m, _ = s.store.SetModelStatus(id, next)
	return m, nil
}

// TrainModel flips a model into training and simulates progress in the
// background: 10% per TrainStep, then back to running with a small accuracy
// bump and a fresh LastTrained stamp.
func (s *Service) TrainModel(ctx context.Context, id string) (err error) {
	const op = "train_model"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return err
	}
	m, ok := s.store.ModelByID(id)
	if !ok {
		return NewError(http.StatusNotFound, "Model not found")
	}
	if m.Status == model.ModelTraining {
		return NewError(http.StatusConflict, "Model is currently training")
	}
	if s.injectFailure(op) {
		return NewError(http.StatusInternalServerError, "Failed to start training")
	}

	s.trainMu.Lock()
	s.training[id] = 0
	s.trainMu.Unlock()
	s.store.SetModelStatus(id, model.ModelTraining)
	s.logger.WithField("model", m.Name).Info("Model training started")

	go s.runTraining(id)
	return nil
}

// TrainingProgress reports simulated progress in [0,100] for a training
// model; training is false once the run has completed (or never started).
func (s *Service) TrainingProgress(ctx context.Context, id string) (progress int, training bool, err error) {
	const op = "training_progress"
	latency, err := s.delay(ctx)
	defer func() { metrics.ObserveRequest(op, latency, err) }()
	if err != nil {
		return 0, false, err
	}
	if _, ok := s.store.ModelByID(id); !ok {
		return 0, false, NewError(http.StatusNotFound, "Model not found")
	}

	s.trainMu.Lock()
	progress, training = s.training[id]
	s.trainMu.Unlock()
	if !training {
		progress = 100
	}
	return progress, training, nil
}

func (s *Service) runTraining(id string) {
	for p := 10; p <= 100; p += 10 {
		time.Sleep(s.cfg.TrainStep)
		s.trainMu.Lock()
		s.training[id] = p
		s.trainMu.Unlock()
	}
	s.store.MarkModelTrained(id, 2.5, s.now())
	s.trainMu.Lock()
	delete(s.training, id)
	s.trainMu.Unlock()
	s.logger.WithField("model", id).Info("Model training completed")
}

// Call contract helpers

// delay waits the uniform-random artificial latency, bailing out early if
// the caller's context is cancelled.
func (s *Service) delay(ctx context.Context) (time.Duration, error) {
	d := s.gen.DurationIn(s.cfg.LatencyMin, s.cfg.LatencyMax)
	if d <= 0 {
		return 0, ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return d, ctx.Err()
	case <-timer.C:
		return d, nil
	}
}

// injectFailure rolls the independent transient-failure chance. Validation
// has already run by the time this is consulted.
func (s *Service) injectFailure(op string) bool {
	if s.cfg.FailureRate <= 0 || !s.gen.Chance(s.cfg.FailureRate) {
		return false
	}
	metrics.ObserveInjectedFailure(op)
	s.logger.WithField("operation", op).Debug("Injected transient failure")
	return true
}

func (s *Service) signToken(user model.SessionUser) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.TokenSecret))
}

func localPart(email string) string {
	return strings.SplitN(email, "@", 2)[0]
}
