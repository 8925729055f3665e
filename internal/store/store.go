package store

import (
	"math"
	"strings"
	"sync"
	"time"

	"cloudshield/internal/model"

	"github.com/sirupsen/logrus"
)

// Store holds the synthetic collections backing the dashboard. New records
// are inserted at the head of their slice, so index 0 is always the most
// recent entry. All access is guarded by a single RWMutex; callers on any
// goroutine get a consistent view.
type Store struct {
	mu           sync.RWMutex
	logs         []model.LogRecord
	anomalies    []model.AnomalyRecord
	explanations []model.ExplanationRecord
	users        []model.ManagedUser
	models       []model.DetectionModel
	series       []model.TimeSeriesPoint
	maxLogs      int
	maxAnomalies int
	logger       *logrus.Logger
}

func New(logger *logrus.Logger) *Store {
	return &Store{
		logs:         make([]model.LogRecord, 0),
		anomalies:    make([]model.AnomalyRecord, 0),
		explanations: make([]model.ExplanationRecord, 0),
		maxLogs:      50000,
		maxAnomalies: 10000,
		logger:       logger,
	}
}

// Log methods

// AddLog inserts a log entry at the head of the collection. The oldest
// entries are evicted once the cap is reached.
func (s *Store) AddLog(l model.LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs = append([]model.LogRecord{l}, s.logs...)
	if len(s.logs) > s.maxLogs {
		s.logs = s.logs[:s.maxLogs]
	}
}

// Logs returns one page of log entries in store order (newest first) along
// with the total count. Pages are 1-indexed.
func (s *Store) Logs(page, limit int) ([]model.LogRecord, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.logs)
	start, end := pageBounds(page, limit, total)
	result := make([]model.LogRecord, end-start)
	copy(result, s.logs[start:end])
	return result, total
}

// Anomaly methods

// AddAnomaly inserts an anomaly and its explanation at the heads of their
// collections. The explanation must reference the anomaly being added.
func (s *Store) AddAnomaly(a model.AnomalyRecord, e model.ExplanationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.AnomalyID != a.ID {
		s.logger.Warnf("Explanation %s references anomaly %s, expected %s; dropping", e.ID, e.AnomalyID, a.ID)
		return
	}

	s.anomalies = append([]model.AnomalyRecord{a}, s.anomalies...)
	s.explanations = append([]model.ExplanationRecord{e}, s.explanations...)
	if len(s.anomalies) > s.maxAnomalies {
		s.anomalies = s.anomalies[:s.maxAnomalies]
		s.explanations = s.explanations[:s.maxAnomalies]
	}
}

func (s *Store) Anomalies(page, limit int) ([]model.AnomalyRecord, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.anomalies)
	start, end := pageBounds(page, limit, total)
	result := make([]model.AnomalyRecord, end-start)
	copy(result, s.anomalies[start:end])
	return result, total
}

func (s *Store) AnomalyByID(id string) (model.AnomalyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.anomalies {
		if s.anomalies[i].ID == id {
			return s.anomalies[i], true
		}
	}
	return model.AnomalyRecord{}, false
}

// ReviewAnomaly sets the reviewed flag and returns the updated record. This
// is the only mutation path for stored anomalies.
func (s *Store) ReviewAnomaly(id string, reviewed bool) (model.AnomalyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.anomalies {
		if s.anomalies[i].ID == id {
			s.anomalies[i].Reviewed = reviewed
			return s.anomalies[i], true
		}
	}
	return model.AnomalyRecord{}, false
}

// ExplanationForAnomaly looks up the explanation owned by the given anomaly.
func (s *Store) ExplanationForAnomaly(anomalyID string) (model.ExplanationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.explanations {
		if s.explanations[i].AnomalyID == anomalyID {
			return s.explanations[i], true
		}
	}
	return model.ExplanationRecord{}, false
}

// Stats recomputes the dashboard summary from current contents.
func (s *Store) Stats() model.StatsSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.StatsSummary{
		TotalLogs:      len(s.logs),
		TotalAnomalies: len(s.anomalies),
	}

	var confidenceSum float64
	for i := range s.anomalies {
		switch s.anomalies[i].Severity {
		case model.SeverityCritical:
			stats.CriticalAnomalies++
		case model.SeverityHigh:
			stats.HighAnomalies++
		case model.SeverityMedium:
			stats.MediumAnomalies++
		case model.SeverityLow:
			stats.LowAnomalies++
		}
		confidenceSum += s.anomalies[i].Confidence
	}

	if len(s.logs) > 0 {
		stats.AlertRate = round2(float64(len(s.anomalies)) / float64(len(s.logs)) * 100)
	}
	if len(s.anomalies) > 0 {
		stats.AvgConfidence = round2(confidenceSum / float64(len(s.anomalies)))
	}

	return stats
}

// Time series methods

// SetTimeSeries replaces the chart series, oldest day first.
func (s *Store) SetTimeSeries(points []model.TimeSeriesPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = points
}

// TimeSeries returns the most recent days entries of the chart series.
func (s *Store) TimeSeries(days int) []model.TimeSeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if days <= 0 || days > len(s.series) {
		days = len(s.series)
	}
	result := make([]model.TimeSeriesPoint, days)
	copy(result, s.series[len(s.series)-days:])
	return result
}

// Managed user methods

// Users returns accounts whose name or email contains query, newest last.
// An empty query returns every account.
func (s *Store) Users(query string) []model.ManagedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	result := make([]model.ManagedUser, 0, len(s.users))
	for i := range s.users {
		u := s.users[i]
		if query != "" &&
			!strings.Contains(strings.ToLower(u.Name), query) &&
			!strings.Contains(strings.ToLower(u.Email), query) {
			continue
		}
		result = append(result, u)
	}
	return result
}

func (s *Store) AddUser(u model.ManagedUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

func (s *Store) SetUserStatus(id string, status model.UserStatus) (model.ManagedUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].Status = status
			return s.users[i], true
		}
	}
	return model.ManagedUser{}, false
}

func (s *Store) SetUserRole(id string, role model.Role) (model.ManagedUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == id {
			s.users[i].Role = role
			return s.users[i], true
		}
	}
	return model.ManagedUser{}, false
}

// Detection model methods

func (s *Store) SetModels(models []model.DetectionModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = models
}

func (s *Store) Models() []model.DetectionModel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.DetectionModel, len(s.models))
	copy(result, s.models)
	return result
}

func (s *Store) ModelByID(id string) (model.DetectionModel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.models {
		if s.models[i].ID == id {
			return s.models[i], true
		}
	}
	return model.DetectionModel{}, false
}

func (s *Store) SetModelStatus(id string, status model.ModelStatus) (model.DetectionModel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.models {
		if s.models[i].ID == id {
			s.models[i].Status = status
			if status == model.ModelStopped {
				s.models[i].CPU = 0
				s.models[i].Memory = 0
			}
			return s.models[i], true
		}
	}
	return model.DetectionModel{}, false
}

// MarkModelTrained completes a training run: the model goes back to running
// with a bumped accuracy (capped at 99.9) and a fresh LastTrained stamp.
func (s *Store) MarkModelTrained(id string, accuracyBoost float64, trainedAt time.Time) (model.DetectionModel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.models {
		if s.models[i].ID == id {
			s.models[i].Status = model.ModelRunning
			s.models[i].Accuracy = math.Min(s.models[i].Accuracy+accuracyBoost, 99.9)
			s.models[i].LastTrained = trainedAt
			return s.models[i], true
		}
	}
	return model.DetectionModel{}, false
}

// Helpers

func pageBounds(page, limit, total int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start > total {
		return 0, 0
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
