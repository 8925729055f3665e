package store

import (
	"sort"
	"time"

	"cloudshield/internal/model"
)

// SeedSpec sizes the startup dataset.
type SeedSpec struct {
	Logs           int
	Anomalies      int
	TimeSeriesDays int
}

// Seed fills an empty store with a synthetic dataset: traffic logs and
// reviewed/unreviewed anomalies spread over the past week (anomalies ordered
// newest first, each with its explanation), a chart series, and the fixture
// accounts and detection models shown on the admin pages.
func Seed(s *Store, g *Generator, spec SeedSpec, now time.Time) {
	for i := 0; i < spec.Logs; i++ {
		s.AddLog(g.Log(g.pastTimestamp(now)))
	}

	anomalies := make([]model.AnomalyRecord, spec.Anomalies)
	for i := range anomalies {
		a := g.Anomaly(g.pastTimestamp(now))
		a.Reviewed = g.Chance(0.3)
		anomalies[i] = a
	}
	// Insert oldest first so the head of the collection ends up newest.
	sort.Slice(anomalies, func(i, j int) bool {
		return anomalies[i].Timestamp.Before(anomalies[j].Timestamp)
	})
	for _, a := range anomalies {
		s.AddAnomaly(a, g.Explanation(a.ID))
	}

	if spec.TimeSeriesDays > 0 {
		s.SetTimeSeries(g.TimeSeries(spec.TimeSeriesDays, now))
	}

	for _, u := range seedUsers() {
		s.AddUser(u)
	}
	s.SetModels(seedModels(now))
}

func seedUsers() []model.ManagedUser {
	return []model.ManagedUser{
		{ID: "1", Name: "John Doe", Email: "john@example.com", Role: model.RoleAdmin, Status: model.UserActive},
		{ID: "2", Name: "Jane Smith", Email: "jane@example.com", Role: model.RoleUser, Status: model.UserActive},
		{ID: "3", Name: "Bob Johnson", Email: "bob@example.com", Role: model.RoleUser, Status: model.UserInactive},
		{ID: "4", Name: "Alice Brown", Email: "alice@example.com", Role: model.RoleModerator, Status: model.UserActive},
		{ID: "5", Name: "Charlie Davis", Email: "charlie@example.com", Role: model.RoleUser, Status: model.UserActive},
	}
}

func seedModels(now time.Time) []model.DetectionModel {
	return []model.DetectionModel{
		{
			ID: "1", Name: "Isolation Forest", Type: "anomaly", Version: "1.0.3",
			Status: model.ModelRunning, Accuracy: 87.5, LastTrained: now.AddDate(0, 0, -26),
			DataPoints: 15843, CPU: 15, Memory: 28,
		},
		{
			ID: "2", Name: "Local Outlier Factor", Type: "anomaly", Version: "2.1.0",
			Status: model.ModelRunning, Accuracy: 91.2, LastTrained: now.AddDate(0, 0, -9),
			DataPoints: 22150, CPU: 24, Memory: 42,
		},
		{
			ID: "3", Name: "One-Class SVM", Type: "anomaly", Version: "1.2.5",
			Status: model.ModelStopped, Accuracy: 85.7, LastTrained: now.AddDate(0, 0, -49),
			DataPoints: 9876, CPU: 0, Memory: 0,
		},
		{
			ID: "4", Name: "Neural Network", Type: "classification", Version: "3.0.1",
			Status: model.ModelRunning, Accuracy: 89.3, LastTrained: now.AddDate(0, 0, -1),
			DataPoints: 31245, CPU: 75, Memory: 85,
		},
	}
}
