package model

import "time"

// Severity classifies how serious a detected anomaly is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists all valid severities, most serious first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Action is the response taken against an anomalous connection.
type Action string

const (
	ActionBlocked     Action = "blocked"
	ActionAllowed     Action = "allowed"
	ActionFlagged     Action = "flagged"
	ActionQuarantined Action = "quarantined"
)

var Actions = []Action{ActionBlocked, ActionAllowed, ActionFlagged, ActionQuarantined}

// Role is the privilege level of a session or managed user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleModerator:
		return true
	}
	return false
}

// UserStatus marks whether a managed account is usable.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive
}

// ModelStatus is the lifecycle state of a detection model deployment.
type ModelStatus string

const (
	ModelRunning  ModelStatus = "running"
	ModelStopped  ModelStatus = "stopped"
	ModelTraining ModelStatus = "training"
)

// ModelType names the detector family behind an explanation.
type ModelType string

const (
	ModelIsolationForest    ModelType = "Isolation Forest"
	ModelLocalOutlierFactor ModelType = "Local Outlier Factor"
	ModelOneClassSVM        ModelType = "One-Class SVM"
)

var ModelTypes = []ModelType{ModelIsolationForest, ModelLocalOutlierFactor, ModelOneClassSVM}

// GeneratedProtocols is the protocol set for synthetic traffic.
var GeneratedProtocols = []string{"TCP", "UDP", "HTTP", "HTTPS", "FTP", "SSH"}

// UploadProtocols is the narrower set assigned to uploaded log entries.
var UploadProtocols = []string{"TCP", "UDP", "HTTP", "HTTPS"}

// LogRecord is a single captured network log entry. Records are immutable
// after creation.
type LogRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	SourceIP      string    `json:"sourceIp"`
	DestinationIP string    `json:"destinationIp"`
	Protocol      string    `json:"protocol"`
	Encrypted     bool      `json:"encrypted"`
	Size          int64     `json:"size"`
}

// AnomalyRecord is a flagged network event. Reviewed is the only field
// mutated after creation.
type AnomalyRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Severity      Severity  `json:"severity"`
	SourceIP      string    `json:"sourceIp"`
	DestinationIP string    `json:"destinationIp"`
	Protocol      string    `json:"protocol"`
	Action        Action    `json:"action"`
	Confidence    float64   `json:"confidence"`
	Reviewed      bool      `json:"reviewed"`
	Details       string    `json:"details"`
}

// FeatureImportance is one (feature, weight) attribution entry.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ExplanationRecord attributes an anomaly to weighted input features via two
// independent methods. One-to-one with its anomaly, immutable after creation.
type ExplanationRecord struct {
	ID                  string              `json:"id"`
	AnomalyID           string              `json:"anomalyId"`
	ModelType           ModelType           `json:"modelType"`
	SHAP                []FeatureImportance `json:"shap"`
	LIME                []FeatureImportance `json:"lime"`
	ContributingFactors []string            `json:"contributingFactors"`
	Recommendations     []string            `json:"recommendations"`
}

// StatsSummary is derived from the current store contents, never stored.
type StatsSummary struct {
	TotalLogs         int     `json:"totalLogs"`
	TotalAnomalies    int     `json:"totalAnomalies"`
	CriticalAnomalies int     `json:"criticalAnomalies"`
	HighAnomalies     int     `json:"highAnomalies"`
	MediumAnomalies   int     `json:"mediumAnomalies"`
	LowAnomalies      int     `json:"lowAnomalies"`
	AlertRate         float64 `json:"alertRate"`
	AvgConfidence     float64 `json:"avgConfidence"`
}

// TimeSeriesPoint is one day of chart data.
type TimeSeriesPoint struct {
	Date      string `json:"date"`
	Logs      int    `json:"logs"`
	Anomalies int    `json:"anomalies"`
}

// SessionUser is the authenticated identity for the current session.
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// ManagedUser is an account row on the user-management admin page.
type ManagedUser struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   Role       `json:"role"`
	Status UserStatus `json:"status"`
}

// DetectionModel is a deployed detector on the model-management page.
type DetectionModel struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Version     string      `json:"version"`
	Status      ModelStatus `json:"status"`
	Accuracy    float64     `json:"accuracy"`
	LastTrained time.Time   `json:"lastTrained"`
	DataPoints  int         `json:"dataPoints"`
	CPU         int         `json:"cpu"`
	Memory      int         `json:"memory"`
}
