package store

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"cloudshield/internal/model"

	"github.com/google/uuid"
)

// Feature names attributed by every explanation, in canonical order.
var explanationFeatures = []string{
	"packet_size",
	"protocol",
	"time_of_day",
	"source_ip_reputation",
	"connection_frequency",
}

var anomalyDetails = []string{
	"Unusual traffic pattern detected between hosts",
	"Multiple failed login attempts",
	"Suspicious outbound data transfer",
	"Port scanning activity",
	"Potential data exfiltration",
	"Unusual API access pattern",
	"Credential stuffing attempt",
	"Brute force attack detected",
}

var contributingFactors = []string{
	"Unusual time of access",
	"Connection from untrusted IP range",
	"Abnormal data transfer volume",
	"Suspicious protocol usage",
	"Deviation from baseline behavior",
}

var recommendations = []string{
	"Monitor source IP for additional suspicious activity",
	"Verify legitimacy of data transfers",
	"Apply additional authentication for this source",
	"Block access from this IP range",
	"Update firewall rules to restrict this type of traffic",
}

// Generator produces synthetic records. It owns a single rand source behind
// a mutex so the mock service and the realtime simulator can share one
// instance from different goroutines.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. A zero seed picks a time-based one;
// tests pass a fixed seed for reproducible records.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// IP renders four uniform octets as a dotted-decimal address.
func (g *Generator) IP() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%d.%d.%d.%d", g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(256))
}

// DurationIn picks a uniform duration in [min, max).
func (g *Generator) DurationIn(min, max time.Duration) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if max <= min {
		return min
	}
	return min + time.Duration(g.rng.Int63n(int64(max-min)))
}

// Chance rolls true with probability p.
func (g *Generator) Chance(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < p
}

// Log produces a synthetic traffic log entry stamped at now.
func (g *Generator) Log(now time.Time) model.LogRecord {
	src, dst := g.IP(), g.IP()
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.LogRecord{
		ID:            uuid.NewString(),
		Timestamp:     now,
		SourceIP:      src,
		DestinationIP: dst,
		Protocol:      model.GeneratedProtocols[g.rng.Intn(len(model.GeneratedProtocols))],
		Encrypted:     g.rng.Float64() > 0.3,
		Size:          int64(g.rng.Intn(5000)) + 500,
	}
}

// UploadLog produces the log entry recorded for an uploaded file. Only the
// byte size and the caller's encryption flag carry over; everything else is
// synthesized, with the protocol drawn from the narrower upload set.
func (g *Generator) UploadLog(size int64, encrypted bool, now time.Time) model.LogRecord {
	src, dst := g.IP(), g.IP()
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.LogRecord{
		ID:            uuid.NewString(),
		Timestamp:     now,
		SourceIP:      src,
		DestinationIP: dst,
		Protocol:      model.UploadProtocols[g.rng.Intn(len(model.UploadProtocols))],
		Encrypted:     encrypted,
		Size:          size,
	}
}

// Anomaly produces a synthetic anomaly with fresh endpoints.
func (g *Generator) Anomaly(now time.Time) model.AnomalyRecord {
	src, dst := g.IP(), g.IP()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.anomalyLocked(now, src, dst, model.GeneratedProtocols[g.rng.Intn(len(model.GeneratedProtocols))])
}

// AnomalyForLog produces an anomaly flagging the given log entry, sharing
// its endpoints and protocol.
func (g *Generator) AnomalyForLog(l model.LogRecord) model.AnomalyRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.anomalyLocked(l.Timestamp, l.SourceIP, l.DestinationIP, l.Protocol)
}

func (g *Generator) anomalyLocked(now time.Time, src, dst, protocol string) model.AnomalyRecord {
	return model.AnomalyRecord{
		ID:            uuid.NewString(),
		Timestamp:     now,
		Severity:      model.Severities[g.rng.Intn(len(model.Severities))],
		SourceIP:      src,
		DestinationIP: dst,
		Protocol:      protocol,
		Action:        model.Actions[g.rng.Intn(len(model.Actions))],
		Confidence:    math.Round(g.rng.Float64()*100) / 100,
		Reviewed:      false,
		Details:       anomalyDetails[g.rng.Intn(len(anomalyDetails))],
	}
}

// Explanation produces the feature attribution record owned by anomalyID.
func (g *Generator) Explanation(anomalyID string) model.ExplanationRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.ExplanationRecord{
		ID:                  uuid.NewString(),
		AnomalyID:           anomalyID,
		ModelType:           model.ModelTypes[g.rng.Intn(len(model.ModelTypes))],
		SHAP:                g.importancesLocked(),
		LIME:                g.importancesLocked(),
		ContributingFactors: contributingFactors[:g.rng.Intn(3)+2],
		Recommendations:     recommendations[:g.rng.Intn(3)+1],
	}
}

// importancesLocked assigns each feature an independent uniform weight in
// [0, 0.5) and sorts descending.
func (g *Generator) importancesLocked() []model.FeatureImportance {
	result := make([]model.FeatureImportance, len(explanationFeatures))
	for i, f := range explanationFeatures {
		result[i] = model.FeatureImportance{Feature: f, Importance: g.rng.Float64() * 0.5}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Importance > result[j].Importance })
	return result
}

// TimeSeries produces days of chart data ending today, oldest first.
func (g *Generator) TimeSeries(days int, now time.Time) []model.TimeSeriesPoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := make([]model.TimeSeriesPoint, days)
	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, -(days - 1 - i))
		result[i] = model.TimeSeriesPoint{
			Date:      day.Format("2006-01-02"),
			Logs:      g.rng.Intn(50) + 50,
			Anomalies: g.rng.Intn(8) + 1,
		}
	}
	return result
}

// pastTimestamp picks a uniform instant within the last 7 days.
func (g *Generator) pastTimestamp(now time.Time) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return now.Add(-time.Duration(g.rng.Int63n(int64(7 * 24 * time.Hour))))
}
