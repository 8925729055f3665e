package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels calls that resolved normally.
	OutcomeSuccess = "success"
	// OutcomeError labels calls that failed, injected or domain.
	OutcomeError = "error"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cloudshield",
			Name:      "api_requests_total",
			Help:      "Mock API calls handled, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	injectedFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cloudshield",
			Name:      "injected_failures_total",
			Help:      "Transient failures injected by the mock API, partitioned by operation.",
		},
		[]string{"operation"},
	)

	simulatedLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cloudshield",
			Name:      "simulated_latency_seconds",
			Help:      "Artificial round-trip latency applied to mock API calls.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1},
		},
	)

	realtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cloudshield",
			Name:      "realtime_events_total",
			Help:      "Records emitted by the realtime simulator, partitioned by kind.",
		},
		[]string{"kind"},
	)
)

// Register attaches cloudshield collectors to the supplied registerer.
// Double registration is tolerated so tests can share the default registry.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		apiRequestsTotal,
		injectedFailuresTotal,
		simulatedLatencySeconds,
		realtimeEventsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRequest records one mock API call.
func ObserveRequest(operation string, latency time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	apiRequestsTotal.WithLabelValues(operation, outcome).Inc()
	if latency > 0 {
		simulatedLatencySeconds.Observe(latency.Seconds())
	}
}

// ObserveInjectedFailure records one simulated transient failure.
func ObserveInjectedFailure(operation string) {
	injectedFailuresTotal.WithLabelValues(operation).Inc()
}

// ObserveRealtimeEvent records one simulator tick's output.
func ObserveRealtimeEvent(withAnomaly bool) {
	realtimeEventsTotal.WithLabelValues("log").Inc()
	if withAnomaly {
		realtimeEventsTotal.WithLabelValues("anomaly").Inc()
	}
}
