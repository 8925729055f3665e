package realtime

import (
	"sync"
	"time"

	"cloudshield/internal/metrics"
	"cloudshield/internal/model"
	"cloudshield/internal/store"

	"github.com/sirupsen/logrus"
)

// Event is one realtime tick's output. Log is always present; Anomaly is
// set only when the tick generated a companion anomaly.
type Event struct {
	Log     model.LogRecord      `json:"log"`
	Anomaly *model.AnomalyRecord `json:"anomaly,omitempty"`
}

// Simulator models a push-notification channel: a periodic ticker that
// synthesizes one log entry per tick, occasionally a companion anomaly with
// its explanation, lands everything in the store and emits an Event to the
// single active subscriber. At most one subscription exists at a time; a new
// Subscribe cancels the previous one.
type Simulator struct {
	store       *store.Store
	gen         *store.Generator
	interval    time.Duration
	anomalyProb float64
	buffer      int
	logger      *logrus.Logger

	mu     sync.Mutex
	stop   chan struct{}
	events chan Event
}

func New(st *store.Store, gen *store.Generator, interval time.Duration, anomalyProb float64, logger *logrus.Logger) *Simulator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if anomalyProb <= 0 {
		anomalyProb = 0.15
	}
	return &Simulator{
		store:       st,
		gen:         gen,
		interval:    interval,
		anomalyProb: anomalyProb,
		buffer:      16,
		logger:      logger,
	}
}

// Subscribe starts the ticker and returns the event channel plus a cancel
// func. Any prior subscription is stopped first (last-subscriber-wins); its
// channel is closed. The returned cancel is idempotent and only stops the
// subscription it belongs to.
func (s *Simulator) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	stop := make(chan struct{})
	events := make(chan Event, s.buffer)
	s.stop = stop
	s.events = events
	go s.run(stop, events)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stop == stop {
			s.stopLocked()
		}
	}
	return events, cancel
}

// Unsubscribe stops the active subscription, if any.
func (s *Simulator) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Simulator) stopLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.events = nil
}

func (s *Simulator) run(stop <-chan struct{}, events chan<- Event) {
	defer close(events)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ev := s.tick(time.Now())
			select {
			case events <- ev:
			default:
				// Subscriber is behind; the store mutation already
				// happened, only the notification is dropped.
				s.logger.Debug("Realtime event buffer full, dropping notification")
			}
		}
	}
}

// tick generates one log entry, rolls the anomaly chance, lands the records
// at the heads of their collections and returns the event to deliver.
func (s *Simulator) tick(now time.Time) Event {
	log := s.gen.Log(now)
	s.store.AddLog(log)

	ev := Event{Log: log}
	if s.gen.Chance(s.anomalyProb) {
		anomaly := s.gen.AnomalyForLog(log)
		s.store.AddAnomaly(anomaly, s.gen.Explanation(anomaly.ID))
		ev.Anomaly = &anomaly
	}

	metrics.ObserveRealtimeEvent(ev.Anomaly != nil)
	return ev
}
