package monitoring

import (
	"sync"
	"time"
)

// Stats counts served predictions and failures by error code.
type Stats struct {
	mu           sync.Mutex
	startTime    time.Time
	predictions  int64
	failures     map[string]int64
	totalLatency time.Duration
	lastSuccess  time.Time
}

// StatsSnapshot is a point-in-time copy of Stats for the health endpoint.
type StatsSnapshot struct {
	Predictions      int64            `json:"predictions"`
	Failures         map[string]int64 `json:"failures"`
	AverageLatencyMs float64          `json:"average_latency_ms"`
	LastPrediction   *time.Time       `json:"last_prediction,omitempty"`
	Uptime           string           `json:"uptime"`
}

// NewStats starts the uptime clock.
func NewStats() *Stats {
	return &Stats{startTime: time.Now(), failures: make(map[string]int64)}
}

// RecordPrediction counts a served prediction and its latency.
func (s *Stats) RecordPrediction(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions++
	s.totalLatency += latency
	s.lastSuccess = time.Now()
}

// RecordFailure counts a failed prediction under its error code.
func (s *Stats) RecordFailure(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[code]++
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Predictions: s.predictions,
		Failures:    make(map[string]int64, len(s.failures)),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
	}
	for code, n := range s.failures {
		snap.Failures[code] = n
	}
	if s.predictions > 0 {
		snap.AverageLatencyMs = float64(s.totalLatency.Microseconds()) / float64(s.predictions) / 1000
		last := s.lastSuccess
		snap.LastPrediction = &last
	}
	return snap
}
