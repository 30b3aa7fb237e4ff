// Package metrics keeps in-memory operational counters for relaybot.
// Nothing is persisted; values live for the process lifetime.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	maxSamples = 1000 // Keep last 1000 samples for percentile calculations
)

// Manager holds all metrics, keyed by "topic/function" paths.
// Safe for concurrent use.
type Manager struct {
	mu          sync.RWMutex
	timings     map[string]*TimingMetric
	counters    map[string]*CounterMetric
	successFail map[string]*SuccessFailMetric
	outcomes    map[string]*OutcomeMetric
}

// New creates an empty metrics manager
func New() *Manager {
	return &Manager{
		timings:     make(map[string]*TimingMetric),
		counters:    make(map[string]*CounterMetric),
		successFail: make(map[string]*SuccessFailMetric),
		outcomes:    make(map[string]*OutcomeMetric),
	}
}

// buildPath creates a normalized path from topic and function
func buildPath(topic, function string) string {
	if function == "" {
		return topic
	}
	return fmt.Sprintf("%s/%s", topic, function)
}

// RecordDuration records a duration directly
func (m *Manager) RecordDuration(topic, function string, duration time.Duration) {
	if m == nil {
		return
	}
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.timings[path]
	if !exists {
		metric = &TimingMetric{
			samples: make([]time.Duration, 0, 16),
			Min:     duration,
			Max:     duration,
		}
		m.timings[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Count++
	metric.Total += duration
	metric.Last = duration
	if duration < metric.Min {
		metric.Min = duration
	}
	if duration > metric.Max {
		metric.Max = duration
	}

	if len(metric.samples) < maxSamples {
		metric.samples = append(metric.samples, duration)
	} else {
		metric.samples[metric.sampleIdx] = duration
		metric.sampleIdx = (metric.sampleIdx + 1) % maxSamples
	}
}

// AddCounter adds to a counter
func (m *Manager) AddCounter(topic, function string, delta int64) {
	if m == nil {
		return
	}
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.counters[path]
	if !exists {
		metric = &CounterMetric{}
		m.counters[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()

	metric.Value += delta
	metric.Last = time.Now()
}

func (m *Manager) successFailMetric(path string) *SuccessFailMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric, exists := m.successFail[path]
	if !exists {
		metric = &SuccessFailMetric{FailureReasons: make(map[string]int64)}
		m.successFail[path] = metric
	}
	return metric
}

// RecordSuccess records a successful operation
func (m *Manager) RecordSuccess(topic, function string) {
	if m == nil {
		return
	}
	metric := m.successFailMetric(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Success++
	metric.LastSuccess = time.Now()
}

// RecordFailure records a failed operation with an optional reason
func (m *Manager) RecordFailure(topic, function, reason string) {
	if m == nil {
		return
	}
	metric := m.successFailMetric(buildPath(topic, function))

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Failures++
	metric.LastFailure = time.Now()
	if reason != "" {
		metric.FailureReasons[reason]++
	}
}

// RecordOutcome records a specific outcome
func (m *Manager) RecordOutcome(topic, function, outcome string) {
	if m == nil {
		return
	}
	path := buildPath(topic, function)

	m.mu.Lock()
	metric, exists := m.outcomes[path]
	if !exists {
		metric = &OutcomeMetric{Outcomes: make(map[string]int64)}
		m.outcomes[path] = metric
	}
	m.mu.Unlock()

	metric.mu.Lock()
	defer metric.mu.Unlock()
	metric.Outcomes[outcome]++
	metric.Total++
	metric.LastOutcome = outcome
	metric.LastTime = time.Now()
}

// SuccessFail returns a snapshot of one success/fail metric
func (m *Manager) SuccessFail(topic, function string) (SuccessFailSnapshot, bool) {
	if m == nil {
		return SuccessFailSnapshot{}, false
	}
	m.mu.RLock()
	metric, ok := m.successFail[buildPath(topic, function)]
	m.mu.RUnlock()
	if !ok {
		return SuccessFailSnapshot{}, false
	}
	return metric.snapshot(), true
}

// Outcome returns a snapshot of one outcome metric
func (m *Manager) Outcome(topic, function string) (OutcomeSnapshot, bool) {
	if m == nil {
		return OutcomeSnapshot{}, false
	}
	m.mu.RLock()
	metric, ok := m.outcomes[buildPath(topic, function)]
	m.mu.RUnlock()
	if !ok {
		return OutcomeSnapshot{}, false
	}
	return metric.snapshot(), true
}

// Timing returns a snapshot of one timing metric
func (m *Manager) Timing(topic, function string) (TimingSnapshot, bool) {
	if m == nil {
		return TimingSnapshot{}, false
	}
	m.mu.RLock()
	metric, ok := m.timings[buildPath(topic, function)]
	m.mu.RUnlock()
	if !ok {
		return TimingSnapshot{}, false
	}
	return metric.snapshot(), true
}

// Counter returns the current value of a counter (0 if unknown)
func (m *Manager) Counter(topic, function string) int64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	metric, ok := m.counters[buildPath(topic, function)]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	metric.mu.RLock()
	defer metric.mu.RUnlock()
	return metric.Value
}

func (t *TimingMetric) snapshot() TimingSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	avg := float64(0)
	if t.Count > 0 {
		avg = float64(t.Total) / float64(t.Count) / float64(time.Millisecond)
	}
	return TimingSnapshot{
		Count:  t.Count,
		AvgMs:  avg,
		MinMs:  float64(t.Min) / float64(time.Millisecond),
		MaxMs:  float64(t.Max) / float64(time.Millisecond),
		LastMs: float64(t.Last) / float64(time.Millisecond),
		P95Ms:  calculatePercentile(t.samples, 95),
	}
}

func (s *SuccessFailMetric) snapshot() SuccessFailSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.Success + s.Failures
	rate := float64(0)
	if total > 0 {
		rate = float64(s.Success) / float64(total) * 100
	}
	reasons := make(map[string]int64, len(s.FailureReasons))
	for k, v := range s.FailureReasons {
		reasons[k] = v
	}
	return SuccessFailSnapshot{
		Success:        s.Success,
		Failures:       s.Failures,
		SuccessRate:    rate,
		FailureReasons: reasons,
	}
}

func (o *OutcomeMetric) snapshot() OutcomeSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	outcomes := make(map[string]int64, len(o.Outcomes))
	for k, v := range o.Outcomes {
		outcomes[k] = v
	}
	return OutcomeSnapshot{
		Outcomes:    outcomes,
		Total:       o.Total,
		LastOutcome: o.LastOutcome,
	}
}

// calculatePercentile calculates the given percentile in milliseconds
func calculatePercentile(samples []time.Duration, percentile int) float64 {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (len(sorted)*percentile)/100 - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx]) / float64(time.Millisecond)
}
