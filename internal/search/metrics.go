package search

import (
	"math"
	"sync"
	"time"
)

// Metrics is a process-lifetime rolling collector for search calls. Durations
// are kept in a bounded window; average and p95 are computed over that window
// only. Reset on restart.
type Metrics struct {
	mu        sync.Mutex
	window    int
	durations []time.Duration

	lastDuration       time.Duration
	lastCount          int
	calls              int
	headlessPromotions int
	sparseEscalations  int
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	Calls              int
	LastDuration       time.Duration
	AvgDuration        time.Duration
	P95Duration        time.Duration
	LastCount          int
	HeadlessPromotions int
	SparseEscalations  int
}

// NewMetrics creates a collector with the given sample window size.
func NewMetrics(window int) *Metrics {
	if window <= 0 {
		window = 50
	}
	return &Metrics{window: window}
}

// Observe records one completed search call.
func (m *Metrics) Observe(d time.Duration, resultCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.lastDuration = d
	m.lastCount = resultCount

	m.durations = append(m.durations, d)
	if len(m.durations) > m.window {
		m.durations = m.durations[len(m.durations)-m.window:]
	}
}

// RecordHeadlessPromotion counts a headless retry whose results replaced the
// static ones.
func (m *Metrics) RecordHeadlessPromotion() {
	m.mu.Lock()
	m.headlessPromotions++
	m.mu.Unlock()
}

// RecordSparseEscalation counts an escalation triggered by a sparse static
// result rather than by force.
func (m *Metrics) RecordSparseEscalation() {
	m.mu.Lock()
	m.sparseEscalations++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Calls:              m.calls,
		LastDuration:       m.lastDuration,
		LastCount:          m.lastCount,
		HeadlessPromotions: m.headlessPromotions,
		SparseEscalations:  m.sparseEscalations,
	}

	n := len(m.durations)
	if n == 0 {
		return s
	}

	var total time.Duration
	sorted := make([]time.Duration, n)
	copy(sorted, m.durations)
	for _, d := range sorted {
		total += d
	}
	s.AvgDuration = total / time.Duration(n)

	for i := 1; i < n; i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	idx := int(math.Ceil(0.95*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	s.P95Duration = sorted[idx]

	return s
}
