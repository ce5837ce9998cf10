// Package traffic tracks per-endpoint request volume over a sliding
// analysis window and detects short-term surges. The limiter package
// reads its output to drive admission ceiling adjustments.
package traffic

import (
	"sync"
	"time"
)

// DefaultAnalysisWindow is the trailing span over which samples are
// retained and rates are computed.
const DefaultAnalysisWindow = 5 * time.Minute

// Sample is one recorded observation of traffic on an endpoint.
type Sample struct {
	At    time.Time `json:"timestamp"`
	Count int       `json:"count"`
}

// Rate summarizes observed traffic for an endpoint over a window.
type Rate struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	TotalRequests     int     `json:"total_requests"`
	WindowSeconds     float64 `json:"window_seconds"`
	SampleCount       int     `json:"sample_count"`
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithNow overrides the time source. Intended for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor keeps per-endpoint sliding-window counters of observed
// request volume. Samples older than the analysis window are pruned on
// each recording and analysis pass, so retention stays bounded by
// traffic shape, never by uptime. Safe for concurrent use.
type Monitor struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time

	samples map[string][]Sample
}

// NewMonitor creates a Monitor with the given analysis window.
// A non-positive window falls back to DefaultAnalysisWindow.
func NewMonitor(window time.Duration, opts ...Option) *Monitor {
	if window <= 0 {
		window = DefaultAnalysisWindow
	}
	m := &Monitor{
		window:  window,
		now:     time.Now,
		samples: make(map[string][]Sample),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Window returns the configured analysis window.
func (m *Monitor) Window() time.Duration { return m.window }

// Record appends a sample of count requests observed now.
func (m *Monitor) Record(endpoint string, count int) {
	m.RecordAt(endpoint, count, m.now())
}

// RecordAt appends a sample with an explicit timestamp, then prunes the
// endpoint's samples that have aged out of the analysis window.
func (m *Monitor) RecordAt(endpoint string, count int, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[endpoint] = append(m.samples[endpoint], Sample{At: at, Count: count})
	m.pruneLocked(endpoint)
}

// pruneLocked drops samples for endpoint older than the analysis window.
// Caller holds m.mu.
func (m *Monitor) pruneLocked(endpoint string) {
	cutoff := m.now().Add(-m.window)
	samples := m.samples[endpoint]

	// Samples are appended in arrival order; find the first one still
	// inside the window.
	keep := 0
	for keep < len(samples) && samples[keep].At.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		m.samples[endpoint] = append(samples[:0:0], samples[keep:]...)
	}
}

// RateOver computes the observed rate for endpoint across [now-window, now].
// An endpoint with no samples in the window yields a zero rate.
func (m *Monitor) RateOver(endpoint string, window time.Duration) Rate {
	if window <= 0 {
		window = m.window
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked(endpoint)

	cutoff := m.now().Add(-window)
	total := 0
	count := 0
	for _, s := range m.samples[endpoint] {
		if s.At.Before(cutoff) {
			continue
		}
		total += s.Count
		count++
	}

	seconds := window.Seconds()
	return Rate{
		RequestsPerSecond: float64(total) / seconds,
		TotalRequests:     total,
		WindowSeconds:     seconds,
		SampleCount:       count,
	}
}

// Rate computes the observed rate for endpoint over the full analysis window.
func (m *Monitor) Rate(endpoint string) Rate {
	return m.RateOver(endpoint, m.window)
}

// Recent returns the newest n samples for endpoint, oldest first.
func (m *Monitor) Recent(endpoint string, n int) []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneLocked(endpoint)

	samples := m.samples[endpoint]
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	return append([]Sample(nil), samples...)
}

// Endpoints returns every endpoint with at least one retained sample.
func (m *Monitor) Endpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.samples))
	for ep := range m.samples {
		if len(m.samples[ep]) > 0 {
			out = append(out, ep)
		}
	}
	return out
}

// Reset drops every retained sample for endpoint.
func (m *Monitor) Reset(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.samples, endpoint)
}
