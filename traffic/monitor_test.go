package traffic

import (
	"testing"
	"time"
)

func testClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

// ---------------------------------------------------------------------------
// Rate computation
// ---------------------------------------------------------------------------

func TestRate_ZeroSamples(t *testing.T) {
	m := NewMonitor(time.Minute)

	r := m.Rate("/api/patients")
	if r.RequestsPerSecond != 0 || r.TotalRequests != 0 || r.SampleCount != 0 {
		t.Fatalf("expected zero rate for unknown endpoint, got %+v", r)
	}
	if r.WindowSeconds != 60 {
		t.Errorf("WindowSeconds = %v, want 60", r.WindowSeconds)
	}
}

func TestRate_SumsCountsOverWindow(t *testing.T) {
	_, nowFn := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewMonitor(time.Minute, WithNow(nowFn))

	m.Record("/api/patients", 30)
	m.Record("/api/patients", 30)
	m.Record("/api/encounters", 5)

	r := m.Rate("/api/patients")
	if r.TotalRequests != 60 {
		t.Errorf("TotalRequests = %d, want 60", r.TotalRequests)
	}
	if r.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", r.SampleCount)
	}
	if r.RequestsPerSecond != 1.0 {
		t.Errorf("RequestsPerSecond = %v, want 1.0 (60 req / 60s)", r.RequestsPerSecond)
	}
}

func TestRate_CustomWindowNarrowerThanAnalysis(t *testing.T) {
	now, nowFn := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewMonitor(5*time.Minute, WithNow(nowFn))

	m.RecordAt("/api/labs", 100, now.Add(-4*time.Minute))
	m.RecordAt("/api/labs", 10, now.Add(-10*time.Second))

	r := m.RateOver("/api/labs", time.Minute)
	if r.TotalRequests != 10 {
		t.Errorf("TotalRequests = %d, want only the sample inside the minute", r.TotalRequests)
	}
	if r.SampleCount != 1 {
		t.Errorf("SampleCount = %d, want 1", r.SampleCount)
	}
}

// ---------------------------------------------------------------------------
// Pruning
// ---------------------------------------------------------------------------

func TestRecord_PrunesAgedSamples(t *testing.T) {
	now, nowFn := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewMonitor(time.Minute, WithNow(nowFn))

	m.RecordAt("/api/labs", 5, now.Add(-2*time.Minute))
	m.RecordAt("/api/labs", 7, now.Add(-90*time.Second))

	// This recording pass prunes both aged samples.
	m.Record("/api/labs", 1)

	got := m.Recent("/api/labs", 10)
	if len(got) != 1 {
		t.Fatalf("retained %d samples, want 1", len(got))
	}
	if got[0].Count != 1 {
		t.Errorf("retained sample count = %d, want 1", got[0].Count)
	}
}

func TestPrune_AdvancingClock(t *testing.T) {
	now, nowFn := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewMonitor(time.Minute, WithNow(nowFn))

	m.Record("/api/labs", 5)

	*now = now.Add(2 * time.Minute)

	r := m.Rate("/api/labs")
	if r.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0 after the sample aged out", r.TotalRequests)
	}
}

// ---------------------------------------------------------------------------
// Recent / Endpoints / Reset
// ---------------------------------------------------------------------------

func TestRecent_NewestLast(t *testing.T) {
	_, nowFn := testClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m := NewMonitor(time.Hour, WithNow(nowFn))

	for _, c := range []int{1, 2, 3, 4, 5} {
		m.Record("/api/labs", c)
	}

	got := m.Recent("/api/labs", 3)
	if len(got) != 3 {
		t.Fatalf("Recent returned %d samples, want 3", len(got))
	}
	for i, want := range []int{3, 4, 5} {
		if got[i].Count != want {
			t.Errorf("Recent[%d].Count = %d, want %d", i, got[i].Count, want)
		}
	}
}

func TestEndpoints(t *testing.T) {
	m := NewMonitor(time.Minute)

	if got := m.Endpoints(); len(got) != 0 {
		t.Fatalf("Endpoints on fresh monitor = %v, want none", got)
	}

	m.Record("/api/patients", 1)
	m.Record("/api/labs", 1)

	got := m.Endpoints()
	if len(got) != 2 {
		t.Fatalf("Endpoints = %v, want two entries", got)
	}
}

func TestReset(t *testing.T) {
	m := NewMonitor(time.Minute)
	m.Record("/api/labs", 9)

	m.Reset("/api/labs")

	if r := m.Rate("/api/labs"); r.TotalRequests != 0 {
		t.Errorf("TotalRequests after Reset = %d, want 0", r.TotalRequests)
	}
}
