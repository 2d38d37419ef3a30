package erpclient

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricRefreshSuccess)

	if got := m.Value(MetricRefreshSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", s)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRequests)
			}
		}()
	}
	wg.Wait()

	if got, want := m.Value(MetricRequests), uint64(goroutines*perG); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistograms(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		time.Millisecond, 8 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond,
		90 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, time.Second,
	} {
		m.Observe(MetricRefreshLatency, d)
	}
	m.Observe(MetricRequestLatency, 3*time.Millisecond)
	m.Observe(MetricRefreshSuccess, time.Second)

	s := m.Snapshot()
	refresh := s.Histograms[MetricRefreshLatency]
	for i, v := range refresh {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d (%v)", i, v, refresh)
		}
	}
	if s.Histograms[MetricRequestLatency][0] != 1 {
		t.Fatalf("unexpected request histogram %v", s.Histograms[MetricRequestLatency])
	}
	if _, ok := s.Histograms[MetricRefreshSuccess]; ok {
		t.Fatal("counters must not get histograms")
	}
	if _, ok := s.Counters[MetricRefreshLatency]; ok {
		t.Fatal("latency ids must not appear as counters")
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRequests)
	m.Observe(MetricRequestLatency, time.Millisecond)
	if m.Value(MetricRequests) != 0 || m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must be inert")
	}
}
