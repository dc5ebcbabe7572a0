package generate

import (
	"testing"
	"time"
)

func TestLLMStatsSnapshotPercentiles(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		stats.Record("m", time.Duration(ms)*time.Millisecond, false)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLLMStatsCountsFailuresSeparately(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record("a", 100*time.Millisecond, false)
	stats.Record("a", 9*time.Second, true)
	stats.Record("b", 300*time.Millisecond, false)

	snap := stats.Snapshot()
	if snap.Count != 3 || snap.Errors != 1 {
		t.Fatalf("expected count=3 errors=1, got count=%d errors=%d", snap.Count, snap.Errors)
	}
	if snap.MaxMs != 300 {
		t.Fatalf("failed calls must not count toward latency, got max=%d", snap.MaxMs)
	}

	by := stats.ByModel()
	if len(by) != 2 {
		t.Fatalf("expected 2 models, got %d", len(by))
	}
	if by["a"].Count != 2 || by["a"].Errors != 1 {
		t.Fatalf("unexpected stats for a: %+v", by["a"])
	}
	if by["b"].MinMs != 300 {
		t.Fatalf("unexpected stats for b: %+v", by["b"])
	}
}

func TestLLMStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewLLMStats(10 * time.Millisecond)
	stats.Record("m", 100*time.Millisecond, false)
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record("m", 200*time.Millisecond, false)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected one fresh sample of 200ms, got %+v", snap)
	}
}

func TestLLMStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record("m", -10*time.Millisecond, false)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got %+v", snap)
	}
}
