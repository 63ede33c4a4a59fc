package perf

import (
	"sync"
	"testing"
	"time"
)

// TestCollector_Record_And_Snapshot verifies entries are aggregated per kind.
func TestCollector_Record_And_Snapshot(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()

	c.Record(Entry{Kind: KindRequest, Path: "GET /sites/library", StatusCode: 200, DurationMs: 10, Timestamp: now})
	c.Record(Entry{Kind: KindRequest, Path: "GET /sites/library", StatusCode: 200, DurationMs: 30, Timestamp: now})
	c.Record(Entry{Kind: KindQuery, Path: "ExecContext", DurationMs: 5, Timestamp: now})
	c.Record(Entry{Kind: KindFetch, Path: "data/books.json", DurationMs: 80, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if snap.TotalRecorded != 4 {
		t.Errorf("TotalRecorded = %d, want 4", snap.TotalRecorded)
	}
	reqs := snap.Slowest["request"]
	if len(reqs) != 1 {
		t.Fatalf("request paths = %d, want 1", len(reqs))
	}
	if reqs[0].AvgMs != 20 || reqs[0].MaxMs != 30 || reqs[0].Count != 2 {
		t.Errorf("request stat = %+v", reqs[0])
	}
	if len(snap.Slowest["query"]) != 1 || len(snap.Slowest["fetch"]) != 1 {
		t.Errorf("slowest = %+v", snap.Slowest)
	}
	if snap.P50Ms["fetch"] != 80 {
		t.Errorf("fetch p50 = %v, want 80", snap.P50Ms["fetch"])
	}
}

// TestCollector_RingBuffer_Overwrites verifies oldest entries are overwritten when full.
func TestCollector_RingBuffer_Overwrites(t *testing.T) {
	c := NewCollector(3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "GET /x", DurationMs: float64(i), Timestamp: now})
	}

	if c.TotalRecorded() != 5 {
		t.Errorf("TotalRecorded = %d, want 5", c.TotalRecorded())
	}
	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if got := snap.Slowest["request"][0].Count; got != 3 {
		t.Errorf("Count = %d, want 3 (ring buffer kept last 3)", got)
	}
}

// TestCollector_Percentiles verifies P50/P95 calculation.
func TestCollector_Percentiles(t *testing.T) {
	c := NewCollector(200)
	now := time.Now()

	for i := 1; i <= 100; i++ {
		c.Record(Entry{Kind: KindRequest, Path: "GET /p", DurationMs: float64(i), Timestamp: now})
	}

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	if p := snap.P50Ms["request"]; p < 49 || p > 51 {
		t.Errorf("P50 = %v, want ~50", p)
	}
	if p := snap.P95Ms["request"]; p < 94 || p > 96 {
		t.Errorf("P95 = %v, want ~95", p)
	}
}

// TestCollector_Snapshot_FiltersBySince verifies old entries are excluded.
func TestCollector_Snapshot_FiltersBySince(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()
	c.Record(Entry{Kind: KindRequest, Path: "GET /old", DurationMs: 1, Timestamp: now.Add(-time.Hour)})
	c.Record(Entry{Kind: KindRequest, Path: "GET /new", DurationMs: 1, Timestamp: now})

	snap := c.Snapshot(now.Add(-time.Minute), 10)
	reqs := snap.Slowest["request"]
	if len(reqs) != 1 || reqs[0].Path != "GET /new" {
		t.Errorf("slowest = %+v, want only GET /new", reqs)
	}
}

// TestCollector_TopN verifies the slowest list is capped and ordered.
func TestCollector_TopN(t *testing.T) {
	c := NewCollector(100)
	now := time.Now()
	for i, p := range []string{"a", "b", "c"} {
		c.Record(Entry{Kind: KindQuery, Path: p, DurationMs: float64(i + 1), Timestamp: now})
	}
	got := c.Snapshot(now.Add(-time.Minute), 2).Slowest["query"]
	if len(got) != 2 || got[0].Path != "c" || got[1].Path != "b" {
		t.Errorf("top2 = %+v", got)
	}
}

// TestCollector_NilSafe verifies a nil collector discards records.
func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.Record(Entry{Kind: KindFetch})
	if c.TotalRecorded() != 0 {
		t.Error("nil collector should report zero")
	}
	if snap := c.Snapshot(time.Now(), 5); snap.TotalRecorded != 0 || len(snap.Slowest) != 0 {
		t.Errorf("nil snapshot = %+v", snap)
	}
}

// TestCollector_ConcurrentRecord verifies Record is safe under concurrent use.
func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Record(Entry{Kind: KindRequest, Path: "GET /c", DurationMs: 1, Timestamp: time.Now()})
			}
		}()
	}
	wg.Wait()
	if c.TotalRecorded() != 800 {
		t.Errorf("TotalRecorded = %d, want 800", c.TotalRecorded())
	}
}
