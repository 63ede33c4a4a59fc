package perf

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 4096

// EntryKind distinguishes what was timed.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindQuery
	KindFetch
)

// String returns the snake_case name used in logs and snapshots.
func (k EntryKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindQuery:
		return "query"
	case KindFetch:
		return "fetch"
	}
	return "unknown"
}

// Entry is a single timing record stored in the ring buffer.
type Entry struct {
	Kind       EntryKind
	Path       string // HTTP path, DB op or source URL
	StatusCode int    // HTTP status; 0 for queries
	DurationMs float64
	Timestamp  time.Time
}

// Collector is a fixed-size ring buffer of timing entries.
// When full, the oldest entries are overwritten.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int64
}

// NewCollector creates a collector with the given ring buffer capacity.
// PRE: none
// POST: Returns a ready-to-use collector; size <= 0 uses DefaultRingSize
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Record appends an entry. A nil collector discards it.
func (c *Collector) Record(e Entry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries[c.pos] = e
	c.pos = (c.pos + 1) % c.size
	c.mu.Unlock()
	atomic.AddInt64(&c.count, 1)
}

// TotalRecorded returns the number of entries ever recorded.
func (c *Collector) TotalRecorded() int64 {
	if c == nil {
		return 0
	}
	return atomic.LoadInt64(&c.count)
}

// Snapshot holds aggregated timings computed on read.
type Snapshot struct {
	TotalRecorded int64                 `json:"total_recorded"`
	P50Ms         map[string]float64    `json:"p50_ms"`
	P95Ms         map[string]float64    `json:"p95_ms"`
	Slowest       map[string][]PathStat `json:"slowest"`
}

// PathStat aggregates timing for one path.
type PathStat struct {
	Path  string  `json:"path"`
	AvgMs float64 `json:"avg_ms"`
	MaxMs float64 `json:"max_ms"`
	Count int     `json:"count"`
}

// Snapshot aggregates entries recorded since the given time, per kind.
// PRE: topN > 0
// POST: Returns percentiles and the topN slowest paths of each kind present; a nil collector yields an empty snapshot
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	if c == nil {
		return Snapshot{
			P50Ms:   map[string]float64{},
			P95Ms:   map[string]float64{},
			Slowest: map[string][]PathStat{},
		}
	}
	c.mu.Lock()
	buf := make([]Entry, c.size)
	copy(buf, c.entries)
	c.mu.Unlock()

	durations := make(map[EntryKind][]float64)
	stats := make(map[EntryKind]map[string]*PathStat)
	totals := make(map[EntryKind]map[string]float64)

	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		durations[e.Kind] = append(durations[e.Kind], e.DurationMs)
		if stats[e.Kind] == nil {
			stats[e.Kind] = make(map[string]*PathStat)
			totals[e.Kind] = make(map[string]float64)
		}
		s, ok := stats[e.Kind][e.Path]
		if !ok {
			s = &PathStat{Path: e.Path}
			stats[e.Kind][e.Path] = s
		}
		s.Count++
		totals[e.Kind][e.Path] += e.DurationMs
		if e.DurationMs > s.MaxMs {
			s.MaxMs = e.DurationMs
		}
	}

	snap := Snapshot{
		TotalRecorded: c.TotalRecorded(),
		P50Ms:         make(map[string]float64),
		P95Ms:         make(map[string]float64),
		Slowest:       make(map[string][]PathStat),
	}
	for kind, ds := range durations {
		sort.Float64s(ds)
		snap.P50Ms[kind.String()] = percentile(ds, 50)
		snap.P95Ms[kind.String()] = percentile(ds, 95)
		for path, s := range stats[kind] {
			s.AvgMs = totals[kind][path] / float64(s.Count)
		}
		snap.Slowest[kind.String()] = topByAvg(stats[kind], topN)
	}
	return snap
}

// percentile returns the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func topByAvg(stats map[string]*PathStat, n int) []PathStat {
	list := make([]PathStat, 0, len(stats))
	for _, s := range stats {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].AvgMs == list[j].AvgMs {
			return list[i].Path < list[j].Path
		}
		return list[i].AvgMs > list[j].AvgMs
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}
