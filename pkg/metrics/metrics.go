// Package metrics renders the storage engine's own counters (buffer
// pool, disk scheduler, replacer, hash index all already keep their
// authoritative state) plus latency histograms the engine layer feeds
// in at call time, in Prometheus text exposition format.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsavio/crabdb/pkg/hashindex"
	"github.com/nsavio/crabdb/pkg/storage"
)

// Collector holds latency histograms that no lower layer times on its
// own, plus a startTime for uptime reporting. Counters for buffer
// pool/scheduler/replacer/hash-index activity are read live from those
// components at snapshot time rather than duplicated here, so they can
// never drift from the source of truth.
type Collector struct {
	mu            sync.RWMutex
	fetchTimings  *TimingHistogram
	insertTimings *TimingHistogram
	startTime     time.Time
}

// NewCollector creates a Collector with fresh histograms.
func NewCollector() *Collector {
	return &Collector{
		fetchTimings:  NewTimingHistogram(1000),
		insertTimings: NewTimingHistogram(1000),
		startTime:     time.Now(),
	}
}

// RecordFetch records a buffer-pool fetch latency sample.
func (c *Collector) RecordFetch(d time.Duration) { c.fetchTimings.Record(d) }

// RecordInsertLatency records a hash-index insert latency sample.
func (c *Collector) RecordInsertLatency(d time.Duration) { c.insertTimings.Record(d) }

// FetchTimings exposes the fetch latency histogram for external
// renderers (e.g. a Prometheus exporter in another package).
func (c *Collector) FetchTimings() *TimingHistogram { return c.fetchTimings }

// InsertTimings exposes the insert latency histogram.
func (c *Collector) InsertTimings() *TimingHistogram { return c.insertTimings }

// Reset clears both histograms and restarts the uptime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.fetchTimings = NewTimingHistogram(1000)
	c.insertTimings = NewTimingHistogram(1000)
	c.mu.Unlock()
	c.startTime = time.Now()
}

// TimingHistogram buckets durations for histogram export and keeps a
// bounded window of recent samples for percentile estimation.
type TimingHistogram struct {
	bucket0_1ms      uint64
	bucket1_10ms     uint64
	bucket10_100ms   uint64
	bucket100_1000ms uint64
	bucket1000ms     uint64

	mu               sync.Mutex
	recentTimings    []time.Duration
	maxRecentTimings int
}

// NewTimingHistogram creates a histogram retaining at most maxRecent
// samples for percentile calculation.
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

// Record adds a timing to the histogram.
func (th *TimingHistogram) Record(d time.Duration) {
	ms := d.Milliseconds()
	switch {
	case ms < 1:
		atomic.AddUint64(&th.bucket0_1ms, 1)
	case ms < 10:
		atomic.AddUint64(&th.bucket1_10ms, 1)
	case ms < 100:
		atomic.AddUint64(&th.bucket10_100ms, 1)
	case ms < 1000:
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, d)
}

// Buckets returns the cumulative-eligible bucket counts.
func (th *TimingHistogram) Buckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

// Percentiles returns p50/p95/p99 computed over the retained window.
func (th *TimingHistogram) Percentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	return map[string]time.Duration{
		"p50": sorted[len(sorted)*50/100],
		"p95": sorted[len(sorted)*95/100],
		"p99": sorted[len(sorted)*99/100],
	}
}

// EngineStats gathers the live counters from every layer into one
// struct, built fresh on every call from the authoritative sources
// (storage.BufferPoolManager, hashindex.ExtendibleHashTable) rather
// than kept as a second, driftable copy.
type EngineStats struct {
	UptimeSeconds float64

	Pool      storage.Stats
	Scheduler storage.SchedulerStats
	Replacer  storage.ReplacerStats
	Index     hashindex.Stats
}

// Gather builds an EngineStats snapshot from the live pool and index.
func (c *Collector) Gather(pool *storage.BufferPoolManager, index *hashindex.ExtendibleHashTable) EngineStats {
	return EngineStats{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Pool:          pool.Stats(),
		Scheduler:     pool.SchedulerStats(),
		Replacer:      pool.ReplacerStats(),
		Index:         index.Stats(),
	}
}
