package metrics

import (
	"fmt"
	"io"

	"github.com/nsavio/crabdb/pkg/hashindex"
	"github.com/nsavio/crabdb/pkg/storage"
)

// PrometheusExporter renders a Collector's gathered EngineStats, plus an
// optional ResourceTracker's process-level samples, in Prometheus text
// exposition format. It holds the live pool and index rather than a
// snapshot, since Gather reads them fresh on every WriteMetrics call.
type PrometheusExporter struct {
	collector       *Collector
	pool            *storage.BufferPoolManager
	index           *hashindex.ExtendibleHashTable
	resourceTracker *ResourceTracker
	namespace       string
}

// NewPrometheusExporter creates an exporter over collector, pool and index.
// tracker may be nil, in which case process-resource gauges are omitted.
func NewPrometheusExporter(collector *Collector, pool *storage.BufferPoolManager, index *hashindex.ExtendibleHashTable, tracker *ResourceTracker) *PrometheusExporter {
	return &PrometheusExporter{
		collector:       collector,
		pool:            pool,
		index:           index,
		resourceTracker: tracker,
		namespace:       "crabdb",
	}
}

// SetNamespace overrides the metric name prefix (default "crabdb").
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes every counter, histogram, and percentile gauge to w.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	stats := pe.collector.Gather(pe.pool, pe.index)

	if err := pe.writeGauge(w, "uptime_seconds", "Engine uptime in seconds", stats.UptimeSeconds); err != nil {
		return err
	}

	if err := pe.writeGauge(w, "buffer_pool_size", "Number of frames in the buffer pool", float64(stats.Pool.PoolSize)); err != nil {
		return err
	}
	if err := pe.writeGauge(w, "buffer_pool_resident", "Frames currently holding a page", float64(stats.Pool.Resident)); err != nil {
		return err
	}
	if err := pe.writeGauge(w, "buffer_pool_evictable", "Frames currently eligible for eviction", float64(stats.Pool.Evictable)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_pool_hits_total", "Buffer pool fetch hits", uint64(stats.Pool.Hits)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_pool_misses_total", "Buffer pool fetch misses", uint64(stats.Pool.Misses)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_pool_evictions_total", "Frames evicted from the buffer pool", uint64(stats.Pool.Evictions)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_pool_pins_total", "Page pin operations", uint64(stats.Pool.Pins)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_pool_unpins_total", "Page unpin operations", uint64(stats.Pool.Unpins)); err != nil {
		return err
	}

	if err := pe.writeGauge(w, "disk_scheduler_queue_depth", "Requests currently queued for the disk worker", float64(stats.Scheduler.QueueDepth)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "disk_scheduler_reads_total", "Read requests scheduled", uint64(stats.Scheduler.Reads)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "disk_scheduler_writes_total", "Write requests scheduled", uint64(stats.Scheduler.Writes)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "disk_scheduler_write_then_reads_total", "Write-then-read requests scheduled", uint64(stats.Scheduler.WriteThenReads)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "disk_scheduler_failures_total", "Disk scheduler request failures", uint64(stats.Scheduler.Failures)); err != nil {
		return err
	}

	if err := pe.writeCounter(w, "replacer_evictions_total", "Victim frames selected by the replacer", uint64(stats.Replacer.TotalEvictions)); err != nil {
		return err
	}

	if err := pe.writeCounter(w, "hashindex_inserts_total", "Hash index insert calls", uint64(stats.Index.Inserts)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "hashindex_removes_total", "Hash index remove calls", uint64(stats.Index.Removes)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "hashindex_gets_total", "Hash index get calls", uint64(stats.Index.Gets)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "hashindex_splits_total", "Bucket splits performed", uint64(stats.Index.Splits)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "hashindex_merges_total", "Bucket merges performed", uint64(stats.Index.Merges)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "hashindex_directory_grows_total", "Directory doublings", uint64(stats.Index.DirectoryGrows)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "hashindex_directory_shrinks_total", "Directory halvings", uint64(stats.Index.DirectoryShrinks)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "hashindex_full_errors_total", "Inserts rejected because the table reached its global depth ceiling", uint64(stats.Index.HashTableFullErrors)); err != nil {
		return err
	}

	if err := pe.writeHistogram(w, "fetch_duration_seconds", "Buffer pool fetch latency", pe.collector.fetchTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "fetch_duration_seconds", pe.collector.fetchTimings); err != nil {
		return err
	}
	if err := pe.writeHistogram(w, "insert_duration_seconds", "Hash index insert latency", pe.collector.insertTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "insert_duration_seconds", pe.collector.insertTimings); err != nil {
		return err
	}

	if pe.resourceTracker != nil && pe.resourceTracker.IsEnabled() {
		rs := pe.resourceTracker.GetStats()

		if err := pe.writeGauge(w, "memory_heap_bytes", "Heap memory in bytes", float64(rs.HeapInUse)); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "memory_stack_bytes", "Stack memory in bytes", float64(rs.StackInUse)); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "memory_allocations_total", "Total memory allocations", rs.AllocBytes); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "goroutines", "Number of goroutines", float64(rs.NumGoroutines)); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_bytes_read_total", "Total bytes read from disk", rs.BytesRead); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_bytes_written_total", "Total bytes written to disk", rs.BytesWritten); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_read_operations_total", "Total disk read operations", rs.ReadsCompleted); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_write_operations_total", "Total disk write operations", rs.WritesCompleted); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "cpu_count", "Number of CPUs", float64(rs.NumCPU)); err != nil {
			return err
		}
	}

	return nil
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name

	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	buckets := th.Buckets()
	var cumulative uint64

	for _, b := range []struct {
		key string
		le  string
	}{
		{"0-1ms", "0.001"},
		{"1-10ms", "0.01"},
		{"10-100ms", "0.1"},
		{"100-1000ms", "1.0"},
		{">1000ms", "+Inf"},
	} {
		cumulative += buckets[b.key]
		if _, err := fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", metricName, b.le, cumulative); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative)
	return err
}

func (pe *PrometheusExporter) writePercentiles(w io.Writer, baseName string, th *TimingHistogram) error {
	percentiles := th.Percentiles()
	for _, p := range []string{"p50", "p95", "p99"} {
		if err := pe.writeGauge(w, baseName+"_"+p,
			fmt.Sprintf("%s percentile of %s", p, baseName),
			percentiles[p].Seconds()); err != nil {
			return err
		}
	}
	return nil
}
