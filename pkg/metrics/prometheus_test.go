package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nsavio/crabdb/pkg/hashindex"
)

func TestPrometheusExporter_WriteMetricsIncludesAllCounters(t *testing.T) {
	pool, index := newTestEngine(t, 8, 4)
	if err := index.Insert(hashindex.KeyFromString("a"), hashindex.RID{PageID: 1, SlotID: 0}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	c := NewCollector()
	exporter := NewPrometheusExporter(c, pool, index, nil)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"crabdb_uptime_seconds",
		"crabdb_buffer_pool_size",
		"crabdb_buffer_pool_hits_total",
		"crabdb_disk_scheduler_reads_total",
		"crabdb_replacer_evictions_total",
		"crabdb_hashindex_inserts_total 1",
		"crabdb_fetch_duration_seconds",
		"crabdb_insert_duration_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("WriteMetrics() output missing %q", want)
		}
	}
}

func TestPrometheusExporter_SetNamespace(t *testing.T) {
	pool, index := newTestEngine(t, 4, 4)
	exporter := NewPrometheusExporter(NewCollector(), pool, index, nil)
	exporter.SetNamespace("custom")

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics() error: %v", err)
	}

	if !strings.Contains(buf.String(), "custom_uptime_seconds") {
		t.Error("WriteMetrics() did not honor SetNamespace")
	}
	if strings.Contains(buf.String(), "crabdb_uptime_seconds") {
		t.Error("WriteMetrics() emitted default namespace after SetNamespace")
	}
}

func TestPrometheusExporter_WithResourceTracker(t *testing.T) {
	pool, index := newTestEngine(t, 4, 4)
	rt := NewResourceTracker(&ResourceTrackerConfig{Enabled: true, SampleInterval: time.Hour, MaxSamples: 1})
	defer rt.Close()
	rt.RecordRead(4096)

	exporter := NewPrometheusExporter(NewCollector(), pool, index, rt)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "crabdb_io_bytes_read_total 4096") {
		t.Errorf("WriteMetrics() missing resource tracker gauge, got:\n%s", out)
	}
}

func TestPrometheusExporter_NoResourceTrackerOmitsProcessGauges(t *testing.T) {
	pool, index := newTestEngine(t, 4, 4)
	exporter := NewPrometheusExporter(NewCollector(), pool, index, nil)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics() error: %v", err)
	}

	if strings.Contains(buf.String(), "crabdb_io_bytes_read_total") {
		t.Error("WriteMetrics() emitted process gauges with no resource tracker attached")
	}
}

func TestPrometheusExporter_HistogramBucketsAreCumulative(t *testing.T) {
	pool, index := newTestEngine(t, 4, 4)
	c := NewCollector()
	c.RecordFetch(500 * time.Microsecond)
	c.RecordFetch(5 * time.Millisecond)
	c.RecordFetch(50 * time.Millisecond)

	exporter := NewPrometheusExporter(c, pool, index, nil)

	var buf bytes.Buffer
	if err := exporter.WriteMetrics(&buf); err != nil {
		t.Fatalf("WriteMetrics() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `crabdb_fetch_duration_seconds_bucket{le="0.1"} 3`) {
		t.Errorf("WriteMetrics() cumulative bucket not found or wrong, got:\n%s", out)
	}
}
