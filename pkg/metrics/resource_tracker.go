package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ResourceTracker samples process-level memory, goroutine, and disk
// I/O usage on a timer, independent of the Collector's domain
// counters. The disk manager calls RecordRead/RecordWrite on every
// page I/O so /metrics can report raw byte throughput alongside the
// buffer pool's hit/miss counters.
type ResourceTracker struct {
	enabled bool
	mu      sync.RWMutex

	heapInUse     uint64
	stackInUse    uint64
	numGoroutines uint64
	allocBytes    uint64
	allocObjects  uint64
	gcPauseTotal  uint64
	gcRuns        uint64

	bytesRead       uint64
	bytesWritten    uint64
	readsCompleted  uint64
	writesCompleted uint64

	sampleInterval time.Duration
	maxSamples     int
	samples        []ResourceSample
	stopChan       chan struct{}
	wg             sync.WaitGroup
}

// ResourceSample is a point-in-time snapshot kept for trend analysis.
type ResourceSample struct {
	Timestamp     time.Time
	HeapInUse     uint64
	StackInUse    uint64
	NumGoroutines int
	AllocBytes    uint64
	AllocObjects  uint64
	GCPauseNs     uint64
	GCRuns        uint32
}

// ResourceStats is the JSON/Prometheus-friendly view of current usage.
type ResourceStats struct {
	AllocBytes   uint64  `json:"alloc_bytes"`
	AllocMB      float64 `json:"alloc_mb"`
	HeapInUse    uint64  `json:"heap_in_use_bytes"`
	HeapInUseMB  float64 `json:"heap_in_use_mb"`
	StackInUse   uint64  `json:"stack_in_use_bytes"`
	StackInUseMB float64 `json:"stack_in_use_mb"`
	AllocObjects uint64  `json:"alloc_objects"`

	NumGoroutines int `json:"num_goroutines"`

	BytesRead       uint64 `json:"bytes_read"`
	BytesWritten    uint64 `json:"bytes_written"`
	ReadsCompleted  uint64 `json:"reads_completed"`
	WritesCompleted uint64 `json:"writes_completed"`

	GCPauseTotalMs float64 `json:"gc_pause_total_ms"`
	GCRuns         uint32  `json:"gc_runs"`
	LastGCTimeNs   uint64  `json:"last_gc_time_ns"`

	NumCPU    int    `json:"num_cpu"`
	GoVersion string `json:"go_version"`
}

// ResourceTrackerConfig configures sampling behavior.
type ResourceTrackerConfig struct {
	Enabled        bool
	SampleInterval time.Duration
	MaxSamples     int
}

// DefaultResourceTrackerConfig samples once a second and keeps a minute
// of history.
func DefaultResourceTrackerConfig() *ResourceTrackerConfig {
	return &ResourceTrackerConfig{
		Enabled:        true,
		SampleInterval: time.Second,
		MaxSamples:     60,
	}
}

// NewResourceTracker creates a tracker; config nil uses the defaults.
func NewResourceTracker(config *ResourceTrackerConfig) *ResourceTracker {
	if config == nil {
		config = DefaultResourceTrackerConfig()
	}

	rt := &ResourceTracker{
		enabled:        config.Enabled,
		sampleInterval: config.SampleInterval,
		maxSamples:     config.MaxSamples,
		samples:        make([]ResourceSample, 0, config.MaxSamples),
		stopChan:       make(chan struct{}),
	}

	if rt.enabled {
		rt.startSampling()
	}

	return rt
}

func (rt *ResourceTracker) Enable() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.enabled {
		rt.enabled = true
		rt.startSampling()
	}
}

func (rt *ResourceTracker) Disable() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.enabled {
		rt.enabled = false
		close(rt.stopChan)
		rt.wg.Wait()
		rt.stopChan = make(chan struct{})
	}
}

func (rt *ResourceTracker) IsEnabled() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.enabled
}

func (rt *ResourceTracker) startSampling() {
	rt.wg.Add(1)
	go rt.samplingLoop()
}

func (rt *ResourceTracker) samplingLoop() {
	defer rt.wg.Done()

	ticker := time.NewTicker(rt.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rt.takeSample()
		case <-rt.stopChan:
			return
		}
	}
}

func (rt *ResourceTracker) takeSample() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sample := ResourceSample{
		Timestamp:     time.Now(),
		HeapInUse:     m.HeapInuse,
		StackInUse:    m.StackInuse,
		NumGoroutines: runtime.NumGoroutine(),
		AllocBytes:    m.TotalAlloc,
		AllocObjects:  m.Mallocs - m.Frees,
		GCPauseNs:     m.PauseTotalNs,
		GCRuns:        m.NumGC,
	}

	atomic.StoreUint64(&rt.heapInUse, sample.HeapInUse)
	atomic.StoreUint64(&rt.stackInUse, sample.StackInUse)
	atomic.StoreUint64(&rt.numGoroutines, uint64(sample.NumGoroutines))
	atomic.StoreUint64(&rt.allocBytes, sample.AllocBytes)
	atomic.StoreUint64(&rt.allocObjects, sample.AllocObjects)
	atomic.StoreUint64(&rt.gcPauseTotal, sample.GCPauseNs)
	atomic.StoreUint64(&rt.gcRuns, uint64(sample.GCRuns))

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.samples) >= rt.maxSamples {
		rt.samples = rt.samples[1:]
	}
	rt.samples = append(rt.samples, sample)
}

// RecordRead reports a completed disk page read of n bytes.
func (rt *ResourceTracker) RecordRead(n uint64) {
	if !rt.IsEnabled() {
		return
	}
	atomic.AddUint64(&rt.bytesRead, n)
	atomic.AddUint64(&rt.readsCompleted, 1)
}

// RecordWrite reports a completed disk page write of n bytes.
func (rt *ResourceTracker) RecordWrite(n uint64) {
	if !rt.IsEnabled() {
		return
	}
	atomic.AddUint64(&rt.bytesWritten, n)
	atomic.AddUint64(&rt.writesCompleted, 1)
}

// GetStats returns a fresh read of current resource usage.
func (rt *ResourceTracker) GetStats() *ResourceStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &ResourceStats{
		AllocBytes:      m.TotalAlloc,
		AllocMB:         float64(m.TotalAlloc) / 1024 / 1024,
		HeapInUse:       m.HeapInuse,
		HeapInUseMB:     float64(m.HeapInuse) / 1024 / 1024,
		StackInUse:      m.StackInuse,
		StackInUseMB:    float64(m.StackInuse) / 1024 / 1024,
		AllocObjects:    m.Mallocs - m.Frees,
		NumGoroutines:   runtime.NumGoroutine(),
		BytesRead:       atomic.LoadUint64(&rt.bytesRead),
		BytesWritten:    atomic.LoadUint64(&rt.bytesWritten),
		ReadsCompleted:  atomic.LoadUint64(&rt.readsCompleted),
		WritesCompleted: atomic.LoadUint64(&rt.writesCompleted),
		GCPauseTotalMs:  float64(m.PauseTotalNs) / 1e6,
		GCRuns:          m.NumGC,
		LastGCTimeNs:    m.LastGC,
		NumCPU:          runtime.NumCPU(),
		GoVersion:       runtime.Version(),
	}
}

// GetSamples returns a copy of the retained sample history.
func (rt *ResourceTracker) GetSamples() []ResourceSample {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	samples := make([]ResourceSample, len(rt.samples))
	copy(samples, rt.samples)
	return samples
}

// Close stops sampling.
func (rt *ResourceTracker) Close() {
	rt.Disable()
}
