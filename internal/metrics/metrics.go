package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// slowThreshold marks an API request as slow.
const slowThreshold = 200 * time.Millisecond

// latencyWindow is the rolling average sample size.
const latencyWindow = 100

// CacheStatsSource lets the collector pull cache effectiveness without
// importing the cache package.
type CacheStatsSource interface {
	HitRate() float64
}

// Collector tracks request counters and latency. It is process-wide and
// safe for concurrent use; counters are atomics, the latency ring is
// mutex-protected.
type Collector struct {
	total   int64
	success int64
	failed  int64
	slow    int64

	mu        sync.Mutex
	latencies []time.Duration
	cursor    int

	startedAt time.Time

	cacheStats CacheStatsSource

	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector creates a collector and registers its prometheus series.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		latencies: make([]time.Duration, 0, latencyWindow),
		startedAt: time.Now(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoicing_http_requests_total",
			Help: "HTTP requests by outcome",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoicing_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.requestsTotal, c.requestDuration)
	}
	return c
}

// SetCacheStatsSource wires the cache hit-rate into snapshots.
func (c *Collector) SetCacheStatsSource(src CacheStatsSource) {
	c.cacheStats = src
}

// Record tracks one finished request.
func (c *Collector) Record(duration time.Duration, statusCode int) {
	atomic.AddInt64(&c.total, 1)
	outcome := "success"
	if statusCode >= 500 {
		atomic.AddInt64(&c.failed, 1)
		outcome = "failed"
	} else {
		atomic.AddInt64(&c.success, 1)
	}
	if duration > slowThreshold {
		atomic.AddInt64(&c.slow, 1)
	}

	c.requestsTotal.WithLabelValues(outcome).Inc()
	c.requestDuration.Observe(duration.Seconds())

	c.mu.Lock()
	if len(c.latencies) < latencyWindow {
		c.latencies = append(c.latencies, duration)
	} else {
		c.latencies[c.cursor] = duration
		c.cursor = (c.cursor + 1) % latencyWindow
	}
	c.mu.Unlock()
}

// Snapshot is the /api/metrics payload.
type Snapshot struct {
	TotalRequests      int64   `json:"totalRequests"`
	SuccessfulRequests int64   `json:"successfulRequests"`
	FailedRequests     int64   `json:"failedRequests"`
	SlowRequests       int64   `json:"slowRequests"`
	AvgLatencyMs       float64 `json:"avgLatencyMs"`
	CacheHitRate       float64 `json:"cacheHitRate"`
	UptimeSeconds      float64 `json:"uptimeSeconds"`
	HeapAllocBytes     uint64  `json:"heapAllocBytes"`
	NumGoroutine       int     `json:"numGoroutine"`
}

// Snapshot returns the current counters and a memory snapshot.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	var sum time.Duration
	for _, d := range c.latencies {
		sum += d
	}
	n := len(c.latencies)
	c.mu.Unlock()

	var avgMs float64
	if n > 0 {
		avgMs = float64(sum.Milliseconds()) / float64(n)
	}

	var hitRate float64
	if c.cacheStats != nil {
		hitRate = c.cacheStats.HitRate()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Snapshot{
		TotalRequests:      atomic.LoadInt64(&c.total),
		SuccessfulRequests: atomic.LoadInt64(&c.success),
		FailedRequests:     atomic.LoadInt64(&c.failed),
		SlowRequests:       atomic.LoadInt64(&c.slow),
		AvgLatencyMs:       avgMs,
		CacheHitRate:       hitRate,
		UptimeSeconds:      time.Since(c.startedAt).Seconds(),
		HeapAllocBytes:     mem.HeapAlloc,
		NumGoroutine:       runtime.NumGoroutine(),
	}
}

// Middleware records every request passing through the router.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		c.Record(time.Since(start), ctx.Writer.Status())
	}
}
