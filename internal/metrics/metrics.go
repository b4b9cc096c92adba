package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates client telemetry
type Collector struct {
	// Contract call counts by method
	callCounts   map[string]*uint64
	callErrors   map[string]*uint64
	callCountsMu sync.RWMutex

	// Call latencies by method (stored as nanoseconds)
	latencies   map[string]*LatencyHistogram
	latenciesMu sync.RWMutex

	// Transaction outcomes keyed by method then outcome
	txOutcomes   map[string]map[string]uint64
	txOutcomesMu sync.Mutex

	// Portfolio gauges from the last published snapshot
	positions          int64
	claimablePositions int64

	// Start time for uptime calculation
	startTime time.Time
}

// LatencyHistogram tracks call latencies in buckets
type LatencyHistogram struct {
	// Buckets: [0-10ms], [10-50ms], [50-100ms], [100-250ms], [250-500ms], [500ms-1s], [1-2.5s], [2.5-5s], [5-10s], [10s+]
	buckets [10]uint64
	sum     uint64 // Total latency in nanoseconds
	count   uint64 // Total count
	mu      sync.Mutex
}

// bucket boundaries in milliseconds. RPC round trips are slower than local
// requests, so the scale starts at 10ms.
var bucketBoundaries = []int64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var bucketLabels = []string{
	"0-10ms", "10-50ms", "50-100ms", "100-250ms", "250-500ms",
	"500-1000ms", "1-2.5s", "2.5-5s", "5-10s", "10s+",
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		callCounts: make(map[string]*uint64),
		callErrors: make(map[string]*uint64),
		latencies:  make(map[string]*LatencyHistogram),
		txOutcomes: make(map[string]map[string]uint64),
		startTime:  time.Now(),
	}
}

func counterFor(m map[string]*uint64, mu *sync.RWMutex, key string) *uint64 {
	mu.RLock()
	counter, ok := m[key]
	mu.RUnlock()
	if ok {
		return counter
	}

	mu.Lock()
	defer mu.Unlock()
	if counter, ok = m[key]; !ok {
		var val uint64
		counter = &val
		m[key] = counter
	}
	return counter
}

// RecordCall records one contract read and whether it failed
func (c *Collector) RecordCall(method string, failed bool) {
	atomic.AddUint64(counterFor(c.callCounts, &c.callCountsMu, method), 1)
	if failed {
		atomic.AddUint64(counterFor(c.callErrors, &c.callCountsMu, method), 1)
	}
}

// RecordLatency records the latency of a call
func (c *Collector) RecordLatency(method string, duration time.Duration) {
	c.latenciesMu.Lock()
	hist, exists := c.latencies[method]
	if !exists {
		hist = &LatencyHistogram{}
		c.latencies[method] = hist
	}
	c.latenciesMu.Unlock()

	hist.Record(duration)
}

// Record records a latency value in the histogram
func (h *LatencyHistogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ms := d.Milliseconds()

	bucketIdx := len(bucketBoundaries)
	for i, boundary := range bucketBoundaries {
		if ms < boundary {
			bucketIdx = i
			break
		}
	}

	h.buckets[bucketIdx]++
	h.sum += uint64(d.Nanoseconds())
	h.count++
}

// RecordTx records a transaction lifecycle step
func (c *Collector) RecordTx(method, outcome string) {
	c.txOutcomesMu.Lock()
	defer c.txOutcomesMu.Unlock()
	if c.txOutcomes[method] == nil {
		c.txOutcomes[method] = make(map[string]uint64)
	}
	c.txOutcomes[method][outcome]++
}

// SetPortfolio sets the portfolio gauges
func (c *Collector) SetPortfolio(positions, claimable int) {
	atomic.StoreInt64(&c.positions, int64(positions))
	atomic.StoreInt64(&c.claimablePositions, int64(claimable))
}

// Metrics represents the current state of all metrics
type Metrics struct {
	Uptime             string                       `json:"uptime"`
	UptimeSeconds      float64                      `json:"uptime_seconds"`
	CallCounts         map[string]uint64            `json:"call_counts"`
	CallErrors         map[string]uint64            `json:"call_errors"`
	CallLatencies      map[string]LatencyStats      `json:"call_latencies"`
	Transactions       map[string]map[string]uint64 `json:"transactions"`
	Positions          int64                        `json:"positions"`
	ClaimablePositions int64                        `json:"claimable_positions"`
	CollectedAt        time.Time                    `json:"collected_at"`
}

// LatencyStats contains latency statistics for a method
type LatencyStats struct {
	Count   uint64            `json:"count"`
	SumMs   float64           `json:"sum_ms"`
	AvgMs   float64           `json:"avg_ms"`
	Buckets map[string]uint64 `json:"buckets"`
}

// GetMetrics returns the current metrics as a Metrics struct
func (c *Collector) GetMetrics() *Metrics {
	uptime := time.Since(c.startTime)

	callCounts := make(map[string]uint64)
	callErrors := make(map[string]uint64)
	c.callCountsMu.RLock()
	for method, counter := range c.callCounts {
		callCounts[method] = atomic.LoadUint64(counter)
	}
	for method, counter := range c.callErrors {
		callErrors[method] = atomic.LoadUint64(counter)
	}
	c.callCountsMu.RUnlock()

	latencies := make(map[string]LatencyStats)
	c.latenciesMu.RLock()
	for method, hist := range c.latencies {
		hist.mu.Lock()
		stats := LatencyStats{
			Count:   hist.count,
			SumMs:   float64(hist.sum) / float64(time.Millisecond),
			Buckets: make(map[string]uint64),
		}
		if hist.count > 0 {
			stats.AvgMs = float64(hist.sum) / float64(hist.count) / float64(time.Millisecond)
		}
		for i, count := range hist.buckets {
			if count > 0 {
				stats.Buckets[bucketLabels[i]] = count
			}
		}
		hist.mu.Unlock()
		latencies[method] = stats
	}
	c.latenciesMu.RUnlock()

	txs := make(map[string]map[string]uint64)
	c.txOutcomesMu.Lock()
	for method, outcomes := range c.txOutcomes {
		cp := make(map[string]uint64, len(outcomes))
		for k, v := range outcomes {
			cp[k] = v
		}
		txs[method] = cp
	}
	c.txOutcomesMu.Unlock()

	return &Metrics{
		Uptime:             uptime.Round(time.Second).String(),
		UptimeSeconds:      uptime.Seconds(),
		CallCounts:         callCounts,
		CallErrors:         callErrors,
		CallLatencies:      latencies,
		Transactions:       txs,
		Positions:          atomic.LoadInt64(&c.positions),
		ClaimablePositions: atomic.LoadInt64(&c.claimablePositions),
		CollectedAt:        time.Now(),
	}
}

// GetMetricsJSON returns the current metrics as JSON
func (c *Collector) GetMetricsJSON() ([]byte, error) {
	return json.Marshal(c.GetMetrics())
}

// Reset resets all metrics (useful for testing)
func (c *Collector) Reset() {
	c.callCountsMu.Lock()
	c.callCounts = make(map[string]*uint64)
	c.callErrors = make(map[string]*uint64)
	c.callCountsMu.Unlock()

	c.latenciesMu.Lock()
	c.latencies = make(map[string]*LatencyHistogram)
	c.latenciesMu.Unlock()

	c.txOutcomesMu.Lock()
	c.txOutcomes = make(map[string]map[string]uint64)
	c.txOutcomesMu.Unlock()

	atomic.StoreInt64(&c.positions, 0)
	atomic.StoreInt64(&c.claimablePositions, 0)
	c.startTime = time.Now()
}
