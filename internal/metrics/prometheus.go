package metrics

import (
	"math/big"
	"net/http"
	"runtime"
	"time"

	"github.com/mtecstake/autostake/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "autostake"

// PrometheusCollector wraps the Collector and mirrors its metrics into
// Prometheus format. It is the payment.Observer and portfolio.Observer
// wired into a running client.
type PrometheusCollector struct {
	collector *Collector
	registry  *prometheus.Registry
	decimals  int32 // reward token decimals for the amount gauges

	callCount    *prometheus.CounterVec
	callErrors   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	txCount      *prometheus.CounterVec

	positions      prometheus.Gauge
	claimable      prometheus.Gauge
	totalPrincipal prometheus.Gauge
	totalPending   prometheus.Gauge
	goroutineCount prometheus.Gauge
	uptimeSeconds  prometheus.Gauge

	startTime time.Time
}

// NewPrometheusCollector creates a PrometheusCollector that wraps an existing
// Collector. Metrics are registered in a dedicated registry so they do not
// interfere with the default global registry.
func NewPrometheusCollector(c *Collector, rewardDecimals uint8) *PrometheusCollector {
	reg := prometheus.NewRegistry()

	p := &PrometheusCollector{
		collector: c,
		registry:  reg,
		decimals:  int32(rewardDecimals),
		callCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_calls_total",
			Help:      "Total number of contract reads by method.",
		}, []string{"method"}),
		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_call_errors_total",
			Help:      "Total number of failed contract reads by method.",
		}, []string{"method"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "contract_call_duration_seconds",
			Help:      "Contract read latency histogram by method.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		txCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by method and outcome.",
		}, []string{"method", "outcome"}),
		positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_positions",
			Help:      "Number of staked positions in the last portfolio load.",
		}),
		claimable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_claimable_positions",
			Help:      "Number of positions claimable in the last portfolio load.",
		}),
		totalPrincipal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_principal_tokens",
			Help:      "Total staked principal in reward tokens.",
		}),
		totalPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_pending_reward_tokens",
			Help:      "Total pending reward in reward tokens.",
		}),
		goroutineCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutine_count",
			Help:      "Number of goroutines.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the client started in seconds.",
		}),
		startTime: time.Now(),
	}

	reg.MustRegister(
		p.callCount, p.callErrors, p.callDuration, p.txCount,
		p.positions, p.claimable, p.totalPrincipal, p.totalPending,
		p.goroutineCount, p.uptimeSeconds,
	)
	return p
}

// Registry returns the Prometheus registry used by this collector
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

// ObserveCall records a contract read in both collectors
func (p *PrometheusCollector) ObserveCall(method string, duration time.Duration, err error) {
	p.collector.RecordCall(method, err != nil)
	p.collector.RecordLatency(method, duration)
	p.callCount.WithLabelValues(method).Inc()
	if err != nil {
		p.callErrors.WithLabelValues(method).Inc()
	}
	p.callDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveTx records a transaction lifecycle step in both collectors
func (p *PrometheusCollector) ObserveTx(method, outcome string) {
	p.collector.RecordTx(method, outcome)
	p.txCount.WithLabelValues(method, outcome).Inc()
}

// ObservePortfolio updates the portfolio gauges from a published snapshot
func (p *PrometheusCollector) ObservePortfolio(pf *types.Portfolio) {
	claimable := 0
	for i := range pf.Positions {
		if pf.Positions[i].Claimable {
			claimable++
		}
	}
	p.collector.SetPortfolio(pf.Count(), claimable)
	p.positions.Set(float64(pf.Count()))
	p.claimable.Set(float64(claimable))
	p.totalPrincipal.Set(p.tokens(pf.TotalPrincipal))
	p.totalPending.Set(p.tokens(pf.TotalPending))
}

func (p *PrometheusCollector) tokens(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v, -p.decimals).InexactFloat64()
}

// Sync refreshes the process gauges. Call it before serving metrics.
func (p *PrometheusCollector) Sync() {
	p.goroutineCount.Set(float64(runtime.NumGoroutine()))
	p.uptimeSeconds.Set(time.Since(p.startTime).Seconds())
}

// GetMetrics returns the JSON metrics from the underlying Collector
func (p *PrometheusCollector) GetMetrics() *Metrics {
	return p.collector.GetMetrics()
}

// GetMetricsJSON returns JSON-encoded metrics from the underlying Collector
func (p *PrometheusCollector) GetMetricsJSON() ([]byte, error) {
	return p.collector.GetMetricsJSON()
}

// Collector returns the underlying custom Collector
func (p *PrometheusCollector) Collector() *Collector {
	return p.collector
}

// PrometheusHandler returns an http.Handler that serves metrics in the
// Prometheus text exposition format
func (p *PrometheusCollector) PrometheusHandler() http.Handler {
	inner := promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Sync()
		inner.ServeHTTP(w, r)
	})
}

// Handler serves the Prometheus exposition on /metrics and the JSON view on
// /metrics.json
func (p *PrometheusCollector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.PrometheusHandler())
	mux.HandleFunc("/metrics.json", func(w http.ResponseWriter, r *http.Request) {
		data, err := p.GetMetricsJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
	return mux
}
