package metrics

import (
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mtecstake/autostake/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewPrometheusCollector(t *testing.T) {
	c := NewCollector()
	pc := NewPrometheusCollector(c, 18)

	if pc.Collector() != c {
		t.Error("expected PrometheusCollector to wrap the given Collector")
	}
	if pc.Registry() == nil {
		t.Error("expected non-nil Prometheus registry")
	}
	if pc.Registry() == prometheus.DefaultRegisterer {
		t.Error("collector must not use the global registry")
	}
}

func TestObserveCall(t *testing.T) {
	pc := NewPrometheusCollector(NewCollector(), 18)

	pc.ObserveCall("getStake", 20*time.Millisecond, nil)
	pc.ObserveCall("getStake", 30*time.Millisecond, errors.New("timeout"))

	if got := testutil.ToFloat64(pc.callCount.WithLabelValues("getStake")); got != 2 {
		t.Errorf("expected 2 calls, got %f", got)
	}
	if got := testutil.ToFloat64(pc.callErrors.WithLabelValues("getStake")); got != 1 {
		t.Errorf("expected 1 error, got %f", got)
	}

	metric := &dto.Metric{}
	observer := pc.callDuration.WithLabelValues("getStake")
	if err := observer.(prometheus.Metric).Write(metric); err != nil {
		t.Fatalf("failed to read histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", metric.GetHistogram().GetSampleCount())
	}

	m := pc.GetMetrics()
	if m.CallCounts["getStake"] != 2 || m.CallErrors["getStake"] != 1 {
		t.Errorf("JSON collector out of sync: %+v", m.CallCounts)
	}
}

func TestObserveTx(t *testing.T) {
	pc := NewPrometheusCollector(NewCollector(), 18)

	pc.ObserveTx("claim", "submitted")
	pc.ObserveTx("claim", "confirmed")

	if got := testutil.ToFloat64(pc.txCount.WithLabelValues("claim", "confirmed")); got != 1 {
		t.Errorf("expected 1 confirmed claim, got %f", got)
	}
	if got := testutil.CollectAndCount(pc.txCount); got != 2 {
		t.Errorf("expected 2 series, got %d", got)
	}
}

func TestObservePortfolio(t *testing.T) {
	pc := NewPrometheusCollector(NewCollector(), 18)

	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	pf := &types.Portfolio{
		Positions: []types.StakePosition{
			{Index: 1, Claimable: true},
			{Index: 0},
		},
		TotalPrincipal: new(big.Int).Mul(oneToken, big.NewInt(250)),
		TotalPending:   new(big.Int).Div(oneToken, big.NewInt(4)),
	}
	pc.ObservePortfolio(pf)

	if got := testutil.ToFloat64(pc.positions); got != 2 {
		t.Errorf("expected 2 positions, got %f", got)
	}
	if got := testutil.ToFloat64(pc.claimable); got != 1 {
		t.Errorf("expected 1 claimable, got %f", got)
	}
	if got := testutil.ToFloat64(pc.totalPrincipal); got != 250 {
		t.Errorf("expected principal 250, got %f", got)
	}
	if got := testutil.ToFloat64(pc.totalPending); got != 0.25 {
		t.Errorf("expected pending 0.25, got %f", got)
	}
	if pc.GetMetrics().Positions != 2 {
		t.Error("JSON collector should see the portfolio gauges")
	}
}

func TestHandler(t *testing.T) {
	pc := NewPrometheusCollector(NewCollector(), 18)
	pc.ObserveCall("packageCount", 5*time.Millisecond, nil)

	srv := httptest.NewServer(pc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	text := string(body)
	for _, want := range []string{
		`autostake_contract_calls_total{method="packageCount"} 1`,
		"autostake_uptime_seconds",
		"autostake_goroutine_count",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}

	resp, err = http.Get(srv.URL + "/metrics.json")
	if err != nil {
		t.Fatalf("GET /metrics.json failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), `"packageCount":1`) {
		t.Errorf("JSON view missing call count: %s", body)
	}
}
