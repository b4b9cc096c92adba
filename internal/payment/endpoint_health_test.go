package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	autotypes "github.com/mtecstake/autostake/pkg/types"
)

const (
	rpcA = "https://bsc-dataseed.binance.org/"
	rpcB = "https://bsc-dataseed1.defibit.io/"
)

var errRefused = errors.New("dial tcp: connection refused")

func fail(p *EndpointPool, url string, n int) {
	for i := 0; i < n; i++ {
		p.Observe(url, 0, errRefused)
	}
}

func TestEndpointPool_ConfigurationOrder(t *testing.T) {
	p := NewEndpointPool([]string{rpcA, rpcB, rpcA})
	got := p.Candidates()
	if len(got) != 2 || got[0] != rpcA || got[1] != rpcB {
		t.Fatalf("Candidates() = %v, want [%s %s]", got, rpcA, rpcB)
	}
	if len(NewEndpointPool(nil).Candidates()) != 0 {
		t.Error("empty pool should have no candidates")
	}
}

func TestEndpointPool_SmoothedLatency(t *testing.T) {
	p := NewEndpointPool([]string{rpcA})
	p.Observe(rpcA, 100*time.Millisecond, nil)
	p.Observe(rpcA, 200*time.Millisecond, nil)

	// 100 + 0.3*(200-100)
	if got := p.Status()[0].Latency; got != 130*time.Millisecond {
		t.Errorf("Latency = %v, want 130ms", got)
	}
}

func TestEndpointPool_FastestFirst(t *testing.T) {
	p := NewEndpointPool([]string{rpcA, rpcB})
	p.Observe(rpcA, 200*time.Millisecond, nil)
	p.Observe(rpcB, 10*time.Millisecond, nil)

	if got := p.Candidates(); got[0] != rpcB {
		t.Errorf("expected the faster endpoint first, got %v", got)
	}
}

func TestEndpointPool_GoesDownAfterConsecutiveFailures(t *testing.T) {
	p := NewEndpointPool([]string{rpcA, rpcB})

	fail(p, rpcA, endpointDownAfter-1)
	p.Observe(rpcA, 50*time.Millisecond, nil)
	fail(p, rpcA, endpointDownAfter-1)
	if len(p.Candidates()) != 2 {
		t.Fatal("a success should reset the failure streak")
	}

	fail(p, rpcA, 1)
	got := p.Candidates()
	if len(got) != 1 || got[0] != rpcB {
		t.Fatalf("expected only %s, got %v", rpcB, got)
	}
	if st := p.Status()[0]; !st.Down || st.Failures != endpointDownAfter {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestEndpointPool_RevertsAndCancellationsDoNotCount(t *testing.T) {
	p := NewEndpointPool([]string{rpcA})
	revert := &autotypes.RevertError{Method: "claim", Reason: "not matured"}

	for i := 0; i < endpointDownAfter*2; i++ {
		p.Observe(rpcA, time.Millisecond, revert)
		p.Observe(rpcA, time.Millisecond, fmt.Errorf("getStake: %w", context.Canceled))
	}

	st := p.Status()[0]
	if st.Down || st.Failures != 0 {
		t.Errorf("endpoint demoted by answered calls: %+v", st)
	}
	if st.LastOK.IsZero() {
		t.Error("a revert should count as a response")
	}
}

func TestEndpointPool_CoolOff(t *testing.T) {
	p := NewEndpointPool([]string{rpcA, rpcB})
	p.coolOff = 10 * time.Millisecond

	fail(p, rpcA, endpointDownAfter)
	if got := p.Candidates(); len(got) != 1 {
		t.Fatalf("expected 1 candidate right after failures, got %v", got)
	}

	time.Sleep(15 * time.Millisecond)

	got := p.Candidates()
	if len(got) != 2 || got[1] != rpcA {
		t.Fatalf("expected the down endpoint retried last, got %v", got)
	}
}

func TestEndpointPool_UnknownURL(t *testing.T) {
	p := NewEndpointPool([]string{rpcA})
	p.Observe("https://unknown.example.com", time.Millisecond, nil)
	fail(p, "https://unknown.example.com", endpointDownAfter)

	if st := p.Status()[0]; st.Failures != 0 || st.Latency != initialLatency {
		t.Errorf("unknown URLs must not affect tracked endpoints: %+v", st)
	}
}
