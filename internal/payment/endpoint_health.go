package payment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	autotypes "github.com/mtecstake/autostake/pkg/types"
)

const (
	endpointDownAfter = 3
	endpointCoolOff   = 30 * time.Second
	initialLatency    = 100 * time.Millisecond
	latencyWeight     = 0.3
)

// EndpointStatus is the health of one configured RPC endpoint
type EndpointStatus struct {
	URL         string        `json:"url"`
	Latency     time.Duration `json:"latency"`
	Failures    int           `json:"failures"`
	LastOK      time.Time     `json:"last_ok"`
	LastFailure time.Time     `json:"last_failure"`
	Down        bool          `json:"down"`
	measured    bool
}

// EndpointPool orders the configured BSC RPC URLs for dialing. Only
// transport failures count against an endpoint; a revert is an answer.
type EndpointPool struct {
	mu        sync.RWMutex
	order     []string
	byURL     map[string]*EndpointStatus
	downAfter int
	coolOff   time.Duration
}

// NewEndpointPool tracks urls in configuration order, dropping duplicates
func NewEndpointPool(urls []string) *EndpointPool {
	p := &EndpointPool{
		byURL:     make(map[string]*EndpointStatus, len(urls)),
		downAfter: endpointDownAfter,
		coolOff:   endpointCoolOff,
	}
	for _, u := range urls {
		if _, dup := p.byURL[u]; dup {
			continue
		}
		p.order = append(p.order, u)
		p.byURL[u] = &EndpointStatus{URL: u, Latency: initialLatency}
	}
	return p
}

// countsAgainst reports whether err says something about the endpoint
// itself. A revert came back from a working node.
func countsAgainst(err error) bool {
	var rev *autotypes.RevertError
	return !errors.As(err, &rev)
}

// Observe folds the outcome of one request against url into its record.
// Cancelled requests are ignored.
func (p *EndpointPool) Observe(url string, latency time.Duration, err error) {
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.byURL[url]
	if !ok {
		return
	}

	if err != nil && countsAgainst(err) {
		ep.Failures++
		ep.LastFailure = time.Now()
		ep.Down = ep.Failures >= p.downAfter
		return
	}

	ep.Failures = 0
	ep.Down = false
	ep.LastOK = time.Now()
	if ep.measured {
		ep.Latency += time.Duration(latencyWeight * float64(latency-ep.Latency))
	} else {
		ep.Latency = latency
		ep.measured = true
	}
}

// Candidates returns the URLs worth dialing: live endpoints fastest first,
// then down endpoints whose cool-off has passed, longest-failed first.
func (p *EndpointPool) Candidates() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := time.Now()
	var live, retry []*EndpointStatus
	for _, u := range p.order {
		ep := p.byURL[u]
		if !ep.Down {
			live = append(live, ep)
		} else if now.Sub(ep.LastFailure) >= p.coolOff {
			retry = append(retry, ep)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].Latency < live[j].Latency })
	sort.SliceStable(retry, func(i, j int) bool { return retry[i].LastFailure.Before(retry[j].LastFailure) })

	urls := make([]string, 0, len(live)+len(retry))
	for _, ep := range live {
		urls = append(urls, ep.URL)
	}
	for _, ep := range retry {
		urls = append(urls, ep.URL)
	}
	return urls
}

// Status copies every record in configuration order
func (p *EndpointPool) Status() []EndpointStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]EndpointStatus, 0, len(p.order))
	for _, u := range p.order {
		out = append(out, *p.byURL[u])
	}
	return out
}
