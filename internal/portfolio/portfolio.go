// Package portfolio loads the staked positions of the session account and
// claims matured ones.
package portfolio

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/internal/util"
	"github.com/mtecstake/autostake/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Observer receives every published snapshot
type Observer interface {
	ObservePortfolio(p *types.Portfolio)
}

// Options tune a Tracker
type Options struct {
	// ReadConcurrency bounds how many positions are read at once. 1 reads
	// them one after another.
	ReadConcurrency int
	Observer        Observer
}

// Tracker owns the published portfolio snapshot
type Tracker struct {
	concurrency int
	observer    Observer

	mu       sync.Mutex
	snapshot *types.Portfolio
	gens     util.Generations
}

// New creates a tracker with no snapshot
func New(opts Options) *Tracker {
	if opts.ReadConcurrency < 1 {
		opts.ReadConcurrency = 1
	}
	return &Tracker{concurrency: opts.ReadConcurrency, observer: opts.Observer}
}

// Snapshot returns the published snapshot, or nil
func (t *Tracker) Snapshot() *types.Portfolio {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// Invalidate drops the snapshot and discards every load in flight
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot = nil
	t.gens.Invalidate()
}

// Load rebuilds the snapshot from chain reads. Any failed read fails the
// whole load and the previous snapshot stays published.
func (t *Tracker) Load(ctx context.Context, sess *session.Session) (*types.Portfolio, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}

	t.mu.Lock()
	gen := t.gens.Begin()
	t.mu.Unlock()

	p, err := t.read(ctx, sess)
	if err != nil {
		return nil, err
	}
	p.Generation = gen

	t.mu.Lock()
	switch t.gens.Commit(gen) {
	case util.GenInvalidated:
		t.mu.Unlock()
		logging.Debug("discarding portfolio load of an invalidated session", logging.Component("portfolio"), "generation", gen)
		return nil, types.ErrLoadSuperseded
	case util.GenOvertaken:
		// a later load is already published
		current := t.snapshot
		t.mu.Unlock()
		return current, nil
	}
	t.snapshot = p
	t.mu.Unlock()

	if t.observer != nil {
		t.observer.ObservePortfolio(p)
	}
	return p, nil
}

func (t *Tracker) read(ctx context.Context, sess *session.Session) (*types.Portfolio, error) {
	count, err := sess.Contract.StakeCount(ctx, sess.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to read stake count: %w", err)
	}

	if err := types.CheckCount("stake count", count); err != nil {
		return nil, err
	}

	p := types.EmptyPortfolio(sess.Account)
	if count == 0 {
		return p, nil
	}

	// Slot k holds index count-1-k so the result is newest first
	positions := make([]types.StakePosition, count)
	if t.concurrency == 1 {
		for k := uint64(0); k < count; k++ {
			pos, err := readPosition(ctx, sess, count-1-k)
			if err != nil {
				return nil, err
			}
			positions[k] = *pos
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(t.concurrency)
		for k := uint64(0); k < count; k++ {
			k := k
			g.Go(func() error {
				pos, err := readPosition(gctx, sess, count-1-k)
				if err != nil {
					return err
				}
				positions[k] = *pos
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for i := range positions {
		p.TotalPrincipal.Add(p.TotalPrincipal, positions[i].Principal)
		p.TotalPending.Add(p.TotalPending, positions[i].PendingReward)
		if positions[i].Claimable {
			p.AnyClaimable = true
		}
	}
	p.Positions = positions
	p.LoadedAt = time.Now()
	return p, nil
}

// readPosition performs the three independent reads of one index
func readPosition(ctx context.Context, sess *session.Session, index uint64) (*types.StakePosition, error) {
	pos, err := sess.Contract.GetStake(ctx, sess.Account, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read stake %d: %w", index, err)
	}
	pending, err := sess.Contract.PendingReward(ctx, sess.Account, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending reward %d: %w", index, err)
	}
	claimable, err := sess.Contract.CanClaim(ctx, sess.Account, index)
	if err != nil {
		return nil, fmt.Errorf("failed to read claim status %d: %w", index, err)
	}

	pos.Index = index
	if pos.Principal == nil {
		pos.Principal = big.NewInt(0)
	}
	pos.PendingReward = pending
	pos.Claimable = claimable
	return pos, nil
}

// knownClaimed reports whether the published snapshot marks index claimed
func (t *Tracker) knownClaimed(sess *session.Session, index uint64) bool {
	snap := t.Snapshot()
	if snap == nil || snap.Account != sess.Account {
		return false
	}
	pos, ok := snap.Position(index)
	return ok && pos.Claimed
}
