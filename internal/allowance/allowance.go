// Package allowance decides whether the contract may pull the price of a
// package from the account, and raises the allowance when it may not.
package allowance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/internal/units"
	"github.com/mtecstake/autostake/internal/util"
	"github.com/mtecstake/autostake/pkg/types"
)

// Evaluation is the outcome of one live allowance read
type Evaluation struct {
	Owner       common.Address
	Spender     common.Address
	PackageID   uint64
	Allowance   *big.Int
	Required    *big.Int
	Sufficient  bool
	EvaluatedAt time.Time
}

// Gate evaluates allowances. It never answers from cache: Last is only
// for rendering.
type Gate struct {
	mu   sync.RWMutex
	last *Evaluation
	gens util.Generations
}

// NewGate creates a gate with no evaluation
func NewGate() *Gate {
	return &Gate{}
}

// Evaluate reads the allowance granted by the session account to the
// contract and compares it with the package price
func (g *Gate) Evaluate(ctx context.Context, sess *session.Session, pkg *types.Package) (*Evaluation, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}
	if pkg == nil {
		return nil, types.ErrInvalidPackageSelection
	}

	g.mu.Lock()
	gen := g.gens.Begin()
	g.mu.Unlock()

	spender := sess.Contract.Address()
	current, err := sess.USDT.Allowance(ctx, sess.Account, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}

	ev := &Evaluation{
		Owner:       sess.Account,
		Spender:     spender,
		PackageID:   pkg.ID,
		Allowance:   current,
		Required:    new(big.Int).Set(pkg.PriceIn),
		Sufficient:  current.Cmp(pkg.PriceIn) >= 0,
		EvaluatedAt: time.Now(),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.gens.Commit(gen) {
	case util.GenInvalidated:
		return nil, types.ErrLoadSuperseded
	case util.GenFresh:
		g.last = ev
	}
	// An overtaken read is still live for its caller; it is just not shown
	return ev, nil
}

// Approve grants the contract an unlimited allowance unless a fresh
// evaluation is already sufficient, in which case nothing is submitted and
// ErrAlreadyApproved is returned with that evaluation.
func (g *Gate) Approve(ctx context.Context, sess *session.Session, pkg *types.Package) (*Evaluation, error) {
	ev, err := g.Evaluate(ctx, sess, pkg)
	if err != nil {
		return nil, err
	}
	if ev.Sufficient {
		return ev, types.ErrAlreadyApproved
	}

	receipt, err := sess.USDT.ApproveAndWait(ctx, ev.Spender, units.MaxUint256())
	logging.Audit(logging.AuditEvent{
		Operation: "approve",
		Actor:     sess.Account,
		Target:    ev.Spender.Hex(),
		Details:   "amount=max",
	}, receipt, err)
	if err != nil {
		return nil, fmt.Errorf("approve failed: %w", err)
	}

	return g.Evaluate(ctx, sess, pkg)
}

// Last returns the most recent evaluation, or nil
func (g *Gate) Last() *Evaluation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}

// Invalidate forgets the last evaluation and discards evaluations in flight
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gens.Invalidate()
	g.last = nil
}
