// Package owner implements the owner panel: reading the contract's
// economic parameters and submitting owner-only changes.
package owner

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/addr"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/internal/units"
	"github.com/mtecstake/autostake/internal/util"
	"github.com/mtecstake/autostake/pkg/types"
)

// Invalidator is anything holding a cache that a package change makes stale
type Invalidator interface {
	Invalidate()
}

// ParamsInput is the owner's form for setParams
type ParamsInput struct {
	APYPercent string
	LockDays   string
	Enabled    bool
}

// PackageInput is the owner's form for setPackage. Amounts are decimal
// token strings.
type PackageInput struct {
	ID        uint64
	PriceIn   string
	RewardOut string
	Active    bool
}

// Panel holds the last owner status and guards every owner action with it
type Panel struct {
	usdtDecimals uint8
	mtecDecimals uint8
	catalog      Invalidator

	mu     sync.RWMutex
	status *types.OwnerStatus
	gens   util.Generations
}

// New creates a panel. catalog may be nil.
func New(usdtDecimals, mtecDecimals uint8, catalog Invalidator) *Panel {
	return &Panel{usdtDecimals: usdtDecimals, mtecDecimals: mtecDecimals, catalog: catalog}
}

// Status returns the last loaded status, or nil
func (p *Panel) Status() *types.OwnerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Invalidate forgets the status and discards loads in flight
func (p *Panel) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gens.Invalidate()
	p.status = nil
}

// LoadStatus reads the owner and every parameter the panel shows
func (p *Panel) LoadStatus(ctx context.Context, sess *session.Session) (*types.OwnerStatus, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}

	p.mu.Lock()
	gen := p.gens.Begin()
	p.mu.Unlock()

	owner, err := sess.Contract.Owner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read owner: %w", err)
	}
	params, err := sess.Contract.Params(ctx)
	if err != nil {
		return nil, err
	}
	rates, err := sess.Contract.ReferralRates(ctx)
	if err != nil {
		return nil, err
	}

	st := &types.OwnerStatus{
		Owner:    owner,
		Account:  sess.Account,
		IsOwner:  owner == sess.Account,
		Params:   params,
		Rates:    rates,
		LoadedAt: time.Now(),
	}
	p.mu.Lock()
	outcome := p.gens.Commit(gen)
	if outcome == util.GenFresh {
		p.status = st
	}
	p.mu.Unlock()
	if outcome == util.GenInvalidated {
		return nil, types.ErrLoadSuperseded
	}

	if !st.IsOwner {
		logging.Warn("connected account is not the contract owner", logging.Account(sess.Account))
	}
	return st, nil
}

// guard refuses owner actions unless the status for this account says owner.
// The status is loaded when missing or stale for another account.
func (p *Panel) guard(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return types.ErrNoSession
	}
	st := p.Status()
	if st == nil || st.Account != sess.Account {
		var err error
		if st, err = p.LoadStatus(ctx, sess); err != nil {
			return err
		}
	}
	if !st.IsOwner {
		return types.ErrNotOwner
	}
	return nil
}

// SetParams converts the form to basis points and seconds, submits
// setParams and reloads the status
func (p *Panel) SetParams(ctx context.Context, sess *session.Session, in ParamsInput) (*types.OwnerStatus, error) {
	if err := p.guard(ctx, sess); err != nil {
		return nil, err
	}
	apy, err := units.PercentToBps(in.APYPercent)
	if err != nil {
		return nil, err
	}
	lock, err := units.DaysToSeconds(in.LockDays)
	if err != nil {
		return nil, err
	}

	params := types.ContractParams{APYBps: apy, LockSeconds: lock, Enabled: in.Enabled}
	receipt, err := sess.Contract.SetParamsAndWait(ctx, params)
	p.audit(sess, "set_params", fmt.Sprintf("apy=%d lock=%d enabled=%t", apy, lock, in.Enabled), receipt, err)
	if err != nil {
		return nil, fmt.Errorf("set params failed: %w", err)
	}
	return p.LoadStatus(ctx, sess)
}

// SetReferralRates submits the three levels after checking they fit in
// 10000 bps, then reloads the status
func (p *Panel) SetReferralRates(ctx context.Context, sess *session.Session, rates types.ReferralRates) (*types.OwnerStatus, error) {
	if err := p.guard(ctx, sess); err != nil {
		return nil, err
	}
	if err := rates.Validate(); err != nil {
		return nil, err
	}

	receipt, err := sess.Contract.SetReferralRatesAndWait(ctx, rates)
	p.audit(sess, "set_referral_rates", fmt.Sprintf("%d/%d/%d", rates.Level1, rates.Level2, rates.Level3), receipt, err)
	if err != nil {
		return nil, fmt.Errorf("set referral rates failed: %w", err)
	}
	return p.LoadStatus(ctx, sess)
}

// WithdrawUSDT sends amount USDT from the contract to `to`, which defaults
// to the connected account when empty
func (p *Panel) WithdrawUSDT(ctx context.Context, sess *session.Session, amount, to string) (*ethtypes.Receipt, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}
	return p.withdraw(ctx, sess, "withdraw_usdt", p.usdtDecimals, amount, to, sess.Contract.WithdrawUSDTAndWait)
}

// WithdrawMTEC sends amount MTEC from the contract to `to`, which defaults
// to the connected account when empty
func (p *Panel) WithdrawMTEC(ctx context.Context, sess *session.Session, amount, to string) (*ethtypes.Receipt, error) {
	if sess == nil {
		return nil, types.ErrNoSession
	}
	return p.withdraw(ctx, sess, "withdraw_mtec", p.mtecDecimals, amount, to, sess.Contract.WithdrawMTECAndWait)
}

type withdrawFn func(ctx context.Context, amount *big.Int, to common.Address) (*ethtypes.Receipt, error)

func (p *Panel) withdraw(ctx context.Context, sess *session.Session, op string, decimals uint8, amount, to string, fn withdrawFn) (*ethtypes.Receipt, error) {
	if err := p.guard(ctx, sess); err != nil {
		return nil, err
	}
	value, err := parseAmount(amount, decimals)
	if err != nil {
		return nil, err
	}
	recipient := sess.Account
	if strings.TrimSpace(to) != "" {
		if recipient, err = addr.Normalize(to); err != nil {
			return nil, err
		}
	}

	receipt, err := fn(ctx, value, recipient)
	p.audit(sess, op, fmt.Sprintf("amount=%s to=%s", value, recipient.Hex()), receipt, err)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", strings.ReplaceAll(op, "_", " "), err)
	}
	return receipt, nil
}

// SetPackage creates or replaces a package and invalidates the catalog
func (p *Panel) SetPackage(ctx context.Context, sess *session.Session, in PackageInput) (*ethtypes.Receipt, error) {
	if err := p.guard(ctx, sess); err != nil {
		return nil, err
	}
	priceIn, err := parseAmount(in.PriceIn, p.usdtDecimals)
	if err != nil {
		return nil, err
	}
	rewardOut, err := parseAmount(in.RewardOut, p.mtecDecimals)
	if err != nil {
		return nil, err
	}

	pkg := types.Package{ID: in.ID, PriceIn: priceIn, RewardOut: rewardOut, Active: in.Active}
	receipt, err := sess.Contract.SetPackageAndWait(ctx, pkg)
	p.audit(sess, "set_package", fmt.Sprintf("id=%d in=%s out=%s active=%t", in.ID, priceIn, rewardOut, in.Active), receipt, err)
	if err != nil {
		return nil, fmt.Errorf("set package failed: %w", err)
	}
	if p.catalog != nil {
		p.catalog.Invalidate()
	}
	return receipt, nil
}

// ExplorerLink returns the explorer page of the contract, or "" without an explorer
func ExplorerLink(explorer string, contract common.Address) string {
	if explorer == "" {
		return ""
	}
	return strings.TrimRight(explorer, "/") + "/address/" + contract.Hex()
}

func parseAmount(s string, decimals uint8) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: amount is required", types.ErrInvalidInput)
	}
	return units.ParseUnits(s, decimals)
}

func (p *Panel) audit(sess *session.Session, op, details string, receipt *ethtypes.Receipt, err error) {
	logging.Audit(logging.AuditEvent{
		Operation: op,
		Actor:     sess.Account,
		Target:    sess.Contract.Address().Hex(),
		Details:   details,
	}, receipt, err)
}

// FormatRates renders referral rates the way the panel shows them
func FormatRates(r types.ReferralRates) string {
	return strconv.FormatUint(r.Level1, 10) + "/" + strconv.FormatUint(r.Level2, 10) + "/" + strconv.FormatUint(r.Level3, 10) + " bps"
}
