// Package app is the flow boundary: it composes the session, catalog,
// allowance, purchase, portfolio and owner components, tracks busy
// operations and turns every outcome into one status line.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/addr"
	"github.com/mtecstake/autostake/internal/allowance"
	"github.com/mtecstake/autostake/internal/catalog"
	"github.com/mtecstake/autostake/internal/config"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/owner"
	"github.com/mtecstake/autostake/internal/payment"
	"github.com/mtecstake/autostake/internal/portfolio"
	"github.com/mtecstake/autostake/internal/purchase"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/internal/units"
	"github.com/mtecstake/autostake/internal/wallet"
	"github.com/mtecstake/autostake/pkg/types"
)

// Operation names used for busy tracking
const (
	OpConnect   = "connect"
	OpCatalog   = "catalog"
	OpAllowance = "allowance"
	OpApprove   = "approve"
	OpBuy       = "buy"
	OpPortfolio = "portfolio"
	OpClaim     = "claim"
	OpClaimAll  = "claim_all"
	OpOwner     = "owner"
	OpAccount   = "account"
)

// BuyResult is what a confirmed purchase returns
type BuyResult = purchase.Result

// Options configure an App
type Options struct {
	Config   *config.Config
	Provider wallet.Provider // nil reports ErrNoWalletProvider on connect
	Dialer   session.Dialer  // defaults to NewDialer(Config, Observer)
	Observer Observer        // optional telemetry sink
	// Referral is the candidate referrer found at startup, used by Buy
	// when no explicit one is given
	Referral common.Address
}

// Observer receives chain and portfolio telemetry
type Observer interface {
	portfolio.Observer
	ObserveCall(method string, duration time.Duration, err error)
	ObserveTx(method, outcome string)
}

// App wires the flows together for one process
type App struct {
	cfg      *config.Config
	manager  *session.Manager
	catalog  *catalog.Catalog
	gate     *allowance.Gate
	tracker  *portfolio.Tracker
	purchase *purchase.Flow
	owner    *owner.Panel
	referral common.Address

	mu     sync.Mutex
	busy   map[string]int
	status Status
}

// New builds an App from opts
func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := opts.Config

	dial := opts.Dialer
	if dial == nil {
		var obs payment.Observer
		if opts.Observer != nil {
			obs = opts.Observer
		}
		dial = NewDialer(cfg, obs)
	}

	popts := portfolio.Options{ReadConcurrency: cfg.Client.ReadConcurrency}
	if opts.Observer != nil {
		popts.Observer = opts.Observer
	}

	a := &App{
		cfg:      cfg,
		manager:  session.NewManager(opts.Provider, cfg.Network.NetworkDescriptor, dial),
		catalog:  catalog.New(),
		gate:     allowance.NewGate(),
		tracker:  portfolio.New(popts),
		referral: opts.Referral,
		busy:     make(map[string]int),
	}
	a.purchase = purchase.New(a.catalog, a.gate, a.tracker)
	a.owner = owner.New(cfg.Contracts.USDTDecimals, cfg.Contracts.MTECDecimals, a.catalog)
	a.manager.OnInvalidate(a.invalidate)
	return a, nil
}

// Config returns the configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Manager returns the session manager
func (a *App) Manager() *session.Manager {
	return a.manager
}

// Catalog returns the package catalog
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Portfolio returns the published portfolio snapshot, or nil
func (a *App) Portfolio() *types.Portfolio {
	return a.tracker.Snapshot()
}

// Allowance returns the last allowance evaluation, or nil
func (a *App) Allowance() *allowance.Evaluation {
	return a.gate.Last()
}

// OwnerStatus returns the last owner status, or nil
func (a *App) OwnerStatus() *types.OwnerStatus {
	return a.owner.Status()
}

// Referral returns the startup referral candidate
func (a *App) Referral() common.Address {
	return a.referral
}

// Status returns the current status line
func (a *App) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Busy reports whether op is running
func (a *App) Busy(op string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy[op] > 0
}

// BusyOps lists the running operations
func (a *App) BusyOps() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ops := make([]string, 0, len(a.busy))
	for op, n := range a.busy {
		if n > 0 {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	return ops
}

// begin marks op busy and returns the cleanup that clears it. Callers defer it.
func (a *App) begin(op string) func() {
	a.mu.Lock()
	a.busy[op]++
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		a.busy[op]--
		if a.busy[op] <= 0 {
			delete(a.busy, op)
		}
		a.mu.Unlock()
	}
}

// report sets the status from err, or okMsg on success, and returns err
func (a *App) report(err error, okMsg string) error {
	st := Status{Message: okMsg}
	if err != nil {
		st = Status{Message: Describe(err, a.cfg.Network.ChainName), IsError: !benign(err)}
		if st.IsError {
			logging.Debug("flow failed", logging.Err(err))
		}
	}
	a.mu.Lock()
	if st.Message != "" || err != nil {
		a.status = st
	}
	a.mu.Unlock()
	return err
}

func (a *App) setStatus(msg string, isErr bool) {
	a.mu.Lock()
	a.status = Status{Message: msg, IsError: isErr}
	a.mu.Unlock()
}

// invalidate drops every cache tied to the session
func (a *App) invalidate(reason string) {
	a.catalog.Invalidate()
	a.gate.Invalidate()
	a.tracker.Invalidate()
	a.owner.Invalidate()
	if reason == session.ReasonReconnect || reason == session.ReasonDisconnect {
		return
	}
	logging.Info("session invalidated", "reason", reason)
	a.setStatus("Wallet session closed ("+reason+"). Connect again.", true)
}

// session returns the current session or ErrNoSession
func (a *App) session() (*session.Session, error) {
	sess := a.manager.Current()
	if sess == nil {
		if err := a.manager.Snapshot().Err; err != nil && errors.Is(err, types.ErrWrongNetwork) {
			return nil, err
		}
		return nil, types.ErrNoSession
	}
	return sess, nil
}

// withTimeout bounds a write and its confirmation wait
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Client.ConfirmTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Client.ConfirmTimeout)
}

// Connect establishes the wallet session and checks the token addresses
func (a *App) Connect(ctx context.Context) (*session.Session, error) {
	defer a.begin(OpConnect)()

	sess, err := a.manager.Connect(ctx)
	if err != nil {
		return nil, a.report(err, "")
	}
	mismatches := a.CheckTokens(ctx, sess)

	msg := "Connected " + addr.Short(sess.Account.Hex())
	if len(mismatches) > 0 {
		msg += ". Token address mismatch, check the contracts config (" + strings.Join(mismatches, "; ") + ")"
	}
	if !addr.IsZero(a.referral) {
		if a.referral == sess.Account {
			msg += ". Your own referral link was opened; purchases will use no referrer."
		} else {
			msg += ". Referrer " + addr.Short(a.referral.Hex()) + " will be used at purchase."
		}
	}
	return sess, a.report(nil, msg)
}

// Disconnect closes the session
func (a *App) Disconnect() {
	a.manager.Disconnect()
	a.setStatus("Disconnected.", false)
}

// CheckTokens compares the token addresses the contract reports with the
// configured ones and logs every mismatch
func (a *App) CheckTokens(ctx context.Context, sess *session.Session) []string {
	var mismatches []string
	check := func(name string, read func(context.Context) (common.Address, error), want common.Address) {
		got, err := read(ctx)
		if err != nil {
			logging.Warn("failed to read token address", "token", name, logging.Err(err))
			return
		}
		if got != want {
			logging.Warn("token address mismatch", "token", name, "contract", got.Hex(), "configured", want.Hex())
			mismatches = append(mismatches, fmt.Sprintf("%s: contract uses %s, configured %s", name, got.Hex(), want.Hex()))
		}
	}
	check("USDT", sess.Contract.USDT, sess.USDT.Address())
	check("MTEC", sess.Contract.MTEC, sess.MTEC.Address())
	return mismatches
}

// LoadCatalog reloads the package list
func (a *App) LoadCatalog(ctx context.Context) ([]types.Package, error) {
	defer a.begin(OpCatalog)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	pkgs, err := a.catalog.Load(ctx, sess)
	if err != nil {
		return nil, a.report(err, "")
	}
	return pkgs, a.report(nil, fmt.Sprintf("%d packages loaded.", len(pkgs)))
}

// SelectPackage changes the selected package
func (a *App) SelectPackage(id uint64) (*types.Package, error) {
	p, err := a.catalog.Select(id)
	if err != nil {
		return nil, a.report(err, "")
	}
	return p, a.report(nil, fmt.Sprintf("Package #%d selected.", id))
}

// selected returns the selected package or ErrInvalidPackageSelection
func (a *App) selected() (*types.Package, error) {
	p, ok := a.catalog.Selected()
	if !ok {
		return nil, types.ErrInvalidPackageSelection
	}
	return p, nil
}

// EvaluateAllowance reads the allowance against the selected package
func (a *App) EvaluateAllowance(ctx context.Context) (*allowance.Evaluation, error) {
	defer a.begin(OpAllowance)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	pkg, err := a.selected()
	if err != nil {
		return nil, a.report(err, "")
	}
	ev, err := a.gate.Evaluate(ctx, sess, pkg)
	return ev, a.report(err, "")
}

// Approve grants the contract an unlimited USDT allowance for the selected package
func (a *App) Approve(ctx context.Context) (*allowance.Evaluation, error) {
	defer a.begin(OpApprove)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	pkg, err := a.selected()
	if err != nil {
		return nil, a.report(err, "")
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	ev, err := a.gate.Approve(ctx, sess, pkg)
	return ev, a.report(err, "USDT approved.")
}

// Buy purchases packageID. A zero ref falls back to the startup referral.
func (a *App) Buy(ctx context.Context, packageID uint64, ref common.Address) (*BuyResult, error) {
	defer a.begin(OpBuy)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	if addr.IsZero(ref) {
		ref = a.referral
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	res, err := a.purchase.Buy(ctx, sess, packageID, ref)
	if err != nil && res == nil {
		return nil, a.report(err, "")
	}
	if err != nil {
		// Confirmed on chain; only the refresh failed
		a.setStatus(fmt.Sprintf("Package #%d purchased, but refreshing failed: %s", packageID, Describe(err, a.cfg.Network.ChainName)), true)
		return res, err
	}
	return res, a.report(nil, fmt.Sprintf("Package #%d purchased and staked.", packageID))
}

// LoadPortfolio reloads the stake list
func (a *App) LoadPortfolio(ctx context.Context) (*types.Portfolio, error) {
	defer a.begin(OpPortfolio)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	p, err := a.tracker.Load(ctx, sess)
	if err != nil {
		return nil, a.report(err, "")
	}
	return p, a.report(nil, fmt.Sprintf("%d stakes loaded.", p.Count()))
}

// Refresh reloads the catalog, the allowance and the portfolio in that
// order. An empty catalog does not stop the portfolio load.
func (a *App) Refresh(ctx context.Context) error {
	var errs []error
	if _, err := a.LoadCatalog(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, ok := a.catalog.Selected(); ok {
		if _, err := a.EvaluateAllowance(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := a.LoadPortfolio(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	a.report(errs[0], "")
	return errors.Join(errs...)
}

// ClaimOne claims one stake by index
func (a *App) ClaimOne(ctx context.Context, index uint64) (*types.Portfolio, error) {
	defer a.begin(OpClaim)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	p, err := a.tracker.ClaimOne(ctx, sess, index)
	return p, a.report(err, fmt.Sprintf("Stake #%d claimed.", index+1))
}

// ClaimAll claims every claimable stake
func (a *App) ClaimAll(ctx context.Context) (*types.ClaimReport, error) {
	defer a.begin(OpClaimAll)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	report, err := a.tracker.ClaimAll(ctx, sess)
	switch {
	case err == nil:
		return report, a.report(nil, fmt.Sprintf("Claimed %d stakes.", report.Claimed()))
	case report != nil && len(report.Failed) > 0:
		first := report.Failed[minKey(report.Failed)]
		a.setStatus(fmt.Sprintf("Claimed %d of %d; %d failed: %s",
			report.Claimed(), len(report.Attempted), len(report.Failed), Describe(first, a.cfg.Network.ChainName)), true)
		return report, err
	default:
		return report, a.report(err, "")
	}
}

func minKey(m map[uint64]error) uint64 {
	first := true
	var lowest uint64
	for k := range m {
		if first || k < lowest {
			lowest, first = k, false
		}
	}
	return lowest
}

// Balances reads the USDT and MTEC balances of the session account
func (a *App) Balances(ctx context.Context) (usdt, mtec *big.Int, err error) {
	defer a.begin(OpAccount)()

	sess, err := a.session()
	if err != nil {
		return nil, nil, a.report(err, "")
	}
	if usdt, err = sess.USDT.BalanceOf(ctx, sess.Account); err != nil {
		return nil, nil, a.report(err, "")
	}
	if mtec, err = sess.MTEC.BalanceOf(ctx, sess.Account); err != nil {
		return nil, nil, a.report(err, "")
	}
	return usdt, mtec, nil
}

// Referrers reads the referral chain bound to the session account
func (a *App) Referrers(ctx context.Context) (types.Referrers, error) {
	defer a.begin(OpAccount)()

	sess, err := a.session()
	if err != nil {
		return types.Referrers{}, a.report(err, "")
	}
	r, err := sess.Contract.GetReferrers(ctx, sess.Account)
	return r, a.report(err, "")
}

// RefLink builds the referral link of the session account
func (a *App) RefLink() (string, error) {
	sess, err := a.session()
	if err != nil {
		return "", a.report(err, "")
	}
	if a.cfg.Client.RefBaseURL == "" {
		return "", a.report(fmt.Errorf("%w: client.ref_base_url is not configured", types.ErrInvalidInput), "")
	}
	link, err := addr.BuildRefLink(a.cfg.Client.RefBaseURL, sess.Account)
	return link, a.report(err, "")
}

// LoadOwnerStatus reads the owner panel status
func (a *App) LoadOwnerStatus(ctx context.Context) (*types.OwnerStatus, error) {
	defer a.begin(OpOwner)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	st, err := a.owner.LoadStatus(ctx, sess)
	if err != nil {
		return nil, a.report(err, "")
	}
	if !st.IsOwner {
		a.setStatus(Describe(types.ErrNotOwner, ""), true)
		return st, nil
	}
	return st, a.report(nil, "Owner status loaded.")
}

// SetParams submits new staking parameters
func (a *App) SetParams(ctx context.Context, in owner.ParamsInput) (*types.OwnerStatus, error) {
	defer a.begin(OpOwner)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	st, err := a.owner.SetParams(ctx, sess, in)
	return st, a.report(err, "Parameters updated.")
}

// SetReferralRates submits new referral rates
func (a *App) SetReferralRates(ctx context.Context, rates types.ReferralRates) (*types.OwnerStatus, error) {
	defer a.begin(OpOwner)()

	sess, err := a.session()
	if err != nil {
		return nil, a.report(err, "")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	st, err := a.owner.SetReferralRates(ctx, sess, rates)
	return st, a.report(err, "Referral rates updated.")
}

// WithdrawUSDT withdraws USDT from the contract
func (a *App) WithdrawUSDT(ctx context.Context, amount, to string) error {
	return a.withdraw(ctx, "USDT", amount, to, a.owner.WithdrawUSDT)
}

// WithdrawMTEC withdraws MTEC from the contract
func (a *App) WithdrawMTEC(ctx context.Context, amount, to string) error {
	return a.withdraw(ctx, "MTEC", amount, to, a.owner.WithdrawMTEC)
}

func (a *App) withdraw(ctx context.Context, symbol, amount, to string, fn func(context.Context, *session.Session, string, string) (*ethtypes.Receipt, error)) error {
	defer a.begin(OpOwner)()

	sess, err := a.session()
	if err != nil {
		return a.report(err, "")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	_, err = fn(ctx, sess, amount, to)
	return a.report(err, fmt.Sprintf("Withdrew %s %s.", amount, symbol))
}

// SetPackage creates or replaces a package, then reloads the catalog
func (a *App) SetPackage(ctx context.Context, in owner.PackageInput) error {
	defer a.begin(OpOwner)()

	sess, err := a.session()
	if err != nil {
		return a.report(err, "")
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if _, err := a.owner.SetPackage(ctx, sess, in); err != nil {
		return a.report(err, "")
	}
	if _, err := a.catalog.Load(ctx, sess); err != nil && !errors.Is(err, types.ErrCatalogEmpty) {
		logging.Warn("catalog reload after set package failed", logging.Err(err))
	}
	return a.report(nil, fmt.Sprintf("Package #%d saved.", in.ID))
}

// ExplorerLink returns the explorer page of the contract
func (a *App) ExplorerLink() string {
	return owner.ExplorerLink(a.cfg.Network.Explorer(), common.HexToAddress(a.cfg.Contracts.AutoStake))
}

// FormatMTEC renders a reward token amount
func (a *App) FormatMTEC(v *big.Int) string {
	return units.Format(v, a.cfg.Contracts.MTECDecimals)
}

// FormatUSDT renders a payment token amount
func (a *App) FormatUSDT(v *big.Int) string {
	return units.Format(v, a.cfg.Contracts.USDTDecimals)
}

// Watch keeps the portfolio fresh until ctx ends or the session changes.
// Contract events trigger reloads when a subscription is available;
// otherwise the portfolio is polled every client.poll_interval.
func (a *App) Watch(ctx context.Context, onUpdate func(*types.Portfolio)) error {
	sess, err := a.session()
	if err != nil {
		return a.report(err, "")
	}

	reload := func() {
		p, err := a.LoadPortfolio(ctx)
		if err != nil {
			logging.Warn("portfolio refresh failed", logging.Err(err))
			return
		}
		if onUpdate != nil {
			onUpdate(p)
		}
	}
	reload()

	var events <-chan *payment.PortfolioEvent
	if sess.Events != nil {
		ok, err := sess.Events.Start(ctx)
		if err != nil {
			logging.Warn("event subscription failed, polling instead", logging.Err(err))
		}
		if ok {
			defer sess.Events.Stop()
			events = sess.Events.Events()
		}
	}

	interval := a.cfg.Client.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if a.manager.Current() != sess {
				return types.ErrNoSession
			}
			logging.Debug("portfolio event", "kind", ev.Kind, logging.StakeIndex(ev.StakeIndex), logging.TxHash(ev.TxHash))
			reload()
		case <-ticker.C:
			if a.manager.Current() != sess {
				return types.ErrNoSession
			}
			if events == nil {
				reload()
			}
		}
	}
}
