package payment

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/logging"
	autotypes "github.com/mtecstake/autostake/pkg/types"
)

// Revert reasons produced by the mock contract
const (
	reasonNotOwner        = "not owner"
	reasonDisabled        = "disabled"
	reasonInactivePackage = "package inactive"
	reasonBadIndex        = "bad index"
	reasonAlreadyClaimed  = "already claimed"
	reasonLocked          = "locked"
	reasonRefRates        = "ref rates too high"
)

// AutoStakeContract provides access to the package-purchase and auto-stake contract
type AutoStakeContract struct {
	baseClient   *BaseClient
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockOwner    common.Address
	mockSender   common.Address
	mockUSDT     *TokenContract
	mockMTEC     *TokenContract
	mockPackages []autotypes.Package
	mockStakes   map[common.Address][]autotypes.StakePosition
	mockReferrer map[common.Address]common.Address
	mockParams   autotypes.ContractParams
	mockRates    autotypes.ReferralRates
	mockNow      func() time.Time
	mockMu       sync.RWMutex
}

// NewAutoStakeContract creates a new auto-stake contract client
func NewAutoStakeContract(baseClient *BaseClient, contractAddr common.Address) (*AutoStakeContract, error) {
	if baseClient == nil {
		return nil, fmt.Errorf("base client is required (use NewMockAutoStakeContract for testing)")
	}
	if !baseClient.IsConnected() {
		return nil, fmt.Errorf("base client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(AutoStakeABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse auto-stake ABI: %w", err)
	}

	client := baseClient.Client()
	return &AutoStakeContract{
		baseClient:   baseClient,
		contractABI:  parsedABI,
		contractAddr: contractAddr,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, client, client, client),
	}, nil
}

// NewMockAutoStakeContract creates an in-memory contract that settles against
// the given mock tokens. The contract starts enabled at 12% APY with a 30 day lock.
func NewMockAutoStakeContract(contractAddr, owner common.Address, usdt, mtec *TokenContract) *AutoStakeContract {
	parsedABI, _ := abi.JSON(strings.NewReader(AutoStakeABI))
	return &AutoStakeContract{
		contractABI:  parsedABI,
		contractAddr: contractAddr,
		mockMode:     true,
		mockOwner:    owner,
		mockUSDT:     usdt,
		mockMTEC:     mtec,
		mockStakes:   make(map[common.Address][]autotypes.StakePosition),
		mockReferrer: make(map[common.Address]common.Address),
		mockParams: autotypes.ContractParams{
			APYBps:      1200,
			LockSeconds: 30 * 24 * 60 * 60,
			Enabled:     true,
		},
		mockNow: time.Now,
	}
}

// IsMockMode returns whether running in mock mode
func (ac *AutoStakeContract) IsMockMode() bool {
	return ac.mockMode
}

// Address returns the contract address
func (ac *AutoStakeContract) Address() common.Address {
	return ac.contractAddr
}

// ABI returns the parsed contract ABI
func (ac *AutoStakeContract) ABI() abi.ABI {
	return ac.contractABI
}

// PackageCount returns how many packages have been defined
func (ac *AutoStakeContract) PackageCount(ctx context.Context) (uint64, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		return uint64(len(ac.mockPackages)), nil
	}

	result, err := ac.baseClient.Call(ctx, ac.contract, "packageCount")
	if err != nil {
		return 0, fmt.Errorf("failed to get package count: %w", err)
	}
	return firstCount(result, "packageCount")
}

// GetPackage reads packages(id)
func (ac *AutoStakeContract) GetPackage(ctx context.Context, id uint64) (*autotypes.Package, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		if id >= uint64(len(ac.mockPackages)) {
			return &autotypes.Package{ID: id, PriceIn: big.NewInt(0), RewardOut: big.NewInt(0)}, nil
		}
		p := ac.mockPackages[id]
		return copyPackage(&p), nil
	}

	result, err := ac.baseClient.Call(ctx, ac.contract, "packages", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get package %d: %w", id, err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected packages(%d) result length %d", id, len(result))
	}

	pkg := &autotypes.Package{ID: id}
	pkg.PriceIn, _ = result[0].(*big.Int)
	pkg.RewardOut, _ = result[1].(*big.Int)
	pkg.Active, _ = result[2].(bool)
	if pkg.PriceIn == nil {
		pkg.PriceIn = big.NewInt(0)
	}
	if pkg.RewardOut == nil {
		pkg.RewardOut = big.NewInt(0)
	}
	return pkg, nil
}

// StakeCount returns how many positions user has opened
func (ac *AutoStakeContract) StakeCount(ctx context.Context, user common.Address) (uint64, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		return uint64(len(ac.mockStakes[user])), nil
	}

	result, err := ac.baseClient.Call(ctx, ac.contract, "getStakeCount", user)
	if err != nil {
		return 0, fmt.Errorf("failed to get stake count: %w", err)
	}
	return firstCount(result, "getStakeCount")
}

// GetStake reads the stored fields of one position. The derived fields
// (PendingReward, Claimable) are left unset.
func (ac *AutoStakeContract) GetStake(ctx context.Context, user common.Address, index uint64) (*autotypes.StakePosition, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		s, err := ac.mockStake(user, index, "getStake")
		if err != nil {
			return nil, err
		}
		out := *s
		out.PendingReward = nil
		out.Claimable = false
		return &out, nil
	}

	result, err := ac.baseClient.Call(ctx, ac.contract, "getStake", user, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, fmt.Errorf("failed to get stake %d: %w", index, err)
	}
	if len(result) < 8 {
		return nil, fmt.Errorf("unexpected getStake result length %d", len(result))
	}

	pos := &autotypes.StakePosition{Index: index}
	pos.Principal = bigOrZero(result[0])
	pos.StartTime = time.Unix(bigOrZero(result[1]).Int64(), 0)
	pos.Claimed, _ = result[2].(bool)
	pos.APYBps = bigOrZero(result[3]).Uint64()
	pos.LockSeconds = bigOrZero(result[4]).Uint64()
	pos.USDTPaid = bigOrZero(result[5])
	pos.USDTNet = bigOrZero(result[6])
	pos.Referrer1, _ = result[7].(common.Address)
	return pos, nil
}

// PendingReward returns the reward accrued so far by one position
func (ac *AutoStakeContract) PendingReward(ctx context.Context, user common.Address, index uint64) (*big.Int, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		s, err := ac.mockStake(user, index, "pendingReward")
		if err != nil {
			return nil, err
		}
		return ac.mockReward(s), nil
	}

	result, err := ac.baseClient.Call(ctx, ac.contract, "pendingReward", user, new(big.Int).SetUint64(index))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending reward %d: %w", index, err)
	}
	return firstBig(result), nil
}

// CanClaim reports whether a position is unlocked and unclaimed
func (ac *AutoStakeContract) CanClaim(ctx context.Context, user common.Address, index uint64) (bool, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		s, err := ac.mockStake(user, index, "canClaim")
		if err != nil {
			return false, err
		}
		return ac.mockCanClaim(s), nil
	}

	result, err := ac.baseClient.Call(ctx, ac.contract, "canClaim", user, new(big.Int).SetUint64(index))
	if err != nil {
		return false, fmt.Errorf("failed to check claim %d: %w", index, err)
	}
	if len(result) == 0 {
		return false, nil
	}
	ok, _ := result[0].(bool)
	return ok, nil
}

// GetReferrers returns the three-level referral chain bound to user
func (ac *AutoStakeContract) GetReferrers(ctx context.Context, user common.Address) (autotypes.Referrers, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		r1 := ac.mockReferrer[user]
		r2 := ac.mockReferrer[r1]
		r3 := ac.mockReferrer[r2]
		return autotypes.Referrers{Level1: r1, Level2: r2, Level3: r3}, nil
	}

	result, err := ac.baseClient.Call(ctx, ac.contract, "getReferrers", user)
	if err != nil {
		return autotypes.Referrers{}, fmt.Errorf("failed to get referrers: %w", err)
	}
	var refs autotypes.Referrers
	if len(result) >= 3 {
		refs.Level1, _ = result[0].(common.Address)
		refs.Level2, _ = result[1].(common.Address)
		refs.Level3, _ = result[2].(common.Address)
	}
	return refs, nil
}

// Owner returns the contract owner
func (ac *AutoStakeContract) Owner(ctx context.Context) (common.Address, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		return ac.mockOwner, nil
	}
	return ac.callAddress(ctx, "owner")
}

// USDT returns the payment token configured in the contract
func (ac *AutoStakeContract) USDT(ctx context.Context) (common.Address, error) {
	if ac.mockMode {
		return ac.mockUSDT.Address(), nil
	}
	return ac.callAddress(ctx, "usdt")
}

// MTEC returns the reward token configured in the contract
func (ac *AutoStakeContract) MTEC(ctx context.Context) (common.Address, error) {
	if ac.mockMode {
		return ac.mockMTEC.Address(), nil
	}
	return ac.callAddress(ctx, "mtec")
}

// Params reads apyBasisPoints, lockDuration and enabled
func (ac *AutoStakeContract) Params(ctx context.Context) (autotypes.ContractParams, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		return ac.mockParams, nil
	}

	apy, err := ac.callUint(ctx, "apyBasisPoints")
	if err != nil {
		return autotypes.ContractParams{}, err
	}
	lock, err := ac.callUint(ctx, "lockDuration")
	if err != nil {
		return autotypes.ContractParams{}, err
	}
	result, err := ac.baseClient.Call(ctx, ac.contract, "enabled")
	if err != nil {
		return autotypes.ContractParams{}, fmt.Errorf("failed to read enabled: %w", err)
	}
	var enabled bool
	if len(result) > 0 {
		enabled, _ = result[0].(bool)
	}
	return autotypes.ContractParams{APYBps: apy, LockSeconds: lock, Enabled: enabled}, nil
}

// ReferralRates reads ref1Bps, ref2Bps and ref3Bps
func (ac *AutoStakeContract) ReferralRates(ctx context.Context) (autotypes.ReferralRates, error) {
	if ac.mockMode {
		ac.mockMu.RLock()
		defer ac.mockMu.RUnlock()
		return ac.mockRates, nil
	}

	var rates autotypes.ReferralRates
	var err error
	if rates.Level1, err = ac.callUint(ctx, "ref1Bps"); err != nil {
		return rates, err
	}
	if rates.Level2, err = ac.callUint(ctx, "ref2Bps"); err != nil {
		return rates, err
	}
	if rates.Level3, err = ac.callUint(ctx, "ref3Bps"); err != nil {
		return rates, err
	}
	return rates, nil
}

func (ac *AutoStakeContract) callAddress(ctx context.Context, method string) (common.Address, error) {
	result, err := ac.baseClient.Call(ctx, ac.contract, method)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read %s: %w", method, err)
	}
	if len(result) == 0 {
		return common.Address{}, nil
	}
	a, _ := result[0].(common.Address)
	return a, nil
}

func (ac *AutoStakeContract) callUint(ctx context.Context, method string) (uint64, error) {
	result, err := ac.baseClient.Call(ctx, ac.contract, method)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", method, err)
	}
	return firstCount(result, method)
}

// BuyPackage pays for a package and opens a staked position
func (ac *AutoStakeContract) BuyPackage(ctx context.Context, packageID uint64, ref common.Address) (*types.Transaction, error) {
	if ac.mockMode {
		return nil, ac.mockBuy(packageID, ref)
	}
	return ac.baseClient.Transact(ctx, ac.contract, "buyPackage", new(big.Int).SetUint64(packageID), ref)
}

// BuyPackageAndWait buys and waits for confirmation
func (ac *AutoStakeContract) BuyPackageAndWait(ctx context.Context, packageID uint64, ref common.Address) (*types.Receipt, error) {
	tx, err := ac.BuyPackage(ctx, packageID, ref)
	return ac.wait(ctx, tx, err, "buyPackage")
}

// Claim withdraws principal and reward of an unlocked position
func (ac *AutoStakeContract) Claim(ctx context.Context, index uint64) (*types.Transaction, error) {
	if ac.mockMode {
		return nil, ac.mockClaim(index)
	}
	return ac.baseClient.Transact(ctx, ac.contract, "claim", new(big.Int).SetUint64(index))
}

// ClaimAndWait claims and waits for confirmation
func (ac *AutoStakeContract) ClaimAndWait(ctx context.Context, index uint64) (*types.Receipt, error) {
	tx, err := ac.Claim(ctx, index)
	return ac.wait(ctx, tx, err, "claim")
}

// SetParams updates APY, lock duration and the enabled flag (owner only)
func (ac *AutoStakeContract) SetParams(ctx context.Context, p autotypes.ContractParams) (*types.Transaction, error) {
	if ac.mockMode {
		return nil, ac.mockOwnerOnly("setParams", func() error {
			ac.mockParams = p
			return nil
		})
	}
	return ac.baseClient.Transact(ctx, ac.contract, "setParams",
		new(big.Int).SetUint64(p.APYBps), new(big.Int).SetUint64(p.LockSeconds), p.Enabled)
}

// SetParamsAndWait updates params and waits for confirmation
func (ac *AutoStakeContract) SetParamsAndWait(ctx context.Context, p autotypes.ContractParams) (*types.Receipt, error) {
	tx, err := ac.SetParams(ctx, p)
	return ac.wait(ctx, tx, err, "setParams")
}

// SetReferralRates updates the three referral levels (owner only)
func (ac *AutoStakeContract) SetReferralRates(ctx context.Context, r autotypes.ReferralRates) (*types.Transaction, error) {
	if ac.mockMode {
		return nil, ac.mockOwnerOnly("setReferralRates", func() error {
			if r.Sum() > autotypes.BpsDenominator {
				return &autotypes.RevertError{Method: "setReferralRates", Reason: reasonRefRates}
			}
			ac.mockRates = r
			return nil
		})
	}
	return ac.baseClient.Transact(ctx, ac.contract, "setReferralRates",
		new(big.Int).SetUint64(r.Level1), new(big.Int).SetUint64(r.Level2), new(big.Int).SetUint64(r.Level3))
}

// SetReferralRatesAndWait updates rates and waits for confirmation
func (ac *AutoStakeContract) SetReferralRatesAndWait(ctx context.Context, r autotypes.ReferralRates) (*types.Receipt, error) {
	tx, err := ac.SetReferralRates(ctx, r)
	return ac.wait(ctx, tx, err, "setReferralRates")
}

// WithdrawUSDT moves USDT held by the contract to `to` (owner only)
func (ac *AutoStakeContract) WithdrawUSDT(ctx context.Context, amount *big.Int, to common.Address) (*types.Transaction, error) {
	if ac.mockMode {
		return nil, ac.mockOwnerOnly("withdrawUSDT", func() error {
			return ac.mockUSDT.mockTransfer(ac.contractAddr, to, amount)
		})
	}
	return ac.baseClient.Transact(ctx, ac.contract, "withdrawUSDT", amount, to)
}

// WithdrawUSDTAndWait withdraws and waits for confirmation
func (ac *AutoStakeContract) WithdrawUSDTAndWait(ctx context.Context, amount *big.Int, to common.Address) (*types.Receipt, error) {
	tx, err := ac.WithdrawUSDT(ctx, amount, to)
	return ac.wait(ctx, tx, err, "withdrawUSDT")
}

// WithdrawMTEC moves MTEC held by the contract to `to` (owner only)
func (ac *AutoStakeContract) WithdrawMTEC(ctx context.Context, amount *big.Int, to common.Address) (*types.Transaction, error) {
	if ac.mockMode {
		return nil, ac.mockOwnerOnly("withdrawMTEC", func() error {
			return ac.mockMTEC.mockTransfer(ac.contractAddr, to, amount)
		})
	}
	return ac.baseClient.Transact(ctx, ac.contract, "withdrawMTEC", amount, to)
}

// WithdrawMTECAndWait withdraws and waits for confirmation
func (ac *AutoStakeContract) WithdrawMTECAndWait(ctx context.Context, amount *big.Int, to common.Address) (*types.Receipt, error) {
	tx, err := ac.WithdrawMTEC(ctx, amount, to)
	return ac.wait(ctx, tx, err, "withdrawMTEC")
}

// SetPackage creates or replaces a package (owner only). An id equal to
// the current count appends a new package.
func (ac *AutoStakeContract) SetPackage(ctx context.Context, p autotypes.Package) (*types.Transaction, error) {
	if ac.mockMode {
		return nil, ac.mockOwnerOnly("setPackage", func() error {
			ac.mockSetPackage(p)
			return nil
		})
	}
	return ac.baseClient.Transact(ctx, ac.contract, "setPackage",
		new(big.Int).SetUint64(p.ID), p.PriceIn, p.RewardOut, p.Active)
}

// SetPackageAndWait sets a package and waits for confirmation
func (ac *AutoStakeContract) SetPackageAndWait(ctx context.Context, p autotypes.Package) (*types.Receipt, error) {
	tx, err := ac.SetPackage(ctx, p)
	return ac.wait(ctx, tx, err, "setPackage")
}

func (ac *AutoStakeContract) wait(ctx context.Context, tx *types.Transaction, err error, method string) (*types.Receipt, error) {
	if err != nil {
		return nil, err
	}
	if ac.mockMode || tx == nil {
		return nil, nil
	}
	return ac.baseClient.WaitForTransaction(ctx, tx, method)
}

// SetMockSender sets the account that submits mock transactions
func (ac *AutoStakeContract) SetMockSender(account common.Address) {
	ac.mockMu.Lock()
	ac.mockSender = account
	ac.mockMu.Unlock()
	if ac.mockUSDT != nil {
		ac.mockUSDT.SetMockSender(account)
	}
	if ac.mockMTEC != nil {
		ac.mockMTEC.SetMockSender(account)
	}
}

// SetMockClock replaces the clock the mock uses for lock and reward math
func (ac *AutoStakeContract) SetMockClock(now func() time.Time) {
	ac.mockMu.Lock()
	defer ac.mockMu.Unlock()
	ac.mockNow = now
}

// SetMockPackage defines a package without the owner check, for seeding
func (ac *AutoStakeContract) SetMockPackage(p autotypes.Package) {
	ac.mockMu.Lock()
	defer ac.mockMu.Unlock()
	ac.mockSetPackage(p)
}

// SetMockParams sets the global params without the owner check
func (ac *AutoStakeContract) SetMockParams(p autotypes.ContractParams) {
	ac.mockMu.Lock()
	defer ac.mockMu.Unlock()
	ac.mockParams = p
}

// SetMockRates sets the referral rates without the owner check
func (ac *AutoStakeContract) SetMockRates(r autotypes.ReferralRates) {
	ac.mockMu.Lock()
	defer ac.mockMu.Unlock()
	ac.mockRates = r
}

// mockSetPackage must be called with mockMu held
func (ac *AutoStakeContract) mockSetPackage(p autotypes.Package) {
	p.PriceIn = new(big.Int).Set(p.PriceIn)
	p.RewardOut = new(big.Int).Set(p.RewardOut)
	for uint64(len(ac.mockPackages)) <= p.ID {
		id := uint64(len(ac.mockPackages))
		ac.mockPackages = append(ac.mockPackages, autotypes.Package{ID: id, PriceIn: big.NewInt(0), RewardOut: big.NewInt(0)})
	}
	ac.mockPackages[p.ID] = p
}

func (ac *AutoStakeContract) mockOwnerOnly(method string, fn func() error) error {
	ac.mockMu.Lock()
	defer ac.mockMu.Unlock()
	if ac.mockSender != ac.mockOwner {
		return &autotypes.RevertError{Method: method, Reason: reasonNotOwner}
	}
	if err := fn(); err != nil {
		return err
	}
	logging.Debug("mock owner action", logging.Method(method), logging.Account(ac.mockSender))
	return nil
}

func (ac *AutoStakeContract) mockBuy(packageID uint64, ref common.Address) error {
	ac.mockMu.Lock()
	defer ac.mockMu.Unlock()

	buyer := ac.mockSender
	if !ac.mockParams.Enabled {
		return &autotypes.RevertError{Method: "buyPackage", Reason: reasonDisabled}
	}
	if packageID >= uint64(len(ac.mockPackages)) || !ac.mockPackages[packageID].Active {
		return &autotypes.RevertError{Method: "buyPackage", Reason: reasonInactivePackage}
	}
	pkg := ac.mockPackages[packageID]

	if err := ac.mockUSDT.mockPull(buyer, ac.contractAddr, ac.contractAddr, pkg.PriceIn); err != nil {
		return &autotypes.RevertError{Method: "buyPackage", Reason: autotypes.RevertReason(err)}
	}

	if _, bound := ac.mockReferrer[buyer]; !bound && ref != (common.Address{}) && ref != buyer {
		ac.mockReferrer[buyer] = ref
	}

	// Referral payouts come out of the USDT just received
	net := new(big.Int).Set(pkg.PriceIn)
	levels := []uint64{ac.mockRates.Level1, ac.mockRates.Level2, ac.mockRates.Level3}
	upline := ac.mockReferrer[buyer]
	for _, bps := range levels {
		if upline == (common.Address{}) {
			break
		}
		cut := new(big.Int).Mul(pkg.PriceIn, new(big.Int).SetUint64(bps))
		cut.Div(cut, big.NewInt(autotypes.BpsDenominator))
		if cut.Sign() > 0 {
			if err := ac.mockUSDT.mockTransfer(ac.contractAddr, upline, cut); err == nil {
				net.Sub(net, cut)
			}
		}
		upline = ac.mockReferrer[upline]
	}

	index := uint64(len(ac.mockStakes[buyer]))
	ac.mockStakes[buyer] = append(ac.mockStakes[buyer], autotypes.StakePosition{
		Index:       index,
		Principal:   new(big.Int).Set(pkg.RewardOut),
		StartTime:   ac.mockNow().Truncate(time.Second),
		APYBps:      ac.mockParams.APYBps,
		LockSeconds: ac.mockParams.LockSeconds,
		USDTPaid:    new(big.Int).Set(pkg.PriceIn),
		USDTNet:     net,
		Referrer1:   ac.mockReferrer[buyer],
	})

	logging.Debug("mock buy", logging.Account(buyer), logging.PackageID(packageID), logging.StakeIndex(index))
	return nil
}

func (ac *AutoStakeContract) mockClaim(index uint64) error {
	ac.mockMu.Lock()
	defer ac.mockMu.Unlock()

	user := ac.mockSender
	s, err := ac.mockStake(user, index, "claim")
	if err != nil {
		return err
	}
	if s.Claimed {
		return &autotypes.RevertError{Method: "claim", Reason: reasonAlreadyClaimed}
	}
	if !ac.mockCanClaim(s) {
		return &autotypes.RevertError{Method: "claim", Reason: reasonLocked}
	}

	payout := new(big.Int).Add(s.Principal, ac.mockReward(s))
	if err := ac.mockMTEC.mockTransfer(ac.contractAddr, user, payout); err != nil {
		return &autotypes.RevertError{Method: "claim", Reason: autotypes.RevertReason(err)}
	}
	s.Claimed = true

	logging.Debug("mock claim", logging.Account(user), logging.StakeIndex(index))
	return nil
}

// mockStake must be called with mockMu held
func (ac *AutoStakeContract) mockStake(user common.Address, index uint64, method string) (*autotypes.StakePosition, error) {
	stakes := ac.mockStakes[user]
	if index >= uint64(len(stakes)) {
		return nil, &autotypes.RevertError{Method: method, Reason: reasonBadIndex}
	}
	return &stakes[index], nil
}

// mockReward accrues linearly until the lock ends and stops after a claim
func (ac *AutoStakeContract) mockReward(s *autotypes.StakePosition) *big.Int {
	if s.Claimed {
		return big.NewInt(0)
	}
	elapsed := ac.mockNow().Sub(s.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	secs := uint64(elapsed / time.Second)
	if secs > s.LockSeconds {
		secs = s.LockSeconds
	}
	r := new(big.Int).Mul(s.Principal, new(big.Int).SetUint64(s.APYBps))
	r.Mul(r, new(big.Int).SetUint64(secs))
	return r.Div(r, big.NewInt(autotypes.BpsDenominator*autotypes.SecondsPerYear))
}

func (ac *AutoStakeContract) mockCanClaim(s *autotypes.StakePosition) bool {
	return !s.Claimed && !ac.mockNow().Before(s.UnlockTime())
}

func copyPackage(p *autotypes.Package) *autotypes.Package {
	return &autotypes.Package{
		ID:        p.ID,
		PriceIn:   new(big.Int).Set(p.PriceIn),
		RewardOut: new(big.Int).Set(p.RewardOut),
		Active:    p.Active,
	}
}

func bigOrZero(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return big.NewInt(0)
}
