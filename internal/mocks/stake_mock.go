package mocks

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/pkg/types"
)

// Stake is one scripted position. Pending and Claimable are what the
// contract reports for it until changed.
type Stake struct {
	Position  types.StakePosition
	Pending   *big.Int
	Claimable bool
}

// MockStakeContract simulates the auto-stake contract for a single sender.
// Reads and writes can be made to fail per method or per stake index, and
// BeforeCall lets a test change state between two calls.
type MockStakeContract struct {
	callLog

	address common.Address
	sender  common.Address
	usdt    *MockToken

	mu       sync.RWMutex
	owner    common.Address
	packages []types.Package
	stakes   map[common.Address][]*Stake
	refs     map[common.Address]types.Referrers
	params   types.ContractParams
	rates    types.ReferralRates
	tokens   [2]common.Address

	hookMu     sync.Mutex
	beforeCall func(method string, args ...interface{})
}

// NewMockStakeContract creates a contract whose writes are sent by sender.
// usdt may be nil; when set, BuyPackageAndWait spends its allowance.
func NewMockStakeContract(address, owner, sender common.Address, usdt *MockToken) *MockStakeContract {
	m := &MockStakeContract{
		address: address,
		sender:  sender,
		usdt:    usdt,
		owner:   owner,
		stakes:  make(map[common.Address][]*Stake),
		refs:    make(map[common.Address]types.Referrers),
		params:  types.ContractParams{APYBps: 1200, LockSeconds: 30 * 24 * 3600, Enabled: true},
		rates:   types.ReferralRates{Level1: 500, Level2: 300, Level3: 200},
	}
	if usdt != nil {
		m.tokens[0] = usdt.Address()
	}
	return m
}

// SetBeforeCall installs a hook run at the start of every method
func (m *MockStakeContract) SetBeforeCall(fn func(method string, args ...interface{})) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.beforeCall = fn
}

func (m *MockStakeContract) enter(method string, args ...interface{}) {
	m.record(method, args...)
	m.hookMu.Lock()
	hook := m.beforeCall
	m.hookMu.Unlock()
	if hook != nil {
		hook(method, args...)
	}
}

// AddPackage appends a package; its ID is its position
func (m *MockStakeContract) AddPackage(priceIn, rewardOut *big.Int, active bool) types.Package {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := types.Package{ID: uint64(len(m.packages)), PriceIn: priceIn, RewardOut: rewardOut, Active: active}
	m.packages = append(m.packages, p)
	return p
}

// AddStake appends a scripted position for user and returns its index
func (m *MockStakeContract) AddStake(user common.Address, s Stake) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := uint64(len(m.stakes[user]))
	s.Position.Index = idx
	if s.Position.Principal == nil {
		s.Position.Principal = big.NewInt(0)
	}
	if s.Pending == nil {
		s.Pending = big.NewInt(0)
	}
	m.stakes[user] = append(m.stakes[user], &s)
	return idx
}

// SetClaimable changes what CanClaim reports for one stake
func (m *MockStakeContract) SetClaimable(user common.Address, index uint64, claimable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.stake(user, index); s != nil {
		s.Claimable = claimable
	}
}

// SetReferrers binds a referral chain to user
func (m *MockStakeContract) SetReferrers(user common.Address, r types.Referrers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[user] = r
}

// SetTokens sets the addresses returned by USDT and MTEC
func (m *MockStakeContract) SetTokens(usdt, mtec common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = [2]common.Address{usdt, mtec}
}

// Submissions counts the write calls made so far
func (m *MockStakeContract) Submissions() int {
	n := 0
	for _, c := range m.GetCalls() {
		switch c.Method {
		case "BuyPackageAndWait", "ClaimAndWait", "SetParamsAndWait", "SetReferralRatesAndWait",
			"WithdrawUSDTAndWait", "WithdrawMTECAndWait", "SetPackageAndWait":
			n++
		}
	}
	return n
}

// ClaimedIndices returns the indices submitted to ClaimAndWait, in order
func (m *MockStakeContract) ClaimedIndices() []uint64 {
	var out []uint64
	for _, c := range m.GetCalls() {
		if c.Method == "ClaimAndWait" {
			out = append(out, c.Args[0].(uint64))
		}
	}
	return out
}

// Address returns the contract address
func (m *MockStakeContract) Address() common.Address {
	return m.address
}

// PackageCount returns the number of packages
func (m *MockStakeContract) PackageCount(ctx context.Context) (uint64, error) {
	m.enter("PackageCount")
	if err := m.errFor("PackageCount"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.packages)), nil
}

// GetPackage returns one package
func (m *MockStakeContract) GetPackage(ctx context.Context, id uint64) (*types.Package, error) {
	m.enter("GetPackage", id)
	if err := m.indexErrFor("GetPackage", id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.packages)) {
		return nil, revert("packages", "bad id")
	}
	p := m.packages[id]
	return &types.Package{ID: p.ID, PriceIn: new(big.Int).Set(p.PriceIn), RewardOut: new(big.Int).Set(p.RewardOut), Active: p.Active}, nil
}

// StakeCount returns how many positions user has
func (m *MockStakeContract) StakeCount(ctx context.Context, user common.Address) (uint64, error) {
	m.enter("StakeCount", user)
	if err := m.errFor("StakeCount"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.stakes[user])), nil
}

// GetStake returns the stored fields of one position
func (m *MockStakeContract) GetStake(ctx context.Context, user common.Address, index uint64) (*types.StakePosition, error) {
	m.enter("GetStake", index)
	if err := m.indexErrFor("GetStake", index); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.stake(user, index)
	if s == nil {
		return nil, revert("getStake", "bad index")
	}
	pos := s.Position
	pos.Principal = new(big.Int).Set(pos.Principal)
	return &pos, nil
}

// PendingReward returns the scripted pending reward
func (m *MockStakeContract) PendingReward(ctx context.Context, user common.Address, index uint64) (*big.Int, error) {
	m.enter("PendingReward", index)
	if err := m.indexErrFor("PendingReward", index); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.stake(user, index)
	if s == nil {
		return nil, revert("pendingReward", "bad index")
	}
	if s.Position.Claimed {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(s.Pending), nil
}

// CanClaim reports whether the position is unclaimed and claimable
func (m *MockStakeContract) CanClaim(ctx context.Context, user common.Address, index uint64) (bool, error) {
	m.enter("CanClaim", index)
	if err := m.indexErrFor("CanClaim", index); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.stake(user, index)
	if s == nil {
		return false, nil
	}
	return s.Claimable && !s.Position.Claimed, nil
}

// GetReferrers returns the referral chain of user
func (m *MockStakeContract) GetReferrers(ctx context.Context, user common.Address) (types.Referrers, error) {
	m.enter("GetReferrers", user)
	if err := m.errFor("GetReferrers"); err != nil {
		return types.Referrers{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs[user], nil
}

// Owner returns the contract owner
func (m *MockStakeContract) Owner(ctx context.Context) (common.Address, error) {
	m.enter("Owner")
	if err := m.errFor("Owner"); err != nil {
		return common.Address{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owner, nil
}

// Params returns the global staking parameters
func (m *MockStakeContract) Params(ctx context.Context) (types.ContractParams, error) {
	m.enter("Params")
	if err := m.errFor("Params"); err != nil {
		return types.ContractParams{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params, nil
}

// ReferralRates returns the referral payout levels
func (m *MockStakeContract) ReferralRates(ctx context.Context) (types.ReferralRates, error) {
	m.enter("ReferralRates")
	if err := m.errFor("ReferralRates"); err != nil {
		return types.ReferralRates{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rates, nil
}

// USDT returns the configured payment token address
func (m *MockStakeContract) USDT(ctx context.Context) (common.Address, error) {
	m.enter("USDT")
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[0], m.errFor("USDT")
}

// MTEC returns the configured reward token address
func (m *MockStakeContract) MTEC(ctx context.Context) (common.Address, error) {
	m.enter("MTEC")
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[1], m.errFor("MTEC")
}

// BuyPackageAndWait appends a position worth the package's RewardOut
func (m *MockStakeContract) BuyPackageAndWait(ctx context.Context, packageID uint64, ref common.Address) (*ethtypes.Receipt, error) {
	m.enter("BuyPackageAndWait", packageID, ref)
	if err := m.errFor("BuyPackageAndWait"); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.params.Enabled {
		return nil, revert("buyPackage", "disabled")
	}
	if packageID >= uint64(len(m.packages)) || !m.packages[packageID].Active {
		return nil, revert("buyPackage", "package inactive")
	}
	p := m.packages[packageID]
	if m.usdt != nil && !m.usdt.spend(m.sender, m.address, p.PriceIn) {
		return nil, revert("buyPackage", "ERC20: insufficient allowance")
	}
	if ref != (common.Address{}) && !m.refs[m.sender].Bound() {
		m.refs[m.sender] = types.Referrers{Level1: ref, Level2: m.refs[ref].Level1, Level3: m.refs[ref].Level2}
	}

	pos := types.StakePosition{
		Index:       uint64(len(m.stakes[m.sender])),
		Principal:   new(big.Int).Set(p.RewardOut),
		StartTime:   time.Now().Truncate(time.Second),
		APYBps:      m.params.APYBps,
		LockSeconds: m.params.LockSeconds,
		USDTPaid:    new(big.Int).Set(p.PriceIn),
		USDTNet:     new(big.Int).Set(p.PriceIn),
		Referrer1:   m.refs[m.sender].Level1,
	}
	m.stakes[m.sender] = append(m.stakes[m.sender], &Stake{Position: pos, Pending: big.NewInt(0)})
	return receipt(), nil
}

// ClaimAndWait marks a claimable position claimed
func (m *MockStakeContract) ClaimAndWait(ctx context.Context, index uint64) (*ethtypes.Receipt, error) {
	m.enter("ClaimAndWait", index)
	if err := m.indexErrFor("ClaimAndWait", index); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stake(m.sender, index)
	switch {
	case s == nil:
		return nil, revert("claim", "bad index")
	case s.Position.Claimed:
		return nil, revert("claim", "already claimed")
	case !s.Claimable:
		return nil, revert("claim", "locked")
	}
	s.Position.Claimed = true
	s.Claimable = false
	s.Pending = big.NewInt(0)
	return receipt(), nil
}

// SetParamsAndWait replaces the staking parameters
func (m *MockStakeContract) SetParamsAndWait(ctx context.Context, p types.ContractParams) (*ethtypes.Receipt, error) {
	m.enter("SetParamsAndWait", p)
	return m.ownerWrite("setParams", "SetParamsAndWait", func() error {
		m.params = p
		return nil
	})
}

// SetReferralRatesAndWait replaces the referral rates
func (m *MockStakeContract) SetReferralRatesAndWait(ctx context.Context, r types.ReferralRates) (*ethtypes.Receipt, error) {
	m.enter("SetReferralRatesAndWait", r)
	return m.ownerWrite("setReferralRates", "SetReferralRatesAndWait", func() error {
		if r.Sum() > types.BpsDenominator {
			return revert("setReferralRates", "ref rates too high")
		}
		m.rates = r
		return nil
	})
}

// WithdrawUSDTAndWait records an owner withdrawal
func (m *MockStakeContract) WithdrawUSDTAndWait(ctx context.Context, amount *big.Int, to common.Address) (*ethtypes.Receipt, error) {
	m.enter("WithdrawUSDTAndWait", amount, to)
	return m.ownerWrite("withdrawUSDT", "WithdrawUSDTAndWait", func() error { return nil })
}

// WithdrawMTECAndWait records an owner withdrawal
func (m *MockStakeContract) WithdrawMTECAndWait(ctx context.Context, amount *big.Int, to common.Address) (*ethtypes.Receipt, error) {
	m.enter("WithdrawMTECAndWait", amount, to)
	return m.ownerWrite("withdrawMTEC", "WithdrawMTECAndWait", func() error { return nil })
}

// SetPackageAndWait creates or replaces a package
func (m *MockStakeContract) SetPackageAndWait(ctx context.Context, p types.Package) (*ethtypes.Receipt, error) {
	m.enter("SetPackageAndWait", p)
	return m.ownerWrite("setPackage", "SetPackageAndWait", func() error {
		for uint64(len(m.packages)) <= p.ID {
			m.packages = append(m.packages, types.Package{ID: uint64(len(m.packages)), PriceIn: big.NewInt(0), RewardOut: big.NewInt(0)})
		}
		m.packages[p.ID] = p
		return nil
	})
}

func (m *MockStakeContract) ownerWrite(contractMethod, method string, fn func() error) (*ethtypes.Receipt, error) {
	if err := m.errFor(method); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sender != m.owner {
		return nil, revert(contractMethod, "not owner")
	}
	if err := fn(); err != nil {
		return nil, err
	}
	return receipt(), nil
}

func (m *MockStakeContract) stake(user common.Address, index uint64) *Stake {
	list := m.stakes[user]
	if index >= uint64(len(list)) {
		return nil
	}
	return list[index]
}
