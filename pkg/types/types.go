package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BpsDenominator is the basis-point scale used by every rate on the contract
const BpsDenominator = 10000

// SecondsPerYear matches the contract's SECONDS_PER_YEAR constant
const SecondsPerYear = 365 * 24 * 60 * 60

// MaxListLength caps packageCount and getStakeCount
const MaxListLength = 10_000

// ConnectionState is the state of the wallet session
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateWrongNetwork ConnectionState = "wrong_network"
)

// NativeCurrency describes the gas token of a network
type NativeCurrency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// NetworkDescriptor is everything a wallet needs to add and switch to a chain
type NetworkDescriptor struct {
	ChainID           uint64         `yaml:"chain_id" json:"chainId"`
	ChainName         string         `yaml:"chain_name" json:"chainName"`
	RPCURLs           []string       `yaml:"rpc_urls" json:"rpcUrls"`
	WSEndpoint        string         `yaml:"ws_endpoint,omitempty" json:"wsEndpoint,omitempty"`
	NativeCurrency    NativeCurrency `yaml:"native_currency" json:"nativeCurrency"`
	BlockExplorerURLs []string       `yaml:"block_explorer_urls" json:"blockExplorerUrls"`
}

// ChainIDHex returns the chain id in the 0x-prefixed form wallets expect
func (n NetworkDescriptor) ChainIDHex() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

// Explorer returns the first block explorer URL, or "" when none is configured
func (n NetworkDescriptor) Explorer() string {
	if len(n.BlockExplorerURLs) == 0 {
		return ""
	}
	return n.BlockExplorerURLs[0]
}

// Package is one purchasable offer: pay PriceIn USDT, receive RewardOut MTEC staked
type Package struct {
	ID        uint64   `json:"id"`
	PriceIn   *big.Int `json:"price_in"`
	RewardOut *big.Int `json:"reward_out"`
	Active    bool     `json:"active"`
}

// StakePosition is one staked position of an account.
// The first block mirrors getStake; the second is derived per portfolio load.
type StakePosition struct {
	Index       uint64         `json:"index"`
	Principal   *big.Int       `json:"principal"`
	StartTime   time.Time      `json:"start_time"`
	Claimed     bool           `json:"claimed"`
	APYBps      uint64         `json:"apy_bps"`
	LockSeconds uint64         `json:"lock_seconds"`
	USDTPaid    *big.Int       `json:"usdt_paid"`
	USDTNet     *big.Int       `json:"usdt_net"`
	Referrer1   common.Address `json:"referrer1"`

	PendingReward *big.Int `json:"pending_reward"`
	Claimable     bool     `json:"claimable"`
}

// UnlockTime is the earliest time the position may be claimed
func (s *StakePosition) UnlockTime() time.Time {
	return s.StartTime.Add(time.Duration(s.LockSeconds) * time.Second)
}

// Status is the human-readable lifecycle label
func (s *StakePosition) Status() string {
	if s.Claimed {
		return "Claimed"
	}
	return "Active"
}

// Portfolio is a derived snapshot of every position of one account,
// ordered newest index first.
type Portfolio struct {
	Account        common.Address  `json:"account"`
	Positions      []StakePosition `json:"positions"`
	TotalPrincipal *big.Int        `json:"total_principal"`
	TotalPending   *big.Int        `json:"total_pending"`
	AnyClaimable   bool            `json:"any_claimable"`
	LoadedAt       time.Time       `json:"loaded_at"`
	Generation     uint64          `json:"generation"`
}

// EmptyPortfolio returns a zero-position snapshot for account
func EmptyPortfolio(account common.Address) *Portfolio {
	return &Portfolio{
		Account:        account,
		TotalPrincipal: big.NewInt(0),
		TotalPending:   big.NewInt(0),
		LoadedAt:       time.Now(),
	}
}

// Count returns the number of positions in the snapshot
func (p *Portfolio) Count() int {
	if p == nil {
		return 0
	}
	return len(p.Positions)
}

// Position looks up a position by its contract index
func (p *Portfolio) Position(index uint64) (*StakePosition, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.Positions {
		if p.Positions[i].Index == index {
			return &p.Positions[i], true
		}
	}
	return nil, false
}

// ContractParams are the global staking parameters applied to new positions
type ContractParams struct {
	APYBps      uint64 `json:"apy_bps"`
	LockSeconds uint64 `json:"lock_seconds"`
	Enabled     bool   `json:"enabled"`
}

// ReferralRates are the three referral payout levels in basis points
type ReferralRates struct {
	Level1 uint64 `json:"ref1_bps"`
	Level2 uint64 `json:"ref2_bps"`
	Level3 uint64 `json:"ref3_bps"`
}

// Sum returns the combined payout of all levels
func (r ReferralRates) Sum() uint64 {
	return r.Level1 + r.Level2 + r.Level3
}

// Validate checks the rates fit inside the basis-point denominator
func (r ReferralRates) Validate() error {
	if r.Sum() > BpsDenominator {
		return fmt.Errorf("%w: referral rates sum to %d bps, max %d", ErrInvalidInput, r.Sum(), BpsDenominator)
	}
	return nil
}

// Referrers is the three-level referral chain bound to an account
type Referrers struct {
	Level1 common.Address `json:"r1"`
	Level2 common.Address `json:"r2"`
	Level3 common.Address `json:"r3"`
}

// Bound reports whether the account has a first-level referrer
func (r Referrers) Bound() bool {
	return r.Level1 != (common.Address{})
}

// OwnerStatus is what the owner panel renders
type OwnerStatus struct {
	Owner    common.Address `json:"owner"`
	Account  common.Address `json:"account"`
	IsOwner  bool           `json:"is_owner"`
	Params   ContractParams `json:"params"`
	Rates    ReferralRates  `json:"rates"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// ClaimReport summarizes a claim-all batch
type ClaimReport struct {
	Attempted []uint64         `json:"attempted"`
	Succeeded []uint64         `json:"succeeded"`
	Failed    map[uint64]error `json:"-"`
	Skipped   []uint64         `json:"skipped"`
}

// Claimed returns how many claims were confirmed
func (r *ClaimReport) Claimed() int {
	if r == nil {
		return 0
	}
	return len(r.Succeeded)
}
