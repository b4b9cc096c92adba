// Package session owns the wallet connection state machine and the
// Session value every flow receives per call.
package session

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/payment"
	"github.com/mtecstake/autostake/pkg/types"
)

// StakeContract is the auto-stake contract surface the flows use
type StakeContract interface {
	Address() common.Address

	PackageCount(ctx context.Context) (uint64, error)
	GetPackage(ctx context.Context, id uint64) (*types.Package, error)
	StakeCount(ctx context.Context, user common.Address) (uint64, error)
	GetStake(ctx context.Context, user common.Address, index uint64) (*types.StakePosition, error)
	PendingReward(ctx context.Context, user common.Address, index uint64) (*big.Int, error)
	CanClaim(ctx context.Context, user common.Address, index uint64) (bool, error)
	GetReferrers(ctx context.Context, user common.Address) (types.Referrers, error)
	Owner(ctx context.Context) (common.Address, error)
	Params(ctx context.Context) (types.ContractParams, error)
	ReferralRates(ctx context.Context) (types.ReferralRates, error)
	USDT(ctx context.Context) (common.Address, error)
	MTEC(ctx context.Context) (common.Address, error)

	BuyPackageAndWait(ctx context.Context, packageID uint64, ref common.Address) (*ethtypes.Receipt, error)
	ClaimAndWait(ctx context.Context, index uint64) (*ethtypes.Receipt, error)
	SetParamsAndWait(ctx context.Context, p types.ContractParams) (*ethtypes.Receipt, error)
	SetReferralRatesAndWait(ctx context.Context, r types.ReferralRates) (*ethtypes.Receipt, error)
	WithdrawUSDTAndWait(ctx context.Context, amount *big.Int, to common.Address) (*ethtypes.Receipt, error)
	WithdrawMTECAndWait(ctx context.Context, amount *big.Int, to common.Address) (*ethtypes.Receipt, error)
	SetPackageAndWait(ctx context.Context, p types.Package) (*ethtypes.Receipt, error)
}

// Token is the ERC20 surface the flows use
type Token interface {
	Address() common.Address
	Symbol() string
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	ApproveAndWait(ctx context.Context, spender common.Address, amount *big.Int) (*ethtypes.Receipt, error)
}

// EventSource streams contract events for the session account
type EventSource interface {
	Start(ctx context.Context) (bool, error)
	Events() <-chan *payment.PortfolioEvent
	Stop()
}

// Handles are the chain bindings built for one connected account
type Handles struct {
	Contract StakeContract
	USDT     Token
	MTEC     Token
	Events   EventSource // nil when subscriptions are unavailable
	Close    func()
}

// Session is an established connection. It is created on connect,
// replaced on reconnect and never mutated.
type Session struct {
	Account  common.Address
	ChainID  *big.Int
	Contract StakeContract
	USDT     Token
	MTEC     Token
	Events   EventSource
}

// Dialer builds chain handles for account, signing through signer
type Dialer func(ctx context.Context, account common.Address, signer payment.TxSigner) (*Handles, error)

// Snapshot is everything a render needs: the state, the session if any and the last error
type Snapshot struct {
	State   types.ConnectionState
	Session *Session
	Err     error
}

// Connected reports whether the snapshot carries a usable session
func (s Snapshot) Connected() bool {
	return s.State == types.StateConnected && s.Session != nil
}
