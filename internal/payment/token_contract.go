package payment

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/logging"
	autotypes "github.com/mtecstake/autostake/pkg/types"
)

// TokenContract provides access to an ERC20 token (USDT or MTEC)
type TokenContract struct {
	baseClient   *BaseClient
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	symbol       string
	mockMode     bool

	// Mock state
	mockSender     common.Address
	mockBalances   map[common.Address]*big.Int
	mockAllowances map[common.Address]map[common.Address]*big.Int
	mockMu         sync.RWMutex
}

// NewTokenContract creates a new token contract client
func NewTokenContract(baseClient *BaseClient, contractAddr common.Address, symbol string) (*TokenContract, error) {
	if baseClient == nil {
		return nil, fmt.Errorf("base client is required (use NewMockTokenContract for testing)")
	}
	if !baseClient.IsConnected() {
		return nil, fmt.Errorf("base client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	client := baseClient.Client()
	return &TokenContract{
		baseClient:   baseClient,
		contractABI:  parsedABI,
		contractAddr: contractAddr,
		symbol:       symbol,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, client, client, client),
	}, nil
}

// NewMockTokenContract creates an in-memory token for testing and demo mode
func NewMockTokenContract(contractAddr common.Address, symbol string) *TokenContract {
	return &TokenContract{
		contractAddr:   contractAddr,
		symbol:         symbol,
		mockMode:       true,
		mockBalances:   make(map[common.Address]*big.Int),
		mockAllowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// IsMockMode returns whether running in mock mode
func (tc *TokenContract) IsMockMode() bool {
	return tc.mockMode
}

// Address returns the token contract address
func (tc *TokenContract) Address() common.Address {
	return tc.contractAddr
}

// Symbol returns the display symbol
func (tc *TokenContract) Symbol() string {
	return tc.symbol
}

// BalanceOf returns the token balance for an address
func (tc *TokenContract) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if tc.mockMode {
		tc.mockMu.RLock()
		defer tc.mockMu.RUnlock()
		return tc.mockBalance(account), nil
	}

	result, err := tc.baseClient.Call(ctx, tc.contract, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s balance: %w", tc.symbol, err)
	}
	return firstBig(result), nil
}

// Allowance returns how much spender may pull from owner
func (tc *TokenContract) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	if tc.mockMode {
		tc.mockMu.RLock()
		defer tc.mockMu.RUnlock()
		return tc.mockAllowance(owner, spender), nil
	}

	result, err := tc.baseClient.Call(ctx, tc.contract, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s allowance: %w", tc.symbol, err)
	}
	return firstBig(result), nil
}

// Approve sets spender's allowance to exactly amount
func (tc *TokenContract) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	if tc.mockMode {
		return tc.mockApprove(spender, amount)
	}
	return tc.baseClient.Transact(ctx, tc.contract, "approve", spender, amount)
}

// ApproveAndWait approves and waits for confirmation
func (tc *TokenContract) ApproveAndWait(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	tx, err := tc.Approve(ctx, spender, amount)
	if err != nil {
		return nil, err
	}

	if tc.mockMode || tx == nil {
		return nil, nil
	}

	return tc.baseClient.WaitForTransaction(ctx, tx, "approve")
}

func (tc *TokenContract) mockApprove(spender common.Address, amount *big.Int) (*types.Transaction, error) {
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()

	owner := tc.mockSender
	if _, exists := tc.mockAllowances[owner]; !exists {
		tc.mockAllowances[owner] = make(map[common.Address]*big.Int)
	}
	tc.mockAllowances[owner][spender] = new(big.Int).Set(amount)

	logging.Debug("mock approve",
		"token", tc.symbol,
		logging.Account(owner),
		"spender", spender.Hex(),
		"amount", amount.String())

	return nil, nil
}

// mockPull moves amount from owner to recipient on behalf of spender,
// consuming allowance the way transferFrom does.
func (tc *TokenContract) mockPull(owner, recipient, spender common.Address, amount *big.Int) error {
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()

	allowance := tc.mockAllowance(owner, spender)
	if allowance.Cmp(amount) < 0 {
		return &autotypes.RevertError{Method: "transferFrom", Reason: "ERC20: insufficient allowance"}
	}
	if err := tc.mockMove(owner, recipient, amount); err != nil {
		return err
	}
	tc.mockAllowances[owner][spender] = new(big.Int).Sub(allowance, amount)
	return nil
}

// mockTransfer moves amount between two holders without touching allowances
func (tc *TokenContract) mockTransfer(from, to common.Address, amount *big.Int) error {
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()
	return tc.mockMove(from, to, amount)
}

// mockMove must be called with mockMu held
func (tc *TokenContract) mockMove(from, to common.Address, amount *big.Int) error {
	balance := tc.mockBalance(from)
	if balance.Cmp(amount) < 0 {
		return &autotypes.RevertError{Method: "transfer", Reason: "ERC20: transfer amount exceeds balance"}
	}
	tc.mockBalances[from] = new(big.Int).Sub(balance, amount)
	tc.mockBalances[to] = new(big.Int).Add(tc.mockBalance(to), amount)
	return nil
}

func (tc *TokenContract) mockBalance(account common.Address) *big.Int {
	if balance, ok := tc.mockBalances[account]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

func (tc *TokenContract) mockAllowance(owner, spender common.Address) *big.Int {
	if ownerAllowances, exists := tc.mockAllowances[owner]; exists {
		if allowance, ok := ownerAllowances[spender]; ok {
			return new(big.Int).Set(allowance)
		}
	}
	return big.NewInt(0)
}

// SetMockSender sets the account whose approvals mock mode records
func (tc *TokenContract) SetMockSender(account common.Address) {
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()
	tc.mockSender = account
}

// SetMockBalance sets a mock balance for testing
func (tc *TokenContract) SetMockBalance(account common.Address, amount *big.Int) {
	if !tc.mockMode {
		return
	}
	tc.mockMu.Lock()
	defer tc.mockMu.Unlock()
	tc.mockBalances[account] = new(big.Int).Set(amount)
}

// firstCount decodes a uint256 length result. Values beyond uint64 are
// rejected instead of truncated.
func firstCount(result []interface{}, what string) (uint64, error) {
	n := firstBig(result)
	if n.Sign() < 0 || !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s", autotypes.ErrCountOutOfRange, what, n)
	}
	return n.Uint64(), nil
}

func firstBig(result []interface{}) *big.Int {
	if len(result) == 0 {
		return big.NewInt(0)
	}
	if v, ok := result[0].(*big.Int); ok && v != nil {
		return v
	}
	return big.NewInt(0)
}
