package mocks

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/units"
)

// MockToken simulates an ERC20 token
type MockToken struct {
	callLog

	address common.Address
	symbol  string
	sender  common.Address

	mu         sync.RWMutex
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

// NewMockToken creates a token whose approvals are sent by sender
func NewMockToken(address common.Address, symbol string, sender common.Address) *MockToken {
	return &MockToken{
		address:    address,
		symbol:     symbol,
		sender:     sender,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Address returns the token address
func (m *MockToken) Address() common.Address {
	return m.address
}

// Symbol returns the token symbol
func (m *MockToken) Symbol() string {
	return m.symbol
}

// SetBalance sets the balance of account
func (m *MockToken) SetBalance(account common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = new(big.Int).Set(amount)
}

// SetAllowance sets the allowance granted by owner to spender
func (m *MockToken) SetAllowance(owner, spender common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowances[owner] == nil {
		m.allowances[owner] = make(map[common.Address]*big.Int)
	}
	m.allowances[owner][spender] = new(big.Int).Set(amount)
}

// BalanceOf returns the balance of account
func (m *MockToken) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	m.record("BalanceOf", account)
	if err := m.errFor("BalanceOf"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// Allowance returns how much spender may pull from owner
func (m *MockToken) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	m.record("Allowance", owner, spender)
	if err := m.errFor("Allowance"); err != nil {
		return nil, err
	}
	return m.allowance(owner, spender), nil
}

// ApproveAndWait sets the sender's allowance for spender
func (m *MockToken) ApproveAndWait(ctx context.Context, spender common.Address, amount *big.Int) (*ethtypes.Receipt, error) {
	m.record("ApproveAndWait", spender, amount)
	if err := m.errFor("ApproveAndWait"); err != nil {
		return nil, err
	}
	m.SetAllowance(m.sender, spender, amount)
	return receipt(), nil
}

func (m *MockToken) allowance(owner, spender common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

// spend pulls amount from owner's allowance for spender
func (m *MockToken) spend(owner, spender common.Address, amount *big.Int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.allowances[owner][spender]
	if !ok || a.Cmp(amount) < 0 {
		return false
	}
	if a.Cmp(units.MaxUint256()) != 0 {
		a.Sub(a, amount)
	}
	return true
}
