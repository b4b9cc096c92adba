package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mtecstake/autostake/internal/payment"
	"github.com/mtecstake/autostake/pkg/types"
)

// MemoryProvider is an in-process wallet holding one generated key.
// It backs --mock mode and lets tests script provider behavior.
type MemoryProvider struct {
	mu       sync.Mutex
	key      *ecdsa.PrivateKey
	account  common.Address
	chains   *chainRegistry
	approve  Approver
	events   chan Event
	switchFn func(id uint64) error // optional override of the switch outcome
	calls    []string
}

// NewMemoryProvider creates a provider on chain initialChainID with a fresh key
func NewMemoryProvider(initialChainID uint64, approve Approver) (*MemoryProvider, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	chains, err := loadChainRegistry("", initialChainID)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{
		key:     key,
		account: crypto.PubkeyToAddress(key.PublicKey),
		chains:  chains,
		approve: approve,
		events:  make(chan Event, eventBuffer),
	}, nil
}

// Account returns the generated account
func (m *MemoryProvider) Account() common.Address {
	return m.account
}

// SetSwitchHook overrides what SwitchChain does once the chain is known
func (m *MemoryProvider) SetSwitchHook(fn func(id uint64) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switchFn = fn
}

// Calls returns the provider methods invoked so far
func (m *MemoryProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MemoryProvider) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// RequestAccounts returns the single account after consent
func (m *MemoryProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	m.record("RequestAccounts")
	if err := ask(ctx, m.approve, ApprovalRequest{Kind: ApproveConnect, Account: m.account}); err != nil {
		return nil, err
	}
	return []common.Address{m.account}, nil
}

// ChainID returns the active chain
func (m *MemoryProvider) ChainID(context.Context) (uint64, error) {
	m.record("ChainID")
	return m.chains.active(), nil
}

// ActiveChain returns the active chain
func (m *MemoryProvider) ActiveChain() uint64 {
	return m.chains.active()
}

// SwitchChain behaves like KeystoreProvider.SwitchChain without persistence
func (m *MemoryProvider) SwitchChain(ctx context.Context, chainIDHex string) error {
	m.record("SwitchChain")
	id, err := parseChainHex(chainIDHex)
	if err != nil {
		return err
	}
	if !m.chains.known(id) {
		return &ProviderError{Code: CodeUnrecognizedChain, Message: "unrecognized chain " + chainIDHex}
	}
	if err := ask(ctx, m.approve, ApprovalRequest{Kind: ApproveSwitch, ChainID: id}); err != nil {
		return err
	}

	m.mu.Lock()
	hook := m.switchFn
	m.mu.Unlock()
	if hook != nil {
		return hook(id)
	}
	return m.SetChain(id)
}

// AddChain registers desc
func (m *MemoryProvider) AddChain(ctx context.Context, desc types.NetworkDescriptor) error {
	m.record("AddChain")
	if err := ask(ctx, m.approve, ApprovalRequest{Kind: ApproveAdd, ChainID: desc.ChainID}); err != nil {
		return err
	}
	return m.chains.add(desc)
}

// SetChain moves the wallet to id and emits ChainChanged, as a user switching networks would
func (m *MemoryProvider) SetChain(id uint64) error {
	if err := m.chains.setActive(id); err != nil {
		return err
	}
	m.Emit(Event{Kind: ChainChanged, ChainID: id})
	return nil
}

// Emit pushes an event as if the wallet had produced it
func (m *MemoryProvider) Emit(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}

// Events returns the notification channel
func (m *MemoryProvider) Events() <-chan Event {
	return m.events
}

// Signer returns a key signer for the generated account
func (m *MemoryProvider) Signer(account common.Address) (payment.TxSigner, error) {
	if account != m.account {
		return nil, fmt.Errorf("%w: unknown account %s", types.ErrInvalidInput, account.Hex())
	}
	return payment.NewKeySigner(m.key), nil
}
