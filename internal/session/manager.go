package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/wallet"
	"github.com/mtecstake/autostake/pkg/types"
)

// Invalidation reasons passed to listeners
const (
	ReasonAccountsChanged = "accounts changed"
	ReasonChainChanged    = "chain changed"
	ReasonDisconnect      = "disconnect"
	ReasonReconnect       = "reconnect"
)

// ErrConnectInterrupted is returned when a wallet event invalidated a connect in progress
var ErrConnectInterrupted = errors.New("connection interrupted by a wallet change")

// Manager drives the connection state machine. All transitions happen in
// Connect, Disconnect and HandleEvent.
type Manager struct {
	provider wallet.Provider
	network  types.NetworkDescriptor
	dial     Dialer

	connectMu sync.Mutex // serializes Connect

	mu        sync.RWMutex
	state     types.ConnectionState
	session   *Session
	handles   *Handles
	lastErr   error
	epoch     uint64 // bumped on every teardown
	listeners []func(reason string)
}

// NewManager creates a manager for the required network. provider may be
// nil, in which case Connect reports ErrNoWalletProvider.
func NewManager(provider wallet.Provider, network types.NetworkDescriptor, dial Dialer) *Manager {
	return &Manager{
		provider: provider,
		network:  network,
		dial:     dial,
		state:    types.StateDisconnected,
	}
}

// Network returns the required network
func (m *Manager) Network() types.NetworkDescriptor {
	return m.network
}

// OnInvalidate registers a listener called after every teardown
func (m *Manager) OnInvalidate(fn func(reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Current returns the session, or nil unless Connected
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != types.StateConnected {
		return nil
	}
	return m.session
}

// State returns the connection state
func (m *Manager) State() types.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns a consistent view for rendering
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{State: m.state, Err: m.lastErr}
	if m.state == types.StateConnected {
		snap.Session = m.session
	}
	return snap
}

// Connect negotiates account and network with the wallet and publishes a new Session
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.provider == nil {
		return nil, m.fail(types.StateDisconnected, types.ErrNoWalletProvider)
	}

	m.mu.Lock()
	m.state = types.StateConnecting
	m.lastErr = nil
	epoch := m.epoch
	m.mu.Unlock()

	accounts, err := m.provider.RequestAccounts(ctx)
	if err != nil {
		return nil, m.fail(types.StateDisconnected, err)
	}
	if len(accounts) == 0 {
		return nil, m.fail(types.StateDisconnected, fmt.Errorf("wallet exposed no accounts: %w", types.ErrNoWalletProvider))
	}
	account := accounts[0]

	if err := m.ensureNetwork(ctx); err != nil {
		return nil, m.fail(types.StateWrongNetwork, err)
	}

	signer, err := m.provider.Signer(account)
	if err != nil {
		return nil, m.fail(types.StateDisconnected, err)
	}
	handles, err := m.dial(ctx, account, signer)
	if err != nil {
		return nil, m.fail(types.StateDisconnected, fmt.Errorf("failed to dial chain: %w", err))
	}

	sess := &Session{
		Account:  account,
		ChainID:  new(big.Int).SetUint64(m.network.ChainID),
		Contract: handles.Contract,
		USDT:     handles.USDT,
		MTEC:     handles.MTEC,
		Events:   handles.Events,
	}

	m.mu.Lock()
	if m.epoch != epoch || m.state != types.StateConnecting {
		m.mu.Unlock()
		closeHandles(handles)
		return nil, ErrConnectInterrupted
	}
	old := m.handles
	replaced := m.session != nil
	m.session = sess
	m.handles = handles
	m.state = types.StateConnected
	m.mu.Unlock()

	if old != nil {
		closeHandles(old)
	}
	if replaced {
		m.notify(ReasonReconnect)
	}

	logging.Info("wallet connected", logging.Account(account), logging.ChainID(m.network.ChainID))
	return sess, nil
}

// ensureNetwork switches the wallet to the required chain, adding it when unknown
func (m *Manager) ensureNetwork(ctx context.Context) error {
	current, err := m.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read wallet chain: %w", err)
	}
	if current == m.network.ChainID {
		return nil
	}

	hex := m.network.ChainIDHex()
	err = m.provider.SwitchChain(ctx, hex)
	if errors.Is(err, wallet.ErrUnrecognizedChain) {
		if addErr := m.provider.AddChain(ctx, m.network); addErr != nil {
			return fmt.Errorf("%w: add chain: %w", types.ErrNetworkSwitchFailed, addErr)
		}
		err = m.provider.SwitchChain(ctx, hex)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrNetworkSwitchFailed, err)
	}

	current, err = m.provider.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read wallet chain: %w", err)
	}
	if current != m.network.ChainID {
		return fmt.Errorf("%w: on chain %d, need %d", types.ErrWrongNetwork, current, m.network.ChainID)
	}
	return nil
}

// Disconnect tears the session down
func (m *Manager) Disconnect() {
	m.teardown(types.StateDisconnected, nil, ReasonDisconnect)
}

// HandleEvent applies a wallet notification to the state machine
func (m *Manager) HandleEvent(ev wallet.Event) {
	m.mu.RLock()
	state := m.state
	var sessChain uint64
	if m.session != nil {
		sessChain = m.session.ChainID.Uint64()
	}
	m.mu.RUnlock()

	switch ev.Kind {
	case wallet.AccountsChanged:
		if state == types.StateDisconnected {
			return
		}
		logging.Info("wallet accounts changed, session closed")
		m.teardown(types.StateDisconnected, nil, ReasonAccountsChanged)

	case wallet.ChainChanged:
		switch state {
		case types.StateConnecting:
			// Connect owns the chain during negotiation
			return
		case types.StateConnected:
			if ev.ChainID == sessChain {
				return
			}
		case types.StateWrongNetwork:
		default:
			return
		}
		next, err := types.StateDisconnected, error(nil)
		if ev.ChainID != m.network.ChainID {
			next = types.StateWrongNetwork
			err = fmt.Errorf("%w: on chain %d, need %d", types.ErrWrongNetwork, ev.ChainID, m.network.ChainID)
		}
		logging.Info("wallet chain changed, session closed", logging.ChainID(ev.ChainID))
		m.teardown(next, err, ReasonChainChanged)
	}
}

// Watch applies provider events until ctx ends or the provider closes its channel
func (m *Manager) Watch(ctx context.Context) {
	if m.provider == nil {
		return
	}
	events := m.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.HandleEvent(ev)
		}
	}
}

// Account returns the session account or the zero address
func (m *Manager) Account() common.Address {
	if s := m.Current(); s != nil {
		return s.Account
	}
	return common.Address{}
}

func (m *Manager) fail(state types.ConnectionState, err error) error {
	m.mu.Lock()
	m.state = state
	m.lastErr = err
	m.mu.Unlock()
	logging.Warn("wallet connect failed", logging.Err(err))
	return err
}

func (m *Manager) teardown(state types.ConnectionState, err error, reason string) {
	m.mu.Lock()
	handles := m.handles
	m.session = nil
	m.handles = nil
	m.state = state
	m.lastErr = err
	m.epoch++
	m.mu.Unlock()

	if handles != nil {
		closeHandles(handles)
	}
	m.notify(reason)
}

func (m *Manager) notify(reason string) {
	m.mu.RLock()
	listeners := append([]func(string){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(reason)
	}
}

func closeHandles(h *Handles) {
	if h.Events != nil {
		h.Events.Stop()
	}
	if h.Close != nil {
		h.Close()
	}
}
