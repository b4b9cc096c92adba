package wallet

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fsnotify/fsnotify"
	"github.com/mtecstake/autostake/internal/addr"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/payment"
	"github.com/mtecstake/autostake/internal/util"
	"github.com/mtecstake/autostake/pkg/types"
)

const (
	eventBuffer   = 16
	watchDebounce = time.Second // longer than the keystore cache rescan delay
)

// KeystoreConfig configures a KeystoreProvider
type KeystoreConfig struct {
	Dir            string
	Account        common.Address // preferred account, zero = first in keystore
	InitialChainID uint64
	Scrypt         ScryptParams
	Approve        Approver
	Passphrase     PassphraseFunc
	Watch          bool // emit AccountsChanged when key files change
}

// KeystoreProvider is a Provider backed by an encrypted go-ethereum keystore
type KeystoreProvider struct {
	cfg    KeystoreConfig
	ks     *keystore.KeyStore
	chains *chainRegistry
	events chan Event

	mu       sync.Mutex
	accounts []common.Address
	closed   bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewKeystoreProvider opens the keystore and chain registry in cfg.Dir
func NewKeystoreProvider(cfg KeystoreConfig) (*KeystoreProvider, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: keystore directory is required", types.ErrInvalidInput)
	}
	if cfg.Scrypt.N == 0 {
		cfg.Scrypt = StandardScrypt
	}

	ks, err := OpenKeystore(cfg.Dir, cfg.Scrypt)
	if err != nil {
		return nil, err
	}
	chains, err := loadChainRegistry(cfg.Dir, cfg.InitialChainID)
	if err != nil {
		return nil, err
	}

	p := &KeystoreProvider{
		cfg:      cfg,
		ks:       ks,
		chains:   chains,
		events:   make(chan Event, eventBuffer),
		accounts: addresses(ks.Accounts()),
		done:     make(chan struct{}),
	}

	if cfg.Watch {
		if err := p.startWatch(); err != nil {
			logging.Warn("keystore watch unavailable", logging.Err(err))
		}
	}
	return p, nil
}

// RequestAccounts returns the keystore accounts, preferred account first,
// after the user consents to expose them.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accts := addresses(p.ks.Accounts())
	if len(accts) == 0 {
		return nil, fmt.Errorf("keystore %s has no accounts: %w", p.cfg.Dir, types.ErrNoWalletProvider)
	}

	if pref := p.cfg.Account; pref != (common.Address{}) {
		idx := -1
		for i, a := range accts {
			if a == pref {
				idx = i
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: account %s not in keystore", types.ErrInvalidInput, pref.Hex())
		}
		accts[0], accts[idx] = accts[idx], accts[0]
	}

	if err := ask(ctx, p.cfg.Approve, ApprovalRequest{
		Kind:    ApproveConnect,
		Account: accts[0],
		Summary: "Connect account " + addr.Short(accts[0].Hex()),
	}); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.accounts = accts
	p.mu.Unlock()
	return accts, nil
}

// ChainID returns the active chain
func (p *KeystoreProvider) ChainID(context.Context) (uint64, error) {
	return p.chains.active(), nil
}

// ActiveChain returns the active chain
func (p *KeystoreProvider) ActiveChain() uint64 {
	return p.chains.active()
}

// SwitchChain changes the active chain after consent
func (p *KeystoreProvider) SwitchChain(ctx context.Context, chainIDHex string) error {
	id, err := parseChainHex(chainIDHex)
	if err != nil {
		return err
	}
	if !p.chains.known(id) {
		return &ProviderError{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain first.", chainIDHex),
		}
	}
	if id == p.chains.active() {
		return nil
	}

	if err := ask(ctx, p.cfg.Approve, ApprovalRequest{
		Kind:    ApproveSwitch,
		ChainID: id,
		Summary: fmt.Sprintf("Switch network to chain %d", id),
	}); err != nil {
		return err
	}

	if err := p.chains.setActive(id); err != nil {
		return err
	}
	p.emit(Event{Kind: ChainChanged, ChainID: id})
	return nil
}

// AddChain registers desc after consent
func (p *KeystoreProvider) AddChain(ctx context.Context, desc types.NetworkDescriptor) error {
	if desc.ChainID == 0 || desc.ChainName == "" || len(desc.RPCURLs) == 0 {
		return fmt.Errorf("%w: incomplete network descriptor", types.ErrInvalidInput)
	}
	if err := ask(ctx, p.cfg.Approve, ApprovalRequest{
		Kind:    ApproveAdd,
		ChainID: desc.ChainID,
		Summary: fmt.Sprintf("Add network %s (chain %d)", desc.ChainName, desc.ChainID),
	}); err != nil {
		return err
	}
	return p.chains.add(desc)
}

// Events returns the notification channel
func (p *KeystoreProvider) Events() <-chan Event {
	return p.events
}

// Signer returns a signer that asks for consent and the password on every transaction
func (p *KeystoreProvider) Signer(account common.Address) (payment.TxSigner, error) {
	if !p.ks.HasAddress(account) {
		return nil, fmt.Errorf("%w: account %s not in keystore", types.ErrInvalidInput, account.Hex())
	}
	return &keystoreSigner{provider: p, account: accounts.Account{Address: account}}, nil
}

// Close stops the directory watch and closes the event channel
func (p *KeystoreProvider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	var err error
	if p.watcher != nil {
		err = p.watcher.Close()
	}
	p.wg.Wait()
	close(p.events)
	return err
}

// emit drops events when nobody is listening rather than blocking the wallet
func (p *KeystoreProvider) emit(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		logging.Warn("wallet event dropped", "kind", string(ev.Kind))
	}
}

func (p *KeystoreProvider) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(p.cfg.Dir); err != nil {
		w.Close()
		return err
	}
	p.watcher = w

	p.wg.Add(1)
	util.SafeGoWithName("wallet-keystore-watch", func() {
		defer p.wg.Done()
		p.watchLoop()
	})
	return nil
}

func (p *KeystoreProvider) watchLoop() {
	var debounce <-chan time.Time
	for {
		select {
		case <-p.done:
			return
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				debounce = time.After(watchDebounce)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("keystore watch error", logging.Err(err))
		case <-debounce:
			debounce = nil
			p.checkAccounts()
		}
	}
}

func (p *KeystoreProvider) checkAccounts() {
	current := addresses(p.ks.Accounts())

	p.mu.Lock()
	changed := !sameAccounts(p.accounts, current)
	if changed {
		p.accounts = current
	}
	p.mu.Unlock()

	if changed {
		logging.Info("keystore accounts changed", "count", len(current))
		p.emit(Event{Kind: AccountsChanged, Accounts: current})
	}
}

func sameAccounts(a, b []common.Address) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[common.Address]bool, len(a))
	for _, x := range a {
		seen[x] = true
	}
	for _, x := range b {
		if !seen[x] {
			return false
		}
	}
	return true
}

type keystoreSigner struct {
	provider *KeystoreProvider
	account  accounts.Account
}

func (s *keystoreSigner) Address() common.Address {
	return s.account.Address
}

func (s *keystoreSigner) SignTx(ctx context.Context, tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	summary := "Sign transaction"
	if to := tx.To(); to != nil {
		summary = "Sign transaction to " + addr.Short(to.Hex())
	}
	if err := ask(ctx, s.provider.cfg.Approve, ApprovalRequest{
		Kind:    ApproveSign,
		Account: s.account.Address,
		ChainID: chainID.Uint64(),
		Summary: summary,
	}); err != nil {
		return nil, err
	}

	if s.provider.cfg.Passphrase == nil {
		return nil, ErrNoPassphrase
	}
	password, err := s.provider.cfg.Passphrase(s.account.Address)
	if err != nil {
		return nil, err
	}

	signed, err := s.provider.ks.SignTxWithPassphrase(s.account, password, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
