package session

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/payment"
	"github.com/mtecstake/autostake/internal/wallet"
	"github.com/mtecstake/autostake/pkg/types"
)

func bsc() types.NetworkDescriptor {
	return types.NetworkDescriptor{
		ChainID:   56,
		ChainName: "BNB Smart Chain",
		RPCURLs:   []string{"https://bsc-dataseed.binance.org/"},
	}
}

type dialRecorder struct {
	mu     sync.Mutex
	dials  int
	closed int
	err    error
}

func (d *dialRecorder) dial(_ context.Context, account common.Address, signer payment.TxSigner) (*Handles, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if signer.Address() != account {
		return nil, errors.New("signer does not match account")
	}
	d.dials++
	usdt := payment.NewMockTokenContract(common.HexToAddress("0xaa"), "USDT")
	mtec := payment.NewMockTokenContract(common.HexToAddress("0xbb"), "MTEC")
	contract := payment.NewMockAutoStakeContract(common.HexToAddress("0xcc"), account, usdt, mtec)
	return &Handles{
		Contract: contract,
		USDT:     usdt,
		MTEC:     mtec,
		Close: func() {
			d.mu.Lock()
			d.closed++
			d.mu.Unlock()
		},
	}, nil
}

func (d *dialRecorder) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials, d.closed
}

func newProvider(t *testing.T, chain uint64, approve wallet.Approver) *wallet.MemoryProvider {
	t.Helper()
	p, err := wallet.NewMemoryProvider(chain, approve)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// onChain puts the provider on BSC before the manager sees it
func onChain(t *testing.T, p *wallet.MemoryProvider) {
	t.Helper()
	if err := p.AddChain(context.Background(), bsc()); err != nil {
		t.Fatal(err)
	}
}

func mustConnect(t *testing.T, m *Manager) *Session {
	t.Helper()
	sess, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	return sess
}

func wantState(t *testing.T, m *Manager, want types.ConnectionState) {
	t.Helper()
	if got := m.State(); got != want {
		t.Errorf("State() = %s, want %s", got, want)
	}
}

func TestConnect_NoProvider(t *testing.T) {
	m := NewManager(nil, bsc(), (&dialRecorder{}).dial)
	if _, err := m.Connect(context.Background()); !errors.Is(err, types.ErrNoWalletProvider) {
		t.Errorf("expected ErrNoWalletProvider, got %v", err)
	}
	wantState(t, m, types.StateDisconnected)
	if m.Current() != nil {
		t.Error("no session expected")
	}
}

func TestConnect_AddsUnknownChainThenSwitches(t *testing.T) {
	p := newProvider(t, 1, wallet.AutoApprove)
	d := &dialRecorder{}
	m := NewManager(p, bsc(), d.dial)

	sess := mustConnect(t, m)
	if sess.Account != p.Account() || sess.ChainID.Uint64() != 56 {
		t.Errorf("unexpected session %+v", sess)
	}
	wantState(t, m, types.StateConnected)
	if m.Current() != sess {
		t.Error("Current() should return the new session")
	}

	want := []string{"RequestAccounts", "ChainID", "SwitchChain", "AddChain", "SwitchChain", "ChainID"}
	if got := p.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("provider calls %v, want %v", got, want)
	}
	if snap := m.Snapshot(); !snap.Connected() || snap.Err != nil {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestConnect_AlreadyOnChain(t *testing.T) {
	p := newProvider(t, 1, wallet.AutoApprove)
	onChain(t, p)
	if err := p.SetChain(56); err != nil {
		t.Fatal(err)
	}

	m := NewManager(p, bsc(), (&dialRecorder{}).dial)
	mustConnect(t, m)
	if got, want := p.Calls(), []string{"AddChain", "RequestAccounts", "ChainID"}; !reflect.DeepEqual(got, want) {
		t.Errorf("provider calls %v, want %v", got, want)
	}
}

func TestConnect_UserRejects(t *testing.T) {
	decline := func(context.Context, wallet.ApprovalRequest) (bool, error) { return false, nil }
	p := newProvider(t, 1, decline)
	d := &dialRecorder{}
	m := NewManager(p, bsc(), d.dial)

	if _, err := m.Connect(context.Background()); !errors.Is(err, types.ErrUserRejected) {
		t.Errorf("expected ErrUserRejected, got %v", err)
	}
	wantState(t, m, types.StateDisconnected)
	if err := m.Snapshot().Err; !errors.Is(err, types.ErrUserRejected) {
		t.Errorf("snapshot error = %v", err)
	}
	if dials, _ := d.counts(); dials != 0 {
		t.Errorf("dialed %d times after a rejection", dials)
	}
}

func TestConnect_SwitchFailure(t *testing.T) {
	p := newProvider(t, 1, wallet.AutoApprove)
	onChain(t, p)
	p.SetSwitchHook(func(uint64) error { return errors.New("wallet busy") })

	m := NewManager(p, bsc(), (&dialRecorder{}).dial)
	if _, err := m.Connect(context.Background()); !errors.Is(err, types.ErrNetworkSwitchFailed) {
		t.Errorf("expected ErrNetworkSwitchFailed, got %v", err)
	}
	wantState(t, m, types.StateWrongNetwork)
	if m.Current() != nil {
		t.Error("no session expected")
	}
}

func TestConnect_SwitchSilentlyIgnored(t *testing.T) {
	p := newProvider(t, 1, wallet.AutoApprove)
	onChain(t, p)
	p.SetSwitchHook(func(uint64) error { return nil })

	m := NewManager(p, bsc(), (&dialRecorder{}).dial)
	if _, err := m.Connect(context.Background()); !errors.Is(err, types.ErrWrongNetwork) {
		t.Errorf("expected ErrWrongNetwork, got %v", err)
	}
	wantState(t, m, types.StateWrongNetwork)
}

func TestConnect_DialFailure(t *testing.T) {
	p := newProvider(t, 56, wallet.AutoApprove)
	m := NewManager(p, bsc(), (&dialRecorder{err: errors.New("rpc down")}).dial)

	_, err := m.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "rpc down") {
		t.Errorf("expected the dial failure, got %v", err)
	}
	wantState(t, m, types.StateDisconnected)
}

func TestReconnectReplacesSession(t *testing.T) {
	p := newProvider(t, 56, wallet.AutoApprove)
	d := &dialRecorder{}
	m := NewManager(p, bsc(), d.dial)

	var reasons []string
	m.OnInvalidate(func(r string) { reasons = append(reasons, r) })

	first := mustConnect(t, m)
	second := mustConnect(t, m)

	if first == second || m.Current() != second {
		t.Error("reconnect should publish a new session")
	}
	if dials, closed := d.counts(); dials != 2 || closed != 1 {
		t.Errorf("dials=%d closed=%d, want 2 and 1", dials, closed)
	}
	if !reflect.DeepEqual(reasons, []string{ReasonReconnect}) {
		t.Errorf("invalidations %v", reasons)
	}
}

func TestAccountsChangedTearsDown(t *testing.T) {
	p := newProvider(t, 56, wallet.AutoApprove)
	d := &dialRecorder{}
	m := NewManager(p, bsc(), d.dial)

	var reasons []string
	m.OnInvalidate(func(r string) { reasons = append(reasons, r) })
	mustConnect(t, m)

	m.HandleEvent(wallet.Event{Kind: wallet.AccountsChanged})
	wantState(t, m, types.StateDisconnected)
	if m.Current() != nil {
		t.Error("session survived an account change")
	}
	if !reflect.DeepEqual(reasons, []string{ReasonAccountsChanged}) {
		t.Errorf("invalidations %v", reasons)
	}
	if _, closed := d.counts(); closed != 1 {
		t.Errorf("handles closed %d times, want 1", closed)
	}

	// Nothing left to tear down
	m.HandleEvent(wallet.Event{Kind: wallet.AccountsChanged})
	if len(reasons) != 1 {
		t.Errorf("second account change invalidated again: %v", reasons)
	}
}

func TestChainChanged(t *testing.T) {
	p := newProvider(t, 56, wallet.AutoApprove)
	m := NewManager(p, bsc(), (&dialRecorder{}).dial)
	mustConnect(t, m)

	// Same chain is a no-op
	m.HandleEvent(wallet.Event{Kind: wallet.ChainChanged, ChainID: 56})
	wantState(t, m, types.StateConnected)

	m.HandleEvent(wallet.Event{Kind: wallet.ChainChanged, ChainID: 1})
	wantState(t, m, types.StateWrongNetwork)
	if m.Current() != nil {
		t.Error("session survived a chain change")
	}
	if err := m.Snapshot().Err; !errors.Is(err, types.ErrWrongNetwork) {
		t.Errorf("snapshot error = %v", err)
	}

	// Back on the right chain still requires a reconnect
	m.HandleEvent(wallet.Event{Kind: wallet.ChainChanged, ChainID: 56})
	wantState(t, m, types.StateDisconnected)
	if m.Current() != nil {
		t.Error("returning to BSC must not revive the session")
	}
}

func TestChainChangedIgnoredWhileConnecting(t *testing.T) {
	p := newProvider(t, 1, wallet.AutoApprove)
	m := NewManager(p, bsc(), (&dialRecorder{}).dial)

	// The switch inside Connect emits ChainChanged; deliver it mid-flight
	onChain(t, p)
	p.SetSwitchHook(func(id uint64) error {
		if err := p.SetChain(id); err != nil {
			t.Error(err)
		}
		m.HandleEvent(<-p.Events())
		return nil
	})

	mustConnect(t, m)
	wantState(t, m, types.StateConnected)
}

func TestAccountsChangedDuringConnect(t *testing.T) {
	p := newProvider(t, 1, wallet.AutoApprove)
	d := &dialRecorder{}
	m := NewManager(p, bsc(), d.dial)

	onChain(t, p)
	p.SetSwitchHook(func(id uint64) error {
		m.HandleEvent(wallet.Event{Kind: wallet.AccountsChanged})
		return p.SetChain(id)
	})

	if _, err := m.Connect(context.Background()); !errors.Is(err, ErrConnectInterrupted) {
		t.Errorf("expected ErrConnectInterrupted, got %v", err)
	}
	wantState(t, m, types.StateDisconnected)
	if dials, closed := d.counts(); dials != 1 || closed != 1 {
		t.Errorf("dials=%d closed=%d, want 1 and 1", dials, closed)
	}
}

func TestWatchAppliesEvents(t *testing.T) {
	p := newProvider(t, 56, wallet.AutoApprove)
	m := NewManager(p, bsc(), (&dialRecorder{}).dial)
	mustConnect(t, m)

	done := make(chan struct{})
	m.OnInvalidate(func(string) { close(done) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		m.Watch(ctx)
		close(stopped)
	}()

	p.Emit(wallet.Event{Kind: wallet.AccountsChanged})
	<-done
	wantState(t, m, types.StateDisconnected)

	cancel()
	<-stopped
}
