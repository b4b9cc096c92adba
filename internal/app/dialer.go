package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/config"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/payment"
	"github.com/mtecstake/autostake/internal/session"
	"github.com/mtecstake/autostake/internal/units"
	"github.com/mtecstake/autostake/pkg/types"
)

var (
	_ session.StakeContract = (*payment.AutoStakeContract)(nil)
	_ session.Token         = (*payment.TokenContract)(nil)
	_ session.EventSource   = (*payment.EventWatcher)(nil)
)

// NewDialer returns the Dialer for cfg: the in-memory contract simulation
// when client.mock is set, JSON-RPC bindings otherwise. observer may be nil.
func NewDialer(cfg *config.Config, observer payment.Observer) session.Dialer {
	if cfg.Client.Mock {
		return newMockWorld(cfg).dial
	}
	return func(ctx context.Context, account common.Address, signer payment.TxSigner) (*session.Handles, error) {
		return dialChain(ctx, cfg, observer, account, signer)
	}
}

func baseClientConfig(cfg *config.Config) *payment.BaseClientConfig {
	bc := payment.DefaultBaseClientConfig()
	bc.RPCURLs = cfg.Network.RPCURLs
	bc.WSEndpoint = cfg.Network.WSEndpoint
	bc.ChainID = int64(cfg.Network.ChainID)
	bc.BlockConfirmations = cfg.Network.BlockConfirmations
	if cfg.Network.MaxGasPriceGwei > 0 {
		bc.MaxGasPrice = new(big.Int).Mul(big.NewInt(cfg.Network.MaxGasPriceGwei), big.NewInt(1e9))
	}
	bc.ReadRateLimit = cfg.Network.RPCRateLimit
	bc.ReadBurst = cfg.Network.RPCBurst
	return bc
}

func dialChain(ctx context.Context, cfg *config.Config, observer payment.Observer, account common.Address, signer payment.TxSigner) (*session.Handles, error) {
	bc, err := payment.NewBaseClient(baseClientConfig(cfg), signer)
	if err != nil {
		return nil, err
	}
	if observer != nil {
		bc.SetObserver(observer)
	}
	if err := bc.Connect(ctx); err != nil {
		return nil, err
	}

	contract, err := payment.NewAutoStakeContract(bc, common.HexToAddress(cfg.Contracts.AutoStake))
	if err != nil {
		bc.Close()
		return nil, err
	}
	usdt, err := payment.NewTokenContract(bc, common.HexToAddress(cfg.Contracts.USDT), "USDT")
	if err != nil {
		bc.Close()
		return nil, err
	}
	mtec, err := payment.NewTokenContract(bc, common.HexToAddress(cfg.Contracts.MTEC), "MTEC")
	if err != nil {
		bc.Close()
		return nil, err
	}

	h := &session.Handles{
		Contract: contract,
		USDT:     usdt,
		MTEC:     mtec,
		Close:    bc.Close,
	}
	if bc.HasWSConfig() {
		h.Events = payment.NewEventWatcher(bc, contract, account)
	}
	logging.Debug("chain handles ready",
		logging.Account(account),
		logging.ContractAddr(contract.Address()),
		"rpc", bc.ActiveURL())
	return h, nil
}

// Mock-mode addresses used when the config leaves them empty
var (
	mockContractAddr = common.HexToAddress("0x00000000000000000000000000000000000a0570")
	mockUSDTAddr     = common.HexToAddress("0x00000000000000000000000000000000000005d7")
	mockMTECAddr     = common.HexToAddress("0x000000000000000000000000000000000000073c")
)

// mockWorld is the in-memory chain shared by every session of one process,
// so state survives a reconnect. The first account to connect becomes the
// contract owner.
type mockWorld struct {
	cfg *config.Config

	mu       sync.Mutex
	contract *payment.AutoStakeContract
	usdt     *payment.TokenContract
	mtec     *payment.TokenContract
	funded   map[common.Address]bool
}

func newMockWorld(cfg *config.Config) *mockWorld {
	return &mockWorld{cfg: cfg, funded: make(map[common.Address]bool)}
}

func addrOr(s string, fallback common.Address) common.Address {
	if s == "" {
		return fallback
	}
	return common.HexToAddress(s)
}

func (w *mockWorld) dial(_ context.Context, account common.Address, _ payment.TxSigner) (*session.Handles, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.contract == nil {
		w.seed(account)
	}
	if !w.funded[account] {
		w.usdt.SetMockBalance(account, w.amount("1000", w.cfg.Contracts.USDTDecimals))
		w.funded[account] = true
	}
	w.contract.SetMockSender(account)

	logging.Info("mock chain session", logging.Account(account), logging.Component("mock"))
	return &session.Handles{Contract: w.contract, USDT: w.usdt, MTEC: w.mtec}, nil
}

// seed must be called with mu held
func (w *mockWorld) seed(owner common.Address) {
	contractAddr := addrOr(w.cfg.Contracts.AutoStake, mockContractAddr)
	w.usdt = payment.NewMockTokenContract(addrOr(w.cfg.Contracts.USDT, mockUSDTAddr), "USDT")
	w.mtec = payment.NewMockTokenContract(addrOr(w.cfg.Contracts.MTEC, mockMTECAddr), "MTEC")
	w.contract = payment.NewMockAutoStakeContract(contractAddr, owner, w.usdt, w.mtec)

	usdtDec, mtecDec := w.cfg.Contracts.USDTDecimals, w.cfg.Contracts.MTECDecimals
	offers := []struct{ in, out string }{
		{"100", "1000"},
		{"500", "5500"},
		{"1000", "12000"},
	}
	for i, o := range offers {
		w.contract.SetMockPackage(types.Package{
			ID:        uint64(i),
			PriceIn:   w.amount(o.in, usdtDec),
			RewardOut: w.amount(o.out, mtecDec),
			Active:    true,
		})
	}
	w.contract.SetMockParams(types.ContractParams{APYBps: 1200, LockSeconds: uint64((30 * 24 * time.Hour).Seconds()), Enabled: true})
	w.contract.SetMockRates(types.ReferralRates{Level1: 500, Level2: 300, Level3: 200})
	w.mtec.SetMockBalance(contractAddr, w.amount("10000000", mtecDec))
}

func (w *mockWorld) amount(s string, decimals uint8) *big.Int {
	v, err := units.ParseUnits(s, decimals)
	if err != nil {
		panic(fmt.Sprintf("bad mock amount %q: %v", s, err))
	}
	return v
}
