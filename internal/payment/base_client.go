package payment

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/util"
	autotypes "github.com/mtecstake/autostake/pkg/types"
	"golang.org/x/time/rate"
)

// Transaction outcomes reported to the observer
const (
	TxSubmitted = "submitted"
	TxRejected  = "rejected"
	TxConfirmed = "confirmed"
	TxReverted  = "reverted"
)

// Observer receives call and transaction telemetry
type Observer interface {
	ObserveCall(method string, duration time.Duration, err error)
	ObserveTx(method, outcome string)
}

// BaseClientConfig holds configuration for the chain client
type BaseClientConfig struct {
	RPCURLs            []string
	WSEndpoint         string
	ChainID            int64
	BlockConfirmations int
	GasLimitMultiplier float64 // Multiplier for estimated gas (default: 1.2)
	MaxGasPrice        *big.Int
	Backoff            *util.Backoff
	ReadRateLimit      float64 // Read calls per second, 0 disables limiting
	ReadBurst          int
	ConfirmPoll        time.Duration
}

// DefaultBaseClientConfig returns sensible defaults for BNB Smart Chain
func DefaultBaseClientConfig() *BaseClientConfig {
	return &BaseClientConfig{
		RPCURLs:            []string{"https://bsc-dataseed.binance.org/"},
		ChainID:            56,
		BlockConfirmations: 1,
		GasLimitMultiplier: 1.2,
		MaxGasPrice:        big.NewInt(20e9), // 20 gwei max
		Backoff:            util.DefaultBackoff(),
		ReadRateLimit:      20,
		ReadBurst:          10,
		ConfirmPoll:        2 * time.Second,
	}
}

// BaseClient provides access to the chain over JSON-RPC
type BaseClient struct {
	config    *BaseClientConfig
	client    *ethclient.Client
	wsClient  *ethclient.Client
	signer    TxSigner
	address   common.Address
	chainID   *big.Int
	endpoints *EndpointPool
	activeURL string
	limiter   *rate.Limiter
	observer  Observer

	// Nonce management
	nonceMu      sync.Mutex
	pendingNonce uint64

	// Connection state
	connected bool
	mu        sync.RWMutex
}

// NewBaseClient creates a new chain client. signer may be nil for read-only use.
func NewBaseClient(config *BaseClientConfig, signer TxSigner) (*BaseClient, error) {
	if config == nil {
		config = DefaultBaseClientConfig()
	}
	if len(config.RPCURLs) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured")
	}
	if config.ConfirmPoll <= 0 {
		config.ConfirmPoll = 2 * time.Second
	}

	bc := &BaseClient{
		config:    config,
		signer:    signer,
		chainID:   big.NewInt(config.ChainID),
		endpoints: NewEndpointPool(config.RPCURLs),
	}

	if signer != nil {
		bc.address = signer.Address()
	}

	if config.ReadRateLimit > 0 {
		burst := config.ReadBurst
		if burst < 1 {
			burst = 1
		}
		bc.limiter = rate.NewLimiter(rate.Limit(config.ReadRateLimit), burst)
	}

	return bc, nil
}

// SetObserver attaches a telemetry sink
func (bc *BaseClient) SetObserver(o Observer) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.observer = o
}

// Connect dials the healthiest endpoint that serves the expected chain
func (bc *BaseClient) Connect(ctx context.Context) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	var lastErr error
	for _, url := range bc.endpoints.Candidates() {
		start := time.Now()
		client, attempts, err := util.Retry(ctx, bc.config.Backoff, func() (*ethclient.Client, error) {
			return bc.dial(ctx, url)
		})
		bc.endpoints.Observe(url, time.Since(start), err)
		if err != nil {
			lastErr = err
			logging.Warn("rpc endpoint unavailable", "url", url, "attempts", attempts, logging.Err(err))
			continue
		}

		bc.client = client
		bc.activeURL = url
		lastErr = nil
		break
	}
	if bc.client == nil {
		if lastErr == nil {
			lastErr = errors.New("no healthy endpoints")
		}
		return fmt.Errorf("failed to connect to RPC: %w", lastErr)
	}

	// WebSocket is only needed for event subscriptions
	if bc.config.WSEndpoint != "" {
		ws, err := ethclient.DialContext(ctx, bc.config.WSEndpoint)
		if err != nil {
			logging.Warn("failed to connect to WebSocket endpoint", logging.Err(err))
		} else {
			bc.wsClient = ws
		}
	}

	if bc.signer != nil {
		nonce, err := bc.client.PendingNonceAt(ctx, bc.address)
		if err != nil {
			return fmt.Errorf("failed to get nonce: %w", err)
		}
		bc.pendingNonce = nonce
	}

	bc.connected = true
	logging.Debug("rpc connected", "url", bc.activeURL, logging.ChainID(bc.chainID.Uint64()))
	return nil
}

func (bc *BaseClient) dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if chainID.Cmp(bc.chainID) != 0 {
		client.Close()
		return nil, util.Permanent(fmt.Errorf("chain ID mismatch: expected %d, got %d", bc.chainID, chainID))
	}
	return client, nil
}

// Close closes the connection
func (bc *BaseClient) Close() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.client != nil {
		bc.client.Close()
		bc.client = nil
	}
	if bc.wsClient != nil {
		bc.wsClient.Close()
		bc.wsClient = nil
	}
	bc.connected = false
}

// IsConnected returns true if connected
func (bc *BaseClient) IsConnected() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.connected
}

// Client returns the underlying ethclient
func (bc *BaseClient) Client() *ethclient.Client {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.client
}

// WSClient returns the WebSocket client for subscriptions
func (bc *BaseClient) WSClient() *ethclient.Client {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.wsClient
}

// HasWSConfig reports whether a WebSocket endpoint is configured
func (bc *BaseClient) HasWSConfig() bool {
	return bc.config.WSEndpoint != ""
}

// ReconnectWS drops and re-dials the WebSocket connection
func (bc *BaseClient) ReconnectWS(ctx context.Context) error {
	if !bc.HasWSConfig() {
		return fmt.Errorf("no WebSocket endpoint configured")
	}
	ws, err := ethclient.DialContext(ctx, bc.config.WSEndpoint)
	if err != nil {
		return fmt.Errorf("failed to dial WebSocket: %w", err)
	}

	bc.mu.Lock()
	old := bc.wsClient
	bc.wsClient = ws
	bc.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// ActiveURL returns the endpoint currently in use
func (bc *BaseClient) ActiveURL() string {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.activeURL
}

// Address returns the signing account
func (bc *BaseClient) Address() common.Address {
	return bc.address
}

// ChainID returns the chain ID
func (bc *BaseClient) ChainID() *big.Int {
	return bc.chainID
}

// Call performs a rate-limited read against a bound contract
func (bc *BaseClient) Call(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	if bc.limiter != nil {
		if err := bc.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
	}

	start := time.Now()
	var result []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &result, method, args...)
	elapsed := time.Since(start)

	err = DecodeRevert(method, err)
	bc.observeCall(method, elapsed, err)
	bc.endpoints.Observe(bc.ActiveURL(), elapsed, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transact signs and submits a contract write
func (bc *BaseClient) Transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (*types.Transaction, error) {
	auth, err := bc.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := contract.Transact(auth, method, args...)
	if err != nil {
		// The nonce was reserved but never used
		if syncErr := bc.SyncNonce(ctx); syncErr != nil {
			logging.Warn("nonce resync failed", logging.Err(syncErr))
		}
		bc.observeTx(method, TxRejected)
		return nil, DecodeRevert(method, err)
	}

	bc.observeTx(method, TxSubmitted)
	logging.Info("transaction submitted", logging.Method(method), logging.TxHash(tx.Hash()))
	return tx, nil
}

// GetTransactOpts creates transaction options signed through the TxSigner
func (bc *BaseClient) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if bc.signer == nil {
		return nil, fmt.Errorf("no signer configured")
	}

	client := bc.Client()
	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	if bc.config.MaxGasPrice != nil && gasPrice.Cmp(bc.config.MaxGasPrice) > 0 {
		gasPrice = bc.config.MaxGasPrice
	}

	signer := bc.signer
	chainID := bc.chainID
	auth := &bind.TransactOpts{
		From:     bc.address,
		Context:  ctx,
		GasPrice: gasPrice,
		Signer: func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if from != signer.Address() {
				return nil, bind.ErrNotAuthorized
			}
			return signer.SignTx(ctx, tx, chainID)
		},
	}

	bc.nonceMu.Lock()
	auth.Nonce = new(big.Int).SetUint64(bc.pendingNonce)
	bc.pendingNonce++
	bc.nonceMu.Unlock()

	return auth, nil
}

// WaitForTransaction waits for a transaction to be mined and confirmed.
// A mined transaction with failed status is returned as a *types.RevertError.
func (bc *BaseClient) WaitForTransaction(ctx context.Context, tx *types.Transaction, method string) (*types.Receipt, error) {
	client := bc.Client()
	if client == nil {
		return nil, fmt.Errorf("not connected")
	}

	receipt, err := bind.WaitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status == types.ReceiptStatusFailed {
		bc.observeTx(method, TxReverted)
		return receipt, &autotypes.RevertError{
			Method: method,
			Reason: bc.replayRevertReason(ctx, tx, receipt),
			TxHash: tx.Hash().Hex(),
		}
	}

	if bc.config.BlockConfirmations > 0 {
		targetBlock := receipt.BlockNumber.Uint64() + uint64(bc.config.BlockConfirmations)

		for {
			currentBlock, err := client.BlockNumber(ctx)
			if err == nil && currentBlock >= targetBlock {
				break
			}
			select {
			case <-ctx.Done():
				return receipt, ctx.Err()
			case <-time.After(bc.config.ConfirmPoll):
			}
		}
	}

	bc.observeTx(method, TxConfirmed)
	logging.Info("transaction confirmed",
		logging.Method(method),
		logging.TxHash(tx.Hash()),
		"block", receipt.BlockNumber.Uint64(),
	)
	return receipt, nil
}

// replayRevertReason re-executes a failed transaction at its block to
// recover the revert message, which receipts do not carry.
func (bc *BaseClient) replayRevertReason(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) string {
	client := bc.Client()
	if client == nil {
		return ""
	}
	msg := ethereum.CallMsg{
		From:     bc.address,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	_, err := client.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return ""
	}
	return autotypes.RevertReason(DecodeRevert("", err))
}

// EstimateGas estimates gas for a transaction
func (bc *BaseClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	client := bc.Client()
	if client == nil {
		return 0, fmt.Errorf("not connected")
	}

	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, DecodeRevert("estimateGas", err)
	}

	// Apply multiplier for safety margin
	return uint64(float64(gas) * bc.config.GasLimitMultiplier), nil
}

// SyncNonce synchronizes the nonce with the network
func (bc *BaseClient) SyncNonce(ctx context.Context) error {
	client := bc.Client()
	if client == nil {
		return fmt.Errorf("not connected")
	}

	nonce, err := client.PendingNonceAt(ctx, bc.address)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}

	bc.nonceMu.Lock()
	bc.pendingNonce = nonce
	bc.nonceMu.Unlock()

	return nil
}

// GetBlockNumber returns the current block number
func (bc *BaseClient) GetBlockNumber(ctx context.Context) (uint64, error) {
	client := bc.Client()
	if client == nil {
		return 0, fmt.Errorf("not connected")
	}

	return client.BlockNumber(ctx)
}

func (bc *BaseClient) observeCall(method string, d time.Duration, err error) {
	bc.mu.RLock()
	o := bc.observer
	bc.mu.RUnlock()
	if o != nil {
		o.ObserveCall(method, d, err)
	}
}

func (bc *BaseClient) observeTx(method, outcome string) {
	bc.mu.RLock()
	o := bc.observer
	bc.mu.RUnlock()
	if o != nil {
		o.ObserveTx(method, outcome)
	}
}

// Endpoints returns the health records of the configured RPC endpoints
func (bc *BaseClient) Endpoints() []EndpointStatus {
	return bc.endpoints.Status()
}
