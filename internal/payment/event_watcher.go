package payment

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/util"
)

const (
	eventBackfillBlocks = 100 // blocks to backfill on reconnect
	eventReconnectBase  = 2 * time.Second
	eventReconnectMax   = 60 * time.Second
	eventChannelBuffer  = 64
)

var (
	errShortTopics    = errors.New("log has too few topics")
	errUnwatchedEvent = errors.New("event is not watched")
)

// Portfolio event kinds
const (
	EventBought  = "BoughtAndAutoStaked"
	EventClaimed = "Claimed"
)

// PortfolioEvent is a contract event that changes an account's positions
type PortfolioEvent struct {
	Kind       string
	Account    common.Address
	PackageID  uint64 // EventBought only
	StakeIndex uint64
	Amount     *big.Int // principal for both kinds
	Reward     *big.Int // EventClaimed only
	Block      uint64
	TxHash     common.Hash
}

// EventWatcher manages WebSocket event subscriptions with automatic reconnection.
// It watches BoughtAndAutoStaked and Claimed for one account and forwards them
// so the portfolio can be reloaded.
type EventWatcher struct {
	baseClient *BaseClient
	contract   *AutoStakeContract
	account    common.Address

	events chan *PortfolioEvent

	lastBlock atomic.Uint64
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEventWatcher creates a new event watcher for account
func NewEventWatcher(bc *BaseClient, contract *AutoStakeContract, account common.Address) *EventWatcher {
	return &EventWatcher{
		baseClient: bc,
		contract:   contract,
		account:    account,
		events:     make(chan *PortfolioEvent, eventChannelBuffer),
	}
}

// Start begins watching for on-chain events via WebSocket subscriptions.
// It reports false when subscriptions are unavailable and the caller
// should poll instead.
func (ew *EventWatcher) Start(ctx context.Context) (bool, error) {
	if ew.running.Load() {
		return true, nil
	}

	if ew.baseClient == nil || !ew.baseClient.IsConnected() || ew.contract == nil {
		logging.Info("event watcher: no chain connection, skipping")
		return false, nil
	}

	if !ew.baseClient.HasWSConfig() {
		logging.Info("event watcher: no WebSocket endpoint configured, using polling")
		return false, nil
	}

	// Snapshot current block for backfill baseline
	blockNum, err := ew.baseClient.GetBlockNumber(ctx)
	if err == nil {
		ew.lastBlock.Store(blockNum)
	}

	ctx, ew.cancel = context.WithCancel(ctx)
	ew.running.Store(true)

	ew.wg.Add(1)
	util.SafeGoWithName("event-watcher-portfolio", func() {
		defer ew.wg.Done()
		ew.watchPortfolioEvents(ctx)
	})

	logging.Info("event watcher started", "block", ew.lastBlock.Load(), logging.Account(ew.account))
	return true, nil
}

// Stop stops the event watcher and waits for goroutines to exit.
// After Stop returns the event channel is closed so consumers
// using range will unblock.
func (ew *EventWatcher) Stop() {
	if !ew.running.Load() {
		return
	}
	ew.cancel()
	ew.wg.Wait()
	ew.running.Store(false)

	// Safe because the writer goroutine has exited (wg.Wait above).
	close(ew.events)

	logging.Info("event watcher stopped")
}

// Events returns the channel for receiving portfolio events
func (ew *EventWatcher) Events() <-chan *PortfolioEvent {
	return ew.events
}

// Query builds the log filter for the watched account
func (ew *EventWatcher) Query() (ethereum.FilterQuery, bool) {
	contractABI := ew.contract.ABI()
	var topics []common.Hash
	for _, name := range []string{EventBought, EventClaimed} {
		if ev, ok := contractABI.Events[name]; ok {
			topics = append(topics, ev.ID)
		}
	}
	if len(topics) == 0 {
		return ethereum.FilterQuery{}, false
	}
	return ethereum.FilterQuery{
		Addresses: []common.Address{ew.contract.Address()},
		Topics:    [][]common.Hash{topics, {common.BytesToHash(ew.account.Bytes())}},
	}, true
}

func (ew *EventWatcher) watchPortfolioEvents(ctx context.Context) {
	query, ok := ew.Query()
	if !ok {
		logging.Warn("event watcher: no portfolio event topics found in ABI")
		return
	}

	ew.subscribeWithReconnect(ctx, "portfolio", query, func(log ethtypes.Log) {
		event, err := ew.ParseLog(log)
		if err != nil {
			logging.Debug("event watcher: unparseable log", logging.Err(err))
			return
		}
		select {
		case ew.events <- event:
		default:
			logging.Warn("event watcher: portfolio event channel full, dropping")
		}
	})
}

// ParseLog decodes a BoughtAndAutoStaked or Claimed log
func (ew *EventWatcher) ParseLog(log ethtypes.Log) (*PortfolioEvent, error) {
	contractABI := ew.contract.ABI()
	if len(log.Topics) < 3 {
		return nil, errShortTopics
	}
	ev, err := contractABI.EventByID(log.Topics[0])
	if err != nil {
		return nil, err
	}
	values, err := contractABI.Unpack(ev.Name, log.Data)
	if err != nil {
		return nil, err
	}

	event := &PortfolioEvent{
		Kind:    ev.Name,
		Account: common.BytesToAddress(log.Topics[1].Bytes()),
		Block:   log.BlockNumber,
		TxHash:  log.TxHash,
	}
	second := new(big.Int).SetBytes(log.Topics[2].Bytes()).Uint64()

	switch ev.Name {
	case EventBought:
		// data: usdtIn, mtecPrincipal, stakeIndex
		event.PackageID = second
		if len(values) >= 3 {
			event.Amount = bigOrZero(values[1])
			event.StakeIndex = bigOrZero(values[2]).Uint64()
		}
	case EventClaimed:
		// data: principalMTEC, rewardMTEC
		event.StakeIndex = second
		if len(values) >= 2 {
			event.Amount = bigOrZero(values[0])
			event.Reward = bigOrZero(values[1])
		}
	default:
		return nil, errUnwatchedEvent
	}
	return event, nil
}

// subscribeWithReconnect manages a single event subscription with automatic
// reconnection and backfill on WS failure.
func (ew *EventWatcher) subscribeWithReconnect(
	ctx context.Context,
	name string,
	query ethereum.FilterQuery,
	handler func(ethtypes.Log),
) {
	delay := eventReconnectBase

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wsClient := ew.baseClient.WSClient()
		if wsClient == nil {
			if err := ew.reconnectWS(ctx, name); err != nil {
				if !ew.sleepOrDone(ctx, delay) {
					return
				}
				delay = ew.nextDelay(delay)
				continue
			}
			wsClient = ew.baseClient.WSClient()
			if wsClient == nil {
				if !ew.sleepOrDone(ctx, delay) {
					return
				}
				delay = ew.nextDelay(delay)
				continue
			}
		}

		ew.backfillEvents(ctx, query, handler)

		logs := make(chan ethtypes.Log, 16)
		sub, err := wsClient.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			logging.Warn("event watcher: subscribe failed",
				"subscription", name, logging.Err(err))
			if !ew.sleepOrDone(ctx, delay) {
				return
			}
			delay = ew.nextDelay(delay)
			continue
		}

		delay = eventReconnectBase
		logging.Info("event watcher: subscribed", "subscription", name)

		done := ew.processEvents(ctx, name, sub, logs, handler)
		sub.Unsubscribe()
		if done {
			return
		}

		// Subscription dropped
		if err := ew.reconnectWS(ctx, name); err != nil {
			if !ew.sleepOrDone(ctx, delay) {
				return
			}
			delay = ew.nextDelay(delay)
		}
	}
}

// reconnectWS redials the WebSocket endpoint, logging a failure
func (ew *EventWatcher) reconnectWS(ctx context.Context, name string) error {
	err := ew.baseClient.ReconnectWS(ctx)
	if err != nil {
		logging.Warn("event watcher: WS reconnect failed",
			"subscription", name, logging.Err(err))
	}
	return err
}

// processEvents reads events from the subscription until an error or context done.
// Returns true if context was cancelled (should stop), false if subscription errored
// (should reconnect).
func (ew *EventWatcher) processEvents(
	ctx context.Context,
	name string,
	sub ethereum.Subscription,
	logs <-chan ethtypes.Log,
	handler func(ethtypes.Log),
) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case err := <-sub.Err():
			if err != nil {
				logging.Warn("event watcher: subscription error",
					"subscription", name, logging.Err(err))
			}
			return false
		case log := <-logs:
			if log.BlockNumber > ew.lastBlock.Load() {
				ew.lastBlock.Store(log.BlockNumber)
			}
			handler(log)
		}
	}
}

// backfillEvents queries historical logs from lastBlock to catch events
// missed during a subscription gap.
func (ew *EventWatcher) backfillEvents(
	ctx context.Context,
	query ethereum.FilterQuery,
	handler func(ethtypes.Log),
) {
	last := ew.lastBlock.Load()
	if last == 0 {
		return
	}

	client := ew.baseClient.Client()
	if client == nil {
		return
	}

	fromBlock := last
	if fromBlock > eventBackfillBlocks {
		fromBlock = last - eventBackfillBlocks
	}

	backfillQuery := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: query.Addresses,
		Topics:    query.Topics,
	}

	logs, err := client.FilterLogs(ctx, backfillQuery)
	if err != nil {
		logging.Warn("event watcher: backfill failed", logging.Err(err))
		return
	}

	for _, log := range logs {
		if log.BlockNumber > last {
			handler(log)
			if log.BlockNumber > ew.lastBlock.Load() {
				ew.lastBlock.Store(log.BlockNumber)
			}
		}
	}

	if len(logs) > 0 {
		logging.Info("event watcher: backfilled events",
			"count", len(logs), "from_block", fromBlock)
	}
}

// sleepOrDone sleeps for the given duration or returns false if context is cancelled.
func (ew *EventWatcher) sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextDelay calculates the next exponential backoff delay.
func (ew *EventWatcher) nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > eventReconnectMax {
		next = eventReconnectMax
	}
	return next
}
