// Package mocks provides scriptable doubles of the contract and token
// bindings for flow tests.
package mocks

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/mtecstake/autostake/pkg/types"
)

// MethodCall records a method invocation
type MethodCall struct {
	Method    string
	Args      []interface{}
	Timestamp time.Time
}

// callLog is shared by every mock for call recording and error injection
type callLog struct {
	callsMu sync.Mutex
	calls   []MethodCall

	errMu     sync.Mutex
	errs      map[string]error
	indexErrs map[string]map[uint64]error
}

func (c *callLog) record(method string, args ...interface{}) {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	c.calls = append(c.calls, MethodCall{Method: method, Args: args, Timestamp: time.Now()})
}

// GetCalls returns all recorded method calls
func (c *callLog) GetCalls() []MethodCall {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	result := make([]MethodCall, len(c.calls))
	copy(result, c.calls)
	return result
}

// CallCount returns how many times method was invoked
func (c *callLog) CallCount(method string) int {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// ClearCalls clears all recorded method calls
func (c *callLog) ClearCalls() {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	c.calls = nil
}

// SetError makes every call of method fail with err. A nil err clears it.
func (c *callLog) SetError(method string, err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.errs == nil {
		c.errs = make(map[string]error)
	}
	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// SetIndexError makes method fail with err for one stake index only
func (c *callLog) SetIndexError(method string, index uint64, err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.indexErrs == nil {
		c.indexErrs = make(map[string]map[uint64]error)
	}
	if c.indexErrs[method] == nil {
		c.indexErrs[method] = make(map[uint64]error)
	}
	if err == nil {
		delete(c.indexErrs[method], index)
		return
	}
	c.indexErrs[method][index] = err
}

func (c *callLog) errFor(method string) error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.errs[method]
}

func (c *callLog) indexErrFor(method string, index uint64) error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if err := c.errs[method]; err != nil {
		return err
	}
	return c.indexErrs[method][index]
}

var receiptSeq uint64
var receiptMu sync.Mutex

// receipt returns a successful receipt with a unique hash
func receipt() *ethtypes.Receipt {
	receiptMu.Lock()
	receiptSeq++
	n := receiptSeq
	receiptMu.Unlock()
	return &ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusSuccessful,
		TxHash: common.BigToHash(new(big.Int).SetUint64(n)),
	}
}

func revert(method, reason string) error {
	return &types.RevertError{Method: method, Reason: reason, Err: fmt.Errorf("execution reverted: %s", reason)}
}
