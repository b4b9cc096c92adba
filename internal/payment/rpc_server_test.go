package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

type rpcHandler func(params []json.RawMessage) (interface{}, *rpcError)

// fakeRPC is a minimal JSON-RPC node answering a fixed set of methods
type fakeRPC struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
	server   *httptest.Server
}

func newFakeRPC(t *testing.T, chainIDHex string) *fakeRPC {
	t.Helper()
	f := &fakeRPC{
		handlers: map[string]rpcHandler{},
		calls:    map[string]int{},
	}
	f.handle("eth_chainId", func([]json.RawMessage) (interface{}, *rpcError) { return chainIDHex, nil })
	f.handle("eth_getTransactionCount", func([]json.RawMessage) (interface{}, *rpcError) { return "0x5", nil })
	f.handle("eth_blockNumber", func([]json.RawMessage) (interface{}, *rpcError) { return "0x64", nil })

	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRPC) URL() string {
	return f.server.URL
}

func (f *fakeRPC) handle(method string, h rpcHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *fakeRPC) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeRPC) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Method]++
	h, ok := f.handlers[req.Method]
	f.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = rpcError{Code: -32601, Message: "method not found"}
	} else if result, rerr := h(req.Params); rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
