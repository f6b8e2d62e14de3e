// Package codexcli adapts the sandboxed backend's app-server JSON-RPC
// protocol to the unified provider event vocabulary. The app-server speaks
// JSON-RPC 2.0 over stdin/stdout: client requests (initialize, thread and
// turn lifecycle), server notifications (deltas, command execution, turn
// completion), and server-to-client requests (approvals).
package codexcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      int64           `json:"id"`
}

type rpcResponse struct {
	Error   *rpcError       `json:"error,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	ID      int64           `json:"id"`
}

type rpcError struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// rpcNotification is a server message with a method and no id.
type rpcNotification struct {
	Method string
	Params json.RawMessage
}

// serverRequestHandler answers server-to-client requests (approvals).
type serverRequestHandler func(method string, params json.RawMessage) (interface{}, error)

// rpcClient multiplexes one app-server process: it routes responses to
// pending calls, surfaces notifications on a channel, and answers
// server-to-client requests through the handler.
type rpcClient struct {
	p         process
	onRequest serverRequestHandler
	notifs    chan rpcNotification
	done      chan struct{}

	mu      sync.Mutex
	pending map[int64]chan *rpcResponse
	nextID  atomic.Int64
}

func newRPCClient(p process, onRequest serverRequestHandler) *rpcClient {
	c := &rpcClient{
		p:         p,
		onRequest: onRequest,
		notifs:    make(chan rpcNotification, 64),
		done:      make(chan struct{}),
		pending:   map[int64]chan *rpcResponse{},
	}
	go c.readLoop()
	return c
}

func (c *rpcClient) readLoop() {
	defer close(c.notifs)
	defer close(c.done)
	for line := range c.p.Lines() {
		var msg struct {
			ID     *int64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			Result json.RawMessage `json:"result"`
			Error  *rpcError       `json:"error"`
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}

		switch {
		case msg.Method != "" && msg.ID == nil:
			c.notifs <- rpcNotification{Method: msg.Method, Params: msg.Params}

		case msg.Method != "" && msg.ID != nil:
			c.answer(*msg.ID, msg.Method, msg.Params)

		case msg.ID != nil:
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			delete(c.pending, *msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- &rpcResponse{ID: *msg.ID, Result: msg.Result, Error: msg.Error}
			}
		}
	}
}

func (c *rpcClient) answer(id int64, method string, params json.RawMessage) {
	result, err := c.onRequest(method, params)
	resp := rpcResponse{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: -32603, Message: err.Error()}
	} else {
		data, merr := json.Marshal(result)
		if merr != nil {
			resp.Error = &rpcError{Code: -32603, Message: merr.Error()}
		} else {
			resp.Result = data
		}
	}
	_ = c.p.WriteLine(resp)
}

var errClientClosed = errors.New("app-server connection closed")

// Call sends a request and decodes the response result into out (when out
// is non-nil).
func (c *rpcClient) Call(ctx context.Context, method string, params, out interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	id := c.nextID.Add(1)
	ch := make(chan *rpcResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.p.WriteLine(rpcRequest{JSONRPC: "2.0", Method: method, Params: data, ID: id}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			return json.Unmarshal(resp.Result, out)
		}
		return nil
	case <-c.done:
		return errClientClosed
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

// Notifications returns the stream of server notifications. Closed when the
// process exits.
func (c *rpcClient) Notifications() <-chan rpcNotification { return c.notifs }

// Close stops the process and drains the read loop.
func (c *rpcClient) Close() {
	c.p.Stop()
	for range c.notifs {
	}
}
