package codexcli

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radu2lupu/agentcord/provider"
)

// fakeServer scripts an app-server: requests are answered by per-method
// handlers, and handlers may feed notifications back into the stream.
type fakeServer struct {
	lines    chan []byte
	handlers map[string]func(params json.RawMessage) (interface{}, *rpcError)

	mu        sync.Mutex
	requests  []rpcRequest
	responses []rpcResponse
	closed    bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		lines:    make(chan []byte, 64),
		handlers: map[string]func(json.RawMessage) (interface{}, *rpcError){},
	}
}

func (s *fakeServer) handle(method string, h func(params json.RawMessage) (interface{}, *rpcError)) {
	s.handlers[method] = h
}

func (s *fakeServer) ok(method string, result interface{}) {
	s.handle(method, func(json.RawMessage) (interface{}, *rpcError) { return result, nil })
}

func (s *fakeServer) notify(method string, params interface{}) {
	data, _ := json.Marshal(params)
	line, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  json.RawMessage(data),
	})
	s.lines <- line
}

// request sends a server-to-client request.
func (s *fakeServer) request(id int64, method string, params interface{}) {
	data, _ := json.Marshal(params)
	line, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  json.RawMessage(data),
	})
	s.lines <- line
}

func (s *fakeServer) Lines() <-chan []byte { return s.lines }

func (s *fakeServer) WriteLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var req rpcRequest
	if json.Unmarshal(data, &req) == nil && req.Method != "" {
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		if h, ok := s.handlers[req.Method]; ok {
			result, rerr := h(req.Params)
			resultData, _ := json.Marshal(result)
			resp, _ := json.Marshal(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  json.RawMessage(resultData),
				"error":   rerr,
			})
			s.lines <- resp
		}
		return nil
	}
	var resp rpcResponse
	if json.Unmarshal(data, &resp) == nil {
		s.mu.Lock()
		s.responses = append(s.responses, resp)
		s.mu.Unlock()
	}
	return nil
}

func (s *fakeServer) Err() error { return nil }

func (s *fakeServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.lines)
	}
}

func (s *fakeServer) calls(method string) []rpcRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rpcRequest
	for _, r := range s.requests {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func newTestAdapter(t *testing.T, s *fakeServer) *Adapter {
	t.Helper()
	return &Adapter{
		logger: zaptest.NewLogger(t),
		launch: func(ctx context.Context, workDir string) (process, error) { return s, nil },
	}
}

func collect(t *testing.T, events <-chan provider.Event) []provider.Event {
	t.Helper()
	var got []provider.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events channel to close")
		}
	}
}

func TestTurnLifecycle(t *testing.T) {
	s := newFakeServer()
	s.ok(methodInitialize, initializeResult{UserAgent: "codex/1"})
	s.ok(methodThreadStart, threadResult{ThreadID: "t-1", Model: "gpt-5"})
	s.handle(methodTurnStart, func(json.RawMessage) (interface{}, *rpcError) {
		go func() {
			s.notify(notifyAgentMessageDelta, map[string]string{"threadId": "t-1", "delta": "Hi"})
			s.notify(notifyTurnCompleted, map[string]interface{}{
				"threadId": "t-1",
				"turn":     map[string]string{"id": "turn-1", "status": "completed"},
			})
		}()
		return turnStartResult{TurnID: "turn-1"}, nil
	})

	adapter := newTestAdapter(t, s)
	events, err := adapter.SendPrompt(context.Background(), provider.TextPrompt("hi"), provider.Options{
		WorkDir:        "/work",
		SandboxMode:    "workspace-write",
		ApprovalPolicy: "on-request",
	})
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 3)
	init := got[0].(provider.SessionInitEvent)
	assert.Equal(t, "t-1", init.ResumeToken)
	assert.Equal(t, "gpt-5", init.Model)
	assert.Equal(t, provider.TextEvent{Text: "Hi"}, got[1])
	result := got[2].(provider.ResultEvent)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.NumTurns)

	turnCalls := s.calls(methodTurnStart)
	require.Len(t, turnCalls, 1)
	var params turnStartParams
	require.NoError(t, json.Unmarshal(turnCalls[0].Params, &params))
	assert.Equal(t, "t-1", params.ThreadID)
	assert.Equal(t, "workspace-write", params.SandboxPolicy.Mode)
	assert.Equal(t, "on-request", params.ApprovalPolicy)
}

func TestResumeFallsBackToFreshThread(t *testing.T) {
	s := newFakeServer()
	s.ok(methodInitialize, initializeResult{})
	s.handle(methodThreadResume, func(json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32001, Message: "thread not found"}
	})
	s.ok(methodThreadStart, threadResult{ThreadID: "t-new", Model: "gpt-5"})
	s.handle(methodTurnStart, func(json.RawMessage) (interface{}, *rpcError) {
		go s.notify(notifyTurnCompleted, map[string]interface{}{
			"threadId": "t-new",
			"turn":     map[string]string{"id": "turn-1", "status": "completed"},
		})
		return turnStartResult{}, nil
	})

	adapter := newTestAdapter(t, s)
	events, err := adapter.SendPrompt(context.Background(), provider.TextPrompt("hi"), provider.Options{
		WorkDir:     "/work",
		ResumeToken: "t-stale",
	})
	require.NoError(t, err)
	got := collect(t, events)

	require.GreaterOrEqual(t, len(got), 3)
	reset := got[0].(provider.SessionInitEvent)
	assert.Empty(t, reset.ResumeToken, "reset signal precedes the fresh thread")
	fresh := got[1].(provider.SessionInitEvent)
	assert.Equal(t, "t-new", fresh.ResumeToken)
}

func TestTurnFailureCarriesError(t *testing.T) {
	s := newFakeServer()
	s.ok(methodInitialize, initializeResult{})
	s.ok(methodThreadStart, threadResult{ThreadID: "t-1"})
	s.handle(methodTurnStart, func(json.RawMessage) (interface{}, *rpcError) {
		go s.notify(notifyTurnCompleted, map[string]interface{}{
			"threadId": "t-1",
			"turn": map[string]interface{}{
				"id":     "turn-1",
				"status": "failed",
				"error":  map[string]string{"message": "model overloaded"},
			},
		})
		return turnStartResult{}, nil
	})

	adapter := newTestAdapter(t, s)
	events, err := adapter.SendPrompt(context.Background(), provider.TextPrompt("hi"), provider.Options{WorkDir: "/work"})
	require.NoError(t, err)
	got := collect(t, events)

	result := got[len(got)-1].(provider.ResultEvent)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"model overloaded"}, result.Errors)
}

func TestApprovalRequestsAutoApproved(t *testing.T) {
	s := newFakeServer()
	s.ok(methodInitialize, initializeResult{})
	s.ok(methodThreadStart, threadResult{ThreadID: "t-1"})
	s.handle(methodTurnStart, func(json.RawMessage) (interface{}, *rpcError) {
		go func() {
			s.request(99, requestExecApproval, map[string]string{"itemId": "c-1", "command": "rm -rf build"})
			// Give the client a moment to answer before ending the turn.
			time.Sleep(50 * time.Millisecond)
			s.notify(notifyTurnCompleted, map[string]interface{}{
				"threadId": "t-1",
				"turn":     map[string]string{"id": "turn-1", "status": "completed"},
			})
		}()
		return turnStartResult{}, nil
	})

	adapter := newTestAdapter(t, s)
	events, err := adapter.SendPrompt(context.Background(), provider.TextPrompt("hi"), provider.Options{WorkDir: "/work"})
	require.NoError(t, err)
	collect(t, events)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.responses, 1)
	assert.Equal(t, int64(99), s.responses[0].ID)
	assert.Contains(t, string(s.responses[0].Result), "approved")
}

func TestCancellationSendsTurnInterrupt(t *testing.T) {
	s := newFakeServer()
	s.ok(methodInitialize, initializeResult{})
	s.ok(methodThreadStart, threadResult{ThreadID: "t-1"})
	s.ok(methodTurnAbort, map[string]interface{}{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.handle(methodTurnStart, func(json.RawMessage) (interface{}, *rpcError) {
		go func() {
			// Let the turn settle into streaming before pulling the plug.
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()
		return turnStartResult{TurnID: "turn-1"}, nil
	})

	adapter := newTestAdapter(t, s)
	events, err := adapter.SendPrompt(ctx, provider.TextPrompt("hi"), provider.Options{WorkDir: "/work"})
	require.NoError(t, err)
	collect(t, events)

	interrupts := s.calls(methodTurnAbort)
	require.Len(t, interrupts, 1)
	var params turnInterruptParams
	require.NoError(t, json.Unmarshal(interrupts[0].Params, &params))
	assert.Equal(t, "t-1", params.ThreadID)
}

func TestCompletedMessageSurfacedWithoutDeltas(t *testing.T) {
	s := newFakeServer()
	s.ok(methodInitialize, initializeResult{})
	s.ok(methodThreadStart, threadResult{ThreadID: "t-1"})
	s.handle(methodTurnStart, func(json.RawMessage) (interface{}, *rpcError) {
		go func() {
			s.notify(notifyItemCompleted, map[string]interface{}{
				"threadId": "t-1",
				"item":     map[string]string{"id": "i-1", "type": "agentMessage", "text": "Full answer."},
			})
			s.notify(notifyTurnCompleted, map[string]interface{}{
				"threadId": "t-1",
				"turn":     map[string]string{"id": "turn-1", "status": "completed"},
			})
		}()
		return turnStartResult{}, nil
	})

	adapter := newTestAdapter(t, s)
	events, err := adapter.SendPrompt(context.Background(), provider.TextPrompt("hi"), provider.Options{WorkDir: "/work"})
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 3)
	assert.Equal(t, provider.TextEvent{Text: "Full answer."}, got[1])
}

func TestCompletedMessageSuppressedAfterDeltas(t *testing.T) {
	s := newFakeServer()
	s.ok(methodInitialize, initializeResult{})
	s.ok(methodThreadStart, threadResult{ThreadID: "t-1"})
	s.handle(methodTurnStart, func(json.RawMessage) (interface{}, *rpcError) {
		go func() {
			s.notify(notifyAgentMessageDelta, map[string]string{"threadId": "t-1", "delta": "Hi there"})
			s.notify(notifyItemCompleted, map[string]interface{}{
				"threadId": "t-1",
				"item":     map[string]string{"id": "i-1", "type": "agentMessage", "text": "Hi there"},
			})
			s.notify(notifyTurnCompleted, map[string]interface{}{
				"threadId": "t-1",
				"turn":     map[string]string{"id": "turn-1", "status": "completed"},
			})
		}()
		return turnStartResult{}, nil
	})

	adapter := newTestAdapter(t, s)
	events, err := adapter.SendPrompt(context.Background(), provider.TextPrompt("hi"), provider.Options{WorkDir: "/work"})
	require.NoError(t, err)
	got := collect(t, events)

	var texts []string
	for _, ev := range got {
		if text, ok := ev.(provider.TextEvent); ok {
			texts = append(texts, text.Text)
		}
	}
	assert.Equal(t, []string{"Hi there"}, texts, "the completed item must not repeat streamed text")
}

func TestContinueSessionRequiresToken(t *testing.T) {
	adapter := newTestAdapter(t, newFakeServer())
	_, err := adapter.ContinueSession(context.Background(), provider.Options{WorkDir: "/work"})
	assert.ErrorIs(t, err, provider.ErrNoContinue)
}

func TestSupports(t *testing.T) {
	adapter := newTestAdapter(t, newFakeServer())
	assert.True(t, adapter.Supports(provider.FeatureContinue))
	assert.False(t, adapter.Supports(provider.FeatureTmux))
	assert.False(t, adapter.Supports(provider.FeatureAskUser))
}
