package codexcli

import (
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/provider"
)

const clientName = "agentcord"

// Adapter runs turns through the sandboxed app-server backend.
type Adapter struct {
	logger *zap.Logger
	launch launcher
}

// New returns an adapter using the real app-server binary.
func New(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger, launch: launchAppServer}
}

// Factory probes for the backend binary, installing it when missing.
func Factory(logger *zap.Logger) provider.Factory {
	return func(ctx context.Context) (provider.Provider, error) {
		if _, err := exec.LookPath("codex"); err != nil {
			logger.Info("codex not found, attempting install")
			install := exec.CommandContext(ctx, "npm", "install", "-g", "@openai/codex")
			if out, ierr := install.CombinedOutput(); ierr != nil {
				logger.Warn("codex install failed", zap.Error(ierr), zap.ByteString("output", out))
				return nil, provider.ErrNotInstalled
			}
			if _, err := exec.LookPath("codex"); err != nil {
				return nil, provider.ErrNotInstalled
			}
		}
		return New(logger), nil
	}
}

// Name returns the provider name.
func (a *Adapter) Name() string { return "codex" }

// Supports reports feature availability. The backend runs headless in its
// own sandbox: no terminal mirror, no interactive questions.
func (a *Adapter) Supports(feature string) bool {
	return feature == provider.FeatureContinue
}

// SendPrompt runs one turn against a new or resumed thread.
func (a *Adapter) SendPrompt(ctx context.Context, prompt provider.Prompt, opts provider.Options) (<-chan provider.Event, error) {
	out := make(chan provider.Event, 16)
	go a.run(ctx, prompt, opts, out)
	return out, nil
}

// ContinueSession resumes the thread with a nudge to keep going.
func (a *Adapter) ContinueSession(ctx context.Context, opts provider.Options) (<-chan provider.Event, error) {
	if opts.ResumeToken == "" {
		return nil, provider.ErrNoContinue
	}
	return a.SendPrompt(ctx, provider.TextPrompt("Continue."), opts)
}

func (a *Adapter) run(ctx context.Context, prompt provider.Prompt, opts provider.Options, out chan<- provider.Event) {
	defer close(out)

	p, err := a.launch(ctx, opts.WorkDir)
	if err != nil {
		emit(ctx, out, provider.ErrorEvent{Err: err, Context: "launch"})
		return
	}
	c := newRPCClient(p, a.approveAll())
	defer c.Close()

	if err := c.Call(ctx, methodInitialize, initializeParams{
		ClientInfo: clientInfo{Name: clientName, Version: "1"},
	}, nil); err != nil {
		if ctx.Err() == nil {
			emit(ctx, out, provider.ErrorEvent{Err: err, Context: "initialize"})
		}
		return
	}

	thread, err := a.openThread(ctx, c, opts, out)
	if err != nil {
		if ctx.Err() == nil {
			emit(ctx, out, provider.ErrorEvent{Err: err, Context: "open thread"})
		}
		return
	}
	if !emit(ctx, out, provider.SessionInitEvent{ResumeToken: thread.ThreadID, Model: thread.Model}) {
		return
	}

	started := time.Now()
	if err := c.Call(ctx, methodTurnStart, a.turnParams(thread.ThreadID, prompt, opts), nil); err != nil {
		if ctx.Err() == nil {
			emit(ctx, out, provider.ErrorEvent{Err: err, Context: "start turn"})
		}
		return
	}

	a.streamTurn(ctx, c, thread.ThreadID, started, out)
}

// openThread resumes the prior thread when a resume token is present,
// falling back to a fresh thread (with a reset signal) when the resume is
// rejected.
func (a *Adapter) openThread(ctx context.Context, c *rpcClient, opts provider.Options, out chan<- provider.Event) (threadResult, error) {
	var thread threadResult
	if opts.ResumeToken != "" {
		err := c.Call(ctx, methodThreadResume, threadResumeParams{
			ThreadID: opts.ResumeToken,
			CWD:      opts.WorkDir,
			Model:    opts.Model,
		}, &thread)
		if err == nil {
			return thread, nil
		}
		if ctx.Err() != nil {
			return thread, err
		}
		a.logger.Warn("thread resume failed, starting fresh",
			zap.String("resume_token", opts.ResumeToken), zap.Error(err))
		if !emit(ctx, out, provider.SessionInitEvent{}) {
			return thread, ctx.Err()
		}
	}
	err := c.Call(ctx, methodThreadStart, threadStartParams{
		CWD:   opts.WorkDir,
		Model: opts.Model,
	}, &thread)
	return thread, err
}

func (a *Adapter) turnParams(threadID string, prompt provider.Prompt, opts provider.Options) turnStartParams {
	params := turnStartParams{
		ThreadID:       threadID,
		Input:          buildInput(prompt, opts.SystemPrompts),
		CWD:            opts.WorkDir,
		Model:          opts.Model,
		ApprovalPolicy: opts.ApprovalPolicy,
		SandboxPolicy: sandboxPolicy{
			Mode:          opts.SandboxMode,
			NetworkAccess: opts.NetworkAccess,
		},
	}
	return params
}

// streamTurn forwards translated notifications until the turn completes. On
// cancellation it asks the backend to interrupt the turn before the process
// is torn down.
func (a *Adapter) streamTurn(ctx context.Context, c *rpcClient, threadID string, started time.Time, out chan<- provider.Event) {
	sawText := false
	for {
		select {
		case <-ctx.Done():
			a.interruptTurn(c, threadID)
			return
		case n, ok := <-c.Notifications():
			if !ok {
				if ctx.Err() == nil {
					emit(ctx, out, provider.ErrorEvent{Err: errClientClosed, Context: "stream"})
				}
				return
			}
			if n.Method == notifyTurnCompleted {
				var notif turnCompletedNotification
				if err := json.Unmarshal(n.Params, &notif); err != nil {
					continue
				}
				result := provider.ResultEvent{
					Success:    notif.Turn.Status == "completed",
					DurationMs: time.Since(started).Milliseconds(),
					NumTurns:   1,
				}
				if !result.Success && notif.Turn.Error.Message != "" {
					result.Errors = []string{notif.Turn.Error.Message}
				}
				emit(ctx, out, result)
				return
			}
			if n.Method == notifyItemCompleted {
				for _, ev := range translateItemCompleted(n, sawText) {
					if !emit(ctx, out, ev) {
						return
					}
				}
				continue
			}
			for _, ev := range translateNotification(n) {
				if _, ok := ev.(provider.TextEvent); ok {
					sawText = true
				}
				if !emit(ctx, out, ev) {
					return
				}
			}
		}
	}
}

// interruptTurn sends a best-effort turn/interrupt. The turn context is
// already canceled at this point, so the call gets its own short deadline;
// failures only mean the process kill does the stopping.
func (a *Adapter) interruptTurn(c *rpcClient, threadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Call(ctx, methodTurnAbort, turnInterruptParams{ThreadID: threadID}, nil); err != nil {
		a.logger.Debug("turn interrupt failed", zap.Error(err))
	}
}

// approveAll answers approval requests affirmatively. The sandbox policy
// already bounds what the backend may touch; surfacing every request to chat
// would stall headless turns.
func (a *Adapter) approveAll() serverRequestHandler {
	return func(method string, params json.RawMessage) (interface{}, error) {
		switch method {
		case requestExecApproval, requestPatchApproval:
			a.logger.Debug("auto-approving request", zap.String("method", method))
			return map[string]string{"decision": "approved"}, nil
		}
		return map[string]interface{}{}, nil
	}
}

// buildInput converts a prompt plus system-prompt fragments into turn input
// items. The app-server has no separate system-prompt channel, so fragments
// are prepended as context items.
func buildInput(prompt provider.Prompt, systemPrompts []string) []inputItem {
	var items []inputItem
	for _, sp := range systemPrompts {
		items = append(items, inputItem{Type: "text", Text: sp})
	}
	if len(prompt.Blocks) == 0 {
		return append(items, inputItem{Type: "text", Text: prompt.Text})
	}
	if prompt.Text != "" {
		items = append(items, inputItem{Type: "text", Text: prompt.Text})
	}
	for _, b := range prompt.Blocks {
		switch b.Type {
		case provider.BlockText:
			items = append(items, inputItem{Type: "text", Text: b.Text})
		case provider.BlockImage:
			items = append(items, inputItem{
				Type: "image",
				URL:  "data:" + b.MediaType + ";base64," + b.Data,
			})
		case provider.BlockImageFile:
			items = append(items, inputItem{Type: "localImage", Path: b.Path})
		}
	}
	return items
}

// emit delivers an event unless the context is canceled.
func emit(ctx context.Context, out chan<- provider.Event, ev provider.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
