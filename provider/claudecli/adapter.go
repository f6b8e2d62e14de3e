package claudecli

import (
	"context"
	"os/exec"

	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/provider"
)

// Adapter runs turns through the terminal-integrated CLI backend.
type Adapter struct {
	logger *zap.Logger
	launch launcher
}

// New returns an adapter using the real CLI.
func New(logger *zap.Logger) *Adapter {
	return &Adapter{logger: logger, launch: launchCLI}
}

// Factory probes for the CLI binary and constructs the adapter.
func Factory(logger *zap.Logger) provider.Factory {
	return func(ctx context.Context) (provider.Provider, error) {
		if _, err := exec.LookPath("claude"); err != nil {
			return nil, provider.ErrNotInstalled
		}
		return New(logger), nil
	}
}

// Name returns the provider name.
func (a *Adapter) Name() string { return "claude" }

// Supports reports feature availability.
func (a *Adapter) Supports(feature string) bool {
	switch feature {
	case provider.FeatureTmux, provider.FeatureAskUser, provider.FeatureContinue:
		return true
	}
	return false
}

// SendPrompt runs one turn and streams its events. The channel is closed
// when the turn finishes, fails, or the context is canceled.
func (a *Adapter) SendPrompt(ctx context.Context, prompt provider.Prompt, opts provider.Options) (<-chan provider.Event, error) {
	out := make(chan provider.Event, 16)
	go a.run(ctx, prompt, opts, out)
	return out, nil
}

// ContinueSession resumes a previous session with a nudge to keep going.
func (a *Adapter) ContinueSession(ctx context.Context, opts provider.Options) (<-chan provider.Event, error) {
	if opts.ResumeToken == "" {
		return nil, provider.ErrNoContinue
	}
	return a.SendPrompt(ctx, provider.TextPrompt("Continue."), opts)
}

// run drives a turn, retrying once from scratch when a resumed session
// fails. The retry discards the stale resume token; a session-init event
// with an empty token tells the consumer to forget it too.
func (a *Adapter) run(ctx context.Context, prompt provider.Prompt, opts provider.Options, out chan<- provider.Event) {
	defer close(out)

	restore, err := injectInstructions(opts.WorkDir, opts.SystemPrompts)
	if err != nil {
		emit(ctx, out, provider.ErrorEvent{Err: err, Context: "inject instructions"})
		return
	}
	defer restore()

	token := opts.ResumeToken
	canRetry := token != ""

	for {
		failed := a.attempt(ctx, prompt, opts, token, canRetry, out)
		if ctx.Err() != nil {
			return
		}
		if failed && canRetry {
			a.logger.Warn("resumed turn failed, retrying without resume token",
				zap.String("resume_token", token))
			if !emit(ctx, out, provider.SessionInitEvent{}) {
				return
			}
			token = ""
			canRetry = false
			continue
		}
		return
	}
}

// attempt runs a single CLI invocation. When suppressFailure is set, a
// backend-reported failure is swallowed and reported via the return value
// instead of being forwarded, so the caller can retry.
func (a *Adapter) attempt(ctx context.Context, prompt provider.Prompt, opts provider.Options, token string, suppressFailure bool, out chan<- provider.Event) (failed bool) {
	p, err := a.launch(ctx, launchSpec{
		WorkDir:     opts.WorkDir,
		Model:       opts.Model,
		ResumeToken: token,
	})
	if err != nil {
		if suppressFailure {
			return true
		}
		emit(ctx, out, provider.ErrorEvent{Err: err, Context: "launch"})
		return false
	}
	defer func() {
		p.Stop()
		for range p.Lines() {
		}
	}()

	if err := p.WriteLine(newUserMessage(buildContent(prompt))); err != nil {
		if suppressFailure {
			return true
		}
		emit(ctx, out, provider.ErrorEvent{Err: err, Context: "send prompt"})
		return false
	}

	tr := newTranslator()
	for line := range p.Lines() {
		msg, err := parseMessage(line)
		if err != nil {
			a.logger.Debug("skipping unparseable line", zap.Error(err))
			continue
		}
		if msg == nil {
			continue
		}
		for _, ev := range tr.translate(msg) {
			if result, ok := ev.(provider.ResultEvent); ok && !result.Success && suppressFailure {
				return true
			}
			if ask, ok := ev.(provider.AskUserEvent); ok {
				if !a.handleAskUser(ctx, p, tr.lastAskID, ask, out) {
					return false
				}
				continue
			}
			if !emit(ctx, out, ev) {
				return false
			}
		}
	}

	if perr := p.Err(); perr != nil && ctx.Err() == nil {
		if suppressFailure {
			return true
		}
		emit(ctx, out, provider.ErrorEvent{Err: perr, Context: "claude exited"})
	}
	return false
}

// handleAskUser forwards the question set with a live reply channel, waits
// for the answers, and feeds them back to the CLI as the tool result.
// Returns false when the context was canceled while waiting.
func (a *Adapter) handleAskUser(ctx context.Context, p process, toolUseID string, ask provider.AskUserEvent, out chan<- provider.Event) bool {
	reply := make(chan map[string]string, 1)
	ask.Reply = reply
	if !emit(ctx, out, ask) {
		return false
	}
	select {
	case answers := <-reply:
		payload := formatAnswers(ask.Questions, answers)
		if err := p.WriteLine(newToolResultMessage(toolUseID, payload)); err != nil {
			emit(ctx, out, provider.ErrorEvent{Err: err, Context: "send answers"})
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// buildContent converts a prompt into the outbound message content: a bare
// string for text-only prompts, content blocks when attachments are present.
func buildContent(prompt provider.Prompt) interface{} {
	if len(prompt.Blocks) == 0 {
		return prompt.Text
	}
	var blocks []interface{}
	if prompt.Text != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "text",
			"text": prompt.Text,
		})
	}
	for _, b := range prompt.Blocks {
		switch b.Type {
		case provider.BlockText:
			blocks = append(blocks, map[string]interface{}{
				"type": "text",
				"text": b.Text,
			})
		case provider.BlockImage:
			blocks = append(blocks, map[string]interface{}{
				"type": "image",
				"source": map[string]interface{}{
					"type":       "base64",
					"media_type": b.MediaType,
					"data":       b.Data,
				},
			})
		case provider.BlockImageFile:
			blocks = append(blocks, map[string]interface{}{
				"type": "text",
				"text": "Attached image saved at: " + b.Path,
			})
		}
	}
	return blocks
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
