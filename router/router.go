// Package router dispatches interactive chat actions (button clicks, menu
// selections) back into session operations. Custom ids are colon-delimited:
// a verb, then verb-specific fields.
package router

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/chat"
	"github.com/radu2lupu/agentcord/provider"
	"github.com/radu2lupu/agentcord/session"
	"github.com/radu2lupu/agentcord/stream"
)

// Sessions is the slice of the session registry the router drives directly.
type Sessions interface {
	GetSession(id string) (*session.Session, error)
	SetMode(id string, mode session.Mode) error
	AbortSession(id string) bool
}

// TurnRunner starts turns and renders their event streams. Implemented by
// the serve wiring, which owns streamer construction.
type TurnRunner interface {
	RunPrompt(ctx context.Context, sessionID string, prompt provider.Prompt) error
	RunContinue(ctx context.Context, sessionID string) error
}

// Router translates chat actions into session operations.
type Router struct {
	logger   *zap.Logger
	msgr     chat.Messenger
	sessions Sessions
	turns    TurnRunner
	contents *ContentStore
	asks     *AskRegistry
	allowed  func(userID string) bool
}

// New creates a router. allowed gates inbound actions by user id; actions
// without a user id (local frontends) always pass.
func New(logger *zap.Logger, msgr chat.Messenger, sessions Sessions, turns TurnRunner, contents *ContentStore, asks *AskRegistry, allowed func(string) bool) *Router {
	return &Router{
		logger:   logger,
		msgr:     msgr,
		sessions: sessions,
		turns:    turns,
		contents: contents,
		asks:     asks,
		allowed:  allowed,
	}
}

// HandleAction dispatches one interaction. Unknown or malformed custom ids
// and actions from unauthorized users are logged and dropped.
func (r *Router) HandleAction(ctx context.Context, a chat.Action) {
	if a.UserID != "" && r.allowed != nil && !r.allowed(a.UserID) {
		r.logger.Debug("dropping action from unauthorized user",
			zap.String("user", a.UserID), zap.String("custom_id", a.CustomID))
		return
	}
	verb, rest, _ := strings.Cut(a.CustomID, ":")
	switch verb {
	case "stop":
		r.handleStop(ctx, a, rest)
	case "continue":
		r.handleContinue(ctx, a, rest)
	case "expand":
		r.handleExpand(ctx, a, rest)
	case "option":
		r.handleOption(ctx, a, rest)
	case "yesno":
		r.handleYesNo(ctx, a, rest)
	case "mode":
		r.handleMode(ctx, a, rest)
	case "askpick":
		r.handleAskPick(ctx, a, rest)
	case "asksubmit":
		r.handleAskSubmit(ctx, a, rest)
	default:
		r.logger.Debug("unknown action", zap.String("custom_id", a.CustomID))
	}
}

func (r *Router) handleStop(ctx context.Context, a chat.Action, sessionID string) {
	if _, err := r.sessions.GetSession(sessionID); err != nil {
		r.notify(ctx, a.ChannelID, turnErrorText(err))
		return
	}
	if r.sessions.AbortSession(sessionID) {
		r.notify(ctx, a.ChannelID, "⏹️ Stopped.")
		return
	}
	r.notify(ctx, a.ChannelID, "Nothing is running.")
}

func (r *Router) handleContinue(ctx context.Context, a chat.Action, sessionID string) {
	if err := r.turns.RunContinue(ctx, sessionID); err != nil {
		r.notify(ctx, a.ChannelID, turnErrorText(err))
	}
}

func (r *Router) handleExpand(ctx context.Context, a chat.Action, contentID string) {
	text, ok := r.contents.Get(contentID)
	if !ok {
		r.notify(ctx, a.ChannelID, "That content has expired.")
		return
	}
	// Code fences plus margin must fit the platform's message cap.
	const chunkSize = 1900
	for len(text) > 0 {
		chunk := text
		if len(chunk) > chunkSize {
			chunk = chunk[:chunkSize]
		}
		text = text[len(chunk):]
		r.notify(ctx, a.ChannelID, "```\n"+chunk+"\n```")
	}
}

func (r *Router) handleOption(ctx context.Context, a chat.Action, rest string) {
	sessionID, number, ok := strings.Cut(rest, ":")
	if !ok {
		return
	}
	if err := r.turns.RunPrompt(ctx, sessionID, provider.TextPrompt(number)); err != nil {
		r.notify(ctx, a.ChannelID, turnErrorText(err))
	}
}

func (r *Router) handleYesNo(ctx context.Context, a chat.Action, rest string) {
	sessionID, answer, ok := strings.Cut(rest, ":")
	if !ok || (answer != "yes" && answer != "no") {
		return
	}
	if err := r.turns.RunPrompt(ctx, sessionID, provider.TextPrompt(answer)); err != nil {
		r.notify(ctx, a.ChannelID, turnErrorText(err))
	}
}

func (r *Router) handleMode(ctx context.Context, a chat.Action, rest string) {
	sessionID, mode, ok := strings.Cut(rest, ":")
	if !ok || !session.ValidMode(session.Mode(mode)) {
		return
	}
	if err := r.sessions.SetMode(sessionID, session.Mode(mode)); err != nil {
		r.notify(ctx, a.ChannelID, turnErrorText(err))
		return
	}
	if a.Handle == nil {
		return
	}
	msg := chat.Message{
		Content: "Mode set to **" + mode + "**.",
		Rows:    stream.ModeRow(sessionID, mode),
	}
	if err := a.Handle.Edit(ctx, msg); err != nil {
		r.logger.Warn("updating mode row failed", zap.Error(err))
	}
}

func (r *Router) handleAskPick(ctx context.Context, a chat.Action, rest string) {
	parts := strings.Split(rest, ":")
	if len(parts) < 2 {
		return
	}
	askID := parts[0]
	question, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}

	var optIndex int
	switch {
	case len(parts) >= 3:
		// Button click: the option index rides in the custom id.
		optIndex, err = strconv.Atoi(parts[2])
	case len(a.Values) > 0:
		// Menu selection: the option index rides in the selected value.
		optIndex, err = strconv.Atoi(a.Values[0])
	default:
		return
	}
	if err != nil {
		return
	}

	answer, ok := r.asks.option(askID, question, optIndex)
	if !ok {
		r.notify(ctx, a.ChannelID, "That question is no longer pending.")
		return
	}
	p, recorded, completed := r.asks.record(askID, question, answer)
	if !recorded {
		r.notify(ctx, a.ChannelID, "That question is no longer pending.")
		return
	}

	if a.Handle != nil {
		text := p.ev.Questions[question].Text
		msg := chat.Message{Content: "❓ **" + text + "**\n➡️ " + answer}
		if err := a.Handle.Edit(ctx, msg); err != nil {
			r.logger.Warn("updating answered question failed", zap.Error(err))
		}
	}
	if completed {
		r.deliver(ctx, a.ChannelID, p)
	}
}

func (r *Router) handleAskSubmit(ctx context.Context, a chat.Action, askID string) {
	p, ok := r.asks.submit(askID)
	if !ok {
		r.notify(ctx, a.ChannelID, "That question is no longer pending.")
		return
	}
	r.deliver(ctx, a.ChannelID, p)
}

// deliver routes a completed answer set back to its turn: through the live
// reply channel when the turn is still blocked on it, as a fresh prompt
// otherwise.
func (r *Router) deliver(ctx context.Context, channelID string, p *pendingAsk) {
	if p.ev.Reply != nil {
		select {
		case p.ev.Reply <- p.answerMap():
		default:
			r.logger.Warn("reply channel refused answers", zap.String("session", p.sessionID))
		}
		return
	}
	if err := r.turns.RunPrompt(ctx, p.sessionID, provider.TextPrompt(p.answerText())); err != nil {
		r.notify(ctx, channelID, turnErrorText(err))
	}
}

func (r *Router) notify(ctx context.Context, channelID, text string) {
	if _, err := r.msgr.Send(ctx, channelID, chat.Message{Content: text}); err != nil {
		r.logger.Warn("notify failed", zap.Error(err))
	}
}

// turnErrorText maps turn errors to user-facing text.
func turnErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "Session not found."
	case errors.Is(err, session.ErrGenerating):
		return "A turn is already running; stop it first."
	case errors.Is(err, provider.ErrNoContinue):
		return "This backend cannot continue a previous session."
	default:
		return "⚠️ " + err.Error()
	}
}
