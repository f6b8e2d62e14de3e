// Package stream renders a unified provider event stream into incrementally
// edited chat messages. Free text accumulates into one live draft message
// updated on a debounce interval; structured events (tools, questions, task
// boards, commands) each get their own message, and free text is settled
// before any of them renders so the two never interleave in one bubble.
package stream

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/chat"
	"github.com/radu2lupu/agentcord/provider"
)

// messageCapacity bounds a single outbound message's content.
const messageCapacity = 2000

// ContentStore keeps oversized text behind an opaque id so previews can
// defer full disclosure to an explicit expand action.
type ContentStore interface {
	Put(text string) string
}

// AskSink registers a pending ask-user event and returns its opaque id for
// control custom-ids. The sink owns answer collection and submission.
type AskSink interface {
	Register(sessionID string, ev provider.AskUserEvent) string
}

// Config are the per-turn rendering knobs.
type Config struct {
	ChannelID string
	SessionID string
	Mode      string

	// EditInterval is the debounce between draft edits.
	EditInterval time.Duration

	// Verbose reveals tool calls outside the always-visible allow-list,
	// plus reasoning.
	Verbose bool

	// OnReset clears the session's resume token. Called when a turn fails
	// for a reason that does not classify as an abort.
	OnReset func()
}

// Streamer renders one turn. Not safe for reuse across turns.
type Streamer struct {
	msgr     chat.Messenger
	logger   *zap.Logger
	contents ContentStore
	asks     AskSink
	cfg      Config

	mu   sync.Mutex
	cond *sync.Cond

	// Text draft state. text is the full live tail (overflow already
	// finalized into prior messages is trimmed off), dirty marks unflushed
	// appends, flushing guarantees at most one outbound edit in flight.
	text         string
	dirty        bool
	draft        chat.Handle
	timer        *time.Timer
	flushing     bool
	pendingFlush bool

	// lastText is the most recently settled text, used by the result
	// renderer's inline-prompt heuristics.
	lastText string

	reasoning strings.Builder

	board      chat.Handle
	tasks      []provider.TaskEvent
	lastCmd    chat.Handle
	lastCmdStr string

	runCtx context.Context
}

// New creates a streamer for one turn.
func New(msgr chat.Messenger, logger *zap.Logger, contents ContentStore, asks AskSink, cfg Config) *Streamer {
	if cfg.EditInterval <= 0 {
		cfg.EditInterval = 700 * time.Millisecond
	}
	s := &Streamer{
		msgr:     msgr,
		logger:   logger,
		contents: contents,
		asks:     asks,
		cfg:      cfg,
		runCtx:   context.Background(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Run consumes the whole event stream. It returns after the stream closes,
// with all pending output settled.
func (s *Streamer) Run(ctx context.Context, events <-chan provider.Event) {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	sawResult := false
	for ev := range events {
		s.handleEvent(ctx, ev)
		if ev.Type() == provider.EventTypeResult {
			sawResult = true
		}
	}
	if !sawResult {
		// Canceled or the adapter died without a result. Settle what we have.
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
	}
}

// AppendText buffers a text delta and schedules a flush. A flush in
// progress suppresses scheduling; exactly one more flush runs after it.
func (s *Streamer) AppendText(ctx context.Context, text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text += text
	s.dirty = true
	if s.flushing {
		s.pendingFlush = true
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.EditInterval, s.timerFired)
	}
}

func (s *Streamer) timerFired() {
	s.mu.Lock()
	s.timer = nil
	ctx := s.runCtx
	s.mu.Unlock()
	s.flush(ctx)
}

// flush performs one edit (or send) of the live draft. Overflow beyond one
// message's capacity is finalized into immutable prior messages first; only
// the tail stays live-editable.
func (s *Streamer) flush(ctx context.Context) {
	s.mu.Lock()
	if s.flushing {
		s.pendingFlush = true
		s.mu.Unlock()
		return
	}
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.dirty = false
	text := s.text
	draft := s.draft
	s.mu.Unlock()

	trimmed := 0
	for len(text) > messageCapacity {
		head, rest := splitMessage(text, messageCapacity)
		if draft != nil {
			if err := draft.Edit(ctx, chat.Message{Content: head}); err != nil {
				s.logger.Warn("finalizing overflow failed", zap.Error(err))
			}
			draft = nil
		} else if _, err := s.msgr.Send(ctx, s.cfg.ChannelID, chat.Message{Content: head}); err != nil {
			s.logger.Warn("sending overflow failed", zap.Error(err))
		}
		trimmed += len(head)
		text = rest
	}

	msg := chat.Message{Content: text, Rows: stopRow(s.cfg.SessionID)}
	if draft == nil {
		h, err := s.msgr.Send(ctx, s.cfg.ChannelID, msg)
		if err != nil {
			s.logger.Warn("sending draft failed", zap.Error(err))
		} else {
			draft = h
		}
	} else if err := draft.Edit(ctx, msg); err != nil {
		s.logger.Warn("editing draft failed", zap.Error(err))
		draft = nil
	}

	s.mu.Lock()
	s.draft = draft
	if trimmed > 0 && trimmed <= len(s.text) {
		s.text = s.text[trimmed:]
	}
	s.flushing = false
	again := s.pendingFlush
	s.pendingFlush = false
	s.cond.Broadcast()
	s.mu.Unlock()

	if again {
		s.flush(ctx)
	}
}

// FinalizeText settles the text draft: drains any pending timer, waits for
// an in-flight flush, performs one last flush and strips the draft's
// interactive controls. The draft message is inert afterwards.
func (s *Streamer) FinalizeText(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for s.flushing {
		s.cond.Wait()
	}
	text := s.text
	draft := s.draft
	s.text = ""
	s.dirty = false
	s.pendingFlush = false
	s.draft = nil
	if strings.TrimSpace(text) != "" {
		s.lastText = text
	}
	s.mu.Unlock()

	if draft == nil && strings.TrimSpace(text) == "" {
		return
	}

	for len(text) > messageCapacity {
		head, rest := splitMessage(text, messageCapacity)
		if draft != nil {
			if err := draft.Edit(ctx, chat.Message{Content: head}); err != nil {
				s.logger.Warn("finalizing overflow failed", zap.Error(err))
			}
			draft = nil
		} else if _, err := s.msgr.Send(ctx, s.cfg.ChannelID, chat.Message{Content: head}); err != nil {
			s.logger.Warn("sending overflow failed", zap.Error(err))
		}
		text = rest
	}

	final := chat.Message{Content: text}
	if draft != nil {
		if err := draft.Edit(ctx, final); err != nil {
			s.logger.Warn("finalizing draft failed", zap.Error(err))
		}
		return
	}
	if strings.TrimSpace(text) != "" {
		if _, err := s.msgr.Send(ctx, s.cfg.ChannelID, final); err != nil {
			s.logger.Warn("sending final text failed", zap.Error(err))
		}
	}
}

// DiscardText drops the pending draft instead of finalizing it, deleting
// the draft message if one was already sent. Used when a structured event
// must suppress speculative partial text.
func (s *Streamer) DiscardText(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for s.flushing {
		s.cond.Wait()
	}
	draft := s.draft
	s.text = ""
	s.dirty = false
	s.pendingFlush = false
	s.draft = nil
	s.mu.Unlock()

	if draft != nil {
		if err := draft.Delete(ctx); err != nil {
			s.logger.Warn("discarding draft failed", zap.Error(err))
		}
	}
}

// handleEvent dispatches one event. Structured events settle pending text
// before rendering their own message.
func (s *Streamer) handleEvent(ctx context.Context, ev provider.Event) {
	switch e := ev.(type) {
	case provider.TextEvent:
		s.flushReasoning(ctx)
		s.AppendText(ctx, e.Text)
	case provider.ReasoningEvent:
		if s.cfg.Verbose {
			s.reasoning.WriteString(e.Text)
		}
	case provider.ToolStartEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderToolStart(ctx, e)
	case provider.ToolResultEvent:
		s.flushReasoning(ctx)
		s.renderToolResult(ctx, e)
	case provider.AskUserEvent:
		s.flushReasoning(ctx)
		s.DiscardText(ctx)
		s.renderAskUser(ctx, e)
	case provider.TaskEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderTask(ctx, e)
	case provider.TodoListEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderTodoList(ctx, e)
	case provider.CommandEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderCommand(ctx, e)
	case provider.FileChangeEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderFileChange(ctx, e)
	case provider.ImageFileEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderImageFile(ctx, e)
	case provider.SessionInitEvent:
		// Registry side effect only; nothing to render.
	case provider.ResultEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderResult(ctx, e)
	case provider.ErrorEvent:
		s.flushReasoning(ctx)
		s.FinalizeText(ctx)
		s.renderStreamError(ctx, e)
	}
}

// flushReasoning settles accumulated reasoning into one dim message.
func (s *Streamer) flushReasoning(ctx context.Context) {
	s.mu.Lock()
	text := strings.TrimSpace(s.reasoning.String())
	s.reasoning.Reset()
	s.mu.Unlock()
	if text == "" {
		return
	}
	content := "💭 *" + truncate(text, messageCapacity-10) + "*"
	if _, err := s.msgr.Send(ctx, s.cfg.ChannelID, chat.Message{Content: content}); err != nil {
		s.logger.Warn("sending reasoning failed", zap.Error(err))
	}
}

// splitMessage splits text at or before limit, preferring a newline
// boundary in the second half of the window. Cuts land on rune boundaries
// so multibyte text never splits mid-rune.
func splitMessage(text string, limit int) (head, rest string) {
	if len(text) <= limit {
		return text, ""
	}
	cut := limit
	if idx := strings.LastIndexByte(text[:limit], '\n'); idx > limit/2 {
		cut = idx + 1
	} else {
		cut = runeBoundary(text, cut)
	}
	return text[:cut], text[cut:]
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:runeBoundary(text, limit-1)] + "…"
}

// runeBoundary backs a byte offset up to the start of the rune it lands in.
func runeBoundary(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
