package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/radu2lupu/agentcord/chat"
	"github.com/radu2lupu/agentcord/provider"
)

// alwaysVisibleTools are rendered regardless of the verbose flag.
var alwaysVisibleTools = map[string]bool{
	"TodoWrite":       true,
	"Task":            true,
	"ExitPlanMode":    true,
	"AskUserQuestion": true,
}

// previewLimit bounds inline tool payloads before they go behind an expand
// control.
const previewLimit = 300

// menuThreshold is the option count above which a question renders as a
// selection menu instead of buttons.
const menuThreshold = 4

func stopRow(sessionID string) []chat.Row {
	return []chat.Row{{Buttons: []chat.Button{{
		Label:    "Stop",
		CustomID: "stop:" + sessionID,
		Style:    chat.StyleDanger,
	}}}}
}

func (s *Streamer) toolVisible(name string) bool {
	return s.cfg.Verbose || alwaysVisibleTools[name]
}

func (s *Streamer) renderToolStart(ctx context.Context, e provider.ToolStartEvent) {
	if !s.toolVisible(e.Name) {
		return
	}
	msg := chat.Message{Content: "🔧 **" + e.Name + "**"}
	if len(e.Input) > 0 {
		payload, err := json.MarshalIndent(e.Input, "", "  ")
		if err != nil {
			payload = []byte(fmt.Sprint(e.Input))
		}
		s.attachPayload(&msg, "Input", string(payload))
	}
	s.send(ctx, msg)
}

func (s *Streamer) renderToolResult(ctx context.Context, e provider.ToolResultEvent) {
	if !s.toolVisible(e.Name) {
		return
	}
	icon := "✅"
	if e.IsError {
		icon = "❌"
	}
	name := e.Name
	if name == "" {
		name = "tool"
	}
	msg := chat.Message{Content: icon + " **" + name + "**"}
	if text := resultText(e.Content); text != "" {
		s.attachPayload(&msg, "Result", text)
	}
	s.send(ctx, msg)
}

// attachPayload inlines small payloads as a code block and parks oversized
// ones behind an expand control.
func (s *Streamer) attachPayload(msg *chat.Message, label, payload string) {
	if len(payload) <= previewLimit {
		msg.Content += "\n```\n" + payload + "\n```"
		return
	}
	id := s.contents.Put(payload)
	msg.Content += "\n```\n" + truncate(payload, previewLimit) + "\n```"
	msg.Rows = append(msg.Rows, chat.Row{Buttons: []chat.Button{{
		Label:    "Show full " + strings.ToLower(label),
		CustomID: "expand:" + id,
	}}})
}

// resultText flattens a tool result payload to displayable text.
func resultText(content interface{}) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// taskSymbols maps task statuses to board symbols.
var taskSymbols = map[provider.TaskStatus]string{
	provider.TaskStatusPending:    "⬜",
	provider.TaskStatusInProgress: "🔄",
	provider.TaskStatusCompleted:  "✅",
	provider.TaskStatusFailed:     "❌",
}

func taskSymbol(status provider.TaskStatus) string {
	if sym, ok := taskSymbols[status]; ok {
		return sym
	}
	return "⬜"
}

// renderTask upserts one entry of the task board and re-renders it in
// place.
func (s *Streamer) renderTask(ctx context.Context, e provider.TaskEvent) {
	s.mu.Lock()
	replaced := false
	for i, task := range s.tasks {
		if task.ID == e.ID {
			s.tasks[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		s.tasks = append(s.tasks, e)
	}
	lines := make([]string, 0, len(s.tasks))
	for _, task := range s.tasks {
		lines = append(lines, taskSymbol(task.Status)+" "+task.Subject)
	}
	s.mu.Unlock()

	s.renderBoard(ctx, lines)
}

// renderTodoList replaces the board with a todo snapshot.
func (s *Streamer) renderTodoList(ctx context.Context, e provider.TodoListEvent) {
	lines := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		lines = append(lines, taskSymbol(item.Status)+" "+item.Content)
	}
	s.renderBoard(ctx, lines)
}

func (s *Streamer) renderBoard(ctx context.Context, lines []string) {
	content := "📋 **Tasks**\n" + truncate(strings.Join(lines, "\n"), messageCapacity-20)
	msg := chat.Message{Content: content}

	s.mu.Lock()
	board := s.board
	s.mu.Unlock()

	if board != nil {
		if err := board.Edit(ctx, msg); err == nil {
			return
		}
		// Deleted out-of-band; fall through to a fresh message.
	}
	h, err := s.msgr.Send(ctx, s.cfg.ChannelID, msg)
	if err != nil {
		s.logger.Warn("sending task board failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.board = h
	s.mu.Unlock()
}

// renderCommand renders a shell command lifecycle: the start message is
// edited in place when completion arrives.
func (s *Streamer) renderCommand(ctx context.Context, e provider.CommandEvent) {
	switch e.Phase {
	case provider.CommandStarted:
		msg := chat.Message{Content: "⚙️ Running `" + truncate(e.Command, 200) + "`"}
		h, err := s.msgr.Send(ctx, s.cfg.ChannelID, msg)
		if err != nil {
			s.logger.Warn("sending command failed", zap.Error(err))
			return
		}
		s.mu.Lock()
		s.lastCmd = h
		s.lastCmdStr = e.Command
		s.mu.Unlock()

	case provider.CommandFinished:
		icon := "✅"
		if e.ExitCode != 0 {
			icon = "❌"
		}
		command := e.Command
		s.mu.Lock()
		handle := s.lastCmd
		if command == "" {
			command = s.lastCmdStr
		}
		s.lastCmd = nil
		s.lastCmdStr = ""
		s.mu.Unlock()

		msg := chat.Message{Content: fmt.Sprintf("%s `%s` (exit %d, %s)",
			icon, truncate(command, 200), e.ExitCode, formatDuration(e.DurationMs))}
		if out := strings.TrimSpace(e.Output); out != "" {
			s.attachPayload(&msg, "Output", out)
		}
		if handle != nil {
			if err := handle.Edit(ctx, msg); err == nil {
				return
			}
		}
		s.send(ctx, msg)
	}
}

func (s *Streamer) renderFileChange(ctx context.Context, e provider.FileChangeEvent) {
	icons := map[provider.FileChangeKind]string{
		provider.FileChangeAdd:    "🆕",
		provider.FileChangeUpdate: "📝",
		provider.FileChangeDelete: "🗑️",
	}
	icon, ok := icons[e.Kind]
	if !ok {
		icon = "📝"
	}
	msg := chat.Message{Content: icon + " " + string(e.Kind) + " `" + e.Path + "`"}
	if e.Diff != "" {
		s.attachPayload(&msg, "Diff", e.Diff)
	}
	s.send(ctx, msg)
}

func (s *Streamer) renderImageFile(ctx context.Context, e provider.ImageFileEvent) {
	s.send(ctx, chat.Message{Content: "🖼️ Image written to `" + e.Path + "`"})
}

// renderAskUser renders a structured question set. Few options become
// buttons, many become a selection menu. Answers are collected by the ask
// sink; once every question has one the set is submitted (single-question
// sets therefore submit immediately).
func (s *Streamer) renderAskUser(ctx context.Context, e provider.AskUserEvent) {
	askID := s.asks.Register(s.cfg.SessionID, e)
	for qi, q := range e.Questions {
		content := "❓ **" + q.Text + "**"
		if q.Header != "" {
			content = "❓ **" + q.Header + "**\n" + q.Text
		}
		msg := chat.Message{Content: content}

		if len(q.Options) > menuThreshold {
			options := make([]chat.SelectOption, 0, len(q.Options))
			for oi, opt := range q.Options {
				options = append(options, chat.SelectOption{
					Label: truncate(opt, 100),
					Value: strconv.Itoa(oi),
				})
			}
			msg.Rows = append(msg.Rows, chat.Row{Menu: &chat.SelectMenu{
				CustomID:    fmt.Sprintf("askpick:%s:%d", askID, qi),
				Placeholder: "Choose an answer",
				Options:     options,
			}})
		} else {
			var row chat.Row
			for oi, opt := range q.Options {
				row.Buttons = append(row.Buttons, chat.Button{
					Label:    truncate(opt, 80),
					CustomID: fmt.Sprintf("askpick:%s:%d:%d", askID, qi, oi),
				})
			}
			msg.Rows = append(msg.Rows, row)
		}

		// The last question carries an early-submit control for multi
		// question sets; unanswered questions submit as placeholders.
		if qi == len(e.Questions)-1 && len(e.Questions) > 1 {
			msg.Rows = append(msg.Rows, chat.Row{Buttons: []chat.Button{{
				Label:    "Submit answers",
				CustomID: "asksubmit:" + askID,
				Style:    chat.StylePrimary,
			}}})
		}
		s.send(ctx, msg)
	}
}

func (s *Streamer) send(ctx context.Context, msg chat.Message) {
	if _, err := s.msgr.Send(ctx, s.cfg.ChannelID, msg); err != nil {
		s.logger.Warn("send failed", zap.Error(err))
	}
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
