package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/radu2lupu/agentcord/chat"
	"github.com/radu2lupu/agentcord/provider"
)

// maxSummaryErrors bounds how many failure messages are shown inline.
const maxSummaryErrors = 3

// renderResult closes the turn with a summary message. Successful turns get
// quick-reply controls derived from the final text; failed turns get the
// error list, and non-abort failures additionally clear the resume token so
// the next prompt starts a fresh backend session.
func (s *Streamer) renderResult(ctx context.Context, e provider.ResultEvent) {
	s.mu.Lock()
	lastText := s.lastText
	s.mu.Unlock()

	msg := chat.Message{
		Fields: []chat.Field{
			{Name: "Cost", Value: fmt.Sprintf("$%.4f", e.CostUSD)},
			{Name: "Duration", Value: formatDuration(e.DurationMs)},
			{Name: "Turns", Value: fmt.Sprintf("%d", e.NumTurns)},
			{Name: "Mode", Value: s.cfg.Mode},
		},
	}

	if e.Success {
		msg.Content = "Done."
		msg.Rows = s.replyRows(lastText)
		s.send(ctx, msg)
		return
	}

	var b strings.Builder
	b.WriteString("❌ Turn failed.")
	errs := e.Errors
	if len(errs) > maxSummaryErrors {
		errs = errs[:maxSummaryErrors]
	}
	for _, errMsg := range errs {
		b.WriteString("\n> " + truncate(errMsg, 200))
	}
	if !abortLike(e.Errors) {
		if s.cfg.OnReset != nil {
			s.cfg.OnReset()
		}
		b.WriteString("\nSession state was reset; the next prompt starts fresh.")
	}
	msg.Content = b.String()
	msg.Rows = s.modeRow()
	s.send(ctx, msg)
}

// renderStreamError reports a mid-stream failure. Abort-like errors come
// from deliberate stops and end quietly; anything else is surfaced and the
// resume token is cleared.
func (s *Streamer) renderStreamError(ctx context.Context, e provider.ErrorEvent) {
	text := e.Err.Error()
	if abortLike([]string{text}) {
		s.logger.Debug("stream stopped")
		return
	}
	if s.cfg.OnReset != nil {
		s.cfg.OnReset()
	}
	content := "⚠️ " + truncate(text, 300)
	if e.Context != "" {
		content += " (" + e.Context + ")"
	}
	content += "\nSession state was reset; the next prompt starts fresh."
	s.send(ctx, chat.Message{Content: content})
}

// replyRows builds the quick-reply controls for a completed turn: option
// buttons when the final text ends in a numbered list, yes/no when it reads
// like a confirmation question, and always the mode switcher row.
func (s *Streamer) replyRows(lastText string) []chat.Row {
	var rows []chat.Row

	if options := detectNumberedOptions(lastText); options != nil {
		var row chat.Row
		for _, opt := range options {
			if len(rows) >= 2 {
				break
			}
			row.Buttons = append(row.Buttons, chat.Button{
				Label:    truncate(opt.Number+". "+opt.Label, 80),
				CustomID: "option:" + s.cfg.SessionID + ":" + opt.Number,
			})
			if len(row.Buttons) == 5 {
				rows = append(rows, row)
				row = chat.Row{}
			}
		}
		if len(row.Buttons) > 0 && len(rows) < 2 {
			rows = append(rows, row)
		}
	} else if looksLikeYesNo(lastText) {
		rows = append(rows, chat.Row{Buttons: []chat.Button{
			{Label: "Yes", CustomID: "yesno:" + s.cfg.SessionID + ":yes", Style: chat.StyleSuccess},
			{Label: "No", CustomID: "yesno:" + s.cfg.SessionID + ":no", Style: chat.StyleDanger},
		}})
	}

	return append(rows, s.modeRow()...)
}

func (s *Streamer) modeRow() []chat.Row {
	return ModeRow(s.cfg.SessionID, s.cfg.Mode)
}

// ModeRow is the persistent turn footer: mode switch buttons with the
// active mode disabled, plus a continue control.
func ModeRow(sessionID, current string) []chat.Row {
	row := chat.Row{}
	for _, mode := range []string{"auto", "plan", "normal"} {
		label := strings.ToUpper(mode[:1]) + mode[1:]
		row.Buttons = append(row.Buttons, chat.Button{
			Label:    label,
			CustomID: "mode:" + sessionID + ":" + mode,
			Disabled: mode == current,
		})
	}
	row.Buttons = append(row.Buttons, chat.Button{
		Label:    "Continue",
		CustomID: "continue:" + sessionID,
		Style:    chat.StylePrimary,
	})
	return []chat.Row{row}
}
