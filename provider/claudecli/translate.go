package claudecli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/radu2lupu/agentcord/provider"
)

// askUserTool is the tool the adapter intercepts and answers itself instead
// of letting the CLI block on it.
const askUserTool = "AskUserQuestion"

// translator maps native protocol messages to provider events. It keeps
// per-turn state: which tool ids map to which names (tool results carry only
// the id), whether streaming deltas were seen (complete assistant messages
// then repeat the same text and are skipped), and which tool calls wrote
// image files.
type translator struct {
	toolNames  map[string]string
	imageTools map[string]string
	lastAskID  string
	sawDeltas  bool
}

func newTranslator() *translator {
	return &translator{
		toolNames:  make(map[string]string),
		imageTools: make(map[string]string),
	}
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// translate converts one native message into zero or more provider events.
func (t *translator) translate(msg message) []provider.Event {
	switch m := msg.(type) {
	case systemMessage:
		if m.Subtype != "init" {
			return nil
		}
		return []provider.Event{provider.SessionInitEvent{
			ResumeToken: m.SessionID,
			Model:       m.Model,
		}}

	case streamEvent:
		delta, ok := parseStreamDelta(m.Event)
		if !ok {
			return nil
		}
		t.sawDeltas = true
		if delta.Thinking != "" {
			return []provider.Event{provider.ReasoningEvent{Text: delta.Thinking}}
		}
		if delta.Text != "" {
			return []provider.Event{provider.TextEvent{Text: delta.Text}}
		}
		return nil

	case assistantMessage:
		var events []provider.Event
		for _, block := range m.Message.Content.blocks() {
			events = append(events, t.translateAssistantBlock(block)...)
		}
		return events

	case userMessage:
		var events []provider.Event
		for _, block := range m.Message.Content.blocks() {
			if block.Type != "tool_result" {
				continue
			}
			events = append(events, t.translateToolResult(block)...)
		}
		return events

	case resultMessage:
		result := provider.ResultEvent{
			Success:    !m.IsError,
			CostUSD:    m.TotalCostUSD,
			DurationMs: m.DurationMs,
			NumTurns:   m.NumTurns,
		}
		if m.IsError && m.Result != "" {
			result.Errors = []string{m.Result}
		}
		return []provider.Event{result}
	}
	return nil
}

func (t *translator) translateAssistantBlock(block contentBlock) []provider.Event {
	switch block.Type {
	case "text":
		// Deltas already streamed this text incrementally.
		if t.sawDeltas {
			return nil
		}
		if block.Text == "" {
			return nil
		}
		return []provider.Event{provider.TextEvent{Text: block.Text}}

	case "thinking":
		if t.sawDeltas || block.Thinking == "" {
			return nil
		}
		return []provider.Event{provider.ReasoningEvent{Text: block.Thinking}}

	case "tool_use":
		t.toolNames[block.ID] = block.Name
		switch block.Name {
		case "TodoWrite":
			return translateTodoWrite(block.Input)
		case askUserTool:
			t.lastAskID = block.ID
			return []provider.Event{provider.AskUserEvent{
				Questions: parseQuestions(block.Input),
			}}
		}
		if path := writtenImagePath(block.Name, block.Input); path != "" {
			t.imageTools[block.ID] = path
		}
		return []provider.Event{provider.ToolStartEvent{
			ID:    block.ID,
			Name:  block.Name,
			Input: block.Input,
		}}
	}
	return nil
}

func (t *translator) translateToolResult(block contentBlock) []provider.Event {
	isError := block.IsError != nil && *block.IsError
	events := []provider.Event{provider.ToolResultEvent{
		ID:      block.ToolUseID,
		Name:    t.toolNames[block.ToolUseID],
		Content: block.Content,
		IsError: isError,
	}}
	if path, ok := t.imageTools[block.ToolUseID]; ok && !isError {
		events = append(events, provider.ImageFileEvent{Path: path})
	}
	return events
}

// writtenImagePath reports the image path a Write tool call is producing,
// or "" when the call is not an image write.
func writtenImagePath(tool string, input map[string]interface{}) string {
	if tool != "Write" {
		return ""
	}
	path, _ := input["file_path"].(string)
	if path == "" {
		return ""
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
		return ""
	}
	return path
}

func translateTodoWrite(input map[string]interface{}) []provider.Event {
	rawTodos, _ := input["todos"].([]interface{})
	if len(rawTodos) == 0 {
		return nil
	}
	event := provider.TodoListEvent{}
	for _, raw := range rawTodos {
		item, _ := raw.(map[string]interface{})
		if item == nil {
			continue
		}
		content, _ := item["content"].(string)
		status, _ := item["status"].(string)
		event.Items = append(event.Items, provider.TodoItem{
			Content: content,
			Status:  provider.TaskStatus(status),
		})
	}
	if len(event.Items) == 0 {
		return nil
	}
	return []provider.Event{event}
}

// parseQuestions extracts structured questions from an ask-user tool input.
func parseQuestions(input map[string]interface{}) []provider.Question {
	rawQuestions, _ := input["questions"].([]interface{})
	var questions []provider.Question
	for _, raw := range rawQuestions {
		m, _ := raw.(map[string]interface{})
		if m == nil {
			continue
		}
		q := provider.Question{}
		q.Text, _ = m["question"].(string)
		q.Header, _ = m["header"].(string)
		q.MultiSelect, _ = m["multiSelect"].(bool)
		rawOptions, _ := m["options"].([]interface{})
		for _, rawOpt := range rawOptions {
			switch opt := rawOpt.(type) {
			case string:
				q.Options = append(q.Options, opt)
			case map[string]interface{}:
				if label, ok := opt["label"].(string); ok {
					q.Options = append(q.Options, label)
				}
			}
		}
		if q.Text != "" {
			questions = append(questions, q)
		}
	}
	return questions
}

// formatAnswers renders collected answers as the tool result payload the CLI
// expects back for an ask-user call.
func formatAnswers(questions []provider.Question, answers map[string]string) string {
	var b strings.Builder
	for i, q := range questions {
		if i > 0 {
			b.WriteString("\n")
		}
		answer := answers[q.Text]
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "%s: %s", q.Text, answer)
	}
	return b.String()
}
