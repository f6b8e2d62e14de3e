// Package claudecli adapts the terminal-integrated backend's stream-json CLI
// protocol to the unified provider event vocabulary. The CLI is spawned once
// per turn; it emits one JSON message per line on stdout and accepts user
// messages (including tool results for interactively-handled tools) on stdin.
package claudecli

import (
	"encoding/json"
	"fmt"
)

// messageType discriminates native protocol messages.
type messageType string

const (
	msgTypeSystem      messageType = "system"
	msgTypeAssistant   messageType = "assistant"
	msgTypeUser        messageType = "user"
	msgTypeResult      messageType = "result"
	msgTypeStreamEvent messageType = "stream_event"
)

// message is the interface for parsed native messages.
type message interface {
	msgType() messageType
}

// systemMessage carries session initialization and system events.
type systemMessage struct {
	Type      messageType `json:"type"`
	Subtype   string      `json:"subtype"`
	SessionID string      `json:"session_id"`
	Model     string      `json:"model,omitempty"`
	CWD       string      `json:"cwd,omitempty"`
	Tools     []string    `json:"tools,omitempty"`
}

func (m systemMessage) msgType() messageType { return msgTypeSystem }

// contentBlock is one element of an assistant or user message body.
type contentBlock struct {
	Input     map[string]interface{} `json:"input,omitempty"`
	Content   interface{}            `json:"content,omitempty"`
	IsError   *bool                  `json:"is_error,omitempty"`
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	Thinking  string                 `json:"thinking,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
}

// flexibleContent is either a bare string or an array of content blocks.
type flexibleContent struct {
	raw json.RawMessage
}

func (fc *flexibleContent) UnmarshalJSON(data []byte) error {
	fc.raw = data
	return nil
}

func (fc flexibleContent) blocks() []contentBlock {
	if len(fc.raw) == 0 || fc.raw[0] == '"' {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(fc.raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

// messageBody is the inner message of assistant/user envelopes.
type messageBody struct {
	Role    string          `json:"role"`
	Content flexibleContent `json:"content"`
}

// assistantMessage is a complete assistant message.
type assistantMessage struct {
	Type      messageType `json:"type"`
	SessionID string      `json:"session_id"`
	Message   messageBody `json:"message"`
}

func (m assistantMessage) msgType() messageType { return msgTypeAssistant }

// userMessage carries tool results the CLI executed itself.
type userMessage struct {
	Type      messageType `json:"type"`
	SessionID string      `json:"session_id"`
	Message   messageBody `json:"message"`
}

func (m userMessage) msgType() messageType { return msgTypeUser }

// resultMessage contains turn completion metrics.
type resultMessage struct {
	Type         messageType `json:"type"`
	Subtype      string      `json:"subtype"`
	SessionID    string      `json:"session_id"`
	Result       string      `json:"result"`
	TotalCostUSD float64     `json:"total_cost_usd"`
	DurationMs   int64       `json:"duration_ms"`
	NumTurns     int         `json:"num_turns"`
	IsError      bool        `json:"is_error"`
}

func (m resultMessage) msgType() messageType { return msgTypeResult }

// streamEvent wraps incremental streaming updates.
type streamEvent struct {
	Type      messageType     `json:"type"`
	SessionID string          `json:"session_id"`
	Event     json.RawMessage `json:"event"`
}

func (m streamEvent) msgType() messageType { return msgTypeStreamEvent }

// streamDelta is the subset of stream_event payloads the adapter consumes:
// content block deltas carrying text or thinking.
type streamDelta struct {
	Text     string
	Thinking string
}

// parseStreamDelta extracts text/thinking deltas from a stream_event payload.
// Non-delta events (block start/stop, message lifecycle) return (zero, false).
func parseStreamDelta(event json.RawMessage) (streamDelta, bool) {
	var outer struct {
		Type  string `json:"type"`
		Delta struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			Thinking string `json:"thinking"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(event, &outer); err != nil {
		return streamDelta{}, false
	}
	if outer.Type != "content_block_delta" {
		return streamDelta{}, false
	}
	switch outer.Delta.Type {
	case "text_delta":
		return streamDelta{Text: outer.Delta.Text}, true
	case "thinking_delta":
		return streamDelta{Thinking: outer.Delta.Thinking}, true
	}
	return streamDelta{}, false
}

// parseMessage parses one JSON line into a typed native message. Unknown
// message types return (nil, nil) and are skipped.
func parseMessage(line []byte) (message, error) {
	var base struct {
		Type messageType `json:"type"`
	}
	if err := json.Unmarshal(line, &base); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	switch base.Type {
	case msgTypeSystem:
		var m systemMessage
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		return m, nil
	case msgTypeAssistant:
		var m assistantMessage
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		return m, nil
	case msgTypeUser:
		var m userMessage
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		return m, nil
	case msgTypeResult:
		var m resultMessage
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		return m, nil
	case msgTypeStreamEvent:
		var m streamEvent
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, nil
	}
}

// userMessageToSend is the outbound user message envelope.
type userMessageToSend struct {
	Message struct {
		Role    string      `json:"role"`
		Content interface{} `json:"content"`
	} `json:"message"`
	Type string `json:"type"`
}

// newUserMessage builds an outbound user message with the given content,
// which is either a string or a slice of content block maps.
func newUserMessage(content interface{}) userMessageToSend {
	var m userMessageToSend
	m.Type = "user"
	m.Message.Role = "user"
	m.Message.Content = content
	return m
}

// newToolResultMessage builds an outbound tool_result reply for a tool the
// adapter handled locally (ask-user questions).
func newToolResultMessage(toolUseID, content string) userMessageToSend {
	return newUserMessage([]interface{}{
		map[string]interface{}{
			"type":        "tool_result",
			"tool_use_id": toolUseID,
			"content":     content,
		},
	})
}
