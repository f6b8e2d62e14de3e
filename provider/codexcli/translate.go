package codexcli

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/radu2lupu/agentcord/provider"
)

// translateNotification converts one server notification into provider
// events. Unknown methods return nil.
func translateNotification(n rpcNotification) []provider.Event {
	switch n.Method {
	case notifyAgentMessageDelta:
		var notif agentMessageDeltaNotification
		if err := json.Unmarshal(n.Params, &notif); err != nil || notif.Delta == "" {
			return nil
		}
		return []provider.Event{provider.TextEvent{Text: notif.Delta}}

	case notifyReasoningDelta:
		var notif reasoningDeltaNotification
		if err := json.Unmarshal(n.Params, &notif); err != nil || notif.Delta == "" {
			return nil
		}
		return []provider.Event{provider.ReasoningEvent{Text: notif.Delta}}

	case notifyExecBegin:
		var notif codexEventNotification
		if err := json.Unmarshal(n.Params, &notif); err != nil {
			return nil
		}
		var msg execCommandBeginMsg
		if err := json.Unmarshal(notif.Msg, &msg); err != nil {
			return nil
		}
		return []provider.Event{provider.CommandEvent{
			Phase:   provider.CommandStarted,
			Command: commandText(msg.ParsedCmd, msg.Command),
		}}

	case notifyExecEnd:
		var notif codexEventNotification
		if err := json.Unmarshal(n.Params, &notif); err != nil {
			return nil
		}
		var msg execCommandEndMsg
		if err := json.Unmarshal(notif.Msg, &msg); err != nil {
			return nil
		}
		output := msg.Stdout
		if msg.ExitCode != 0 && strings.TrimSpace(msg.Stderr) != "" {
			output = msg.Stderr
		}
		return []provider.Event{provider.CommandEvent{
			Phase:      provider.CommandFinished,
			Command:    commandText(msg.ParsedCmd, msg.Command),
			Output:     output,
			ExitCode:   msg.ExitCode,
			DurationMs: msg.Duration.Secs*1000 + msg.Duration.Nanos/1000000,
		}}

	case notifyPatchApplyBegin:
		var notif codexEventNotification
		if err := json.Unmarshal(n.Params, &notif); err != nil {
			return nil
		}
		var msg patchApplyBeginMsg
		if err := json.Unmarshal(notif.Msg, &msg); err != nil {
			return nil
		}
		var events []provider.Event
		for path, change := range msg.Changes {
			events = append(events, provider.FileChangeEvent{
				Path: path,
				Kind: changeKind(change),
			})
		}
		return events

	case notifyPlanUpdate:
		var notif codexEventNotification
		if err := json.Unmarshal(n.Params, &notif); err != nil {
			return nil
		}
		var msg planUpdateMsg
		if err := json.Unmarshal(notif.Msg, &msg); err != nil {
			return nil
		}
		var events []provider.Event
		for i, item := range msg.Plan {
			events = append(events, provider.TaskEvent{
				ID:      strconv.Itoa(i + 1),
				Subject: item.Step,
				Status:  planStatus(item.Status),
			})
		}
		return events

	case notifyProtocolError:
		var notif codexEventNotification
		if err := json.Unmarshal(n.Params, &notif); err != nil {
			return nil
		}
		return []provider.Event{provider.ErrorEvent{
			Err:     protocolError(notif.Msg),
			Context: "codex event",
		}}
	}
	return nil
}

// translateItemCompleted surfaces the full text of a finished agent message.
// Turns that streamed deltas already delivered the text piecemeal, so the
// fallback only fires when no delta was seen.
func translateItemCompleted(n rpcNotification, sawDelta bool) []provider.Event {
	var notif itemCompletedNotification
	if err := json.Unmarshal(n.Params, &notif); err != nil {
		return nil
	}
	if sawDelta || notif.Item.Type != "agentMessage" || notif.Item.Text == "" {
		return nil
	}
	return []provider.Event{provider.TextEvent{Text: notif.Item.Text}}
}

// changeKind maps a patch change payload to a file change kind. The payload
// is an object with a single key naming the change type.
func changeKind(change json.RawMessage) provider.FileChangeKind {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(change, &keyed); err != nil {
		return provider.FileChangeUpdate
	}
	for key := range keyed {
		switch key {
		case "add":
			return provider.FileChangeAdd
		case "delete":
			return provider.FileChangeDelete
		}
	}
	return provider.FileChangeUpdate
}

// planStatus normalizes plan item statuses to the task vocabulary.
func planStatus(status string) provider.TaskStatus {
	switch status {
	case "completed":
		return provider.TaskStatusCompleted
	case "in_progress":
		return provider.TaskStatusInProgress
	default:
		return provider.TaskStatusPending
	}
}

func commandText(parsed []parsedCmd, command []string) string {
	if len(parsed) > 0 && strings.TrimSpace(parsed[0].Cmd) != "" {
		return strings.TrimSpace(parsed[0].Cmd)
	}
	return strings.TrimSpace(strings.Join(command, " "))
}

func protocolError(raw json.RawMessage) error {
	var msg protocolErrorMsg
	if err := json.Unmarshal(raw, &msg); err == nil {
		if text := strings.TrimSpace(msg.Message); text != "" {
			return errors.New(text)
		}
		if text := strings.TrimSpace(msg.Type); text != "" {
			return errors.New(text)
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		text = "provider error"
	}
	return errors.New(text)
}
