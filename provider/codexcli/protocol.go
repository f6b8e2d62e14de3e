package codexcli

import "encoding/json"

// Client-sent methods.
const (
	methodInitialize   = "initialize"
	methodThreadStart  = "thread/start"
	methodThreadResume = "thread/resume"
	methodTurnStart    = "turn/start"
	methodTurnAbort    = "turn/interrupt"
)

// Server notifications.
const (
	notifyAgentMessageDelta = "item/agentMessage/delta"
	notifyReasoningDelta    = "item/reasoning/summaryTextDelta"
	notifyItemCompleted     = "item/completed"
	notifyTurnCompleted     = "turn/completed"
	notifyExecBegin         = "codex/event/exec_command_begin"
	notifyExecEnd           = "codex/event/exec_command_end"
	notifyPatchApplyBegin   = "codex/event/patch_apply_begin"
	notifyPlanUpdate        = "codex/event/plan_update"
	notifyProtocolError     = "codex/event/error"
)

// Server-to-client approval requests.
const (
	requestExecApproval  = "item/commandExecution/requestApproval"
	requestPatchApproval = "item/fileChange/requestApproval"
)

type initializeParams struct {
	ClientInfo clientInfo `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	UserAgent string `json:"userAgent"`
}

type threadStartParams struct {
	CWD   string `json:"cwd"`
	Model string `json:"model,omitempty"`
}

type threadResumeParams struct {
	ThreadID string `json:"threadId"`
	CWD      string `json:"cwd"`
	Model    string `json:"model,omitempty"`
}

type threadResult struct {
	ThreadID string `json:"threadId"`
	Model    string `json:"model"`
}

// inputItem is one element of a turn's input.
type inputItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// sandboxPolicy controls the filesystem and network sandbox for a turn.
type sandboxPolicy struct {
	Mode          string `json:"mode"`
	NetworkAccess bool   `json:"networkAccess"`
}

type turnStartParams struct {
	ThreadID       string        `json:"threadId"`
	Input          []inputItem   `json:"input"`
	CWD            string        `json:"cwd,omitempty"`
	Model          string        `json:"model,omitempty"`
	ApprovalPolicy string        `json:"approvalPolicy,omitempty"`
	SandboxPolicy  sandboxPolicy `json:"sandboxPolicy"`
}

type turnStartResult struct {
	TurnID string `json:"turnId"`
}

type turnInterruptParams struct {
	ThreadID string `json:"threadId"`
}

// agentMessageDeltaNotification streams assistant text.
type agentMessageDeltaNotification struct {
	ThreadID string `json:"threadId"`
	TurnID   string `json:"turnId"`
	ItemID   string `json:"itemId"`
	Delta    string `json:"delta"`
}

// reasoningDeltaNotification streams reasoning summary text.
type reasoningDeltaNotification struct {
	ThreadID string `json:"threadId"`
	Delta    string `json:"delta"`
}

// itemCompletedNotification carries a finished item in full. Only agent
// messages are interesting: some turns deliver the final text here without
// streaming any deltas first.
type itemCompletedNotification struct {
	ThreadID string `json:"threadId"`
	Item     struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
}

// turnCompletedNotification signals the end of a turn.
type turnCompletedNotification struct {
	ThreadID string `json:"threadId"`
	Turn     struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"turn"`
}

// codexEventNotification wraps legacy-namespace events: the payload shape
// depends on the method.
type codexEventNotification struct {
	ConversationID string          `json:"conversationId"`
	Msg            json.RawMessage `json:"msg"`
}

type parsedCmd struct {
	Cmd string `json:"cmd"`
}

type execCommandBeginMsg struct {
	TurnID    string      `json:"turn_id"`
	CallID    string      `json:"call_id"`
	CWD       string      `json:"cwd"`
	Command   []string    `json:"command"`
	ParsedCmd []parsedCmd `json:"parsed_cmd"`
}

type execCommandEndMsg struct {
	TurnID    string      `json:"turn_id"`
	CallID    string      `json:"call_id"`
	Command   []string    `json:"command"`
	ParsedCmd []parsedCmd `json:"parsed_cmd"`
	Stdout    string      `json:"stdout"`
	Stderr    string      `json:"stderr"`
	ExitCode  int         `json:"exit_code"`
	Duration  struct {
		Secs  int64 `json:"secs"`
		Nanos int64 `json:"nanos"`
	} `json:"duration"`
}

// patchApplyBeginMsg announces file changes about to be applied, keyed by
// path.
type patchApplyBeginMsg struct {
	CallID  string                     `json:"call_id"`
	Changes map[string]json.RawMessage `json:"changes"`
}

// planUpdateMsg carries the agent's current task plan.
type planUpdateMsg struct {
	Plan []struct {
		Step   string `json:"step"`
		Status string `json:"status"`
	} `json:"plan"`
}

type protocolErrorMsg struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
