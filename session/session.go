// Package session holds the in-memory session registry, the single source of
// truth for conversation state: which directory and backend each session is
// bound to, whether a generation is in flight, and the backend resume token
// that makes a session survive process restarts.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode is the behavioral policy overlay injected into the system prompt.
type Mode string

const (
	// ModeAuto lets the agent act without extra constraints.
	ModeAuto Mode = "auto"
	// ModePlan forces a plan-then-confirm workflow.
	ModePlan Mode = "plan"
	// ModeNormal requires confirmation before destructive operations.
	ModeNormal Mode = "normal"
)

// ValidMode reports whether m is a known mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeAuto, ModePlan, ModeNormal:
		return true
	}
	return false
}

// constraint returns the system-prompt fragment a mode injects. Auto mode
// injects nothing.
func (m Mode) constraint() string {
	switch m {
	case ModePlan:
		return "Before making any changes, present a concise plan of the steps you intend to take and wait for the user to confirm it. Do not modify files or run state-changing commands until the plan is approved."
	case ModeNormal:
		return "Ask the user for confirmation before any destructive or hard-to-reverse operation (deleting files, force-pushing, dropping data). Routine reads and edits do not need confirmation."
	}
	return ""
}

// placeholderPrefix marks channel ids that have no durable destination yet.
// Sessions with a placeholder channel are never indexed by channel and never
// persisted. An empty channel id is different: the session is durable but
// not yet linked to a channel (recovered orphans start this way).
const placeholderPrefix = "pending:"

// PlaceholderChannel returns a fresh placeholder channel id.
func PlaceholderChannel() string {
	return placeholderPrefix + uuid.NewString()
}

// IsPlaceholderChannel reports whether the channel id is a placeholder.
func IsPlaceholderChannel(channelID string) bool {
	return strings.HasPrefix(channelID, placeholderPrefix)
}

// Session is one conversation thread bound to a working directory and a
// backend provider. Mutations go through the Registry, which owns locking
// and persistence.
type Session struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
	Directory string `json:"directory"`
	Provider  string `json:"provider"`

	// ProviderSessionID is the backend's opaque resume token. Empty means
	// the next turn starts a fresh backend session.
	ProviderSessionID string `json:"providerSessionId,omitempty"`

	Model        string `json:"model,omitempty"`
	Project      string `json:"project,omitempty"`
	Mode         Mode   `json:"mode"`
	Verbose      bool   `json:"verbose"`
	AgentPersona string `json:"agentPersona,omitempty"`

	// Policy knobs for sandboxed backends.
	SandboxMode    string `json:"sandboxMode,omitempty"`
	ApprovalPolicy string `json:"approvalPolicy,omitempty"`
	NetworkAccess  bool   `json:"networkAccess,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	MessageCount int       `json:"messageCount"`
	TotalCost    float64   `json:"totalCost"`

	// IsGenerating is the single-flight flag. Only the Registry touches it.
	IsGenerating bool `json:"-"`
}

// clone returns a copy safe to hand to callers outside the registry lock.
func (s *Session) clone() *Session {
	cp := *s
	return &cp
}

// personas are the built-in persona overlays selectable per session.
var personas = map[string]string{
	"reviewer":  "You are acting as a meticulous code reviewer. Focus on correctness, edge cases and maintainability; point out problems before suggesting rewrites.",
	"architect": "You are acting as a software architect. Favor discussing structure, boundaries and tradeoffs before writing code; keep changes minimal and well-motivated.",
	"debugger":  "You are acting as a debugging specialist. Reproduce first, then isolate; prefer adding targeted instrumentation over speculative fixes.",
}

// PersonaNames returns the available persona names, sorted.
func PersonaNames() []string {
	names := make([]string, 0, len(personas))
	for name := range personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
