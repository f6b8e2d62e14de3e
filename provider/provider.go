package provider

import (
	"context"
	"errors"
)

// Sentinel errors shared by adapters.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotInstalled    = errors.New("provider backend not installed")
	ErrNoContinue      = errors.New("provider does not support session continuation")
)

// Feature names adapters advertise through Supports.
const (
	// FeatureTmux indicates the backend mirrors its session into a terminal
	// multiplexer window that users can attach to directly.
	FeatureTmux = "tmux"
	// FeatureAskUser indicates the backend can block a live turn on a
	// structured user question.
	FeatureAskUser = "askUser"
	// FeatureContinue indicates the backend can continue the previous turn
	// without a new prompt.
	FeatureContinue = "continueSession"
)

// BlockType discriminates prompt content blocks.
type BlockType string

const (
	BlockText      BlockType = "text"
	BlockImage     BlockType = "image"
	BlockImageFile BlockType = "image_file"
)

// ContentBlock is one typed element of a prompt. Text blocks carry Text;
// image blocks carry base64 Data plus MediaType; image-file blocks reference
// a local path the adapter is expected to inline.
type ContentBlock struct {
	Type      BlockType
	Text      string
	Data      string
	MediaType string
	Path      string
}

// Prompt is either plain text or a sequence of typed content blocks.
// Blocks wins when non-empty.
type Prompt struct {
	Text   string
	Blocks []ContentBlock
}

// TextPrompt wraps plain text as a Prompt.
func TextPrompt(text string) Prompt { return Prompt{Text: text} }

// Options bundles the per-call knobs every adapter understands. Policy
// fields not supported by a given backend are ignored by its adapter.
type Options struct {
	// WorkDir is the absolute working directory for the turn.
	WorkDir string

	// ResumeToken is the backend's opaque resume token from a prior turn.
	// Empty means start a fresh backend session.
	ResumeToken string

	// Model overrides the backend's default model when non-empty.
	Model string

	// SystemPrompts is an ordered list of system-prompt fragments the
	// adapter concatenates (project personality, persona, mode constraint).
	SystemPrompts []string

	// SandboxMode, ApprovalPolicy and NetworkAccess are policy knobs for
	// sandboxed backends.
	SandboxMode    string
	ApprovalPolicy string
	NetworkAccess  bool
}

// Provider is the pluggable contract every backend adapter implements.
//
// SendPrompt and ContinueSession return a channel of unified events that the
// adapter closes when the turn settles (result, error or cancellation). The
// adapter observes ctx at its own suspension points; callers must treat a
// ctx-cancelled stream as a clean termination, not a failure.
type Provider interface {
	// Name returns the provider name (e.g. "claude", "codex").
	Name() string

	// SendPrompt starts a turn for the given prompt.
	SendPrompt(ctx context.Context, prompt Prompt, opts Options) (<-chan Event, error)

	// ContinueSession continues the prior turn without new user input.
	ContinueSession(ctx context.Context, opts Options) (<-chan Event, error)

	// Supports reports whether the adapter advertises a named feature.
	Supports(feature string) bool
}
