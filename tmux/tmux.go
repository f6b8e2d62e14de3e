// Package tmux shells out to the terminal multiplexer for providers that
// mirror their backend session into an attachable window. Only four
// operations are used: create a named session, probe existence, kill, and
// list sessions under the application's naming prefix.
package tmux

import (
	"fmt"
	"os/exec"
	"strings"
)

// Prefix namespaces every session this process creates, so listing can
// filter out unrelated tmux sessions.
const Prefix = "agentcord-"

// Runner executes a tmux command and returns its combined output. Tests
// substitute a fake; the default shells out to the tmux binary.
type Runner func(args ...string) (string, error)

func execRunner(args ...string) (string, error) {
	out, err := exec.Command("tmux", args...).CombinedOutput()
	return string(out), err
}

// Client wraps the multiplexer operations.
type Client struct {
	run Runner
}

// NewClient creates a client using the tmux binary on PATH.
func NewClient() *Client { return &Client{run: execRunner} }

// NewClientWithRunner creates a client with a custom command runner.
func NewClientWithRunner(run Runner) *Client { return &Client{run: run} }

// Available reports whether the tmux binary can be invoked.
func (c *Client) Available() bool {
	_, err := c.run("-V")
	return err == nil
}

// SessionName converts a session ID to its tmux session name.
func SessionName(id string) string { return Prefix + id }

// CreateSession creates a detached named session rooted at dir.
func (c *Client) CreateSession(name, dir string) error {
	if _, err := c.run("new-session", "-d", "-s", name, "-c", dir); err != nil {
		return fmt.Errorf("failed to create tmux session %q: %w", name, err)
	}
	return nil
}

// SessionExists reports whether a session with the exact name exists.
func (c *Client) SessionExists(name string) bool {
	// has-session matches name prefixes, so list and compare exactly.
	for _, s := range c.list() {
		if s.Name == name {
			return true
		}
	}
	return false
}

// KillSession kills the named session. Killing a session that no longer
// exists is not an error.
func (c *Client) KillSession(name string) error {
	if !c.SessionExists(name) {
		return nil
	}
	if _, err := c.run("kill-session", "-t", name); err != nil {
		return fmt.Errorf("failed to kill tmux session %q: %w", name, err)
	}
	return nil
}

// SessionInfo describes one multiplexer session.
type SessionInfo struct {
	Name string
	Dir  string
}

// ListSessions returns the sessions carrying the application prefix.
func (c *Client) ListSessions() []SessionInfo {
	var out []SessionInfo
	for _, s := range c.list() {
		if strings.HasPrefix(s.Name, Prefix) {
			out = append(out, s)
		}
	}
	return out
}

func (c *Client) list() []SessionInfo {
	// list-sessions exits non-zero when the server is not running; treat
	// that as an empty list.
	raw, err := c.run("list-sessions", "-F", "#{session_name}\t#{session_path}")
	if err != nil {
		return nil
	}

	var sessions []SessionInfo
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, dir, _ := strings.Cut(line, "\t")
		sessions = append(sessions, SessionInfo{Name: name, Dir: dir})
	}
	return sessions
}
