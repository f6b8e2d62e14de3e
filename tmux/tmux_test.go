package tmux

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner simulates a tmux server holding a set of named sessions.
type fakeRunner struct {
	sessions map[string]string // name -> dir
	calls    []string
}

func (f *fakeRunner) run(args ...string) (string, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	switch args[0] {
	case "-V":
		return "tmux 3.4", nil
	case "new-session":
		f.sessions[args[3]] = args[5]
		return "", nil
	case "kill-session":
		delete(f.sessions, args[2])
		return "", nil
	case "list-sessions":
		if len(f.sessions) == 0 {
			return "no server running", errors.New("exit status 1")
		}
		var b strings.Builder
		for name, dir := range f.sessions {
			b.WriteString(name + "\t" + dir + "\n")
		}
		return b.String(), nil
	}
	return "", errors.New("unexpected command")
}

func newFakeClient() (*Client, *fakeRunner) {
	f := &fakeRunner{sessions: make(map[string]string)}
	return NewClientWithRunner(f.run), f
}

func TestCreateAndExists(t *testing.T) {
	c, _ := newFakeClient()

	name := SessionName("fix-parser")
	require.NoError(t, c.CreateSession(name, "/work/parser"))

	assert.True(t, c.SessionExists(name))
	assert.False(t, c.SessionExists(Prefix+"fix"), "prefix of a name must not match")
}

func TestKillMissingIsNoError(t *testing.T) {
	c, f := newFakeClient()
	require.NoError(t, c.KillSession(Prefix+"gone"))
	for _, call := range f.calls {
		assert.NotContains(t, call, "kill-session")
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	c, f := newFakeClient()
	f.sessions[Prefix+"alpha"] = "/work/alpha"
	f.sessions["unrelated"] = "/tmp"

	got := c.ListSessions()
	require.Len(t, got, 1)
	assert.Equal(t, Prefix+"alpha", got[0].Name)
	assert.Equal(t, "/work/alpha", got[0].Dir)
}

func TestListNoServer(t *testing.T) {
	c, _ := newFakeClient()
	assert.Empty(t, c.ListSessions())
}
