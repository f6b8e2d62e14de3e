package stream

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radu2lupu/agentcord/provider"
)

func TestToolVisibilityGating(t *testing.T) {
	quiet := newFixture(t)
	quiet.run(
		provider.ToolStartEvent{Name: "Read", Input: map[string]interface{}{"path": "main.go"}},
		provider.ToolStartEvent{Name: "TodoWrite"},
		provider.ResultEvent{Success: true},
	)
	var contents []string
	for _, m := range quiet.fake.Messages() {
		contents = append(contents, m.Current.Content)
	}
	joined := strings.Join(contents, "\n")
	assert.NotContains(t, joined, "Read", "non-allow-listed tools stay hidden without verbose")
	assert.Contains(t, joined, "TodoWrite")

	verbose := newFixture(t, func(c *Config) { c.Verbose = true })
	verbose.run(
		provider.ToolStartEvent{Name: "Read", Input: map[string]interface{}{"path": "main.go"}},
		provider.ResultEvent{Success: true},
	)
	assert.Contains(t, verbose.fake.Messages()[0].Current.Content, "Read")
}

func TestOversizedToolInputGetsExpandControl(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Verbose = true })
	big := strings.Repeat("x", 2*previewLimit)
	f.run(
		provider.ToolStartEvent{Name: "Write", Input: map[string]interface{}{"content": big}},
		provider.ResultEvent{Success: true},
	)

	msg := f.fake.Messages()[0].Current
	require.Len(t, msg.Rows, 1)
	id := strings.TrimPrefix(msg.Rows[0].Buttons[0].CustomID, "expand:")
	stored, ok := f.contents.entries[id]
	require.True(t, ok, "full payload must land in the content store")
	assert.Contains(t, stored, big)
	assert.Less(t, len(msg.Content), len(stored), "inline preview must be truncated")
}

func TestToolResultIconReflectsError(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Verbose = true })
	f.run(
		provider.ToolResultEvent{Name: "Bash", Content: "ok"},
		provider.ToolResultEvent{Name: "Bash", Content: "no such file", IsError: true},
		provider.ResultEvent{Success: true},
	)

	msgs := f.fake.Messages()
	assert.True(t, strings.HasPrefix(msgs[0].Current.Content, "✅"))
	assert.True(t, strings.HasPrefix(msgs[1].Current.Content, "❌"))
}

func TestTaskBoardEditsInPlace(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.TaskEvent{ID: "1", Subject: "survey code", Status: provider.TaskStatusInProgress},
		provider.TaskEvent{ID: "2", Subject: "write fix", Status: provider.TaskStatusPending},
		provider.TaskEvent{ID: "1", Subject: "survey code", Status: provider.TaskStatusCompleted},
		provider.ResultEvent{Success: true},
	)

	msgs := f.fake.Messages()
	require.Len(t, msgs, 2, "the board is one message edited in place")
	board := msgs[0].Current.Content
	assert.Contains(t, board, "✅ survey code")
	assert.Contains(t, board, "⬜ write fix")
	assert.Equal(t, 2, msgs[0].Edits)
}

func TestTodoListReplacesBoard(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.TodoListEvent{Items: []provider.TodoItem{
			{Content: "first", Status: provider.TaskStatusCompleted},
			{Content: "second", Status: provider.TaskStatusInProgress},
		}},
		provider.TodoListEvent{Items: []provider.TodoItem{
			{Content: "first", Status: provider.TaskStatusCompleted},
			{Content: "second", Status: provider.TaskStatusCompleted},
		}},
		provider.ResultEvent{Success: true},
	)

	msgs := f.fake.Messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Current.Content, "✅ second")
	assert.NotContains(t, msgs[0].Current.Content, "🔄")
}

func TestCommandLifecycleEditsStartMessage(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.CommandEvent{Phase: provider.CommandStarted, Command: "go test ./..."},
		provider.CommandEvent{Phase: provider.CommandFinished, Command: "go test ./...", ExitCode: 1, Output: "FAIL: TestThing", DurationMs: 2300},
		provider.ResultEvent{Success: true},
	)

	msgs := f.fake.Messages()
	require.Len(t, msgs, 2)
	cmd := msgs[0].Current.Content
	assert.True(t, strings.HasPrefix(cmd, "❌"))
	assert.Contains(t, cmd, "go test ./...")
	assert.Contains(t, cmd, "exit 1")
	assert.Contains(t, cmd, "2.3s")
	assert.Contains(t, cmd, "FAIL: TestThing")
	assert.Equal(t, 1, msgs[0].Edits)
}

func TestFileChangeRendering(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.FileChangeEvent{Path: "internal/api/server.go", Kind: provider.FileChangeAdd},
		provider.FileChangeEvent{Path: "README.md", Kind: provider.FileChangeDelete},
		provider.ImageFileEvent{Path: "out/chart.png"},
		provider.ResultEvent{Success: true},
	)

	msgs := f.fake.Messages()
	assert.Contains(t, msgs[0].Current.Content, "🆕")
	assert.Contains(t, msgs[0].Current.Content, "internal/api/server.go")
	assert.Contains(t, msgs[1].Current.Content, "🗑️")
	assert.Contains(t, msgs[2].Current.Content, "🖼️")
	assert.Contains(t, msgs[2].Current.Content, "out/chart.png")
}

func TestAskUserManyOptionsBecomeMenu(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.AskUserEvent{Questions: []provider.Question{{
			Text:    "Pick a module",
			Options: []string{"api", "core", "store", "stream", "router", "cmd"},
		}}},
		provider.ResultEvent{Success: true},
	)

	msg := f.fake.Messages()[0].Current
	require.Len(t, msg.Rows, 1)
	menu := msg.Rows[0].Menu
	require.NotNil(t, menu, "more than four options must render as a menu")
	assert.Equal(t, "askpick:ask-1:0", menu.CustomID)
	require.Len(t, menu.Options, 6)
	assert.Equal(t, "2", menu.Options[2].Value, "menu values are option indexes")
}

func TestMultiQuestionSetGetsSubmitControl(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.AskUserEvent{Questions: []provider.Question{
			{Text: "Language?", Options: []string{"Go", "Rust"}},
			{Text: "Style?", Header: "Formatting", Options: []string{"Tabs", "Spaces"}},
		}},
		provider.ResultEvent{Success: true},
	)

	msgs := f.fake.Messages()
	first, second := msgs[0].Current, msgs[1].Current
	require.Len(t, first.Rows, 1, "only the last question carries the submit row")
	require.Len(t, second.Rows, 2)
	assert.Contains(t, second.Content, "Formatting")
	assert.Equal(t, "asksubmit:ask-1", second.Rows[1].Buttons[0].CustomID)
}

func TestBoardSurvivesOutOfBandDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.streamer.renderTask(ctx, provider.TaskEvent{ID: "1", Subject: "a", Status: provider.TaskStatusPending})
	require.NoError(t, f.fake.Handle(f.fake.Messages()[0].ID).Delete(ctx))

	f.streamer.renderTask(ctx, provider.TaskEvent{ID: "1", Subject: "a", Status: provider.TaskStatusCompleted})
	live := f.fake.Live()
	require.Len(t, live, 1)
	assert.Contains(t, live[0].Current.Content, "✅ a")
}
