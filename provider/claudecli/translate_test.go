package claudecli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radu2lupu/agentcord/provider"
)

func parseLine(t *testing.T, line string) message {
	t.Helper()
	msg, err := parseMessage([]byte(line))
	require.NoError(t, err)
	require.NotNil(t, msg)
	return msg
}

func TestTranslateSessionInit(t *testing.T) {
	tr := newTranslator()
	msg := parseLine(t, `{"type":"system","subtype":"init","session_id":"sess-123","model":"opus"}`)

	events := tr.translate(msg)
	require.Len(t, events, 1)
	init, ok := events[0].(provider.SessionInitEvent)
	require.True(t, ok)
	assert.Equal(t, "sess-123", init.ResumeToken)
	assert.Equal(t, "opus", init.Model)
}

func TestTranslateStreamDeltas(t *testing.T) {
	tr := newTranslator()

	events := tr.translate(parseLine(t,
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}}`))
	require.Len(t, events, 1)
	assert.Equal(t, provider.TextEvent{Text: "Hello"}, events[0])

	events = tr.translate(parseLine(t,
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"thinking_delta","thinking":"hmm"}}}`))
	require.Len(t, events, 1)
	assert.Equal(t, provider.ReasoningEvent{Text: "hmm"}, events[0])

	// Block lifecycle events carry no deltas.
	events = tr.translate(parseLine(t,
		`{"type":"stream_event","event":{"type":"content_block_start","content_block":{"type":"text"}}}`))
	assert.Empty(t, events)
}

func TestTranslateAssistantTextSkippedAfterDeltas(t *testing.T) {
	tr := newTranslator()
	tr.translate(parseLine(t,
		`{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}}`))

	events := tr.translate(parseLine(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Hi"}]}}`))
	assert.Empty(t, events, "full text repeats the streamed deltas")
}

func TestTranslateAssistantTextWithoutDeltas(t *testing.T) {
	tr := newTranslator()
	events := tr.translate(parseLine(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Done."}]}}`))
	require.Len(t, events, 1)
	assert.Equal(t, provider.TextEvent{Text: "Done."}, events[0])
}

func TestTranslateToolUseAndResult(t *testing.T) {
	tr := newTranslator()

	events := tr.translate(parseLine(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu-1","name":"Bash","input":{"command":"ls"}}]}}`))
	require.Len(t, events, 1)
	start, ok := events[0].(provider.ToolStartEvent)
	require.True(t, ok)
	assert.Equal(t, "tu-1", start.ID)
	assert.Equal(t, "Bash", start.Name)
	assert.Equal(t, "ls", start.Input["command"])

	events = tr.translate(parseLine(t,
		`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu-1","content":"README.md"}]}}`))
	require.Len(t, events, 1)
	result, ok := events[0].(provider.ToolResultEvent)
	require.True(t, ok)
	assert.Equal(t, "tu-1", result.ID)
	assert.Equal(t, "Bash", result.Name, "result is named via the recorded tool use")
	assert.False(t, result.IsError)
}

func TestTranslateToolResultError(t *testing.T) {
	tr := newTranslator()
	tr.translate(parseLine(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu-9","name":"Bash","input":{}}]}}`))

	events := tr.translate(parseLine(t,
		`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu-9","content":"boom","is_error":true}]}}`))
	require.Len(t, events, 1)
	result := events[0].(provider.ToolResultEvent)
	assert.True(t, result.IsError)
}

func TestTranslateTodoWrite(t *testing.T) {
	tr := newTranslator()
	events := tr.translate(parseLine(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu-2","name":"TodoWrite","input":{"todos":[{"content":"write tests","status":"in_progress"},{"content":"ship","status":"pending"}]}}]}}`))
	require.Len(t, events, 1)
	todo, ok := events[0].(provider.TodoListEvent)
	require.True(t, ok)
	require.Len(t, todo.Items, 2)
	assert.Equal(t, "write tests", todo.Items[0].Content)
	assert.Equal(t, provider.TaskStatusInProgress, todo.Items[0].Status)
}

func TestTranslateAskUser(t *testing.T) {
	tr := newTranslator()
	events := tr.translate(parseLine(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu-3","name":"AskUserQuestion","input":{"questions":[{"question":"Deploy now?","header":"Deploy","options":[{"label":"Yes"},{"label":"No"}],"multiSelect":false}]}}]}}`))
	require.Len(t, events, 1)
	ask, ok := events[0].(provider.AskUserEvent)
	require.True(t, ok)
	require.Len(t, ask.Questions, 1)
	assert.Equal(t, "Deploy now?", ask.Questions[0].Text)
	assert.Equal(t, []string{"Yes", "No"}, ask.Questions[0].Options)
	assert.Equal(t, "tu-3", tr.lastAskID)
}

func TestTranslateImageWrite(t *testing.T) {
	tr := newTranslator()
	tr.translate(parseLine(t,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","id":"tu-4","name":"Write","input":{"file_path":"/tmp/chart.png","content":"..."}}]}}`))

	events := tr.translate(parseLine(t,
		`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu-4","content":"ok"}]}}`))
	require.Len(t, events, 2)
	img, ok := events[1].(provider.ImageFileEvent)
	require.True(t, ok)
	assert.Equal(t, "/tmp/chart.png", img.Path)
}

func TestTranslateResult(t *testing.T) {
	tr := newTranslator()

	events := tr.translate(parseLine(t,
		`{"type":"result","subtype":"success","session_id":"s","total_cost_usd":0.42,"duration_ms":9000,"num_turns":3,"is_error":false}`))
	require.Len(t, events, 1)
	result := events[0].(provider.ResultEvent)
	assert.True(t, result.Success)
	assert.InDelta(t, 0.42, result.CostUSD, 1e-9)
	assert.Equal(t, int64(9000), result.DurationMs)
	assert.Equal(t, 3, result.NumTurns)

	events = tr.translate(parseLine(t,
		`{"type":"result","subtype":"error_during_execution","result":"context limit reached","is_error":true}`))
	result = events[0].(provider.ResultEvent)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"context limit reached"}, result.Errors)
}

func TestParseMessageUnknownType(t *testing.T) {
	msg, err := parseMessage([]byte(`{"type":"control_response","response":{}}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestFormatAnswers(t *testing.T) {
	questions := []provider.Question{
		{Text: "Which env?"},
		{Text: "Run tests?"},
	}
	got := formatAnswers(questions, map[string]string{"Which env?": "staging"})
	assert.Equal(t, "Which env?: staging\nRun tests?: (no answer)", got)
}
