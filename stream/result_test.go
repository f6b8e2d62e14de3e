package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radu2lupu/agentcord/chat"
	"github.com/radu2lupu/agentcord/provider"
)

func summaryMessage(t *testing.T, f *fixture) chat.Message {
	t.Helper()
	msgs := f.fake.Messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1].Current
}

func customIDs(rows []chat.Row) []string {
	var ids []string
	for _, row := range rows {
		for _, b := range row.Buttons {
			ids = append(ids, b.CustomID)
		}
	}
	return ids
}

func TestSuccessSummaryFieldsAndModeRow(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.TextEvent{Text: "All set."},
		provider.ResultEvent{Success: true, CostUSD: 0.0421, DurationMs: 5200, NumTurns: 3},
	)

	msg := summaryMessage(t, f)
	require.Len(t, msg.Fields, 4)
	assert.Equal(t, "$0.0421", msg.Fields[0].Value)
	assert.Equal(t, "5.2s", msg.Fields[1].Value)
	assert.Equal(t, "3", msg.Fields[2].Value)
	assert.Equal(t, "normal", msg.Fields[3].Value)

	ids := customIDs(msg.Rows)
	assert.Contains(t, ids, "mode:sess-1:auto")
	assert.Contains(t, ids, "mode:sess-1:plan")
	assert.Contains(t, ids, "continue:sess-1")

	for _, row := range msg.Rows {
		for _, b := range row.Buttons {
			if b.CustomID == "mode:sess-1:normal" {
				assert.True(t, b.Disabled, "the active mode button is disabled")
			}
		}
	}
	assert.Zero(t, f.resets)
}

func TestNumberedListBecomesOptionButtons(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.TextEvent{Text: "I can do either:\n1. Patch the parser\n2. Rewrite the lexer\n3. Leave it"},
		provider.ResultEvent{Success: true},
	)

	ids := customIDs(summaryMessage(t, f).Rows)
	assert.Contains(t, ids, "option:sess-1:1")
	assert.Contains(t, ids, "option:sess-1:2")
	assert.Contains(t, ids, "option:sess-1:3")
}

func TestClosingQuestionBecomesYesNo(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.TextEvent{Text: "The fix is ready.\nShould I apply it?"},
		provider.ResultEvent{Success: true},
	)

	ids := customIDs(summaryMessage(t, f).Rows)
	assert.Contains(t, ids, "yesno:sess-1:yes")
	assert.Contains(t, ids, "yesno:sess-1:no")
}

func TestPlainStatementGetsNoQuickReplies(t *testing.T) {
	f := newFixture(t)
	f.run(
		provider.TextEvent{Text: "Updated the README."},
		provider.ResultEvent{Success: true},
	)

	for _, id := range customIDs(summaryMessage(t, f).Rows) {
		assert.NotContains(t, id, "option:")
		assert.NotContains(t, id, "yesno:")
	}
}

func TestFailureResetsSessionState(t *testing.T) {
	f := newFixture(t)
	f.run(provider.ResultEvent{Success: false, Errors: []string{"context length exceeded"}})

	msg := summaryMessage(t, f)
	assert.Contains(t, msg.Content, "Turn failed")
	assert.Contains(t, msg.Content, "context length exceeded")
	assert.Contains(t, msg.Content, "reset")
	assert.Equal(t, 1, f.resets)
}

func TestAbortLikeFailureKeepsSessionState(t *testing.T) {
	f := newFixture(t)
	f.run(provider.ResultEvent{Success: false, Errors: []string{"turn was aborted by the user"}})

	msg := summaryMessage(t, f)
	assert.Contains(t, msg.Content, "Turn failed")
	assert.NotContains(t, msg.Content, "reset")
	assert.Zero(t, f.resets, "deliberate stops keep the resume token")
}

func TestFailureErrorListIsBounded(t *testing.T) {
	f := newFixture(t)
	f.run(provider.ResultEvent{Success: false, Errors: []string{"one", "two", "three", "four", "five"}})

	msg := summaryMessage(t, f)
	assert.Contains(t, msg.Content, "three")
	assert.NotContains(t, msg.Content, "four")
}

func TestStreamErrorResetsUnlessAbortLike(t *testing.T) {
	f := newFixture(t)
	f.run(provider.ErrorEvent{Err: errors.New("broken pipe"), Context: "claude"})
	require.Len(t, f.fake.Messages(), 1)
	assert.Contains(t, f.fake.Messages()[0].Current.Content, "broken pipe")
	assert.Equal(t, 1, f.resets)

	quiet := newFixture(t)
	quiet.run(provider.ErrorEvent{Err: errors.New("signal: killed")})
	assert.Empty(t, quiet.fake.Messages(), "abort-like stream errors end quietly")
	assert.Zero(t, quiet.resets)
}
