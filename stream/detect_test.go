package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbortLike(t *testing.T) {
	assert.True(t, abortLike([]string{"Request was aborted"}))
	assert.True(t, abortLike([]string{"signal: killed"}))
	assert.True(t, abortLike([]string{"fine", "user canceled the turn"}))
	assert.False(t, abortLike([]string{"context length exceeded"}))
	assert.False(t, abortLike(nil))
}

func TestDetectNumberedOptions(t *testing.T) {
	opts := detectNumberedOptions("Pick one:\n1. Patch it\n2) Rewrite it\n  3. Do nothing")
	require.Len(t, opts, 3)
	assert.Equal(t, "1", opts[0].Number)
	assert.Equal(t, "Patch it", opts[0].Label)
	assert.Equal(t, "2", opts[1].Number)
	assert.Equal(t, "Do nothing", opts[2].Label)

	assert.Nil(t, detectNumberedOptions("Step 1. done"), "a single numbered line is prose")
	assert.Nil(t, detectNumberedOptions("no lists here"))
}

func TestLooksLikeYesNo(t *testing.T) {
	assert.True(t, looksLikeYesNo("Plan is ready.\nShould I proceed?"))
	assert.True(t, looksLikeYesNo("Would you like me to commit this?"))
	assert.False(t, looksLikeYesNo("What file should I change?"), "open questions are not yes/no")
	assert.False(t, looksLikeYesNo("All done."))
	assert.False(t, looksLikeYesNo(""))
}
