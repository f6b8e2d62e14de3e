package claudecli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectInstructionsFreshFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, instructionsFile)

	restore, err := injectInstructions(dir, []string{"Be terse.", "Prefer Go."})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Be terse.\n\nPrefer Go.\n", string(data))

	restore()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "restore removes a file that did not exist before")
}

func TestInjectInstructionsPreservesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, instructionsFile)
	original := "# Project notes\nUse tabs.\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	restore, err := injectInstructions(dir, []string{"Answer in haiku."})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Use tabs.")
	assert.Contains(t, string(data), "Answer in haiku.")

	restore()
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestInjectInstructionsNoFragments(t *testing.T) {
	dir := t.TempDir()

	restore, err := injectInstructions(dir, nil)
	require.NoError(t, err)
	restore()

	_, err = os.Stat(filepath.Join(dir, instructionsFile))
	assert.True(t, os.IsNotExist(err))
}
