package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestReadMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	var v snapshot
	ok, err := s.Read("sessions", &v)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, snapshot{}, v)
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	in := snapshot{Name: "alpha", Count: 3}
	require.NoError(t, s.Write("sessions", in))

	var out snapshot
	ok, err := s.Read("sessions", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Write("projects", snapshot{Name: "p"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "projects.json", entries[0].Name())
}

func TestReadCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions.json"), []byte("{not json"), 0o644))

	var v snapshot
	_, err = s.Read("sessions", &v)
	assert.Error(t, err)
}
