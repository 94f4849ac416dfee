package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.SetToken("tok"))
	require.NoError(t, s.SetEmail("a@example.com"))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok", s.Token())

	s.Invalidate()
	assert.Equal(t, "", s.Token())
	assert.Equal(t, "a@example.com", s.Email())

	require.NoError(t, s.Clear())
	assert.Equal(t, "", s.Email())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")

	s, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, "", s.Token())

	require.NoError(t, s.SetToken("tok"))
	require.NoError(t, s.SetEmail("a@example.com"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", reopened.Token())
	assert.Equal(t, "a@example.com", reopened.Email())

	reopened.Invalidate()
	again, err := OpenFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, "", again.Token())
	assert.Equal(t, "a@example.com", again.Email())

	require.NoError(t, again.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), 0o600))

	_, err := OpenFileStore(path)
	assert.Error(t, err)

	_, err = OpenFileStore("")
	assert.Error(t, err)
}
