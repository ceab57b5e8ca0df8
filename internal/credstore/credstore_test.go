package credstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureGeneratesAndPersists(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "keys")
	store := NewStore(dir)

	cred, created, err := store.Ensure("stagepool-test")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, cred.PrivateKey)
	assert.Contains(t, string(cred.PublicKey), "ssh-rsa")

	// Key material is private to the owner.
	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o700), dirInfo.Mode().Perm())

	fileInfo, err := os.Stat(store.Path("stagepool-test"))
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o600), fileInfo.Mode().Perm())
}

func TestEnsureReusesStoredCredential(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir())

	first, created, err := store.Ensure("stagepool-test")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.Ensure("stagepool-test")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.PrivateKey, second.PrivateKey)
	assert.Equal(t, first.PublicKey, second.PublicKey)
}

func TestLoadMissingCredential(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir())
	_, err := store.Load("nope")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestDelete(t *testing.T) {
	t.Parallel()
	store := NewStore(t.TempDir())

	_, _, err := store.Ensure("stagepool-test")
	require.NoError(t, err)
	require.NoError(t, store.Delete("stagepool-test"))

	_, err = store.Load("stagepool-test")
	assert.Error(t, err)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete("stagepool-test"))
}
