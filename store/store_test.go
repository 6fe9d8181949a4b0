package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReadYourWrites(t *testing.T) {
	s := NewMemoryStore()

	owned, err := s.Owned("pro_upgrade")
	require.NoError(t, err)
	assert.False(t, owned, "unwritten flag should read false")

	require.NoError(t, s.SetOwned("pro_upgrade", true))
	require.NoError(t, s.Flush())

	owned, err = s.Owned("pro_upgrade")
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.SetOwned("pro_upgrade", true))
	require.NoError(t, s.SetOwned("remove_ads", false))
	require.NoError(t, s.Flush())

	// A fresh store over the same path sees the flushed flags.
	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	owned, err := reopened.Owned("pro_upgrade")
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = reopened.Owned("remove_ads")
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestFileStoreMissingFileReadsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "never-written.json"))
	require.NoError(t, err)

	owned, err := s.Owned("anything")
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestFileStoreUnflushedWritesAreNotDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetOwned("pro_upgrade", true))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	owned, err := reopened.Owned("pro_upgrade")
	require.NoError(t, err)
	assert.False(t, owned, "write without flush must not be visible after reopen")
}

func TestFileStoreCleanFlushTouchesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "flushing a clean store should not create the file")
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}
