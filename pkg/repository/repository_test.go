package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDeduplicatesByPath(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "repositories.json")
	idx, err := Open(dbFile)
	require.NoError(t, err)

	root := t.TempDir()
	added, err := idx.Add(Entry{Path: root})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = idx.Add(Entry{Path: root})
	require.NoError(t, err)
	assert.False(t, added)

	entries, err := idx.List()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAddRejectsMissingPath(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "repositories.json")
	idx, err := Open(dbFile)
	require.NoError(t, err)

	_, err = idx.Add(Entry{Path: filepath.Join(t.TempDir(), "does-not-exist")})
	assert.Error(t, err)
}

func TestListRejectsEntryWithExtraKeys(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "repositories.json")
	malformed := `[{"path": "/opt/firewheel", "owner": "someone"}]`
	require.NoError(t, os.WriteFile(dbFile, []byte(malformed), 0o644))

	idx, err := Open(dbFile)
	require.NoError(t, err)

	_, err = idx.List()
	assert.Error(t, err)
}

func TestListRejectsEntryMissingPath(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "repositories.json")
	require.NoError(t, os.WriteFile(dbFile, []byte(`[{}]`), 0o644))

	idx, err := Open(dbFile)
	require.NoError(t, err)

	_, err = idx.List()
	assert.Error(t, err)
}

func TestDeleteToleratesMissingPath(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "repositories.json")
	idx, err := Open(dbFile)
	require.NoError(t, err)

	root := t.TempDir()
	_, err = idx.Add(Entry{Path: root})
	require.NoError(t, err)

	removed, err := idx.Delete(Entry{Path: root})
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = idx.Delete(Entry{Path: root})
	require.NoError(t, err)
	assert.False(t, removed)
}
