package undo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
)

func TestSnapshot_RestoresOriginalBytes(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "package.json")
	original := []byte("{\n  \"name\": \"foo\",\n  \"dependencies\": {\"bar\": \"../bar\"}\n}\n")
	require.NoError(t, os.WriteFile(path, original, 0o600))

	snap, err := NewSnapshot(fs, path)
	require.NoError(t, err)
	assert.True(t, snap.Existed())

	require.NoError(t, os.WriteFile(path, []byte(`{"name":"foo"}`), 0o600))
	require.NoError(t, snap.Undo())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSnapshot_AbsentFileIsDeleted(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "package-lock.json")

	snap, err := NewSnapshot(fs, path)
	require.NoError(t, err)
	assert.False(t, snap.Existed())

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	require.NoError(t, snap.Undo())
	assert.NoFileExists(t, path)

	// Idempotent.
	require.NoError(t, snap.Undo())
	assert.NoFileExists(t, path)
}

func TestSnapshot_Directory(t *testing.T) {
	_, err := NewSnapshot(filesystem.NewOSFileSystem(), t.TempDir())
	assert.Error(t, err)
}

func TestSnapshotWithContent(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "package.json")
	require.NoError(t, os.WriteFile(path, []byte("after"), 0o644))

	snap := NewSnapshotWithContent(fs, path, []byte("before"))
	require.NoError(t, snap.Undo())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "before", string(data))
}

func TestRemove_Recursive(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	dir := filepath.Join(t.TempDir(), "link-install-run")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bar"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bar", "bar-1.0.0.tgz"), []byte("tgz"), 0o644))

	rm := NewRemove(fs, dir)
	require.NoError(t, rm.Undo())
	assert.NoDirExists(t, dir)
	require.NoError(t, rm.Undo())
	assert.Equal(t, "remove "+dir, rm.String())
}

func TestActionFromRecord(t *testing.T) {
	fs := filesystem.NewOSFileSystem()
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	snap, err := NewSnapshot(fs, path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("mutated"), 0o644))

	action, err := ActionFromRecord(fs, snap.Record())
	require.NoError(t, err)
	require.NoError(t, action.Undo())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	action, err = ActionFromRecord(fs, NewRemove(fs, path).Record())
	require.NoError(t, err)
	require.NoError(t, action.Undo())
	assert.NoFileExists(t, path)
}

func TestActionFromRecord_Invalid(t *testing.T) {
	fs := filesystem.NewOSFileSystem()

	tests := []struct {
		name string
		rec  Record
	}{
		{name: "missing path", rec: Record{Kind: RecordRemove}},
		{name: "unknown kind", rec: Record{Kind: "chmod", Path: "/tmp/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ActionFromRecord(fs, tt.rec)
			assert.ErrorIs(t, err, errUtils.ErrJournalCorrupt)
		})
	}
}
