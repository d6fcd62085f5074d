package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_WriteFileReplacesContent(t *testing.T) {
	fs := NewOSFileSystem()
	path := filepath.Join(t.TempDir(), "package.json")

	require.NoError(t, fs.WriteFile(path, []byte(`{"name":"a"}`), 0o644))
	require.NoError(t, fs.WriteFile(path, []byte(`{"name":"b"}`), 0o644))

	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"b"}`, string(data))
}

func TestOSFileSystem_CopyCreatesParents(t *testing.T) {
	fs := NewOSFileSystem()
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "package-lock.json")
	dst := filepath.Join(dir, "install", "nested", "package-lock.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("lock"), 0o600))

	require.NoError(t, fs.Copy(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "lock", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestOSFileSystem_RenameOverwrites(t *testing.T) {
	fs := NewOSFileSystem()
	dir := t.TempDir()
	src := filepath.Join(dir, "foo-1.0.0.tgz")
	dst := filepath.Join(dir, "staging", "foo-1.0.0.tgz")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))

	require.NoError(t, fs.Rename(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.False(t, Exists(fs, src))
}

func TestOSFileSystem_RemoveAllMissingPath(t *testing.T) {
	fs := NewOSFileSystem()

	assert.NoError(t, fs.RemoveAll(filepath.Join(t.TempDir(), "missing")))
}

func TestExists(t *testing.T) {
	fs := NewOSFileSystem()
	dir := t.TempDir()

	assert.True(t, Exists(fs, dir))
	assert.False(t, Exists(fs, filepath.Join(dir, "nope")))
}
