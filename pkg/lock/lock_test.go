package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/cloudposse/link-install/errors"
)

func TestKey(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, Key(dir), Key(dir))
	assert.NotEqual(t, Key(dir), Key(filepath.Join(dir, "other")))
	assert.Len(t, Key(dir), 32)
}

func TestPathFor(t *testing.T) {
	state := t.TempDir()
	t.Setenv("LINK_INSTALL_XDG_STATE_HOME", state)

	path, err := PathFor("/work/app")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(state, "link-install", "locks", Key("/work/app")+".lock"), path)
}

func TestAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	_, err = Acquire(path)
	assert.ErrorIs(t, err, errUtils.ErrInstallDirLocked)

	first.Release()

	second, err := Acquire(path)
	require.NoError(t, err)
	second.Release()
}
