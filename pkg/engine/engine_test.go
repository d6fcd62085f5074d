package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/shell"
)

func TestSelect(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := shell.NewMockRunner(ctrl)
	fs := filesystem.NewOSFileSystem()

	tests := []struct {
		tag      string
		name     Type
		lockfile string
		pack     string
	}{
		{tag: "npm", name: NPM, lockfile: "package-lock.json", pack: "npm pack"},
		{tag: "PNPM", name: PNPM, lockfile: "pnpm-lock.yaml", pack: "pnpm pack"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			e, err := Select(tt.tag, runner, fs)
			require.NoError(t, err)
			assert.Equal(t, tt.name, e.Name())
			assert.Equal(t, tt.lockfile, e.LockfileName())
			assert.Equal(t, tt.pack, e.PackCommand())
		})
	}

	_, err := Select("yarn", runner, fs)
	assert.ErrorIs(t, err, errUtils.ErrUnknownEngine)
}

func TestSelect_PackCommandOverride(t *testing.T) {
	e, err := Select("npm", shell.NewMockRunner(gomock.NewController(t)), filesystem.NewOSFileSystem(), WithPackCommand("npm pack --ignore-scripts"))
	require.NoError(t, err)
	assert.Equal(t, "npm pack --ignore-scripts", e.PackCommand())
}

func TestInstall(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := shell.NewMockRunner(ctrl)
	e, err := Select("pnpm", runner, filesystem.NewOSFileSystem())
	require.NoError(t, err)

	ctx := context.Background()
	runner.EXPECT().Exec(ctx, "/work/app", []string{"pnpm", "install", "--frozen-lockfile"}).Return(nil)
	require.NoError(t, e.Install(ctx, "/work/app", []string{"--frozen-lockfile"}))

	runner.EXPECT().Exec(ctx, "/work/app", []string{"pnpm", "install"}).Return(errUtils.ExitCodeError{Code: 1})
	err = e.Install(ctx, "/work/app", nil)
	assert.ErrorIs(t, err, errUtils.ErrInstallFailed)
	assert.Equal(t, 1, errUtils.CommandExitCode(err))
}

func TestIsAvailable(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		wantErr bool
	}{
		{name: "recent", output: "10.8.2"},
		{name: "v prefix", output: "v9.0.0"},
		{name: "too old", output: "6.14.18", wantErr: true},
		{name: "garbage", output: "command not found", wantErr: true},
		{name: "missing binary", err: errors.New("executable file not found in $PATH"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			runner := shell.NewMockRunner(ctrl)
			runner.EXPECT().Output(gomock.Any(), "", []string{"npm", "--version"}).Return(tt.output, tt.err)

			e, err := Select("npm", runner, filesystem.NewOSFileSystem())
			require.NoError(t, err)

			err = e.IsAvailable(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, errUtils.ErrEngineUnavailable)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func writeFile(t *testing.T, content string, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNPMCleanLockfile(t *testing.T) {
	path := writeFile(t, `{
  "name": "app",
  "lockfileVersion": 3,
  "packages": {
    "": {
      "name": "app",
      "dependencies": {
        "foo": "../foo",
        "react": "^18.2.0"
      }
    },
    "../foo": {
      "name": "foo",
      "version": "1.0.0"
    },
    "node_modules/foo": {
      "resolved": "../foo",
      "link": true
    },
    "node_modules/react": {
      "version": "18.2.0",
      "resolved": "https://registry.npmjs.org/react/-/react-18.2.0.tgz"
    }
  },
  "dependencies": {
    "foo": {
      "version": "file:../foo"
    },
    "react": {
      "version": "18.2.0"
    }
  }
}
`, "package-lock.json")

	e, err := Select("npm", nil, filesystem.NewOSFileSystem())
	require.NoError(t, err)
	require.NoError(t, e.CleanLockfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{
  "name": "app",
  "lockfileVersion": 3,
  "packages": {
    "": {
      "name": "app",
      "dependencies": {
        "react": "^18.2.0"
      }
    },
    "node_modules/react": {
      "version": "18.2.0",
      "resolved": "https://registry.npmjs.org/react/-/react-18.2.0.tgz"
    }
  },
  "dependencies": {
    "react": {
      "version": "18.2.0"
    }
  }
}
`, string(data))
}

func TestNPMCleanLockfile_Missing(t *testing.T) {
	e, err := Select("npm", nil, filesystem.NewOSFileSystem())
	require.NoError(t, err)
	assert.NoError(t, e.CleanLockfile(filepath.Join(t.TempDir(), "package-lock.json")))
}

func TestNPMCleanLockfile_Invalid(t *testing.T) {
	path := writeFile(t, "{", "package-lock.json")
	e, err := Select("npm", nil, filesystem.NewOSFileSystem())
	require.NoError(t, err)
	assert.ErrorIs(t, e.CleanLockfile(path), errUtils.ErrCleanLockfile)
}

func TestPNPMCleanLockfile(t *testing.T) {
	path := writeFile(t, `lockfileVersion: '9.0'

importers:
  .:
    dependencies:
      foo:
        specifier: ../foo
        version: link:../foo
      react:
        specifier: ^18.2.0
        version: 18.2.0

packages:
  foo@file:../foo:
    resolution:
      directory: ../foo
      type: directory
  react@18.2.0:
    resolution:
      integrity: sha512-abc
`, "pnpm-lock.yaml")

	e, err := Select("pnpm", nil, filesystem.NewOSFileSystem())
	require.NoError(t, err)
	require.NoError(t, e.CleanLockfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "foo")
	assert.Contains(t, out, "react@18.2.0:")
	assert.Contains(t, out, "specifier: ^18.2.0")
	assert.Contains(t, out, "lockfileVersion: '9.0'")
}
