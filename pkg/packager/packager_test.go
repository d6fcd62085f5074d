package packager

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/dependency"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/manifest"
	"github.com/cloudposse/link-install/pkg/schema"
	"github.com/cloudposse/link-install/pkg/shell"
	"github.com/cloudposse/link-install/pkg/undo"
)

const fooManifest = `{
  "name": "foo",
  "version": "1.0.0",
  "dependencies": {
    "bar": "../bar",
    "lodash": "^4.17.21"
  }
}
`

// writeArchive creates name in dir the way `npm pack` does, with manifest as package/package.json.
func writeArchive(t *testing.T, dir, name string, manifestBytes []byte) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "package/package.json", Mode: 0o644, Size: int64(len(manifestBytes))}))
	_, err := tw.Write(manifestBytes)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

// packFromDisk simulates a pack command that archives the manifest currently on disk.
func packFromDisk(t *testing.T, name string) func(ctx context.Context, command, dir string, env []string) error {
	return func(_ context.Context, _ string, dir string, _ []string) error {
		data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
		if err != nil {
			return err
		}
		writeArchive(t, dir, name, data)
		return nil
	}
}

type fixture struct {
	dir     string
	fooDir  string
	staging string
	node    *dependency.Node
	fs      filesystem.FileSystem
}

func newFixture(t *testing.T, content string) fixture {
	t.Helper()
	dir := t.TempDir()
	fooDir := filepath.Join(dir, "foo")
	require.NoError(t, os.MkdirAll(fooDir, 0o755))
	path := filepath.Join(fooDir, manifest.FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return fixture{
		dir:     dir,
		fooDir:  fooDir,
		staging: filepath.Join(dir, "app", "link-install-test"),
		node:    &dependency.Node{ID: "foo", ManifestPath: path, Group: manifest.GroupDependencies},
		fs:      filesystem.NewOSFileSystem(),
	}
}

func TestPackage_Success(t *testing.T) {
	f := newFixture(t, fooManifest)
	ctrl := gomock.NewController(t)
	runner := shell.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).DoAndReturn(packFromDisk(t, "foo-1.0.0.tgz"))

	scope := undo.NewManager("test")
	p := New(f.fs, runner, "npm pack", WithVerification(true))

	archive, err := p.Package(context.Background(), f.node, f.staging, scope)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.staging, "foo", "foo-1.0.0.tgz"), archive)
	assert.FileExists(t, archive)
	assert.NoFileExists(t, filepath.Join(f.fooDir, "foo-1.0.0.tgz"))

	packed, err := ReadArchiveManifest(f.fs, archive)
	require.NoError(t, err)
	doc, err := manifest.Parse(packed)
	require.NoError(t, err)
	assert.Equal(t, []manifest.Dependency{
		{Name: "lodash", Spec: "^4.17.21", Group: manifest.GroupDependencies},
	}, doc.Dependencies(manifest.GroupDependencies))

	require.NoError(t, scope.UndoAll())
	data, err := os.ReadFile(f.node.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, fooManifest, string(data))
	assert.FileExists(t, archive, "the staged archive belongs to the run scope")
}

func TestPackage_ScopedName(t *testing.T) {
	f := newFixture(t, `{"name":"@acme/foo","version":"2.1.0"}`)
	f.node.ID = "@acme/foo"
	runner := shell.NewMockRunner(gomock.NewController(t))
	runner.EXPECT().Run(gomock.Any(), "pnpm pack", f.fooDir, gomock.Nil()).DoAndReturn(packFromDisk(t, "acme-foo-2.1.0.tgz"))

	p := New(f.fs, runner, "pnpm pack")
	archive, err := p.Package(context.Background(), f.node, f.staging, undo.NewManager("test"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.staging, "@acme", "foo", "acme-foo-2.1.0.tgz"), archive)
}

func TestPackage_OverwritesStagedArchive(t *testing.T) {
	f := newFixture(t, fooManifest)
	runner := shell.NewMockRunner(gomock.NewController(t))
	runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).DoAndReturn(packFromDisk(t, "foo-1.0.0.tgz"))

	stale := filepath.Join(f.staging, "foo", "foo-1.0.0.tgz")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	archive, err := New(f.fs, runner, "npm pack").Package(context.Background(), f.node, f.staging, undo.NewManager("test"))
	require.NoError(t, err)
	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", string(data))
}

func TestPackage_MissingManifestIsSkipped(t *testing.T) {
	runner := shell.NewMockRunner(gomock.NewController(t))
	node := &dependency.Node{ID: "gone", ManifestPath: filepath.Join(t.TempDir(), "gone", manifest.FileName)}

	archive, err := New(filesystem.NewOSFileSystem(), runner, "npm pack").Package(context.Background(), node, t.TempDir(), undo.NewManager("test"))
	require.NoError(t, err)
	assert.Empty(t, archive)
}

func TestPackage_PackFailureRollsBack(t *testing.T) {
	f := newFixture(t, fooManifest)
	runner := shell.NewMockRunner(gomock.NewController(t))
	runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).DoAndReturn(
		func(_ context.Context, _ string, dir string, _ []string) error {
			// A half-written archive is left behind.
			require.NoError(t, os.WriteFile(filepath.Join(dir, "foo-1.0.0.tgz"), []byte("partial"), 0o644))
			return errUtils.ExitCodeError{Code: 1}
		})

	scope := undo.NewManager("test")
	_, err := New(f.fs, runner, "npm pack").Package(context.Background(), f.node, f.staging, scope)
	require.Error(t, err)
	assert.ErrorIs(t, err, errUtils.ErrPackageFailed)

	require.NoError(t, scope.UndoAll())
	data, err := os.ReadFile(f.node.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, fooManifest, string(data))
	assert.NoFileExists(t, filepath.Join(f.fooDir, "foo-1.0.0.tgz"))
}

func TestPackage_NoArchiveProduced(t *testing.T) {
	f := newFixture(t, fooManifest)
	runner := shell.NewMockRunner(gomock.NewController(t))
	runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).Return(nil)

	_, err := New(f.fs, runner, "npm pack").Package(context.Background(), f.node, f.staging, undo.NewManager("test"))
	assert.ErrorIs(t, err, errUtils.ErrPackageFailed)
}

func TestPackage_InvalidVersionDoesNotMutate(t *testing.T) {
	content := `{"name":"foo","version":"latest","dependencies":{"bar":"../bar"}}`
	f := newFixture(t, content)
	runner := shell.NewMockRunner(gomock.NewController(t))

	scope := undo.NewManager("test")
	_, err := New(f.fs, runner, "npm pack").Package(context.Background(), f.node, f.staging, scope)
	assert.ErrorIs(t, err, errUtils.ErrInvalidVersion)
	assert.Equal(t, 0, scope.Len())

	data, err := os.ReadFile(f.node.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestPackage_VerificationRejectsLocalReferences(t *testing.T) {
	f := newFixture(t, fooManifest)
	runner := shell.NewMockRunner(gomock.NewController(t))
	runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).DoAndReturn(
		func(_ context.Context, _ string, dir string, _ []string) error {
			writeArchive(t, dir, "foo-1.0.0.tgz", []byte(fooManifest))
			return nil
		})

	scope := undo.NewManager("test")
	_, err := New(f.fs, runner, "npm pack", WithVerification(true)).Package(context.Background(), f.node, f.staging, scope)
	assert.ErrorIs(t, err, errUtils.ErrArchiveNotSelfContained)

	require.NoError(t, scope.UndoAll())
	assert.NoFileExists(t, filepath.Join(f.fooDir, "foo-1.0.0.tgz"))
}

func TestPackage_Retry(t *testing.T) {
	f := newFixture(t, fooManifest)
	runner := shell.NewMockRunner(gomock.NewController(t))
	gomock.InOrder(
		runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).Return(errors.New("ETIMEDOUT")),
		runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).DoAndReturn(packFromDisk(t, "foo-1.0.0.tgz")),
	)

	p := New(f.fs, runner, "npm pack", WithRetry(schema.RetryConfig{
		MaxAttempts:     2,
		BackoffStrategy: schema.BackoffConstant,
		InitialDelay:    time.Millisecond,
	}))
	archive, err := p.Package(context.Background(), f.node, f.staging, undo.NewManager("test"))
	require.NoError(t, err)
	assert.FileExists(t, archive)
}

func TestPackage_ClosedScope(t *testing.T) {
	f := newFixture(t, fooManifest)
	runner := shell.NewMockRunner(gomock.NewController(t))

	scope := undo.NewManager("test")
	require.NoError(t, scope.UndoAll())

	_, err := New(f.fs, runner, "npm pack").Package(context.Background(), f.node, f.staging, scope)
	assert.ErrorIs(t, err, errUtils.ErrScopeClosed)

	data, err := os.ReadFile(f.node.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, fooManifest, string(data))
}

// Rollback of the run can start while the pack command is still running; the archive must
// then not be moved into the staging tree the rollback already removed.
func TestPackage_RollbackDuringPack(t *testing.T) {
	f := newFixture(t, fooManifest)
	root := undo.NewManager("run")
	scope := root.NewScope("foo")

	runner := shell.NewMockRunner(gomock.NewController(t))
	runner.EXPECT().Run(gomock.Any(), "npm pack", f.fooDir, gomock.Nil()).DoAndReturn(
		func(ctx context.Context, command, dir string, env []string) error {
			if err := packFromDisk(t, "foo-1.0.0.tgz")(ctx, command, dir, env); err != nil {
				return err
			}
			go func() { _ = root.UndoAll() }()
			assert.Eventually(t, root.Closed, time.Second, time.Millisecond)
			return nil
		})

	_, err := New(f.fs, runner, "npm pack").Package(context.Background(), f.node, f.staging, scope)
	assert.ErrorIs(t, err, errUtils.ErrScopeClosed)

	require.NoError(t, root.UndoAll())
	assert.NoDirExists(t, filepath.Join(f.staging, "foo"))
	assert.NoFileExists(t, filepath.Join(f.fooDir, "foo-1.0.0.tgz"))
	data, err := os.ReadFile(f.node.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, fooManifest, string(data))
}

func TestReadArchiveManifest_Missing(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	path := filepath.Join(dir, "empty.tgz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err := ReadArchiveManifest(filesystem.NewOSFileSystem(), path)
	assert.Error(t, err)
}
