package packager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/dependency"
	"github.com/cloudposse/link-install/pkg/filesystem"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/manifest"
	"github.com/cloudposse/link-install/pkg/retry"
	"github.com/cloudposse/link-install/pkg/schema"
	"github.com/cloudposse/link-install/pkg/shell"
	"github.com/cloudposse/link-install/pkg/undo"
)

// Packager turns a local dependency into an installable archive.
type Packager struct {
	fs      filesystem.FileSystem
	runner  shell.Runner
	command string
	retry   *retry.Executor
	verify  bool
}

// Option configures a Packager.
type Option func(*Packager)

// WithRetry re-runs a failing pack command according to config.
func WithRetry(config schema.RetryConfig) Option {
	return func(p *Packager) {
		p.retry = retry.New(config)
	}
}

// WithVerification makes Package open each produced archive and reject it if its manifest
// still declares local dependencies.
func WithVerification(verify bool) Option {
	return func(p *Packager) {
		p.verify = verify
	}
}

// New creates a Packager that runs command (e.g. "npm pack") in each dependency directory.
func New(fs filesystem.FileSystem, runner shell.Runner, command string, opts ...Option) *Packager {
	p := &Packager{
		fs:      fs,
		runner:  runner,
		command: command,
		retry:   retry.New(retry.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package builds the archive of node and moves it to stagingDir/<name>/.
// Every mutation is registered in scope before it is performed; the caller reverses scope
// when packaging completes, which restores the dependency's manifest.
//
// A node whose manifest no longer exists is skipped and yields an empty path.
func (p *Packager) Package(ctx context.Context, node *dependency.Node, stagingDir string, scope *undo.Manager) (string, error) {
	path := node.ManifestPath
	dir := filepath.Dir(path)

	content, err := p.fs.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info("Skipping package without manifest", "package", node.ID, "path", path)
		return "", nil
	}
	if err != nil {
		return "", p.fail(node, err)
	}

	doc, err := manifest.Parse(content)
	if err != nil {
		return "", p.fail(node, err)
	}
	archiveName, err := manifest.ArchiveName(doc.Name(), doc.Version())
	if err != nil {
		return "", p.fail(node, err)
	}

	log.Info("Preparing package", "package", node.ID)

	if err := scope.Apply(undo.NewSnapshotWithContent(p.fs, path, content), func() error {
		return manifest.Save(p.fs, path, manifest.Strip(doc))
	}); err != nil {
		return "", p.fail(node, err)
	}

	built := filepath.Join(dir, archiveName)
	if err := scope.Apply(undo.NewRemove(p.fs, built), func() error {
		return p.pack(ctx, dir)
	}); err != nil {
		return "", p.fail(node, err)
	}
	if scope.Closed() {
		return "", p.fail(node, errors.Wrapf(errUtils.ErrScopeClosed, "%s: after %q", scope.Name(), p.command))
	}
	if !filesystem.Exists(p.fs, built) {
		return "", p.fail(node, errors.Newf("%q did not produce %s", p.command, archiveName))
	}

	if p.verify {
		if err := VerifyArchive(p.fs, built); err != nil {
			return "", p.fail(node, err)
		}
	}

	// The staging tree belongs to the enclosing scope, so the move is not reversed with this
	// one, but it must not start once rollback has.
	destDir := filepath.Join(stagingDir, node.ID)
	dest := filepath.Join(destDir, archiveName)
	if err := scope.Do("move "+built, func() error {
		if err := p.fs.MkdirAll(destDir, os.ModePerm); err != nil {
			return err
		}
		log.Debug("Moving archive", "from", built, "to", dest)
		return p.fs.Rename(built, dest)
	}); err != nil {
		return "", p.fail(node, err)
	}
	return dest, nil
}

func (p *Packager) pack(ctx context.Context, dir string) error {
	return p.retry.Execute(ctx, func() error {
		return p.runner.Run(ctx, p.command, dir, nil)
	})
}

func (p *Packager) fail(node *dependency.Node, err error) error {
	if errors.Is(err, errUtils.ErrScopeClosed) || errors.Is(err, errUtils.ErrArchiveNotSelfContained) {
		return errors.Wrapf(err, "package %s", node.ID)
	}
	return errUtils.Build(errUtils.ErrPackageFailed).
		WithCause(err).
		WithContext("package", node.ID).
		WithContext("manifest", node.ManifestPath).
		Err()
}
