package linker

import (
	"path/filepath"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/manifest"
	"github.com/cloudposse/link-install/pkg/undo"
)

// lockfilePath returns the source lockfile: the configured one, or the engine's lockfile next
// to the source manifest.
func (l *Linker) lockfilePath() string {
	if l.config.PackageLock != "" {
		return l.config.PackageLock
	}
	return filepath.Join(filepath.Dir(l.config.PackageJSON), l.engine.LockfileName())
}

// prepareManifests puts the root manifest and lockfile into the install directory.
// It returns the scope that owns the installed root manifest: the root scope when the
// manifest is installed in place, staged when it was copied.
func (l *Linker) prepareManifests(root, staged *undo.Manager) (*undo.Manager, error) {
	if err := l.stageLockfile(root, staged); err != nil {
		return nil, err
	}
	return l.stageManifest(root, staged)
}

func (l *Linker) stageLockfile(root, staged *undo.Manager) error {
	src := l.lockfilePath()
	dst := filepath.Join(l.config.InstallDir, l.engine.LockfileName())

	if !filesystem.Exists(l.fs, src) {
		log.Info("Lockfile does not exist", "lockfile", l.engine.LockfileName(), "path", src)
		return nil
	}

	snapshot, err := undo.NewSnapshot(l.fs, dst)
	if err != nil {
		return errUtils.Build(errUtils.ErrStageLockfile).WithCause(err).WithContext("path", dst).Err()
	}

	if src == dst {
		return root.Apply(snapshot, func() error {
			return l.cleanLockfile(dst)
		})
	}

	log.Info("Copying lockfile", "from", filepath.Dir(src), "to", l.config.InstallDir)
	return staged.Apply(snapshot, func() error {
		if err := l.fs.Copy(src, dst); err != nil {
			return errUtils.Build(errUtils.ErrStageLockfile).
				WithCause(err).
				WithContext("from", src).
				WithContext("to", dst).
				Err()
		}
		return l.cleanLockfile(dst)
	})
}

func (l *Linker) cleanLockfile(path string) error {
	if err := l.engine.CleanLockfile(path); err != nil {
		return errUtils.Build(errUtils.ErrCleanLockfile).WithCause(err).WithContext("path", path).Err()
	}
	return nil
}

func (l *Linker) stageManifest(root, staged *undo.Manager) (*undo.Manager, error) {
	src := l.config.PackageJSON
	dst := l.ManifestPath()

	if src == dst {
		snapshot, err := undo.NewSnapshot(l.fs, dst)
		if err != nil {
			return nil, errUtils.Build(errUtils.ErrStageManifest).WithCause(err).WithContext("path", dst).Err()
		}
		root.Register(snapshot)
		return root, nil
	}

	doc, err := manifest.Load(l.fs, src)
	if err != nil {
		return nil, err
	}
	relocated, err := manifest.RelocateLocalReferences(doc, filepath.Dir(src), l.config.InstallDir)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrStageManifest).WithCause(err).WithContext("path", src).Err()
	}
	snapshot, err := undo.NewSnapshot(l.fs, dst)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrStageManifest).WithCause(err).WithContext("path", dst).Err()
	}

	log.Info("Copying package manifest", "from", filepath.Dir(src), "to", l.config.InstallDir)
	err = staged.Apply(snapshot, func() error {
		if err := manifest.Save(l.fs, dst, relocated); err != nil {
			return errUtils.Build(errUtils.ErrStageManifest).WithCause(err).WithContext("path", dst).Err()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}
