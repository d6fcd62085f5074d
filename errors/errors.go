package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Configuration errors. Raised before any filesystem mutation.
var (
	ErrManifestNotFound    = errors.New("package manifest not found")
	ErrInvalidManifest     = errors.New("invalid package manifest")
	ErrInvalidVersion      = errors.New("invalid package version")
	ErrUnknownEngine       = errors.New("unknown package manager engine")
	ErrEngineUnavailable   = errors.New("package manager engine is not available")
	ErrInvalidConcurrency  = errors.New("concurrency must be greater than zero")
	ErrLoadConfig          = errors.New("failed to load configuration")
	ErrInstallDirLocked    = errors.New("install directory is locked by another run")
	ErrCreateInstallDir    = errors.New("failed to create install directory")
	ErrResolveInstallDir   = errors.New("failed to resolve install directory")
	ErrUnexpectedArguments = errors.New("unexpected arguments")
)

// Graph errors.
var (
	ErrCircularDependency = errors.New("circular local dependency")
	ErrNodeNotFound       = errors.New("dependency node not found")
	ErrDuplicateNode      = errors.New("dependency node already exists")
)

// Run errors. Each of these triggers a full rollback.
var (
	ErrStageManifest           = errors.New("failed to stage package manifest")
	ErrStageLockfile           = errors.New("failed to stage lockfile")
	ErrCleanLockfile           = errors.New("failed to clean lockfile")
	ErrCreateStagingDir        = errors.New("failed to create staging directory")
	ErrPackageFailed           = errors.New("failed to package local dependency")
	ErrArchiveNotSelfContained = errors.New("packaged archive still references local paths")
	ErrRewriteManifest         = errors.New("failed to rewrite package manifest")
	ErrInstallFailed           = errors.New("install command failed")
	ErrCommandFailed           = errors.New("command failed")
	ErrInterrupted             = errors.New("interrupted")
	ErrScopeClosed             = errors.New("undo scope already rolled back")
	ErrRollbackIncomplete      = errors.New("rollback completed with errors")
)

// Journal errors.
var (
	ErrJournalOpen    = errors.New("failed to open undo journal")
	ErrJournalCorrupt = errors.New("undo journal record is corrupt")
	ErrJournalWrite   = errors.New("failed to write undo journal")
	ErrJournalPending = errors.New("a previous run left changes that were not rolled back")
)

// ExitCodeError carries the exit status of an external command.
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
