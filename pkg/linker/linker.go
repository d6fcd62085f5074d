package linker

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/engine"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/journal"
	"github.com/cloudposse/link-install/pkg/lock"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/manifest"
	"github.com/cloudposse/link-install/pkg/metrics"
	"github.com/cloudposse/link-install/pkg/packager"
	"github.com/cloudposse/link-install/pkg/schema"
	"github.com/cloudposse/link-install/pkg/shell"
	"github.com/cloudposse/link-install/pkg/undo"
)

// State is a stage of a link install run.
type State string

const (
	StateInit                 State = "INIT"
	StateManifestsPrepared    State = "MANIFESTS_PREPARED"
	StateDependenciesPackaged State = "DEPENDENCIES_PACKAGED"
	StateInstallInvoked       State = "INSTALL_INVOKED"
	StateDone                 State = "DONE"
	StateFailed               State = "FAILED"
)

// StagingDirPrefix prefixes the per-run directory that holds the packaged archives.
const StagingDirPrefix = "link-install-"

// Linker runs a link install: it packages every local dependency of the root manifest,
// points the root manifest at the archives, runs the engine's install and rolls back every
// change it made on the way.
type Linker struct {
	config   schema.Configuration
	fs       filesystem.FileSystem
	engine   engine.Engine
	packager *packager.Packager
	metrics  metrics.Recorder
	out      io.Writer

	signals     bool
	onInterrupt func(os.Signal)

	mu      sync.Mutex
	state   State
	handler *undo.InterruptHandler
}

// Option configures a Linker.
type Option func(*Linker)

// WithMetrics records run metrics in recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(l *Linker) {
		l.metrics = recorder
	}
}

// WithOutput sets where the dry-run plan is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(l *Linker) {
		l.out = w
	}
}

// WithSignals makes Run roll back on SIGINT/SIGTERM and then call onInterrupt.
func WithSignals(onInterrupt func(os.Signal)) Option {
	return func(l *Linker) {
		l.signals = true
		l.onInterrupt = onInterrupt
	}
}

// New creates a Linker for config. The engine must already be selected.
func New(config schema.Configuration, eng engine.Engine, fs filesystem.FileSystem, runner shell.Runner, opts ...Option) *Linker {
	l := &Linker{
		config:  config,
		fs:      fs,
		engine:  eng,
		metrics: metrics.Noop{},
		out:     os.Stdout,
		state:   StateInit,
	}
	for _, opt := range opts {
		opt(l)
	}

	command := config.Pack.Command
	if command == "" {
		command = eng.PackCommand()
	}
	l.packager = packager.New(fs, runner, command,
		packager.WithRetry(config.Pack.Retry),
		packager.WithVerification(config.VerifyArchives),
	)
	return l
}

// State returns the current stage.
func (l *Linker) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Linker) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	log.Debug("Link install state", "state", s)
}

// Interrupt rolls the running install back as if sig had been received.
// It does nothing when no run is in progress.
func (l *Linker) Interrupt(sig os.Signal) {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h.Trigger(sig)
	}
}

// ManifestPath returns where the root manifest is installed from.
func (l *Linker) ManifestPath() string {
	return filepath.Join(l.config.InstallDir, manifest.FileName)
}

// Run performs the link install. Whatever happens, every change except the rewritten
// manifest and lockfile staged into a separate install directory is reverted before Run
// returns.
func (l *Linker) Run(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		if err != nil {
			l.setState(StateFailed)
		}
		l.metrics.ObserveRun(string(l.State()), time.Since(started).Seconds())
		l.writeMetrics()
	}()

	if err := l.validate(ctx); err != nil {
		return err
	}

	createdDir := l.firstMissingDir(l.config.InstallDir)
	if err := l.fs.MkdirAll(l.config.InstallDir, os.ModePerm); err != nil {
		return errUtils.Build(errUtils.ErrCreateInstallDir).
			WithCause(err).
			WithContext("install_dir", l.config.InstallDir).
			Err()
	}

	lockPath, err := lock.PathFor(l.config.InstallDir)
	if err != nil {
		return errUtils.Build(errUtils.ErrInstallDirLocked).WithCause(err).Err()
	}
	runLock, err := lock.Acquire(lockPath)
	if err != nil {
		return err
	}
	defer runLock.Release()

	var scopeOpts []undo.Option
	if l.config.Journal {
		j, err := l.openJournal()
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				log.Warn("Failed to close undo journal", "path", j.Path(), "error", err)
			}
		}()
		scopeOpts = append(scopeOpts, undo.WithJournal(j))
	}

	root := undo.NewManager("link-install", scopeOpts...)
	l.startInterruptHandler(root)
	defer l.stopInterruptHandler()
	defer func() {
		log.Debug("Rolling back", "scope", root.Name())
		if err := root.UndoAll(); err != nil {
			l.metrics.IncRollbackFailures()
			log.Error("Rollback incomplete", "error", err)
		}
	}()

	// Files copied into a separate install directory survive a successful run.
	staged := root.NewScope("staged")
	if createdDir != "" {
		staged.Register(undo.NewRemove(l.fs, createdDir))
	}

	scope, err := l.prepareManifests(root, staged)
	if err != nil {
		return l.interrupted(root, err)
	}
	l.setState(StateManifestsPrepared)

	rewrites, err := l.packageDependencies(ctx, root)
	if err != nil {
		return l.interrupted(root, err)
	}

	if l.config.DryRun {
		l.printPlan(rewrites)
		l.setState(StateDependenciesPackaged)
		if err := l.interrupted(root, nil); err != nil {
			return err
		}
		l.setState(StateDone)
		return nil
	}

	if err := l.rewriteManifest(scope, rewrites); err != nil {
		return l.interrupted(root, err)
	}
	l.setState(StateDependenciesPackaged)

	if err := l.interrupted(root, nil); err != nil {
		return err
	}
	l.setState(StateInstallInvoked)
	log.Info("Installing", "engine", l.engine.Name(), "dir", l.config.InstallDir, "args", l.config.InstallArgs)
	if err := l.engine.Install(ctx, l.config.InstallDir, l.config.InstallArgs); err != nil {
		return l.interrupted(root, err)
	}
	if err := l.interrupted(root, nil); err != nil {
		return err
	}

	staged.Commit()
	l.setState(StateDone)
	log.Info("Link install complete", "dir", l.config.InstallDir, "dependencies", len(rewrites))
	return nil
}

// validate checks everything that can be checked before the first mutation.
func (l *Linker) validate(ctx context.Context) error {
	if l.config.Concurrency < 1 {
		return errUtils.Build(errUtils.ErrInvalidConcurrency).
			WithContext("concurrency", l.config.Concurrency).
			Err()
	}
	if !manifest.Exists(l.fs, l.config.PackageJSON) {
		return errUtils.Build(errUtils.ErrManifestNotFound).
			WithContext("path", l.config.PackageJSON).
			WithHint("Point --package-json at the manifest to install").
			Err()
	}
	return l.engine.IsAvailable(ctx)
}

// firstMissingDir returns the outermost directory MkdirAll(dir) would create, or "" when dir
// already exists.
func (l *Linker) firstMissingDir(dir string) string {
	missing := ""
	for !filesystem.Exists(l.fs, dir) {
		missing = dir
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return missing
}

func (l *Linker) openJournal() (*journal.Journal, error) {
	path, err := journal.PathFor(l.config.InstallDir)
	if err != nil {
		return nil, errUtils.Build(errUtils.ErrJournalOpen).WithCause(err).Err()
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, err
	}

	pending, err := j.Pending()
	if err == nil && len(pending) > 0 {
		err = errUtils.Build(errUtils.ErrJournalPending).
			WithContext("journal", path).
			WithContext("records", len(pending)).
			WithHintf("Run `link-install recover --install-dir %s` to restore the files first", l.config.InstallDir).
			Err()
	}
	if err == nil {
		err = j.Begin(l.config.InstallDir)
	}
	if err != nil {
		_ = j.Close()
		return nil, err
	}
	log.Trace("Opened undo journal", "path", path)
	return j, nil
}

func (l *Linker) startInterruptHandler(root *undo.Manager) {
	h := undo.NewInterruptHandler(root, l.onInterrupt)
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
	if l.signals {
		h.Start()
	}
}

func (l *Linker) stopInterruptHandler() {
	l.mu.Lock()
	h := l.handler
	l.handler = nil
	l.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// interrupted returns ErrInterrupted when root was rolled back underneath the run, and err
// otherwise.
func (l *Linker) interrupted(root *undo.Manager, err error) error {
	if !root.Closed() {
		return err
	}
	b := errUtils.Build(errUtils.ErrInterrupted)
	if err != nil && !errors.Is(err, errUtils.ErrScopeClosed) {
		b = b.WithCause(err)
	}
	return b.WithExplanation("The run was interrupted and every change has been rolled back").Err()
}

func (l *Linker) writeMetrics() {
	if l.config.MetricsFile == "" {
		return
	}
	if err := l.metrics.WriteTextfile(l.config.MetricsFile); err != nil {
		log.Warn("Failed to write metrics", "path", l.config.MetricsFile, "error", err)
	}
}
