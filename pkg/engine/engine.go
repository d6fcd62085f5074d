package engine

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -source=$GOFILE -destination=mock_$GOFILE -package=$GOPACKAGE

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/shell"
)

// Type is the enumerated tag of a package manager backend.
type Type string

const (
	NPM  Type = "npm"
	PNPM Type = "pnpm"
)

// Types lists the supported engines.
var Types = []Type{NPM, PNPM}

// Engine is a package manager backend.
type Engine interface {
	// Name returns the engine tag.
	Name() Type
	// LockfileName returns the lockfile base name, e.g. "package-lock.json".
	LockfileName() string
	// PackCommand returns the shell command that packs the package in the working directory.
	PackCommand() string
	// Install runs the real install in dir with pass-through args.
	Install(ctx context.Context, dir string, args []string) error
	// CleanLockfile removes lockfile entries that point at local directories.
	CleanLockfile(path string) error
	// IsAvailable returns an error when the engine binary is missing or too old.
	IsAvailable(ctx context.Context) error
}

// Option configures an engine.
type Option func(*base)

// WithPackCommand overrides the archiving command.
func WithPackCommand(command string) Option {
	return func(b *base) {
		if command != "" {
			b.packCommand = command
		}
	}
}

// Select returns the engine for tag.
func Select(tag string, runner shell.Runner, fs filesystem.FileSystem, opts ...Option) (Engine, error) {
	var e Engine
	var b *base
	switch Type(strings.ToLower(tag)) {
	case NPM:
		n := newNPM(runner, fs)
		e, b = n, &n.base
	case PNPM:
		p := newPNPM(runner, fs)
		e, b = p, &p.base
	default:
		return nil, errUtils.Build(errUtils.ErrUnknownEngine).
			WithCause(fmt.Errorf("%q", tag)).
			WithHintf("Supported engines: %s", strings.Join(lo.Map(Types, func(t Type, _ int) string { return string(t) }), ", ")).
			Err()
	}
	for _, opt := range opts {
		opt(b)
	}
	return e, nil
}

type base struct {
	runner      shell.Runner
	fs          filesystem.FileSystem
	name        Type
	lockfile    string
	packCommand string
	minVersion  string
}

func (b *base) Name() Type {
	return b.name
}

func (b *base) LockfileName() string {
	return b.lockfile
}

func (b *base) PackCommand() string {
	return b.packCommand
}

func (b *base) Install(ctx context.Context, dir string, args []string) error {
	argv := append([]string{string(b.name), "install"}, args...)
	if err := b.runner.Exec(ctx, dir, argv); err != nil {
		return errUtils.Build(errUtils.ErrInstallFailed).
			WithCause(err).
			WithContext("engine", string(b.name)).
			WithContext("dir", dir).
			Err()
	}
	return nil
}

func (b *base) IsAvailable(ctx context.Context) error {
	out, err := b.runner.Output(ctx, "", []string{string(b.name), "--version"})
	if err != nil {
		return errUtils.Build(errUtils.ErrEngineUnavailable).
			WithCause(err).
			WithHintf("Install `%s` and make sure it is on your PATH", b.name).
			Err()
	}

	version, err := semver.NewVersion(strings.TrimPrefix(out, "v"))
	if err != nil {
		return errUtils.Build(errUtils.ErrEngineUnavailable).
			WithCause(err).
			WithContext("output", out).
			Err()
	}
	constraint, err := semver.NewConstraint(">= " + b.minVersion)
	if err != nil {
		return err
	}
	if !constraint.Check(version) {
		return errUtils.Build(errUtils.ErrEngineUnavailable).
			WithCause(fmt.Errorf("%s %s is older than %s", b.name, version, b.minVersion)).
			WithHintf("Upgrade `%s` to %s or newer", b.name, b.minVersion).
			Err()
	}
	return nil
}
