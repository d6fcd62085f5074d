package shell

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -source=$GOFILE -destination=mock_$GOFILE -package=$GOPACKAGE

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	errUtils "github.com/cloudposse/link-install/errors"
	log "github.com/cloudposse/link-install/pkg/logger"
)

// Runner runs external commands with the standard streams of the process.
type Runner interface {
	// Run interprets a shell command string in dir.
	Run(ctx context.Context, command, dir string, env []string) error
	// Exec runs argv in dir.
	Exec(ctx context.Context, dir string, argv []string) error
	// Output runs argv in dir and returns its standard output.
	Output(ctx context.Context, dir string, argv []string) (string, error)
}

// ProcessRunner is the Runner backed by real processes.
//
// Commands are not killed when ctx is cancelled after they started: a package manager that is
// interrupted halfway can leave a directory in a state rollback cannot repair.
// A cancelled ctx only prevents new commands from starting.
type ProcessRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewProcessRunner creates a runner wired to the process standard streams.
func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run uses mvdan.cc/sh/v3's parser and interpreter to run command as a POSIX shell script.
func (r *ProcessRunner) Run(ctx context.Context, command, dir string, env []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debug("Executing command", "command", command, "dir", dir)

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return errUtils.Build(errUtils.ErrCommandFailed).
			WithCause(err).
			WithContext("command", command).
			Err()
	}

	environ := append(os.Environ(), env...)
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(r.Stdin, r.Stdout, r.Stderr),
	)
	if err != nil {
		return err
	}

	err = runner.Run(context.WithoutCancel(ctx), file)
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return errors.Wrapf(errUtils.ExitCodeError{Code: int(status)}, "%s", command)
	}
	return err
}

// Exec runs argv in dir.
func (r *ProcessRunner) Exec(ctx context.Context, dir string, argv []string) error {
	cmd, err := r.command(ctx, dir, argv)
	if err != nil {
		return err
	}
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	log.Debug("Executing command", "command", cmd.String(), "dir", dir)
	return commandError(cmd.Run(), argv)
}

// Output runs argv in dir and returns its trimmed standard output.
func (r *ProcessRunner) Output(ctx context.Context, dir string, argv []string) (string, error) {
	cmd, err := r.command(ctx, dir, argv)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = r.Stderr
	log.Trace("Executing command", "command", cmd.String(), "dir", dir)
	if err := commandError(cmd.Run(), argv); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func (r *ProcessRunner) command(ctx context.Context, dir string, argv []string) (*exec.Cmd, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, errors.Wrap(errUtils.ErrCommandFailed, "empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = os.Environ()
	return cmd, nil
}

func commandError(err error, argv []string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Wrapf(errUtils.ExitCodeError{Code: exitErr.ExitCode()}, "%s", strings.Join(argv, " "))
	}
	return errors.Wrapf(err, "%s", strings.Join(argv, " "))
}
