package cmd

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	errUtils "github.com/cloudposse/link-install/errors"
	"github.com/cloudposse/link-install/pkg/config"
	"github.com/cloudposse/link-install/pkg/engine"
	"github.com/cloudposse/link-install/pkg/filesystem"
	"github.com/cloudposse/link-install/pkg/linker"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/metrics"
	"github.com/cloudposse/link-install/pkg/profiler"
	"github.com/cloudposse/link-install/pkg/schema"
	"github.com/cloudposse/link-install/pkg/shell"
)

var linkConfig schema.Configuration

// closeLogs releases the log file opened by setupLogger.
var closeLogs = func() error { return nil }

// RootCmd represents the base command when called without any subcommands
var RootCmd = newRootCmd()

// newRootCmd builds the command tree with fresh flag state.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link-install [flags] [-- install args]",
		Short: "Install dependencies with locally linked packages",
		Long: `Packs every local (file:, link: or path) dependency of package.json into an archive, ` +
			`points the manifest at the archives, runs the package manager's install and restores every file it touched.`,
		Example:       "link-install -i build -e pnpm -- --frozen-lockfile",
		Args:          installArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Do not print usage for errors that are not about the command line.
			cmd.SilenceUsage = true

			var err error
			linkConfig, err = config.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if err := setupLogger(linkConfig.Logs); err != nil {
				return err
			}
			if linkConfig.ConfigFileUsed != "" {
				log.Debug("Using config", "file", linkConfig.ConfigFileUsed)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				linkConfig.InstallArgs = append(linkConfig.InstallArgs, args[dash:]...)
			}
			return runLinkInstall(cmd.Context(), linkConfig)
		},
	}
	addFlags(cmd)
	cmd.AddCommand(newRecoverCmd(), newVersionCmd())
	return cmd
}

// installArgs accepts positional arguments only after "--"; they are passed to the install.
func installArgs(cmd *cobra.Command, args []string) error {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 && len(args) > 0 {
		return errUtils.Build(errUtils.ErrUnexpectedArguments).
			WithContext("args", args).
			WithHint("Pass install arguments after `--`, e.g. `link-install -- --frozen-lockfile`").
			Err()
	}
	if dash > 0 {
		return errUtils.Build(errUtils.ErrUnexpectedArguments).
			WithContext("args", args[:dash]).
			Err()
	}
	return nil
}

func runLinkInstall(ctx context.Context, cfg schema.Configuration) error {
	runner := shell.NewProcessRunner()
	fs := filesystem.NewOSFileSystem()

	eng, err := engine.Select(cfg.Engine, runner, fs, engine.WithPackCommand(cfg.Pack.Command))
	if err != nil {
		return err
	}

	var recorder metrics.Recorder = metrics.Noop{}
	var registry *prometheus.Registry
	if cfg.MetricsFile != "" || cfg.Profiler.Enabled {
		prom := metrics.NewProm()
		recorder, registry = prom, prom.Registry()
	}

	server := profiler.New(cfg.Profiler, registry)
	if err := server.Start(); err != nil {
		log.Warn("Profiler not started", "error", err)
	}
	defer func() { _ = server.Stop() }()

	l := linker.New(cfg, eng, fs, runner,
		linker.WithMetrics(recorder),
		linker.WithSignals(func(sig os.Signal) {
			log.Error("Link install interrupted", "signal", sig)
			Cleanup()
			errUtils.OsExit(1)
		}),
	)
	return l.Run(ctx)
}

func setupLogger(logs schema.Logs) error {
	level, err := log.ParseLogLevel(logs.Level)
	if err != nil {
		return err
	}
	if logs.Verbose && level != log.LogLevelTrace {
		level = log.LogLevelDebug
	}
	w, closer, err := log.OpenOutput(logs.File)
	if err != nil {
		return errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).WithContext("logs_file", logs.File).Err()
	}
	closeLogs = closer
	log.Configure(w, level)
	return nil
}

// Cleanup releases process-wide resources. Safe to call more than once.
func Cleanup() {
	if err := closeLogs(); err != nil {
		log.Trace("Failed to close log file", "error", err)
	}
	closeLogs = func() error { return nil }
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return RootCmd.ExecuteContext(context.Background())
}

// Verbose reports whether errors should be printed with their stack traces.
func Verbose() bool {
	return linkConfig.Logs.Verbose
}

func addFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("config", "", "Path to a config file (default: $XDG_CONFIG_HOME/link-install/config.yaml, then ./.link-install.yaml)")
	pf.StringP("install-dir", "i", "", "The installation directory (default: the current directory)")
	pf.String("logs-level", "Info", "Logs level. Supported log levels are Trace, Debug, Info, Warning, Off")
	pf.String("logs-file", "/dev/stderr", "The file to write logs to, including '/dev/stdout', '/dev/stderr' and '/dev/null'")
	pf.BoolP("verbose", "v", false, "Print debug logs and error stack traces")

	f := cmd.Flags()
	f.StringP("package-json", "p", "", "package.json location (default: <install-dir>/package.json)")
	f.StringP("package-lock", "l", "", "Lock file (package-lock.json, pnpm-lock.yaml) location")
	f.StringP("engine", "e", string(engine.NPM), "Engine to use: npm or pnpm")
	f.Int("concurrency", 0, "Maximum number of dependencies packed at once (default: number of CPUs)")
	f.Bool("dry-run", false, "Pack the local dependencies and print the planned rewrites without installing")
	f.Bool("verify-archives", false, "Fail when a packed archive still references local paths")
	f.String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	f.Bool("journal", true, "Record changes in a crash journal so `link-install recover` can revert a killed run")
	f.String("pack-command", "", "Override the command that packs a dependency (default: '<engine> pack')")
	f.Bool("profiler-enabled", false, "Serve pprof and live run metrics while the install runs")
	f.Int("profiler-port", profiler.DefaultConfig().Port, "Profiler server port")
	f.String("profiler-host", profiler.DefaultConfig().Host, "Profiler server host")
}
