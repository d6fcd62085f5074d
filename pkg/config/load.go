package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	errUtils "github.com/cloudposse/link-install/errors"
	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/schema"
	"github.com/cloudposse/link-install/pkg/xdg"
)

const (
	// WorkDirConfigFileName is read from the current directory, without extension.
	WorkDirConfigFileName = ".link-install"
	// UserConfigFileName is read from the XDG config directory, without extension.
	UserConfigFileName = "config"
	// EnvPrefix prefixes every environment variable, e.g. LINK_INSTALL_ENGINE.
	EnvPrefix = "LINK_INSTALL"
	// ConfigFileEnvVar points at an explicit config file.
	ConfigFileEnvVar = "LINK_INSTALL_CONFIG"
)

// flagKeys maps configuration keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"engine":           "engine",
	"install_dir":      "install-dir",
	"package_json":     "package-json",
	"package_lock":     "package-lock",
	"concurrency":      "concurrency",
	"dry_run":          "dry-run",
	"verify_archives":  "verify-archives",
	"metrics_file":     "metrics-file",
	"journal":          "journal",
	"logs.level":       "logs-level",
	"logs.file":        "logs-file",
	"logs.verbose":     "verbose",
	"pack.command":     "pack-command",
	"profiler.enabled": "profiler-enabled",
	"profiler.port":    "profiler-port",
	"profiler.host":    "profiler-host",
}

// LoadConfig loads the configuration from the following locations (from lower to higher priority):
// defaults
// user config ($XDG_CONFIG_HOME/link-install/config.yaml)
// current directory (.link-install.yaml)
// explicit config file (LINK_INSTALL_CONFIG or --config)
// ENV vars (LINK_INSTALL_*)
// Command-line arguments
func LoadConfig(flags *pflag.FlagSet) (schema.Configuration, error) {
	var cfg schema.Configuration

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetTypeByDefaultValue(true)
	setDefaultConfiguration(v)

	if err := mergeConfig(v, xdg.ConfigBase(), UserConfigFileName); err != nil {
		return cfg, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return cfg, errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).Err()
	}
	if err := mergeConfig(v, wd, WorkDirConfigFileName); err != nil {
		return cfg, err
	}
	if err := mergeConfigFile(v, explicitConfigFile(flags)); err != nil {
		return cfg, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return cfg, errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).WithContext("flag", name).Err()
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).Err()
	}
	cfg.ConfigFileUsed = v.ConfigFileUsed()

	if err := resolve(&cfg, wd); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaultConfiguration set default configuration for the viper instance.
func setDefaultConfiguration(v *viper.Viper) {
	v.SetDefault("engine", "npm")
	v.SetDefault("install_dir", "")
	v.SetDefault("package_json", "")
	v.SetDefault("package_lock", "")
	v.SetDefault("concurrency", 0)
	v.SetDefault("dry_run", false)
	v.SetDefault("verify_archives", false)
	v.SetDefault("metrics_file", "")
	v.SetDefault("journal", true)
	v.SetDefault("logs.file", "")
	v.SetDefault("logs.level", "Info")
	v.SetDefault("logs.verbose", false)
	v.SetDefault("profiler.enabled", false)
	v.SetDefault("profiler.port", 6060)
	v.SetDefault("profiler.host", "localhost")
	v.SetDefault("pack.command", "")
	v.SetDefault("pack.retry.max_attempts", 1)
	v.SetDefault("pack.retry.backoff_strategy", string(schema.BackoffExponential))
	v.SetDefault("pack.retry.initial_delay", "1s")
	v.SetDefault("pack.retry.max_delay", "10s")
	v.SetDefault("pack.retry.random_jitter", true)
	v.SetDefault("pack.retry.multiplier", 2.0)
	v.SetDefault("pack.retry.max_elapsed_time", "5m")
}

func explicitConfigFile(flags *pflag.FlagSet) string {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	return os.Getenv(ConfigFileEnvVar)
}

// mergeConfig merges path/fileName.yaml if it exists.
func mergeConfig(v *viper.Viper, path string, fileName string) error {
	probe := viper.New()
	probe.SetConfigType("yaml")
	probe.AddConfigPath(path)
	probe.SetConfigName(fileName)
	err := probe.ReadInConfig()
	if err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			log.Trace("Config not found", "path", path, "name", fileName)
			return nil
		default:
			return errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).WithContext("path", path).Err()
		}
	}
	return mergeConfigFile(v, probe.ConfigFileUsed())
}

func mergeConfigFile(v *viper.Viper, file string) error {
	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.MergeInConfig(); err != nil {
		return errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).WithContext("file", file).Err()
	}
	log.Debug("Merged config", "file", file)
	return nil
}

// resolve applies computed defaults and validates the merged configuration.
func resolve(cfg *schema.Configuration, wd string) error {
	cfg.Engine = strings.ToLower(cfg.Engine)

	if cfg.Concurrency < 0 {
		return errUtils.Build(errUtils.ErrInvalidConcurrency).
			WithContext("concurrency", cfg.Concurrency).
			Err()
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = runtime.NumCPU()
	}

	if _, err := log.ParseLogLevel(cfg.Logs.Level); err != nil {
		return errUtils.Build(errUtils.ErrLoadConfig).
			WithCause(err).
			WithHint("Valid log levels: Trace, Debug, Info, Warning, Off").
			Err()
	}

	installDir := cfg.InstallDir
	if installDir == "" {
		installDir = wd
	}
	abs, err := absFrom(wd, installDir)
	if err != nil {
		return errUtils.Build(errUtils.ErrResolveInstallDir).WithCause(err).Err()
	}
	cfg.InstallDir = abs

	if cfg.PackageJSON == "" {
		cfg.PackageJSON = filepath.Join(cfg.InstallDir, "package.json")
	}
	if cfg.PackageJSON, err = absFrom(wd, cfg.PackageJSON); err != nil {
		return errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).Err()
	}
	if cfg.PackageLock != "" {
		if cfg.PackageLock, err = absFrom(wd, cfg.PackageLock); err != nil {
			return errUtils.Build(errUtils.ErrLoadConfig).WithCause(err).Err()
		}
	}
	return nil
}

func absFrom(wd, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Abs(filepath.Join(wd, path))
}
