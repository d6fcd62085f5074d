package schema

import "time"

// Configuration is the resolved link-install configuration.
// It is assembled by pkg/config from defaults, config files, environment and flags.
type Configuration struct {
	Engine         string   `yaml:"engine" json:"engine" mapstructure:"engine"`
	InstallDir     string   `yaml:"install_dir" json:"install_dir" mapstructure:"install_dir"`
	PackageJSON    string   `yaml:"package_json" json:"package_json" mapstructure:"package_json"`
	PackageLock    string   `yaml:"package_lock" json:"package_lock" mapstructure:"package_lock"`
	Concurrency    int      `yaml:"concurrency" json:"concurrency" mapstructure:"concurrency"`
	DryRun         bool     `yaml:"dry_run" json:"dry_run" mapstructure:"dry_run"`
	VerifyArchives bool     `yaml:"verify_archives" json:"verify_archives" mapstructure:"verify_archives"`
	MetricsFile    string   `yaml:"metrics_file" json:"metrics_file" mapstructure:"metrics_file"`
	Journal        bool     `yaml:"journal" json:"journal" mapstructure:"journal"`
	InstallArgs    []string `yaml:"install_args" json:"install_args" mapstructure:"install_args"`
	Logs           Logs     `yaml:"logs" json:"logs" mapstructure:"logs"`
	Pack           Pack     `yaml:"pack" json:"pack" mapstructure:"pack"`
	Profiler       Profiler `yaml:"profiler" json:"profiler" mapstructure:"profiler"`

	// ConfigFileUsed is the path of the config file that was merged, if any.
	ConfigFileUsed string `yaml:"-" json:"-" mapstructure:"-"`
}

type Logs struct {
	File    string `yaml:"file" json:"file" mapstructure:"file"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
	Verbose bool   `yaml:"verbose" json:"verbose" mapstructure:"verbose"`
}

// Profiler configures the pprof and live metrics endpoint.
type Profiler struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Port    int    `yaml:"port" json:"port" mapstructure:"port"`
	Host    string `yaml:"host" json:"host" mapstructure:"host"`
}

// Pack configures the archiving step for local dependencies.
type Pack struct {
	// Command overrides the engine's archiving command (for example "yarn pack").
	Command string      `yaml:"command" json:"command" mapstructure:"command"`
	Retry   RetryConfig `yaml:"retry" json:"retry" mapstructure:"retry"`
}

type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryConfig controls how often a failing command is re-attempted.
type RetryConfig struct {
	MaxAttempts     int             `yaml:"max_attempts" json:"max_attempts" mapstructure:"max_attempts"`
	BackoffStrategy BackoffStrategy `yaml:"backoff_strategy" json:"backoff_strategy" mapstructure:"backoff_strategy"`
	InitialDelay    time.Duration   `yaml:"initial_delay" json:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay        time.Duration   `yaml:"max_delay" json:"max_delay" mapstructure:"max_delay"`
	RandomJitter    bool            `yaml:"random_jitter" json:"random_jitter" mapstructure:"random_jitter"`
	Multiplier      float64         `yaml:"multiplier" json:"multiplier" mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration   `yaml:"max_elapsed_time" json:"max_elapsed_time" mapstructure:"max_elapsed_time"`
}
