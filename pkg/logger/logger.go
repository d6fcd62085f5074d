package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	charm "github.com/charmbracelet/log"
)

// ErrInvalidLogLevel is returned for an unrecognized configured level.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Level is a logging level.
type Level = charm.Level

// TraceLevel is one step more verbose than debug.
const TraceLevel Level = charm.DebugLevel - 1

// Levels re-exported so callers do not import charm directly.
const (
	DebugLevel = charm.DebugLevel
	InfoLevel  = charm.InfoLevel
	WarnLevel  = charm.WarnLevel
	ErrorLevel = charm.ErrorLevel
)

// offLevel is above every level a caller can emit.
const offLevel Level = charm.FatalLevel + 1

// LogLevel is the level as written in configuration files and flags.
type LogLevel string

const (
	LogLevelOff     LogLevel = "Off"
	LogLevelTrace   LogLevel = "Trace"
	LogLevelDebug   LogLevel = "Debug"
	LogLevelInfo    LogLevel = "Info"
	LogLevelWarning LogLevel = "Warning"
)

// ParseLogLevel validates a configured log level. An empty string means Info.
func ParseLogLevel(logLevel string) (LogLevel, error) {
	if logLevel == "" {
		return LogLevelInfo, nil
	}

	for _, level := range []LogLevel{LogLevelOff, LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarning} {
		if strings.EqualFold(logLevel, string(level)) {
			return level, nil
		}
	}

	return "", fmt.Errorf("%w: '%s'. Supported log levels are Trace, Debug, Info, Warning, Off", ErrInvalidLogLevel, logLevel)
}

// ToCharmLevel maps a configured level to the logger level.
func (l LogLevel) ToCharmLevel() Level {
	switch l {
	case LogLevelOff:
		return offLevel
	case LogLevelTrace:
		return TraceLevel
	case LogLevelDebug:
		return DebugLevel
	case LogLevelWarning:
		return WarnLevel
	default:
		return InfoLevel
	}
}

// Logger wraps a charm logger and adds the trace level.
type Logger struct {
	*charm.Logger
}

// NewLogger wraps an existing charm logger.
func NewLogger(l *charm.Logger) *Logger {
	styles := charm.DefaultStyles()
	styles.Levels[TraceLevel] = lipgloss.NewStyle().
		SetString("TRCE").
		Bold(true).
		MaxWidth(4).
		Foreground(lipgloss.Color("61"))
	l.SetStyles(styles)
	return &Logger{Logger: l}
}

// Trace logs a message at trace level.
func (l *Logger) Trace(msg interface{}, keyvals ...interface{}) {
	l.Log(TraceLevel, msg, keyvals...)
}

// GetLevelString returns the lower-case name of the current level.
func (l *Logger) GetLevelString() string {
	switch level := l.GetLevel(); {
	case level == TraceLevel:
		return "trace"
	case level >= offLevel:
		return "off"
	default:
		return strings.ToLower(level.String())
	}
}

// OpenOutput resolves a configured log destination.
// "/dev/stderr", "/dev/stdout" and "" map to the process streams; anything else is
// opened for appending. The returned closer is a no-op for the process streams.
func OpenOutput(file string) (io.Writer, func() error, error) {
	switch file {
	case "", "/dev/stderr":
		return os.Stderr, func() error { return nil }, nil
	case "/dev/stdout":
		return os.Stdout, func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
