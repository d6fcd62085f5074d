package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceLevel_RelativeToDebug(t *testing.T) {
	assert.Equal(t, DebugLevel-1, TraceLevel)
	assert.Less(t, int(TraceLevel), int(DebugLevel))
}

func TestLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf)
	l.SetLevel(TraceLevel)

	l.Trace("test trace message", "key", "value")

	assert.Contains(t, buf.String(), "test trace message")
	assert.Contains(t, buf.String(), "key=value")
}

func TestLogger_TraceFilteredAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf)
	l.SetLevel(DebugLevel)

	l.Trace("hidden")
	l.Debug("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_GetLevelString(t *testing.T) {
	l := New()

	l.SetLevel(TraceLevel)
	assert.Equal(t, "trace", l.GetLevelString())

	l.SetLevel(DebugLevel)
	assert.Equal(t, "debug", l.GetLevelString())

	l.SetLevel(LogLevelOff.ToCharmLevel())
	assert.Equal(t, "off", l.GetLevelString())
}

func TestPackageLevelFunctions(t *testing.T) {
	oldLogger := Default()
	defer SetDefault(oldLogger)

	var buf bytes.Buffer
	Configure(&buf, LogLevelTrace)

	Trace("package level trace")
	Info("package level info", "dependency", "foo")

	assert.Contains(t, buf.String(), "package level trace")
	assert.Contains(t, buf.String(), "dependency=foo")
}

func TestConfigure_Off(t *testing.T) {
	oldLogger := Default()
	defer SetDefault(oldLogger)

	var buf bytes.Buffer
	Configure(&buf, LogLevelOff)

	Error("should not appear")

	assert.Empty(t, buf.String())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		hasError bool
	}{
		{"Trace", LogLevelTrace, false},
		{"debug", LogLevelDebug, false},
		{"Info", LogLevelInfo, false},
		{"Warning", LogLevelWarning, false},
		{"Off", LogLevelOff, false},
		{"", LogLevelInfo, false},
		{"Invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.hasError {
				assert.ErrorIs(t, err, ErrInvalidLogLevel)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestOpenOutput(t *testing.T) {
	w, closeFn, err := OpenOutput("")
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, w)
	assert.NoError(t, closeFn())

	logFile := filepath.Join(t.TempDir(), "link-install.log")
	w, closeFn, err = OpenOutput(logFile)
	require.NoError(t, err)

	l := NewWithOutput(w)
	l.Info("written to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}
