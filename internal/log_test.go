package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warn"))
	assert.Equal(t, LogLevelTrace, ParseLogLevel(" TRACE "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelWarn).WithComponent("Driver")

	logger.Debug("hidden %d", 1)
	logger.Warn("pruned %d tiles", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] [Driver] pruned 3 tiles")
}

func TestLogger_NilIsSilent(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.Error("nothing") })
}
