package logging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Frrank1/arangodb/internal/config"
)

func TestNewBuildsLoggerForKnownLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		logger, err := New(config.LoggingConfig{Level: level, Format: "json"})
		require.NoError(t, err)
		require.NotNil(t, logger)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "trace"})
	require.Error(t, err)
}

func TestNewBuildsConsoleEncoder(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}
