package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlagsAndPositionalFile(t *testing.T) {
	cfg, err := Parse([]string{"rayforce", "-p", "7000", "-i", "--cores", "4", "script.rf"})
	require.NoError(t, err)
	require.Equal(t, "script.rf", cfg.File)
	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, 4, cfg.Cores)
	require.True(t, cfg.Interactive)
	require.Empty(t, cfg.LogLevel) // unset: main.go falls back to RAYFORCE_LOG_LEVEL
}

func TestParseExplicitFileFlagTakesPrecedence(t *testing.T) {
	cfg, err := Parse([]string{"rayforce", "--file", "a.rf"})
	require.NoError(t, err)
	require.Equal(t, "a.rf", cfg.File)
}

func TestParseAmbientFlags(t *testing.T) {
	cfg, err := Parse([]string{"rayforce", "--metrics-addr", ":9100", "--console-addr", ":8800", "--log-level", "debug"})
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.MetricsAddr)
	require.Equal(t, ":8800", cfg.ConsoleAddr)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestParsePoolSizeAcceptsHumanFriendlySuffix(t *testing.T) {
	cfg, err := Parse([]string{"rayforce", "--pool-size", "4GiB"})
	require.NoError(t, err)
	require.Equal(t, uint64(4*1024*1024*1024), cfg.PoolSizeBytes)
}

func TestParsePoolSizeRejectsGarbage(t *testing.T) {
	_, err := Parse([]string{"rayforce", "--pool-size", "not-a-size"})
	require.Error(t, err)
}

func TestParsePoolSizeUnsetDefaultsToZero(t *testing.T) {
	cfg, err := Parse([]string{"rayforce"})
	require.NoError(t, err)
	require.Zero(t, cfg.PoolSizeBytes)
}
