package rlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevelRecognizesKnownSpellings(t *testing.T) {
	require.Equal(t, levelTrace, parseLevel("trace"))
	require.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("WARNING"))
	require.Equal(t, zapcore.ErrorLevel, parseLevel("Error"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	require.Equal(t, levelOff, parseLevel("off"))
	require.Equal(t, levelOff, parseLevel(""))
	require.Equal(t, levelOff, parseLevel("nonsense"))
}

func TestParseSpecSplitsLevelAndFileAllowlist(t *testing.T) {
	level, files := ParseSpec("DEBUG[eval.go,dispatch.go]")
	require.Equal(t, "DEBUG", level)
	require.Equal(t, []string{"eval.go", "dispatch.go"}, files)

	level, files = ParseSpec("WARN")
	require.Equal(t, "WARN", level)
	require.Nil(t, files)

	level, files = ParseSpec("")
	require.Equal(t, "", level)
	require.Nil(t, files)

	// Malformed bracket (no closing ']') drops the allowlist, keeps the level.
	level, files = ParseSpec("DEBUG[eval.go")
	require.Equal(t, "DEBUG", level)
	require.Nil(t, files)
}

func TestNewWithFileSinkWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rayforce.log")

	logger, err := New(Options{Level: "info", FilePath: path})
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync() // stderr sync can fail harmlessly on some platforms/terminals

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestNewOffLevelDiscardsEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rayforce.log")

	logger, err := New(Options{Level: "off", FilePath: path})
	require.NoError(t, err)
	logger.Error("should not be written")
	_ = logger.Sync()

	// The rotating sink opens its file on first write, so nothing written
	// means no file at all.
	_, err = os.Stat(path)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestNewFileAllowlistFiltersByCallerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rayforce.log")

	logger, err := New(Options{Level: "info", Files: []string{"some_other_file.go"}, FilePath: path})
	require.NoError(t, err)
	logger.Info("filtered out, this file isn't in the allowlist")
	_ = logger.Sync()

	// The rotating sink opens its file on first write, so nothing written
	// means no file at all.
	_, err = os.Stat(path)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestFromEnvDefaultsToDisabled(t *testing.T) {
	os.Unsetenv("RAYFORCE_LOG_LEVEL")
	opts := FromEnv()
	require.Equal(t, "", opts.Level)
	require.Equal(t, levelOff, parseLevel(opts.Level))
}

func TestFromEnvParsesLevelAndAllowlist(t *testing.T) {
	os.Setenv("RAYFORCE_LOG_LEVEL", "TRACE[foo.go]")
	defer os.Unsetenv("RAYFORCE_LOG_LEVEL")

	opts := FromEnv()
	require.Equal(t, "TRACE", opts.Level)
	require.Equal(t, []string{"foo.go"}, opts.Files)
}
