// Package rlog is RayforceDB's structured logger: a zap logger writing to
// stderr and, when a log file is configured, to a lumberjack-rotated file
// simultaneously.
package rlog

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// levelTrace and levelOff extend zap's built-in ladder (Debug..Fatal) to
// cover the full OFF/ERROR/WARN/INFO/DEBUG/TRACE spectrum RAYFORCE_LOG_LEVEL
// selects from. levelOff sits above every real level zap ever logs at, so a
// core gated on it never fires; levelTrace sits one below Debug.
const (
	levelTrace = zapcore.Level(-2)
	levelOff   = zapcore.Level(127)
)

// Options configures New.
type Options struct {
	// Level is one of off/error/warn/info/debug/trace, case-insensitive.
	// Empty or unrecognized disables logging entirely (levelOff).
	Level string
	// Files, when non-empty, restricts log output to entries whose caller
	// file (base name) appears in this list — the `[file1,file2,...]`
	// allowlist suffix of RAYFORCE_LOG_LEVEL.
	Files []string
	// FilePath, when non-empty, also writes JSON-encoded entries to a
	// lumberjack-rotated file at this path.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// FromEnv reads RAYFORCE_LOG_LEVEL, shaped
// "[OFF|ERROR|WARN|INFO|DEBUG|TRACE][file1,file2,...]" (spec.md §6.4).
// An unset or empty variable disables all logging, per the same section.
func FromEnv() Options {
	level, files := ParseSpec(os.Getenv("RAYFORCE_LOG_LEVEL"))
	return Options{Level: level, Files: files}
}

// ParseSpec splits a RAYFORCE_LOG_LEVEL-shaped string into its level name
// and optional bracketed, comma-separated file allowlist, e.g.
// "DEBUG[eval.go,dispatch.go]" -> ("DEBUG", []string{"eval.go", "dispatch.go"}).
// A malformed bracket suffix (no closing ']') is dropped, keeping only the
// level.
func ParseSpec(spec string) (level string, files []string) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", nil
	}
	i := strings.IndexByte(spec, '[')
	if i < 0 {
		return spec, nil
	}
	level = spec[:i]
	rest := spec[i:]
	if !strings.HasSuffix(rest, "]") {
		return level, nil
	}
	inner := rest[1 : len(rest)-1]
	for _, f := range strings.Split(inner, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	return level, files
}

// New builds a zap.Logger per opts: console-encoded, color-free output to
// stderr, plus a JSON-encoded lumberjack sink when FilePath is set. Level
// "off" (or unset/unrecognized) yields a logger that never emits anything.
func New(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	cores := []zapcore.Core{consoleCore}

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(rotator),
			level,
		)
		cores = append(cores, fileCore)
	}

	core := zapcore.NewTee(cores...)
	if len(opts.Files) > 0 {
		core = newAllowlistCore(core, opts.Files)
	}

	// Sugar() adjusts its own caller skip, so with no extra skip here
	// caller.File (and the allowlist filter above) names the real call site
	// for both Logger and SugaredLogger calls.
	return zap.New(core, zap.AddCaller()), nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return levelTrace
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "OFF":
		return levelOff
	default:
		return levelOff
	}
}

// allowlistCore wraps a zapcore.Core so only entries whose caller file (base
// name) is in allow reach it — the `[file1,file2,...]` suffix of
// RAYFORCE_LOG_LEVEL.
type allowlistCore struct {
	zapcore.Core
	allow map[string]bool
}

func newAllowlistCore(core zapcore.Core, files []string) zapcore.Core {
	allow := make(map[string]bool, len(files))
	for _, f := range files {
		allow[f] = true
	}
	return &allowlistCore{Core: core, allow: allow}
}

// Check registers c itself for enabled levels; zap fills in ent.Caller only
// after Check returns, so the caller-file test happens in Write.
func (c *allowlistCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *allowlistCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if !c.allow[filepath.Base(ent.Caller.File)] {
		return nil
	}
	return c.Core.Write(ent, fields)
}

func (c *allowlistCore) With(fields []zapcore.Field) zapcore.Core {
	return &allowlistCore{Core: c.Core.With(fields), allow: c.allow}
}
