// Package config assembles RayforceDB's runtime configuration from CLI
// flags (spec.md §6.1), plus the ambient flags the teacher's own
// long-running services carry (pool size, metrics, console).
package config

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/urfave/cli/v2"
)

// Config is the fully resolved set of options a rayforce process runs
// with.
type Config struct {
	File        string
	Port        int
	Cores       int
	Timeit      bool
	Interactive bool
	ScriptArgs  []string

	// PoolSizeBytes is the main arena's requested pool size, parsed from
	// --pool-size via c2h5oh/datasize (e.g. "4GiB"); 0 means use
	// arena.DefaultMaxOrder.
	PoolSizeBytes uint64

	MetricsAddr string
	ConsoleAddr string
	LogLevel    string
	LogFile     string
}

// Parse builds a Config from argv (os.Args-shaped), running through a
// urfave/cli App so flag parsing, `--help`, and `--` passthrough-args
// handling all come from the same library the teacher's own CLI entry
// points use.
func Parse(argv []string) (*Config, error) {
	cfg := &Config{}
	app := &cli.App{
		Name:                 "rayforce",
		Usage:                "interactive array-oriented data engine",
		UsageText:            "rayforce [options] [file]",
		ArgsUsage:            "[file]",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "load and execute script on startup"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen on the given TCP port for IPC clients"},
			&cli.IntFlag{Name: "cores", Aliases: []string{"c"}, Usage: "cap worker pool to n threads (0 = auto)"},
			&cli.StringFlag{Name: "pool-size", Usage: "main arena pool size, human-friendly (e.g. 4GiB); 0/unset = default"},
			&cli.BoolFlag{Name: "timeit", Aliases: []string{"t"}, Usage: "enable lightweight per-expression timing"},
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "stay in the REPL after executing the script"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "expose Prometheus metrics on this address (disabled if empty)"},
			&cli.StringFlag{Name: "console-addr", Usage: "expose the browser console bridge on this address (disabled if empty)"},
			&cli.StringFlag{Name: "log-level", Usage: "override RAYFORCE_LOG_LEVEL: off, error, warn, info, debug, or trace, optionally suffixed with a [file1,file2,...] allowlist"},
			&cli.StringFlag{Name: "log-file", Usage: "also write rotated JSON logs to this path"},
		},
		Action: func(c *cli.Context) error {
			cfg.File = c.String("file")
			if cfg.File == "" && c.Args().Len() > 0 {
				cfg.File = c.Args().First()
			}
			cfg.Port = c.Int("port")
			cfg.Cores = c.Int("cores")
			if raw := c.String("pool-size"); raw != "" {
				var size datasize.ByteSize
				if err := size.UnmarshalText([]byte(raw)); err != nil {
					return fmt.Errorf("--pool-size: %w", err)
				}
				cfg.PoolSizeBytes = uint64(size)
			}
			cfg.Timeit = c.Bool("timeit")
			cfg.Interactive = c.Bool("interactive")
			cfg.MetricsAddr = c.String("metrics-addr")
			cfg.ConsoleAddr = c.String("console-addr")
			cfg.LogLevel = c.String("log-level")
			cfg.LogFile = c.String("log-file")
			if c.Args().Len() > 1 {
				cfg.ScriptArgs = c.Args().Slice()[1:]
			}
			return nil
		},
	}
	if err := app.Run(argv); err != nil {
		return nil, err
	}
	return cfg, nil
}
