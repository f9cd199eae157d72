// Command rayforce is RayforceDB's entry point: it parses CLI flags,
// wires up the arena/env/evaluator/reactor/pool/IPC stack, optionally
// runs a startup script, and drops into a REPL (spec.md §6.1).
package main

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rayforcedb/rayforce/internal/config"
	"github.com/rayforcedb/rayforce/internal/rlog"
	"github.com/rayforcedb/rayforce/internal/rmetrics"
	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/dispatch"
	"github.com/rayforcedb/rayforce/rlib/env"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
	"github.com/rayforcedb/rayforce/turbo/ipc"
	"github.com/rayforcedb/rayforce/turbo/pool"
	"github.com/rayforcedb/rayforce/turbo/reactor"
	"github.com/rayforcedb/rayforce/turbo/timer"
	"github.com/rayforcedb/rayforce/turbo/webconsole"

	"github.com/rayforcedb/rayforce/core/eval"
	"github.com/rayforcedb/rayforce/core/parse"
)

// poolAdapter satisfies core/eval.Pool over the real turbo/pool.Pool,
// bracketing each `parallel` call with Prepare/Close so executors only
// hold borrowed arena capacity and cloned env snapshots while work is
// actually in flight.
type poolAdapter struct {
	p       *pool.Pool
	baseEnv func() *env.Env
}

func (a *poolAdapter) Run(tasks []eval.PoolTask) []eval.PoolResult {
	ptasks := make([]pool.Task, len(tasks))
	for i, t := range tasks {
		ptasks[i] = pool.Task{ID: t.ID, Fn: t.Fn}
	}
	a.p.Prepare(a.baseEnv())
	results := a.p.Run(ptasks)
	a.p.Close()

	out := make([]eval.PoolResult, len(results))
	for i, r := range results {
		out[i] = eval.PoolResult{ID: r.ID, Value: r.Value, Err: r.Err}
	}
	return out
}

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	cfg, err := config.Parse(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rayforce:", err)
		return 1
	}

	logOpts := rlog.FromEnv()
	if cfg.LogLevel != "" {
		logOpts.Level, logOpts.Files = rlog.ParseSpec(cfg.LogLevel)
	}
	logOpts.FilePath = cfg.LogFile
	logger, err := rlog.New(logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rayforce: logger init:", err)
		return 1
	}
	defer logger.Sync()

	maxOrder := uint8(arena.DefaultMaxOrder)
	if cfg.PoolSizeBytes > 0 {
		maxOrder = arena.OrderForBytes(cfg.PoolSizeBytes)
	}
	a := arena.New(maxOrder)
	tab := symtab.New()
	rootEnv := env.New()

	timers := timer.New()
	ev := eval.New(a, rootEnv, tab)
	ev.Timers = timer.NewScheduler(timers)
	workers := pool.New(a, cfg.Cores)
	ev.Pool = &poolAdapter{p: workers, baseEnv: func() *env.Env { return ev.Env }}
	// Spec's concurrency model has exactly one thread (the reactor) own the
	// root env; here the REPL, IPC handlers, and fired timer callbacks each
	// run on their own goroutine, so evMu approximates that single-writer
	// invariant instead of a true single OS thread.
	var evMu sync.Mutex

	// console is set below once --console-addr is parsed; a fired timer
	// callback broadcasts its rendered output to any connected console
	// clients the same way a client-submitted expression's result streams
	// back over its own websocket.
	var console *webconsole.Console

	timerSource := timer.NewSource(timers, func(cb *value.Lambda, nowMillis int64) {
		if cb == nil {
			return
		}
		evMu.Lock()
		v, err := ev.CallLambda(cb, nil)
		evMu.Unlock()
		if err != nil {
			logger.Sugar().Warnw("timer callback failed", "err", err)
			return
		}
		if console != nil {
			out := render(v, tab)
			console.Broadcast(out, value.IsError(v))
		}
		v.Drop()
	})
	rx, err := reactor.New(timerSource)
	if err != nil {
		logger.Sugar().Errorw("reactor init failed", "err", err)
		return 1
	}
	rx.WatchSignals()
	go func() {
		rx.Run(func() int64 { return time.Now().UnixMilli() })
		os.Exit(rx.Code())
	}()
	defer rx.Close()

	if cfg.MetricsAddr != "" {
		m, reg := rmetrics.New()
		ev.Metrics = m
		dispatch.Metrics = m
		a.SetMetrics(m)
		workers.SetMetrics(m)
		go func() {
			if err := rmetrics.Serve(cfg.MetricsAddr, reg); err != nil {
				logger.Sugar().Warnw("metrics server stopped", "err", err)
			}
		}()
	}

	if cfg.ConsoleAddr != "" {
		console = webconsole.New(cfg.ConsoleAddr, func(src string) (string, bool) {
			evMu.Lock()
			defer evMu.Unlock()
			return evalAndRender(ev, tab, src)
		})
		go func() {
			if err := console.ListenAndServe(); err != nil {
				logger.Sugar().Warnw("console server stopped", "err", err)
			}
		}()
		defer console.Close()
	}

	if cfg.Port != 0 {
		ln, err := ipc.Listen(fmt.Sprintf(":%d", cfg.Port), a, tab, func(c *ipc.Conn) ipc.Handler {
			return ipc.Handler{
				OnSync: func(v value.Value) value.Value {
					evMu.Lock()
					defer evMu.Unlock()
					return evalIPC(ev, tab, v)
				},
			}
		})
		if err != nil {
			logger.Sugar().Errorw("ipc listen failed", "err", err)
			return 1
		}
		go ln.Serve()
		defer ln.Close()
		logger.Sugar().Infow("listening for IPC clients", "port", cfg.Port)
	}

	code := 0
	if cfg.File != "" {
		src, err := os.ReadFile(cfg.File)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rayforce:", err)
			return 1
		}
		evMu.Lock()
		out, isErr := evalAndRender(ev, tab, string(src))
		evMu.Unlock()
		fmt.Println(out)
		if isErr {
			code = 1
		}
	}

	if cfg.Interactive || cfg.File == "" {
		repl(ev, tab, &evMu)
	}
	return code
}

// repl reads expressions from stdin until EOF, evaluating and printing
// each one — the interactive loop spec.md §6.1's `-i`/`--interactive`
// flag (or running with no script at all) drops into.
func repl(ev *eval.Evaluator, tab *symtab.Table, evMu *sync.Mutex) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("rayforce> ")
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			evMu.Lock()
			out, _ := evalAndRender(ev, tab, line)
			evMu.Unlock()
			fmt.Println(out)
		}
		fmt.Print("rayforce> ")
	}
	fmt.Println()
}

// evalAndRender parses and evaluates src, returning its rendered output
// and whether the top-level result was an ERROR value.
func evalAndRender(ev *eval.Evaluator, tab *symtab.Table, src string) (string, bool) {
	n, err := parse.Parse(src, tab)
	if err != nil {
		return "parse error: " + err.Error(), true
	}
	v, err := ev.Eval(n)
	if err != nil {
		return "eval error: " + err.Error(), true
	}
	out := render(v, tab)
	isErr := value.IsError(v)
	v.Drop()
	return out, isErr
}

// evalIPC parses and evaluates a value carrying source text over an IPC
// sync frame (a CHAR-vector payload; any other value is a TYPE error),
// returning the result
// value directly rather than a rendered string, per spec.md §4.12's
// "DISPATCH" step handing the decoded value straight to the evaluator.
func evalIPC(ev *eval.Evaluator, tab *symtab.Table, v value.Value) value.Value {
	vec, ok := v.(*value.Vector)
	v.Drop()
	if !ok || vec.Type() != value.TCharVector {
		return value.NewError(value.ErrType, "ipc: expected a char-vector expression")
	}
	src := vec.String()
	n, err := parse.Parse(src, tab)
	if err != nil {
		return value.NewError(value.ErrSys, "parse error: "+err.Error())
	}
	result, err := ev.Eval(n)
	if err != nil {
		return value.NewError(value.ErrSys, "eval error: "+err.Error())
	}
	return result
}
