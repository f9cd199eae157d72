// Package eval implements the depth-first term walker described in
// spec.md §4.9: it materializes constants, resolves SYMBOL references
// through the environment, dispatches CALL nodes to built-in primitives or
// user lambdas, and special-cases SPECIAL_FORM nodes so their arguments are
// not pre-evaluated.
//
// Per spec.md §7, ordinary language errors ("TYPE", "LENGTH", "ARITY", ...)
// are not Go errors — they are ERROR compound values returned like any
// other result, so callers can check value.IsError(result) the same way
// the worker pool checks IS_ERR. Eval's own `error` return is reserved for
// conditions outside that taxonomy (a malformed AST node — something the
// parser should never produce).
package eval

import (
	"fmt"
	"time"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/dispatch"
	"github.com/rayforcedb/rayforce/rlib/env"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"

	"github.com/rayforcedb/rayforce/core/ast"
	"github.com/rayforcedb/rayforce/internal/rerr"
	"github.com/rayforcedb/rayforce/internal/rmetrics"
)

// Timers is the hook core/eval uses to implement the `timer` special form
// without importing turbo/timer directly; cmd/rayforce wires in a
// timer.Scheduler at startup. Nil in standalone/test use,
// where `timer(...)` returns ERROR(NOT_SUPPORTED).
type Timers interface {
	Schedule(ticMillis int64, num int64, callback *value.Lambda) int64
}

// PoolTask is one unit of work submitted through the `parallel` special
// form — structurally identical to turbo/pool.Task, kept as a distinct
// type (like Timers above) so this package never imports turbo/pool
// directly; cmd/rayforce supplies a Pool adapter over the real pool.
type PoolTask struct {
	ID int64
	Fn func(a *arena.Arena, e *env.Env) (value.Value, error)
}

// PoolResult is PoolTask's outcome, mirroring turbo/pool.Result.
type PoolResult struct {
	ID    int64
	Value value.Value
	Err   error
}

// Pool is the hook `parallel` uses to run PoolTasks concurrently, mirroring
// Timers' role for `timer`.
type Pool interface {
	Run(tasks []PoolTask) []PoolResult
}

// Evaluator holds everything one evaluation thread owns privately: its own
// arena, its own environment (a snapshot on worker threads, the root scope
// on the reactor thread), and a handle to the process-global symbol table
// (spec.md §4.9: "runs on the reactor thread and on each worker thread
// independently, each owning its own arena and env-snapshot").
type Evaluator struct {
	Arena  *arena.Arena
	Env    *env.Env
	Tab    *symtab.Table
	Timers Timers
	Pool   Pool

	// Metrics, when set by the process entry point, records one
	// EvalTotal/EvalDuration observation per top-level Eval call; recursive
	// sub-evaluations go through eval directly and don't double-count (see
	// the Eval/eval split below).
	Metrics *rmetrics.Metrics
}

// New constructs an Evaluator over the given arena/env/symtab.
func New(a *arena.Arena, e *env.Env, tab *symtab.Table) *Evaluator {
	return &Evaluator{Arena: a, Env: e, Tab: tab}
}

// Eval walks n to a value, per the state machine in spec.md §4.9: READY ->
// EVAL -> READY(value) or ERROR(value), propagated to the caller frame. It
// is the metrics-recording entry point: EvalTotal/EvalDuration are observed
// once per call here, then the walk recurses through the unexported eval so
// nested sub-evaluations of the same node tree aren't counted again.
func (ev *Evaluator) Eval(n *ast.Node) (value.Value, error) {
	if ev.Metrics == nil {
		return ev.eval(n)
	}
	start := time.Now()
	v, err := ev.eval(n)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if value.IsError(v) {
		outcome = "error_value"
	}
	ev.Metrics.EvalTotal.WithLabelValues(outcome).Inc()
	ev.Metrics.EvalDuration.WithLabelValues(formLabel(n)).Observe(time.Since(start).Seconds())
	return v, err
}

// formLabel buckets a node by its Kind for the EvalDuration histogram's
// "form" dimension; nil is only reachable via a malformed caller, so it
// gets its own label rather than panicking on n.Kind.
func formLabel(n *ast.Node) string {
	if n == nil {
		return "nil"
	}
	switch n.Kind {
	case ast.Const:
		return "const"
	case ast.SymbolRef:
		return "symbol_ref"
	case ast.VectorLit:
		return "vector_lit"
	case ast.Call:
		return "call"
	case ast.SpecialForm:
		return "special_form"
	case ast.LambdaLit:
		return "lambda_lit"
	case ast.Do:
		return "do"
	default:
		return "unknown"
	}
}

// eval is Eval's recursive body: every internal re-entry point (evalDo,
// evalVectorLit, evalCall's argument loop, callLambda's body walk) calls
// eval directly, not Eval, for the same reason dispatch.call exists
// alongside dispatch.Call.
func (ev *Evaluator) eval(n *ast.Node) (value.Value, error) {
	if n == nil {
		return nil, fmt.Errorf("eval: nil AST node")
	}
	switch n.Kind {
	case ast.Const:
		return n.ConstVal.Clone(), nil
	case ast.SymbolRef:
		v, ok := ev.Env.Get(n.Sym)
		if !ok {
			return rerr.ToValue(rerr.New(value.ErrDomain, "unbound symbol %q", n.Name).WithSpan(&n.Pos)), nil
		}
		return v.Clone(), nil
	case ast.VectorLit:
		return ev.evalVectorLit(n)
	case ast.Call:
		return ev.evalCall(n)
	case ast.SpecialForm:
		return ev.evalSpecialForm(n)
	case ast.LambdaLit:
		return ev.evalLambdaLit(n), nil
	case ast.Do:
		return ev.evalDo(n)
	default:
		return nil, fmt.Errorf("eval: unknown node kind %d", n.Kind)
	}
}

func (ev *Evaluator) evalDo(n *ast.Node) (value.Value, error) {
	var last value.Value = value.Null
	for i := range n.Elems {
		v, err := ev.eval(&n.Elems[i])
		if err != nil {
			return nil, err
		}
		last.Drop()
		if value.IsError(v) {
			return v, nil
		}
		last = v
	}
	return last, nil
}

func (ev *Evaluator) evalVectorLit(n *ast.Node) (value.Value, error) {
	elems := make([]value.Value, len(n.Elems))
	for i := range n.Elems {
		v, err := ev.eval(&n.Elems[i])
		if err != nil {
			return nil, err
		}
		if value.IsError(v) {
			dropPrefix(elems[:i])
			return v, nil
		}
		elems[i] = v
	}
	return dispatch.MaterializeVector(ev.Arena, elems)
}

func dropPrefix(vs []value.Value) {
	for _, v := range vs {
		if v != nil {
			v.Drop()
		}
	}
}

// evalCall evaluates arguments left-to-right then dispatches (spec.md §4.9
// step 3): a registered binary primitive by name, or a lambda value
// resolved by evaluating the callee expression.
func (ev *Evaluator) evalCall(n *ast.Node) (value.Value, error) {
	args := make([]value.Value, len(n.Elems))
	for i := range n.Elems {
		v, err := ev.eval(&n.Elems[i])
		if err != nil {
			return nil, err
		}
		if value.IsError(v) {
			dropPrefix(args[:i])
			return v, nil
		}
		args[i] = v
	}

	if n.Callee.Kind == ast.SymbolRef && len(args) == 2 {
		if bin, ok := dispatch.Registry[n.Callee.Name]; ok {
			out, err := dispatch.Call(ev.Arena, bin, args[0], args[1])
			dropPrefix(args)
			if err != nil {
				return rerr.ToValue(err), nil
			}
			return out, nil
		}
	}

	callee, err := ev.eval(n.Callee)
	if err != nil {
		return nil, err
	}
	if value.IsError(callee) {
		dropPrefix(args)
		return callee, nil
	}
	lambda, ok := callee.(*value.Lambda)
	if !ok {
		dropPrefix(args)
		callee.Drop()
		return rerr.ToValue(rerr.New(value.ErrType, "value is not callable").WithSpan(&n.Pos)), nil
	}
	out, err := ev.callLambda(lambda, args, &n.Pos)
	lambda.Drop()
	return out, err
}

// CallLambda invokes l with args from outside the evaluator's own
// dispatch path — the hook turbo/timer's fired callbacks and turbo/pool's
// submitted tasks use to re-enter evaluation without duplicating
// callLambda's frame-management logic. Like Eval, it records
// EvalTotal/EvalDuration for the body it runs when Metrics is set, since a
// fired timer or a pool task is itself a top-level evaluation, not a
// nested sub-expression.
func (ev *Evaluator) CallLambda(l *value.Lambda, args []value.Value) (value.Value, error) {
	if ev.Metrics == nil {
		return ev.callLambda(l, args, nil)
	}
	start := time.Now()
	v, err := ev.callLambda(l, args, nil)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if value.IsError(v) {
		outcome = "error_value"
	}
	ev.Metrics.EvalTotal.WithLabelValues(outcome).Inc()
	ev.Metrics.EvalDuration.WithLabelValues("lambda_call").Observe(time.Since(start).Seconds())
	return v, err
}

// callLambda pushes args onto a new child frame keyed by the lambda's arg
// ids, evaluates its body, then restores the caller's environment (spec.md
// §4.9 step 3: "pushes arguments onto an evaluator stack frame ... pops the
// frame"). Tail-position looping is left as a future refinement; this walk
// recurses, which is adequate for the call depths the REPL and test suite
// exercise.
func (ev *Evaluator) callLambda(l *value.Lambda, args []value.Value, callSite *ast.DebugInfo) (value.Value, error) {
	if len(args) != len(l.ArgIDs) {
		dropPrefix(args)
		return rerr.ToValue(rerr.New(value.ErrArity, "%s: expected %d argument(s), got %d", lambdaName(l), len(l.ArgIDs), len(args)).WithSpan(callSite)), nil
	}
	body, ok := l.Body.(*ast.Node)
	if !ok {
		dropPrefix(args)
		return rerr.ToValue(rerr.New(value.ErrSys, "lambda has no evaluable body")), nil
	}

	frame := ev.Env.Child()
	for i, id := range l.ArgIDs {
		frame.Set(id, "", args[i])
	}

	saved := ev.Env
	ev.Env = frame
	result, err := ev.eval(body)
	ev.Env = saved
	frame.Drop()
	return result, err
}

func lambdaName(l *value.Lambda) string {
	if l.Name != "" {
		return l.Name
	}
	return "lambda"
}

func (ev *Evaluator) evalLambdaLit(n *ast.Node) value.Value {
	argIDs := make([]int64, len(n.ArgNames))
	for i, name := range n.ArgNames {
		argIDs[i] = ev.Tab.Intern(name)
	}
	localIDs := make([]int64, len(n.LocalNames))
	for i, name := range n.LocalNames {
		localIDs[i] = ev.Tab.Intern(name)
	}
	return value.NewLambda(argIDs, localIDs, n.Body, nil)
}
