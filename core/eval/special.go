package eval

import (
	"fmt"
	"time"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/env"
	"github.com/rayforcedb/rayforce/rlib/storage"
	"github.com/rayforcedb/rayforce/rlib/value"

	"github.com/rayforcedb/rayforce/core/ast"
	"github.com/rayforcedb/rayforce/internal/rerr"
)

// csvParallelChunks bounds how many line-range chunks `read_csv` fans out
// to the pool — a small fixed fan-out is enough to exercise the pool
// barrier without over-splitting small files.
const csvParallelChunks = 4

// evalSpecialForm dispatches the keyword forms that bypass argument
// pre-evaluation (spec.md §4.9 step 4): cond, let, set, and, or, timer,
// timeit, plus parallel and read_csv.
func (ev *Evaluator) evalSpecialForm(n *ast.Node) (value.Value, error) {
	switch n.Form {
	case "set":
		return ev.evalSet(n)
	case "let":
		return ev.evalLet(n)
	case "cond":
		return ev.evalCond(n)
	case "and":
		return ev.evalAndOr(n, true)
	case "or":
		return ev.evalAndOr(n, false)
	case "timer":
		return ev.evalTimer(n)
	case "timeit":
		return ev.evalTimeit(n)
	case "parallel":
		return ev.evalParallel(n)
	case "read_csv":
		return ev.evalReadCSV(n)
	default:
		return rerr.ToValue(rerr.New(value.ErrNotImplemented, "unknown special form %q", n.Form)), nil
	}
}

// evalSet binds n.Elems[0] (a SymbolRef) to the evaluated n.Elems[1] in the
// current scope and returns the bound value (so `x: 5` itself evaluates to
// 5, matching the assign-expression idiom the `:` sugar desugars from).
func (ev *Evaluator) evalSet(n *ast.Node) (value.Value, error) {
	if len(n.Elems) != 2 || n.Elems[0].Kind != ast.SymbolRef {
		return rerr.ToValue(rerr.New(value.ErrArity, "set: expected (symbol, value)")), nil
	}
	target := n.Elems[0]
	v, err := ev.eval(&n.Elems[1])
	if err != nil {
		return nil, err
	}
	if value.IsError(v) {
		return v, nil
	}
	ev.Env.Set(target.Sym, target.Name, v.Clone())
	return v, nil
}

// evalLet opens a child scope, applies every `set`-shaped binding argument
// in order, evaluates the final argument as the body, and restores the
// enclosing scope before returning.
func (ev *Evaluator) evalLet(n *ast.Node) (value.Value, error) {
	if len(n.Elems) == 0 {
		return value.Null, nil
	}
	saved := ev.Env
	child := saved.Child()
	ev.Env = child
	defer func() { ev.Env = saved; child.Drop() }()

	for i := 0; i < len(n.Elems)-1; i++ {
		arg := n.Elems[i]
		if arg.Kind != ast.SpecialForm || arg.Form != "set" {
			return rerr.ToValue(rerr.New(value.ErrType, "let: binding %d is not a `name: value` form", i)), nil
		}
		v, err := ev.evalSet(&arg)
		if err != nil {
			return nil, err
		}
		if value.IsError(v) {
			return v, nil
		}
	}
	return ev.eval(&n.Elems[len(n.Elems)-1])
}

// evalCond evaluates (test, then) pairs in order, returning the first
// branch whose test is truthy; a trailing odd argument is the else branch.
func (ev *Evaluator) evalCond(n *ast.Node) (value.Value, error) {
	i := 0
	for ; i+1 < len(n.Elems); i += 2 {
		t, err := ev.eval(&n.Elems[i])
		if err != nil {
			return nil, err
		}
		if value.IsError(t) {
			return t, nil
		}
		truthy := isTruthy(t)
		t.Drop()
		if truthy {
			return ev.eval(&n.Elems[i+1])
		}
	}
	if i < len(n.Elems) {
		return ev.eval(&n.Elems[i])
	}
	return value.Null, nil
}

func isTruthy(v value.Value) bool {
	a, ok := v.(value.Atom)
	if !ok {
		return true // non-atom values (vectors, lists) are truthy if present
	}
	switch a.Type() {
	case value.TB8:
		return a.Bool()
	case value.TI64:
		return a.I64() != 0
	case value.TF64:
		return a.F64() != 0
	default:
		return !a.IsNull()
	}
}

// evalAndOr short-circuits: `and` returns the first falsy value (or the
// last, if all truthy); `or` returns the first truthy value (or the last).
func (ev *Evaluator) evalAndOr(n *ast.Node, isAnd bool) (value.Value, error) {
	if len(n.Elems) == 0 {
		return value.BoolAtom(isAnd), nil
	}
	var last value.Value = value.Null
	for i := range n.Elems {
		v, err := ev.eval(&n.Elems[i])
		if err != nil {
			return nil, err
		}
		if value.IsError(v) {
			return v, nil
		}
		truthy := isTruthy(v)
		if isAnd && !truthy {
			return v, nil
		}
		if !isAnd && truthy {
			return v, nil
		}
		if i > 0 {
			last.Drop()
		}
		last = v
	}
	return last, nil
}

// evalTimer registers a repeating callback via the wired Timers scheduler
// (spec.md §4.13). Without one attached (standalone eval/tests), it reports
// NOT_SUPPORTED rather than silently no-opping.
func (ev *Evaluator) evalTimer(n *ast.Node) (value.Value, error) {
	if len(n.Elems) != 3 {
		return rerr.ToValue(rerr.New(value.ErrArity, "timer: expected (tic_ms, num, callback)")), nil
	}
	if ev.Timers == nil {
		return rerr.ToValue(rerr.New(value.ErrNotSupported, "timer: no scheduler attached to this evaluator")), nil
	}
	tic, err := ev.eval(&n.Elems[0])
	if err != nil {
		return nil, err
	}
	if value.IsError(tic) {
		return tic, nil
	}
	num, err := ev.eval(&n.Elems[1])
	if err != nil {
		return nil, err
	}
	if value.IsError(num) {
		return num, nil
	}
	cb, err := ev.eval(&n.Elems[2])
	if err != nil {
		return nil, err
	}
	if value.IsError(cb) {
		return cb, nil
	}
	lambda, ok := cb.(*value.Lambda)
	if !ok {
		return rerr.ToValue(rerr.New(value.ErrType, "timer: callback must be a lambda")), nil
	}
	id := ev.Timers.Schedule(tic.(value.Atom).I64(), num.(value.Atom).I64(), lambda)
	return value.I64Atom(id), nil
}

// evalTimeit evaluates its single argument and returns a DICT with keys
// `result` and `ns` (elapsed wall time), per spec.md §4.9's listing of
// `timeit` among the special forms.
func (ev *Evaluator) evalTimeit(n *ast.Node) (value.Value, error) {
	if len(n.Elems) != 1 {
		return rerr.ToValue(rerr.New(value.ErrArity, "timeit: expected exactly one expression")), nil
	}
	start := time.Now()
	result, err := ev.eval(&n.Elems[0])
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	keys, err2 := value.NewVector(ev.Arena, value.TSymbolVector, 2)
	if err2 != nil {
		result.Drop()
		return nil, err2
	}
	keys.I64s()[0] = ev.Tab.Intern("result")
	keys.I64s()[1] = ev.Tab.Intern("ns")
	vals := value.NewList([]value.Value{result, value.I64Atom(elapsed.Nanoseconds())})
	return value.NewDict(keys, vals)
}

// evalParallel evaluates each argument to a zero-arg lambda, submits one
// worker-pool task per lambda, and returns a LIST of results in submission
// order (spec.md §4.10's dispatch surface). Without a Pool attached, it
// reports NOT_SUPPORTED rather than running the lambdas sequentially —
// callers shouldn't silently lose the parallelism they asked for.
func (ev *Evaluator) evalParallel(n *ast.Node) (value.Value, error) {
	if ev.Pool == nil {
		return rerr.ToValue(rerr.New(value.ErrNotSupported, "parallel: no pool attached to this evaluator")), nil
	}
	if len(n.Elems) == 0 {
		return value.NewList(nil), nil
	}

	lambdas := make([]*value.Lambda, len(n.Elems))
	for i := range n.Elems {
		v, err := ev.eval(&n.Elems[i])
		if err != nil {
			return nil, err
		}
		if value.IsError(v) {
			dropLambdas(lambdas[:i])
			return v, nil
		}
		lambda, ok := v.(*value.Lambda)
		if !ok {
			v.Drop()
			dropLambdas(lambdas[:i])
			return rerr.ToValue(rerr.New(value.ErrType, "parallel: argument %d is not a lambda", i)), nil
		}
		lambdas[i] = lambda
	}

	tab := ev.Tab
	metrics := ev.Metrics
	tasks := make([]PoolTask, len(lambdas))
	for i, l := range lambdas {
		lam := l
		tasks[i] = PoolTask{
			ID: int64(i),
			Fn: func(a *arena.Arena, e *env.Env) (value.Value, error) {
				sub := New(a, e, tab)
				sub.Metrics = metrics
				return sub.CallLambda(lam, nil)
			},
		}
	}

	results := ev.Pool.Run(tasks)
	dropLambdas(lambdas)

	byID := make(map[int64]value.Value, len(results))
	for _, r := range results {
		if r.Err != nil {
			byID[r.ID] = rerr.ToValue(rerr.New(value.ErrSys, "parallel: task failed: %v", r.Err))
			continue
		}
		byID[r.ID] = r.Value
	}
	out := make([]value.Value, len(tasks))
	for i := range out {
		if v, ok := byID[int64(i)]; ok {
			out[i] = v
		} else {
			out[i] = value.Null
		}
	}
	return value.NewList(out), nil
}

func dropLambdas(ls []*value.Lambda) {
	for _, l := range ls {
		if l != nil {
			l.Drop()
		}
	}
}

// evalReadCSV loads a headerless CSV file into a table, given a symbol
// vector of column type names and a path (spec.md §8's S10 scenario). When
// a Pool is attached, line ranges are parsed by separate workers and
// concatenated in submission order (spec.md §4.10's own surface); without
// one, the same ParseCSVChunk path runs once over every line, so results
// are identical either way — only wall-clock differs.
func (ev *Evaluator) evalReadCSV(n *ast.Node) (value.Value, error) {
	if len(n.Elems) != 2 {
		return rerr.ToValue(rerr.New(value.ErrArity, "read_csv: expected (types, path)")), nil
	}
	typesVal, err := ev.eval(&n.Elems[0])
	if err != nil {
		return nil, err
	}
	if value.IsError(typesVal) {
		return typesVal, nil
	}
	typesVec, ok := typesVal.(*value.Vector)
	if !ok || typesVec.Type() != value.TSymbolVector {
		typesVal.Drop()
		return rerr.ToValue(rerr.New(value.ErrType, "read_csv: types must be a symbol vector")), nil
	}

	pathVal, err := ev.eval(&n.Elems[1])
	if err != nil {
		typesVal.Drop()
		return nil, err
	}
	if value.IsError(pathVal) {
		typesVal.Drop()
		return pathVal, nil
	}
	pathVec, ok := pathVal.(*value.Vector)
	if !ok || pathVec.Type() != value.TCharVector {
		typesVal.Drop()
		pathVal.Drop()
		return rerr.ToValue(rerr.New(value.ErrType, "read_csv: path must be a char vector")), nil
	}
	path := pathVec.String()

	colTypes := make([]value.Type, typesVec.Len())
	for i, id := range typesVec.I64s() {
		name := ev.Tab.Str(id)
		t, ok := ev.Env.TypeByName(name)
		if !ok {
			typesVal.Drop()
			pathVal.Drop()
			return rerr.ToValue(rerr.New(value.ErrType, "read_csv: unknown type name %q", name)), nil
		}
		colTypes[i] = t
	}
	typesVal.Drop()
	pathVal.Drop()

	lines, err := storage.ReadLines(path)
	if err != nil {
		return rerr.ToValue(rerr.New(value.ErrSys, "read_csv: %v", err)), nil
	}

	var chunks []*value.List
	if ev.Pool == nil || len(lines) == 0 {
		chunk, err := storage.ParseCSVChunk(ev.Arena, ev.Tab, colTypes, lines)
		if err != nil {
			return rerr.ToValue(rerr.New(value.ErrSys, "read_csv: %v", err)), nil
		}
		chunks = []*value.List{chunk}
	} else {
		ranges := storage.SplitLines(lines, csvParallelChunks)
		tab := ev.Tab
		tasks := make([]PoolTask, len(ranges))
		for i, ls := range ranges {
			ls := ls
			tasks[i] = PoolTask{
				ID: int64(i),
				Fn: func(a *arena.Arena, e *env.Env) (value.Value, error) {
					list, err := storage.ParseCSVChunk(a, tab, colTypes, ls)
					if err != nil {
						return nil, err
					}
					return list, nil
				},
			}
		}
		results := ev.Pool.Run(tasks)
		byID := make(map[int64]*value.List, len(results))
		for _, r := range results {
			if r.Err != nil {
				return rerr.ToValue(rerr.New(value.ErrSys, "read_csv: %v", r.Err)), nil
			}
			byID[r.ID] = r.Value.(*value.List)
		}
		chunks = make([]*value.List, len(tasks))
		for i := range chunks {
			chunks[i] = byID[int64(i)]
		}
	}

	cols, err := storage.ConcatColumns(ev.Arena, colTypes, chunks)
	if err != nil {
		return rerr.ToValue(rerr.New(value.ErrSys, "read_csv: %v", err)), nil
	}

	names, err := value.NewVector(ev.Arena, value.TSymbolVector, int64(len(colTypes)))
	if err != nil {
		return nil, err
	}
	for i := range colTypes {
		names.I64s()[i] = ev.Tab.Intern(fmt.Sprintf("col%d", i))
	}
	return value.NewTable(names, value.NewList(cols))
}
