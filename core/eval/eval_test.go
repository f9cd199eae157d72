package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/internal/rmetrics"
	"github.com/rayforcedb/rayforce/rlib/arena"
	envpkg "github.com/rayforcedb/rayforce/rlib/env"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"

	"github.com/rayforcedb/rayforce/core/ast"
	"github.com/rayforcedb/rayforce/core/parse"
)

func newEvaluator() (*Evaluator, *symtab.Table) {
	tab := symtab.New()
	a := arena.New(arena.DefaultMaxOrder)
	e := envpkg.New()
	return New(a, e, tab), tab
}

func run(t *testing.T, ev *Evaluator, tab *symtab.Table, src string) value.Value {
	t.Helper()
	n, err := parse.Parse(src, tab)
	require.NoError(t, err)
	v, err := ev.Eval(n)
	require.NoError(t, err)
	return v
}

func TestS1AddVectorAtom(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "[1;2;3] + 10")
	vec := v.(*value.Vector)
	require.Equal(t, []int64{11, 12, 13}, vec.I64s())
}

func TestS2AddVectorVector(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "[1;2;3] + [10;20;30]")
	vec := v.(*value.Vector)
	require.Equal(t, []int64{11, 22, 33}, vec.I64s())
}

func TestS3AddLengthMismatchIsErrorValue(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "[1;2] + [1;2;3]")
	require.True(t, value.IsError(v))
	require.Equal(t, value.ErrLength, v.(*value.ErrorVal).Kind)
}

func TestAssignAndReference(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "x: 5; x + 1")
	require.Equal(t, int64(6), v.(value.Atom).I64())
}

func TestLambdaDefinitionAndCall(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "square: {[x] x * x}; square(6)")
	require.Equal(t, int64(36), v.(value.Atom).I64())
}

func TestLambdaArityError(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "square: {[x] x * x}; square(1,2)")
	require.True(t, value.IsError(v))
	require.Equal(t, value.ErrArity, v.(*value.ErrorVal).Kind)
}

func TestCondSpecialForm(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "cond(1 = 2, 100, 200)")
	require.Equal(t, int64(200), v.(value.Atom).I64())

	v = run(t, ev, tab, "cond(1 = 1, 100, 200)")
	require.Equal(t, int64(100), v.(value.Atom).I64())
}

func TestParallelWithoutPoolReportsNotSupported(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "parallel({1+1}, {2+2})")
	require.True(t, value.IsError(v))
	require.Equal(t, value.ErrNotSupported, v.(*value.ErrorVal).Kind)
}

// inlinePool runs every submitted task synchronously on the caller's own
// arena/env, standing in for turbo/pool in tests that don't need real
// concurrency — just the PoolTask/PoolResult wiring through `parallel`.
type inlinePool struct {
	a *arena.Arena
	e *envpkg.Env
}

func (p *inlinePool) Run(tasks []PoolTask) []PoolResult {
	out := make([]PoolResult, len(tasks))
	for i, t := range tasks {
		v, err := t.Fn(p.a, p.e)
		out[i] = PoolResult{ID: t.ID, Value: v, Err: err}
	}
	return out
}

func TestParallelRunsEachLambdaAndReturnsOrderedList(t *testing.T) {
	ev, tab := newEvaluator()
	ev.Pool = &inlinePool{a: ev.Arena, e: ev.Env}

	v := run(t, ev, tab, "parallel({1+1}, {2*10}, {7-3})")
	list, ok := v.(*value.List)
	require.True(t, ok)
	require.Equal(t, int64(3), list.Len())
	require.Equal(t, int64(2), list.At(0).(value.Atom).I64())
	require.Equal(t, int64(20), list.At(1).(value.Atom).I64())
	require.Equal(t, int64(4), list.At(2).(value.Atom).I64())
}

func TestParallelRejectsNonLambdaArgument(t *testing.T) {
	ev, tab := newEvaluator()
	ev.Pool = &inlinePool{a: ev.Arena, e: ev.Env}

	v := run(t, ev, tab, "parallel({1+1}, 5)")
	require.True(t, value.IsError(v))
	require.Equal(t, value.ErrType, v.(*value.ErrorVal).Kind)
}

// readCSVNode builds a `read_csv(types, path)` AST node directly — the
// surface syntax has no string-literal lexing, so tests that need to pass
// a char-vector path construct the Const nodes by hand rather than going
// through parse.Parse (the same carve-out core/ast's doc comment notes).
func readCSVNode(t *testing.T, a *arena.Arena, tab *symtab.Table, typeNames []string, path string) *ast.Node {
	t.Helper()
	types, err := value.NewVector(a, value.TSymbolVector, int64(len(typeNames)))
	require.NoError(t, err)
	for i, n := range typeNames {
		types.I64s()[i] = tab.Intern(n)
	}
	pathVec, err := value.NewVector(a, value.TCharVector, int64(len(path)))
	require.NoError(t, err)
	copy(pathVec.Chars(), path)

	return &ast.Node{
		Kind: ast.SpecialForm,
		Form: "read_csv",
		Elems: []ast.Node{
			{Kind: ast.Const, ConstVal: types},
			{Kind: ast.Const, ConstVal: pathVec},
		},
	}
}

// TestReadCSVSeedScenario is the literal S10 shape (scaled down from 1M to
// a handful of lines): a table of the requested length comes back, and the
// pool-parsed and sequential (no-pool) parses agree row for row.
func TestReadCSVSeedScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")
	var sb []byte
	for i := 0; i < 37; i++ {
		sb = append(sb, []byte(fmt.Sprintf("%d,sym%d,%.1f\n", i, i%5, float64(i)*1.5))...)
	}
	require.NoError(t, os.WriteFile(path, sb, 0o644))

	ev, tab := newEvaluator()
	node := readCSVNode(t, ev.Arena, tab, []string{"i64", "sym", "f64"}, path)
	sequential, err := ev.Eval(node)
	require.NoError(t, err)
	require.False(t, value.IsError(sequential))
	seqTable := sequential.(*value.KV)
	require.Equal(t, int64(37), seqTable.Values().At(0).(*value.Vector).Len())

	evPool, tab2 := newEvaluator()
	evPool.Pool = &inlinePool{a: evPool.Arena, e: evPool.Env}
	node2 := readCSVNode(t, evPool.Arena, tab2, []string{"i64", "sym", "f64"}, path)
	parallel, err := evPool.Eval(node2)
	require.NoError(t, err)
	require.False(t, value.IsError(parallel))
	parTable := parallel.(*value.KV)

	require.Equal(t, seqTable.Values().At(0).(*value.Vector).I64s(), parTable.Values().At(0).(*value.Vector).I64s())
	require.Equal(t, seqTable.Values().At(2).(*value.Vector).F64s(), parTable.Values().At(2).(*value.Vector).F64s())
}

func TestReadCSVRejectsUnknownTypeName(t *testing.T) {
	ev, tab := newEvaluator()
	node := readCSVNode(t, ev.Arena, tab, []string{"notatype"}, "/nonexistent")
	v, err := ev.Eval(node)
	require.NoError(t, err)
	require.True(t, value.IsError(v))
	require.Equal(t, value.ErrType, v.(*value.ErrorVal).Kind)
}

func TestLetSpecialForm(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "let(a: 2, b: 3, a * b)")
	require.Equal(t, int64(6), v.(value.Atom).I64())
}

func TestAndOrShortCircuit(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "and(1, 0, 99)")
	require.Equal(t, int64(0), v.(value.Atom).I64())

	v = run(t, ev, tab, "or(0, 7, 99)")
	require.Equal(t, int64(7), v.(value.Atom).I64())
}

func TestUnboundSymbolIsDomainError(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "nosuchvar")
	require.True(t, value.IsError(v))
	require.Equal(t, value.ErrDomain, v.(*value.ErrorVal).Kind)
}

func TestTimeitReturnsDictWithResult(t *testing.T) {
	ev, tab := newEvaluator()
	v := run(t, ev, tab, "timeit(1 + 2)")
	kv := v.(*value.KV)
	require.True(t, kv.Values().Len() == 2)
	require.Equal(t, int64(3), kv.Values().At(0).(value.Atom).I64())
}

// TestMetricsRecordsOneObservationPerTopLevelEval confirms the counters
// rmetrics builds actually move when real Eval calls run through them, and
// that a nested expression tree ([1;2;3] + 10 evaluates a VectorLit of three
// Const leaves and a Const 10 under one top-level Call node) is counted once,
// not once per AST node visited.
func TestMetricsRecordsOneObservationPerTopLevelEval(t *testing.T) {
	m, reg := rmetrics.New()
	ev, tab := newEvaluator()
	ev.Metrics = m

	v := run(t, ev, tab, "[1;2;3] + 10")
	v.Drop()

	count, err := testutil.GatherAndCount(reg, "rayforce_eval_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, float64(1), testutil.ToFloat64(m.EvalTotal.WithLabelValues("ok")))
}

// TestMetricsCallLambdaRecordsIndependentlyOfEval confirms a lambda invoked
// via CallLambda (the re-entry point turbo/timer and turbo/pool use) is
// counted under its own "lambda_call" form, separate from whatever Eval
// call (if any) is in progress on the caller's side.
func TestMetricsCallLambdaRecordsIndependentlyOfEval(t *testing.T) {
	m, _ := rmetrics.New()
	ev, tab := newEvaluator()
	ev.Metrics = m

	v := run(t, ev, tab, "{[x] x + 1}")
	lambda := v.(*value.Lambda)

	out, err := ev.CallLambda(lambda, []value.Value{value.I64Atom(41)})
	require.NoError(t, err)
	require.Equal(t, int64(42), out.(value.Atom).I64())
	out.Drop()
	lambda.Drop()

	require.Equal(t, float64(2), testutil.ToFloat64(m.EvalTotal.WithLabelValues("ok")))
}
