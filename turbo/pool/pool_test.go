package pool

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/env"
	"github.com/rayforcedb/rayforce/rlib/kernel"
	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestRingPushPopFIFOWithinCapacity(t *testing.T) {
	r := newRing(4)
	require.True(t, r.push(Task{ID: 1}))
	require.True(t, r.push(Task{ID: 2}))
	t1, ok := r.pop()
	require.True(t, ok)
	require.Equal(t, int64(1), t1.ID)
	t2, ok := r.pop()
	require.True(t, ok)
	require.Equal(t, int64(2), t2.ID)
	_, ok = r.pop()
	require.False(t, ok)
}

func TestRingRejectsPushWhenFull(t *testing.T) {
	r := newRing(2)
	require.True(t, r.push(Task{ID: 1}))
	require.True(t, r.push(Task{ID: 2}))
	require.False(t, r.push(Task{ID: 3}))
}

func TestPoolRunReturnsResultsForEveryTask(t *testing.T) {
	mainArena := arena.New(arena.DefaultMaxOrder)
	baseEnv := env.New()

	p := New(mainArena, 4)
	p.Prepare(baseEnv)
	defer p.Close()

	tasks := make([]Task, 0, 20)
	for i := int64(0); i < 20; i++ {
		i := i
		tasks = append(tasks, Task{
			ID: i,
			Fn: func(a *arena.Arena, e *env.Env) (value.Value, error) {
				return value.I64Atom(i * 2), nil
			},
		})
	}

	results := p.Run(tasks)
	require.Len(t, results, 20)

	ids := make([]int, len(results))
	for i, r := range results {
		require.NoError(t, r.Err)
		require.Equal(t, int64(i)*2, r.Value.(value.Atom).I64())
		ids[i] = int(r.ID)
	}
	sort.Ints(ids)
	for i, id := range ids {
		require.Equal(t, i, id)
	}
}

// TestPoolParallelAddMatchesSequential is the literal S9 seed scenario: a
// 100k-element I64 vector `add` split across 4 workers must equal the
// sequential result, and the main arena's live-allocation count (allocs
// minus frees) must return to its pre-run value once Close merges every
// executor's borrowed capacity back.
func TestPoolParallelAddMatchesSequential(t *testing.T) {
	const n = 100_000
	const workers = 4

	xs := make([]int64, n)
	for i := range xs {
		xs[i] = int64(i)
	}
	want := make([]int64, n)
	kernel.VecAtomI64(kernel.OpAdd, want, xs, 10)

	mainArena := arena.New(arena.DefaultMaxOrder)
	before := mainArena.Stats()

	p := New(mainArena, workers)
	p.Prepare(env.New())

	chunk := n / workers
	tasks := make([]Task, workers)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if w == workers-1 {
			hi = n
		}
		tasks[w] = Task{
			ID: int64(w),
			Fn: func(a *arena.Arena, e *env.Env) (value.Value, error) {
				out, err := value.NewVector(a, value.TI64Vector, int64(hi-lo))
				if err != nil {
					return nil, err
				}
				kernel.VecAtomI64(kernel.OpAdd, out.I64s(), xs[lo:hi], 10)
				return out, nil
			},
		}
	}

	results := p.Run(tasks)
	p.Close()

	got := make([]int64, 0, n)
	byID := make(map[int64]*value.Vector, workers)
	for _, r := range results {
		require.NoError(t, r.Err)
		byID[r.ID] = r.Value.(*value.Vector)
	}
	for w := 0; w < workers; w++ {
		got = append(got, byID[int64(w)].I64s()...)
	}
	require.Equal(t, want, got)

	after := mainArena.Stats()
	require.Equal(t, before.Allocs-before.Frees, after.Allocs-after.Frees)
}
