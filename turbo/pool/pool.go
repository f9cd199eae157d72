package pool

import (
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rayforcedb/rayforce/internal/rmetrics"
	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/env"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// Task is one unit of parallel work submitted to a Pool: a closure running
// against its executor's own arena/env snapshot (spec.md §4.10: "each
// executor works against a borrowed slice of the arena and a cloned env, so
// no lock is held across the parallel section").
type Task struct {
	ID int64
	Fn func(a *arena.Arena, e *env.Env) (value.Value, error)
}

// Result carries a Task's outcome back to the caller, keyed by ID so the
// caller can restore submission order itself (the pool does not promise
// completion order, only that every ID submitted is returned exactly once).
type Result struct {
	ID    int64
	Value value.Value
	Err   error
}

// executor is one worker goroutine's private resources: its own arena slice
// (borrowed from the main arena for the section's duration) and its own env
// snapshot (cloned so concurrent tasks never race on the shared bindings
// map).
type executor struct {
	arena *arena.Arena
	env   *env.Env
}

// Pool is RayforceDB's fixed-size worker pool (spec.md §4.10). It is built
// once and reused across many Prepare/Run sections; each section borrows
// arena capacity and env snapshots for its executors and returns them when
// the section completes.
type Pool struct {
	size      int
	mainArena *arena.Arena

	executors []executor
	tasks     *ring
	results   chan Result

	// eg tracks the executor goroutines spawned in Prepare; Close's drain
	// step barriers on eg.Wait() instead of a bare sync.WaitGroup (spec.md
	// §4.10's "prepare/merge barrier bookkeeping").
	eg   *errgroup.Group
	stop chan struct{}

	metrics *rmetrics.Metrics
}

// SetMetrics attaches m so completed tasks and queue depth are recorded
// against PoolTasksTotal/PoolQueueDepth (SPEC_FULL.md §10.5); nil (the
// default) disables this.
func (p *Pool) SetMetrics(m *rmetrics.Metrics) {
	p.metrics = m
}

// New builds a pool of size workers (defaulting to GOMAXPROCS when size <=
// 0) bound to mainArena, the reactor thread's arena that every section
// borrows from and merges back into.
func New(mainArena *arena.Arena, size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		size:      size,
		mainArena: mainArena,
		executors: make([]executor, size),
	}
}

// Prepare opens a parallel section: it borrows a slice of capacity from the
// main arena into each executor's own arena and clones baseEnv once per
// executor, so tasks run without contending on the main arena's mutex or
// the main env's bindings map. Call Run to drain queued tasks, then Close
// to merge everything back.
func (p *Pool) Prepare(baseEnv *env.Env) {
	for i := range p.executors {
		ea := arena.New(p.mainArena.MaxOrder())
		p.mainArena.Borrow(ea)
		p.executors[i] = executor{arena: ea, env: baseEnv.Clone()}
	}
	p.tasks = newRing(nextPow2(p.size * 4))
	p.results = make(chan Result, p.size*4)
	p.stop = make(chan struct{})

	p.eg = new(errgroup.Group)
	for i := range p.executors {
		ex := &p.executors[i]
		p.eg.Go(func() error {
			p.runExecutor(ex)
			return nil
		})
	}
}

// Run submits tasks and collects exactly len(tasks) results, reordered back
// into submission order (spec.md §4.10/§5: worker completion order is
// unspecified, but the caller sees results aligned with what it submitted).
func (p *Pool) Run(tasks []Task) []Result {
	out := make([]Result, len(tasks))
	pending := make(map[int64]int, len(tasks))
	for i, t := range tasks {
		pending[t.ID] = i
		for !p.tasks.push(t) {
			runtime.Gosched()
		}
		if p.metrics != nil {
			p.metrics.PoolQueueDepth.Set(float64(p.tasks.depth()))
		}
	}
	for range tasks {
		r := <-p.results
		if idx, ok := pending[r.ID]; ok {
			out[idx] = r
		}
	}
	return out
}

// Close stops every executor goroutine, merges borrowed arena capacity back
// into the main arena, and drops each executor's cloned env. Both phases
// barrier on an errgroup.Group rather than waiting on executors one at a
// time: the stop signal is shared, and Merge/Drop are each safe to run
// concurrently across executors (Merge takes both arenas' own locks).
func (p *Pool) Close() {
	close(p.stop)
	_ = p.eg.Wait() // runExecutor never returns an error; Wait just barriers

	var merge errgroup.Group
	for i := range p.executors {
		ex := &p.executors[i]
		merge.Go(func() error {
			p.mainArena.Merge(ex.arena)
			ex.env.Drop()
			return nil
		})
	}
	_ = merge.Wait()
	p.executors = nil
}

func (p *Pool) runExecutor(ex *executor) {
	backoff := time.Microsecond
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		t, ok := p.tasks.pop()
		if !ok {
			time.Sleep(backoff)
			if backoff < time.Millisecond {
				backoff *= 2
			}
			continue
		}
		backoff = time.Microsecond
		if p.metrics != nil {
			p.metrics.PoolQueueDepth.Set(float64(p.tasks.depth()))
		}
		v, err := t.Fn(ex.arena, ex.env)
		if p.metrics != nil {
			p.metrics.PoolTasksTotal.Inc()
		}
		p.results <- Result{ID: t.ID, Value: v, Err: err}
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
