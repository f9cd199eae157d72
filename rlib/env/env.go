// Package env implements RayforceDB's two-level binding environment: a
// SYMBOL-keyed variables dictionary and a two-way type-name registry
// (spec.md §4.8), cloneable per-worker so parallel tasks see a consistent
// snapshot.
package env

import (
	"sync"

	"github.com/rayforcedb/rayforce/rlib/value"
)

// Env is a single evaluation scope: ordinary variable bindings plus the
// type registry shared across every scope in a worker (type names don't
// change per-call, so the registry is a pointer shared with clones rather
// than deep-copied).
type Env struct {
	mu   sync.RWMutex
	vars map[int64]value.Value

	parent *Env
	types  *typeRegistry
}

// New returns a root environment with a fresh type registry pre-populated
// with the builtin type names (spec.md §3.1's type universe).
func New() *Env {
	e := &Env{vars: make(map[int64]value.Value), types: newTypeRegistry()}
	return e
}

// Child returns a new scope nested under e (e.g. a lambda call frame);
// lookups that miss locally fall through to the parent chain.
func (e *Env) Child() *Env {
	return &Env{vars: make(map[int64]value.Value), parent: e, types: e.types}
}

// Clone returns an independent snapshot of e's full variable chain
// flattened into one scope, sharing the type registry pointer (spec.md
// §4.8: "Environments are cloneable per-worker so parallel tasks see a
// snapshot"). Values are Clone()'d so the worker owns its own references;
// dropping the clone's env does not affect the original bindings.
func (e *Env) Clone() *Env {
	out := &Env{vars: make(map[int64]value.Value), types: e.types}
	for _, scope := range e.chain() {
		scope.mu.RLock()
		for id, v := range scope.vars {
			if _, exists := out.vars[id]; !exists {
				out.vars[id] = v.Clone()
			}
		}
		scope.mu.RUnlock()
	}
	return out
}

// chain returns e and its ancestors, nearest scope first (so Clone's
// "if not exists" skip correctly implements shadowing: a child's binding
// wins over a parent's same-named one).
func (e *Env) chain() []*Env {
	var out []*Env
	for s := e; s != nil; s = s.parent {
		out = append(out, s)
	}
	return out
}

// Get looks up id through the scope chain, starting at e.
func (e *Env) Get(id int64) (value.Value, bool) {
	for s := e; s != nil; s = s.parent {
		s.mu.RLock()
		v, ok := s.vars[id]
		s.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds id to v in e's own scope (never a parent's). If v is a
// *value.Lambda with no Name yet, Set attaches id's interned spelling for
// diagnostics — the caller passes the symbol table's string form since Env
// itself has no symtab handle.
func (e *Env) Set(id int64, name string, v value.Value) {
	if l, ok := v.(*value.Lambda); ok && l.Name == "" {
		l.Name = name
	}
	e.mu.Lock()
	e.vars[id] = v
	e.mu.Unlock()
}

// Drop releases every binding owned directly by e (not its ancestors).
func (e *Env) Drop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range e.vars {
		v.Drop()
	}
	e.vars = nil
}

// RegisterType adds a two-way type-name ↔ tag binding (spec.md §4.8: "so
// the parser and CSV reader can translate user type names").
func (e *Env) RegisterType(name string, t value.Type) {
	e.types.register(name, t)
}

// TypeByName resolves a user-facing type name to its tag.
func (e *Env) TypeByName(name string) (value.Type, bool) {
	return e.types.byName(name)
}

// NameByType resolves a tag back to its canonical user-facing name.
func (e *Env) NameByType(t value.Type) (string, bool) {
	return e.types.byType(t)
}

type typeRegistry struct {
	mu      sync.RWMutex
	byNameM map[string]value.Type
	byTypeM map[value.Type]string
}

func newTypeRegistry() *typeRegistry {
	r := &typeRegistry{byNameM: make(map[string]value.Type), byTypeM: make(map[value.Type]string)}
	for name, t := range builtinTypeNames {
		r.register(name, t)
	}
	return r
}

var builtinTypeNames = map[string]value.Type{
	"bool":      value.TB8,
	"u8":        value.TU8,
	"i16":       value.TI16,
	"i32":       value.TI32,
	"i64":       value.TI64,
	"f64":       value.TF64,
	"date":      value.TDate,
	"time":      value.TTime,
	"timestamp": value.TTimestamp,
	"symbol":    value.TSymbol,
	"sym":       value.TSymbol,
	"guid":      value.TGUID,
	"char":      value.TChar,
}

func (r *typeRegistry) register(name string, t value.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byNameM[name] = t
	r.byTypeM[t] = name
}

func (r *typeRegistry) byName(name string) (value.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byNameM[name]
	return t, ok
}

func (r *typeRegistry) byType(t value.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.byTypeM[t]
	return n, ok
}
