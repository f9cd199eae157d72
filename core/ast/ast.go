// Package ast defines the minimal tagged-tree AST the evaluator consumes.
// Per spec.md §1's explicit carve-out, the surface syntax parser is an
// external collaborator — this package specifies only the shape core/eval
// needs, not a full grammar's worth of node kinds.
package ast

import "github.com/rayforcedb/rayforce/rlib/value"

// Kind tags which fields of Node are meaningful, standing in for Go's lack
// of sum types the same way value.Value's sealed interface does (spec.md
// §4.9: "a parsed AST (LIST nodes tagged with opcodes)").
type Kind uint8

const (
	// Const holds an already-materialized literal value (spec.md §4.9 step 1).
	Const Kind = iota
	// SymbolRef resolves a SYMBOL-id variable reference via env.variables.
	SymbolRef
	// VectorLit builds a homogeneous vector from literal element nodes.
	VectorLit
	// Call evaluates Callee and Args left-to-right, then dispatches
	// (built-in primitive or lambda value) per spec.md §4.9 step 3.
	Call
	// SpecialForm bypasses argument pre-evaluation (cond, let, set, and,
	// or, timer, timeit — spec.md §4.9 step 4).
	SpecialForm
	// LambdaLit constructs a *value.Lambda closure value at eval time.
	LambdaLit
	// Do sequences Args in order, yielding the last result (used to join
	// multiple top-level statements parsed from one input).
	Do
)

// DebugInfo is re-exported from rlib/value so AST nodes and the lambdas
// built from them share one source-span type (spec.md §4.9's "nfo
// side-table").
type DebugInfo = value.DebugInfo

// Node is a single AST tree node. Only the fields relevant to Kind are
// populated; this mirrors the tagged-variant style used throughout
// rlib/value rather than introducing a Go interface per node kind, since
// the evaluator always switches on Kind first anyway.
type Node struct {
	Kind Kind
	Pos  DebugInfo

	// Const
	ConstVal value.Value

	// SymbolRef: Sym is the interned symbol id, Name its spelling (for
	// error messages; the evaluator resolves by Sym).
	Sym  int64
	Name string

	// VectorLit / Call args / SpecialForm args / Do statements
	Elems []Node

	// Call
	Callee *Node

	// SpecialForm
	Form string

	// LambdaLit
	ArgNames   []string
	LocalNames []string
	Body       *Node
}
