package value

import "sync/atomic"

// List is a heterogeneous sequence of Values (spec.md §3.1's LIST type). A
// list owns its elements: NewList takes the handles as-is (no implicit
// clone), matching spec.md §3.4 ("Lists own their elements").
type List struct {
	elems []Value
	attrs Attrs
	refc  atomic.Int32
}

// NewList constructs a list that owns elems.
func NewList(elems []Value) *List {
	l := &List{elems: elems}
	l.refc.Store(1)
	return l
}

func (l *List) Hdr() Header {
	return Header{Type: TList, Attrs: l.attrs, Len: uint64(len(l.elems)), Refc: uint32(l.refc.Load())}
}

func (l *List) Clone() Value {
	l.refc.Add(1)
	return l
}

func (l *List) Drop() {
	if l.refc.Add(-1) > 0 {
		return
	}
	dropAll(l.elems)
}

func (l *List) RefCount() int32  { return l.refc.Load() }
func (l *List) Elems() []Value   { return l.elems }
func (l *List) Len() int64       { return int64(len(l.elems)) }
func (l *List) At(i int64) Value { return l.elems[i] }
func (l *List) Attrs() Attrs     { return l.attrs }
func (l *List) SetAttrs(a Attrs) { l.attrs = a }

// Append adds v (already owned by the caller) to the list's tail.
func (l *List) Append(v Value) { l.elems = append(l.elems, v) }
