package value

import (
	"fmt"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
)

// KV is the shared shape behind TABLE and TDict (spec.md §3.1: "TABLE (two
// parallel lists: column-names vector of SYMBOL and values list of
// vectors), DICT (same shape, unordered semantics)"). The Type field
// selects which ordering semantics callers should apply; the storage shape
// is identical.
type KV struct {
	typ     Type // TTable or TDict
	columns *Vector
	values  *List
	attrs   Attrs
	refc    atomic.Int32
}

// NewTable validates and constructs a TABLE, enforcing spec.md §3.3:
// columns[0].type == SYMBOL, columns[1].type == LIST, and every column
// vector has the same length as the first.
func NewTable(names *Vector, cols *List) (*KV, error) {
	if names.Type() != TSymbolVector {
		return nil, fmt.Errorf("value: table column-names must be a SYMBOL vector, got %v", names.Type())
	}
	if names.Len() != cols.Len() {
		return nil, fmt.Errorf("value: table has %d column names but %d columns", names.Len(), cols.Len())
	}
	if cols.Len() > 0 {
		want := columnLen(cols.At(0))
		for i := int64(1); i < cols.Len(); i++ {
			if got := columnLen(cols.At(i)); got != want {
				return nil, fmt.Errorf("value: table column %d has length %d, want %d", i, got, want)
			}
		}
	}
	kv := &KV{typ: TTable, columns: names, values: cols}
	kv.refc.Store(1)
	return kv, nil
}

// NewDict constructs a DICT with the same two-list shape as TABLE but no
// equal-length requirement across values (spec.md: "same shape, unordered
// semantics").
func NewDict(keys *Vector, vals *List) (*KV, error) {
	if keys.Type() != TSymbolVector {
		return nil, fmt.Errorf("value: dict keys must be a SYMBOL vector, got %v", keys.Type())
	}
	if keys.Len() != vals.Len() {
		return nil, fmt.Errorf("value: dict has %d keys but %d values", keys.Len(), vals.Len())
	}
	kv := &KV{typ: TDict, columns: keys, values: vals}
	kv.refc.Store(1)
	return kv, nil
}

func columnLen(v Value) int64 {
	switch c := v.(type) {
	case *Vector:
		return c.Len()
	case *List:
		return c.Len()
	case *Enum:
		return c.Index.Len()
	default:
		return 1
	}
}

func (kv *KV) Hdr() Header {
	return Header{Type: kv.typ, Attrs: kv.attrs, Len: uint64(kv.columns.Len()), Refc: uint32(kv.refc.Load())}
}

func (kv *KV) Clone() Value {
	kv.refc.Add(1)
	return kv
}

func (kv *KV) Drop() {
	if kv.refc.Add(-1) > 0 {
		return
	}
	kv.columns.Drop()
	kv.values.Drop()
}

func (kv *KV) RefCount() int32  { return kv.refc.Load() }
func (kv *KV) Columns() *Vector { return kv.columns }
func (kv *KV) Values() *List    { return kv.values }
func (kv *KV) IsTable() bool    { return kv.typ == TTable }

// Enum is a symbol column encoded as indices into a shared symbol-domain
// vector (spec.md §3.1, §4.7): Key names the domain (e.g. a splayed table's
// "sym" file), Index holds per-row ids into that domain.
type Enum struct {
	Key   Atom // SYMBOL atom
	Index *Vector
	attrs Attrs
	refc  atomic.Int32
}

func NewEnum(key Atom, index *Vector) (*Enum, error) {
	if key.Type() != TSymbol {
		return nil, fmt.Errorf("value: enum key must be a SYMBOL atom, got %v", key.Type())
	}
	if index.Type() != TI64Vector {
		return nil, fmt.Errorf("value: enum index must be an I64 vector, got %v", index.Type())
	}
	e := &Enum{Key: key, Index: index}
	e.refc.Store(1)
	return e, nil
}

func (e *Enum) Hdr() Header {
	return Header{Type: TEnum, Attrs: e.attrs, Len: uint64(e.Index.Len()), Refc: uint32(e.refc.Load())}
}
func (e *Enum) Clone() Value { e.refc.Add(1); return e }
func (e *Enum) Drop() {
	if e.refc.Add(-1) > 0 {
		return
	}
	e.Index.Drop()
}
func (e *Enum) RefCount() int32 { return e.refc.Load() }

// Anymap is the heterogeneous external-storage compound (MAPLIST, spec.md
// §3.1): a byte buffer plus an offset table. SPEC_FULL.md §10.6 adds
// optional zstd compression of the backing buffer, transparent to readers.
type Anymap struct {
	offsets    []int64
	attrs      Attrs
	refc       atomic.Int32
	compressed []byte // present when attrs&AttrAnymapZstd != 0
	plain      []byte // decompressed cache, populated lazily
	free       func()
}

func NewAnymap(plain []byte, offsets []int64) *Anymap {
	a := &Anymap{plain: plain, offsets: offsets}
	a.refc.Store(1)
	return a
}

// NewCompressedAnymap stores compressed as-is; Buf() inflates it on first
// access and caches the result.
func NewCompressedAnymap(compressed []byte, offsets []int64) *Anymap {
	a := &Anymap{compressed: compressed, offsets: offsets, attrs: AttrAnymapZstd}
	a.refc.Store(1)
	return a
}

func (a *Anymap) Hdr() Header {
	return Header{Type: TAnymap, Attrs: a.attrs, Len: uint64(len(a.offsets)), Refc: uint32(a.refc.Load())}
}
func (a *Anymap) Clone() Value { a.refc.Add(1); return a }
func (a *Anymap) Drop() {
	if a.refc.Add(-1) > 0 {
		return
	}
	if a.free != nil {
		a.free()
	}
}
func (a *Anymap) RefCount() int32 { return a.refc.Load() }
func (a *Anymap) Offsets() []int64 { return a.offsets }

// Buf returns the decompressed backing buffer, inflating and caching it on
// first call if the anymap was constructed compressed.
func (a *Anymap) Buf() ([]byte, error) {
	if a.plain != nil {
		return a.plain, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("value: anymap zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(a.compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("value: anymap zstd decode: %w", err)
	}
	a.plain = out
	return out, nil
}

// Entry returns the i'th heterogeneous blob: Buf()[offsets[i]:offsets[i+1]].
func (a *Anymap) Entry(i int64) ([]byte, error) {
	buf, err := a.Buf()
	if err != nil {
		return nil, err
	}
	return buf[a.offsets[i]:a.offsets[i+1]], nil
}

// LambdaBody is an opaque handle to the evaluator's AST node type. Keeping
// it as `any` here (instead of importing core/ast) avoids a dependency
// cycle: rlib/value is a leaf package the evaluator depends on, not the
// other way around.
type LambdaBody any

// Lambda is a user-defined function value (spec.md §3.1): argument and
// local symbol-id slots, a body, captured constants, and debug info.
type Lambda struct {
	ArgIDs    []int64
	LocalIDs  []int64
	Body      LambdaBody
	Constants []Value
	Name      string // attached by env.Set when binding a lambda, for diagnostics
	Nfo       *DebugInfo

	attrs Attrs
	refc  atomic.Int32
}

// DebugInfo is the lambda's source-position side-table (spec.md §4.9: "a
// source-position span retrieved from the lambda's nfo side-table").
type DebugInfo struct {
	File   string
	Offset int
	Length int
}

func NewLambda(argIDs, localIDs []int64, body LambdaBody, consts []Value) *Lambda {
	l := &Lambda{ArgIDs: argIDs, LocalIDs: localIDs, Body: body, Constants: consts}
	l.refc.Store(1)
	return l
}

func (l *Lambda) Hdr() Header {
	return Header{Type: TLambda, Attrs: l.attrs, Len: uint64(len(l.ArgIDs)), Refc: uint32(l.refc.Load())}
}
func (l *Lambda) Clone() Value { l.refc.Add(1); return l }
func (l *Lambda) Drop() {
	if l.refc.Add(-1) > 0 {
		return
	}
	dropAll(l.Constants)
}
func (l *Lambda) RefCount() int32 { return l.refc.Load() }

// ErrorVal is the ERROR compound (spec.md §3.1, §7): a stable error-kind
// byte, a message, and optional source-span metadata.
type ErrorVal struct {
	Kind    ErrorKind
	Message string
	Span    *DebugInfo

	refc atomic.Int32
}

// ErrorKind is the stable error taxonomy from spec.md §7.
type ErrorKind int8

const (
	ErrNone ErrorKind = iota
	ErrParse
	ErrType
	ErrLength
	ErrDomain
	ErrArity
	ErrIO
	ErrSys
	ErrNotImplemented
	ErrNotSupported
	ErrMemory
)

func (k ErrorKind) String() string {
	switch k {
	case ErrParse:
		return "PARSE"
	case ErrType:
		return "TYPE"
	case ErrLength:
		return "LENGTH"
	case ErrDomain:
		return "DOMAIN"
	case ErrArity:
		return "ARITY"
	case ErrIO:
		return "IO"
	case ErrSys:
		return "SYS"
	case ErrNotImplemented:
		return "NOT_IMPLEMENTED"
	case ErrNotSupported:
		return "NOT_SUPPORTED"
	case ErrMemory:
		return "MEMORY"
	default:
		return "NONE"
	}
}

func NewError(kind ErrorKind, msg string) *ErrorVal {
	e := &ErrorVal{Kind: kind, Message: msg}
	e.refc.Store(1)
	return e
}

func (e *ErrorVal) Hdr() Header  { return Header{Type: TError, Refc: uint32(e.refc.Load())} }
func (e *ErrorVal) Clone() Value { e.refc.Add(1); return e }
func (e *ErrorVal) Drop()        { e.refc.Add(-1) }
func (e *ErrorVal) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsError reports whether v is an ERROR compound (the evaluator's
// "IS_ERR(result)" check, spec.md §4.10).
func IsError(v Value) bool {
	_, ok := v.(*ErrorVal)
	return ok
}
