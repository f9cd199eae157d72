// Package value implements RayforceDB's tagged value model: the 16-byte
// object header shared by every heap-resident object, the atom/vector/
// compound variants built on top of it, and refcount-based ownership.
package value

import "fmt"

// Type is the signed 8-bit type tag carried in every object header.
// Negative tags are atoms (single-element scalars); zero and positive
// tags are vectors and compounds.
type Type int8

const (
	TNone Type = 0

	// Atoms (negative tags).
	TB8        Type = -1
	TU8        Type = -2
	TI16       Type = -3
	TI32       Type = -4
	TI64       Type = -5
	TF64       Type = -6
	TDate      Type = -7 // i32 days from 2000-01-01
	TTime      Type = -8 // i32 ms-of-day
	TTimestamp Type = -9 // i64 ns from EPOCH
	TSymbol    Type = -10
	TGUID      Type = -11
	TChar      Type = -12

	// Vectors (positive tags), one per atom type.
	TB8Vector        Type = 1
	TU8Vector        Type = 2
	TI16Vector       Type = 3
	TI32Vector       Type = 4
	TI64Vector       Type = 5
	TF64Vector       Type = 6
	TDateVector      Type = 7
	TTimeVector      Type = 8
	TTimestampVector Type = 9
	TSymbolVector    Type = 10
	TGUIDVector      Type = 11
	TCharVector      Type = 12 // string

	// Heterogeneous and compound types.
	TList   Type = 13
	TTable  Type = 14
	TDict   Type = 15
	TEnum   Type = 16
	TAnymap Type = 17
	TLambda Type = 18
	TError  Type = 19
)

// IsAtom reports whether t is a scalar (negative tag).
func (t Type) IsAtom() bool { return t < 0 }

// VectorOf returns the vector tag that holds elements of atom type t.
// Panics if t is not an atom tag with a corresponding vector form.
func (t Type) VectorOf() Type {
	if !t.IsAtom() || t == TNone {
		panic(fmt.Sprintf("value: %v has no vector form", t))
	}
	return Type(-int8(t))
}

// AtomOf is the inverse of VectorOf.
func (t Type) AtomOf() Type {
	switch t {
	case TB8Vector, TU8Vector, TI16Vector, TI32Vector, TI64Vector, TF64Vector,
		TDateVector, TTimeVector, TTimestampVector, TSymbolVector, TGUIDVector, TCharVector:
		return Type(-int8(t))
	default:
		panic(fmt.Sprintf("value: %v has no atom form", t))
	}
}

func (t Type) String() string {
	switch t {
	case TNone:
		return "none"
	case TB8, TB8Vector:
		return "bool"
	case TU8, TU8Vector:
		return "u8"
	case TI16, TI16Vector:
		return "i16"
	case TI32, TI32Vector:
		return "i32"
	case TI64, TI64Vector:
		return "i64"
	case TF64, TF64Vector:
		return "f64"
	case TDate, TDateVector:
		return "date"
	case TTime, TTimeVector:
		return "time"
	case TTimestamp, TTimestampVector:
		return "timestamp"
	case TSymbol, TSymbolVector:
		return "symbol"
	case TGUID, TGUIDVector:
		return "guid"
	case TChar, TCharVector:
		return "char"
	case TList:
		return "list"
	case TTable:
		return "table"
	case TDict:
		return "dict"
	case TEnum:
		return "enum"
	case TAnymap:
		return "anymap"
	case TLambda:
		return "lambda"
	case TError:
		return "error"
	default:
		return fmt.Sprintf("type(%d)", int8(t))
	}
}

// ElemSize returns the size in bytes of one element of a fixed-width
// vector type. Panics for variable-width or compound types.
func (t Type) ElemSize() int {
	switch t {
	case TB8Vector, TU8Vector, TCharVector:
		return 1
	case TI16Vector:
		return 2
	case TI32Vector, TDateVector, TTimeVector:
		return 4
	case TI64Vector, TF64Vector, TTimestampVector, TSymbolVector:
		return 8
	case TGUIDVector:
		return 16
	default:
		panic(fmt.Sprintf("value: %v has no fixed element size", t))
	}
}

// MemMode is the object's memory-ownership mode, carried in the header's
// mmod byte so externally mapped files can be reinterpreted as objects
// in place.
type MemMode uint8

const (
	// ModeInternal: object lives in the current executor's buddy arena.
	ModeInternal MemMode = iota
	// ModeExternalSimple: a file mapped in place; header begins at file offset 0.
	ModeExternalSimple
	// ModeExternalCompound: preceded by a page-sized preamble holding a printable key.
	ModeExternalCompound
	// ModeExternalSerialized: the 16-byte prefix carries only mmod; payload is wire-encoded.
	ModeExternalSerialized
)

// Attrs are bit flags describing sortedness/uniqueness/protection of a value.
type Attrs uint8

const (
	AttrDistinct Attrs = 1 << iota
	AttrAsc
	AttrDesc
	AttrQuoted
	AttrProtected
	// AttrAnymapZstd is a RayforceDB-local extension (SPEC_FULL.md §10.6):
	// the ANYMAP backing buffer is zstd-compressed and must be inflated on
	// first access. It uses one of the three attrs bits the base spec
	// leaves unused.
	AttrAnymapZstd
	// AttrEnumColumn marks an on-disk I64 vector file as a splayed-table
	// ENUM-encoded column (indices into the directory's sym domain) rather
	// than a plain I64 column, since both share the same wire type tag on
	// disk (spec.md §4.7).
	AttrEnumColumn
)

// HeaderSize is the fixed size in bytes of every object header. It MUST
// stay 16 so externally mapped files can be reinterpreted as objects in
// place (spec.md §3.2).
const HeaderSize = 16

// Header is the uniform 16-byte prefix shared by every heap-resident
// object: mmod(1) + order(1) + type(1) + attrs(1) + refc(4) + len(8).
type Header struct {
	MMod  MemMode
	Order uint8
	Type  Type
	Attrs Attrs
	Refc  uint32
	Len   uint64
}

// RAYPageSize is the page size used for the EXTERNAL_COMPOUND preamble
// (spec.md §3.3, §4.4) — fixed at 4096 to match the original's RAY_PAGE_SIZE
// on every supported OS (WASM's 65536-byte page is out of scope: RayforceDB
// does not target WASM).
const RAYPageSize = 4096
