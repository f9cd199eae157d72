package value

import "math"

// Atom is a scalar value. Atoms own no heap-allocated payload (GUID bytes
// are stored inline), so Clone/Drop are no-ops — there is nothing to
// refcount, matching the treatment spec.md §3.4 mandates specifically for
// NULL_OBJ but which applies equally to every atom in this implementation.
type Atom struct {
	typ  Type
	bits uint64  // raw little-endian bits, reinterpreted per typ
	guid [16]byte
}

func (a Atom) Hdr() Header  { return Header{Type: a.typ, Len: 1} }
func (a Atom) Clone() Value { return a }
func (a Atom) Drop()        {}

func (a Atom) Type() Type { return a.typ }

// Numeric/temporal null sentinels, per spec.md §3.1.
const (
	NullI16 = math.MinInt16
	NullI32 = math.MinInt32
	NullI64 = math.MinInt64
	NullU8  = 0xFF
)

var nullF64Bits = math.Float64bits(math.NaN())

func BoolAtom(b bool) Atom {
	v := uint64(0)
	if b {
		v = 1
	}
	return Atom{typ: TB8, bits: v}
}
func (a Atom) Bool() bool { return a.bits != 0 }

func U8Atom(v uint8) Atom  { return Atom{typ: TU8, bits: uint64(v)} }
func (a Atom) U8() uint8   { return uint8(a.bits) }

func I16Atom(v int16) Atom { return Atom{typ: TI16, bits: uint64(uint16(v))} }
func (a Atom) I16() int16  { return int16(uint16(a.bits)) }

func I32Atom(v int32) Atom { return Atom{typ: TI32, bits: uint64(uint32(v))} }
func (a Atom) I32() int32  { return int32(uint32(a.bits)) }

func I64Atom(v int64) Atom { return Atom{typ: TI64, bits: uint64(v)} }
func (a Atom) I64() int64  { return int64(a.bits) }

func F64Atom(v float64) Atom { return Atom{typ: TF64, bits: math.Float64bits(v)} }
func (a Atom) F64() float64  { return math.Float64frombits(a.bits) }

func DateAtom(days int32) Atom  { return Atom{typ: TDate, bits: uint64(uint32(days))} }
func (a Atom) Date() int32      { return int32(uint32(a.bits)) }

func TimeAtom(msOfDay int32) Atom { return Atom{typ: TTime, bits: uint64(uint32(msOfDay))} }
func (a Atom) Time() int32        { return int32(uint32(a.bits)) }

func TimestampAtom(ns int64) Atom { return Atom{typ: TTimestamp, bits: uint64(ns)} }
func (a Atom) Timestamp() int64   { return int64(a.bits) }

func SymbolAtom(id int64) Atom { return Atom{typ: TSymbol, bits: uint64(id)} }
func (a Atom) Symbol() int64   { return int64(a.bits) }

func CharAtom(c byte) Atom { return Atom{typ: TChar, bits: uint64(c)} }
func (a Atom) Char() byte  { return byte(a.bits) }

func GUIDAtom(g [16]byte) Atom { return Atom{typ: TGUID, guid: g} }
func (a Atom) GUID() [16]byte  { return a.guid }

// NullAtom returns the per-type null sentinel atom for t (spec.md §3.1:
// "per-type null values (I32::MIN, I64::MIN, F64 NaN, etc.)").
func NullAtom(t Type) Atom {
	switch t {
	case TB8:
		return BoolAtom(false)
	case TU8:
		return U8Atom(NullU8)
	case TI16:
		return I16Atom(NullI16)
	case TI32, TDate:
		return Atom{typ: t, bits: uint64(uint32(NullI32))}
	case TI64, TTimestamp:
		return Atom{typ: t, bits: uint64(NullI64)}
	case TF64:
		return Atom{typ: TF64, bits: nullF64Bits}
	case TTime:
		return Atom{typ: TTime, bits: uint64(uint32(NullI32))}
	case TSymbol:
		return SymbolAtom(0) // id 0 reserved null, spec.md §3.3
	default:
		return Atom{typ: t}
	}
}

// IsNullBits reports whether the raw element bits represent the per-type
// null sentinel for t. Used by kernels for null propagation (spec.md §4.5).
func IsNullBits(t Type, bits uint64) bool {
	switch t {
	case TB8, TGUID, TChar:
		return false
	case TU8:
		return bits == NullU8
	case TI16:
		return int16(uint16(bits)) == NullI16
	case TI32, TDate, TTime:
		return int32(uint32(bits)) == NullI32
	case TI64, TTimestamp:
		return int64(bits) == NullI64
	case TF64:
		return math.IsNaN(math.Float64frombits(bits))
	case TSymbol:
		return bits == 0
	default:
		return false
	}
}

func (a Atom) IsNull() bool { return IsNullBits(a.typ, a.bits) }

// Bits exposes the raw 64-bit payload, used by kernels operating generically
// across atoms and single-element vector slots.
func (a Atom) Bits() uint64 { return a.bits }
