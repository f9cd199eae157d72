package value

import (
	"sync/atomic"
	"unsafe"

	"github.com/rayforcedb/rayforce/rlib/arena"
)

// Vector is a homogeneous, fixed-element-width array value: one of the
// B8/U8/I16/I32/I64/F64/DATE/TIME/TIMESTAMP/SYMBOL/GUID/C8 vector types
// (spec.md §3.1). Its payload is a raw byte view reinterpreted per element
// type by the accessor methods below, mirroring the original's
// "accessors are named views over obj.payload cast to the element type"
// (spec.md §4.3) — Go's unsafe.Slice stands in for the C pointer cast.
type Vector struct {
	typ   Type
	attrs Attrs
	n     int64
	raw   []byte // len(raw) == n*ElemSize(typ), empty for n==0

	refc atomic.Int32
	free func() // arena.Free or file-unmap closure; nil for a dropped/foreign-owned value
	mmod MemMode
}

// NewVector allocates an n-element INTERNAL vector of type t from a.
func NewVector(a *arena.Arena, t Type, n int64) (*Vector, error) {
	elemSize := t.ElemSize()
	h, err := a.Alloc(int(n) * elemSize)
	if err != nil {
		return nil, err
	}
	v := &Vector{typ: t, n: n, raw: h.Buf[HeaderSize : HeaderSize+int(n)*elemSize]}
	v.refc.Store(1)
	v.free = func() { a.Free(h) }
	return v, nil
}

// NewExternalVector wraps an already-mapped byte region (from serde/storage)
// as a vector without copying, per spec.md §3.3's EXTERNAL_SIMPLE/
// EXTERNAL_COMPOUND modes. unmap is invoked on final Drop.
func NewExternalVector(t Type, n int64, payload []byte, mode MemMode, unmap func()) *Vector {
	v := &Vector{typ: t, n: n, raw: payload, mmod: mode}
	v.refc.Store(1)
	v.free = unmap
	return v
}

func (v *Vector) Hdr() Header {
	return Header{MMod: v.mmod, Type: v.typ, Attrs: v.attrs, Len: uint64(v.n), Refc: uint32(v.refc.Load())}
}

func (v *Vector) Type() Type  { return v.typ }
func (v *Vector) Len() int64  { return v.n }
func (v *Vector) Attrs() Attrs { return v.attrs }
func (v *Vector) SetAttrs(a Attrs) { v.attrs = a }

func (v *Vector) Clone() Value {
	v.refc.Add(1)
	return v
}

func (v *Vector) Drop() {
	if v.refc.Add(-1) > 0 {
		return
	}
	if v.free != nil {
		v.free()
		v.free = nil
	}
}

// RefCount reports the live reference count, used by tests asserting
// spec.md §8 property 1: drop(clone(x)) ≡ noop.
func (v *Vector) RefCount() int32 { return v.refc.Load() }

// --- typed views -----------------------------------------------------------

func byteView(b []byte) []byte { return b }

func i16View(b []byte) []int16 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), len(b)/2)
}

func i32View(b []byte) []int32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func i64View(b []byte) []int64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&b[0])), len(b)/8)
}

func f64View(b []byte) []float64 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), len(b)/8)
}

func guidView(b []byte) [][16]byte {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*[16]byte)(unsafe.Pointer(&b[0])), len(b)/16)
}

// Bools returns a B8 vector's elements as bytes (0/1); Go has no packed-bit
// bool array requirement here, and the spec stores B8 one byte per element.
func (v *Vector) Bools() []byte { return byteView(v.raw) }
func (v *Vector) U8s() []byte   { return byteView(v.raw) }
func (v *Vector) Chars() []byte { return byteView(v.raw) } // C8 vector / string bytes

func (v *Vector) I16s() []int16 { return i16View(v.raw) }
func (v *Vector) I32s() []int32 { return i32View(v.raw) } // also DATE, TIME vector
func (v *Vector) I64s() []int64 { return i64View(v.raw) } // also TIMESTAMP, SYMBOL-id vector
func (v *Vector) F64s() []float64 { return f64View(v.raw) }
func (v *Vector) GUIDs() [][16]byte { return guidView(v.raw) }

// String materializes a C8 (char) vector as a Go string (copies once).
func (v *Vector) String() string { return string(v.raw) }

// Raw exposes the backing bytes, used by serde for wire/mmap encoding.
func (v *Vector) Raw() []byte { return v.raw }
