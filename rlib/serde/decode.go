package serde

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// DecodeValue reads one self-describing tag+body value from r, allocating
// any vector payload from a and resolving SYMBOL bytes through tab
// (interning on first sight, per spec.md §4.2).
func DecodeValue(r io.Reader, a *arena.Arena, tab *symtab.Table) (value.Value, error) {
	br := asByteReader(r)
	tagByte, err := br.ReadByte()
	if err != nil {
		return nil, err
	}
	t := value.Type(int8(tagByte))

	if t.IsAtom() {
		return decodeAtom(br, t, tab)
	}
	switch t {
	case value.TList:
		return decodeList(br, a, tab)
	case value.TTable, value.TDict:
		return decodeKV(br, a, tab, t == value.TTable)
	case value.TEnum:
		return decodeEnum(br, a, tab)
	case value.TError:
		return decodeError(br)
	default:
		return decodeVector(br, a, t, tab)
	}
}

// asByteReader lets DecodeValue work over both bufio.Reader (from ReadFrame)
// and a plain io.Reader (from tests), wrapping the latter once.
func asByteReader(r io.Reader) *bufio.Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}

func readCString(r *bufio.Reader) (string, error) {
	s, err := r.ReadString(0)
	if err != nil {
		return "", err
	}
	return s[:len(s)-1], nil
}

func decodeAtom(r *bufio.Reader, t value.Type, tab *symtab.Table) (value.Value, error) {
	switch t {
	case value.TB8:
		b, err := r.ReadByte()
		return value.BoolAtom(b != 0), err
	case value.TU8:
		b, err := r.ReadByte()
		return value.U8Atom(b), err
	case value.TI16:
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return value.I16Atom(v), err
	case value.TI32:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return value.I32Atom(v), err
	case value.TDate:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return value.DateAtom(v), err
	case value.TI64:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return value.I64Atom(v), err
	case value.TTimestamp:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return value.TimestampAtom(v), err
	case value.TF64:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return value.F64Atom(v), err
	case value.TTime:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return value.TimeAtom(v), err
	case value.TChar:
		b, err := r.ReadByte()
		return value.CharAtom(b), err
	case value.TGUID:
		var g [16]byte
		_, err := io.ReadFull(r, g[:])
		return value.GUIDAtom(g), err
	case value.TSymbol:
		s, err := readCString(r)
		if err != nil {
			return nil, err
		}
		return value.SymbolAtom(tab.Intern(s)), nil
	default:
		return nil, fmt.Errorf("serde: unknown atom tag %v", t)
	}
}

func readVecPrefix(r *bufio.Reader) (value.Attrs, uint32, error) {
	var attrs uint8
	if err := binary.Read(r, binary.LittleEndian, &attrs); err != nil {
		return 0, 0, err
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, 0, err
	}
	return value.Attrs(attrs), n, nil
}

func decodeVector(r *bufio.Reader, a *arena.Arena, t value.Type, tab *symtab.Table) (value.Value, error) {
	attrs, n, err := readVecPrefix(r)
	if err != nil {
		return nil, err
	}
	if t == value.TSymbolVector {
		v, err := value.NewVector(a, value.TSymbolVector, int64(n))
		if err != nil {
			return nil, err
		}
		ids := v.I64s()
		for i := range ids {
			s, err := readCString(r)
			if err != nil {
				return nil, err
			}
			ids[i] = tab.Intern(s)
		}
		v.SetAttrs(attrs)
		return v, nil
	}
	v, err := value.NewVector(a, t, int64(n))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, v.Raw()); err != nil {
		return nil, err
	}
	v.SetAttrs(attrs)
	return v, nil
}

func decodeList(r *bufio.Reader, a *arena.Arena, tab *symtab.Table) (value.Value, error) {
	attrs, n, err := readVecPrefix(r)
	if err != nil {
		return nil, err
	}
	elems := make([]value.Value, n)
	for i := range elems {
		e, err := DecodeValue(r, a, tab)
		if err != nil {
			return nil, err
		}
		elems[i] = e
	}
	l := value.NewList(elems)
	l.SetAttrs(attrs)
	return l, nil
}

func decodeKV(r *bufio.Reader, a *arena.Arena, tab *symtab.Table, isTable bool) (value.Value, error) {
	colsVal, err := DecodeValue(r, a, tab)
	if err != nil {
		return nil, err
	}
	valsVal, err := DecodeValue(r, a, tab)
	if err != nil {
		return nil, err
	}
	cols, ok := colsVal.(*value.Vector)
	if !ok {
		return nil, fmt.Errorf("serde: table/dict columns must decode to a vector, got %T", colsVal)
	}
	vals, ok := valsVal.(*value.List)
	if !ok {
		return nil, fmt.Errorf("serde: table/dict values must decode to a list, got %T", valsVal)
	}
	if isTable {
		return value.NewTable(cols, vals)
	}
	return value.NewDict(cols, vals)
}

func decodeEnum(r *bufio.Reader, a *arena.Arena, tab *symtab.Table) (value.Value, error) {
	keyStr, err := readCString(r)
	if err != nil {
		return nil, err
	}
	idxVal, err := DecodeValue(r, a, tab)
	if err != nil {
		return nil, err
	}
	idx, ok := idxVal.(*value.Vector)
	if !ok {
		return nil, fmt.Errorf("serde: enum index must decode to a vector, got %T", idxVal)
	}
	key := value.SymbolAtom(tab.Intern(keyStr))
	return value.NewEnum(key, idx)
}

func decodeError(r *bufio.Reader) (value.Value, error) {
	code, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	msg, err := readCString(r)
	if err != nil {
		return nil, err
	}
	return value.NewError(value.ErrorKind(int8(code)), msg), nil
}
