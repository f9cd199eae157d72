package serde

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// EncodeValue writes v's self-describing tag+body encoding (spec.md §4.4)
// to w. It has no symbol table, so a SYMBOL atom or vector or an ENUM,
// at any nesting depth, makes it return an error; EncodeValueWithTab
// resolves those to UTF-8 bytes so the wire form never depends on the
// receiving process's interning order.
func EncodeValue(w io.Writer, v value.Value) error {
	switch x := v.(type) {
	case value.Atom:
		return encodeAtom(w, x)
	case *value.Vector:
		return encodeVector(w, x)
	case *value.List:
		return encodeList(w, x)
	case *value.KV:
		return encodeKV(w, x)
	case *value.Enum:
		return encodeEnum(w, x)
	case *value.ErrorVal:
		return encodeError(w, x)
	default:
		return fmt.Errorf("serde: unsupported value type %T", v)
	}
}

// EncodeValueWithTab is EncodeValue, but resolves SYMBOL payloads and ENUM
// keys through tab instead of rejecting them.
func EncodeValueWithTab(w io.Writer, v value.Value, tab *symtab.Table) error {
	return encodeValueTab(w, v, tab)
}

func writeTag(w io.Writer, t value.Type) error {
	_, err := w.Write([]byte{byte(uint8(int8(t)))})
	return err
}

func encodeAtom(w io.Writer, a value.Atom) error {
	if err := writeTag(w, a.Type()); err != nil {
		return err
	}
	if a.Type() == value.TSymbol {
		return fmt.Errorf("serde: symbol atom requires a symtab; use EncodeValueWithTab")
	}
	return writeAtomBits(w, a)
}

func writeAtomBits(w io.Writer, a value.Atom) error {
	switch a.Type() {
	case value.TB8:
		v := byte(0)
		if a.Bool() {
			v = 1
		}
		_, err := w.Write([]byte{v})
		return err
	case value.TU8:
		_, err := w.Write([]byte{a.U8()})
		return err
	case value.TI16:
		return binary.Write(w, binary.LittleEndian, a.I16())
	case value.TI32, value.TDate:
		return binary.Write(w, binary.LittleEndian, a.I32())
	case value.TI64, value.TTimestamp:
		return binary.Write(w, binary.LittleEndian, a.I64())
	case value.TF64:
		return binary.Write(w, binary.LittleEndian, a.F64())
	case value.TTime:
		return binary.Write(w, binary.LittleEndian, a.Time())
	case value.TChar:
		_, err := w.Write([]byte{a.Char()})
		return err
	case value.TGUID:
		g := a.GUID()
		_, err := w.Write(g[:])
		return err
	default:
		return fmt.Errorf("serde: atom type %v has no raw encoding", a.Type())
	}
}

func writeCString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

func encodeVector(w io.Writer, v *value.Vector) error {
	if err := writeTag(w, v.Type()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(v.Attrs())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(v.Len())); err != nil {
		return err
	}
	if v.Type() == value.TSymbolVector {
		return fmt.Errorf("serde: symbol vector requires a symtab; use EncodeValueWithTab")
	}
	_, err := w.Write(v.Raw())
	return err
}

func encodeList(w io.Writer, l *value.List) error {
	if err := writeTag(w, value.TList); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(l.Attrs())); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(l.Len())); err != nil {
		return err
	}
	for _, e := range l.Elems() {
		if err := EncodeValue(w, e); err != nil {
			return err
		}
	}
	return nil
}

func encodeKV(w io.Writer, kv *value.KV) error {
	t := value.TDict
	if kv.IsTable() {
		t = value.TTable
	}
	if err := writeTag(w, t); err != nil {
		return err
	}
	if err := EncodeValue(w, kv.Columns()); err != nil {
		return err
	}
	return EncodeValue(w, kv.Values())
}

func encodeEnum(w io.Writer, e *value.Enum) error {
	if err := writeTag(w, value.TEnum); err != nil {
		return err
	}
	return fmt.Errorf("serde: enum requires a symtab; use EncodeValueWithTab")
}

func encodeError(w io.Writer, e *value.ErrorVal) error {
	if err := writeTag(w, value.TError); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(e.Kind)}); err != nil {
		return err
	}
	return writeCString(w, e.Message)
}

// --- symtab-aware path -------------------------------------------------

func encodeValueTab(w io.Writer, v value.Value, tab *symtab.Table) error {
	switch x := v.(type) {
	case value.Atom:
		if x.Type() == value.TSymbol {
			if err := writeTag(w, value.TSymbol); err != nil {
				return err
			}
			return writeCString(w, tab.Str(x.Symbol()))
		}
		return encodeAtom(w, x)
	case *value.Vector:
		if x.Type() == value.TSymbolVector {
			if err := writeTag(w, value.TSymbolVector); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, uint8(x.Attrs())); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, uint32(x.Len())); err != nil {
				return err
			}
			for _, id := range x.I64s() {
				if err := writeCString(w, tab.Str(id)); err != nil {
					return err
				}
			}
			return nil
		}
		return encodeVector(w, x)
	case *value.List:
		if err := writeTag(w, value.TList); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint8(x.Attrs())); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(x.Len())); err != nil {
			return err
		}
		for _, e := range x.Elems() {
			if err := encodeValueTab(w, e, tab); err != nil {
				return err
			}
		}
		return nil
	case *value.KV:
		t := value.TDict
		if x.IsTable() {
			t = value.TTable
		}
		if err := writeTag(w, t); err != nil {
			return err
		}
		if err := encodeValueTab(w, x.Columns(), tab); err != nil {
			return err
		}
		return encodeValueTab(w, x.Values(), tab)
	case *value.Enum:
		if err := writeTag(w, value.TEnum); err != nil {
			return err
		}
		if err := writeCString(w, tab.Str(x.Key.Symbol())); err != nil {
			return err
		}
		return encodeValueTab(w, x.Index, tab)
	case *value.ErrorVal:
		return encodeError(w, x)
	default:
		return fmt.Errorf("serde: unsupported value type %T", v)
	}
}
