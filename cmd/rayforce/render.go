package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// render formats v for REPL/script-output display. It does not consume a
// reference — callers still own v and must Drop it themselves.
func render(v value.Value, tab *symtab.Table) string {
	switch x := v.(type) {
	case value.Atom:
		return renderAtom(x, tab)
	case *value.Vector:
		return renderVector(x, tab)
	case *value.List:
		parts := make([]string, x.Len())
		for i := int64(0); i < x.Len(); i++ {
			parts[i] = render(x.At(i), tab)
		}
		return "(" + strings.Join(parts, "; ") + ")"
	case *value.KV:
		return renderKV(x, tab)
	case *value.ErrorVal:
		return "'" + x.Error()
	case *value.Lambda:
		return "{lambda}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func renderAtom(a value.Atom, tab *symtab.Table) string {
	if a.IsNull() {
		return "0N"
	}
	switch a.Type() {
	case value.TB8:
		if a.Bool() {
			return "1b"
		}
		return "0b"
	case value.TI64:
		return strconv.FormatInt(a.I64(), 10)
	case value.TF64:
		return strconv.FormatFloat(a.F64(), 'g', -1, 64)
	case value.TSymbol:
		return "`" + tab.Str(a.Symbol())
	case value.TChar:
		return string(a.Char())
	default:
		return fmt.Sprintf("%v", a.Bits())
	}
}

func renderVector(v *value.Vector, tab *symtab.Table) string {
	n := int(v.Len())
	parts := make([]string, n)
	switch v.Type() {
	case value.TI64Vector, value.TTimestampVector:
		for i, x := range v.I64s() {
			parts[i] = strconv.FormatInt(x, 10)
		}
	case value.TF64Vector:
		for i, x := range v.F64s() {
			parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
	case value.TB8Vector:
		for i, b := range v.Bools() {
			if b != 0 {
				parts[i] = "1"
			} else {
				parts[i] = "0"
			}
		}
	case value.TSymbolVector:
		for i, id := range v.I64s() {
			parts[i] = "`" + tab.Str(id)
		}
	case value.TCharVector:
		return string(v.Chars())
	default:
		for i := range parts {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, " ")
}

func renderKV(kv *value.KV, tab *symtab.Table) string {
	var b strings.Builder
	if kv.IsTable() {
		b.WriteString("+")
	}
	names := kv.Columns()
	vals := kv.Values()
	for i := int64(0); i < names.Len(); i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(tab.Str(names.I64s()[i]))
		b.WriteString(":")
		b.WriteString(render(vals.At(i), tab))
	}
	return b.String()
}
