package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/serde"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// Write splays tbl to dir: collects distinct symbols across SYMBOL
// columns, merges them into any existing `sym` domain file (preserving
// existing ids, per spec.md §4.7: "if sym file already exists, load it,
// take the set-difference of the new symbols, append to preserve existing
// ids; rewrite"), rewrites every SYMBOL column as an ENUM index, and
// writes the `.d` name vector — each file truncate+write+fsync'd
// atomically under an exclusive directory lock.
func Write(a *arena.Arena, tab *symtab.Table, dir string, tbl *value.KV) error {
	fl, err := lockDir(dir)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	names := tbl.Columns()
	vals := tbl.Values()
	if names.Type() != value.TSymbolVector {
		return fmt.Errorf("storage: write: table column names must be SYMBOL, got %v", names.Type())
	}

	symbolCols := make([]*value.Vector, 0)
	for i := int64(0); i < vals.Len(); i++ {
		if v, ok := vals.At(i).(*value.Vector); ok && v.Type() == value.TSymbolVector {
			symbolCols = append(symbolCols, v)
		}
	}

	var domainOrder []int64
	if len(symbolCols) > 0 {
		domainOrder, err = mergeSymDomain(dir, tab, symbolCols)
		if err != nil {
			return fmt.Errorf("storage: merge sym domain: %w", err)
		}
		if err := writeSymDomain(dir, tab, domainOrder); err != nil {
			return err
		}
	}

	colNames := names.I64s()
	for i := int64(0); i < vals.Len(); i++ {
		name := tab.Str(colNames[i])
		col := vals.At(i)
		if v, ok := col.(*value.Vector); ok && v.Type() == value.TSymbolVector {
			e, err := EncodeEnumColumn(a, value.SymbolAtom(tab.Intern(symFile)), v, domainOrder)
			if err != nil {
				return fmt.Errorf("storage: enum-encode column %q: %w", name, err)
			}
			col = e
		}
		if err := writeColumn(dir, name, col); err != nil {
			return fmt.Errorf("storage: write column %q: %w", name, err)
		}
	}

	return writeNameVector(dir, tab, colNames)
}

// mergeSymDomain returns the full, insertion-ordered domain (existing ids
// preserved, new symbols appended) after folding in every id referenced by
// symbolCols.
func mergeSymDomain(dir string, tab *symtab.Table, symbolCols []*value.Vector) ([]int64, error) {
	path := filepath.Join(dir, symFile)
	var existing []int64
	if _, err := os.Stat(path); err == nil {
		m, key, _, payload, err := serde.OpenCompound(path)
		if err != nil {
			return nil, err
		}
		if key != symFile {
			m.Close()
			return nil, fmt.Errorf("storage: %s preamble key mismatch: got %q", symFile, key)
		}
		off := 0
		for off < len(payload) {
			end := off
			for end < len(payload) && payload[end] != 0 {
				end++
			}
			existing = append(existing, tab.Intern(string(payload[off:end])))
			off = end + 1
		}
		m.Close()
	}

	seen := make(map[int64]bool, len(existing))
	order := make([]int64, 0, len(existing))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	ids := distinctSymbolIDs(symbolCols)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	return order, nil
}

func writeSymDomain(dir string, tab *symtab.Table, order []int64) error {
	var payload []byte
	for _, id := range order {
		payload = append(payload, tab.Str(id)...)
		payload = append(payload, 0)
	}
	hdr := value.Header{MMod: value.ModeExternalCompound, Type: value.TCharVector, Len: uint64(len(payload))}
	return atomicWriteCompound(filepath.Join(dir, symFile), symFile, hdr, payload)
}

func writeColumn(dir, name string, col value.Value) error {
	switch v := col.(type) {
	case *value.Vector:
		if v.Type() == value.TSymbolVector {
			return fmt.Errorf("storage: symbol column %q must be enum-encoded before write", name)
		}
		hdr := value.Header{MMod: value.ModeExternalSimple, Type: v.Type(), Attrs: v.Attrs(), Len: uint64(v.Len())}
		return atomicWriteSimple(filepath.Join(dir, name), hdr, v.Raw())
	case *value.Enum:
		hdr := value.Header{MMod: value.ModeExternalSimple, Type: value.TI64Vector, Attrs: value.AttrEnumColumn, Len: uint64(v.Index.Len())}
		return atomicWriteSimple(filepath.Join(dir, name), hdr, v.Index.Raw())
	default:
		return fmt.Errorf("storage: column %q has unsupported storage type %T", name, col)
	}
}

func writeNameVector(dir string, tab *symtab.Table, ids []int64) error {
	var payload []byte
	for _, id := range ids {
		payload = append(payload, tab.Str(id)...)
		payload = append(payload, 0)
	}
	hdr := value.Header{MMod: value.ModeExternalSimple, Type: value.TSymbolVector, Len: uint64(len(ids))}
	return atomicWriteSimple(filepath.Join(dir, nameFile), hdr, payload)
}

// atomicWriteSimple and atomicWriteCompound write to a temp file in dir
// and rename over the destination, giving the truncate+write+fsync
// atomicity spec.md §4.7 requires without a window where a reader could
// observe a partially written file.
func atomicWriteSimple(path string, hdr value.Header, payload []byte) error {
	return atomicWrite(path, func(tmp string) error { return serde.WriteSimple(tmp, hdr, payload) })
}

func atomicWriteCompound(path, key string, hdr value.Header, payload []byte) error {
	return atomicWrite(path, func(tmp string) error { return serde.WriteCompound(tmp, key, hdr, payload) })
}

func atomicWrite(path string, write func(tmp string) error) error {
	tmp := path + ".tmp"
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	f, err := os.OpenFile(tmp, os.O_RDWR, 0o644)
	if err == nil {
		f.Sync()
		f.Close()
	}
	return os.Rename(tmp, path)
}

// EncodeEnumColumn converts a SYMBOL vector into its ENUM form against
// domain order, ready for writeColumn — used by callers preparing a table
// before Write (e.g. a CSV loader assigning fresh symbol ids).
func EncodeEnumColumn(a *arena.Arena, key value.Atom, col *value.Vector, domain []int64) (*value.Enum, error) {
	pos := make(map[int64]int64, len(domain))
	for i, id := range domain {
		pos[id] = int64(i)
	}
	idx, err := value.NewVector(a, value.TI64Vector, col.Len())
	if err != nil {
		return nil, err
	}
	dst := idx.I64s()
	src := col.I64s()
	for i, id := range src {
		if id == symtab.NullID {
			dst[i] = value.NullI64
			continue
		}
		dst[i] = pos[id]
	}
	return value.NewEnum(key, idx)
}
