package storage

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// ReadLines reads every non-empty line of path, the minimal splitting
// core/eval's `read_csv` special form needs before fanning line ranges out
// to the worker pool (spec.md's CSV reader is named only as an external
// collaborator — §1/§6 give it no wire format of its own beyond comma
// fields, so this is the whole of the contract).
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

// vectorTypeForColumn maps a column's scalar type tag (as looked up through
// env's type registry) to the vector type tag ParseCSVChunk allocates.
func vectorTypeForColumn(t value.Type) (value.Type, error) {
	switch t {
	case value.TI64:
		return value.TI64Vector, nil
	case value.TF64:
		return value.TF64Vector, nil
	case value.TSymbol:
		return value.TSymbolVector, nil
	default:
		return 0, fmt.Errorf("storage: csv: unsupported column type %v", t)
	}
}

// ParseCSVChunk parses lines (a contiguous row range; no header) into one
// column vector per entry in types, returned as a LIST so the result can
// travel through turbo/pool.Task's single-Value return. Safe to call
// concurrently from multiple executors, each against its own arena — tab is
// RayforceDB's process-wide interner and is safe for concurrent Intern.
func ParseCSVChunk(a *arena.Arena, tab *symtab.Table, types []value.Type, lines []string) (*value.List, error) {
	n := int64(len(lines))
	cols := make([]value.Value, len(types))
	vecTypes := make([]value.Type, len(types))
	for i, t := range types {
		vt, err := vectorTypeForColumn(t)
		if err != nil {
			return nil, err
		}
		vecTypes[i] = vt
		v, err := value.NewVector(a, vt, n)
		if err != nil {
			return nil, err
		}
		cols[i] = v
	}

	for r, line := range lines {
		fields := strings.Split(line, ",")
		if len(fields) != len(types) {
			return nil, fmt.Errorf("storage: csv: row %d has %d fields, want %d", r, len(fields), len(types))
		}
		for c, t := range types {
			if err := setCSVField(cols[c].(*value.Vector), int64(r), t, fields[c], tab); err != nil {
				return nil, fmt.Errorf("storage: csv: row %d column %d: %w", r, c, err)
			}
		}
	}
	return value.NewList(cols), nil
}

func setCSVField(v *value.Vector, row int64, t value.Type, field string, tab *symtab.Table) error {
	field = strings.TrimSpace(field)
	switch t {
	case value.TI64:
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return err
		}
		v.I64s()[row] = n
	case value.TF64:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return err
		}
		v.F64s()[row] = f
	case value.TSymbol:
		v.I64s()[row] = tab.Intern(field)
	default:
		return fmt.Errorf("unsupported column type %v", t)
	}
	return nil
}

// ConcatColumns merges chunk results (each a LIST of column vectors, in
// submission order) into one full-length column per type.
func ConcatColumns(a *arena.Arena, types []value.Type, chunks []*value.List) ([]value.Value, error) {
	total := int64(0)
	for _, c := range chunks {
		if c.Len() > 0 {
			total += c.At(0).(*value.Vector).Len()
		}
	}

	out := make([]value.Value, len(types))
	for i, t := range types {
		vt, err := vectorTypeForColumn(t)
		if err != nil {
			return nil, err
		}
		v, err := value.NewVector(a, vt, total)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	offset := int64(0)
	for _, c := range chunks {
		var n int64
		if c.Len() > 0 {
			n = c.At(0).(*value.Vector).Len()
		}
		for i, t := range types {
			src := c.At(int64(i)).(*value.Vector)
			dst := out[i].(*value.Vector)
			switch t {
			case value.TI64, value.TSymbol:
				copy(dst.I64s()[offset:offset+n], src.I64s())
			case value.TF64:
				copy(dst.F64s()[offset:offset+n], src.F64s())
			}
		}
		offset += n
	}
	return out, nil
}

// SplitLines partitions lines into at most nChunks contiguous, roughly
// equal-sized slices (the first len(lines)%nChunks chunks take one extra
// line each), the shape
// `read_csv` hands to the worker pool for S10's "parallel parse" scenario.
func SplitLines(lines []string, nChunks int) [][]string {
	if nChunks <= 0 || nChunks > len(lines) {
		nChunks = len(lines)
	}
	if nChunks == 0 {
		return nil
	}
	out := make([][]string, 0, nChunks)
	base := len(lines) / nChunks
	rem := len(lines) % nChunks
	start := 0
	for i := 0; i < nChunks; i++ {
		size := base
		if i < rem {
			size++
		}
		out = append(out, lines[start:start+size])
		start += size
	}
	return out
}
