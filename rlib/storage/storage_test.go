package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

func buildTable(t *testing.T, a *arena.Arena, tab *symtab.Table) *value.KV {
	t.Helper()
	names, err := value.NewVector(a, value.TSymbolVector, 2)
	require.NoError(t, err)
	names.I64s()[0] = tab.Intern("id")
	names.I64s()[1] = tab.Intern("ticker")

	idCol, err := value.NewVector(a, value.TI64Vector, 3)
	require.NoError(t, err)
	copy(idCol.I64s(), []int64{1, 2, 3})

	symCol, err := value.NewVector(a, value.TSymbolVector, 3)
	require.NoError(t, err)
	symCol.I64s()[0] = tab.Intern("aapl")
	symCol.I64s()[1] = tab.Intern("msft")
	symCol.I64s()[2] = tab.Intern("aapl")

	tbl, err := value.NewTable(names, value.NewList([]value.Value{idCol, symCol}))
	require.NoError(t, err)
	return tbl
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := arena.New(arena.DefaultMaxOrder)
	tab := symtab.New()

	tbl := buildTable(t, a, tab)

	// Build the merged domain and enum-encode the symbol column up front,
	// the same steps Write applies itself to a raw SYMBOL column.
	symVec := tbl.Values().At(1).(*value.Vector)
	domain, err := mergeSymDomain(dir, tab, []*value.Vector{symVec})
	require.NoError(t, err)
	require.NoError(t, writeSymDomain(dir, tab, domain))

	enumCol, err := EncodeEnumColumn(a, value.SymbolAtom(tab.Intern(symFile)), symVec, domain)
	require.NoError(t, err)

	names := tbl.Columns()
	tbl2, err := value.NewTable(names, value.NewList([]value.Value{tbl.Values().At(0), enumCol}))
	require.NoError(t, err)

	require.NoError(t, Write(a, tab, dir, tbl2))

	readTab := symtab.New()
	readArena := arena.New(arena.DefaultMaxOrder)
	opened, err := Open(readArena, readTab, dir)
	require.NoError(t, err)
	defer opened.Close()

	require.Equal(t, []string{"id", "ticker"}, opened.Columns)
	idCol := opened.Values.At(0).(*value.Vector)
	require.Equal(t, []int64{1, 2, 3}, idCol.I64s())

	symEnum := opened.Values.At(1).(*value.Enum)
	require.Equal(t, readTab.Str(symEnum.Key.Symbol()), "sym")
	ids := symEnum.Index.I64s()
	require.Equal(t, ids[0], ids[2]) // both "aapl" rows map to the same domain position
	require.NotEqual(t, ids[0], ids[1])
}

func TestDistinctSymbolIDs(t *testing.T) {
	a := arena.New(arena.DefaultMaxOrder)
	tab := symtab.New()
	v, err := value.NewVector(a, value.TSymbolVector, 4)
	require.NoError(t, err)
	v.I64s()[0] = tab.Intern("a")
	v.I64s()[1] = tab.Intern("b")
	v.I64s()[2] = tab.Intern("a")
	v.I64s()[3] = tab.Intern("c")

	ids := distinctSymbolIDs([]*value.Vector{v})
	require.Len(t, ids, 3)
}
