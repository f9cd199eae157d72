package parse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"

	"github.com/rayforcedb/rayforce/core/ast"
)

func TestParseArithmeticPrecedence(t *testing.T) {
	tab := symtab.New()
	n, err := Parse("1 + 2 * 3", tab)
	require.NoError(t, err)
	require.Equal(t, ast.Call, n.Kind)
	require.Equal(t, "+", n.Callee.Name)
	require.Equal(t, ast.Call, n.Elems[1].Kind)
	require.Equal(t, "*", n.Elems[1].Callee.Name)
}

func TestParseAssignmentSugar(t *testing.T) {
	tab := symtab.New()
	n, err := Parse("x: 5", tab)
	require.NoError(t, err)
	require.Equal(t, ast.SpecialForm, n.Kind)
	require.Equal(t, "set", n.Form)
	require.Equal(t, ast.SymbolRef, n.Elems[0].Kind)
	require.Equal(t, "x", n.Elems[0].Name)
}

func TestParseSymbolLiteral(t *testing.T) {
	tab := symtab.New()
	n, err := Parse("`abc", tab)
	require.NoError(t, err)
	require.Equal(t, ast.Const, n.Kind)
	atom := n.ConstVal.(value.Atom)
	require.Equal(t, value.TSymbol, atom.Type())
	require.Equal(t, "abc", tab.Str(atom.Symbol()))
}

func TestParseVectorLiteral(t *testing.T) {
	tab := symtab.New()
	n, err := Parse("[1;2;3]", tab)
	require.NoError(t, err)
	require.Equal(t, ast.VectorLit, n.Kind)
	require.Len(t, n.Elems, 3)
}

func TestParseLambdaLiteral(t *testing.T) {
	tab := symtab.New()
	n, err := Parse("{[x;y] x + y}", tab)
	require.NoError(t, err)
	require.Equal(t, ast.LambdaLit, n.Kind)
	require.Equal(t, []string{"x", "y"}, n.ArgNames)
}

func TestParseMultipleStatementsJoinedByDo(t *testing.T) {
	tab := symtab.New()
	n, err := Parse("x: 1; y: 2; x + y", tab)
	require.NoError(t, err)
	require.Equal(t, ast.Do, n.Kind)
	require.Len(t, n.Elems, 3)
}

func TestParseLengthMismatchIsNotAParseError(t *testing.T) {
	tab := symtab.New()
	_, err := Parse("[1;2] + [1;2;3]", tab)
	require.NoError(t, err) // length mismatch is an eval-time ERROR value, not a parse failure
}
