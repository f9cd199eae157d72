package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/env"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"

	"github.com/rayforcedb/rayforce/core/eval"
)

// TestEvalIPCAddExpression is the literal S7 seed scenario: an IPC sync send
// carrying the source text "1+2" evaluates to atom I64 3.
func TestEvalIPCAddExpression(t *testing.T) {
	a := arena.New(arena.DefaultMaxOrder)
	tab := symtab.New()
	ev := eval.New(a, env.New(), tab)

	src := "1+2"
	payload, err := value.NewVector(a, value.TCharVector, int64(len(src)))
	require.NoError(t, err)
	copy(payload.Chars(), src)

	result := evalIPC(ev, tab, payload)
	require.False(t, value.IsError(result))
	atom, ok := result.(value.Atom)
	require.True(t, ok)
	require.Equal(t, int64(3), atom.I64())
}

func TestEvalIPCRejectsNonCharPayload(t *testing.T) {
	a := arena.New(arena.DefaultMaxOrder)
	tab := symtab.New()
	ev := eval.New(a, env.New(), tab)

	result := evalIPC(ev, tab, value.I64Atom(5))
	require.True(t, value.IsError(result))
	require.Equal(t, value.ErrType, result.(*value.ErrorVal).Kind)
}

func TestRenderVectorAndAtom(t *testing.T) {
	a := arena.New(arena.DefaultMaxOrder)
	tab := symtab.New()
	v, err := value.NewVector(a, value.TI64Vector, 3)
	require.NoError(t, err)
	copy(v.I64s(), []int64{11, 12, 13})
	require.Equal(t, "11 12 13", render(v, tab))
	require.Equal(t, "3", render(value.I64Atom(3), tab))
}
