package env

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	e := New()
	e.Set(1, "x", value.I64Atom(42))
	v, ok := e.Get(1)
	require.True(t, ok)
	require.Equal(t, int64(42), v.(value.Atom).I64())
}

func TestChildFallsThroughToParent(t *testing.T) {
	t.Parallel()
	parent := New()
	parent.Set(1, "x", value.I64Atom(1))
	child := parent.Child()
	v, ok := child.Get(1)
	require.True(t, ok)
	require.Equal(t, int64(1), v.(value.Atom).I64())

	child.Set(1, "x", value.I64Atom(2))
	cv, _ := child.Get(1)
	require.Equal(t, int64(2), cv.(value.Atom).I64())
	pv, _ := parent.Get(1)
	require.Equal(t, int64(1), pv.(value.Atom).I64())
}

func TestCloneSnapshotIsIndependent(t *testing.T) {
	t.Parallel()
	e := New()
	e.Set(1, "x", value.I64Atom(10))
	snap := e.Clone()

	e.Set(1, "x", value.I64Atom(99))
	v, _ := snap.Get(1)
	require.Equal(t, int64(10), v.(value.Atom).I64())
}

func TestLambdaBindingAttachesName(t *testing.T) {
	t.Parallel()
	e := New()
	l := value.NewLambda(nil, nil, nil, nil)
	e.Set(5, "myFunc", l)
	require.Equal(t, "myFunc", l.Name)
}

func TestTypeRegistryRoundTrip(t *testing.T) {
	t.Parallel()
	e := New()
	tag, ok := e.TypeByName("i64")
	require.True(t, ok)
	require.Equal(t, value.TI64, tag)

	name, ok := e.NameByType(value.TF64)
	require.True(t, ok)
	require.Equal(t, "f64", name)

	e.RegisterType("myint", value.TI32)
	tag2, ok := e.TypeByName("myint")
	require.True(t, ok)
	require.Equal(t, value.TI32, tag2)
}
