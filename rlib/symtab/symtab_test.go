package symtab

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternIdempotent(t *testing.T) {
	tab := New()
	a := tab.Intern("foo")
	b := tab.Intern("foo")
	require.Equal(t, a, b)
	c := tab.Intern("bar")
	require.NotEqual(t, a, c)
}

func TestNullID(t *testing.T) {
	tab := New()
	require.Equal(t, NullID, tab.Intern(""))
}

func TestConcurrentIntern(t *testing.T) {
	tab := New()
	var wg sync.WaitGroup
	ids := make([]int64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = tab.Intern("shared")
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
}

func TestStrRoundTrip(t *testing.T) {
	tab := New()
	id := tab.Intern("hello world")
	require.Equal(t, "hello world", tab.Str(id))
	require.Equal(t, len("hello world"), tab.Length(id))
}
