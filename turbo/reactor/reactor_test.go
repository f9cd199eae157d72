package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type noTimers struct{}

func (noTimers) NextTimeoutMillis(nowMillis int64) int64 { return -1 }
func (noTimers) FireDue(nowMillis int64)                 {}

func TestRunStopsAfterCancel(t *testing.T) {
	r, err := New(noTimers{})
	require.NoError(t, err)
	defer r.Close()

	done := make(chan error, 1)
	go func() { done <- r.Run(func() int64 { return time.Now().UnixMilli() }) }()

	time.Sleep(10 * time.Millisecond)
	r.Cancel(7)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reactor did not stop after Cancel")
	}
	require.Equal(t, 7, r.Code())
}
