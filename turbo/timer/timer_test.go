package timer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestScheduleOrdersBySoonestExpiry(t *testing.T) {
	h := New()
	h.Schedule(0, 100, 1, nil)
	h.Schedule(0, 10, 1, nil)
	h.Schedule(0, 500, 1, nil)

	var firedOrder []int64
	h.FireDue(10, func(cb *value.Lambda, now int64) { firedOrder = append(firedOrder, now) })
	require.Len(t, firedOrder, 1) // only the tic=10 timer is due at t=10
	require.Equal(t, int64(90), h.NextTimeoutMillis(10))
}

func TestFireDueRespectsRepeatCountAndReschedules(t *testing.T) {
	h := New()
	fires := 0
	h.Schedule(0, 10, 2, nil)
	h.FireDue(10, func(cb *value.Lambda, now int64) { fires++ })
	require.Equal(t, 1, fires)
	require.Equal(t, int64(10), h.NextTimeoutMillis(10)) // rescheduled for exp=20

	h.FireDue(20, func(cb *value.Lambda, now int64) { fires++ })
	require.Equal(t, 2, fires)
	require.Equal(t, int64(-1), h.NextTimeoutMillis(20)) // exhausted, heap now empty
}

func TestFireDueInfiniteRepeatNeverExhausts(t *testing.T) {
	h := New()
	h.Schedule(0, 5, -1, nil)
	for now := int64(5); now <= 25; now += 5 {
		h.FireDue(now, func(cb *value.Lambda, n int64) {})
	}
	require.NotEqual(t, int64(-1), h.NextTimeoutMillis(25))
}

// TestFireDueSeedScenarioFiresExactlyNTimes is the literal S8 seed
// scenario: tic=100ms, num=3 fires the callback exactly 3 times, with
// expiry stamps monotonically increasing by at least the tic interval.
func TestFireDueSeedScenarioFiresExactlyNTimes(t *testing.T) {
	h := New()
	h.Schedule(0, 100, 3, nil)

	var stamps []int64
	for now := int64(100); len(stamps) < 3 && now <= 1000; now += 100 {
		h.FireDue(now, func(cb *value.Lambda, firedAt int64) { stamps = append(stamps, firedAt) })
	}

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		require.GreaterOrEqual(t, stamps[i]-stamps[i-1], int64(100))
	}
	require.Equal(t, int64(-1), h.NextTimeoutMillis(stamps[len(stamps)-1]))
}

func TestCancelRemovesTimer(t *testing.T) {
	h := New()
	id := h.Schedule(0, 10, 1, nil)
	require.True(t, h.Cancel(id))
	require.Equal(t, int64(-1), h.NextTimeoutMillis(1000))
}
