package rmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	m, reg := New()
	m.EvalTotal.WithLabelValues("ok").Inc()
	m.PoolTasksTotal.Add(3)

	count, err := testutil.GatherAndCount(reg, "rayforce_eval_total", "rayforce_pool_tasks_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
