package lumenmetrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxPoolMetricsRegisterWithoutPanic(t *testing.T) {
	reg := NewRegistry("txpool")
	m := NewTxPoolMetrics(reg)
	m.PendingCount.Set(3)
	m.ValidationByOutcome.WithLabelValues("valid").Inc()

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestSyncMetricsRegisterWithoutPanic(t *testing.T) {
	reg := NewRegistry("sync")
	m := NewSyncMetrics(reg)
	m.StageHeight.WithLabelValues("blocks").Set(100)
	m.UnwindTotal.Inc()

	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
