package relayer_test

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/skalenetwork/ima-agent/relayer"
	"github.com/stretchr/testify/require"
)

func TestSetWalletBalanceRecordsGauge(t *testing.T) {
	m := relayer.InitPromMetrics(0)
	m.SetWalletBalance("mainnet", "0xabc", 1.5)

	metric := &dto.Metric{}
	require.NoError(t, m.WalletBalance.WithLabelValues("mainnet", "0xabc").Write(metric))
	require.Equal(t, 1.5, metric.GetGauge().GetValue())
}

func TestRecordBroadcastErrorIncrementsCounter(t *testing.T) {
	m := relayer.InitPromMetrics(0)
	m.RecordBroadcastError("loop-M2S", "dry-run")
	m.RecordBroadcastError("loop-M2S", "dry-run")

	metric := &dto.Metric{}
	require.NoError(t, m.BroadcastErrors.WithLabelValues("loop-M2S", "dry-run").Write(metric))
	require.Equal(t, float64(2), metric.GetCounter().GetValue())
}
