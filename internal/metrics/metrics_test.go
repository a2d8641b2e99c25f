package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestInFlightGaugeTracksIncDec(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncInFlight()
	m.IncInFlight()
	assert.Equal(t, 2.0, gaugeValue(t, m.WorkerPoolInFlight))
	m.DecInFlight()
	assert.Equal(t, 1.0, gaugeValue(t, m.WorkerPoolInFlight))
}

func TestSetPoolWidth(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetPoolWidth(4)
	assert.Equal(t, 4.0, gaugeValue(t, m.WorkerPoolWidth))
}

func TestRecordHeartbeatSkipsIntervalOnFirstObservation(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordHeartbeat(0, false)
	assert.Equal(t, 1.0, counterValue(t, m.HeartbeatsTotal))

	var hist dto.Metric
	require.NoError(t, m.HeartbeatIntervalSeconds.Write(&hist))
	assert.Equal(t, uint64(0), hist.GetHistogram().GetSampleCount())

	m.RecordHeartbeat(5, true)
	require.NoError(t, m.HeartbeatIntervalSeconds.Write(&hist))
	assert.Equal(t, uint64(1), hist.GetHistogram().GetSampleCount())
}

func TestNilMetricsMethodsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncInFlight()
		m.DecInFlight()
		m.SetPoolWidth(1)
		m.RecordIPCRequest("Heartbeat", "ok")
		m.RecordRPCOp("15", "ok")
		m.RecordFragment("15")
		m.RecordHeartbeat(1, true)
		m.RecordWorkerRestart()
	})
}

func TestRecordRPCOpAndFragmentCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordRPCOp("15", "ok")
	m.RecordRPCOp("15", "ok")
	m.RecordFragment("15")

	assert.Equal(t, float64(2), testCounterVecValue(t, m.RPCOpsTotal, "15", "ok"))
	assert.Equal(t, float64(1), testCounterVecValue(t, m.RPCFragmentsTotal, "15"))
}

func testCounterVecValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := cv.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
