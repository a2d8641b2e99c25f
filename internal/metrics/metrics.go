// Package metrics exposes Prometheus instrumentation for the daemon:
// worker pool occupancy, RPC opnum dispatch counts, srvsvc fragmentation
// counts and heartbeat cadence. Grounded on the teacher's per-protocol
// metrics structs (internal/adapter/nlm/metrics.go): a single struct of
// pre-registered collectors with nil-receiver no-op methods, so callers
// that construct Handlers/Loop without metrics wired (most unit tests)
// never need a conditional at every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every cifsd_ prefixed collector this daemon exports.
type Metrics struct {
	// WorkerPoolInFlight tracks the IPC worker pool's current occupancy.
	WorkerPoolInFlight prometheus.Gauge

	// WorkerPoolWidth reports the pool's configured concurrency limit.
	WorkerPoolWidth prometheus.Gauge

	// IPCRequestsTotal counts dispatched IPC messages by type and outcome.
	IPCRequestsTotal *prometheus.CounterVec

	// RPCOpsTotal counts srvsvc pipe invocations by opnum and status.
	RPCOpsTotal *prometheus.CounterVec

	// RPCFragmentsTotal counts READ fragments that leave more data
	// pending (every fragment but the last of a reply), by opnum.
	RPCFragmentsTotal *prometheus.CounterVec

	// HeartbeatsTotal counts received heartbeat messages.
	HeartbeatsTotal prometheus.Counter

	// HeartbeatIntervalSeconds tracks the gap between consecutive
	// heartbeats, surfacing a dead or wedged kernel channel.
	HeartbeatIntervalSeconds prometheus.Histogram

	// WorkerRestartsTotal counts supervisor-triggered worker respawns.
	WorkerRestartsTotal prometheus.Counter
}

// New constructs and registers every collector against reg. Panics if
// registration fails, matching the teacher's NewMetrics (expected only
// during process startup, never on a hot path).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WorkerPoolInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cifsd_worker_pool_in_flight",
			Help: "Number of IPC requests currently running in the worker pool",
		}),
		WorkerPoolWidth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cifsd_worker_pool_width",
			Help: "Configured worker pool concurrency limit",
		}),
		IPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cifsd_ipc_requests_total",
			Help: "Total IPC messages dispatched by type and outcome",
		}, []string{"type", "outcome"}),
		RPCOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cifsd_rpc_ops_total",
			Help: "Total srvsvc pipe invocations by opnum and status",
		}, []string{"opnum", "status"}),
		RPCFragmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cifsd_rpc_fragments_total",
			Help: "Total non-final READ fragments emitted by opnum",
		}, []string{"opnum"}),
		HeartbeatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cifsd_heartbeats_total",
			Help: "Total heartbeat messages received from the kernel channel",
		}),
		HeartbeatIntervalSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cifsd_heartbeat_interval_seconds",
			Help:    "Observed interval between consecutive heartbeats",
			Buckets: prometheus.DefBuckets,
		}),
		WorkerRestartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cifsd_worker_restarts_total",
			Help: "Total worker process restarts performed by the supervisor",
		}),
	}

	reg.MustRegister(
		m.WorkerPoolInFlight,
		m.WorkerPoolWidth,
		m.IPCRequestsTotal,
		m.RPCOpsTotal,
		m.RPCFragmentsTotal,
		m.HeartbeatsTotal,
		m.HeartbeatIntervalSeconds,
		m.WorkerRestartsTotal,
	)
	return m
}

// IncInFlight and DecInFlight track worker pool occupancy around a
// single submitted function's lifetime.
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.WorkerPoolInFlight.Inc()
}

func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.WorkerPoolInFlight.Dec()
}

// SetPoolWidth records the pool's configured concurrency limit.
func (m *Metrics) SetPoolWidth(width int) {
	if m == nil {
		return
	}
	m.WorkerPoolWidth.Set(float64(width))
}

// RecordIPCRequest counts one dispatched message by its type name and
// outcome ("ok", "error").
func (m *Metrics) RecordIPCRequest(msgType, outcome string) {
	if m == nil {
		return
	}
	m.IPCRequestsTotal.WithLabelValues(msgType, outcome).Inc()
}

// RecordRPCOp counts one pipe invocation by opnum and status label.
func (m *Metrics) RecordRPCOp(opnum, status string) {
	if m == nil {
		return
	}
	m.RPCOpsTotal.WithLabelValues(opnum, status).Inc()
}

// RecordFragment counts one emitted non-final READ fragment for opnum.
func (m *Metrics) RecordFragment(opnum string) {
	if m == nil {
		return
	}
	m.RPCFragmentsTotal.WithLabelValues(opnum).Inc()
}

// RecordHeartbeat counts a heartbeat and, once a previous one has been
// observed, records the interval since it in seconds.
func (m *Metrics) RecordHeartbeat(intervalSeconds float64, hasPrevious bool) {
	if m == nil {
		return
	}
	m.HeartbeatsTotal.Inc()
	if hasPrevious {
		m.HeartbeatIntervalSeconds.Observe(intervalSeconds)
	}
}

// RecordWorkerRestart counts one supervisor-triggered worker respawn.
func (m *Metrics) RecordWorkerRestart() {
	if m == nil {
		return
	}
	m.WorkerRestartsTotal.Inc()
}

// Null returns nil, which every Metrics method treats as a no-op
// collector (teacher's NullMetrics pattern).
func Null() *Metrics {
	return nil
}
