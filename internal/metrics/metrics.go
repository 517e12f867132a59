package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	gateEvaluatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_gate_evaluated_total",
		Help: "Total number of requests evaluated by the gate",
	})
	gateBlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_gate_blocked_total",
		Help: "Total number of requests blocked by the gate",
	})
	gateBypassTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_gate_bypass_total",
		Help: "Total number of requests that bypassed the gate, by reason",
	}, []string{"reason"})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(gateEvaluatedTotal, gateBlockedTotal, gateBypassTotal)
}

// IncEvaluated increments the evaluated requests counter.
func IncEvaluated() { gateEvaluatedTotal.Inc() }

// IncBlocked increments the blocked requests counter.
func IncBlocked() { gateBlockedTotal.Inc() }

// IncBypass increments the bypass counter for the given reason.
func IncBypass(reason string) { gateBypassTotal.WithLabelValues(reason).Inc() }
