package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payflow",
		Name:      "gateway_attempts_total",
		Help:      "Gateway calls by provider, operation and outcome (ok, transient, permanent).",
	}, []string{"provider", "operation", "outcome"})

	GatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "payflow",
		Name:      "gateway_call_duration_seconds",
		Help:      "Duration of single gateway call attempts.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	RouterFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payflow",
		Name:      "router_fallbacks_total",
		Help:      "Transactions started on the payments API after the orders API failed.",
	}, []string{"method"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payflow",
		Name:      "notifications_total",
		Help:      "Processed gateway notifications by origin, outcome and result (transitioned, noop, rejected).",
	}, []string{"origin", "outcome", "result"})
)

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveGatewayCall records one attempt's latency.
func (t *Timer) ObserveGatewayCall(provider, operation string) {
	GatewayDuration.WithLabelValues(provider, operation).Observe(t.Duration().Seconds())
}
