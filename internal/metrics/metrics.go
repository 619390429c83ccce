// Package metrics exposes the engine's Prometheus metrics on a dedicated
// registry, keeping default-registry noise out of /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the queue engine.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var TokensIssued = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "branchq",
	Name:      "tokens_issued_total",
	Help:      "Tokens successfully registered",
})

var TokensCompleted = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "branchq",
	Name:      "tokens_completed_total",
	Help:      "Tokens that reached the completed state",
})

var MatchConflicts = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "branchq",
	Name:      "match_conflicts_total",
	Help:      "Token assignments lost to a concurrent claim",
})

var BreakDenials = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "branchq",
	Name:      "break_denials_total",
	Help:      "Break starts rejected by policy, by reason",
}, []string{"reason"})

var RequestsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "branchq",
	Name:      "http_requests_total",
	Help:      "HTTP requests handled",
})

var RequestErrors = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "branchq",
	Name:      "http_request_errors_total",
	Help:      "HTTP requests answered with status >= 400",
})

var SweepAlerts = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "branchq",
	Name:      "long_wait_alerts_total",
	Help:      "Advisory alerts raised by the long-wait sweep",
})
