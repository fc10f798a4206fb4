// Package metrics contains definitions of the prometheus metrics that we use
// in revlistener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// constants with the namespace and the subsystem names that we use in our
// prometheus metrics.
const (
	namespace = "revlistener"

	subsystemApp     = "app"
	subsystemHandler = "handler"
)

// Values of the "result" label of BindAttemptsTotal.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// BindAttemptsTotal is the total number of attempts to bind a candidate
// address.
var BindAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: subsystemHandler,
	Name:      "bind_attempts_total",
	Help:      "The total number of attempts to bind the handler to a candidate address.",
}, []string{"result"})

// ListenersActive is the number of bound handler listeners that accept
// connections.
var ListenersActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: subsystemHandler,
	Name:      "listeners_active",
	Help:      "The number of handler listeners accepting connections.",
})

// ConnectionsTotal is the total number of connections that completed the TLS
// handshake.
var ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: subsystemHandler,
	Name:      "connections_total",
	Help:      "The total number of callbacks that completed the TLS handshake.",
})

// HandshakeErrorsTotal is the total number of accepted connections that
// failed the TLS handshake.
var HandshakeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: subsystemHandler,
	Name:      "handshake_errors_total",
	Help:      "The total number of accepted connections that failed the TLS handshake.",
})

// SetUpGauge signals that the server has been started.  Use a function here to
// avoid circular dependencies.
func SetUpGauge(version, branch, revision, goVersion string) {
	upGauge := promauto.NewGauge(
		prometheus.GaugeOpts{
			Name:      "up",
			Namespace: namespace,
			Subsystem: subsystemApp,
			Help:      `A metric with a constant '1' value labeled by the build information.`,
			ConstLabels: prometheus.Labels{
				"version":   version,
				"branch":    branch,
				"revision":  revision,
				"goversion": goVersion,
			},
		},
	)

	upGauge.Set(1)
}
