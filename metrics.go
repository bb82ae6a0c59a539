package hxc

import "github.com/prometheus/client_golang/prometheus"

// clientMetrics holds the Prometheus collectors one Client exposes.
// They are registered into a private registry rather than the global
// default one so that constructing more than one Client in a process
// (as the test suite does) never panics on duplicate registration.
type clientMetrics struct {
	registry       *prometheus.Registry
	dispatches     *prometheus.CounterVec
	configInstalls prometheus.Counter
	disconnects    prometheus.Counter
	reconfigures   prometheus.Counter
	timeouts       prometheus.Counter
	outstanding    prometheus.Gauge
}

func newClientMetrics() *clientMetrics {
	reg := prometheus.NewRegistry()
	m := &clientMetrics{
		registry: reg,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hxc_client_dispatches_total",
			Help: "Number of operations dispatched, labeled by operation and outcome.",
		}, []string{"op", "returncode"}),
		configInstalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hxc_client_config_installs_total",
			Help: "Number of coordinator configuration snapshots installed.",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hxc_client_disconnects_total",
			Help: "Number of pending ops the event pump failed with DISCONNECT.",
		}),
		reconfigures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hxc_client_reconfigures_total",
			Help: "Number of pending ops the event pump failed with RECONFIGURE after their target instance moved.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hxc_client_timeouts_total",
			Help: "Number of pending ops failed with TIMEOUT.",
		}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hxc_client_outstanding_ops",
			Help: "Current number of live pending ops awaiting a response.",
		}),
	}
	reg.MustRegister(m.dispatches, m.configInstalls, m.disconnects, m.reconfigures, m.timeouts, m.outstanding)
	return m
}

func (m *clientMetrics) observeDispatch(op string, rc ReturnCode) {
	m.dispatches.WithLabelValues(op, rc.String()).Inc()
}

// Registry exposes the client's Prometheus registry so callers can serve
// it over /metrics alongside their own collectors.
func (c *Client) Registry() *prometheus.Registry {
	return c.metrics.registry
}
