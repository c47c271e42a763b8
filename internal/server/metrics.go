package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the debug observability surface named in SPEC_FULL.md §11:
// a counter/gauge set exposing accept/connection activity, served on
// whatever address DebugListenAddr names (no loopback restriction),
// useful to a test harness driving random-drop scenarios without
// touching the wire protocol itself.
type Metrics struct {
	Accepted     prometheus.Counter
	AcceptErrors prometheus.Counter
	ConnErrors   prometheus.Counter
	Active       prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics registers a fresh set of collectors on a private registry,
// so multiple Server instances in the same process (as in tests) never
// collide on prometheus's default global registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Accepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sudoauditd_connections_accepted_total",
			Help: "Total TCP connections accepted across all listeners.",
		}),
		AcceptErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sudoauditd_accept_errors_total",
			Help: "Total errors returned by Listener.Accept.",
		}),
		ConnErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sudoauditd_connection_setup_errors_total",
			Help: "Total connections that failed sink/relay construction before protocol start.",
		}),
		Active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sudoauditd_connections_active",
			Help: "Connections currently being served.",
		}),
	}

	return m
}

func (s *Server) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	if err := srv.ListenAndServe(); err != nil {
		s.log.Entry("server").WithError(err).Warn("debug metrics listener stopped")
	}
}
