// Package prom adapts acipsession.Observer to Prometheus: one dedicated
// prometheus.Registry, every metric registered up front, served through
// promhttp.HandlerFor.
package prom

import (
	"net/http"
	"time"

	"github.com/ascii-chat/acip-core/pkg/acipsession"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ServerObserver exports session-engine lifecycle events to Prometheus.
type ServerObserver struct {
	joinTotal       prometheus.Counter
	leaveTotal      *prometheus.CounterVec
	handshakeTotal  *prometheus.CounterVec
	handshakeLatency prometheus.Histogram
	fanoutDropTotal *prometheus.CounterVec
	rateLimitTotal  *prometheus.CounterVec
	connGauge       prometheus.Gauge
	sessionGauge    prometheus.Gauge
}

// NewServerObserver registers session-engine metrics on reg.
func NewServerObserver(reg *prometheus.Registry) *ServerObserver {
	o := &ServerObserver{
		joinTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acichat_server_joins_total",
			Help: "Clients that completed CLIENT_JOIN.",
		}),
		leaveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acichat_server_leaves_total",
			Help: "Client disconnects by reason.",
		}, []string{"reason"}),
		handshakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acichat_server_handshakes_total",
			Help: "Completed handshake attempts by outcome.",
		}, []string{"result"}),
		handshakeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acichat_server_handshake_latency_seconds",
			Help:    "Time from CLIENT_HELLO to HANDSHAKE_COMPLETE.",
			Buckets: prometheus.DefBuckets,
		}),
		fanoutDropTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acichat_server_fanout_drops_total",
			Help: "Media frames dropped from a subscriber's send queue, by stream kind.",
		}, []string{"kind"}),
		rateLimitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acichat_server_rate_limited_total",
			Help: "Packets rejected by the rate limiter, by event kind.",
		}, []string{"event_kind"}),
		connGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acichat_server_connections",
			Help: "Currently live client connections.",
		}),
		sessionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acichat_server_sessions",
			Help: "Currently registered discovery sessions.",
		}),
	}
	reg.MustRegister(
		o.joinTotal,
		o.leaveTotal,
		o.handshakeTotal,
		o.handshakeLatency,
		o.fanoutDropTotal,
		o.rateLimitTotal,
		o.connGauge,
		o.sessionGauge,
	)
	return o
}

func (o *ServerObserver) Join(acipsession.ClientID, string) {
	o.joinTotal.Inc()
}

func (o *ServerObserver) Leave(_ acipsession.ClientID, reason acipsession.LeaveReason) {
	o.leaveTotal.WithLabelValues(string(reason)).Inc()
}

func (o *ServerObserver) HandshakeResult(ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	o.handshakeTotal.WithLabelValues(result).Inc()
	o.handshakeLatency.Observe(d.Seconds())
}

func (o *ServerObserver) FanoutDrop(kind string, count int) {
	o.fanoutDropTotal.WithLabelValues(kind).Add(float64(count))
}

func (o *ServerObserver) RateLimited(_ acipsession.ClientID, kind acipsession.EventKind) {
	o.rateLimitTotal.WithLabelValues(kind.String()).Inc()
}

func (o *ServerObserver) ConnCount(n int) {
	o.connGauge.Set(float64(n))
}

func (o *ServerObserver) SessionCount(n int) {
	o.sessionGauge.Set(float64(n))
}

var _ acipsession.Observer = (*ServerObserver)(nil)
