package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	// ---- Heartbeat pipeline ----
	DatagramsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "izzy",
			Subsystem: "heartbeat",
			Name:      "datagrams_received_total",
			Help:      "Datagrams read from the heartbeat socket.",
		},
	)

	// Dropped counts silently discarded frames by reason:
	// framing, protocol_mismatch, unsupported_kind, peer_conflict, overflow.
	Dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "izzy",
			Subsystem: "heartbeat",
			Name:      "dropped_total",
			Help:      "Inbound frames discarded without a reply.",
		},
		[]string{"reason"},
	)

	RepliesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "izzy",
			Subsystem: "heartbeat",
			Name:      "replies_sent_total",
			Help:      "Replies transmitted to the peer, by message kind.",
		},
		[]string{"kind"},
	)

	SendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "izzy",
			Subsystem: "heartbeat",
			Name:      "send_errors_total",
			Help:      "Reply transmissions that failed at the transport.",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "izzy",
			Subsystem: "heartbeat",
			Name:      "queue_depth",
			Help:      "Decoded frames waiting for the processor.",
		},
	)

	ProcessDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "izzy",
			Subsystem: "heartbeat",
			Name:      "process_duration_seconds",
			Help:      "Time from dequeue to reply sent.",
			// 50us .. ~200ms
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 13),
		},
	)

	PeerLastContact = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "izzy",
			Subsystem: "heartbeat",
			Name:      "peer_last_contact_timestamp_seconds",
			Help:      "Unix time of the last accepted Hello from the bound peer.",
		},
	)

	// ---- HTTP status surface ----
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "izzy",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"op", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "izzy",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
		},
		[]string{"op"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "izzy",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "izzy",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		DatagramsReceived, Dropped, RepliesSent, SendErrors, QueueDepth, ProcessDuration, PeerLastContact,
		RequestsTotal, RequestDuration, buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}

// ---- Middleware instrumentation ----

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an http.Handler to record metrics under the provided "op" label.
// Example:
//
//	mux.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(n.Info)))
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(op, class).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}
