package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bridge"

// Eval outcomes.
const (
	EvalResult   = "result"
	EvalError    = "error"
	EvalTimeout  = "timeout"
	EvalRejected = "rejected"
)

// Pipe directions.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the dev host.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Dev host HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	forwardRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_requests_total",
			Help:      "Requests forwarded to the backend.",
		},
		[]string{"status", "outcome"},
	)
	forwardDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_duration_seconds",
			Help:      "Forwarded request duration in seconds, open to final frame.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	evalCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eval_commands_total",
			Help:      "Backend eval commands by outcome.",
		},
		[]string{"outcome"},
	)
	pipeBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipe_bytes_total",
			Help:      "Bytes moved over the duplex channel.",
		},
		[]string{"direction"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, forwardRequests, forwardDuration, evalCommands, pipeBytes)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordForward counts one forwarded request. outcome is "ok", "gateway" or "aborted".
func RecordForward(status int, outcome string, duration time.Duration) {
	RegisterMetrics()
	forwardRequests.WithLabelValues(strconv.Itoa(status), outcome).Inc()
	forwardDuration.Observe(duration.Seconds())
}

func RecordEval(outcome string) {
	RegisterMetrics()
	evalCommands.WithLabelValues(outcome).Inc()
}

func RecordPipeBytes(direction string, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	pipeBytes.WithLabelValues(direction).Add(float64(n))
}
