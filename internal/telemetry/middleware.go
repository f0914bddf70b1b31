package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	requestDurationHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	activeRequestsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_active",
			Help: "Number of active HTTP requests",
		},
	)

	streamClientsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "state_stream_clients",
			Help: "Number of connected state stream (websocket) clients",
		},
	)

	// Contract metrics
	contractCallCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_calls_total",
			Help: "Total number of contract reads and writes",
		},
		[]string{"contract", "function", "status"},
	)

	contractCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contract_call_duration_seconds",
			Help:    "Duration of contract calls in seconds, including mining for writes",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"contract", "function"},
	)

	// Session metrics
	sessionOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_operations_total",
			Help: "Total number of session operations (connect/refresh/stake/claim)",
		},
		[]string{"operation", "status"},
	)

	sessionBusyGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_busy",
			Help: "1 while a stake or claim operation is in flight",
		},
	)

	sessionConnectedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_connected",
			Help: "1 while a wallet is connected",
		},
	)
)

// MetricsHandler returns an http.Handler that serves the metrics endpoint
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware records duration and in-flight count for each request.
// The route template is used as the path label when available.
func MetricsMiddleware(routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			activeRequestsGauge.Inc()
			defer activeRequestsGauge.Dec()

			next.ServeHTTP(sw, r)

			path := r.URL.Path
			if routeName != nil {
				if name := routeName(r); name != "" {
					path = name
				}
			}

			requestDurationHistogram.With(prometheus.Labels{
				"method": r.Method,
				"path":   path,
				"status": fmt.Sprintf("%d", sw.code()),
			}).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is required for websocket upgrades behind this middleware
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordContractCall records a contract read or write
func RecordContractCall(contract, function string, err error, duration time.Duration) {
	contractCallCounter.WithLabelValues(contract, function, statusLabel(err)).Inc()
	contractCallDuration.WithLabelValues(contract, function).Observe(duration.Seconds())
}

// RecordSessionOperation records the outcome of a session operation
func RecordSessionOperation(operation string, err error) {
	sessionOperationsCounter.WithLabelValues(operation, statusLabel(err)).Inc()
}

func SetBusy(busy bool) {
	sessionBusyGauge.Set(boolValue(busy))
}

func SetConnected(connected bool) {
	sessionConnectedGauge.Set(boolValue(connected))
}

// RecordStreamClient updates the connected stream client count
func RecordStreamClient(delta float64) {
	streamClientsGauge.Add(delta)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
