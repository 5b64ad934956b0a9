package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasquota_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gasquota_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	readingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasquota_readings_total",
			Help: "Meter readings recorded, by source.",
		},
		[]string{"source"},
	)
	calculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gasquota_calculations_total",
			Help: "Period calculations attempted, by source and result.",
		},
		[]string{"source", "result"},
	)
	remainingQuotaMJ = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gasquota_remaining_quota_mj",
			Help: "Discounted energy left in the current quota year.",
		},
	)
)

const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

func ObserveHTTPRequest(route, method string, status int, dur time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveReading(source string) {
	readingsTotal.WithLabelValues(source).Inc()
}

func ObserveCalculation(source, result string) {
	calculationsTotal.WithLabelValues(source, result).Inc()
}

func SetRemainingQuota(mj float64) {
	remainingQuotaMJ.Set(mj)
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status      int
	wroteHeader bool
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.Status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.Status = http.StatusSwitchingProtocols
	r.wroteHeader = true
	return h.Hijack()
}
