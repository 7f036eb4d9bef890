package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LaunchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lighthouse_container_launches_total",
			Help: "Container launch attempts by result",
		},
		[]string{"result"},
	)

	LaunchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lighthouse_container_launch_duration_seconds",
			Help:    "Time from launch request to published port in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lighthouse_container_operations_total",
			Help: "Container status/stop/sweep operations by result",
		},
		[]string{"op", "result"},
	)

	CompensationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lighthouse_container_compensations_total",
			Help: "Containers force-removed after a failed launch step",
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lighthouse_http_requests_total",
			Help: "HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(LaunchesTotal)
	prometheus.MustRegister(LaunchDuration)
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(CompensationsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time on the histogram
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(time.Since(t.start).Seconds())
}

// Result maps an error to a metric label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
