package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LaunchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabber_launch_attempts_total",
			Help: "Total launch attempts by result",
		},
		[]string{"result"}, // acquired|transient|rejected
	)

	AttemptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "grabber_attempt_duration_seconds",
			Help:    "Duration of individual launch attempts",
			Buckets: prometheus.DefBuckets,
		},
	)

	BackoffsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grabber_backoffs_total",
			Help: "Backoff periods entered, by failure classification",
		},
		[]string{"classification"}, // transient|rejected
	)
)

func init() {
	prometheus.MustRegister(LaunchAttemptsTotal)
	prometheus.MustRegister(AttemptDuration)
	prometheus.MustRegister(BackoffsTotal)
}

func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
