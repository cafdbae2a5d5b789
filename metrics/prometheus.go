package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers moodboard counters and latency histograms
// on the given registerer. Pass prometheus.DefaultRegisterer in production.
func NewPrometheusRecorder(reg prometheus.Registerer) Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodboard",
			Name:      "events_total",
			Help:      "moodboard lifecycle event counters",
		},
		[]string{"type", "resource"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "moodboard",
			Name:      "latency_seconds",
			Help:      "moodboard operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "resource"},
	)

	reg.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":     name,
		"resource": labels["resource"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"resource":  labels["resource"],
	}).Observe(d.Seconds())
}
