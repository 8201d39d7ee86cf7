package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	reports      *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastZScore   *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg. A nil reg means the
// default registry, which may only be used once per process.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		reports: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_reports_total",
				Help: "Pair reports computed, by outcome",
			},
			[]string{"result"},
		),
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_series_fetches_total",
				Help: "Close series fetches, by source and outcome",
			},
			[]string{"source", "result"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_messages_sent_total",
				Help: "Messages handed to a backend",
			},
			[]string{"backend", "topic"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairspread_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastZScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairspread_last_zscore",
				Help: "Most recent lagged z-score reported for a pair",
			},
			[]string{"pair"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairspread_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
	}
}

// RecordReport counts a finished report with result "ok" or an error kind.
func (r *Recorder) RecordReport(result string) {
	r.reports.WithLabelValues(result).Inc()
}

// RecordFetch counts a series fetch, e.g. ("binance", "ok") or ("cache", "hit").
func (r *Recorder) RecordFetch(source, result string) {
	r.fetches.WithLabelValues(source, result).Inc()
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, topic string) {
	r.messagesSent.WithLabelValues(backend, topic).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastZScore records the latest valid z-score for a pair.
func (r *Recorder) RecordLastZScore(pair string, z float64) {
	r.lastZScore.WithLabelValues(pair).Set(z)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
