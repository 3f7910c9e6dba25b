// Package metrics exposes retry executor activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retrying/pkg/retry"
)

// DefaultNamespace prefixes every metric name when none is configured.
const DefaultNamespace = "retrying"

// Recorder implements retry.Observer on top of Prometheus collectors.
type Recorder struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	waits    *prometheus.HistogramVec
}

var _ retry.Observer = (*Recorder)(nil)

// NewRecorder creates the collectors under namespace and registers them
// with reg.
func NewRecorder(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Operation invocations, including the first attempt",
			},
			[]string{"policy"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Failed attempts that were followed by a wait and another attempt",
			},
			[]string{"policy"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outcomes_total",
				Help:      "Completed retried calls by outcome",
			},
			[]string{"policy", "outcome"},
		),
		waits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "wait_seconds",
				Help:      "Delay computed before each retry",
				Buckets:   []float64{0, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 3600},
			},
			[]string{"policy"},
		),
	}

	for _, c := range []prometheus.Collector{r.attempts, r.retries, r.outcomes, r.waits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) ObserveAttempt(policy string, _ uint) {
	r.attempts.WithLabelValues(policy).Inc()
}

func (r *Recorder) ObserveRetry(policy string, _ uint, delay time.Duration) {
	r.retries.WithLabelValues(policy).Inc()
	r.waits.WithLabelValues(policy).Observe(delay.Seconds())
}

func (r *Recorder) ObserveOutcome(policy string, outcome retry.Outcome, _ uint) {
	r.outcomes.WithLabelValues(policy, string(outcome)).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
