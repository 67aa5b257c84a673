package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports run progress to Prometheus. All series carry a run_id
// label so a server can track several jobs.
type Metrics struct {
	evaluations *prometheus.CounterVec
	epochs      *prometheus.CounterVec
	best        *prometheus.GaugeVec
	mean        *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evopolyfit_evaluations_total",
			Help: "Decode and score calls.",
		}, []string{"run_id"}),
		epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evopolyfit_epochs_total",
			Help: "Completed epochs.",
		}, []string{"run_id"}),
		best: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evopolyfit_best_fitness",
			Help: "Best fitness of the latest epoch.",
		}, []string{"run_id"}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evopolyfit_mean_fitness",
			Help: "Mean population fitness of the latest epoch.",
		}, []string{"run_id"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evopolyfit_epoch_duration_seconds",
			Help:    "Wall time per epoch.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"run_id"}),
	}

	for _, c := range []prometheus.Collector{m.evaluations, m.epochs, m.best, m.mean, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one epoch. prevEvaluations is the count reported for the
// previous epoch of the same run.
func (m *Metrics) Observe(runID string, s EpochStats, prevEvaluations int64) {
	labels := prometheus.Labels{"run_id": runID}
	if d := s.Evaluations - prevEvaluations; d > 0 {
		m.evaluations.With(labels).Add(float64(d))
	}
	m.epochs.With(labels).Inc()
	m.best.With(labels).Set(s.BestFitness)
	m.mean.With(labels).Set(s.MeanFitness)
	m.duration.With(labels).Observe(s.Elapsed.Seconds())
}

// Forget drops the gauges of a finished run; counters are kept.
func (m *Metrics) Forget(runID string) {
	labels := prometheus.Labels{"run_id": runID}
	m.best.Delete(labels)
	m.mean.Delete(labels)
}
