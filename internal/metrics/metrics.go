// Package metrics exposes search progress as Prometheus collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"evonas/internal/evo"
)

const namespace = "evonas"

// Search implements evo.MetricsRecorder and evo.ProgressObserver. Collectors
// are registered on the Registerer passed to NewSearch. Searches sharing a
// Registerer share its collectors.
type Search struct {
	Evaluations        *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	BestScore          prometheus.Gauge
	LastScore          prometheus.Gauge
	PopulationSize     prometheus.Gauge
	Progress           prometheus.Gauge
	Epochs             prometheus.Counter
}

func NewSearch(reg prometheus.Registerer) *Search {
	return &Search{
		Evaluations: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Number of candidate architectures trained and scored",
			},
			[]string{"phase"},
		)),
		EvaluationDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Wall time spent training and scoring one candidate",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"phase"},
		)),
		BestScore: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Best candidate score seen so far",
		})),
		LastScore: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_score",
			Help:      "Score of the most recently evaluated candidate",
		})),
		PopulationSize: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population_size",
			Help:      "Current number of candidates in the population",
		})),
		Progress: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_progress_ratio",
			Help:      "Accumulated fraction of the evaluation budget",
		})),
		Epochs: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_epochs_total",
			Help:      "Number of finished training epochs across all folds",
		})),
	}
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (s *Search) ObserveEvaluation(phase evo.Phase, score float64, elapsed time.Duration) {
	s.Evaluations.WithLabelValues(string(phase)).Inc()
	s.EvaluationDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
	s.LastScore.Set(score)
}

func (s *Search) SetPopulation(size int) {
	s.PopulationSize.Set(float64(size))
}

func (s *Search) SetBest(score float64) {
	s.BestScore.Set(score)
}

func (s *Search) SetProgress(fraction float64) {
	s.Progress.Set(fraction)
}

func (s *Search) OnProgress(string, int, int, int, int) {
	s.Epochs.Inc()
}

var (
	_ evo.MetricsRecorder  = (*Search)(nil)
	_ evo.ProgressObserver = (*Search)(nil)
)
