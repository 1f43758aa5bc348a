package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/ems/core/metrics"
)

// PromSink records optimization runs in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	cost      prometheus.Gauge
	variables prometheus.Gauge
}

// NewPromSink registers run metrics on the default Prometheus registerer.
// The /metrics server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ems_optimization_runs_total",
		Help: "Optimization requests by outcome",
	}, []string{"status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ems_solve_duration_seconds",
		Help:    "Wall time spent in the MILP solver",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 180, 300},
	}, []string{"backend"})
	cost := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ems_last_total_cost",
		Help: "Objective value of the last successful plan",
	})
	variables := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ems_model_variables",
		Help: "Number of decision variables in the last built model",
	})

	var err error
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if cost, err = register(reg, cost); err != nil {
		return nil, err
	}
	if variables, err = register(reg, variables); err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, duration: duration, cost: cost, variables: variables}, nil
}

// register returns the already registered collector when c was registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun counts the run and updates the model and cost gauges.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Status).Inc()
	if ev.Variables > 0 {
		s.variables.Set(float64(ev.Variables))
	}
	if ev.SolveDuration > 0 {
		s.duration.WithLabelValues(ev.Backend).Observe(ev.SolveDuration.Seconds())
	}
	if ev.Status == coremetrics.StatusOptimal || ev.Status == coremetrics.StatusFeasible {
		s.cost.Set(ev.TotalCost)
	}
	return nil
}
