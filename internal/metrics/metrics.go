package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"locator/internal/position"
)

// Collector bundles the service's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Readings   *prometheus.CounterVec
	Estimates  *prometheus.CounterVec
	Iterations *prometheus.HistogramVec
	Selections *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	readings, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_readings_total",
		Help: "RSSI readings ingested, labeled by station and source.",
	}, []string{"station", "source"}), "locator_readings_total")
	if err != nil {
		return nil, err
	}

	estimates, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_estimates_total",
		Help: "Position estimates refreshed after a reading, labeled by solver policy and outcome.",
	}, []string{"policy", "outcome"}), "locator_estimates_total")
	if err != nil {
		return nil, err
	}

	iterations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "locator_solver_iterations",
		Help:    "Solver iterations per successful estimate.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144},
	}, []string{"policy"}), "locator_solver_iterations")
	if err != nil {
		return nil, err
	}

	selections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "locator_branch_selections_total",
		Help: "Intersection branch kept by the disambiguator.",
	}, []string{"selection"}), "locator_branch_selections_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:   gatherer,
		Readings:   readings,
		Estimates:  estimates,
		Iterations: iterations,
		Selections: selections,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveReading(station, source string) {
	if c == nil {
		return
	}
	c.Readings.WithLabelValues(station, source).Inc()
}

// ObserveEstimate records the outcome of one estimate.
func (c *Collector) ObserveEstimate(policy string, est position.Estimate, err error) {
	if c == nil {
		return
	}
	c.Estimates.WithLabelValues(policy, Outcome(err)).Inc()
	if err != nil {
		return
	}
	c.Iterations.WithLabelValues(policy).Observe(float64(est.Iterations))
	c.Selections.WithLabelValues(est.Selection.String()).Inc()
}

// Outcome maps an estimate error to a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, position.ErrSolverDegenerate):
		return "degenerate"
	case errors.Is(err, position.ErrNonConvergence):
		return "nonconvergence"
	case errors.Is(err, position.ErrNotEnoughStations):
		return "no_data"
	default:
		return "error"
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
