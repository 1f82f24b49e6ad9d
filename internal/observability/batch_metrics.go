package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BatchCollector exposes metrics for concurrent batches of simulations.
type BatchCollector struct {
	gatherer prometheus.Gatherer

	RunDuration  prometheus.Histogram
	RunsInFlight prometheus.Gauge
	RunFailures  prometheus.Counter
}

// NewBatchCollector registers batch metrics against the provided registerer.
func NewBatchCollector(reg prometheus.Registerer) (*BatchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "epanet_batch_run_duration_seconds",
		Help:    "Wall time of one simulation in a batch.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}), "epanet_batch_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	inFlight, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epanet_batch_runs_in_flight",
		Help: "Simulations of the current batch still running.",
	}), "epanet_batch_runs_in_flight")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "epanet_batch_run_failures_total",
		Help: "Simulations in a batch that ended with an error.",
	}), "epanet_batch_run_failures_total")
	if err != nil {
		return nil, err
	}

	return &BatchCollector{
		gatherer:     gatherer,
		RunDuration:  duration,
		RunsInFlight: inFlight,
		RunFailures:  failures,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *BatchCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// RunStarted marks one more simulation in flight.
func (c *BatchCollector) RunStarted() {
	if c == nil || c.RunsInFlight == nil {
		return
	}
	c.RunsInFlight.Inc()
}

// RunFinished records the outcome of one simulation.
func (c *BatchCollector) RunFinished(d time.Duration, err error) {
	if c == nil {
		return
	}
	if c.RunsInFlight != nil {
		c.RunsInFlight.Dec()
	}
	if c.RunDuration != nil {
		c.RunDuration.Observe(d.Seconds())
	}
	if err != nil && c.RunFailures != nil {
		c.RunFailures.Inc()
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
