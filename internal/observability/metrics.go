package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Solver kinds used as metric labels.
const (
	KindHydraulic = "hydraulic"
	KindQuality   = "quality"
)

// SolverCollector bundles Prometheus metrics for hydraulic and quality
// analyses and exposes them through an HTTP handler.
type SolverCollector struct {
	gatherer prometheus.Gatherer

	Periods        *prometheus.CounterVec
	Iterations     prometheus.Histogram
	Steps          *prometheus.CounterVec
	Solves         *prometheus.CounterVec
	SolveDurations *prometheus.HistogramVec

	OpenProjects    prometheus.Gauge
	NetworkNodes    prometheus.Gauge
	NetworkLinks    prometheus.Gauge
	NetworkPatterns prometheus.Gauge
}

// NewSolverCollector registers solver metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSolverCollector(reg prometheus.Registerer) (*SolverCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	periods, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "epanet_periods_total",
		Help: "Solved time periods, labeled by solver kind and result.",
	}, []string{"kind", "result"}), "epanet_periods_total")
	if err != nil {
		return nil, err
	}

	iterations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "epanet_hydraulic_iterations",
		Help:    "Gradient iterations needed per hydraulic period.",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89},
	}), "epanet_hydraulic_iterations")
	if err != nil {
		return nil, err
	}

	steps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "epanet_steps_total",
		Help: "Time steps advanced, labeled by solver kind.",
	}, []string{"kind"}), "epanet_steps_total")
	if err != nil {
		return nil, err
	}

	solves, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "epanet_solves_total",
		Help: "Complete analyses run, labeled by solver kind and result.",
	}, []string{"kind", "result"}), "epanet_solves_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "epanet_solve_duration_seconds",
		Help:    "Wall time of complete analyses in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"kind"}), "epanet_solve_duration_seconds")
	if err != nil {
		return nil, err
	}

	open, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epanet_open_projects",
		Help: "Projects currently holding an open network.",
	}), "epanet_open_projects")
	if err != nil {
		return nil, err
	}
	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epanet_network_nodes",
		Help: "Number of nodes in the most recently opened network.",
	}), "epanet_network_nodes")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epanet_network_links",
		Help: "Number of links in the most recently opened network.",
	}), "epanet_network_links")
	if err != nil {
		return nil, err
	}
	patterns, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epanet_network_patterns",
		Help: "Number of time patterns in the most recently opened network.",
	}), "epanet_network_patterns")
	if err != nil {
		return nil, err
	}

	return &SolverCollector{
		gatherer:        gatherer,
		Periods:         periods,
		Iterations:      iterations,
		Steps:           steps,
		Solves:          solves,
		SolveDurations:  durations,
		OpenProjects:    open,
		NetworkNodes:    nodes,
		NetworkLinks:    links,
		NetworkPatterns: patterns,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SolverCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// ObservePeriod records one solved (or failed) period. Iterations are only
// tracked for hydraulic periods.
func (c *SolverCollector) ObservePeriod(kind string, iterations int, ok bool) {
	if c == nil {
		return
	}
	c.Periods.WithLabelValues(kind, result(ok)).Inc()
	if kind == KindHydraulic && iterations > 0 {
		c.Iterations.Observe(float64(iterations))
	}
}

// ObserveStep records one advanced time step.
func (c *SolverCollector) ObserveStep(kind string) {
	if c == nil {
		return
	}
	c.Steps.WithLabelValues(kind).Inc()
}

// ObserveSolve records a complete analysis.
func (c *SolverCollector) ObserveSolve(kind string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.Solves.WithLabelValues(kind, result(err == nil)).Inc()
	c.SolveDurations.WithLabelValues(kind).Observe(d.Seconds())
}

// ProjectOpened and ProjectClosed track the number of open projects.
func (c *SolverCollector) ProjectOpened() {
	if c != nil {
		c.OpenProjects.Inc()
	}
}

func (c *SolverCollector) ProjectClosed() {
	if c != nil {
		c.OpenProjects.Dec()
	}
}

// SetNetworkCounts updates the network size gauges.
func (c *SolverCollector) SetNetworkCounts(nodes, links, patterns int) {
	if c == nil {
		return
	}
	c.NetworkNodes.Set(float64(nodes))
	c.NetworkLinks.Set(float64(links))
	c.NetworkPatterns.Set(float64(patterns))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
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
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
