// Package toolkit is the programming interface to the network simulation
// engine. A Project owns one network description together with its
// hydraulic and water-quality solvers; every operation is synchronous and
// reports failures as *Error values carrying a numeric code.
//
// Independent projects share no mutable state and may be driven from
// different goroutines. A single Project is not safe for concurrent use.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/multierr"

	"github.com/milad-ghiami/EPANET/core"
	"github.com/milad-ghiami/EPANET/internal/hydraulics"
	"github.com/milad-ghiami/EPANET/internal/logging"
	"github.com/milad-ghiami/EPANET/internal/observability"
	"github.com/milad-ghiami/EPANET/internal/output"
	"github.com/milad-ghiami/EPANET/internal/quality"
)

// MetricsRecorder receives solver events. The Prometheus collector in
// internal/observability satisfies it.
type MetricsRecorder interface {
	ObservePeriod(kind string, iterations int, ok bool)
	ObserveStep(kind string)
	ObserveSolve(kind string, d time.Duration, err error)
	ProjectOpened()
	ProjectClosed()
	SetNetworkCounts(nodes, links, patterns int)
}

type noopMetrics struct{}

func (noopMetrics) ObservePeriod(string, int, bool)           {}
func (noopMetrics) ObserveStep(string)                        {}
func (noopMetrics) ObserveSolve(string, time.Duration, error) {}
func (noopMetrics) ProjectOpened()                            {}
func (noopMetrics) ProjectClosed()                            {}
func (noopMetrics) SetNetworkCounts(int, int, int)            {}

// Option configures a Project.
type Option func(*Project)

// WithLogger attaches a structured logger. Every record carries the
// project's project_id. Without it, a logger stored on the WithContext
// context is used.
func WithLogger(l logging.Logger) Option {
	return func(p *Project) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics routes solver events to m.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Project) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithContext sets the parent context of the project's spans and log
// records. A project_id already present on ctx is reused.
func WithContext(ctx context.Context) Option {
	return func(p *Project) {
		if ctx != nil {
			p.ctx = ctx
		}
	}
}

// Project is an independent simulation: a network description, its
// solvers and the results saved from them.
type Project struct {
	id      string
	ctx     context.Context
	log     logging.Logger
	metrics MetricsRecorder
	deleted bool

	net     *core.Network
	rptPath string
	out     output.Writer
	header  bool

	hyd  *hydraulics.Solver
	qual *quality.Solver
	traj *hydraulics.Trajectory

	results []output.Period
}

// NewProject allocates an empty project.
func NewProject(opts ...Option) (*Project, error) {
	p := &Project{
		ctx:     context.Background(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logging.LoggerFromContext(p.ctx)
	}
	if p.log == nil {
		p.log = logging.Noop()
	}
	p.ctx, p.log = logging.WithProjectLogger(p.ctx, p.log)
	p.id = logging.ProjectIDFromContext(p.ctx)
	p.ctx = logging.ContextWithLogger(p.ctx, p.log)
	return p, nil
}

// ID returns the project's identifier.
func (p *Project) ID() string { return p.id }

func (p *Project) usable(op string) error {
	if p == nil || p.deleted {
		return &Error{Code: 1, Op: op, Err: ErrInvalidHandle}
	}
	return nil
}

func (p *Project) bound(op string) error {
	if err := p.usable(op); err != nil {
		return err
	}
	if p.net == nil {
		return &Error{Code: 102, Op: op, Err: ErrNoNetwork}
	}
	return nil
}

// Delete releases the project. Any later call on it, including a second
// Delete, fails with ErrInvalidHandle.
func (p *Project) Delete() error {
	if err := p.usable("delete"); err != nil {
		return err
	}
	var err error
	if p.net != nil {
		err = p.Close()
	}
	p.deleted = true
	p.log.Debug(p.ctx, "project deleted")
	return err
}

// Open reads a network description from inpPath and binds the report and
// results destinations. Either destination may be empty.
func (p *Project) Open(inpPath, rptPath, outPath string) error {
	if err := p.usable("open"); err != nil {
		return err
	}
	if p.net != nil {
		return &Error{Code: 113, Op: "open", Err: ErrAlreadyOpen}
	}
	net, err := core.LoadNetworkFile(inpPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			err = fmt.Errorf("%w: %v", ErrCannotOpenInput, err)
		}
		return fail("open", err)
	}
	return p.OpenNetwork(net, rptPath, outPath)
}

// OpenNetwork binds an already built network description.
func (p *Project) OpenNetwork(net *core.Network, rptPath, outPath string) error {
	if err := p.usable("open"); err != nil {
		return err
	}
	if p.net != nil {
		return &Error{Code: 113, Op: "open", Err: ErrAlreadyOpen}
	}
	if net == nil {
		return &Error{Code: 102, Op: "open", Err: ErrNoNetwork}
	}
	if err := net.Validate(); err != nil {
		return fail("open", err)
	}
	if rptPath != "" {
		f, err := os.OpenFile(rptPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fail("open", fmt.Errorf("%w: %v", ErrCannotOpenReport, err))
		}
		f.Close()
	}
	out, err := output.Open(outPath)
	if err != nil {
		return fail("open", fmt.Errorf("%w: %v", ErrCannotOpenResults, err))
	}

	p.net = net
	p.rptPath = rptPath
	p.out = out
	p.header = false
	p.hyd = hydraulics.New(net,
		hydraulics.WithLogger(p.log),
		hydraulics.WithClockListener(func(int64) { p.metrics.ObserveStep(observability.KindHydraulic) }),
	)
	p.qual = nil
	p.traj = nil
	p.results = nil

	nodes, _ := net.Count(core.NodeCount)
	links, _ := net.Count(core.LinkCount)
	patterns, _ := net.Count(core.PatternCount)
	p.metrics.ProjectOpened()
	p.metrics.SetNetworkCounts(nodes, links, patterns)
	p.log.Info(p.ctx, "network opened",
		logging.String("title", net.Title),
		logging.Int("nodes", nodes),
		logging.Int("links", links),
	)
	return nil
}

// Close releases the solvers, the results destination and the network.
// The project can then be opened again.
func (p *Project) Close() error {
	if err := p.bound("close"); err != nil {
		return err
	}
	var err error
	if p.qual != nil && p.qual.Phase().IsOpen() {
		err = multierr.Append(err, p.qual.Close())
	}
	if p.hyd != nil && p.hyd.Phase().IsOpen() {
		err = multierr.Append(err, p.hyd.Close())
	}
	if p.out != nil {
		if cerr := p.out.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %v", ErrWriteResults, cerr))
		}
	}
	p.net, p.out, p.hyd, p.qual, p.traj = nil, nil, nil, nil, nil
	p.results = nil
	p.rptPath = ""
	p.metrics.ProjectClosed()
	p.log.Info(p.ctx, "network closed")
	return fail("close", err)
}

// Network returns the bound network description, or nil.
func (p *Project) Network() *core.Network {
	if p == nil || p.deleted {
		return nil
	}
	return p.net
}

// writePeriod streams one result period, writing the header first.
func (p *Project) writePeriod(ctx context.Context, period output.Period) error {
	if !p.header {
		if err := p.out.WriteHeader(ctx, output.NewHeader(p.net)); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteResults, err)
		}
		p.header = true
	}
	if err := p.out.WritePeriod(ctx, period); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteResults, err)
	}
	return nil
}
